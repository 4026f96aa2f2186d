package board

import "github.com/marcus/kb/internal/models"

// BuildBatch converts changed items into the records sent to the position
// service. Duplicate ids keep the last occurrence.
func BuildBatch(changed []models.Item) []models.ChangedItem {
	if len(changed) == 0 {
		return nil
	}
	seen := make(map[string]int, len(changed))
	batch := make([]models.ChangedItem, 0, len(changed))
	for _, it := range changed {
		rec := models.ChangedItem{ID: it.ID, Column: it.Column, Position: it.Position}
		if i, ok := seen[it.ID]; ok {
			batch[i] = rec
			continue
		}
		seen[it.ID] = len(batch)
		batch = append(batch, rec)
	}
	return batch
}
