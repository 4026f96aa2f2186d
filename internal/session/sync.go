package session

import (
	"context"
	"fmt"

	"github.com/marcus/kb/internal/board"
	"github.com/marcus/kb/internal/models"
)

// Sync is the single-shot form of the optimistic protocol: show next, send
// batch, and show prev again if the send fails. An empty batch succeeds
// without touching the network. Use a Session when moves can overlap.
func Sync(ctx context.Context, remote Remote, prev, next board.State, batch []models.ChangedItem, view func(board.State)) Outcome {
	if view != nil {
		view(next)
	}
	if len(batch) == 0 {
		return Outcome{Status: Succeeded}
	}

	records, err := remote.UpdatePositions(ctx, batch)
	if err != nil {
		if view != nil {
			view(prev)
		}
		return Outcome{
			Status:   Failed,
			Batch:    batch,
			Previous: prev,
			Err:      fmt.Errorf("%w: %w", ErrReorderFailed, err),
		}
	}
	return Outcome{Status: Succeeded, Batch: batch, Records: records}
}
