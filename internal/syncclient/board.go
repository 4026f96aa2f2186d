package syncclient

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/marcus/kb/internal/models"
)

// Board binds a Client to one project. It satisfies the session's Remote
// and Fetcher interfaces.
type Board struct {
	client    *Client
	projectID string
	retries   int
	newKey    func() string
}

// NewBoard returns the remote view of projectID's board. Position batches
// that fail before reaching the server are resent up to retries times under
// the same Idempotency-Key.
func NewBoard(c *Client, projectID string, retries int) *Board {
	return &Board{client: c, projectID: projectID, retries: max(retries, 0), newKey: uuid.NewString}
}

// ProjectID returns the bound project.
func (b *Board) ProjectID() string { return b.projectID }

// FetchItems returns every item on the board.
func (b *Board) FetchItems(ctx context.Context) ([]models.Item, error) {
	return b.client.ListItems(ctx, b.projectID, "")
}

// UpdatePositions persists a batch atomically and returns the canonical records.
func (b *Board) UpdatePositions(ctx context.Context, batch []models.ChangedItem) ([]models.Item, error) {
	key := b.newKey()
	var err error
	for attempt := 0; attempt <= b.retries; attempt++ {
		var records []models.Item
		var replayed bool
		records, replayed, err = b.client.UpdatePositions(ctx, b.projectID, batch, key)
		if err == nil {
			if replayed {
				slog.Debug("position batch answered from idempotency key", "key", key)
			}
			return records, nil
		}
		if !IsTransport(err) || ctx.Err() != nil {
			return nil, err
		}
		slog.Debug("position batch send failed, retrying", "attempt", attempt+1, "err", err)
	}
	return nil, err
}
