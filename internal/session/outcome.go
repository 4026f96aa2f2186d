package session

import (
	"context"
	"errors"

	"github.com/marcus/kb/internal/board"
	"github.com/marcus/kb/internal/models"
)

// Sentinel errors surfaced to callers.
var (
	// ErrReorderFailed wraps every failed persistence attempt; the underlying
	// cause (validation, authorization, transport) is attached with %w.
	ErrReorderFailed = errors.New("reorder failed")
	ErrClosed        = errors.New("session closed")
)

// Status is the two-state result of a sync.
type Status int

const (
	Succeeded Status = iota + 1
	Failed
)

func (s Status) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome reports how one batch was resolved.
type Outcome struct {
	Status Status
	Batch  []models.ChangedItem
	// Records holds the canonical records echoed by the service on success.
	Records []models.Item
	// Previous is the snapshot the view was restored to on failure.
	Previous board.State
	Err      error
}

// OK reports whether the batch was persisted (or needed no persistence).
func (o Outcome) OK() bool { return o.Status == Succeeded }

// Pending is a handle on a queued batch.
type Pending struct {
	done    chan struct{}
	outcome Outcome
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func resolved(o Outcome) *Pending {
	p := newPending()
	p.resolve(o)
	return p
}

func (p *Pending) resolve(o Outcome) {
	p.outcome = o
	close(p.done)
}

// Done is closed once the outcome is known.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Outcome returns the result. Only valid after Done is closed.
func (p *Pending) Outcome() Outcome { return p.outcome }

// Wait blocks until the outcome is known or ctx ends.
func (p *Pending) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-p.done:
		return p.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}
