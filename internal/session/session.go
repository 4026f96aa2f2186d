// Package session owns the visible board state for one board and keeps it in
// step with the remote position service: moves are applied optimistically,
// their batches are persisted one at a time in move order, failures roll the
// view back, and fresh server snapshots are reconciled once nothing is in
// flight.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/marcus/kb/internal/board"
	"github.com/marcus/kb/internal/models"
)

// Remote persists a batch atomically and returns the canonical records.
type Remote interface {
	UpdatePositions(ctx context.Context, batch []models.ChangedItem) ([]models.Item, error)
}

// Fetcher returns the authoritative flat collection for the board.
type Fetcher interface {
	FetchItems(ctx context.Context) ([]models.Item, error)
}

// ChangeReason says why the visible state changed.
type ChangeReason string

const (
	ChangeMove      ChangeReason = "move"
	ChangeRollback  ChangeReason = "rollback"
	ChangeReconcile ChangeReason = "reconcile"
)

// Change is delivered to the view whenever the visible state changes.
// Changes may arrive from the worker goroutine; consumers should ignore a
// Change whose Version is not greater than the last one they applied.
type Change struct {
	State   board.State
	Version uint64
	Reason  ChangeReason
}

// Option configures a Session.
type Option func(*Session)

// WithOnChange registers the view callback. It must not block on the
// goroutine that calls Move.
func WithOnChange(fn func(Change)) Option {
	return func(s *Session) { s.onChange = fn }
}

// WithFetcher sets the source used by Refresh.
func WithFetcher(f Fetcher) Option {
	return func(s *Session) { s.fetcher = f }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// op is one queued move awaiting persistence.
type op struct {
	movedID string
	dest    models.Location
	prev    board.State
	batch   []models.ChangedItem
	ready   chan struct{} // closed once the optimistic state reached the view
	pending *Pending
}

// Session is the single owner of a board's visible state.
type Session struct {
	remote   Remote
	fetcher  Fetcher
	onChange func(Change)
	log      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	visible     board.State
	version     uint64
	queue       []*op // queue[0] is in flight while sending
	sending     bool
	idle        chan struct{}
	deferred    []models.Item
	hasDeferred bool
	closed      bool
}

// New creates a session showing initial.
func New(remote Remote, initial board.State, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		remote:  remote,
		log:     slog.Default(),
		ctx:     ctx,
		cancel:  cancel,
		visible: initial,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// State returns the currently visible board.
func (s *Session) State() board.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

// Version returns the version of the visible board.
func (s *Session) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Move applies ev to the visible board immediately and queues its batch.
// Cancelled or stale moves change nothing and resolve at once as successes
// with an empty batch.
func (s *Session) Move(ev models.MoveEvent) *Pending {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return resolved(Outcome{Status: Failed, Err: fmt.Errorf("%w: %w", ErrReorderFailed, ErrClosed)})
	}

	r := board.Apply(s.visible, ev)
	if !r.Applied {
		s.mu.Unlock()
		return resolved(Outcome{Status: Succeeded})
	}

	o := &op{
		dest:    *ev.Destination,
		prev:    s.visible,
		batch:   board.BuildBatch(r.Changed),
		ready:   make(chan struct{}),
		pending: newPending(),
	}
	o.movedID = r.Changed[0].ID
	s.visible = r.State
	s.version++
	change := Change{State: s.visible, Version: s.version, Reason: ChangeMove}
	s.queue = append(s.queue, o)
	start := !s.sending
	if start {
		s.sending = true
		s.idle = make(chan struct{})
		s.wg.Add(1)
	}
	s.mu.Unlock()

	s.publish(change)
	close(o.ready)
	if start {
		go s.run()
	}
	return o.pending
}

// MoveItem moves the item with the given id to dest.
func (s *Session) MoveItem(id string, dest models.Location) *Pending {
	loc, ok := s.State().Locate(id)
	if !ok {
		return resolved(Outcome{Status: Succeeded})
	}
	return s.Move(models.MoveEvent{Source: loc, Destination: &dest})
}

// Reconcile rebuilds the visible board from a fresh collection. While a batch
// is queued or in flight the collection is held back, and only the latest one
// is applied once the queue drains. It reports whether items were applied now.
func (s *Session) Reconcile(items []models.Item) bool {
	s.mu.Lock()
	if s.sending || len(s.queue) > 0 {
		s.deferred = items
		s.hasDeferred = true
		s.mu.Unlock()
		s.log.Debug("reconcile deferred", "items", len(items))
		return false
	}
	s.visible = board.Build(items)
	s.version++
	change := Change{State: s.visible, Version: s.version, Reason: ChangeReconcile}
	s.mu.Unlock()

	s.publish(change)
	return true
}

// Refresh fetches the authoritative collection and reconciles it.
func (s *Session) Refresh(ctx context.Context) error {
	if s.fetcher == nil {
		return fmt.Errorf("refresh: no fetcher configured")
	}
	items, err := s.fetcher.FetchItems(ctx)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	s.Reconcile(items)
	return nil
}

// Wait blocks until every queued batch has settled.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	if !s.sending {
		s.mu.Unlock()
		return nil
	}
	idle := s.idle
	s.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels any in-flight request and waits for the worker to exit.
// Batches that have not settled fail and roll back.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}

func (s *Session) publish(c Change) {
	if s.onChange != nil {
		s.onChange(c)
	}
}

// run persists queued batches one at a time until the queue is empty.
func (s *Session) run() {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.sending = false
			close(s.idle)
			var change *Change
			if s.hasDeferred {
				s.visible = board.Build(s.deferred)
				s.deferred, s.hasDeferred = nil, false
				s.version++
				change = &Change{State: s.visible, Version: s.version, Reason: ChangeReconcile}
			}
			s.mu.Unlock()
			if change != nil {
				s.publish(*change)
			}
			return
		}
		o := s.queue[0]
		s.mu.Unlock()

		<-o.ready
		s.settle(o)
	}
}

// settle sends one batch and resolves its outcome.
func (s *Session) settle(o *op) {
	var (
		records []models.Item
		err     error
	)
	if len(o.batch) > 0 {
		records, err = s.remote.UpdatePositions(s.ctx, o.batch)
	}

	s.mu.Lock()
	s.queue = s.queue[1:]
	if err == nil {
		s.mu.Unlock()
		o.pending.resolve(Outcome{Status: Succeeded, Batch: o.batch, Records: records})
		return
	}

	s.rollback(o)
	s.version++
	change := Change{State: s.visible, Version: s.version, Reason: ChangeRollback}
	queued := len(s.queue)
	s.mu.Unlock()

	s.log.Warn("reorder failed, rolled back", "item", o.movedID, "batch", len(o.batch), "replayed", queued, "err", err)
	s.publish(change)
	o.pending.resolve(Outcome{
		Status:   Failed,
		Batch:    o.batch,
		Previous: o.prev,
		Err:      fmt.Errorf("%w: %w", ErrReorderFailed, err),
	})
}

// rollback restores the state from before o and replays every later queued
// move on top of it, recomputing their batches. With nothing queued the
// visible state becomes exactly o.prev. Caller holds s.mu.
func (s *Session) rollback(o *op) {
	base := o.prev
	for _, later := range s.queue {
		r := board.MoveItem(base, later.movedID, later.dest)
		later.prev = base
		later.batch = board.BuildBatch(r.Changed)
		base = r.State
	}
	s.visible = base
}
