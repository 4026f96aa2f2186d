package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/marcus/kb/internal/board"
	"github.com/marcus/kb/internal/models"
)

// scriptedRemote records each batch and blocks until the test replies.
type scriptedRemote struct {
	calls   chan []models.ChangedItem
	replies chan error
}

func newScriptedRemote() *scriptedRemote {
	return &scriptedRemote{
		calls:   make(chan []models.ChangedItem, 16),
		replies: make(chan error),
	}
}

func (r *scriptedRemote) UpdatePositions(ctx context.Context, batch []models.ChangedItem) ([]models.Item, error) {
	r.calls <- batch
	select {
	case err := <-r.replies:
		if err != nil {
			return nil, err
		}
		out := make([]models.Item, len(batch))
		for i, b := range batch {
			out[i] = models.Item{ID: b.ID, Column: b.Column, Position: b.Position}
		}
		return out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *scriptedRemote) nextCall(t *testing.T) []models.ChangedItem {
	t.Helper()
	select {
	case b := <-r.calls:
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for remote call")
		return nil
	}
}

func (r *scriptedRemote) expectNoCall(t *testing.T) {
	t.Helper()
	select {
	case b := <-r.calls:
		t.Fatalf("unexpected remote call: %+v", b)
	case <-time.After(50 * time.Millisecond):
	}
}

type staticFetcher struct{ items []models.Item }

func (f staticFetcher) FetchItems(context.Context) ([]models.Item, error) { return f.items, nil }

func testBoard() board.State {
	return board.Build([]models.Item{
		{ID: "A", Column: models.ColumnTodo, Position: 1000},
		{ID: "B", Column: models.ColumnTodo, Position: 2000},
		{ID: "C", Column: models.ColumnTodo, Position: 3000},
		{ID: "X", Column: models.ColumnDone, Position: 1000},
	})
}

func moveEvent(srcCol models.ColumnKey, srcIdx int, dstCol models.ColumnKey, dstIdx int) models.MoveEvent {
	return models.MoveEvent{
		Source:      models.Location{Column: srcCol, Index: srcIdx},
		Destination: &models.Location{Column: dstCol, Index: dstIdx},
	}
}

func waitOutcome(t *testing.T, p *Pending) Outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	o, err := p.Wait(ctx)
	if err != nil {
		t.Fatalf("wait outcome: %v", err)
	}
	return o
}

func columnIDs(s board.State, c models.ColumnKey) []string {
	var out []string
	for _, it := range s.Column(c) {
		out = append(out, it.ID)
	}
	return out
}

func TestMoveAppliesBeforeNetwork(t *testing.T) {
	remote := newScriptedRemote()
	var (
		mu      sync.Mutex
		changes []Change
	)
	s := New(remote, testBoard(), WithOnChange(func(c Change) {
		mu.Lock()
		changes = append(changes, c)
		mu.Unlock()
	}))
	t.Cleanup(s.Close)

	p := s.Move(moveEvent(models.ColumnTodo, 2, models.ColumnTodo, 0))

	if diff := cmp.Diff([]string{"C", "A", "B"}, columnIDs(s.State(), models.ColumnTodo)); diff != "" {
		t.Fatalf("optimistic state (-want +got):\n%s", diff)
	}
	mu.Lock()
	if len(changes) != 1 || changes[0].Reason != ChangeMove {
		t.Errorf("changes = %+v", changes)
	}
	mu.Unlock()

	batch := remote.nextCall(t)
	if len(batch) != 3 {
		t.Errorf("batch = %+v", batch)
	}
	remote.replies <- nil

	o := waitOutcome(t, p)
	if !o.OK() {
		t.Fatalf("outcome = %+v", o)
	}
	if len(o.Records) != 3 {
		t.Errorf("records = %+v", o.Records)
	}
	if diff := cmp.Diff([]string{"C", "A", "B"}, columnIDs(s.State(), models.ColumnTodo)); diff != "" {
		t.Errorf("state after success (-want +got):\n%s", diff)
	}
}

func TestRollbackRestoresExactPreviousState(t *testing.T) {
	remote := newScriptedRemote()
	initial := testBoard()
	s := New(remote, initial)
	t.Cleanup(s.Close)

	p := s.Move(moveEvent(models.ColumnTodo, 0, models.ColumnDone, 0))
	remote.nextCall(t)
	cause := errors.New("cross tenant")
	remote.replies <- cause

	o := waitOutcome(t, p)
	if o.OK() {
		t.Fatal("expected failure")
	}
	if !errors.Is(o.Err, ErrReorderFailed) || !errors.Is(o.Err, cause) {
		t.Errorf("err = %v", o.Err)
	}
	if !o.Previous.Equal(initial) {
		t.Error("outcome snapshot differs from pre-move state")
	}
	if !s.State().Equal(initial) {
		t.Error("visible state not restored")
	}
}

func TestBatchesAreSerialized(t *testing.T) {
	remote := newScriptedRemote()
	s := New(remote, testBoard())
	t.Cleanup(s.Close)

	p1 := s.Move(moveEvent(models.ColumnTodo, 0, models.ColumnDone, 0))
	p2 := s.Move(moveEvent(models.ColumnTodo, 0, models.ColumnInProgress, 0))

	// second move is visible right away, on top of the first
	if diff := cmp.Diff([]string{"C"}, columnIDs(s.State(), models.ColumnTodo)); diff != "" {
		t.Fatalf("todo (-want +got):\n%s", diff)
	}

	first := remote.nextCall(t)
	if first[0].ID != "A" {
		t.Errorf("first batch should carry A, got %+v", first)
	}
	remote.expectNoCall(t)
	remote.replies <- nil

	second := remote.nextCall(t)
	if second[0].ID != "B" {
		t.Errorf("second batch should carry B, got %+v", second)
	}
	remote.replies <- nil

	if o := waitOutcome(t, p1); !o.OK() {
		t.Errorf("p1 = %+v", o)
	}
	if o := waitOutcome(t, p2); !o.OK() {
		t.Errorf("p2 = %+v", o)
	}
}

func TestFailureKeepsLaterMoves(t *testing.T) {
	remote := newScriptedRemote()
	s := New(remote, testBoard())
	t.Cleanup(s.Close)

	p1 := s.Move(moveEvent(models.ColumnTodo, 0, models.ColumnDone, 0))       // A -> done
	p2 := s.Move(moveEvent(models.ColumnTodo, 0, models.ColumnInProgress, 0)) // B -> in_progress

	remote.nextCall(t)
	remote.replies <- errors.New("unavailable")
	if o := waitOutcome(t, p1); o.OK() {
		t.Fatal("p1 should fail")
	}

	st := s.State()
	if diff := cmp.Diff([]string{"A", "C"}, columnIDs(st, models.ColumnTodo)); diff != "" {
		t.Errorf("todo after rollback (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"X"}, columnIDs(st, models.ColumnDone)); diff != "" {
		t.Errorf("done after rollback (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"B"}, columnIDs(st, models.ColumnInProgress)); diff != "" {
		t.Errorf("in_progress after rollback (-want +got):\n%s", diff)
	}

	// the replayed batch is recomputed against the rolled-back base
	second := remote.nextCall(t)
	got := map[string]models.ChangedItem{}
	for _, c := range second {
		got[c.ID] = c
	}
	if got["B"].Column != models.ColumnInProgress || got["B"].Position != 1000 {
		t.Errorf("B record = %+v", got["B"])
	}
	if _, ok := got["A"]; ok {
		t.Errorf("A kept its position and should not be sent: %+v", second)
	}
	if got["C"].Position != 2000 || len(second) != 2 {
		t.Errorf("source column records = %+v", second)
	}
	remote.replies <- nil
	if o := waitOutcome(t, p2); !o.OK() {
		t.Errorf("p2 = %+v", o)
	}
}

func TestRepeatedFailuresUnwindInOrder(t *testing.T) {
	remote := newScriptedRemote()
	initial := testBoard()
	s := New(remote, initial)
	t.Cleanup(s.Close)

	p1 := s.Move(moveEvent(models.ColumnTodo, 0, models.ColumnDone, 0))
	p2 := s.Move(moveEvent(models.ColumnTodo, 0, models.ColumnDone, 0))

	remote.nextCall(t)
	remote.replies <- errors.New("boom")
	waitOutcome(t, p1)
	remote.nextCall(t)
	remote.replies <- errors.New("boom")
	waitOutcome(t, p2)

	if !s.State().Equal(initial) {
		t.Error("expected both moves unwound to the initial state")
	}
}

func TestCancelledMoveQueuesNothing(t *testing.T) {
	remote := newScriptedRemote()
	initial := testBoard()
	s := New(remote, initial)
	t.Cleanup(s.Close)

	p := s.Move(models.MoveEvent{Source: models.Location{Column: models.ColumnTodo, Index: 0}})
	o := waitOutcome(t, p)
	if !o.OK() || len(o.Batch) != 0 {
		t.Errorf("outcome = %+v", o)
	}
	remote.expectNoCall(t)
	if !s.State().Equal(initial) {
		t.Error("state changed")
	}
}

func TestReconcileDeferredWhileInFlight(t *testing.T) {
	remote := newScriptedRemote()
	s := New(remote, testBoard())
	t.Cleanup(s.Close)

	p := s.Move(moveEvent(models.ColumnTodo, 0, models.ColumnDone, 0))
	remote.nextCall(t)

	stale := []models.Item{{ID: "A", Column: models.ColumnTodo, Position: 1000}}
	fresh := []models.Item{
		{ID: "A", Column: models.ColumnDone, Position: 1000},
		{ID: "N", Column: models.ColumnBacklog, Position: 1000},
	}
	if s.Reconcile(stale) {
		t.Fatal("reconcile should be deferred while in flight")
	}
	if s.Reconcile(fresh) {
		t.Fatal("reconcile should be deferred while in flight")
	}
	// optimistic placement survives
	if diff := cmp.Diff([]string{"A", "X"}, columnIDs(s.State(), models.ColumnDone)); diff != "" {
		t.Fatalf("done (-want +got):\n%s", diff)
	}

	remote.replies <- nil
	waitOutcome(t, p)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatal(err)
	}

	if !s.State().Equal(board.Build(fresh)) {
		t.Errorf("expected latest deferred collection, got %+v", s.State().Items())
	}
}

func TestReconcileImmediateWhenIdle(t *testing.T) {
	s := New(newScriptedRemote(), testBoard())
	t.Cleanup(s.Close)

	before := s.Version()
	fresh := []models.Item{{ID: "Z", Column: models.ColumnInReview, Position: 1000}}
	if !s.Reconcile(fresh) {
		t.Fatal("expected immediate reconcile")
	}
	if !s.State().Equal(board.Build(fresh)) {
		t.Error("state not rebuilt")
	}
	if s.Version() <= before {
		t.Error("version did not advance")
	}
}

func TestRefreshUsesFetcher(t *testing.T) {
	fresh := []models.Item{{ID: "Z", Column: models.ColumnInReview, Position: 1000}}
	s := New(newScriptedRemote(), testBoard(), WithFetcher(staticFetcher{items: fresh}))
	t.Cleanup(s.Close)

	if err := s.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !s.State().Equal(board.Build(fresh)) {
		t.Error("refresh did not reconcile")
	}
}

func TestCloseFailsInFlight(t *testing.T) {
	remote := newScriptedRemote()
	initial := testBoard()
	s := New(remote, initial)

	p := s.Move(moveEvent(models.ColumnTodo, 0, models.ColumnDone, 0))
	remote.nextCall(t)
	s.Close()

	o := waitOutcome(t, p)
	if o.OK() || !errors.Is(o.Err, context.Canceled) {
		t.Errorf("outcome = %+v", o)
	}
	if !s.State().Equal(initial) {
		t.Error("expected rollback on close")
	}

	after := s.Move(moveEvent(models.ColumnTodo, 0, models.ColumnDone, 0))
	if o := waitOutcome(t, after); !errors.Is(o.Err, ErrClosed) {
		t.Errorf("move after close = %+v", o)
	}
}

func TestSyncEmptyBatchIsNoop(t *testing.T) {
	remote := newScriptedRemote()
	st := testBoard()
	var shown []board.State
	o := Sync(context.Background(), remote, st, st, nil, func(s board.State) { shown = append(shown, s) })
	if !o.OK() {
		t.Errorf("outcome = %+v", o)
	}
	remote.expectNoCall(t)
	if len(shown) != 1 {
		t.Errorf("view updates = %d", len(shown))
	}
}

func TestSyncFailureRestoresView(t *testing.T) {
	remote := newScriptedRemote()
	prev := testBoard()
	r := board.Apply(prev, moveEvent(models.ColumnTodo, 0, models.ColumnDone, 0))
	batch := board.BuildBatch(r.Changed)

	var shown []board.State
	done := make(chan Outcome, 1)
	go func() {
		done <- Sync(context.Background(), remote, prev, r.State, batch, func(s board.State) { shown = append(shown, s) })
	}()
	remote.nextCall(t)
	remote.replies <- errors.New("unauthorized")
	o := <-done

	if o.OK() || !errors.Is(o.Err, ErrReorderFailed) {
		t.Errorf("outcome = %+v", o)
	}
	if len(shown) != 2 || !shown[0].Equal(r.State) || !shown[1].Equal(prev) {
		t.Errorf("view sequence wrong: %d updates", len(shown))
	}
}
