package board

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/marcus/kb/internal/models"
)

func item(id string, col models.ColumnKey, pos int) models.Item {
	return models.Item{ID: id, Column: col, Position: pos}
}

func ids(items []models.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func positions(items []models.Item) []int {
	out := make([]int, len(items))
	for i, it := range items {
		out[i] = it.Position
	}
	return out
}

func changedSet(items []models.Item) map[string]models.Item {
	m := make(map[string]models.Item, len(items))
	for _, it := range items {
		m[it.ID] = it
	}
	return m
}

func dest(col models.ColumnKey, idx int) *models.Location {
	return &models.Location{Column: col, Index: idx}
}

// --- Build ---

func TestBuildHasEveryKnownColumn(t *testing.T) {
	s := Build(nil)
	for _, c := range models.Columns {
		if !s.HasColumn(c) {
			t.Errorf("missing column %s", c)
		}
		if got := s.Column(c); got == nil || len(got) != 0 {
			t.Errorf("column %s: expected empty non-nil slice, got %v", c, got)
		}
	}
	if diff := cmp.Diff(models.Columns, s.Columns()); diff != "" {
		t.Errorf("column order (-want +got):\n%s", diff)
	}
}

func TestBuildSortsByPositionStable(t *testing.T) {
	s := Build([]models.Item{
		item("c", models.ColumnTodo, 3000),
		item("a", models.ColumnTodo, 1000),
		item("dup1", models.ColumnTodo, 2000),
		item("dup2", models.ColumnTodo, 2000),
		item("x", models.ColumnDone, 50),
	})
	if diff := cmp.Diff([]string{"a", "dup1", "dup2", "c"}, ids(s.Column(models.ColumnTodo))); diff != "" {
		t.Errorf("todo order (-want +got):\n%s", diff)
	}
	// out-of-range positions are tolerated
	if got := ids(s.Column(models.ColumnDone)); len(got) != 1 || got[0] != "x" {
		t.Errorf("done = %v", got)
	}
}

func TestBuildKeepsUnknownColumns(t *testing.T) {
	s := Build([]models.Item{item("z", "archived", 1000), item("a", models.ColumnTodo, 1000)})
	if !s.HasColumn("archived") {
		t.Fatal("expected unknown column to be kept")
	}
	cols := s.Columns()
	if cols[len(cols)-1] != "archived" {
		t.Errorf("unknown column should sort last, got %v", cols)
	}
	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2", s.Len())
	}
}

func TestLocate(t *testing.T) {
	s := Build([]models.Item{item("a", models.ColumnTodo, 1000), item("b", models.ColumnTodo, 2000)})
	loc, ok := s.Locate("b")
	if !ok || loc.Column != models.ColumnTodo || loc.Index != 1 {
		t.Errorf("Locate(b) = %+v, %v", loc, ok)
	}
	if _, ok := s.Locate("missing"); ok {
		t.Error("Locate(missing) should fail")
	}
}

// --- Positions ---

func TestPositionsGap(t *testing.T) {
	ps, err := Positions(3)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{1000, 2000, 3000}, ps); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestPositionsAtCapacity(t *testing.T) {
	ps, err := Positions(1000)
	if err != nil {
		t.Fatal(err)
	}
	if ps[999] != models.MaxPosition {
		t.Errorf("last = %d, want %d", ps[999], models.MaxPosition)
	}
	if !strictlyIncreasing(ps) {
		t.Error("expected strictly increasing")
	}
}

func TestPositionsRespaceWhenCollidingAtMax(t *testing.T) {
	ps, err := Positions(1500)
	if err != nil {
		t.Fatal(err)
	}
	if !strictlyIncreasing(ps) {
		t.Fatal("expected strictly increasing after respace")
	}
	for _, p := range ps {
		if !models.PositionInRange(p) {
			t.Fatalf("position %d out of range", p)
		}
	}
	if ps[0] != models.MinPosition {
		t.Errorf("first = %d", ps[0])
	}
}

func TestPositionsColumnFull(t *testing.T) {
	n := models.MaxPosition - models.MinPosition + 2
	if _, err := Positions(n); !errors.Is(err, ErrColumnFull) {
		t.Errorf("expected ErrColumnFull, got %v", err)
	}
}

func TestRepositionDoesNotMutateInput(t *testing.T) {
	in := []models.Item{item("a", models.ColumnTodo, 7), item("b", models.ColumnTodo, 9)}
	out, err := Reposition(in)
	if err != nil {
		t.Fatal(err)
	}
	if in[0].Position != 7 || out[0].Position != 1000 {
		t.Errorf("in=%v out=%v", positions(in), positions(out))
	}
}

// --- Apply ---

func TestApplySameColumnToTop(t *testing.T) {
	s := Build([]models.Item{
		item("A", models.ColumnTodo, 1000),
		item("B", models.ColumnTodo, 2000),
		item("C", models.ColumnTodo, 3000),
	})

	r := Apply(s, models.MoveEvent{
		Source:      models.Location{Column: models.ColumnTodo, Index: 2},
		Destination: dest(models.ColumnTodo, 0),
	})
	if !r.Applied {
		t.Fatal("expected move to apply")
	}
	todo := r.State.Column(models.ColumnTodo)
	if diff := cmp.Diff([]string{"C", "A", "B"}, ids(todo)); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1000, 2000, 3000}, positions(todo)); diff != "" {
		t.Errorf("positions (-want +got):\n%s", diff)
	}
	got := changedSet(r.Changed)
	if len(got) != 3 {
		t.Errorf("changed = %v, want C, A, B", ids(r.Changed))
	}
	if got["C"].Position != 1000 || got["A"].Position != 2000 || got["B"].Position != 3000 {
		t.Errorf("changed positions wrong: %+v", got)
	}
}

func TestApplyCrossColumn(t *testing.T) {
	s := Build([]models.Item{
		item("A", models.ColumnTodo, 1000),
		item("X", models.ColumnDone, 1000),
		item("Y", models.ColumnDone, 2000),
	})

	r := Apply(s, models.MoveEvent{
		Source:      models.Location{Column: models.ColumnTodo, Index: 0},
		Destination: dest(models.ColumnDone, 1),
	})
	done := r.State.Column(models.ColumnDone)
	if diff := cmp.Diff([]string{"X", "A", "Y"}, ids(done)); diff != "" {
		t.Errorf("done order (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1000, 2000, 3000}, positions(done)); diff != "" {
		t.Errorf("done positions (-want +got):\n%s", diff)
	}
	if n := len(r.State.Column(models.ColumnTodo)); n != 0 {
		t.Errorf("todo should be empty, has %d", n)
	}

	got := changedSet(r.Changed)
	if _, ok := got["X"]; ok {
		t.Error("X did not move and must not be in changed")
	}
	if a := got["A"]; a.Column != models.ColumnDone || a.Position != 2000 {
		t.Errorf("A = %+v", a)
	}
	if y := got["Y"]; y.Position != 3000 {
		t.Errorf("Y = %+v", y)
	}
	if len(got) != 2 {
		t.Errorf("changed = %v", ids(r.Changed))
	}
}

func TestApplyNoop(t *testing.T) {
	s := Build([]models.Item{item("A", models.ColumnTodo, 1000)})

	tests := []struct {
		name string
		ev   models.MoveEvent
	}{
		{"cancelled", models.MoveEvent{Source: models.Location{Column: models.ColumnTodo, Index: 0}}},
		{"outside any column", models.MoveEvent{
			Source:      models.Location{Column: models.ColumnTodo, Index: 0},
			Destination: dest("trash", 0),
		}},
		{"stale index", models.MoveEvent{
			Source:      models.Location{Column: models.ColumnTodo, Index: 5},
			Destination: dest(models.ColumnDone, 0),
		}},
		{"negative index", models.MoveEvent{
			Source:      models.Location{Column: models.ColumnTodo, Index: -1},
			Destination: dest(models.ColumnDone, 0),
		}},
		{"unknown source", models.MoveEvent{
			Source:      models.Location{Column: "nope", Index: 0},
			Destination: dest(models.ColumnDone, 0),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Apply(s, tt.ev)
			if r.Applied {
				t.Error("expected no-op")
			}
			if len(r.Changed) != 0 {
				t.Errorf("changed = %v", ids(r.Changed))
			}
			if !r.State.Equal(s) {
				t.Error("state changed")
			}
		})
	}
}

func TestApplyRejectsDropOnUnknownColumn(t *testing.T) {
	s := Build([]models.Item{item("z", "archived", 1000), item("a", models.ColumnTodo, 1000)})

	r := Apply(s, models.MoveEvent{
		Source:      models.Location{Column: models.ColumnTodo, Index: 0},
		Destination: dest("archived", 0),
	})
	if r.Applied || len(r.Changed) != 0 || !r.State.Equal(s) {
		t.Fatalf("drop on unknown column applied: %+v", ids(r.Changed))
	}

	// items can still leave an unknown column
	r = Apply(s, models.MoveEvent{
		Source:      models.Location{Column: "archived", Index: 0},
		Destination: dest(models.ColumnTodo, 0),
	})
	if !r.Applied {
		t.Fatal("move out of unknown column should apply")
	}
	if got := ids(r.State.Column(models.ColumnTodo)); len(got) != 2 || got[0] != "z" {
		t.Errorf("todo = %v", got)
	}
}

func TestApplySamePlaceStillReportsMovedItem(t *testing.T) {
	s := Build([]models.Item{item("A", models.ColumnTodo, 1000), item("B", models.ColumnTodo, 2000)})
	r := Apply(s, models.MoveEvent{
		Source:      models.Location{Column: models.ColumnTodo, Index: 1},
		Destination: dest(models.ColumnTodo, 1),
	})
	if diff := cmp.Diff([]string{"B"}, ids(r.Changed)); diff != "" {
		t.Errorf("changed (-want +got):\n%s", diff)
	}
}

func TestApplyClampsDestinationIndex(t *testing.T) {
	s := Build([]models.Item{item("A", models.ColumnTodo, 1000), item("X", models.ColumnDone, 1000)})
	r := Apply(s, models.MoveEvent{
		Source:      models.Location{Column: models.ColumnTodo, Index: 0},
		Destination: dest(models.ColumnDone, 99),
	})
	if diff := cmp.Diff([]string{"X", "A"}, ids(r.State.Column(models.ColumnDone))); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	s := Build([]models.Item{
		item("A", models.ColumnTodo, 1000),
		item("B", models.ColumnTodo, 2000),
	})
	snapshot := Build(s.Items())
	Apply(s, models.MoveEvent{
		Source:      models.Location{Column: models.ColumnTodo, Index: 1},
		Destination: dest(models.ColumnDone, 0),
	})
	if !s.Equal(snapshot) {
		t.Error("Apply mutated its input state")
	}
}

func TestApplyNormalizesSparsePositions(t *testing.T) {
	s := Build([]models.Item{
		item("A", models.ColumnTodo, 1500),
		item("B", models.ColumnTodo, 1500),
		item("C", models.ColumnTodo, 9000),
	})
	r := Apply(s, models.MoveEvent{
		Source:      models.Location{Column: models.ColumnTodo, Index: 0},
		Destination: dest(models.ColumnTodo, 2),
	})
	if diff := cmp.Diff([]int{1000, 2000, 3000}, positions(r.State.Column(models.ColumnTodo))); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestMoveItemByID(t *testing.T) {
	s := Build([]models.Item{item("A", models.ColumnTodo, 1000), item("B", models.ColumnTodo, 2000)})
	r := MoveItem(s, "B", models.Location{Column: models.ColumnInProgress, Index: 0})
	if !r.Applied {
		t.Fatal("expected move")
	}
	it, ok := r.State.Item("B")
	if !ok || it.Column != models.ColumnInProgress || it.Position != 1000 {
		t.Errorf("B = %+v", it)
	}
	if r := MoveItem(s, "missing", models.Location{Column: models.ColumnDone}); r.Applied {
		t.Error("unknown id should be a no-op")
	}
}

// TestApplyProperties drives random moves and checks the board invariants
// after every step.
func TestApplyProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	var items []models.Item
	for i := 0; i < 40; i++ {
		col := models.Columns[rng.Intn(len(models.Columns))]
		items = append(items, item(string(rune('a'+i%26))+string(rune('0'+i/26)), col, (rng.Intn(20)+1)*models.PositionGap))
	}
	s := Build(items)

	for step := 0; step < 500; step++ {
		src := models.Columns[rng.Intn(len(models.Columns))]
		srcSeq := s.Column(src)
		if len(srcSeq) == 0 {
			continue
		}
		dst := models.Columns[rng.Intn(len(models.Columns))]
		ev := models.MoveEvent{
			Source:      models.Location{Column: src, Index: rng.Intn(len(srcSeq))},
			Destination: dest(dst, rng.Intn(len(s.Column(dst))+1)),
		}
		movedID := srcSeq[ev.Source.Index].ID
		r := Apply(s, ev)
		if !r.Applied {
			t.Fatalf("step %d: move not applied", step)
		}

		if r.State.Len() != s.Len() {
			t.Fatalf("step %d: item count changed %d -> %d", step, s.Len(), r.State.Len())
		}

		// order preservation for same-column moves
		if src == dst {
			var before, after []string
			for _, it := range srcSeq {
				if it.ID != movedID {
					before = append(before, it.ID)
				}
			}
			for _, it := range r.State.Column(src) {
				if it.ID != movedID {
					after = append(after, it.ID)
				}
			}
			if diff := cmp.Diff(before, after); diff != "" {
				t.Fatalf("step %d: relative order changed (-want +got):\n%s", step, diff)
			}
		} else {
			// column reassignment
			for _, it := range r.State.Column(src) {
				if it.ID == movedID {
					t.Fatalf("step %d: moved item still in source column", step)
				}
			}
		}
		moved, _ := r.State.Item(movedID)
		if moved.Column != dst {
			t.Fatalf("step %d: moved item column = %s, want %s", step, moved.Column, dst)
		}

		// monotonicity
		for _, c := range r.State.Columns() {
			seq := r.State.Column(c)
			for i := 1; i < len(seq); i++ {
				if seq[i].Position < seq[i-1].Position {
					t.Fatalf("step %d: column %s not sorted: %v", step, c, positions(seq))
				}
			}
		}

		// minimal diff
		for _, it := range r.Changed {
			if it.Column != src && it.Column != dst {
				t.Fatalf("step %d: changed item %s from untouched column %s", step, it.ID, it.Column)
			}
		}
		s = r.State
	}
}

// --- BuildBatch ---

func TestBuildBatch(t *testing.T) {
	batch := BuildBatch([]models.Item{
		item("A", models.ColumnDone, 2000),
		item("Y", models.ColumnDone, 3000),
	})
	want := []models.ChangedItem{
		{ID: "A", Column: models.ColumnDone, Position: 2000},
		{ID: "Y", Column: models.ColumnDone, Position: 3000},
	}
	if diff := cmp.Diff(want, batch); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestBuildBatchEmpty(t *testing.T) {
	if got := BuildBatch(nil); got != nil {
		t.Errorf("expected nil batch, got %v", got)
	}
}

func TestBuildBatchDedupesLastWins(t *testing.T) {
	batch := BuildBatch([]models.Item{
		item("A", models.ColumnTodo, 1000),
		item("A", models.ColumnDone, 2000),
	})
	if len(batch) != 1 || batch[0].Column != models.ColumnDone {
		t.Errorf("batch = %+v", batch)
	}
}
