package board

import (
	"slices"

	"github.com/marcus/kb/internal/models"
)

// Result is the outcome of applying one move.
type Result struct {
	State State
	// Changed holds the post-move copies of every item whose column or
	// position differs from before the move.
	Changed []models.Item
	// Applied is false when the move was cancelled or stale and State is the
	// unchanged input.
	Applied bool
}

// Apply moves one item and recomputes positions in the affected columns.
// It never fails: cancelled drops, unknown columns, stale indices, and
// overfull columns all return the input state unchanged.
func Apply(s State, ev models.MoveEvent) Result {
	noop := Result{State: s}
	if ev.Destination == nil {
		return noop
	}
	dest := *ev.Destination

	src, ok := s.columns[ev.Source.Column]
	if !ok || ev.Source.Index < 0 || ev.Source.Index >= len(src) {
		return noop
	}
	// columns kept from fetched data are shown but never accept drops
	if !dest.Column.IsValid() {
		return noop
	}

	moved := src[ev.Source.Index]
	remaining := slices.Delete(slices.Clone(src), ev.Source.Index, ev.Source.Index+1)
	crossColumn := ev.Source.Column != dest.Column

	var target []models.Item
	if crossColumn {
		moved.Column = dest.Column
		target = slices.Clone(s.columns[dest.Column])
	} else {
		target = remaining
	}
	idx := min(max(dest.Index, 0), len(target))
	target = slices.Insert(target, idx, moved)

	newDest, err := Reposition(target)
	if err != nil {
		return noop
	}

	replace := map[models.ColumnKey][]models.Item{dest.Column: newDest}
	// moved is always reported since its column may have changed
	changed := append([]models.Item{newDest[idx]}, diffColumn(s.columns[dest.Column], newDest, moved.ID)...)

	if crossColumn {
		newSrc, err := Reposition(remaining)
		if err != nil {
			return noop
		}
		replace[ev.Source.Column] = newSrc
		changed = append(changed, diffColumn(src, newSrc, moved.ID)...)
	}

	return Result{State: s.with(replace), Changed: changed, Applied: true}
}

// MoveItem moves the item with the given id to dest, resolving its current
// slot first. Unknown ids are a no-op.
func MoveItem(s State, id string, dest models.Location) Result {
	loc, ok := s.Locate(id)
	if !ok {
		return Result{State: s}
	}
	return Apply(s, models.MoveEvent{Source: loc, Destination: &dest})
}

// diffColumn returns items of after whose position differs from the same id
// in before, skipping the moved item.
func diffColumn(before, after []models.Item, movedID string) []models.Item {
	prev := make(map[string]int, len(before))
	for _, it := range before {
		prev[it.ID] = it.Position
	}
	var out []models.Item
	for _, it := range after {
		if it.ID == movedID {
			continue
		}
		if p, ok := prev[it.ID]; !ok || p != it.Position {
			out = append(out, it)
		}
	}
	return out
}
