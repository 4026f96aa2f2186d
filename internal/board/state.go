// Package board holds the grouped-and-ordered board state and the pure
// transitions over it: position allocation, moves, and batch building.
package board

import (
	"slices"
	"sort"

	"github.com/marcus/kb/internal/models"
)

// State maps each column to its items in ascending position order.
// A State is never mutated after construction; transitions return a new State
// that shares untouched column slices with its predecessor.
type State struct {
	columns map[models.ColumnKey][]models.Item
}

// Build groups a flat collection into columns and sorts each column by
// position. Every known column is present, even when empty. Items with an
// unknown column get their own sequence rather than being dropped. Ties keep
// input order, so any input yields a deterministic State.
func Build(items []models.Item) State {
	cols := make(map[models.ColumnKey][]models.Item, len(models.Columns))
	for _, c := range models.Columns {
		cols[c] = []models.Item{}
	}
	for _, it := range items {
		cols[it.Column] = append(cols[it.Column], it)
	}
	for c, seq := range cols {
		sort.SliceStable(seq, func(i, j int) bool {
			return seq[i].Position < seq[j].Position
		})
		cols[c] = seq
	}
	return State{columns: cols}
}

// Columns returns the column keys in display order: known columns first,
// then any unknown keys alphabetically.
func (s State) Columns() []models.ColumnKey {
	keys := make([]models.ColumnKey, 0, len(s.columns))
	for c := range s.columns {
		keys = append(keys, c)
	}
	sort.Slice(keys, func(i, j int) bool {
		di, dj := keys[i].DisplayIndex(), keys[j].DisplayIndex()
		if di != dj {
			return di < dj
		}
		return keys[i] < keys[j]
	})
	return keys
}

// Column returns a copy of the items in column c.
func (s State) Column(c models.ColumnKey) []models.Item {
	return slices.Clone(s.columns[c])
}

// HasColumn reports whether the board shows column c, including unknown
// columns kept from fetched items.
func (s State) HasColumn(c models.ColumnKey) bool {
	_, ok := s.columns[c]
	return ok
}

// Len returns the total number of items on the board.
func (s State) Len() int {
	n := 0
	for _, seq := range s.columns {
		n += len(seq)
	}
	return n
}

// Items returns every item flattened in display order.
func (s State) Items() []models.Item {
	out := make([]models.Item, 0, s.Len())
	for _, c := range s.Columns() {
		out = append(out, s.columns[c]...)
	}
	return out
}

// Locate finds the current slot of the item with the given id.
func (s State) Locate(id string) (models.Location, bool) {
	for c, seq := range s.columns {
		for i, it := range seq {
			if it.ID == id {
				return models.Location{Column: c, Index: i}, true
			}
		}
	}
	return models.Location{}, false
}

// Item returns the item with the given id.
func (s State) Item(id string) (models.Item, bool) {
	loc, ok := s.Locate(id)
	if !ok {
		return models.Item{}, false
	}
	return s.columns[loc.Column][loc.Index], true
}

// Equal reports whether both states hold the same columns with identical
// items in identical order.
func (s State) Equal(o State) bool {
	if len(s.columns) != len(o.columns) {
		return false
	}
	for c, seq := range s.columns {
		other, ok := o.columns[c]
		if !ok || !slices.Equal(seq, other) {
			return false
		}
	}
	return true
}

// with returns a copy of s with the given columns replaced.
func (s State) with(replace map[models.ColumnKey][]models.Item) State {
	cols := make(map[models.ColumnKey][]models.Item, len(s.columns))
	for c, seq := range s.columns {
		cols[c] = seq
	}
	for c, seq := range replace {
		cols[c] = seq
	}
	return State{columns: cols}
}
