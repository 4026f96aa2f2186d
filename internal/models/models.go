package models

import (
	"fmt"
	"time"
)

// ColumnKey identifies the workflow column an item sits in
type ColumnKey string

const (
	ColumnBacklog    ColumnKey = "backlog"
	ColumnTodo       ColumnKey = "todo"
	ColumnInProgress ColumnKey = "in_progress"
	ColumnInReview   ColumnKey = "in_review"
	ColumnDone       ColumnKey = "done"
)

// Columns lists the known columns in display order.
var Columns = []ColumnKey{
	ColumnBacklog,
	ColumnTodo,
	ColumnInProgress,
	ColumnInReview,
	ColumnDone,
}

// IsValid reports whether c is one of the known columns.
func (c ColumnKey) IsValid() bool {
	for _, k := range Columns {
		if c == k {
			return true
		}
	}
	return false
}

// DisplayIndex returns the column's display slot, or len(Columns) for unknown keys.
func (c ColumnKey) DisplayIndex() int {
	for i, k := range Columns {
		if c == k {
			return i
		}
	}
	return len(Columns)
}

// ParseColumn normalizes user input ("In-Progress", "in progress") to a ColumnKey.
func ParseColumn(s string) (ColumnKey, error) {
	b := []byte(s)
	for i, ch := range b {
		switch {
		case ch >= 'A' && ch <= 'Z':
			b[i] = ch + ('a' - 'A')
		case ch == '-' || ch == ' ':
			b[i] = '_'
		}
	}
	c := ColumnKey(b)
	if !c.IsValid() {
		return "", fmt.Errorf("unknown column %q", s)
	}
	return c, nil
}

// Position bounds. Positions are sparse sort keys within one column.
const (
	PositionGap = 1000
	MinPosition = 1000
	MaxPosition = 1_000_000
)

// PositionInRange reports whether p is a persistable position.
func PositionInRange(p int) bool {
	return p >= MinPosition && p <= MaxPosition
}

// Item is a single card on the board. Title and Description are payload and
// play no part in ordering.
type Item struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id,omitempty"`
	Column      ColumnKey `json:"column"`
	Position    int       `json:"position"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
	UpdatedAt   time.Time `json:"updated_at,omitzero"`
}

// Location addresses a slot in a column.
type Location struct {
	Column ColumnKey `json:"column"`
	Index  int       `json:"index"`
}

// MoveEvent is a single drag result. A nil Destination means the drag was
// cancelled or dropped outside any column.
type MoveEvent struct {
	Source      Location  `json:"source"`
	Destination *Location `json:"destination,omitempty"`
}

// ChangedItem is the minimal triple persisted for one item after a move.
type ChangedItem struct {
	ID       string    `json:"id"`
	Column   ColumnKey `json:"column"`
	Position int       `json:"position"`
}
