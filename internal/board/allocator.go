package board

import (
	"errors"
	"slices"

	"github.com/marcus/kb/internal/models"
)

// ErrColumnFull is returned when a column holds more items than there are
// distinct positions in [MinPosition, MaxPosition].
var ErrColumnFull = errors.New("column has no room for distinct positions")

// Positions computes sort keys for a column of n items.
// Slot i gets min((i+1)*PositionGap, MaxPosition). If that leaves two adjacent
// slots equal (the column outgrew MaxPosition/PositionGap), the whole column
// is renumbered with the widest uniform gap that still fits.
func Positions(n int) ([]int, error) {
	ps := make([]int, n)
	for i := range ps {
		ps[i] = min((i+1)*models.PositionGap, models.MaxPosition)
	}
	if strictlyIncreasing(ps) {
		return ps, nil
	}
	return respace(n)
}

// respace spreads n positions evenly across the allowed range.
func respace(n int) ([]int, error) {
	span := models.MaxPosition - models.MinPosition
	if n-1 > span {
		return nil, ErrColumnFull
	}
	step := span / (n - 1)
	ps := make([]int, n)
	for i := range ps {
		ps[i] = models.MinPosition + i*step
	}
	return ps, nil
}

func strictlyIncreasing(ps []int) bool {
	for i := 1; i < len(ps); i++ {
		if ps[i] <= ps[i-1] {
			return false
		}
	}
	return true
}

// Reposition returns a copy of seq with positions reassigned by slot.
func Reposition(seq []models.Item) ([]models.Item, error) {
	ps, err := Positions(len(seq))
	if err != nil {
		return nil, err
	}
	out := slices.Clone(seq)
	for i := range out {
		out[i].Position = ps[i]
	}
	return out, nil
}
