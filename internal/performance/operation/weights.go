package operation

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// WeightTolerance is how far the weights may sum from one.
const WeightTolerance = 1e-6

// ErrInvalidWeights is returned for a weight table that does not partition
// [0, 1).
var ErrInvalidWeights = errors.New("operation: invalid weights")

// Weighted pairs a kind with its share of iterations.
type Weighted struct {
	Kind   Kind
	Weight float64
}

// Entry is one bucket of a WeightTable, covering [Lower, Upper).
type Entry struct {
	Lower float64
	Upper float64
	Kind  Kind
}

// WeightTable maps a draw in [0, 1) to an operation kind. Buckets are
// contiguous and in the order given.
type WeightTable struct {
	entries []Entry
}

// NewWeightTable builds a table from weights that each lie in (0, 1] and
// sum to one within WeightTolerance. Kinds may not repeat.
func NewWeightTable(weights ...Weighted) (*WeightTable, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("%w: no operations", ErrInvalidWeights)
	}

	seen := make(map[Kind]bool, len(weights))
	entries := make([]Entry, 0, len(weights))
	var sum float64
	for _, w := range weights {
		if !w.Kind.Valid() {
			return nil, fmt.Errorf("%w: invalid kind %v", ErrInvalidWeights, w.Kind)
		}
		if seen[w.Kind] {
			return nil, fmt.Errorf("%w: %s listed twice", ErrInvalidWeights, w.Kind)
		}
		seen[w.Kind] = true
		if math.IsNaN(w.Weight) || w.Weight <= 0 || w.Weight > 1 {
			return nil, fmt.Errorf("%w: %s weight %v outside (0, 1]", ErrInvalidWeights, w.Kind, w.Weight)
		}
		entries = append(entries, Entry{Lower: sum, Upper: sum + w.Weight, Kind: w.Kind})
		sum += w.Weight
	}
	if math.Abs(sum-1) > WeightTolerance {
		return nil, fmt.Errorf("%w: weights sum to %v, want 1", ErrInvalidWeights, sum)
	}
	entries[len(entries)-1].Upper = 1

	return &WeightTable{entries: entries}, nil
}

// Select returns the kind whose bucket contains draw. Draws below zero
// select the first bucket and draws at or above one the last.
func (t *WeightTable) Select(draw float64) Kind {
	n := len(t.entries)
	i := sort.Search(n, func(i int) bool { return draw < t.entries[i].Upper })
	if i == n {
		i = n - 1
	}
	return t.entries[i].Kind
}

// Entries returns a copy of the table's buckets.
func (t *WeightTable) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Description lists each kind with its weight.
func (t *WeightTable) Description() string {
	parts := make([]string, len(t.entries))
	for i, e := range t.entries {
		parts[i] = fmt.Sprintf("%s=%.4g", e.Kind, e.Upper-e.Lower)
	}
	return strings.Join(parts, " ")
}
