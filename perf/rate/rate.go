package rate

import (
	"github.com/wesleyorama2/kvlunge/internal/performance/rate"
)

// Pacer spaces iteration starts at a fixed rate.
type Pacer = rate.Pacer

// NewPacer creates a pacer for ratePerSec iterations per second.
func NewPacer(ratePerSec float64) *Pacer {
	return rate.NewPacer(ratePerSec)
}
