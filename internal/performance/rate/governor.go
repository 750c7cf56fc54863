// Package rate provides admission control and pacing for load generation.
package rate

import (
	"errors"
	"fmt"
	"math"

	"github.com/wesleyorama2/kvlunge/internal/performance/metrics"
)

// ErrInvalidLimit is returned for a non-positive governor limit.
var ErrInvalidLimit = errors.New("rate: limit must be positive")

// Source reports the recent rate of a result kind, in events per second.
// *metrics.Recorder satisfies it.
type Source interface {
	CurrentRate(result metrics.Result) float64
}

// Governor caps the throughput of one result kind.
//
// Admission is a read of the source's windowed rate: an iteration is
// admitted while the observed rate is strictly below the limit. A rejected
// iteration is skipped, not delayed. The governor holds no mutable state,
// so concurrent Admit calls may all see the same rate and overshoot the
// limit briefly; this is inherent to the check.
//
// # Example
//
//	gov, err := rate.NewGovernor(50_000, metrics.ResultWrite, recorder)
//	if err != nil {
//	    return err
//	}
//	if gov.Gates(kind.Success()) && !gov.Admit() {
//	    return nil // throttled
//	}
type Governor struct {
	limit  float64
	result metrics.Result
	src    Source
}

// NewGovernor creates a governor admitting iterations while src reports a
// rate of result below limit.
func NewGovernor(limit float64, result metrics.Result, src Source) (*Governor, error) {
	if !(limit > 0) || math.IsInf(limit, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLimit, limit)
	}
	if !result.Valid() {
		return nil, fmt.Errorf("rate: invalid gated result %v", result)
	}
	if src == nil {
		return nil, errors.New("rate: nil rate source")
	}
	return &Governor{limit: limit, result: result, src: src}, nil
}

// Admit reports whether the gated result's current rate is below the limit.
func (g *Governor) Admit() bool {
	return g.src.CurrentRate(g.result) < g.limit
}

// Gates reports whether the governor applies to operations whose success
// is classified as result.
func (g *Governor) Gates(result metrics.Result) bool {
	return g.result == result
}

// Limit returns the configured limit in events per second.
func (g *Governor) Limit() float64 {
	return g.limit
}

// Result returns the gated result kind.
func (g *Governor) Result() metrics.Result {
	return g.result
}

// String describes the governor.
func (g *Governor) String() string {
	return fmt.Sprintf("%s < %g/s", g.result, g.limit)
}
