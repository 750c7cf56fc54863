package metrics

import (
	"github.com/wesleyorama2/kvlunge/internal/performance/metrics"
)

type (
	Result       = metrics.Result
	Phase        = metrics.Phase
	LatencyStats = metrics.LatencyStats
	TargetStats  = metrics.TargetStats
	Snapshot     = metrics.Snapshot
	TimeBucket   = metrics.TimeBucket
	PhaseChange  = metrics.PhaseChange
)

// Results.
const (
	ResultHit       = metrics.ResultHit
	ResultMiss      = metrics.ResultMiss
	ResultWrite     = metrics.ResultWrite
	ResultRemove    = metrics.ResultRemove
	ResultException = metrics.ResultException
)

// Phases.
const (
	PhaseInit   = metrics.PhaseInit
	PhaseWarmup = metrics.PhaseWarmup
	PhaseSteady = metrics.PhaseSteady
	PhaseDone   = metrics.PhaseDone
)

// AllResults returns every result in display order.
func AllResults() []Result {
	return metrics.AllResults()
}

// ParseResult parses a result name such as "HIT" or "hit".
func ParseResult(s string) (Result, error) {
	return metrics.ParseResult(s)
}
