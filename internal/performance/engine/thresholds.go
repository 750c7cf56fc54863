package engine

import (
	"fmt"

	"github.com/wesleyorama2/kvlunge/internal/performance/config"
	"github.com/wesleyorama2/kvlunge/internal/performance/metrics"
)

// ThresholdResult contains the result of a threshold evaluation.
type ThresholdResult struct {
	Result     string `json:"result"`
	Expression string `json:"expression"`
	Passed     bool   `json:"passed"`
	Value      string `json:"value"`
	Message    string `json:"message,omitempty"`
}

// evaluateThresholds checks every threshold against the snapshot. A
// result's statistics are merged over all targets.
func evaluateThresholds(thresholds []config.ResultThreshold, snap *metrics.Snapshot) []ThresholdResult {
	if len(thresholds) == 0 {
		return nil
	}

	results := make([]ThresholdResult, 0, len(thresholds))
	for _, th := range thresholds {
		actual := statValue(th, snap)
		tr := ThresholdResult{
			Result:     th.Result.String(),
			Expression: th.Expression,
			Value:      th.FormatValue(actual),
			Passed:     th.Compare(actual),
		}
		if !tr.Passed {
			tr.Message = fmt.Sprintf("%s %s is %s, threshold: %s %s",
				th.Result, th.Stat, tr.Value, th.Op, th.FormatValue(th.Value))
		}
		results = append(results, tr)
	}
	return results
}

// statValue extracts the statistic; latencies are in nanoseconds and rate
// is the average over the measured phase.
func statValue(th config.ResultThreshold, snap *metrics.Snapshot) float64 {
	ls := snap.Result(th.Result)
	switch th.Stat {
	case config.StatCount:
		return float64(ls.Count)
	case config.StatRate:
		if snap.Elapsed <= 0 {
			return 0
		}
		return float64(ls.Count) / snap.Elapsed.Seconds()
	case config.StatMean:
		return float64(ls.Mean)
	case config.StatP50:
		return float64(ls.P50)
	case config.StatP90:
		return float64(ls.P90)
	case config.StatP95:
		return float64(ls.P95)
	case config.StatP99:
		return float64(ls.P99)
	case config.StatMax:
		return float64(ls.Max)
	default:
		return 0
	}
}
