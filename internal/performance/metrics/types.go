package metrics

import "time"

// Phase represents a phase of the run.
type Phase string

const (
	// PhaseInit is the phase before any worker starts.
	PhaseInit Phase = "init"

	// PhaseWarmup is the unmeasured warm-up; its statistics are discarded.
	PhaseWarmup Phase = "warmup"

	// PhaseSteady is the measured phase.
	PhaseSteady Phase = "steady"

	// PhaseDone indicates the run has completed.
	PhaseDone Phase = "done"
)

// LatencyStats summarises the attempts recorded for one target and result.
type LatencyStats struct {
	Count uint64        `json:"count"`
	Total time.Duration `json:"total"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Mean  time.Duration `json:"mean"`
	P50   time.Duration `json:"p50"`
	P90   time.Duration `json:"p90"`
	P95   time.Duration `json:"p95"`
	P99   time.Duration `json:"p99"`
}

// TargetStats holds every result recorded under one target name.
type TargetStats struct {
	Name                 string                  `json:"name"`
	Results              map[Result]LatencyStats `json:"results"`
	Operations           uint64                  `json:"operations"`
	VerificationFailures uint64                  `json:"verificationFailures"`
}

// Snapshot contains a point-in-time view of the recorder.
type Snapshot struct {
	// Targets in registration order.
	Targets []TargetStats `json:"targets"`

	// Totals sums each result over all targets.
	Totals map[Result]uint64 `json:"totals"`

	// Rates is the windowed rate of each result, in events per second.
	Rates map[Result]float64 `json:"rates"`

	TotalOperations uint64        `json:"totalOperations"`
	OpsPerSecond    float64       `json:"opsPerSecond"`
	Phase           Phase         `json:"phase"`
	Elapsed         time.Duration `json:"elapsed"`
	StartTime       time.Time     `json:"startTime"`
	Timestamp       time.Time     `json:"timestamp"`
}

// Target returns the statistics of the named target, or nil.
func (s *Snapshot) Target(name string) *TargetStats {
	for i := range s.Targets {
		if s.Targets[i].Name == name {
			return &s.Targets[i]
		}
	}
	return nil
}

// Result merges one result across every target. Percentiles are taken as
// the worst value over targets.
func (s *Snapshot) Result(r Result) LatencyStats {
	var out LatencyStats
	for _, t := range s.Targets {
		ls, ok := t.Results[r]
		if !ok || ls.Count == 0 {
			continue
		}
		if out.Count == 0 || ls.Min < out.Min {
			out.Min = ls.Min
		}
		out.Max = max(out.Max, ls.Max)
		out.P50 = max(out.P50, ls.P50)
		out.P90 = max(out.P90, ls.P90)
		out.P95 = max(out.P95, ls.P95)
		out.P99 = max(out.P99, ls.P99)
		out.Count += ls.Count
		out.Total += ls.Total
	}
	if out.Count > 0 {
		out.Mean = out.Total / time.Duration(out.Count)
	}
	return out
}

// TimeBucket captures one emitter interval.
type TimeBucket struct {
	Timestamp time.Time     `json:"timestamp"`
	Elapsed   time.Duration `json:"elapsed"`
	Phase     Phase         `json:"phase"`

	// Cumulative counts per result, over all targets.
	Totals map[Result]uint64 `json:"totals"`

	// Counts per result within this interval only.
	Interval map[Result]uint64 `json:"interval"`

	IntervalOperations uint64  `json:"intervalOperations"`
	OpsPerSecond       float64 `json:"opsPerSecond"`
}

// PhaseChange records when a phase transition occurred.
type PhaseChange struct {
	Phase      Phase     `json:"phase"`
	Timestamp  time.Time `json:"timestamp"`
	Operations uint64    `json:"operations"`
}
