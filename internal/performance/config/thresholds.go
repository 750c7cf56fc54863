package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wesleyorama2/kvlunge/internal/performance/metrics"
)

// Threshold statistics. Latency statistics take duration values
// ("5ms"); count and rate take plain numbers.
const (
	StatCount = "count"
	StatRate  = "rate"
	StatMean  = "mean"
	StatP50   = "p50"
	StatP90   = "p90"
	StatP95   = "p95"
	StatP99   = "p99"
	StatMax   = "max"
)

var thresholdPattern = regexp.MustCompile(`^(\w+)\s*(<=|>=|==|!=|<|>)\s*(.+)$`)

// Threshold is a parsed pass/fail expression such as "p95 < 5ms".
type Threshold struct {
	Expression string
	Stat       string
	Op         string

	// Value is nanoseconds for latency statistics.
	Value float64
}

// ResultThreshold binds a threshold to the result kind it applies to.
type ResultThreshold struct {
	Result metrics.Result
	Threshold
}

// IsLatency reports whether the statistic is a latency.
func (t Threshold) IsLatency() bool {
	switch t.Stat {
	case StatMean, StatP50, StatP90, StatP95, StatP99, StatMax:
		return true
	}
	return false
}

// Compare applies the operator to actual.
func (t Threshold) Compare(actual float64) bool {
	switch t.Op {
	case "<":
		return actual < t.Value
	case "<=":
		return actual <= t.Value
	case ">":
		return actual > t.Value
	case ">=":
		return actual >= t.Value
	case "==":
		return actual == t.Value
	case "!=":
		return actual != t.Value
	default:
		return false
	}
}

// FormatValue renders v in the statistic's unit.
func (t Threshold) FormatValue(v float64) string {
	if t.IsLatency() {
		return time.Duration(v).String()
	}
	if t.Stat == StatCount {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// ParseThreshold parses an expression like "p95 < 5ms" or "count == 0".
func ParseThreshold(expr string) (Threshold, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Threshold{}, fmt.Errorf("threshold expression cannot be empty")
	}

	m := thresholdPattern.FindStringSubmatch(expr)
	if m == nil {
		return Threshold{}, fmt.Errorf("invalid threshold %q: want '<stat> <op> <value>'", expr)
	}

	t := Threshold{Expression: expr, Stat: strings.ToLower(m[1]), Op: m[2]}
	raw := strings.TrimSpace(m[3])

	switch t.Stat {
	case StatCount, StatRate:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Threshold{}, fmt.Errorf("invalid %s value %q: %w", t.Stat, raw, err)
		}
		t.Value = v
	case StatMean, StatP50, StatP90, StatP95, StatP99, StatMax:
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Threshold{}, fmt.Errorf("invalid %s duration %q: %w", t.Stat, raw, err)
		}
		t.Value = float64(d)
	default:
		return Threshold{}, fmt.Errorf("unknown statistic %q (want count, rate, mean, p50, p90, p95, p99 or max)", m[1])
	}
	return t, nil
}
