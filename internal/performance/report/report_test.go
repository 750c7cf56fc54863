package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/kvlunge/internal/performance/engine"
	"github.com/wesleyorama2/kvlunge/internal/performance/metrics"
)

func sampleResult() *engine.Result {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &engine.Result{
		Name:        "cache <mix>",
		Description: "90/10 read/write",
		Executor:    "4 workers for 30s",
		Workload:    "ops[put=0.1 get=0.9]",
		StartTime:   start,
		EndTime:     start.Add(30 * time.Second),
		Duration:    30 * time.Second,
		Iterations:  12345,
		Throttled:   12,
		Metrics: &metrics.Snapshot{
			TotalOperations: 12333,
			OpsPerSecond:    411.1,
			Totals: map[metrics.Result]uint64{
				metrics.ResultHit:   11000,
				metrics.ResultWrite: 1333,
			},
			Targets: []metrics.TargetStats{{
				Name: "local",
				Results: map[metrics.Result]metrics.LatencyStats{
					metrics.ResultHit:   {Count: 11000, Mean: 120 * time.Microsecond, P95: 2500 * time.Microsecond},
					metrics.ResultWrite: {Count: 1333, Mean: 200 * time.Microsecond},
					metrics.ResultMiss:  {},
				},
				Operations:           12333,
				VerificationFailures: 3,
			}},
		},
		TimeSeries: []*metrics.TimeBucket{
			{Elapsed: time.Second, Phase: metrics.PhaseSteady, OpsPerSecond: 400, Interval: map[metrics.Result]uint64{metrics.ResultHit: 360}},
		},
		Passed: false,
		Thresholds: []engine.ThresholdResult{
			{Result: "HIT", Expression: "p95 < 2ms", Value: "2.5ms", Passed: false},
		},
		WorkerErrors: []string{"worker 3: next index: sequence: exhausted"},
	}
}

func TestJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.json")
	want := sampleResult()

	require.NoError(t, SaveJSON(want, path))
	got, err := LoadJSON(path)
	require.NoError(t, err)

	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.Iterations, got.Iterations)
	assert.Equal(t, want.Metrics.Totals, got.Metrics.Totals)
	assert.Equal(t, want.Metrics.Targets[0].Results[metrics.ResultHit], got.Metrics.Targets[0].Results[metrics.ResultHit])
	assert.Equal(t, want.Thresholds, got.Thresholds)

	_, err = MarshalJSON(nil)
	assert.Error(t, err)
	_, err = LoadJSON(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestQuery(t *testing.T) {
	data, err := MarshalJSON(sampleResult())
	require.NoError(t, err)

	tests := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{"$.name", "cache <mix>", false},
		{"iterations", "12345", false},
		{"$.metrics.targets[0].name", "local", false},
		{"$.metrics.targets[0].results.HIT.count", "11000", false},
		{"$['metrics']['totals']['WRITE']", "1333", false},
		{"$.thresholds[0].passed", "false", false},
		{"$.metrics.targets[3].name", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := Query(data, tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err = Query([]byte("{"), "$.name")
	assert.Error(t, err)
}

func TestQueryMultiple(t *testing.T) {
	data, err := MarshalJSON(sampleResult())
	require.NoError(t, err)

	got, err := QueryMultiple(data, map[string]string{
		"name":    "$.name",
		"missing": "$.nope",
	})
	assert.Error(t, err)
	assert.Equal(t, map[string]string{"name": "cache <mix>"}, got)

	_, err = QueryMultiple(data, nil)
	assert.Error(t, err)
}

func TestToGjsonPath(t *testing.T) {
	tests := map[string]string{
		"$":                    "@this",
		"$.a.b":                "a.b",
		"$.a[0].b":             "a.0.b",
		"$['a']['b']":          "a.b",
		`$["a"][1]`:            "a.1",
		"$[2].name":            "2.name",
		"metrics.totals.WRITE": "metrics.totals.WRITE",
	}
	for in, want := range tests {
		assert.Equal(t, want, toGjsonPath(in), in)
	}
}

func TestGenerateHTMLString(t *testing.T) {
	html, err := GenerateHTMLString(sampleResult())
	require.NoError(t, err)

	for _, want := range []string{
		"cache &lt;mix&gt;",
		"FAILED",
		"4 workers for 30s",
		"Target local",
		"11,000",
		"2.50ms",
		"3 values failed verification",
		"p95 &lt; 2ms",
		"exhausted",
		`"opsPerSecond":400`,
	} {
		assert.Contains(t, html, want)
	}
	assert.NotContains(t, html, "<td>MISS</td>", "results with no attempts are omitted")

	_, err = GenerateHTMLString(nil)
	assert.Error(t, err)
}

func TestGenerateHTML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.html")
	require.NoError(t, GenerateHTML(sampleResult(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "<!DOCTYPE html>"))
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "1,234,567", formatNumber(1234567))
	assert.Equal(t, "999", formatNumber(999))
	assert.Equal(t, "0", formatLatency(0))
	assert.Equal(t, "12.0µs", formatLatency(12*time.Microsecond))
	assert.Equal(t, "1.50ms", formatLatency(1500*time.Microsecond))
	assert.Equal(t, "2m 5s", formatDuration(125*time.Second))
	assert.Equal(t, "1h", formatDuration(time.Hour))
}
