package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "kvlunge"

// Collector exposes a Recorder as Prometheus metrics. Values are read from
// the recorder at scrape time.
type Collector struct {
	rec *Recorder

	operations  *prometheus.Desc
	latencySum  *prometheus.Desc
	currentRate *prometheus.Desc
	verifyFails *prometheus.Desc
}

// NewCollector creates a collector over rec.
func NewCollector(rec *Recorder) *Collector {
	return &Collector{
		rec: rec,
		operations: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "operations_total"),
			"Store operations by target and result.",
			[]string{"target", "result"}, nil,
		),
		latencySum: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "operation_latency_seconds_sum"),
			"Cumulative store operation latency by target and result.",
			[]string{"target", "result"}, nil,
		),
		currentRate: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "current_rate"),
			"Windowed rate of each result over all targets, per second.",
			[]string{"result"}, nil,
		),
		verifyFails: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "verification_failures_total"),
			"Reads whose value failed verification.",
			[]string{"target"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.operations
	ch <- c.latencySum
	ch <- c.currentRate
	ch <- c.verifyFails
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, name := range c.rec.Targets() {
		tc := c.rec.lookup(name)
		if tc == nil {
			continue
		}
		for res, cell := range tc.cells {
			count, total := cell.totals()
			label := Result(res).String()
			ch <- prometheus.MustNewConstMetric(c.operations, prometheus.CounterValue, float64(count), name, label)
			ch <- prometheus.MustNewConstMetric(c.latencySum, prometheus.CounterValue, total.Seconds(), name, label)
		}
		ch <- prometheus.MustNewConstMetric(c.verifyFails, prometheus.CounterValue, float64(tc.verifyFailures.Load()), name)
	}
	for _, res := range AllResults() {
		ch <- prometheus.MustNewConstMetric(c.currentRate, prometheus.GaugeValue, c.rec.CurrentRate(res), res.String())
	}
}
