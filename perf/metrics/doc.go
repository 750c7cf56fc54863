// Package metrics exposes the measurements of a kvlunge run.
//
// Every store operation attempt is classified as one Result (HIT, MISS,
// WRITE, REMOVE or EXCEPTION) and recorded per target into HDR histograms.
// A Snapshot holds the per-target latency statistics; the time series
// holds one TimeBucket per interval with the count of each result.
//
//	snap := result.Metrics
//	hits := snap.Result(metrics.ResultHit)
//	fmt.Printf("%d hits, p95 %v\n", hits.Count, hits.P95)
//	for _, ts := range snap.Targets {
//	    fmt.Printf("%s: %d operations\n", ts.Name, ts.Operations)
//	}
package metrics
