// Package metrics classifies store operation outcomes and aggregates them
// per target.
//
// The Recorder keeps, for every (target, result) pair, a count, the
// cumulative latency and an HDR latency histogram, and for every result a
// sliding one-second rate window used for admission control:
//
//	rec := metrics.NewRecorder()
//	defer rec.Stop()
//
//	res := rec.Measure("primary", func() (metrics.Result, error) {
//	    _, found, err := st.Get(ctx, key)
//	    if err != nil {
//	        return metrics.ResultException, err
//	    }
//	    if !found {
//	        return metrics.ResultMiss, nil
//	    }
//	    return metrics.ResultHit, nil
//	})
//
// Collector exposes the same statistics to Prometheus.
package metrics
