// Package rate provides the iteration pacer used by kvlunge workers.
//
// A Pacer hands out evenly spaced start times for iterations across every
// worker sharing it, so the combined iteration rate stays at the configured
// value however many workers there are.
//
//	pacer := rate.NewPacer(2000) // 2000 iterations per second
//
//	for {
//	    if err := pacer.Wait(ctx); err != nil {
//	        break // Context cancelled
//	    }
//	    // Execute iteration
//	}
//
// All methods on Pacer are safe for concurrent use from multiple goroutines.
package rate
