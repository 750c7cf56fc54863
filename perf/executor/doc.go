// Package executor names the run strategies of kvlunge.
//
//   - constant-workers: a fixed number of workers for a duration
//   - per-worker-iterations: every worker runs a fixed number of iterations
//   - shared-iterations: workers share one iteration budget
//
// A run configuration selects the strategy with its executor field, or
// leaves it to be inferred from whichever bound is set.
package executor
