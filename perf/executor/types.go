package executor

import (
	"github.com/wesleyorama2/kvlunge/internal/performance/executor"
)

// Type identifies a run strategy.
type Type = executor.Type

// Config is the strategy configuration derived from a run configuration.
type Config = executor.Config

const (
	TypeConstantWorkers     = executor.TypeConstantWorkers
	TypePerWorkerIterations = executor.TypePerWorkerIterations
	TypeSharedIterations    = executor.TypeSharedIterations
)

// Supported returns every strategy type.
func Supported() []Type {
	return executor.GetSupportedExecutors()
}

// Describe returns a one-line summary such as "4 workers for 30s".
func Describe(cfg *Config) string {
	return executor.Describe(cfg)
}
