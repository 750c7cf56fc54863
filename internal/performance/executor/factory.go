package executor

import (
	"context"
	"fmt"
)

// NewExecutor creates a new executor of the specified type.
//
// Supported types:
//   - "constant-workers" - Fixed number of workers for a duration
//   - "per-worker-iterations" - Fixed number of iterations per worker
//   - "shared-iterations" - Fixed number of iterations split across workers
//
// Returns an uninitialized executor. Call Init() before Run().
func NewExecutor(executorType Type) (Executor, error) {
	switch executorType {
	case TypeConstantWorkers:
		return NewConstantWorkers(), nil
	case TypePerWorkerIterations:
		return NewPerWorkerIterations(), nil
	case TypeSharedIterations:
		return NewSharedIterations(), nil
	default:
		return nil, fmt.Errorf("unknown executor type: %s", executorType)
	}
}

// CreateAndInitExecutor creates and initializes an executor with the given config.
func CreateAndInitExecutor(ctx context.Context, cfg *Config) (Executor, error) {
	exec, err := NewExecutor(cfg.Type)
	if err != nil {
		return nil, err
	}

	if err := exec.Init(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize executor: %w", err)
	}

	return exec, nil
}

// IsValidExecutorType returns true if the type is a valid executor type.
func IsValidExecutorType(executorType string) bool {
	switch Type(executorType) {
	case TypeConstantWorkers, TypePerWorkerIterations, TypeSharedIterations:
		return true
	default:
		return false
	}
}

// GetSupportedExecutors returns a list of all supported executor types.
func GetSupportedExecutors() []Type {
	return []Type{
		TypeConstantWorkers,
		TypePerWorkerIterations,
		TypeSharedIterations,
	}
}

// Describe returns a one-line summary of cfg.
func Describe(cfg *Config) string {
	switch cfg.Type {
	case TypeConstantWorkers:
		return fmt.Sprintf("%d workers for %v", cfg.Workers, cfg.Duration)
	case TypePerWorkerIterations:
		return fmt.Sprintf("%d workers × %d iterations", cfg.Workers, cfg.Iterations)
	case TypeSharedIterations:
		return fmt.Sprintf("%d iterations shared by %d workers", cfg.Iterations, cfg.Workers)
	default:
		return string(cfg.Type)
	}
}
