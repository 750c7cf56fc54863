// Package config provides configuration parsing and validation for load runs.
package config

import (
	"time"
)

// RunConfig is the root configuration for a load run.
//
// Example YAML:
//
//	name: "cache mix"
//	workers: 4
//	duration: 30s
//	targets:
//	  - name: one
//	    type: memory
//	sequence:
//	  mode: uniform
//	  upper: 100000
//	operations:
//	  - { kind: put, weight: 0.1 }
//	  - { kind: get, weight: 0.9 }
type RunConfig struct {
	// Name of the run (for reporting)
	Name string `json:"name" yaml:"name"`

	// Description of the run (optional)
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Executor is the run strategy. Inferred from the bounds when empty:
	// iterations selects per-worker-iterations, sharedIterations selects
	// shared-iterations, otherwise constant-workers.
	Executor string `json:"executor,omitempty" yaml:"executor,omitempty" validate:"omitempty,oneof=constant-workers per-worker-iterations shared-iterations"`

	Workers          int      `json:"workers,omitempty" yaml:"workers,omitempty" validate:"gte=0"`
	Duration         Duration `json:"duration,omitempty" yaml:"duration,omitempty" validate:"gte=0"`
	Iterations       int64    `json:"iterations,omitempty" yaml:"iterations,omitempty" validate:"gte=0"`
	SharedIterations int64    `json:"sharedIterations,omitempty" yaml:"sharedIterations,omitempty" validate:"gte=0"`

	// Warmup runs the workload before measuring; its statistics are discarded.
	Warmup Duration `json:"warmup,omitempty" yaml:"warmup,omitempty" validate:"gte=0"`

	// GracefulStop bounds how long a cancelled run waits for its workers.
	GracefulStop Duration `json:"gracefulStop,omitempty" yaml:"gracefulStop,omitempty" validate:"gte=0"`

	// Seed derives every random stream of the run.
	Seed uint64 `json:"seed,omitempty" yaml:"seed,omitempty"`

	Targets  []TargetConfig  `json:"targets" yaml:"targets" validate:"required,min=1,dive"`
	Sequence SequenceConfig  `json:"sequence,omitempty" yaml:"sequence,omitempty"`
	Keys     GeneratorConfig `json:"keys,omitempty" yaml:"keys,omitempty"`
	Values   GeneratorConfig `json:"values,omitempty" yaml:"values,omitempty"`

	// Operation is performed on every iteration when Operations is empty.
	Operation  string            `json:"operation,omitempty" yaml:"operation,omitempty"`
	Operations []OperationConfig `json:"operations,omitempty" yaml:"operations,omitempty" validate:"dive"`

	BulkSize int `json:"bulkSize,omitempty" yaml:"bulkSize,omitempty" validate:"gte=0"`

	Throttle *ThrottleConfig `json:"throttle,omitempty" yaml:"throttle,omitempty"`

	// Pace spaces iteration starts over all workers, in iterations per second.
	Pace float64 `json:"pace,omitempty" yaml:"pace,omitempty" validate:"gte=0"`

	// Thresholds maps a result kind to pass/fail expressions,
	// e.g. HIT: ["p95 < 5ms"].
	Thresholds map[string][]string `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

// TargetConfig describes one store under test.
type TargetConfig struct {
	Name string `json:"name" yaml:"name" validate:"required"`
	Type string `json:"type" yaml:"type" validate:"required,oneof=memory lru redis etcd"`

	// Capacity bounds the lru store.
	Capacity int `json:"capacity,omitempty" yaml:"capacity,omitempty" validate:"gte=0"`

	// Address is the redis address or comma separated etcd endpoints.
	Address     string   `json:"address,omitempty" yaml:"address,omitempty" validate:"required_if=Type redis,required_if=Type etcd"`
	DialTimeout Duration `json:"dialTimeout,omitempty" yaml:"dialTimeout,omitempty" validate:"gte=0"`

	// Prefix namespaces every key the run writes.
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// SequenceConfig describes the key-index sequence.
type SequenceConfig struct {
	Mode   string  `json:"mode,omitempty" yaml:"mode,omitempty" validate:"omitempty,oneof=sequential uniform gaussian"`
	Origin int64   `json:"origin,omitempty" yaml:"origin,omitempty"`
	Bound  int64   `json:"bound,omitempty" yaml:"bound,omitempty"`
	Lower  int64   `json:"lower,omitempty" yaml:"lower,omitempty"`
	Upper  int64   `json:"upper,omitempty" yaml:"upper,omitempty"`
	Mean   float64 `json:"mean,omitempty" yaml:"mean,omitempty"`
	StdDev float64 `json:"stddev,omitempty" yaml:"stddev,omitempty" validate:"gte=0"`

	// Shared selects one source for all workers (default) or one per worker.
	Shared *bool `json:"shared,omitempty" yaml:"shared,omitempty"`

	OnExhausted string `json:"onExhausted,omitempty" yaml:"onExhausted,omitempty" validate:"omitempty,oneof=fail wrap"`
}

// IsShared reports whether all workers draw from one source.
func (s SequenceConfig) IsShared() bool {
	return s.Shared == nil || *s.Shared
}

// GeneratorConfig describes a key or value generator.
type GeneratorConfig struct {
	Type   string `json:"type,omitempty" yaml:"type,omitempty" validate:"omitempty,oneof=long string bytes uuid verified"`
	Length int    `json:"length,omitempty" yaml:"length,omitempty" validate:"gte=0"`
}

// OperationConfig is one entry of the operation mix.
type OperationConfig struct {
	Kind   string  `json:"kind" yaml:"kind" validate:"required"`
	Weight float64 `json:"weight" yaml:"weight" validate:"gt=0,lte=1"`
}

// ThrottleConfig caps the measured rate of one result kind.
type ThrottleConfig struct {
	Limit  float64 `json:"limit" yaml:"limit" validate:"gt=0"`
	Result string  `json:"result" yaml:"result" validate:"required"`
}

// Duration is a time.Duration that can be unmarshaled from JSON/YAML strings.
type Duration time.Duration

// GetDuration returns the duration or a default if empty.
func (d Duration) GetDuration(defaultValue time.Duration) time.Duration {
	if d == 0 {
		return defaultValue
	}
	return time.Duration(d)
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	if s == "" || s == "null" {
		*d = 0
		return nil
	}

	dur, err := ParseDurationString(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	dur, err := ParseDurationString(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// String returns the duration as a string.
func (d Duration) String() string {
	return time.Duration(d).String()
}
