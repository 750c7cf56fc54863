package config

import (
	"time"

	"github.com/wesleyorama2/kvlunge/internal/performance/config"
)

// Configuration types. See the field documentation of each for the
// accepted values.
type (
	RunConfig       = config.RunConfig
	TargetConfig    = config.TargetConfig
	SequenceConfig  = config.SequenceConfig
	GeneratorConfig = config.GeneratorConfig
	OperationConfig = config.OperationConfig
	ThrottleConfig  = config.ThrottleConfig
	Duration        = config.Duration
)

// LoadConfig loads a run configuration from a .yaml, .yml or .json file.
func LoadConfig(path string) (*RunConfig, error) {
	return config.LoadConfig(path)
}

// ParseConfig parses configuration data; path only selects the format.
func ParseConfig(data []byte, path string) (*RunConfig, error) {
	return config.ParseConfig(data, path)
}

// ParseDurationString parses "30s" style durations and bare seconds.
func ParseDurationString(s string) (time.Duration, error) {
	return config.ParseDurationString(s)
}

// ApplyDefaults fills in unset fields.
func ApplyDefaults(cfg *RunConfig) {
	config.ApplyDefaults(cfg)
}

// Schema returns the JSON schema configuration files are checked against.
func Schema() []byte {
	return config.Schema()
}
