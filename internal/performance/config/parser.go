package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/kvlunge/internal/performance/executor"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultWorkers     = 1
	DefaultSeed        = 1
	DefaultKeyLength   = 16
	DefaultValueLength = 1024
	DefaultBulkSize    = 10
	DefaultDialTimeout = 5 * time.Second
)

// LoadConfig loads a run configuration from a file.
//
// The file format is determined by extension:
//   - .yaml, .yml -> YAML
//   - .json -> JSON
//
// The document is checked against the embedded JSON schema before it is
// decoded. Defaults are not applied.
func LoadConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := ValidateSchema(data, path); err != nil {
		return nil, err
	}
	return ParseConfig(data, path)
}

// ParseConfig parses configuration data.
//
// The format is determined by the file extension in path, or defaults to YAML
// if the path is empty or has an unknown extension.
func ParseConfig(data []byte, path string) (*RunConfig, error) {
	var config RunConfig

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config (unknown format %s): %w", ext, err)
		}
	}

	return &config, nil
}

// ParseDurationString parses a duration string with support for common formats.
//
// Supported formats:
//   - Standard Go duration: "30s", "2m", "1h30m", "500ms"
//   - Seconds as integer: "30" (treated as 30 seconds)
func ParseDurationString(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}

	var seconds int
	var rest string
	if n, _ := fmt.Sscanf(s, "%d%s", &seconds, &rest); n == 1 {
		return time.Duration(seconds) * time.Second, nil
	}

	return 0, fmt.Errorf("invalid duration format: %s", s)
}

// ApplyDefaults fills in unset fields.
func ApplyDefaults(config *RunConfig) {
	if config.Workers == 0 {
		config.Workers = DefaultWorkers
	}
	if config.Seed == 0 {
		config.Seed = DefaultSeed
	}
	if config.Executor == "" {
		config.Executor = string(inferExecutor(config))
	}
	if config.BulkSize == 0 {
		config.BulkSize = DefaultBulkSize
	}

	if config.Sequence.Mode == "" {
		config.Sequence.Mode = "sequential"
	}
	if config.Sequence.OnExhausted == "" {
		config.Sequence.OnExhausted = "fail"
	}

	if config.Keys.Type == "" {
		config.Keys.Type = "long"
	}
	if config.Values.Type == "" {
		config.Values.Type = "bytes"
	}
	if config.Values.Length == 0 && config.Values.Type != "long" && config.Values.Type != "uuid" {
		config.Values.Length = DefaultValueLength
	}
	if config.Keys.Length == 0 && config.Keys.Type != "long" && config.Keys.Type != "uuid" {
		config.Keys.Length = DefaultKeyLength
	}

	for i := range config.Targets {
		t := &config.Targets[i]
		if t.Name == "" {
			t.Name = fmt.Sprintf("%s-%d", t.Type, i+1)
		}
		if t.DialTimeout == 0 && (t.Type == "redis" || t.Type == "etcd") {
			t.DialTimeout = Duration(DefaultDialTimeout)
		}
	}

	if config.Throttle != nil {
		config.Throttle.Result = strings.ToUpper(config.Throttle.Result)
	}
}

func inferExecutor(config *RunConfig) executor.Type {
	switch {
	case config.SharedIterations > 0:
		return executor.TypeSharedIterations
	case config.Iterations > 0:
		return executor.TypePerWorkerIterations
	default:
		return executor.TypeConstantWorkers
	}
}
