// Package report writes and reads run results as JSON and HTML.
package report

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/wesleyorama2/kvlunge/internal/performance/engine"
)

// MarshalJSON renders a result as indented JSON.
func MarshalJSON(result *engine.Result) ([]byte, error) {
	if result == nil {
		return nil, fmt.Errorf("result cannot be nil")
	}
	return json.MarshalIndent(result, "", "  ")
}

// SaveJSON writes a result to path.
func SaveJSON(result *engine.Result, path string) error {
	data, err := MarshalJSON(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write result file: %w", err)
	}
	return nil
}

// LoadJSON reads a result written by SaveJSON.
func LoadJSON(path string) (*engine.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read result file: %w", err)
	}
	var result engine.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse result file: %w", err)
	}
	return &result, nil
}
