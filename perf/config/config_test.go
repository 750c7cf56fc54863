package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
workers: 3
duration: 2s
targets: [{ name: mem, type: memory }]
operation: get
`), "run.yaml")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, Duration(2*time.Second), cfg.Duration)

	ApplyDefaults(cfg)
	assert.Equal(t, "constant-workers", cfg.Executor)
}

func TestParseDurationString(t *testing.T) {
	d, err := ParseDurationString("90")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)
}

func TestSchema(t *testing.T) {
	assert.True(t, json.Valid(Schema()))
}
