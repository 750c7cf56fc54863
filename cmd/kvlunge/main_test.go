package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/kvlunge/internal/cli"
)

func runMain(t *testing.T, args ...string) int {
	t.Helper()
	var out bytes.Buffer
	cli.RootCmd.SetOut(&out)
	cli.RootCmd.SetErr(&out)
	cli.RootCmd.SetArgs(args)
	t.Cleanup(func() {
		cli.RootCmd.SetOut(nil)
		cli.RootCmd.SetErr(nil)
		cli.RootCmd.SetArgs(nil)
	})
	return Main()
}

func TestMain_ExitCodes(t *testing.T) {
	dir := t.TempDir()
	passing := filepath.Join(dir, "pass.yaml")
	require.NoError(t, os.WriteFile(passing, []byte(`
workers: 1
iterations: 10
targets: [{ name: mem, type: memory }]
operation: put
thresholds:
  WRITE: ["count == 10"]
`), 0644))
	failing := filepath.Join(dir, "fail.yaml")
	require.NoError(t, os.WriteFile(failing, []byte(`
workers: 1
iterations: 10
targets: [{ name: mem, type: memory }]
operation: get
thresholds:
  HIT: ["count > 0"]
`), 0644))

	assert.Equal(t, 0, runMain(t, "validate", passing))
	assert.Equal(t, 0, runMain(t, "run", "-q", "-c", passing))
	assert.Equal(t, 2, runMain(t, "run", "-q", "-c", failing))
	assert.Equal(t, 1, runMain(t, "validate", filepath.Join(dir, "missing.yaml")))
}
