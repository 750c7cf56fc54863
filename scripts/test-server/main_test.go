package main

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsLine(t *testing.T) {
	srv := miniredis.RunT(t)
	require.NoError(t, srv.Set("a", "1"))
	require.NoError(t, srv.Set("b", "2"))

	assert.Equal(t, "keys=2 commands=0 clients=0", statsLine(srv))
}
