package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_parseFlags(t *testing.T) {
	t.Parallel()
	config, log, mode, logLevel, standalone, backend, err := parseFlags([]string{
		"-config", "my-config.json",
		"-log", "/tmp/",
		"-mode", "client",
		"-loglevel", "debug",
		"-standalone",
		"-backend", "127.0.0.1:9085",
	})

	require.NoError(t, err)
	require.Equal(t, "my-config.json", config)
	require.Equal(t, "/tmp/", log)
	require.Equal(t, "client", mode)
	require.Equal(t, "debug", logLevel)
	require.True(t, standalone)
	require.Equal(t, "127.0.0.1:9085", backend)
}

func Test_parseFlags_defaults(t *testing.T) {
	t.Parallel()
	_, log, mode, logLevel, standalone, _, err := parseFlags(nil)

	require.NoError(t, err)
	require.Empty(t, log)
	require.Equal(t, "host", mode)
	require.Equal(t, "info", logLevel)
	require.False(t, standalone)
}
