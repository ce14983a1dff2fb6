package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ConfigGenerate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dnsbunch.toml")

	cfg, err := Load(path, "0.1.0")
	require.NoError(t, err)

	// The default file must have been written and be loadable.
	_, err = os.Stat(path)
	require.NoError(t, err)

	assert.Equal(t, "0.1.0", cfg.ServerVersion())
	assert.Equal(t, "127.0.0.1:8080", cfg.Bind)
	assert.Equal(t, []string{"8.8.8.8:53", "1.1.1.1:53"}, cfg.Upstreams)
	assert.Equal(t, 5*time.Second, cfg.QueryTimeout.Duration)
	assert.Equal(t, 120*time.Second, cfg.ReportTimeout.Duration)
	assert.Equal(t, 60*time.Second, cfg.SubsetTimeout.Duration)
	assert.Equal(t, 8, cfg.MaxConcurrency)
	assert.Equal(t, 53, cfg.QueryPort)
	assert.True(t, cfg.PingNameservers)
}

func Test_ConfigPartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dnsbunch.toml")
	require.NoError(t, os.WriteFile(path, []byte("bind = \":9000\"\nquerytimeout = \"2s\"\n"), 0o644))

	cfg, err := Load(path, "0.1.0")
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Bind)
	assert.Equal(t, 2*time.Second, cfg.QueryTimeout.Duration)

	// Unset values fall back to defaults.
	assert.Equal(t, 30*time.Second, cfg.CheckTimeout.Duration)
	assert.Equal(t, "info", cfg.LogLevel)
}

func Test_ConfigBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dnsbunch.toml")
	require.NoError(t, os.WriteFile(path, []byte("bind = [broken"), 0o644))

	_, err := Load(path, "0.1.0")
	assert.Error(t, err)
}

func Test_New(t *testing.T) {
	cfg := New()

	assert.Equal(t, 8, cfg.MaxConcurrency)
	assert.Equal(t, time.Hour, cfg.CSRFTokenTTL.Duration)
}
