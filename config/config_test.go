package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "nvim", cfg.Editor.Bin)
	assert.Equal(t, 30*time.Second, time.Duration(cfg.Bridge.RequestTimeout))
	assert.Equal(t, 500*time.Millisecond, time.Duration(cfg.Poll.InitialInterval))
	assert.Equal(t, "info", cfg.Log.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
workspace: /work/project
editor:
  bin: /opt/nvim/bin/nvim
bridge:
  request_timeout: 45s
poll:
  multiplier: 1.5
log:
  level: debug
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/work/project", cfg.Workspace)
	assert.Equal(t, "/opt/nvim/bin/nvim", cfg.Editor.Bin)
	assert.Equal(t, 45*time.Second, time.Duration(cfg.Bridge.RequestTimeout))
	assert.Equal(t, 1.5, cfg.Poll.Multiplier)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Untouched keys keep defaults.
	assert.Equal(t, 10*time.Second, time.Duration(cfg.Bridge.ConnectTimeout))
	assert.Equal(t, 256, cfg.Bridge.OutgoingBuffer)
}

func TestLoadInvalidDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bridge:\n  request_timeout: banana\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Poll.Multiplier = 0.5
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Bridge.RequestTimeout = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Editor.Bin = ""
	assert.Error(t, cfg.Validate())
}

func TestPollOptions(t *testing.T) {
	opts := Default().Poll.Options("lsp readiness")
	assert.Equal(t, 500*time.Millisecond, opts.Initial)
	assert.Equal(t, 2*time.Second, opts.Max)
	assert.Equal(t, "lsp readiness", opts.What)
}
