package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "eval.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.NumWorkers)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
# subsets 8 and 9
data_roots:
  - /data/luna16/subset8
  - /data/luna16/subset9
pending_cap: 64
batch_size: 32
threshold: 0.7
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"/data/luna16/subset8", "/data/luna16/subset9"}, cfg.DataRoots)
	assert.Equal(t, 64, cfg.PendingCap)
	assert.Equal(t, 32, cfg.BatchSize)
	assert.Equal(t, 0.7, cfg.Threshold)
	assert.Equal(t, DefaultBackend, cfg.Backend)
	assert.Equal(t, int64(DefaultSeed), cfg.Seed)
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	path := writeConfig(t, "learning_rate: 0.1\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyOverridesWins(t *testing.T) {
	cfg := Default()
	device := 0
	threshold := 0.0
	cfg.Device = 3
	cfg.ApplyOverrides(Overrides{
		Backend:   "gpu",
		Device:    &device,
		BatchSize: 64,
		Threshold: &threshold,
		ModelPath: "other.json",
		Shuffle:   true,
		DataRoots: []string{"/a", "/b"},
	})
	assert.Equal(t, "gpu", cfg.Backend)
	assert.Equal(t, 0, cfg.Device)
	assert.Equal(t, 64, cfg.BatchSize)
	assert.Equal(t, 0.0, cfg.Threshold)
	assert.Equal(t, "other.json", cfg.ModelPath)
	assert.True(t, cfg.Shuffle)
	assert.Equal(t, []string{"/a", "/b"}, cfg.DataRoots)
	assert.Equal(t, DefaultPendingCap, cfg.PendingCap)

	cfg.ApplyOverrides(Overrides{PendingCap: 8})
	assert.Equal(t, 8, cfg.PendingCap)
	assert.Equal(t, []string{"/a", "/b"}, cfg.DataRoots)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"batch size", func(c *Config) { c.BatchSize = 0 }},
		{"negative device", func(c *Config) { c.Device = -1 }},
		{"threshold one", func(c *Config) { c.Threshold = 1 }},
		{"negative threshold", func(c *Config) { c.Threshold = -0.1 }},
		{"no data", func(c *Config) { c.DataRoots = nil }},
		{"empty data root", func(c *Config) { c.DataRoots = []string{"/a", ""} }},
		{"duplicate data root", func(c *Config) { c.DataRoots = []string{"/a", "/a"} }},
		{"negative pending cap", func(c *Config) { c.PendingCap = -1 }},
		{"no model", func(c *Config) { c.ModelPath = "" }},
		{"no backend", func(c *Config) { c.Backend = "" }},
		{"negative max samples", func(c *Config) { c.MaxSamples = -2 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	var nilCfg *Config
	assert.Error(t, nilCfg.Validate())
}
