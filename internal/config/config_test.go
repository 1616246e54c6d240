package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoadDefaults(t *testing.T) {
	// An empty directory exercises the defaults-only path.
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Server.Enabled)
	assert.Equal(t, 8172, cfg.Server.Port)
	assert.Equal(t, 1000, cfg.Engine.RefreshIntervalMS)
	assert.Equal(t, "none", cfg.Engine.Output)
	assert.False(t, cfg.Engine.UseDefaults)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.MQTT.Enabled)
	assert.Empty(t, cfg.Views)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := `
[engine]
refresh_interval_ms = 2000
output = "json"
use_defaults = true

[log]
level = "debug"

[mqtt]
enabled = true
broker = "tcp://broker:1883"
topic = "syscalls"

[[views]]
name = "top-procs"
mode = "table"
filter = "evt.buflen > 0"
sort_col = 1

[[views.columns]]
field = "proc.name"
is_key = true

[[views.columns]]
field = "evt.count"
aggregation = "SUM"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "evtop.toml"), []byte(content), 0o644))
	chdir(t, dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2000, cfg.Engine.RefreshIntervalMS)
	assert.Equal(t, "json", cfg.Engine.Output)
	assert.True(t, cfg.Engine.UseDefaults)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)

	require.Len(t, cfg.Views, 1)
	view := cfg.Views[0]
	assert.Equal(t, "top-procs", view.Name)
	assert.Equal(t, "evt.buflen > 0", view.Filter)
	assert.Equal(t, 1, view.SortCol)
	require.Len(t, view.Columns, 2)
	assert.True(t, view.Columns[0].IsKey)
	assert.Equal(t, "SUM", view.Columns[1].Aggregation)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad refresh interval",
			mutate:  func(c *Config) { c.Engine.RefreshIntervalMS = 0 },
			wantErr: "refresh_interval_ms",
		},
		{
			name:    "view without name",
			mutate:  func(c *Config) { c.Views = []ViewConfig{{Columns: []ColumnConfig{{Field: "x"}}}} },
			wantErr: "missing name",
		},
		{
			name:    "view without columns",
			mutate:  func(c *Config) { c.Views = []ViewConfig{{Name: "v"}} },
			wantErr: "no columns",
		},
		{
			name: "column without field",
			mutate: func(c *Config) {
				c.Views = []ViewConfig{{Name: "v", Columns: []ColumnConfig{{}}}}
			},
			wantErr: "no field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Engine: EngineConfig{RefreshIntervalMS: 1000}}
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("EVTOP_LOG_LEVEL", "warn")
	t.Setenv("EVTOP_ENGINE_OUTPUT", "raw")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "raw", cfg.Engine.Output)
}
