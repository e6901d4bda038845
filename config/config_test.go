package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"

	"github.com/wippyai/motor-rt/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "motor.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, zapcore.InfoLevel, cfg.LogLevel())
	assert.Equal(t, rate.Inf, cfg.KlogLimit())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
[runtime]
name = "shell"
ticks_per_second = 1000

[fs]
root = "/srv/sandbox"

[klog]
level = "debug"
rate_per_second = 50.0
burst = 10

[metrics]
addr = ":9102"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "shell", cfg.Runtime.Name)
	assert.Equal(t, uint64(1000), cfg.Runtime.TicksPerSecond)
	assert.Equal(t, 4096, cfg.Runtime.StdoutBuffer, "unset keys keep defaults")
	assert.Equal(t, "/srv/sandbox", cfg.FS.Root)
	assert.Equal(t, zapcore.DebugLevel, cfg.KlogLevel())
	assert.Equal(t, rate.Limit(50), cfg.KlogLimit())
	assert.Equal(t, 10, cfg.Klog.Burst)
	assert.Equal(t, ":9102", cfg.Metrics.Addr)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[fs]
root = "/from/file"
`)
	t.Setenv("MOTOR_FS_ROOT", "/from/env")
	t.Setenv("MOTOR_LOG_LEVEL", "warn")
	t.Setenv("MOTOR_KLOG_BURST", "3")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.FS.Root)
	assert.Equal(t, zapcore.WarnLevel, cfg.LogLevel())
	assert.Equal(t, 3, cfg.Klog.Burst)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"syntax", "[runtime\nname ="},
		{"unknown key", "[runtime]\ncolour = \"blue\""},
		{"bad level", "[log]\nlevel = \"loud\""},
		{"zero ticks", "[runtime]\nticks_per_second = 0"},
		{"zero burst", "[klog]\nburst = 0"},
		{"negative rate", "[klog]\nrate_per_second = -1.0"},
		{"empty root", "[fs]\nroot = \"  \""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			var rtErr *errors.Error
			require.ErrorAs(t, err, &rtErr)
			assert.Equal(t, errors.PhaseConfig, rtErr.Phase)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestLoad_BadEnv(t *testing.T) {
	t.Setenv("MOTOR_KLOG_BURST", "many")
	_, err := Load("")
	assert.Error(t, err)
}
