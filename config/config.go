package config

import (
	"bytes"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"

	"github.com/wippyai/motor-rt/errors"
)

// EnvPrefix prefixes every environment override, e.g. MOTOR_FS_ROOT.
const EnvPrefix = "MOTOR"

// Config holds all runtime configuration.
type Config struct {
	Runtime RuntimeConfig `toml:"runtime" envconfig:"RUNTIME"`
	FS      FSConfig      `toml:"fs" envconfig:"FS"`
	Log     LogConfig     `toml:"log" envconfig:"LOG"`
	Klog    KlogConfig    `toml:"klog" envconfig:"KLOG"`
	Metrics MetricsConfig `toml:"metrics" envconfig:"METRICS"`
}

// RuntimeConfig holds process-level settings.
type RuntimeConfig struct {
	Name           string `toml:"name" envconfig:"NAME"`
	TicksPerSecond uint64 `toml:"ticks_per_second" envconfig:"TICKS_PER_SECOND"`
	StdoutBuffer   int    `toml:"stdout_buffer" envconfig:"STDOUT_BUFFER"`
}

// FSConfig holds the filesystem sandbox settings.
type FSConfig struct {
	Root string `toml:"root" envconfig:"ROOT"`
}

// LogConfig holds host logging configuration.
type LogConfig struct {
	Level       string `toml:"level" envconfig:"LEVEL"`
	Development bool   `toml:"development" envconfig:"DEV"`
}

// KlogConfig holds kernel console settings. A zero rate disables the
// relay's rate limit.
type KlogConfig struct {
	Level         string  `toml:"level" envconfig:"LEVEL"`
	Console       string  `toml:"console" envconfig:"CONSOLE"`
	RatePerSecond float64 `toml:"rate_per_second" envconfig:"RATE"`
	Burst         int     `toml:"burst" envconfig:"BURST"`
}

// MetricsConfig holds the Prometheus endpoint settings. An empty address
// disables the endpoint.
type MetricsConfig struct {
	Addr string `toml:"addr" envconfig:"ADDR"`
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Runtime: RuntimeConfig{
			Name:           "init",
			TicksPerSecond: 1_000_000_000,
			StdoutBuffer:   4096,
		},
		FS: FSConfig{
			Root: ".",
		},
		Log: LogConfig{
			Level: "info",
		},
		Klog: KlogConfig{
			Level:   "info",
			Console: "stderr",
			Burst:   64,
		},
	}
}

// Load reads path, when given, over the defaults and then applies
// MOTOR_* environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadToml(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, errors.Config("environment override failed", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadToml(path string, out *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Config("config read failed ("+path+")", err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return errors.Config("config parse failed ("+path+")", err)
	}
	return nil
}

// Validate checks field ranges and level names.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Runtime.Name) == "" {
		return errors.Config("runtime.name is empty", nil)
	}
	if c.Runtime.TicksPerSecond == 0 {
		return errors.Config("runtime.ticks_per_second must be positive", nil)
	}
	if strings.TrimSpace(c.FS.Root) == "" {
		return errors.Config("fs.root is empty", nil)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return errors.Config("log.level", err)
	}
	if _, err := zapcore.ParseLevel(c.Klog.Level); err != nil {
		return errors.Config("klog.level", err)
	}
	if c.Klog.RatePerSecond < 0 {
		return errors.Config("klog.rate_per_second is negative", nil)
	}
	if c.Klog.Burst < 1 {
		return errors.Config("klog.burst must be at least 1", nil)
	}
	return nil
}

// LogLevel returns the parsed host log level.
func (c *Config) LogLevel() zapcore.Level {
	l, _ := zapcore.ParseLevel(c.Log.Level)
	return l
}

// KlogLevel returns the parsed kernel console level.
func (c *Config) KlogLevel() zapcore.Level {
	l, _ := zapcore.ParseLevel(c.Klog.Level)
	return l
}

// KlogLimit returns the relay rate limit.
func (c *Config) KlogLimit() rate.Limit {
	if c.Klog.RatePerSecond == 0 {
		return rate.Inf
	}
	return rate.Limit(c.Klog.RatePerSecond)
}
