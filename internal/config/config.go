// Package config centralises runtime configuration for syncpool services.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment identifies the runtime environment.
type Environment string

const (
	// EnvDev marks the development environment.
	EnvDev Environment = "dev"
	// EnvStaging marks the staging environment.
	EnvStaging Environment = "staging"
	// EnvProd marks the production environment.
	EnvProd Environment = "prod"
)

// PathEnvVar overrides the configuration path when none is supplied.
const PathEnvVar = "SYNCPOOL_CONFIG"

// Config is the root configuration document.
type Config struct {
	Environment Environment     `yaml:"environment"`
	Log         LogConfig       `yaml:"log"`
	Pools       []PoolConfig    `yaml:"pools"`
	Bench       BenchConfig     `yaml:"bench"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Debug  bool   `yaml:"debug"`
	Prefix string `yaml:"prefix"`
}

// PoolConfig declares a named pool. Capacity zero means unbounded.
type PoolConfig struct {
	Name     string `yaml:"name"`
	Capacity int    `yaml:"capacity"`
}

// BenchConfig drives the concurrent workload harness.
type BenchConfig struct {
	Workers      int           `yaml:"workers"`
	Tasks        int           `yaml:"tasks"`
	Operations   int           `yaml:"operations"`
	ReleaseRatio float64       `yaml:"release_ratio"`
	RateLimit    float64       `yaml:"rate_limit"`
	Retry        RetryConfig   `yaml:"retry"`
	Timeout      time.Duration `yaml:"timeout"`
}

// RetryConfig bounds how long a worker retries a release refused for capacity.
// A zero MaxElapsed disables retries.
type RetryConfig struct {
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
	MaxElapsed      time.Duration `yaml:"max_elapsed"`
}

// TelemetryConfig configures OpenTelemetry metrics export.
type TelemetryConfig struct {
	Enabled        bool          `yaml:"enabled"`
	OTLPEndpoint   string        `yaml:"otlp_endpoint"`
	OTLPInsecure   bool          `yaml:"otlp_insecure"`
	ServiceName    string        `yaml:"service_name"`
	MetricInterval time.Duration `yaml:"metric_interval"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	cfg := Config{
		Environment: EnvDev,
		Log:         LogConfig{Debug: false, Prefix: "poolbench "},
		Pools: []PoolConfig{
			{Name: "frames", Capacity: 64},
			{Name: "scratch", Capacity: 0},
		},
		Bench: BenchConfig{
			Workers:      8,
			Tasks:        8,
			Operations:   1000,
			ReleaseRatio: 0.75,
			RateLimit:    0,
			Retry: RetryConfig{
				InitialInterval: time.Millisecond,
				MaxInterval:     10 * time.Millisecond,
				MaxElapsed:      0,
			},
			Timeout: time.Minute,
		},
		Telemetry: TelemetryConfig{
			Enabled:        false,
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			ServiceName:    "syncpool",
			MetricInterval: 30 * time.Second,
		},
	}
	cfg.Normalise()
	return cfg
}

// Normalise trims whitespace and fills derived defaults.
func (c *Config) Normalise() {
	if c == nil {
		return
	}
	c.Environment = Environment(strings.ToLower(strings.TrimSpace(string(c.Environment))))
	if c.Environment == "" {
		c.Environment = EnvDev
	}
	for i := range c.Pools {
		c.Pools[i].Name = strings.TrimSpace(c.Pools[i].Name)
	}
	if c.Bench.Retry.InitialInterval <= 0 {
		c.Bench.Retry.InitialInterval = time.Millisecond
	}
	if c.Bench.Retry.MaxInterval < c.Bench.Retry.InitialInterval {
		c.Bench.Retry.MaxInterval = c.Bench.Retry.InitialInterval
	}
	c.Telemetry.OTLPEndpoint = strings.TrimSpace(c.Telemetry.OTLPEndpoint)
	c.Telemetry.ServiceName = strings.TrimSpace(c.Telemetry.ServiceName)
	if c.Telemetry.MetricInterval <= 0 {
		c.Telemetry.MetricInterval = 30 * time.Second
	}
}

// Validate performs semantic validation.
func (c Config) Validate() error {
	switch c.Environment {
	case EnvDev, EnvStaging, EnvProd:
	default:
		return fmt.Errorf("environment %q unsupported", c.Environment)
	}

	if len(c.Pools) == 0 {
		return fmt.Errorf("pools: at least one pool required")
	}
	seen := make(map[string]struct{}, len(c.Pools))
	for i, p := range c.Pools {
		if p.Name == "" {
			return fmt.Errorf("pools[%d].name required", i)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("pools[%d]: duplicate pool name %s", i, p.Name)
		}
		seen[p.Name] = struct{}{}
		if p.Capacity < 0 {
			return fmt.Errorf("pools.%s.capacity must be >= 0", p.Name)
		}
	}

	if c.Bench.Workers <= 0 {
		return fmt.Errorf("bench.workers must be > 0")
	}
	if c.Bench.Tasks <= 0 {
		return fmt.Errorf("bench.tasks must be > 0")
	}
	if c.Bench.Operations <= 0 {
		return fmt.Errorf("bench.operations must be > 0")
	}
	if c.Bench.ReleaseRatio < 0 || c.Bench.ReleaseRatio > 1 {
		return fmt.Errorf("bench.release_ratio must be within [0, 1]")
	}
	if c.Bench.RateLimit < 0 {
		return fmt.Errorf("bench.rate_limit must be >= 0")
	}
	if c.Bench.Retry.MaxElapsed < 0 {
		return fmt.Errorf("bench.retry.max_elapsed must be >= 0")
	}
	if c.Bench.Timeout < 0 {
		return fmt.Errorf("bench.timeout must be >= 0")
	}

	if c.Telemetry.Enabled && c.Telemetry.ServiceName == "" {
		return fmt.Errorf("telemetry.service_name required when enabled")
	}
	return nil
}

// Pool returns the named pool declaration.
func (c Config) Pool(name string) (PoolConfig, bool) {
	for _, p := range c.Pools {
		if p.Name == name {
			return p, true
		}
	}
	return PoolConfig{}, false
}

// Load reads and validates a configuration file. Keys missing from the file
// keep their Default values. An empty path falls back to SYNCPOOL_CONFIG.
func Load(ctx context.Context, path string) (Config, error) {
	_ = ctx

	path = resolvePath(path)
	if path == "" {
		return Config{}, fmt.Errorf("config path required")
	}

	reader, closer, err := openConfigFile(path)
	if err != nil {
		return Config{}, err
	}
	defer closer()

	bytes, err := io.ReadAll(reader)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	cfg.Pools = nil
	if err := yaml.Unmarshal(bytes, &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Pools == nil {
		cfg.Pools = Default().Pools
	}

	cfg.Normalise()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadOrDefault loads the configuration at path, falling back to Default when
// the file does not exist. The boolean reports whether a file was read.
func LoadOrDefault(ctx context.Context, path string) (Config, bool, error) {
	if resolvePath(path) == "" {
		return Default(), false, nil
	}
	cfg, err := Load(ctx, path)
	if err == nil {
		return cfg, true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return Default(), false, nil
	}
	return Config{}, false, err
}

func resolvePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		path = strings.TrimSpace(os.Getenv(PathEnvVar))
	}
	return path
}

func openConfigFile(path string) (io.Reader, func(), error) {
	candidate := filepath.Clean(path)
	file, err := os.Open(candidate) // #nosec G304 -- path is operator controlled.
	if err != nil {
		return nil, nil, fmt.Errorf("open config: %w", err)
	}
	return file, func() { _ = file.Close() }, nil
}
