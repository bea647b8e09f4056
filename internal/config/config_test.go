package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "syncpool.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	frames, ok := cfg.Pool("frames")
	require.True(t, ok)
	require.Equal(t, 64, frames.Capacity)
	_, ok = cfg.Pool("missing")
	require.False(t, ok)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
environment: " PROD "
pools:
  - name: " buffers "
    capacity: 16
bench:
  workers: 4
  operations: 200
  retry:
    max_elapsed: 50ms
telemetry:
  metric_interval: 5s
`)

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, EnvProd, cfg.Environment)
	require.Equal(t, []PoolConfig{{Name: "buffers", Capacity: 16}}, cfg.Pools)
	require.Equal(t, 4, cfg.Bench.Workers)
	require.Equal(t, 8, cfg.Bench.Tasks)
	require.Equal(t, 200, cfg.Bench.Operations)
	require.Equal(t, 50*time.Millisecond, cfg.Bench.Retry.MaxElapsed)
	require.Equal(t, time.Millisecond, cfg.Bench.Retry.InitialInterval)
	require.Equal(t, 5*time.Second, cfg.Telemetry.MetricInterval)
	require.Equal(t, "syncpool", cfg.Telemetry.ServiceName)
}

func TestLoadKeepsDefaultPoolsWhenOmitted(t *testing.T) {
	path := writeConfig(t, "environment: staging\n")
	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, Default().Pools, cfg.Pools)
}

func TestLoadUsesEnvPath(t *testing.T) {
	path := writeConfig(t, "bench:\n  workers: 3\n")
	t.Setenv(PathEnvVar, path)

	cfg, err := Load(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, 3, cfg.Bench.Workers)
}

func TestLoadRejectsInvalidDocuments(t *testing.T) {
	cases := map[string]string{
		"bad yaml":          "pools: [",
		"duplicate pool":    "pools:\n  - name: a\n  - name: a\n",
		"unnamed pool":      "pools:\n  - capacity: 3\n",
		"negative capacity": "pools:\n  - name: a\n    capacity: -1\n",
		"ratio":             "bench:\n  release_ratio: 1.5\n",
		"workers":           "bench:\n  workers: -2\n",
		"environment":       "environment: moon\n",
		"telemetry":         "telemetry:\n  enabled: true\n  service_name: \"  \"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(context.Background(), writeConfig(t, body))
			require.Error(t, err)
		})
	}
}

func TestLoadOrDefault(t *testing.T) {
	t.Setenv(PathEnvVar, "")

	cfg, loaded, err := LoadOrDefault(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.False(t, loaded)
	require.Equal(t, Default(), cfg)

	cfg, loaded, err = LoadOrDefault(context.Background(), "")
	require.NoError(t, err)
	require.False(t, loaded)
	require.Equal(t, Default(), cfg)

	path := writeConfig(t, "bench:\n  tasks: 2\n")
	cfg, loaded, err = LoadOrDefault(context.Background(), path)
	require.NoError(t, err)
	require.True(t, loaded)
	require.Equal(t, 2, cfg.Bench.Tasks)

	_, _, err = LoadOrDefault(context.Background(), writeConfig(t, "pools: ["))
	require.Error(t, err)
}

func TestNormaliseFillsRetryBounds(t *testing.T) {
	cfg := Config{Bench: BenchConfig{Retry: RetryConfig{InitialInterval: 5 * time.Millisecond}}}
	cfg.Normalise()
	require.Equal(t, EnvDev, cfg.Environment)
	require.Equal(t, 5*time.Millisecond, cfg.Bench.Retry.MaxInterval)
	require.Equal(t, 30*time.Second, cfg.Telemetry.MetricInterval)

	var nilCfg *Config
	require.NotPanics(t, nilCfg.Normalise)
}
