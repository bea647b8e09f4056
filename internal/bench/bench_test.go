package bench

import (
	"bytes"
	"context"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/coachpo/syncpool/internal/config"
	"github.com/coachpo/syncpool/internal/poolmgr"
	"github.com/coachpo/syncpool/pkg/objects"
	"github.com/coachpo/syncpool/pkg/pool"
)

func benchConfig() config.Config {
	cfg := config.Default()
	cfg.Pools = []config.PoolConfig{
		{Name: "bounded", Capacity: 4},
		{Name: "unbounded", Capacity: 0},
	}
	cfg.Bench.Workers = 4
	cfg.Bench.Tasks = 4
	cfg.Bench.Operations = 200
	cfg.Bench.ReleaseRatio = 0.5
	cfg.Bench.Timeout = 30 * time.Second
	return cfg
}

func TestRunUpholdsInvariants(t *testing.T) {
	cfg := benchConfig()
	mgr := poolmgr.New()
	report, err := New(cfg, mgr).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Runs, 4)
	for _, run := range report.Runs {
		require.Zero(t, run.DoubleDispensed, "%s/%s", run.Pool, run.Variant)
		require.True(t, run.Conserved, "%s/%s: %+v", run.Pool, run.Variant, run)
		require.EqualValues(t, run.Workers*cfg.Bench.Operations, run.Acquired)
		require.Equal(t, run.Acquired, run.Released+run.Refused)
		if run.Capacity > 0 {
			require.LessOrEqual(t, run.Stored, run.Capacity)
		}
	}
	require.True(t, report.OK())
	require.Len(t, report.Pools, 2)
	require.Zero(t, mgr.Active())
	require.NoError(t, mgr.Shutdown(context.Background()))
}

func TestRunWithRetries(t *testing.T) {
	cfg := benchConfig()
	cfg.Pools = []config.PoolConfig{{Name: "tiny", Capacity: 1}}
	cfg.Bench.ReleaseRatio = 0
	cfg.Bench.Operations = 20
	cfg.Bench.Retry = config.RetryConfig{
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		MaxElapsed:      5 * time.Millisecond,
	}

	report, err := New(cfg, poolmgr.New()).Run(context.Background())
	require.NoError(t, err)
	for _, run := range report.Runs {
		require.True(t, run.OK(), "%+v", run)
		require.Positive(t, run.Refused)
		require.Positive(t, run.Retried)
		require.Equal(t, 1, run.Stored)
	}
}

func TestRunRegistersPoolsOnce(t *testing.T) {
	cfg := benchConfig()
	mgr := poolmgr.New()
	require.NoError(t, mgr.RegisterPool("bounded", 4, nil))

	_, err := New(cfg, mgr).Run(context.Background())
	require.ErrorIs(t, err, poolmgr.ErrDuplicatePool)
}

func TestRunRequiresManager(t *testing.T) {
	_, err := New(benchConfig(), nil).Run(context.Background())
	require.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := benchConfig()
	cfg.Bench.RateLimit = 1
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(cfg, poolmgr.New()).Run(ctx)
	require.Error(t, err)
}

func TestRunWithMeter(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	meter := mp.Meter("test")

	cfg := benchConfig()
	cfg.Bench.Operations = 10
	mgr := poolmgr.New(poolmgr.WithMeter(meter, "dev"))
	report, err := New(cfg, mgr, WithMeter(meter, "dev")).Run(context.Background())
	require.NoError(t, err)
	require.True(t, report.OK())
}

func TestReleaseDropsAfterRetryBudget(t *testing.T) {
	cfg := benchConfig()
	cfg.Bench.Retry.MaxElapsed = 3 * time.Millisecond
	r := New(cfg, poolmgr.New())

	p, err := pool.NewSync(pool.Config[*objects.Generic]{Capacity: 1})
	require.NoError(t, err)
	require.NoError(t, p.Put(objects.New()))

	tl := new(tally)
	accepted, err := r.release(context.Background(), objects.New(), p.Put, sleep, tl)
	require.NoError(t, err)
	require.False(t, accepted)
	require.EqualValues(t, 1, tl.refused.Load())
	require.Positive(t, tl.retried.Load())
	require.Zero(t, tl.released.Load())
}

func TestReleasePropagatesClosed(t *testing.T) {
	r := New(benchConfig(), poolmgr.New())
	p, err := pool.NewSync(pool.Config[*objects.Generic]{})
	require.NoError(t, err)
	require.NoError(t, p.Close())

	_, err = r.release(context.Background(), objects.New(), p.Put, sleep, new(tally))
	require.ErrorIs(t, err, pool.ErrClosed)
}

func TestReportJSON(t *testing.T) {
	report := Report{
		Environment: "dev",
		Runs: []VariantReport{
			{Pool: "frames", Variant: "sync", Acquired: 3, Released: 2, Created: 1, Stored: 0, Conserved: true},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, report.WriteJSON(&buf))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, "dev", decoded["environment"])
	runs := decoded["runs"].([]any)
	require.Len(t, runs, 1)
	require.Equal(t, "frames", runs[0].(map[string]any)["pool"])
	require.True(t, report.OK())

	report.Runs[0].DoubleDispensed = 1
	require.False(t, report.OK())
}
