// Package bench drives concurrent acquire/release workloads against both pool
// variants and checks that no object is dispensed twice and that stored
// objects are conserved.
package bench

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	concpool "github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"

	"github.com/coachpo/syncpool/internal/config"
	"github.com/coachpo/syncpool/internal/observability"
	"github.com/coachpo/syncpool/internal/poolmgr"
	"github.com/coachpo/syncpool/internal/telemetry"
	"github.com/coachpo/syncpool/pkg/coop"
	"github.com/coachpo/syncpool/pkg/objects"
	"github.com/coachpo/syncpool/pkg/pool"
)

const seed = 0x5eed

// Option configures a Runner.
type Option func(*Runner)

// WithMeter instruments the cooperative pools created by the runner. Sync
// pools are instrumented through the manager.
func WithMeter(meter metric.Meter, env string) Option {
	return func(r *Runner) {
		r.meter = meter
		r.env = env
	}
}

// Runner executes the configured workload.
type Runner struct {
	cfg     config.BenchConfig
	pools   []config.PoolConfig
	env     string
	mgr     *poolmgr.Manager
	meter   metric.Meter
	limiter *rate.Limiter
}

// New builds a runner for cfg. Sync workloads go through mgr, where the
// runner registers one pool per configured pool.
func New(cfg config.Config, mgr *poolmgr.Manager, opts ...Option) *Runner {
	limit := rate.Inf
	if cfg.Bench.RateLimit > 0 {
		limit = rate.Limit(cfg.Bench.RateLimit)
	}
	r := &Runner{
		cfg:     cfg.Bench,
		pools:   cfg.Pools,
		env:     string(cfg.Environment),
		mgr:     mgr,
		limiter: rate.NewLimiter(limit, 1),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Run executes the sync and cooperative workloads for every configured pool.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	if r.mgr == nil {
		return Report{}, errors.New("bench: manager required")
	}
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	report := Report{Environment: r.env, StartedAt: time.Now().UTC()}
	for _, pc := range r.pools {
		run, err := r.runSync(ctx, pc)
		if err != nil {
			return report, fmt.Errorf("bench: sync %s: %w", pc.Name, err)
		}
		report.Runs = append(report.Runs, run)

		run, err = r.runAsync(ctx, pc)
		if err != nil {
			return report, fmt.Errorf("bench: async %s: %w", pc.Name, err)
		}
		report.Runs = append(report.Runs, run)
	}

	stats, err := r.mgr.Snapshot()
	if err != nil {
		return report, fmt.Errorf("bench: snapshot: %w", err)
	}
	report.Pools = stats
	report.Elapsed = time.Since(report.StartedAt).String()

	observability.Log().Info("bench complete",
		observability.Field{Key: "runs", Value: len(report.Runs)},
		observability.Field{Key: "ok", Value: report.OK()},
		observability.Field{Key: "elapsed", Value: report.Elapsed})
	return report, nil
}

type tally struct {
	acquired atomic.Int64
	released atomic.Int64
	created  atomic.Int64
	refused  atomic.Int64
	retried  atomic.Int64
	doubles  atomic.Int64
	out      sync.Map
}

// checkout records obj as handed out and flags it if it already was.
func (t *tally) checkout(obj *objects.Generic, worker int) {
	t.acquired.Add(1)
	if _, loaded := t.out.LoadOrStore(obj, worker); loaded {
		t.doubles.Add(1)
	}
}

func (t *tally) checkin(obj *objects.Generic) {
	t.out.Delete(obj)
}

func (t *tally) factory() func() *objects.Generic {
	return func() *objects.Generic {
		t.created.Add(1)
		return objects.New()
	}
}

func (t *tally) report(pc config.PoolConfig, variant string, workers, stored int) VariantReport {
	v := VariantReport{
		Pool:            pc.Name,
		Variant:         variant,
		Capacity:        pc.Capacity,
		Workers:         workers,
		Acquired:        t.acquired.Load(),
		Released:        t.released.Load(),
		Created:         t.created.Load(),
		Refused:         t.refused.Load(),
		Retried:         t.retried.Load(),
		DoubleDispensed: t.doubles.Load(),
		Stored:          stored,
	}
	v.Conserved = int64(stored) == v.Released-(v.Acquired-v.Created)
	return v
}

func (r *Runner) runSync(ctx context.Context, pc config.PoolConfig) (VariantReport, error) {
	t := new(tally)
	if err := r.mgr.RegisterPool(pc.Name, pc.Capacity, t.factory()); err != nil {
		return VariantReport{}, err
	}

	p := concpool.New().WithMaxGoroutines(r.cfg.Workers).WithContext(ctx)
	for w := 0; w < r.cfg.Workers; w++ {
		worker := w
		p.Go(func(ctx context.Context) error {
			return r.syncWorker(ctx, pc.Name, worker, t)
		})
	}
	if err := p.Wait(); err != nil {
		return VariantReport{}, err
	}

	sp, err := r.mgr.Pool(pc.Name)
	if err != nil {
		return VariantReport{}, err
	}
	stored, err := sp.Count()
	if err != nil {
		return VariantReport{}, err
	}
	return t.report(pc, telemetry.VariantSync, r.cfg.Workers, stored), nil
}

func (r *Runner) syncWorker(ctx context.Context, name string, worker int, t *tally) error {
	rng := rand.New(rand.NewPCG(uint64(worker)+1, seed))
	put := func(obj *objects.Generic) error { return r.mgr.Put(name, obj) }
	release := func(obj *objects.Generic) error {
		t.checkin(obj)
		accepted, err := r.release(ctx, obj, put, sleep, t)
		if err == nil && !accepted {
			return r.mgr.Discard(name, obj)
		}
		return err
	}

	var held []*objects.Generic
	for i := 0; i < r.cfg.Operations; i++ {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
		obj, err := r.mgr.Get(ctx, name)
		if err != nil {
			return err
		}
		t.checkout(obj, worker)
		obj.Value = i
		if rng.Float64() < r.cfg.ReleaseRatio {
			if err := release(obj); err != nil {
				return err
			}
			continue
		}
		held = append(held, obj)
	}
	for _, obj := range held {
		if err := release(obj); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runAsync(ctx context.Context, pc config.PoolConfig) (VariantReport, error) {
	t := new(tally)
	cfg := pool.Config[*objects.Generic]{
		Capacity:  pc.Capacity,
		Factory:   t.factory(),
		OnRelease: (*objects.Generic).Reset,
	}
	if r.meter != nil {
		instruments, err := telemetry.NewPoolInstruments(r.meter,
			telemetry.PoolAttributes(r.env, pc.Name, telemetry.VariantAsync)...)
		if err != nil {
			return VariantReport{}, err
		}
		cfg = telemetry.Instrument(instruments, cfg)
	}

	sched := coop.NewScheduler()
	p, err := pool.NewAsync(sched, cfg)
	if err != nil {
		return VariantReport{}, err
	}

	var (
		mu       sync.Mutex
		failures []error
	)
	for task := 0; task < r.cfg.Tasks; task++ {
		worker := task
		sched.Go(ctx, func(ctx context.Context) {
			if err := r.asyncTask(ctx, sched, p, worker, t); err != nil {
				mu.Lock()
				failures = append(failures, fmt.Errorf("task %d: %w", worker, err))
				mu.Unlock()
			}
		})
	}
	sched.Wait()
	if len(failures) > 0 {
		return VariantReport{}, errors.Join(failures...)
	}

	var stored int
	sched.Run(ctx, func(ctx context.Context) {
		stored, err = p.Count(ctx)
	})
	if err != nil {
		return VariantReport{}, err
	}
	return t.report(pc, telemetry.VariantAsync, r.cfg.Tasks, stored), nil
}

func (r *Runner) asyncTask(ctx context.Context, sched *coop.Scheduler, p *pool.Async[*objects.Generic], worker int, t *tally) error {
	rng := rand.New(rand.NewPCG(uint64(worker)+1, seed))
	put := func(obj *objects.Generic) error { return p.Put(ctx, obj) }
	yield := func(ctx context.Context, d time.Duration) error {
		deadline := time.Now().Add(d)
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			sched.Yield(ctx)
			if !time.Now().Before(deadline) {
				return nil
			}
		}
	}
	release := func(obj *objects.Generic) error {
		t.checkin(obj)
		_, err := r.release(ctx, obj, put, yield, t)
		return err
	}

	var held []*objects.Generic
	for i := 0; i < r.cfg.Operations; i++ {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
		obj, err := p.Get(ctx)
		if err != nil {
			return err
		}
		t.checkout(obj, worker)
		obj.Value = i
		sched.Yield(ctx)
		if rng.Float64() < r.cfg.ReleaseRatio {
			if err := release(obj); err != nil {
				return err
			}
			continue
		}
		held = append(held, obj)
	}
	for _, obj := range held {
		if err := release(obj); err != nil {
			return err
		}
	}
	return nil
}

// release hands obj back through put. A refusal for capacity is retried with
// exponential backoff for up to Retry.MaxElapsed; it reports false when the
// object was finally dropped.
func (r *Runner) release(
	ctx context.Context,
	obj *objects.Generic,
	put func(*objects.Generic) error,
	wait func(context.Context, time.Duration) error,
	t *tally,
) (bool, error) {
	err := put(obj)
	if err == nil {
		t.released.Add(1)
		return true, nil
	}
	if !errors.Is(err, pool.ErrCapacityReached) {
		return false, err
	}

	if r.cfg.Retry.MaxElapsed > 0 {
		backoffCfg := backoff.NewExponentialBackOff()
		backoffCfg.InitialInterval = r.cfg.Retry.InitialInterval
		backoffCfg.MaxInterval = r.cfg.Retry.MaxInterval
		backoffCfg.Reset()
		deadline := time.Now().Add(r.cfg.Retry.MaxElapsed)

		for time.Now().Before(deadline) {
			delay := backoffCfg.NextBackOff()
			if delay == backoff.Stop {
				break
			}
			if err := wait(ctx, delay); err != nil {
				return false, err
			}
			t.retried.Add(1)
			err = put(obj)
			if err == nil {
				t.released.Add(1)
				return true, nil
			}
			if !errors.Is(err, pool.ErrCapacityReached) {
				return false, err
			}
		}
	}
	t.refused.Add(1)
	return false, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
