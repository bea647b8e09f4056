// Package poolmgr coordinates named pools of generic objects.
package poolmgr

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/coachpo/syncpool/errs"
	"github.com/coachpo/syncpool/internal/config"
	"github.com/coachpo/syncpool/internal/observability"
	"github.com/coachpo/syncpool/internal/telemetry"
	"github.com/coachpo/syncpool/pkg/objects"
	"github.com/coachpo/syncpool/pkg/pool"
)

const component = "poolmgr"

var (
	// ErrPoolNotRegistered indicates the requested pool has not been registered.
	ErrPoolNotRegistered = errs.New(component, errs.CodeNotFound, errs.WithMessage("pool not registered"))
	// ErrManagerClosed indicates the manager is shutting down and cannot service requests.
	ErrManagerClosed = errs.New(component, errs.CodeUnavailable, errs.WithMessage("shutdown in progress"))
	// ErrDuplicatePool indicates a pool name is already taken.
	ErrDuplicatePool = errs.New(component, errs.CodeConflict, errs.WithMessage("pool already registered"))
)

const defaultShutdownTimeout = 5 * time.Second

// Factory builds a fresh object for a named pool.
type Factory func() *objects.Generic

// Option configures a Manager.
type Option func(*Manager)

// WithMeter instruments every registered pool on meter, labelled with env.
func WithMeter(meter metric.Meter, env string) Option {
	return func(m *Manager) {
		m.meter = meter
		m.env = env
	}
}

// WithDrainInterval sets how often Shutdown re-checks the in-flight count.
func WithDrainInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.drainInterval = d
		}
	}
}

type entry struct {
	pool     *pool.Sync[*objects.Generic]
	capacity int
	debug    *debugState
}

// Manager coordinates named Sync pools, tracking objects handed out so that
// Shutdown can wait for them to come back before closing every pool.
type Manager struct {
	mu            sync.RWMutex
	pools         map[string]*entry
	shutdownCh    chan struct{}
	shutdownOnce  sync.Once
	active        atomic.Int64
	meter         metric.Meter
	env           string
	drainInterval time.Duration
}

// New constructs a manager ready for pool registration.
func New(opts ...Option) *Manager {
	m := &Manager{
		pools:         make(map[string]*entry),
		shutdownCh:    make(chan struct{}),
		drainInterval: 10 * time.Millisecond,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// FromConfig registers every pool declared in cfg.
func FromConfig(cfg config.Config, opts ...Option) (*Manager, error) {
	m := New(opts...)
	for _, pc := range cfg.Pools {
		if err := m.RegisterPool(pc.Name, pc.Capacity, nil); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RegisterPool registers a pool under name. A zero capacity leaves the pool
// unbounded; a nil factory yields empty Generic holders. Released objects are
// reset before they are stored.
func (m *Manager) RegisterPool(name string, capacity int, factory Factory) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed() {
		return ErrManagerClosed
	}
	if _, exists := m.pools[name]; exists {
		return errs.New(component, errs.CodeConflict,
			errs.WithMessage("pool already registered"),
			errs.WithField("pool", name))
	}

	cfg := pool.Config[*objects.Generic]{
		Capacity:  capacity,
		Factory:   factory,
		OnRelease: (*objects.Generic).Reset,
	}
	if cfg.Factory == nil {
		cfg.Factory = objects.New
	}

	attrs := telemetry.PoolAttributes(m.env, name, telemetry.VariantSync)
	if m.meter != nil {
		instruments, err := telemetry.NewPoolInstruments(m.meter, attrs...)
		if err != nil {
			return fmt.Errorf("pool manager: instrument %s: %w", name, err)
		}
		cfg = telemetry.Instrument(instruments, cfg)
	}

	p, err := pool.NewSync(cfg)
	if err != nil {
		return fmt.Errorf("pool manager: register %s: %w", name, err)
	}
	if m.meter != nil {
		if err := telemetry.ObservePool(m.meter, p, capacity, attrs...); err != nil {
			return fmt.Errorf("pool manager: observe %s: %w", name, err)
		}
	}

	m.pools[name] = &entry{pool: p, capacity: capacity, debug: newDebugState()}
	observability.Log().Debug("pool registered",
		observability.Field{Key: "pool", Value: name},
		observability.Field{Key: "capacity", Value: capacity})
	return nil
}

// Get acquires an object from the named pool.
func (m *Manager) Get(ctx context.Context, name string) (*objects.Generic, error) {
	if m.closed() {
		return nil, ErrManagerClosed
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	e, err := m.lookup(name)
	if err != nil {
		return nil, err
	}
	obj, err := e.pool.Get()
	if err != nil {
		return nil, fmt.Errorf("pool manager: get %s: %w", name, err)
	}
	m.active.Add(1)
	e.debug.recordAcquire(obj)
	return obj, nil
}

// Put returns obj to the named pool. An object refused with
// pool.ErrCapacityReached stays with the caller, who may retry or Discard it;
// any other outcome counts as returned.
func (m *Manager) Put(name string, obj *objects.Generic) error {
	e, err := m.lookup(name)
	if err != nil {
		return err
	}
	if err := e.pool.Put(obj); err != nil {
		if !errors.Is(err, pool.ErrCapacityReached) {
			m.release(e, obj)
		}
		return fmt.Errorf("pool manager: put %s: %w", name, err)
	}
	m.release(e, obj)
	return nil
}

// Discard records that obj, obtained from the named pool through Get, will
// not be returned.
func (m *Manager) Discard(name string, obj *objects.Generic) error {
	e, err := m.lookup(name)
	if err != nil {
		return err
	}
	m.release(e, obj)
	return nil
}

// Pool returns the named pool for direct use. Objects taken from it are not
// tracked by the manager.
func (m *Manager) Pool(name string) (*pool.Sync[*objects.Generic], error) {
	e, err := m.lookup(name)
	if err != nil {
		return nil, err
	}
	return e.pool, nil
}

// Names returns the registered pool names in lexical order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	names := make([]string, 0, len(m.pools))
	for name := range m.pools {
		names = append(names, name)
	}
	m.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Stats describes one pool at a point in time.
type Stats struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
	Stored   int    `json:"stored"`
	Running  bool   `json:"running"`
}

// Snapshot reports the state of every registered pool.
func (m *Manager) Snapshot() ([]Stats, error) {
	names := m.Names()
	out := make([]Stats, 0, len(names))
	for _, name := range names {
		e, err := m.lookup(name)
		if err != nil {
			return nil, err
		}
		stored, err := e.pool.Count()
		if err != nil {
			return nil, err
		}
		running, err := e.pool.IsRunning()
		if err != nil {
			return nil, err
		}
		out = append(out, Stats{Name: name, Capacity: e.capacity, Stored: stored, Running: running})
	}
	return out, nil
}

// Active reports how many objects are currently handed out through Get.
func (m *Manager) Active() int64 {
	return m.active.Load()
}

// Shutdown stops new acquisitions, waits for in-flight objects to be returned
// (bounded by ctx, defaulting to 5 seconds), then closes and cleans every
// pool. Pool failures and a drain timeout are joined into the result.
func (m *Manager) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var cancel context.CancelFunc
	if _, ok := ctx.Deadline(); !ok {
		ctx, cancel = context.WithTimeout(ctx, defaultShutdownTimeout)
	}
	if cancel != nil {
		defer cancel()
	}

	m.shutdownOnce.Do(func() {
		close(m.shutdownCh)
	})

	var failures []error
	if err := m.drain(ctx); err != nil {
		failures = append(failures, err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for name, e := range m.pools {
		if err := e.pool.Close(); err != nil {
			failures = append(failures, fmt.Errorf("close %s: %w", name, err))
		}
		if err := e.pool.Clean(); err != nil {
			failures = append(failures, fmt.Errorf("clean %s: %w", name, err))
		}
	}
	return observability.JoinErrors("pool manager shutdown", failures)
}

func (m *Manager) drain(ctx context.Context) error {
	if m.active.Load() <= 0 {
		return nil
	}
	ticker := time.NewTicker(m.drainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if m.active.Load() <= 0 {
				return nil
			}
		case <-ctx.Done():
			remaining := m.active.Load()
			m.logOutstanding(remaining)
			return fmt.Errorf("shutdown timeout: %d pooled objects unreturned", remaining)
		}
	}
}

func (m *Manager) release(e *entry, obj *objects.Generic) {
	e.debug.recordRelease(obj)
	for {
		cur := m.active.Load()
		if cur <= 0 {
			return
		}
		if m.active.CompareAndSwap(cur, cur-1) {
			return
		}
	}
}

func (m *Manager) logOutstanding(remaining int64) {
	observability.Log().Error("shutdown timed out with objects in flight",
		observability.Field{Key: "remaining", Value: remaining})
	m.mu.RLock()
	defer m.mu.RUnlock()
	for name, e := range m.pools {
		for _, stack := range e.debug.activeStacks() {
			observability.Log().Error("leak candidate",
				observability.Field{Key: "pool", Value: name},
				observability.Field{Key: "stack", Value: stack})
		}
	}
}

func (m *Manager) closed() bool {
	select {
	case <-m.shutdownCh:
		return true
	default:
		return false
	}
}

func (m *Manager) lookup(name string) (*entry, error) {
	m.mu.RLock()
	e, ok := m.pools[name]
	m.mu.RUnlock()
	if !ok {
		return nil, errs.New(component, errs.CodeNotFound,
			errs.WithMessage("pool not registered"),
			errs.WithField("pool", name))
	}
	return e, nil
}
