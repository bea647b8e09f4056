package pool

import (
	"context"

	"github.com/coachpo/syncpool/pkg/coop"
)

// Async is a Core guarded by a cooperative mutex. It may only be used from
// tasks of the scheduler it was created with; every method takes the task
// context and may suspend the task while waiting for the lock.
type Async[T any] struct {
	mu   *coop.Mutex
	core *Core[T]
}

// NewAsync constructs a cooperative pool owned by s.
func NewAsync[T any](s *coop.Scheduler, cfg Config[T]) (*Async[T], error) {
	if s == nil {
		return nil, invalidConfig("scheduler required")
	}
	core, err := NewCore(Domain(s.Domain()), cfg)
	if err != nil {
		return nil, err
	}
	return &Async[T]{mu: coop.NewMutex(s), core: core}, nil
}

// Owner returns the domain of the owning scheduler.
func (p *Async[T]) Owner() Domain {
	return p.core.Owner()
}

// Capacity returns the configured bound and whether one is set.
func (p *Async[T]) Capacity() (int, bool) {
	return p.core.Capacity()
}

// Get acquires an object. See Core.Get.
func (p *Async[T]) Get(ctx context.Context) (T, error) {
	if err := p.enter(ctx); err != nil {
		var zero T
		return zero, err
	}
	defer p.mu.Unlock()
	return p.core.get()
}

// Put releases obj into the pool. See Core.Put.
func (p *Async[T]) Put(ctx context.Context, obj T) error {
	if err := p.enter(ctx); err != nil {
		return err
	}
	defer p.mu.Unlock()
	return p.core.put(obj)
}

// Count returns the number of stored objects.
func (p *Async[T]) Count(ctx context.Context) (int, error) {
	if err := p.enter(ctx); err != nil {
		return 0, err
	}
	defer p.mu.Unlock()
	return p.core.count(), nil
}

// IsEmpty reports whether no objects are stored.
func (p *Async[T]) IsEmpty(ctx context.Context) (bool, error) {
	n, err := p.Count(ctx)
	return n == 0, err
}

// IsRunning reports whether the pool is open.
func (p *Async[T]) IsRunning(ctx context.Context) (bool, error) {
	if err := p.enter(ctx); err != nil {
		return false, err
	}
	defer p.mu.Unlock()
	return p.core.running, nil
}

// Close freezes the pool.
func (p *Async[T]) Close(ctx context.Context) error {
	if err := p.enter(ctx); err != nil {
		return err
	}
	defer p.mu.Unlock()
	p.core.close()
	return nil
}

// Open unfreezes the pool.
func (p *Async[T]) Open(ctx context.Context) error {
	if err := p.enter(ctx); err != nil {
		return err
	}
	defer p.mu.Unlock()
	p.core.open()
	return nil
}

// Clean drops every stored object.
func (p *Async[T]) Clean(ctx context.Context) error {
	if err := p.enter(ctx); err != nil {
		return err
	}
	defer p.mu.Unlock()
	p.core.clean()
	return nil
}

func (p *Async[T]) enter(ctx context.Context) error {
	if err := p.core.CheckAccess(Domain(coop.DomainOf(ctx))); err != nil {
		return err
	}
	return p.mu.Lock(ctx)
}
