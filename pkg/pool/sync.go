package pool

import "sync"

// SyncOption configures a Sync pool.
type SyncOption func(*syncOptions)

type syncOptions struct {
	resolve func() Domain
}

// WithDomainResolver overrides how Sync identifies the calling domain. The
// resolver runs once at construction to record the owner and once per
// operation. It defaults to ProcessDomain.
func WithDomainResolver(resolve func() Domain) SyncOption {
	return func(o *syncOptions) {
		if resolve != nil {
			o.resolve = resolve
		}
	}
}

// Sync is a Core guarded by a mutex held for the whole of each operation,
// factory and hooks included. Hooks must not call back into the same pool.
type Sync[T any] struct {
	mu      sync.Mutex
	core    *Core[T]
	resolve func() Domain
}

// NewSync constructs a mutex-guarded pool owned by the resolving domain.
func NewSync[T any](cfg Config[T], opts ...SyncOption) (*Sync[T], error) {
	o := syncOptions{resolve: ProcessDomain}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	core, err := NewCore(o.resolve(), cfg)
	if err != nil {
		return nil, err
	}
	return &Sync[T]{core: core, resolve: o.resolve}, nil
}

// Owner returns the domain that created the pool.
func (p *Sync[T]) Owner() Domain {
	return p.core.Owner()
}

// Capacity returns the configured bound and whether one is set.
func (p *Sync[T]) Capacity() (int, bool) {
	return p.core.Capacity()
}

// Get acquires an object. See Core.Get.
func (p *Sync[T]) Get() (T, error) {
	if err := p.enter(); err != nil {
		var zero T
		return zero, err
	}
	defer p.mu.Unlock()
	return p.core.get()
}

// Put releases obj into the pool. See Core.Put.
func (p *Sync[T]) Put(obj T) error {
	if err := p.enter(); err != nil {
		return err
	}
	defer p.mu.Unlock()
	return p.core.put(obj)
}

// Count returns the number of stored objects.
func (p *Sync[T]) Count() (int, error) {
	if err := p.enter(); err != nil {
		return 0, err
	}
	defer p.mu.Unlock()
	return p.core.count(), nil
}

// IsEmpty reports whether no objects are stored.
func (p *Sync[T]) IsEmpty() (bool, error) {
	n, err := p.Count()
	return n == 0, err
}

// IsRunning reports whether the pool is open.
func (p *Sync[T]) IsRunning() (bool, error) {
	if err := p.enter(); err != nil {
		return false, err
	}
	defer p.mu.Unlock()
	return p.core.running, nil
}

// Close freezes the pool.
func (p *Sync[T]) Close() error {
	if err := p.enter(); err != nil {
		return err
	}
	defer p.mu.Unlock()
	p.core.close()
	return nil
}

// Open unfreezes the pool.
func (p *Sync[T]) Open() error {
	if err := p.enter(); err != nil {
		return err
	}
	defer p.mu.Unlock()
	p.core.open()
	return nil
}

// Clean drops every stored object.
func (p *Sync[T]) Clean() error {
	if err := p.enter(); err != nil {
		return err
	}
	defer p.mu.Unlock()
	p.core.clean()
	return nil
}

// enter validates the caller domain and, on success, leaves the mutex held.
func (p *Sync[T]) enter() error {
	if err := p.core.CheckAccess(p.resolve()); err != nil {
		return err
	}
	p.mu.Lock()
	return nil
}
