package pool

// Core is the pool state machine: a LIFO stack guarded by an open/closed flag,
// an optional capacity and an owning domain. It is not safe for concurrent
// use; wrap it with Sync or Async.
type Core[T any] struct {
	owner     Domain
	capacity  int
	factory   func() T
	onAcquire func(T)
	onRelease func(T)

	running bool
	stack   []T
}

// NewCore constructs an open, empty pool owned by owner.
func NewCore[T any](owner Domain, cfg Config[T]) (*Core[T], error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	c := new(Core[T])
	c.owner = owner
	c.capacity = cfg.Capacity
	c.factory = cfg.factory()
	c.onAcquire = cfg.OnAcquire
	c.onRelease = cfg.OnRelease
	c.running = true
	return c, nil
}

// Owner returns the domain that created the pool.
func (c *Core[T]) Owner() Domain {
	return c.owner
}

// Capacity returns the configured bound and whether one is set.
func (c *Core[T]) Capacity() (int, bool) {
	return c.capacity, c.capacity > 0
}

// CheckAccess fails with *IllegalAccessError unless caller owns the pool. It
// only reads immutable state.
func (c *Core[T]) CheckAccess(caller Domain) error {
	if caller != c.owner {
		return &IllegalAccessError{Owner: c.owner, Accessor: caller}
	}
	return nil
}

// Get pops the most recently released object, or manufactures one when the
// stack is empty.
func (c *Core[T]) Get(caller Domain) (T, error) {
	if err := c.CheckAccess(caller); err != nil {
		var zero T
		return zero, err
	}
	return c.get()
}

// Put stores obj on top of the stack.
func (c *Core[T]) Put(caller Domain, obj T) error {
	if err := c.CheckAccess(caller); err != nil {
		return err
	}
	return c.put(obj)
}

// Count returns the number of stored objects.
func (c *Core[T]) Count(caller Domain) (int, error) {
	if err := c.CheckAccess(caller); err != nil {
		return 0, err
	}
	return c.count(), nil
}

// IsEmpty reports whether no objects are stored.
func (c *Core[T]) IsEmpty(caller Domain) (bool, error) {
	if err := c.CheckAccess(caller); err != nil {
		return false, err
	}
	return c.count() == 0, nil
}

// IsRunning reports whether the pool is open.
func (c *Core[T]) IsRunning(caller Domain) (bool, error) {
	if err := c.CheckAccess(caller); err != nil {
		return false, err
	}
	return c.running, nil
}

// Close freezes the pool. Stored objects are kept.
func (c *Core[T]) Close(caller Domain) error {
	if err := c.CheckAccess(caller); err != nil {
		return err
	}
	c.close()
	return nil
}

// Open unfreezes a closed pool.
func (c *Core[T]) Open(caller Domain) error {
	if err := c.CheckAccess(caller); err != nil {
		return err
	}
	c.open()
	return nil
}

// Clean drops every stored object, in either state.
func (c *Core[T]) Clean(caller Domain) error {
	if err := c.CheckAccess(caller); err != nil {
		return err
	}
	c.clean()
	return nil
}

func (c *Core[T]) get() (T, error) {
	var zero T
	if !c.running {
		return zero, ErrClosed
	}
	var obj T
	if n := len(c.stack); n > 0 {
		obj = c.stack[n-1]
		c.stack[n-1] = zero
		c.stack = c.stack[:n-1]
	} else {
		obj = c.factory()
	}
	if c.onAcquire != nil {
		c.onAcquire(obj)
	}
	return obj, nil
}

func (c *Core[T]) put(obj T) error {
	if !c.running {
		return ErrClosed
	}
	if c.capacity > 0 && len(c.stack) >= c.capacity {
		return capacityReached(c.capacity)
	}
	if c.onRelease != nil {
		c.onRelease(obj)
	}
	c.stack = append(c.stack, obj)
	return nil
}

func (c *Core[T]) count() int {
	return len(c.stack)
}

func (c *Core[T]) close() {
	c.running = false
}

func (c *Core[T]) open() {
	c.running = true
}

func (c *Core[T]) clean() {
	clear(c.stack)
	c.stack = c.stack[:0]
}
