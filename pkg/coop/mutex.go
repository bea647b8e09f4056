package coop

import (
	"context"

	"github.com/coachpo/syncpool/errs"
)

// ErrForeignScheduler is returned when a Mutex is locked from a context that
// is not running on the mutex's scheduler.
var ErrForeignScheduler = errs.New("coop", errs.CodeIllegalAccess,
	errs.WithMessage("context is not running on the mutex scheduler"),
	errs.WithRemediation("dispatch the call onto the owning scheduler"))

// Mutex is a cooperative lock. Lock grants are FIFO relative to the order in
// which tasks suspended on it. All fields are only touched while holding the
// scheduler run token.
type Mutex struct {
	sched   *Scheduler
	locked  bool
	waiters []chan struct{}
}

// NewMutex constructs a mutex bound to s.
func NewMutex(s *Scheduler) *Mutex {
	return &Mutex{sched: s}
}

// Lock acquires the mutex, suspending the calling task while another task
// holds it. Queued tasks are not released by ctx cancellation.
func (m *Mutex) Lock(ctx context.Context) error {
	if owner, ok := FromContext(ctx); !ok || owner != m.sched {
		return ErrForeignScheduler
	}
	if !m.locked {
		m.locked = true
		return nil
	}
	grant := make(chan struct{})
	m.waiters = append(m.waiters, grant)
	m.sched.release()
	<-grant
	m.sched.acquire()
	return nil
}

// Unlock releases the mutex. Ownership passes directly to the oldest waiter,
// if any. Unlocking an unlocked mutex panics.
func (m *Mutex) Unlock() {
	if !m.locked {
		panic("coop: unlock of unlocked mutex")
	}
	if len(m.waiters) == 0 {
		m.locked = false
		return
	}
	next := m.waiters[0]
	m.waiters[0] = nil
	m.waiters = m.waiters[1:]
	close(next)
}

func (m *Mutex) queued() int {
	return len(m.waiters)
}
