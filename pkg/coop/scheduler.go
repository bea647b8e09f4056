// Package coop provides a cooperative task scheduler and a FIFO mutex for it.
//
// A Scheduler runs any number of tasks, but at most one of them executes at a
// time: a task holds the scheduler's run token from the moment it starts until
// it finishes or suspends. Tasks suspend only at well-defined points (Mutex.Lock
// and Yield), so code between two suspension points is atomic with respect to
// every other task of the same scheduler.
//
// Scheduler state is not shared across schedulers. A Mutex belongs to exactly
// one Scheduler and refuses callers running elsewhere.
package coop

import (
	"context"
	"runtime"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
)

// Unscheduled is the domain reported for contexts that do not belong to any
// scheduler.
const Unscheduled = "coop:unscheduled"

type schedulerKey struct{}

// Scheduler serialises task execution behind a single run token.
type Scheduler struct {
	id    uuid.UUID
	token chan struct{}
	tasks conc.WaitGroup
}

// NewScheduler constructs a scheduler with a fresh identity.
func NewScheduler() *Scheduler {
	return &Scheduler{
		id:    uuid.New(),
		token: make(chan struct{}, 1),
	}
}

// ID returns the scheduler identity.
func (s *Scheduler) ID() uuid.UUID {
	return s.id
}

// Domain returns the opaque execution-domain token of the scheduler.
func (s *Scheduler) Domain() string {
	return "coop:" + s.id.String()
}

// Go spawns fn as a new task. The context handed to fn carries the scheduler
// and must be passed to every cooperative call the task makes.
func (s *Scheduler) Go(ctx context.Context, fn func(context.Context)) {
	if ctx == nil {
		ctx = context.Background()
	}
	taskCtx := context.WithValue(ctx, schedulerKey{}, s)
	s.tasks.Go(func() {
		s.acquire()
		defer s.release()
		fn(taskCtx)
	})
}

// Run executes fn as a task and waits for it to finish. When ctx already
// belongs to this scheduler, fn runs inline on the calling task.
func (s *Scheduler) Run(ctx context.Context, fn func(context.Context)) {
	if owner, ok := FromContext(ctx); ok && owner == s {
		fn(ctx)
		return
	}
	done := make(chan struct{})
	s.Go(ctx, func(taskCtx context.Context) {
		defer close(done)
		fn(taskCtx)
	})
	<-done
}

// Wait blocks until every spawned task has finished. A panic raised by a task
// is re-raised here.
func (s *Scheduler) Wait() {
	s.tasks.Wait()
}

// Yield suspends the calling task and lets other runnable tasks proceed. It
// is a no-op for contexts that do not belong to this scheduler.
func (s *Scheduler) Yield(ctx context.Context) {
	if owner, ok := FromContext(ctx); !ok || owner != s {
		return
	}
	s.release()
	runtime.Gosched()
	s.acquire()
}

func (s *Scheduler) acquire() {
	s.token <- struct{}{}
}

func (s *Scheduler) release() {
	<-s.token
}

// FromContext returns the scheduler running the task that owns ctx.
func FromContext(ctx context.Context) (*Scheduler, bool) {
	if ctx == nil {
		return nil, false
	}
	s, ok := ctx.Value(schedulerKey{}).(*Scheduler)
	return s, ok && s != nil
}

// DomainOf returns the execution-domain token of the task owning ctx, or
// Unscheduled.
func DomainOf(ctx context.Context) string {
	s, ok := FromContext(ctx)
	if !ok {
		return Unscheduled
	}
	return s.Domain()
}
