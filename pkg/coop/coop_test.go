package coop

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coachpo/syncpool/errs"
)

func TestSchedulerRunsOneTaskAtATime(t *testing.T) {
	s := NewScheduler()

	var active, peak, done atomic.Int32
	for i := 0; i < 64; i++ {
		s.Go(context.Background(), func(ctx context.Context) {
			now := active.Add(1)
			for {
				old := peak.Load()
				if now <= old || peak.CompareAndSwap(old, now) {
					break
				}
			}
			active.Add(-1)
			done.Add(1)
		})
	}
	s.Wait()

	require.Equal(t, int32(64), done.Load())
	require.Equal(t, int32(1), peak.Load())
}

func TestYieldInterleavesTasks(t *testing.T) {
	s := NewScheduler()
	var trace []string

	s.Run(context.Background(), func(ctx context.Context) {
		s.Go(ctx, func(context.Context) {
			trace = append(trace, "child")
		})
		trace = append(trace, "parent-before")
		for len(trace) < 2 {
			s.Yield(ctx)
		}
		trace = append(trace, "parent-after")
	})
	s.Wait()

	require.Equal(t, []string{"parent-before", "child", "parent-after"}, trace)
}

func TestRunInlineOnOwningScheduler(t *testing.T) {
	s := NewScheduler()
	var nested bool
	s.Run(context.Background(), func(ctx context.Context) {
		s.Run(ctx, func(inner context.Context) {
			owner, ok := FromContext(inner)
			nested = ok && owner == s
		})
	})
	require.True(t, nested)
}

func TestDomainOf(t *testing.T) {
	s := NewScheduler()
	require.Equal(t, Unscheduled, DomainOf(context.Background()))
	require.Equal(t, Unscheduled, DomainOf(nil)) //nolint:staticcheck // nil context is part of the contract.
	require.True(t, strings.HasPrefix(s.Domain(), "coop:"))
	require.NotEqual(t, s.Domain(), NewScheduler().Domain())

	var seen string
	s.Run(context.Background(), func(ctx context.Context) {
		seen = DomainOf(ctx)
	})
	require.Equal(t, s.Domain(), seen)
}

func TestMutexGrantsInSuspensionOrder(t *testing.T) {
	s := NewScheduler()
	m := NewMutex(s)
	var order []int

	s.Run(context.Background(), func(ctx context.Context) {
		if err := m.Lock(ctx); err != nil {
			t.Error(err)
			return
		}
		for i := 1; i <= 4; i++ {
			id := i
			s.Go(ctx, func(taskCtx context.Context) {
				if err := m.Lock(taskCtx); err != nil {
					return
				}
				order = append(order, id)
				m.Unlock()
			})
			for m.queued() < id {
				s.Yield(ctx)
			}
		}
		m.Unlock()
	})
	s.Wait()

	require.Equal(t, []int{1, 2, 3, 4}, order)
}

func TestMutexHeldAcrossYield(t *testing.T) {
	s := NewScheduler()
	m := NewMutex(s)
	var inside atomic.Int32
	var overlap atomic.Bool

	for i := 0; i < 8; i++ {
		s.Go(context.Background(), func(ctx context.Context) {
			if err := m.Lock(ctx); err != nil {
				return
			}
			if inside.Add(1) > 1 {
				overlap.Store(true)
			}
			s.Yield(ctx)
			s.Yield(ctx)
			inside.Add(-1)
			m.Unlock()
		})
	}
	s.Wait()

	require.False(t, overlap.Load())
}

func TestMutexRejectsForeignContext(t *testing.T) {
	s := NewScheduler()
	other := NewScheduler()
	m := NewMutex(s)

	err := m.Lock(context.Background())
	require.True(t, errors.Is(err, ErrForeignScheduler))
	code, ok := errs.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, errs.CodeIllegalAccess, code)

	other.Run(context.Background(), func(ctx context.Context) {
		err = m.Lock(ctx)
	})
	require.ErrorIs(t, err, ErrForeignScheduler)
}

func TestMutexUnlockOfUnlockedPanics(t *testing.T) {
	m := NewMutex(NewScheduler())
	require.Panics(t, m.Unlock)
}

func TestWaitPropagatesTaskPanic(t *testing.T) {
	s := NewScheduler()
	s.Go(context.Background(), func(context.Context) {
		panic("task failure")
	})
	require.Panics(t, s.Wait)
}
