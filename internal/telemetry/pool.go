package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/coachpo/syncpool/pkg/pool"
)

// PoolInstruments counts objects flowing through one pool.
type PoolInstruments struct {
	acquired metric.Int64Counter
	released metric.Int64Counter
	created  metric.Int64Counter
	attrs    metric.MeasurementOption
}

// NewPoolInstruments creates the counters for a pool identified by attrs.
func NewPoolInstruments(meter metric.Meter, attrs ...attribute.KeyValue) (*PoolInstruments, error) {
	acquired, err := meter.Int64Counter("syncpool.pool.acquired",
		metric.WithDescription("Objects handed out by Get"),
		metric.WithUnit("{object}"))
	if err != nil {
		return nil, fmt.Errorf("acquired counter: %w", err)
	}
	released, err := meter.Int64Counter("syncpool.pool.released",
		metric.WithDescription("Objects accepted by Put"),
		metric.WithUnit("{object}"))
	if err != nil {
		return nil, fmt.Errorf("released counter: %w", err)
	}
	created, err := meter.Int64Counter("syncpool.pool.created",
		metric.WithDescription("Objects manufactured by the factory on an empty stack"),
		metric.WithUnit("{object}"))
	if err != nil {
		return nil, fmt.Errorf("created counter: %w", err)
	}
	return &PoolInstruments{
		acquired: acquired,
		released: released,
		created:  created,
		attrs:    metric.WithAttributes(attrs...),
	}, nil
}

// Instrument returns cfg with its factory and hooks wrapped so every
// acquisition, release and factory call is counted. Existing hooks still run.
func Instrument[T any](pi *PoolInstruments, cfg pool.Config[T]) pool.Config[T] {
	if pi == nil {
		return cfg
	}
	factory := cfg.Factory
	if factory == nil {
		factory = pool.DefaultFactory[T]()
	}
	onAcquire, onRelease := cfg.OnAcquire, cfg.OnRelease

	cfg.Factory = func() T {
		pi.created.Add(context.Background(), 1, pi.attrs)
		return factory()
	}
	cfg.OnAcquire = func(obj T) {
		pi.acquired.Add(context.Background(), 1, pi.attrs)
		if onAcquire != nil {
			onAcquire(obj)
		}
	}
	cfg.OnRelease = func(obj T) {
		pi.released.Add(context.Background(), 1, pi.attrs)
		if onRelease != nil {
			onRelease(obj)
		}
	}
	return cfg
}

// Counter reports the stored-object count of a pool.
type Counter interface {
	Count() (int, error)
}

// ObservePool registers observable gauges reporting the stored-object count
// and configured capacity of a pool. A capacity of zero is reported as -1
// (unbounded). Count errors skip the observation.
func ObservePool(meter metric.Meter, p Counter, capacity int, attrs ...attribute.KeyValue) error {
	opt := metric.WithAttributes(attrs...)
	if _, err := meter.Int64ObservableGauge("syncpool.pool.stored",
		metric.WithDescription("Objects currently stored in the pool"),
		metric.WithUnit("{object}"),
		metric.WithInt64Callback(func(_ context.Context, observer metric.Int64Observer) error {
			n, err := p.Count()
			if err != nil {
				return nil
			}
			observer.Observe(int64(n), opt)
			return nil
		}),
	); err != nil {
		return fmt.Errorf("stored gauge: %w", err)
	}
	reported := int64(capacity)
	if capacity <= 0 {
		reported = -1
	}
	if _, err := meter.Int64ObservableGauge("syncpool.pool.capacity",
		metric.WithDescription("Configured pool capacity, -1 when unbounded"),
		metric.WithUnit("{object}"),
		metric.WithInt64Callback(func(_ context.Context, observer metric.Int64Observer) error {
			observer.Observe(reported, opt)
			return nil
		}),
	); err != nil {
		return fmt.Errorf("capacity gauge: %w", err)
	}
	return nil
}
