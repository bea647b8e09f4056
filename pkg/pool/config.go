package pool

import (
	"reflect"

	"github.com/coachpo/syncpool/pkg/objects"
)

// Config describes a pool at construction time. The zero value is an
// unbounded pool using the default factory and no hooks.
type Config[T any] struct {
	// Capacity bounds the number of stored objects. Zero means unbounded;
	// negative values are rejected.
	Capacity int
	// Factory produces a fresh object when Get finds the stack empty.
	Factory func() T
	// OnAcquire runs on every object handed out by Get, before it is returned.
	OnAcquire func(T)
	// OnRelease runs on every object accepted by Put, before it is stored.
	OnRelease func(T)
}

func (c Config[T]) validate() error {
	if c.Capacity < 0 {
		return invalidConfig("capacity must be positive or zero for unbounded")
	}
	return nil
}

func (c Config[T]) factory() func() T {
	if c.Factory != nil {
		return c.Factory
	}
	return DefaultFactory[T]()
}

// DefaultFactory returns the factory used when Config.Factory is nil. It
// allocates a zeroed element for pointer types, an
// *objects.Generic for interfaces it satisfies, and the zero value otherwise.
func DefaultFactory[T any]() func() T {
	typ := reflect.TypeFor[T]()
	switch {
	case typ.Kind() == reflect.Pointer:
		elem := typ.Elem()
		return func() T {
			return reflect.New(elem).Convert(typ).Interface().(T)
		}
	case typ.Kind() == reflect.Interface && reflect.TypeFor[*objects.Generic]().Implements(typ):
		return func() T {
			return any(objects.New()).(T)
		}
	default:
		return func() T {
			var zero T
			return zero
		}
	}
}
