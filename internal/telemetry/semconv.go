package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys attached to pool telemetry.
const (
	// AttrPoolName labels pooled object metrics by logical pool.
	AttrPoolName = attribute.Key("pool.name")
	// AttrPoolVariant distinguishes mutex-guarded from cooperative pools.
	AttrPoolVariant = attribute.Key("pool.variant")
	// AttrEnvironment specifies the deployment environment for every metric.
	AttrEnvironment = attribute.Key("environment")
)

// Pool variant values.
const (
	VariantSync  = "sync"
	VariantAsync = "async"
)

// PoolAttributes returns the attribute set shared by every pool instrument.
func PoolAttributes(environment, pool, variant string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrPoolName.String(pool),
		AttrPoolVariant.String(variant),
	}
}
