// Package objects provides the default value holders handed out by pools
// when no factory is configured.
package objects

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// Generic is an empty-valued holder for arbitrary payloads.
type Generic struct {
	Value any
}

// New allocates an empty Generic.
func New() *Generic {
	return new(Generic)
}

// Reset clears the held value.
func (g *Generic) Reset() {
	if g == nil {
		return
	}
	g.Value = nil
}

// String describes the current value and its runtime type.
func (g *Generic) String() string {
	if g == nil {
		return "Generic <nil>"
	}
	return fmt.Sprintf("Generic w/ value of '%s' of type %s", describe(g.Value), typeName(g.Value))
}

func describe(v any) string {
	if v == nil {
		return "null"
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(encoded)
}

func typeName(v any) string {
	if v == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%T", v)
}
