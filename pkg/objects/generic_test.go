package objects

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenericStringDescribesValueAndType(t *testing.T) {
	g := New()
	require.Equal(t, "Generic w/ value of 'null' of type <nil>", g.String())

	g.Value = 42
	require.Equal(t, "Generic w/ value of '42' of type int", g.String())

	g.Value = map[string]any{"symbol": "BTC-USDT"}
	require.Equal(t, `Generic w/ value of '{"symbol":"BTC-USDT"}' of type map[string]interface {}`, g.String())
}

func TestGenericStringFallsBackForUnencodable(t *testing.T) {
	g := New()
	g.Value = make(chan int)
	require.Contains(t, g.String(), "of type chan int")
}

func TestGenericReset(t *testing.T) {
	g := &Generic{Value: "payload"}
	g.Reset()
	require.Nil(t, g.Value)

	var nilGeneric *Generic
	require.NotPanics(t, nilGeneric.Reset)
	require.Equal(t, "Generic <nil>", nilGeneric.String())
}

func TestNewReturnsDistinctInstances(t *testing.T) {
	require.NotSame(t, New(), New())
}
