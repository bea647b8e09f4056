//go:build debug

package poolmgr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDebugTracksAcquisitionStacks(t *testing.T) {
	m := New()
	require.NoError(t, m.RegisterPool("frames", 1, nil))
	e, err := m.lookup("frames")
	require.NoError(t, err)

	obj, err := m.Get(context.Background(), "frames")
	require.NoError(t, err)
	stacks := e.debug.activeStacks()
	require.Len(t, stacks, 1)
	require.Contains(t, stacks[0], "TestDebugTracksAcquisitionStacks")

	require.NoError(t, m.Put("frames", obj))
	require.Empty(t, e.debug.activeStacks())
}
