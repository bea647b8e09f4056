//go:build debug

package poolmgr

import (
	"runtime/debug"
	"sync"

	"github.com/coachpo/syncpool/pkg/objects"
)

type debugState struct {
	mu     sync.Mutex
	stacks map[*objects.Generic]string
}

func newDebugState() *debugState {
	return &debugState{stacks: make(map[*objects.Generic]string)}
}

func (d *debugState) recordAcquire(obj *objects.Generic) {
	if d == nil || obj == nil {
		return
	}
	stack := string(debug.Stack())
	d.mu.Lock()
	d.stacks[obj] = stack
	d.mu.Unlock()
}

func (d *debugState) recordRelease(obj *objects.Generic) {
	if d == nil || obj == nil {
		return
	}
	d.mu.Lock()
	delete(d.stacks, obj)
	d.mu.Unlock()
}

func (d *debugState) activeStacks() []string {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.stacks) == 0 {
		return nil
	}
	out := make([]string, 0, len(d.stacks))
	for _, stack := range d.stacks {
		out = append(out, stack)
	}
	return out
}
