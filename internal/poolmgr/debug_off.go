//go:build !debug

package poolmgr

import "github.com/coachpo/syncpool/pkg/objects"

type debugState struct{}

func newDebugState() *debugState { return nil }

func (d *debugState) recordAcquire(*objects.Generic) {}

func (d *debugState) recordRelease(*objects.Generic) {}

func (d *debugState) activeStacks() []string { return nil }
