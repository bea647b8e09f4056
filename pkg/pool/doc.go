// Package pool implements a reusable-object pool with an open/closed
// lifecycle, optional capacity admission control and execution-domain
// ownership checks.
//
// Core holds the state machine and is not safe for concurrent use. Two
// variants wrap it:
//
//   - Sync guards every operation with a sync.Mutex for goroutines.
//   - Async guards every operation with a coop.Mutex for tasks of a single
//     coop.Scheduler.
//
// Objects are stored by reference in a LIFO stack: the most recently released
// object is the next one acquired. When the stack is empty, Get manufactures a
// fresh object with the configured factory and leaves the stack untouched.
//
// Every operation first checks that the caller runs in the execution domain
// that created the pool and fails with *IllegalAccessError otherwise.
package pool
