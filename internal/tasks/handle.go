// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"sync"
	"sync/atomic"
)

// Handle is the caller's only reference to a dispatched task. It resolves
// exactly once with the task's terminal status.
type Handle struct {
	id   TaskID
	exec *Executor

	done    chan struct{}
	once    sync.Once
	status  TaskStatus
	joinErr error

	awaited atomic.Bool
}

func newHandle(id TaskID, exec *Executor) *Handle {
	return &Handle{
		id:   id,
		exec: exec,
		done: make(chan struct{}),
	}
}

// ID returns the identity of the dispatched task.
func (h *Handle) ID() TaskID {
	return h.id
}

// Done is closed once the handle has resolved.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Await blocks until the task resolves and returns its terminal status.
//
// A non-nil error is always a *JoinError: the task panicked, the handle was
// already awaited, or ctx ended first. An abandoned wait (ctx done) does not
// consume the result, so Await may be called again.
func (h *Handle) Await(ctx context.Context) (TaskStatus, error) {
	if !h.awaited.CompareAndSwap(false, true) {
		return TaskStatus{}, &JoinError{TaskID: h.id, Err: ErrAlreadyAwaited}
	}

	select {
	case <-h.done:
		return h.status, h.joinErr
	case <-ctx.Done():
		h.awaited.Store(false)
		return TaskStatus{}, &JoinError{TaskID: h.id, Err: ctx.Err()}
	}
}

// Cancel asks the task to stop cooperatively. A task still waiting in the
// queue resolves Canceled without running.
func (h *Handle) Cancel() error {
	return h.exec.interrupt(h, InterruptCancel)
}

// ForceAbort resolves the handle as ForcedAbortion without waiting for the
// task to cooperate. The task's eventual result is discarded.
func (h *Handle) ForceAbort() error {
	return h.exec.interrupt(h, InterruptAbort)
}

// resolve records the terminal outcome. Only the first call has effect.
func (h *Handle) resolve(status TaskStatus, joinErr error) bool {
	resolved := false
	h.once.Do(func() {
		h.status = status
		h.joinErr = joinErr
		close(h.done)
		resolved = true
	})
	return resolved
}
