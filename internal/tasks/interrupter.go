// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"sync/atomic"
)

// InterruptKind says why an Interrupter fired.
type InterruptKind uint32

const (
	// InterruptNone means the interrupter has not fired.
	InterruptNone InterruptKind = iota
	// InterruptCancel is a cooperative cancel request.
	InterruptCancel
	// InterruptShutdown is sent to running tasks when the executor closes.
	InterruptShutdown
	// InterruptAbort precedes an executor forced abortion.
	InterruptAbort
)

// String returns the string representation of the kind.
func (k InterruptKind) String() string {
	switch k {
	case InterruptNone:
		return "none"
	case InterruptCancel:
		return "cancel"
	case InterruptShutdown:
		return "shutdown"
	case InterruptAbort:
		return "abort"
	default:
		return "unknown"
	}
}

// Interrupter is the cooperative cancellation token handed to Task.Run.
// It fires at most once; the first signal wins and later ones are refused.
type Interrupter struct {
	ctx    context.Context
	cancel context.CancelFunc
	kind   atomic.Uint32
}

// NewInterrupter returns an interrupter that has not fired.
func NewInterrupter() *Interrupter {
	ctx, cancel := context.WithCancel(context.Background())
	return &Interrupter{ctx: ctx, cancel: cancel}
}

// Interrupted reports whether a signal has been received. Tasks poll this
// between units of work.
func (i *Interrupter) Interrupted() bool {
	return i.kind.Load() != uint32(InterruptNone)
}

// Kind returns the signal received, or InterruptNone.
func (i *Interrupter) Kind() InterruptKind {
	return InterruptKind(i.kind.Load())
}

// Done is closed when the interrupter fires, for use in select.
func (i *Interrupter) Done() <-chan struct{} {
	return i.ctx.Done()
}

// Context returns a context canceled when the interrupter fires, for
// handing to blocking calls inside Run.
func (i *Interrupter) Context() context.Context {
	return i.ctx
}

// Cancel fires a cooperative cancel. It returns false if the interrupter
// had already fired.
func (i *Interrupter) Cancel() bool {
	return i.signal(InterruptCancel)
}

func (i *Interrupter) signal(kind InterruptKind) bool {
	if !i.kind.CompareAndSwap(uint32(InterruptNone), uint32(kind)) {
		return false
	}
	i.cancel()
	return true
}

// release frees the underlying context once the task has returned.
func (i *Interrupter) release() {
	i.cancel()
}
