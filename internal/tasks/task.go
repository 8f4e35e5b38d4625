// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tasks provides the executor that runs cancellable background work.
package tasks

import (
	"reflect"

	"github.com/google/uuid"
)

// =============================================================================
// TASK IDENTITY
// =============================================================================

// TaskID identifies a task for its whole lifetime.
type TaskID = uuid.UUID

// NewTaskID returns a fresh random (v4) task identifier.
func NewTaskID() TaskID {
	return uuid.New()
}

// =============================================================================
// TASK CONTRACT
// =============================================================================

// Task is a unit of cancellable work owned by the Executor once dispatched.
//
// Run is the only method allowed to block. It must poll the interrupter at
// every iteration boundary and return Canceled() once it has been signaled.
// Unrecoverable failures are returned as typed errors; partial failures
// belong in the success value.
type Task interface {
	ID() TaskID
	WithPriority() bool
	Run(interrupter *Interrupter) (ExecStatus, error)
}

// =============================================================================
// EXEC STATUS (returned by Task.Run)
// =============================================================================

// ExecKind tags an ExecStatus.
type ExecKind uint8

const (
	execInvalid ExecKind = iota
	// ExecDone means the task finished and produced an output.
	ExecDone
	// ExecCanceled means the task honored a cooperative interruption.
	ExecCanceled
	// ExecForcedAbortion means the task gave up on its own hard stop.
	ExecForcedAbortion
	// ExecShutdown means the task stopped because the executor is closing
	// and carries whatever partial state it wants to hand back.
	ExecShutdown
)

// String returns the string representation of the kind.
func (k ExecKind) String() string {
	switch k {
	case ExecDone:
		return "Done"
	case ExecCanceled:
		return "Canceled"
	case ExecForcedAbortion:
		return "ForcedAbortion"
	case ExecShutdown:
		return "Shutdown"
	default:
		return "Invalid"
	}
}

// ExecStatus is the outcome a task reports from a single Run.
type ExecStatus struct {
	kind    ExecKind
	output  TaskOutput
	partial any
}

// Done reports successful completion. The output may be Empty() but is
// always present.
func Done(out TaskOutput) ExecStatus {
	return ExecStatus{kind: ExecDone, output: out}
}

// Canceled reports that the task stopped because its interrupter fired.
func Canceled() ExecStatus {
	return ExecStatus{kind: ExecCanceled}
}

// ForcedAbortion reports a hard stop decided by the task itself.
func ForcedAbortion() ExecStatus {
	return ExecStatus{kind: ExecForcedAbortion}
}

// Shutdown reports a stop caused by executor shutdown, with partial state.
func Shutdown(partial any) ExecStatus {
	return ExecStatus{kind: ExecShutdown, partial: partial}
}

// Kind returns the status tag.
func (s ExecStatus) Kind() ExecKind { return s.kind }

// Output returns the output of a Done status.
func (s ExecStatus) Output() TaskOutput { return s.output }

// Partial returns the partial state of a Shutdown status.
func (s ExecStatus) Partial() any { return s.partial }

// =============================================================================
// TASK OUTPUT
// =============================================================================

// TaskOutput is a type-erased task result: either a payload with its
// dynamic type recorded, or the explicit empty marker (the zero value).
type TaskOutput struct {
	typ   reflect.Type
	value any
}

// Out wraps v as an output payload. A nil v yields Empty().
func Out(v any) TaskOutput {
	if v == nil {
		return Empty()
	}
	return TaskOutput{typ: reflect.TypeOf(v), value: v}
}

// Empty returns the explicit empty output marker.
func Empty() TaskOutput {
	return TaskOutput{}
}

// IsEmpty reports whether this is the empty marker.
func (o TaskOutput) IsEmpty() bool { return o.typ == nil }

// TypeName returns the dynamic type of the payload, or "empty".
func (o TaskOutput) TypeName() string {
	if o.typ == nil {
		return "empty"
	}
	return o.typ.String()
}

// Downcast recovers a typed payload from o. It fails with ErrEmptyOutput for
// the empty marker and with a *DowncastError when the types differ.
func Downcast[T any](o TaskOutput) (T, error) {
	var zero T
	if o.IsEmpty() {
		return zero, ErrEmptyOutput
	}
	v, ok := o.value.(T)
	if !ok {
		return zero, &DowncastError{
			Have: o.typ.String(),
			Want: reflect.TypeOf((*T)(nil)).Elem().String(),
		}
	}
	return v, nil
}

// =============================================================================
// TASK STATUS (resolved by a Handle)
// =============================================================================

// StatusKind tags a TaskStatus.
type StatusKind uint8

const (
	// StatusDone carries the task output.
	StatusDone StatusKind = iota + 1
	// StatusError carries the typed error returned by Run.
	StatusError
	// StatusCanceled means cooperative cancellation completed.
	StatusCanceled
	// StatusForcedAbortion means the executor gave up on the task.
	StatusForcedAbortion
	// StatusShutdown means the executor shut down before the task finished.
	StatusShutdown
)

// String returns the string representation of the kind.
func (k StatusKind) String() string {
	switch k {
	case StatusDone:
		return "Done"
	case StatusError:
		return "Error"
	case StatusCanceled:
		return "Canceled"
	case StatusForcedAbortion:
		return "ForcedAbortion"
	case StatusShutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

// TaskStatus is the single terminal outcome of a dispatched task.
// Only the field matching Kind is meaningful.
type TaskStatus struct {
	Kind   StatusKind
	TaskID TaskID

	// Output is set for StatusDone.
	Output TaskOutput

	// Err is set for StatusError.
	Err error

	// Partial is set for StatusShutdown. For tasks that never started it
	// is the Task itself so callers can re-dispatch it later.
	Partial any
}
