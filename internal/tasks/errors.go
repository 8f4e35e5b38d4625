// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"errors"
	"fmt"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrShutdown is returned by Dispatch once the executor is shut down.
	ErrShutdown = errors.New("executor is shut down")

	// ErrQueueFull is returned by Dispatch when MaxQueue tasks are waiting.
	ErrQueueFull = errors.New("executor queue is full")

	// ErrNilTask is returned by Dispatch for a nil task.
	ErrNilTask = errors.New("nil task")

	// ErrDuplicateTask is returned when a task with the same ID is in flight.
	ErrDuplicateTask = errors.New("task with this id is already dispatched")

	// ErrTaskNotFound is returned by Cancel for unknown or finished tasks.
	ErrTaskNotFound = errors.New("task not found")

	// ErrAlreadyInterrupted is returned when a task already received its
	// one cancellation or abort signal.
	ErrAlreadyInterrupted = errors.New("task already interrupted")

	// ErrAlreadyAwaited is returned by a second Await on the same handle.
	ErrAlreadyAwaited = errors.New("handle already awaited")

	// ErrEmptyOutput is returned by Downcast on the empty output marker.
	ErrEmptyOutput = errors.New("task output is empty")

	// ErrInvalidExecStatus is reported when Run returns a zero ExecStatus.
	ErrInvalidExecStatus = errors.New("task returned an invalid exec status")
)

// DispatchError reports that the executor refused a task. It is never
// produced by the task itself.
type DispatchError struct {
	TaskID TaskID
	Err    error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch of task %s rejected: %v", e.TaskID, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// JoinError reports that a handle could not be joined with a task outcome:
// the task panicked, the handle was awaited twice, or the wait was
// abandoned. It is distinct from any error returned by Run.
type JoinError struct {
	TaskID TaskID
	Err    error
}

func (e *JoinError) Error() string {
	return fmt.Sprintf("join of task %s failed: %v", e.TaskID, e.Err)
}

func (e *JoinError) Unwrap() error {
	return e.Err
}

// PanicError carries a panic recovered from Task.Run.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

// DowncastError reports a TaskOutput holding a different type than asked.
type DowncastError struct {
	Have string
	Want string
}

func (e *DowncastError) Error() string {
	return fmt.Sprintf("task output is %s, not %s", e.Have, e.Want)
}
