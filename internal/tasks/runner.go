// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"runtime/debug"
	"time"
)

// =============================================================================
// WORKER LOOP
// =============================================================================

// worker takes tasks off the queue until the executor shuts down.
func (e *Executor) worker() {
	defer e.workers.Done()

	for {
		e.mu.Lock()
		for !e.stopped && e.queue.len() == 0 {
			e.cond.Wait()
		}
		if e.stopped {
			e.mu.Unlock()
			return
		}
		en := e.queue.pop()
		en.state = stateRunning
		en.started = time.Now()
		e.active.Add(1)
		e.mu.Unlock()

		e.execute(en)
	}
}

// =============================================================================
// TASK EXECUTION
// =============================================================================

type runResult struct {
	status ExecStatus
	err    error
	panic  *PanicError
}

// execute runs one task and resolves its handle. The task body runs on its
// own goroutine so the worker can give up on it (abort or timeout) without
// waiting for it to cooperate; the buffered result channel lets an
// abandoned task finish without blocking.
func (e *Executor) execute(en *entry) {
	defer e.active.Done()

	e.logger.Debug("task started", "task_id", en.id.String(),
		"queued_for", en.started.Sub(en.dispatched).String())

	results := make(chan runResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				results <- runResult{panic: &PanicError{Value: r, Stack: debug.Stack()}}
			}
		}()
		status, err := en.task.Run(en.interrupter)
		results <- runResult{status: status, err: err}
	}()

	var timeout <-chan time.Time
	if e.cfg.TaskTimeout > 0 {
		timer := time.NewTimer(e.cfg.TaskTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case r := <-results:
		en.interrupter.release()
		e.finish(en, r)
	case <-en.abort:
		e.resolve(en, TaskStatus{Kind: StatusForcedAbortion, TaskID: en.id}, nil)
	case <-timeout:
		en.interrupter.signal(InterruptAbort)
		e.logger.Warn("task timed out, aborting", "task_id", en.id.String(),
			"timeout", e.cfg.TaskTimeout.String())
		e.resolve(en, TaskStatus{Kind: StatusForcedAbortion, TaskID: en.id}, nil)
	}
}

// finish maps what Run returned onto the task's terminal status.
func (e *Executor) finish(en *entry, r runResult) {
	if r.panic != nil {
		e.logger.Error("task panicked", "task_id", en.id.String(), "panic", r.panic.Error(),
			"stack", string(r.panic.Stack))
		e.resolve(en, TaskStatus{Kind: StatusError, TaskID: en.id, Err: r.panic},
			&JoinError{TaskID: en.id, Err: r.panic})
		return
	}

	if r.err != nil {
		e.resolve(en, TaskStatus{Kind: StatusError, TaskID: en.id, Err: r.err}, nil)
		return
	}

	status := TaskStatus{TaskID: en.id}
	switch r.status.kind {
	case ExecDone:
		status.Kind = StatusDone
		status.Output = r.status.output
	case ExecCanceled:
		// A task honouring an abort returns Canceled; the stronger signal wins.
		switch en.interrupter.Kind() {
		case InterruptShutdown:
			status.Kind = StatusShutdown
			status.Partial = en.task
		case InterruptAbort:
			status.Kind = StatusForcedAbortion
		default:
			status.Kind = StatusCanceled
		}
	case ExecForcedAbortion:
		status.Kind = StatusForcedAbortion
	case ExecShutdown:
		status.Kind = StatusShutdown
		status.Partial = r.status.partial
	default:
		status.Kind = StatusError
		status.Err = ErrInvalidExecStatus
	}
	e.resolve(en, status, nil)
}

// resolve drops the task from the registry, settles the handle and emits a
// notification. Later calls for the same task are ignored. The registry
// entry goes first so a woken awaiter never sees the task as addressable.
func (e *Executor) resolve(en *entry, status TaskStatus, joinErr error) {
	e.mu.Lock()
	if current, ok := e.queue.registry[en.id]; ok && current == en {
		delete(e.queue.registry, en.id)
	}
	var duration time.Duration
	if !en.started.IsZero() {
		duration = time.Since(en.started)
	}
	e.mu.Unlock()

	if !en.handle.resolve(status, joinErr) {
		return
	}

	n := TaskNotification{TaskID: en.id, Status: status.Kind, Duration: duration}
	if status.Err != nil {
		n.Error = status.Err.Error()
	}
	if joinErr != nil {
		n.Error = joinErr.Error()
	}
	e.notify(n)

	e.logger.Debug("task resolved", "task_id", en.id.String(), "status", status.Kind.String(),
		"duration", duration.String())
}
