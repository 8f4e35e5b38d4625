// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tasks provides the executor that runs cancellable background work.
//
// A Task is dispatched to an Executor, which schedules it on a fixed pool of
// workers (priority tasks first, never preempting running work) and hands
// back a Handle. The handle resolves exactly once with a TaskStatus.
//
// # Key Types
//
//   - Task: the unit of work (ID, WithPriority, Run)
//   - Interrupter: cooperative cancellation token polled by Run
//   - ExecStatus: what Run reports (Done, Canceled, ForcedAbortion, Shutdown)
//   - TaskOutput: type-erased payload recovered with Downcast
//   - Executor: worker pool, priority queue and task registry
//   - Handle: future for the terminal TaskStatus
//
// # Usage
//
//	exec := tasks.New(tasks.WithConfig(tasks.Config{Workers: 4}))
//	defer exec.Shutdown(context.Background())
//
//	handle, err := exec.Dispatch(myTask)
//	if err != nil {
//	    return err // *DispatchError: the executor refused the work
//	}
//
//	status, err := handle.Await(ctx)
//	if err != nil {
//	    return err // *JoinError: panic or abandoned wait
//	}
//	if status.Kind == tasks.StatusDone {
//	    result, err := tasks.Downcast[MyResult](status.Output)
//	}
package tasks
