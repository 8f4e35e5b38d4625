// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/jeranaias/filescout/internal/logging"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config tunes an Executor.
type Config struct {
	// Workers is the number of tasks that run at once (default: NumCPU)
	Workers int

	// MaxQueue is the maximum number of waiting tasks (0 = unlimited)
	MaxQueue int

	// TaskTimeout force-aborts tasks running longer than this (0 = no timeout)
	TaskTimeout time.Duration

	// NotifyBuffer is the capacity of the notification channel (default: 100)
	NotifyBuffer int
}

// DefaultConfig returns the configuration used by New without options.
func DefaultConfig() Config {
	return Config{
		Workers:      runtime.NumCPU(),
		MaxQueue:     0,
		TaskTimeout:  0,
		NotifyBuffer: 100,
	}
}

// Option customizes an Executor.
type Option func(*Executor)

// WithConfig replaces the executor configuration.
func WithConfig(cfg Config) Option {
	return func(e *Executor) { e.cfg = cfg }
}

// WithLogger sets the logger used for lifecycle events.
func WithLogger(logger logging.Logger) Option {
	return func(e *Executor) { e.logger = logging.OrNoOp(logger) }
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

// TaskNotification reports a task reaching its terminal status.
type TaskNotification struct {
	TaskID   TaskID
	Status   StatusKind
	Error    string
	Duration time.Duration
}

// =============================================================================
// EXECUTOR
// =============================================================================

// Executor accepts tasks, runs them on a fixed worker pool with priority
// tasks ahead of the rest, and resolves one Handle per task.
//
// An Executor has an explicit lifecycle: construct it with New at process
// start and call Shutdown at process end.
type Executor struct {
	cfg    Config
	logger logging.Logger

	// mu guards queue, stopped and entry state; cond wakes idle workers
	mu      sync.Mutex
	cond    *sync.Cond
	queue   *queue
	stopped bool

	workers sync.WaitGroup
	active  sync.WaitGroup

	notifyChan chan TaskNotification
}

// New creates an Executor and starts its workers.
func New(opts ...Option) *Executor {
	e := &Executor{
		cfg:    DefaultConfig(),
		logger: logging.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.cfg.Workers <= 0 {
		e.cfg.Workers = runtime.NumCPU()
	}
	if e.cfg.NotifyBuffer <= 0 {
		e.cfg.NotifyBuffer = 100
	}

	e.cond = sync.NewCond(&e.mu)
	e.queue = newQueue(e.cfg.MaxQueue)
	e.notifyChan = make(chan TaskNotification, e.cfg.NotifyBuffer)

	e.workers.Add(e.cfg.Workers)
	for i := 0; i < e.cfg.Workers; i++ {
		go e.worker()
	}
	return e
}

// Config returns the effective configuration.
func (e *Executor) Config() Config {
	return e.cfg
}

// Dispatch queues task and returns its handle without waiting for it to
// run. It fails only when the executor cannot accept work; the error is
// then a *DispatchError. A nil task, including a typed nil pointer whose ID
// method panics, is rejected with ErrNilTask.
func (e *Executor) Dispatch(task Task) (*Handle, error) {
	if task == nil {
		return nil, &DispatchError{Err: ErrNilTask}
	}
	id, ok := taskID(task)
	if !ok {
		return nil, &DispatchError{Err: ErrNilTask}
	}

	h := newHandle(id, e)
	en := newEntry(task, h, NewInterrupter())

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil, &DispatchError{TaskID: en.id, Err: ErrShutdown}
	}
	if err := e.queue.push(en); err != nil {
		e.mu.Unlock()
		return nil, &DispatchError{TaskID: en.id, Err: err}
	}
	e.cond.Signal()
	e.mu.Unlock()

	e.logger.Debug("task dispatched", "task_id", en.id.String(), "priority", en.priority)
	return h, nil
}

// taskID reads the task's ID, reporting false when ID panics.
func taskID(task Task) (id TaskID, ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return task.ID(), true
}

// Cancel cooperatively cancels the task with the given ID.
func (e *Executor) Cancel(id TaskID) error {
	e.mu.Lock()
	en, ok := e.queue.registry[id]
	e.mu.Unlock()
	if !ok {
		return ErrTaskNotFound
	}
	return e.interrupt(en.handle, InterruptCancel)
}

// interrupt delivers the single allowed signal to the task behind h.
func (e *Executor) interrupt(h *Handle, kind InterruptKind) error {
	e.mu.Lock()
	en, ok := e.queue.registry[h.id]
	if !ok || en.handle != h {
		e.mu.Unlock()
		return ErrTaskNotFound
	}
	if !en.interrupter.signal(kind) {
		e.mu.Unlock()
		return ErrAlreadyInterrupted
	}

	if en.state == stateQueued {
		e.queue.removeQueued(en)
		e.mu.Unlock()

		status := TaskStatus{Kind: StatusCanceled, TaskID: en.id}
		if kind == InterruptAbort {
			status.Kind = StatusForcedAbortion
		}
		e.resolve(en, status, nil)
		return nil
	}
	e.mu.Unlock()

	if kind == InterruptAbort {
		en.abortNow()
	}
	e.logger.Debug("task interrupted", "task_id", en.id.String(), "kind", kind.String())
	return nil
}

// Shutdown stops accepting work, resolves waiting tasks as Shutdown, and
// asks running tasks to stop. Tasks still running when ctx ends are
// force-aborted. Every outstanding handle is resolved before Shutdown
// returns.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil
	}
	e.stopped = true
	waiting := e.queue.drain()
	running := e.queue.running()
	e.cond.Broadcast()
	e.mu.Unlock()

	e.logger.Info("executor shutting down", "queued", len(waiting), "running", len(running))

	for _, en := range waiting {
		en.interrupter.signal(InterruptShutdown)
		e.resolve(en, TaskStatus{Kind: StatusShutdown, TaskID: en.id, Partial: en.task}, nil)
	}
	for _, en := range running {
		en.interrupter.signal(InterruptShutdown)
	}

	done := make(chan struct{})
	go func() {
		e.active.Wait()
		e.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		for _, en := range running {
			en.abortNow()
		}
		<-done
		return fmt.Errorf("shutdown deadline reached, running tasks aborted: %w", ctx.Err())
	}
}

// =============================================================================
// INTROSPECTION
// =============================================================================

// Running returns the IDs of tasks currently executing.
func (e *Executor) Running() []TaskID {
	e.mu.Lock()
	defer e.mu.Unlock()

	running := e.queue.running()
	ids := make([]TaskID, 0, len(running))
	for _, en := range running {
		ids = append(ids, en.id)
	}
	return ids
}

// QueuedCount returns the number of tasks waiting for a worker.
func (e *Executor) QueuedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue.len()
}

// IsShutdown reports whether Shutdown has been called.
func (e *Executor) IsShutdown() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopped
}

// Summary returns a one-line description of the executor state.
func (e *Executor) Summary() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return fmt.Sprintf("Workers: %d | Running: %d | Queued: %d (priority %d)",
		e.cfg.Workers, len(e.queue.running()), e.queue.len(), len(e.queue.priority))
}

// Notifications returns the channel of terminal status notifications.
// Notifications are dropped when nobody drains the channel.
func (e *Executor) Notifications() <-chan TaskNotification {
	return e.notifyChan
}

func (e *Executor) notify(n TaskNotification) {
	select {
	case e.notifyChan <- n:
	default:
		e.logger.Warn("notification channel full, dropped notification",
			"task_id", n.TaskID.String(), "status", n.Status.String())
	}
}
