// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"fmt"
	"sync"
	"time"
)

// =============================================================================
// QUEUE ENTRY
// =============================================================================

type entryState uint8

const (
	stateQueued entryState = iota
	stateRunning
)

// entry is the executor's private record of a dispatched task.
type entry struct {
	id          TaskID
	task        Task
	priority    bool
	interrupter *Interrupter
	handle      *Handle

	// state, dispatched and started are guarded by the executor mutex.
	state      entryState
	dispatched time.Time
	started    time.Time

	abort     chan struct{}
	abortOnce sync.Once
}

func newEntry(task Task, h *Handle, interrupter *Interrupter) *entry {
	return &entry{
		id:          task.ID(),
		task:        task,
		priority:    task.WithPriority(),
		interrupter: interrupter,
		handle:      h,
		state:       stateQueued,
		dispatched:  time.Now(),
		abort:       make(chan struct{}),
	}
}

// abortNow tells the runner to stop waiting for this task.
func (en *entry) abortNow() {
	en.abortOnce.Do(func() { close(en.abort) })
}

// =============================================================================
// QUEUE
// =============================================================================

// queue holds waiting tasks in two FIFO lanes plus a registry of every task
// that has not resolved yet. All methods must be called with the executor
// mutex held.
type queue struct {
	priority []*entry
	normal   []*entry

	// registry tracks queued and running tasks by ID
	registry map[TaskID]*entry

	// maxQueue is the maximum number of waiting tasks (0 = unlimited)
	maxQueue int
}

func newQueue(maxQueue int) *queue {
	return &queue{
		priority: make([]*entry, 0),
		normal:   make([]*entry, 0),
		registry: make(map[TaskID]*entry),
		maxQueue: maxQueue,
	}
}

// push appends en to its lane.
func (q *queue) push(en *entry) error {
	if _, exists := q.registry[en.id]; exists {
		return ErrDuplicateTask
	}
	if q.maxQueue > 0 && q.len() >= q.maxQueue {
		return fmt.Errorf("%w: %d queued tasks (max: %d)", ErrQueueFull, q.len(), q.maxQueue)
	}

	if en.priority {
		q.priority = append(q.priority, en)
	} else {
		q.normal = append(q.normal, en)
	}
	q.registry[en.id] = en
	return nil
}

// pop removes the next runnable task, priority lane first. The entry stays
// in the registry until it resolves.
func (q *queue) pop() *entry {
	if len(q.priority) > 0 {
		en := q.priority[0]
		q.priority[0] = nil
		q.priority = q.priority[1:]
		return en
	}
	if len(q.normal) > 0 {
		en := q.normal[0]
		q.normal[0] = nil
		q.normal = q.normal[1:]
		return en
	}
	return nil
}

// removeQueued takes a waiting task out of its lane and the registry.
func (q *queue) removeQueued(en *entry) bool {
	lane := &q.normal
	if en.priority {
		lane = &q.priority
	}
	for i, candidate := range *lane {
		if candidate == en {
			*lane = append((*lane)[:i], (*lane)[i+1:]...)
			delete(q.registry, en.id)
			return true
		}
	}
	return false
}

// drain empties both lanes and returns the waiting tasks in run order.
func (q *queue) drain() []*entry {
	out := make([]*entry, 0, q.len())
	out = append(out, q.priority...)
	out = append(out, q.normal...)
	for _, en := range out {
		delete(q.registry, en.id)
	}
	q.priority = q.priority[:0]
	q.normal = q.normal[:0]
	return out
}

// running returns the registry entries currently executing.
func (q *queue) running() []*entry {
	out := make([]*entry, 0)
	for _, en := range q.registry {
		if en.state == stateRunning {
			out = append(out, en)
		}
	}
	return out
}

// len returns the number of waiting tasks.
func (q *queue) len() int {
	return len(q.priority) + len(q.normal)
}
