// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package bridge

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/filescout/internal/search"
	"github.com/jeranaias/filescout/internal/stream"
	"github.com/jeranaias/filescout/internal/tasks"
)

// =============================================================================
// PRODUCERS
// =============================================================================

// Producer starts a search that reports to events, closing events when it
// is done. The returned stop function ends the search early.
type Producer func(events chan<- search.Event, query search.Query, opts search.Options) (stop func())

// ManagerProducer runs searches with a search.Manager.
func ManagerProducer(mopts ...search.ManagerOption) Producer {
	return func(events chan<- search.Event, query search.Query, opts search.Options) func() {
		man := search.NewManager(events, opts, mopts...)
		man.Search(query)
		return man.Stop
	}
}

// =============================================================================
// ERRORS
// =============================================================================

// SearchError is the run error of a search task whose producer ended
// without a final result. Errors holds the producer's descriptions in
// arrival order.
type SearchError struct {
	Errors []string
	Err    error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("search error: [%s]", strings.Join(e.Errors, ", "))
}

func (e *SearchError) Unwrap() error { return e.Err }

// SystemError is a run error caused by the task machinery rather than the
// search itself.
type SystemError struct {
	Err error
}

func (e *SystemError) Error() string { return "system error: " + e.Err.Error() }

func (e *SystemError) Unwrap() error { return e.Err }

// =============================================================================
// SEARCH TASK
// =============================================================================

// SearchTask runs one search on the executor and folds its events into a
// single status whose output is search.FinalResults.
type SearchTask struct {
	id       tasks.TaskID
	query    search.Query
	options  search.Options
	producer Producer
	progress func(search.FileInfo)
}

// NewSearchTask creates a task for query. A nil producer uses a
// search.Manager with default settings.
func NewSearchTask(query search.Query, options search.Options, producer Producer) *SearchTask {
	if producer == nil {
		producer = ManagerProducer()
	}
	return &SearchTask{
		id:       tasks.NewTaskID(),
		query:    query,
		options:  options,
		producer: producer,
	}
}

// ID returns the task identity.
func (t *SearchTask) ID() tasks.TaskID { return t.id }

// WithPriority reports true: interactive searches go ahead of other work.
func (t *SearchTask) WithPriority() bool { return true }

// Run starts the producer and drains its events until a final result, the
// end of the stream or an interrupt.
func (t *SearchTask) Run(in *tasks.Interrupter) (tasks.ExecStatus, error) {
	events := make(chan search.Event)
	stop := t.producer(events, t.query, t.options)
	defer stop()

	var opts []stream.UnifyOption[search.FileInfo]
	if t.progress != nil {
		opts = append(opts, stream.WithProgress(t.progress))
	}

	status, err := stream.Unify(in, events, opts...)
	if err == nil {
		return status, nil
	}

	var pe *stream.ProducerErrors
	switch {
	case errors.As(err, &pe):
		return tasks.ExecStatus{}, &SearchError{Errors: pe.Errors, Err: err}
	case errors.Is(err, stream.ErrNoFinal):
		return tasks.ExecStatus{}, &SearchError{Errors: []string{DescNoFinal}, Err: err}
	default:
		return tasks.ExecStatus{}, &SystemError{Err: err}
	}
}
