// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package bridge exposes the file search through its two consumption modes.
//
// SearchFiles streams every event to an observer and returns immediately.
// SearchFilesAsync runs the search as a task on an executor and returns one
// aggregated outcome: the final results, or a list of error descriptions.
package bridge

import (
	"context"
	"errors"

	"github.com/jeranaias/filescout/internal/logging"
	"github.com/jeranaias/filescout/internal/search"
	"github.com/jeranaias/filescout/internal/stream"
	"github.com/jeranaias/filescout/internal/tasks"
)

// =============================================================================
// TOPICS AND DESCRIPTIONS
// =============================================================================

// Signal names used by the streaming mode.
const (
	TopicFinal = "search_channel_final"
	TopicError = "search_channel_error"

	// TopicInterim is reserved; nothing is sent on it unless WithInterim
	// is given.
	TopicInterim = "search_channel_unit"
)

// Topics is the topic set passed to stream.Forward.
var Topics = stream.Topics{Final: TopicFinal, Errors: TopicError, Interim: TopicInterim}

// Error descriptions returned by SearchFilesAsync.
const (
	DescDispatch   = "search task dispatch error"
	DescEmpty      = "search task returned empty result"
	DescConversion = "search task result conversion error"
	DescSystem     = "search task system error"
	DescCanceled   = "search task was canceled"
	DescAborted    = "search task was forcibly aborted"
	DescShutdown   = "search task was shutdown"
	DescJoin       = "search task join error"
	DescNoFinal    = "search ended without a final result"
)

// =============================================================================
// OPTIONS
// =============================================================================

// SearchOptions is what callers may set per search.
type SearchOptions struct {
	ContentCaseSensitive bool `json:"content_case_sensitive"`
}

type config struct {
	base     search.Options
	producer Producer
	logger   logging.Logger
	progress func(search.FileInfo)
	interim  bool
	buffer   int
	ctx      context.Context
}

// Option customizes SearchFiles and SearchFilesAsync.
type Option func(*config)

// WithBaseOptions sets the search options that SearchOptions is merged onto
// (default: search.DefaultOptions()).
func WithBaseOptions(opts search.Options) Option {
	return func(c *config) { c.base = opts }
}

// WithProducer replaces the search.Manager producer.
func WithProducer(p Producer) Option {
	return func(c *config) {
		if p != nil {
			c.producer = p
		}
	}
}

// WithLogger sets the bridge logger.
func WithLogger(logger logging.Logger) Option {
	return func(c *config) { c.logger = logging.OrNoOp(logger) }
}

// WithProgress receives interim matches in the aggregated mode.
func WithProgress(fn func(search.FileInfo)) Option {
	return func(c *config) { c.progress = fn }
}

// WithInterim forwards interim matches on TopicInterim in the streaming mode.
func WithInterim() Option {
	return func(c *config) { c.interim = true }
}

// WithBuffer sets the event channel capacity of the streaming mode.
func WithBuffer(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.buffer = n
		}
	}
}

// WithContext stops the streaming search early once ctx is done.
func WithContext(ctx context.Context) Option {
	return func(c *config) { c.ctx = ctx }
}

func newConfig(opts []Option) config {
	c := config{
		base:     search.DefaultOptions(),
		producer: ManagerProducer(),
		logger:   logging.NoOpLogger{},
		buffer:   64,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// mergeOptions applies the caller's options onto base.
func mergeOptions(base search.Options, opts SearchOptions) search.Options {
	out := base
	out.Content.CaseSensitive = opts.ContentCaseSensitive
	return out
}

// =============================================================================
// STREAMING MODE
// =============================================================================

// SearchFiles starts a search and forwards its events to obs as they arrive.
// It returns immediately; the returned channel is closed once the producer
// has finished and every event was forwarded. Observer failures are ignored.
func SearchFiles(obs stream.Observer, query search.Query, opts SearchOptions, options ...Option) <-chan struct{} {
	cfg := newConfig(options)

	events := make(chan search.Event, cfg.buffer)
	stop := cfg.producer(events, query, mergeOptions(cfg.base, opts))

	fopts := []stream.ForwardOption{stream.WithForwardLogger(cfg.logger)}
	if cfg.interim {
		fopts = append(fopts, stream.WithInterim())
	}
	done := stream.Go(events, obs, Topics, fopts...)

	if cfg.ctx != nil {
		go func() {
			select {
			case <-cfg.ctx.Done():
				stop()
			case <-done:
			}
		}()
	}
	return done
}

// =============================================================================
// AGGREGATED MODE
// =============================================================================

// SearchFilesAsync runs a search task on exec and waits for its outcome.
// It returns the final results, or the producer's error descriptions, or
// exactly one Desc* string describing why no result is available. If ctx
// ends first the task is canceled through its handle.
func SearchFilesAsync(ctx context.Context, exec *tasks.Executor, query search.Query, opts SearchOptions, options ...Option) (search.FinalResults, []string) {
	cfg := newConfig(options)

	task := NewSearchTask(query, mergeOptions(cfg.base, opts), cfg.producer)
	task.progress = cfg.progress

	handle, err := exec.Dispatch(task)
	if err != nil {
		cfg.logger.Warn("search task rejected", "error", err.Error())
		return search.FinalResults{}, []string{DescDispatch}
	}

	status, err := handle.Await(ctx)
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		if cerr := handle.Cancel(); cerr != nil {
			cfg.logger.Debug("cancel after abandoned wait", "task_id", handle.ID().String(), "error", cerr.Error())
		}
		status, err = handle.Await(context.Background())
	}
	if err != nil {
		cfg.logger.Error("search task join failed", "task_id", handle.ID().String(), "error", err.Error())
		return search.FinalResults{}, []string{DescJoin}
	}

	return convert(status, cfg.logger)
}

// convert maps a terminal status onto the boundary outcome.
func convert(status tasks.TaskStatus, logger logging.Logger) (search.FinalResults, []string) {
	switch status.Kind {
	case tasks.StatusDone:
		if status.Output.IsEmpty() {
			return search.FinalResults{}, []string{DescEmpty}
		}
		results, err := tasks.Downcast[search.FinalResults](status.Output)
		if err != nil {
			logger.Error("unexpected search task output", "error", err.Error())
			return search.FinalResults{}, []string{DescConversion}
		}
		return results, nil

	case tasks.StatusError:
		var se *SearchError
		if errors.As(status.Err, &se) {
			return search.FinalResults{}, append([]string(nil), se.Errors...)
		}
		logger.Error("search task failed", "task_id", status.TaskID.String(), "error", errString(status.Err))
		return search.FinalResults{}, []string{DescSystem}

	case tasks.StatusCanceled:
		return search.FinalResults{}, []string{DescCanceled}
	case tasks.StatusForcedAbortion:
		return search.FinalResults{}, []string{DescAborted}
	case tasks.StatusShutdown:
		return search.FinalResults{}, []string{DescShutdown}
	default:
		return search.FinalResults{}, []string{DescJoin}
	}
}

func errString(err error) string {
	if err == nil {
		return "<nil>"
	}
	return err.Error()
}
