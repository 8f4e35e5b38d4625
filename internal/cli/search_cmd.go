// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// search_cmd.go - search, stream and watch commands.

package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/filescout/internal/bridge"
	"github.com/jeranaias/filescout/internal/events"
	"github.com/jeranaias/filescout/internal/history"
	"github.com/jeranaias/filescout/internal/search"
	"github.com/jeranaias/filescout/internal/stream"
	"github.com/jeranaias/filescout/internal/watch"
)

// watchBuffer is how many events the watch command queues for output.
const watchBuffer = 1024

// searchBoolFlags are the search flags that never take a value.
var searchBoolFlags = []string{"case", "name-case", "desc", "dirs", "progress", "json"}

// searchRequest is a parsed search command line.
type searchRequest struct {
	query    search.Query
	opts     bridge.SearchOptions
	base     search.Options
	json     bool
	progress bool
	timeout  time.Duration
}

// newSearchRequest returns the request described by the configuration
// alone, with remembered terms loaded from the history store.
func (a *App) newSearchRequest(ctx context.Context) searchRequest {
	req := searchRequest{
		base: a.Config.SearchOptions(),
		opts: bridge.SearchOptions{ContentCaseSensitive: a.Config.Search.ContentCaseSensitive},
	}
	if a.History != nil {
		limit := req.base.HistoryLimit
		if names, err := a.History.Terms(ctx, history.KindName, limit); err == nil {
			req.base.NameHistory = names
		} else {
			a.Logger.Warn("cannot load name history", "error", err)
		}
		if contents, err := a.History.Terms(ctx, history.KindContent, limit); err == nil {
			req.base.ContentHistory = contents
		} else {
			a.Logger.Warn("cannot load content history", "error", err)
		}
	}
	return req
}

// apply overlays the flags in p onto req.
func (req *searchRequest) apply(p *ArgParser) error {
	if p.HasFlag("name", "n") {
		req.query.Name = p.Flag("name", "n")
	}
	if p.HasFlag("content", "c") {
		req.query.Content = p.Flag("content", "c")
	}
	if p.HasFlag("case") {
		req.opts.ContentCaseSensitive = p.BoolFlag("case")
	}
	if p.HasFlag("name-case") {
		req.base.Name.CaseSensitive = p.BoolFlag("name-case")
	}
	if p.HasFlag("dirs") {
		req.base.Name.IncludeDirs = p.BoolFlag("dirs")
	}
	if p.HasFlag("desc") {
		req.base.Sort.Descending = p.BoolFlag("desc")
	}
	if v := p.Flag("mode"); v != "" {
		mode, err := search.ParseNameMode(v)
		if err != nil {
			return &ValidationError{Field: "--mode", Value: v, Reason: "want contains, glob or regex"}
		}
		req.base.Name.Mode = mode
	}
	if v := p.Flag("sort"); v != "" {
		by, err := search.ParseSortBy(v)
		if err != nil {
			return &ValidationError{Field: "--sort", Value: v, Reason: "want name, path, size or modified"}
		}
		req.base.Sort.By = by
	}

	timeout, err := p.FlagDuration("timeout", req.timeout)
	if err != nil {
		return err
	}
	req.timeout = timeout
	req.json = req.json || p.BoolFlag("json")
	req.progress = req.progress || p.BoolFlag("progress")
	return nil
}

// parseSearch parses "[dir...] [flags]". Without directories the
// configured root is searched.
func (a *App) parseSearch(ctx context.Context, args []string) (searchRequest, error) {
	p := NewArgParser(args, searchBoolFlags...)

	req := a.newSearchRequest(ctx)
	if err := req.apply(p); err != nil {
		return req, err
	}

	req.query.Dirs = p.PositionalFrom(0)
	if len(req.query.Dirs) == 0 {
		req.query.Dirs = []string{a.Config.Search.Root}
	}
	return req, nil
}

// bridgeOptions wires the configured producer into the bridge.
func (a *App) bridgeOptions(req searchRequest) []bridge.Option {
	var recorder search.HistoryRecorder
	if a.History != nil {
		recorder = a.History
	}
	return []bridge.Option{
		bridge.WithBaseOptions(req.base),
		bridge.WithProducer(bridge.ManagerProducer(a.Config.ManagerOptions(a.Logger, recorder)...)),
		bridge.WithLogger(a.Logger),
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

// =============================================================================
// SEARCH (AGGREGATED)
// =============================================================================

// HandleSearch runs one search task on the executor and prints its outcome.
func (a *App) HandleSearch(ctx context.Context, args []string) error {
	req, err := a.parseSearch(ctx, args)
	if err != nil {
		return err
	}
	return a.runSearch(ctx, "search", req)
}

func (a *App) runSearch(ctx context.Context, command string, req searchRequest) error {
	ctx, cancel := withTimeout(ctx, req.timeout)
	defer cancel()

	obs := a.observer(req.json)
	opts := a.bridgeOptions(req)
	if req.progress && !req.json {
		opts = append(opts, bridge.WithProgress(func(f search.FileInfo) {
			_ = obs.Emit(bridge.TopicInterim, f)
		}))
	}

	results, errs := bridge.SearchFilesAsync(ctx, a.Exec, req.query, req.opts, opts...)
	if errs != nil {
		if req.json {
			if err := NewJSONErrorResponse(command, errs...).Write(a.Stdout); err != nil {
				return err
			}
		} else {
			_ = obs.Emit(bridge.TopicError, errs)
		}
		return &SearchFailedError{Errors: errs, Err: ctx.Err()}
	}

	if req.json {
		return NewJSONResponse(command, results).Write(a.Stdout)
	}
	return obs.Emit(bridge.TopicFinal, results)
}

// =============================================================================
// STREAM
// =============================================================================

// outcome records what a streaming search delivered.
type outcome struct {
	mu    sync.Mutex
	final bool
	errs  []string
}

func (o *outcome) wrap(obs stream.Observer) stream.Observer {
	return stream.ObserverFunc(func(topic string, payload any) error {
		o.mu.Lock()
		switch topic {
		case bridge.TopicFinal:
			o.final = true
		case bridge.TopicError:
			if batch, ok := payload.([]string); ok {
				o.errs = append(o.errs, batch...)
			}
		}
		o.mu.Unlock()
		return obs.Emit(topic, payload)
	})
}

// HandleStream runs a search and prints its events as they arrive.
func (a *App) HandleStream(ctx context.Context, args []string) error {
	req, err := a.parseSearch(ctx, args)
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx, req.timeout)
	defer cancel()

	var out outcome
	obs := a.observer(req.json)
	opts := append(a.bridgeOptions(req), bridge.WithContext(ctx))
	if req.progress {
		opts = append(opts, bridge.WithInterim())
	}
	<-bridge.SearchFiles(out.wrap(obs), req.query, req.opts, opts...)

	out.mu.Lock()
	defer out.mu.Unlock()
	switch {
	case out.final:
		return nil
	case ctx.Err() != nil:
		_ = obs.Emit(bridge.TopicError, []string{bridge.DescCanceled})
		return &SearchFailedError{Errors: []string{bridge.DescCanceled}, Err: ctx.Err()}
	case len(out.errs) == 0:
		_ = obs.Emit(bridge.TopicError, []string{bridge.DescNoFinal})
		return &SearchFailedError{Errors: []string{bridge.DescNoFinal}}
	default:
		return &SearchFailedError{Errors: out.errs}
	}
}

// =============================================================================
// WATCH
// =============================================================================

// HandleWatch prints an initial search for every directory, then re-runs
// it on changes until ctx is done.
func (a *App) HandleWatch(ctx context.Context, args []string) error {
	req, err := a.parseSearch(ctx, args)
	if err != nil {
		return err
	}
	if req.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.timeout)
		defer cancel()
	}

	// Watchers emit from their own goroutines; the bus keeps a slow
	// terminal from stalling them.
	bus := events.NewBus(watchBuffer)
	sub := bus.Subscribe()
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		out := a.observer(req.json)
		for msg := range sub.Events() {
			_ = out.Emit(msg.Topic, msg.Payload)
		}
	}()
	defer func() {
		_ = bus.Close()
		<-printed
		if n := sub.Dropped(); n > 0 {
			a.Logger.Warn("watch output fell behind", "dropped", n)
		}
	}()

	var obs stream.Observer = bus
	opts := a.bridgeOptions(req)
	if req.progress {
		opts = append(opts, bridge.WithInterim())
	}

	w := watch.New(obs,
		watch.WithConfig(a.Config.WatchSettings()),
		watch.WithLogger(a.Logger),
		watch.WithIgnorePatterns(a.Config.Search.IgnorePatterns),
		watch.WithBridgeOptions(opts...))
	defer func() {
		if err := w.StopAll(); err != nil {
			a.Logger.Warn("stopping watches", "error", err)
		}
	}()

	for _, dir := range req.query.Dirs {
		query := req.query
		query.Dirs = []string{dir}

		<-bridge.SearchFiles(obs, query, req.opts, append(opts, bridge.WithContext(ctx))...)
		if ctx.Err() != nil {
			return nil
		}
		if err := w.Start(dir, dir, query, req.opts); err != nil {
			return &CommandError{Command: "watch", Action: "start", Reason: dir, Err: err}
		}
	}

	fmt.Fprintf(a.Stderr, "watching %s (Ctrl+C to stop)\n", strings.Join(displayDirs(req.query.Dirs), ", "))
	<-ctx.Done()
	return nil
}

func displayDirs(dirs []string) []string {
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if abs, err := filepath.Abs(d); err == nil {
			d = abs
		}
		out = append(out, d)
	}
	return out
}
