// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package watch re-runs file searches when the watched directory tree
// changes.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/jeranaias/filescout/internal/bridge"
	"github.com/jeranaias/filescout/internal/logging"
	"github.com/jeranaias/filescout/internal/search"
	"github.com/jeranaias/filescout/internal/stream"
)

// TopicChange is the topic of the Change event emitted before each re-run.
const TopicChange = "watch_channel_change"

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrAlreadyWatching = errors.New("key is already being watched")
	ErrNotWatching     = errors.New("key is not being watched")
	ErrWatcherClosed   = errors.New("watcher closed")
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config controls how quickly changes turn into searches.
type Config struct {
	// Debounce is how long the tree must stay quiet before a re-run
	Debounce time.Duration

	// MinInterval is the minimum spacing between re-runs (0 = unlimited)
	MinInterval time.Duration

	// Burst is how many re-runs may happen back to back
	Burst int
}

// DefaultConfig returns the default watch configuration.
func DefaultConfig() Config {
	return Config{
		Debounce:    300 * time.Millisecond,
		MinInterval: time.Second,
		Burst:       1,
	}
}

func (c Config) limiter() *rate.Limiter {
	burst := c.Burst
	if burst < 1 {
		burst = 1
	}
	if c.MinInterval <= 0 {
		return rate.NewLimiter(rate.Inf, burst)
	}
	return rate.NewLimiter(rate.Every(c.MinInterval), burst)
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithConfig sets the debounce and rate limit.
func WithConfig(cfg Config) Option {
	return func(w *Watcher) { w.config = cfg }
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(w *Watcher) { w.logger = logging.OrNoOp(logger) }
}

// WithIgnorePatterns replaces the directory names that are never watched.
func WithIgnorePatterns(patterns []string) Option {
	return func(w *Watcher) { w.ignore = patterns }
}

// WithBridgeOptions passes options to every bridge.SearchFiles re-run.
func WithBridgeOptions(opts ...bridge.Option) Option {
	return func(w *Watcher) { w.bridgeOpts = append(w.bridgeOpts, opts...) }
}

// =============================================================================
// CHANGE EVENT
// =============================================================================

// Change describes the batch of filesystem events that triggered a re-run.
type Change struct {
	Key   string    `json:"key"`
	Root  string    `json:"root"`
	Paths []string  `json:"paths"`
	Time  time.Time `json:"time"`
}

func (c Change) String() string {
	switch len(c.Paths) {
	case 0:
		return fmt.Sprintf("[%s] change under %s", c.Key, c.Root)
	case 1:
		return fmt.Sprintf("[%s] %s changed", c.Key, c.Paths[0])
	default:
		return fmt.Sprintf("[%s] %d paths changed under %s", c.Key, len(c.Paths), c.Root)
	}
}

// =============================================================================
// WATCHER
// =============================================================================

// Watcher keeps a set of keyed watches. Each watch owns an fsnotify
// watcher over one directory tree and re-runs its query on changes.
type Watcher struct {
	obs        stream.Observer
	config     Config
	logger     logging.Logger
	ignore     []string
	bridgeOpts []bridge.Option

	mu      sync.Mutex
	targets map[string]*target
	closed  bool
}

// New creates a Watcher that forwards change and search events to obs.
func New(obs stream.Observer, opts ...Option) *Watcher {
	w := &Watcher{
		obs:     obs,
		config:  DefaultConfig(),
		logger:  logging.NoOpLogger{},
		ignore:  search.DefaultIgnorePatterns,
		targets: make(map[string]*target),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start watches path under key. When query has no directories it searches
// path. Start fails if key is already in use or path is not a directory.
func (w *Watcher) Start(key, path string, query search.Query, opts bridge.SearchOptions) error {
	root, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch %s: not a directory", path)
	}
	if len(query.Dirs) == 0 {
		query.Dirs = []string{root}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWatcherClosed
	}
	if _, ok := w.targets[key]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyWatching, key)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &target{
		w:       w,
		key:     key,
		root:    root,
		query:   query,
		opts:    opts,
		fsw:     fsw,
		limiter: w.config.limiter(),
		pending: make(map[string]struct{}),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	if err := t.addRecursive(root); err != nil {
		cancel()
		fsw.Close()
		return err
	}

	w.targets[key] = t
	go t.loop()

	w.logger.Info("watch started", "key", key, "root", root)
	return nil
}

// Stop ends the watch registered under key and waits for it to finish.
func (w *Watcher) Stop(key string) error {
	w.mu.Lock()
	t, ok := w.targets[key]
	if ok {
		delete(w.targets, key)
	}
	w.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotWatching, key)
	}
	return t.stop()
}

// StopAll ends every watch. Later calls to Start fail with ErrWatcherClosed.
func (w *Watcher) StopAll() error {
	w.mu.Lock()
	w.closed = true
	targets := make([]*target, 0, len(w.targets))
	for key, t := range w.targets {
		targets = append(targets, t)
		delete(w.targets, key)
	}
	w.mu.Unlock()

	var errs []error
	for _, t := range targets {
		if err := t.stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Keys returns the active watch keys in sorted order.
func (w *Watcher) Keys() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	keys := make([]string, 0, len(w.targets))
	for key := range w.targets {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (w *Watcher) shouldIgnore(name string) bool {
	for _, ignore := range w.ignore {
		if name == ignore {
			return true
		}
	}
	return false
}

// =============================================================================
// TARGET
// =============================================================================

type target struct {
	w       *Watcher
	key     string
	root    string
	query   search.Query
	opts    bridge.SearchOptions
	fsw     *fsnotify.Watcher
	limiter *rate.Limiter

	mu         sync.Mutex
	pending    map[string]struct{}
	lastChange time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// addRecursive adds dir and all its non-ignored subdirectories.
func (t *target) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && t.w.shouldIgnore(d.Name()) {
			return filepath.SkipDir
		}
		if err := t.fsw.Add(path); err != nil {
			if path == dir {
				return fmt.Errorf("watch %s: %w", path, err)
			}
			t.w.logger.Debug("skipping directory", "path", path, "error", err)
		}
		return nil
	})
}

func (t *target) loop() {
	defer close(t.done)

	tick := t.w.config.Debounce / 3
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return

		case event, ok := <-t.fsw.Events:
			if !ok {
				return
			}
			t.handle(event)

		case err, ok := <-t.fsw.Errors:
			if !ok {
				return
			}
			t.w.logger.Warn("watch error", "key", t.key, "error", err)
			if emitErr := t.w.obs.Emit(bridge.TopicError, []string{err.Error()}); emitErr != nil {
				t.w.logger.Debug("emit failed", "topic", bridge.TopicError, "error", emitErr)
			}

		case <-ticker.C:
			if change, ok := t.ready(time.Now()); ok {
				t.rerun(change)
			}
		}
	}
}

func (t *target) handle(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	if t.w.shouldIgnore(filepath.Base(event.Name)) {
		return
	}

	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := t.addRecursive(event.Name); err != nil {
				t.w.logger.Debug("cannot watch new directory", "path", event.Name, "error", err)
			}
		}
	}

	t.mu.Lock()
	t.pending[event.Name] = struct{}{}
	t.lastChange = time.Now()
	t.mu.Unlock()
}

// ready returns the pending batch once the tree has been quiet for the
// debounce period and the rate limit allows another run.
func (t *target) ready(now time.Time) (Change, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.pending) == 0 || now.Sub(t.lastChange) < t.w.config.Debounce {
		return Change{}, false
	}
	if !t.limiter.AllowN(now, 1) {
		return Change{}, false
	}

	paths := make([]string, 0, len(t.pending))
	for p := range t.pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	clear(t.pending)

	return Change{Key: t.key, Root: t.root, Paths: paths, Time: now}, true
}

func (t *target) rerun(change Change) {
	t.w.logger.Debug("re-running search", "key", t.key, "paths", strings.Join(change.Paths, ","))

	if err := t.w.obs.Emit(TopicChange, change); err != nil {
		t.w.logger.Debug("emit failed", "topic", TopicChange, "error", err)
	}

	// Runs never overlap. Stopping the watch stops the running search.
	opts := append([]bridge.Option{bridge.WithContext(t.ctx)}, t.w.bridgeOpts...)
	<-bridge.SearchFiles(t.w.obs, t.query, t.opts, opts...)
}

func (t *target) stop() error {
	t.cancel()
	err := t.fsw.Close()
	<-t.done
	t.w.logger.Info("watch stopped", "key", t.key)
	return err
}
