// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package search

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/filescout/internal/logging"
	"github.com/jeranaias/filescout/internal/stream"
)

// Event is the message type a Manager produces.
type Event = stream.Event[FileInfo, FinalResults]

// History kinds passed to a HistoryRecorder.
const (
	HistoryName    = "name"
	HistoryContent = "content"
)

// HistoryRecorder persists search terms. history.Store implements it.
type HistoryRecorder interface {
	Record(ctx context.Context, kind, term string) error
}

// DefaultIgnorePatterns are directory names never descended into.
var DefaultIgnorePatterns = []string{
	".git",
	"node_modules",
	"__pycache__",
	".venv",
	"venv",
	".idea",
	".vscode",
	"target",
	"dist",
	"build",
	".cache",
}

// DefaultMaxFileSize is the largest file scanned for content (5MB).
const DefaultMaxFileSize int64 = 5 * 1024 * 1024

// =============================================================================
// MANAGER
// =============================================================================

// Manager runs one search and writes its events to a channel it closes when
// done. Stop is the producer's own cancellation hook: the walk ends, no
// final event is sent and the channel is closed.
type Manager struct {
	events chan<- Event

	logger      logging.Logger
	recorder    HistoryRecorder
	ignore      []string
	maxFileSize int64
	workers     int

	mu   sync.Mutex
	opts Options

	ctx     context.Context
	cancel  context.CancelFunc
	started atomic.Bool
	done    chan struct{}

	emitMu sync.Mutex
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(logger logging.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logging.OrNoOp(logger) }
}

// WithHistoryRecorder persists name and content terms of valid searches.
func WithHistoryRecorder(r HistoryRecorder) ManagerOption {
	return func(m *Manager) { m.recorder = r }
}

// WithIgnorePatterns replaces the ignored directory names.
func WithIgnorePatterns(patterns []string) ManagerOption {
	return func(m *Manager) { m.ignore = append([]string(nil), patterns...) }
}

// WithMaxFileSize sets the largest file scanned for content.
func WithMaxFileSize(n int64) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.maxFileSize = n
		}
	}
}

// WithWorkers sets how many files are scanned for content at once.
func WithWorkers(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.workers = n
		}
	}
}

// NewManager creates a Manager that reports to events.
func NewManager(events chan<- Event, opts Options, mopts ...ManagerOption) *Manager {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultOptions().HistoryLimit
	}
	if opts.Sort.By == "" {
		opts.Sort.By = SortByPath
	}
	if opts.Name.Mode == "" {
		opts.Name.Mode = NameContains
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		events:      events,
		logger:      logging.NoOpLogger{},
		ignore:      DefaultIgnorePatterns,
		maxFileSize: DefaultMaxFileSize,
		workers:     runtime.NumCPU(),
		opts:        opts,
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	for _, opt := range mopts {
		opt(m)
	}
	return m
}

// Search starts the producer goroutine and returns immediately. A Manager
// runs a single search; later calls are ignored.
func (m *Manager) Search(q Query) {
	if !m.started.CompareAndSwap(false, true) {
		m.logger.Warn("search already started, ignoring query", "name", q.Name, "content", q.Content)
		return
	}
	go m.run(q)
}

// Stop asks a running search to end early.
func (m *Manager) Stop() {
	m.cancel()
}

// Done is closed once the event channel has been closed.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Options returns the current options, including LastDir and the history
// lists updated by the last valid search.
func (m *Manager) Options() Options {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.opts
	out.NameHistory = append([]string(nil), m.opts.NameHistory...)
	out.ContentHistory = append([]string(nil), m.opts.ContentHistory...)
	return out
}

// =============================================================================
// PRODUCER
// =============================================================================

// emit sends ev unless the search was stopped. Workers share the channel, so
// sends are serialized.
func (m *Manager) emit(ev Event) bool {
	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	select {
	case m.events <- ev:
		return true
	case <-m.ctx.Done():
		return false
	}
}

func (m *Manager) run(q Query) {
	defer close(m.done)
	defer close(m.events)
	defer m.cancel()

	start := time.Now()
	opts := m.Options()

	names, err := m.validate(q, opts)
	if err != nil {
		m.logger.Debug("rejected search query", "error", err.Error())
		m.emit(stream.Errors[FileInfo, FinalResults](err.Error()))
		return
	}

	m.logger.Debug("search started", "dirs", strings.Join(q.Dirs, ","), "name", q.Name, "content", q.Content)

	var (
		files   []FileInfo
		scanned int
		nerrs   int
	)
	for _, root := range dedupe(q.Dirs) {
		res, ok := m.searchRoot(root, q, opts, names)
		scanned += res.scanned
		nerrs += len(res.errors)
		files = append(files, res.files...)

		if len(res.errors) > 0 && !m.emit(stream.Errors[FileInfo, FinalResults](res.errors...)) {
			ok = false
		}
		if !ok {
			m.logger.Debug("search stopped", "root", root)
			return
		}
	}

	sortFiles(files, opts.Sort)
	m.remember(q)

	final := FinalResults{
		Query:    q,
		Files:    files,
		Scanned:  scanned,
		Errors:   nerrs,
		Duration: time.Since(start),
	}
	if m.emit(stream.Final[FileInfo, FinalResults](final)) {
		m.logger.Debug("search finished", "matches", len(files), "scanned", scanned,
			"errors", nerrs, "duration", final.Duration.String())
	}
}

func (m *Manager) validate(q Query, opts Options) (*nameMatcher, error) {
	dirs := 0
	for _, d := range q.Dirs {
		if strings.TrimSpace(d) != "" {
			dirs++
		}
	}
	if dirs == 0 {
		return nil, &QueryError{Field: "query", Reason: "no search directory given"}
	}
	return newNameMatcher(q.Name, opts.Name)
}

// remember records the query in LastDir and the history lists.
func (m *Manager) remember(q Query) {
	m.mu.Lock()
	if len(q.Dirs) > 0 {
		m.opts.LastDir = q.Dirs[len(q.Dirs)-1]
	}
	m.opts.NameHistory = pushHistory(m.opts.NameHistory, q.Name, m.opts.HistoryLimit)
	m.opts.ContentHistory = pushHistory(m.opts.ContentHistory, q.Content, m.opts.HistoryLimit)
	m.mu.Unlock()

	if m.recorder == nil {
		return
	}
	for _, h := range [...]struct{ kind, term string }{
		{HistoryName, q.Name},
		{HistoryContent, q.Content},
	} {
		if h.term == "" {
			continue
		}
		if err := m.recorder.Record(m.ctx, h.kind, h.term); err != nil {
			m.logger.Warn("failed to record search history", "kind", h.kind, "error", err.Error())
		}
	}
}

// rootResult is what one search root produced.
type rootResult struct {
	files   []FileInfo
	errors  []string
	scanned int
}

// searchRoot walks root. It reports false when the search was stopped.
func (m *Manager) searchRoot(root string, q Query, opts Options, names *nameMatcher) (rootResult, bool) {
	var (
		res rootResult
		mu  sync.Mutex
	)
	addErr := func(format string, args ...any) {
		mu.Lock()
		res.errors = append(res.errors, fmt.Sprintf(format, args...))
		mu.Unlock()
	}
	addFile := func(fi FileInfo) bool {
		mu.Lock()
		res.files = append(res.files, fi)
		mu.Unlock()
		return m.emit(stream.Interim[FileInfo, FinalResults](fi))
	}

	info, err := os.Stat(root)
	if err != nil {
		addErr("cannot access %s: %v", root, err)
		return res, m.ctx.Err() == nil
	}
	if !info.IsDir() {
		addErr("not a directory: %s", root)
		return res, m.ctx.Err() == nil
	}

	g, gctx := errgroup.WithContext(m.ctx)
	g.SetLimit(m.workers)

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if gctx.Err() != nil {
			return gctx.Err()
		}
		if err != nil {
			addErr("cannot read %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}
		if d.IsDir() && m.shouldIgnore(d.Name()) {
			return filepath.SkipDir
		}

		mu.Lock()
		res.scanned++
		mu.Unlock()

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		if !names.match(d.Name(), filepath.ToSlash(rel)) {
			return nil
		}
		if d.IsDir() && (!opts.Name.IncludeDirs || q.Content != "") {
			return nil
		}

		fi, err := fileInfo(path, d)
		if err != nil {
			addErr("cannot stat %s: %v", path, err)
			return nil
		}

		if q.Content == "" {
			if !addFile(fi) {
				return context.Canceled
			}
			return nil
		}

		if isBinaryFileByExtension(path) || fi.Size > m.maxFileSize {
			return nil
		}
		g.Go(func() error {
			cm, err := matchContent(path, q.Content, opts.Content.CaseSensitive)
			if err != nil {
				addErr("cannot read %s: %v", path, err)
				return nil
			}
			if cm == nil {
				return nil
			}
			fi.Line, fi.Snippet = cm.line, cm.snippet
			if !addFile(fi) {
				return context.Canceled
			}
			return nil
		})
		return nil
	})

	groupErr := g.Wait()
	if m.ctx.Err() != nil || errors.Is(groupErr, context.Canceled) || errors.Is(walkErr, context.Canceled) {
		return res, false
	}
	if walkErr != nil {
		addErr("error walking %s: %v", root, walkErr)
	}
	return res, true
}

func (m *Manager) shouldIgnore(name string) bool {
	for _, ignore := range m.ignore {
		if name == ignore {
			return true
		}
	}
	return false
}

func fileInfo(path string, d fs.DirEntry) (FileInfo, error) {
	info, err := d.Info()
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{
		Path:     path,
		Name:     d.Name(),
		Dir:      d.IsDir(),
		Size:     info.Size(),
		Modified: info.ModTime(),
	}, nil
}

func dedupe(dirs []string) []string {
	seen := make(map[string]bool, len(dirs))
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		clean := filepath.Clean(d)
		if seen[clean] {
			continue
		}
		seen[clean] = true
		out = append(out, clean)
	}
	return out
}

// sortFiles orders files by the requested key with path as the tie-breaker.
func sortFiles(files []FileInfo, opts SortOptions) {
	less := func(a, b FileInfo) bool {
		switch opts.By {
		case SortByName:
			if a.Name != b.Name {
				return a.Name < b.Name
			}
		case SortBySize:
			if a.Size != b.Size {
				return a.Size < b.Size
			}
		case SortByModified:
			if !a.Modified.Equal(b.Modified) {
				return a.Modified.Before(b.Modified)
			}
		}
		return a.Path < b.Path
	}

	sort.SliceStable(files, func(i, j int) bool {
		if opts.Descending {
			return less(files[j], files[i])
		}
		return less(files[i], files[j])
	})
}
