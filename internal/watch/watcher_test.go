// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package watch

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/filescout/internal/bridge"
	"github.com/jeranaias/filescout/internal/search"
)

// recorder collects emitted events.
type recorder struct {
	mu     sync.Mutex
	topics []string
	events chan any
}

func newRecorder() *recorder {
	return &recorder{events: make(chan any, 64)}
}

func (r *recorder) Emit(topic string, payload any) error {
	r.mu.Lock()
	r.topics = append(r.topics, topic)
	r.mu.Unlock()
	r.events <- payload
	return nil
}

func (r *recorder) next(t *testing.T) any {
	t.Helper()
	select {
	case p := <-r.events:
		return p
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func fastConfig() Config {
	return Config{Debounce: 30 * time.Millisecond, Burst: 1}
}

func TestWatcher_RerunsSearchOnChange(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()
	w := New(rec, WithConfig(fastConfig()))
	t.Cleanup(func() { w.StopAll() })

	require.NoError(t, w.Start("src", dir, search.Query{Name: "needle"}, bridge.SearchOptions{}))
	assert.Equal(t, []string{"src"}, w.Keys())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "needle.txt"), []byte("x"), 0644))

	change, ok := rec.next(t).(Change)
	require.True(t, ok, "first event must be the change")
	assert.Equal(t, "src", change.Key)
	assert.Contains(t, change.Paths, filepath.Join(dir, "needle.txt"))

	final, ok := rec.next(t).(search.FinalResults)
	require.True(t, ok)
	require.Len(t, final.Files, 1)
	assert.Equal(t, "needle.txt", final.Files[0].Name)

	rec.mu.Lock()
	assert.Equal(t, []string{TopicChange, bridge.TopicFinal}, rec.topics)
	rec.mu.Unlock()
}

func TestWatcher_WatchesNewSubdirectories(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()
	w := New(rec, WithConfig(fastConfig()))
	t.Cleanup(func() { w.StopAll() })

	require.NoError(t, w.Start("k", dir, search.Query{Name: "deep"}, bridge.SearchOptions{}))

	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0755))
	_, ok := rec.next(t).(Change)
	require.True(t, ok)
	_, ok = rec.next(t).(search.FinalResults)
	require.True(t, ok)

	require.NoError(t, os.WriteFile(filepath.Join(sub, "deep.txt"), []byte("x"), 0644))
	change, ok := rec.next(t).(Change)
	require.True(t, ok)
	assert.Contains(t, change.Paths, filepath.Join(sub, "deep.txt"))

	final, ok := rec.next(t).(search.FinalResults)
	require.True(t, ok)
	require.Len(t, final.Files, 1)
}

func TestWatcher_StartErrors(t *testing.T) {
	dir := t.TempDir()
	w := New(newRecorder())
	t.Cleanup(func() { w.StopAll() })

	require.NoError(t, w.Start("a", dir, search.Query{}, bridge.SearchOptions{}))
	assert.ErrorIs(t, w.Start("a", dir, search.Query{}, bridge.SearchOptions{}), ErrAlreadyWatching)

	assert.Error(t, w.Start("b", filepath.Join(dir, "missing"), search.Query{}, bridge.SearchOptions{}))

	file := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	assert.Error(t, w.Start("c", file, search.Query{}, bridge.SearchOptions{}))
}

func TestWatcher_StopAndStopAll(t *testing.T) {
	w := New(newRecorder())

	require.NoError(t, w.Start("a", t.TempDir(), search.Query{}, bridge.SearchOptions{}))
	require.NoError(t, w.Start("b", t.TempDir(), search.Query{}, bridge.SearchOptions{}))
	assert.Equal(t, []string{"a", "b"}, w.Keys())

	require.NoError(t, w.Stop("a"))
	assert.ErrorIs(t, w.Stop("a"), ErrNotWatching)
	assert.Equal(t, []string{"b"}, w.Keys())

	require.NoError(t, w.StopAll())
	assert.Empty(t, w.Keys())
	assert.ErrorIs(t, w.Start("c", t.TempDir(), search.Query{}, bridge.SearchOptions{}), ErrWatcherClosed)
}

func TestTarget_ReadyDebounceAndLimit(t *testing.T) {
	w := New(newRecorder(), WithConfig(Config{Debounce: time.Second, MinInterval: time.Minute, Burst: 1}))
	tg := &target{w: w, key: "k", root: "/r", limiter: w.config.limiter(), pending: map[string]struct{}{}}

	now := time.Now()
	_, ok := tg.ready(now)
	assert.False(t, ok, "nothing pending")

	tg.pending["/r/b"] = struct{}{}
	tg.pending["/r/a"] = struct{}{}
	tg.lastChange = now

	_, ok = tg.ready(now.Add(500 * time.Millisecond))
	assert.False(t, ok, "still debouncing")

	change, ok := tg.ready(now.Add(2 * time.Second))
	require.True(t, ok)
	assert.Equal(t, []string{"/r/a", "/r/b"}, change.Paths)
	assert.Empty(t, tg.pending)

	tg.pending["/r/c"] = struct{}{}
	_, ok = tg.ready(now.Add(3 * time.Second))
	assert.False(t, ok, "rate limited")
	assert.Len(t, tg.pending, 1, "limited changes stay pending")

	_, ok = tg.ready(now.Add(2 * time.Minute))
	assert.True(t, ok)
}

func TestWatcher_IgnoredDirectories(t *testing.T) {
	w := New(newRecorder(), WithIgnorePatterns([]string{"node_modules"}))
	assert.True(t, w.shouldIgnore("node_modules"))
	assert.False(t, w.shouldIgnore("src"))
}

func TestChange_String(t *testing.T) {
	assert.Equal(t, "[k] change under /r", Change{Key: "k", Root: "/r"}.String())
	assert.Equal(t, "[k] /r/a changed", Change{Key: "k", Root: "/r", Paths: []string{"/r/a"}}.String())
	assert.Equal(t, "[k] 2 paths changed under /r", Change{Key: "k", Root: "/r", Paths: []string{"/r/a", "/r/b"}}.String())
}
