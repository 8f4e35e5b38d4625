// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package search

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/filescout/internal/stream"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// writeTree creates files under dir. Keys are slash-separated relative paths.
func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

type outcome struct {
	interims []FileInfo
	errors   [][]string
	finals   []FinalResults
}

// runSearch runs one search to completion and collects its events.
func runSearch(t *testing.T, q Query, opts Options, mopts ...ManagerOption) (outcome, *Manager) {
	t.Helper()

	events := make(chan Event, 16)
	m := NewManager(events, opts, mopts...)
	m.Search(q)

	var out outcome
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out, m
			}
			switch ev.Kind {
			case stream.KindInterim:
				out.interims = append(out.interims, ev.Interim)
			case stream.KindErrors:
				out.errors = append(out.errors, ev.Errors)
			case stream.KindFinal:
				out.finals = append(out.finals, ev.Final)
			}
		case <-timeout:
			t.Fatal("search did not close its channel")
		}
	}
}

func names(files []FileInfo) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Name)
	}
	return out
}

func sampleTree(t *testing.T) string {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"Alpha.txt":                "first line\nSecond Needle here\n",
		"beta.go":                  "package beta\n\nfunc needle() {}\n",
		"sub/ALPHABET.md":          "# Alphabet\n",
		"sub/deep/gamma.go":        "package gamma\n",
		"node_modules/alpha.js":    "ignored\n",
		"image.png":                "needle in a binary\n",
		"notes/ünïcode-alpha.txt":  "naïve café\n",
	})
	return dir
}

// =============================================================================
// NAME MATCHING
// =============================================================================

func TestSearch_NameContainsCaseInsensitive(t *testing.T) {
	dir := sampleTree(t)

	out, _ := runSearch(t, Query{Dirs: []string{dir}, Name: "alpha"}, DefaultOptions())

	require.Empty(t, out.errors)
	require.Len(t, out.finals, 1)
	final := out.finals[0]
	assert.ElementsMatch(t, []string{"Alpha.txt", "ALPHABET.md", "ünïcode-alpha.txt"}, names(final.Files))
	assert.Len(t, out.interims, 3, "one interim event per match")
	assert.Equal(t, []string{dir}, final.Query.Dirs)
	assert.Greater(t, final.Scanned, 3)
}

func TestSearch_NameCaseSensitive(t *testing.T) {
	dir := sampleTree(t)

	opts := DefaultOptions()
	opts.Name.CaseSensitive = true
	out, _ := runSearch(t, Query{Dirs: []string{dir}, Name: "ALPHA"}, opts)

	require.Len(t, out.finals, 1)
	assert.Equal(t, []string{"ALPHABET.md"}, names(out.finals[0].Files))
}

func TestSearch_NameGlob(t *testing.T) {
	dir := sampleTree(t)

	tests := []struct {
		pattern string
		want    []string
	}{
		{"*.go", []string{"beta.go", "gamma.go"}},
		{"sub/**/*.go", []string{"gamma.go"}},
		{"**/*.MD", []string{"ALPHABET.md"}},
		{"", []string{"Alpha.txt", "ALPHABET.md", "beta.go", "gamma.go", "image.png", "ünïcode-alpha.txt"}},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			opts := DefaultOptions()
			opts.Name.Mode = NameGlob
			out, _ := runSearch(t, Query{Dirs: []string{dir}, Name: tt.pattern}, opts)

			require.Len(t, out.finals, 1)
			assert.ElementsMatch(t, tt.want, names(out.finals[0].Files))
		})
	}
}

func TestSearch_NameRegex(t *testing.T) {
	dir := sampleTree(t)

	opts := DefaultOptions()
	opts.Name.Mode = NameRegex
	out, _ := runSearch(t, Query{Dirs: []string{dir}, Name: `^(beta|gamma)\.go$`}, opts)

	require.Len(t, out.finals, 1)
	assert.ElementsMatch(t, []string{"beta.go", "gamma.go"}, names(out.finals[0].Files))
}

func TestSearch_IncludeDirs(t *testing.T) {
	dir := sampleTree(t)

	opts := DefaultOptions()
	opts.Name.IncludeDirs = true
	out, _ := runSearch(t, Query{Dirs: []string{dir}, Name: "deep"}, opts)

	require.Len(t, out.finals, 1)
	require.Len(t, out.finals[0].Files, 1)
	assert.True(t, out.finals[0].Files[0].Dir)
}

func TestSearch_IgnoredDirectories(t *testing.T) {
	dir := sampleTree(t)

	out, _ := runSearch(t, Query{Dirs: []string{dir}, Name: ".js"}, DefaultOptions())
	require.Len(t, out.finals, 1)
	assert.Empty(t, out.finals[0].Files)

	out, _ = runSearch(t, Query{Dirs: []string{dir}, Name: ".js"}, DefaultOptions(), WithIgnorePatterns(nil))
	require.Len(t, out.finals, 1)
	assert.Equal(t, []string{"alpha.js"}, names(out.finals[0].Files))
}

// =============================================================================
// CONTENT MATCHING
// =============================================================================

func TestSearch_ContentCaseInsensitive(t *testing.T) {
	dir := sampleTree(t)

	out, _ := runSearch(t, Query{Dirs: []string{dir}, Content: "NEEDLE"}, DefaultOptions(), WithWorkers(2))

	require.Len(t, out.finals, 1)
	files := out.finals[0].Files
	assert.ElementsMatch(t, []string{"Alpha.txt", "beta.go"}, names(files), "binary files are skipped")

	for _, f := range files {
		switch f.Name {
		case "Alpha.txt":
			assert.Equal(t, 2, f.Line)
			assert.Equal(t, "Second Needle here", f.Snippet)
		case "beta.go":
			assert.Equal(t, 3, f.Line)
		}
	}
}

func TestSearch_ContentCaseSensitive(t *testing.T) {
	dir := sampleTree(t)

	opts := DefaultOptions()
	opts.Content.CaseSensitive = true
	out, _ := runSearch(t, Query{Dirs: []string{dir}, Content: "Needle"}, opts)

	require.Len(t, out.finals, 1)
	assert.Equal(t, []string{"Alpha.txt"}, names(out.finals[0].Files))
}

func TestSearch_ContentUnicodeFolding(t *testing.T) {
	dir := sampleTree(t)

	out, _ := runSearch(t, Query{Dirs: []string{dir}, Content: "CAFÉ"}, DefaultOptions())

	require.Len(t, out.finals, 1)
	assert.Equal(t, []string{"ünïcode-alpha.txt"}, names(out.finals[0].Files))
}

func TestSearch_ContentRespectsMaxFileSize(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"big.txt":   strings.Repeat("x", 64) + "needle\n",
		"small.txt": "needle\n",
	})

	out, _ := runSearch(t, Query{Dirs: []string{dir}, Content: "needle"}, DefaultOptions(), WithMaxFileSize(32))

	require.Len(t, out.finals, 1)
	assert.Equal(t, []string{"small.txt"}, names(out.finals[0].Files))
}

// =============================================================================
// ERRORS AND INVALID QUERIES
// =============================================================================

func TestSearch_InvalidQueriesEmitErrorsWithoutFinal(t *testing.T) {
	dir := t.TempDir()

	regexOpts := DefaultOptions()
	regexOpts.Name.Mode = NameRegex
	globOpts := DefaultOptions()
	globOpts.Name.Mode = NameGlob

	tests := []struct {
		name  string
		query Query
		opts  Options
		want  string
	}{
		{"no dirs", Query{Name: "x"}, DefaultOptions(), "no search directory"},
		{"blank dirs", Query{Dirs: []string{" "}}, DefaultOptions(), "no search directory"},
		{"bad regex", Query{Dirs: []string{dir}, Name: "("}, regexOpts, "invalid name pattern"},
		{"bad glob", Query{Dirs: []string{dir}, Name: "[a"}, globOpts, "invalid name pattern"},
		{"bad glob after **", Query{Dirs: []string{dir}, Name: "src/**/["}, globOpts, "invalid name pattern"},
		{"bad glob before **", Query{Dirs: []string{dir}, Name: "[/**/*.go"}, globOpts, "invalid name pattern"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _ := runSearch(t, tt.query, tt.opts)

			assert.Empty(t, out.finals)
			require.Len(t, out.errors, 1)
			require.Len(t, out.errors[0], 1)
			assert.Contains(t, out.errors[0][0], tt.want)
		})
	}
}

func TestSearch_MissingRootReportsErrorThenFinal(t *testing.T) {
	dir := sampleTree(t)
	missing := filepath.Join(dir, "does-not-exist")

	out, _ := runSearch(t, Query{Dirs: []string{missing, dir}, Name: "beta"}, DefaultOptions())

	require.Len(t, out.errors, 1)
	assert.Contains(t, out.errors[0][0], "cannot access")
	require.Len(t, out.finals, 1)
	assert.Equal(t, 1, out.finals[0].Errors)
	assert.Equal(t, []string{"beta.go"}, names(out.finals[0].Files))
}

func TestSearch_StopEndsWithoutFinal(t *testing.T) {
	dir := sampleTree(t)

	events := make(chan Event)
	m := NewManager(events, DefaultOptions())
	m.Search(Query{Dirs: []string{dir}})
	m.Stop()

	for ev := range events {
		require.NotEqual(t, stream.KindFinal, ev.Kind)
	}
	select {
	case <-m.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("manager did not finish after Stop")
	}
}

func TestSearch_SecondSearchIgnored(t *testing.T) {
	dir := sampleTree(t)

	events := make(chan Event, 64)
	m := NewManager(events, DefaultOptions())
	m.Search(Query{Dirs: []string{dir}, Name: "beta"})
	m.Search(Query{Dirs: []string{dir}, Name: "gamma"})

	finals := 0
	for ev := range events {
		if ev.Kind == stream.KindFinal {
			finals++
			assert.Equal(t, "beta", ev.Final.Query.Name)
		}
	}
	assert.Equal(t, 1, finals)
}

// =============================================================================
// SORTING AND HISTORY
// =============================================================================

func TestSearch_SortBySizeDescending(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"a.txt": "1",
		"b.txt": "333",
		"c.txt": "22",
	})

	opts := DefaultOptions()
	opts.Sort = SortOptions{By: SortBySize, Descending: true}
	out, _ := runSearch(t, Query{Dirs: []string{dir}}, opts)

	require.Len(t, out.finals, 1)
	assert.Equal(t, []string{"b.txt", "c.txt", "a.txt"}, names(out.finals[0].Files))
}

func TestSortFiles(t *testing.T) {
	now := time.Now()
	files := []FileInfo{
		{Path: "/b/x", Name: "x", Size: 2, Modified: now},
		{Path: "/a/y", Name: "y", Size: 1, Modified: now.Add(-time.Hour)},
		{Path: "/c/w", Name: "w", Size: 2, Modified: now.Add(time.Hour)},
	}

	tests := []struct {
		opts SortOptions
		want []string
	}{
		{SortOptions{By: SortByPath}, []string{"y", "x", "w"}},
		{SortOptions{By: SortByName}, []string{"w", "x", "y"}},
		{SortOptions{By: SortBySize}, []string{"y", "x", "w"}},
		{SortOptions{By: SortByModified, Descending: true}, []string{"w", "x", "y"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.opts.By), func(t *testing.T) {
			sorted := append([]FileInfo(nil), files...)
			sortFiles(sorted, tt.opts)
			assert.Equal(t, tt.want, names(sorted))
		})
	}
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []string
	err     error
}

func (f *fakeRecorder) Record(_ context.Context, kind, term string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, kind+":"+term)
	return f.err
}

func TestSearch_HistoryAndLastDir(t *testing.T) {
	dir := sampleTree(t)
	rec := &fakeRecorder{}

	opts := DefaultOptions()
	opts.NameHistory = []string{"older", "beta"}
	out, m := runSearch(t, Query{Dirs: []string{dir}, Name: "beta", Content: "needle"}, opts, WithHistoryRecorder(rec))
	require.Len(t, out.finals, 1)

	got := m.Options()
	assert.Equal(t, dir, got.LastDir)
	assert.Equal(t, []string{"beta", "older"}, got.NameHistory)
	assert.Equal(t, []string{"needle"}, got.ContentHistory)
	assert.Equal(t, []string{"name:beta", "content:needle"}, rec.entries)
}

func TestSearch_HistoryRecorderFailureIsNotFatal(t *testing.T) {
	dir := sampleTree(t)
	rec := &fakeRecorder{err: errors.New("disk full")}

	out, _ := runSearch(t, Query{Dirs: []string{dir}, Name: "beta"}, DefaultOptions(), WithHistoryRecorder(rec))
	require.Len(t, out.finals, 1)
	assert.Empty(t, out.errors)
}

func TestPushHistory(t *testing.T) {
	assert.Equal(t, []string{"a"}, pushHistory(nil, "a", 3))
	assert.Equal(t, []string{"b", "a"}, pushHistory([]string{"a", "b"}, "b", 3))
	assert.Equal(t, []string{"d", "a", "b"}, pushHistory([]string{"a", "b", "c"}, "d", 3))
	assert.Equal(t, []string{"a"}, pushHistory([]string{"a"}, "", 3))
}

// =============================================================================
// PARSING AND GLOBS
// =============================================================================

func TestParseNameMode(t *testing.T) {
	for in, want := range map[string]NameMode{"": NameContains, "GLOB": NameGlob, " regex ": NameRegex} {
		got, err := ParseNameMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseNameMode("fuzzy")
	var qe *QueryError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, "name mode", qe.Field)
}

func TestParseSortBy(t *testing.T) {
	for in, want := range map[string]SortBy{"": SortByPath, "Size": SortBySize, "modified": SortByModified, "name": SortByName} {
		got, err := ParseSortBy(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseSortBy("random")
	require.Error(t, err)
}

func TestMatchGlobPattern(t *testing.T) {
	tests := []struct {
		pattern, path string
		want          bool
	}{
		{"*.go", "main.go", true},
		{"*.go", "cmd/main.go", false},
		{"**/*.go", "cmd/main.go", true},
		{"**/*.go", "main.go", true},
		{"cmd/**", "cmd/a/b.txt", true},
		{"cmd/**/*.go", "pkg/a.go", false},
		{"src/**/test_?.py", "src/a/b/test_1.py", true},
	}
	for _, tt := range tests {
		got, err := matchGlobPattern(tt.pattern, tt.path)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s vs %s", tt.pattern, tt.path)
	}
}

func TestValidateGlobPattern(t *testing.T) {
	for _, pattern := range []string{"*.go", "**/*.go", "src/**/test_?.py", "cmd/**", "a/**/b/**/*.txt"} {
		assert.NoError(t, validateGlobPattern(pattern), pattern)
	}
	for _, pattern := range []string{"[", "src/**/[", "[/**/*.go", "a/**/b/**/[x"} {
		assert.ErrorIs(t, validateGlobPattern(pattern), filepath.ErrBadPattern, pattern)
	}

	_, err := newNameMatcher("src/**/[", NameOptions{Mode: NameGlob})
	var qe *QueryError
	require.ErrorAs(t, err, &qe)
}
