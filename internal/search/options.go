// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package search implements the file search producer.
//
// A Manager walks one or more directories, matches entries by name and
// optionally by content, and reports progress over a stream.Event channel:
// one interim event per match, error batches for unreadable entries, and a
// single final event with the sorted results.
package search

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// QUERY
// =============================================================================

// Query describes one search run. Empty Name and Content match every file.
type Query struct {
	Dirs    []string `json:"dirs"`
	Name    string   `json:"name,omitempty"`
	Content string   `json:"content,omitempty"`
}

// QueryError is reported when a query cannot be run at all.
type QueryError struct {
	Field  string
	Reason string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// =============================================================================
// OPTIONS
// =============================================================================

// NameMode selects how Query.Name is interpreted.
type NameMode string

const (
	// NameContains matches names containing the term.
	NameContains NameMode = "contains"

	// NameGlob matches shell patterns; patterns with a slash match the
	// path relative to the search root and may use **.
	NameGlob NameMode = "glob"

	// NameRegex matches a regular expression against the name.
	NameRegex NameMode = "regex"
)

// ParseNameMode parses a mode name.
func ParseNameMode(s string) (NameMode, error) {
	switch NameMode(strings.ToLower(strings.TrimSpace(s))) {
	case NameContains, "":
		return NameContains, nil
	case NameGlob:
		return NameGlob, nil
	case NameRegex:
		return NameRegex, nil
	default:
		return NameContains, &QueryError{Field: "name mode", Reason: fmt.Sprintf("unknown mode %q (want contains, glob or regex)", s)}
	}
}

// SortBy selects the ordering of final results.
type SortBy string

const (
	SortByName     SortBy = "name"
	SortByPath     SortBy = "path"
	SortBySize     SortBy = "size"
	SortByModified SortBy = "modified"
)

// ParseSortBy parses a sort key.
func ParseSortBy(s string) (SortBy, error) {
	switch SortBy(strings.ToLower(strings.TrimSpace(s))) {
	case SortByPath, "":
		return SortByPath, nil
	case SortByName:
		return SortByName, nil
	case SortBySize:
		return SortBySize, nil
	case SortByModified:
		return SortByModified, nil
	default:
		return SortByPath, &QueryError{Field: "sort", Reason: fmt.Sprintf("unknown key %q (want name, path, size or modified)", s)}
	}
}

// NameOptions controls name matching.
type NameOptions struct {
	CaseSensitive bool     `json:"case_sensitive"`
	Mode          NameMode `json:"mode"`
	IncludeDirs   bool     `json:"include_dirs"`
}

// ContentOptions controls content matching.
type ContentOptions struct {
	CaseSensitive bool `json:"case_sensitive"`
}

// SortOptions controls result ordering.
type SortOptions struct {
	By         SortBy `json:"by"`
	Descending bool   `json:"descending"`
}

// Options is the full option set of a Manager. LastDir and the history
// lists are updated by every valid search.
type Options struct {
	Name           NameOptions    `json:"name"`
	Content        ContentOptions `json:"content"`
	Sort           SortOptions    `json:"sort"`
	LastDir        string         `json:"last_dir,omitempty"`
	NameHistory    []string       `json:"name_history,omitempty"`
	ContentHistory []string       `json:"content_history,omitempty"`

	// HistoryLimit bounds both history lists (default: 20)
	HistoryLimit int `json:"history_limit"`
}

// DefaultOptions returns case-insensitive "contains" matching sorted by path.
func DefaultOptions() Options {
	return Options{
		Name:         NameOptions{Mode: NameContains},
		Content:      ContentOptions{},
		Sort:         SortOptions{By: SortByPath},
		HistoryLimit: 20,
	}
}

// pushHistory puts term at the front of list, dropping older duplicates and
// anything beyond limit.
func pushHistory(list []string, term string, limit int) []string {
	if term == "" {
		return list
	}
	out := make([]string, 0, len(list)+1)
	out = append(out, term)
	for _, existing := range list {
		if existing != term {
			out = append(out, existing)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// =============================================================================
// RESULTS
// =============================================================================

// FileInfo is one matching entry.
type FileInfo struct {
	Path     string    `json:"path"`
	Name     string    `json:"name"`
	Dir      bool      `json:"dir,omitempty"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`

	// Line and Snippet locate the first content match (0 when the query
	// has no content term)
	Line    int    `json:"line,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// FinalResults is the payload of the final event.
type FinalResults struct {
	Query    Query         `json:"query"`
	Files    []FileInfo    `json:"files"`
	Scanned  int           `json:"scanned"`
	Errors   int           `json:"errors"`
	Duration time.Duration `json:"duration"`
}
