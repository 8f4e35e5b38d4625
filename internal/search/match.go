// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package search

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/filescout/internal/util"
)

// maxSnippetRunes bounds the snippet stored for a content match.
const maxSnippetRunes = 200

// fold normalizes s to NFC and, unless caseSensitive, case-folds it.
// A cases.Caser is stateful, so each call builds its own.
func fold(s string, caseSensitive bool) string {
	s = norm.NFC.String(s)
	if caseSensitive {
		return s
	}
	return cases.Fold().String(s)
}

// =============================================================================
// NAME MATCHING
// =============================================================================

// nameMatcher decides whether an entry's name matches Query.Name.
type nameMatcher struct {
	mode          NameMode
	caseSensitive bool
	term          string
	re            *regexp.Regexp
}

func newNameMatcher(term string, opts NameOptions) (*nameMatcher, error) {
	m := &nameMatcher{mode: opts.Mode, caseSensitive: opts.CaseSensitive}
	if m.mode == "" {
		m.mode = NameContains
	}

	switch m.mode {
	case NameContains:
		m.term = fold(term, m.caseSensitive)
	case NameGlob:
		m.term = fold(filepath.ToSlash(term), m.caseSensitive)
		if err := validateGlobPattern(m.term); err != nil {
			return nil, &QueryError{Field: "name pattern", Reason: err.Error()}
		}
	case NameRegex:
		expr := norm.NFC.String(term)
		if !m.caseSensitive {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, &QueryError{Field: "name pattern", Reason: err.Error()}
		}
		m.re = re
	default:
		return nil, &QueryError{Field: "name mode", Reason: "unknown mode " + string(m.mode)}
	}
	return m, nil
}

// match reports whether the entry matches. rel is the slash-separated path
// relative to the search root.
func (m *nameMatcher) match(name, rel string) bool {
	switch m.mode {
	case NameRegex:
		return m.re.MatchString(norm.NFC.String(name))
	case NameGlob:
		if m.term == "" {
			return true
		}
		target := name
		if strings.Contains(m.term, "/") {
			target = rel
		}
		ok, _ := matchGlobPattern(m.term, fold(target, m.caseSensitive))
		return ok
	default:
		return strings.Contains(fold(name, m.caseSensitive), m.term)
	}
}

// matchGlobPattern matches a slash-separated path against a glob pattern.
// Supports:
// - * matches any sequence of characters within a path segment
// - ** matches any sequence of characters including path separators
// - ? matches any single character
func matchGlobPattern(pattern, path string) (bool, error) {
	if !strings.Contains(pattern, "**") {
		return filepath.Match(pattern, path)
	}

	parts := strings.SplitN(pattern, "**", 2)
	prefix := strings.TrimSuffix(parts[0], "/")
	suffix := strings.TrimPrefix(parts[1], "/")

	if prefix != "" {
		if !strings.HasPrefix(path, prefix) {
			return false, nil
		}
		path = strings.TrimPrefix(path[len(prefix):], "/")
	}
	return matchSuffixPattern(suffix, path)
}

// validateGlobPattern checks every segment around ** on its own, since
// matchGlobPattern stops at the first prefix mismatch.
func validateGlobPattern(pattern string) error {
	for _, seg := range strings.Split(pattern, "**") {
		if _, err := filepath.Match(strings.Trim(seg, "/"), ""); err != nil {
			return err
		}
	}
	return nil
}

// matchSuffixPattern matches suffix against path and each of its trailing
// subpaths.
func matchSuffixPattern(suffix, path string) (bool, error) {
	if suffix == "" {
		return true, nil
	}

	segments := strings.Split(path, "/")
	for i := 0; i <= len(segments); i++ {
		matched, err := matchGlobPattern(suffix, strings.Join(segments[i:], "/"))
		if err != nil {
			return false, err
		}
		if matched {
			return true, nil
		}
	}
	return false, nil
}

// =============================================================================
// CONTENT MATCHING
// =============================================================================

// contentMatch is the first line of a file containing the content term.
type contentMatch struct {
	line    int
	snippet string
}

// matchContent scans path line by line for term. It returns nil when the
// file does not contain it.
func matchContent(path, term string, caseSensitive bool) (*contentMatch, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	needle := fold(term, caseSensitive)

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := scanner.Text()
		if strings.Contains(fold(line, caseSensitive), needle) {
			return &contentMatch{
				line:    lineNumber,
				snippet: util.TruncateRunes(strings.TrimSpace(line), maxSnippetRunes),
			}, nil
		}
	}
	return nil, scanner.Err()
}

// isBinaryFileByExtension reports whether a file is likely binary.
func isBinaryFileByExtension(path string) bool {
	return binaryExts[strings.ToLower(filepath.Ext(path))]
}

var binaryExts = map[string]bool{
	".exe": true, ".dll": true, ".so": true, ".dylib": true,
	".bin": true, ".dat": true, ".db": true, ".sqlite": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".ico": true, ".bmp": true, ".tiff": true, ".webp": true,
	".pdf": true, ".doc": true, ".docx": true, ".xls": true,
	".xlsx": true, ".ppt": true, ".pptx": true,
	".zip": true, ".tar": true, ".gz": true, ".rar": true,
	".7z": true, ".bz2": true, ".xz": true,
	".mp3": true, ".mp4": true, ".avi": true, ".mov": true,
	".wav": true, ".flac": true, ".ogg": true,
	".ttf": true, ".otf": true, ".woff": true, ".woff2": true,
	".pyc": true, ".pyo": true, ".class": true,
	".o": true, ".a": true, ".lib": true,
}
