// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// repl.go - Interactive search prompt with line editing and history.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/filescout/internal/config"
	"github.com/jeranaias/filescout/internal/search"
)

const replHelp = `Type a name term to search, optionally followed by search flags:
  main.go                      files named like main.go
  --content TODO               files containing TODO
  *.go --mode glob --sort size glob match sorted by size

Commands:
  :dirs DIR...     change the searched directories
  :case            toggle case sensitive content matching
  :show            print the current settings
  :help            show this help
  :quit            leave (also Ctrl+D)
`

// replSession holds the settings that persist between prompts.
type replSession struct {
	app *App
	req searchRequest
}

// HandleRepl starts the interactive prompt. Arguments set the initial
// directories and flags.
func (a *App) HandleRepl(ctx context.Context, args []string) error {
	req, err := a.parseSearch(ctx, args)
	if err != nil {
		return err
	}
	s := &replSession{app: a, req: req}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(s.complete)

	historyFile := replHistoryPath()
	if f, err := os.Open(historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	defer saveReplHistory(line, historyFile, a)

	fmt.Fprintf(a.Stderr, "searching %s (:help for commands)\n", strings.Join(displayDirs(s.req.query.Dirs), ", "))
	for {
		input, err := line.Prompt("filescout> ")
		if err != nil {
			if !errors.Is(err, liner.ErrPromptAborted) && !errors.Is(err, io.EOF) {
				return err
			}
			fmt.Fprintln(a.Stderr)
			return nil
		}
		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}

		quit, err := s.execute(ctx, input)
		if err != nil && !IsReported(err) {
			fmt.Fprintf(a.Stderr, "Error: %v\n", err)
		}
		if quit || ctx.Err() != nil {
			return nil
		}
	}
}

// execute runs one prompt line and reports whether the session should end.
func (s *replSession) execute(ctx context.Context, input string) (bool, error) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return false, nil
	}

	switch fields[0] {
	case ":q", ":quit", ":exit":
		return true, nil
	case ":help", ":h", "?":
		fmt.Fprint(s.app.Stdout, replHelp)
		return false, nil
	case ":case":
		s.req.opts.ContentCaseSensitive = !s.req.opts.ContentCaseSensitive
		fmt.Fprintf(s.app.Stdout, "case sensitive content: %v\n", s.req.opts.ContentCaseSensitive)
		return false, nil
	case ":dirs":
		if len(fields) < 2 {
			return false, &ValidationError{Field: ":dirs", Reason: "needs at least one directory", Example: ":dirs src docs"}
		}
		s.req.query.Dirs = fields[1:]
		return false, nil
	case ":show":
		s.show()
		return false, nil
	}
	if strings.HasPrefix(fields[0], ":") {
		return false, &ValidationError{Field: "command", Value: fields[0], Reason: "unknown command", Example: ":help"}
	}

	req := s.req
	req.query.Name, req.query.Content = "", ""
	p := NewArgParser(fields, searchBoolFlags...)
	if err := req.apply(p); err != nil {
		return false, err
	}
	if name := strings.Join(p.PositionalFrom(0), " "); name != "" {
		req.query.Name = name
	}

	err := s.app.runSearch(ctx, "repl", req)
	if err == nil {
		s.remember(req.query)
	}
	return false, err
}

// remember keeps the terms for completion in later prompts.
func (s *replSession) remember(q search.Query) {
	limit := s.req.base.HistoryLimit
	s.req.base.NameHistory = pushTerm(s.req.base.NameHistory, q.Name, limit)
	s.req.base.ContentHistory = pushTerm(s.req.base.ContentHistory, q.Content, limit)
}

func (s *replSession) show() {
	o := s.req.base
	fmt.Fprintf(s.app.Stdout, "dirs: %s\nname mode: %s (case sensitive: %v)\ncontent case sensitive: %v\nsort: %s (descending: %v)\n",
		strings.Join(s.req.query.Dirs, ", "), o.Name.Mode, o.Name.CaseSensitive,
		s.req.opts.ContentCaseSensitive, o.Sort.By, o.Sort.Descending)
}

// complete offers remembered name terms starting with the typed prefix.
func (s *replSession) complete(prefix string) []string {
	var out []string
	for _, term := range s.req.base.NameHistory {
		if strings.HasPrefix(term, prefix) && term != prefix {
			out = append(out, term)
		}
	}
	return out
}

func pushTerm(list []string, term string, limit int) []string {
	if term == "" {
		return list
	}
	out := []string{term}
	for _, t := range list {
		if t != term {
			out = append(out, t)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func replHistoryPath() string {
	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "repl_history")
}

func saveReplHistory(line *liner.State, path string, a *App) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		a.Logger.Debug("cannot create history directory", "error", err)
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		a.Logger.Debug("cannot save repl history", "error", err)
		return
	}
	defer f.Close()
	_, _ = line.WriteHistory(f)
}
