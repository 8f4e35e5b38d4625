// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command parsing and dispatch for filescout.

package cli

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/jeranaias/filescout/internal/config"
	"github.com/jeranaias/filescout/internal/events"
	"github.com/jeranaias/filescout/internal/history"
	"github.com/jeranaias/filescout/internal/logging"
	"github.com/jeranaias/filescout/internal/tasks"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdHelp Command = iota
	CmdSearch
	CmdStream
	CmdWatch
	CmdRepl
	CmdHistory
	CmdConfig
	CmdVersion
)

var commandNames = map[string]Command{
	"search":    CmdSearch,
	"s":         CmdSearch,
	"stream":    CmdStream,
	"watch":     CmdWatch,
	"repl":      CmdRepl,
	"history":   CmdHistory,
	"config":    CmdConfig,
	"version":   CmdVersion,
	"--version": CmdVersion,
	"-v":        CmdVersion,
	"help":      CmdHelp,
	"--help":    CmdHelp,
	"-h":        CmdHelp,
}

const usageText = `filescout - search files by name and content

Usage:
  filescout search [dir...] [flags]    Search and print the final result
  filescout stream [dir...] [flags]    Search and print events as they arrive
  filescout watch  [dir...] [flags]    Re-run the search whenever files change
  filescout repl   [dir...] [flags]    Interactive search prompt
  filescout history [list|clear|prune] Show or trim remembered search terms
  filescout config [show|init|path]    Configuration
  filescout version                    Show version
  filescout help                       Show this help

Search flags:
  -n, --name TERM       Match file names (see --mode)
  -c, --content TERM    Match file contents
  --case                Case sensitive content matching
  --name-case           Case sensitive name matching
  --mode MODE           Name matching: contains, glob or regex
  --sort KEY            Sort by name, path, size or modified
  --desc                Sort descending
  --dirs                Include directories in name matches
  --progress            Print matches as they are found
  --timeout DURATION    Cancel the search after DURATION (e.g. 30s)
  --json                Machine readable output

History flags:
  --kind name|content   Restrict to one kind of term
  --limit N             Number of entries to list (default 20)

Configuration is read from ~/.filescout/config.toml (or config.json).
Environment variables FILESCOUT_* override it.
`

// Parse splits the process arguments into a command and its arguments.
// No arguments means help.
func Parse(args []string) (Command, []string, error) {
	if len(args) == 0 {
		return CmdHelp, nil, nil
	}
	cmd, ok := commandNames[strings.ToLower(args[0])]
	if !ok {
		return CmdHelp, nil, &ValidationError{
			Field:   "command",
			Value:   args[0],
			Reason:  "unknown command",
			Example: "filescout search . --name main",
		}
	}
	return cmd, args[1:], nil
}

// =============================================================================
// APPLICATION
// =============================================================================

// App holds what every command needs. History is nil when disabled.
type App struct {
	Config  *config.Config
	Exec    *tasks.Executor
	Logger  logging.Logger
	History *history.Store

	Stdout io.Writer
	Stderr io.Writer
}

// Run executes the command named by args.
func (a *App) Run(ctx context.Context, args []string) error {
	cmd, rest, err := Parse(args)
	if err != nil {
		fmt.Fprint(a.Stderr, usageText)
		return err
	}

	switch cmd {
	case CmdSearch:
		return a.HandleSearch(ctx, rest)
	case CmdStream:
		return a.HandleStream(ctx, rest)
	case CmdWatch:
		return a.HandleWatch(ctx, rest)
	case CmdRepl:
		return a.HandleRepl(ctx, rest)
	case CmdHistory:
		return a.HandleHistory(ctx, rest)
	case CmdConfig:
		return a.HandleConfig(rest)
	case CmdVersion:
		fmt.Fprintf(a.Stdout, "filescout %s (commit %s, built %s, %s/%s)\n",
			Version, GitCommit, BuildDate, runtime.GOOS, runtime.GOARCH)
		return nil
	default:
		fmt.Fprint(a.Stdout, usageText)
		return nil
	}
}

// observer returns the event printer for the command output.
func (a *App) observer(json bool) *events.WriterObserver {
	if json {
		return events.NewWriterObserver(a.Stdout, events.FormatJSON)
	}
	return events.NewWriterObserver(a.Stdout, events.FormatText,
		events.WithProfile(ColorProfile(a.Stdout)),
		events.WithWidth(TerminalWidth(a.Stdout)))
}
