// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jeranaias/filescout/internal/history"
	"github.com/jeranaias/filescout/internal/util"
)

// historyEntry is the JSON shape of a history entry.
type historyEntry struct {
	Kind   string    `json:"kind"`
	Term   string    `json:"term"`
	UsedAt time.Time `json:"used_at"`
	Uses   int       `json:"uses"`
}

// HandleHistory handles "history [list|clear|prune] [--kind k] [--limit n]
// [--keep n] [--json]".
func (a *App) HandleHistory(ctx context.Context, args []string) error {
	p := NewArgParser(args, "json")
	sub := p.Subcommand()
	if sub == "" {
		sub = "list"
	}

	if a.History == nil {
		return &CommandError{Command: "history", Action: sub, Reason: "history is disabled (set [history] enabled = true)"}
	}

	kind := p.Flag("kind", "k")
	switch sub {
	case "list", "ls":
		limit, err := p.FlagInt("limit", 20)
		if err != nil {
			return err
		}
		entries, err := a.History.Recent(ctx, kind, limit)
		if err != nil {
			return &CommandError{Command: "history", Action: "list", Reason: "cannot read history", Err: err}
		}
		return a.printHistory(entries, p.BoolFlag("json"))

	case "clear":
		n, err := a.History.Clear(ctx, kind)
		if err != nil {
			return &CommandError{Command: "history", Action: "clear", Reason: "cannot clear history", Err: err}
		}
		if p.BoolFlag("json") {
			return NewJSONResponse("history clear", map[string]int64{"removed": n}).Write(a.Stdout)
		}
		fmt.Fprintln(a.Stdout, a.styles().Success.Render(fmt.Sprintf("Removed %d entr%s", n, plural(n, "y", "ies"))))
		return nil

	case "prune":
		keep, err := p.FlagInt("keep", a.Config.History.MaxEntries)
		if err != nil {
			return err
		}
		n, err := a.History.Prune(ctx, keep)
		if err != nil {
			return &CommandError{Command: "history", Action: "prune", Reason: "cannot prune history", Err: err}
		}
		if p.BoolFlag("json") {
			return NewJSONResponse("history prune", map[string]int64{"removed": n}).Write(a.Stdout)
		}
		fmt.Fprintln(a.Stdout, a.styles().Success.Render(fmt.Sprintf("Removed %d entr%s", n, plural(n, "y", "ies"))))
		return nil

	default:
		return &ValidationError{Field: "history subcommand", Value: sub, Reason: "want list, clear or prune"}
	}
}

func (a *App) printHistory(entries []history.Entry, json bool) error {
	if json {
		out := make([]historyEntry, 0, len(entries))
		for _, e := range entries {
			out = append(out, historyEntry(e))
		}
		return NewJSONResponse("history list", out).Write(a.Stdout)
	}

	if len(entries) == 0 {
		fmt.Fprintln(a.Stdout, "No search history")
		return nil
	}
	st := a.styles()
	for _, e := range entries {
		fmt.Fprintf(a.Stdout, "%s  %s  %s  %s\n",
			st.Dim.Render(e.UsedAt.Local().Format("2006-01-02 15:04")),
			st.Label.Render(util.PadRight(e.Kind, 7)),
			st.Dim.Render(util.PadRight(fmt.Sprintf("%dx", e.Uses), 4)),
			st.Value.Render(e.Term))
	}
	return nil
}

func plural(n int64, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
