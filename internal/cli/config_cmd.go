// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"

	"github.com/jeranaias/filescout/internal/config"
)

// HandleConfig handles "config [show|init|path]".
func (a *App) HandleConfig(args []string) error {
	p := NewArgParser(args, "json", "force")
	sub := p.Subcommand()
	if sub == "" {
		sub = "show"
	}

	switch sub {
	case "show":
		if p.BoolFlag("json") {
			return NewJSONResponse("config show", a.Config).Write(a.Stdout)
		}
		fmt.Fprint(a.Stdout, renderTOML(a.styles(), a.Config.String()))
		return nil

	case "path":
		path, err := config.ConfigPathTOML()
		if err != nil {
			return &CommandError{Command: "config", Action: "path", Reason: "cannot locate config directory", Err: err}
		}
		fmt.Fprintln(a.Stdout, path)
		return nil

	case "init":
		path, err := config.ConfigPathTOML()
		if err != nil {
			return &CommandError{Command: "config", Action: "init", Reason: "cannot locate config directory", Err: err}
		}
		if _, err := os.Stat(path); err == nil && !p.BoolFlag("force") {
			return &CommandError{Command: "config", Action: "init", Reason: path + " already exists (use --force to overwrite)"}
		}
		if err := config.SaveTOML(config.Default(), path); err != nil {
			return &CommandError{Command: "config", Action: "init", Reason: "cannot write config", Err: err}
		}
		fmt.Fprintln(a.Stdout, a.styles().Success.Render("Wrote "+path))
		return nil

	default:
		return &ValidationError{Field: "config subcommand", Value: sub, Reason: "want show, init or path"}
	}
}
