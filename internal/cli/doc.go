// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the filescout commands.
//
// # Commands
//
//   - search: one aggregated search task on the executor
//   - stream: events printed as the producer emits them
//   - watch: initial search, then re-runs on filesystem changes
//   - repl: interactive prompt with line editing and term history
//   - history: list or clear remembered search terms
//   - config: show, init or locate the configuration file
//
// # Usage
//
//	app := &cli.App{Config: cfg, Exec: exec, Logger: logger, Stdout: os.Stdout, Stderr: os.Stderr}
//	err := app.Run(ctx, os.Args[1:])
//	os.Exit(cli.ExitCode(err))
//
// Search commands accept --json for machine readable output.
package cli
