// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for filescout.
//
// Supports both TOML and JSON configuration formats, with defaults,
// environment variable overrides, and validation.
//
// # Sections
//
//   - [executor]: worker count, queue bound, task timeout, shutdown grace
//   - [search]: default root, ignored directories, matching and sorting
//   - [history]: persistent search history database
//   - [watch]: debounce and rate limit of watch re-runs
//   - [logging]: level and output format
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (FILESCOUT_*)
//   - ~/.filescout/config.toml
//   - ~/.filescout/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	exec := tasks.New(tasks.WithConfig(cfg.TasksConfig()))
package config
