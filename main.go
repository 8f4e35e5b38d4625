// filescout - Cancellable file search tasks with streamed results.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jeranaias/filescout/internal/cli"
	"github.com/jeranaias/filescout/internal/config"
	"github.com/jeranaias/filescout/internal/history"
	"github.com/jeranaias/filescout/internal/logging"
	"github.com/jeranaias/filescout/internal/tasks"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: loading config: %v\n", err)
		return cli.ExitConfigError
	}

	logger := logging.New(cfg.LoggerConfig(os.Stderr))

	exec := tasks.New(tasks.WithConfig(cfg.TasksConfig()), tasks.WithLogger(logger))
	notifyDone := make(chan struct{})
	go logNotifications(exec, logger, notifyDone)
	defer func() {
		logger.Debug("executor state", "summary", exec.Summary())
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Executor.ShutdownTimeout)
		defer cancel()
		if err := exec.Shutdown(ctx); err != nil {
			logger.Warn("executor shutdown", "error", err)
		}
		close(notifyDone)
	}()

	app := &cli.App{
		Config: cfg,
		Exec:   exec,
		Logger: logger,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}

	if cfg.History.Enabled {
		store, err := history.Open(cfg.HistoryStoreConfig())
		if err != nil {
			logger.Warn("search history unavailable", "path", cfg.History.DBPath, "error", err)
		} else {
			app.History = store
			defer store.Close()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = app.Run(ctx, os.Args[1:])
	if err != nil && !cli.IsReported(err) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return cli.ExitCode(err)
}

// logNotifications drains task notifications into the debug log until done
// is closed.
func logNotifications(exec *tasks.Executor, logger logging.Logger, done <-chan struct{}) {
	for {
		select {
		case n := <-exec.Notifications():
			logger.Debug("task finished",
				"task_id", n.TaskID.String(),
				"status", n.Status.String(),
				"duration", n.Duration,
				"error", n.Error)
		case <-done:
			return
		}
	}
}
