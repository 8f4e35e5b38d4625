// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging provides the structured logger used across filescout.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// =============================================================================
// LOG LEVELS
// =============================================================================

// Level is a user facing log level decoupled from the zerolog backend.
type Level int

const (
	// LevelDebug is the debug logging level.
	LevelDebug Level = iota
	// LevelInfo is the informational logging level.
	LevelInfo
	// LevelWarn is the warning logging level.
	LevelWarn
	// LevelError is the error logging level.
	LevelError
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel converts a config string into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// =============================================================================
// LOGGER INTERFACE
// =============================================================================

// Logger is the minimal logging interface the rest of the module depends on.
// Arguments after msg are alternating key/value pairs.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
}

// NoOpLogger discards everything.
type NoOpLogger struct{}

// Debug discards the message.
func (NoOpLogger) Debug(string, ...any) {}

// Info discards the message.
func (NoOpLogger) Info(string, ...any) {}

// Warn discards the message.
func (NoOpLogger) Warn(string, ...any) {}

// Error discards the message.
func (NoOpLogger) Error(string, ...any) {}

// =============================================================================
// ZEROLOG ADAPTER
// =============================================================================

// Config configures construction of a ZerologLogger.
type Config struct {
	Level     Level
	Format    string // "json" or "console"
	Output    io.Writer
	Component string
}

// ZerologLogger implements Logger on top of zerolog.
type ZerologLogger struct {
	zl zerolog.Logger
}

// New builds a ZerologLogger from cfg. A nil Output writes to stderr.
func New(cfg Config) *ZerologLogger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	ctx := zerolog.New(out).Level(cfg.Level.zerolog()).With().Timestamp()
	if cfg.Component != "" {
		ctx = ctx.Str("component", cfg.Component)
	}
	return &ZerologLogger{zl: ctx.Logger()}
}

// With returns a child logger with kv attached to every entry.
func (l *ZerologLogger) With(kv ...any) *ZerologLogger {
	return &ZerologLogger{zl: l.zl.With().Fields(kv).Logger()}
}

// Debug logs at debug level.
func (l *ZerologLogger) Debug(msg string, kv ...any) { l.zl.Debug().Fields(kv).Msg(msg) }

// Info logs at info level.
func (l *ZerologLogger) Info(msg string, kv ...any) { l.zl.Info().Fields(kv).Msg(msg) }

// Warn logs at warn level.
func (l *ZerologLogger) Warn(msg string, kv ...any) { l.zl.Warn().Fields(kv).Msg(msg) }

// Error logs at error level.
func (l *ZerologLogger) Error(msg string, kv ...any) { l.zl.Error().Fields(kv).Msg(msg) }

// OrNoOp returns l, or a NoOpLogger when l is nil.
func OrNoOp(l Logger) Logger {
	if l == nil {
		return NoOpLogger{}
	}
	return l
}
