// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/filescout/internal/history"
	"github.com/jeranaias/filescout/internal/logging"
	"github.com/jeranaias/filescout/internal/search"
	"github.com/jeranaias/filescout/internal/tasks"
	"github.com/jeranaias/filescout/internal/util"
	"github.com/jeranaias/filescout/internal/watch"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete filescout configuration.
type Config struct {
	Executor ExecutorConfig `toml:"executor" json:"executor"`
	Search   SearchConfig   `toml:"search" json:"search"`
	History  HistoryConfig  `toml:"history" json:"history"`
	Watch    WatchConfig    `toml:"watch" json:"watch"`
	Logging  LoggingConfig  `toml:"logging" json:"logging"`
}

// ExecutorConfig sizes the task executor.
type ExecutorConfig struct {
	// Workers is the number of searches that run at once
	Workers int `toml:"workers" json:"workers"`

	// MaxQueue bounds waiting searches (0 = unlimited)
	MaxQueue int `toml:"max_queue" json:"max_queue"`

	// TaskTimeout force-aborts searches running longer than this (0 = never)
	TaskTimeout time.Duration `toml:"task_timeout" json:"task_timeout"`

	// NotifyBuffer is the capacity of the status notification channel
	NotifyBuffer int `toml:"notify_buffer" json:"notify_buffer"`

	// ShutdownTimeout is how long running searches get to stop on exit
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" json:"shutdown_timeout"`
}

// SearchConfig holds the defaults applied to every search.
type SearchConfig struct {
	Root                 string   `toml:"root" json:"root"`
	IgnorePatterns       []string `toml:"ignore_patterns" json:"ignore_patterns"`
	MaxFileSize          int64    `toml:"max_file_size" json:"max_file_size"`
	ContentCaseSensitive bool     `toml:"content_case_sensitive" json:"content_case_sensitive"`
	NameCaseSensitive    bool     `toml:"name_case_sensitive" json:"name_case_sensitive"`
	NameMode             string   `toml:"name_mode" json:"name_mode"`
	SortBy               string   `toml:"sort_by" json:"sort_by"`
	SortDescending       bool     `toml:"sort_descending" json:"sort_descending"`

	// Workers is the number of files scanned for content in parallel
	Workers int `toml:"workers" json:"workers"`
}

// HistoryConfig controls the persistent search history.
type HistoryConfig struct {
	Enabled    bool   `toml:"enabled" json:"enabled"`
	DBPath     string `toml:"db_path" json:"db_path"`
	MaxEntries int    `toml:"max_entries" json:"max_entries"`
}

// WatchConfig controls re-searching watched directories.
type WatchConfig struct {
	Debounce    time.Duration `toml:"debounce" json:"debounce"`
	MinInterval time.Duration `toml:"min_interval" json:"min_interval"`
	Burst       int           `toml:"burst" json:"burst"`
}

// LoggingConfig selects the log level and output format.
type LoggingConfig struct {
	Level  string `toml:"level" json:"level"`
	Format string `toml:"format" json:"format"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	wd := watch.DefaultConfig()
	return &Config{
		Executor: ExecutorConfig{
			Workers:         runtime.NumCPU(),
			MaxQueue:        0,
			TaskTimeout:     0,
			NotifyBuffer:    100,
			ShutdownTimeout: 5 * time.Second,
		},
		Search: SearchConfig{
			Root:           ".",
			IgnorePatterns: append([]string(nil), search.DefaultIgnorePatterns...),
			MaxFileSize:    search.DefaultMaxFileSize,
			NameMode:       string(search.NameContains),
			SortBy:         string(search.SortByPath),
			Workers:        runtime.NumCPU(),
		},
		History: HistoryConfig{
			Enabled:    true,
			MaxEntries: 100,
		},
		Watch: WatchConfig{
			Debounce:    wd.Debounce,
			MinInterval: wd.MinInterval,
			Burst:       wd.Burst,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the filescout configuration directory. FILESCOUT_HOME
// overrides the default ~/.filescout.
func ConfigDir() (string, error) {
	if dir := os.Getenv("FILESCOUT_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".filescout"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config directory.
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	cfg := Default()

	tomlPath, err := ConfigPathTOML()
	if err != nil {
		return nil, err
	}
	jsonPath, err := ConfigPathJSON()
	if err != nil {
		return nil, err
	}

	switch {
	case fileExists(tomlPath):
		if err := LoadTOML(cfg, tomlPath); err != nil {
			return nil, fmt.Errorf("failed to load TOML config: %w", err)
		}
	case fileExists(jsonPath):
		if err := LoadJSON(cfg, jsonPath); err != nil {
			return nil, fmt.Errorf("failed to load JSON config: %w", err)
		}
	}

	return finish(cfg)
}

// LoadFromPath loads configuration from a specific file. Files ending in
// .json are decoded as JSON, anything else as TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	return finish(cfg)
}

// LoadTOML decodes a TOML file over cfg. Keys missing from the file keep
// their current values.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

func finish(cfg *Config) (*Config, error) {
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML atomically writes the configuration as TOML.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# filescout configuration file\n")
	buf.WriteString("# Durations use Go syntax, e.g. \"300ms\" or \"5s\"\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, buf.Bytes(), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON atomically writes the configuration as JSON.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, data, 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError describes one invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks every setting and returns ValidateErrors listing all
// problems, or nil.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, msg string) {
		errs = append(errs, ValidationError{Field: field, Message: msg})
	}

	if c.Executor.Workers < 1 {
		add("executor.workers", "must be at least 1")
	}
	if c.Executor.MaxQueue < 0 {
		add("executor.max_queue", "cannot be negative")
	}
	if c.Executor.TaskTimeout < 0 {
		add("executor.task_timeout", "cannot be negative")
	}
	if c.Executor.NotifyBuffer < 0 {
		add("executor.notify_buffer", "cannot be negative")
	}
	if c.Executor.ShutdownTimeout < 0 {
		add("executor.shutdown_timeout", "cannot be negative")
	}

	if c.Search.MaxFileSize < 0 {
		add("search.max_file_size", "cannot be negative")
	}
	if c.Search.Workers < 1 {
		add("search.workers", "must be at least 1")
	}
	if _, err := search.ParseNameMode(c.Search.NameMode); err != nil {
		add("search.name_mode", err.Error())
	}
	if _, err := search.ParseSortBy(c.Search.SortBy); err != nil {
		add("search.sort_by", err.Error())
	}
	for _, p := range c.Search.IgnorePatterns {
		if strings.TrimSpace(p) == "" {
			add("search.ignore_patterns", "contains an empty pattern")
			break
		}
	}

	if c.History.MaxEntries < 0 {
		add("history.max_entries", "cannot be negative")
	}

	if c.Watch.Debounce < 0 {
		add("watch.debounce", "cannot be negative")
	}
	if c.Watch.MinInterval < 0 {
		add("watch.min_interval", "cannot be negative")
	}
	if c.Watch.Burst < 1 {
		add("watch.burst", "must be at least 1")
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		add("logging.level", err.Error())
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		add("logging.format", fmt.Sprintf("unknown format %q (want console or json)", c.Logging.Format))
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults replaces zero values that have no meaning of their own.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Executor.Workers == 0 {
		c.Executor.Workers = defaults.Executor.Workers
	}
	if c.Executor.NotifyBuffer == 0 {
		c.Executor.NotifyBuffer = defaults.Executor.NotifyBuffer
	}

	if c.Search.Root == "" {
		c.Search.Root = defaults.Search.Root
	}
	if c.Search.IgnorePatterns == nil {
		c.Search.IgnorePatterns = defaults.Search.IgnorePatterns
	}
	if c.Search.MaxFileSize == 0 {
		c.Search.MaxFileSize = defaults.Search.MaxFileSize
	}
	if c.Search.NameMode == "" {
		c.Search.NameMode = defaults.Search.NameMode
	}
	if c.Search.SortBy == "" {
		c.Search.SortBy = defaults.Search.SortBy
	}
	if c.Search.Workers == 0 {
		c.Search.Workers = defaults.Search.Workers
	}

	if c.History.DBPath == "" {
		if dir, err := ConfigDir(); err == nil {
			c.History.DBPath = history.DefaultConfig(dir).DatabasePath
		}
	}

	if c.Watch.Burst == 0 {
		c.Watch.Burst = defaults.Watch.Burst
	}

	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaults.Logging.Format
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - FILESCOUT_WORKERS: executor.workers
//   - FILESCOUT_TASK_TIMEOUT: executor.task_timeout (e.g. "30s")
//   - FILESCOUT_ROOT: search.root
//   - FILESCOUT_CONTENT_CASE: search.content_case_sensitive ("1" or "true")
//   - FILESCOUT_HISTORY: history.enabled ("1" or "true")
//   - FILESCOUT_HISTORY_DB: history.db_path
//   - FILESCOUT_LOG_LEVEL: logging.level
//   - FILESCOUT_LOG_FORMAT: logging.format
func (c *Config) ApplyEnvOverrides() error {
	var errs []error

	if v := os.Getenv("FILESCOUT_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("FILESCOUT_WORKERS: %w", err))
		} else {
			c.Executor.Workers = n
		}
	}

	if v := os.Getenv("FILESCOUT_TASK_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("FILESCOUT_TASK_TIMEOUT: %w", err))
		} else {
			c.Executor.TaskTimeout = d
		}
	}

	if v := os.Getenv("FILESCOUT_ROOT"); v != "" {
		c.Search.Root = v
	}

	if v := os.Getenv("FILESCOUT_CONTENT_CASE"); v != "" {
		c.Search.ContentCaseSensitive = envBool(v)
	}

	if v := os.Getenv("FILESCOUT_HISTORY"); v != "" {
		c.History.Enabled = envBool(v)
	}

	if v := os.Getenv("FILESCOUT_HISTORY_DB"); v != "" {
		c.History.DBPath = v
	}

	if v := os.Getenv("FILESCOUT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv("FILESCOUT_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}

	return errors.Join(errs...)
}

func envBool(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}

// =============================================================================
// COMPONENT SETTINGS
// =============================================================================

// TasksConfig returns the executor configuration.
func (c *Config) TasksConfig() tasks.Config {
	return tasks.Config{
		Workers:      c.Executor.Workers,
		MaxQueue:     c.Executor.MaxQueue,
		TaskTimeout:  c.Executor.TaskTimeout,
		NotifyBuffer: c.Executor.NotifyBuffer,
	}
}

// SearchOptions returns the base search options. Call after Validate.
func (c *Config) SearchOptions() search.Options {
	opts := search.DefaultOptions()
	mode, _ := search.ParseNameMode(c.Search.NameMode)
	sortBy, _ := search.ParseSortBy(c.Search.SortBy)

	opts.Name.CaseSensitive = c.Search.NameCaseSensitive
	opts.Name.Mode = mode
	opts.Content.CaseSensitive = c.Search.ContentCaseSensitive
	opts.Sort = search.SortOptions{By: sortBy, Descending: c.Search.SortDescending}
	return opts
}

// ManagerOptions returns the search manager options for this config.
func (c *Config) ManagerOptions(logger logging.Logger, recorder search.HistoryRecorder) []search.ManagerOption {
	opts := []search.ManagerOption{
		search.WithLogger(logger),
		search.WithIgnorePatterns(c.Search.IgnorePatterns),
		search.WithMaxFileSize(c.Search.MaxFileSize),
		search.WithWorkers(c.Search.Workers),
	}
	if recorder != nil {
		opts = append(opts, search.WithHistoryRecorder(recorder))
	}
	return opts
}

// HistoryStoreConfig returns the history store configuration.
func (c *Config) HistoryStoreConfig() history.Config {
	return history.Config{
		DatabasePath: c.History.DBPath,
		MaxEntries:   c.History.MaxEntries,
	}
}

// WatchSettings returns the watcher configuration.
func (c *Config) WatchSettings() watch.Config {
	return watch.Config{
		Debounce:    c.Watch.Debounce,
		MinInterval: c.Watch.MinInterval,
		Burst:       c.Watch.Burst,
	}
}

// LoggerConfig returns the logger configuration writing to out.
func (c *Config) LoggerConfig(out io.Writer) logging.Config {
	level, _ := logging.ParseLevel(c.Logging.Level)
	return logging.Config{
		Level:     level,
		Format:    c.Logging.Format,
		Output:    out,
		Component: "filescout",
	}
}

// =============================================================================
// UTILITIES
// =============================================================================

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Search.IgnorePatterns = append([]string(nil), c.Search.IgnorePatterns...)
	return &clone
}

// String renders the configuration as TOML.
func (c *Config) String() string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return buf.String()
}
