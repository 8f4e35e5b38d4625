// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/filescout/internal/logging"
	"github.com/jeranaias/filescout/internal/search"
)

// isolate points the config directory at a fresh temp dir and clears the
// environment overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("FILESCOUT_HOME", dir)
	for _, key := range []string{
		"FILESCOUT_WORKERS", "FILESCOUT_TASK_TIMEOUT", "FILESCOUT_ROOT",
		"FILESCOUT_CONTENT_CASE", "FILESCOUT_HISTORY", "FILESCOUT_HISTORY_DB",
		"FILESCOUT_LOG_LEVEL", "FILESCOUT_LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
	return dir
}

// =============================================================================
// LOAD TESTS
// =============================================================================

func TestLoad_DefaultsWithoutFiles(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.Search.Root)
	assert.Equal(t, search.DefaultMaxFileSize, cfg.Search.MaxFileSize)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, filepath.Join(dir, "history.db"), cfg.History.DBPath)
	assert.Equal(t, 5*time.Second, cfg.Executor.ShutdownTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_TOMLKeepsUnsetDefaults(t *testing.T) {
	dir := isolate(t)
	content := `
[executor]
workers = 3
task_timeout = "2s"

[search]
content_case_sensitive = true
name_mode = "glob"
sort_by = "size"
sort_descending = true

[watch]
debounce = "50ms"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0600))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Executor.Workers)
	assert.Equal(t, 2*time.Second, cfg.Executor.TaskTimeout)
	assert.Equal(t, 100, cfg.Executor.NotifyBuffer)
	assert.Equal(t, 50*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, time.Second, cfg.Watch.MinInterval)

	opts := cfg.SearchOptions()
	assert.True(t, opts.Content.CaseSensitive)
	assert.Equal(t, search.NameGlob, opts.Name.Mode)
	assert.Equal(t, search.SortOptions{By: search.SortBySize, Descending: true}, opts.Sort)
}

func TestLoad_JSONFallback(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"),
		[]byte(`{"search": {"root": "/srv"}, "history": {"enabled": false}}`), 0600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/srv", cfg.Search.Root)
	assert.False(t, cfg.History.Enabled)
}

func TestLoad_TOMLWinsOverJSON(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[search]\nroot = \"/toml\"\n"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"search": {"root": "/json"}}`), 0600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/toml", cfg.Search.Root)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"bad toml", "config.toml", "[search\n"},
		{"unknown key", "config.toml", "[search]\nfoo = 1\n"},
		{"bad json", "config.json", "{"},
		{"invalid value", "config.toml", "[search]\nname_mode = \"fuzzy\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			require.NoError(t, os.WriteFile(filepath.Join(dir, tt.file), []byte(tt.content), 0600))

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadFromPath(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "custom.toml")
	require.NoError(t, os.WriteFile(path, []byte("[logging]\nlevel = \"debug\"\nformat = \"json\"\n"), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	lc := cfg.LoggerConfig(nil)
	assert.Equal(t, logging.LevelDebug, lc.Level)
	assert.Equal(t, "json", lc.Format)

	_, err = LoadFromPath(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

// =============================================================================
// SAVE TESTS
// =============================================================================

func TestSave_RoundTrip(t *testing.T) {
	dir := isolate(t)

	cfg := Default()
	cfg.Executor.Workers = 7
	cfg.Watch.MinInterval = 250 * time.Millisecond
	cfg.Search.IgnorePatterns = []string{".git", "vendor"}
	require.NoError(t, Save(cfg))

	info, err := os.Stat(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)
	assert.False(t, info.IsDir())

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Executor.Workers)
	assert.Equal(t, 250*time.Millisecond, loaded.Watch.MinInterval)
	assert.Equal(t, []string{".git", "vendor"}, loaded.Search.IgnorePatterns)
}

func TestSaveJSON_RoundTrip(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "out", "config.json")

	cfg := Default()
	cfg.Search.Root = "/data"
	require.NoError(t, SaveJSON(cfg, path))

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "/data", loaded.Search.Root)
}

// =============================================================================
// VALIDATION TESTS
// =============================================================================

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Executor.Workers = 0
	cfg.Executor.MaxQueue = -1
	cfg.Search.SortBy = "colour"
	cfg.Watch.Burst = 0
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)

	var verrs ValidateErrors
	require.ErrorAs(t, err, &verrs)

	fields := make([]string, 0, len(verrs))
	for _, v := range verrs {
		fields = append(fields, v.Field)
	}
	assert.ElementsMatch(t, []string{
		"executor.workers", "executor.max_queue", "search.sort_by", "watch.burst", "logging.format",
	}, fields)
}

func TestValidate_DefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
	assert.Equal(t, "no validation errors", ValidateErrors{}.Error())
}

func TestSetDefaults_FillsZeroValues(t *testing.T) {
	isolate(t)
	cfg := &Config{}
	cfg.SetDefaults()

	assert.Positive(t, cfg.Executor.Workers)
	assert.Equal(t, 1, cfg.Watch.Burst)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.NotEmpty(t, cfg.Search.IgnorePatterns)
	assert.NoError(t, cfg.Validate())
}

// =============================================================================
// ENVIRONMENT TESTS
// =============================================================================

func TestApplyEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("FILESCOUT_WORKERS", "2")
	t.Setenv("FILESCOUT_TASK_TIMEOUT", "90s")
	t.Setenv("FILESCOUT_ROOT", "/work")
	t.Setenv("FILESCOUT_CONTENT_CASE", "true")
	t.Setenv("FILESCOUT_HISTORY", "0")
	t.Setenv("FILESCOUT_LOG_LEVEL", "error")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.TasksConfig().Workers)
	assert.Equal(t, 90*time.Second, cfg.TasksConfig().TaskTimeout)
	assert.Equal(t, "/work", cfg.Search.Root)
	assert.True(t, cfg.SearchOptions().Content.CaseSensitive)
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, "error", cfg.Logging.Level)
}

func TestApplyEnvOverrides_InvalidValues(t *testing.T) {
	isolate(t)
	t.Setenv("FILESCOUT_WORKERS", "many")
	t.Setenv("FILESCOUT_TASK_TIMEOUT", "soon")

	err := Default().ApplyEnvOverrides()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FILESCOUT_WORKERS")
	assert.Contains(t, err.Error(), "FILESCOUT_TASK_TIMEOUT")
}

// =============================================================================
// COMPONENT SETTINGS TESTS
// =============================================================================

func TestComponentSettings(t *testing.T) {
	cfg := Default()
	cfg.History.DBPath = "/tmp/h.db"
	cfg.History.MaxEntries = 9
	cfg.Watch.Burst = 3

	assert.Equal(t, "/tmp/h.db", cfg.HistoryStoreConfig().DatabasePath)
	assert.Equal(t, 9, cfg.HistoryStoreConfig().MaxEntries)
	assert.Equal(t, 3, cfg.WatchSettings().Burst)
	assert.Len(t, cfg.ManagerOptions(logging.NoOpLogger{}, nil), 4)
}

func TestClone_IsIndependent(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()
	clone.Search.IgnorePatterns[0] = "changed"
	clone.Executor.Workers = 99

	assert.NotEqual(t, "changed", cfg.Search.IgnorePatterns[0])
	assert.NotEqual(t, 99, cfg.Executor.Workers)
	assert.Contains(t, cfg.String(), "[executor]")
}
