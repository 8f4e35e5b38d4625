// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

const (
	// SchemaVersion tracks the database schema version for migrations
	SchemaVersion = 1
)

// Schema is the SQLite schema of the history database.
const Schema = `
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
) WITHOUT ROWID;

-- One row per distinct term and kind; reuse bumps used_at and uses
CREATE TABLE IF NOT EXISTS history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    kind TEXT NOT NULL,          -- name, content
    term TEXT NOT NULL,
    used_at INTEGER NOT NULL,    -- Unix nanoseconds
    uses INTEGER NOT NULL DEFAULT 1,
    UNIQUE(kind, term)
);

CREATE INDEX IF NOT EXISTS idx_history_kind_used ON history(kind, used_at DESC);
`

// InitMetadata records the schema version on first open.
const InitMetadata = `
INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', '1');
`
