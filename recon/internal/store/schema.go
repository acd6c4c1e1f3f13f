package store

import "database/sql"

// Schema is the complete recon schema.
const Schema = `
-- One row per pipeline execution
CREATE TABLE IF NOT EXISTS runs (
    id                 TEXT PRIMARY KEY,
    service            TEXT NOT NULL,
    host               TEXT NOT NULL,
    mode               TEXT NOT NULL CHECK(mode IN ('secrets', 'extract')),
    queries_json       TEXT NOT NULL DEFAULT '[]',
    found              INTEGER NOT NULL DEFAULT 0,
    fetched            INTEGER NOT NULL DEFAULT 0,
    scanned            INTEGER NOT NULL DEFAULT 0,
    matched            INTEGER NOT NULL DEFAULT 0,
    rule_warnings_json TEXT NOT NULL DEFAULT '[]',
    started_at         INTEGER NOT NULL,
    duration_ms        INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);

-- Secret matches, one row per distinct match per document field
CREATE TABLE IF NOT EXISTS findings (
    run_id   TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    doc_id   TEXT NOT NULL,
    field    TEXT NOT NULL CHECK(field IN ('primary', 'secondary')),
    matched  TEXT NOT NULL,
    keyword  TEXT NOT NULL DEFAULT '',
    summary  TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (run_id, doc_id, field, matched)
);

-- URLs and IPs collected in extract mode
CREATE TABLE IF NOT EXISTS extractions (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    kind   TEXT NOT NULL CHECK(kind IN ('url', 'ip')),
    value  TEXT NOT NULL,
    PRIMARY KEY (run_id, kind, value)
);
`

// ApplySchema creates all tables and indexes on the given database.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
