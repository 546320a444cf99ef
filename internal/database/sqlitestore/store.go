// Package sqlitestore provides SQLite-backed store implementations.
package sqlitestore

import (
	"database/sql"
	"fmt"

	"github.com/XSAM/otelsql"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS moderation_entities (
	kind       TEXT NOT NULL,
	id         TEXT NOT NULL,
	owner_id   TEXT NOT NULL,
	status     TEXT NOT NULL,
	sanction   TEXT,
	warnings   TEXT,
	rev        INTEGER NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (kind, id)
);

CREATE TABLE IF NOT EXISTS moderation_reports (
	id           TEXT PRIMARY KEY,
	entity_kind  TEXT NOT NULL,
	entity_id    TEXT NOT NULL,
	reporter_id  TEXT NOT NULL,
	reason       TEXT NOT NULL,
	details      TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL,
	submitted_at TEXT NOT NULL,
	resolved_by  TEXT NOT NULL DEFAULT '',
	resolved_at  TEXT
);

CREATE INDEX IF NOT EXISTS idx_reports_entity
	ON moderation_reports (entity_kind, entity_id, submitted_at);

CREATE INDEX IF NOT EXISTS idx_reports_reporter
	ON moderation_reports (reporter_id, submitted_at);

CREATE TABLE IF NOT EXISTS moderation_audit_log (
	id          TEXT PRIMARY KEY,
	action      TEXT NOT NULL,
	actor_id    TEXT NOT NULL,
	entity_kind TEXT NOT NULL,
	entity_id   TEXT NOT NULL,
	reason      TEXT NOT NULL DEFAULT '',
	timestamp   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_timestamp
	ON moderation_audit_log (timestamp);
`

// Open opens (or creates) the SQLite database at path, applies the
// moderation schema and returns the instrumented connection. The driver
// is registered through otelsql so every query carries a span.
func Open(path string) (*sql.DB, error) {
	db, err := otelsql.Open("sqlite", path,
		otelsql.WithAttributes(semconv.DBSystemSqlite),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer at a time; a bounded pool avoids
	// SQLITE_BUSY churn under concurrent admin actions.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return db, nil
}
