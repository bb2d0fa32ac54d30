package store

import (
	"strconv"
	"strings"
)

// dialect isolates the SQL that differs between SQLite and PostgreSQL.
// Queries are written with ? placeholders and rebound per dialect.
type dialect interface {
	name() string
	driver() string
	rebind(query string) string
	schema() []string
	// tagsContain is a predicate with one placeholder: the tag.
	tagsContain() string
	// tagsAppend and tagsRemove are expressions producing the new tags value.
	tagsAppend() string
	tagsRemove() string
	listTables() string
	// lower wraps a column expression for case-insensitive search.
	lower(expr string) string
}

type sqliteDialect struct{}

func (sqliteDialect) name() string   { return "sqlite" }
func (sqliteDialect) driver() string { return "sqlite" }

func (sqliteDialect) rebind(query string) string { return query }

func (sqliteDialect) schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS email (
            id TEXT PRIMARY KEY,
            subject TEXT NOT NULL,
            sender TEXT NOT NULL,
            recipient TEXT NOT NULL,
            body TEXT,
            preview TEXT,
            folder TEXT NOT NULL DEFAULT 'inbox',
            tags TEXT NOT NULL DEFAULT '[]',
            is_read BOOLEAN NOT NULL DEFAULT 0,
            is_archived BOOLEAN NOT NULL DEFAULT 0,
            is_deleted BOOLEAN NOT NULL DEFAULT 0,
            received_at INTEGER,
            created_at INTEGER NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS tag (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            color TEXT NOT NULL,
            created_at INTEGER NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS folder (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            icon TEXT,
            created_at INTEGER NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS event (
            id TEXT PRIMARY KEY,
            title TEXT NOT NULL,
            starts_at INTEGER NOT NULL,
            ends_at INTEGER,
            notes TEXT,
            created_at INTEGER NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_email_received ON email(received_at);`,
		`CREATE INDEX IF NOT EXISTS idx_email_folder ON email(folder);`,
		`CREATE INDEX IF NOT EXISTS idx_event_starts ON event(starts_at);`,
	}
}

func (sqliteDialect) tagsContain() string {
	return `EXISTS (SELECT 1 FROM json_each(email.tags) WHERE json_each.value = ?)`
}

func (sqliteDialect) tagsAppend() string {
	return `json_insert(email.tags, '$[#]', ?)`
}

func (sqliteDialect) tagsRemove() string {
	return `(SELECT json_group_array(json_each.value) FROM json_each(email.tags) WHERE json_each.value <> ?)`
}

func (sqliteDialect) listTables() string {
	return `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name;`
}

func (sqliteDialect) lower(expr string) string {
	return sqliteLowerFunc + "(" + expr + ")"
}

type postgresDialect struct{}

func (postgresDialect) name() string   { return "postgres" }
func (postgresDialect) driver() string { return "postgres" }

func (postgresDialect) rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (postgresDialect) schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS email (
            id TEXT PRIMARY KEY,
            subject TEXT NOT NULL,
            sender TEXT NOT NULL,
            recipient TEXT NOT NULL,
            body TEXT,
            preview TEXT,
            folder TEXT NOT NULL DEFAULT 'inbox',
            tags JSONB NOT NULL DEFAULT '[]'::jsonb,
            is_read BOOLEAN NOT NULL DEFAULT FALSE,
            is_archived BOOLEAN NOT NULL DEFAULT FALSE,
            is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
            received_at BIGINT,
            created_at BIGINT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS tag (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            color TEXT NOT NULL,
            created_at BIGINT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS folder (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            icon TEXT,
            created_at BIGINT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS event (
            id TEXT PRIMARY KEY,
            title TEXT NOT NULL,
            starts_at BIGINT NOT NULL,
            ends_at BIGINT,
            notes TEXT,
            created_at BIGINT NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_email_received ON email(received_at);`,
		`CREATE INDEX IF NOT EXISTS idx_email_folder ON email(folder);`,
		`CREATE INDEX IF NOT EXISTS idx_event_starts ON event(starts_at);`,
	}
}

func (postgresDialect) tagsContain() string {
	return `email.tags @> jsonb_build_array(?::text)`
}

func (postgresDialect) tagsAppend() string {
	return `email.tags || jsonb_build_array(?::text)`
}

func (postgresDialect) tagsRemove() string {
	return `email.tags - ?::text`
}

func (postgresDialect) listTables() string {
	return `SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() ORDER BY table_name;`
}

func (postgresDialect) lower(expr string) string {
	return "LOWER(" + expr + ")"
}
