package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// SchemaVersion is the current schema version of the state database.
const SchemaVersion = 1

var schemaV1 = []string{
	`CREATE TABLE IF NOT EXISTS actor_state (
		entity_id  TEXT NOT NULL,
		state_key  TEXT NOT NULL,
		value      TEXT NOT NULL,
		updated_at BIGINT NOT NULL,
		PRIMARY KEY (entity_id, state_key)
	)`,
	`CREATE TABLE IF NOT EXISTS reminders (
		entity_id     TEXT NOT NULL,
		name          TEXT NOT NULL,
		payload       TEXT NOT NULL,
		due_ns        BIGINT NOT NULL,
		period_ns     BIGINT NOT NULL,
		registered_at BIGINT NOT NULL,
		PRIMARY KEY (entity_id, name)
	)`,
}

// Migrate ensures the schema exists and is at the current SchemaVersion.
func Migrate(ctx context.Context, db *sql.DB, builder sq.StatementBuilderType) error {
	if db == nil {
		return fmt.Errorf("migrate: db is nil")
	}

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)`); err != nil {
		return fmt.Errorf("migrate: create schema_migrations: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("migrate: read current version: %w", err)
	}
	if current >= SchemaVersion {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate: begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range schemaV1 {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: apply schema: %w", err)
		}
	}

	query, args, err := builder.Insert("schema_migrations").Columns("version").Values(SchemaVersion).ToSql()
	if err != nil {
		return fmt.Errorf("migrate: build version insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("migrate: record version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate: commit: %w", err)
	}
	return nil
}
