package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"TweetWatch/internal/domain"
	"TweetWatch/internal/ports"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// SQLRepository persists actor state and reminders in SQLite or Postgres.
type SQLRepository struct {
	db      *sql.DB
	driver  string
	builder sq.StatementBuilderType
	now     func() time.Time
}

var _ ports.StateBackend = (*SQLRepository)(nil)
var _ ports.ReminderStore = (*SQLRepository)(nil)

// Open connects to the database for driver and applies migrations.
func Open(ctx context.Context, driver, dsn string) (*SQLRepository, error) {
	if dsn == "" {
		return nil, fmt.Errorf("open: empty dsn")
	}

	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case DriverSQLite:
		if dir := filepath.Dir(dsn); dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("open: create db dir: %w", err)
			}
		}
		db, err = sql.Open("sqlite", sqliteDSN(dsn))
		if err == nil {
			// A single connection serializes writers and keeps :memory: databases shared.
			db.SetMaxOpenConns(1)
		}
	case DriverPostgres:
		db, err = sql.Open("postgres", dsn)
	default:
		return nil, fmt.Errorf("open: unsupported driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open: sql open: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open: ping: %w", err)
	}

	repo := NewSQLRepository(db, driver)
	if err := Migrate(ctx, db, repo.builder); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open: %w", err)
	}

	return repo, nil
}

// NewSQLRepository wires an already opened sql.DB.
func NewSQLRepository(db *sql.DB, driver string) *SQLRepository {
	builder := sq.StatementBuilder.PlaceholderFormat(sq.Question)
	if driver == DriverPostgres {
		builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return &SQLRepository{
		db:      db,
		driver:  driver,
		builder: builder,
		now:     time.Now,
	}
}

func sqliteDSN(dsn string) string {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return dsn
	}
	return "file:" + dsn + "?mode=rwc&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// Close releases the database handle.
func (r *SQLRepository) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Scope returns the state store of a single entity.
func (r *SQLRepository) Scope(entityID string) ports.StateStore {
	return &sqlScope{repo: r, entityID: entityID}
}

type sqlScope struct {
	repo     *SQLRepository
	entityID string
}

func (s *sqlScope) TryCreate(ctx context.Context, key string, value []byte) (bool, error) {
	query, args, err := s.repo.builder.
		Insert("actor_state").
		Columns("entity_id", "state_key", "value", "updated_at").
		Values(s.entityID, key, string(value), s.repo.now().UnixNano()).
		Suffix("ON CONFLICT (entity_id, state_key) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build insert state: %w", err)
	}

	res, err := s.repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("insert state %s/%s: %w", s.entityID, key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert state rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *sqlScope) Set(ctx context.Context, key string, value []byte) error {
	query, args, err := s.repo.builder.
		Insert("actor_state").
		Columns("entity_id", "state_key", "value", "updated_at").
		Values(s.entityID, key, string(value), s.repo.now().UnixNano()).
		Suffix("ON CONFLICT (entity_id, state_key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert state: %w", err)
	}

	if _, err := s.repo.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert state %s/%s: %w", s.entityID, key, err)
	}
	return nil
}

func (s *sqlScope) Get(ctx context.Context, key string) ([]byte, bool, error) {
	query, args, err := s.repo.builder.
		Select("value").
		From("actor_state").
		Where(sq.Eq{"entity_id": s.entityID, "state_key": key}).
		ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("build select state: %w", err)
	}

	var value string
	err = s.repo.db.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select state %s/%s: %w", s.entityID, key, err)
	}
	return []byte(value), true, nil
}

// SaveReminder inserts a reminder unless one with the same name exists for the entity.
func (r *SQLRepository) SaveReminder(ctx context.Context, reminder domain.Reminder) (bool, error) {
	query, args, err := r.builder.
		Insert("reminders").
		Columns("entity_id", "name", "payload", "due_ns", "period_ns", "registered_at").
		Values(
			reminder.EntityID,
			reminder.Name,
			string(reminder.Payload),
			int64(reminder.DueTime),
			int64(reminder.Period),
			reminder.RegisteredAt.UnixNano(),
		).
		Suffix("ON CONFLICT (entity_id, name) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build insert reminder: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("insert reminder %s/%s: %w", reminder.EntityID, reminder.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert reminder rows affected: %w", err)
	}
	return n == 1, nil
}

// LoadReminder returns the reminder registered under name for the entity.
func (r *SQLRepository) LoadReminder(ctx context.Context, entityID, name string) (domain.Reminder, bool, error) {
	query, args, err := r.reminderSelect().
		Where(sq.Eq{"entity_id": entityID, "name": name}).
		ToSql()
	if err != nil {
		return domain.Reminder{}, false, fmt.Errorf("build select reminder: %w", err)
	}

	reminder, err := scanReminder(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Reminder{}, false, nil
	}
	if err != nil {
		return domain.Reminder{}, false, fmt.Errorf("select reminder %s/%s: %w", entityID, name, err)
	}
	return reminder, true, nil
}

// ListReminders returns every persisted reminder ordered by entity and name.
func (r *SQLRepository) ListReminders(ctx context.Context) ([]domain.Reminder, error) {
	query, args, err := r.reminderSelect().OrderBy("entity_id", "name").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list reminders: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reminders: %w", err)
	}

	var result []domain.Reminder
	for rows.Next() {
		reminder, err := scanReminder(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		result = append(result, reminder)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return result, nil
}

// DeleteReminder removes a reminder registration; missing rows are not an error.
func (r *SQLRepository) DeleteReminder(ctx context.Context, entityID, name string) error {
	query, args, err := r.builder.
		Delete("reminders").
		Where(sq.Eq{"entity_id": entityID, "name": name}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete reminder: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete reminder %s/%s: %w", entityID, name, err)
	}
	return nil
}

func (r *SQLRepository) reminderSelect() sq.SelectBuilder {
	return r.builder.
		Select("entity_id", "name", "payload", "due_ns", "period_ns", "registered_at").
		From("reminders")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReminder(row rowScanner) (domain.Reminder, error) {
	var (
		reminder             domain.Reminder
		payload              string
		due, period, regNano int64
	)
	if err := row.Scan(&reminder.EntityID, &reminder.Name, &payload, &due, &period, &regNano); err != nil {
		return domain.Reminder{}, err
	}
	if payload != "" {
		reminder.Payload = []byte(payload)
	}
	reminder.DueTime = time.Duration(due)
	reminder.Period = time.Duration(period)
	reminder.RegisteredAt = time.Unix(0, regNano).UTC()
	return reminder, nil
}
