package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

var _ Store = (*SQLiteStore)(nil)

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Every connection to :memory: opens a separate database.
	if cfg.Path == ":memory:" {
		cfg.MaxOpenConns = 1
	}
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 4
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 1
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	return &SQLiteStore{cfg: cfg}, nil
}

// Init opens the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := s.cfg.Path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	if s.cfg.Path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// CreateOperation records the start of an operation
func (s *SQLiteStore) CreateOperation(ctx context.Context, op *Operation) error {
	if op.Status == "" {
		op.Status = OperationStatusRunning
	}
	if op.Result == "" {
		op.Result = "Null"
	}
	if op.Telemetry == "" {
		op.Telemetry = "{}"
	}

	query := `
		INSERT INTO operations (id, command, project_root, status, started_at, finished_at, operator, result, error_message, telemetry)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		op.ID,
		op.Command,
		op.ProjectRoot,
		op.Status,
		op.StartedAt,
		op.FinishedAt,
		op.Operator,
		op.Result,
		op.ErrorMessage,
		op.Telemetry,
	)
	if err != nil {
		return fmt.Errorf("failed to create operation: %w", err)
	}

	return nil
}

// FinishOperation stores the final state of an operation
func (s *SQLiteStore) FinishOperation(ctx context.Context, op *Operation) error {
	if op.FinishedAt == nil {
		now := time.Now()
		op.FinishedAt = &now
	}
	op.Status = OperationStatusFinished

	query := `
		UPDATE operations
		SET status = ?, finished_at = ?, operator = ?, result = ?, error_message = ?, telemetry = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		op.Status,
		op.FinishedAt,
		op.Operator,
		op.Result,
		op.ErrorMessage,
		op.Telemetry,
		op.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish operation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("operation %s: %w", op.ID, ErrNotFound)
	}

	return nil
}

// GetOperation retrieves an operation by ID
func (s *SQLiteStore) GetOperation(ctx context.Context, id string) (*Operation, error) {
	query := `
		SELECT id, command, project_root, status, started_at, finished_at, operator, result, error_message, telemetry
		FROM operations
		WHERE id = ?
	`

	op, err := scanOperation(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("operation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get operation: %w", err)
	}

	return op, nil
}

// ListOperations lists operations, newest first, optionally for one project
func (s *SQLiteStore) ListOperations(ctx context.Context, projectRoot *string, limit, offset int) ([]*Operation, error) {
	query := `
		SELECT id, command, project_root, status, started_at, finished_at, operator, result, error_message, telemetry
		FROM operations
		WHERE (? IS NULL OR project_root = ?)
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, projectRoot, projectRoot, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}
	defer rows.Close()

	ops := []*Operation{}
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}
		ops = append(ops, op)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating operations: %w", err)
	}

	return ops, nil
}

// DeleteOperationsBefore prunes operations started before the given time.
// Their events are removed by the foreign key cascade.
func (s *SQLiteStore) DeleteOperationsBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM operations WHERE started_at < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete operations: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows, nil
}

// AppendEvent appends an event to an operation
func (s *SQLiteStore) AppendEvent(ctx context.Context, event *OperationEvent) error {
	query := `
		INSERT INTO operation_events (operation_id, type, phase, component, level, message, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		event.OperationID,
		event.Type,
		event.Phase,
		event.Component,
		event.Level,
		event.Message,
		event.Details,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get event ID: %w", err)
	}

	event.ID = id
	return nil
}

// GetEvents lists the events of an operation in the order they were recorded
func (s *SQLiteStore) GetEvents(ctx context.Context, operationID string, level *EventLevel, limit, offset int) ([]*OperationEvent, error) {
	query := `
		SELECT id, operation_id, type, phase, component, level, message, details, timestamp
		FROM operation_events
		WHERE operation_id = ?
		  AND (? IS NULL OR level = ?)
		ORDER BY id ASC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, operationID, level, level, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	events := []*OperationEvent{}
	for rows.Next() {
		event := &OperationEvent{}
		err := rows.Scan(
			&event.ID,
			&event.OperationID,
			&event.Type,
			&event.Phase,
			&event.Component,
			&event.Level,
			&event.Message,
			&event.Details,
			&event.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

// HealthCheck verifies the database connection
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOperation(row rowScanner) (*Operation, error) {
	op := &Operation{}
	err := row.Scan(
		&op.ID,
		&op.Command,
		&op.ProjectRoot,
		&op.Status,
		&op.StartedAt,
		&op.FinishedAt,
		&op.Operator,
		&op.Result,
		&op.ErrorMessage,
		&op.Telemetry,
	)
	if err != nil {
		return nil, err
	}
	return op, nil
}
