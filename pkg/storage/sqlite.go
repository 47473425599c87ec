package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// GenerationRecord captures one compilation run for the history view.
type GenerationRecord struct {
	ID           int64
	WorkflowID   string
	WorkflowName string
	FileCount    int
	StepCount    int
	ErrorCount   int
	WarningCount int
	Duration     time.Duration
	CreatedAt    time.Time
}

// SQLiteHistoryRepository stores generation history in a local SQLite
// database.
type SQLiteHistoryRepository struct {
	db *sql.DB
}

// NewSQLiteHistoryRepository opens (or creates) the history database at
// the given path.
func NewSQLiteHistoryRepository(dbPath string) (*SQLiteHistoryRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := initializeSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &SQLiteHistoryRepository{db: db}, nil
}

// Close closes the database connection.
func (r *SQLiteHistoryRepository) Close() error {
	return r.db.Close()
}

// Record persists one generation run. The record's ID is filled in on
// success.
func (r *SQLiteHistoryRepository) Record(rec *GenerationRecord) error {
	if rec == nil {
		return fmt.Errorf("cannot record nil generation")
	}
	if rec.WorkflowID == "" {
		return fmt.Errorf("generation record must have a workflow ID")
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO generations (
			workflow_id, workflow_name, file_count, step_count,
			error_count, warning_count, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Exec(query,
		rec.WorkflowID,
		rec.WorkflowName,
		rec.FileCount,
		rec.StepCount,
		rec.ErrorCount,
		rec.WarningCount,
		rec.Duration.Milliseconds(),
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record generation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read generation id: %w", err)
	}
	rec.ID = id

	return nil
}

// ListByWorkflow returns the most recent generations for one workflow,
// newest first.
func (r *SQLiteHistoryRepository) ListByWorkflow(workflowID string, limit int) ([]*GenerationRecord, error) {
	query := `
		SELECT id, workflow_id, workflow_name, file_count, step_count,
		       error_count, warning_count, duration_ms, created_at
		FROM generations
		WHERE workflow_id = ?
		ORDER BY created_at DESC, id DESC
	`
	args := []interface{}{workflowID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	return r.queryRecords(query, args...)
}

// ListRecent returns the most recent generations across all workflows,
// newest first.
func (r *SQLiteHistoryRepository) ListRecent(limit int) ([]*GenerationRecord, error) {
	query := `
		SELECT id, workflow_id, workflow_name, file_count, step_count,
		       error_count, warning_count, duration_ms, created_at
		FROM generations
		ORDER BY created_at DESC, id DESC
	`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	return r.queryRecords(query, args...)
}

func (r *SQLiteHistoryRepository) queryRecords(query string, args ...interface{}) ([]*GenerationRecord, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query generations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]*GenerationRecord, 0)
	for rows.Next() {
		var rec GenerationRecord
		var durationMS int64

		err := rows.Scan(
			&rec.ID,
			&rec.WorkflowID,
			&rec.WorkflowName,
			&rec.FileCount,
			&rec.StepCount,
			&rec.ErrorCount,
			&rec.WarningCount,
			&durationMS,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan generation: %w", err)
		}

		rec.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating generations: %w", err)
	}

	return records, nil
}

// initializeSchema creates the history schema, tracking the applied
// version so future migrations can build on it.
func initializeSchema(db *sql.DB) error {
	migrationsTable := `
	CREATE TABLE IF NOT EXISTS migrations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		version INTEGER NOT NULL UNIQUE,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`

	if _, err := db.Exec(migrationsTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var currentVersion int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to check migration version: %w", err)
	}

	if currentVersion < 1 {
		if err := applyMigration1(db); err != nil {
			return fmt.Errorf("failed to apply migration 1: %w", err)
		}
	}

	return nil
}

func applyMigration1(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	generationsTable := `
	CREATE TABLE generations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		workflow_id TEXT NOT NULL,
		workflow_name TEXT NOT NULL,
		file_count INTEGER NOT NULL,
		step_count INTEGER NOT NULL,
		error_count INTEGER NOT NULL,
		warning_count INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL
	);`

	if _, err := tx.Exec(generationsTable); err != nil {
		return fmt.Errorf("failed to create generations table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX idx_generations_workflow_id ON generations(workflow_id, created_at DESC);",
		"CREATE INDEX idx_generations_created_at ON generations(created_at DESC);",
	}
	for _, idx := range indexes {
		if _, err := tx.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	if _, err := tx.Exec("INSERT INTO migrations (version) VALUES (1)"); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
