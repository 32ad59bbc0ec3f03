// Package eventlog provides read-only access to the pitboss runtime event
// log. It enables querying dispatcher and ledger events for display in
// pitboss-dash and the status command.
package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// Event represents a single event from the runtime log.
type Event struct {
	ID        int64
	Type      string
	Source    string
	TaskID    string
	WorkerID  string
	AccountID string
	Payload   string
	CreatedAt time.Time
}

// QueryOpts specifies filter criteria for querying events.
type QueryOpts struct {
	// WorkerID filters events to a specific worker.
	WorkerID string

	// TaskID filters events to a specific work item.
	TaskID string

	// EventType filters to a specific event type (e.g. "task_assigned").
	EventType string

	// After filters events created after this time (inclusive).
	After *time.Time

	// Before filters events created before this time (inclusive).
	Before *time.Time

	// Limit restricts the number of results (0 = no limit).
	Limit int
}

// Reader provides read-only access to the event log.
type Reader struct {
	db *sql.DB
}

// NewReader opens the state database in read-only mode with WAL so reads
// never block the running service. Returns an error if the database does
// not exist.
func NewReader(dbPath string) (*Reader, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("database not found: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_journal_mode=WAL", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Reader{db: db}, nil
}

// Close releases the database connection. Safe to call multiple times.
func (r *Reader) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Query retrieves events matching the given filter criteria, newest first.
// Returns an empty slice if no events match.
func (r *Reader) Query(ctx context.Context, opts QueryOpts) ([]Event, error) {
	query, args := buildQuery(opts)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []Event
	for rows.Next() {
		var e Event
		var taskID, workerID, accountID, payload sql.NullString
		var createdAtStr string

		err := rows.Scan(&e.ID, &e.Type, &e.Source, &taskID, &workerID, &accountID, &payload, &createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.TaskID = taskID.String
		e.WorkerID = workerID.String
		e.AccountID = accountID.String
		e.Payload = payload.String

		if createdAtStr != "" {
			parsed, err := time.Parse("2006-01-02 15:04:05", createdAtStr)
			if err != nil {
				parsed, err = time.Parse(time.RFC3339, createdAtStr)
				if err != nil {
					return nil, fmt.Errorf("parse created_at: %w", err)
				}
			}
			e.CreatedAt = parsed
		}

		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// buildQuery constructs the SQL query and arguments from QueryOpts.
func buildQuery(opts QueryOpts) (string, []any) {
	var conditions []string
	var args []any

	query := "SELECT id, type, source, task_id, worker_id, account_id, payload, created_at FROM events WHERE 1=1"

	if opts.WorkerID != "" {
		conditions = append(conditions, "worker_id = ?")
		args = append(args, opts.WorkerID)
	}
	if opts.TaskID != "" {
		conditions = append(conditions, "task_id = ?")
		args = append(args, opts.TaskID)
	}
	if opts.EventType != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, opts.EventType)
	}
	if opts.After != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, opts.After.Format("2006-01-02 15:04:05"))
	}
	if opts.Before != nil {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, opts.Before.Format("2006-01-02 15:04:05"))
	}

	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY id DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	return query, args
}

// DefaultDBPath returns the default path to the state database.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".pitboss", "state.db")
}
