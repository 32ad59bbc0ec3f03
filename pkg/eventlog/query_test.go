package eventlog //nolint:testpackage // internal white-box tests need access to unexported fields

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"pitboss/pkg/protocol"

	_ "modernc.org/sqlite"
)

// seedDB creates a state database on disk with a handful of events.
func seedDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer func() { _ = db.Close() }()
	if _, err := db.Exec(protocol.SchemaDDL); err != nil {
		t.Fatalf("apply schema: %v", err)
	}

	rows := []struct {
		evType, source, taskID, workerID, accountID string
		createdAt                                   string
	}{
		{"task_created", "dispatcher", "task-1", "", "", "2026-08-30 10:00:00"},
		{"task_assigned", "dispatcher", "task-1", "emp-1", "", "2026-08-30 10:00:05"},
		{"task_completed", "dispatcher", "task-1", "emp-1", "", "2026-08-30 10:30:00"},
		{"task_created", "dispatcher", "task-2", "", "", "2026-08-31 09:00:00"},
	}
	for _, r := range rows {
		_, err := db.Exec(
			`INSERT INTO events (type, source, task_id, worker_id, account_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			r.evType, r.source, r.taskID, r.workerID, r.accountID, r.createdAt)
		if err != nil {
			t.Fatalf("insert event: %v", err)
		}
	}
	return path
}

func TestNewReaderMissingFile(t *testing.T) {
	if _, err := NewReader(filepath.Join(t.TempDir(), "absent.db")); err == nil {
		t.Error("NewReader should reject a missing database file")
	}
}

func TestQueryNewestFirst(t *testing.T) {
	r, err := NewReader(seedDB(t))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer func() { _ = r.Close() }()

	events, err := r.Query(context.Background(), QueryOpts{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}
	if events[0].Type != "task_created" || events[0].TaskID != "task-2" {
		t.Errorf("first event = %+v, want the newest", events[0])
	}
	if events[0].CreatedAt.IsZero() {
		t.Error("created_at not parsed")
	}
}

func TestQueryFilters(t *testing.T) {
	r, err := NewReader(seedDB(t))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer func() { _ = r.Close() }()
	ctx := context.Background()

	byWorker, err := r.Query(ctx, QueryOpts{WorkerID: "emp-1"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(byWorker) != 2 {
		t.Errorf("worker filter = %d, want 2", len(byWorker))
	}

	byTask, err := r.Query(ctx, QueryOpts{TaskID: "task-1", EventType: "task_assigned"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(byTask) != 1 || byTask[0].WorkerID != "emp-1" {
		t.Errorf("combined filter = %+v", byTask)
	}

	after := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	recent, err := r.Query(ctx, QueryOpts{After: &after})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(recent) != 1 || recent[0].TaskID != "task-2" {
		t.Errorf("after filter = %+v", recent)
	}

	limited, err := r.Query(ctx, QueryOpts{Limit: 2})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limit = %d, want 2", len(limited))
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	r, err := NewReader(seedDB(t))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("first Close: %v", err)
	}
	_ = r.Close()
}
