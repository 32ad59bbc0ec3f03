package alerts //nolint:testpackage // internal white-box tests need access to unexported fields

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"pitboss/pkg/protocol"

	_ "modernc.org/sqlite"
)

// newTestDB creates a uniquely named shared-cache in-memory database with the
// full schema applied.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:alerts_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := db.Exec(protocol.SchemaDDL); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return db
}

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	b := New(newTestDB(t))
	n := 0
	b.idFunc = func() string {
		n++
		return fmt.Sprintf("alert-%d", n)
	}
	base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	b.nowFunc = func() time.Time {
		base = base.Add(time.Second)
		return base
	}
	return b
}

func TestPublishAssignsIDAndActiveStatus(t *testing.T) {
	b := newTestBus(t)
	ctx := context.Background()

	id, err := b.Publish(ctx, protocol.Alert{
		Type:     "big_win",
		Title:    "Big win: 600 redeemable",
		Severity: protocol.SeverityMedium,
		Source:   "ledger",
		Payload:  map[string]any{"account_id": "player-7"},
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if id != "alert-1" {
		t.Errorf("id = %q, want alert-1", id)
	}

	active, err := b.Active(ctx, Filters{})
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("got %d active alerts, want 1", len(active))
	}
	a := active[0]
	if a.Status != protocol.AlertActive || a.Acknowledged {
		t.Errorf("alert = %+v, want fresh active", a)
	}
	if a.Payload["account_id"] != "player-7" {
		t.Errorf("payload = %v, round trip lost account_id", a.Payload)
	}
}

func TestActiveOrdersBySeverityThenRecency(t *testing.T) {
	b := newTestBus(t)
	ctx := context.Background()

	for _, sev := range []protocol.Severity{
		protocol.SeverityLow, protocol.SeverityCritical,
		protocol.SeverityMedium, protocol.SeverityHigh,
		protocol.SeverityCritical,
	} {
		if _, err := b.Publish(ctx, protocol.Alert{Type: "t", Title: "x", Severity: sev, Source: "test"}); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	active, err := b.Active(ctx, Filters{})
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	got := make([]protocol.Severity, len(active))
	for i, a := range active {
		got[i] = a.Severity
	}
	want := []protocol.Severity{
		protocol.SeverityCritical, protocol.SeverityCritical,
		protocol.SeverityHigh, protocol.SeverityMedium, protocol.SeverityLow,
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
	// Among equal severity, newer first.
	if active[0].ID != "alert-5" || active[1].ID != "alert-2" {
		t.Errorf("critical order = %s, %s; want alert-5 then alert-2", active[0].ID, active[1].ID)
	}
}

func TestActiveFilters(t *testing.T) {
	b := newTestBus(t)
	ctx := context.Background()

	_, _ = b.Publish(ctx, protocol.Alert{Type: "big_win", Severity: protocol.SeverityHigh, Title: "w", Source: "ledger"})
	_, _ = b.Publish(ctx, protocol.Alert{Type: "task_escalation", Severity: protocol.SeverityHigh, Title: "e", Source: "dispatcher"})
	_, _ = b.Publish(ctx, protocol.Alert{Type: "big_win", Severity: protocol.SeverityLow, Title: "s", Source: "ledger"})

	byType, err := b.Active(ctx, Filters{Type: "big_win"})
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if len(byType) != 2 {
		t.Errorf("type filter returned %d, want 2", len(byType))
	}

	bySev, err := b.Active(ctx, Filters{Severity: protocol.SeverityHigh, Limit: 1})
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if len(bySev) != 1 || bySev[0].Severity != protocol.SeverityHigh {
		t.Errorf("severity filter = %+v", bySev)
	}
}

func TestAcknowledgeAndResolveLifecycle(t *testing.T) {
	b := newTestBus(t)
	ctx := context.Background()

	id, _ := b.Publish(ctx, protocol.Alert{Type: "t", Title: "x", Severity: protocol.SeverityLow, Source: "test"})

	if err := b.Acknowledge(ctx, id); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	// Acknowledged alerts drop out of the active view.
	active, _ := b.Active(ctx, Filters{})
	if len(active) != 0 {
		t.Errorf("acknowledged alert still active: %+v", active)
	}

	// Acknowledging again is a no-op, not an error.
	if err := b.Acknowledge(ctx, id); err != nil {
		t.Errorf("second Acknowledge: %v", err)
	}

	if err := b.Resolve(ctx, id); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	var status string
	if err := b.db.QueryRow(`SELECT status FROM alerts WHERE id = ?`, id).Scan(&status); err != nil {
		t.Fatalf("query status: %v", err)
	}
	if status != "resolved" {
		t.Errorf("status = %q, want resolved", status)
	}
}

func TestResolveSkipsAcknowledge(t *testing.T) {
	b := newTestBus(t)
	ctx := context.Background()

	id, _ := b.Publish(ctx, protocol.Alert{Type: "t", Title: "x", Severity: protocol.SeverityLow, Source: "test"})
	if err := b.Resolve(ctx, id); err != nil {
		t.Fatalf("Resolve straight from active: %v", err)
	}
}

func TestUnknownAlertID(t *testing.T) {
	b := newTestBus(t)
	ctx := context.Background()

	var nf *protocol.NotFoundError
	if err := b.Acknowledge(ctx, "missing"); !errors.As(err, &nf) {
		t.Errorf("Acknowledge unknown = %v, want NotFoundError", err)
	}
	if err := b.Resolve(ctx, "missing"); !errors.As(err, &nf) {
		t.Errorf("Resolve unknown = %v, want NotFoundError", err)
	}
	if nf != nil && nf.Kind != "alert" {
		t.Errorf("NotFoundError.Kind = %q, want alert", nf.Kind)
	}
}

func TestSubscribeReceivesPublishedAlerts(t *testing.T) {
	b := newTestBus(t)
	ctx := context.Background()

	ch := b.Subscribe()
	id, _ := b.Publish(ctx, protocol.Alert{Type: "t", Title: "x", Severity: protocol.SeverityLow, Source: "test"})

	select {
	case a := <-ch:
		if a.ID != id {
			t.Errorf("received %q, want %q", a.ID, id)
		}
	case <-time.After(time.Second):
		t.Fatal("no alert received on subscriber channel")
	}
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	b := newTestBus(t)
	ctx := context.Background()

	b.Subscribe() // never drained

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer+5; i++ {
			if _, err := b.Publish(ctx, protocol.Alert{Type: "t", Title: "x", Severity: protocol.SeverityLow, Source: "test"}); err != nil {
				t.Errorf("Publish %d: %v", i, err)
				return
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}
