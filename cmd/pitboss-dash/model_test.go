package main

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func testSnapshot() *Snapshot {
	return &Snapshot{
		Alerts: []AlertRow{
			{ID: "a-1", Type: "big_win", Title: "Big win recorded", Severity: "high", Source: "ledger", CreatedAt: time.Now()},
		},
		Accounts: []AccountRow{
			{AccountID: "player-1", Coins: 500, Redeemable: 40, Loyalty: 3},
		},
		Events: []EventRow{
			{Type: "task_created", Source: "dispatcher", Subject: "task-1", CreatedAt: time.Now()},
		},
		Transactions: 2,
		Revenue:      300,
		FetchedAt:    time.Now(),
	}
}

func TestViewLoadingState(t *testing.T) {
	m := newModel("/tmp/state.db")
	view := m.View()
	if !strings.Contains(view, "loading") {
		t.Errorf("initial view should show loading, got %q", view)
	}
}

func TestViewErrorState(t *testing.T) {
	m := newModel("/tmp/state.db")
	updated, _ := m.Update(snapshotMsg{Err: errors.New("no such file")})
	view := updated.(Model).View()
	if !strings.Contains(view, "cannot read state db") {
		t.Errorf("view = %q, want the error state", view)
	}
	if !strings.Contains(view, "pitboss init") {
		t.Errorf("view = %q, should point at init", view)
	}
}

func TestViewRendersSnapshot(t *testing.T) {
	m := newModel("/tmp/state.db")
	updated, _ := m.Update(snapshotMsg{Snap: testSnapshot()})
	view := updated.(Model).View()

	for _, want := range []string{"Big win recorded", "player-1", "task_created", "2 transactions", "revenue 300"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestFailedRefreshKeepsLastSnapshot(t *testing.T) {
	m := newModel("/tmp/state.db")
	updated, _ := m.Update(snapshotMsg{Snap: testSnapshot()})
	updated, _ = updated.(Model).Update(snapshotMsg{Err: errors.New("db locked")})
	view := updated.(Model).View()

	if !strings.Contains(view, "player-1") {
		t.Error("previous snapshot should stay on screen through a failed refresh")
	}
	if !strings.Contains(view, "last refresh failed") {
		t.Error("failed refresh should be surfaced")
	}
}

func TestSeverityStyleMapping(t *testing.T) {
	m := newModel("/tmp/state.db")
	if m.severityStyle("critical").Render("x") != m.styles.Urgent.Render("x") {
		t.Error("critical should render urgent")
	}
	if m.severityStyle("medium").Render("x") != m.styles.Warn.Render("x") {
		t.Error("medium should render warn")
	}
	if m.severityStyle("low").Render("x") != m.styles.OK.Render("x") {
		t.Error("low should render ok")
	}
}
