package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"pitboss/pkg/eventlog"

	_ "modernc.org/sqlite"
)

// AlertRow is one active alert shown in the alerts panel.
type AlertRow struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Severity  string    `json:"severity"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// AccountRow is one wallet row shown in the accounts panel.
type AccountRow struct {
	AccountID  string `json:"account_id"`
	Coins      int64  `json:"coins"`
	Redeemable int64  `json:"redeemable"`
	Loyalty    int64  `json:"loyalty"`
}

// EventRow is one recent runtime event shown in the activity feed.
type EventRow struct {
	Type      string    `json:"type"`
	Source    string    `json:"source"`
	Subject   string    `json:"subject"`
	CreatedAt time.Time `json:"created_at"`
}

// Snapshot is everything the dashboard shows in one refresh.
type Snapshot struct {
	Alerts       []AlertRow   `json:"alerts"`
	Accounts     []AccountRow `json:"accounts"`
	Events       []EventRow   `json:"events"`
	Transactions int64        `json:"transactions"`
	Revenue      int64        `json:"revenue"`
	FetchedAt    time.Time    `json:"fetched_at"`
}

// statePath returns the state database path, honoring PITBOSS_DB_PATH.
func statePath() string {
	if v := os.Getenv("PITBOSS_DB_PATH"); v != "" {
		return v
	}
	return eventlog.DefaultDBPath()
}

// FetchSnapshot reads a point-in-time view of alerts, accounts and recent
// events from the state database at dbPath. The database is opened read-only
// so a refresh never blocks the running service.
func FetchSnapshot(ctx context.Context, dbPath string) (*Snapshot, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_journal_mode=WAL", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open state db %s: %w", dbPath, err)
	}
	defer db.Close() //nolint:errcheck // best-effort close on read-only query path

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping state db %s: %w", dbPath, err)
	}

	snap := &Snapshot{FetchedAt: time.Now()}

	if snap.Alerts, err = fetchAlerts(ctx, db); err != nil {
		return nil, err
	}
	if snap.Accounts, err = fetchAccounts(ctx, db); err != nil {
		return nil, err
	}
	if snap.Events, err = fetchEvents(ctx, dbPath); err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN amount > 0 THEN amount ELSE 0 END), 0)
		FROM   transactions
	`)
	if err := row.Scan(&snap.Transactions, &snap.Revenue); err != nil {
		return nil, fmt.Errorf("scan transaction totals: %w", err)
	}

	return snap, nil
}

// fetchAlerts returns unresolved alerts, most severe first.
func fetchAlerts(ctx context.Context, db *sql.DB) ([]AlertRow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, type, title, severity, source, created_at
		FROM   alerts
		WHERE  status IN ('active', 'acknowledged')
		ORDER  BY CASE severity
		            WHEN 'critical' THEN 0
		            WHEN 'high' THEN 1
		            WHEN 'medium' THEN 2
		            ELSE 3
		          END, created_at DESC
		LIMIT  20
	`)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close() //nolint:errcheck // best-effort close after full iteration

	var alerts []AlertRow
	for rows.Next() {
		var a AlertRow
		var createdAt string
		if err := rows.Scan(&a.ID, &a.Type, &a.Title, &a.Severity, &a.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.CreatedAt = parseDBTime(createdAt)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// fetchAccounts returns the richest wallets first.
func fetchAccounts(ctx context.Context, db *sql.DB) ([]AccountRow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT account_id, coins, redeemable, loyalty
		FROM   accounts
		ORDER  BY coins DESC
		LIMIT  10
	`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close() //nolint:errcheck // best-effort close after full iteration

	var accounts []AccountRow
	for rows.Next() {
		var a AccountRow
		if err := rows.Scan(&a.AccountID, &a.Coins, &a.Redeemable, &a.Loyalty); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// fetchEvents pulls the latest runtime events through the eventlog reader.
func fetchEvents(ctx context.Context, dbPath string) ([]EventRow, error) {
	reader, err := eventlog.NewReader(dbPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	events, err := reader.Query(ctx, eventlog.QueryOpts{Limit: 15})
	if err != nil {
		return nil, err
	}

	out := make([]EventRow, 0, len(events))
	for _, e := range events {
		subject := e.TaskID
		if subject == "" {
			subject = e.AccountID
		}
		out = append(out, EventRow{
			Type:      e.Type,
			Source:    e.Source,
			Subject:   subject,
			CreatedAt: e.CreatedAt,
		})
	}
	return out, nil
}

// parseDBTime handles both sqlite datetime() and RFC3339 timestamps.
func parseDBTime(s string) time.Time {
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
