// Package alerts implements the append-and-subscribe alert stream shared by
// the dispatcher and the ledger. Alerts are persisted to the state database
// for dashboard reads and fanned out to in-process subscribers. Acknowledge
// and resolve are plain status transitions with no side effects on other
// entities.
package alerts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"pitboss/pkg/protocol"

	"github.com/google/uuid"
)

// subscriberBuffer is the channel depth per subscriber; slow consumers drop
// alerts rather than blocking publishers.
const subscriberBuffer = 16

// Bus is the alert stream. Safe for concurrent use.
type Bus struct {
	db *sql.DB

	mu   sync.Mutex
	subs []chan protocol.Alert

	// nowFunc allows tests to control time.
	nowFunc func() time.Time
	// idFunc allows tests to control alert ids.
	idFunc func() string
}

// New creates a Bus over the given state database. The caller owns db.
func New(db *sql.DB) *Bus {
	return &Bus{
		db:      db,
		nowFunc: time.Now,
		idFunc:  uuid.NewString,
	}
}

// Publish appends an alert to the stream and notifies subscribers. The id,
// timestamp and active status are assigned here; callers only provide type,
// title, message, severity, source and payload.
func (b *Bus) Publish(ctx context.Context, a protocol.Alert) (string, error) {
	a.ID = b.idFunc()
	a.CreatedAt = b.nowFunc()
	a.Status = protocol.AlertActive
	a.Acknowledged = false

	var payload []byte
	if a.Payload != nil {
		var err error
		payload, err = json.Marshal(a.Payload)
		if err != nil {
			return "", fmt.Errorf("marshal alert payload: %w", err)
		}
	}

	_, err := b.db.ExecContext(ctx,
		`INSERT INTO alerts (id, type, title, message, severity, source, payload, status, acknowledged, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		a.ID, a.Type, a.Title, a.Message, string(a.Severity), a.Source,
		string(payload), string(a.Status), a.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("insert alert: %w", err)
	}

	b.mu.Lock()
	for _, ch := range b.subs {
		select {
		case ch <- a:
		default: // subscriber is behind; drop rather than block
		}
	}
	b.mu.Unlock()

	return a.ID, nil
}

// Subscribe returns a channel receiving every subsequently published alert.
// The channel is buffered; alerts are dropped for subscribers that fall
// behind.
func (b *Bus) Subscribe() <-chan protocol.Alert {
	ch := make(chan protocol.Alert, subscriberBuffer)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

// Filters narrows an Active query.
type Filters struct {
	Type     string            // alert type tag, empty = all
	Severity protocol.Severity // exact severity, empty = all
	Limit    int               // 0 = no limit
}

// severityRankSQL orders rows critical > high > medium > low in SQL.
const severityRankSQL = `CASE severity
	WHEN 'critical' THEN 4
	WHEN 'high' THEN 3
	WHEN 'medium' THEN 2
	WHEN 'low' THEN 1
	ELSE 0 END`

// Active returns all active alerts ordered by severity then recency.
func (b *Bus) Active(ctx context.Context, f Filters) ([]protocol.Alert, error) {
	query := `SELECT id, type, title, message, severity, source, payload, status, acknowledged, created_at
		FROM alerts WHERE status = 'active'`
	var args []any
	var conditions []string
	if f.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, f.Type)
	}
	if f.Severity != "" {
		conditions = append(conditions, "severity = ?")
		args = append(args, string(f.Severity))
	}
	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY " + severityRankSQL + " DESC, created_at DESC, id DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []protocol.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}
	return out, nil
}

// Acknowledge marks an active alert acknowledged. Unknown ids return
// NotFoundError; alerts already past active are left unchanged.
func (b *Bus) Acknowledge(ctx context.Context, id string) error {
	res, err := b.db.ExecContext(ctx,
		`UPDATE alerts SET status = 'acknowledged', acknowledged = 1 WHERE id = ? AND status = 'active'`, id)
	if err != nil {
		return fmt.Errorf("acknowledge alert: %w", err)
	}
	return b.checkTransition(ctx, id, res)
}

// Resolve marks an alert resolved from either active or acknowledged.
// Unknown ids return NotFoundError.
func (b *Bus) Resolve(ctx context.Context, id string) error {
	res, err := b.db.ExecContext(ctx,
		`UPDATE alerts SET status = 'resolved' WHERE id = ? AND status IN ('active', 'acknowledged')`, id)
	if err != nil {
		return fmt.Errorf("resolve alert: %w", err)
	}
	return b.checkTransition(ctx, id, res)
}

// checkTransition distinguishes "already transitioned" (a no-op) from
// "unknown id" when an UPDATE matched no rows.
func (b *Bus) checkTransition(ctx context.Context, id string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	var exists int
	err = b.db.QueryRowContext(ctx, `SELECT 1 FROM alerts WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return &protocol.NotFoundError{Kind: "alert", ID: id}
	}
	if err != nil {
		return fmt.Errorf("lookup alert %s: %w", id, err)
	}
	return nil
}

func scanAlert(rows *sql.Rows) (protocol.Alert, error) {
	var a protocol.Alert
	var payload, severity, status, createdAt string
	var acked int
	err := rows.Scan(&a.ID, &a.Type, &a.Title, &a.Message, &severity, &a.Source,
		&payload, &status, &acked, &createdAt)
	if err != nil {
		return a, fmt.Errorf("scan alert: %w", err)
	}
	a.Severity = protocol.Severity(severity)
	a.Status = protocol.AlertStatus(status)
	a.Acknowledged = acked != 0
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &a.Payload); err != nil {
			return a, fmt.Errorf("unmarshal alert payload: %w", err)
		}
	}
	if createdAt != "" {
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return a, fmt.Errorf("parse alert created_at: %w", err)
		}
		a.CreatedAt = t
	}
	return a, nil
}
