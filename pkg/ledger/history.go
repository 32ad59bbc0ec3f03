package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"pitboss/pkg/protocol"
)

// HistoryOpts specifies filter criteria for a transaction history query.
type HistoryOpts struct {
	// Currency filters to a single counter (empty = all).
	Currency protocol.Currency

	// After filters transactions created at or after this time.
	After *time.Time

	// Before filters transactions created at or before this time.
	Before *time.Time

	// Limit restricts the number of results (0 = no limit).
	Limit int
}

// History returns an account's transactions, newest first.
func (l *Ledger) History(ctx context.Context, accountID string, opts HistoryOpts) ([]protocol.Transaction, error) {
	if accountID == "" {
		return nil, &protocol.NotFoundError{Kind: "account", ID: accountID}
	}

	query, args := buildHistoryQuery(accountID, opts)
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []protocol.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// buildHistoryQuery constructs the SQL query and arguments from HistoryOpts.
func buildHistoryQuery(accountID string, opts HistoryOpts) (string, []any) {
	query := `SELECT id, account_id, amount, currency, description,
		task_id, game_id, session_id,
		before_coins, before_redeemable, before_loyalty,
		after_coins, after_redeemable, after_loyalty,
		status, created_at
		FROM transactions WHERE account_id = ?`
	args := []any{accountID}
	var conditions []string

	if opts.Currency != "" {
		conditions = append(conditions, "currency = ?")
		args = append(args, string(opts.Currency))
	}
	if opts.After != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, opts.After.UTC().Format(time.RFC3339))
	}
	if opts.Before != nil {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, opts.Before.UTC().Format(time.RFC3339))
	}
	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY created_at DESC, id DESC"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	return query, args
}

func scanTransaction(rows *sql.Rows) (protocol.Transaction, error) {
	var t protocol.Transaction
	var currency, createdAt string
	err := rows.Scan(&t.ID, &t.AccountID, &t.Amount, &currency, &t.Description,
		&t.TaskID, &t.GameID, &t.SessionID,
		&t.Before.Coins, &t.Before.Redeemable, &t.Before.Loyalty,
		&t.After.Coins, &t.After.Redeemable, &t.After.Loyalty,
		&t.Status, &createdAt)
	if err != nil {
		return t, fmt.Errorf("scan transaction: %w", err)
	}
	t.Currency = protocol.Currency(currency)
	t.Before.AccountID = t.AccountID
	t.After.AccountID = t.AccountID
	if createdAt != "" {
		ts, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return t, fmt.Errorf("parse transaction created_at: %w", err)
		}
		t.CreatedAt = ts
	}
	return t, nil
}
