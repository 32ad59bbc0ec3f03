// Package ledger owns per-account wallet balances, the append-only
// transaction history, and the day-scoped aggregate counters derived from
// them. Every balance mutation goes through a single entry point that
// enforces the non-negative invariant atomically across all three counters.
//
// Updates to the same account are serialized with a per-account mutex and
// applied inside a single SQL transaction, so the invariant holds under
// concurrent callers.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"pitboss/pkg/protocol"

	"github.com/google/uuid"
)

// AlertPublisher is the slice of the alert bus the ledger needs.
type AlertPublisher interface {
	Publish(ctx context.Context, a protocol.Alert) (string, error)
}

// Config holds ledger thresholds and cadences.
type Config struct {
	LargeTransactionThreshold int64         // emits large_transaction events (default 1000)
	BigWinThreshold           int64         // publishes big_win alerts (default 500)
	ExtremeWinThreshold       int64         // flags wins for human verification (default 5000)
	ResetCheckInterval        time.Duration // midnight rollover check period (default 1m)
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.LargeTransactionThreshold == 0 {
		out.LargeTransactionThreshold = 1000
	}
	if out.BigWinThreshold == 0 {
		out.BigWinThreshold = 500
	}
	if out.ExtremeWinThreshold == 0 {
		out.ExtremeWinThreshold = 5000
	}
	if out.ResetCheckInterval == 0 {
		out.ResetCheckInterval = time.Minute
	}
	return out
}

// eventBuffer is the channel depth per event subscriber.
const eventBuffer = 16

// Ledger is the balance subsystem. Safe for concurrent use.
type Ledger struct {
	cfg    Config
	db     *sql.DB
	alerts AlertPublisher

	mu           sync.Mutex
	accountLocks map[string]*sync.Mutex
	counters     protocol.DailyCounters
	subs         []chan protocol.LedgerEvent

	// nowFunc allows tests to control time.
	nowFunc func() time.Time
	// idFunc allows tests to control transaction ids.
	idFunc func() string
}

// New creates a Ledger over the given state database. alerts may be nil, in
// which case threshold alerts are skipped.
func New(cfg Config, db *sql.DB, alerts AlertPublisher) *Ledger {
	resolved := cfg.withDefaults()
	l := &Ledger{
		cfg:          resolved,
		db:           db,
		alerts:       alerts,
		accountLocks: make(map[string]*sync.Mutex),
		nowFunc:      time.Now,
		idFunc:       uuid.NewString,
	}
	l.counters = protocol.DailyCounters{Date: l.today()}
	return l
}

// Targets carries the absolute new counter values for an update. Nil fields
// are left unchanged. These are targets, not deltas: the ledger computes the
// delta against the stored value.
type Targets struct {
	Coins      *int64
	Redeemable *int64
	Loyalty    *int64
}

// Changes reports the per-counter deltas an update produced.
type Changes struct {
	Coins      int64
	Redeemable int64
	Loyalty    int64
}

// Apply updates an account's balances to the given absolute targets. The
// whole update is rejected with InsufficientBalanceError — and no counter
// changes — if any resulting value would be negative. On success the new
// balances are stored with a fresh timestamp, positive coin deltas fold into
// the day's purchased total and positive redeemable deltas into the earned
// total.
func (l *Ledger) Apply(ctx context.Context, accountID string, t Targets) (protocol.Balance, Changes, error) {
	if accountID == "" {
		return protocol.Balance{}, Changes{}, &protocol.NotFoundError{Kind: "account", ID: accountID}
	}

	unlock := l.lockAccount(accountID)
	defer unlock()

	return l.applyLocked(ctx, accountID, t)
}

// applyLocked performs the balance update. Caller must hold the account lock.
func (l *Ledger) applyLocked(ctx context.Context, accountID string, t Targets) (protocol.Balance, Changes, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return protocol.Balance{}, Changes{}, fmt.Errorf("begin balance update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := loadBalanceTx(ctx, tx, accountID, l.nowFunc())
	if err != nil {
		return protocol.Balance{}, Changes{}, err
	}

	next := current
	if t.Coins != nil {
		next.Coins = *t.Coins
	}
	if t.Redeemable != nil {
		next.Redeemable = *t.Redeemable
	}
	if t.Loyalty != nil {
		next.Loyalty = *t.Loyalty
	}

	// All-or-nothing: one negative target rejects the whole update.
	for _, check := range []struct {
		cur protocol.Currency
		val int64
	}{
		{protocol.CurrencyCoins, next.Coins},
		{protocol.CurrencyRedeemable, next.Redeemable},
		{protocol.CurrencyLoyalty, next.Loyalty},
	} {
		if check.val < 0 {
			return current, Changes{}, &protocol.InsufficientBalanceError{
				AccountID: accountID,
				Currency:  check.cur,
				Required:  -check.val,
				Available: current.Get(check.cur),
				Balance:   current,
			}
		}
	}

	now := l.nowFunc()
	next.UpdatedAt = now
	_, err = tx.ExecContext(ctx,
		`UPDATE accounts SET coins = ?, redeemable = ?, loyalty = ?, updated_at = ? WHERE account_id = ?`,
		next.Coins, next.Redeemable, next.Loyalty, now.UTC().Format(time.RFC3339), accountID)
	if err != nil {
		return current, Changes{}, fmt.Errorf("update balance: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return current, Changes{}, fmt.Errorf("commit balance update: %w", err)
	}

	changes := Changes{
		Coins:      next.Coins - current.Coins,
		Redeemable: next.Redeemable - current.Redeemable,
		Loyalty:    next.Loyalty - current.Loyalty,
	}

	l.mu.Lock()
	if changes.Coins > 0 {
		l.counters.Purchased += changes.Coins
	}
	if changes.Redeemable > 0 {
		l.counters.Earned += changes.Redeemable
	}
	l.mu.Unlock()

	return next, changes, nil
}

// Balance returns the account's wallet, creating it with zeroed counters on
// first access.
func (l *Ledger) Balance(ctx context.Context, accountID string) (protocol.Balance, error) {
	if accountID == "" {
		return protocol.Balance{}, &protocol.NotFoundError{Kind: "account", ID: accountID}
	}
	unlock := l.lockAccount(accountID)
	defer unlock()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return protocol.Balance{}, fmt.Errorf("begin balance read: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	b, err := loadBalanceTx(ctx, tx, accountID, l.nowFunc())
	if err != nil {
		return protocol.Balance{}, err
	}
	if err := tx.Commit(); err != nil {
		return protocol.Balance{}, fmt.Errorf("commit balance read: %w", err)
	}
	return b, nil
}

// loadBalanceTx reads an account row inside tx, inserting a zeroed row on
// first access.
func loadBalanceTx(ctx context.Context, tx *sql.Tx, accountID string, now time.Time) (protocol.Balance, error) {
	_, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO accounts (account_id, coins, redeemable, loyalty, updated_at) VALUES (?, 0, 0, 0, ?)`,
		accountID, now.UTC().Format(time.RFC3339))
	if err != nil {
		return protocol.Balance{}, fmt.Errorf("create account %s: %w", accountID, err)
	}

	var b protocol.Balance
	var updatedAt string
	err = tx.QueryRowContext(ctx,
		`SELECT account_id, coins, redeemable, loyalty, updated_at FROM accounts WHERE account_id = ?`,
		accountID).Scan(&b.AccountID, &b.Coins, &b.Redeemable, &b.Loyalty, &updatedAt)
	if err != nil {
		return protocol.Balance{}, fmt.Errorf("load account %s: %w", accountID, err)
	}
	if updatedAt != "" {
		if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
			b.UpdatedAt = t
		}
	}
	return b, nil
}

// lockAccount returns the unlock func for the account's serialization mutex,
// creating the mutex on first use.
func (l *Ledger) lockAccount(accountID string) func() {
	l.mu.Lock()
	m, ok := l.accountLocks[accountID]
	if !ok {
		m = &sync.Mutex{}
		l.accountLocks[accountID] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// Subscribe returns a channel receiving subsequent ledger domain events.
// Buffered; events are dropped for subscribers that fall behind.
func (l *Ledger) Subscribe() <-chan protocol.LedgerEvent {
	ch := make(chan protocol.LedgerEvent, eventBuffer)
	l.mu.Lock()
	l.subs = append(l.subs, ch)
	l.mu.Unlock()
	return ch
}

// emit fans an event out to subscribers without blocking.
func (l *Ledger) emit(ev protocol.LedgerEvent) {
	l.mu.Lock()
	for _, ch := range l.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	l.mu.Unlock()
}
