package ledger

import (
	"context"
	"fmt"
	"time"

	"pitboss/pkg/protocol"
)

// RecordTransaction assigns an id and timestamp, stores the transaction
// immutably, and folds positive amounts into the day's revenue counter.
// Transactions are never edited in place; corrections are new transactions.
func (l *Ledger) RecordTransaction(ctx context.Context, t protocol.Transaction) (string, error) {
	if t.AccountID == "" {
		return "", &protocol.NotFoundError{Kind: "account", ID: t.AccountID}
	}
	t.ID = l.idFunc()
	t.CreatedAt = l.nowFunc()
	t.Status = "completed"

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO transactions (id, account_id, amount, currency, description,
			task_id, game_id, session_id,
			before_coins, before_redeemable, before_loyalty,
			after_coins, after_redeemable, after_loyalty,
			status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.AccountID, t.Amount, string(t.Currency), t.Description,
		t.TaskID, t.GameID, t.SessionID,
		t.Before.Coins, t.Before.Redeemable, t.Before.Loyalty,
		t.After.Coins, t.After.Redeemable, t.After.Loyalty,
		t.Status, t.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("insert transaction: %w", err)
	}

	if t.Amount > 0 {
		l.mu.Lock()
		l.counters.Revenue += t.Amount
		l.mu.Unlock()
	}

	if abs(t.Amount) >= l.cfg.LargeTransactionThreshold {
		l.emit(protocol.LedgerEvent{
			Kind:          protocol.EventLargeTransaction,
			AccountID:     t.AccountID,
			Amount:        t.Amount,
			Currency:      t.Currency,
			TransactionID: t.ID,
			Detail:        t.Description,
		})
	}

	return t.ID, nil
}

// GameOutcome describes a settled game round.
type GameOutcome struct {
	AccountID string
	Bet       int64
	Win       int64
	Currency  protocol.Currency
	GameID    string
	SessionID string
}

// RecordGameOutcome settles a game round: it rejects the outcome with
// InsufficientBalanceError if the pre-outcome balance in the bet currency is
// below the bet, otherwise applies the net (win − bet) to the wallet and
// records a transaction. Wins at or above the big-win threshold publish a
// big_win alert whose severity scales with size; wins above the extreme
// threshold additionally emit a flagged big_win event so the bridge can open
// a verification work item.
func (l *Ledger) RecordGameOutcome(ctx context.Context, o GameOutcome) (protocol.Transaction, error) {
	if o.AccountID == "" {
		return protocol.Transaction{}, &protocol.NotFoundError{Kind: "account", ID: o.AccountID}
	}

	unlock := l.lockAccount(o.AccountID)
	defer unlock()

	before, err := l.peekBalance(ctx, o.AccountID)
	if err != nil {
		return protocol.Transaction{}, err
	}

	if before.Get(o.Currency) < o.Bet {
		return protocol.Transaction{}, &protocol.InsufficientBalanceError{
			AccountID: o.AccountID,
			Currency:  o.Currency,
			Required:  o.Bet,
			Available: before.Get(o.Currency),
			Balance:   before,
		}
	}

	net := o.Win - o.Bet
	target := before.Get(o.Currency) + net
	t := Targets{}
	switch o.Currency {
	case protocol.CurrencyCoins:
		t.Coins = &target
	case protocol.CurrencyRedeemable:
		t.Redeemable = &target
	case protocol.CurrencyLoyalty:
		t.Loyalty = &target
	default:
		return protocol.Transaction{}, fmt.Errorf("unknown currency %q", o.Currency)
	}

	after, _, err := l.applyLocked(ctx, o.AccountID, t)
	if err != nil {
		return protocol.Transaction{}, err
	}

	l.mu.Lock()
	l.counters.Spins++
	l.mu.Unlock()

	txRecord := protocol.Transaction{
		AccountID:   o.AccountID,
		Amount:      net,
		Currency:    o.Currency,
		Description: fmt.Sprintf("game outcome: bet %d, win %d", o.Bet, o.Win),
		GameID:      o.GameID,
		SessionID:   o.SessionID,
		Before:      before,
		After:       after,
	}
	txID, err := l.RecordTransaction(ctx, txRecord)
	if err != nil {
		return protocol.Transaction{}, err
	}
	txRecord.ID = txID
	txRecord.Status = "completed"

	if o.Win >= l.cfg.BigWinThreshold {
		l.publishBigWin(ctx, o, txID)
	}

	return txRecord, nil
}

// publishBigWin raises the big_win alert and, for extreme wins, emits the
// ledger event that drives win verification.
func (l *Ledger) publishBigWin(ctx context.Context, o GameOutcome, txID string) {
	extreme := o.Win >= l.cfg.ExtremeWinThreshold

	severity := protocol.SeverityMedium
	switch {
	case extreme:
		severity = protocol.SeverityCritical
	case o.Win >= 2*l.cfg.BigWinThreshold:
		severity = protocol.SeverityHigh
	}

	if l.alerts != nil {
		_, _ = l.alerts.Publish(ctx, protocol.Alert{
			Type:     "big_win",
			Title:    "Big win recorded",
			Message:  fmt.Sprintf("account %s won %d %s", o.AccountID, o.Win, o.Currency),
			Severity: severity,
			Source:   "ledger",
			Payload: map[string]any{
				"account_id":     o.AccountID,
				"amount":         o.Win,
				"currency":       string(o.Currency),
				"transaction_id": txID,
			},
		})
	}

	if extreme {
		l.emit(protocol.LedgerEvent{
			Kind:          protocol.EventBigWin,
			AccountID:     o.AccountID,
			Amount:        o.Win,
			Currency:      o.Currency,
			TransactionID: txID,
			GameID:        o.GameID,
			Detail:        "extreme win, verification required",
		})
	}
}

// RecordSecurityFlag raises a security alert for an account and emits the
// matching ledger event for the bridge.
func (l *Ledger) RecordSecurityFlag(ctx context.Context, accountID, detail string) error {
	if accountID == "" {
		return &protocol.NotFoundError{Kind: "account", ID: accountID}
	}
	if l.alerts != nil {
		_, err := l.alerts.Publish(ctx, protocol.Alert{
			Type:     "security",
			Title:    "Security flag raised",
			Message:  detail,
			Severity: protocol.SeverityHigh,
			Source:   "ledger",
			Payload:  map[string]any{"account_id": accountID},
		})
		if err != nil {
			return err
		}
	}
	l.emit(protocol.LedgerEvent{
		Kind:      protocol.EventSecurity,
		AccountID: accountID,
		Detail:    detail,
	})
	return nil
}

// peekBalance reads the account's current balance (creating it lazily)
// while the caller already holds the account lock.
func (l *Ledger) peekBalance(ctx context.Context, accountID string) (protocol.Balance, error) {
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

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
