package protocol

import "fmt"

// InvalidSpecError reports a malformed work item spec. The create operation
// rejects it before any state changes.
type InvalidSpecError struct {
	Field  string
	Reason string
}

func (e *InvalidSpecError) Error() string {
	return fmt.Sprintf("invalid task spec: %s %s", e.Field, e.Reason)
}

// NotFoundError reports an unknown task, worker or account id.
// It enables typed error discrimination via errors.As.
type NotFoundError struct {
	Kind string // "task", "worker", "account"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// InsufficientBalanceError reports a balance update or game outcome that
// would drive a counter negative. It carries the current balances so callers
// can explain "insufficient funds" without a second round trip. The update
// is rejected atomically; no counters change.
type InsufficientBalanceError struct {
	AccountID string
	Currency  Currency
	Required  int64
	Available int64
	Balance   Balance
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for account %s: need %d %s, have %d",
		e.AccountID, e.Required, e.Currency, e.Available)
}

// RuleError reports a malformed routing rule. The rule engine logs it and
// skips the rule; evaluation continues with the remaining rules.
type RuleError struct {
	RuleID string
	Reason string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("routing rule %s: %s", e.RuleID, e.Reason)
}
