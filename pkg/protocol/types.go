// Package protocol defines the shared vocabulary of the pitboss runtime:
// work items, workers, alerts, balances, transactions, the typed errors
// exchanged between packages, and the SQLite schema for the state database.
// It is intentionally dependency-free so every other package can import it.
package protocol

import "time"

// --- Workers ---

// WorkerStatus represents the availability of a roster worker.
type WorkerStatus string

// Worker status constants.
const (
	WorkerOnline  WorkerStatus = "online"
	WorkerBusy    WorkerStatus = "busy"
	WorkerOffline WorkerStatus = "offline"
)

// Worker is a roster member capable of completing work items. Workers are
// created at process start from the roster file and live for the process
// lifetime; the dispatcher mutates their stats on every assignment and
// completion.
type Worker struct {
	ID              string       `yaml:"id" json:"id"`
	Role            string       `yaml:"role" json:"role"`
	Department      string       `yaml:"department" json:"department"`
	Status          WorkerStatus `yaml:"status" json:"status"`
	Capabilities    []string     `yaml:"capabilities" json:"capabilities"`
	Permissions     []string     `yaml:"permissions,omitempty" json:"permissions,omitempty"`
	ActiveTasks     []string     `yaml:"-" json:"active_tasks"`
	CompletedTasks  int          `yaml:"-" json:"completed_tasks"`
	SuccessRate     float64      `yaml:"success_rate" json:"success_rate"`         // 0..100
	ResponseLatency float64      `yaml:"response_latency" json:"response_latency"` // mean, seconds
	Workload        int          `yaml:"-" json:"workload"`                        // 0..100, derived from held tasks
}

// --- Work items ---

// Priority orders work items within the pending queue.
type Priority string

// Priority constants, lowest to highest.
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank returns a sortable weight for the priority; higher dispatches first.
// Unknown priorities rank below low so malformed data never jumps the queue.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// TaskStatus is the lifecycle state of a work item. Transitions only move
// forward: pending -> assigned -> in_progress -> completed | escalated.
type TaskStatus string

// Task status constants.
const (
	TaskPending    TaskStatus = "pending"
	TaskAssigned   TaskStatus = "assigned"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskEscalated  TaskStatus = "escalated"
)

// WorkItem is a unit of routed work. Created by any caller, mutated only by
// the dispatcher, retained for the process lifetime.
type WorkItem struct {
	ID                string         `json:"id"`
	Title             string         `json:"title"`
	Description       string         `json:"description"`
	Type              string         `json:"type"`
	Category          string         `json:"category"`
	Priority          Priority       `json:"priority"`
	Status            TaskStatus     `json:"status"`
	AssignedTo        string         `json:"assigned_to,omitempty"`
	CreatedBy         string         `json:"created_by"`
	CreatedAt         time.Time      `json:"created_at"`
	DueDate           *time.Time     `json:"due_date,omitempty"`
	EstimatedDuration time.Duration  `json:"estimated_duration"`
	ActualDuration    time.Duration  `json:"actual_duration,omitempty"`
	StartedAt         time.Time      `json:"started_at,omitzero"`
	CompletedAt       time.Time      `json:"completed_at,omitzero"`
	Payload           map[string]any `json:"payload,omitempty"`
	RequiresApproval  bool           `json:"requires_approval"`
	EscalationReason  string         `json:"escalation_reason,omitempty"`
	EscalatedAt       time.Time      `json:"escalated_at,omitzero"`
	Result            string         `json:"result,omitempty"`
}

// --- Alerts ---

// Severity classifies an alert for dashboard ordering.
type Severity string

// Severity constants, lowest to highest.
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns a sortable weight for the severity; higher sorts first.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// AlertStatus tracks the acknowledge/resolve lifecycle of an alert.
type AlertStatus string

// Alert status constants.
const (
	AlertActive       AlertStatus = "active"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
)

// Alert is a one-way notification record consumed by external dashboards.
// The core never inspects Title or Message content, only severity and type.
type Alert struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Title        string         `json:"title"`
	Message      string         `json:"message"`
	Severity     Severity       `json:"severity"`
	Source       string         `json:"source"` // worker id or subsystem name
	Payload      map[string]any `json:"payload,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	Status       AlertStatus    `json:"status"`
	Acknowledged bool           `json:"acknowledged"`
}

// --- Balances and transactions ---

// Currency tags the three wallet counters.
type Currency string

// Currency constants.
const (
	CurrencyCoins      Currency = "coins"      // primary, purchasable
	CurrencyRedeemable Currency = "redeemable" // winnable, cashout-eligible
	CurrencyLoyalty    Currency = "loyalty"    // loyalty points
)

// Balance is the wallet snapshot for one account. No counter is ever
// negative; the ledger rejects any update that would make one so.
type Balance struct {
	AccountID  string    `json:"account_id"`
	Coins      int64     `json:"coins"`
	Redeemable int64     `json:"redeemable"`
	Loyalty    int64     `json:"loyalty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Get returns the counter value for the given currency.
func (b Balance) Get(c Currency) int64 {
	switch c {
	case CurrencyCoins:
		return b.Coins
	case CurrencyRedeemable:
		return b.Redeemable
	case CurrencyLoyalty:
		return b.Loyalty
	default:
		return 0
	}
}

// Transaction is an immutable ledger record. Once recorded it is never
// edited or deleted; corrections are new transactions.
type Transaction struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id"`
	Amount      int64     `json:"amount"` // signed
	Currency    Currency  `json:"currency"`
	Description string    `json:"description"`
	TaskID      string    `json:"task_id,omitempty"`
	GameID      string    `json:"game_id,omitempty"`
	SessionID   string    `json:"session_id,omitempty"`
	Before      Balance   `json:"before"`
	After       Balance   `json:"after"`
	CreatedAt   time.Time `json:"created_at"`
	Status      string    `json:"status"` // always "completed" once recorded
}

// DailyCounters is the rolling day-scoped aggregate, reset at local
// midnight. Earned/Purchased/Spins/Revenue accumulate from ledger activity;
// UsersOnline and GamesActive mirror live session state pushed by callers.
type DailyCounters struct {
	Date        string `json:"date"` // YYYY-MM-DD local
	Earned      int64  `json:"earned"`
	Purchased   int64  `json:"purchased"`
	Spins       int64  `json:"spins"`
	Revenue     int64  `json:"revenue"`
	UsersOnline int    `json:"users_online"`
	GamesActive int    `json:"games_active"`
}

// --- Ledger events ---

// EventKind classifies a ledger domain event for the bridge.
type EventKind string

// Ledger event kinds.
const (
	EventLargeTransaction EventKind = "large_transaction"
	EventBigWin           EventKind = "big_win"
	EventSecurity         EventKind = "security_event"
)

// LedgerEvent is emitted by the ledger when activity crosses a configured
// threshold. The bridge turns selected events into dispatcher work items.
type LedgerEvent struct {
	Kind          EventKind `json:"kind"`
	AccountID     string    `json:"account_id"`
	Amount        int64     `json:"amount"`
	Currency      Currency  `json:"currency"`
	TransactionID string    `json:"transaction_id,omitempty"`
	GameID        string    `json:"game_id,omitempty"`
	Detail        string    `json:"detail,omitempty"`
}
