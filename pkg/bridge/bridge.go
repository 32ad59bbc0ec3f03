// Package bridge is the only coupling point between the ledger and the
// dispatcher: it consumes ledger domain events and turns each into a work
// item via the dispatcher's create operation. Routing is left entirely to
// the rule engine — the bridge synthesizes descriptors, it never picks
// priorities or assignees.
package bridge

import (
	"context"
	"fmt"
	"time"

	"pitboss/pkg/dispatch"
	"pitboss/pkg/protocol"
)

// creatorID identifies bridge-created work items in the event log.
const creatorID = "event-bridge"

// TaskCreator is the slice of the dispatcher the bridge needs.
type TaskCreator interface {
	Create(ctx context.Context, spec dispatch.Spec, creatorID string) (string, error)
}

// Bridge pumps ledger events into the dispatcher.
type Bridge struct {
	events <-chan protocol.LedgerEvent
	tasks  TaskCreator
}

// New creates a Bridge over a ledger event subscription.
func New(events <-chan protocol.LedgerEvent, tasks TaskCreator) *Bridge {
	return &Bridge{events: events, tasks: tasks}
}

// Run consumes events until ctx is cancelled or the event channel closes.
func (b *Bridge) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-b.events:
			if !ok {
				return
			}
			b.handle(ctx, ev)
		}
	}
}

// handle synthesizes a work item spec for one ledger event. Create failures
// are swallowed: a malformed event must not stall the pump, and the ledger
// has already alerted on the underlying activity.
func (b *Bridge) handle(ctx context.Context, ev protocol.LedgerEvent) {
	spec, ok := specFor(ev)
	if !ok {
		return
	}
	_, _ = b.tasks.Create(ctx, spec, creatorID)
}

// specFor maps a ledger event to a work item descriptor. Only the descriptor
// shape is decided here; priority and assignee come from the rule engine.
func specFor(ev protocol.LedgerEvent) (dispatch.Spec, bool) {
	switch ev.Kind {
	case protocol.EventLargeTransaction:
		return dispatch.Spec{
			Title:             fmt.Sprintf("Review large transaction for %s", ev.AccountID),
			Description:       fmt.Sprintf("transaction %s moved %d %s; review for compliance", ev.TransactionID, ev.Amount, ev.Currency),
			Type:              "transaction_review",
			Category:          "finance",
			EstimatedDuration: 10 * time.Minute,
			Payload:           payloadFor(ev),
		}, true
	case protocol.EventBigWin:
		return dispatch.Spec{
			Title:             fmt.Sprintf("Verify win of %d %s for %s", ev.Amount, ev.Currency, ev.AccountID),
			Description:       fmt.Sprintf("win verification for game %s: %s", ev.GameID, ev.Detail),
			Type:              "win_verification",
			Category:          "compliance",
			EstimatedDuration: 15 * time.Minute,
			RequiresApproval:  true,
			Payload:           payloadFor(ev),
		}, true
	case protocol.EventSecurity:
		return dispatch.Spec{
			Title:             fmt.Sprintf("Investigate security flag on %s", ev.AccountID),
			Description:       fmt.Sprintf("security review: %s", ev.Detail),
			Type:              "security_review",
			Category:          "security",
			EstimatedDuration: 20 * time.Minute,
			Payload:           payloadFor(ev),
		}, true
	default:
		return dispatch.Spec{}, false
	}
}

func payloadFor(ev protocol.LedgerEvent) map[string]any {
	return map[string]any{
		"account_id":     ev.AccountID,
		"amount":         ev.Amount,
		"currency":       string(ev.Currency),
		"transaction_id": ev.TransactionID,
		"game_id":        ev.GameID,
		"detail":         ev.Detail,
	}
}
