package dispatch

import (
	"context"
	"fmt"
	"time"

	"pitboss/pkg/protocol"
)

// Spec describes a work item to create. Title and Description are required;
// everything else has defaults.
type Spec struct {
	Title             string
	Description       string
	Type              string
	Category          string
	Priority          protocol.Priority
	DueDate           *time.Time
	EstimatedDuration time.Duration
	Payload           map[string]any
	RequiresApproval  bool
}

// Create allocates a work item in pending status and records a creation
// event. The priority defaults to medium unless a matching routing rule
// overrides it; a matching rule's approval flag also overrides the spec's.
// Malformed specs are rejected with InvalidSpecError before any state
// changes.
func (d *Dispatcher) Create(ctx context.Context, spec Spec, creatorID string) (string, error) {
	if spec.Title == "" {
		return "", &protocol.InvalidSpecError{Field: "title", Reason: "is required"}
	}
	if spec.Description == "" {
		return "", &protocol.InvalidSpecError{Field: "description", Reason: "is required"}
	}

	priority := spec.Priority
	if priority == "" {
		priority = protocol.PriorityMedium
	}
	approval := spec.RequiresApproval

	item := protocol.WorkItem{
		Title:             spec.Title,
		Description:       spec.Description,
		Type:              spec.Type,
		Category:          spec.Category,
		Priority:          priority,
		Status:            protocol.TaskPending,
		CreatedBy:         creatorID,
		CreatedAt:         d.nowFunc(),
		DueDate:           spec.DueDate,
		EstimatedDuration: spec.EstimatedDuration,
		Payload:           spec.Payload,
		RequiresApproval:  approval,
	}

	// First matching rule wins; its priority and approval flag override the
	// item's defaults.
	if rule, ok := d.rules.First(item); ok {
		if rule.Priority != "" {
			item.Priority = rule.Priority
		}
		if rule.RequiresApproval {
			item.RequiresApproval = true
		}
	}

	d.mu.Lock()
	d.nextID++
	item.ID = fmt.Sprintf("task-%d", d.nextID)
	stored := item
	d.tasks[item.ID] = &stored
	d.order = append(d.order, item.ID)
	d.mu.Unlock()

	_ = d.logEvent(ctx, "task_created", item.ID, "",
		fmt.Sprintf(`{"priority":%q,"type":%q,"creator":%q}`, item.Priority, item.Type, creatorID))

	return item.ID, nil
}

// Assign moves a pending, unassigned task to the given worker. It is a
// best-effort operation: a missing task or worker, or a task already past
// pending, returns false with no state change. Callers must check the
// return value.
func (d *Dispatcher) Assign(ctx context.Context, taskID, workerID string) bool {
	if _, ok := d.roster.Get(workerID); !ok {
		return false
	}

	d.mu.Lock()
	t, ok := d.tasks[taskID]
	if !ok || t.Status != protocol.TaskPending || t.AssignedTo != "" {
		d.mu.Unlock()
		return false
	}
	t.Status = protocol.TaskAssigned
	t.AssignedTo = workerID
	d.mu.Unlock()

	d.roster.AddTask(workerID, taskID)
	_ = d.logEvent(ctx, "task_assigned", taskID, workerID, "")
	return true
}

// Start transitions an assigned task to in_progress and schedules its
// simulated completion: the estimate with up to ±25% jitter. The timer is
// cancelled if the task completes or escalates first. A production port
// replaces the simulator with a real completion signal from the worker; the
// state machine is unchanged.
func (d *Dispatcher) Start(ctx context.Context, taskID string) bool {
	d.mu.Lock()
	t, ok := d.tasks[taskID]
	if !ok || t.Status != protocol.TaskAssigned {
		d.mu.Unlock()
		return false
	}
	t.Status = protocol.TaskInProgress
	t.StartedAt = d.nowFunc()
	workerID := t.AssignedTo

	if t.EstimatedDuration > 0 {
		// jitter in [0.75, 1.25) of the estimate
		jittered := time.Duration(float64(t.EstimatedDuration) * (0.75 + 0.5*d.randFunc()))
		cancel := d.sim.Schedule(jittered, func() {
			d.Complete(context.Background(), taskID, "simulated completion")
		})
		d.setTimer(taskID, cancel)
	}
	d.mu.Unlock()

	_ = d.logEvent(ctx, "task_started", taskID, workerID, "")
	return true
}

// Complete finishes an in_progress task: records the actual duration,
// credits the assignee's completion counter, releases the task from the
// worker's held list, and publishes a task_completion alert.
func (d *Dispatcher) Complete(ctx context.Context, taskID, result string) bool {
	d.mu.Lock()
	t, ok := d.tasks[taskID]
	if !ok || t.Status != protocol.TaskInProgress {
		d.mu.Unlock()
		return false
	}
	now := d.nowFunc()
	t.Status = protocol.TaskCompleted
	t.CompletedAt = now
	t.ActualDuration = now.Sub(t.StartedAt)
	t.Result = result
	workerID := t.AssignedTo
	title := t.Title
	actual := t.ActualDuration
	d.cancelTimer(taskID)
	d.mu.Unlock()

	if workerID != "" {
		d.roster.ReleaseTask(workerID, taskID, true)
	}

	_ = d.logEvent(ctx, "task_completed", taskID, workerID,
		fmt.Sprintf(`{"actual_duration_ms":%d}`, actual.Milliseconds()))

	if d.alerts != nil {
		_, _ = d.alerts.Publish(ctx, protocol.Alert{
			Type:     "task_completion",
			Title:    "Task completed",
			Message:  fmt.Sprintf("%s completed %q", workerID, title),
			Severity: protocol.SeverityLow,
			Source:   workerID,
			Payload:  map[string]any{"task_id": taskID},
		})
	}
	return true
}

// Escalate forces a non-terminal task into the escalated state, records the
// reason, and publishes a high-severity alert. Called by the overrun sweep
// or directly. Escalation, not silent failure, is the recovery mechanism for
// stuck work.
func (d *Dispatcher) Escalate(ctx context.Context, taskID, reason string) bool {
	d.mu.Lock()
	t, ok := d.tasks[taskID]
	if !ok || t.Status == protocol.TaskCompleted || t.Status == protocol.TaskEscalated {
		d.mu.Unlock()
		return false
	}
	t.Status = protocol.TaskEscalated
	t.EscalationReason = reason
	t.EscalatedAt = d.nowFunc()
	workerID := t.AssignedTo
	title := t.Title
	d.cancelTimer(taskID)
	d.mu.Unlock()

	if workerID != "" {
		d.roster.ReleaseTask(workerID, taskID, false)
	}

	_ = d.logEvent(ctx, "task_escalated", taskID, workerID, fmt.Sprintf(`{"reason":%q}`, reason))

	if d.alerts != nil {
		_, _ = d.alerts.Publish(ctx, protocol.Alert{
			Type:     "task_escalation",
			Title:    "Task escalated",
			Message:  fmt.Sprintf("%q escalated: %s", title, reason),
			Severity: protocol.SeverityHigh,
			Source:   "dispatcher",
			Payload:  map[string]any{"task_id": taskID, "reason": reason},
		})
	}
	return true
}
