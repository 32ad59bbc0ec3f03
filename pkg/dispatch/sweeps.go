package dispatch

import (
	"context"
	"sort"
	"strings"

	"pitboss/pkg/protocol"
)

// Worker eligibility gates. Priority dispatch is pickier than auto-routing.
const (
	dispatchWorkloadCap  = 80
	autoRouteWorkloadCap = 90
)

// DispatchSweep assigns the best-scoring worker to every pending task,
// highest priority first (stable by creation order within a tier). Tasks
// with no qualifying worker stay pending and are retried on the next pass.
func (d *Dispatcher) DispatchSweep(ctx context.Context) {
	pending := d.Tasks(protocol.TaskPending)
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].Priority.Rank() > pending[j].Priority.Rank()
	})

	for _, t := range pending {
		// Re-read the roster each time: a previous assignment in this sweep
		// changes workloads.
		workerID, ok := d.pickWorker(t)
		if !ok {
			continue
		}
		d.Assign(ctx, t.ID, workerID)
	}
}

// AutoRouteSweep routes pending, unassigned tasks through the rule engine.
// On a match the task is forced to the first eligible online worker with
// workload under the auto-route cap; if the rule does not require approval
// the task is auto-started after a short fixed delay. Tasks matching no rule
// are left for manual routing.
func (d *Dispatcher) AutoRouteSweep(ctx context.Context) {
	for _, t := range d.Tasks(protocol.TaskPending) {
		if t.AssignedTo != "" {
			continue
		}
		rule, ok := d.rules.First(t)
		if !ok {
			continue
		}

		assigned := ""
		for _, workerID := range rule.Eligible {
			w, exists := d.roster.Get(workerID)
			if !exists || w.Status != protocol.WorkerOnline || w.Workload >= autoRouteWorkloadCap {
				continue
			}
			if d.Assign(ctx, t.ID, workerID) {
				assigned = workerID
			}
			break
		}
		if assigned == "" {
			continue
		}

		_ = d.logEvent(ctx, "task_auto_routed", t.ID, assigned, `{"rule":"`+rule.ID+`"}`)

		if !rule.RequiresApproval && !t.RequiresApproval {
			taskID := t.ID
			cancel := d.sim.Schedule(d.cfg.AutoStartDelay, func() {
				d.Start(context.Background(), taskID)
			})
			d.mu.Lock()
			d.setTimer(taskID, cancel)
			d.mu.Unlock()
		}
	}
}

// EscalationSweep escalates every in_progress task whose elapsed wall-clock
// time exceeds twice its estimate. Workers that silently stop working leave
// their tasks in_progress; this sweep is the recovery path.
func (d *Dispatcher) EscalationSweep(ctx context.Context) {
	now := d.nowFunc()
	for _, t := range d.Tasks(protocol.TaskInProgress) {
		if t.EstimatedDuration <= 0 {
			continue
		}
		if now.Sub(t.StartedAt) > escalationOverrunFactor*t.EstimatedDuration {
			d.Escalate(ctx, t.ID, escalationReason)
		}
	}
}

// pickWorker selects the highest-scoring qualifying worker for a task.
// Qualifying means online with workload under the dispatch cap. Score:
//
//	successRate + 10×capabilityHits − workload + (5 − responseLatency)
//
// Ties break to the lower current workload, then the lexicographically
// smaller worker id, so assignment is deterministic.
func (d *Dispatcher) pickWorker(item protocol.WorkItem) (string, bool) {
	var (
		bestID    string
		bestScore float64
		found     bool
	)
	for _, w := range d.roster.All() {
		if w.Status != protocol.WorkerOnline || w.Workload >= dispatchWorkloadCap {
			continue
		}
		score := w.SuccessRate + 10*float64(capabilityHits(w.Capabilities, item)) -
			float64(w.Workload) + (5 - w.ResponseLatency)
		if !found || score > bestScore || (score == bestScore && betterTieBreak(w, bestID, d)) {
			bestID = w.ID
			bestScore = score
			found = true
		}
	}
	return bestID, found
}

// betterTieBreak reports whether w wins the tie against the current best.
func betterTieBreak(w protocol.Worker, bestID string, d *Dispatcher) bool {
	best, ok := d.roster.Get(bestID)
	if !ok {
		return true
	}
	if w.Workload != best.Workload {
		return w.Workload < best.Workload
	}
	return w.ID < best.ID
}

// capabilityHits counts the worker capabilities referenced by the task's
// description or category, case-insensitively.
func capabilityHits(capabilities []string, item protocol.WorkItem) int {
	desc := strings.ToLower(item.Description)
	category := strings.ToLower(item.Category)
	hits := 0
	for _, c := range capabilities {
		lc := strings.ToLower(c)
		if lc == "" {
			continue
		}
		if strings.Contains(desc, lc) || category == lc {
			hits++
		}
	}
	return hits
}
