package dispatch

import "pitboss/pkg/protocol"

// DashboardSnapshot aggregates worker and task-queue stats for dashboards.
type DashboardSnapshot struct {
	Workers       []protocol.Worker           `json:"workers"`
	TaskCounts    map[protocol.TaskStatus]int `json:"task_counts"`
	PriorityDepth map[protocol.Priority]int   `json:"priority_depth"` // pending tasks per tier
	TotalTasks    int                         `json:"total_tasks"`
	OnlineWorkers int                         `json:"online_workers"`
}

// Snapshot returns the current dashboard aggregate.
func (d *Dispatcher) Snapshot() DashboardSnapshot {
	snap := DashboardSnapshot{
		Workers:       d.roster.All(),
		TaskCounts:    make(map[protocol.TaskStatus]int),
		PriorityDepth: make(map[protocol.Priority]int),
	}
	for _, w := range snap.Workers {
		if w.Status == protocol.WorkerOnline {
			snap.OnlineWorkers++
		}
	}

	d.mu.Lock()
	for _, id := range d.order {
		t := d.tasks[id]
		snap.TaskCounts[t.Status]++
		if t.Status == protocol.TaskPending {
			snap.PriorityDepth[t.Priority]++
		}
		snap.TotalTasks++
	}
	d.mu.Unlock()

	return snap
}
