// Package roster holds the fixed set of workers that the dispatcher routes
// work to. Workers are loaded once from a YAML roster file at startup and
// mutated in place for the process lifetime: the dispatcher updates held
// tasks and completion counts, and a periodic tick drifts the live
// performance stats.
package roster

import (
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"pitboss/pkg/protocol"

	"gopkg.in/yaml.v3"
)

// workloadPerTask is the workload contribution of one held task; workload is
// capped at 100.
const workloadPerTask = 20

// busyThreshold is the workload at which an online worker is shown as busy.
const busyThreshold = 80

// Registry owns the worker set. All access goes through Registry methods;
// callers receive copies, never pointers into the map.
type Registry struct {
	mu      sync.Mutex
	workers map[string]*protocol.Worker
	order   []string // declaration order from the roster file

	// randFunc allows tests to control stat jitter. Returns [0,1).
	randFunc func() float64
	// nowFunc allows tests to control time.
	nowFunc func() time.Time
}

// New creates a Registry from a fixed worker list. Worker order is
// preserved and used as the deterministic iteration order.
func New(workers []protocol.Worker) *Registry {
	r := &Registry{
		workers:  make(map[string]*protocol.Worker, len(workers)),
		order:    make([]string, 0, len(workers)),
		randFunc: rand.Float64,
		nowFunc:  time.Now,
	}
	for i := range workers {
		w := workers[i]
		if w.Status == "" {
			w.Status = protocol.WorkerOnline
		}
		if w.ActiveTasks == nil {
			w.ActiveTasks = []string{}
		}
		r.workers[w.ID] = &w
		r.order = append(r.order, w.ID)
	}
	return r
}

// rosterFile is the on-disk YAML shape.
type rosterFile struct {
	Workers []protocol.Worker `yaml:"workers"`
}

// LoadFile reads a YAML roster file and returns a Registry.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a Registry from raw YAML roster content.
func Parse(data []byte) (*Registry, error) {
	var rf rosterFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}
	if len(rf.Workers) == 0 {
		return nil, fmt.Errorf("parse roster: no workers defined")
	}
	for _, w := range rf.Workers {
		if w.ID == "" {
			return nil, fmt.Errorf("parse roster: worker with empty id")
		}
	}
	return New(rf.Workers), nil
}

// Get returns a copy of the worker with the given id.
func (r *Registry) Get(id string) (protocol.Worker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[id]
	if !ok {
		return protocol.Worker{}, false
	}
	return copyWorker(w), true
}

// All returns copies of every worker in declaration order.
func (r *Registry) All() []protocol.Worker {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]protocol.Worker, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, copyWorker(r.workers[id]))
	}
	return out
}

// AddTask appends taskID to the worker's held list and recomputes workload.
// Returns false if the worker does not exist.
func (r *Registry) AddTask(workerID, taskID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[workerID]
	if !ok {
		return false
	}
	w.ActiveTasks = append(w.ActiveTasks, taskID)
	recompute(w)
	return true
}

// ReleaseTask removes taskID from the worker's held list. If completed is
// true the worker's lifetime completion counter is incremented.
func (r *Registry) ReleaseTask(workerID, taskID string, completed bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[workerID]
	if !ok {
		return false
	}
	for i, id := range w.ActiveTasks {
		if id == taskID {
			w.ActiveTasks = append(w.ActiveTasks[:i], w.ActiveTasks[i+1:]...)
			break
		}
	}
	if completed {
		w.CompletedTasks++
	}
	recompute(w)
	return true
}

// SetStatus forces a worker's status (e.g. marking it offline).
func (r *Registry) SetStatus(workerID string, status protocol.WorkerStatus) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[workerID]
	if !ok {
		return false
	}
	w.Status = status
	return true
}

// Tick drifts each worker's live stats by a small bounded jitter: success
// rate moves by at most ±2 points and response latency by at most ±0.25s,
// both clamped to sane ranges. The jitter is a placeholder for real
// telemetry; the once-per-period cadence is what assignment scoring relies
// on. Offline workers are not touched.
func (r *Registry) Tick() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.order {
		w := r.workers[id]
		if w.Status == protocol.WorkerOffline {
			continue
		}
		w.SuccessRate = clamp(w.SuccessRate+(r.randFunc()-0.5)*4, 0, 100)
		w.ResponseLatency = clamp(w.ResponseLatency+(r.randFunc()-0.5)*0.5, 0.1, 30)
	}
}

// recompute derives workload from the held-task count and flips the
// online/busy status at the threshold. Caller must hold r.mu.
func recompute(w *protocol.Worker) {
	load := len(w.ActiveTasks) * workloadPerTask
	if load > 100 {
		load = 100
	}
	w.Workload = load
	switch {
	case w.Status == protocol.WorkerOffline:
		// Manual offline wins; leave it alone.
	case load >= busyThreshold:
		w.Status = protocol.WorkerBusy
	default:
		w.Status = protocol.WorkerOnline
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func copyWorker(w *protocol.Worker) protocol.Worker {
	out := *w
	out.Capabilities = append([]string(nil), w.Capabilities...)
	out.Permissions = append([]string(nil), w.Permissions...)
	out.ActiveTasks = append([]string(nil), w.ActiveTasks...)
	return out
}

// IDs returns the worker ids in declaration order, for stable iteration.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}
