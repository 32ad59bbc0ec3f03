// Package dispatch implements the task queue and dispatcher — the core
// coordination engine that routes work items to roster workers under
// capability, workload and priority constraints. It owns the work item
// lifecycle state machine (pending -> assigned -> in_progress ->
// completed | escalated), the assignment scoring algorithm, and the three
// periodic sweeps that drive autonomous operation.
//
// Every lifecycle transition is written to the SQLite event log; alerts for
// completions and escalations go to the alert bus. Time and randomness are
// injected so tests can drive the sweeps deterministically.
package dispatch

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"pitboss/pkg/protocol"
	"pitboss/pkg/roster"
	"pitboss/pkg/rules"
)

// escalationOverrunFactor escalates an in-progress task once elapsed time
// exceeds this multiple of its estimate.
const escalationOverrunFactor = 2

// escalationReason is the reason recorded by the overrun sweep.
const escalationReason = "Task taking longer than expected"

// AlertPublisher is the slice of the alert bus the dispatcher needs.
type AlertPublisher interface {
	Publish(ctx context.Context, a protocol.Alert) (string, error)
}

// Config holds dispatcher cadences.
type Config struct {
	DispatchInterval   time.Duration // priority dispatch sweep period (default 5s)
	AutoRouteInterval  time.Duration // auto-routing sweep period (default 10s)
	EscalationInterval time.Duration // escalation sweep period (default 30s)
	RosterTickInterval time.Duration // worker stat drift period (default 15s)
	AutoStartDelay     time.Duration // delay before auto-routed tasks start (default 2s)
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.DispatchInterval == 0 {
		out.DispatchInterval = 5 * time.Second
	}
	if out.AutoRouteInterval == 0 {
		out.AutoRouteInterval = 10 * time.Second
	}
	if out.EscalationInterval == 0 {
		out.EscalationInterval = 30 * time.Second
	}
	if out.RosterTickInterval == 0 {
		out.RosterTickInterval = 15 * time.Second
	}
	if out.AutoStartDelay == 0 {
		out.AutoStartDelay = 2 * time.Second
	}
	return out
}

// Dispatcher owns the task queue. All task state lives in memory for the
// process lifetime; the event log and alerts are persisted through db and
// the alert bus.
type Dispatcher struct {
	cfg    Config
	db     *sql.DB
	roster *roster.Registry
	rules  *rules.Engine
	alerts AlertPublisher
	sim    Simulator

	mu     sync.Mutex
	tasks  map[string]*protocol.WorkItem
	order  []string // creation order
	nextID int64
	timers map[string]func() // taskID -> cancel pending timer (auto-start or simulated completion)

	// nowFunc allows tests to control time.
	nowFunc func() time.Time
	// randFunc allows tests to control completion jitter. Returns [0,1).
	randFunc func() float64
}

// New creates a Dispatcher. It does not start the sweeps — call Run, or
// drive the sweep methods directly.
func New(cfg Config, db *sql.DB, reg *roster.Registry, engine *rules.Engine, bus AlertPublisher, sim Simulator) *Dispatcher {
	resolved := cfg.withDefaults()
	if sim == nil {
		sim = TimerSimulator{}
	}
	return &Dispatcher{
		cfg:      resolved,
		db:       db,
		roster:   reg,
		rules:    engine,
		alerts:   bus,
		sim:      sim,
		tasks:    make(map[string]*protocol.WorkItem),
		timers:   make(map[string]func()),
		nowFunc:  time.Now,
		randFunc: defaultRand,
	}
}

// Run drives the periodic sweeps until ctx is cancelled:
//  1. priority dispatch sweep (short period)
//  2. auto-routing sweep
//  3. escalation sweep (long period)
//
// plus the roster stat tick. Each sweep is idempotent and safe to run
// concurrently with request-triggered operations. On shutdown all pending
// completion timers are cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	dispatch := time.NewTicker(d.cfg.DispatchInterval)
	defer dispatch.Stop()
	autoRoute := time.NewTicker(d.cfg.AutoRouteInterval)
	defer autoRoute.Stop()
	escalate := time.NewTicker(d.cfg.EscalationInterval)
	defer escalate.Stop()
	rosterTick := time.NewTicker(d.cfg.RosterTickInterval)
	defer rosterTick.Stop()

	for {
		select {
		case <-ctx.Done():
			d.cancelAllTimers()
			return
		case <-dispatch.C:
			d.DispatchSweep(ctx)
		case <-autoRoute.C:
			d.AutoRouteSweep(ctx)
		case <-escalate.C:
			d.EscalationSweep(ctx)
		case <-rosterTick.C:
			d.roster.Tick()
		}
	}
}

// Task returns a copy of the work item with the given id.
func (d *Dispatcher) Task(id string) (protocol.WorkItem, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.tasks[id]
	if !ok {
		return protocol.WorkItem{}, false
	}
	return *t, true
}

// Tasks returns copies of work items in creation order, optionally filtered
// by status (empty status = all).
func (d *Dispatcher) Tasks(status protocol.TaskStatus) []protocol.WorkItem {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []protocol.WorkItem
	for _, id := range d.order {
		t := d.tasks[id]
		if status != "" && t.Status != status {
			continue
		}
		out = append(out, *t)
	}
	return out
}

// setTimer stores a cancellable pending timer for a task, cancelling any
// previous one. Caller must hold d.mu.
func (d *Dispatcher) setTimer(taskID string, cancel func()) {
	if prev, ok := d.timers[taskID]; ok {
		prev()
	}
	d.timers[taskID] = cancel
}

// cancelTimer cancels and clears a task's pending timer. Caller must hold d.mu.
func (d *Dispatcher) cancelTimer(taskID string) {
	if cancel, ok := d.timers[taskID]; ok {
		cancel()
		delete(d.timers, taskID)
	}
}

func (d *Dispatcher) cancelAllTimers() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, cancel := range d.timers {
		cancel()
		delete(d.timers, id)
	}
}

// logEvent records a lifecycle event in the state database.
func (d *Dispatcher) logEvent(ctx context.Context, evType, taskID, workerID, payload string) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO events (type, source, task_id, worker_id, payload) VALUES (?, 'dispatcher', ?, ?, ?)`,
		evType, taskID, workerID, payload)
	if err != nil {
		return fmt.Errorf("log event: %w", err)
	}
	return nil
}

// RuleErrorLogger returns a callback suitable for rules.New that records
// rule evaluation failures in the event log.
func RuleErrorLogger(db *sql.DB) func(error) {
	return func(err error) {
		_, _ = db.Exec(
			`INSERT INTO events (type, source, payload) VALUES ('rule_error', 'rules', ?)`,
			err.Error())
	}
}
