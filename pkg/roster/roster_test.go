package roster //nolint:testpackage // internal white-box tests need access to unexported fields

import (
	"testing"

	"pitboss/pkg/protocol"
)

func testWorkers() []protocol.Worker {
	return []protocol.Worker{
		{ID: "emp-1", Role: "Support Agent", Department: "support", SuccessRate: 90, ResponseLatency: 2},
		{ID: "emp-2", Role: "Finance Reviewer", Department: "finance", SuccessRate: 95, ResponseLatency: 3},
	}
}

func TestNewDefaultsStatusToOnline(t *testing.T) {
	r := New(testWorkers())
	w, ok := r.Get("emp-1")
	if !ok {
		t.Fatal("expected emp-1 to exist")
	}
	if w.Status != protocol.WorkerOnline {
		t.Errorf("status = %q, want %q", w.Status, protocol.WorkerOnline)
	}
	if w.ActiveTasks == nil {
		t.Error("ActiveTasks should be initialized, not nil")
	}
}

func TestParseRoundTrip(t *testing.T) {
	yamlData := []byte(`
workers:
  - id: emp-a
    role: Support Agent
    department: support
    capabilities: [support, chat]
    success_rate: 92
    response_latency: 1.5
  - id: emp-b
    role: Security Analyst
    department: security
    status: offline
    success_rate: 94
    response_latency: 2.5
`)
	r, err := Parse(yamlData)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	ids := r.IDs()
	if len(ids) != 2 || ids[0] != "emp-a" || ids[1] != "emp-b" {
		t.Errorf("IDs = %v, want [emp-a emp-b]", ids)
	}

	a, _ := r.Get("emp-a")
	if a.SuccessRate != 92 || len(a.Capabilities) != 2 {
		t.Errorf("emp-a = %+v, fields not parsed", a)
	}
	b, _ := r.Get("emp-b")
	if b.Status != protocol.WorkerOffline {
		t.Errorf("emp-b status = %q, want offline", b.Status)
	}
}

func TestParseErrors(t *testing.T) {
	if _, err := Parse([]byte("workers: []")); err == nil {
		t.Error("empty roster should be rejected")
	}
	if _, err := Parse([]byte("workers:\n  - role: nameless")); err == nil {
		t.Error("worker without id should be rejected")
	}
	if _, err := Parse([]byte("{{not yaml")); err == nil {
		t.Error("malformed YAML should be rejected")
	}
}

func TestAddTaskRaisesWorkloadAndFlipsBusy(t *testing.T) {
	r := New(testWorkers())

	for i, want := range []struct {
		workload int
		status   protocol.WorkerStatus
	}{
		{20, protocol.WorkerOnline},
		{40, protocol.WorkerOnline},
		{60, protocol.WorkerOnline},
		{80, protocol.WorkerBusy},
		{100, protocol.WorkerBusy},
		{100, protocol.WorkerBusy}, // capped
	} {
		if !r.AddTask("emp-1", taskID(i)) {
			t.Fatalf("AddTask %d returned false", i)
		}
		w, _ := r.Get("emp-1")
		if w.Workload != want.workload {
			t.Errorf("after %d tasks: workload = %d, want %d", i+1, w.Workload, want.workload)
		}
		if w.Status != want.status {
			t.Errorf("after %d tasks: status = %q, want %q", i+1, w.Status, want.status)
		}
	}
}

func taskID(i int) string {
	return string(rune('a' + i))
}

func TestReleaseTaskCompletedIncrementsCounter(t *testing.T) {
	r := New(testWorkers())
	r.AddTask("emp-1", "task-1")
	r.AddTask("emp-1", "task-2")

	if !r.ReleaseTask("emp-1", "task-1", true) {
		t.Fatal("ReleaseTask returned false")
	}
	w, _ := r.Get("emp-1")
	if w.CompletedTasks != 1 {
		t.Errorf("CompletedTasks = %d, want 1", w.CompletedTasks)
	}
	if len(w.ActiveTasks) != 1 || w.ActiveTasks[0] != "task-2" {
		t.Errorf("ActiveTasks = %v, want [task-2]", w.ActiveTasks)
	}
	if w.Workload != 20 {
		t.Errorf("workload = %d, want 20", w.Workload)
	}

	// Escalation releases without crediting a completion.
	r.ReleaseTask("emp-1", "task-2", false)
	w, _ = r.Get("emp-1")
	if w.CompletedTasks != 1 {
		t.Errorf("CompletedTasks after escalation release = %d, want 1", w.CompletedTasks)
	}
}

func TestReleaseUnknownWorker(t *testing.T) {
	r := New(testWorkers())
	if r.ReleaseTask("emp-missing", "task-1", true) {
		t.Error("ReleaseTask for unknown worker should return false")
	}
	if r.AddTask("emp-missing", "task-1") {
		t.Error("AddTask for unknown worker should return false")
	}
}

func TestManualOfflineSurvivesRecompute(t *testing.T) {
	r := New(testWorkers())
	r.SetStatus("emp-1", protocol.WorkerOffline)
	r.AddTask("emp-1", "task-1")

	w, _ := r.Get("emp-1")
	if w.Status != protocol.WorkerOffline {
		t.Errorf("status = %q, want offline to stick through recompute", w.Status)
	}
}

func TestTickJitterIsBoundedAndSkipsOffline(t *testing.T) {
	r := New(testWorkers())
	r.SetStatus("emp-2", protocol.WorkerOffline)

	// randFunc pinned to 1.0 drives maximum positive drift.
	r.randFunc = func() float64 { return 1.0 }
	r.Tick()

	w, _ := r.Get("emp-1")
	if w.SuccessRate != 92 { // 90 + (1.0-0.5)*4
		t.Errorf("success rate = %v, want 92", w.SuccessRate)
	}
	if w.ResponseLatency != 2.25 { // 2 + (1.0-0.5)*0.5
		t.Errorf("latency = %v, want 2.25", w.ResponseLatency)
	}

	offline, _ := r.Get("emp-2")
	if offline.SuccessRate != 95 {
		t.Errorf("offline worker drifted: %v", offline.SuccessRate)
	}

	// Drive to the clamp.
	for i := 0; i < 10; i++ {
		r.Tick()
	}
	w, _ = r.Get("emp-1")
	if w.SuccessRate > 100 {
		t.Errorf("success rate exceeded 100: %v", w.SuccessRate)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	r := New(testWorkers())
	r.AddTask("emp-1", "task-1")

	w, _ := r.Get("emp-1")
	w.ActiveTasks[0] = "mutated"
	w.SuccessRate = 0

	again, _ := r.Get("emp-1")
	if again.ActiveTasks[0] != "task-1" {
		t.Error("Get should return a copy, not a view into the registry")
	}
	if again.SuccessRate != 90 {
		t.Error("scalar fields mutated through the copy")
	}
}
