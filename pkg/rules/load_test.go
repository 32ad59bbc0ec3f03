package rules //nolint:testpackage // internal white-box tests need access to unexported fields

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const validRulesTOML = `
[[rules]]
id = "first"
priority = "high"
active = true
[rules.condition]
kind = "always"
`

const updatedRulesTOML = `
[[rules]]
id = "second"
priority = "low"
active = true
[rules.condition]
kind = "always"
`

func writeRules(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write rules: %v", err)
	}
}

func waitFor(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("waitFor: condition not met within %v", timeout)
}

func firstRuleID(e *Engine) string {
	ruleList := e.Rules()
	if len(ruleList) == 0 {
		return ""
	}
	return ruleList[0].ID
}

func TestReloadSwapsRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.toml")
	writeRules(t, path, validRulesTOML)

	ruleList, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	e := New(ruleList, nil)

	writeRules(t, path, updatedRulesTOML)
	e.reload(path)

	if got := firstRuleID(e); got != "second" {
		t.Errorf("rules after reload = %q, want second", got)
	}
}

func TestReloadKeepsOldRulesOnParseFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.toml")
	writeRules(t, path, validRulesTOML)

	var errs []error
	e := New(mustParse(t, validRulesTOML), func(err error) { errs = append(errs, err) })

	writeRules(t, path, "[[rules]]\nid = ")
	e.reload(path)

	if got := firstRuleID(e); got != "first" {
		t.Errorf("rules after failed reload = %q, want the previous set", got)
	}
	if len(errs) != 1 {
		t.Errorf("onError called %d times, want 1", len(errs))
	}
}

func mustParse(t *testing.T, content string) []Rule {
	t.Helper()
	ruleList, err := Parse([]byte(content))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return ruleList
}

func TestWatchReloadsOnFileChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.toml")
	writeRules(t, path, validRulesTOML)

	e := New(mustParse(t, validRulesTOML), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		e.Watch(ctx, path)
		close(done)
	}()

	// Give the watcher a moment to register before the write.
	time.Sleep(100 * time.Millisecond)
	writeRules(t, path, updatedRulesTOML)

	waitFor(t, func() bool { return firstRuleID(e) == "second" }, 5*time.Second)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not stop on context cancel")
	}
}
