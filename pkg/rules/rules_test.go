package rules //nolint:testpackage // internal white-box tests need access to unexported fields

import (
	"errors"
	"testing"

	"pitboss/pkg/protocol"
)

func testRules() []Rule {
	return []Rule{
		{
			ID:        "wins",
			Condition: Condition{Kind: KindTypeIs, Value: "win_verification"},
			Priority:  protocol.PriorityUrgent,
			Eligible:  []string{"emp-compliance-1"},
			Active:    true,
		},
		{
			ID:        "finance",
			Condition: Condition{Kind: KindCategoryIs, Value: "finance"},
			Priority:  protocol.PriorityHigh,
			Eligible:  []string{"emp-finance-1"},
			Active:    true,
		},
		{
			ID:        "catch-all",
			Condition: Condition{Kind: KindAlways},
			Priority:  protocol.PriorityLow,
			Active:    true,
		},
	}
}

func TestFirstMatchWins(t *testing.T) {
	e := New(testRules(), nil)

	// Matches both "wins" (type) and "catch-all"; first in order wins.
	r, ok := e.First(protocol.WorkItem{Type: "win_verification", Category: "compliance"})
	if !ok || r.ID != "wins" {
		t.Errorf("First = %q, want wins", r.ID)
	}

	// Category match.
	r, ok = e.First(protocol.WorkItem{Type: "transaction_review", Category: "finance"})
	if !ok || r.ID != "finance" {
		t.Errorf("First = %q, want finance", r.ID)
	}

	// Nothing specific, falls through to always.
	r, ok = e.First(protocol.WorkItem{Type: "misc"})
	if !ok || r.ID != "catch-all" {
		t.Errorf("First = %q, want catch-all", r.ID)
	}
}

func TestInactiveRulesAreSkipped(t *testing.T) {
	ruleList := testRules()
	ruleList[0].Active = false
	e := New(ruleList, nil)

	r, ok := e.First(protocol.WorkItem{Type: "win_verification"})
	if !ok || r.ID != "catch-all" {
		t.Errorf("First = %q, want catch-all when wins rule inactive", r.ID)
	}
}

func TestTypeInCondition(t *testing.T) {
	e := New([]Rule{{
		ID:        "support",
		Condition: Condition{Kind: KindTypeIn, Values: []string{"support_ticket", "chat_review"}},
		Active:    true,
	}}, nil)

	if _, ok := e.First(protocol.WorkItem{Type: "chat_review"}); !ok {
		t.Error("chat_review should match type_in")
	}
	if _, ok := e.First(protocol.WorkItem{Type: "payout"}); ok {
		t.Error("payout should not match type_in")
	}
}

func TestUnknownKindSkipsRuleAndReportsError(t *testing.T) {
	var got []error
	e := New([]Rule{
		{ID: "broken", Condition: Condition{Kind: "regex_match"}, Active: true},
		{ID: "fallback", Condition: Condition{Kind: KindAlways}, Active: true},
	}, func(err error) { got = append(got, err) })

	r, ok := e.First(protocol.WorkItem{Type: "anything"})
	if !ok || r.ID != "fallback" {
		t.Errorf("First = %q, want fallback past the broken rule", r.ID)
	}
	if len(got) != 1 {
		t.Fatalf("onError called %d times, want 1", len(got))
	}
	var ruleErr *protocol.RuleError
	if !errors.As(got[0], &ruleErr) || ruleErr.RuleID != "broken" {
		t.Errorf("error = %v, want RuleError for broken", got[0])
	}
}

func TestMatchingReturnsAllInOrder(t *testing.T) {
	e := New(testRules(), nil)
	matched := e.Matching(protocol.WorkItem{Type: "win_verification", Category: "finance"})
	if len(matched) != 3 {
		t.Fatalf("Matching returned %d rules, want 3", len(matched))
	}
	if matched[0].ID != "wins" || matched[1].ID != "finance" || matched[2].ID != "catch-all" {
		t.Errorf("order = %q %q %q", matched[0].ID, matched[1].ID, matched[2].ID)
	}
}

func TestReplaceSwapsRuleSet(t *testing.T) {
	e := New(testRules(), nil)
	e.Replace([]Rule{{ID: "only", Condition: Condition{Kind: KindAlways}, Active: true}})

	ruleList := e.Rules()
	if len(ruleList) != 1 || ruleList[0].ID != "only" {
		t.Errorf("Rules after Replace = %+v", ruleList)
	}
}

func TestParseTOML(t *testing.T) {
	data := []byte(`
[[rules]]
id = "route-wins"
name = "Big wins go to compliance"
priority = "urgent"
eligible = ["emp-compliance-1"]
requires_approval = true
active = true
[rules.condition]
kind = "type_is"
value = "win_verification"

[[rules]]
id = "route-support"
priority = "medium"
active = true
[rules.condition]
kind = "type_in"
values = ["support_ticket", "chat_review"]
`)
	ruleList, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(ruleList) != 2 {
		t.Fatalf("parsed %d rules, want 2", len(ruleList))
	}

	r := ruleList[0]
	if r.ID != "route-wins" || r.Priority != protocol.PriorityUrgent || !r.RequiresApproval {
		t.Errorf("rule 0 = %+v", r)
	}
	if r.Condition.Kind != KindTypeIs || r.Condition.Value != "win_verification" {
		t.Errorf("condition 0 = %+v", r.Condition)
	}
	if ruleList[1].Condition.Kind != KindTypeIn || len(ruleList[1].Condition.Values) != 2 {
		t.Errorf("condition 1 = %+v", ruleList[1].Condition)
	}
}

func TestParseErrors(t *testing.T) {
	if _, err := Parse([]byte("[[rules]]\nname = \"no id\"")); err == nil {
		t.Error("rule without id should be rejected")
	}
	if _, err := Parse([]byte("not = [valid")); err == nil {
		t.Error("malformed TOML should be rejected")
	}
}
