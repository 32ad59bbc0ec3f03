// Package rules implements the declarative routing rule engine. Rules are
// simple tagged-variant predicates over a work item's type and category
// fields — deliberately not a general expression language, so auto-routing
// stays auditable. Evaluation is first-match-wins in declaration order; a
// work item that matches no rule stays manually routable.
package rules

import (
	"slices"
	"sync"

	"pitboss/pkg/protocol"
)

// ConditionKind selects the predicate variant of a rule condition.
type ConditionKind string

// Condition kinds.
const (
	KindTypeIs     ConditionKind = "type_is"     // item type equals Value
	KindCategoryIs ConditionKind = "category_is" // item category equals Value
	KindTypeIn     ConditionKind = "type_in"     // item type is one of Values
	KindAlways     ConditionKind = "always"      // matches every item
)

// Condition is a structured predicate over a work item descriptor.
type Condition struct {
	Kind   ConditionKind `toml:"kind"`
	Value  string        `toml:"value,omitempty"`
	Values []string      `toml:"values,omitempty"`
}

// Rule maps a condition to a routing outcome. Priority and RequiresApproval
// override the work item's defaults when the rule is applied. Rules are
// read-only at runtime except for the Active flag, which file reloads may
// toggle.
type Rule struct {
	ID               string            `toml:"id"`
	Name             string            `toml:"name"`
	Condition        Condition         `toml:"condition"`
	Priority         protocol.Priority `toml:"priority"`
	Eligible         []string          `toml:"eligible"` // worker ids, in preference order
	RequiresApproval bool              `toml:"requires_approval"`
	Active           bool              `toml:"active"`
}

// matches evaluates the rule's condition against the item descriptor.
// An unknown condition kind returns a RuleError.
func (r Rule) matches(item protocol.WorkItem) (bool, error) {
	switch r.Condition.Kind {
	case KindTypeIs:
		return item.Type == r.Condition.Value, nil
	case KindCategoryIs:
		return item.Category == r.Condition.Value, nil
	case KindTypeIn:
		return slices.Contains(r.Condition.Values, item.Type), nil
	case KindAlways:
		return true, nil
	default:
		return false, &protocol.RuleError{RuleID: r.ID, Reason: "unknown condition kind " + string(r.Condition.Kind)}
	}
}

// Engine evaluates routing rules. Malformed rules are reported through the
// error callback and skipped; evaluation continues with the remaining rules.
type Engine struct {
	mu    sync.RWMutex
	rules []Rule

	// onError receives rule evaluation/load failures (never nil).
	onError func(err error)
}

// New creates an Engine over the given rule list. onError may be nil.
func New(ruleList []Rule, onError func(err error)) *Engine {
	if onError == nil {
		onError = func(error) {}
	}
	return &Engine{
		rules:   append([]Rule(nil), ruleList...),
		onError: onError,
	}
}

// Replace swaps the full rule set (used by file reloads).
func (e *Engine) Replace(ruleList []Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append([]Rule(nil), ruleList...)
}

// Rules returns a copy of the current rule set in declaration order.
func (e *Engine) Rules() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]Rule(nil), e.rules...)
}

// Matching returns every active rule whose condition matches the item, in
// declaration order.
func (e *Engine) Matching(item protocol.WorkItem) []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []Rule
	for _, r := range e.rules {
		if !r.Active {
			continue
		}
		ok, err := r.matches(item)
		if err != nil {
			e.onError(err)
			continue
		}
		if ok {
			out = append(out, r)
		}
	}
	return out
}

// First returns the first matching active rule, if any. This is the rule the
// dispatcher applies when auto-routing.
func (e *Engine) First(item protocol.WorkItem) (Rule, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, r := range e.rules {
		if !r.Active {
			continue
		}
		ok, err := r.matches(item)
		if err != nil {
			e.onError(err)
			continue
		}
		if ok {
			return r, true
		}
	}
	return Rule{}, false
}
