// Copyright 2025 Certen Protocol

package policy

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Engine holds an ordered set of policies and evaluates requests against
// them, returning a Decision.
type Engine struct {
	mu              sync.RWMutex
	policies        map[string]*Policy
	defaultDecision DecisionType
}

// NewEngine returns an engine with no policies, defaulting to deny.
func NewEngine() *Engine {
	return &Engine{policies: map[string]*Policy{}, defaultDecision: DecisionDeny}
}

// WithDefaultAllow switches the engine's no-match default to allow.
func (e *Engine) WithDefaultAllow() *Engine {
	e.defaultDecision = DecisionAllow
	return e
}

// AddPolicy registers or replaces a policy.
func (e *Engine) AddPolicy(p *Policy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policies[p.ID] = p
}

// RemovePolicy removes a policy by id, returning it if present.
func (e *Engine) RemovePolicy(id string) *Policy {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.policies[id]
	delete(e.policies, id)
	return p
}

// GetPolicy looks up a policy by id.
func (e *Engine) GetPolicy(id string) (*Policy, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.policies[id]
	return p, ok
}

// ListPolicies returns every registered policy in no particular order.
func (e *Engine) ListPolicies() []*Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Policy, 0, len(e.policies))
	for _, p := range e.policies {
		out = append(out, p)
	}
	return out
}

// Evaluate sorts enabled policies by priority descending, then within
// each policy sorts enabled rules by priority descending. The first
// matching deny or require-approval rule aborts evaluation immediately.
// A matching allow sets a tentative decision but evaluation continues,
// since a later (lower-priority) rule or policy could still deny. If no
// rule matches anywhere, the engine's default decision applies.
func (e *Engine) Evaluate(ctx *EvaluationContext) (*Decision, error) {
	e.mu.RLock()
	policies := make([]*Policy, 0, len(e.policies))
	for _, p := range e.policies {
		if p.Enabled {
			policies = append(policies, p)
		}
	}
	e.mu.RUnlock()

	sort.SliceStable(policies, func(i, j int) bool { return policies[i].Priority > policies[j].Priority })

	var finalDecision *Decision

	for _, p := range policies {
		rules := make([]*Rule, 0, len(p.Rules))
		for _, r := range p.Rules {
			if r.Enabled {
				rules = append(rules, r)
			}
		}
		sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority > rules[j].Priority })

		for _, r := range rules {
			matched, err := e.evaluateRule(r, ctx)
			if err != nil {
				return nil, err
			}
			if !matched {
				continue
			}

			matchedConditions := make([]string, 0, len(r.Conditions))
			for _, c := range r.Conditions {
				matchedConditions = append(matchedConditions, string(c.Type))
			}
			mr := MatchedRule{
				RuleID:            r.ID,
				RuleName:          r.Name,
				Effect:            r.Effect,
				Priority:          r.Priority,
				MatchedConditions: matchedConditions,
			}

			switch r.Effect {
			case EffectDeny:
				finalDecision = DenyDecision(fmt.Sprintf("Denied by rule: %s", r.Name)).WithMatchedRule(mr)
			case EffectRequireApproval:
				var approvals []ApprovalRequirement
				if r.ApprovalConfig != nil {
					approvals = []ApprovalRequirement{r.ApprovalConfig.ToRequirement()}
				}
				finalDecision = PendingApprovalDecision(fmt.Sprintf("Approval required by rule: %s", r.Name), approvals).WithMatchedRule(mr)
			default:
				if finalDecision == nil {
					finalDecision = AllowDecision(fmt.Sprintf("Allowed by rule: %s", r.Name)).WithMatchedRule(mr)
				}
			}

			if r.Effect == EffectDeny || r.Effect == EffectRequireApproval {
				break
			}
		}

		if finalDecision != nil && (!finalDecision.Allowed || finalDecision.RequiresApproval()) {
			break
		}
	}

	if finalDecision != nil {
		return finalDecision, nil
	}
	if e.defaultDecision == DecisionAllow {
		return AllowDecision("No matching rules, default allow"), nil
	}
	return DenyDecision("No matching rules, default deny"), nil
}

func (e *Engine) evaluateRule(r *Rule, ctx *EvaluationContext) (bool, error) {
	for _, c := range r.Conditions {
		ok, err := e.evaluateCondition(c, ctx)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (e *Engine) evaluateCondition(c Condition, ctx *EvaluationContext) (bool, error) {
	actual := e.fieldValue(c, ctx)
	want := c.Value

	switch c.Operator {
	case OpEq:
		return valuesEqual(actual, want), nil
	case OpNe:
		return !valuesEqual(actual, want), nil
	case OpGt:
		return compareNumeric(actual, want, func(a, b float64) bool { return a > b }), nil
	case OpGte:
		return compareNumeric(actual, want, func(a, b float64) bool { return a >= b }), nil
	case OpLt:
		return compareNumeric(actual, want, func(a, b float64) bool { return a < b }), nil
	case OpLte:
		return compareNumeric(actual, want, func(a, b float64) bool { return a <= b }), nil
	case OpContains:
		return contains(actual, want), nil
	case OpStartsWith:
		return stringPair(actual, want, strings.HasPrefix), nil
	case OpEndsWith:
		return stringPair(actual, want, strings.HasSuffix), nil
	case OpMatches:
		return stringPair(actual, want, matchGlob2), nil
	case OpIn:
		return inArray(want, actual), nil
	case OpNotIn:
		arr, ok := want.([]any)
		if !ok {
			return true, nil
		}
		return !containsValue(arr, actual), nil
	case OpExists:
		return actual != nil, nil
	case OpNotExists:
		return actual == nil, nil
	default:
		return false, fmt.Errorf("policy: unknown operator %q", c.Operator)
	}
}

// matchGlob2 flips matchGlob's argument order so the "want" value (the
// pattern) matches against the "actual" value, per stringPair's calling
// convention.
func matchGlob2(actual, pattern string) bool { return matchGlob(pattern, actual) }

func (e *Engine) fieldValue(c Condition, ctx *EvaluationContext) any {
	env := ctx.Envelope
	switch c.Type {
	case ConditionActor:
		switch c.Field {
		case "principal_id", "pid":
			return string(env.Actor.PrincipalID)
		case "role":
			return env.Actor.Role
		case "realm":
			return env.Actor.Realm
		case "actor_type", "kind":
			return string(env.Actor.Kind)
		}
	case ConditionAction:
		switch c.Field {
		case "action":
			return env.Action.Name
		case "domain":
			return env.Action.Domain
		case "verb":
			return env.Action.Verb
		}
	case ConditionResource:
		switch c.Field {
		case "id", "rid":
			return string(env.Resource.ID)
		case "kind":
			return env.Resource.Kind
		case "ns":
			return string(env.Resource.Ns)
		}
	case ConditionTime:
		now := ctx.Timestamp
		switch c.Field {
		case "hour":
			return fmt.Sprintf("%02d", now.Hour())
		case "minute":
			return fmt.Sprintf("%02d", now.Minute())
		case "day_of_week":
			return strconv.Itoa(isoWeekday(now))
		case "date":
			return now.Format("2006-01-02")
		}
	case ConditionEnvironment:
		if c.Field == "environment" {
			return ctx.Environment
		}
	case ConditionGeo:
		if ctx.Geo == nil {
			return nil
		}
		switch c.Field {
		case "country":
			return ctx.Geo.Country
		case "region":
			return ctx.Geo.Region
		case "city":
			return ctx.Geo.City
		}
	case ConditionSession:
		if ctx.Session == nil {
			return nil
		}
		switch c.Field {
		case "mfa_verified":
			return ctx.Session.MFAVerified
		case "auth_method":
			return ctx.Session.AuthMethod
		case "duration_secs":
			return float64(ctx.Session.DurationSecs())
		case "idle_secs":
			return float64(ctx.Session.IdleSecs())
		}
	case ConditionAttribute:
		v, ok := ctx.Attributes[c.Field]
		if !ok {
			return nil
		}
		return v
	}
	return nil
}

// isoWeekday returns 1 (Monday) through 7 (Sunday), matching chrono's
// "%u" format directive.
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func valuesEqual(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	as, asok := a.(string)
	bs, bsok := b.(string)
	if asok && bsok {
		return as == bs
	}
	ab, abok := a.(bool)
	bb, bbok := b.(bool)
	if abok && bbok {
		return ab == bb
	}
	return a == nil && b == nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func compareNumeric(a, b any, cmp func(x, y float64) bool) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return cmp(af, bf)
	}
	as, asok := a.(string)
	bs, bsok := b.(string)
	if asok && bsok {
		af, _ := strconv.ParseFloat(as, 64)
		bf, _ := strconv.ParseFloat(bs, 64)
		return cmp(af, bf)
	}
	return false
}

func contains(haystack, needle any) bool {
	if hs, ok := haystack.(string); ok {
		if ns, ok := needle.(string); ok {
			return strings.Contains(hs, ns)
		}
	}
	if arr, ok := haystack.([]any); ok {
		return containsValue(arr, needle)
	}
	return false
}

func containsValue(arr []any, v any) bool {
	for _, item := range arr {
		if valuesEqual(item, v) {
			return true
		}
	}
	return false
}

func inArray(arr, v any) bool {
	items, ok := arr.([]any)
	if !ok {
		return false
	}
	return containsValue(items, v)
}

func stringPair(a, b any, fn func(s, p string) bool) bool {
	as, aok := a.(string)
	bs, bok := b.(string)
	if !aok || !bok {
		return false
	}
	return fn(as, bs)
}
