// Copyright 2025 Certen Protocol

// Package policy evaluates ordered policies and rules against an action
// request and returns an allow/deny/require-approval decision carrying
// matched rules, approval requirements, and obligations.
package policy


// RuleEffect is the outcome a matching rule produces.
type RuleEffect string

const (
	EffectAllow           RuleEffect = "allow"
	EffectDeny            RuleEffect = "deny"
	EffectRequireApproval RuleEffect = "require_approval"
)

// ConditionType selects which part of the evaluation context a condition
// reads its field from.
type ConditionType string

const (
	ConditionActor       ConditionType = "actor"
	ConditionAction      ConditionType = "action"
	ConditionResource    ConditionType = "resource"
	ConditionTime        ConditionType = "time"
	ConditionEnvironment ConditionType = "environment"
	ConditionGeo         ConditionType = "geo"
	ConditionSession     ConditionType = "session"
	ConditionAttribute   ConditionType = "attribute"
)

// Operator is a condition's comparison operator.
type Operator string

const (
	OpEq         Operator = "eq"
	OpNe         Operator = "ne"
	OpGt         Operator = "gt"
	OpGte        Operator = "gte"
	OpLt         Operator = "lt"
	OpLte        Operator = "lte"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "starts_with"
	OpEndsWith   Operator = "ends_with"
	OpMatches    Operator = "matches"
	OpIn         Operator = "in"
	OpNotIn      Operator = "not_in"
	OpExists     Operator = "exists"
	OpNotExists  Operator = "not_exists"
)

// Condition selects a field of the evaluation context and compares it
// against Value using Operator. A rule matches only when every one of its
// conditions matches (AND logic).
type Condition struct {
	Type     ConditionType `json:"condition_type" yaml:"condition_type"`
	Field    string        `json:"field" yaml:"field"`
	Operator Operator      `json:"operator" yaml:"operator"`
	Value    any           `json:"value" yaml:"value"`
}

// NewCondition builds a condition comparing field against value.
func NewCondition(t ConditionType, field string, op Operator, value any) Condition {
	return Condition{Type: t, Field: field, Operator: op, Value: value}
}

// ActorCondition compares the actor's principal id.
func ActorCondition(op Operator, value string) Condition {
	return NewCondition(ConditionActor, "principal_id", op, value)
}

// ActionCondition compares the action's dotted name.
func ActionCondition(op Operator, value string) Condition {
	return NewCondition(ConditionAction, "action", op, value)
}

// ResourceCondition compares the resource id.
func ResourceCondition(op Operator, value string) Condition {
	return NewCondition(ConditionResource, "id", op, value)
}

// TimeCondition compares a derived time field (hour, minute, day_of_week, date).
func TimeCondition(field string, op Operator, value string) Condition {
	return NewCondition(ConditionTime, field, op, value)
}

// EnvironmentCondition compares the evaluation environment.
func EnvironmentCondition(op Operator, value string) Condition {
	return NewCondition(ConditionEnvironment, "environment", op, value)
}

// AttributeCondition compares an arbitrary custom attribute.
func AttributeCondition(field string, op Operator, value any) Condition {
	return NewCondition(ConditionAttribute, field, op, value)
}

// ApprovalType names who or what must approve a pending-approval decision.
type ApprovalType string

const (
	ApprovalHuman      ApprovalType = "human"
	ApprovalManager    ApprovalType = "manager"
	ApprovalSecurity   ApprovalType = "security"
	ApprovalMultiParty ApprovalType = "multi_party"
	ApprovalAutomated  ApprovalType = "automated"
)

// ApprovalConfig describes the approval workflow a require-approval rule
// triggers.
type ApprovalConfig struct {
	Type           ApprovalType `json:"approval_type" yaml:"approval_type"`
	Approvers      []string     `json:"approvers" yaml:"approvers"`
	MinApprovals   uint32       `json:"min_approvals" yaml:"min_approvals"`
	TimeoutSecs    uint64       `json:"timeout_secs" yaml:"timeout_secs"`
	ReasonTemplate string       `json:"reason_template" yaml:"reason_template"`
}

// NewApprovalConfig returns a config requiring one approval with a one
// hour timeout.
func NewApprovalConfig(t ApprovalType) ApprovalConfig {
	return ApprovalConfig{Type: t, MinApprovals: 1, TimeoutSecs: 3600, ReasonTemplate: "Approval required"}
}

// ToRequirement converts a static rule config into a per-decision
// ApprovalRequirement.
func (c ApprovalConfig) ToRequirement() ApprovalRequirement {
	return NewApprovalRequirement(c.Type, c.ReasonTemplate).
		WithApprovers(c.Approvers).
		WithMinApprovals(c.MinApprovals).
		WithTimeout(c.TimeoutSecs)
}

// Rule is a single named condition set within a policy.
type Rule struct {
	ID             string          `json:"id" yaml:"id"`
	Name           string          `json:"name" yaml:"name"`
	Description    string          `json:"description,omitempty" yaml:"description,omitempty"`
	Conditions     []Condition     `json:"conditions" yaml:"conditions"`
	Effect         RuleEffect      `json:"effect" yaml:"effect"`
	Priority       int32           `json:"priority" yaml:"priority"`
	ApprovalConfig *ApprovalConfig `json:"approval_config,omitempty" yaml:"approval_config,omitempty"`
	Enabled        bool            `json:"enabled" yaml:"enabled"`
}

// NewRule builds a rule with the given effect, enabled by default.
func NewRule(id, name string, effect RuleEffect) *Rule {
	return &Rule{ID: id, Name: name, Effect: effect, Enabled: true}
}

// AllowRule builds an enabled allow rule.
func AllowRule(id, name string) *Rule { return NewRule(id, name, EffectAllow) }

// DenyRule builds an enabled deny rule.
func DenyRule(id, name string) *Rule { return NewRule(id, name, EffectDeny) }

// RequireApprovalRule builds an enabled require-approval rule.
func RequireApprovalRule(id, name string) *Rule { return NewRule(id, name, EffectRequireApproval) }

func (r *Rule) WithDescription(desc string) *Rule { r.Description = desc; return r }

func (r *Rule) WithCondition(c Condition) *Rule {
	r.Conditions = append(r.Conditions, c)
	return r
}

func (r *Rule) WithPriority(p int32) *Rule { r.Priority = p; return r }

func (r *Rule) WithApprovalConfig(c ApprovalConfig) *Rule { r.ApprovalConfig = &c; return r }

func (r *Rule) Disable() *Rule { r.Enabled = false; return r }

// Policy is an ordered collection of rules sharing a priority and a
// recorded default effect. Engine.Evaluate does not read DefaultEffect:
// when no rule matches, the engine's own default decision applies.
type Policy struct {
	ID            string  `json:"id" yaml:"id"`
	Name          string  `json:"name" yaml:"name"`
	Description   string  `json:"description,omitempty" yaml:"description,omitempty"`
	Version       string  `json:"version" yaml:"version"`
	Rules         []*Rule `json:"rules" yaml:"rules"`
	DefaultEffect RuleEffect `json:"default_effect" yaml:"default_effect"`
	Priority      int32   `json:"priority" yaml:"priority"`
	Enabled       bool    `json:"enabled" yaml:"enabled"`
}

// NewPolicy builds an enabled policy defaulting to deny, version 1.0.0.
func NewPolicy(id, name string) *Policy {
	return &Policy{ID: id, Name: name, Version: "1.0.0", DefaultEffect: EffectDeny, Enabled: true}
}

func (p *Policy) WithDescription(desc string) *Policy { p.Description = desc; return p }

func (p *Policy) WithRule(r *Rule) *Policy {
	p.Rules = append(p.Rules, r)
	return p
}

func (p *Policy) WithDefaultAllow() *Policy { p.DefaultEffect = EffectAllow; return p }

func (p *Policy) WithPriority(pr int32) *Policy { p.Priority = pr; return p }

func (p *Policy) Disable() *Policy { p.Enabled = false; return p }
