// Copyright 2025 Certen Protocol

package policy

import (
	"time"

	"github.com/google/uuid"
)

// DecisionType classifies the outcome of an Engine.Evaluate call.
type DecisionType string

const (
	DecisionAllow          DecisionType = "allow"
	DecisionDeny           DecisionType = "deny"
	DecisionPendingApproval DecisionType = "pending_approval"
	DecisionNotApplicable  DecisionType = "not_applicable"
	DecisionError          DecisionType = "error"
)

// MatchedRule records a rule that matched during evaluation, for audit.
type MatchedRule struct {
	RuleID             string     `json:"rule_id"`
	RuleName           string     `json:"rule_name"`
	Effect             RuleEffect `json:"effect"`
	Priority           int32      `json:"priority"`
	MatchedConditions  []string   `json:"matched_conditions"`
}

// ObligationType names a post-decision action the gateway must perform.
type ObligationType string

const (
	ObligationLog       ObligationType = "log"
	ObligationNotify    ObligationType = "notify"
	ObligationEncrypt   ObligationType = "encrypt"
	ObligationRedact    ObligationType = "redact"
	ObligationRateLimit ObligationType = "rate_limit"
	ObligationCustom    ObligationType = "custom"
)

// ObligationTiming says whether an obligation fires before, after, or on
// both sides of the action it attaches to.
type ObligationTiming string

const (
	TimingBefore ObligationTiming = "before"
	TimingAfter  ObligationTiming = "after"
	TimingBoth   ObligationTiming = "both"
)

// Obligation is a side effect the decision carries alongside allow/deny,
// e.g. "log this" or "redact field X after dispatch".
type Obligation struct {
	ObligationID   string                 `json:"obligation_id"`
	ObligationType ObligationType         `json:"obligation_type"`
	CustomType     string                 `json:"custom_type,omitempty"`
	Parameters     map[string]any         `json:"parameters"`
	Timing         ObligationTiming       `json:"timing"`
	Mandatory      bool                   `json:"mandatory"`
}

// NewObligation builds a mandatory obligation with a fresh id.
func NewObligation(t ObligationType, timing ObligationTiming) Obligation {
	return Obligation{
		ObligationID:   uuid.NewString(),
		ObligationType: t,
		Parameters:     map[string]any{},
		Timing:         timing,
		Mandatory:      true,
	}
}

func (o Obligation) WithParameter(key string, value any) Obligation {
	o.Parameters[key] = value
	return o
}

func (o Obligation) Optional() Obligation { o.Mandatory = false; return o }

// ApprovalRequirement is a per-decision instantiation of a rule's
// ApprovalConfig.
type ApprovalRequirement struct {
	ApprovalID   string       `json:"approval_id"`
	ApprovalType ApprovalType `json:"approval_type"`
	Approvers    []string     `json:"approvers"`
	MinApprovals uint32       `json:"min_approvals"`
	TimeoutSecs  *uint64      `json:"timeout_secs,omitempty"`
	Reason       string       `json:"reason"`
}

// NewApprovalRequirement builds a requirement needing one approval with
// no approvers list and no timeout.
func NewApprovalRequirement(t ApprovalType, reason string) ApprovalRequirement {
	return ApprovalRequirement{ApprovalID: uuid.NewString(), ApprovalType: t, MinApprovals: 1, Reason: reason}
}

func (a ApprovalRequirement) WithApprovers(approvers []string) ApprovalRequirement {
	a.Approvers = approvers
	return a
}

func (a ApprovalRequirement) WithMinApprovals(min uint32) ApprovalRequirement {
	a.MinApprovals = min
	return a
}

func (a ApprovalRequirement) WithTimeout(secs uint64) ApprovalRequirement {
	a.TimeoutSecs = &secs
	return a
}

// Decision is the result of evaluating an EvaluationContext against an
// Engine's policy set.
type Decision struct {
	Allowed             bool                  `json:"allowed"`
	Decision            DecisionType          `json:"decision"`
	Reason              string                `json:"reason"`
	MatchedRules        []MatchedRule         `json:"matched_rules"`
	RequiredApprovals   []ApprovalRequirement `json:"required_approvals"`
	Obligations         []Obligation          `json:"obligations"`
	Advice              []string              `json:"advice"`
	Timestamp           time.Time             `json:"timestamp"`
	DecisionID          string                `json:"decision_id"`
}

func newDecision(decisionType DecisionType, allowed bool, reason string) *Decision {
	return &Decision{
		Allowed:    allowed,
		Decision:   decisionType,
		Reason:     reason,
		Timestamp:  time.Now().UTC(),
		DecisionID: uuid.NewString(),
	}
}

// AllowDecision builds an allow outcome.
func AllowDecision(reason string) *Decision { return newDecision(DecisionAllow, true, reason) }

// DenyDecision builds a deny outcome.
func DenyDecision(reason string) *Decision { return newDecision(DecisionDeny, false, reason) }

// PendingApprovalDecision builds a pending-approval outcome carrying the
// given requirements.
func PendingApprovalDecision(reason string, approvals []ApprovalRequirement) *Decision {
	d := newDecision(DecisionPendingApproval, false, reason)
	d.RequiredApprovals = approvals
	return d
}

func (d *Decision) WithMatchedRule(r MatchedRule) *Decision {
	d.MatchedRules = append(d.MatchedRules, r)
	return d
}

func (d *Decision) WithObligation(o Obligation) *Decision {
	d.Obligations = append(d.Obligations, o)
	return d
}

func (d *Decision) WithAdvice(advice string) *Decision {
	d.Advice = append(d.Advice, advice)
	return d
}

// RequiresApproval reports whether the decision is blocked on approvals.
func (d *Decision) RequiresApproval() bool { return len(d.RequiredApprovals) > 0 }

// HasObligations reports whether the decision carries any obligations.
func (d *Decision) HasObligations() bool { return len(d.Obligations) > 0 }
