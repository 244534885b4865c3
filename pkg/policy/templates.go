// Copyright 2025 Certen Protocol

package policy

import "fmt"

// Predefined rules covering common authorization patterns. Callers
// compose these into policies alongside their own rules.

// RequireMFAInProduction denies any action in the production
// environment when the session has not completed MFA.
func RequireMFAInProduction() *Rule {
	return DenyRule("require-mfa-prod", "Require MFA in Production").
		WithDescription("Deny actions in production environment without MFA verification").
		WithCondition(EnvironmentCondition(OpEq, "production")).
		WithCondition(NewCondition(ConditionSession, "mfa_verified", OpEq, false))
}

// RequireApprovalForDelete requires human approval for any ".delete"
// action.
func RequireApprovalForDelete() *Rule {
	return RequireApprovalRule("approve-delete", "Require Approval for Delete").
		WithDescription("Require human approval for all delete actions").
		WithCondition(ActionCondition(OpEndsWith, ".delete")).
		WithApprovalConfig(deleteApprovalConfig())
}

func deleteApprovalConfig() ApprovalConfig {
	c := NewApprovalConfig(ApprovalHuman)
	c.MinApprovals = 1
	c.TimeoutSecs = 3600
	c.ReasonTemplate = "Delete actions require approval"
	return c
}

// BusinessHoursOnly denies actions outside 09:00-18:00.
func BusinessHoursOnly() *Rule {
	return DenyRule("business-hours", "Business Hours Only").
		WithDescription("Deny actions outside business hours (9 AM - 6 PM)").
		WithCondition(NewCondition(ConditionTime, "hour", OpNotIn,
			[]any{"09", "10", "11", "12", "13", "14", "15", "16", "17"}))
}

// AllowReadActions allows any ".read" action, at elevated priority so it
// is considered before more specific deny rules of lower priority.
func AllowReadActions() *Rule {
	return AllowRule("allow-read", "Allow Read Actions").
		WithDescription("Allow all read actions").
		WithCondition(ActionCondition(OpEndsWith, ".read")).
		WithPriority(10)
}

// DenySensitiveResources denies access to any resource id containing
// "/sensitive/".
func DenySensitiveResources() *Rule {
	return DenyRule("deny-sensitive", "Deny Sensitive Resources").
		WithDescription("Deny access to resources marked as sensitive").
		WithCondition(ResourceCondition(OpContains, "/sensitive/")).
		WithPriority(100)
}

// RateLimitRule denies requests once the gateway has recorded the
// rate_limit_exceeded attribute as true for the request's context.
func RateLimitRule(requestsPerMinute uint64) *Rule {
	return DenyRule("rate-limit", "Rate Limit").
		WithDescription(fmt.Sprintf("Limit to %d requests per minute", requestsPerMinute)).
		WithCondition(AttributeCondition("rate_limit_exceeded", OpEq, true))
}
