package recon

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ResolutionAction is the decision taken for a discrepancy.
type ResolutionAction string

const (
	AutoResolved     ResolutionAction = "AUTO_RESOLVED"
	ManualReview     ResolutionAction = "MANUAL_REVIEW"
	Escalated        ResolutionAction = "ESCALATED"
	PendingApproval  ResolutionAction = "PENDING_APPROVAL"
	Ignored          ResolutionAction = "IGNORED"
	SystemCorrection ResolutionAction = "SYSTEM_CORRECTION"
)

// DiscrepancyResolution records the decision for one discrepancy. A
// resolution is a pure function of the discrepancy and the active policy,
// so resolving the same discrepancy twice yields an identical value.
type DiscrepancyResolution struct {
	DiscrepancyID uuid.UUID        `json:"discrepancy_id"`
	Action        ResolutionAction `json:"action"`
	Notes         string           `json:"notes"`
	Resolved      bool             `json:"resolved"`
	ResolvedBy    string           `json:"resolved_by"`
}

// ResolutionPolicy decides what to do with a discrepancy.
type ResolutionPolicy interface {
	// Name identifies the policy in summaries and reports.
	Name() string

	// Resolve decides and records the resolution for d.
	Resolve(d Discrepancy) DiscrepancyResolution
}

// ResolveAll applies the policy to each discrepancy, keyed by discrepancy ID.
func ResolveAll(discrepancies []Discrepancy, policy ResolutionPolicy) map[uuid.UUID]DiscrepancyResolution {
	out := make(map[uuid.UUID]DiscrepancyResolution, len(discrepancies))
	for _, d := range discrepancies {
		out[d.ID] = policy.Resolve(d)
	}
	return out
}

// AutomaticPolicy auto-resolves small amount mismatches and short date
// mismatches. Missing counterparts and invalid data always go to a human;
// CRITICAL severity escalates.
type AutomaticPolicy struct {
	// AmountThreshold is the largest amount delta eligible for
	// auto-resolution, boundary inclusive.
	AmountThreshold decimal.Decimal

	// DateWindow is the largest date delta eligible for auto-resolution.
	DateWindow time.Duration
}

// NewAutomaticPolicy returns the automatic policy with a 1.00 amount
// threshold and 72h date window.
func NewAutomaticPolicy() *AutomaticPolicy {
	return &AutomaticPolicy{
		AmountThreshold: decimal.NewFromInt(1),
		DateWindow:      72 * time.Hour,
	}
}

func (p *AutomaticPolicy) Name() string { return "automatic" }

func (p *AutomaticPolicy) Resolve(d Discrepancy) DiscrepancyResolution {
	if d.Severity == SeverityCritical {
		return escalate(d, "critical severity requires escalation")
	}

	switch d.Type {
	case MissingExternal, MissingInternal, InvalidData:
		return manual(d, fmt.Sprintf("%s cannot be auto-resolved", d.Type))
	case AmountMismatch:
		if delta := d.AmountDelta(); delta.Cmp(p.AmountThreshold) <= 0 {
			return DiscrepancyResolution{
				DiscrepancyID: d.ID,
				Action:        AutoResolved,
				Notes:         fmt.Sprintf("amount delta %s within auto-resolve threshold %s", delta, p.AmountThreshold),
				Resolved:      true,
				ResolvedBy:    "system",
			}
		}
		return manual(d, "amount delta exceeds auto-resolve threshold")
	case DateMismatch:
		if delta := d.DateDelta(); delta <= p.DateWindow {
			return DiscrepancyResolution{
				DiscrepancyID: d.ID,
				Action:        AutoResolved,
				Notes:         fmt.Sprintf("date delta %s within auto-resolve window %s", delta, p.DateWindow),
				Resolved:      true,
				ResolvedBy:    "system",
			}
		}
		return manual(d, "date delta exceeds auto-resolve window")
	default:
		return manual(d, fmt.Sprintf("no auto-resolve rule for %s", d.Type))
	}
}

// ManualOnlyPolicy never auto-resolves. Everything is routed to a human,
// escalating on CRITICAL severity. For environments requiring sign-off on
// all variances.
type ManualOnlyPolicy struct{}

// NewManualOnlyPolicy returns the manual-only policy.
func NewManualOnlyPolicy() *ManualOnlyPolicy { return &ManualOnlyPolicy{} }

func (p *ManualOnlyPolicy) Name() string { return "manual-only" }

func (p *ManualOnlyPolicy) Resolve(d Discrepancy) DiscrepancyResolution {
	if d.Severity == SeverityCritical {
		return escalate(d, "critical severity requires escalation")
	}
	return manual(d, "manual-only policy: all variances require sign-off")
}

// Rule is one independently configurable resolution rule for a discrepancy
// type under RuleBasedPolicy.
type Rule struct {
	// Applies gates the rule; a nil Applies always applies.
	Applies func(Discrepancy) bool

	// Action is the resulting resolution action.
	Action ResolutionAction

	// Resolved marks the discrepancy as settled by this rule.
	Resolved bool

	// Notes explains the rule's decision.
	Notes string
}

// RuleBasedPolicy maps discrepancy types to explicit rules, falling back to
// MANUAL_REVIEW when no rule matches.
type RuleBasedPolicy struct {
	rules map[DiscrepancyType]Rule
}

// NewRuleBasedPolicy returns a policy with no rules; everything falls back
// to MANUAL_REVIEW until rules are registered.
func NewRuleBasedPolicy() *RuleBasedPolicy {
	return &RuleBasedPolicy{rules: make(map[DiscrepancyType]Rule)}
}

// DefaultRuleSet returns a rule-based policy preconfigured with sensible
// operational rules: small amount mismatches are system-corrected, low
// severity reference mismatches are ignored, missing counterparts pend
// approval.
func DefaultRuleSet() *RuleBasedPolicy {
	p := NewRuleBasedPolicy()
	smallDelta := decimal.NewFromFloat(0.05)
	p.SetRule(AmountMismatch, Rule{
		Applies:  func(d Discrepancy) bool { return d.AmountDelta().Cmp(smallDelta) <= 0 },
		Action:   SystemCorrection,
		Resolved: true,
		Notes:    "rounding-level amount delta corrected in ledger",
	})
	p.SetRule(ReferenceMismatch, Rule{
		Applies:  func(d Discrepancy) bool { return d.Severity == SeverityLow },
		Action:   Ignored,
		Resolved: true,
		Notes:    "descriptive reference absent; pairing confidence sufficient",
	})
	p.SetRule(MissingExternal, Rule{
		Action: PendingApproval,
		Notes:  "awaiting next settlement feed window",
	})
	p.SetRule(MissingInternal, Rule{
		Action: PendingApproval,
		Notes:  "awaiting ledger posting",
	})
	return p
}

// SetRule registers or replaces the rule for a discrepancy type.
func (p *RuleBasedPolicy) SetRule(t DiscrepancyType, r Rule) {
	p.rules[t] = r
}

func (p *RuleBasedPolicy) Name() string { return "rule-based" }

func (p *RuleBasedPolicy) Resolve(d Discrepancy) DiscrepancyResolution {
	rule, ok := p.rules[d.Type]
	if !ok || (rule.Applies != nil && !rule.Applies(d)) {
		return manual(d, fmt.Sprintf("no applicable rule for %s", d.Type))
	}
	resolvedBy := "system"
	if !rule.Resolved {
		resolvedBy = "unassigned"
	}
	return DiscrepancyResolution{
		DiscrepancyID: d.ID,
		Action:        rule.Action,
		Notes:         rule.Notes,
		Resolved:      rule.Resolved,
		ResolvedBy:    resolvedBy,
	}
}

func manual(d Discrepancy, notes string) DiscrepancyResolution {
	return DiscrepancyResolution{
		DiscrepancyID: d.ID,
		Action:        ManualReview,
		Notes:         notes,
		Resolved:      false,
		ResolvedBy:    "unassigned",
	}
}

func escalate(d Discrepancy, notes string) DiscrepancyResolution {
	return DiscrepancyResolution{
		DiscrepancyID: d.ID,
		Action:        Escalated,
		Notes:         notes,
		Resolved:      false,
		ResolvedBy:    "unassigned",
	}
}
