package recon

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RecordMatch pairs one internal record with one external record together
// with the confidence the matcher assigned to the pairing. Read-only for
// downstream components.
type RecordMatch struct {
	Internal   InternalRecord `json:"internal"`
	External   ExternalRecord `json:"external"`
	Confidence float64        `json:"confidence"`
}

// MatchResult is the full output of a matching pass.
type MatchResult struct {
	// Matches holds the claimed pairings.
	Matches []RecordMatch `json:"matches"`

	// UnmatchedInternal holds internal records with no candidate above the
	// policy threshold.
	UnmatchedInternal []InternalRecord `json:"unmatched_internal"`

	// UnmatchedExternal holds external records not claimed by any match.
	UnmatchedExternal []ExternalRecord `json:"unmatched_external"`

	// PolicyName names the matching policy that produced this result.
	PolicyName string `json:"policy_name"`
}

// MatchPolicy scores a single internal/external candidate pair. A pair is
// considered matched only when its score reaches the policy threshold.
type MatchPolicy interface {
	// Name identifies the policy in summaries and reports.
	Name() string

	// Threshold is the minimum score at which a pair counts as matched.
	Threshold() float64

	// Score returns a confidence in [0.0, 1.0] for the candidate pair.
	Score(in InternalRecord, ex ExternalRecord) float64
}

// ExactPolicy matches only bit-identical pairs: amount and currency must be
// equal and the settlement date must fall within DateTolerance. Confidence
// is binary.
type ExactPolicy struct {
	// DateTolerance is the maximum allowed settlement date deviation.
	DateTolerance time.Duration
}

// NewExactPolicy returns an exact policy with a same-day tolerance.
func NewExactPolicy() *ExactPolicy {
	return &ExactPolicy{DateTolerance: 24 * time.Hour}
}

func (p *ExactPolicy) Name() string { return "exact" }

func (p *ExactPolicy) Threshold() float64 { return 1.0 }

func (p *ExactPolicy) Score(in InternalRecord, ex ExternalRecord) float64 {
	if !in.Amount.Equal(ex.Amount) {
		return 0
	}
	if in.Currency != ex.Currency {
		return 0
	}
	if absDuration(ex.SettledAt.Sub(in.Timestamp)) > p.DateTolerance {
		return 0
	}
	return 1.0
}

// StandardPolicy scores candidates by a weighted sum: amount closeness 40%,
// currency equality 20%, date proximity 20% and reference containment 20%.
type StandardPolicy struct {
	// AmountTolerance is the absolute difference still earning full amount
	// credit (currency units).
	AmountTolerance decimal.Decimal

	// AmountCutoff is the relative difference at which amount credit drops
	// to zero; credit decays linearly in between.
	AmountCutoff float64

	// DateWindow is the window within which date credit decays linearly.
	DateWindow time.Duration

	// MinConfidence is the matched/unmatched threshold.
	MinConfidence float64
}

// NewStandardPolicy returns the standard policy with a 0.01 amount
// tolerance, 24h date window and 0.75 threshold.
func NewStandardPolicy() *StandardPolicy {
	return &StandardPolicy{
		AmountTolerance: decimal.NewFromFloat(0.01),
		AmountCutoff:    0.10,
		DateWindow:      24 * time.Hour,
		MinConfidence:   0.75,
	}
}

func (p *StandardPolicy) Name() string { return "standard" }

func (p *StandardPolicy) Threshold() float64 { return p.MinConfidence }

func (p *StandardPolicy) Score(in InternalRecord, ex ExternalRecord) float64 {
	return weightedScore(in, ex, p.AmountTolerance, p.AmountCutoff, p.DateWindow)
}

// FlexiblePolicy keeps the standard weighting shape but widens tolerances:
// full amount credit within 5% relative variance, a 7-day date window and a
// lower threshold.
type FlexiblePolicy struct {
	// AmountVariance is the relative difference still earning full amount
	// credit.
	AmountVariance float64

	// AmountCutoff is the relative difference at which amount credit drops
	// to zero.
	AmountCutoff float64

	// DateWindow is the window within which date credit decays linearly.
	DateWindow time.Duration

	// MinConfidence is the matched/unmatched threshold.
	MinConfidence float64
}

// NewFlexiblePolicy returns the flexible policy with a 5% amount variance,
// 7-day date window and 0.6 threshold.
func NewFlexiblePolicy() *FlexiblePolicy {
	return &FlexiblePolicy{
		AmountVariance: 0.05,
		AmountCutoff:   0.25,
		DateWindow:     7 * 24 * time.Hour,
		MinConfidence:  0.6,
	}
}

func (p *FlexiblePolicy) Name() string { return "flexible" }

func (p *FlexiblePolicy) Threshold() float64 { return p.MinConfidence }

func (p *FlexiblePolicy) Score(in InternalRecord, ex ExternalRecord) float64 {
	score := 0.0

	rel := relativeDelta(in.Amount, ex.Amount)
	switch {
	case rel <= p.AmountVariance:
		score += 0.40
	case rel < p.AmountCutoff:
		score += 0.40 * (1 - (rel-p.AmountVariance)/(p.AmountCutoff-p.AmountVariance))
	}

	if in.Currency == ex.Currency {
		score += 0.20
	}

	score += dateCredit(in.Timestamp, ex.SettledAt, p.DateWindow)
	score += referenceCredit(in, ex)

	return score
}

// weightedScore implements the standard 40/20/20/20 weighting.
func weightedScore(in InternalRecord, ex ExternalRecord, amountTol decimal.Decimal, amountCutoff float64, dateWindow time.Duration) float64 {
	score := 0.0

	diff := in.Amount.Sub(ex.Amount).Abs()
	if diff.Cmp(amountTol) <= 0 {
		score += 0.40
	} else if rel := relativeDelta(in.Amount, ex.Amount); rel < amountCutoff {
		score += 0.40 * (1 - rel/amountCutoff)
	}

	if in.Currency == ex.Currency {
		score += 0.20
	}

	score += dateCredit(in.Timestamp, ex.SettledAt, dateWindow)
	score += referenceCredit(in, ex)

	return score
}

// relativeDelta is |a-b| relative to the larger of the two amounts.
// Both amounts are positive after ingestion validation.
func relativeDelta(a, b decimal.Decimal) float64 {
	base := a
	if b.Cmp(a) > 0 {
		base = b
	}
	if base.IsZero() {
		return 0
	}
	rel, _ := a.Sub(b).Abs().Div(base).Float64()
	return rel
}

// dateCredit returns up to 0.20, linearly decayed over the window.
func dateCredit(internal, settled time.Time, window time.Duration) float64 {
	if window <= 0 {
		return 0
	}
	delta := absDuration(settled.Sub(internal))
	if delta > window {
		return 0
	}
	return 0.20 * (1 - float64(delta)/float64(window))
}

// referenceCredit returns 0.20 when the external description contains the
// internal transaction or order identifier.
func referenceCredit(in InternalRecord, ex ExternalRecord) float64 {
	if in.TransactionID != "" && containsToken(ex.Description, in.TransactionID) {
		return 0.20
	}
	if in.OrderRef != "" && containsToken(ex.Description, in.OrderRef) {
		return 0.20
	}
	return 0
}

func containsToken(haystack, needle string) bool {
	return needle != "" && strings.Contains(haystack, needle)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
