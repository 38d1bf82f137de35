package recon

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DiscrepancyType classifies a detected inconsistency.
type DiscrepancyType string

const (
	AmountMismatch    DiscrepancyType = "AMOUNT_MISMATCH"
	CurrencyMismatch  DiscrepancyType = "CURRENCY_MISMATCH"
	DateMismatch      DiscrepancyType = "DATE_MISMATCH"
	ReferenceMismatch DiscrepancyType = "REFERENCE_MISMATCH"
	InvalidData       DiscrepancyType = "INVALID_DATA"
	MissingExternal   DiscrepancyType = "MISSING_EXTERNAL"
	MissingInternal   DiscrepancyType = "MISSING_INTERNAL"
)

// Severity grades how notable a discrepancy is.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Rank orders severities for comparisons and histogram ordering.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	default:
		return -1
	}
}

// lower returns the severity one step below s, bottoming out at LOW.
func (s Severity) lower() Severity {
	switch s {
	case SeverityCritical:
		return SeverityHigh
	case SeverityHigh:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Discrepancy is a detected inconsistency between matched records, or the
// absence of an expected counterpart. At least one of Internal/External is
// set. Each discrepancy gets a synthetic ID at creation so resolutions can
// be tracked without relying on structural equality.
type Discrepancy struct {
	ID          uuid.UUID       `json:"id"`
	Type        DiscrepancyType `json:"type"`
	Description string          `json:"description"`
	Internal    *InternalRecord `json:"internal,omitempty"`
	External    *ExternalRecord `json:"external,omitempty"`
	Severity    Severity        `json:"severity"`
	DetectedAt  time.Time       `json:"detected_at"`
}

// AmountDelta returns the absolute amount difference between the two
// referenced records, or zero when either side is absent.
func (d Discrepancy) AmountDelta() decimal.Decimal {
	if d.Internal == nil || d.External == nil {
		return decimal.Zero
	}
	return d.Internal.Amount.Sub(d.External.Amount).Abs()
}

// DateDelta returns the absolute timestamp difference between the two
// referenced records, or zero when either side is absent.
func (d Discrepancy) DateDelta() time.Duration {
	if d.Internal == nil || d.External == nil {
		return 0
	}
	return absDuration(d.External.SettledAt.Sub(d.Internal.Timestamp))
}

// SameShape reports structural equality (type plus referenced records).
// Resolution tracking keys on ID instead; this exists for tests and
// de-duplication checks.
func (d Discrepancy) SameShape(other Discrepancy) bool {
	if d.Type != other.Type {
		return false
	}
	if (d.Internal == nil) != (other.Internal == nil) || (d.External == nil) != (other.External == nil) {
		return false
	}
	if d.Internal != nil && d.Internal.TransactionID != other.Internal.TransactionID {
		return false
	}
	if d.External != nil && d.External.ReferenceID != other.External.ReferenceID {
		return false
	}
	return true
}

// ReconciliationPolicy inspects one matched pair and emits zero or more
// discrepancies with graded severity.
type ReconciliationPolicy interface {
	// Name identifies the policy in summaries and reports.
	Name() string

	// Inspect compares the two sides of a match.
	Inspect(m RecordMatch) []Discrepancy
}

// StandardReconciliationPolicy grades matched pairs with production-default
// tolerances: amount deltas above AmountTolerance are MEDIUM, escalating to
// HIGH past LargeAmountDelta; timestamp deltas past DateTolerance are LOW,
// escalating to MEDIUM past LargeDateDelta.
type StandardReconciliationPolicy struct {
	AmountTolerance  decimal.Decimal
	LargeAmountDelta decimal.Decimal
	DateTolerance    time.Duration
	LargeDateDelta   time.Duration
}

// NewStandardReconciliationPolicy returns the policy with a 0.01 amount
// tolerance, 10.00 large-delta threshold, 24h date tolerance and 72h
// large-date threshold.
func NewStandardReconciliationPolicy() *StandardReconciliationPolicy {
	return &StandardReconciliationPolicy{
		AmountTolerance:  decimal.NewFromFloat(0.01),
		LargeAmountDelta: decimal.NewFromInt(10),
		DateTolerance:    24 * time.Hour,
		LargeDateDelta:   72 * time.Hour,
	}
}

func (p *StandardReconciliationPolicy) Name() string { return "standard" }

func (p *StandardReconciliationPolicy) Inspect(m RecordMatch) []Discrepancy {
	return inspectPair(m, p.AmountTolerance, p.LargeAmountDelta, p.DateTolerance, p.LargeDateDelta, false)
}

// FlexibleReconciliationPolicy widens tolerances and assigns severities one
// step lower, pairing with the flexible matching policy.
type FlexibleReconciliationPolicy struct {
	AmountTolerance  decimal.Decimal
	LargeAmountDelta decimal.Decimal
	DateTolerance    time.Duration
	LargeDateDelta   time.Duration
}

// NewFlexibleReconciliationPolicy returns the relaxed-grading policy.
func NewFlexibleReconciliationPolicy() *FlexibleReconciliationPolicy {
	return &FlexibleReconciliationPolicy{
		AmountTolerance:  decimal.NewFromFloat(0.05),
		LargeAmountDelta: decimal.NewFromInt(50),
		DateTolerance:    7 * 24 * time.Hour,
		LargeDateDelta:   14 * 24 * time.Hour,
	}
}

func (p *FlexibleReconciliationPolicy) Name() string { return "flexible" }

func (p *FlexibleReconciliationPolicy) Inspect(m RecordMatch) []Discrepancy {
	return inspectPair(m, p.AmountTolerance, p.LargeAmountDelta, p.DateTolerance, p.LargeDateDelta, true)
}

// inspectPair holds the shared grading logic for both policies.
func inspectPair(m RecordMatch, amountTol, largeAmount decimal.Decimal, dateTol, largeDate time.Duration, relaxed bool) []Discrepancy {
	var out []Discrepancy
	in, ex := m.Internal, m.External
	now := time.Now().UTC()

	grade := func(s Severity) Severity {
		if relaxed {
			return s.lower()
		}
		return s
	}

	if len(in.Currency) != 3 || len(ex.Currency) != 3 {
		out = append(out, Discrepancy{
			ID:          uuid.New(),
			Type:        InvalidData,
			Description: fmt.Sprintf("malformed currency code on %s/%s", in.TransactionID, ex.ReferenceID),
			Internal:    &in,
			External:    &ex,
			Severity:    grade(SeverityMedium),
			DetectedAt:  now,
		})
	} else if in.Currency != ex.Currency {
		out = append(out, Discrepancy{
			ID:          uuid.New(),
			Type:        CurrencyMismatch,
			Description: fmt.Sprintf("currency %s vs %s for %s", in.Currency, ex.Currency, in.TransactionID),
			Internal:    &in,
			External:    &ex,
			Severity:    grade(SeverityHigh),
			DetectedAt:  now,
		})
	}

	if delta := in.Amount.Sub(ex.Amount).Abs(); delta.Cmp(amountTol) > 0 {
		severity := SeverityMedium
		if delta.Cmp(largeAmount) > 0 {
			severity = SeverityHigh
		}
		out = append(out, Discrepancy{
			ID:          uuid.New(),
			Type:        AmountMismatch,
			Description: fmt.Sprintf("amount %s vs %s for %s (delta %s)", in.Amount, ex.Amount, in.TransactionID, delta),
			Internal:    &in,
			External:    &ex,
			Severity:    grade(severity),
			DetectedAt:  now,
		})
	}

	if delta := absDuration(ex.SettledAt.Sub(in.Timestamp)); delta > dateTol {
		severity := SeverityLow
		if delta > largeDate {
			severity = SeverityMedium
		}
		out = append(out, Discrepancy{
			ID:          uuid.New(),
			Type:        DateMismatch,
			Description: fmt.Sprintf("settlement %s lags transaction %s by %s", ex.ReferenceID, in.TransactionID, delta),
			Internal:    &in,
			External:    &ex,
			Severity:    grade(severity),
			DetectedAt:  now,
		})
	}

	// Only flagged when the feed supplied a narrative at all; many feeds
	// omit descriptions entirely.
	if ex.Description != "" && referenceCredit(in, ex) == 0 {
		out = append(out, Discrepancy{
			ID:          uuid.New(),
			Type:        ReferenceMismatch,
			Description: fmt.Sprintf("description of %s does not reference %s", ex.ReferenceID, in.TransactionID),
			Internal:    &in,
			External:    &ex,
			Severity:    grade(SeverityLow),
			DetectedAt:  now,
		})
	}

	return out
}

// Analyze inspects the matcher's full result and produces the run's
// discrepancy list. Matched pairs go through the reconciliation policy;
// every unmatched record on either side yields one HIGH missing-counterpart
// discrepancy. Deterministic given its inputs and the active policy.
func Analyze(res MatchResult, policy ReconciliationPolicy) []Discrepancy {
	var out []Discrepancy
	now := time.Now().UTC()

	for _, m := range res.Matches {
		out = append(out, policy.Inspect(m)...)
	}

	for i := range res.UnmatchedInternal {
		in := res.UnmatchedInternal[i]
		out = append(out, Discrepancy{
			ID:          uuid.New(),
			Type:        MissingExternal,
			Description: fmt.Sprintf("no settlement counterpart for internal transaction %s", in.TransactionID),
			Internal:    &in,
			Severity:    SeverityHigh,
			DetectedAt:  now,
		})
	}

	for i := range res.UnmatchedExternal {
		ex := res.UnmatchedExternal[i]
		out = append(out, Discrepancy{
			ID:          uuid.New(),
			Type:        MissingInternal,
			Description: fmt.Sprintf("no ledger counterpart for settlement entry %s", ex.ReferenceID),
			External:    &ex,
			Severity:    SeverityHigh,
			DetectedAt:  now,
		})
	}

	return out
}
