package recon

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze_ExactMatchYieldsNoDiscrepancies(t *testing.T) {
	internals := []InternalRecord{internalRecord("T1", 100.00, "USD", testDay)}
	externals := []ExternalRecord{externalRecord("E1", 100.00, "USD", testDay, "")}

	res, err := Match(context.Background(), internals, externals, NewExactPolicy())
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, 1.0, res.Matches[0].Confidence)

	discrepancies := Analyze(res, NewStandardReconciliationPolicy())
	assert.Empty(t, discrepancies)
}

func TestAnalyze_MinorAmountVariance(t *testing.T) {
	internals := []InternalRecord{internalRecord("T1", 100.00, "USD", testDay)}
	externals := []ExternalRecord{externalRecord("E1", 100.50, "USD", testDay, "")}

	res, err := Match(context.Background(), internals, externals, NewStandardPolicy())
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)

	discrepancies := Analyze(res, NewStandardReconciliationPolicy())
	require.Len(t, discrepancies, 1)
	assert.Equal(t, AmountMismatch, discrepancies[0].Type)
	assert.Equal(t, SeverityMedium, discrepancies[0].Severity)
	assert.NotNil(t, discrepancies[0].Internal)
	assert.NotNil(t, discrepancies[0].External)
}

func TestAnalyze_LargeAmountDeltaEscalates(t *testing.T) {
	m := RecordMatch{
		Internal:   internalRecord("T1", 100.00, "USD", testDay),
		External:   externalRecord("E1", 120.00, "USD", testDay, ""),
		Confidence: 0.8,
	}
	discrepancies := NewStandardReconciliationPolicy().Inspect(m)
	require.Len(t, discrepancies, 1)
	assert.Equal(t, AmountMismatch, discrepancies[0].Type)
	assert.Equal(t, SeverityHigh, discrepancies[0].Severity)
}

func TestAnalyze_MissingCounterparts(t *testing.T) {
	res := MatchResult{
		UnmatchedInternal: []InternalRecord{internalRecord("T1", 100.00, "USD", testDay)},
		UnmatchedExternal: []ExternalRecord{externalRecord("E9", 55.00, "USD", testDay, "")},
	}

	discrepancies := Analyze(res, NewStandardReconciliationPolicy())
	require.Len(t, discrepancies, 2)

	var missingExternal, missingInternal *Discrepancy
	for i := range discrepancies {
		switch discrepancies[i].Type {
		case MissingExternal:
			missingExternal = &discrepancies[i]
		case MissingInternal:
			missingInternal = &discrepancies[i]
		}
	}

	require.NotNil(t, missingExternal)
	assert.Equal(t, SeverityHigh, missingExternal.Severity)
	require.NotNil(t, missingExternal.Internal)
	assert.Nil(t, missingExternal.External)

	require.NotNil(t, missingInternal)
	assert.Equal(t, SeverityHigh, missingInternal.Severity)
	require.NotNil(t, missingInternal.External)
	assert.Nil(t, missingInternal.Internal)
}

func TestAnalyze_CurrencyMismatch(t *testing.T) {
	m := RecordMatch{
		Internal: internalRecord("T1", 100.00, "USD", testDay),
		External: externalRecord("E1", 100.00, "EUR", testDay, ""),
	}
	discrepancies := NewStandardReconciliationPolicy().Inspect(m)
	require.Len(t, discrepancies, 1)
	assert.Equal(t, CurrencyMismatch, discrepancies[0].Type)
	assert.Equal(t, SeverityHigh, discrepancies[0].Severity)
}

func TestAnalyze_MalformedCurrencyIsInvalidData(t *testing.T) {
	m := RecordMatch{
		Internal: internalRecord("T1", 100.00, "US", testDay),
		External: externalRecord("E1", 100.00, "USD", testDay, ""),
	}
	discrepancies := NewStandardReconciliationPolicy().Inspect(m)
	require.Len(t, discrepancies, 1)
	assert.Equal(t, InvalidData, discrepancies[0].Type)
}

func TestAnalyze_DateMismatchGrading(t *testing.T) {
	policy := NewStandardReconciliationPolicy()

	tests := []struct {
		name     string
		lag      time.Duration
		severity Severity
	}{
		{"just past tolerance", 30 * time.Hour, SeverityLow},
		{"past the large threshold", 4 * 24 * time.Hour, SeverityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := RecordMatch{
				Internal: internalRecord("T1", 100.00, "USD", testDay),
				External: externalRecord("E1", 100.00, "USD", testDay.Add(tt.lag), ""),
			}
			discrepancies := policy.Inspect(m)
			require.Len(t, discrepancies, 1)
			assert.Equal(t, DateMismatch, discrepancies[0].Type)
			assert.Equal(t, tt.severity, discrepancies[0].Severity)
		})
	}
}

func TestAnalyze_ReferenceMismatchOnlyWithDescription(t *testing.T) {
	policy := NewStandardReconciliationPolicy()

	withDesc := RecordMatch{
		Internal: internalRecord("T1", 100.00, "USD", testDay),
		External: externalRecord("E1", 100.00, "USD", testDay, "unrelated narrative"),
	}
	discrepancies := policy.Inspect(withDesc)
	require.Len(t, discrepancies, 1)
	assert.Equal(t, ReferenceMismatch, discrepancies[0].Type)
	assert.Equal(t, SeverityLow, discrepancies[0].Severity)

	noDesc := RecordMatch{
		Internal: internalRecord("T1", 100.00, "USD", testDay),
		External: externalRecord("E1", 100.00, "USD", testDay, ""),
	}
	assert.Empty(t, policy.Inspect(noDesc))
}

func TestFlexiblePolicy_LowersSeverity(t *testing.T) {
	m := RecordMatch{
		Internal: internalRecord("T1", 100.00, "USD", testDay),
		External: externalRecord("E1", 100.00, "EUR", testDay, ""),
	}

	standard := NewStandardReconciliationPolicy().Inspect(m)
	flexible := NewFlexibleReconciliationPolicy().Inspect(m)
	require.Len(t, standard, 1)
	require.Len(t, flexible, 1)
	assert.Greater(t, standard[0].Severity.Rank(), flexible[0].Severity.Rank())
}

func TestDiscrepancy_SyntheticIDsAreUnique(t *testing.T) {
	res := MatchResult{
		UnmatchedInternal: []InternalRecord{
			internalRecord("T1", 100.00, "USD", testDay),
			internalRecord("T2", 100.00, "USD", testDay),
		},
	}
	discrepancies := Analyze(res, NewStandardReconciliationPolicy())
	require.Len(t, discrepancies, 2)
	assert.NotEqual(t, discrepancies[0].ID, discrepancies[1].ID)
}

func TestDiscrepancy_SameShape(t *testing.T) {
	in := internalRecord("T1", 100.00, "USD", testDay)
	a := Discrepancy{Type: MissingExternal, Internal: &in}
	b := Discrepancy{Type: MissingExternal, Internal: &in}
	c := Discrepancy{Type: MissingInternal, Internal: &in}

	assert.True(t, a.SameShape(b))
	assert.False(t, a.SameShape(c))
}
