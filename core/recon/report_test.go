package recon

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// summaryFixture builds a summary with the given rates and counts without
// running the pipeline.
func summaryFixture(matched, unmatchedInternal, unmatchedExternal int, discrepancies []Discrepancy, resolutions map[uuid.UUID]DiscrepancyResolution) *Summary {
	res := MatchResult{PolicyName: "standard"}
	for i := 0; i < matched; i++ {
		res.Matches = append(res.Matches, RecordMatch{Confidence: 0.9})
	}
	for i := 0; i < unmatchedInternal; i++ {
		res.UnmatchedInternal = append(res.UnmatchedInternal, InternalRecord{})
	}
	for i := 0; i < unmatchedExternal; i++ {
		res.UnmatchedExternal = append(res.UnmatchedExternal, ExternalRecord{})
	}
	timings := map[string]time.Duration{
		"match":   2 * time.Millisecond,
		"analyze": time.Millisecond,
		"resolve": time.Millisecond,
		"total":   5 * time.Millisecond,
	}
	return buildSummary(uuid.New(), testDay, testDay.Add(time.Second), res, discrepancies, resolutions, timings)
}

func TestBuildReport_SummaryStatKeys(t *testing.T) {
	d := Discrepancy{ID: uuid.New(), Type: AmountMismatch, Severity: SeverityMedium}
	s := summaryFixture(4, 1, 0, []Discrepancy{d}, map[uuid.UUID]DiscrepancyResolution{
		d.ID: {DiscrepancyID: d.ID, Action: AutoResolved, Resolved: true},
	})

	r, err := BuildReport(ReportSummary, []*Summary{s}, "standard")
	require.NoError(t, err)

	var keys []string
	for _, stat := range r.Stats {
		keys = append(keys, stat.Key)
	}
	assert.Equal(t, []string{"runs", "matches", "discrepancies", "matchRate"}, keys)

	runs, _ := r.Stat("runs")
	assert.Equal(t, "1", runs)
	matches, _ := r.Stat("matches")
	assert.Equal(t, "4", matches)
	discrepancies, _ := r.Stat("discrepancies")
	assert.Equal(t, "1", discrepancies)
	rate, _ := r.Stat("matchRate")
	assert.Equal(t, "80.00%", rate)
}

func TestBuildReport_EmptyHistory(t *testing.T) {
	_, err := BuildReport(ReportSummary, nil, "standard")
	assert.ErrorIs(t, err, ErrNoCompletedRun)
}

func TestReport_FormatShape(t *testing.T) {
	s := summaryFixture(2, 0, 0, nil, nil)
	r, err := BuildReport(ReportSummary, []*Summary{s}, "standard")
	require.NoError(t, err)
	r.GeneratedAt = time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)

	got := r.Format()
	lines := strings.Split(got, "\n")

	assert.Equal(t, "=== RECONCILIATION REPORT: SUMMARY ===", lines[0])
	assert.Equal(t, "Generated: 2026-03-15T09:00:00Z", lines[1])
	assert.Equal(t, "Policy: standard", lines[2])
	assert.Equal(t, "", lines[3])
	assert.Equal(t, "--- Statistics ---", lines[4])
	assert.Equal(t, "runs                     1", lines[5])
	assert.Equal(t, "matches                  2", lines[6])
	assert.Equal(t, "discrepancies            0", lines[7])
	assert.Equal(t, "matchRate                100.00%", lines[8])
}

func TestBuildReport_Discrepancy(t *testing.T) {
	discrepancies := []Discrepancy{
		{ID: uuid.New(), Type: AmountMismatch, Severity: SeverityMedium},
		{ID: uuid.New(), Type: AmountMismatch, Severity: SeverityHigh},
		{ID: uuid.New(), Type: MissingExternal, Severity: SeverityHigh},
	}
	s := summaryFixture(2, 1, 0, discrepancies, nil)

	r, err := BuildReport(ReportDiscrepancy, []*Summary{s}, "standard")
	require.NoError(t, err)

	total, _ := r.Stat("discrepancies")
	assert.Equal(t, "3", total)

	require.Len(t, r.Sections, 2)
	assert.Equal(t, "By Type", r.Sections[0].Title)
	assert.Contains(t, r.Sections[0].Body, "AMOUNT_MISMATCH      2")
	assert.Contains(t, r.Sections[0].Body, "MISSING_EXTERNAL     1")
	assert.Equal(t, "By Severity", r.Sections[1].Title)
	assert.Contains(t, r.Sections[1].Body, "MEDIUM               1")
	assert.Contains(t, r.Sections[1].Body, "HIGH                 2")
}

func TestBuildReport_Exception(t *testing.T) {
	critical := Discrepancy{ID: uuid.New(), Type: CurrencyMismatch, Severity: SeverityCritical, Description: "critical one"}
	resolved := Discrepancy{ID: uuid.New(), Type: AmountMismatch, Severity: SeverityMedium, Description: "resolved one"}
	open := Discrepancy{ID: uuid.New(), Type: DateMismatch, Severity: SeverityLow, Description: "open one"}

	s := summaryFixture(1, 0, 0, []Discrepancy{critical, resolved, open}, map[uuid.UUID]DiscrepancyResolution{
		resolved.ID: {DiscrepancyID: resolved.ID, Action: AutoResolved, Resolved: true},
		open.ID:     {DiscrepancyID: open.ID, Action: ManualReview, Resolved: false},
		critical.ID: {DiscrepancyID: critical.ID, Action: Escalated, Resolved: false},
	})

	r, err := BuildReport(ReportException, []*Summary{s}, "standard")
	require.NoError(t, err)

	criticalCount, _ := r.Stat("critical")
	assert.Equal(t, "1", criticalCount)
	unresolvedCount, _ := r.Stat("unresolved")
	assert.Equal(t, "2", unresolvedCount)

	require.Len(t, r.Sections, 2)
	assert.Contains(t, r.Sections[0].Body, "critical one")
	assert.NotContains(t, r.Sections[0].Body, "resolved one")
	assert.Contains(t, r.Sections[1].Body, "open one")
	assert.NotContains(t, r.Sections[1].Body, "resolved one")
}

func TestBuildReport_TrendAnalysis(t *testing.T) {
	oldest := summaryFixture(1, 1, 0, nil, nil) // 50% match rate
	newest := summaryFixture(3, 1, 0, nil, nil) // 75% match rate

	r, err := BuildReport(ReportTrend, []*Summary{oldest, newest}, "standard")
	require.NoError(t, err)

	delta, _ := r.Stat("matchRateDelta")
	assert.Equal(t, "+25.00%", delta)
	avg, _ := r.Stat("movingAvgMatchRate")
	assert.Equal(t, "62.50%", avg)
	window, _ := r.Stat("movingAvgWindow")
	assert.Equal(t, "2", window)
}

func TestBuildReport_AuditTrail(t *testing.T) {
	d := Discrepancy{ID: uuid.New(), Type: AmountMismatch, Severity: SeverityMedium}
	s := summaryFixture(2, 1, 1, []Discrepancy{d}, map[uuid.UUID]DiscrepancyResolution{
		d.ID: {DiscrepancyID: d.ID, Action: AutoResolved, Resolved: true, ResolvedBy: "system", Notes: "within threshold"},
	})

	r, err := BuildReport(ReportAuditTrail, []*Summary{s}, "standard")
	require.NoError(t, err)

	require.Len(t, r.Sections, 1)
	assert.Contains(t, r.Sections[0].Title, s.RunID.String())
	assert.Contains(t, r.Sections[0].Body, "inputs: 3 internal, 3 external")
	assert.Contains(t, r.Sections[0].Body, "AUTO_RESOLVED by system")
}

func TestBuildReport_Performance(t *testing.T) {
	s := summaryFixture(2, 0, 0, nil, nil)

	r, err := BuildReport(ReportPerformance, []*Summary{s}, "standard")
	require.NoError(t, err)

	total, _ := r.Stat("totalProcessingTime")
	assert.Equal(t, "5ms", total)
	require.Len(t, r.Sections, 1)
	assert.Contains(t, r.Sections[0].Body, "match")
}

func TestParseReportKind(t *testing.T) {
	kind, err := ParseReportKind("summary")
	require.NoError(t, err)
	assert.Equal(t, ReportSummary, kind)

	kind, err = ParseReportKind(" TREND_ANALYSIS ")
	require.NoError(t, err)
	assert.Equal(t, ReportTrend, kind)

	_, err = ParseReportKind("bogus")
	assert.Error(t, err)
}
