package recon

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ReportKind selects the shape of a generated report.
type ReportKind string

const (
	ReportSummary     ReportKind = "SUMMARY"
	ReportDetailed    ReportKind = "DETAILED"
	ReportDiscrepancy ReportKind = "DISCREPANCY"
	ReportException   ReportKind = "EXCEPTION"
	ReportTrend       ReportKind = "TREND_ANALYSIS"
	ReportAuditTrail  ReportKind = "AUDIT_TRAIL"
	ReportPerformance ReportKind = "PERFORMANCE"
)

// ParseReportKind maps a case-insensitive kind name to a ReportKind.
func ParseReportKind(s string) (ReportKind, error) {
	kind := ReportKind(strings.ToUpper(strings.TrimSpace(s)))
	switch kind {
	case ReportSummary, ReportDetailed, ReportDiscrepancy, ReportException, ReportTrend, ReportAuditTrail, ReportPerformance:
		return kind, nil
	default:
		return "", fmt.Errorf("unknown report kind %q", s)
	}
}

// Stat is one ordered key/value statistic.
type Stat struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Section is one titled free-text block.
type Section struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Report is a rendered reconciliation report: a header, an ordered
// statistics block and titled sections. Building a report never mutates
// the summaries it reads.
type Report struct {
	Kind        ReportKind `json:"kind"`
	GeneratedAt time.Time  `json:"generated_at"`
	PolicyName  string     `json:"policy_name"`
	Stats       []Stat     `json:"stats"`
	Sections    []Section  `json:"sections"`
}

// Stat looks a statistic up by key.
func (r *Report) Stat(key string) (string, bool) {
	for _, s := range r.Stats {
		if s.Key == key {
			return s.Value, true
		}
	}
	return "", false
}

// Format renders the report as plain text: header, aligned key/value
// statistics, then titled sections. This shape is the external contract.
func (r *Report) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== RECONCILIATION REPORT: %s ===\n", r.Kind)
	fmt.Fprintf(&b, "Generated: %s\n", r.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Policy: %s\n", r.PolicyName)
	b.WriteString("\n--- Statistics ---\n")
	for _, s := range r.Stats {
		fmt.Fprintf(&b, "%-24s %s\n", s.Key, s.Value)
	}
	for _, sec := range r.Sections {
		fmt.Fprintf(&b, "\n--- %s ---\n", sec.Title)
		b.WriteString(sec.Body)
		if !strings.HasSuffix(sec.Body, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// TrendWindow is the moving-average window for TREND_ANALYSIS reports.
const TrendWindow = 5

// BuildReport aggregates run summaries into a report of the requested kind.
// Summaries must be ordered oldest first.
func BuildReport(kind ReportKind, history []*Summary, policyName string) (*Report, error) {
	if len(history) == 0 {
		return nil, ErrNoCompletedRun
	}

	r := &Report{
		Kind:        kind,
		GeneratedAt: time.Now().UTC(),
		PolicyName:  policyName,
	}

	switch kind {
	case ReportSummary:
		buildSummaryReport(r, history)
	case ReportDetailed:
		buildDetailedReport(r, history)
	case ReportDiscrepancy:
		buildDiscrepancyReport(r, history)
	case ReportException:
		buildExceptionReport(r, history)
	case ReportTrend:
		buildTrendReport(r, history)
	case ReportAuditTrail:
		buildAuditTrailReport(r, history)
	case ReportPerformance:
		buildPerformanceReport(r, history)
	default:
		return nil, fmt.Errorf("unknown report kind %q", kind)
	}
	return r, nil
}

func buildSummaryReport(r *Report, history []*Summary) {
	matches, discrepancies, internal := 0, 0, 0
	for _, s := range history {
		matches += s.MatchedCount
		discrepancies += s.DiscrepancyCount
		internal += s.InternalCount
	}
	rate := 0.0
	if internal > 0 {
		rate = float64(matches) / float64(internal) * 100
	}
	r.Stats = []Stat{
		{"runs", fmt.Sprintf("%d", len(history))},
		{"matches", fmt.Sprintf("%d", matches)},
		{"discrepancies", fmt.Sprintf("%d", discrepancies)},
		{"matchRate", fmt.Sprintf("%.2f%%", rate)},
	}
}

func buildDetailedReport(r *Report, history []*Summary) {
	internal, external, matches, discrepancies, resolved := 0, 0, 0, 0, 0
	for _, s := range history {
		internal += s.InternalCount
		external += s.ExternalCount
		matches += s.MatchedCount
		discrepancies += s.DiscrepancyCount
		resolved += s.ResolvedCount
	}
	r.Stats = []Stat{
		{"runs", fmt.Sprintf("%d", len(history))},
		{"internalRecords", fmt.Sprintf("%d", internal)},
		{"externalRecords", fmt.Sprintf("%d", external)},
		{"matches", fmt.Sprintf("%d", matches)},
		{"discrepancies", fmt.Sprintf("%d", discrepancies)},
		{"resolved", fmt.Sprintf("%d", resolved)},
	}
	for _, s := range history {
		var b strings.Builder
		fmt.Fprintf(&b, "started: %s\n", s.StartedAt.Format(time.RFC3339))
		fmt.Fprintf(&b, "completed: %s\n", s.CompletedAt.Format(time.RFC3339))
		fmt.Fprintf(&b, "internal: %d external: %d matched: %d\n", s.InternalCount, s.ExternalCount, s.MatchedCount)
		fmt.Fprintf(&b, "unmatched internal: %d unmatched external: %d\n", len(s.Matches.UnmatchedInternal), len(s.Matches.UnmatchedExternal))
		fmt.Fprintf(&b, "discrepancies: %d resolved: %d\n", s.DiscrepancyCount, s.ResolvedCount)
		fmt.Fprintf(&b, "match rate: %.2f%% resolution rate: %.2f%%\n", s.MatchRate, s.ResolutionRate)
		r.Sections = append(r.Sections, Section{
			Title: "Run " + s.RunID.String(),
			Body:  b.String(),
		})
	}
}

// discrepancyTypeOrder fixes histogram ordering for deterministic output.
var discrepancyTypeOrder = []DiscrepancyType{
	AmountMismatch, CurrencyMismatch, DateMismatch, ReferenceMismatch,
	InvalidData, MissingExternal, MissingInternal,
}

var severityOrder = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

func buildDiscrepancyReport(r *Report, history []*Summary) {
	byType := make(map[DiscrepancyType]int)
	bySeverity := make(map[Severity]int)
	total := 0
	for _, s := range history {
		for _, d := range s.Discrepancies {
			byType[d.Type]++
			bySeverity[d.Severity]++
			total++
		}
	}
	r.Stats = []Stat{
		{"runs", fmt.Sprintf("%d", len(history))},
		{"discrepancies", fmt.Sprintf("%d", total)},
	}

	var typeBody strings.Builder
	for _, t := range discrepancyTypeOrder {
		fmt.Fprintf(&typeBody, "%-20s %d\n", t, byType[t])
	}
	r.Sections = append(r.Sections, Section{Title: "By Type", Body: typeBody.String()})

	var sevBody strings.Builder
	for _, sev := range severityOrder {
		fmt.Fprintf(&sevBody, "%-20s %d\n", sev, bySeverity[sev])
	}
	r.Sections = append(r.Sections, Section{Title: "By Severity", Body: sevBody.String()})
}

func buildExceptionReport(r *Report, history []*Summary) {
	var critical, unresolved []Discrepancy
	for _, s := range history {
		for _, d := range s.Discrepancies {
			if d.Severity == SeverityCritical {
				critical = append(critical, d)
			}
		}
		unresolved = append(unresolved, s.Unresolved()...)
	}
	r.Stats = []Stat{
		{"critical", fmt.Sprintf("%d", len(critical))},
		{"unresolved", fmt.Sprintf("%d", len(unresolved))},
	}

	r.Sections = append(r.Sections,
		Section{Title: "Critical Discrepancies", Body: discrepancyLines(critical)},
		Section{Title: "Unresolved Discrepancies", Body: discrepancyLines(unresolved)},
	)
}

func discrepancyLines(list []Discrepancy) string {
	if len(list) == 0 {
		return "none\n"
	}
	sorted := make([]Discrepancy, len(list))
	copy(sorted, list)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Severity.Rank() != sorted[j].Severity.Rank() {
			return sorted[i].Severity.Rank() > sorted[j].Severity.Rank()
		}
		return sorted[i].Description < sorted[j].Description
	})
	var b strings.Builder
	for _, d := range sorted {
		fmt.Fprintf(&b, "[%s] %s: %s\n", d.Severity, d.Type, d.Description)
	}
	return b.String()
}

func buildTrendReport(r *Report, history []*Summary) {
	oldest, newest := history[0], history[len(history)-1]

	window := TrendWindow
	if window > len(history) {
		window = len(history)
	}
	avgMatch, avgResolution := 0.0, 0.0
	for _, s := range history[len(history)-window:] {
		avgMatch += s.MatchRate
		avgResolution += s.ResolutionRate
	}
	avgMatch /= float64(window)
	avgResolution /= float64(window)

	r.Stats = []Stat{
		{"runs", fmt.Sprintf("%d", len(history))},
		{"matchRateDelta", fmt.Sprintf("%+.2f%%", newest.MatchRate-oldest.MatchRate)},
		{"resolutionRateDelta", fmt.Sprintf("%+.2f%%", newest.ResolutionRate-oldest.ResolutionRate)},
		{"movingAvgMatchRate", fmt.Sprintf("%.2f%%", avgMatch)},
		{"movingAvgResolutionRate", fmt.Sprintf("%.2f%%", avgResolution)},
		{"movingAvgWindow", fmt.Sprintf("%d", window)},
	}

	var b strings.Builder
	fmt.Fprintf(&b, "oldest run %s: match %.2f%% resolution %.2f%%\n", oldest.RunID, oldest.MatchRate, oldest.ResolutionRate)
	fmt.Fprintf(&b, "newest run %s: match %.2f%% resolution %.2f%%\n", newest.RunID, newest.MatchRate, newest.ResolutionRate)
	r.Sections = append(r.Sections, Section{Title: "Rate Movement", Body: b.String()})
}

func buildAuditTrailReport(r *Report, history []*Summary) {
	resolutionsTotal := 0
	for _, s := range history {
		resolutionsTotal += len(s.Resolutions)
	}
	r.Stats = []Stat{
		{"runs", fmt.Sprintf("%d", len(history))},
		{"resolutionActions", fmt.Sprintf("%d", resolutionsTotal)},
	}

	for _, s := range history {
		var b strings.Builder
		fmt.Fprintf(&b, "inputs: %d internal, %d external\n", s.InternalCount, s.ExternalCount)
		fmt.Fprintf(&b, "outputs: %d matches, %d discrepancies\n", s.MatchedCount, s.DiscrepancyCount)
		// Stable order: follow the discrepancy list, not the map.
		for _, d := range s.Discrepancies {
			res, ok := s.Resolutions[d.ID]
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "%s %s -> %s by %s: %s\n", d.Type, d.ID, res.Action, res.ResolvedBy, res.Notes)
		}
		r.Sections = append(r.Sections, Section{
			Title: fmt.Sprintf("Run %s at %s", s.RunID, s.CompletedAt.Format(time.RFC3339)),
			Body:  b.String(),
		})
	}
}

func buildPerformanceReport(r *Report, history []*Summary) {
	var total time.Duration
	records := 0
	for _, s := range history {
		total += s.Timings["total"]
		records += s.InternalCount + s.ExternalCount
	}
	avg := total / time.Duration(len(history))
	throughput := 0.0
	if total > 0 {
		throughput = float64(records) / total.Seconds()
	}
	r.Stats = []Stat{
		{"runs", fmt.Sprintf("%d", len(history))},
		{"totalProcessingTime", total.String()},
		{"avgProcessingTime", avg.String()},
		{"recordsPerSecond", fmt.Sprintf("%.0f", throughput)},
	}

	latest := history[len(history)-1]
	var b strings.Builder
	for _, phase := range []string{"match", "analyze", "resolve", "total"} {
		fmt.Fprintf(&b, "%-10s %s\n", phase, latest.Timings[phase])
	}
	r.Sections = append(r.Sections, Section{Title: "Latest Run Phases", Body: b.String()})
}
