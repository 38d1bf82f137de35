package recon

import (
	"time"

	"github.com/google/uuid"
)

// Summary is the immutable run-level rollup. It references the underlying
// result sets so reporting and auditing consumers can read them without
// locking; nothing in the graph is mutated after the run completes.
type Summary struct {
	RunID       uuid.UUID `json:"run_id"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`

	InternalCount int `json:"internal_count"`
	ExternalCount int `json:"external_count"`
	MatchedCount  int `json:"matched_count"`

	DiscrepancyCount int `json:"discrepancy_count"`
	ResolvedCount    int `json:"resolved_count"`

	// MatchRate is matched internal records as a percentage of all
	// internal records.
	MatchRate float64 `json:"match_rate"`

	// ResolutionRate is resolved discrepancies as a percentage of all
	// discrepancies.
	ResolutionRate float64 `json:"resolution_rate"`

	// MatchPolicyName names the matching policy active for the run.
	MatchPolicyName string `json:"match_policy_name"`

	Matches       MatchResult                         `json:"matches"`
	Discrepancies []Discrepancy                       `json:"discrepancies"`
	Resolutions   map[uuid.UUID]DiscrepancyResolution `json:"resolutions"`

	// Timings holds per-phase processing durations for the PERFORMANCE
	// report.
	Timings map[string]time.Duration `json:"timings"`
}

// buildSummary assembles the rollup from the run's result sets.
func buildSummary(runID uuid.UUID, started, completed time.Time, res MatchResult, discrepancies []Discrepancy, resolutions map[uuid.UUID]DiscrepancyResolution, timings map[string]time.Duration) *Summary {
	internal := len(res.Matches) + len(res.UnmatchedInternal)
	external := len(res.Matches) + len(res.UnmatchedExternal)

	resolved := 0
	for _, r := range resolutions {
		if r.Resolved {
			resolved++
		}
	}

	s := &Summary{
		RunID:            runID,
		StartedAt:        started,
		CompletedAt:      completed,
		InternalCount:    internal,
		ExternalCount:    external,
		MatchedCount:     len(res.Matches),
		DiscrepancyCount: len(discrepancies),
		ResolvedCount:    resolved,
		MatchPolicyName:  res.PolicyName,
		Matches:          res,
		Discrepancies:    discrepancies,
		Resolutions:      resolutions,
		Timings:          timings,
	}
	if internal > 0 {
		s.MatchRate = float64(len(res.Matches)) / float64(internal) * 100
	}
	if len(discrepancies) > 0 {
		s.ResolutionRate = float64(resolved) / float64(len(discrepancies)) * 100
	}
	return s
}

// Unresolved returns the discrepancies whose resolution did not settle them.
func (s *Summary) Unresolved() []Discrepancy {
	var out []Discrepancy
	for _, d := range s.Discrepancies {
		if r, ok := s.Resolutions[d.ID]; !ok || !r.Resolved {
			out = append(out, d)
		}
	}
	return out
}
