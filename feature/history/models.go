package history

import "time"

// RunRecord is the persisted rollup of one completed reconciliation run.
type RunRecord struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	RunID            string    `gorm:"size:36;uniqueIndex" json:"run_id"`
	StartedAt        time.Time `json:"started_at"`
	CompletedAt      time.Time `json:"completed_at"`
	InternalCount    int       `json:"internal_count"`
	ExternalCount    int       `json:"external_count"`
	MatchedCount     int       `json:"matched_count"`
	DiscrepancyCount int       `json:"discrepancy_count"`
	ResolvedCount    int       `json:"resolved_count"`
	MatchRate        float64   `json:"match_rate"`
	ResolutionRate   float64   `json:"resolution_rate"`
	PolicyName       string    `gorm:"size:32" json:"policy_name"`
}

// TableName overrides the GORM default.
func (RunRecord) TableName() string {
	return "run_records"
}

// AuditEntry is one persisted discrepancy with its resolution outcome.
type AuditEntry struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	RunID         string    `gorm:"size:36;index" json:"run_id"`
	DiscrepancyID string    `gorm:"size:36" json:"discrepancy_id"`
	Type          string    `gorm:"size:32" json:"type"`
	Severity      string    `gorm:"size:16" json:"severity"`
	Description   string    `gorm:"size:512" json:"description"`
	Action        string    `gorm:"size:32" json:"action"`
	Resolved      bool      `json:"resolved"`
	Notes         string    `gorm:"size:512" json:"notes"`
	DetectedAt    time.Time `json:"detected_at"`
}

// TableName overrides the GORM default.
func (AuditEntry) TableName() string {
	return "audit_entries"
}
