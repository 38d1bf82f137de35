package history

import (
	"fmt"

	"recon-engine/core/recon"

	"gorm.io/gorm"
)

// Repository persists run summaries and their audit trail.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a repository on the given connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates or updates the history tables.
func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(&RunRecord{}, &AuditEntry{})
}

// SaveRun persists a run summary and its audit entries in one transaction.
// Saving the same run twice fails on the run_id unique index, keeping the
// history append-only.
func (r *Repository) SaveRun(s *recon.Summary) error {
	record := RunRecord{
		RunID:            s.RunID.String(),
		StartedAt:        s.StartedAt,
		CompletedAt:      s.CompletedAt,
		InternalCount:    s.InternalCount,
		ExternalCount:    s.ExternalCount,
		MatchedCount:     s.MatchedCount,
		DiscrepancyCount: s.DiscrepancyCount,
		ResolvedCount:    s.ResolvedCount,
		MatchRate:        s.MatchRate,
		ResolutionRate:   s.ResolutionRate,
		PolicyName:       s.MatchPolicyName,
	}

	entries := make([]AuditEntry, 0, len(s.Discrepancies))
	for _, d := range s.Discrepancies {
		entry := AuditEntry{
			RunID:         s.RunID.String(),
			DiscrepancyID: d.ID.String(),
			Type:          string(d.Type),
			Severity:      string(d.Severity),
			Description:   d.Description,
			DetectedAt:    d.DetectedAt,
		}
		if res, ok := s.Resolutions[d.ID]; ok {
			entry.Action = string(res.Action)
			entry.Resolved = res.Resolved
			entry.Notes = res.Notes
		}
		entries = append(entries, entry)
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		if len(entries) > 0 {
			if err := tx.Create(&entries).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", s.RunID, err)
	}
	return nil
}

// ListRuns returns persisted run records, newest first.
func (r *Repository) ListRuns(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []RunRecord
	if err := r.db.Order("started_at DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return records, nil
}

// AuditTrail returns the audit entries of one run.
func (r *Repository) AuditTrail(runID string) ([]AuditEntry, error) {
	var entries []AuditEntry
	if err := r.db.Where("run_id = ?", runID).Order("id ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to load audit trail for %s: %w", runID, err)
	}
	return entries, nil
}
