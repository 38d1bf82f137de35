package history

import (
	"strings"

	"recon-engine/core/recon"

	"go.uber.org/zap"
)

// Service persists completed runs and answers history queries.
type Service struct {
	repo   *Repository
	engine *recon.Engine
	logger *zap.Logger
}

// NewService creates a history service. The repository may be nil when no
// database is configured; the feature then stays disabled.
func NewService(repo *Repository, engine *recon.Engine, logger *zap.Logger) *Service {
	return &Service{repo: repo, engine: engine, logger: logger}
}

// Watch subscribes to engine events and persists each completed run.
// Persistence failures are logged, never fatal: the engine keeps its
// in-memory history regardless.
func (s *Service) Watch() {
	s.engine.Subscribe(func(engineID, message string) {
		if !strings.HasPrefix(message, "run completed:") {
			return
		}
		// The event names the run; batches complete several runs in quick
		// succession, so the latest summary is not necessarily this one.
		runID := strings.TrimSpace(strings.TrimPrefix(message, "run completed:"))
		summary := s.findSummary(runID)
		if summary == nil {
			return
		}
		if err := s.repo.SaveRun(summary); err != nil {
			s.logger.Error("Failed to persist run",
				zap.String("engine", engineID),
				zap.String("run_id", summary.RunID.String()),
				zap.Error(err))
			return
		}
		s.logger.Info("Run persisted", zap.String("run_id", summary.RunID.String()))
	})
}

func (s *Service) findSummary(runID string) *recon.Summary {
	for _, sum := range s.engine.History() {
		if sum.RunID.String() == runID {
			return sum
		}
	}
	return nil
}

// ListRuns returns persisted run records, newest first.
func (s *Service) ListRuns(limit int) ([]RunRecord, error) {
	return s.repo.ListRuns(limit)
}

// AuditTrail returns the audit entries of one run.
func (s *Service) AuditTrail(runID string) ([]AuditEntry, error) {
	return s.repo.AuditTrail(runID)
}
