package reconciliation

import (
	"context"

	"recon-engine/core/recon"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Service exposes the reconciliation engine to the HTTP layer.
type Service struct {
	engine  *recon.Engine
	logger  *zap.Logger
	reports singleflight.Group
}

// NewService wraps an engine.
func NewService(engine *recon.Engine, logger *zap.Logger) *Service {
	return &Service{engine: engine, logger: logger}
}

// Engine returns the underlying engine (used by sibling features).
func (s *Service) Engine() *recon.Engine {
	return s.engine
}

// IngestInternal adds ledger records to the next run's snapshot.
func (s *Service) IngestInternal(records []recon.InternalRecord) (int, error) {
	return s.engine.IngestInternal(records)
}

// IngestExternal adds settlement feed records to the next run's snapshot.
func (s *Service) IngestExternal(records []recon.ExternalRecord) (int, error) {
	return s.engine.IngestExternal(records)
}

// StartRun starts an asynchronous run over the ingested snapshot.
func (s *Service) StartRun(ctx context.Context) (*recon.RunHandle, error) {
	return s.engine.StartRun(ctx)
}

// StartBatch reconciles a sequence of pre-assembled snapshots.
func (s *Service) StartBatch(ctx context.Context, batches []recon.Batch) (*recon.BatchHandle, error) {
	return s.engine.StartBatch(ctx, batches)
}

// State returns the engine run state and last run error, if any.
func (s *Service) State() (recon.RunState, error) {
	return s.engine.State(), s.engine.LastError()
}

// LatestSummary returns the most recent run's summary.
func (s *Service) LatestSummary() (*recon.Summary, error) {
	return s.engine.LatestSummary()
}

// History returns the summaries of all completed runs.
func (s *Service) History() []*recon.Summary {
	return s.engine.History()
}

// Unresolved returns the still-unresolved discrepancies of the latest run.
func (s *Service) Unresolved() ([]recon.Discrepancy, error) {
	return s.engine.UnresolvedDiscrepancies()
}

// Metrics returns a copy of the engine counters.
func (s *Service) Metrics() recon.Metrics {
	return s.engine.GetMetrics()
}

// Report builds a report of the given kind over the run history.
// Concurrent requests for the same kind share one build via singleflight.
func (s *Service) Report(kind recon.ReportKind) (*recon.Report, error) {
	v, err, _ := s.reports.Do(string(kind), func() (any, error) {
		return s.engine.Report(kind)
	})
	if err != nil {
		return nil, err
	}
	return v.(*recon.Report), nil
}
