package recon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RunState is the engine's lifecycle state.
type RunState string

const (
	StateIdle            RunState = "IDLE"
	StateProcessing      RunState = "PROCESSING"
	StateBatchProcessing RunState = "BATCH_PROCESSING"
	StateCompleted       RunState = "COMPLETED"
	StateError           RunState = "ERROR"
)

var (
	// ErrRunInProgress is returned when a run is started while another is
	// still processing.
	ErrRunInProgress = errors.New("reconciliation run already in progress")

	// ErrIngestLocked is returned when records are ingested while a run is
	// processing.
	ErrIngestLocked = errors.New("ingestion rejected: run in progress")

	// ErrNoCompletedRun is returned when a report or query needs at least
	// one completed run.
	ErrNoCompletedRun = errors.New("no completed reconciliation run")
)

// Metrics is the engine-level counters and per-run history series.
type Metrics struct {
	InternalIngested      int64           `json:"internal_ingested"`
	ExternalIngested      int64           `json:"external_ingested"`
	InternalDropped       int64           `json:"internal_dropped"`
	ExternalDropped       int64           `json:"external_dropped"`
	MatchRateHistory      []float64       `json:"match_rate_history"`
	ResolutionRateHistory []float64       `json:"resolution_rate_history"`
	ProcessingTimeHistory []time.Duration `json:"processing_time_history"`
}

// Engine orchestrates reconciliation runs: ingest, match, analyze, resolve,
// summarize. At most one run is in flight per engine; a second StartRun
// fails fast with ErrRunInProgress. Every completed run produces an
// immutable result graph appended to the engine history.
type Engine struct {
	id         string
	logger     *zap.Logger
	dispatcher *Dispatcher
	store      *RecordStore

	mu               sync.Mutex
	state            RunState
	matchPolicy      MatchPolicy
	reconPolicy      ReconciliationPolicy
	resolutionPolicy ResolutionPolicy
	history          []*Summary
	metrics          Metrics
	runErr           error
}

// NewEngine creates an engine with the standard policy set active.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		id:               "recon-" + uuid.NewString()[:8],
		logger:           logger,
		dispatcher:       NewDispatcher(logger),
		store:            NewRecordStore(),
		state:            StateIdle,
		matchPolicy:      NewStandardPolicy(),
		reconPolicy:      NewStandardReconciliationPolicy(),
		resolutionPolicy: NewAutomaticPolicy(),
	}
}

// ID returns the engine identifier used in emitted events.
func (e *Engine) ID() string { return e.id }

// State returns the current run state.
func (e *Engine) State() RunState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// LastError returns the failure of the most recent run, if it errored.
func (e *Engine) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runErr
}

// Subscribe registers a listener for engine events.
func (e *Engine) Subscribe(l Listener) {
	e.dispatcher.Subscribe(l)
}

// Close shuts down the event dispatcher. Events emitted by runs still in
// flight after Close are dropped.
func (e *Engine) Close() {
	e.dispatcher.Close()
}

// SetMatchPolicy swaps the active matching policy. Rejected mid-run.
func (e *Engine) SetMatchPolicy(p MatchPolicy) error {
	return e.setPolicy(func() { e.matchPolicy = p })
}

// SetReconciliationPolicy swaps the active discrepancy-grading policy.
func (e *Engine) SetReconciliationPolicy(p ReconciliationPolicy) error {
	return e.setPolicy(func() { e.reconPolicy = p })
}

// SetResolutionPolicy swaps the active resolution policy.
func (e *Engine) SetResolutionPolicy(p ResolutionPolicy) error {
	return e.setPolicy(func() { e.resolutionPolicy = p })
}

func (e *Engine) setPolicy(apply func()) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateProcessing || e.state == StateBatchProcessing {
		return ErrRunInProgress
	}
	apply()
	return nil
}

// IngestInternal adds ledger records to the next run's snapshot. Records
// failing validation are dropped and counted, never fatal. Returns the
// accepted count.
func (e *Engine) IngestInternal(records []InternalRecord) (int, error) {
	accepted, dropped, err := e.store.AddInternal(records)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	e.metrics.InternalIngested += int64(accepted)
	e.metrics.InternalDropped += int64(dropped)
	e.mu.Unlock()
	if dropped > 0 {
		e.logger.Warn("dropped invalid internal records", zap.Int("dropped", dropped))
	}
	return accepted, nil
}

// IngestExternal adds settlement feed records, mirroring IngestInternal.
func (e *Engine) IngestExternal(records []ExternalRecord) (int, error) {
	accepted, dropped, err := e.store.AddExternal(records)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	e.metrics.ExternalIngested += int64(accepted)
	e.metrics.ExternalDropped += int64(dropped)
	e.mu.Unlock()
	if dropped > 0 {
		e.logger.Warn("dropped invalid external records", zap.Int("dropped", dropped))
	}
	return accepted, nil
}

// RunHandle is the future for an asynchronous run.
type RunHandle struct {
	done    chan struct{}
	summary *Summary
	err     error
}

// Done is closed when the run finishes, successfully or not.
func (h *RunHandle) Done() <-chan struct{} { return h.done }

// Wait blocks until the run finishes or ctx expires. Cancelling ctx stops
// the wait, not the run.
func (h *RunHandle) Wait(ctx context.Context) (*Summary, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.done:
		return h.summary, h.err
	}
}

// StartRun begins an asynchronous reconciliation run over the currently
// ingested snapshot. Fails fast with ErrRunInProgress if a run is already
// processing. The store is locked for the duration of the run.
func (e *Engine) StartRun(ctx context.Context) (*RunHandle, error) {
	e.mu.Lock()
	if e.state == StateProcessing || e.state == StateBatchProcessing {
		e.mu.Unlock()
		return nil, ErrRunInProgress
	}
	e.state = StateProcessing
	e.runErr = nil
	mp, rp, sp := e.matchPolicy, e.reconPolicy, e.resolutionPolicy
	e.mu.Unlock()

	e.store.Lock()
	internals := e.store.InternalSnapshot()
	externals := e.store.ExternalSnapshot()

	h := &RunHandle{done: make(chan struct{})}
	go e.run(ctx, h, internals, externals, mp, rp, sp)
	return h, nil
}

// Batch is one pre-assembled record snapshot for batch processing.
type Batch struct {
	Internal []InternalRecord
	External []ExternalRecord
}

// BatchHandle is the future for an asynchronous batch of runs.
type BatchHandle struct {
	done      chan struct{}
	summaries []*Summary
	err       error
}

// Done is closed when the whole batch finishes.
func (h *BatchHandle) Done() <-chan struct{} { return h.done }

// Wait blocks until the batch finishes or ctx expires.
func (h *BatchHandle) Wait(ctx context.Context) ([]*Summary, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.done:
		return h.summaries, h.err
	}
}

// StartBatch reconciles a sequence of snapshots back to back, producing one
// summary per batch. The engine is in BATCH_PROCESSING for the duration and
// rejects concurrent runs the same way StartRun does.
func (e *Engine) StartBatch(ctx context.Context, batches []Batch) (*BatchHandle, error) {
	e.mu.Lock()
	if e.state == StateProcessing || e.state == StateBatchProcessing {
		e.mu.Unlock()
		return nil, ErrRunInProgress
	}
	e.state = StateBatchProcessing
	e.runErr = nil
	mp, rp, sp := e.matchPolicy, e.reconPolicy, e.resolutionPolicy
	e.mu.Unlock()

	h := &BatchHandle{done: make(chan struct{})}
	go func() {
		defer close(h.done)
		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("batch panicked: %v", r)
				h.err = err
				e.failRun(err)
			}
		}()
		e.publish("batch processing started: %d batches", len(batches))
		for i, b := range batches {
			summary, err := e.runOnce(ctx, b.Internal, b.External, mp, rp, sp)
			if err != nil {
				e.failRun(fmt.Errorf("batch %d: %w", i, err))
				h.err = err
				return
			}
			e.recordSummary(summary)
			h.summaries = append(h.summaries, summary)
			e.publish("run completed: %s", summary.RunID)
		}
		e.mu.Lock()
		e.state = StateCompleted
		e.mu.Unlock()
		e.publish("batch processing completed: %d runs", len(h.summaries))
	}()
	return h, nil
}

// run executes one snapshot run started via StartRun.
func (e *Engine) run(ctx context.Context, h *RunHandle, internals []InternalRecord, externals []ExternalRecord, mp MatchPolicy, rp ReconciliationPolicy, sp ResolutionPolicy) {
	defer close(h.done)
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("run panicked: %v", r)
			h.err = err
			e.store.Unlock()
			e.failRun(err)
		}
	}()

	summary, err := e.runOnce(ctx, internals, externals, mp, rp, sp)
	if err != nil {
		h.err = err
		e.store.Unlock()
		e.failRun(err)
		return
	}

	e.recordSummary(summary)
	e.store.ClearAndUnlock()
	e.mu.Lock()
	e.state = StateCompleted
	e.mu.Unlock()
	h.summary = summary
	e.publish("run completed: %s", summary.RunID)
}

// runOnce is the ingest-free pipeline body: match, analyze, resolve,
// summarize, with per-phase instrumentation.
func (e *Engine) runOnce(ctx context.Context, internals []InternalRecord, externals []ExternalRecord, mp MatchPolicy, rp ReconciliationPolicy, sp ResolutionPolicy) (*Summary, error) {
	runID := uuid.New()
	started := time.Now().UTC()
	timings := make(map[string]time.Duration, 4)

	e.publish("matching started: %d internal, %d external", len(internals), len(externals))
	t := time.Now()
	res, err := Match(ctx, internals, externals, mp)
	if err != nil {
		return nil, fmt.Errorf("matching: %w", err)
	}
	timings["match"] = time.Since(t)
	e.publish("matching completed: %d matches", len(res.Matches))

	t = time.Now()
	discrepancies := Analyze(res, rp)
	timings["analyze"] = time.Since(t)
	e.publish("%d discrepancies found", len(discrepancies))

	t = time.Now()
	resolutions := ResolveAll(discrepancies, sp)
	timings["resolve"] = time.Since(t)

	completed := time.Now().UTC()
	timings["total"] = completed.Sub(started)

	summary := buildSummary(runID, started, completed, res, discrepancies, resolutions, timings)
	e.logger.Info("reconciliation run finished",
		zap.String("run_id", runID.String()),
		zap.Int("matches", summary.MatchedCount),
		zap.Int("discrepancies", summary.DiscrepancyCount),
		zap.Float64("match_rate", summary.MatchRate),
	)
	return summary, nil
}

func (e *Engine) recordSummary(s *Summary) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = append(e.history, s)
	e.metrics.MatchRateHistory = append(e.metrics.MatchRateHistory, s.MatchRate)
	e.metrics.ResolutionRateHistory = append(e.metrics.ResolutionRateHistory, s.ResolutionRate)
	e.metrics.ProcessingTimeHistory = append(e.metrics.ProcessingTimeHistory, s.Timings["total"])
}

func (e *Engine) failRun(err error) {
	e.mu.Lock()
	e.state = StateError
	e.runErr = err
	e.mu.Unlock()
	e.logger.Error("reconciliation run failed", zap.Error(err))
	e.publish("run failed: %v", err)
}

func (e *Engine) publish(format string, args ...any) {
	e.dispatcher.Publish(e.id, fmt.Sprintf(format, args...))
}

// History returns the summaries of all completed runs, oldest first.
func (e *Engine) History() []*Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Summary, len(e.history))
	copy(out, e.history)
	return out
}

// LatestSummary returns the most recent run's summary.
func (e *Engine) LatestSummary() (*Summary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.history) == 0 {
		return nil, ErrNoCompletedRun
	}
	return e.history[len(e.history)-1], nil
}

// UnresolvedDiscrepancies returns the still-unresolved discrepancies of the
// most recent run.
func (e *Engine) UnresolvedDiscrepancies() ([]Discrepancy, error) {
	s, err := e.LatestSummary()
	if err != nil {
		return nil, err
	}
	return s.Unresolved(), nil
}

// GetMetrics returns a copy of the engine metrics.
func (e *Engine) GetMetrics() Metrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	m := e.metrics
	m.MatchRateHistory = append([]float64(nil), e.metrics.MatchRateHistory...)
	m.ResolutionRateHistory = append([]float64(nil), e.metrics.ResolutionRateHistory...)
	m.ProcessingTimeHistory = append([]time.Duration(nil), e.metrics.ProcessingTimeHistory...)
	return m
}

// Report builds a report of the requested kind over the full run history.
func (e *Engine) Report(kind ReportKind) (*Report, error) {
	history := e.History()
	if len(history) == 0 {
		return nil, ErrNoCompletedRun
	}
	e.mu.Lock()
	policyName := e.matchPolicy.Name()
	e.mu.Unlock()
	return BuildReport(kind, history, policyName)
}
