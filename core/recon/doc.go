// Package recon implements the payment reconciliation engine: it pairs an
// internal ledger snapshot with an external settlement feed, classifies the
// differences, decides resolutions and aggregates the results into reports.
//
// # Pipeline
//
// One run executes ingest -> match -> analyze -> resolve -> summarize over a
// fixed record snapshot:
//
//   - RecordStore holds the two keyed collections and is locked for the
//     duration of a run.
//   - Match pairs internal records against the unconsumed external pool with
//     a confidence score per pair. Scoring fans out over a bounded worker
//     pool; claiming is sequential so no external record is claimed twice.
//   - Analyze inspects matched pairs and unmatched leftovers and emits typed,
//     severity-graded discrepancies.
//   - ResolveAll applies the active resolution policy to each discrepancy.
//   - The Summary is an immutable rollup referencing the run's result sets.
//
// # Policies
//
// Matching (exact, standard, flexible), discrepancy grading (standard,
// flexible) and resolution (automatic, manual-only, rule-based) are small
// interfaces with fixed concrete variants. The Engine holds the active
// implementation per role and swaps it via explicit setters.
//
// # Concurrency
//
// An Engine supports at most one in-flight run; StartRun returns a RunHandle
// future and a second start fails fast with ErrRunInProgress. Completed runs
// form an immutable history safe for concurrent reads. Events are delivered
// to listeners through a bounded queue on a dedicated goroutine, so slow
// listeners never stall the pipeline.
package recon
