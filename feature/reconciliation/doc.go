// Package reconciliation exposes the reconciliation engine over HTTP.
//
// It is a thin feature layer: ingestion, run control, and result queries all
// delegate to core/recon, with request parsing and status mapping handled
// here.
//
// # HTTP Endpoints
//
//   - POST /reconciliation/internal : Ingest internal ledger records.
//   - POST /reconciliation/external : Ingest settlement feed records.
//   - POST /reconciliation/runs : Start a run (supports ?wait=true).
//   - POST /reconciliation/batches : Reconcile pre-assembled snapshots (supports ?wait=true).
//   - GET /reconciliation/state : Engine lifecycle state.
//   - GET /reconciliation/summary : Latest run summary.
//   - GET /reconciliation/history : All run summaries.
//   - GET /reconciliation/discrepancies/unresolved : Open discrepancies.
//   - GET /reconciliation/metrics : Engine counters and rate history.
//   - GET /reconciliation/reports/:kind : Rendered report (supports ?format=json).
//
// Conflicting operations map to HTTP 409: ingesting while a run is processing,
// or starting a run while one is in flight.
package reconciliation
