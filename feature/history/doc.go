// Package history persists completed reconciliation runs to MySQL.
//
// The feature subscribes to engine events and writes one RunRecord plus the
// full discrepancy audit trail per completed run, inside a single
// transaction. The run_id unique index keeps the table append-only.
//
// The database is optional: with no connection the feature reports itself
// disabled and the application serves in-memory history only.
//
// # HTTP Endpoints
//
//   - GET /history/runs : Persisted runs, newest first (supports ?limit=N).
//   - GET /history/runs/:run_id/audit : Audit entries of one run.
package history
