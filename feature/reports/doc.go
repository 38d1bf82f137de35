// Package reports exports rendered reconciliation reports.
//
// It builds on the reconciliation feature's report service and adds two
// concerns: alternative renderings (plain text, XLSX workbooks) and
// archiving to S3-compatible object storage under reports/<kind>/.
//
// # HTTP Endpoints
//
//   - GET /reports/:kind/export : Download a report (supports ?format=text|xlsx).
//   - POST /reports/:kind/archive : Render and upload a report to the archive bucket.
//   - GET /reports/archive : List archived report objects.
package reports
