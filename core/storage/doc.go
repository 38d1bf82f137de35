// Package storage provides the object storage client used to archive
// generated reports.
//
// It wraps the Minio SDK behind a small Client interface so features can be
// tested against the mock in storage/mocks without a running S3 endpoint.
//
// # Operations
//
//   - BucketExists / MakeBucket: archive bucket provisioning
//   - PutObject / GetObject: report upload and retrieval
//   - ListObjects / RemoveObject: archive browsing and cleanup
package storage
