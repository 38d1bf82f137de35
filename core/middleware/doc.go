// Package middleware contains the Fiber middleware shared by all features.
//
// # Components
//
//   - auth: checks the X-API-Key header against the configured key; an
//     empty configured key disables the check entirely.
//   - rayid: tags every request with a ray ID for log correlation,
//     honouring an inbound X-Ray-ID header and generating one otherwise.
//
// Both are registered application-wide by the start command before any
// feature routes are loaded.
package middleware
