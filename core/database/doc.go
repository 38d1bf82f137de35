// Package database manages the MySQL connection used for run history.
//
// It wraps GORM with sane pool settings and strict DSN timeouts so a
// misconfigured or unreachable database fails fast instead of hanging the
// application at startup.
//
// The connection is optional: when Connect fails, the application logs a
// warning and continues with in-memory history only.
package database
