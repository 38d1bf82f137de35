// Package config centralizes application configuration loading.
//
// Configuration is composed from the partial Config structs of the other core
// packages (server, storage, logger, database, recon) and is loaded from
// environment variables, optionally overloaded by a .env file.
//
// # Conventions
//
// Struct fields carry two tags:
//
//   - mapstructure: the viper key (nested keys become underscored env vars,
//     e.g. server.port -> SERVER_PORT)
//   - default: the value used when the variable is not set
//
// Defaults are registered recursively via reflection so that AutomaticEnv
// picks up every key without explicit BindEnv calls.
package config
