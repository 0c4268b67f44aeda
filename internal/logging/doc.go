// Package logging provides leveled logging for the archive indexer.
//
// The log level is read from the LOG_LEVEL environment variable
// (debug, info, warn, error) at startup; setting DEBUG=1 forces
// debug output regardless of LOG_LEVEL. All pipeline components
// log through this package so that per-entry failures end up in
// one place instead of surfacing to callers.
package logging
