// Package logging provides a simple leveled logging interface for the
// local files index.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information (per-path ingestion decisions)
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable.
// DEBUG=true or LOCAL_FILES_LOG=true force verbose output.
package logging
