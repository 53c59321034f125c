// Package audit keeps the administrative history.
//
// The Recorder turns lifecycle events into AuditLog rows and log lines. The
// Sweeper periodically removes rows older than the retention period.
package audit
