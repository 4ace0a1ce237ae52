// Package logging provides the structured logging used across aegisrt:
// a thin, subsystem-tagged wrapper over log/slog.
//
// Every call site names the subsystem that produced the message
// ("Registry", "Lifecycle", "ResourceMonitor", ...) so log aggregation
// can filter by component without parsing message text. Audit carries a
// fixed-shape event for security-sensitive actions (forced shutdowns,
// consolidation execution) with a stable [AUDIT] prefix.
package logging
