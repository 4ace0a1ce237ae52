// Package apicore holds the error taxonomy and event types shared across
// the catalog, registry, lifecycle, orchestrator, resource monitor and
// metrics packages. It has no dependencies on any of them so that every
// other package can import it without creating cycles.
package apicore
