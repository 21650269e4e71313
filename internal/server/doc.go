// Package server holds the shared state of the triage MCP server: runtime
// configuration, lazily created per-account mail gateways, the model client,
// a bounded registry of triage runs, plus the health and metrics endpoints.
package server
