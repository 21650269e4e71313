// Package triage_tools provides the MCP tools around the triage pipeline:
// running it, inspecting run status, rendering results as Markdown, and
// sending an approved reply. Sending always requires explicit confirmation.
package triage_tools
