// Package cmd implements the command-line interface for mailpilot.
//
// This package provides the following commands:
//   - run: Fetch, classify and summarize inbox threads, printing Markdown
//   - auth: Manage Gmail OAuth credentials (url, save, revoke)
//   - serve: Start the MCP server to provide triage tools for AI assistants
//   - version: Display version information
//
// The run command is the default command when no subcommand is specified.
package cmd
