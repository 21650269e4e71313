// Package google_tools provides MCP tools for the Gmail OAuth authorization
// flow: obtaining the consent URL and saving the resulting code.
package google_tools
