// Package logging provides structured logging helpers built on log/slog.
//
// It defines canonical attribute keys used across the pipeline (run_id,
// stage, thread, attempt) so that log lines from the credential store, the
// mail gateway, the LLM client and the orchestrator can be correlated, and
// PII helpers that hash email addresses before they reach log output.
package logging
