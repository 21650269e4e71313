// Package instrumentation provides OpenTelemetry metrics and tracing for
// the triage server.
//
// # Metrics
//
// Triage metrics:
//   - triage_runs_total: Counter of runs by final status
//   - triage_run_duration_seconds: Histogram of run durations
//   - triage_threads_total: Counter of processed threads by outcome
//   - replies_sent_total: Counter of reply send attempts by result
//   - oauth_auth_total: Counter of OAuth authorization attempts by result
//
// MCP tool metrics:
//   - mcp_tool_invocations_total: Counter of tool invocations by tool and status
//   - mcp_tool_duration_seconds: Histogram of tool execution durations
//
// # Configuration
//
// Configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: prometheus, otlp or stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout or none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: mailpilot)
package instrumentation
