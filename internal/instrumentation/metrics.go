package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys.
const (
	attrStatus = "status"
	attrResult = "result"
	attrTool   = "tool"
)

// Metrics provides methods for recording triage observability metrics.
// The zero value is a no-op recorder.
type Metrics struct {
	runsTotal    metric.Int64Counter
	runDuration  metric.Float64Histogram
	threadsTotal metric.Int64Counter

	repliesSentTotal metric.Int64Counter
	oauthAuthTotal   metric.Int64Counter

	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram
}

// NewMetrics creates a Metrics instance with all instruments registered.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.runsTotal, err = meter.Int64Counter(
		"triage_runs_total",
		metric.WithDescription("Total number of triage runs by final status"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create triage_runs_total counter: %w", err)
	}

	m.runDuration, err = meter.Float64Histogram(
		"triage_run_duration_seconds",
		metric.WithDescription("Triage run duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 2.5, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create triage_run_duration_seconds histogram: %w", err)
	}

	m.threadsTotal, err = meter.Int64Counter(
		"triage_threads_total",
		metric.WithDescription("Total number of threads processed by outcome"),
		metric.WithUnit("{thread}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create triage_threads_total counter: %w", err)
	}

	m.repliesSentTotal, err = meter.Int64Counter(
		"replies_sent_total",
		metric.WithDescription("Total number of reply send attempts by result"),
		metric.WithUnit("{reply}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create replies_sent_total counter: %w", err)
	}

	m.oauthAuthTotal, err = meter.Int64Counter(
		"oauth_auth_total",
		metric.WithDescription("Total number of OAuth authorization attempts by result"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_auth_total counter: %w", err)
	}

	m.toolInvocationsTotal, err = meter.Int64Counter(
		"mcp_tool_invocations_total",
		metric.WithDescription("Total number of MCP tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_invocations_total counter: %w", err)
	}

	m.toolDuration, err = meter.Float64Histogram(
		"mcp_tool_duration_seconds",
		metric.WithDescription("MCP tool execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordRun records a completed triage run: final status, thread outcomes
// and total duration.
func (m *Metrics) RecordRun(ctx context.Context, status string, classified, failed int, duration time.Duration) {
	if m.runsTotal == nil {
		return
	}

	m.runsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStatus, status)))
	m.runDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String(attrStatus, status)))

	if classified > 0 {
		m.threadsTotal.Add(ctx, int64(classified), metric.WithAttributes(attribute.String(attrResult, "classified")))
	}
	if failed > 0 {
		m.threadsTotal.Add(ctx, int64(failed), metric.WithAttributes(attribute.String(attrResult, "failed")))
	}
}

// RecordReplySent records a reply send attempt.
// Result should be "success" or "error".
func (m *Metrics) RecordReplySent(ctx context.Context, result string) {
	if m.repliesSentTotal == nil {
		return
	}
	m.repliesSentTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordOAuthAuth records an OAuth authorization attempt.
// Result should be "success" or "failure".
func (m *Metrics) RecordOAuthAuth(ctx context.Context, result string) {
	if m.oauthAuthTotal == nil {
		return
	}
	m.oauthAuthTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordToolInvocation records an MCP tool invocation with its status and
// duration.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	if m.toolInvocationsTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}
	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
