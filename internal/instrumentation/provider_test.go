package instrumentation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProviderDisabled(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Enabled: false})
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	assert.NotNil(t, p.Metrics(), "disabled provider still hands out a no-op recorder")
	assert.Nil(t, p.PrometheusHandler())
	require.NoError(t, p.Shutdown(context.Background()))

	// No-op metrics never panic.
	p.Metrics().RecordRun(context.Background(), "ready", 5, 1, time.Second)
	p.Metrics().RecordToolInvocation(context.Background(), "triage_run", StatusSuccess, time.Millisecond)
	p.Metrics().RecordReplySent(context.Background(), StatusSuccess)
	p.Metrics().RecordOAuthAuth(context.Background(), "failure")
}

func TestNewProviderPrometheus(t *testing.T) {
	cfg := Config{
		ServiceName:       "mailpilot-test",
		ServiceVersion:    "test",
		Enabled:           true,
		MetricsExporter:   ExporterPrometheus,
		TracingExporter:   ExporterNone,
		TraceSamplingRate: 0.1,
	}

	p, err := NewProvider(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { require.NoError(t, p.Shutdown(context.Background())) }()

	assert.True(t, p.Enabled())
	assert.NotNil(t, p.PrometheusHandler())
	assert.NotNil(t, p.Tracer("test"))

	p.Metrics().RecordRun(context.Background(), "ready", 3, 0, 2*time.Second)
}

func TestNewProviderRejectsUnknownExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{
		Enabled:         true,
		MetricsExporter: "statsd",
	})
	require.Error(t, err)
}

func TestSpanHelpers(t *testing.T) {
	_, span := StartSpan(context.Background(), "test.span")
	defer span.End()

	SetSpanSuccess(span)
	SetSpanError(span, assert.AnError)

	_, toolSpan := StartToolSpan(context.Background(), "triage_run")
	defer toolSpan.End()

	// A context without a span has no trace id.
	assert.Equal(t, "", GetTraceID(context.Background()))
}
