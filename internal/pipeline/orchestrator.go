package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/twieland/mailpilot/internal/gmail"
	"github.com/twieland/mailpilot/internal/llm"
	"github.com/twieland/mailpilot/internal/logging"
)

// MailGateway is the slice of the mail client the orchestrator needs.
type MailGateway interface {
	ForeachThread(ctx context.Context, query string, max int, fn func(gmail.Thread) error) error
	SendReply(ctx context.Context, thread gmail.Thread, to []string, body string) error
}

// Classifier is the slice of the model client the orchestrator needs.
type Classifier interface {
	ClassifyAndDraft(ctx context.Context, thread gmail.Thread) (llm.Classification, error)
}

// Orchestrator drives triage runs: fetch threads, classify them with a
// bounded fan-out, and collect results and per-thread errors into a Run.
type Orchestrator struct {
	gateway    MailGateway
	classifier Classifier
	fanOut     int
	maxThreads int
	logger     *slog.Logger
	tracer     trace.Tracer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithFanOut sets the concurrent classification limit.
func WithFanOut(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.fanOut = n
		}
	}
}

// WithMaxThreads caps how many threads a run processes.
func WithMaxThreads(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxThreads = n
		}
	}
}

// WithLogger sets the run logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an Orchestrator over the given gateway and classifier.
func New(gateway MailGateway, classifier Classifier, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gateway:    gateway,
		classifier: classifier,
		fanOut:     5,
		maxThreads: 50,
		logger:     slog.Default(),
		tracer:     otel.Tracer("mailpilot/pipeline"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunOnce drives one full triage run and returns its final state. Failures
// local to one thread are recorded on the run; only credential failure,
// total connectivity failure or cancellation is run-fatal.
func (o *Orchestrator) RunOnce(ctx context.Context, query string) *Run {
	run := newRun(uuid.NewString(), query)
	logger := o.logger.With(logging.RunID(run.ID()))

	ctx, span := o.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.String("run.id", run.ID())))
	defer span.End()

	logger.Info("run started", slog.String("query", query))

	run.setStatus(StatusFetching)
	if err := o.fetch(ctx, run, query); err != nil {
		logger.Error("run failed during fetch", logging.Err(err))
		run.fail(fmt.Errorf("fetch failed: %w", err))
		return run
	}

	// Cancellation point between stages. In-flight calls have already
	// completed or timed out.
	if err := ctx.Err(); err != nil {
		logger.Warn("run cancelled before classification")
		run.fail(err)
		return run
	}

	run.setStatus(StatusClassifying)
	o.classify(ctx, run)

	if err := ctx.Err(); err != nil {
		logger.Warn("run cancelled during classification")
		run.discardResults()
		run.fail(err)
		return run
	}

	run.setStatus(StatusReady)

	snap := run.Snapshot()
	logger.Info("run finished",
		slog.Int("threads", len(snap.Threads)),
		slog.Int("results", len(snap.Results)),
		slog.Int("errors", len(snap.Errors)))
	return run
}

// fetch pulls threads sequentially so page ordering stays deterministic.
// Duplicate thread ids across pages are dropped.
func (o *Orchestrator) fetch(ctx context.Context, run *Run, query string) error {
	ctx, span := o.tracer.Start(ctx, "pipeline.fetch")
	defer span.End()

	return o.gateway.ForeachThread(ctx, query, o.maxThreads, func(t gmail.Thread) error {
		if !run.addThread(t) {
			o.logger.Debug("duplicate thread skipped",
				logging.RunID(run.ID()),
				logging.Thread(t.ID))
		}
		return nil
	})
}

// classify fans classification out over the fetched threads, bounded by the
// fan-out limit. Each thread is classified exactly once; results are merged
// in thread-id order so output is deterministic regardless of completion
// order.
func (o *Orchestrator) classify(ctx context.Context, run *Run) {
	ctx, span := o.tracer.Start(ctx, "pipeline.classify")
	defer span.End()

	threads := run.Snapshot().Threads
	resultSlots := make([]*llm.Classification, len(threads))
	errorSlots := make([]*ThreadError, len(threads))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.fanOut)

	for i, t := range threads {
		g.Go(func() error {
			c, err := o.classifier.ClassifyAndDraft(gctx, t)
			if err != nil {
				o.logger.Warn("thread classification failed",
					logging.RunID(run.ID()),
					logging.Thread(t.ID),
					logging.Err(err))
				errorSlots[i] = &ThreadError{ThreadID: t.ID, Err: err}
				return nil
			}
			resultSlots[i] = &c
			return nil
		})
	}
	// Workers never return errors; per-thread failures land in errorSlots.
	_ = g.Wait()

	var results []llm.Classification
	var errs []ThreadError
	for i := range threads {
		if resultSlots[i] != nil {
			results = append(results, *resultSlots[i])
		}
		if errorSlots[i] != nil {
			errs = append(errs, *errorSlots[i])
		}
	}
	sort.Slice(results, func(a, b int) bool {
		return results[a].ThreadID < results[b].ThreadID
	})

	run.setResults(results, errs)
}

// SendReply sends an approved draft on a thread from the run. The gateway
// validates recipients before any network traffic.
func (o *Orchestrator) SendReply(ctx context.Context, run *Run, threadID string, to []string, body string) error {
	thread, ok := run.Thread(threadID)
	if !ok {
		return fmt.Errorf("thread %s is not part of run %s", threadID, run.ID())
	}
	return o.gateway.SendReply(ctx, thread, to, body)
}
