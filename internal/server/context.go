package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/twieland/mailpilot/internal/config"
	"github.com/twieland/mailpilot/internal/gmail"
	"github.com/twieland/mailpilot/internal/google"
	"github.com/twieland/mailpilot/internal/instrumentation"
	"github.com/twieland/mailpilot/internal/llm"
	"github.com/twieland/mailpilot/internal/pipeline"
)

// maxRetainedRuns caps the run registry. Older runs fall out first so a
// long-lived server does not accumulate thread snapshots without bound.
const maxRetainedRuns = 20

// Context holds the shared state of the MCP server: configuration, lazily
// created per-account mail gateways, the model client, and the registry of
// triage runs.
type Context struct {
	ctx    context.Context
	cancel context.CancelFunc

	cfg        config.Config
	classifier *llm.Client
	metrics    *instrumentation.Metrics
	logger     *slog.Logger

	mu       sync.RWMutex
	stores   map[string]*google.Store
	gateways map[string]*gmail.Client
	runs     map[string]*pipeline.Run
	runOrder []string
	shutdown bool
}

// NewContext creates the server context. Mail gateways are created lazily on
// first use per account; only the model client is constructed up front.
func NewContext(ctx context.Context, cfg config.Config, metrics *instrumentation.Metrics, logger *slog.Logger) *Context {
	shutdownCtx, cancel := context.WithCancel(ctx)

	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = &instrumentation.Metrics{}
	}

	classifier := llm.NewClient(cfg.AnthropicAPIKey, cfg.Model,
		llm.WithPromptBudget(cfg.PromptBudget),
		llm.WithRequestTimeout(cfg.RequestTimeout),
		llm.WithLogger(logger),
	)

	return &Context{
		ctx:        shutdownCtx,
		cancel:     cancel,
		cfg:        cfg,
		classifier: classifier,
		metrics:    metrics,
		logger:     logger,
		stores:     make(map[string]*google.Store),
		gateways:   make(map[string]*gmail.Client),
		runs:       make(map[string]*pipeline.Run),
	}
}

// Context returns the server's base context, cancelled on shutdown.
func (sc *Context) Context() context.Context {
	return sc.ctx
}

// Config returns the server configuration.
func (sc *Context) Config() config.Config {
	return sc.cfg
}

// Metrics returns the metrics recorder.
func (sc *Context) Metrics() *instrumentation.Metrics {
	return sc.metrics
}

// Logger returns the server logger.
func (sc *Context) Logger() *slog.Logger {
	return sc.logger
}

// StoreForAccount returns the credential store for an account, creating it
// on first use.
func (sc *Context) StoreForAccount(account string) *google.Store {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if store, ok := sc.stores[account]; ok {
		return store
	}
	store := google.NewStore(account, sc.cfg.GoogleClientID, sc.cfg.GoogleClientSecret)
	sc.stores[account] = store
	return store
}

// GatewayForAccount returns the mail gateway for an account, creating and
// caching it on first use. Fails when the account has no usable credential.
func (sc *Context) GatewayForAccount(account string) (*gmail.Client, error) {
	sc.mu.Lock()
	if client, ok := sc.gateways[account]; ok {
		sc.mu.Unlock()
		return client, nil
	}
	sc.mu.Unlock()

	store := sc.StoreForAccount(account)
	client, err := gmail.NewClient(sc.ctx, store,
		gmail.WithRequestTimeout(sc.cfg.RequestTimeout),
		gmail.WithLogger(sc.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail gateway for account %q: %w", account, err)
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	if cached, ok := sc.gateways[account]; ok {
		return cached, nil
	}
	sc.gateways[account] = client
	return client, nil
}

// InvalidateGateway drops the cached gateway for an account, e.g. after a
// credential change.
func (sc *Context) InvalidateGateway(account string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	delete(sc.gateways, account)
}

// OrchestratorForAccount builds an orchestrator over the account's gateway
// and the shared model client.
func (sc *Context) OrchestratorForAccount(account string) (*pipeline.Orchestrator, error) {
	gateway, err := sc.GatewayForAccount(account)
	if err != nil {
		return nil, err
	}
	return pipeline.New(gateway, sc.classifier,
		pipeline.WithFanOut(sc.cfg.FanOut),
		pipeline.WithMaxThreads(sc.cfg.MaxThreads),
		pipeline.WithLogger(sc.logger),
	), nil
}

// RegisterRun adds a run to the registry, evicting the oldest once the
// retention cap is reached.
func (sc *Context) RegisterRun(run *pipeline.Run) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	for len(sc.runOrder) >= maxRetainedRuns {
		oldest := sc.runOrder[0]
		sc.runOrder = sc.runOrder[1:]
		delete(sc.runs, oldest)
	}

	sc.runs[run.ID()] = run
	sc.runOrder = append(sc.runOrder, run.ID())
}

// Run returns a registered run by id.
func (sc *Context) Run(runID string) (*pipeline.Run, bool) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	run, ok := sc.runs[runID]
	return run, ok
}

// LatestRun returns the most recently registered run.
func (sc *Context) LatestRun() (*pipeline.Run, bool) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	if len(sc.runOrder) == 0 {
		return nil, false
	}
	return sc.runs[sc.runOrder[len(sc.runOrder)-1]], true
}

// IsShutdown reports whether the server has been shut down.
func (sc *Context) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown cancels the base context and marks the server as stopped.
func (sc *Context) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}
	sc.shutdown = true
	sc.cancel()
	return nil
}
