package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/twieland/mailpilot/internal/config"
	"github.com/twieland/mailpilot/internal/gmail"
	"github.com/twieland/mailpilot/internal/google"
	"github.com/twieland/mailpilot/internal/llm"
	"github.com/twieland/mailpilot/internal/markdown"
	"github.com/twieland/mailpilot/internal/pipeline"
)

func newRunCmd() *cobra.Command {
	var (
		account    string
		query      string
		maxThreads int
		debugMode  bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the triage pipeline once and print the results as Markdown",
		Long: `Fetch threads matching the query, classify each with the model, and
print summaries and reply drafts as Markdown on stdout.

This command never sends email. Drafts are rendered for review; sending
happens only through the MCP server's triage_send_reply tool with
explicit confirmation.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			if query != "" {
				cfg.Query = query
			}
			if maxThreads > 0 {
				cfg.MaxThreads = maxThreads
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runTriage(cmd.Context(), cfg, account, debugMode)
		},
	}

	cmd.Flags().StringVar(&account, "account", "default", "Account name to triage")
	cmd.Flags().StringVar(&query, "query", "", "Gmail search query (default: "+config.DefaultQuery+")")
	cmd.Flags().IntVar(&maxThreads, "max-threads", 0, "Maximum number of threads to process")
	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	return cmd
}

func runTriage(ctx context.Context, cfg config.Config, account string, debugMode bool) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := newLogger(debugMode)
	start := time.Now()

	store := google.NewStore(account, cfg.GoogleClientID, cfg.GoogleClientSecret)
	gateway, err := gmail.NewClient(ctx, store,
		gmail.WithRequestTimeout(cfg.RequestTimeout),
		gmail.WithLogger(logger),
	)
	if err != nil {
		if google.IsAuthError(err) {
			return fmt.Errorf("no usable credential for account %q; run 'mailpilot auth url' first: %w", account, err)
		}
		return err
	}

	classifier := llm.NewClient(cfg.AnthropicAPIKey, cfg.Model,
		llm.WithPromptBudget(cfg.PromptBudget),
		llm.WithRequestTimeout(cfg.RequestTimeout),
		llm.WithLogger(logger),
	)

	orch := pipeline.New(gateway, classifier,
		pipeline.WithFanOut(cfg.FanOut),
		pipeline.WithMaxThreads(cfg.MaxThreads),
		pipeline.WithLogger(logger),
	)

	run := orch.RunOnce(ctx, cfg.Query)
	snap := run.Snapshot()

	fmt.Println(markdown.RenderRun(snap))

	logger.Info("triage finished",
		slog.String("status", string(snap.Status)),
		slog.Duration("took", time.Since(start)))

	if snap.Status == pipeline.StatusFailed {
		return fmt.Errorf("run failed: %w", snap.Fatal)
	}
	return nil
}

// newLogger builds the CLI logger. Output goes to stderr so stdout stays
// clean for the rendered Markdown.
func newLogger(debugMode bool) *slog.Logger {
	level := slog.LevelInfo
	if debugMode {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
