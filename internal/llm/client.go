package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/twieland/mailpilot/internal/gmail"
	"github.com/twieland/mailpilot/internal/logging"
	"github.com/twieland/mailpilot/internal/retry"
)

// maxResponseTokens bounds the model's reply. Classifications are small.
const maxResponseTokens = 1024

// completer issues one completion request and returns the model's text.
// It exists so tests can stand in for the provider.
type completer interface {
	complete(ctx context.Context, system, prompt string) (string, error)
}

// Client classifies threads and drafts replies through the Claude API.
type Client struct {
	completer completer
	budget    int
	policy    retry.Policy
	timeout   time.Duration
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithRetryPolicy overrides the retry policy for model requests.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) { c.policy = p }
}

// WithRequestTimeout overrides the per-request timeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithPromptBudget sets the approximate token budget for thread excerpts.
func WithPromptBudget(n int) Option {
	return func(c *Client) { c.budget = n }
}

// WithLogger sets the logger used for retry events.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a Claude-backed classifier. Provider-side retries are
// disabled; the shared retry policy governs instead.
func NewClient(apiKey, model string, opts ...Option) *Client {
	api := anthropic.NewClient(
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	)
	c := &Client{
		completer: &anthropicCompleter{api: api, model: model},
		budget:    4000,
		policy:    retry.DefaultPolicy(),
		timeout:   30 * time.Second,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.policy.Notify = func(err error, next time.Duration) {
		c.logger.Warn("retrying model request",
			logging.Err(err),
			slog.Duration("backoff", next))
	}
	return c
}

// ClassifyAndDraft issues one classification request for the thread and
// parses the structured verdict. Transient provider failures are retried;
// exhaustion surfaces *Error, unparseable output ErrMalformedResponse.
func (c *Client) ClassifyAndDraft(ctx context.Context, thread gmail.Thread) (Classification, error) {
	prompt := buildPrompt(thread, c.budget)

	raw, err := retry.Do(ctx, c.policy, Transient, func() (string, error) {
		reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		return c.completer.complete(reqCtx, systemPrompt, prompt)
	})
	if err != nil {
		return Classification{}, &Error{Attempts: int(c.policy.MaxRetries) + 1, Err: err}
	}

	return parseClassification(thread.ID, raw)
}

// anthropicCompleter is the production completer backed by the SDK.
type anthropicCompleter struct {
	api   anthropic.Client
	model string
}

func (a *anthropicCompleter) complete(ctx context.Context, system, prompt string) (string, error) {
	msg, err := a.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: maxResponseTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}
