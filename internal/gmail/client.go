package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"strings"
	"time"

	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/twieland/mailpilot/internal/google"
	"github.com/twieland/mailpilot/internal/logging"
	"github.com/twieland/mailpilot/internal/retry"
	"github.com/twieland/mailpilot/internal/validate"
)

// ErrInvalidRecipient is returned by SendReply before any network traffic
// when the recipient set fails address validation.
var ErrInvalidRecipient = errors.New("invalid recipient address")

// Transient classifies mail API errors for retry purposes. Rate limiting
// and server-side failures are transient; auth failures and other client
// errors are permanent.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if google.IsAuthError(err) {
		return false
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return retry.HTTPStatusTransient(apiErr.Code)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// Client talks to the Gmail API for one account. All network calls are
// bounded by a per-request timeout and retried under a shared policy.
type Client struct {
	account string
	svc     *gmail.Service
	policy  retry.Policy
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithRetryPolicy overrides the retry policy for API calls.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) { c.policy = p }
}

// WithRequestTimeout overrides the per-call timeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger used for retry and send events.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a Gmail client authenticated by the credential store.
func NewClient(ctx context.Context, store *google.Store, opts ...Option) (*Client, error) {
	httpClient, err := store.HTTPClient(ctx)
	if err != nil {
		return nil, err
	}

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	c := &Client{
		account: store.Account(),
		svc:     svc,
		policy:  retry.DefaultPolicy(),
		timeout: 30 * time.Second,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.policy.Notify = func(err error, next time.Duration) {
		c.logger.Warn("retrying mail API call",
			logging.Err(err),
			slog.Duration("backoff", next))
	}
	return c, nil
}

// call runs one API request with the per-call timeout and retry policy.
func call[T any](ctx context.Context, c *Client, op func(ctx context.Context) (T, error)) (T, error) {
	return retry.Do(ctx, c.policy, Transient, func() (T, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		return op(callCtx)
	})
}

// ForeachThread fetches threads matching the query one page at a time and
// invokes fn for each, in the order the API lists them, until fn returns an
// error, max threads have been seen, or the listing is exhausted.
func (c *Client) ForeachThread(ctx context.Context, query string, max int, fn func(Thread) error) error {
	seen := 0
	pageToken := ""

	for {
		page, err := call(ctx, c, func(ctx context.Context) (*gmail.ListThreadsResponse, error) {
			req := c.svc.Users.Threads.List("me").Q(query).Context(ctx)
			if pageToken != "" {
				req = req.PageToken(pageToken)
			}
			if remaining := max - seen; remaining > 0 {
				req = req.MaxResults(int64(remaining))
			}
			return req.Do()
		})
		if err != nil {
			return fmt.Errorf("failed to list threads: %w", err)
		}

		for _, stub := range page.Threads {
			if seen >= max {
				return nil
			}
			seen++

			full, err := call(ctx, c, func(ctx context.Context) (*gmail.Thread, error) {
				return c.svc.Users.Threads.Get("me", stub.Id).Format("full").Context(ctx).Do()
			})
			if err != nil {
				return fmt.Errorf("failed to fetch thread %s: %w", stub.Id, err)
			}

			if err := fn(fromAPIThread(full)); err != nil {
				return err
			}
		}

		pageToken = page.NextPageToken
		if pageToken == "" || seen >= max {
			return nil
		}
	}
}

// SendReply sends a plain-text reply on the given thread and marks the
// thread read. Recipients are validated before any network call.
func (c *Client) SendReply(ctx context.Context, thread Thread, to []string, body string) error {
	if !validate.Addresses(to) {
		return fmt.Errorf("%w: %q", ErrInvalidRecipient, strings.Join(to, ", "))
	}

	last := thread.LastMessage()
	raw := buildReply(to, replySubject(thread.Subject()), last, body)

	_, err := call(ctx, c, func(ctx context.Context) (*gmail.Message, error) {
		return c.svc.Users.Messages.Send("me", &gmail.Message{
			Raw:      base64.URLEncoding.EncodeToString([]byte(raw)),
			ThreadId: thread.ID,
		}).Context(ctx).Do()
	})
	if err != nil {
		return fmt.Errorf("failed to send reply on thread %s: %w", thread.ID, err)
	}

	c.logger.Info("reply sent",
		logging.Thread(thread.ID),
		slog.String("to", logging.AnonymizeEmail(strings.Join(to, ","))))

	// Marking the thread read is best effort. The reply is already out.
	if err := c.markRead(ctx, thread.ID); err != nil {
		c.logger.Warn("failed to mark thread read",
			logging.Thread(thread.ID),
			logging.Err(err))
	}
	return nil
}

func (c *Client) markRead(ctx context.Context, threadID string) error {
	_, err := call(ctx, c, func(ctx context.Context) (*gmail.Thread, error) {
		return c.svc.Users.Threads.Modify("me", threadID, &gmail.ModifyThreadRequest{
			RemoveLabelIds: []string{"UNREAD"},
		}).Context(ctx).Do()
	})
	return err
}

// encodeRFC2047 encodes a header value according to RFC 2047. Necessary for
// non-ASCII characters (like German umlauts) in subjects; all-ASCII values
// pass through unchanged.
func encodeRFC2047(s string) string {
	for _, r := range s {
		if r > 127 {
			return mime.BEncoding.Encode("UTF-8", s)
		}
	}
	return s
}

// buildReply assembles an RFC 5322 reply message threaded under last.
func buildReply(to []string, subject string, last Message, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", encodeRFC2047(subject))
	if last.WireMessageID != "" {
		fmt.Fprintf(&b, "In-Reply-To: %s\r\n", last.WireMessageID)
		refs := last.References
		if refs != "" {
			refs += " "
		}
		fmt.Fprintf(&b, "References: %s%s\r\n", refs, last.WireMessageID)
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return b.String()
}
