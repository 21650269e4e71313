package llm

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twieland/mailpilot/internal/gmail"
	"github.com/twieland/mailpilot/internal/retry"
)

// fakeCompleter returns canned responses or errors in order.
type fakeCompleter struct {
	calls     int
	responses []string
	errs      []error
}

func (f *fakeCompleter) complete(_ context.Context, _, _ string) (string, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return f.responses[len(f.responses)-1], nil
}

func testClient(f *fakeCompleter) *Client {
	return &Client{
		completer: f,
		budget:    4000,
		policy: retry.Policy{
			MaxRetries:      3,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
		},
		timeout: time.Second,
		logger:  slog.Default(),
	}
}

func sampleThread() gmail.Thread {
	return gmail.Thread{
		ID: "t1",
		Messages: []gmail.Message{{
			ID:      "m1",
			From:    "alice@example.com",
			Subject: "Server down",
			Body:    "Production is returning 500s, can you look?",
		}},
	}
}

const goodResponse = `{"category":"urgent","confidence":0.92,"summary":"Production outage reported.","draft_reply":"On it, investigating now."}`

func TestClassifyAndDraft(t *testing.T) {
	f := &fakeCompleter{responses: []string{goodResponse}}
	c := testClient(f)

	got, err := c.ClassifyAndDraft(context.Background(), sampleThread())
	require.NoError(t, err)

	assert.Equal(t, "t1", got.ThreadID)
	assert.Equal(t, CategoryUrgent, got.Category)
	assert.InDelta(t, 0.92, got.Confidence, 0.001)
	assert.Equal(t, "Production outage reported.", got.Summary)
	assert.Equal(t, "On it, investigating now.", got.DraftReply)
	assert.Equal(t, 1, f.calls)
}

func TestClassifyAndDraftRetriesRateLimit(t *testing.T) {
	rateLimited := &anthropic.Error{StatusCode: 429}
	f := &fakeCompleter{
		errs:      []error{rateLimited, rateLimited, nil},
		responses: []string{"", "", goodResponse},
	}
	c := testClient(f)

	got, err := c.ClassifyAndDraft(context.Background(), sampleThread())
	require.NoError(t, err, "two rate limits within the retry cap must not surface")
	assert.Equal(t, CategoryUrgent, got.Category)
	assert.Equal(t, 3, f.calls)
}

func TestClassifyAndDraftSucceedsOnLastRetry(t *testing.T) {
	rateLimited := &anthropic.Error{StatusCode: 429}
	f := &fakeCompleter{
		errs:      []error{rateLimited, rateLimited, rateLimited, nil},
		responses: []string{"", "", "", goodResponse},
	}
	c := testClient(f)

	got, err := c.ClassifyAndDraft(context.Background(), sampleThread())
	require.NoError(t, err, "the third retry must still run")
	assert.Equal(t, CategoryUrgent, got.Category)
	assert.Equal(t, 4, f.calls)
}

func TestClassifyAndDraftExhaustsRetries(t *testing.T) {
	rateLimited := &anthropic.Error{StatusCode: 429}
	f := &fakeCompleter{errs: []error{rateLimited, rateLimited, rateLimited, rateLimited}}
	c := testClient(f)

	_, err := c.ClassifyAndDraft(context.Background(), sampleThread())
	require.Error(t, err)

	var llmErr *Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, 4, f.calls, "initial attempt plus three retries")
	assert.Equal(t, 4, llmErr.Attempts)
	assert.ErrorIs(t, llmErr.Err, rateLimited)
}

func TestClassifyAndDraftPermanentErrorNotRetried(t *testing.T) {
	badRequest := &anthropic.Error{StatusCode: 400}
	f := &fakeCompleter{errs: []error{badRequest, badRequest}}
	c := testClient(f)

	_, err := c.ClassifyAndDraft(context.Background(), sampleThread())
	require.Error(t, err)
	assert.Equal(t, 1, f.calls)
}

func TestClassifyAndDraftMalformedResponse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "I think this email is urgent."},
		{"missing category", `{"confidence":0.5,"summary":"something"}`},
		{"missing summary", `{"category":"urgent","confidence":0.5}`},
		{"unknown category", `{"category":"maybe","confidence":0.5,"summary":"something"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeCompleter{responses: []string{tt.raw}}
			c := testClient(f)

			_, err := c.ClassifyAndDraft(context.Background(), sampleThread())
			assert.ErrorIs(t, err, ErrMalformedResponse)
		})
	}
}

func TestClassifyAndDraftToleratesFencedJSON(t *testing.T) {
	f := &fakeCompleter{responses: []string{"```json\n" + goodResponse + "\n```"}}
	c := testClient(f)

	got, err := c.ClassifyAndDraft(context.Background(), sampleThread())
	require.NoError(t, err)
	assert.Equal(t, CategoryUrgent, got.Category)
}

func TestTransient(t *testing.T) {
	assert.True(t, Transient(&anthropic.Error{StatusCode: 429}))
	assert.True(t, Transient(&anthropic.Error{StatusCode: 503}))
	assert.False(t, Transient(&anthropic.Error{StatusCode: 401}))
	assert.False(t, Transient(errors.New("boom")))
	assert.False(t, Transient(nil))
}
