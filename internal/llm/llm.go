package llm

import (
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/twieland/mailpilot/internal/retry"
)

// Categories the model is asked to choose from.
const (
	CategoryUrgent        = "urgent"
	CategoryReplyNeeded   = "reply_needed"
	CategoryInformational = "informational"
	CategoryLowPriority   = "low_priority"
)

// Classification is the structured triage verdict for one thread.
type Classification struct {
	ThreadID   string  `json:"thread_id"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Summary    string  `json:"summary"`
	DraftReply string  `json:"draft_reply,omitempty"`
}

// ErrMalformedResponse indicates the model's output could not be parsed
// into a Classification with the required fields. Callers should record it
// against the thread and move on.
var ErrMalformedResponse = errors.New("malformed model response")

// Error wraps a provider failure that survived retry exhaustion.
type Error struct {
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("model request failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient classifies provider errors for retry purposes: rate limiting
// and server-side failures are transient, everything else is permanent.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return retry.HTTPStatusTransient(apiErr.StatusCode)
	}
	return false
}
