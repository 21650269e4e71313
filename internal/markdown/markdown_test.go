package markdown

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/twieland/mailpilot/internal/llm"
	"github.com/twieland/mailpilot/internal/pipeline"
)

func TestRenderLiteralDraftText(t *testing.T) {
	c := llm.Classification{
		ThreadID:   "t1",
		Category:   llm.CategoryReplyNeeded,
		Confidence: 0.85,
		Summary:    "Meeting proposal for Friday.",
		DraftReply: "Thanks, confirmed.",
	}

	out := Render(c)

	assert.Contains(t, out, "Thanks, confirmed.")
	assert.Contains(t, out, "Meeting proposal for Friday.")
	assert.Contains(t, out, "confidence 85%")
	assert.Contains(t, out, "> Thanks, confirmed.")
}

func TestRenderStripsHTMLInjection(t *testing.T) {
	c := llm.Classification{
		ThreadID:   "t1",
		Category:   llm.CategoryInformational,
		Confidence: 0.5,
		Summary:    `Newsletter about <script>alert("x")</script> gardening & tools`,
	}

	out := Render(c)

	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "gardening & tools", "literal text survives, unescaped")
}

func TestRenderFallsBackToSummaryWithoutDraft(t *testing.T) {
	c := llm.Classification{
		ThreadID:   "t1",
		Category:   llm.CategoryLowPriority,
		Confidence: 0.4,
		Summary:    "Promotional mail.",
	}

	out := Render(c)

	assert.Contains(t, out, "Promotional mail.")
	assert.NotContains(t, out, "Suggested reply")
}

func TestRenderIsDeterministic(t *testing.T) {
	c := llm.Classification{
		ThreadID: "t1", Category: llm.CategoryUrgent, Confidence: 0.9, Summary: "s",
	}
	assert.Equal(t, Render(c), Render(c))
}

func TestRenderRun(t *testing.T) {
	snap := pipeline.Snapshot{
		ID:     "run-1",
		Status: pipeline.StatusReady,
		Results: []llm.Classification{
			{ThreadID: "t1", Category: llm.CategoryInformational, Confidence: 0.6, Summary: "FYI."},
			{ThreadID: "t2", Category: llm.CategoryUrgent, Confidence: 0.95, Summary: "Outage.", DraftReply: "Looking into it."},
		},
		Errors: []pipeline.ThreadError{
			{ThreadID: "t3", Err: errors.New("malformed model response")},
		},
	}

	out := RenderRun(snap)

	assert.Contains(t, out, "# Inbox triage")
	assert.Contains(t, out, "Run `run-1` (ready)")

	// Urgent section comes before informational.
	assert.Contains(t, out, "## Urgent")
	assert.Contains(t, out, "## Informational")
	assert.Less(t, strings.Index(out, "## Urgent"), strings.Index(out, "## Informational"))

	// Errors are always rendered so partial failure is visible.
	assert.Contains(t, out, "## Errors")
	assert.Contains(t, out, "`t3`: malformed model response")
}

func TestRenderRunFatal(t *testing.T) {
	snap := pipeline.Snapshot{
		ID:     "run-2",
		Status: pipeline.StatusFailed,
		Fatal:  errors.New("fetch failed: connection refused"),
	}

	out := RenderRun(snap)
	assert.Contains(t, out, "**Run failed:** fetch failed: connection refused")
}
