package llm

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/twieland/mailpilot/internal/gmail"
)

func TestBuildPromptWithinBudget(t *testing.T) {
	th := gmail.Thread{
		ID: "t1",
		Messages: []gmail.Message{
			{From: "alice@example.com", Subject: "Plans", Body: "Friday works for me."},
			{From: "bob@example.com", Subject: "Re: Plans", Body: "Friday it is."},
		},
	}

	prompt := buildPrompt(th, 4000)

	assert.Contains(t, prompt, "Thread t1, 2 message(s)")
	assert.Contains(t, prompt, "Friday works for me.")
	assert.Contains(t, prompt, "Friday it is.")
	assert.NotContains(t, prompt, "truncated")
}

func TestBuildPromptTruncatesOldestFirst(t *testing.T) {
	oldBody := strings.Repeat("old filler sentence. ", 200)
	th := gmail.Thread{
		ID: "t1",
		Messages: []gmail.Message{
			{From: "alice@example.com", Subject: "History", Body: oldBody},
			{From: "bob@example.com", Subject: "Re: History", Body: "The decision is final."},
		},
	}

	// Budget fits the newest message but not the old filler.
	prompt := buildPrompt(th, 200)

	assert.Contains(t, prompt, "The decision is final.", "newest body survives intact")
	assert.Contains(t, prompt, "[... truncated ...]")
	assert.NotContains(t, prompt, oldBody)
	assert.LessOrEqual(t, len(prompt), 200*charsPerToken+200, "close to budget")

	// Headers of the truncated message are still present.
	assert.Contains(t, prompt, "From: alice@example.com")
}

func TestBuildPromptTruncatesOnRuneBoundary(t *testing.T) {
	// Multi-byte runes throughout the body, so a byte-indexed cut would
	// land inside a rune for most budgets.
	oldBody := strings.Repeat("größere Änderung nötig, bitte prüfen. ", 100)
	th := gmail.Thread{
		ID: "t1",
		Messages: []gmail.Message{
			{From: "alice@example.com", Subject: "Prüfung", Body: oldBody},
			{From: "bob@example.com", Subject: "Re: Prüfung", Body: "Erledigt."},
		},
	}

	for budget := 100; budget <= 120; budget++ {
		prompt := buildPrompt(th, budget)
		assert.True(t, utf8.ValidString(prompt), "budget %d produced invalid UTF-8", budget)
		assert.Contains(t, prompt, "[... truncated ...]")
	}
}
