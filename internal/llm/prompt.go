package llm

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/twieland/mailpilot/internal/gmail"
)

// charsPerToken is a rough conversion used for prompt budgeting. Exact
// tokenization is provider-internal; overshooting slightly is harmless
// because the provider enforces its own hard limit.
const charsPerToken = 4

const systemPrompt = `You are an email triage assistant. You will be shown an email thread.
Respond with a single JSON object and nothing else, with these fields:
  "category": one of "urgent", "reply_needed", "informational", "low_priority"
  "confidence": a number between 0 and 1
  "summary": one or two sentences summarizing the thread
  "draft_reply": a short plain-text reply draft, only when category is "urgent" or "reply_needed"
Do not include markdown fences or commentary around the JSON.`

// buildPrompt renders a thread into a bounded-size prompt. When the thread
// exceeds the token budget, message bodies are truncated oldest first so
// the most recent context survives intact.
func buildPrompt(t gmail.Thread, tokenBudget int) string {
	budget := tokenBudget * charsPerToken

	sections := make([]string, len(t.Messages))
	total := 0
	for i, m := range t.Messages {
		sections[i] = formatMessage(m)
		total += len(sections[i])
	}

	// Trim oldest bodies until the thread fits.
	for i := 0; total > budget && i < len(t.Messages); i++ {
		excess := total - budget
		trimmed := truncateSection(t.Messages[i], len(sections[i])-excess)
		total -= len(sections[i]) - len(trimmed)
		sections[i] = trimmed
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Thread %s, %d message(s):\n\n", t.ID, len(t.Messages))
	for _, s := range sections {
		b.WriteString(s)
		b.WriteString("\n")
	}
	return b.String()
}

func formatMessage(m gmail.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\n", m.From)
	if len(m.To) > 0 {
		fmt.Fprintf(&b, "To: %s\n", strings.Join(m.To, ", "))
	}
	fmt.Fprintf(&b, "Subject: %s\n", m.Subject)
	if !m.Date.IsZero() {
		fmt.Fprintf(&b, "Date: %s\n", m.Date.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(&b, "\n%s\n", strings.TrimSpace(m.Body))
	return b.String()
}

// truncateSection re-renders a message with its body cut down so the whole
// section is at most max bytes. Headers are always kept.
func truncateSection(m gmail.Message, max int) string {
	const marker = "\n[... truncated ...]"

	headerLen := len(formatMessage(gmail.Message{
		From: m.From, To: m.To, Subject: m.Subject, Date: m.Date,
	}))
	bodyMax := max - headerLen - len(marker)
	if bodyMax < 0 {
		bodyMax = 0
	}

	body := strings.TrimSpace(m.Body)
	if len(body) <= bodyMax {
		return formatMessage(m)
	}

	// Back up to a rune boundary so the cut never emits invalid UTF-8.
	cut := bodyMax
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	m.Body = body[:cut] + marker
	return formatMessage(m)
}
