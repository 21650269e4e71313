// Package markdown renders triage results as Markdown. Rendering is pure:
// the same input always produces the same document, and model-provided text
// is neutralized so it cannot smuggle raw HTML into the output.
package markdown

import (
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/twieland/mailpilot/internal/llm"
	"github.com/twieland/mailpilot/internal/pipeline"
)

var stripPolicy = bluemonday.StrictPolicy()

// neutralize strips HTML tags from model output while keeping the literal
// text intact.
func neutralize(s string) string {
	return strings.TrimSpace(html.UnescapeString(stripPolicy.Sanitize(s)))
}

var categoryHeadings = map[string]string{
	llm.CategoryUrgent:        "Urgent",
	llm.CategoryReplyNeeded:   "Needs a reply",
	llm.CategoryInformational: "Informational",
	llm.CategoryLowPriority:   "Low priority",
}

var categoryOrder = []string{
	llm.CategoryUrgent,
	llm.CategoryReplyNeeded,
	llm.CategoryInformational,
	llm.CategoryLowPriority,
}

// Render turns one classification into a Markdown section. It is total:
// missing fields degrade to the raw summary rather than failing.
func Render(c llm.Classification) string {
	var b strings.Builder

	fmt.Fprintf(&b, "### Thread `%s`\n\n", c.ThreadID)
	heading := categoryHeadings[c.Category]
	if heading == "" {
		heading = c.Category
	}
	fmt.Fprintf(&b, "**%s** (confidence %.0f%%)\n\n", heading, c.Confidence*100)

	if summary := neutralize(c.Summary); summary != "" {
		b.WriteString(summary)
		b.WriteString("\n")
	}

	if draft := neutralize(c.DraftReply); draft != "" {
		b.WriteString("\nSuggested reply:\n\n")
		for _, line := range strings.Split(draft, "\n") {
			fmt.Fprintf(&b, "> %s\n", line)
		}
	}

	return b.String()
}

// RenderRun renders a whole run: results grouped by category in a fixed
// order, followed by per-thread errors so partial failure is never silent.
func RenderRun(snap pipeline.Snapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Inbox triage\n\n")
	fmt.Fprintf(&b, "Run `%s` (%s): %d thread(s), %d result(s), %d error(s)\n",
		snap.ID, snap.Status, len(snap.Threads), len(snap.Results), len(snap.Errors))

	if snap.Fatal != nil {
		fmt.Fprintf(&b, "\n**Run failed:** %s\n", snap.Fatal)
	}

	byCategory := make(map[string][]llm.Classification)
	var other []llm.Classification
	for _, c := range snap.Results {
		if _, known := categoryHeadings[c.Category]; known {
			byCategory[c.Category] = append(byCategory[c.Category], c)
		} else {
			other = append(other, c)
		}
	}

	for _, cat := range categoryOrder {
		results := byCategory[cat]
		if len(results) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n\n", categoryHeadings[cat])
		for _, c := range results {
			b.WriteString(Render(c))
			b.WriteString("\n")
		}
	}
	if len(other) > 0 {
		b.WriteString("\n## Other\n\n")
		for _, c := range other {
			b.WriteString(Render(c))
			b.WriteString("\n")
		}
	}

	if len(snap.Errors) > 0 {
		b.WriteString("\n## Errors\n\n")
		for _, e := range snap.Errors {
			fmt.Fprintf(&b, "- `%s`: %s\n", e.ThreadID, e.Err)
		}
	}

	return b.String()
}
