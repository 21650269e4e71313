package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parseClassification turns raw model output into a Classification. The
// model is instructed to emit bare JSON, but fenced output is tolerated.
func parseClassification(threadID, raw string) (Classification, error) {
	payload := stripFences(strings.TrimSpace(raw))

	var c Classification
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return Classification{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if c.Category == "" {
		return Classification{}, fmt.Errorf("%w: missing category", ErrMalformedResponse)
	}
	if c.Summary == "" {
		return Classification{}, fmt.Errorf("%w: missing summary", ErrMalformedResponse)
	}

	switch c.Category {
	case CategoryUrgent, CategoryReplyNeeded, CategoryInformational, CategoryLowPriority:
	default:
		return Classification{}, fmt.Errorf("%w: unknown category %q", ErrMalformedResponse, c.Category)
	}

	if c.Confidence < 0 {
		c.Confidence = 0
	}
	if c.Confidence > 1 {
		c.Confidence = 1
	}

	c.ThreadID = threadID
	return c, nil
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag, when the model adds one despite instructions.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
