package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClassificationClampsConfidence(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want float64
	}{
		{"above one", `{"category":"informational","confidence":1.4,"summary":"s"}`, 1},
		{"negative", `{"category":"informational","confidence":-0.2,"summary":"s"}`, 0},
		{"in range", `{"category":"informational","confidence":0.7,"summary":"s"}`, 0.7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := parseClassification("t1", tt.raw)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, c.Confidence, 0.001)
		})
	}
}

func TestParseClassificationSetsThreadID(t *testing.T) {
	// The model is not trusted to echo the thread id back.
	c, err := parseClassification("t9", `{"thread_id":"wrong","category":"low_priority","confidence":0.3,"summary":"s"}`)
	require.NoError(t, err)
	assert.Equal(t, "t9", c.ThreadID)
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare", `{"a":1}`, `{"a":1}`},
		{"fenced", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced with language", "```json\n{\"a\":1}\n```", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripFences(tt.in))
		})
	}
}
