package triage_tools

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twieland/mailpilot/internal/config"
	"github.com/twieland/mailpilot/internal/server"
)

func testServerContext(t *testing.T) *server.Context {
	t.Helper()
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	cfg := config.FromEnv()
	cfg.AnthropicAPIKey = "sk-test"
	sc := server.NewContext(context.Background(), cfg, nil, nil)
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func toolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	return text.Text
}

func TestHandleSendReplyRequiresConfirmation(t *testing.T) {
	sc := testServerContext(t)

	request := toolRequest("triage_send_reply", map[string]interface{}{
		"threadId": "t1",
		"confirm":  false,
	})

	result, err := handleSendReply(context.Background(), request, sc)
	require.NoError(t, err)
	require.True(t, result.IsError, "unconfirmed send must be refused")
	assert.Contains(t, resultText(t, result), "confirm must be true")
}

func TestHandleSendReplyMissingThreadID(t *testing.T) {
	sc := testServerContext(t)

	request := toolRequest("triage_send_reply", map[string]interface{}{
		"confirm": true,
	})

	result, err := handleSendReply(context.Background(), request, sc)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleStatusWithoutRuns(t *testing.T) {
	sc := testServerContext(t)

	result, err := handleStatus(context.Background(), toolRequest("triage_status", nil), sc)
	require.NoError(t, err)
	require.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "no triage run available")
}

func TestHandleRenderUnknownRun(t *testing.T) {
	sc := testServerContext(t)

	request := toolRequest("triage_render", map[string]interface{}{
		"runId": "does-not-exist",
	})

	result, err := handleRender(context.Background(), request, sc)
	require.NoError(t, err)
	require.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "unknown run")
}

func TestHandleRunWithoutCredential(t *testing.T) {
	sc := testServerContext(t)

	result, err := handleRun(context.Background(), toolRequest("triage_run", nil), sc)
	require.NoError(t, err)
	require.True(t, result.IsError, "no stored token, run must fail with auth guidance")
	assert.Contains(t, resultText(t, result), "google_get_auth_url")
}

func TestParseRecipients(t *testing.T) {
	assert.Nil(t, parseRecipients(""))
	assert.Equal(t, []string{"a@example.com"}, parseRecipients("a@example.com"))
	assert.Equal(t,
		[]string{"a@example.com", "b@example.com"},
		parseRecipients(" a@example.com , b@example.com "))
}

func TestStringArg(t *testing.T) {
	request := toolRequest("triage_run", map[string]interface{}{"query": "is:starred"})
	assert.Equal(t, "is:starred", stringArg(request, "query", "fallback"))
	assert.Equal(t, "fallback", stringArg(request, "missing", "fallback"))
}
