package google_tools

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
	cfg.GoogleClientID = "client-id"
	sc := server.NewContext(context.Background(), cfg, nil, nil)
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func toolRequest(args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{Arguments: args},
	}
}

func TestHandleGetAuthURL(t *testing.T) {
	sc := testServerContext(t)

	result, err := handleGetAuthURL(context.Background(), toolRequest(map[string]interface{}{
		"account": "work",
	}), sc)
	require.NoError(t, err)
	require.NotEmpty(t, result.Content)

	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	assert.Contains(t, text.Text, `account "work"`)
	assert.Contains(t, text.Text, "accounts.google.com")
	assert.Contains(t, text.Text, "google_save_auth_code")
}

func TestHandleSaveAuthCodeMissingCode(t *testing.T) {
	sc := testServerContext(t)

	result, err := handleSaveAuthCode(context.Background(), toolRequest(nil), sc)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestAccountArgDefault(t *testing.T) {
	assert.Equal(t, "default", accountArg(toolRequest(nil)))
	assert.Equal(t, "work", accountArg(toolRequest(map[string]interface{}{"account": "work"})))
}
