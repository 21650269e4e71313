package google_tools

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/twieland/mailpilot/internal/instrumentation"
	"github.com/twieland/mailpilot/internal/server"
)

// RegisterGoogleTools registers the OAuth authorization tools with the MCP
// server.
func RegisterGoogleTools(s *mcpserver.MCPServer, sc *server.Context) error {
	getAuthURLTool := mcp.NewTool("google_get_auth_url",
		mcp.WithDescription("Get the OAuth URL to authorize Gmail access for a specific account"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
	)

	s.AddTool(getAuthURLTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleGetAuthURL(ctx, request, sc)
	})

	saveAuthCodeTool := mcp.NewTool("google_save_auth_code",
		mcp.WithDescription("Save the OAuth authorization code to complete Gmail authentication for a specific account"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("authCode",
			mcp.Required(),
			mcp.Description("The authorization code from Google OAuth"),
		),
	)

	s.AddTool(saveAuthCodeTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleSaveAuthCode(ctx, request, sc)
	})

	return nil
}

func accountArg(request mcp.CallToolRequest) string {
	if v, ok := request.GetArguments()["account"].(string); ok && v != "" {
		return v
	}
	return "default"
}

func handleGetAuthURL(ctx context.Context, request mcp.CallToolRequest, sc *server.Context) (*mcp.CallToolResult, error) {
	_, span := instrumentation.StartToolSpan(ctx, "google_get_auth_url")
	defer span.End()

	account := accountArg(request)
	authURL := sc.StoreForAccount(account).AuthURL()

	result := fmt.Sprintf(`To authorize Gmail access for account "%s":

1. Visit this URL in your browser:
   %s

2. Sign in with your Google account and grant access
3. Copy the authorization code

4. Call the google_save_auth_code tool with the code and account name to complete authentication`, account, authURL)

	instrumentation.SetSpanSuccess(span)
	return mcp.NewToolResultText(result), nil
}

func handleSaveAuthCode(ctx context.Context, request mcp.CallToolRequest, sc *server.Context) (*mcp.CallToolResult, error) {
	start := time.Now()
	ctx, span := instrumentation.StartToolSpan(ctx, "google_save_auth_code")
	defer span.End()

	account := accountArg(request)
	authCode, ok := request.GetArguments()["authCode"].(string)
	if !ok || authCode == "" {
		return mcp.NewToolResultError("authCode is required"), nil
	}

	if err := sc.StoreForAccount(account).SaveAuthCode(ctx, authCode); err != nil {
		instrumentation.SetSpanError(span, err)
		sc.Metrics().RecordOAuthAuth(ctx, "failure")
		sc.Metrics().RecordToolInvocation(ctx, "google_save_auth_code", instrumentation.StatusError, time.Since(start))
		return mcp.NewToolResultError(fmt.Sprintf("Failed to save authorization code for account %s: %v", account, err)), nil
	}

	// A cached gateway may hold the old credential.
	sc.InvalidateGateway(account)

	instrumentation.SetSpanSuccess(span)
	sc.Metrics().RecordOAuthAuth(ctx, "success")
	sc.Metrics().RecordToolInvocation(ctx, "google_save_auth_code", instrumentation.StatusSuccess, time.Since(start))
	return mcp.NewToolResultText(fmt.Sprintf("Authorization successful for account %q. Gmail token saved; the triage tools can now use this account.", account)), nil
}
