package triage_tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"

	"github.com/twieland/mailpilot/internal/instrumentation"
	"github.com/twieland/mailpilot/internal/markdown"
	"github.com/twieland/mailpilot/internal/pipeline"
	"github.com/twieland/mailpilot/internal/server"
)

// RegisterTriageTools registers the triage pipeline tools with the MCP
// server.
func RegisterTriageTools(s *mcpserver.MCPServer, sc *server.Context) error {
	runTool := mcp.NewTool("triage_run",
		mcp.WithDescription("Run the inbox triage pipeline: fetch matching threads, classify each with the model, and collect summaries and reply drafts"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default')"),
		),
		mcp.WithString("query",
			mcp.Description("Gmail search query selecting the threads to triage (default: configured query, typically 'is:unread in:inbox')"),
		),
	)
	s.AddTool(runTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleRun(ctx, request, sc)
	})

	statusTool := mcp.NewTool("triage_status",
		mcp.WithDescription("Show the status of a triage run: stage, thread counts and per-thread errors"),
		mcp.WithString("runId",
			mcp.Description("Run identifier (default: the most recent run)"),
		),
	)
	s.AddTool(statusTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleStatus(ctx, request, sc)
	})

	renderTool := mcp.NewTool("triage_render",
		mcp.WithDescription("Render the results of a triage run as Markdown, grouped by category with summaries and reply drafts"),
		mcp.WithString("runId",
			mcp.Description("Run identifier (default: the most recent run)"),
		),
	)
	s.AddTool(renderTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleRender(ctx, request, sc)
	})

	sendTool := mcp.NewTool("triage_send_reply",
		mcp.WithDescription("Send a reply on a thread from a triage run. Requires explicit confirmation; nothing is sent without confirm=true."),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default')"),
		),
		mcp.WithString("runId",
			mcp.Description("Run identifier (default: the most recent run)"),
		),
		mcp.WithString("threadId",
			mcp.Required(),
			mcp.Description("Thread to reply on; must be part of the run"),
		),
		mcp.WithString("to",
			mcp.Description("Comma-separated recipient addresses (default: the sender of the thread's last message)"),
		),
		mcp.WithString("body",
			mcp.Description("Reply text (default: the draft produced by the run)"),
		),
		mcp.WithBoolean("confirm",
			mcp.Required(),
			mcp.Description("Must be true. Explicit user approval for sending the reply."),
		),
	)
	s.AddTool(sendTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleSendReply(ctx, request, sc)
	})

	return nil
}

func stringArg(request mcp.CallToolRequest, key, fallback string) string {
	if v, ok := request.GetArguments()[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// resolveRun picks the run named by runId, or the latest one.
func resolveRun(request mcp.CallToolRequest, sc *server.Context) (*pipeline.Run, error) {
	if runID := stringArg(request, "runId", ""); runID != "" {
		run, ok := sc.Run(runID)
		if !ok {
			return nil, fmt.Errorf("unknown run %q; it may have been evicted", runID)
		}
		return run, nil
	}

	run, ok := sc.LatestRun()
	if !ok {
		return nil, fmt.Errorf("no triage run available; call triage_run first")
	}
	return run, nil
}

func handleRun(ctx context.Context, request mcp.CallToolRequest, sc *server.Context) (*mcp.CallToolResult, error) {
	start := time.Now()
	ctx, span := instrumentation.StartToolSpan(ctx, "triage_run")
	defer span.End()

	account := stringArg(request, "account", "default")
	query := stringArg(request, "query", sc.Config().Query)

	orch, err := sc.OrchestratorForAccount(account)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		sc.Metrics().RecordToolInvocation(ctx, "triage_run", instrumentation.StatusError, time.Since(start))
		return mcp.NewToolResultError(fmt.Sprintf("Failed to prepare account %q: %v. Use google_get_auth_url to authorize.", account, err)), nil
	}

	run := orch.RunOnce(ctx, query)
	sc.RegisterRun(run)

	snap := run.Snapshot()
	span.SetAttributes(attribute.String(instrumentation.SpanAttrRunID, snap.ID))
	sc.Metrics().RecordRun(ctx, string(snap.Status), len(snap.Results), len(snap.Errors), time.Since(start))

	if snap.Status == pipeline.StatusFailed {
		instrumentation.SetSpanError(span, snap.Fatal)
		sc.Metrics().RecordToolInvocation(ctx, "triage_run", instrumentation.StatusError, time.Since(start))
		return mcp.NewToolResultError(fmt.Sprintf("Run %s failed: %v", snap.ID, snap.Fatal)), nil
	}

	instrumentation.SetSpanSuccess(span)
	sc.Metrics().RecordToolInvocation(ctx, "triage_run", instrumentation.StatusSuccess, time.Since(start))
	return mcp.NewToolResultText(formatStatus(snap)), nil
}

func handleStatus(ctx context.Context, request mcp.CallToolRequest, sc *server.Context) (*mcp.CallToolResult, error) {
	_, span := instrumentation.StartToolSpan(ctx, "triage_status")
	defer span.End()

	run, err := resolveRun(request, sc)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	instrumentation.SetSpanSuccess(span)
	return mcp.NewToolResultText(formatStatus(run.Snapshot())), nil
}

func handleRender(ctx context.Context, request mcp.CallToolRequest, sc *server.Context) (*mcp.CallToolResult, error) {
	_, span := instrumentation.StartToolSpan(ctx, "triage_render")
	defer span.End()

	run, err := resolveRun(request, sc)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	instrumentation.SetSpanSuccess(span)
	return mcp.NewToolResultText(markdown.RenderRun(run.Snapshot())), nil
}

func handleSendReply(ctx context.Context, request mcp.CallToolRequest, sc *server.Context) (*mcp.CallToolResult, error) {
	start := time.Now()
	ctx, span := instrumentation.StartToolSpan(ctx, "triage_send_reply")
	defer span.End()

	args := request.GetArguments()

	confirm, _ := args["confirm"].(bool)
	if !confirm {
		return mcp.NewToolResultError("Refusing to send: confirm must be true. Review the draft with triage_render first, then call again with confirm=true."), nil
	}

	threadID, _ := args["threadId"].(string)
	if threadID == "" {
		return mcp.NewToolResultError("threadId is required"), nil
	}

	run, err := resolveRun(request, sc)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	span.SetAttributes(attribute.String(instrumentation.SpanAttrThread, threadID))

	thread, ok := run.Thread(threadID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("thread %q is not part of run %s", threadID, run.ID())), nil
	}

	body := stringArg(request, "body", "")
	if body == "" {
		result, ok := run.Result(threadID)
		if !ok || result.DraftReply == "" {
			return mcp.NewToolResultError(fmt.Sprintf("no draft available for thread %q; pass body explicitly", threadID)), nil
		}
		body = result.DraftReply
	}

	to := parseRecipients(stringArg(request, "to", ""))
	if len(to) == 0 {
		if sender := thread.LastMessage().From; sender != "" {
			to = []string{sender}
		} else {
			return mcp.NewToolResultError("no recipients: thread has no sender and 'to' was not given"), nil
		}
	}

	account := stringArg(request, "account", "default")
	gateway, err := sc.GatewayForAccount(account)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return mcp.NewToolResultError(fmt.Sprintf("Failed to prepare account %q: %v", account, err)), nil
	}

	if err := gateway.SendReply(ctx, thread, to, body); err != nil {
		instrumentation.SetSpanError(span, err)
		sc.Metrics().RecordReplySent(ctx, instrumentation.StatusError)
		sc.Metrics().RecordToolInvocation(ctx, "triage_send_reply", instrumentation.StatusError, time.Since(start))
		return mcp.NewToolResultError(fmt.Sprintf("Failed to send reply on thread %s: %v", threadID, err)), nil
	}

	instrumentation.SetSpanSuccess(span)
	sc.Metrics().RecordReplySent(ctx, instrumentation.StatusSuccess)
	sc.Metrics().RecordToolInvocation(ctx, "triage_send_reply", instrumentation.StatusSuccess, time.Since(start))
	return mcp.NewToolResultText(fmt.Sprintf("Reply sent on thread %s to %s.", threadID, strings.Join(to, ", "))), nil
}

// parseRecipients splits a comma-separated address list.
func parseRecipients(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// formatStatus renders a run snapshot as a short plain-text report.
func formatStatus(snap pipeline.Snapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run %s: %s\n", snap.ID, snap.Status)
	fmt.Fprintf(&b, "Query: %s\n", snap.Query)
	fmt.Fprintf(&b, "Threads: %d, classified: %d, failed: %d\n",
		len(snap.Threads), len(snap.Results), len(snap.Errors))

	if snap.Fatal != nil {
		fmt.Fprintf(&b, "Fatal: %v\n", snap.Fatal)
	}

	for _, c := range snap.Results {
		draft := ""
		if c.DraftReply != "" {
			draft = " [draft available]"
		}
		fmt.Fprintf(&b, "- %s: %s (%.0f%%)%s\n", c.ThreadID, c.Category, c.Confidence*100, draft)
	}
	for _, e := range snap.Errors {
		fmt.Fprintf(&b, "- %s: error: %v\n", e.ThreadID, e.Err)
	}

	return b.String()
}
