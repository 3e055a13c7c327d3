package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mkrenz/schreibcoach/internal/pipeline"
	"github.com/mkrenz/schreibcoach/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Coach *pipeline.Coach
	Store *storage.Store // optional; if nil, the recent-conversations resource is empty
}

// NewMCPServer creates an MCP server exposing the coaching pipeline as
// tools, so agent hosts can drive the same analysis the HTTP API serves.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"schreibcoach",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("schreibcoach, a German writing coach: free-form coaching replies and structured TestDaF critiques."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("coach_reply",
			mcp.WithDescription("Get a free-form coaching reply to a German-learning question or message."),
			mcp.WithString("message", mcp.Description("The user's message"), mcp.Required()),
		),
		mcpCoachReply(deps),
	)

	s.AddTool(
		mcp.NewTool("analyze_writing",
			mcp.WithDescription("Run a structured TestDaF critique of a German text: grammar errors, scores, and suggestions."),
			mcp.WithString("text", mcp.Description("The German text to analyze"), mcp.Required()),
		),
		mcpAnalyzeWriting(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"chat://recent",
			"Recent Conversations",
			mcp.WithResourceDescription("Recently active conversations with message counts"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpCoachReply(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}

		reply, cerr := deps.Coach.SendText(ctx, "", message)
		if cerr != nil {
			return mcpError(fmt.Sprintf("coaching reply failed: %s", cerr.Message)), nil
		}

		return mcpText(reply.Content), nil
	}
}

func mcpAnalyzeWriting(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}

		msg, cerr := deps.Coach.AnalyzeText(ctx, "", text)
		if cerr != nil {
			return mcpError(fmt.Sprintf("analysis failed: %s", cerr.Message)), nil
		}

		// Return the structured result so the host can render it; the
		// formatted message body is included for direct display.
		payload := map[string]any{
			"message":  msg.Content,
			"analysis": msg.Metadata.Analysis,
		}
		b, err := json.Marshal(payload)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}

		return mcpText(string(b)), nil
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		type conversationSummary struct {
			ID           string `json:"id"`
			MessageCount int    `json:"message_count"`
			LastActivity string `json:"last_activity"`
			Preview      string `json:"preview,omitempty"`
		}

		var summaries []conversationSummary
		if deps.Store != nil {
			conversations, err := deps.Store.ListConversations(10)
			if err != nil {
				return nil, fmt.Errorf("failed to list conversations: %w", err)
			}
			for _, c := range conversations {
				entry := conversationSummary{
					ID:           c.ID,
					MessageCount: c.MessageCount,
					LastActivity: c.LastActivity.Format(time.RFC3339),
				}
				if messages, err := deps.Store.ListMessages(c.ID, 1); err == nil && len(messages) > 0 {
					preview := messages[0].Content
					if utf8.RuneCountInString(preview) > 200 {
						runes := []rune(preview)
						preview = string(runes[:200]) + "..."
					}
					entry.Preview = preview
				}
				summaries = append(summaries, entry)
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal conversations: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
