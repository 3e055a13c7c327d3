package api

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mkrenz/schreibcoach/internal/backend"
	"github.com/mkrenz/schreibcoach/internal/chat"
	"github.com/mkrenz/schreibcoach/internal/ocr"
	"github.com/mkrenz/schreibcoach/internal/pipeline"
	"github.com/mkrenz/schreibcoach/internal/storage"
)

func testMCPDeps(t *testing.T) MCPDeps {
	t.Helper()

	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	coach := pipeline.New(backend.NewStandIn(), ocr.NewStandIn())
	return MCPDeps{Coach: coach, Store: store}
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func TestCoachReplyTool(t *testing.T) {
	deps := testMCPDeps(t)
	handler := mcpCoachReply(deps)

	req := makeCallToolRequest("coach_reply", map[string]interface{}{
		"message": "I need help with my essay",
	})
	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	text := toolText(t, result)
	if !strings.Contains(text, "help") {
		t.Errorf("reply = %q, want a help-oriented reply", text)
	}
}

func TestCoachReplyTool_MissingArg(t *testing.T) {
	deps := testMCPDeps(t)
	handler := mcpCoachReply(deps)

	req := makeCallToolRequest("coach_reply", map[string]interface{}{})
	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !result.IsError {
		t.Error("expected IsError for missing message argument")
	}
}

func TestAnalyzeWritingTool(t *testing.T) {
	deps := testMCPDeps(t)
	handler := mcpAnalyzeWriting(deps)

	req := makeCallToolRequest("analyze_writing", map[string]interface{}{
		"text": "Die Grafik zeigt die Entwicklung der Studenten.",
	})
	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	var payload struct {
		Message  string `json:"message"`
		Analysis struct {
			OverallScore int `json:"overallScore"`
		} `json:"analysis"`
	}
	if err := json.Unmarshal([]byte(toolText(t, result)), &payload); err != nil {
		t.Fatalf("tool output is not JSON: %v", err)
	}

	if !strings.Contains(payload.Message, "Overall Score: 80/100") {
		t.Errorf("message missing overall score, got %q", payload.Message)
	}
	if payload.Analysis.OverallScore != 80 {
		t.Errorf("overallScore = %d, want 80", payload.Analysis.OverallScore)
	}
}

func TestRecentConversationsResource(t *testing.T) {
	deps := testMCPDeps(t)

	msg := chat.NewMessage("conv-1", chat.SenderUser, chat.KindText, "Hallo, ich lerne Deutsch")
	if err := deps.Store.SaveMessage(toStored(msg)); err != nil {
		t.Fatalf("saving message: %v", err)
	}

	handler := mcpResourceRecent(deps)
	contents, err := handler(context.Background(), makeReadResourceRequest("chat://recent"))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 resource content, got %d", len(contents))
	}

	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}

	var summaries []struct {
		ID           string `json:"id"`
		MessageCount int    `json:"message_count"`
		Preview      string `json:"preview"`
	}
	if err := json.Unmarshal([]byte(tc.Text), &summaries); err != nil {
		t.Fatalf("resource is not JSON: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(summaries))
	}
	if summaries[0].ID != "conv-1" {
		t.Errorf("id = %q, want conv-1", summaries[0].ID)
	}
	if summaries[0].Preview != "Hallo, ich lerne Deutsch" {
		t.Errorf("preview = %q", summaries[0].Preview)
	}
}

func TestRecentConversationsResource_NoStore(t *testing.T) {
	deps := MCPDeps{Coach: pipeline.New(backend.NewStandIn(), ocr.NewStandIn())}

	handler := mcpResourceRecent(deps)
	contents, err := handler(context.Background(), makeReadResourceRequest("chat://recent"))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}

	tc := contents[0].(mcp.TextResourceContents)
	if tc.Text != "null" && tc.Text != "[]" {
		t.Errorf("expected empty list, got %q", tc.Text)
	}
}
