package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/mkrenz/schreibcoach/internal/backend"
	"github.com/mkrenz/schreibcoach/internal/chat"
	"github.com/mkrenz/schreibcoach/internal/ocr"
	"github.com/mkrenz/schreibcoach/internal/pipeline"
	"github.com/mkrenz/schreibcoach/internal/storage"
)

const testToken = "test-token"

func testHandler(t *testing.T) (http.Handler, *storage.Store) {
	t.Helper()

	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	coach := pipeline.New(backend.NewStandIn(), ocr.NewStandIn())
	return NewHandler(Deps{Coach: coach, Store: store, Token: testToken}), store
}

func authed(req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Bearer "+testToken)
	return req
}

func decodeOutcome(t *testing.T, rec *httptest.ResponseRecorder) Outcome {
	t.Helper()
	var out Outcome
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return out
}

// multipartBody builds a multipart form with one file part and an optional
// conversation_id field, mirroring what the CLI client sends.
func multipartBody(t *testing.T, field, filename, mediaType string, data []byte, conversationID string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	if mediaType != "" {
		h.Set("Content-Type", mediaType)
	}
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatalf("creating part: %v", err)
	}
	part.Write(data)

	if conversationID != "" {
		w.WriteField("conversation_id", conversationID)
	}
	w.Close()
	return &buf, w.FormDataContentType()
}

func TestHealthIsOpen(t *testing.T) {
	h, _ := testHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestBearerAuthRequired(t *testing.T) {
	h, _ := testHandler(t)

	for _, header := range []string{"", "Bearer wrong-token", "Basic dXNlcg=="} {
		req := httptest.NewRequest("GET", "/v1/conversations", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want 401", header, rec.Code)
		}
	}
}

func TestChat_Success(t *testing.T) {
	h, store := testHandler(t)

	body := `{"conversation_id":"c1","content":"I need help with my essay"}`
	req := authed(httptest.NewRequest("POST", "/v1/chat", strings.NewReader(body)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	out := decodeOutcome(t, rec)
	if !out.Success || out.Data == nil {
		t.Fatalf("outcome = %+v", out)
	}
	if out.Data.Sender != chat.SenderAgent {
		t.Errorf("sender = %q, want agent", out.Data.Sender)
	}
	if out.Data.ConversationID != "c1" {
		t.Errorf("conversation_id = %q, want c1", out.Data.ConversationID)
	}
	if !strings.Contains(strings.ToLower(out.Data.Content), "help") {
		t.Errorf("reply = %q", out.Data.Content)
	}

	// Both the user message and the reply are persisted.
	stored, err := store.ListMessages("c1", 0)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("got %d stored messages, want 2", len(stored))
	}
	if stored[0].Sender != "user" || stored[1].Sender != "agent" {
		t.Errorf("stored senders = %q, %q", stored[0].Sender, stored[1].Sender)
	}
}

func TestChat_GeneratesConversationID(t *testing.T) {
	h, _ := testHandler(t)

	req := authed(httptest.NewRequest("POST", "/v1/chat", strings.NewReader(`{"content":"Hallo"}`)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	out := decodeOutcome(t, rec)
	if !out.Success || out.Data.ConversationID == "" {
		t.Errorf("expected generated conversation ID, got %+v", out)
	}
}

func TestChat_EmptyContent(t *testing.T) {
	h, store := testHandler(t)

	req := authed(httptest.NewRequest("POST", "/v1/chat", strings.NewReader(`{"conversation_id":"c1","content":""}`)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	out := decodeOutcome(t, rec)
	if out.Success || out.Error == nil || out.Error.Kind != chat.ErrValidation {
		t.Errorf("outcome = %+v", out)
	}

	// Nothing is persisted for rejected requests.
	stored, _ := store.ListMessages("c1", 0)
	if len(stored) != 0 {
		t.Errorf("got %d stored messages, want 0", len(stored))
	}
}

func TestChat_InvalidBody(t *testing.T) {
	h, _ := testHandler(t)

	req := authed(httptest.NewRequest("POST", "/v1/chat", strings.NewReader("{not json")))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAnalyze_Success(t *testing.T) {
	h, store := testHandler(t)

	buf, contentType := multipartBody(t, "image", "essay.png", "image/png", []byte("fake-png"), "c1")
	req := authed(httptest.NewRequest("POST", "/v1/analyze", buf))
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	out := decodeOutcome(t, rec)
	if !out.Success || out.Data == nil {
		t.Fatalf("outcome = %+v", out)
	}
	if !strings.Contains(out.Data.Content, "Overall Score: 80/100") {
		t.Errorf("reply missing overall score: %q", out.Data.Content)
	}
	if out.Data.Metadata == nil || out.Data.Metadata.Analysis == nil {
		t.Fatal("reply missing analysis metadata")
	}
	if out.Data.Metadata.FileName != "essay.png" {
		t.Errorf("file name = %q", out.Data.Metadata.FileName)
	}

	stored, _ := store.ListMessages("c1", 0)
	if len(stored) != 2 {
		t.Fatalf("got %d stored messages, want 2", len(stored))
	}
	if stored[0].Kind != "image" {
		t.Errorf("user message kind = %q, want image", stored[0].Kind)
	}
}

func TestAnalyze_DisallowedType(t *testing.T) {
	h, _ := testHandler(t)

	buf, contentType := multipartBody(t, "image", "clip.gif", "image/gif", []byte("GIF89a"), "")
	req := authed(httptest.NewRequest("POST", "/v1/analyze", buf))
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	out := decodeOutcome(t, rec)
	if out.Success || out.Error == nil || out.Error.Kind != chat.ErrValidation {
		t.Fatalf("outcome = %+v", out)
	}
	if !strings.Contains(out.Error.Message, "JPEG, PNG, or WebP") {
		t.Errorf("message = %q", out.Error.Message)
	}
}

func TestAnalyze_MissingFileField(t *testing.T) {
	h, _ := testHandler(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	w.WriteField("conversation_id", "c1")
	w.Close()

	req := authed(httptest.NewRequest("POST", "/v1/analyze", &buf))
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestDocument_BadPDF(t *testing.T) {
	h, _ := testHandler(t)

	buf, contentType := multipartBody(t, "document", "essay.pdf", "application/pdf", []byte("not a pdf"), "")
	req := authed(httptest.NewRequest("POST", "/v1/documents", buf))
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
	out := decodeOutcome(t, rec)
	if out.Success || out.Error == nil || out.Error.Kind != chat.ErrUpload {
		t.Errorf("outcome = %+v", out)
	}
}

func TestConversations_RoundTrip(t *testing.T) {
	h, _ := testHandler(t)

	// Seed a conversation through the chat endpoint.
	req := authed(httptest.NewRequest("POST", "/v1/chat", strings.NewReader(`{"conversation_id":"c1","content":"Hallo"}`)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("seeding chat: status = %d", rec.Code)
	}

	// List conversations.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, authed(httptest.NewRequest("GET", "/v1/conversations", nil)))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var summaries []struct {
		ID           string `json:"id"`
		MessageCount int    `json:"message_count"`
		LastActivity string `json:"last_activity"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&summaries); err != nil {
		t.Fatalf("decoding summaries: %v", err)
	}
	if len(summaries) != 1 || summaries[0].ID != "c1" || summaries[0].MessageCount != 2 {
		t.Fatalf("summaries = %+v", summaries)
	}
	if _, err := time.Parse(time.RFC3339, summaries[0].LastActivity); err != nil {
		t.Errorf("last_activity %q not RFC3339: %v", summaries[0].LastActivity, err)
	}

	// Fetch the messages.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, authed(httptest.NewRequest("GET", "/v1/conversations/c1/messages", nil)))
	if rec.Code != http.StatusOK {
		t.Fatalf("messages status = %d", rec.Code)
	}
	var messages []*chat.Message
	if err := json.NewDecoder(rec.Body).Decode(&messages); err != nil {
		t.Fatalf("decoding messages: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(messages))
	}
	if messages[0].Sender != chat.SenderUser || messages[0].Content != "Hallo" {
		t.Errorf("first message = %+v", messages[0])
	}

	// Delete and verify.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, authed(httptest.NewRequest("DELETE", "/v1/conversations/c1", nil)))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, authed(httptest.NewRequest("GET", "/v1/conversations", nil)))
	if body := strings.TrimSpace(rec.Body.String()); body != "null" && body != "[]" {
		t.Errorf("conversations after delete = %q", body)
	}
}

func TestUploadMessage_KindFollowsRoute(t *testing.T) {
	up := pipeline.Upload{Name: "aufsatz.pdf", Size: 2048}

	doc := uploadMessage("c1", chat.KindDocument, up)
	if doc.Kind != chat.KindDocument {
		t.Errorf("kind = %q, want document", doc.Kind)
	}
	if doc.Sender != chat.SenderUser || doc.Content != "aufsatz.pdf" {
		t.Errorf("message = %+v", doc)
	}
	if doc.Metadata == nil || doc.Metadata.FileName != "aufsatz.pdf" || doc.Metadata.FileSize != 2048 {
		t.Errorf("metadata = %+v", doc.Metadata)
	}

	img := uploadMessage("c1", chat.KindImage, pipeline.Upload{Name: "essay.png", Size: 10})
	if img.Kind != chat.KindImage {
		t.Errorf("kind = %q, want image", img.Kind)
	}

	// The kind must survive the storage round-trip so history shows a
	// document as a document.
	if got := fromStored(toStored(doc)); got.Kind != chat.KindDocument {
		t.Errorf("stored kind = %q, want document", got.Kind)
	}
}

func TestStoredMessageRoundTrip(t *testing.T) {
	m := chat.NewMessage("c1", chat.SenderAgent, chat.KindAnalysis, "result")
	m.Metadata = &chat.Metadata{
		FileName:      "essay.png",
		FileSize:      1234,
		ExtractedText: "Die Grafik zeigt.",
	}

	got := fromStored(toStored(m))
	if got.ID != m.ID || got.ConversationID != m.ConversationID || got.Content != m.Content {
		t.Errorf("got = %+v", got)
	}
	if got.Sender != chat.SenderAgent || got.Kind != chat.KindAnalysis {
		t.Errorf("sender/kind = %q/%q", got.Sender, got.Kind)
	}
	if got.Metadata == nil || got.Metadata.FileName != "essay.png" || got.Metadata.ExtractedText != "Die Grafik zeigt." {
		t.Errorf("metadata = %+v", got.Metadata)
	}
}

func TestStoredMessageRoundTrip_NoMetadata(t *testing.T) {
	m := chat.NewMessage("c1", chat.SenderUser, chat.KindText, "Hallo")
	got := fromStored(toStored(m))
	if got.Metadata != nil {
		t.Errorf("metadata = %+v, want nil", got.Metadata)
	}
}
