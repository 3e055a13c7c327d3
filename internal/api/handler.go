package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mkrenz/schreibcoach/internal/chat"
	"github.com/mkrenz/schreibcoach/internal/pipeline"
	"github.com/mkrenz/schreibcoach/internal/storage"
)

const maxChatBodySize = 1 << 20 // 1MB

// Multipart bodies may legitimately exceed the upload ceiling; the pipeline
// rejects oversized assets with a proper validation error, so the transport
// cap only guards against unbounded reads.
const maxMultipartBodySize = 32 << 20

// Deps holds dependencies for the HTTP API.
type Deps struct {
	Coach *pipeline.Coach
	Store *storage.Store
	Token string
}

// NewHandler returns the HTTP API for the coaching service. All /v1 routes
// require the local bearer token; /health is open.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Post("/v1/chat", handleChat(deps))
		r.Post("/v1/analyze", handleAnalyze(deps))
		r.Post("/v1/documents", handleDocument(deps))
		r.Get("/v1/conversations", handleListConversations(deps))
		r.Get("/v1/conversations/{id}/messages", handleListMessages(deps))
		r.Delete("/v1/conversations/{id}", handleDeleteConversation(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
}

// Outcome is the discriminated response envelope for pipeline calls.
type Outcome struct {
	Success bool          `json:"success"`
	Data    *chat.Message `json:"data,omitempty"`
	Error   *chat.Error   `json:"error,omitempty"`
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxChatBodySize)
		defer r.Body.Close()

		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeChatError(w, chat.WrapError(chat.ErrValidation, "Invalid request body", err))
			return
		}

		conversationID := req.ConversationID
		if conversationID == "" {
			conversationID = uuid.New().String()
		}

		userMsg := chat.NewMessage(conversationID, chat.SenderUser, chat.KindText, req.Content)

		reply, cerr := deps.Coach.SendText(r.Context(), conversationID, req.Content)
		if cerr != nil {
			writeChatError(w, cerr)
			return
		}

		persist(deps.Store, userMsg)
		persist(deps.Store, reply)
		writeMessage(w, reply)
	}
}

func handleAnalyze(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		up, conversationID, cerr := readUpload(w, r, "image")
		if cerr != nil {
			writeChatError(w, cerr)
			return
		}

		userMsg := uploadMessage(conversationID, chat.KindImage, up)

		reply, cerr := deps.Coach.AnalyzeUpload(r.Context(), conversationID, up)
		if cerr != nil {
			writeChatError(w, cerr)
			return
		}

		persist(deps.Store, userMsg)
		persist(deps.Store, reply)
		writeMessage(w, reply)
	}
}

func handleDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		up, conversationID, cerr := readUpload(w, r, "document")
		if cerr != nil {
			writeChatError(w, cerr)
			return
		}
		if up.MediaType == "" || up.MediaType == "application/octet-stream" {
			up.MediaType = "application/pdf"
		}

		userMsg := uploadMessage(conversationID, chat.KindDocument, up)

		reply, cerr := deps.Coach.AnalyzeDocument(r.Context(), conversationID, up)
		if cerr != nil {
			writeChatError(w, cerr)
			return
		}

		persist(deps.Store, userMsg)
		persist(deps.Store, reply)
		writeMessage(w, reply)
	}
}

// uploadMessage builds the user-side history entry for an uploaded file.
// The kind follows the route: images from /v1/analyze, documents from
// /v1/documents.
func uploadMessage(conversationID string, kind chat.Kind, up pipeline.Upload) *chat.Message {
	m := chat.NewMessage(conversationID, chat.SenderUser, kind, up.Name)
	m.Metadata = &chat.Metadata{FileName: up.Name, FileSize: up.Size}
	return m
}

// readUpload extracts the multipart file and conversation ID from the
// request. The declared media type comes from the part header, falling back
// to content sniffing.
func readUpload(w http.ResponseWriter, r *http.Request, field string) (pipeline.Upload, string, *chat.Error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxMultipartBodySize)

	file, header, err := r.FormFile(field)
	if err != nil {
		return pipeline.Upload{}, "", chat.WrapError(chat.ErrValidation,
			fmt.Sprintf("Missing %q file field", field), err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return pipeline.Upload{}, "", chat.WrapError(chat.ErrUpload, "Failed to read uploaded file", err)
	}

	mediaType := header.Header.Get("Content-Type")
	if mediaType == "" {
		mediaType = http.DetectContentType(data)
	}
	// Strip any parameters, e.g. "image/png; charset=binary".
	if i := strings.Index(mediaType, ";"); i >= 0 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}

	conversationID := r.FormValue("conversation_id")
	if conversationID == "" {
		conversationID = uuid.New().String()
	}

	return pipeline.Upload{
		Name:      header.Filename,
		MediaType: mediaType,
		Size:      header.Size,
		Data:      data,
	}, conversationID, nil
}

func handleListConversations(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := queryInt(r, "limit", 20)
		summaries, err := deps.Store.ListConversations(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing conversations: %v", err)
			return
		}

		type summary struct {
			ID           string `json:"id"`
			MessageCount int    `json:"message_count"`
			LastActivity string `json:"last_activity"`
		}
		out := make([]summary, len(summaries))
		for i, s := range summaries {
			out[i] = summary{
				ID:           s.ID,
				MessageCount: s.MessageCount,
				LastActivity: s.LastActivity.UTC().Format("2006-01-02T15:04:05Z07:00"),
			}
		}
		writeJSON(w, out)
	}
}

func handleListMessages(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		limit := queryInt(r, "limit", 0)

		stored, err := deps.Store.ListMessages(id, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing messages: %v", err)
			return
		}

		messages := make([]*chat.Message, 0, len(stored))
		for _, m := range stored {
			messages = append(messages, fromStored(m))
		}
		writeJSON(w, messages)
	}
}

func handleDeleteConversation(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := deps.Store.DeleteConversation(id); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "deleting conversation: %v", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// persist saves a message to history. History is a collaborator of the
// pipeline, not part of it: persistence failures are logged and do not
// change the request outcome.
func persist(store *storage.Store, m *chat.Message) {
	if store == nil || m == nil {
		return
	}
	if err := store.SaveMessage(toStored(m)); err != nil {
		slog.Warn("failed to persist message", "message_id", m.ID, "error", err)
	}
}

func toStored(m *chat.Message) storage.StoredMessage {
	metadata := "{}"
	if m.Metadata != nil {
		if b, err := json.Marshal(m.Metadata); err == nil {
			metadata = string(b)
		}
	}
	return storage.StoredMessage{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Sender:         string(m.Sender),
		Kind:           string(m.Kind),
		Content:        m.Content,
		Metadata:       metadata,
		CreatedAt:      m.Timestamp,
	}
}

func fromStored(m storage.StoredMessage) *chat.Message {
	msg := &chat.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Content:        m.Content,
		Sender:         chat.Sender(m.Sender),
		Timestamp:      m.CreatedAt,
		Kind:           chat.Kind(m.Kind),
	}
	if m.Metadata != "" && m.Metadata != "{}" {
		var md chat.Metadata
		if err := json.Unmarshal([]byte(m.Metadata), &md); err == nil {
			msg.Metadata = &md
		}
	}
	return msg
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func writeMessage(w http.ResponseWriter, m *chat.Message) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(Outcome{Success: true, Data: m})
}

func writeChatError(w http.ResponseWriter, cerr *chat.Error) {
	slog.Debug("request rejected", "reason", pipeline.Describe(cerr))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusForKind(cerr.Kind))
	json.NewEncoder(w).Encode(Outcome{Success: false, Error: cerr})
}

func statusForKind(kind chat.ErrorKind) int {
	switch kind {
	case chat.ErrValidation:
		return http.StatusBadRequest
	case chat.ErrUpload:
		return http.StatusUnprocessableEntity
	case chat.ErrNetwork:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
