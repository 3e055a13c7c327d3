package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mkrenz/schreibcoach/internal/ollama"
)

func ollamaChatJSON(content string) string {
	b, _ := json.Marshal(map[string]any{
		"message": map[string]any{"role": "assistant", "content": content},
	})
	return string(b)
}

func TestOllamaRespond(t *testing.T) {
	var captured map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		w.Write([]byte(ollamaChatJSON("Hallo!")))
	}))
	defer srv.Close()

	b := NewOllama(ollama.New(srv.URL), "llama3.1")
	reply, err := b.Respond(context.Background(), "Guten Tag")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if reply != "Hallo!" {
		t.Errorf("reply = %q, want Hallo!", reply)
	}

	messages := captured["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("got %d messages, want system+user", len(messages))
	}
	system := messages[0].(map[string]any)
	if system["role"] != "system" || !strings.Contains(system["content"].(string), "TestDaF writing coach") {
		t.Errorf("first message = %v, want coach system prompt", system)
	}

	options := captured["options"].(map[string]any)
	if options["temperature"] != 0.7 {
		t.Errorf("temperature = %v, want 0.7", options["temperature"])
	}
	if options["num_predict"] != float64(500) {
		t.Errorf("num_predict = %v, want 500", options["num_predict"])
	}
}

func TestOllamaAnalyze_SendsSchema(t *testing.T) {
	var captured map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		w.Write([]byte(ollamaChatJSON(`{"vocabularyScore":60,"structureScore":60,"overallScore":60}`)))
	}))
	defer srv.Close()

	b := NewOllama(ollama.New(srv.URL), "llama3.1")
	reply, err := b.Analyze(context.Background(), "Die Grafik zeigt.")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !strings.Contains(reply, "overallScore") {
		t.Errorf("reply = %q, want raw JSON back", reply)
	}

	format, ok := captured["format"].(map[string]any)
	if !ok {
		t.Fatalf("format = %T, want schema object", captured["format"])
	}
	props := format["properties"].(map[string]any)
	for _, field := range []string{"grammarErrors", "vocabularyScore", "structureScore", "overallScore", "suggestions"} {
		if _, ok := props[field]; !ok {
			t.Errorf("schema missing property %q", field)
		}
	}

	options := captured["options"].(map[string]any)
	if options["temperature"] != 0.3 {
		t.Errorf("temperature = %v, want 0.3", options["temperature"])
	}
	if options["num_predict"] != float64(800) {
		t.Errorf("num_predict = %v, want 800", options["num_predict"])
	}
}
