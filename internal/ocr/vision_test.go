package ocr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestVisionExtractText(t *testing.T) {
	var captured annotateRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/images:annotate" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("key") != "vision-key" {
			t.Errorf("key = %q, want vision-key", r.URL.Query().Get("key"))
		}
		json.NewDecoder(r.Body).Decode(&captured)
		w.Write([]byte(`{"responses":[{"fullTextAnnotation":{"text":"Die Grafik zeigt die Entwicklung."}}]}`))
	}))
	defer srv.Close()

	c := NewVisionClientWithBaseURL("vision-key", srv.URL)
	text, err := c.ExtractText(context.Background(), []byte("fake-image-bytes"), "image/png")
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}

	if text != "Die Grafik zeigt die Entwicklung." {
		t.Errorf("text = %q", text)
	}

	if len(captured.Requests) != 1 {
		t.Fatalf("got %d requests in batch, want 1", len(captured.Requests))
	}
	entry := captured.Requests[0]
	if len(entry.Features) != 1 || entry.Features[0].Type != "DOCUMENT_TEXT_DETECTION" {
		t.Errorf("features = %+v, want DOCUMENT_TEXT_DETECTION", entry.Features)
	}

	decoded, err := base64.StdEncoding.DecodeString(entry.Image.Content)
	if err != nil {
		t.Fatalf("image content is not base64: %v", err)
	}
	if string(decoded) != "fake-image-bytes" {
		t.Errorf("decoded content = %q", decoded)
	}
}

func TestVisionExtractText_NoTextDetected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"responses":[{}]}`))
	}))
	defer srv.Close()

	c := NewVisionClientWithBaseURL("k", srv.URL)
	_, err := c.ExtractText(context.Background(), []byte("x"), "image/png")
	if err == nil {
		t.Fatal("expected error when no text is detected")
	}
	if !strings.Contains(err.Error(), "no text detected") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestVisionExtractText_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"responses":[{"error":{"code":7,"message":"permission denied"}}]}`))
	}))
	defer srv.Close()

	c := NewVisionClientWithBaseURL("k", srv.URL)
	_, err := c.ExtractText(context.Background(), []byte("x"), "image/png")
	if err == nil {
		t.Fatal("expected error from per-image error object")
	}
	if !strings.Contains(err.Error(), "permission denied") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestVisionExtractText_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewVisionClientWithBaseURL("k", srv.URL)
	_, err := c.ExtractText(context.Background(), []byte("x"), "image/png")
	if err == nil {
		t.Fatal("expected error on non-200 status")
	}
}

func TestStandInExtractor(t *testing.T) {
	s := NewStandIn()
	text, err := s.ExtractText(context.Background(), []byte("anything"), "image/jpeg")
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if !strings.Contains(text, "Die Grafik zeigt die Entwicklung der Studenten in Deutschland") {
		t.Errorf("stand-in transcript unexpected: %q", text)
	}
}
