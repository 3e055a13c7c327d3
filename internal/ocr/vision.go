package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultVisionBaseURL = "https://vision.googleapis.com"
	visionTimeout        = 30 * time.Second
)

// VisionClient extracts text from images via the Google Cloud Vision REST
// API using document text detection.
type VisionClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewVisionClient creates a client authenticated with the given API key.
func NewVisionClient(apiKey string) *VisionClient {
	return &VisionClient{
		apiKey:  apiKey,
		baseURL: defaultVisionBaseURL,
		httpClient: &http.Client{
			Timeout: visionTimeout,
		},
	}
}

// NewVisionClientWithBaseURL creates a client pointing at a custom base URL
// (for testing).
func NewVisionClientWithBaseURL(apiKey, baseURL string) *VisionClient {
	c := NewVisionClient(apiKey)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

type annotateRequest struct {
	Requests []annotateEntry `json:"requests"`
}

type annotateEntry struct {
	Image    imageContent `json:"image"`
	Features []feature    `json:"features"`
}

type imageContent struct {
	Content string `json:"content"`
}

type feature struct {
	Type string `json:"type"`
}

type annotateResponse struct {
	Responses []struct {
		FullTextAnnotation *struct {
			Text string `json:"text"`
		} `json:"fullTextAnnotation"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	} `json:"responses"`
}

// ExtractText sends the image to the images:annotate endpoint and returns
// the detected document text. An empty detection result is an error; the
// caller expects a usable transcription or a failure.
func (c *VisionClient) ExtractText(ctx context.Context, data []byte, _ string) (string, error) {
	body, err := json.Marshal(annotateRequest{
		Requests: []annotateEntry{{
			Image:    imageContent{Content: base64.StdEncoding.EncodeToString(data)},
			Features: []feature{{Type: "DOCUMENT_TEXT_DETECTION"}},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, visionTimeout)
	defer cancel()

	url := c.baseURL + "/v1/images:annotate?key=" + c.apiKey
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var result annotateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if len(result.Responses) == 0 {
		return "", fmt.Errorf("empty annotate response")
	}

	r := result.Responses[0]
	if r.Error != nil {
		return "", fmt.Errorf("vision error %d: %s", r.Error.Code, r.Error.Message)
	}
	if r.FullTextAnnotation == nil || strings.TrimSpace(r.FullTextAnnotation.Text) == "" {
		return "", fmt.Errorf("no text detected in image")
	}

	return r.FullTextAnnotation.Text, nil
}
