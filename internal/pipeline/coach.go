// Package pipeline contains the request orchestrator: it validates inputs,
// sequences extraction, analysis, normalization, and formatting, and
// converts every failure into a typed chat.Error.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mkrenz/schreibcoach/internal/analysis"
	"github.com/mkrenz/schreibcoach/internal/backend"
	"github.com/mkrenz/schreibcoach/internal/chat"
	"github.com/mkrenz/schreibcoach/internal/ocr"
)

const (
	// MaxUploadBytes is the upload size ceiling.
	MaxUploadBytes = 10 << 20 // 10 MiB

	defaultCallTimeout = 60 * time.Second

	emptyReplyApology = "I apologize, but I could not generate a response. Please try again."
)

// allowedImageTypes is the fixed media-type allow-list for image uploads.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
}

// Upload is an ephemeral uploaded asset. It is validated before extraction
// and discarded once the pipeline completes.
type Upload struct {
	Name      string
	MediaType string
	Size      int64
	Data      []byte
}

// Coach orchestrates the coaching pipeline. It holds no mutable state across
// calls; concurrent invocations are independent.
type Coach struct {
	backend     backend.Backend
	extractor   ocr.Extractor
	normalizer  *analysis.Normalizer
	callTimeout time.Duration
	logger      *slog.Logger
}

// Option configures a Coach.
type Option func(*Coach)

// WithCallTimeout bounds each outbound provider call.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Coach) {
		if d > 0 {
			c.callTimeout = d
		}
	}
}

// WithFallbackScores overrides the normalizer's degraded-result scores.
func WithFallbackScores(fb analysis.FallbackScores) Option {
	return func(c *Coach) {
		c.normalizer = analysis.NewNormalizer(fb)
	}
}

// New creates a Coach wired to the given language backend and text
// extractor.
func New(b backend.Backend, extractor ocr.Extractor, opts ...Option) *Coach {
	c := &Coach{
		backend:     b,
		extractor:   extractor,
		normalizer:  analysis.NewNormalizer(analysis.FallbackScores{}),
		callTimeout: defaultCallTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendText forwards the user's message to the coaching backend and wraps the
// reply as a text message. An empty provider reply is substituted with a
// fixed apology; it never surfaces as an error on this path.
func (c *Coach) SendText(ctx context.Context, conversationID, content string) (*chat.Message, *chat.Error) {
	if strings.TrimSpace(content) == "" {
		return nil, chat.NewError(chat.ErrValidation, "Message content cannot be empty")
	}

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	reply, err := c.backend.Respond(callCtx, content)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, chat.WrapError(chat.ErrNetwork, "The coaching service took too long to respond", err)
		}
		return nil, chat.WrapError(chat.ErrAPI, "Failed to generate a coaching reply", err)
	}
	if strings.TrimSpace(reply) == "" {
		reply = emptyReplyApology
	}

	return chat.NewMessage(conversationID, chat.SenderAgent, chat.KindText, reply), nil
}

// AnalyzeUpload runs the full image pipeline: validate, extract, analyze,
// normalize, format. Validation failures short-circuit before any network
// call; extraction failures halt before analysis. Malformed analysis output
// degrades to the fallback result instead of failing.
func (c *Coach) AnalyzeUpload(ctx context.Context, conversationID string, up Upload) (*chat.Message, *chat.Error) {
	if !allowedImageTypes[strings.ToLower(up.MediaType)] {
		return nil, chat.NewError(chat.ErrValidation,
			"Invalid file type. Please upload JPEG, PNG, or WebP images only.")
	}
	if up.Size > MaxUploadBytes {
		return nil, chat.NewError(chat.ErrValidation,
			"File size too large. Please upload images smaller than 10 MiB.")
	}

	extractCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	text, err := c.extractor.ExtractText(extractCtx, up.Data, up.MediaType)
	cancel()
	if err != nil {
		return nil, chat.WrapError(chat.ErrUpload, "Failed to extract text from image", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, chat.NewError(chat.ErrUpload, "Failed to extract text from image")
	}

	return c.analyze(ctx, conversationID, up, text)
}

// AnalyzeDocument runs the document pipeline for PDF uploads: the text is
// extracted locally, then analyzed like any transcription.
func (c *Coach) AnalyzeDocument(ctx context.Context, conversationID string, up Upload) (*chat.Message, *chat.Error) {
	if strings.ToLower(up.MediaType) != "application/pdf" {
		return nil, chat.NewError(chat.ErrValidation, "Invalid file type. Please upload a PDF document.")
	}
	if up.Size > MaxUploadBytes {
		return nil, chat.NewError(chat.ErrValidation,
			"File size too large. Please upload documents smaller than 10 MiB.")
	}

	text, err := ocr.PDFText(up.Data)
	if err != nil {
		return nil, chat.WrapError(chat.ErrUpload, "Failed to extract text from document", err)
	}

	return c.analyze(ctx, conversationID, up, text)
}

// AnalyzeText runs the structured critique on already-typed text, skipping
// extraction. Used by the MCP tool surface and the CLI.
func (c *Coach) AnalyzeText(ctx context.Context, conversationID, text string) (*chat.Message, *chat.Error) {
	if strings.TrimSpace(text) == "" {
		return nil, chat.NewError(chat.ErrValidation, "Text to analyze cannot be empty")
	}
	return c.analyze(ctx, conversationID, Upload{}, text)
}

// analyze performs the shared analyze → normalize → format tail of the
// pipeline and wraps the outcome as an analysis message.
func (c *Coach) analyze(ctx context.Context, conversationID string, up Upload, text string) (*chat.Message, *chat.Error) {
	start := time.Now()

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	raw, err := c.backend.Analyze(callCtx, text)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, chat.WrapError(chat.ErrNetwork, "The analysis service took too long to respond", err)
		}
		return nil, chat.WrapError(chat.ErrAPI, "Failed to analyze text", err)
	}

	result := c.normalizer.Normalize(raw, text)

	msg := chat.NewMessage(conversationID, chat.SenderAgent, chat.KindAnalysis, analysis.Format(result))
	msg.Metadata = &chat.Metadata{
		FileName:      up.Name,
		FileSize:      up.Size,
		ExtractedText: text,
		Analysis:      &result,
	}

	c.logger.Debug("analysis complete",
		"conversation_id", conversationID,
		"grammar_errors", len(result.GrammarErrors),
		"overall_score", result.OverallScore,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return msg, nil
}

// Describe returns a short human-readable summary of a pipeline error for
// logs.
func Describe(e *chat.Error) string {
	if e == nil {
		return "ok"
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}
