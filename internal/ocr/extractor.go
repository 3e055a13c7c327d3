// Package ocr extracts plain text from uploaded assets: photographed or
// scanned writing via an optical-character-recognition provider, and PDF
// documents locally.
package ocr

import "context"

// Extractor turns image bytes into a best-effort plain-text transcription.
// Implementations must honor ctx cancellation; arbitrary provider latency is
// expected.
type Extractor interface {
	ExtractText(ctx context.Context, data []byte, mediaType string) (string, error)
}
