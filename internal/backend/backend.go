// Package backend provides the language-model capability used by the
// coaching pipeline. The Backend interface is constructed explicitly and
// injected into the pipeline; implementations are selected by configuration,
// never by runtime environment detection.
package backend

import "context"

// Call shapes for the two operations. The coaching call favors
// conversational variability; the analysis call favors structural
// compliance and a larger output budget for enumerating errors.
const (
	coachingTemperature = 0.7
	coachingMaxTokens   = 500
	analysisTemperature = 0.3
	analysisMaxTokens   = 800
)

// Backend is the language-analysis capability. Both methods return the
// provider's raw textual reply; callers own parsing and fallback.
type Backend interface {
	// Respond generates a free-form coaching reply to the user's message.
	Respond(ctx context.Context, userText string) (string, error)

	// Analyze requests a structured critique of the given German text.
	// The reply is expected (not guaranteed) to be a JSON document in the
	// analysis.Result shape.
	Analyze(ctx context.Context, text string) (string, error)
}
