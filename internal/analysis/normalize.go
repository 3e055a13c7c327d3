package analysis

import (
	"encoding/json"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// FallbackScores are the neutral scores returned when the provider's reply
// cannot be parsed. The values carry no derivation; they are preserved from
// observed product behavior and overridable via config.
type FallbackScores struct {
	Vocabulary int
	Structure  int
	Overall    int
}

// DefaultFallbackScores is used when no override is configured.
var DefaultFallbackScores = FallbackScores{Vocabulary: 70, Structure: 75, Overall: 72}

const fallbackSuggestion = "Please try uploading the text again for detailed analysis."

// Normalizer converts raw model output into a Result. The model is asked for
// JSON but is not guaranteed to comply, so every path through Normalize
// returns a usable Result; parse failures degrade to a fixed fallback
// instead of propagating as errors.
type Normalizer struct {
	fallback FallbackScores
	logger   *slog.Logger
}

// NewNormalizer creates a Normalizer. A zero FallbackScores selects the
// defaults.
func NewNormalizer(fallback FallbackScores) *Normalizer {
	if fallback == (FallbackScores{}) {
		fallback = DefaultFallbackScores
	}
	return &Normalizer{fallback: fallback, logger: slog.Default()}
}

// Fallback returns the deterministic degraded Result: no grammar errors,
// the configured neutral scores, and a single retry suggestion.
func (n *Normalizer) Fallback() Result {
	return Result{
		GrammarErrors:   []GrammarError{},
		VocabularyScore: n.fallback.Vocabulary,
		StructureScore:  n.fallback.Structure,
		OverallScore:    n.fallback.Overall,
		Suggestions:     []string{fallbackSuggestion},
	}
}

// rawResult shadows Result with pointer fields so missing keys can be told
// apart from zero values.
type rawResult struct {
	GrammarErrors   *[]GrammarError `json:"grammarErrors"`
	VocabularyScore *int            `json:"vocabularyScore"`
	StructureScore  *int            `json:"structureScore"`
	OverallScore    *int            `json:"overallScore"`
	Suggestions     *[]string       `json:"suggestions"`
}

// Normalize parses raw model output into a Result. analyzed is the text the
// critique refers to; grammar errors whose spans do not fit inside it are
// dropped. Scores are clamped into [0,100]. On any structural failure the
// fixed fallback Result is returned; Normalize never fails.
func (n *Normalizer) Normalize(raw, analyzed string) Result {
	payload := extractJSONObject(raw)

	var parsed rawResult
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		n.logger.Warn("analysis reply is not valid JSON, using fallback", "error", err)
		return n.Fallback()
	}
	if parsed.VocabularyScore == nil || parsed.StructureScore == nil || parsed.OverallScore == nil {
		n.logger.Warn("analysis reply is missing required score fields, using fallback")
		return n.Fallback()
	}

	result := Result{
		VocabularyScore: clampScore(*parsed.VocabularyScore),
		StructureScore:  clampScore(*parsed.StructureScore),
		OverallScore:    clampScore(*parsed.OverallScore),
		GrammarErrors:   []GrammarError{},
		Suggestions:     []string{},
	}
	if parsed.Suggestions != nil {
		result.Suggestions = append(result.Suggestions, *parsed.Suggestions...)
	}

	textLen := utf8.RuneCountInString(analyzed)
	if parsed.GrammarErrors != nil {
		for _, ge := range *parsed.GrammarErrors {
			if !validSpan(ge.Position, textLen) {
				n.logger.Warn("dropping grammar error with out-of-bounds span",
					"start", ge.Position.Start, "end", ge.Position.End, "text_len", textLen)
				continue
			}
			result.GrammarErrors = append(result.GrammarErrors, ge)
		}
	}

	return result
}

func validSpan(s Span, textLen int) bool {
	return s.Start >= 0 && s.Start <= s.End && s.End <= textLen
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// extractJSONObject trims prose and markdown fences the model may wrap
// around its JSON, returning the substring from the first '{' to the last
// '}'. Input is returned unchanged when no object delimiters are present;
// the subsequent Unmarshal rejects it.
func extractJSONObject(s string) string {
	raw := strings.TrimSpace(s)
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
