package analysis

// Category classifies a grammar error.
type Category string

const (
	CategoryGrammar  Category = "grammar"
	CategorySpelling Category = "spelling"
	CategoryStyle    Category = "style"
)

// Span is a character-offset range into the analyzed text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// GrammarError is one flagged issue in the analyzed text. JSON field names
// match the structured-analysis prompt contract.
type GrammarError struct {
	Text        string   `json:"text"`
	Correction  string   `json:"correction"`
	Explanation string   `json:"explanation"`
	Position    Span     `json:"position"`
	Type        Category `json:"type"`
}

// Result is the stable critique shape produced by the normalizer. Scores are
// always within [0,100]. OverallScore is a provider-determined aggregate and
// is never recomputed locally.
type Result struct {
	GrammarErrors   []GrammarError `json:"grammarErrors"`
	VocabularyScore int            `json:"vocabularyScore"`
	StructureScore  int            `json:"structureScore"`
	OverallScore    int            `json:"overallScore"`
	Suggestions     []string       `json:"suggestions"`
}
