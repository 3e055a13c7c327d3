package analysis

import (
	"fmt"
	"strings"
)

// Format renders a Result into the message body shown to the user. The
// output is markdown-like text; sections backed by empty sequences are
// omitted entirely. Provider order of errors and suggestions is preserved.
func Format(r Result) string {
	var sb strings.Builder

	sb.WriteString("**Analysis Complete!**\n\n")
	fmt.Fprintf(&sb, "Overall Score: %d/100\n\n", r.OverallScore)

	if len(r.GrammarErrors) > 0 {
		sb.WriteString("**Grammar Issues Found:**\n")
		for _, ge := range r.GrammarErrors {
			fmt.Fprintf(&sb, "%s → %s\n", ge.Text, ge.Correction)
			if ge.Explanation != "" {
				fmt.Fprintf(&sb, "   %s\n", ge.Explanation)
			}
			sb.WriteString("\n")
		}
	}

	sb.WriteString("**Detailed Scores:**\n")
	fmt.Fprintf(&sb, "• Vocabulary: %d/100\n", r.VocabularyScore)
	fmt.Fprintf(&sb, "• Structure: %d/100\n", r.StructureScore)

	if len(r.Suggestions) > 0 {
		sb.WriteString("\n**Suggestions for Improvement:**\n")
		for _, s := range r.Suggestions {
			fmt.Fprintf(&sb, "• %s\n", s)
		}
	}

	return sb.String()
}
