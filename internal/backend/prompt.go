package backend

import (
	"fmt"
	"strings"
)

const coachingSystemPrompt = `You are a TestDaF writing coach. You help German language learners improve their writing skills for the TestDaF exam.

Key responsibilities:
- Analyze German texts for grammar, vocabulary, and structure
- Provide constructive feedback in clear, understandable language
- Explain German grammar rules and TestDaF requirements
- Suggest improvements for better TestDaF scores
- Be encouraging and supportive

Respond in a helpful, educational tone. If the user asks about TestDaF writing, focus on the specific requirements:
- Text structure and organization
- Academic vocabulary usage
- Grammar accuracy
- Argumentation quality
- Meeting TestDaF criteria`

const analysisPromptTemplate = `Analyze this German text for TestDaF writing quality. Provide detailed feedback in the following JSON format:

{
  "grammarErrors": [
    {
      "text": "original text with error",
      "correction": "corrected version",
      "explanation": "explanation in English",
      "position": {"start": 0, "end": 10},
      "type": "grammar"
    }
  ],
  "vocabularyScore": 75,
  "structureScore": 80,
  "overallScore": 78,
  "suggestions": [
    "Use more varied sentence structures",
    "Add transitional phrases"
  ]
}

Text to analyze: %q

Focus on:
- German grammar accuracy (articles, cases, verb positions)
- Academic vocabulary appropriateness
- Text structure and coherence
- TestDaF-specific requirements
- Provide scores out of 100
- Respond with ONLY the JSON document, no other text`

// AnalysisPrompt builds the structured-analysis instruction embedding the
// target text.
func AnalysisPrompt(text string) string {
	return fmt.Sprintf(analysisPromptTemplate, text)
}

// CoachingSystemPrompt returns the persona instruction for free-form
// coaching replies. Optional context lines are appended when present.
func CoachingSystemPrompt(context string) string {
	if context == "" {
		return coachingSystemPrompt
	}
	var sb strings.Builder
	sb.WriteString(coachingSystemPrompt)
	sb.WriteString("\n\nAdditional context: ")
	sb.WriteString(context)
	return sb.String()
}
