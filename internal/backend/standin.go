package backend

import (
	"context"
	"strings"
)

// StandIn is a deterministic offline Backend used when no provider
// credentials are configured. Replies are plausible canned output in the
// same shapes the live backends produce, so the rest of the pipeline runs
// unchanged.
type StandIn struct{}

// NewStandIn creates the offline stand-in backend.
func NewStandIn() *StandIn {
	return &StandIn{}
}

func (s *StandIn) Respond(_ context.Context, userText string) (string, error) {
	lower := strings.ToLower(userText)
	switch {
	case strings.Contains(lower, "help"):
		return standInHelpReply, nil
	case strings.Contains(lower, "grammar"):
		return standInGrammarReply, nil
	default:
		return standInDefaultReply, nil
	}
}

func (s *StandIn) Analyze(_ context.Context, _ string) (string, error) {
	return standInAnalysisJSON, nil
}

const standInHelpReply = `I'm here to help! You can:

**Upload text**: Send me a photo of your handwriting or type directly
**Get feedback**: I'll analyze your grammar, vocabulary, and structure
**Learn**: Ask me about German grammar rules
**Practice**: I'll create exercises based on your mistakes

What would you like to start with?`

const standInGrammarReply = `Great! German grammar can be tricky, but I'm here to help.

Some common areas students struggle with:
• **Articles** (der, die, das)
• **Cases** (Nominativ, Akkusativ, Dativ, Genitiv)
• **Word order** in complex sentences
• **Verb conjugations** and positions

Do you have a specific grammar question, or would you like me to analyze a text you've written?`

const standInDefaultReply = `I understand you want to improve your TestDaF writing!

Please share a text with me (either by typing or uploading an image), and I'll provide detailed feedback on:

• **Grammar accuracy**
• **Vocabulary usage**
• **Text structure**
• **TestDaF-specific criteria**

I'll explain everything clearly to make it easier to understand!`

const standInAnalysisJSON = `{
  "grammarErrors": [
    {
      "text": "Der Grafik",
      "correction": "Die Grafik",
      "explanation": "Grafik is feminine, so the article must be 'die'",
      "position": {"start": 0, "end": 10},
      "type": "grammar"
    }
  ],
  "vocabularyScore": 78,
  "structureScore": 82,
  "overallScore": 80,
  "suggestions": [
    "Use more varied sentence structures",
    "Consider adding transitional phrases",
    "Good use of academic vocabulary"
  ]
}`
