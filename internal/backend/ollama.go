package backend

import (
	"context"
	"fmt"

	"github.com/mkrenz/schreibcoach/internal/ollama"
)

// Ollama is a Backend backed by a local Ollama instance, for fully offline
// operation with a real model.
type Ollama struct {
	client *ollama.Client
	model  string
}

// NewOllama creates a local-inference backend using the given client and
// model name.
func NewOllama(client *ollama.Client, model string) *Ollama {
	return &Ollama{client: client, model: model}
}

func (o *Ollama) Respond(ctx context.Context, userText string) (string, error) {
	reply, err := o.client.Chat(ctx, o.model, []ollama.Message{
		{Role: "system", Content: CoachingSystemPrompt("")},
		{Role: "user", Content: userText},
	}, nil, ollama.ChatOptions{Temperature: coachingTemperature, MaxTokens: coachingMaxTokens})
	if err != nil {
		return "", fmt.Errorf("coaching reply: %w", err)
	}
	return reply, nil
}

func (o *Ollama) Analyze(ctx context.Context, text string) (string, error) {
	reply, err := o.client.Chat(ctx, o.model, []ollama.Message{
		{Role: "user", Content: AnalysisPrompt(text)},
	}, critiqueSchema(), ollama.ChatOptions{Temperature: analysisTemperature, MaxTokens: analysisMaxTokens})
	if err != nil {
		return "", fmt.Errorf("structured analysis: %w", err)
	}
	return reply, nil
}

// critiqueSchema returns the Ollama JSON schema for the structured critique.
// The prompt carries the full nested example; the schema pins the top-level
// fields so the model cannot omit scores.
func critiqueSchema() *ollama.Schema {
	return &ollama.Schema{
		Type: "object",
		Properties: map[string]ollama.SchemaProperty{
			"grammarErrors":   {Type: "array", Description: "Flagged issues with text, correction, explanation, position and type"},
			"vocabularyScore": {Type: "integer", Description: "Vocabulary quality 0-100"},
			"structureScore":  {Type: "integer", Description: "Text structure quality 0-100"},
			"overallScore":    {Type: "integer", Description: "Overall writing quality 0-100"},
			"suggestions":     {Type: "array", Description: "Short improvement suggestions"},
		},
		Required: []string{"grammarErrors", "vocabularyScore", "structureScore", "overallScore", "suggestions"},
	}
}
