package transcribe

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

// CleanupClient runs the raw transcript through a chat model to fix
// punctuation and obvious mis-hearings, grounded on
// _examples/kdeps-kdeps/pkg/resolver/chat.go's use of langchaingo's llms
// package — generalized from ollama.New to openai.New pointed at Groq's
// OpenAI-compatible chat endpoint, since croaker's only credential is the
// Groq API key already loaded for transcription.
type CleanupClient struct {
	llm          llms.Model
	systemPrompt string
	temperature  float64
}

// NewCleanupClient builds a CleanupClient against Groq's chat completions
// endpoint. apiKey and model come from Config.Groq; prompt is the text
// loaded by config.LoadCleanupPrompt.
func NewCleanupClient(apiKey, model, prompt string, temperature float64) (*CleanupClient, error) {
	llm, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithModel(model),
		openai.WithBaseURL("https://api.groq.com/openai/v1"),
	)
	if err != nil {
		return nil, fmt.Errorf("transcribe: building cleanup client: %w", err)
	}
	return &CleanupClient{llm: llm, systemPrompt: prompt, temperature: temperature}, nil
}

// Clean returns a corrected version of raw, or an error if the chat
// completion fails — the caller falls back to the raw transcript rather
// than blocking the pipeline on a cleanup outage, per spec.md §4.3.
func (c *CleanupClient) Clean(ctx context.Context, raw string) (string, error) {
	if raw == "" {
		return raw, nil
	}

	content := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, c.systemPrompt),
		llms.TextParts(schema.ChatMessageTypeHuman, raw),
	}

	resp, err := c.llm.GenerateContent(ctx, content,
		llms.WithTemperature(c.temperature),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrServiceError, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Content == "" {
		return "", fmt.Errorf("%w: empty cleanup response", ErrMalformedResponse)
	}
	return resp.Choices[0].Content, nil
}
