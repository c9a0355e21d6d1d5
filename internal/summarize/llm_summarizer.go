package summarize

import (
	"context"

	"github.com/hubenschmidt/univoice/internal/prompts"
)

// StreamClient streams a completion for a single prompt, the same shape
// used by the translator's StreamClient.
type StreamClient interface {
	Chat(ctx context.Context, userMessage, systemPrompt, model string, onToken func(token string)) (string, error)
}

// ModelConfig names the models used for summarization and for
// translating a generated summary into the target language.
type ModelConfig struct {
	Summary          string
	SummaryTranslate string
}

// LLMSummarizer implements Summarizer by delegating both calls to a
// streaming LLM client.
type LLMSummarizer struct {
	client StreamClient
	models ModelConfig
}

// NewLLMSummarizer creates an LLMSummarizer.
func NewLLMSummarizer(client StreamClient, models ModelConfig) *LLMSummarizer {
	return &LLMSummarizer{client: client, models: models}
}

// Summarize produces a source-language summary of text, using the
// first summary's prompt differing from the cumulative ones that follow.
func (s *LLMSummarizer) Summarize(ctx context.Context, text string, first bool, sourceLanguage string) (string, error) {
	systemPrompt := prompts.SummarySystem(sourceLanguage, first)
	return s.client.Chat(ctx, text, systemPrompt, s.models.Summary, nil)
}

// Translate translates a generated summary into the target language.
func (s *LLMSummarizer) Translate(ctx context.Context, text, sourceLanguage, targetLanguage string) (string, error) {
	if sourceLanguage == targetLanguage {
		return text, nil
	}
	systemPrompt := prompts.Translate(sourceLanguage, targetLanguage, false)
	return s.client.Chat(ctx, text, systemPrompt, s.models.SummaryTranslate, nil)
}
