package translate

import (
	"context"
	"fmt"

	"github.com/hubenschmidt/univoice/internal/model"
	"github.com/hubenschmidt/univoice/internal/prompts"
)

// StreamClient streams a completion for a single prompt, invoking onToken
// for each delta as it arrives.
type StreamClient interface {
	Chat(ctx context.Context, userMessage, systemPrompt, model string, onToken func(token string)) (string, error)
}

// ModelConfig names the model to use for each translation tier.
type ModelConfig struct {
	Realtime string
	History  string
}

// Translator invokes a streaming LLM client and produces the final
// translated text, tagging history-tier requests as high quality so the
// caller can mark the emitted Translation event accordingly.
type Translator struct {
	client StreamClient
	models ModelConfig
}

// NewTranslator creates a Translator bound to client, a streaming LLM
// client resolved by the caller (e.g. an AgentLLM-style router).
func NewTranslator(client StreamClient, models ModelConfig) *Translator {
	return &Translator{client: client, models: models}
}

// Translate implements Handler: it builds the tier-appropriate system
// prompt, selects the tier's model, and streams partial deltas via
// onPartial before returning the final text.
func (t *Translator) Translate(ctx context.Context, req Request, onPartial func(string)) (string, error) {
	highQuality := req.Tier == model.TierHistory
	systemPrompt := prompts.Translate(req.SourceLanguage, req.TargetLanguage, highQuality)

	useModel := t.models.Realtime
	if highQuality {
		useModel = t.models.History
	}

	text, err := t.client.Chat(ctx, req.OriginalText, systemPrompt, useModel, onPartial)
	if err != nil {
		return "", fmt.Errorf("translate segment %s: %w", req.SegmentID, err)
	}
	return text, nil
}
