package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/nlpodyssey/openai-agents-go/agents"
	"github.com/nlpodyssey/openai-agents-go/modelsettings"
	"github.com/openai/openai-go/v2/packages/param"
)

// NewOpenAIProvider builds an agents-SDK model provider for the given
// key and base URL (empty baseURL uses the SDK default endpoint).
func NewOpenAIProvider(apiKey, baseURL string) agents.ModelProvider {
	params := agents.OpenAIProviderParams{
		APIKey:       param.NewOpt(apiKey),
		UseResponses: param.NewOpt(true),
	}
	if baseURL != "" {
		params.BaseURL = param.NewOpt(baseURL)
	}
	return agents.NewOpenAIProvider(params)
}

// AgentClient streams completions through the openai-agents-go SDK. It
// implements the StreamClient interface shared by the translator, the
// summary engine, and the vocabulary generator.
type AgentClient struct {
	provider  agents.ModelProvider
	maxTokens int
}

// NewAgentClient creates an AgentClient with a per-call token budget.
func NewAgentClient(provider agents.ModelProvider, maxTokens int) *AgentClient {
	return &AgentClient{provider: provider, maxTokens: maxTokens}
}

// Chat streams a single completion for userMessage under systemPrompt,
// invoking onToken for each delta, and returns the accumulated text.
func (c *AgentClient) Chat(ctx context.Context, userMessage, systemPrompt, model string, onToken func(token string)) (string, error) {
	agent := agents.New("assistant").
		WithInstructions(systemPrompt).
		WithModel(model).
		WithModelSettings(modelsettings.ModelSettings{
			MaxTokens: param.NewOpt(int64(c.maxTokens)),
		})

	runner := agents.Runner{Config: agents.RunConfig{
		ModelProvider:   c.provider,
		MaxTurns:        1,
		TracingDisabled: true,
	}}

	events, errCh, err := runner.RunStreamedChan(ctx, agent, userMessage)
	if err != nil {
		return "", fmt.Errorf("llm stream start: %w", err)
	}

	var text strings.Builder
	for ev := range events {
		raw, ok := ev.(agents.RawResponsesStreamEvent)
		if !ok {
			continue
		}
		if raw.Data.Type != "response.output_text.delta" {
			continue
		}
		if onToken != nil {
			onToken(raw.Data.Delta)
		}
		text.WriteString(raw.Data.Delta)
	}

	if streamErr := <-errCh; streamErr != nil {
		return "", fmt.Errorf("llm stream: %w", streamErr)
	}
	return text.String(), nil
}
