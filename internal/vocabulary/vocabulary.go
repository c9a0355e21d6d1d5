// Package vocabulary generates the on-demand session artifacts: the
// vocabulary term list and the final Markdown report. Both are single
// streaming LLM calls over the session's accumulated source text.
package vocabulary

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hubenschmidt/univoice/internal/model"
	"github.com/hubenschmidt/univoice/internal/prompts"
)

// StreamClient streams a completion for a single prompt, the same shape
// the translator and summary engine consume.
type StreamClient interface {
	Chat(ctx context.Context, userMessage, systemPrompt, model string, onToken func(token string)) (string, error)
}

// ModelConfig names the models used for vocabulary extraction and for
// the final report.
type ModelConfig struct {
	Vocabulary string
	Report     string
}

// Item is one extracted vocabulary term.
type Item struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
	Context    string `json:"context,omitempty"`
}

// Generator produces vocabulary lists and final reports for a session.
// The two tasks carry different token budgets, so each can be bound to
// its own client; NewGenerator shares one for both.
type Generator struct {
	vocabClient  StreamClient
	reportClient StreamClient
	models       ModelConfig
}

// NewGenerator creates a Generator with one client for both tasks.
func NewGenerator(client StreamClient, models ModelConfig) *Generator {
	return &Generator{vocabClient: client, reportClient: client, models: models}
}

// NewGeneratorWithClients creates a Generator with per-task clients.
func NewGeneratorWithClients(vocabClient, reportClient StreamClient, models ModelConfig) *Generator {
	return &Generator{vocabClient: vocabClient, reportClient: reportClient, models: models}
}

// Extract pulls key terms with definitions from the session's source
// text. The model is asked for a JSON array; a fenced code block around
// it is tolerated.
func (g *Generator) Extract(ctx context.Context, sourceText string) ([]Item, error) {
	if strings.TrimSpace(sourceText) == "" {
		return nil, nil
	}
	raw, err := g.vocabClient.Chat(ctx, sourceText, prompts.VocabularySystem, g.models.Vocabulary, nil)
	if err != nil {
		return nil, fmt.Errorf("vocabulary extract: %w", err)
	}
	items, err := parseItems(raw)
	if err != nil {
		return nil, fmt.Errorf("vocabulary parse: %w", err)
	}
	return items, nil
}

// parseItems decodes the model's JSON array, stripping a Markdown code
// fence if the model wrapped its output in one.
func parseItems(raw string) ([]Item, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		if i := strings.LastIndex(raw, "```"); i >= 0 {
			raw = raw[:i]
		}
		raw = strings.TrimSpace(raw)
	}
	// tolerate leading prose before the array
	if i := strings.Index(raw, "["); i > 0 {
		raw = raw[i:]
	}
	var items []Item
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, err
	}
	out := items[:0]
	for _, it := range items {
		if strings.TrimSpace(it.Term) != "" {
			out = append(out, it)
		}
	}
	return out, nil
}

// Report writes the end-of-session Markdown report from the full source
// text plus the progressive summaries already produced.
func (g *Generator) Report(ctx context.Context, sourceText string, summaries []model.Summary) (string, error) {
	var b strings.Builder
	if len(summaries) > 0 {
		b.WriteString("Progressive summaries so far:\n")
		for _, s := range summaries {
			fmt.Fprintf(&b, "- [%d words] %s\n", s.WordCount, s.SourceText)
		}
		b.WriteString("\nFull transcript:\n")
	}
	b.WriteString(sourceText)

	report, err := g.reportClient.Chat(ctx, b.String(), prompts.ReportSystem, g.models.Report, nil)
	if err != nil {
		return "", fmt.Errorf("final report: %w", err)
	}
	return report, nil
}
