// Package prompts builds the system prompts sent to the streaming LLM
// client for each pipeline task.
package prompts

import "fmt"

// DefaultTranslateSystem is used when no caller-supplied override applies.
const DefaultTranslateSystem = "You are a professional simultaneous interpreter. " +
	"Translate the user's text faithfully, preserving terminology, names, and " +
	"numbers exactly. Reply with the translation only, no commentary."

// Translate builds the system prompt for a single translation call.
func Translate(sourceLanguage, targetLanguage string, highQuality bool) string {
	base := fmt.Sprintf("%s Source language: %s. Target language: %s.",
		DefaultTranslateSystem, languageOrAuto(sourceLanguage), targetLanguage)
	if highQuality {
		base += " This is a history-grade re-translation: favor fluency and " +
			"coherence across the full passage over low latency."
	}
	return base
}

func languageOrAuto(lang string) string {
	if lang == "" {
		return "auto-detect"
	}
	return lang
}

// SummarySystem builds the system prompt for a progressive summary job.
// first distinguishes the session's opening summary (no prior context)
// from a cumulative one whose user message carries the prior summary
// ahead of the new material.
func SummarySystem(targetLanguage string, first bool) string {
	if first {
		return fmt.Sprintf("Summarize the following lecture transcript in %s. "+
			"Be concise and preserve key terms.", targetLanguage)
	}
	return fmt.Sprintf("Continue summarizing this lecture in %s, extending the "+
		"prior summary with the new material without repeating what it already "+
		"covers.", targetLanguage)
}

// VocabularySystem builds the system prompt for vocabulary extraction.
const VocabularySystem = "Extract key technical or domain-specific terms from the " +
	"following lecture transcript. For each term give a short definition and, if " +
	"helpful, the sentence it appeared in as context. Respond as a JSON array of " +
	"objects with \"term\", \"definition\", and optional \"context\" fields."

// ReportSystem builds the system prompt for the end-of-session final report.
const ReportSystem = "Write a final report summarizing this lecture session: " +
	"the overall narrative, the key points from each progressive summary, and " +
	"the most important vocabulary introduced. Write in clear prose, formatted as Markdown."
