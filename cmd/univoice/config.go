package main

import (
	"time"

	"github.com/hubenschmidt/univoice/internal/coalescer"
	"github.com/hubenschmidt/univoice/internal/combiner"
	"github.com/hubenschmidt/univoice/internal/env"
	"github.com/hubenschmidt/univoice/internal/summarize"
	"github.com/hubenschmidt/univoice/internal/translate"
)

// llmModels names the model used for each pipeline task.
type llmModels struct {
	translate        string
	summary          string
	summaryTranslate string
	userTranslate    string
	vocabulary       string
	report           string
}

// llmTokens is the per-task completion budget.
type llmTokens struct {
	translate  int
	summary    int
	vocabulary int
	report     int
}

type config struct {
	port string

	// audio
	frameMs    int
	frameSize  int
	sampleRate int

	// recognizer
	deepgramAPIKey string
	deepgramModel  string
	interim        bool
	endpointingMs  int
	utteranceEndMs int
	smartFormat    bool
	noDelay        bool

	// llm
	openaiAPIKey  string
	openaiBaseURL string
	models        llmModels
	maxTokens     llmTokens

	// pipeline
	bypassCoalescer bool
	coalescer       coalescer.Config
	sentence        combiner.SentenceConfig
	paragraph       combiner.ParagraphConfig
	queue           translate.Config
	thresholds      []int
	charMultiplier  int

	postgresURL string
}

func loadConfig() config {
	co := coalescer.DefaultConfig()
	co.DebounceMs = int64(env.Int("COALESCER_DEBOUNCE_MS", int(co.DebounceMs)))
	co.ForceCommitMs = int64(env.Int("COALESCER_FORCE_COMMIT_MS", int(co.ForceCommitMs)))
	co.CleanupInterval = env.Duration("COALESCER_CLEANUP_INTERVAL", co.CleanupInterval)
	co.MaxInactive = env.Duration("COALESCER_MAX_INACTIVE", co.MaxInactive)

	q := translate.DefaultConfig()
	q.MaxConcurrency = env.Int("QUEUE_MAX_CONCURRENCY", q.MaxConcurrency)
	q.MaxQueueSize = env.Int("QUEUE_MAX_SIZE", q.MaxQueueSize)
	q.RequestTimeout = env.Duration("QUEUE_REQUEST_TIMEOUT", q.RequestTimeout)
	q.MaxRetries = env.Int("QUEUE_MAX_RETRIES", q.MaxRetries)

	sc := combiner.DefaultSentenceConfig()
	sc.TimeoutMs = int64(env.Int("SENTENCE_TIMEOUT_MS", int(sc.TimeoutMs)))
	sc.MaxSegments = env.Int("SENTENCE_MAX_SEGMENTS", sc.MaxSegments)
	sc.MinSegments = env.Int("SENTENCE_MIN_SEGMENTS", sc.MinSegments)

	pc := combiner.DefaultParagraphConfig()
	pc.MinDuration = env.Duration("PARAGRAPH_MIN_DURATION", pc.MinDuration)
	pc.MaxDuration = env.Duration("PARAGRAPH_MAX_DURATION", pc.MaxDuration)
	pc.SilenceThreshold = env.Duration("PARAGRAPH_SILENCE_THRESHOLD", pc.SilenceThreshold)

	sumDefaults := summarize.DefaultConfig()

	return config{
		port: env.Str("UNIVOICE_PORT", "8000"),

		frameMs:    env.Int("AUDIO_FRAME_MS", 20),
		frameSize:  env.Int("AUDIO_FRAME_SIZE", 640),
		sampleRate: env.Int("AUDIO_SAMPLE_RATE", 16000),

		deepgramAPIKey: env.Str("DEEPGRAM_API_KEY", ""),
		deepgramModel:  env.Str("DEEPGRAM_MODEL", "nova-3"),
		interim:        env.Bool("DEEPGRAM_INTERIM", true),
		endpointingMs:  env.Int("DEEPGRAM_ENDPOINTING_MS", 800),
		utteranceEndMs: env.Int("DEEPGRAM_UTTERANCE_END_MS", 1000),
		smartFormat:    env.Bool("DEEPGRAM_SMART_FORMAT", false),
		noDelay:        env.Bool("DEEPGRAM_NO_DELAY", false),

		openaiAPIKey:  env.Str("OPENAI_API_KEY", ""),
		openaiBaseURL: env.Str("OPENAI_BASE_URL", ""),
		models: llmModels{
			translate:        env.Str("MODEL_TRANSLATE", "gpt-5-nano"),
			summary:          env.Str("MODEL_SUMMARY", "gpt-5-mini"),
			summaryTranslate: env.Str("MODEL_SUMMARY_TRANSLATE", "gpt-5-nano"),
			userTranslate:    env.Str("MODEL_USER_TRANSLATE", "gpt-5-mini"),
			vocabulary:       env.Str("MODEL_VOCABULARY", "gpt-5-mini"),
			report:           env.Str("MODEL_REPORT", "gpt-5-mini"),
		},
		maxTokens: llmTokens{
			translate:  env.Int("MAX_TOKENS_TRANSLATE", 1500),
			summary:    env.Int("MAX_TOKENS_SUMMARY", 1500),
			vocabulary: env.Int("MAX_TOKENS_VOCABULARY", 1500),
			report:     env.Int("MAX_TOKENS_REPORT", 8192),
		},

		bypassCoalescer: env.Bool("BYPASS_COALESCER", false),
		coalescer:       co,
		sentence:        sc,
		paragraph:       pc,
		queue:           q,
		thresholds:      env.IntSlice("SUMMARY_THRESHOLDS", sumDefaults.Thresholds),
		charMultiplier:  env.Int("SUMMARY_CHAR_MULTIPLIER", sumDefaults.CharLanguageMultiplier),

		postgresURL: env.Str("POSTGRES_URL", ""),
	}
}

// summaryConfig builds the summary engine configuration; languages are
// filled in per session by the orchestrator.
func (c config) summaryConfig() summarize.Config {
	return summarize.Config{
		Thresholds:             c.thresholds,
		CharLanguageMultiplier: c.charMultiplier,
		PacingDelay:            time.Second,
	}
}
