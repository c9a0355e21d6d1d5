package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hubenschmidt/univoice/internal/asr"
	"github.com/hubenschmidt/univoice/internal/orchestrator"
	"github.com/hubenschmidt/univoice/internal/session"
	"github.com/hubenschmidt/univoice/internal/summarize"
	"github.com/hubenschmidt/univoice/internal/translate"
	"github.com/hubenschmidt/univoice/internal/vocabulary"
	"github.com/hubenschmidt/univoice/internal/ws"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg := loadConfig()

	if cfg.deepgramAPIKey == "" {
		slog.Error("DEEPGRAM_API_KEY is required")
		os.Exit(1)
	}
	if cfg.openaiAPIKey == "" {
		slog.Error("OPENAI_API_KEY is required")
		os.Exit(1)
	}
	if cfg.smartFormat && cfg.noDelay {
		slog.Warn("smart_format precludes no_delay; ignoring no_delay")
	}

	provider := translate.NewOpenAIProvider(cfg.openaiAPIKey, cfg.openaiBaseURL)

	translator := translate.NewTranslator(
		translate.NewAgentClient(provider, cfg.maxTokens.translate),
		translate.ModelConfig{Realtime: cfg.models.translate, History: cfg.models.userTranslate},
	)
	summarizer := summarize.NewLLMSummarizer(
		translate.NewAgentClient(provider, cfg.maxTokens.summary),
		summarize.ModelConfig{Summary: cfg.models.summary, SummaryTranslate: cfg.models.summaryTranslate},
	)
	vocabGen := vocabulary.NewGeneratorWithClients(
		translate.NewAgentClient(provider, cfg.maxTokens.vocabulary),
		translate.NewAgentClient(provider, cfg.maxTokens.report),
		vocabulary.ModelConfig{Vocabulary: cfg.models.vocabulary, Report: cfg.models.report},
	)

	var store *session.Store
	var writer *session.Writer
	if cfg.postgresURL != "" {
		var err error
		store, err = session.Open(cfg.postgresURL)
		if err != nil {
			slog.Error("session store open failed", "error", err)
			os.Exit(1)
		}
		writer = session.NewWriter(store)
		slog.Info("session persistence enabled")
	}

	asrCfg := asr.DefaultConfig()
	asrCfg.APIKey = cfg.deepgramAPIKey
	asrCfg.Model = cfg.deepgramModel
	asrCfg.SampleRate = cfg.sampleRate
	asrCfg.Interim = cfg.interim
	asrCfg.EndpointingMs = cfg.endpointingMs
	asrCfg.UtteranceEndMs = cfg.utteranceEndMs
	asrCfg.SmartFormat = cfg.smartFormat
	asrCfg.NoDelay = cfg.noDelay

	orchCfg := orchestrator.DefaultConfig()
	orchCfg.BypassCoalescer = cfg.bypassCoalescer
	orchCfg.Coalescer = cfg.coalescer
	orchCfg.Sentence = cfg.sentence
	orchCfg.Paragraph = cfg.paragraph
	orchCfg.Queue = cfg.queue
	orchCfg.Summary = cfg.summaryConfig()

	wsHandler := ws.NewHandler(func() *orchestrator.Pipeline {
		return orchestrator.New(orchCfg,
			func() orchestrator.Recognizer { return asr.New(asrCfg) },
			translator, summarizer, vocabGen, writer)
	})

	mux := http.NewServeMux()
	registerRoutes(mux, deps{wsHandler: wsHandler, store: store})

	addr := ":" + cfg.port
	srv := &http.Server{Addr: addr, Handler: mux}

	shutdownDone := make(chan struct{})
	go func() {
		awaitShutdown(srv, writer, store)
		close(shutdownDone)
	}()

	slog.Info("univoice core starting", "addr", addr)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	<-shutdownDone

	slog.Info("univoice core stopped")
}

// awaitShutdown blocks until SIGINT/SIGTERM, then drains persistence
// and stops the server. Exit is zero on this path.
func awaitShutdown(srv *http.Server, writer *session.Writer, store *session.Store) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	srv.Shutdown(ctx)

	writer.Close()
	if store != nil {
		store.Close()
	}
}
