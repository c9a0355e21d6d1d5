// Package metrics holds the process-wide Prometheus collectors for the
// streaming pipeline: queue depth, coalescer suppressions, ASR
// reconnects, and summary thresholds fired.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "univoice_sessions_active",
		Help: "Currently listening pipeline sessions",
	})

	SessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "univoice_sessions_total",
		Help: "Total sessions started",
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "univoice_stage_duration_seconds",
		Help:    "Per-stage latency (asr, translate_realtime, translate_history, summary)",
		Buckets: []float64{0.05, 0.1, 0.2, 0.3, 0.5, 0.8, 1.0, 2.0, 5.0, 10.0},
	}, []string{"stage"})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "univoice_errors_total",
		Help: "Error counts by component and code",
	}, []string{"component", "code"})

	ASRReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "univoice_asr_reconnects_total",
		Help: "ASR adapter reconnection attempts",
	})

	ASRFramesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "univoice_asr_frames_sent_total",
		Help: "Audio frames sent to the recognizer",
	})

	ASRBytesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "univoice_asr_bytes_sent_total",
		Help: "Audio bytes sent to the recognizer",
	})

	CoalescerEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "univoice_coalescer_emitted_total",
		Help: "Coalesced segments emitted to the UI",
	})

	CoalescerSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "univoice_coalescer_suppressed_total",
		Help: "Coalescer updates suppressed as duplicates",
	})

	CoalescerHoldMs = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "univoice_coalescer_hold_ms",
		Help:    "Time an update was held before emission",
		Buckets: []float64{10, 50, 100, 160, 300, 600, 1100, 2000},
	})

	TranslateQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "univoice_translate_queue_depth",
		Help: "Items currently queued for translation",
	})

	TranslateQueueActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "univoice_translate_queue_active",
		Help: "Translation requests currently in flight",
	})

	TranslateQueueRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "univoice_translate_queue_rejected_total",
		Help: "Translation enqueue attempts rejected (full queue or duplicate)",
	})

	SummaryThresholdsFired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "univoice_summary_thresholds_fired_total",
		Help: "Progressive summary thresholds fired",
	})

	SummaryWordCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "univoice_summary_word_count",
		Help: "Cumulative source word count for the active session",
	})
)
