// Package events defines the discriminated PipelineEvent/Command wire
// contract shared between the orchestrator and its external observer
// (the renderer-process UI, out of scope for this module), plus the
// runtime validation the boundary MUST perform.
package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Type discriminates the outward-facing PipelineEvent family.
type Type string

const (
	TypeASR               Type = "asr"
	TypeTranslation        Type = "translation"
	TypeSegment            Type = "segment"
	TypeCombinedSentence   Type = "combinedSentence"
	TypeParagraphComplete  Type = "paragraphComplete"
	TypeSummary            Type = "summary"
	TypeProgressiveSummary Type = "progressiveSummary"
	TypeVocabulary         Type = "vocabulary"
	TypeFinalReport        Type = "finalReport"
	TypeError              Type = "error"
	TypeStatus             Type = "status"
)

var validTypes = map[Type]bool{
	TypeASR: true, TypeTranslation: true, TypeSegment: true,
	TypeCombinedSentence: true, TypeParagraphComplete: true,
	TypeSummary: true, TypeProgressiveSummary: true, TypeVocabulary: true,
	TypeFinalReport: true, TypeError: true, TypeStatus: true,
}

// ErrUnknownType is returned by Validate for an event type outside the
// declared discriminated union.
var ErrUnknownType = errors.New("events: unknown event type")

// ErrMalformedData is returned by Validate when data doesn't decode into
// the shape required by its type.
var ErrMalformedData = errors.New("events: malformed data for event type")

// Event is the outward-facing PipelineEvent: every externally observable
// occurrence carries the correlation id of the session that produced it.
type Event struct {
	Type          Type            `json:"type"`
	Timestamp     int64           `json:"timestamp"`
	CorrelationID string          `json:"correlationId"`
	Data          json.RawMessage `json:"data"`
}

// --- per-type data payloads ---

type ASRData struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	IsFinal    bool    `json:"isFinal"`
	Language   string  `json:"language,omitempty"`
	SegmentID  string  `json:"segmentId"`
}

type TranslationData struct {
	OriginalText   string  `json:"originalText"`
	TranslatedText string  `json:"translatedText"`
	SourceLanguage string  `json:"sourceLanguage"`
	TargetLanguage string  `json:"targetLanguage"`
	Confidence     float64 `json:"confidence"`
	IsFinal        bool    `json:"isFinal"`
	SegmentID      string  `json:"segmentId"`
	IsHighQuality  bool    `json:"isHighQuality,omitempty"`
	TargetID       string  `json:"targetId,omitempty"`
	IsParagraph    bool    `json:"isParagraph,omitempty"`
}

type SegmentStatus string

const (
	SegmentProcessing SegmentStatus = "processing"
	SegmentCompleted  SegmentStatus = "completed"
	SegmentError      SegmentStatus = "error"
)

type SegmentData struct {
	SegmentID   string            `json:"segmentId"`
	Text        string            `json:"text"`
	Translation string            `json:"translation,omitempty"`
	Status      SegmentStatus     `json:"status"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type CombinedSentenceData struct {
	CombinedID   string   `json:"combinedId"`
	SegmentIDs   []string `json:"segmentIds"`
	OriginalText string   `json:"originalText"`
	StartMs      int64    `json:"startMs"`
	EndMs        int64    `json:"endMs"`
	SegmentCount int      `json:"segmentCount"`
}

type ParagraphCompleteData struct {
	ParagraphID string   `json:"paragraphId"`
	RawText     string   `json:"rawText"`
	CleanedText string   `json:"cleanedText,omitempty"`
	StartTime   int64    `json:"startTime"`
	EndTime     int64    `json:"endTime"`
	SegmentIDs  []string `json:"segmentIds"`
}

type SummaryData struct {
	SourceText     string `json:"sourceText"`
	TargetText     string `json:"targetText"`
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage"`
	WordCount      int    `json:"wordCount"`
	StartTime      int64  `json:"startTime"`
	EndTime        int64  `json:"endTime"`
	IsFinal        bool   `json:"isFinal"`
}

type ProgressiveSummaryData struct {
	SourceText     string `json:"sourceText"`
	TargetText     string `json:"targetText"`
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage"`
	WordCount      int    `json:"wordCount"`
	Threshold      int    `json:"threshold"`
	StartTime      int64  `json:"startTime"`
	EndTime        int64  `json:"endTime"`
}

type VocabularyItem struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
	Context    string `json:"context,omitempty"`
}

type VocabularyData struct {
	Items      []VocabularyItem `json:"items"`
	TotalTerms int              `json:"totalTerms"`
}

type FinalReportData struct {
	Report          string `json:"report"`
	TotalWordCount  int    `json:"totalWordCount"`
	SummaryCount    int    `json:"summaryCount"`
	VocabularyCount int    `json:"vocabularyCount"`
}

type ErrorData struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
	Details     string `json:"details,omitempty"`
}

type PipelineState string

const (
	StateIdle       PipelineState = "idle"
	StateStarting   PipelineState = "starting"
	StateListening  PipelineState = "listening"
	StateProcessing PipelineState = "processing"
	StateStopping   PipelineState = "stopping"
	StateError      PipelineState = "error"
)

type StatusData struct {
	State         PipelineState `json:"state"`
	PreviousState PipelineState `json:"previousState,omitempty"`
	Details       string        `json:"details,omitempty"`
	UptimeMs      int64         `json:"uptimeMs,omitempty"`
}

// Error taxonomy codes carried on error events.
const (
	CodeInvalidEvent                      = "INVALID_EVENT"
	CodeDeepgramConnectionFailed          = "DEEPGRAM_CONNECTION_FAILED"
	CodeParseError                        = "PARSE_ERROR"
	CodeTranslationQueueError             = "TRANSLATION_QUEUE_ERROR"
	CodeTranslationFailed                 = "TRANSLATION_FAILED"
	CodeProgressiveSummaryGenerationError = "PROGRESSIVE_SUMMARY_GENERATION_FAILED"
)

// --- factory helpers ---

func newEvent(typ Type, correlationID string, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("events: marshal %s data: %w", typ, err)
	}
	return Event{
		Type:          typ,
		Timestamp:     time.Now().UnixMilli(),
		CorrelationID: correlationID,
		Data:          raw,
	}, nil
}

func NewASREvent(correlationID string, d ASRData) (Event, error) {
	return newEvent(TypeASR, correlationID, d)
}

func NewTranslationEvent(correlationID string, d TranslationData) (Event, error) {
	return newEvent(TypeTranslation, correlationID, d)
}

func NewSegmentEvent(correlationID string, d SegmentData) (Event, error) {
	return newEvent(TypeSegment, correlationID, d)
}

func NewCombinedSentenceEvent(correlationID string, d CombinedSentenceData) (Event, error) {
	return newEvent(TypeCombinedSentence, correlationID, d)
}

func NewParagraphCompleteEvent(correlationID string, d ParagraphCompleteData) (Event, error) {
	return newEvent(TypeParagraphComplete, correlationID, d)
}

func NewSummaryEvent(correlationID string, d SummaryData) (Event, error) {
	return newEvent(TypeSummary, correlationID, d)
}

func NewProgressiveSummaryEvent(correlationID string, d ProgressiveSummaryData) (Event, error) {
	return newEvent(TypeProgressiveSummary, correlationID, d)
}

func NewVocabularyEvent(correlationID string, d VocabularyData) (Event, error) {
	return newEvent(TypeVocabulary, correlationID, d)
}

func NewFinalReportEvent(correlationID string, d FinalReportData) (Event, error) {
	return newEvent(TypeFinalReport, correlationID, d)
}

func NewErrorEvent(correlationID string, d ErrorData) (Event, error) {
	return newEvent(TypeError, correlationID, d)
}

func NewStatusEvent(correlationID string, d StatusData) (Event, error) {
	return newEvent(TypeStatus, correlationID, d)
}

// Validate rejects unknown event types or data that doesn't decode into
// the shape required for the event's type.
func Validate(e Event) error {
	if !validTypes[e.Type] {
		return fmt.Errorf("%w: %q", ErrUnknownType, e.Type)
	}
	var target any
	switch e.Type {
	case TypeASR:
		target = &ASRData{}
	case TypeTranslation:
		target = &TranslationData{}
	case TypeSegment:
		target = &SegmentData{}
	case TypeCombinedSentence:
		target = &CombinedSentenceData{}
	case TypeParagraphComplete:
		target = &ParagraphCompleteData{}
	case TypeSummary:
		target = &SummaryData{}
	case TypeProgressiveSummary:
		target = &ProgressiveSummaryData{}
	case TypeVocabulary:
		target = &VocabularyData{}
	case TypeFinalReport:
		target = &FinalReportData{}
	case TypeError:
		target = &ErrorData{}
	case TypeStatus:
		target = &StatusData{}
	}
	if len(e.Data) == 0 {
		return fmt.Errorf("%w: empty data", ErrMalformedData)
	}
	dec := json.NewDecoder(bytes.NewReader(e.Data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedData, err)
	}
	return nil
}
