package asr

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hubenschmidt/univoice/internal/model"
)

// response is the wire shape of an incoming recognizer message. Only
// the fields the adapter consumes are declared.
type response struct {
	Type     string  `json:"type"`
	IsFinal  bool    `json:"is_final"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Channel  struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
	LastWordEnd float64 `json:"last_word_end"`
}

// handleMessage parses one incoming frame. Transcript results with a
// non-empty top alternative become TranscriptSegments; metadata and
// utterance-end signals pass through unchanged; parse failures are
// recoverable errors that never tear down the connection.
func (a *Adapter) handleMessage(data []byte) {
	var resp response
	if err := json.Unmarshal(data, &resp); err != nil {
		a.emit(Event{Kind: KindError, Err: err, Recoverable: true})
		return
	}

	switch resp.Type {
	case "Results":
		if len(resp.Channel.Alternatives) == 0 {
			return
		}
		alt := resp.Channel.Alternatives[0]
		if alt.Transcript == "" {
			return
		}

		a.mu.Lock()
		language := a.language
		a.mu.Unlock()

		a.emit(Event{Kind: KindTranscript, Segment: model.TranscriptSegment{
			ID:         uuid.NewString(),
			Text:       alt.Transcript,
			Confidence: alt.Confidence,
			IsFinal:    resp.IsFinal,
			StartMs:    int64(resp.Start * 1000),
			EndMs:      int64((resp.Start + resp.Duration) * 1000),
			Language:   language,
			Timestamp:  time.Now(),
		}})

	case "Metadata":
		a.emit(Event{Kind: KindMetadata, Metadata: json.RawMessage(data)})

	case "UtteranceEnd":
		a.emit(Event{Kind: KindUtteranceEnd, LastWordEndMs: int64(resp.LastWordEnd * 1000)})
	}
}

// CloseClass is the diagnostic classification of a close code.
type CloseClass string

const (
	CloseNormal   CloseClass = "normal"
	ClosePolicy   CloseClass = "policy"
	ClosePayload  CloseClass = "payload"
	CloseProvider CloseClass = "provider"
	CloseAbnormal CloseClass = "abnormal"
)

// Provider-specific (4xxx) codes that terminate the session: auth
// failures and malformed requests never succeed on retry.
const (
	codeBadRequest = 4000
	codeAuthFailed = 4001
)

// ClassifyClose buckets a WebSocket close code for diagnostics.
func ClassifyClose(code int) CloseClass {
	switch {
	case code == websocket.CloseNormalClosure || code == websocket.CloseGoingAway:
		return CloseNormal
	case code == websocket.ClosePolicyViolation:
		return ClosePolicy
	case code == websocket.CloseMessageTooBig:
		return ClosePayload
	case code >= 4000 && code <= 4999:
		return CloseProvider
	default:
		return CloseAbnormal
	}
}

// Reconnectable reports whether a close with this code should trigger
// the bounded reconnect path. Normal and going-away closes end the
// session; auth, bad-request, and policy codes are terminal.
func Reconnectable(code int) bool {
	switch ClassifyClose(code) {
	case CloseNormal, ClosePolicy:
		return false
	case CloseProvider:
		return code != codeBadRequest && code != codeAuthFailed
	default:
		return true
	}
}

// closeCode extracts the close code from a read error, defaulting to
// the abnormal-closure code for transport-level failures.
func closeCode(err error) int {
	if ce, ok := err.(*websocket.CloseError); ok {
		return ce.Code
	}
	return websocket.CloseAbnormalClosure
}
