// Package asr implements the ASR Stream Adapter: it owns one
// logical streaming recognizer connection per session, hides the
// transport behind an event channel, and handles keep-alive, bounded
// reconnection, and close-code diagnosis. The session shape (dial,
// read loop, write path, close handshake) is adapted from a Deepgram
// streaming provider, ported onto gorilla/websocket.
package asr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hubenschmidt/univoice/internal/metrics"
	"github.com/hubenschmidt/univoice/internal/model"
)

const (
	defaultEndpoint   = "wss://api.deepgram.com/v1/listen"
	defaultModel      = "nova-3"
	defaultSampleRate = 16000

	keepAliveInterval = 5 * time.Second
	silenceAfter      = 9 * time.Second
	silenceFrameMs    = 200

	maxReconnects      = 3
	reconnectBaseDelay = time.Second
	reconnectMaxDelay  = 30 * time.Second
)

// ErrNotConnected is returned by Connect when called on a closed adapter.
var ErrNotConnected = errors.New("asr: adapter closed")

// State is the adapter's connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateClosed       State = "closed"
)

// Config holds the recognizer connection parameters.
type Config struct {
	APIKey         string
	Endpoint       string
	Model          string
	SampleRate     int
	Interim        bool
	EndpointingMs  int
	UtteranceEndMs int
	SmartFormat    bool
	NoDelay        bool
	Logger         *slog.Logger
}

// DefaultConfig returns the documented recognizer defaults.
func DefaultConfig() Config {
	return Config{
		Endpoint:       defaultEndpoint,
		Model:          defaultModel,
		SampleRate:     defaultSampleRate,
		Interim:        true,
		EndpointingMs:  800,
		UtteranceEndMs: 1000,
	}
}

// EventKind discriminates the adapter's outbound events.
type EventKind int

const (
	KindTranscript EventKind = iota
	KindConnected
	KindDisconnected
	KindError
	KindMetadata
	KindUtteranceEnd
)

// Event is one occurrence on the adapter's event channel. Exactly the
// fields relevant to Kind are set.
type Event struct {
	Kind          EventKind
	Segment       model.TranscriptSegment
	Err           error
	Recoverable   bool
	CloseCode     int
	CloseClass    CloseClass
	Metadata      json.RawMessage
	LastWordEndMs int64
}

// ConnectionMetrics tracks the adapter's transport counters.
type ConnectionMetrics struct {
	BytesSent     int64
	MessagesSent  int64
	FramesDropped int64
	Reconnects    int64
	ConnectedAt   time.Time
}

// Adapter maintains the streaming recognizer session. One Adapter
// serves one pipeline session; create a new one per startListening.
type Adapter struct {
	cfg    Config
	log    *slog.Logger
	events chan Event

	mu          sync.Mutex
	state       State
	conn        *websocket.Conn
	language    string
	lastAudioAt time.Time
	metrics     ConnectionMetrics
	stop        chan struct{}

	writeMu sync.Mutex

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates an Adapter. Connect must be called before audio flows.
func New(cfg Config) *Adapter {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = defaultSampleRate
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	if cfg.SmartFormat && cfg.NoDelay {
		log.Warn("smart_format and no_delay both set; no_delay is ignored")
		cfg.NoDelay = false
	}
	return &Adapter{
		cfg:    cfg,
		log:    log,
		events: make(chan Event, 256),
		state:  StateDisconnected,
		stop:   make(chan struct{}),
	}
}

// Events returns the adapter's outbound event channel. It is closed
// after Disconnect once the read loop has exited.
func (a *Adapter) Events() <-chan Event { return a.events }

// primaryLanguages are the languages the default model accepts natively;
// anything else must be requested with the generic "multi" code.
var primaryLanguages = map[string]bool{"en": true, "en-US": true}

// resolveLanguage applies the source-language policy: nova-3-family
// models only accept their primary language directly and need "multi"
// for everything else.
func resolveLanguage(recognizerModel, language string) string {
	if language == "" {
		return "en"
	}
	if len(recognizerModel) >= 6 && recognizerModel[:6] == "nova-3" && !primaryLanguages[language] {
		return "multi"
	}
	return language
}

// buildURL constructs the streaming endpoint URL with the session's
// query parameters.
func (a *Adapter) buildURL(language string) (string, error) {
	u, err := url.Parse(a.cfg.Endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("model", a.cfg.Model)
	q.Set("language", resolveLanguage(a.cfg.Model, language))
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(a.cfg.SampleRate))
	q.Set("channels", "1")
	q.Set("punctuate", "true")
	if a.cfg.Interim {
		q.Set("interim_results", "true")
	}
	if a.cfg.EndpointingMs > 0 {
		q.Set("endpointing", strconv.Itoa(a.cfg.EndpointingMs))
	}
	if a.cfg.UtteranceEndMs > 0 {
		q.Set("utterance_end_ms", strconv.Itoa(a.cfg.UtteranceEndMs))
	}
	if a.cfg.SmartFormat {
		q.Set("smart_format", "true")
	} else if a.cfg.NoDelay {
		q.Set("no_delay", "true")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Connect establishes the streaming session for sourceLanguage and
// returns once the transport is ready. The read and keep-alive loops
// run until Disconnect or a non-recoverable close.
func (a *Adapter) Connect(ctx context.Context, sourceLanguage string) error {
	a.mu.Lock()
	if a.state == StateClosed {
		a.mu.Unlock()
		return ErrNotConnected
	}
	a.state = StateConnecting
	a.language = sourceLanguage
	a.mu.Unlock()

	conn, err := a.dial(ctx, sourceLanguage)
	if err != nil {
		a.mu.Lock()
		a.state = StateDisconnected
		a.mu.Unlock()
		return err
	}

	a.mu.Lock()
	a.conn = conn
	a.state = StateConnected
	a.metrics.ConnectedAt = time.Now()
	a.lastAudioAt = time.Now()
	a.mu.Unlock()

	a.emit(Event{Kind: KindConnected})

	a.wg.Add(2)
	go a.readLoop(conn)
	go a.keepAliveLoop()
	return nil
}

func (a *Adapter) dial(ctx context.Context, language string) (*websocket.Conn, error) {
	wsURL, err := a.buildURL(language)
	if err != nil {
		return nil, fmt.Errorf("asr: build url: %w", err)
	}
	headers := http.Header{}
	if a.cfg.APIKey != "" {
		headers.Set("Authorization", "Token "+a.cfg.APIKey)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, fmt.Errorf("asr: dial: %w", err)
	}
	return conn, nil
}

// SendAudio sends one raw PCM frame. Frames are silently dropped while
// the adapter is not connected (including during reconnection).
func (a *Adapter) SendAudio(frame []byte) {
	a.mu.Lock()
	conn := a.conn
	connected := a.state == StateConnected
	if connected {
		a.lastAudioAt = time.Now()
		a.metrics.BytesSent += int64(len(frame))
		a.metrics.MessagesSent++
	} else {
		a.metrics.FramesDropped++
	}
	a.mu.Unlock()

	if !connected {
		return
	}

	a.writeMu.Lock()
	err := conn.WriteMessage(websocket.BinaryMessage, frame)
	a.writeMu.Unlock()
	if err != nil {
		a.log.Warn("asr send audio failed", "error", err)
		return
	}
	metrics.ASRFramesSent.Inc()
	metrics.ASRBytesSent.Add(float64(len(frame)))
}

// IsConnected reports whether the transport is currently up.
func (a *Adapter) IsConnected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state == StateConnected
}

// ConnState returns the adapter's connection state.
func (a *Adapter) ConnState() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// GetConnectionMetrics returns a snapshot of the transport counters.
func (a *Adapter) GetConnectionMetrics() ConnectionMetrics {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.metrics
}

// Disconnect finalizes the stream, stops keep-alive, and releases the
// connection. Safe to call more than once.
func (a *Adapter) Disconnect() {
	a.closeOnce.Do(func() {
		close(a.stop)

		a.mu.Lock()
		conn := a.conn
		a.state = StateClosed
		a.mu.Unlock()

		if conn != nil {
			a.writeMu.Lock()
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Finalize"}`))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
			a.writeMu.Unlock()
			conn.Close()
		}

		a.wg.Wait()
		close(a.events)
	})
}

// keepAliveLoop sends a KeepAlive control message every 5s and, when no
// audio has been sent for ~9s, a short silence frame so the provider
// doesn't drop the idle stream.
func (a *Adapter) keepAliveLoop() {
	defer a.wg.Done()
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stop:
			return
		case <-ticker.C:
			a.mu.Lock()
			conn := a.conn
			connected := a.state == StateConnected
			idle := time.Since(a.lastAudioAt) >= silenceAfter
			a.mu.Unlock()
			if !connected || conn == nil {
				continue
			}

			a.writeMu.Lock()
			err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"KeepAlive"}`))
			if err == nil && idle {
				err = conn.WriteMessage(websocket.BinaryMessage, a.silenceFrame())
			}
			a.writeMu.Unlock()
			if err != nil {
				a.log.Warn("asr keep-alive failed", "error", err)
			}
		}
	}
}

// silenceFrame is ~200ms of 16-bit zeros at the configured sample rate.
func (a *Adapter) silenceFrame() []byte {
	samples := a.cfg.SampleRate * silenceFrameMs / 1000
	return make([]byte, samples*2)
}

// readLoop receives messages until the connection drops, then decides
// between graceful shutdown, bounded reconnection, and terminal failure.
func (a *Adapter) readLoop(conn *websocket.Conn) {
	defer a.wg.Done()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-a.stop:
				return
			default:
			}
			a.handleDisconnect(err)
			return
		}
		a.handleMessage(data)
	}
}

func (a *Adapter) handleDisconnect(err error) {
	code := closeCode(err)
	class := ClassifyClose(code)

	a.mu.Lock()
	a.state = StateDisconnected
	a.conn = nil
	a.mu.Unlock()

	a.emit(Event{Kind: KindDisconnected, CloseCode: code, CloseClass: class})

	if !Reconnectable(code) {
		if class != CloseNormal {
			a.emit(Event{
				Kind:        KindError,
				Err:         fmt.Errorf("asr: connection closed (%s, code %d): %w", class, code, err),
				Recoverable: false,
				CloseCode:   code,
				CloseClass:  class,
			})
		}
		return
	}

	a.reconnect(code)
}

// reconnect attempts up to maxReconnects re-dials with exponential
// backoff, cancelled immediately by Disconnect. Error events for failed
// attempts carry the close code that triggered the reconnection.
func (a *Adapter) reconnect(code int) {
	a.mu.Lock()
	a.state = StateReconnecting
	language := a.language
	a.mu.Unlock()

	delay := reconnectBaseDelay
	for attempt := 1; attempt <= maxReconnects; attempt++ {
		select {
		case <-a.stop:
			return
		case <-time.After(delay):
		}

		a.mu.Lock()
		a.metrics.Reconnects++
		a.mu.Unlock()
		metrics.ASRReconnects.Inc()
		a.log.Info("asr reconnecting", "attempt", attempt)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		conn, err := a.dial(ctx, language)
		cancel()
		if err == nil {
			select {
			case <-a.stop:
				conn.Close()
				return
			default:
			}
			a.mu.Lock()
			a.conn = conn
			a.state = StateConnected
			a.metrics.ConnectedAt = time.Now()
			a.lastAudioAt = time.Now()
			a.mu.Unlock()
			a.emit(Event{Kind: KindConnected})

			a.wg.Add(1)
			go a.readLoop(conn)
			return
		}

		a.log.Warn("asr reconnect failed", "attempt", attempt, "error", err)
		a.emit(Event{Kind: KindError, Err: err, Recoverable: attempt < maxReconnects,
			CloseCode: code, CloseClass: ClassifyClose(code)})

		delay *= 2
		if delay > reconnectMaxDelay {
			delay = reconnectMaxDelay
		}
	}

	a.mu.Lock()
	a.state = StateDisconnected
	a.mu.Unlock()
}

// emit delivers an event without blocking; a full channel drops the
// event, matching the pipeline's lossy-observer contract.
func (a *Adapter) emit(ev Event) {
	select {
	case a.events <- ev:
	default:
		a.log.Warn("asr event channel full, dropping", "kind", ev.Kind)
	}
}
