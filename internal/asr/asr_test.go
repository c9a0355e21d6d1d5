package asr

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// ---- URL / language-policy tests ----

func TestBuildURL_Defaults(t *testing.T) {
	a := New(DefaultConfig())

	rawURL, err := a.buildURL("en")
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse URL: %v", err)
	}
	q := u.Query()

	assertEqual(t, "model", "nova-3", q.Get("model"))
	assertEqual(t, "language", "en", q.Get("language"))
	assertEqual(t, "encoding", "linear16", q.Get("encoding"))
	assertEqual(t, "sample_rate", "16000", q.Get("sample_rate"))
	assertEqual(t, "interim_results", "true", q.Get("interim_results"))
	assertEqual(t, "endpointing", "800", q.Get("endpointing"))
	assertEqual(t, "utterance_end_ms", "1000", q.Get("utterance_end_ms"))
}

func TestResolveLanguage_MultiPolicy(t *testing.T) {
	cases := []struct {
		model, lang, want string
	}{
		{"nova-3", "en", "en"},
		{"nova-3", "ja", "multi"},
		{"nova-3-general", "de", "multi"},
		{"nova-2", "ja", "ja"},
		{"nova-3", "", "en"},
	}
	for _, c := range cases {
		if got := resolveLanguage(c.model, c.lang); got != c.want {
			t.Errorf("resolveLanguage(%q, %q) = %q, want %q", c.model, c.lang, got, c.want)
		}
	}
}

func TestBuildURL_SmartFormatPrecludesNoDelay(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SmartFormat = true
	cfg.NoDelay = true
	a := New(cfg)

	rawURL, err := a.buildURL("en")
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}
	u, _ := url.Parse(rawURL)
	q := u.Query()
	assertEqual(t, "smart_format", "true", q.Get("smart_format"))
	if _, ok := q["no_delay"]; ok {
		t.Error("expected no_delay to be dropped when smart_format is set")
	}
}

// ---- message parsing tests ----

func TestHandleMessage_FinalResult(t *testing.T) {
	a := New(DefaultConfig())
	a.language = "en"

	a.handleMessage([]byte(`{
		"type": "Results",
		"is_final": true,
		"start": 1.0,
		"duration": 2.5,
		"channel": {"alternatives": [{"transcript": "Hello world", "confidence": 0.95}]}
	}`))

	ev := <-a.events
	if ev.Kind != KindTranscript {
		t.Fatalf("expected transcript event, got kind %d", ev.Kind)
	}
	seg := ev.Segment
	if !seg.IsFinal {
		t.Error("expected IsFinal=true")
	}
	assertEqual(t, "text", "Hello world", seg.Text)
	if seg.Confidence != 0.95 {
		t.Errorf("expected confidence 0.95, got %f", seg.Confidence)
	}
	if seg.StartMs != 1000 || seg.EndMs != 3500 {
		t.Errorf("unexpected window: %d-%d", seg.StartMs, seg.EndMs)
	}
	if seg.ID == "" {
		t.Error("expected non-empty segment id")
	}
}

func TestHandleMessage_EmptyTranscriptIgnored(t *testing.T) {
	a := New(DefaultConfig())
	a.handleMessage([]byte(`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"","confidence":0}]}}`))
	select {
	case ev := <-a.events:
		t.Fatalf("expected no event for empty transcript, got kind %d", ev.Kind)
	default:
	}
}

func TestHandleMessage_MetadataPassthrough(t *testing.T) {
	a := New(DefaultConfig())
	raw := `{"type":"Metadata","request_id":"abc"}`
	a.handleMessage([]byte(raw))

	ev := <-a.events
	if ev.Kind != KindMetadata {
		t.Fatalf("expected metadata event, got kind %d", ev.Kind)
	}
	if string(ev.Metadata) != raw {
		t.Errorf("metadata not passed through unchanged: %s", ev.Metadata)
	}
}

func TestHandleMessage_UtteranceEnd(t *testing.T) {
	a := New(DefaultConfig())
	a.handleMessage([]byte(`{"type":"UtteranceEnd","last_word_end":3.2}`))

	ev := <-a.events
	if ev.Kind != KindUtteranceEnd {
		t.Fatalf("expected utterance-end event, got kind %d", ev.Kind)
	}
	if ev.LastWordEndMs != 3200 {
		t.Errorf("expected 3200ms, got %d", ev.LastWordEndMs)
	}
}

func TestHandleMessage_ParseErrorRecoverable(t *testing.T) {
	a := New(DefaultConfig())
	a.handleMessage([]byte(`{invalid`))

	ev := <-a.events
	if ev.Kind != KindError {
		t.Fatalf("expected error event, got kind %d", ev.Kind)
	}
	if !ev.Recoverable {
		t.Error("parse errors must be recoverable")
	}
}

// ---- close-code classification tests ----

func TestClassifyClose(t *testing.T) {
	cases := []struct {
		code int
		want CloseClass
	}{
		{1000, CloseNormal},
		{1001, CloseNormal},
		{1006, CloseAbnormal},
		{1008, ClosePolicy},
		{1009, ClosePayload},
		{4000, CloseProvider},
		{4001, CloseProvider},
		{4500, CloseProvider},
	}
	for _, c := range cases {
		if got := ClassifyClose(c.code); got != c.want {
			t.Errorf("ClassifyClose(%d) = %s, want %s", c.code, got, c.want)
		}
	}
}

func TestReconnectable(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{1000, false},
		{1001, false},
		{1006, true},
		{1008, false},
		{1009, true},
		{4000, false}, // bad request
		{4001, false}, // auth
		{4500, true},  // other provider code
	}
	for _, c := range cases {
		if got := Reconnectable(c.code); got != c.want {
			t.Errorf("Reconnectable(%d) = %v, want %v", c.code, got, c.want)
		}
	}
}

// ---- loopback session tests ----

// echoServer upgrades /listen connections and pushes canned frames.
func echoServer(t *testing.T, handle func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		handle(conn)
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestConnect_TranscriptFlow(t *testing.T) {
	srv := echoServer(t, func(conn *websocket.Conn) {
		err := conn.WriteMessage(websocket.TextMessage, []byte(
			`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"hi there","confidence":0.9}]}}`))
		if err != nil {
			return
		}
		// hold the connection open until the client closes
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.Endpoint = wsURL(srv)
	a := New(cfg)
	defer a.Disconnect()

	if err := a.Connect(context.Background(), "en"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !a.IsConnected() {
		t.Fatal("expected connected state")
	}

	var gotTranscript bool
	deadline := time.After(2 * time.Second)
	for !gotTranscript {
		select {
		case ev := <-a.events:
			if ev.Kind == KindTranscript {
				assertEqual(t, "text", "hi there", ev.Segment.Text)
				gotTranscript = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for transcript event")
		}
	}

	a.SendAudio(make([]byte, 640))
	m := a.GetConnectionMetrics()
	if m.MessagesSent != 1 || m.BytesSent != 640 {
		t.Errorf("unexpected metrics: %+v", m)
	}
}

func TestReconnect_AbnormalClose(t *testing.T) {
	var dials atomic.Int32
	srv := echoServer(t, func(conn *websocket.Conn) {
		if dials.Add(1) == 1 {
			// drop the first connection without a close handshake; the
			// client sees an abnormal closure (1006)
			conn.Close()
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.Endpoint = wsURL(srv)
	a := New(cfg)
	defer a.Disconnect()

	if err := a.Connect(context.Background(), "en"); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	var connects, disconnects int
	deadline := time.After(5 * time.Second)
	for connects < 2 {
		select {
		case ev := <-a.events:
			switch ev.Kind {
			case KindConnected:
				connects++
			case KindDisconnected:
				disconnects++
				if ev.CloseClass != CloseAbnormal {
					t.Errorf("expected abnormal close class, got %s", ev.CloseClass)
				}
			}
		case <-deadline:
			t.Fatalf("timed out: connects=%d disconnects=%d", connects, disconnects)
		}
	}

	if disconnects != 1 {
		t.Errorf("expected 1 disconnect, got %d", disconnects)
	}
	if m := a.GetConnectionMetrics(); m.Reconnects != 1 {
		t.Errorf("expected 1 reconnect attempt, got %d", m.Reconnects)
	}
	if !a.IsConnected() {
		t.Error("expected connected state after reconnect")
	}
}

func TestSendAudio_DroppedWhenDisconnected(t *testing.T) {
	a := New(DefaultConfig())
	a.SendAudio(make([]byte, 640))
	m := a.GetConnectionMetrics()
	if m.FramesDropped != 1 {
		t.Errorf("expected 1 dropped frame, got %d", m.FramesDropped)
	}
	if m.MessagesSent != 0 {
		t.Errorf("expected no sent messages, got %d", m.MessagesSent)
	}
}

func TestSilenceFrame_Length(t *testing.T) {
	a := New(DefaultConfig())
	// 200ms of 16-bit mono at 16kHz
	if got := len(a.silenceFrame()); got != 6400 {
		t.Errorf("silence frame length = %d, want 6400", got)
	}
}

// ---- helpers ----

func assertEqual(t *testing.T, label, want, got string) {
	t.Helper()
	if want != got {
		t.Errorf("%s: want %q, got %q", label, want, got)
	}
}
