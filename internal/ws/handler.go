// Package ws exposes the pipeline's command/event contract to the
// out-of-process UI over a WebSocket session: text frames carry
// validated commands and events, binary frames carry raw PCM audio.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/hubenschmidt/univoice/internal/events"
	"github.com/hubenschmidt/univoice/internal/orchestrator"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16384,
	WriteBufferSize: 16384,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// PipelineFactory builds a fresh pipeline for each UI session.
type PipelineFactory func() *orchestrator.Pipeline

// Handler manages WebSocket pipeline sessions.
type Handler struct {
	newPipeline PipelineFactory
}

// NewHandler creates a WebSocket handler.
func NewHandler(newPipeline PipelineFactory) *Handler {
	return &Handler{newPipeline: newPipeline}
}

// commandResponse acknowledges a command on the socket, separate from
// the event stream; getHistory answers through its Data field.
type commandResponse struct {
	Response events.Command `json:"response"`
	OK       bool           `json:"ok"`
	Error    string         `json:"error,omitempty"`
	Data     any            `json:"data,omitempty"`
}

// ServeHTTP upgrades the connection and runs the pipeline session.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	h.runSession(conn)
}

func (h *Handler) runSession(conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pipe := h.newPipeline()
	send := newFrameWriter(conn)

	// forward pipeline events to the socket until the session ends
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-pipe.Events():
				send.writeJSON(ev)
			}
		}
	}()

	var correlationID string
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			slog.Info("ui connection closed", "error", err)
			break
		}
		switch msgType {
		case websocket.BinaryMessage:
			pipe.SendAudio(data)
		case websocket.TextMessage:
			if id := h.handleCommand(ctx, pipe, send, data); id != "" {
				correlationID = id
			}
		}
	}

	// stop a still-active session when the UI goes away
	if st := pipe.State(); st == events.StateListening || st == events.StateStarting {
		if err := pipe.StopListening(correlationID); err != nil {
			slog.Warn("stop on disconnect failed", "error", err)
		}
	}
	cancel()
	<-done
}

// handleCommand validates and dispatches one inbound command frame,
// returning the session correlation id when the command starts one.
func (h *Handler) handleCommand(ctx context.Context, pipe *orchestrator.Pipeline, send *frameWriter, data []byte) string {
	var cmd events.CommandEnvelope
	if err := json.Unmarshal(data, &cmd); err != nil {
		send.writeJSON(invalidEvent(err))
		return ""
	}
	if err := events.ValidateCommand(cmd); err != nil {
		send.writeJSON(invalidEvent(err))
		return ""
	}

	switch cmd.Command {
	case events.CommandStartListening:
		var p events.StartListeningParams
		_ = json.Unmarshal(cmd.Params, &p)
		err := pipe.StartListening(ctx, p.SourceLanguage, p.TargetLanguage, p.CorrelationID)
		send.respond(cmd.Command, err, nil)
		if err == nil {
			return p.CorrelationID
		}

	case events.CommandStopListening:
		var p events.StopListeningParams
		_ = json.Unmarshal(cmd.Params, &p)
		send.respond(cmd.Command, pipe.StopListening(p.CorrelationID), nil)

	case events.CommandGetHistory:
		p := events.DefaultGetHistoryParams()
		_ = json.Unmarshal(cmd.Params, &p)
		send.respond(cmd.Command, nil, pipe.History(p.Limit, p.Offset))

	case events.CommandClearHistory:
		pipe.ClearHistory()
		send.respond(cmd.Command, nil, nil)

	case events.CommandGenerateVocabulary:
		var p events.GenerateVocabularyParams
		_ = json.Unmarshal(cmd.Params, &p)
		send.respond(cmd.Command, pipe.GenerateVocabulary(ctx, p.CorrelationID), nil)

	case events.CommandGenerateFinalReport:
		var p events.GenerateFinalReportParams
		_ = json.Unmarshal(cmd.Params, &p)
		send.respond(cmd.Command, pipe.GenerateFinalReport(ctx, p.CorrelationID), nil)

	case events.CommandTranslateParagraph:
		var p events.TranslateParagraphParams
		_ = json.Unmarshal(cmd.Params, &p)
		send.respond(cmd.Command, pipe.TranslateParagraph(p), nil)
	}
	return ""
}

func invalidEvent(cause error) events.Event {
	ev, err := events.NewErrorEvent("", events.ErrorData{
		Code:        events.CodeInvalidEvent,
		Message:     cause.Error(),
		Recoverable: false,
	})
	if err != nil {
		slog.Error("build invalid-event error", "error", err)
	}
	return ev
}

// frameWriter serializes concurrent writers onto one connection.
type frameWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newFrameWriter(conn *websocket.Conn) *frameWriter {
	return &frameWriter{conn: conn}
}

func (w *frameWriter) writeJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("marshal frame", "error", err)
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("write frame", "error", err)
	}
}

func (w *frameWriter) respond(cmd events.Command, err error, data any) {
	resp := commandResponse{Response: cmd, OK: err == nil, Data: data}
	if err != nil {
		resp.Error = err.Error()
	}
	w.writeJSON(resp)
}
