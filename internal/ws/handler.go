// Package ws upgrades an HTTP connection to a WebSocket and runs one
// session's message loop, translating the client message channel (§6)
// into calls against internal/session and outbound events back onto the
// connection.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/cuetrace/opencue/internal/cueerr"
	"github.com/cuetrace/opencue/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16384,
	WriteBufferSize: 16384,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler upgrades connections and runs sync sessions against a shared
// Manager.
type Handler struct {
	mgr *session.Manager
}

// NewHandler creates a WebSocket handler bound to mgr.
func NewHandler(mgr *session.Manager) *Handler {
	return &Handler{mgr: mgr}
}

// inbound is the envelope every client message arrives in.
type inbound struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// ServeHTTP upgrades the connection and runs the session until the client
// disconnects.
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

	sendEvent := newEventSender(conn)
	sess := h.mgr.NewSession(sendEvent)
	defer sess.Close()

	slog.Info("session started", "session_id", sess.ID)
	defer slog.Info("session ended", "session_id", sess.ID)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			sendEvent(session.OutEvent{Type: "error", Payload: errPayload(cueerr.ErrProtocolBadMessage, "malformed message")})
			continue
		}

		dispatch(ctx, sess, msg, sendEvent)
	}
}

func dispatch(ctx context.Context, sess *session.Session, msg inbound, sendEvent session.EventCallback) {
	switch msg.Type {
	case "subtitle":
		var p subtitlePayload
		if !decode(msg.Payload, &p, sendEvent) {
			return
		}
		sess.HandleSubtitle(p.Text, p.StartMs, p.EndMs, p.PositionMs, p.ContentID)

	case "playback":
		var p playbackPayload
		if !decode(msg.Payload, &p, sendEvent) {
			return
		}
		sess.HandlePlayback(p.State, p.PositionMs, p.ContentID)

	case "position":
		var p positionPayload
		if !decode(msg.Payload, &p, sendEvent) {
			return
		}
		sess.HandlePosition(p.PositionMs)

	case "setMode":
		var p setModePayload
		if !decode(msg.Payload, &p, sendEvent) {
			return
		}
		if err := sess.SetMode(p.Mode, p.CueFile); err != nil {
			sendEvent(session.OutEvent{Type: "error", Payload: errPayload(err, "setMode failed")})
			return
		}
		sendEvent(session.OutEvent{Type: "modeSet", Payload: map[string]string{"mode": p.Mode}})

	case "loadCueFile":
		var p loadCueFilePayload
		if !decode(msg.Payload, &p, sendEvent) {
			return
		}
		if err := sess.LoadCueFile(p.ID); err != nil {
			sendEvent(session.OutEvent{Type: "error", Payload: errPayload(err, "loadCueFile failed")})
			return
		}
		sendEvent(session.OutEvent{Type: "cueFileLoaded", Payload: map[string]string{"id": p.ID}})

	case "listCueFiles":
		sendEvent(session.OutEvent{Type: "cueFileList", Payload: sess.ListCueFiles()})

	case "searchCueFiles":
		var p searchCueFilesPayload
		if !decode(msg.Payload, &p, sendEvent) {
			return
		}
		sendEvent(session.OutEvent{Type: "cueFileSearchResults", Payload: sess.SearchCueFiles(p.Query)})

	case "getSessionInfo":
		sendEvent(session.OutEvent{Type: "sessionInfo", Payload: sess.GetSessionInfo()})

	case "startRecording":
		var p recordingTitlePayload
		if !decode(msg.Payload, &p, sendEvent) {
			return
		}
		sendEvent(session.OutEvent{Type: "recordingStarted", Payload: sess.StartRecording(p.Title, p.ContentID)})

	case "stopRecording":
		info, err := sess.StopRecording()
		if err != nil {
			sendEvent(session.OutEvent{Type: "error", Payload: errPayload(err, "stopRecording failed")})
			return
		}
		sendEvent(session.OutEvent{Type: "recordingStopped", Payload: info})

	case "abortRecording":
		discardedCues, discardedSubtitles := sess.AbortRecording()
		sendEvent(session.OutEvent{Type: "recordingAborted", Payload: map[string]int{
			"discarded_cues":      discardedCues,
			"discarded_subtitles": discardedSubtitles,
		}})

	case "pauseRecording":
		sendEvent(session.OutEvent{Type: "recordingPaused", Payload: map[string]bool{"paused": sess.PauseRecording()}})

	case "resumeRecording":
		var p resumeRecordingPayload
		if !decode(msg.Payload, &p, sendEvent) {
			return
		}
		sess.ResumeRecording(p.PositionMs)
		sendEvent(session.OutEvent{Type: "recordingResumed", Payload: map[string]int64{"position_ms": p.PositionMs}})

	case "getRecordingStatus":
		sendEvent(session.OutEvent{Type: "recordingStatus", Payload: sess.GetRecordingStatus()})

	case "checkPrecisionRequirements":
		sendEvent(session.OutEvent{Type: "precisionRequirements", Payload: sess.CheckPrecisionRequirements()})

	case "startPrecisionRecording":
		var p startPrecisionPayload
		if !decode(msg.Payload, &p, sendEvent) {
			return
		}
		speed := p.PlaybackSpeed
		if speed <= 0 {
			speed = 1
		}
		info, err := sess.StartPrecisionRecording(p.Title, p.ContentID, speed, p.VideoStartPositionMs)
		if err != nil {
			sendEvent(session.OutEvent{Type: "error", Payload: errPayload(err, "startPrecisionRecording failed")})
			return
		}
		sendEvent(session.OutEvent{Type: "precisionRecordingStarted", Payload: info})

	case "stopPrecisionRecording":
		var p stopPrecisionPayload
		if !decode(msg.Payload, &p, sendEvent) {
			return
		}
		info, err := sess.StopPrecisionRecording(ctx, p.Language)
		if err != nil {
			sendEvent(session.OutEvent{Type: "error", Payload: errPayload(err, "stopPrecisionRecording failed")})
			return
		}
		sendEvent(session.OutEvent{Type: "precisionRecordingStopped", Payload: info})

	case "abortPrecisionRecording":
		sess.AbortPrecisionRecording()
		sendEvent(session.OutEvent{Type: "precisionRecordingAborted", Payload: map[string]bool{"aborted": true}})

	case "getPrecisionRecordingStatus":
		sendEvent(session.OutEvent{Type: "precisionRecordingStatus", Payload: sess.GetPrecisionRecordingStatus()})

	default:
		sendEvent(session.OutEvent{Type: "error", Payload: errPayload(cueerr.ErrProtocolBadMessage, "unknown message type "+msg.Type)})
	}
}

func decode(raw json.RawMessage, v any, sendEvent session.EventCallback) bool {
	if len(raw) == 0 {
		return true
	}
	if err := json.Unmarshal(raw, v); err != nil {
		sendEvent(session.OutEvent{Type: "error", Payload: errPayload(cueerr.ErrProtocolBadMessage, "malformed payload")})
		return false
	}
	return true
}

// errorCode maps a returned error to the sentinel kind (§7) a client can
// branch on, falling back to the error's own message when it doesn't wrap
// one of ours.
func errPayload(err error, fallback string) map[string]string {
	codes := []struct {
		err  error
		name string
	}{
		{cueerr.ErrCaptureUnavailable, "CaptureUnavailable"},
		{cueerr.ErrTranscriberUnavailable, "TranscriberUnavailable"},
		{cueerr.ErrTranscriberFailed, "TranscriberFailed"},
		{cueerr.ErrCueFileNotFound, "CueFileNotFound"},
		{cueerr.ErrCueFileCorrupt, "CueFileCorrupt"},
		{cueerr.ErrPersistIO, "PersistIO"},
		{cueerr.ErrInvalidState, "InvalidState"},
		{cueerr.ErrProtocolBadMessage, "ProtocolBadMessage"},
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return map[string]string{"code": c.name, "message": err.Error()}
		}
	}
	msg := fallback
	if err != nil {
		msg = err.Error()
	}
	return map[string]string{"code": "Unknown", "message": msg}
}

// newEventSender serializes outbound events onto one mutex-guarded
// connection, the teacher's per-connection send-lock idiom.
func newEventSender(conn *websocket.Conn) session.EventCallback {
	var mu sync.Mutex
	return func(ev session.OutEvent) {
		mu.Lock()
		defer mu.Unlock()

		data, err := json.Marshal(ev)
		if err != nil {
			slog.Error("marshal event", "type", ev.Type, "error", err)
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			slog.Warn("write event", "type", ev.Type, "error", err)
		}
	}
}
