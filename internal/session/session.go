// Package session is the sync session manager (C5): one Session per
// connected client, orchestrating realtime subtitle detection, cue-file
// playback sync (subtitle-text, fingerprint, or timestamp-only), seek
// handling, and the two recording modes. Manager owns the dependencies
// shared across sessions (the cue catalogue, detector, optional advisor
// and transcriber) and the session registry.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cuetrace/opencue/internal/advisor"
	"github.com/cuetrace/opencue/internal/audio"
	"github.com/cuetrace/opencue/internal/cue"
	"github.com/cuetrace/opencue/internal/cueerr"
	"github.com/cuetrace/opencue/internal/fingerprint"
	"github.com/cuetrace/opencue/internal/history"
	"github.com/cuetrace/opencue/internal/metrics"
	"github.com/cuetrace/opencue/internal/profanity"
	"github.com/cuetrace/opencue/internal/transcript"
)

// Mode is the operating mode a session has been switched into.
type Mode string

const (
	ModeRealtime  Mode = "realtime"
	ModeCueFile   Mode = "cue_file"
	ModeHybrid    Mode = "hybrid"
	ModeRecording Mode = "recording"
)

// lookaheadMs is how early a cue is allowed to trigger before its start
// time, compensating for network/render latency; timestampLookaheadMs
// applies instead when no sync data narrows the position estimate at all.
const (
	lookaheadMs          = 500
	timestampLookaheadMs = 200
	subtitleDedupWindowMs = 300
	subtitleDedupCap      = 10
)

// Manager owns the dependencies shared by every session and the session
// registry, mirroring the teacher's one-handler-config-per-process shape.
type Manager struct {
	Catalogue   *cue.Catalogue
	Detector    *profanity.Detector
	Advisor     advisor.Advisor // optional
	Transcriber transcript.Transcriber // optional
	History     *history.Store // optional
	Capture     *audio.Pipeline // optional, used for C2 fingerprint sync + precision recording
	Fingerprint fingerprint.Backend // optional

	RecordingsDir string

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager builds a Manager. Advisor, Transcriber, History, Capture and
// Fingerprint may be left nil; every session-level operation that needs
// one degrades gracefully (see field-level comments on Manager).
func NewManager(catalogue *cue.Catalogue, detector *profanity.Detector) *Manager {
	return &Manager{
		Catalogue: catalogue,
		Detector:  detector,
		sessions:  make(map[string]*Session),
	}
}

// subtitleRecord is one entry in the subtitle dedup ring.
type subtitleRecord struct {
	text       string
	positionMs int64
}

// Session is the mutable state for one connected client. Every field is
// owned by the single goroutine that drains this session's inbound
// message channel (internal/ws) — no locking within a session — except
// the synced/syncOffsetMs/syncConfidence triple, which runFingerprintSync
// also writes from its own goroutine and which syncMu guards.
type Session struct {
	ID        string
	ContentID string
	Mode      Mode
	CueFileID string

	mgr       *Manager
	sendEvent EventCallback
	createdAt time.Time

	file *cue.File

	triggered map[string]bool
	active    map[string]bool

	subtitleRing []subtitleRecord

	syncEngine      *SubtitleSyncEngine
	contentMatcher  *fingerprint.ContentMatcher

	syncMu         sync.Mutex
	synced         bool
	syncOffsetMs   int64
	syncConfidence float64

	lastPositionMs  int64

	recording        recordingState
	precisionRecording *precisionRecordingState

	feed *EventFeed
}

// NewSession creates a session bound to one client connection.
func (m *Manager) NewSession(sendEvent EventCallback) *Session {
	s := &Session{
		ID:        uuid.NewString(),
		Mode:      ModeRealtime,
		mgr:       m,
		sendEvent: sendEvent,
		createdAt: time.Now(),
		triggered: make(map[string]bool),
		active:    make(map[string]bool),
		feed:      NewEventFeed(100),
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	metrics.SessionsActive.Inc()
	metrics.SessionsTotal.Inc()

	if m.History != nil {
		if err := m.History.CreateSession(s.ID, ""); err != nil {
			slog.Warn("history create session", "session_id", s.ID, "error", err)
		}
	}

	return s
}

// Close tears down a session: it is removed from the registry and, if a
// precision recording or fingerprint capture is in flight, that capture
// is stopped.
func (s *Session) Close() {
	s.mgr.mu.Lock()
	delete(s.mgr.sessions, s.ID)
	s.mgr.mu.Unlock()
	metrics.SessionsActive.Dec()

	captureInUse := s.precisionRecording != nil || s.contentMatcher != nil
	if s.precisionRecording != nil {
		s.precisionRecording.stop()
		s.precisionRecording = nil
	}
	if captureInUse && s.mgr.Capture != nil {
		s.mgr.Capture.Stop()
	}
	if s.mgr.History != nil {
		if err := s.mgr.History.EndSession(s.ID); err != nil {
			slog.Warn("history end session", "session_id", s.ID, "error", err)
		}
	}
}

func (s *Session) logEvent(kind, cueID, detail string) {
	if s.mgr.History == nil {
		return
	}
	ev := history.Event{
		ID:         uuid.NewString(),
		SessionID:  s.ID,
		Kind:       kind,
		CueID:      cueID,
		Detail:     detail,
		OccurredAt: time.Now(),
	}
	if err := s.mgr.History.AppendEvent(ev); err != nil {
		slog.Warn("history append event", "session_id", s.ID, "error", err)
	}
}

// SetMode switches the session's operating mode, optionally loading a cue
// file and (re)establishing sync for cue_file/hybrid modes.
func (s *Session) SetMode(mode string, cueFileID string) error {
	m := Mode(mode)
	switch m {
	case ModeRealtime, ModeCueFile, ModeHybrid, ModeRecording:
	default:
		return fmt.Errorf("%w: mode %q", cueerr.ErrProtocolBadMessage, mode)
	}

	s.Mode = m
	s.CueFileID = cueFileID

	if cueFileID != "" && (m == ModeCueFile || m == ModeHybrid) {
		return s.loadAndSync(cueFileID)
	}
	return nil
}

// LoadCueFile loads identifier from the catalogue and starts sync,
// independent of the current mode switch (used by the explicit
// loadCueFile message).
func (s *Session) LoadCueFile(identifier string) error {
	return s.loadAndSync(identifier)
}

func (s *Session) loadAndSync(identifier string) error {
	f, err := s.mgr.Catalogue.Load(identifier)
	if err != nil {
		return err
	}

	s.file = f
	s.CueFileID = identifier
	s.triggered = make(map[string]bool)
	s.active = make(map[string]bool)
	s.setSyncState(false, 0, 0)
	s.syncEngine = nil
	s.contentMatcher = nil

	s.startSync(f)
	return nil
}

// startSync picks the sync strategy per the priority order: subtitle
// markers first (most reliable across differently-timed streams), then
// fingerprints against a live capture, then timestamp-only with offset 0.
func (s *Session) startSync(f *cue.File) {
	if len(f.Subtitles) > 0 {
		s.syncEngine = NewSubtitleSyncEngine(f, 1)
		s.sendSyncState("syncing", "subtitle", 0, 0, "", "waiting_for_subtitles")
		return
	}

	if f.Fingerprints != nil && len(f.Fingerprints.Markers) > 0 && s.mgr.Capture != nil && s.mgr.Fingerprint != nil {
		markers := make([]fingerprint.Marker, len(f.Fingerprints.Markers))
		for i, mk := range f.Fingerprints.Markers {
			markers[i] = fingerprint.Marker{TimeMs: mk.TimeMs, Data: mk.Data}
		}
		s.contentMatcher = fingerprint.NewContentMatcher(s.mgr.Fingerprint, markers, f.Fingerprints.SampleRate)
		if err := s.mgr.Capture.Start(audio.ModeAuto, audio.DefaultConfig()); err != nil {
			slog.Warn("fingerprint sync: capture start failed, falling back to timestamp mode", "session_id", s.ID, "error", err)
			s.contentMatcher = nil
			s.setSyncState(true, 0, 0)
			s.sendSyncState("synced", "timestamp", 0, 0, "", "capture_unavailable")
			return
		}
		s.sendSyncState("syncing", "fingerprint", 0, 0, "", "")
		go s.runFingerprintSync()
		return
	}

	s.setSyncState(true, 0, 0)
	s.sendSyncState("synced", "timestamp", 0, 0, "", "no_sync_data")
}

// runFingerprintSync drains captured audio against the cue file's
// fingerprint markers until the session loses its cue file or the
// capture is stopped. It runs on its own goroutine (C2, an independent
// capture/match loop feeding state back into the session).
func (s *Session) runFingerprintSync() {
	start := time.Now()
	for {
		chunk, ok := s.mgr.Capture.NextChunk(1 * time.Second)
		if !ok {
			return
		}
		if s.contentMatcher == nil {
			return
		}
		wallMs := time.Since(start).Milliseconds()
		result := s.contentMatcher.AddAudio(chunk.Samples, wallMs)
		if result == nil || result.Err != nil {
			continue
		}
		switch result.Status {
		case fingerprint.StatusOK:
			s.setSyncState(true, result.OffsetMs, result.Confidence)
			metrics.SyncConfidence.Set(result.Confidence)
			s.sendSyncState("synced", "fingerprint", result.OffsetMs, result.Confidence, "", "")
		case fingerprint.StatusLost:
			s.setSyncState(false, 0, result.Confidence)
			s.sendSyncState("lost", "fingerprint", 0, result.Confidence, "", "loss_of_sync")
		}
	}
}

// setSyncState updates the shared sync triple under syncMu, the one piece
// of Session state runFingerprintSync writes from outside the session's
// owning goroutine.
func (s *Session) setSyncState(synced bool, offsetMs int64, confidence float64) {
	s.syncMu.Lock()
	s.synced = synced
	s.syncOffsetMs = offsetMs
	s.syncConfidence = confidence
	s.syncMu.Unlock()
}

// syncSnapshot reads the shared sync triple under syncMu.
func (s *Session) syncSnapshot() (synced bool, offsetMs int64, confidence float64) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()
	return s.synced, s.syncOffsetMs, s.syncConfidence
}

func (s *Session) sendSyncState(state, mode string, offsetMs int64, confidence float64, matched, reason string) {
	s.sendEvent(OutEvent{Type: "syncState", Payload: syncStatePayload{
		State: state, Mode: mode, OffsetMs: offsetMs, Confidence: confidence, Matched: matched, Reason: reason,
	}})
}

// ListCueFiles returns every catalogued cue file's metadata.
func (s *Session) ListCueFiles() []cue.Info { return s.mgr.Catalogue.Available() }

// SearchCueFiles returns catalogue entries matching query.
func (s *Session) SearchCueFiles(query string) []cue.Info { return s.mgr.Catalogue.Search(query) }

// sessionInfo is the snapshot returned by getSessionInfo (supplemented
// from the original implementation's get_stats).
type sessionInfo struct {
	ID           string  `json:"id"`
	Mode         string  `json:"mode"`
	ContentID    string  `json:"content_id,omitempty"`
	CueFile      string  `json:"cue_file,omitempty"`
	Synced       bool    `json:"synced"`
	SyncOffsetMs int64   `json:"sync_offset_ms"`
	Confidence   float64 `json:"confidence"`
	ActiveCues   int     `json:"active_cues"`
	Recording    bool    `json:"recording"`
	RecordedCues int     `json:"recorded_cues"`
	UptimeMs     int64   `json:"uptime_ms"`
}

// GetSessionInfo returns this session's current snapshot.
func (s *Session) GetSessionInfo() sessionInfo {
	synced, offsetMs, confidence := s.syncSnapshot()
	return sessionInfo{
		ID:           s.ID,
		Mode:         string(s.Mode),
		ContentID:    s.ContentID,
		CueFile:      s.CueFileID,
		Synced:       synced,
		SyncOffsetMs: offsetMs,
		Confidence:   confidence,
		ActiveCues:   len(s.active),
		Recording:    s.recording.active,
		RecordedCues: len(s.recording.cues),
		UptimeMs:     time.Since(s.createdAt).Milliseconds(),
	}
}

// ManagerStats summarises every live session, the message layer's
// getSessionInfo-for-all-sessions counterpart (supplemented, from the
// original implementation's SessionManager.get_stats).
type ManagerStats struct {
	TotalSessions int           `json:"total_sessions"`
	Sessions      []sessionInfo `json:"sessions"`
}

// Stats snapshots every session currently registered with m.
func (m *Manager) Stats() ManagerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := ManagerStats{TotalSessions: len(m.sessions)}
	for _, s := range m.sessions {
		out.Sessions = append(out.Sessions, s.GetSessionInfo())
	}
	return out
}

// isDuplicateSubtitle reports whether text at positionMs matches a
// recently seen (text, position) pair within the dedup window, and
// records the observation either way — the ring always advances.
func (s *Session) isDuplicateSubtitle(text string, positionMs int64) bool {
	for _, rec := range s.subtitleRing {
		if rec.text == text && absInt64(rec.positionMs-positionMs) < subtitleDedupWindowMs {
			return true
		}
	}
	s.subtitleRing = append(s.subtitleRing, subtitleRecord{text: text, positionMs: positionMs})
	if len(s.subtitleRing) > subtitleDedupCap {
		s.subtitleRing = s.subtitleRing[1:]
	}
	return false
}

// HandleSubtitle processes one subtitle line from the client: realtime
// detection and dispatch, subtitle-driven recording capture, and feeding
// the subtitle-text sync engine when one is active.
func (s *Session) HandleSubtitle(text string, startMs, endMs, positionMs int64, contentID string) {
	if contentID != "" {
		s.ContentID = contentID
	}
	if strings.TrimSpace(text) == "" {
		return
	}
	if s.isDuplicateSubtitle(text, positionMs) {
		return
	}

	if s.recording.active {
		s.recordSubtitle(text, positionMs)
	}

	if s.Mode == ModeRealtime || s.Mode == ModeHybrid || s.recording.active {
		s.detectAndDispatch(text, startMs, endMs, contentID)
	}

	if s.syncEngine != nil {
		result := s.syncEngine.ProcessSubtitle(text, positionMs)
		wasSynced, _, _ := s.syncSnapshot()
		if result.Synced && !wasSynced {
			s.setSyncState(true, result.OffsetMs, result.Confidence)
			metrics.SyncConfidence.Set(result.Confidence)
			s.sendSyncState("synced", "subtitle", result.OffsetMs, result.Confidence, result.MatchedSubtitle, "")
		} else if result.Method == "subtitle_match" {
			s.setSyncState(wasSynced, result.OffsetMs, result.Confidence)
		}
	}
}

// detectAndDispatch scores text with the profanity detector and dispatches
// one overlay per hit, consulting the contextual advisor for context-
// sensitive detections when one is configured.
func (s *Session) detectAndDispatch(text string, startMs, endMs int64, contentID string) {
	detections := s.mgr.Detector.Detect(text)
	for _, d := range detections {
		contextType := ""
		if isContextSensitive(d) && s.mgr.Advisor != nil {
			verdict := s.consultAdvisor(text, d)
			if !verdict.ShouldFilter {
				slog.Info("detection suppressed by advisor", "word", d.Display, "reason", verdict.Reason)
				continue
			}
			contextType = verdict.ContextType
		}

		c := transcript.EmitFromSubtitle(d, startMs, endMs)
		c.ID = "cue_" + uuid.NewString()[:8]

		s.dispatchOverlay(c, contentID, contextType)
		if s.recording.active {
			s.appendRecordedCue(c)
		}
		metrics.DetectionsTotal.WithLabelValues(d.Severity).Inc()
	}
}

// consultAdvisor runs the 5s-deadline contextual advisor call. On error
// or timeout, ShouldFilter=true is the safe default.
func (s *Session) consultAdvisor(text string, d profanity.Detection) advisor.Verdict {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	verdict, err := s.mgr.Advisor.Analyze(ctx, text, d.Word, d.Category, text)
	if err != nil {
		if ctx.Err() != nil {
			metrics.AdvisorTimeouts.Inc()
		}
		metrics.Errors.WithLabelValues("advisor", "call_failed").Inc()
		return advisor.Verdict{ShouldFilter: true, Reason: "advisor_error"}
	}
	return verdict
}

func (s *Session) dispatchOverlay(c cue.Cue, contentID, contextType string) {
	s.sendEvent(OutEvent{Type: "overlay", Timestamp: time.Now().UnixMilli(), Payload: overlayPayload{
		CueID:       c.ID,
		Action:      string(c.Action),
		StartMs:     c.StartMs,
		EndMs:       c.EndMs,
		Category:    c.Category,
		Matched:     c.Matched,
		Replacement: c.Replacement,
		Source:      c.Source,
		ContentID:   contentID,
		Confidence:  c.Confidence,
		ContextType: contextType,
	}})
	s.feed.record(overlayPayload{
		CueID: c.ID, Action: string(c.Action), StartMs: c.StartMs, EndMs: c.EndMs,
		Category: c.Category, Matched: c.Matched, Replacement: c.Replacement, Source: c.Source, ContentID: contentID,
	})
	metrics.CuesDispatched.WithLabelValues("start").Inc()
	s.logEvent("overlay", c.ID, c.Matched)
}

// isContextSensitive reports whether a detection needs a contextual
// advisor's judgement: the detector scores context-required entries at a
// reduced 0.75 confidence, and blasphemy-category hits are always
// re-checked regardless of score.
func isContextSensitive(d profanity.Detection) bool {
	return d.Confidence <= 0.8 || strings.Contains(d.Category, "blasphemy")
}
