package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cuetrace/opencue/internal/cue"
	"github.com/cuetrace/opencue/internal/cueerr"
)

// recordingState is the subtitle-driven recording mode's mutable state
// (the original implementation's deprecated-but-kept path: every
// dispatched overlay and accepted subtitle line is appended live, with an
// incremental temp-file save after each cue so a crash loses at most one
// cue's worth of progress).
type recordingState struct {
	active          bool
	title           string
	startTime       time.Time
	startPositionMs int64
	cues            []cue.Cue
	subtitles       []cue.SubtitleMarker
	tempPath        string
}

// StartRecording switches the session into recording mode and begins
// accumulating detections from the current position.
func (s *Session) StartRecording(title, contentID string) recordingStartedInfo {
	if title == "" {
		title = fmt.Sprintf("Recording %s", s.ID)
	}
	s.Mode = ModeRecording
	s.ContentID = contentID
	s.recording = recordingState{
		active:          true,
		title:           title,
		startTime:       time.Now(),
		startPositionMs: s.lastPositionMs,
	}
	return recordingStartedInfo{Title: title, StartPositionMs: s.recording.startPositionMs}
}

type recordingStartedInfo struct {
	Title           string `json:"title"`
	StartPositionMs int64  `json:"start_position_ms"`
}

// recordSubtitle appends a subtitle snapshot to the in-progress recording,
// used later to rebuild a subtitle-text sync engine for this recording's
// cue file. Subtitles shorter than 10 characters or a near-duplicate
// (same text within 1s) of one of the last 5 recorded are skipped.
func (s *Session) recordSubtitle(text string, positionMs int64) {
	if len(text) < 10 {
		return
	}
	recent := s.recording.subtitles
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	for _, existing := range recent {
		if existing.Text == text && absInt64(existing.TimeMs-positionMs) < 1000 {
			return
		}
	}
	s.recording.subtitles = append(s.recording.subtitles, cue.SubtitleMarker{TimeMs: positionMs, Text: text})
}

// appendRecordedCue adds a freshly dispatched detection to the recording
// and incrementally saves progress to a temp file. A cue whose word already
// has a recorded cue starting within cue.DedupWindowMs is skipped.
func (s *Session) appendRecordedCue(c cue.Cue) {
	for _, existing := range s.recording.cues {
		if existing.Word == c.Word && absInt64(existing.StartMs-c.StartMs) <= cue.DedupWindowMs {
			return
		}
	}
	c.ID = fmt.Sprintf("cue_%04d", len(s.recording.cues)+1)
	s.recording.cues = append(s.recording.cues, c)
	s.incrementalSave()
}

func (s *Session) tempFilePath() string {
	if s.recording.tempPath != "" {
		return s.recording.tempPath
	}
	dir := s.mgr.RecordingsDir
	if dir == "" && s.mgr.Catalogue != nil {
		dir = s.mgr.Catalogue.Dir()
	}
	s.recording.tempPath = filepath.Join(dir, "."+cue.SanitizeFilename(s.recording.title)+"_recording.tmp")
	return s.recording.tempPath
}

func (s *Session) incrementalSave() {
	f := s.buildCueFile(true)
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		slog.Warn("recording incremental save: marshal", "session_id", s.ID, "error", err)
		return
	}
	if err := os.WriteFile(s.tempFilePath(), data, 0o644); err != nil {
		slog.Warn("recording incremental save: write", "session_id", s.ID, "error", err)
	}
}

func (s *Session) buildCueFile(inProgress bool) *cue.File {
	durationMs := s.lastPositionMs - s.recording.startPositionMs
	if durationMs < 0 {
		durationMs = s.lastPositionMs
	}
	subtitles := s.recording.subtitles
	if inProgress && len(subtitles) > 50 {
		subtitles = subtitles[len(subtitles)-50:]
	}
	return &cue.File{
		Version: cue.CurrentVersion,
		Content: cue.Content{
			Title:      s.recording.title,
			ContentID:  s.ContentID,
			DurationMs: durationMs,
		},
		Cues:      s.recording.cues,
		Subtitles: subtitles,
		Metadata: cue.Metadata{
			Created: time.Now(),
			Source:  "subtitle_recording",
		},
	}
}

type recordingStoppedInfo struct {
	CueCount      int    `json:"cue_count"`
	SubtitleCount int    `json:"subtitle_count"`
	DurationMs    int64  `json:"duration_ms"`
	Path          string `json:"path"`
}

// StopRecording seals the recording as a .opencue file in the catalogue,
// removes the temp file, and returns the session to realtime mode.
func (s *Session) StopRecording() (recordingStoppedInfo, error) {
	if !s.recording.active {
		return recordingStoppedInfo{}, fmt.Errorf("%w: not recording", cueerr.ErrInvalidState)
	}

	f := s.buildCueFile(false)
	f.SortCues()
	path, err := s.mgr.Catalogue.Add(f, cue.SanitizeFilename(s.recording.title))
	if err != nil {
		return recordingStoppedInfo{}, err
	}
	s.removeTempFile()

	info := recordingStoppedInfo{
		CueCount:      len(f.Cues),
		SubtitleCount: len(f.Subtitles),
		DurationMs:    f.Content.DurationMs,
		Path:          path,
	}
	s.recording = recordingState{}
	s.Mode = ModeRealtime
	return info, nil
}

// AbortRecording discards everything captured and returns to realtime.
func (s *Session) AbortRecording() (discardedCues, discardedSubtitles int) {
	discardedCues = len(s.recording.cues)
	discardedSubtitles = len(s.recording.subtitles)
	s.removeTempFile()
	s.recording = recordingState{}
	s.Mode = ModeRealtime
	return
}

// PauseRecording suspends appending without discarding progress.
func (s *Session) PauseRecording() bool {
	if !s.recording.active {
		return false
	}
	s.recording.active = false
	return true
}

// ResumeRecording resumes a paused recording, re-anchoring the start
// position only if nothing has been recorded yet.
func (s *Session) ResumeRecording(positionMs int64) {
	if len(s.recording.cues) == 0 {
		s.recording.startTime = time.Now()
		s.recording.startPositionMs = positionMs
	}
	s.recording.active = true
	s.Mode = ModeRecording
}

type recordingStatusInfo struct {
	Recording       bool  `json:"recording"`
	CueCount        int   `json:"cue_count"`
	ElapsedMs       int64 `json:"elapsed_ms,omitempty"`
	StartPositionMs int64 `json:"start_position_ms,omitempty"`
	PositionMs      int64 `json:"current_position_ms,omitempty"`
}

// GetRecordingStatus reports the current subtitle-driven recording state.
func (s *Session) GetRecordingStatus() recordingStatusInfo {
	if !s.recording.active {
		return recordingStatusInfo{Recording: false, CueCount: len(s.recording.cues)}
	}
	return recordingStatusInfo{
		Recording:       true,
		CueCount:        len(s.recording.cues),
		ElapsedMs:       s.lastPositionMs - s.recording.startPositionMs,
		StartPositionMs: s.recording.startPositionMs,
		PositionMs:      s.lastPositionMs,
	}
}

func (s *Session) removeTempFile() {
	if s.recording.tempPath == "" {
		return
	}
	if err := os.Remove(s.recording.tempPath); err != nil && !os.IsNotExist(err) {
		slog.Warn("recording temp file cleanup", "session_id", s.ID, "error", err)
	}
}
