package session

import (
	"github.com/cuetrace/opencue/internal/metrics"
)

// HandlePosition updates the session's last known playback position and,
// in cue_file/hybrid mode, evaluates cues against the effective content
// time derived from whichever sync source is active.
func (s *Session) HandlePosition(positionMs int64) {
	s.lastPositionMs = positionMs
	if s.Mode != ModeCueFile && s.Mode != ModeHybrid {
		return
	}
	s.checkCues(s.effectiveContentTime(positionMs))
}

// effectiveContentTime maps a reported player position to cue-file
// content time using whichever sync source currently has an offset:
// subtitle-text sync, then fingerprint sync, then the raw position
// (timestamp-only mode, offset 0).
func (s *Session) effectiveContentTime(positionMs int64) int64 {
	if s.syncEngine != nil && s.syncEngine.IsSynced() {
		return s.syncEngine.CueTime(positionMs)
	}
	if s.contentMatcher != nil && s.contentMatcher.IsSynced() {
		if t, ok := s.contentMatcher.ContentTime(positionMs); ok {
			return t
		}
	}
	_, offsetMs, _ := s.syncSnapshot()
	return positionMs + offsetMs
}

// checkCues triggers or ends cues per the position-tracking invariant:
// lookahead is tighter when no sync source narrows position at all.
func (s *Session) checkCues(contentTimeMs int64) {
	if s.file == nil {
		return
	}

	ahead := int64(lookaheadMs)
	if s.syncEngine == nil && s.contentMatcher == nil {
		ahead = timestampLookaheadMs
	}

	for _, c := range s.file.Cues {
		switch {
		case !s.triggered[c.ID] && c.StartMs <= contentTimeMs+ahead && contentTimeMs < c.EndMs:
			s.triggered[c.ID] = true
			s.active[c.ID] = true
			s.dispatchOverlay(c, s.ContentID, "")
			s.logEvent("cue_file_trigger", c.ID, c.Word)
		case s.active[c.ID] && contentTimeMs >= c.EndMs:
			delete(s.active, c.ID)
			s.sendEvent(OutEvent{Type: "cueEnd", Payload: cueEndPayload{CueID: c.ID}})
			metrics.CuesDispatched.WithLabelValues("end").Inc()
		}
	}
}

// HandlePlayback records a playback state transition. "seeked" triggers
// seek handling against position_ms; "playing"/"paused" are recorded as
// activity only.
func (s *Session) HandlePlayback(state string, positionMs int64, contentID string) {
	if contentID != "" {
		s.ContentID = contentID
	}
	if state == "seeked" {
		s.HandleSeek(positionMs)
	}
	s.lastPositionMs = positionMs
}

// HandleSeek clears triggered-state for cues now ahead of the seek point
// and ends any active cue the seek has moved outside of. The sync engines
// are not told about the seek: their offset and match history carry over
// unchanged.
func (s *Session) HandleSeek(positionMs int64) {
	contentTimeMs := s.effectiveContentTime(positionMs)

	if s.file != nil {
		for _, c := range s.file.Cues {
			if s.triggered[c.ID] && c.StartMs > contentTimeMs {
				delete(s.triggered, c.ID)
			}
		}
		for _, c := range s.file.Cues {
			if s.active[c.ID] && (c.EndMs <= contentTimeMs || c.StartMs > contentTimeMs) {
				delete(s.active, c.ID)
				s.sendEvent(OutEvent{Type: "cueEnd", Payload: cueEndPayload{CueID: c.ID}})
			}
		}
	}

	s.lastPositionMs = positionMs
}
