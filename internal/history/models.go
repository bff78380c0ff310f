// Package history is an optional, purely additive activity log for sync
// sessions: when it started/ended and the mode/cue events it produced.
// Nothing in sync or cue-state resolution ever reads it back; losing it
// changes no session behaviour.
package history

import "time"

// Session represents one connected client, from first message to
// disconnect.
type Session struct {
	ID         string     `json:"id"`
	ContentID  string     `json:"content_id,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	EventCount int        `json:"event_count,omitempty"`
}

// Event is one notable thing that happened in a session: a mode
// transition, a sync state change, or a dispatched cue.
type Event struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Kind      string    `json:"kind"`
	CueID     string    `json:"cue_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
