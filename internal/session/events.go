package session

// OutEvent is one message sent down the client message channel. Every
// outbound message carries a type and a payload; Timestamp is set for
// commands where the original derived from a wall-clock stamp.
type OutEvent struct {
	Type      string `json:"type"`
	Payload   any    `json:"payload"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// EventCallback delivers one outbound message to the connected client.
// Implementations must be safe to call from any goroutine that owns a
// Session, though in practice only the session's own goroutine calls it.
type EventCallback func(OutEvent)

// overlayPayload starts a cue: mute/blur/skip the interval on the player.
type overlayPayload struct {
	CueID       string  `json:"cue_id"`
	Action      string  `json:"action"`
	StartMs     int64   `json:"start_ms"`
	EndMs       int64   `json:"end_ms"`
	Category    string  `json:"category"`
	Matched     string  `json:"matched,omitempty"`
	Replacement string  `json:"replacement,omitempty"`
	Source      string  `json:"source"`
	ContentID   string  `json:"content_id,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
	ContextType string  `json:"context_type,omitempty"`
}

type cueEndPayload struct {
	CueID string `json:"cue_id"`
}

type cuePayload struct {
	Event    string  `json:"event"`
	CueID    string  `json:"cue_id"`
	Action   string  `json:"action"`
	Category string  `json:"category"`
	StartMs  int64   `json:"start_ms"`
	EndMs    int64   `json:"end_ms"`
	Word     string  `json:"word,omitempty"`
	Region   *Region `json:"region,omitempty"`
}

// Region mirrors cue.Region for the wire payload without importing the
// full cue file model into the message layer.
type Region struct {
	X, Y, W, H float64
}

type syncStatePayload struct {
	State      string  `json:"state"`
	Mode       string  `json:"mode,omitempty"`
	OffsetMs   int64   `json:"offset_ms,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Matched    string  `json:"matched,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// EventFeed is a bounded ring buffer of recently dispatched overlay
// commands, kept for a dashboard to display without re-deriving them from
// session state. Purely additive: nothing reads it back to resolve cue or
// sync state.
type EventFeed struct {
	entries []overlayPayload
	cap     int
	next    int
	full    bool
}

// NewEventFeed creates a ring buffer holding at most capacity entries.
func NewEventFeed(capacity int) *EventFeed {
	if capacity <= 0 {
		capacity = 100
	}
	return &EventFeed{entries: make([]overlayPayload, capacity), cap: capacity}
}

func (f *EventFeed) record(p overlayPayload) {
	f.entries[f.next] = p
	f.next = (f.next + 1) % f.cap
	if f.next == 0 {
		f.full = true
	}
}

// Recent returns up to limit of the most recently recorded events, newest
// first.
func (f *EventFeed) Recent(limit int) []overlayPayload {
	n := f.next
	total := n
	if f.full {
		total = f.cap
	}
	if limit <= 0 || limit > total {
		limit = total
	}

	out := make([]overlayPayload, 0, limit)
	idx := n
	for range limit {
		idx--
		if idx < 0 {
			idx = f.cap - 1
		}
		out = append(out, f.entries[idx])
	}
	return out
}
