package fingerprint

import "sync"

// SyncStatus reports a ContentMatcher's current state after AddAudio.
type SyncStatus string

const (
	StatusSearching SyncStatus = "searching"
	StatusOK        SyncStatus = "ok"
	StatusLost      SyncStatus = "lost"
)

// SyncResult is returned by AddAudio.
type SyncResult struct {
	Synced         bool
	Status         SyncStatus
	ContentTimeMs  int64
	OffsetMs       int64
	Confidence     float64
	AvgConfidence  float64
	TimeSinceMatch int64
	Err            error
}

const (
	defaultTargetDurationMs = 5000
	defaultThreshold        = 0.5
	lossOfSyncMs            = 30000
	confidenceHistoryLen    = 10
)

// ContentMatcher buffers audio until enough has accumulated, matches it
// against known fingerprint markers, and tracks a smoothed wall-clock ->
// content-time offset across calls.
type ContentMatcher struct {
	backend    Backend
	markers    []Marker
	sampleRate int
	threshold  float64

	targetDurationMs int64

	mu                sync.Mutex
	buffer            [][]float32
	bufferDurationMs  int64
	synced            bool
	offsetMs          int64
	haveOffset        bool
	lastMatchWallMs   int64
	haveLastMatch     bool
	confidenceHistory []float64
}

// NewContentMatcher creates a matcher over markers, fingerprinting live
// audio with backend at sampleRate.
func NewContentMatcher(backend Backend, markers []Marker, sampleRate int) *ContentMatcher {
	return &ContentMatcher{
		backend:          backend,
		markers:          markers,
		sampleRate:       sampleRate,
		threshold:        defaultThreshold,
		targetDurationMs: defaultTargetDurationMs,
	}
}

// AddAudio appends a chunk of audio captured at wallTimeMs and, once
// enough has accumulated, attempts a match. Returns nil whenever the
// buffered audio is shorter than the target duration; each match attempt
// keeps only the newer half of the buffer, so this recurs between matches.
func (c *ContentMatcher) AddAudio(chunk []float32, wallTimeMs int64) *SyncResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.markers) == 0 {
		return &SyncResult{Err: ErrNoMatch}
	}

	c.buffer = append(c.buffer, chunk)
	chunkDurationMs := int64(len(chunk)) * 1000 / int64(c.sampleRate)
	c.bufferDurationMs += chunkDurationMs

	if c.bufferDurationMs < c.targetDurationMs {
		return nil
	}

	combined := flatten(c.buffer)

	overlapChunks := len(c.buffer) / 2
	c.buffer = c.buffer[overlapChunks:]
	c.bufferDurationMs = 0
	for _, ch := range c.buffer {
		c.bufferDurationMs += int64(len(ch)) * 1000 / int64(c.sampleRate)
	}

	liveFP, ok := Fingerprint(c.backend, combined, c.sampleRate)
	if !ok {
		return c.statusResult(wallTimeMs)
	}

	marker, score, found := Match(liveFP, c.markers, c.threshold)
	if !found {
		return c.statusResult(wallTimeMs)
	}

	newOffset := wallTimeMs - marker.TimeMs
	if !c.haveOffset {
		c.offsetMs = newOffset
		c.haveOffset = true
	} else {
		c.offsetMs = int64(0.7*float64(c.offsetMs) + 0.3*float64(newOffset))
	}

	c.synced = true
	c.lastMatchWallMs = wallTimeMs
	c.haveLastMatch = true
	c.confidenceHistory = append(c.confidenceHistory, score)
	if len(c.confidenceHistory) > confidenceHistoryLen {
		c.confidenceHistory = c.confidenceHistory[1:]
	}

	return &SyncResult{
		Synced:        true,
		Status:        StatusOK,
		ContentTimeMs: marker.TimeMs,
		OffsetMs:      c.offsetMs,
		Confidence:    score,
		AvgConfidence: average(c.confidenceHistory),
	}
}

func (c *ContentMatcher) statusResult(wallTimeMs int64) *SyncResult {
	if c.synced && c.haveLastMatch {
		sinceMatch := wallTimeMs - c.lastMatchWallMs
		if sinceMatch > lossOfSyncMs {
			c.synced = false
			return &SyncResult{
				Synced:         false,
				Status:         StatusLost,
				TimeSinceMatch: sinceMatch,
			}
		}
	}

	status := StatusSearching
	if c.synced {
		status = StatusOK
	}
	return &SyncResult{Synced: c.synced, Status: status}
}

// ContentTime estimates content time from a wall-clock time, using the
// current smoothed offset. The second return is false until a first
// match has established an offset.
func (c *ContentMatcher) ContentTime(wallTimeMs int64) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.haveOffset {
		return 0, false
	}
	return wallTimeMs - c.offsetMs, true
}

// IsSynced reports whether the matcher currently considers itself synced.
func (c *ContentMatcher) IsSynced() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.synced
}

// Reset clears all sync and buffering state.
func (c *ContentMatcher) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buffer = nil
	c.bufferDurationMs = 0
	c.synced = false
	c.haveOffset = false
	c.offsetMs = 0
	c.haveLastMatch = false
	c.confidenceHistory = nil
}

func flatten(chunks [][]float32) []float32 {
	var n int
	for _, c := range chunks {
		n += len(c)
	}
	out := make([]float32, 0, n)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

func average(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
