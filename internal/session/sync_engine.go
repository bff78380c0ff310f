package session

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/cuetrace/opencue/internal/cue"
)

// SyncResult is the outcome of feeding one subtitle line to a
// SubtitleSyncEngine.
type SyncResult struct {
	Synced         bool
	OffsetMs       int64
	Confidence     float64
	MatchedSubtitle string
	Method         string // "subtitle_match", "pending_confirmation", "no_match", "skipped"
}

// SubtitleSyncEngine narrows a rough video-time estimate to an exact cue-
// file offset by matching subtitle text against a cue file's subtitle
// markers (and, as a weaker backup, against the words its cues carry).
// No audio fingerprinting involved — the same subtitle text appears
// across streaming platforms even when their timing differs.
type SubtitleSyncEngine struct {
	cues      []cue.Cue
	subtitles []cue.SubtitleMarker

	synced        bool
	offsetMs      int64
	confidence    float64
	lastMatchTime time.Time
	history       []int64

	searchWindowMs    int64
	minSubtitleLength int
	requiredMatches   int
}

// NewSubtitleSyncEngine builds an engine over f's cues and subtitle
// markers. requiredMatches of 0 defaults to 1 (sync confirmed on the
// first matching offset).
func NewSubtitleSyncEngine(f *cue.File, requiredMatches int) *SubtitleSyncEngine {
	if requiredMatches <= 0 {
		requiredMatches = 1
	}
	return &SubtitleSyncEngine{
		cues:              f.Cues,
		subtitles:         f.Subtitles,
		searchWindowMs:    120_000,
		minSubtitleLength: 8,
		requiredMatches:   requiredMatches,
	}
}

// ProcessSubtitle attempts to sync (or re-confirm sync) against one
// observed subtitle line at videoTimeMs.
func (e *SubtitleSyncEngine) ProcessSubtitle(text string, videoTimeMs int64) SyncResult {
	if len(strings.TrimSpace(text)) < e.minSubtitleLength {
		return SyncResult{Synced: e.synced, OffsetMs: e.offsetMs, Confidence: e.confidence, Method: "skipped"}
	}

	normalized := normalizeSubtitleText(text)
	cueTimeMs, matchedText, found := e.findMatch(normalized, videoTimeMs)
	if !found {
		if e.synced && !e.lastMatchTime.IsZero() && time.Since(e.lastMatchTime) > 30*time.Second {
			e.confidence -= 0.1
			if e.confidence < 0.3 {
				e.confidence = 0.3
			}
		}
		return SyncResult{Synced: e.synced, OffsetMs: e.offsetMs, Confidence: e.confidence, Method: "no_match"}
	}

	newOffset := cueTimeMs - videoTimeMs
	e.history = append(e.history, newOffset)
	if len(e.history) > 10 {
		e.history = e.history[1:]
	}

	if !e.offsetConsistent(newOffset) {
		return SyncResult{Synced: false, OffsetMs: newOffset, Confidence: 0.3, MatchedSubtitle: truncate(matchedText, 50), Method: "pending_confirmation"}
	}

	e.synced = true
	e.offsetMs = e.stableOffset()
	e.confidence = minFloat(0.95, 0.5+float64(len(e.history))*0.1)
	e.lastMatchTime = time.Now()

	return SyncResult{
		Synced:          true,
		OffsetMs:        e.offsetMs,
		Confidence:      e.confidence,
		MatchedSubtitle: truncate(matchedText, 50),
		Method:          "subtitle_match",
	}
}

func (e *SubtitleSyncEngine) offsetConsistent(newOffset int64) bool {
	if len(e.history) < e.requiredMatches {
		return false
	}
	recent := e.history[len(e.history)-e.requiredMatches:]
	var sum int64
	for _, o := range recent {
		sum += o
	}
	avg := sum / int64(len(recent))
	for _, o := range recent {
		if absInt64(o-avg) > 2000 {
			return false
		}
	}
	return true
}

func (e *SubtitleSyncEngine) stableOffset() int64 {
	if len(e.history) == 0 {
		return 0
	}
	tail := e.history
	if len(tail) > 5 {
		tail = tail[len(tail)-5:]
	}
	sorted := append([]int64(nil), tail...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[len(sorted)/2]
}

// findMatch searches subtitle markers first (Jaccard word-set similarity,
// threshold 0.6), then falls back to a weaker substring match against cue
// words (fixed score 0.7).
func (e *SubtitleSyncEngine) findMatch(normalized string, videoTimeMs int64) (cueTimeMs int64, matchedText string, found bool) {
	var windowStart, windowEnd int64
	if e.synced {
		estimated := videoTimeMs + e.offsetMs
		windowStart, windowEnd = estimated-10_000, estimated+10_000
	} else {
		windowStart = videoTimeMs - e.searchWindowMs
		if windowStart < 0 {
			windowStart = 0
		}
		windowEnd = videoTimeMs + e.searchWindowMs
	}

	bestScore := 0.0
	for _, sub := range e.subtitles {
		if sub.TimeMs < windowStart || sub.TimeMs > windowEnd {
			continue
		}
		score := jaccardSimilarity(normalized, normalizeSubtitleText(sub.Text))
		if score > bestScore && score >= 0.6 {
			bestScore = score
			cueTimeMs, matchedText, found = sub.TimeMs, sub.Text, true
		}
	}
	if found {
		return
	}

	for _, c := range e.cues {
		if c.StartMs < windowStart || c.StartMs > windowEnd {
			continue
		}
		word := strings.ToLower(c.Word)
		if word == "" || !strings.Contains(normalized, word) {
			continue
		}
		const backupScore = 0.7
		if !found || backupScore > bestScore {
			bestScore = backupScore
			cueTimeMs, matchedText, found = c.StartMs, word, true
		}
	}
	return
}

// CueTime converts a video-time estimate to cue-file content time.
func (e *SubtitleSyncEngine) CueTime(videoTimeMs int64) int64 { return videoTimeMs + e.offsetMs }

// IsSynced reports whether at least one consistent offset has been found.
func (e *SubtitleSyncEngine) IsSynced() bool { return e.synced }

// OffsetMs returns the current stable offset.
func (e *SubtitleSyncEngine) OffsetMs() int64 { return e.offsetMs }

// Confidence returns the current sync confidence.
func (e *SubtitleSyncEngine) Confidence() float64 { return e.confidence }

var subtitlePunctRe = regexp.MustCompile(`[^\w\s']`)

func normalizeSubtitleText(text string) string {
	lower := strings.ToLower(text)
	stripped := subtitlePunctRe.ReplaceAllString(lower, "")
	return strings.Join(strings.Fields(stripped), " ")
}

func jaccardSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for w := range setA {
		if setB[w] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		out[w] = true
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
