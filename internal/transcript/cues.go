package transcript

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/cuetrace/opencue/internal/cue"
	"github.com/cuetrace/opencue/internal/profanity"
)

// DefaultPadBeforeMs and DefaultPadAfterMs bracket a transcription-derived
// mute cue around the recognised word span.
const (
	DefaultPadBeforeMs = 50
	DefaultPadAfterMs  = 50
)

// SubtitlePadBeforeMs, SubtitlePadAfterMs and SubtitleMinDurationMs bracket
// a realtime, subtitle-derived cue, wider than a transcription cue since a
// subtitle's fractional span is a coarser location than a word timestamp.
const (
	SubtitlePadBeforeMs   = 400
	SubtitlePadAfterMs    = 150
	SubtitleMinDurationMs = 400
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9']+`)

func normalizeToken(word string) string {
	return strings.Trim(nonAlnum.ReplaceAllString(strings.ToLower(word), " "), " ")
}

// EmitFromTranscription scans a full transcription's word timings against
// the detector and emits one mute cue per lexicon hit, padded by
// padBeforeMs/padAfterMs and shifted by videoOffsetMs.
func EmitFromTranscription(words []WordTiming, detector *profanity.Detector, padBeforeMs, padAfterMs, videoOffsetMs int64) []cue.Cue {
	var cues []cue.Cue
	for _, w := range words {
		token := normalizeToken(w.Word)
		if token == "" {
			continue
		}
		detections := detector.Detect(token)
		if len(detections) == 0 {
			continue
		}
		d := detections[0]

		startMs := w.StartMs - padBeforeMs + videoOffsetMs
		if startMs < 0 {
			startMs = 0
		}
		endMs := w.EndMs + padAfterMs + videoOffsetMs

		cues = append(cues, cue.Cue{
			ID:          uuid.NewString(),
			StartMs:     startMs,
			EndMs:       endMs,
			Action:      cue.ActionMute,
			Category:    d.Category,
			Word:        d.Word,
			Confidence:  w.Confidence,
			Source:      "whisper",
			Matched:     d.Matched,
			Replacement: d.Replacement,
		})
	}
	return cues
}

// EmitFromSubtitle derives a mute cue from a single detection inside a
// realtime subtitle line spanning [subtitleStartMs, subtitleEndMs], given
// the detection's fractional position within that line's text. Uses the
// package default padding and minimum duration.
func EmitFromSubtitle(d profanity.Detection, subtitleStartMs, subtitleEndMs int64) cue.Cue {
	return EmitFromSubtitleWithConfig(d, subtitleStartMs, subtitleEndMs, SubtitlePadBeforeMs, SubtitlePadAfterMs, SubtitleMinDurationMs)
}

// EmitFromSubtitleWithConfig is EmitFromSubtitle with explicit padding and
// minimum-duration parameters, split out so both can be tuned (or a
// deployment with a smaller default padding can actually exercise the
// minimum-duration clamp, which the package defaults trigger only when
// the start is clamped at zero, since before+after already exceeds the
// default minimum).
func EmitFromSubtitleWithConfig(d profanity.Detection, subtitleStartMs, subtitleEndMs, padBeforeMs, padAfterMs, minDurationMs int64) cue.Cue {
	span := subtitleEndMs - subtitleStartMs
	wordStart := subtitleStartMs + int64(float64(span)*d.PositionStart)
	wordEnd := subtitleStartMs + int64(float64(span)*d.PositionEnd)

	startMs := wordStart - padBeforeMs
	if startMs < 0 {
		startMs = 0
	}
	endMs := wordEnd + padAfterMs

	if endMs-startMs < minDurationMs {
		mid := (startMs + endMs) / 2
		startMs = mid - minDurationMs/2
		if startMs < 0 {
			startMs = 0
		}
		endMs = startMs + minDurationMs
	}

	return cue.Cue{
		ID:          uuid.NewString(),
		StartMs:     startMs,
		EndMs:       endMs,
		Action:      cue.ActionMute,
		Category:    d.Category,
		Word:        d.Word,
		Confidence:  d.Confidence,
		Source:      "subtitle",
		Matched:     d.Matched,
		Replacement: d.Replacement,
	}
}
