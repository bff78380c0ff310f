// Package cue defines the persisted cue-file data model (cues, fingerprint
// markers, microsignatures, subtitle markers, volume envelopes) and the
// catalogue manager that scans, caches, and serves them.
package cue

import (
	"fmt"
	"sort"
	"time"
)

// Action is the intervention a cue instructs the player to perform.
type Action string

const (
	ActionMute Action = "mute"
	ActionBlur Action = "blur"
	ActionSkip Action = "skip"
)

// SigType discriminates the kind of microsignature event.
type SigType string

const (
	SigOnset        SigType = "onset"
	SigEnergyPeak   SigType = "energy_peak"
	SigSpectralFlux SigType = "spectral_flux"
	SigSilenceStart SigType = "silence_start"
	SigSilenceEnd   SigType = "silence_end"
)

// DedupWindowMs is the minimum separation, in milliseconds, between the
// start times of two cues carrying the same word (invariant 2).
const DedupWindowMs = 100

// Region is an optional bounding box for visual (blur) cues, fractional
// coordinates in [0,1] relative to the frame.
type Region struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Cue is a single timed instruction keyed on content time.
type Cue struct {
	ID          string  `json:"id"`
	StartMs     int64   `json:"start_ms"`
	EndMs       int64   `json:"end_ms"`
	Action      Action  `json:"action"`
	Category    string  `json:"category"`
	Word        string  `json:"word,omitempty"`
	Region      *Region `json:"region,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
	Source      string  `json:"source,omitempty"`
	Matched     string  `json:"matched,omitempty"`
	Replacement string  `json:"replacement,omitempty"`
}

// Content identifies the title a cue file belongs to.
type Content struct {
	Title       string            `json:"title"`
	ContentID   string            `json:"content_id"`
	DurationMs  int64             `json:"duration_ms"`
	ExternalIDs map[string]string `json:"external_ids,omitempty"`
}

// FingerprintMarker pairs a time offset with an opaque fingerprint.
type FingerprintMarker struct {
	TimeMs int64  `json:"time_ms"`
	Data   []byte `json:"data"`
}

// Fingerprints is the ordered set of markers for one algorithm.
type Fingerprints struct {
	Algorithm  string              `json:"algorithm"`
	SampleRate int                 `json:"sample_rate"`
	Markers    []FingerprintMarker `json:"markers"`
}

// Microsignature is a single fine-grained event marker.
type Microsignature struct {
	TimeMs   int64   `json:"time_ms"`
	Type     SigType `json:"type"`
	Strength float64 `json:"strength"`
}

// MicrosignatureSequence groups signatures spanning one interval.
type MicrosignatureSequence struct {
	StartMs    int64             `json:"start_ms"`
	EndMs      int64             `json:"end_ms"`
	Signatures []Microsignature  `json:"signatures"`
}

// SubtitleMarker records a caption's text and its time in the cue file's
// content time, used by the subtitle-text sync engine.
type SubtitleMarker struct {
	TimeMs int64  `json:"time_ms"`
	Text   string `json:"text"`
}

// VolumeEnvelope is a low-rate loudness time series.
type VolumeEnvelope struct {
	SampleRateHz float64   `json:"sample_rate_hz"`
	StartTimeMs  int64     `json:"start_time_ms"`
	TimestampsMs []int64   `json:"timestamps_ms"`
	Samples      []float64 `json:"samples"`
}

// Metadata carries provenance for a cue file.
type Metadata struct {
	Created time.Time `json:"created"`
	Creator string    `json:"creator,omitempty"`
	Source  string    `json:"source,omitempty"`
}

// CurrentVersion is the cue-file schema version written by this implementation.
const CurrentVersion = "2.0"

// File is the full persisted cue-file document, content-addressed by its
// filename stem on disk (see Catalogue).
type File struct {
	Version         string                   `json:"version"`
	Content         Content                  `json:"content"`
	Cues            []Cue                    `json:"cues"`
	Fingerprints    *Fingerprints            `json:"fingerprints,omitempty"`
	Microsignatures []MicrosignatureSequence `json:"microsignatures,omitempty"`
	Subtitles       []SubtitleMarker         `json:"subtitles,omitempty"`
	VolumeEnvelope  *VolumeEnvelope          `json:"volume_envelope,omitempty"`
	Metadata        Metadata                 `json:"metadata"`
}

// SortCues orders cues by start_ms, stable so equal-start cues keep their
// relative order across a write→read round trip (invariant 7).
func (f *File) SortCues() {
	sort.SliceStable(f.Cues, func(i, j int) bool { return f.Cues[i].StartMs < f.Cues[j].StartMs })
}

// Validate checks the structural invariants a cue file must hold before it
// is persisted or trusted as sync input.
func (f *File) Validate() error {
	ids := make(map[string]bool, len(f.Cues))
	var maxEnd int64
	lastStartByWord := make(map[string][]int64)

	for _, c := range f.Cues {
		if c.StartMs < 0 || c.EndMs < 0 {
			return fmt.Errorf("cue %s: negative timestamp", c.ID)
		}
		if c.StartMs > c.EndMs {
			return fmt.Errorf("cue %s: start_ms %d > end_ms %d", c.ID, c.StartMs, c.EndMs)
		}
		if ids[c.ID] {
			return fmt.Errorf("duplicate cue id %q", c.ID)
		}
		ids[c.ID] = true
		if c.EndMs > maxEnd {
			maxEnd = c.EndMs
		}
		if c.Word != "" {
			for _, other := range lastStartByWord[c.Word] {
				diff := c.StartMs - other
				if diff < 0 {
					diff = -diff
				}
				if diff <= DedupWindowMs {
					return fmt.Errorf("cues for word %q within dedup window (%d <= %d)", c.Word, diff, DedupWindowMs)
				}
			}
			lastStartByWord[c.Word] = append(lastStartByWord[c.Word], c.StartMs)
		}
	}

	if f.Content.DurationMs < maxEnd {
		return fmt.Errorf("content duration_ms %d shorter than last cue end_ms %d", f.Content.DurationMs, maxEnd)
	}

	if f.Fingerprints != nil {
		var prev int64 = -1
		for _, m := range f.Fingerprints.Markers {
			if m.TimeMs <= prev {
				return fmt.Errorf("fingerprint marker times not strictly increasing at %d", m.TimeMs)
			}
			prev = m.TimeMs
		}
	}

	var prevSub int64 = -1
	for _, s := range f.Subtitles {
		if s.TimeMs < prevSub {
			return fmt.Errorf("subtitle markers not sorted by time")
		}
		prevSub = s.TimeMs
	}

	if f.VolumeEnvelope != nil {
		if len(f.VolumeEnvelope.TimestampsMs) != len(f.VolumeEnvelope.Samples) {
			return fmt.Errorf("volume envelope arrays differ in length: %d timestamps, %d samples",
				len(f.VolumeEnvelope.TimestampsMs), len(f.VolumeEnvelope.Samples))
		}
	}

	return nil
}
