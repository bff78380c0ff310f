package transcript

import (
	"testing"

	"github.com/cuetrace/opencue/internal/profanity"
)

func testDetector() *profanity.Detector {
	lex := &profanity.Lexicon{
		Version: "1.0",
		Categories: map[string]profanity.Category{
			"profanity": {
				"strong": []profanity.Entry{
					{Word: "damn", Display: "d***"},
				},
			},
		},
	}
	return profanity.NewDetector(lex)
}

func TestEmitFromTranscriptionEmitsCueForHit(t *testing.T) {
	words := []WordTiming{
		{Word: "well", StartMs: 0, EndMs: 300, Confidence: 0.9},
		{Word: "damn", StartMs: 300, EndMs: 600, Confidence: 0.88},
		{Word: "it", StartMs: 600, EndMs: 700, Confidence: 0.95},
	}

	cues := EmitFromTranscription(words, testDetector(), DefaultPadBeforeMs, DefaultPadAfterMs, 0)
	if len(cues) != 1 {
		t.Fatalf("expected exactly one cue, got %d", len(cues))
	}
	c := cues[0]
	if c.StartMs != 250 || c.EndMs != 650 {
		t.Errorf("expected [250,650] with 50ms padding, got [%d,%d]", c.StartMs, c.EndMs)
	}
	if c.Source != "whisper" || c.Action != "mute" {
		t.Errorf("unexpected source/action: %+v", c)
	}
}

func TestEmitFromTranscriptionClampsStartAtZero(t *testing.T) {
	words := []WordTiming{{Word: "damn", StartMs: 10, EndMs: 100, Confidence: 0.9}}
	cues := EmitFromTranscription(words, testDetector(), DefaultPadBeforeMs, DefaultPadAfterMs, 0)
	if len(cues) != 1 {
		t.Fatalf("expected one cue, got %d", len(cues))
	}
	if cues[0].StartMs != 0 {
		t.Errorf("expected start clamped to 0, got %d", cues[0].StartMs)
	}
}

func TestEmitFromTranscriptionAppliesVideoOffset(t *testing.T) {
	words := []WordTiming{{Word: "damn", StartMs: 1000, EndMs: 1300, Confidence: 0.9}}
	cues := EmitFromTranscription(words, testDetector(), DefaultPadBeforeMs, DefaultPadAfterMs, 5000)
	if len(cues) != 1 {
		t.Fatalf("expected one cue, got %d", len(cues))
	}
	if cues[0].StartMs != 5950 || cues[0].EndMs != 6350 {
		t.Errorf("expected offset applied, got [%d,%d]", cues[0].StartMs, cues[0].EndMs)
	}
}

func TestEmitFromTranscriptionSkipsCleanWords(t *testing.T) {
	words := []WordTiming{{Word: "hello", StartMs: 0, EndMs: 300, Confidence: 0.9}}
	cues := EmitFromTranscription(words, testDetector(), DefaultPadBeforeMs, DefaultPadAfterMs, 0)
	if len(cues) != 0 {
		t.Errorf("expected no cues for clean word, got %d", len(cues))
	}
}

func TestEmitFromSubtitleAppliesAsymmetricPadding(t *testing.T) {
	det := testDetector().Detect("well damn it")
	if len(det) != 1 {
		t.Fatalf("expected one detection, got %d", len(det))
	}

	c := EmitFromSubtitle(det[0], 10000, 13000)
	// "damn" spans roughly [5,9] of 12 chars -> positions computed by Detect.
	// word span [11250,12250], 400ms before and 150ms after -> [10850,12400].
	if c.StartMs != 10850 || c.EndMs != 12400 {
		t.Errorf("expected [10850,12400] with 400ms/150ms padding, got [%d,%d]", c.StartMs, c.EndMs)
	}
	if c.EndMs-c.StartMs < SubtitleMinDurationMs {
		t.Errorf("expected at least the minimum duration, got %dms", c.EndMs-c.StartMs)
	}
	if c.Source != "subtitle" {
		t.Errorf("expected subtitle source, got %q", c.Source)
	}
}

func TestEmitFromSubtitleEnforcesMinimumDuration(t *testing.T) {
	det := profanity.Detection{
		Word: "damn", PositionStart: 0.5, PositionEnd: 0.52, Category: "language.profanity.strong",
	}
	// With small padding the raw span+padding falls short of a 2000ms
	// minimum, forcing the centred-clamp branch.
	c := EmitFromSubtitleWithConfig(det, 10000, 10100, 10, 10, 2000)
	if c.EndMs-c.StartMs != 2000 {
		t.Errorf("expected cue stretched to minimum duration 2000ms, got %dms", c.EndMs-c.StartMs)
	}
}

func TestNormalizeTokenStripsPunctuation(t *testing.T) {
	if got := normalizeToken("Damn!"); got != "damn" {
		t.Errorf("expected 'damn', got %q", got)
	}
}
