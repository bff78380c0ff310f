package session

import (
	"testing"

	"github.com/cuetrace/opencue/internal/cue"
)

func subtitleFile(subs []cue.SubtitleMarker) *cue.File {
	return &cue.File{Subtitles: subs}
}

func TestSubtitleSyncEngineMatchesAndStabilizes(t *testing.T) {
	f := subtitleFile([]cue.SubtitleMarker{
		{TimeMs: 10_000, Text: "the quick brown fox jumps over the lazy dog"},
		{TimeMs: 20_000, Text: "she sells seashells by the seashore today"},
	})
	e := NewSubtitleSyncEngine(f, 1)

	res := e.ProcessSubtitle("the quick brown fox jumps over the lazy dog", 9_000)
	if !res.Synced {
		t.Fatalf("expected sync on first consistent match, got %+v", res)
	}
	if res.OffsetMs != 1_000 {
		t.Errorf("offset = %d, want 1000", res.OffsetMs)
	}
	if res.Method != "subtitle_match" {
		t.Errorf("method = %q, want subtitle_match", res.Method)
	}
}

func TestSubtitleSyncEngineRequiresConsistentMatches(t *testing.T) {
	f := subtitleFile([]cue.SubtitleMarker{
		{TimeMs: 10_000, Text: "the quick brown fox jumps over the lazy dog"},
		{TimeMs: 50_000, Text: "she sells seashells by the seashore today"},
	})
	e := NewSubtitleSyncEngine(f, 2)

	res := e.ProcessSubtitle("the quick brown fox jumps over the lazy dog", 9_000)
	if res.Synced {
		t.Fatalf("should not sync before requiredMatches offsets agree: %+v", res)
	}
	if res.Method != "pending_confirmation" {
		t.Errorf("method = %q, want pending_confirmation", res.Method)
	}

	res = e.ProcessSubtitle("she sells seashells by the seashore today", 49_000)
	if !res.Synced {
		t.Fatalf("expected sync once two consistent offsets accumulate: %+v", res)
	}
	if res.OffsetMs != 1_000 {
		t.Errorf("offset = %d, want 1000", res.OffsetMs)
	}
}

func TestSubtitleSyncEngineInconsistentOffsetsDoNotConfirm(t *testing.T) {
	f := subtitleFile([]cue.SubtitleMarker{
		{TimeMs: 10_000, Text: "the quick brown fox jumps over the lazy dog"},
		{TimeMs: 50_000, Text: "she sells seashells by the seashore today"},
	})
	e := NewSubtitleSyncEngine(f, 2)

	e.ProcessSubtitle("the quick brown fox jumps over the lazy dog", 9_000)
	res := e.ProcessSubtitle("she sells seashells by the seashore today", 20_000)
	if res.Synced {
		t.Fatalf("offsets 1000ms apart vs 30000ms apart should not be consistent: %+v", res)
	}
}

func TestSubtitleSyncEngineSkipsShortText(t *testing.T) {
	f := subtitleFile(nil)
	e := NewSubtitleSyncEngine(f, 1)
	res := e.ProcessSubtitle("hi", 0)
	if res.Method != "skipped" {
		t.Errorf("method = %q, want skipped for text under minSubtitleLength", res.Method)
	}
}

func TestSubtitleSyncEngineNoMatchReportsUnsynced(t *testing.T) {
	f := subtitleFile([]cue.SubtitleMarker{
		{TimeMs: 10_000, Text: "the quick brown fox jumps over the lazy dog"},
	})
	e := NewSubtitleSyncEngine(f, 1)
	res := e.ProcessSubtitle("completely unrelated dialogue about spaceships", 9_000)
	if res.Synced || res.Method != "no_match" {
		t.Errorf("expected no_match, got %+v", res)
	}
}

func TestSubtitleSyncEngineBackupSubstringMatch(t *testing.T) {
	f := &cue.File{
		Cues: []cue.Cue{{StartMs: 15_000, EndMs: 15_500, Word: "shucks"}},
	}
	e := NewSubtitleSyncEngine(f, 1)
	res := e.ProcessSubtitle("well shucks i did not expect that at all", 14_000)
	if !res.Synced {
		t.Fatalf("expected backup cue-word match to sync: %+v", res)
	}
	if res.Confidence != 0.6 {
		t.Errorf("confidence = %v, want 0.6 (0.5 + 1*0.1 after first match)", res.Confidence)
	}
}

func TestJaccardSimilarity(t *testing.T) {
	cases := []struct {
		a, b string
		min  float64
	}{
		{"the quick brown fox", "the quick brown fox", 1.0},
		{"the quick brown fox", "completely different words here", 0},
	}
	for _, c := range cases {
		got := jaccardSimilarity(c.a, c.b)
		if got < c.min {
			t.Errorf("jaccardSimilarity(%q, %q) = %v, want >= %v", c.a, c.b, got, c.min)
		}
	}
}

func TestNormalizeSubtitleText(t *testing.T) {
	got := normalizeSubtitleText("  Well, shucks!  It's  fine.  ")
	want := "well shucks it's fine"
	if got != want {
		t.Errorf("normalizeSubtitleText() = %q, want %q", got, want)
	}
}
