package microsig

import (
	"testing"

	"github.com/cuetrace/opencue/internal/cue"
)

func TestFindOffsetEmptySequenceFails(t *testing.T) {
	cfg := DefaultMatcherConfig()
	_, _, ok := FindOffset(cue.MicrosignatureSequence{}, cue.MicrosignatureSequence{Signatures: []cue.Microsignature{{TimeMs: 0, Type: cue.SigOnset, Strength: 1}}}, 5000, cfg)
	if ok {
		t.Error("expected no match with an empty reference sequence")
	}
}

func TestFindOffsetRecoversKnownShift(t *testing.T) {
	cfg := DefaultMatcherConfig()

	reference := cue.MicrosignatureSequence{Signatures: []cue.Microsignature{
		{TimeMs: 1000, Type: cue.SigOnset, Strength: 0.9},
		{TimeMs: 2000, Type: cue.SigSilenceStart, Strength: 1.0},
		{TimeMs: 3000, Type: cue.SigSilenceEnd, Strength: 0.8},
		{TimeMs: 4000, Type: cue.SigOnset, Strength: 0.7},
	}}

	const shift = 1500
	live := cue.MicrosignatureSequence{}
	for _, s := range reference.Signatures {
		live.Signatures = append(live.Signatures, cue.Microsignature{
			TimeMs: s.TimeMs - shift, Type: s.Type, Strength: s.Strength,
		})
	}

	offset, confidence, ok := FindOffset(reference, live, 5000, cfg)
	if !ok {
		t.Fatal("expected a match")
	}
	if offset != shift {
		t.Errorf("expected recovered offset %d, got %d (confidence %v)", shift, offset, confidence)
	}
	if confidence <= 0 {
		t.Errorf("expected positive confidence, got %v", confidence)
	}
}

func TestFindOffsetBelowMinMatchesFails(t *testing.T) {
	cfg := DefaultMatcherConfig()
	reference := cue.MicrosignatureSequence{Signatures: []cue.Microsignature{
		{TimeMs: 1000, Type: cue.SigOnset, Strength: 0.9},
	}}
	live := cue.MicrosignatureSequence{Signatures: []cue.Microsignature{
		{TimeMs: 9000, Type: cue.SigOnset, Strength: 0.9},
	}}

	_, _, ok := FindOffset(reference, live, 200, cfg)
	if ok {
		t.Error("expected failure: far outside search range and below min-matches score")
	}
}

func TestVerifySyncNoDataAssumesValid(t *testing.T) {
	cfg := DefaultMatcherConfig()
	valid, offset := VerifySync(cue.MicrosignatureSequence{}, cue.MicrosignatureSequence{}, 2000, 200, cfg)
	if !valid || offset != 2000 {
		t.Errorf("expected (true, 2000) with no signatures, got (%v, %d)", valid, offset)
	}
}

func TestVerifySyncDetectsDrift(t *testing.T) {
	cfg := DefaultMatcherConfig()
	reference := cue.MicrosignatureSequence{}
	live := cue.MicrosignatureSequence{}
	for i := int64(0); i < 6; i++ {
		t := 1000 + i*300
		reference.Signatures = append(reference.Signatures, cue.Microsignature{TimeMs: t, Type: cue.SigOnset, Strength: 0.9})
		live.Signatures = append(live.Signatures, cue.Microsignature{TimeMs: t - 300, Type: cue.SigOnset, Strength: 0.9})
	}

	// Actual offset (~300ms) is within the ±400ms search window (2x
	// tolerance) but exceeds the 200ms drift tolerance against an assumed
	// offset of 0.
	valid, offset := VerifySync(reference, live, 0, 200, cfg)
	if valid {
		t.Errorf("expected drift to be detected (actual offset ~300ms vs expected 0), got valid with offset %d", offset)
	}
}
