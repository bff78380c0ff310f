package microsig

import (
	"math"
	"testing"

	"github.com/cuetrace/opencue/internal/cue"
)

func TestExtractTooShortReturnsEmptySequence(t *testing.T) {
	cfg := DefaultConfig()
	seq := Extract(make([]float32, cfg.FrameSize-1), cfg, 1000)
	if len(seq.Signatures) != 0 {
		t.Errorf("expected no signatures for too-short audio, got %d", len(seq.Signatures))
	}
	if seq.StartMs != 1000 || seq.EndMs != 1000 {
		t.Errorf("expected degenerate [1000,1000] range, got [%d,%d]", seq.StartMs, seq.EndMs)
	}
}

func TestExtractDetectsOnsetAfterSilence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SampleRate = 16000

	n := cfg.FrameSize*4 + cfg.HopSize*4
	samples := make([]float32, n)
	// Silence for the first half, a loud tone for the second half: a sharp
	// energy rise should register as an onset.
	for i := n / 2; i < n; i++ {
		samples[i] = float32(math.Sin(float64(i) * 0.5))
	}

	seq := Extract(samples, cfg, 0)

	var sawOnset bool
	for _, s := range seq.Signatures {
		if s.Type == cue.SigOnset {
			sawOnset = true
		}
	}
	if !sawOnset {
		t.Error("expected an onset signature at the silence-to-tone transition")
	}
}

func TestExtractDetectsSilenceTransitions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SampleRate = 16000

	n := cfg.FrameSize*6 + cfg.HopSize*6
	samples := make([]float32, n)
	for i := n / 3; i < 2*n/3; i++ {
		samples[i] = float32(math.Sin(float64(i) * 0.5))
	}

	seq := Extract(samples, cfg, 0)

	var sawEnd, sawStart bool
	for _, s := range seq.Signatures {
		switch s.Type {
		case cue.SigSilenceEnd:
			sawEnd = true
		case cue.SigSilenceStart:
			sawStart = true
		}
	}
	if !sawEnd || !sawStart {
		t.Errorf("expected both silence-end and silence-start transitions, got end=%v start=%v", sawEnd, sawStart)
	}
}

func TestExtractSignaturesSortedByTime(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SampleRate = 16000
	n := cfg.FrameSize*8 + cfg.HopSize*8
	samples := make([]float32, n)
	for i := range samples {
		if i%3 == 0 {
			samples[i] = float32(math.Sin(float64(i)*0.9)) * 0.8
		}
	}

	seq := Extract(samples, cfg, 500)
	for i := 1; i < len(seq.Signatures); i++ {
		if seq.Signatures[i].TimeMs < seq.Signatures[i-1].TimeMs {
			t.Fatalf("signatures not sorted: %d before %d", seq.Signatures[i-1].TimeMs, seq.Signatures[i].TimeMs)
		}
	}
}

func TestNormalizeSilentInputUnchanged(t *testing.T) {
	out := normalize([]float32{0, 0, 0})
	for _, v := range out {
		if v != 0 {
			t.Errorf("expected all-zero normalization of silence, got %v", out)
		}
	}
}
