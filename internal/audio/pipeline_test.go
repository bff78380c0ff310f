package audio

import "testing"

func TestNormalizeScalesPeak(t *testing.T) {
	samples := []float32{0.1, -0.2, 0.3, -0.05}
	out := Normalize(samples, 0.9, 10.0)

	var peak float32
	for _, s := range out {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	if diff := peak - 0.9; diff > 1e-4 || diff < -1e-4 {
		t.Errorf("expected peak ~0.9, got %v", peak)
	}
}

func TestNormalizeCapsGain(t *testing.T) {
	samples := []float32{0.01, -0.005}
	out := Normalize(samples, 0.9, 10.0)

	// gain would need to be 90x to hit target 0.9; capped at 10x instead.
	expected := samples[0] * 10.0
	if diff := out[0] - expected; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("expected gain capped at 10x (%v), got %v", expected, out[0])
	}
}

func TestNormalizeSilentBufferUnchanged(t *testing.T) {
	samples := []float32{0, 0, 0}
	out := Normalize(samples, 0.9, 10.0)
	for i, s := range out {
		if s != samples[i] {
			t.Errorf("expected silent buffer unchanged, got %v", out)
		}
	}
}

func TestResampleSameRateNoop(t *testing.T) {
	samples := []float32{1, 2, 3}
	out := Resample(samples, 16000, 16000)
	if len(out) != 3 || out[0] != 1 || out[2] != 3 {
		t.Errorf("expected unchanged samples, got %v", out)
	}
}

func TestResampleDownsamplesLength(t *testing.T) {
	samples := make([]float32, 1000)
	for i := range samples {
		samples[i] = float32(i)
	}
	out := Resample(samples, 48000, 16000)
	expected := len(samples) / 3
	if out == nil || len(out) < expected-2 || len(out) > expected+2 {
		t.Errorf("expected roughly %d samples, got %d", expected, len(out))
	}
}

func TestChunkMeterUnfedReturnsUnavailable(t *testing.T) {
	m := &ChunkMeter{}
	if _, err := m.Peak(); err == nil {
		t.Error("expected error before first Feed")
	}
}

func TestChunkMeterReportsPeak(t *testing.T) {
	m := &ChunkMeter{}
	m.Feed([]float32{0.1, -0.5, 0.3})
	peak, err := m.Peak()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := peak - 0.5; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("expected peak 0.5, got %v", peak)
	}
}

func TestRMSToDBFloorsNearSilence(t *testing.T) {
	if got := RMSToDB(0); got != -100 {
		t.Errorf("expected -100dB floor for silence, got %v", got)
	}
}
