package audio

import "testing"

func TestEncodeDecodeWAVRoundTrip(t *testing.T) {
	samples := []float32{0, 0.25, -0.25, 0.5, -0.5, 0.99, -0.99}
	sampleRate := 16000

	data, err := EncodeWAV(samples, sampleRate)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty wav data")
	}

	decoded, rate, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if rate != sampleRate {
		t.Errorf("expected sample rate %d, got %d", sampleRate, rate)
	}
	if len(decoded) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(decoded))
	}
	for i, s := range samples {
		diff := float64(decoded[i]) - float64(s)
		if diff > 0.01 || diff < -0.01 {
			t.Errorf("sample %d: expected ~%v, got %v", i, s, decoded[i])
		}
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	if _, _, err := DecodeWAV([]byte("not a wav file")); err == nil {
		t.Error("expected an error decoding non-wav data")
	}
}
