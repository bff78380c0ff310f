package audio

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/cuetrace/opencue/internal/cueerr"
)

// Meter abstracts a per-application peak loudness source. A real backend
// might query a platform mixer API; ChunkMeter below derives peak from fed
// PCM directly, the path exercised when the envelope is sampled from the
// same buffer a recording captures rather than a separate system meter.
type Meter interface {
	Peak() (float64, error)
}

// ChunkMeter holds the peak of the most recently fed block of samples,
// grounded on the teacher's VAD energy computation
// (RMS -> dB) but reporting continuous loudness rather than gating on a
// speech/silence threshold.
type ChunkMeter struct {
	mu   sync.Mutex
	last float64
	fed  bool
}

// Feed updates the meter's current peak reading from a block of samples.
func (m *ChunkMeter) Feed(samples []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = computePeak(samples)
	m.fed = true
}

// Peak implements Meter. It returns ErrCaptureUnavailable until Feed has
// been called at least once.
func (m *ChunkMeter) Peak() (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.fed {
		return 0, cueerr.ErrCaptureUnavailable
	}
	return m.last, nil
}

func computePeak(samples []float32) float64 {
	var peak float32
	for _, s := range samples {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return float64(peak)
}

func computeRMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// RMSToDB converts a linear RMS amplitude to dBFS, floored at -100dB for
// near-silent input.
func RMSToDB(rms float64) float64 {
	if rms < 1e-10 {
		return -100
	}
	return 20 * math.Log10(rms)
}

// EnvelopeConfig controls volume envelope polling.
type EnvelopeConfig struct {
	PollRateHz float64
}

// DefaultEnvelopeConfig returns the sub-pipeline's standard poll rate.
func DefaultEnvelopeConfig() EnvelopeConfig {
	return EnvelopeConfig{PollRateHz: 50}
}

// EnvelopeSample is one (timestamp, peak) reading.
type EnvelopeSample struct {
	TimeMs int64
	Peak   float64
}

// EnvelopeSampler polls a Meter at a fixed rate on its own goroutine,
// reporting readings on a buffered, newest-wins channel. Meter-not-found
// idles sampling silently; a read error retries acquisition on the next
// tick rather than terminating the sampler.
type EnvelopeSampler struct {
	meter Meter
	cfg   EnvelopeConfig
}

// NewEnvelopeSampler creates a sampler over meter with the given config.
func NewEnvelopeSampler(meter Meter, cfg EnvelopeConfig) *EnvelopeSampler {
	return &EnvelopeSampler{meter: meter, cfg: cfg}
}

// Run starts polling until ctx is cancelled, timestamping every reading
// against base. The returned channel is closed when polling stops.
func (s *EnvelopeSampler) Run(ctx context.Context, base time.Time) <-chan EnvelopeSample {
	out := make(chan EnvelopeSample, 100)
	interval := time.Duration(float64(time.Second) / s.cfg.PollRateHz)

	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				peak, err := s.meter.Peak()
				if err != nil {
					if errors.Is(err, cueerr.ErrCaptureUnavailable) {
						continue // no meter yet; idle and retry next tick
					}
					continue // transient read error; retry acquisition
				}
				sample := EnvelopeSample{
					TimeMs: time.Since(base).Milliseconds(),
					Peak:   peak,
				}
				select {
				case out <- sample:
				default:
					<-out
					out <- sample
				}
			}
		}
	}()

	return out
}
