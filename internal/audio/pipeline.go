package audio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuetrace/opencue/internal/cueerr"
	"github.com/cuetrace/opencue/internal/metrics"
)

// Chunk is one captured block of mono float32 PCM.
type Chunk struct {
	Samples []float32
	TimeMs  int64
}

// Pipeline resolves a capture backend (system loopback, microphone, or
// auto-detected preference order) and streams chunks to the caller
// through NextChunk, applying newest-wins backpressure when the caller
// falls behind.
type Pipeline struct {
	loopback CaptureBackend
	mic      CaptureBackend

	mu         sync.Mutex
	handle     Handle
	cancel     context.CancelFunc
	out        chan Chunk
	activeMode Mode
	running    bool
	startTime  time.Time
}

// NewPipeline wires the two concrete backends the auto-resolution order
// tries in turn.
func NewPipeline(loopback, mic CaptureBackend) *Pipeline {
	return &Pipeline{loopback: loopback, mic: mic}
}

// Start resolves mode to a backend and begins capture on a dedicated
// goroutine. On Mode "auto", system loopback is tried first and
// microphone second; the backend that actually opened is reported by
// ActiveMode.
func (p *Pipeline) Start(mode Mode, cfg Config) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}

	handle, resolved, err := p.resolve(mode, cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.handle = handle
	p.cancel = cancel
	p.activeMode = resolved
	p.out = make(chan Chunk, 100)
	p.running = true
	p.startTime = time.Now()

	go p.captureLoop(ctx, handle)
	return nil
}

func (p *Pipeline) resolve(mode Mode, cfg Config) (Handle, Mode, error) {
	try := func(backend CaptureBackend) (Handle, error) {
		if backend == nil {
			return nil, cueerr.ErrCaptureUnavailable
		}
		return backend.Open(cfg)
	}

	switch mode {
	case ModeSystemLoopback:
		h, err := try(p.loopback)
		if err != nil {
			return nil, "", fmt.Errorf("%w: system loopback: %v", cueerr.ErrCaptureUnavailable, err)
		}
		return h, ModeSystemLoopback, nil
	case ModeMicrophone:
		h, err := try(p.mic)
		if err != nil {
			return nil, "", fmt.Errorf("%w: microphone: %v", cueerr.ErrCaptureUnavailable, err)
		}
		return h, ModeMicrophone, nil
	default: // ModeAuto
		if h, err := try(p.loopback); err == nil {
			return h, ModeSystemLoopback, nil
		}
		if h, err := try(p.mic); err == nil {
			return h, ModeMicrophone, nil
		}
		return nil, "", fmt.Errorf("%w: no capture backend available", cueerr.ErrCaptureUnavailable)
	}
}

func (p *Pipeline) captureLoop(ctx context.Context, handle Handle) {
	onSamples := func(samples []float32) {
		metrics.AudioChunks.Inc()
		chunk := Chunk{Samples: samples, TimeMs: time.Since(p.startTime).Milliseconds()}
		select {
		case p.out <- chunk:
		default:
			metrics.ChunksDropped.Inc()
			<-p.out
			p.out <- chunk
		}
	}

	if err := handle.Record(ctx, onSamples); err != nil {
		metrics.Errors.WithLabelValues("capture", "transient").Inc()
	}
}

// Stop halts capture, releases the backend, and closes and drains the
// chunk channel. Subsequent NextChunk calls return not-ok.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.cancel()
	if p.handle != nil {
		p.handle.Close()
	}
	close(p.out)
	for range p.out {
	}
	p.running = false
}

// NextChunk waits up to timeout for the next captured chunk.
func (p *Pipeline) NextChunk(timeout time.Duration) (Chunk, bool) {
	p.mu.Lock()
	out := p.out
	p.mu.Unlock()
	if out == nil {
		return Chunk{}, false
	}

	select {
	case chunk, ok := <-out:
		return chunk, ok
	case <-time.After(timeout):
		return Chunk{}, false
	}
}

// IsRunning reports whether capture is currently active.
func (p *Pipeline) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// ActiveMode reports which backend resolved and is currently capturing.
func (p *Pipeline) ActiveMode() Mode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activeMode
}

// NativeSampleRate reports the currently open handle's native sample
// rate, or 0 if no capture is running.
func (p *Pipeline) NativeSampleRate() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == nil {
		return 0
	}
	return p.handle.NativeSampleRate()
}

// Normalize scales samples so their peak equals target, capped at
// maxGain, leaving silent buffers unchanged.
func Normalize(samples []float32, target float32, maxGain float32) []float32 {
	var peak float32
	for _, s := range samples {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	if peak < 1e-9 {
		return samples
	}

	gain := target / peak
	if gain > maxGain {
		gain = maxGain
	}

	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = s * gain
	}
	return out
}

// DefaultNormalizeTarget and DefaultMaxGain are the peak-normalization
// defaults applied to a sealed recording buffer.
const (
	DefaultNormalizeTarget float32 = 0.9
	DefaultMaxGain         float32 = 10.0
)
