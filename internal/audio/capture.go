package audio

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/cuetrace/opencue/internal/cueerr"
)

// Mode selects which capture strategy a Pipeline resolves to.
type Mode string

const (
	ModeSystemLoopback Mode = "system_loopback"
	ModeMicrophone     Mode = "microphone"
	ModeAuto           Mode = "auto"
)

// Config configures a capture session.
type Config struct {
	SampleRate    int
	Channels      int
	ChunkDuration time.Duration
}

// DefaultConfig mirrors the distilled Python implementation's Chromaprint-
// friendly default (22050Hz mono, half-second chunks).
func DefaultConfig() Config {
	return Config{SampleRate: 22050, Channels: 1, ChunkDuration: 500 * time.Millisecond}
}

// Device identifies one enumerable audio endpoint.
type Device struct {
	ID   malgo.DeviceID
	Name string
}

// Handle is an open capture device, streaming samples to onSamples until
// the context is cancelled or Close is called.
type Handle interface {
	Record(ctx context.Context, onSamples func([]float32)) error
	Close() error
	NativeSampleRate() int
}

// CaptureBackend abstracts one device-capture strategy. Enumerate lists
// candidate devices for resolution (e.g. picking a named virtual-cable
// loopback over the default output); Open commits to one.
type CaptureBackend interface {
	Enumerate() ([]Device, error)
	Open(cfg Config) (Handle, error)
}

// malgoHandle adapts a malgo.Device to Handle, draining its audio callback
// through a newest-wins buffered channel onto the caller's own goroutine
// (the callback itself must never block or call into Go-heavy code).
type malgoHandle struct {
	ctx        *malgo.AllocatedContext
	device     *malgo.Device
	sink       chan []float32
	nativeRate int
}

func (h *malgoHandle) NativeSampleRate() int { return h.nativeRate }

func (h *malgoHandle) Record(ctx context.Context, onSamples func([]float32)) error {
	if err := h.device.Start(); err != nil {
		return fmt.Errorf("%w: %v", cueerr.ErrCaptureTransient, err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case samples := <-h.sink:
			onSamples(samples)
		}
	}
}

func (h *malgoHandle) Close() error {
	h.device.Uninit()
	h.ctx.Uninit()
	return h.ctx.Free()
}

func openMalgoDevice(deviceType malgo.DeviceType, deviceID *malgo.DeviceID, cfg Config) (*malgoHandle, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: init context: %v", cueerr.ErrCaptureUnavailable, err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(deviceType)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(cfg.Channels)
	if deviceID != nil {
		deviceConfig.Capture.DeviceID = deviceID.Pointer()
	}
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.PeriodSizeInMilliseconds = uint32(cfg.ChunkDuration.Milliseconds())

	sink := make(chan []float32, 100)
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, in []byte, _ uint32) {
			samples := bytesToFloat32(in)
			cp := make([]float32, len(samples))
			copy(cp, samples)
			select {
			case sink <- cp:
			default:
				<-sink
				sink <- cp
			}
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		ctx.Uninit()
		return nil, fmt.Errorf("%w: init device: %v", cueerr.ErrCaptureUnavailable, err)
	}

	return &malgoHandle{ctx: ctx, device: device, sink: sink, nativeRate: int(device.SampleRate())}, nil
}

func bytesToFloat32(b []byte) []float32 {
	n := len(b) / 4
	out := make([]float32, n)
	for i := range n {
		bits := uint32(b[i*4]) | uint32(b[i*4+1])<<8 | uint32(b[i*4+2])<<16 | uint32(b[i*4+3])<<24
		out[i] = math.Float32frombits(bits)
	}
	return out
}

// LoopbackBackend captures system output audio. It prefers a device whose
// name contains "cable" (a virtual-audio-cable style loopback device),
// falling back to the first enumerated playback device.
type LoopbackBackend struct{}

func (LoopbackBackend) Enumerate() ([]Device, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cueerr.ErrCaptureUnavailable, err)
	}
	defer ctx.Uninit()
	defer ctx.Free()

	infos, err := ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cueerr.ErrCaptureUnavailable, err)
	}

	out := make([]Device, 0, len(infos))
	for _, info := range infos {
		out = append(out, Device{ID: info.ID, Name: info.Name()})
	}
	return out, nil
}

func (b LoopbackBackend) Open(cfg Config) (Handle, error) {
	devices, err := b.Enumerate()
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("%w: no playback devices", cueerr.ErrCaptureUnavailable)
	}

	chosen := devices[0]
	for _, d := range devices {
		if strings.Contains(strings.ToLower(d.Name), "cable") {
			chosen = d
			break
		}
	}

	return openMalgoDevice(malgo.Loopback, &chosen.ID, cfg)
}

// MicrophoneBackend captures from the default input device.
type MicrophoneBackend struct{}

func (MicrophoneBackend) Enumerate() ([]Device, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cueerr.ErrCaptureUnavailable, err)
	}
	defer ctx.Uninit()
	defer ctx.Free()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cueerr.ErrCaptureUnavailable, err)
	}

	out := make([]Device, 0, len(infos))
	for _, info := range infos {
		out = append(out, Device{ID: info.ID, Name: info.Name()})
	}
	return out, nil
}

func (MicrophoneBackend) Open(cfg Config) (Handle, error) {
	return openMalgoDevice(malgo.Capture, nil, cfg)
}
