package audio

import (
	"bytes"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/cuetrace/opencue/internal/cueerr"
)

const bitDepth = 16

// memSeeker is an in-memory io.WriteSeeker, the minimum wav.Encoder needs
// to patch its RIFF/data chunk sizes after the sample payload is written.
type memSeeker struct {
	buf []byte
	pos int
}

func (m *memSeeker) Write(p []byte) (int, error) {
	end := m.pos + len(p)
	if end > len(m.buf) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[m.pos:end], p)
	m.pos = end
	return len(p), nil
}

func (m *memSeeker) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = int64(m.pos) + offset
	case io.SeekEnd:
		newPos = int64(len(m.buf)) + offset
	default:
		return 0, fmt.Errorf("wav: invalid whence %d", whence)
	}
	if newPos < 0 {
		return 0, fmt.Errorf("wav: negative seek position")
	}
	m.pos = int(newPos)
	return newPos, nil
}

// EncodeWAV renders mono float32 PCM as a 16-bit WAV byte stream via
// go-audio/wav, replacing the teacher's hand-rolled RIFF header writer.
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	sink := &memSeeker{}
	enc := wav.NewEncoder(sink, sampleRate, bitDepth, 1, 1)

	ints := make([]int, len(samples))
	for i, s := range samples {
		clamped := max(float32(-1.0), min(float32(1.0), s))
		ints[i] = int(clamped * 32767)
	}

	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:   ints,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("%w: wav encode: %v", cueerr.ErrPersistIO, err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("%w: wav close: %v", cueerr.ErrPersistIO, err)
	}
	return sink.buf, nil
}

// DecodeWAV parses a WAV byte stream into mono float32 PCM in [-1, 1] plus
// its sample rate, via go-audio/wav. Multi-channel input is downmixed by
// averaging channels.
func DecodeWAV(data []byte) ([]float32, int, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("%w: not a valid wav file", cueerr.ErrPersistIO)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: wav decode: %v", cueerr.ErrPersistIO, err)
	}

	channels := buf.Format.NumChannels
	if channels <= 0 {
		channels = 1
	}
	frames := len(buf.Data) / channels
	samples := make([]float32, frames)
	maxVal := float64(int(1) << (uint(buf.SourceBitDepth) - 1))
	if buf.SourceBitDepth == 0 {
		maxVal = 32768
	}

	for i := range frames {
		var sum float64
		for c := range channels {
			sum += float64(buf.Data[i*channels+c])
		}
		samples[i] = float32((sum / float64(channels)) / maxVal)
	}

	return samples, buf.Format.SampleRate, nil
}
