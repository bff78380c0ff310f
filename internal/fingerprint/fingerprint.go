// Package fingerprint generates and matches audio fingerprints, the
// library-or-external-tool split from the original implementation
// expressed as one Go interface with interchangeable implementations.
package fingerprint

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/cuetrace/opencue/internal/cueerr"
)

// Marker pairs a time offset with an opaque fingerprint.
type Marker struct {
	TimeMs int64
	Data   []byte
}

// Backend generates a fingerprint for a block of mono float32 PCM. Real
// implementations might wrap a chromaprint binding or shell out to an
// external fpcalc-like tool; the core only depends on this interface.
type Backend interface {
	Fingerprint(samples []float32, sampleRate int) ([]byte, bool)
}

// Fingerprint is the package-level convenience entrypoint: fingerprint
// samples with backend, reporting ok=false if the backend declines
// (e.g. too little audio, or the backend is unavailable).
func Fingerprint(backend Backend, samples []float32, sampleRate int) ([]byte, bool) {
	if backend == nil {
		return nil, false
	}
	return backend.Fingerprint(samples, sampleRate)
}

// packUint32LE packs fingerprint words as a byte slice, little-endian
// within each word, the on-disk/in-memory representation used throughout
// this package and in cue.FingerprintMarker.Data.
func packUint32LE(words []uint32) []byte {
	out := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out
}

func unpackUint32LE(data []byte) []uint32 {
	n := len(data) / 4
	out := make([]uint32, n)
	for i := range n {
		out[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return out
}

// Compare scores the bitwise similarity of two packed fingerprints:
// 1 - (Hamming distance in bits) / (common length in bits).
func Compare(a, b []byte) float64 {
	wa, wb := unpackUint32LE(a), unpackUint32LE(b)
	n := min(len(wa), len(wb))
	if n == 0 {
		return 0
	}

	var diffBits int
	for i := range n {
		diffBits += bits.OnesCount32(wa[i] ^ wb[i])
	}
	totalBits := n * 32
	return 1.0 - float64(diffBits)/float64(totalBits)
}

// Match finds the marker with the best score strictly above threshold,
// breaking ties in favour of the earlier time_ms.
func Match(live []byte, markers []Marker, threshold float64) (Marker, float64, bool) {
	var best Marker
	var bestScore float64
	found := false

	for _, m := range markers {
		score := Compare(live, m.Data)
		if score <= threshold {
			continue
		}
		if !found || score > bestScore || (score == bestScore && m.TimeMs < best.TimeMs) {
			best = m
			bestScore = score
			found = true
		}
	}
	return best, bestScore, found
}

// ErrNoMatch is returned by ContentMatcher.AddAudio when called before any
// markers were supplied, a programmer error distinct from "no match yet".
var ErrNoMatch = fmt.Errorf("%w: content matcher has no markers", cueerr.ErrInvalidState)
