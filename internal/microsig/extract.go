// Package microsig extracts and matches lightweight audio microsignatures:
// short-lived onset, energy-peak, silence-transition and spectral-flux
// events that only need to be unique within a small time window, unlike a
// global audio fingerprint. They give sub-100ms sync precision at a
// fraction of a fingerprint's compute cost.
package microsig

import (
	"math"
	"sort"

	"github.com/cuetrace/opencue/internal/cue"
)

// Config tunes the extractor. The zero value is not usable; use
// DefaultConfig.
type Config struct {
	SampleRate       int
	FrameSize        int
	HopSize          int
	OnsetThreshold   float64
	PeakThreshold    float64
	SilenceThreshold float64
}

// DefaultConfig matches the original implementation's tuning: a 512-sample
// frame (~23ms at 22050Hz) with a 256-sample hop (~12ms).
func DefaultConfig() Config {
	return Config{
		SampleRate:       22050,
		FrameSize:        512,
		HopSize:          256,
		OnsetThreshold:   0.15,
		PeakThreshold:    0.3,
		SilenceThreshold: 0.02,
	}
}

// Extract detects microsignature events in a chunk of mono float32 audio
// starting at baseTimeMs.
func Extract(samples []float32, cfg Config, baseTimeMs int64) cue.MicrosignatureSequence {
	if len(samples) < cfg.FrameSize {
		return cue.MicrosignatureSequence{StartMs: baseTimeMs, EndMs: baseTimeMs}
	}

	norm := normalize(samples)
	durationMs := int64(len(norm)) * 1000 / int64(cfg.SampleRate)

	energies := frameEnergies(norm, cfg)

	var sigs []cue.Microsignature
	sigs = append(sigs, detectOnsets(energies, cfg, baseTimeMs)...)
	sigs = append(sigs, detectEnergyPeaks(energies, cfg, baseTimeMs)...)
	sigs = append(sigs, detectSilenceTransitions(energies, cfg, baseTimeMs)...)
	sigs = append(sigs, detectSpectralFlux(norm, cfg, baseTimeMs)...)

	sort.Slice(sigs, func(i, j int) bool { return sigs[i].TimeMs < sigs[j].TimeMs })

	return cue.MicrosignatureSequence{
		StartMs:    baseTimeMs,
		EndMs:      baseTimeMs + durationMs,
		Signatures: sigs,
	}
}

func normalize(samples []float32) []float64 {
	out := make([]float64, len(samples))
	var max float64
	for i, s := range samples {
		v := float64(s)
		out[i] = v
		if a := math.Abs(v); a > max {
			max = a
		}
	}
	if max > 0 {
		for i := range out {
			out[i] /= max
		}
	}
	return out
}

func frameEnergies(audio []float64, cfg Config) []float64 {
	nFrames := (len(audio)-cfg.FrameSize)/cfg.HopSize + 1
	if nFrames < 1 {
		return nil
	}
	energies := make([]float64, nFrames)
	for i := 0; i < nFrames; i++ {
		start := i * cfg.HopSize
		frame := audio[start : start+cfg.FrameSize]
		var sumSq float64
		for _, v := range frame {
			sumSq += v * v
		}
		energies[i] = math.Sqrt(sumSq / float64(len(frame)))
	}
	return energies
}

func frameTimeMs(frameIdx int, cfg Config, baseTimeMs int64) int64 {
	return baseTimeMs + int64(frameIdx*cfg.HopSize*1000/cfg.SampleRate)
}

func detectOnsets(energies []float64, cfg Config, baseTimeMs int64) []cue.Microsignature {
	if len(energies) < 2 {
		return nil
	}
	var sigs []cue.Microsignature
	for i := 1; i < len(energies); i++ {
		diff := energies[i] - energies[i-1]
		if diff > cfg.OnsetThreshold && energies[i] > cfg.SilenceThreshold {
			sigs = append(sigs, cue.Microsignature{
				TimeMs:   frameTimeMs(i, cfg, baseTimeMs),
				Type:     cue.SigOnset,
				Strength: math.Min(1.0, diff/0.5),
			})
		}
	}
	return sigs
}

func detectEnergyPeaks(energies []float64, cfg Config, baseTimeMs int64) []cue.Microsignature {
	if len(energies) < 3 {
		return nil
	}
	var sigs []cue.Microsignature
	for i := 1; i < len(energies)-1; i++ {
		if energies[i] <= energies[i-1] || energies[i] <= energies[i+1] {
			continue
		}
		if energies[i] <= cfg.PeakThreshold {
			continue
		}

		leftMin := minSlice(energies[max(0, i-3):i])
		rightMin := minSlice(energies[i+1 : min(len(energies), i+4)])
		prominence := energies[i] - math.Max(leftMin, rightMin)

		if prominence > 0.1 {
			sigs = append(sigs, cue.Microsignature{
				TimeMs:   frameTimeMs(i, cfg, baseTimeMs),
				Type:     cue.SigEnergyPeak,
				Strength: math.Min(1.0, energies[i]),
			})
		}
	}
	return sigs
}

func minSlice(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func detectSilenceTransitions(energies []float64, cfg Config, baseTimeMs int64) []cue.Microsignature {
	if len(energies) < 2 {
		return nil
	}
	var sigs []cue.Microsignature
	inSilence := energies[0] < cfg.SilenceThreshold

	for i := 1; i < len(energies); i++ {
		nowSilent := energies[i] < cfg.SilenceThreshold

		switch {
		case inSilence && !nowSilent:
			sigs = append(sigs, cue.Microsignature{
				TimeMs:   frameTimeMs(i, cfg, baseTimeMs),
				Type:     cue.SigSilenceEnd,
				Strength: math.Min(1.0, energies[i]/0.3),
			})
		case !inSilence && nowSilent:
			sigs = append(sigs, cue.Microsignature{
				TimeMs:   frameTimeMs(i, cfg, baseTimeMs),
				Type:     cue.SigSilenceStart,
				Strength: 1.0,
			})
		}
		inSilence = nowSilent
	}
	return sigs
}

// detectSpectralFlux measures sudden tonal changes via a frame-to-frame
// magnitude-spectrum delta. A naive DFT is plenty fast at this frame size
// and avoids pulling in an FFT dependency for a 512-point transform.
func detectSpectralFlux(audio []float64, cfg Config, baseTimeMs int64) []cue.Microsignature {
	nFrames := (len(audio)-cfg.FrameSize)/cfg.HopSize + 1
	if nFrames < 2 {
		return nil
	}

	window := hannWindow(cfg.FrameSize)
	var sigs []cue.Microsignature
	var prevSpectrum []float64

	for i := 0; i < nFrames; i++ {
		start := i * cfg.HopSize
		frame := audio[start : start+cfg.FrameSize]

		windowed := make([]float64, len(frame))
		for j, v := range frame {
			windowed[j] = v * window[j]
		}
		spectrum := magnitudeSpectrum(windowed)

		if prevSpectrum != nil && len(spectrum) == len(prevSpectrum) {
			var flux float64
			for j := range spectrum {
				if d := spectrum[j] - prevSpectrum[j]; d > 0 {
					flux += d
				}
			}
			flux /= float64(len(spectrum))

			if flux > 0.1 {
				sigs = append(sigs, cue.Microsignature{
					TimeMs:   frameTimeMs(i, cfg, baseTimeMs),
					Type:     cue.SigSpectralFlux,
					Strength: math.Min(1.0, flux/0.3),
				})
			}
		}
		prevSpectrum = spectrum
	}
	return sigs
}

func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// magnitudeSpectrum computes the magnitude of the real-input DFT's
// non-redundant half (bins 0..n/2), equivalent to numpy's rfft magnitude.
func magnitudeSpectrum(frame []float64) []float64 {
	n := len(frame)
	half := n/2 + 1
	out := make([]float64, half)
	for k := 0; k < half; k++ {
		var re, im float64
		for t, x := range frame {
			angle := -2 * math.Pi * float64(k) * float64(t) / float64(n)
			re += x * math.Cos(angle)
			im += x * math.Sin(angle)
		}
		out[k] = math.Hypot(re, im)
	}
	return out
}
