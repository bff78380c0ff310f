package microsig

import (
	"math"

	"github.com/cuetrace/opencue/internal/cue"
)

// MatcherConfig tunes alignment scoring.
type MatcherConfig struct {
	MatchWindowMs int
	MinMatches    float64
	TypeWeights   map[cue.SigType]float64
}

// DefaultMatcherConfig mirrors the original implementation's weights:
// onsets are the most precise signal, spectral flux the least.
func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfig{
		MatchWindowMs: 100,
		MinMatches:    3,
		TypeWeights: map[cue.SigType]float64{
			cue.SigOnset:        2.0,
			cue.SigSilenceEnd:   1.5,
			cue.SigSilenceStart: 1.5,
			cue.SigEnergyPeak:   1.0,
			cue.SigSpectralFlux: 0.8,
		},
	}
}

const candidateLimit = 10

// FindOffset searches for the best time offset aligning live against
// reference within ±searchRangeMs, seeding candidates from onset and
// silence-transition pairs. offsetMs, when added to a live timestamp,
// yields the corresponding reference timestamp.
func FindOffset(reference, live cue.MicrosignatureSequence, searchRangeMs int64, cfg MatcherConfig) (offsetMs int64, confidence float64, ok bool) {
	if len(reference.Signatures) == 0 || len(live.Signatures) == 0 {
		return 0, 0, false
	}

	candidates := candidateOffsets(reference, live, searchRangeMs)

	var bestOffset int64
	var bestScore float64
	for offset := range candidates {
		score := scoreAlignment(reference, live, offset, cfg)
		if score > bestScore {
			bestScore = score
			bestOffset = offset
		}
	}

	if bestScore < cfg.MinMatches {
		return 0, 0, false
	}

	maxPossible := min(len(reference.Signatures), len(live.Signatures))
	denom := math.Max(float64(maxPossible)*0.5, 1)
	confidence = math.Min(1.0, bestScore/denom)

	return bestOffset, confidence, true
}

func candidateOffsets(reference, live cue.MicrosignatureSequence, searchRangeMs int64) map[int64]struct{} {
	candidates := map[int64]struct{}{0: {}}

	refOnsets := filterByType(reference.Signatures, cue.SigOnset, candidateLimit)
	liveOnsets := filterByType(live.Signatures, cue.SigOnset, candidateLimit)
	for _, r := range refOnsets {
		for _, l := range liveOnsets {
			offset := r.TimeMs - l.TimeMs
			if absInt64(offset) <= searchRangeMs {
				candidates[offset] = struct{}{}
			}
		}
	}

	refSilence := filterSilence(reference.Signatures, candidateLimit)
	liveSilence := filterSilence(live.Signatures, candidateLimit)
	for _, r := range refSilence {
		for _, l := range liveSilence {
			if r.Type != l.Type {
				continue
			}
			offset := r.TimeMs - l.TimeMs
			if absInt64(offset) <= searchRangeMs {
				candidates[offset] = struct{}{}
			}
		}
	}

	return candidates
}

func filterByType(sigs []cue.Microsignature, t cue.SigType, limit int) []cue.Microsignature {
	var out []cue.Microsignature
	for _, s := range sigs {
		if s.Type == t {
			out = append(out, s)
			if len(out) == limit {
				break
			}
		}
	}
	return out
}

func filterSilence(sigs []cue.Microsignature, limit int) []cue.Microsignature {
	var out []cue.Microsignature
	for _, s := range sigs {
		if s.Type == cue.SigSilenceStart || s.Type == cue.SigSilenceEnd {
			out = append(out, s)
			if len(out) == limit {
				break
			}
		}
	}
	return out
}

func scoreAlignment(reference, live cue.MicrosignatureSequence, offsetMs int64, cfg MatcherConfig) float64 {
	var score float64
	matchedLive := make(map[int]bool, len(live.Signatures))

	for _, ref := range reference.Signatures {
		adjusted := ref.TimeMs - offsetMs

		for i, l := range live.Signatures {
			if matchedLive[i] || l.Type != ref.Type {
				continue
			}
			diff := absInt64(l.TimeMs - adjusted)
			if diff > int64(cfg.MatchWindowMs) {
				continue
			}

			weight := cfg.TypeWeights[ref.Type]
			if weight == 0 {
				weight = 1.0
			}
			precision := 1.0 - float64(diff)/float64(cfg.MatchWindowMs)
			strength := (ref.Strength + l.Strength) / 2

			score += weight * precision * strength
			matchedLive[i] = true
			break
		}
	}
	return score
}

// VerifySync checks whether the currently assumed offset still holds,
// searching within ±2·toleranceMs. With no signatures to compare it
// assumes sync is still valid rather than flagging a false drift.
func VerifySync(reference, live cue.MicrosignatureSequence, expectedOffsetMs, toleranceMs int64, cfg MatcherConfig) (valid bool, actualOffsetMs int64) {
	offset, confidence, ok := FindOffset(reference, live, toleranceMs*2, cfg)
	if !ok {
		return true, expectedOffsetMs
	}

	drift := absInt64(offset - expectedOffsetMs)
	switch {
	case drift <= toleranceMs && confidence > 0.5:
		return true, offset
	case confidence < 0.3:
		return true, expectedOffsetMs
	default:
		return false, offset
	}
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
