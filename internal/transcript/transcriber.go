// Package transcript feeds recorded audio through a pluggable speech
// recognition backend and turns the result into timed cues, either from a
// full transcription pass (offline recording) or from a single detected
// span inside a live subtitle line (realtime mode).
package transcript

import "context"

// WordTiming is one recognised word with its timing and confidence.
type WordTiming struct {
	Word       string  `json:"word"`
	StartMs    int64   `json:"start_ms"`
	EndMs      int64   `json:"end_ms"`
	Confidence float64 `json:"confidence"`
}

// Result is the full output of a transcription pass.
type Result struct {
	Text        string       `json:"text"`
	Words       []WordTiming `json:"words"`
	Language    string       `json:"language"`
	DurationMs  int64        `json:"duration_ms"`
}

// Transcriber is the core's only dependency on a speech recognition
// engine; the engine itself is always an external collaborator.
type Transcriber interface {
	TranscribeFile(ctx context.Context, path, language string, wordTimestamps bool) (Result, error)
	TranscribeSamples(ctx context.Context, samples []float32, sampleRate int, language string) (Result, error)
}

// scaleWords multiplies every word's start/end time by playbackSpeed,
// e.g. 2x playback halves the reported content-time span of each word.
func scaleWords(words []WordTiming, playbackSpeed float64) []WordTiming {
	if playbackSpeed == 0 || playbackSpeed == 1 {
		return words
	}
	out := make([]WordTiming, len(words))
	for i, w := range words {
		out[i] = WordTiming{
			Word:       w.Word,
			StartMs:    int64(float64(w.StartMs) * playbackSpeed),
			EndMs:      int64(float64(w.EndMs) * playbackSpeed),
			Confidence: w.Confidence,
		}
	}
	return out
}

// Transcribe runs t against samples and scales the resulting word timings
// by playbackSpeed, the convenience entrypoint used by session recording.
func Transcribe(ctx context.Context, t Transcriber, samples []float32, sampleRate int, language string, playbackSpeed float64) (Result, error) {
	result, err := t.TranscribeSamples(ctx, samples, sampleRate, language)
	if err != nil {
		return Result{}, err
	}
	result.Words = scaleWords(result.Words, playbackSpeed)
	return result, nil
}
