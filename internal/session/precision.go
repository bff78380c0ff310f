package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuetrace/opencue/internal/audio"
	"github.com/cuetrace/opencue/internal/cue"
	"github.com/cuetrace/opencue/internal/cueerr"
	"github.com/cuetrace/opencue/internal/transcript"
)

// precisionTargetSampleRate is the rate the collected buffer is resampled
// to before transcription, matching the fingerprinting/transcription
// pipeline's expected input.
const precisionTargetSampleRate = 16000

// precisionRecordingState is the precision recording mode's mutable state:
// a dedicated capture session collecting raw chunks while a volume
// envelope is sampled concurrently from the same meter, stopped and
// handed to the transcriber as one sealed buffer.
type precisionRecordingState struct {
	title         string
	contentID     string
	playbackSpeed float64
	videoOffsetMs int64
	startedAt     time.Time

	nativeRate int

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	chunks   [][]float32
	envelope []audio.EnvelopeSample
}

// recordingRequirements reports whether the session's manager has what
// precision recording needs.
type recordingRequirements struct {
	CaptureAvailable     bool `json:"capture_available"`
	TranscriberAvailable bool `json:"transcriber_available"`
	Ready                bool `json:"ready"`
}

// CheckPrecisionRequirements reports whether precision recording can run.
func (s *Session) CheckPrecisionRequirements() recordingRequirements {
	r := recordingRequirements{
		CaptureAvailable:     s.mgr.Capture != nil,
		TranscriberAvailable: s.mgr.Transcriber != nil,
	}
	r.Ready = r.CaptureAvailable && r.TranscriberAvailable
	return r
}

type precisionStartedInfo struct {
	Title     string `json:"title"`
	StartedAt int64  `json:"started_at_ms"`
}

// StartPrecisionRecording opens a dedicated capture session (distinct from
// any fingerprint-sync capture already running) and begins collecting raw
// chunks and a concurrent volume envelope. Capture is requested at the
// package's default chunk duration (500ms).
func (s *Session) StartPrecisionRecording(title, contentID string, playbackSpeed float64, videoOffsetMs int64) (precisionStartedInfo, error) {
	if s.mgr.Capture == nil {
		return precisionStartedInfo{}, fmt.Errorf("%w: no capture backend configured", cueerr.ErrCaptureUnavailable)
	}
	if s.precisionRecording != nil {
		return precisionStartedInfo{}, fmt.Errorf("%w: precision recording already in progress", cueerr.ErrInvalidState)
	}
	if playbackSpeed <= 0 {
		playbackSpeed = 1
	}

	cfg := audio.DefaultConfig()
	if err := s.mgr.Capture.Start(audio.ModeAuto, cfg); err != nil {
		return precisionStartedInfo{}, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	st := &precisionRecordingState{
		title:         title,
		contentID:     contentID,
		playbackSpeed: playbackSpeed,
		videoOffsetMs: videoOffsetMs,
		startedAt:     time.Now(),
		nativeRate:    s.mgr.Capture.NativeSampleRate(),
		cancel:        cancel,
	}
	if st.nativeRate == 0 {
		st.nativeRate = cfg.SampleRate
	}

	meter := &audio.ChunkMeter{}
	st.wg.Add(2)
	go st.collect(ctx, s.mgr.Capture, meter)
	go st.sampleEnvelope(ctx, meter)

	s.precisionRecording = st
	s.Mode = ModeRecording
	s.ContentID = contentID

	return precisionStartedInfo{Title: title, StartedAt: st.startedAt.UnixMilli()}, nil
}

func (st *precisionRecordingState) collect(ctx context.Context, pipeline *audio.Pipeline, meter *audio.ChunkMeter) {
	defer st.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		chunk, ok := pipeline.NextChunk(time.Second)
		if !ok {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		meter.Feed(chunk.Samples)
		st.mu.Lock()
		st.chunks = append(st.chunks, chunk.Samples)
		st.mu.Unlock()
	}
}

func (st *precisionRecordingState) sampleEnvelope(ctx context.Context, meter *audio.ChunkMeter) {
	defer st.wg.Done()
	sampler := audio.NewEnvelopeSampler(meter, audio.DefaultEnvelopeConfig())
	for sample := range sampler.Run(ctx, st.startedAt) {
		st.mu.Lock()
		st.envelope = append(st.envelope, sample)
		st.mu.Unlock()
	}
}

// stop halts both collector goroutines without building or persisting
// anything, used when a session closes mid-recording.
func (st *precisionRecordingState) stop() {
	st.cancel()
	st.wg.Wait()
}

func (st *precisionRecordingState) samples() []float32 {
	st.mu.Lock()
	defer st.mu.Unlock()
	var n int
	for _, c := range st.chunks {
		n += len(c)
	}
	out := make([]float32, 0, n)
	for _, c := range st.chunks {
		out = append(out, c...)
	}
	return out
}

func (st *precisionRecordingState) buildEnvelope() *cue.VolumeEnvelope {
	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.envelope) == 0 {
		return nil
	}
	env := &cue.VolumeEnvelope{
		SampleRateHz: audio.DefaultEnvelopeConfig().PollRateHz,
		StartTimeMs:  st.startedAt.UnixMilli(),
	}
	for _, sample := range st.envelope {
		env.TimestampsMs = append(env.TimestampsMs, sample.TimeMs+st.videoOffsetMs)
		env.Samples = append(env.Samples, sample.Peak)
	}
	return env
}

type precisionStoppedInfo struct {
	CueCount   int    `json:"cue_count"`
	DurationMs int64  `json:"duration_ms"`
	Path       string `json:"path"`
	Language   string `json:"language"`
}

// StopPrecisionRecording halts capture, concatenates the collected buffer,
// resamples and peak-normalises it, transcribes it, builds mute cues from
// the transcription, attaches the sampled volume envelope, and persists
// the result to the catalogue. Transcription failure leaves the session's
// recorded buffer discarded (the caller already has nothing else to do
// with raw PCM) and returns the error; the capture resources are always
// released regardless of outcome.
func (s *Session) StopPrecisionRecording(ctx context.Context, language string) (precisionStoppedInfo, error) {
	st := s.precisionRecording
	if st == nil {
		return precisionStoppedInfo{}, fmt.Errorf("%w: no precision recording in progress", cueerr.ErrInvalidState)
	}
	st.stop()
	s.mgr.Capture.Stop()
	s.precisionRecording = nil
	s.Mode = ModeRealtime

	raw := st.samples()
	resampled := audio.Resample(raw, st.nativeRate, precisionTargetSampleRate)
	normalized := audio.Normalize(resampled, audio.DefaultNormalizeTarget, audio.DefaultMaxGain)

	if s.mgr.Transcriber == nil {
		return precisionStoppedInfo{}, fmt.Errorf("%w: no transcriber configured", cueerr.ErrTranscriberUnavailable)
	}

	result, err := transcript.Transcribe(ctx, s.mgr.Transcriber, normalized, precisionTargetSampleRate, language, st.playbackSpeed)
	if err != nil {
		return precisionStoppedInfo{}, fmt.Errorf("%w: %v", cueerr.ErrTranscriberFailed, err)
	}

	cues := transcript.EmitFromTranscription(result.Words, s.mgr.Detector, transcript.DefaultPadBeforeMs, transcript.DefaultPadAfterMs, st.videoOffsetMs)

	durationMs := int64(float64(len(normalized)) / float64(precisionTargetSampleRate) * 1000)
	f := &cue.File{
		Version: cue.CurrentVersion,
		Content: cue.Content{
			Title:      st.title,
			ContentID:  st.contentID,
			DurationMs: durationMs,
		},
		Cues:           cues,
		VolumeEnvelope: st.buildEnvelope(),
		Metadata: cue.Metadata{
			Created: time.Now(),
			Source:  "precision_recording",
		},
	}
	f.SortCues()

	path, err := s.mgr.Catalogue.Add(f, cue.SanitizeFilename(st.title))
	if err != nil {
		return precisionStoppedInfo{}, err
	}

	return precisionStoppedInfo{
		CueCount:   len(cues),
		DurationMs: durationMs,
		Path:       path,
		Language:   result.Language,
	}, nil
}

// AbortPrecisionRecording halts capture and discards the collected buffer
// without transcribing or persisting anything.
func (s *Session) AbortPrecisionRecording() {
	st := s.precisionRecording
	if st == nil {
		return
	}
	st.stop()
	s.mgr.Capture.Stop()
	s.precisionRecording = nil
	s.Mode = ModeRealtime
}

type precisionStatusInfo struct {
	Recording    bool  `json:"recording"`
	ElapsedMs    int64 `json:"elapsed_ms,omitempty"`
	ChunksBuffered int `json:"chunks_buffered,omitempty"`
}

// GetPrecisionRecordingStatus reports the current precision recording state.
func (s *Session) GetPrecisionRecordingStatus() precisionStatusInfo {
	st := s.precisionRecording
	if st == nil {
		return precisionStatusInfo{Recording: false}
	}
	st.mu.Lock()
	n := len(st.chunks)
	st.mu.Unlock()
	return precisionStatusInfo{
		Recording:      true,
		ElapsedMs:      time.Since(st.startedAt).Milliseconds(),
		ChunksBuffered: n,
	}
}
