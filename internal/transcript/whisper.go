package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"github.com/cuetrace/opencue/internal/audio"
	"github.com/cuetrace/opencue/internal/cueerr"
	"github.com/cuetrace/opencue/internal/metrics"
)

// WhisperClient transcribes audio against a whisper.cpp/faster-whisper
// style HTTP server exposing a multipart-upload inference endpoint.
type WhisperClient struct {
	url    string
	client *http.Client
}

// NewWhisperClient creates a client pointing at a whisper server's base
// URL (e.g. "http://localhost:8090").
func NewWhisperClient(url string, poolSize int) *WhisperClient {
	return &WhisperClient{
		url:    url,
		client: newPooledHTTPClient(poolSize, 60*time.Second),
	}
}

type whisperSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type whisperWord struct {
	Word       string  `json:"word"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

type whisperResponse struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Duration float64          `json:"duration"`
	Segments []whisperSegment `json:"segments"`
	Words    []whisperWord    `json:"words"`
}

// TranscribeFile uploads the WAV file at path for transcription.
func (c *WhisperClient) TranscribeFile(ctx context.Context, path, language string, wordTimestamps bool) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("%w: read %s: %v", cueerr.ErrTranscriberFailed, path, err)
	}
	return c.transcribe(ctx, data, language, wordTimestamps)
}

// TranscribeSamples encodes samples as WAV and uploads them for
// transcription.
func (c *WhisperClient) TranscribeSamples(ctx context.Context, samples []float32, sampleRate int, language string) (Result, error) {
	data, err := audio.EncodeWAV(samples, sampleRate)
	if err != nil {
		return Result{}, fmt.Errorf("%w: encode wav: %v", cueerr.ErrTranscriberFailed, err)
	}
	return c.transcribe(ctx, data, language, true)
}

func (c *WhisperClient) transcribe(ctx context.Context, wavData []byte, language string, wordTimestamps bool) (Result, error) {
	start := time.Now()

	body, contentType, err := buildMultipartRequest(wavData, language, wordTimestamps)
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/inference", body)
	if err != nil {
		return Result{}, fmt.Errorf("%w: build request: %v", cueerr.ErrTranscriberFailed, err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.Errors.WithLabelValues("transcriber", "http").Inc()
		return Result{}, fmt.Errorf("%w: %v", cueerr.ErrTranscriberUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		metrics.Errors.WithLabelValues("transcriber", "status").Inc()
		return Result{}, fmt.Errorf("%w: status %d: %s", cueerr.ErrTranscriberFailed, resp.StatusCode, string(respBody))
	}

	var wr whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return Result{}, fmt.Errorf("%w: decode response: %v", cueerr.ErrTranscriberFailed, err)
	}

	metrics.StageDuration.WithLabelValues("transcribe").Observe(time.Since(start).Seconds())

	return whisperResultToResult(wr), nil
}

func whisperResultToResult(wr whisperResponse) Result {
	words := make([]WordTiming, 0, len(wr.Words))
	for _, w := range wr.Words {
		words = append(words, WordTiming{
			Word:       w.Word,
			StartMs:    int64(w.Start * 1000),
			EndMs:      int64(w.End * 1000),
			Confidence: w.Confidence,
		})
	}
	return Result{
		Text:       wr.Text,
		Words:      words,
		Language:   wr.Language,
		DurationMs: int64(wr.Duration * 1000),
	}
}

func buildMultipartRequest(wavData []byte, language string, wordTimestamps bool) (*bytes.Buffer, string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, "", fmt.Errorf("%w: create form file: %v", cueerr.ErrTranscriberFailed, err)
	}
	if _, err := part.Write(wavData); err != nil {
		return nil, "", fmt.Errorf("%w: write wav data: %v", cueerr.ErrTranscriberFailed, err)
	}

	if language != "" {
		_ = writer.WriteField("language", language)
	}
	if wordTimestamps {
		_ = writer.WriteField("word_timestamps", "true")
	}
	_ = writer.WriteField("response_format", "verbose_json")

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("%w: close writer: %v", cueerr.ErrTranscriberFailed, err)
	}

	return &body, writer.FormDataContentType(), nil
}
