package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cuetrace/opencue/internal/cueerr"
	"github.com/cuetrace/opencue/internal/metrics"
)

// OllamaAdvisor judges detections via a non-streaming Ollama chat call in
// JSON-output mode.
type OllamaAdvisor struct {
	url          string
	model        string
	systemPrompt string
	client       *http.Client
}

// NewOllamaAdvisor creates an advisor pointing at an Ollama server's base
// URL (e.g. "http://localhost:11434").
func NewOllamaAdvisor(url, model, systemPrompt string, poolSize int) *OllamaAdvisor {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &OllamaAdvisor{
		url:          url,
		model:        model,
		systemPrompt: systemPrompt,
		client:       newPooledHTTPClient(poolSize, 5*time.Second),
	}
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format"`
	Messages []ollamaMessage `json:"messages"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
}

// Analyze sends a single non-streaming chat request to Ollama and decodes
// its JSON-mode reply into a Verdict. Returns AdvisorTimeout if ctx expires
// before the call completes, AdvisorBadReply if the response cannot be
// parsed into the expected shape.
func (a *OllamaAdvisor) Analyze(ctx context.Context, text, word, category, contextText string) (Verdict, error) {
	reqBody := ollamaChatRequest{
		Model:  a.model,
		Stream: false,
		Format: "json",
		Messages: []ollamaMessage{
			{Role: "system", Content: a.systemPrompt},
			{Role: "user", Content: BuildUserPrompt(text, word, category, contextText)},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: marshal request: %v", cueerr.ErrAdvisorBadReply, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url+"/api/chat", bytes.NewReader(bodyBytes))
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: build request: %v", cueerr.ErrAdvisorBadReply, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		metrics.Errors.WithLabelValues("advisor", "http").Inc()
		if ctx.Err() != nil {
			metrics.AdvisorTimeouts.Inc()
			return Verdict{}, fmt.Errorf("%w: %v", cueerr.ErrAdvisorTimeout, err)
		}
		return Verdict{}, fmt.Errorf("%w: %v", cueerr.ErrAdvisorBadReply, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		metrics.Errors.WithLabelValues("advisor", "status").Inc()
		return Verdict{}, fmt.Errorf("%w: status %d: %s", cueerr.ErrAdvisorBadReply, resp.StatusCode, body)
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return Verdict{}, fmt.Errorf("%w: decode envelope: %v", cueerr.ErrAdvisorBadReply, err)
	}

	var verdict Verdict
	if err := json.Unmarshal([]byte(chatResp.Message.Content), &verdict); err != nil {
		return Verdict{}, fmt.Errorf("%w: decode verdict: %v", cueerr.ErrAdvisorBadReply, err)
	}

	return verdict, nil
}
