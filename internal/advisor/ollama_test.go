package advisor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestOllamaAdvisorParsesVerdict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Format != "json" {
			t.Errorf("expected json format mode, got %q", req.Format)
		}
		if req.Stream {
			t.Error("expected non-streaming request")
		}

		verdict := Verdict{ShouldFilter: false, Confidence: 0.82, Reason: "proper noun", ContextType: "name"}
		content, _ := json.Marshal(verdict)
		resp := ollamaChatResponse{Message: ollamaMessage{Role: "assistant", Content: string(content)}}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	a := NewOllamaAdvisor(srv.URL, "llama3", "", 2)
	v, err := a.Analyze(context.Background(), "Damn Daniel back at it again", "damn", "language.profanity.mild", "a proper noun")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.ShouldFilter {
		t.Error("expected should_filter=false")
	}
	if v.ContextType != "name" {
		t.Errorf("expected context_type 'name', got %q", v.ContextType)
	}
}

func TestOllamaAdvisorTimeoutErr(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
	}))
	defer srv.Close()

	a := NewOllamaAdvisor(srv.URL, "llama3", "", 2)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := a.Analyze(ctx, "text", "word", "category", "context")
	if err == nil {
		t.Fatal("expected a timeout error")
	}
}

func TestOllamaAdvisorBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := NewOllamaAdvisor(srv.URL, "llama3", "", 2)
	_, err := a.Analyze(context.Background(), "text", "word", "category", "context")
	if err == nil {
		t.Fatal("expected an error on non-200 status")
	}
}

func TestBuildUserPromptIncludesFields(t *testing.T) {
	p := BuildUserPrompt("full line", "word", "category", "context")
	for _, want := range []string{"full line", "word", "category", "context"} {
		if !strings.Contains(p, want) {
			t.Errorf("expected prompt to contain %q, got: %s", want, p)
		}
	}
}
