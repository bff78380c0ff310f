package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuetrace/opencue/internal/advisor"
	"github.com/cuetrace/opencue/internal/audio"
	"github.com/cuetrace/opencue/internal/cue"
	"github.com/cuetrace/opencue/internal/env"
	"github.com/cuetrace/opencue/internal/history"
	"github.com/cuetrace/opencue/internal/profanity"
	"github.com/cuetrace/opencue/internal/session"
	"github.com/cuetrace/opencue/internal/transcript"
	"github.com/cuetrace/opencue/internal/ws"
)

// config holds deployment knobs, the teacher's envStr/envInt/envFloat
// pattern. Unlike the teacher, there is no separate JSON tuning file here
// — the sync engine has no equivalent of gateway.json's model-tuning
// surface, so every knob lives in the environment.
type config struct {
	port            string
	lexiconPath     string
	catalogueDir    string
	recordingsDir   string
	captureMode     string
	whisperURL      string
	whisperPoolSize int
	ollamaURL       string
	ollamaModel     string
	postgresURL     string
}

func loadConfig() config {
	return config{
		port:            env.Str("CUESYNC_PORT", "8090"),
		lexiconPath:     env.Str("CUESYNC_LEXICON_PATH", "lexicon.json"),
		catalogueDir:    env.Str("CUESYNC_CATALOGUE_DIR", "./cuefiles"),
		recordingsDir:   env.Str("CUESYNC_RECORDINGS_DIR", ""),
		captureMode:     env.Str("CUESYNC_CAPTURE_MODE", "none"),
		whisperURL:      env.Str("WHISPER_SERVER_URL", ""),
		whisperPoolSize: env.Int("WHISPER_POOL_SIZE", 10),
		ollamaURL:       env.Str("OLLAMA_URL", "http://localhost:11434"),
		ollamaModel:     env.Str("OLLAMA_MODEL", "llama3.2:3b"),
		postgresURL:     env.Str("POSTGRES_URL", ""),
	}
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg := loadConfig()

	lexicon, err := profanity.LoadLexicon(cfg.lexiconPath)
	if err != nil {
		slog.Error("load lexicon", "path", cfg.lexiconPath, "error", err)
		os.Exit(1)
	}
	detector := profanity.NewDetector(lexicon)

	catalogue, err := cue.NewCatalogue(cfg.catalogueDir)
	if err != nil {
		slog.Error("open catalogue", "dir", cfg.catalogueDir, "error", err)
		os.Exit(1)
	}

	mgr := session.NewManager(catalogue, detector)
	mgr.RecordingsDir = cfg.recordingsDir

	if cfg.whisperURL != "" {
		mgr.Transcriber = transcript.NewWhisperClient(cfg.whisperURL, cfg.whisperPoolSize)
	}
	if cfg.ollamaURL != "" {
		mgr.Advisor = advisor.NewOllamaAdvisor(cfg.ollamaURL, cfg.ollamaModel, "", 10)
	}
	mgr.Capture = initCapture(cfg.captureMode)

	if cfg.postgresURL != "" {
		store, err := history.Open(cfg.postgresURL)
		if err != nil {
			slog.Error("history store open failed, continuing without it", "error", err)
		} else {
			mgr.History = store
			slog.Info("session history enabled", "postgres", cfg.postgresURL)
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/sync", ws.NewHandler(mgr))

	addr := ":" + cfg.port
	srv := &http.Server{Addr: addr, Handler: mux}

	go awaitShutdown(srv)

	slog.Info("cuesync starting", "addr", addr, "catalogue", cfg.catalogueDir)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("cuesync stopped")
}

// initCapture resolves the configured capture backend pairing for
// fingerprint sync and precision recording. "none" leaves it nil —
// cue-file sync then falls back to subtitle-text or timestamp-only mode,
// and precision recording reports itself unavailable.
func initCapture(mode string) *audio.Pipeline {
	if mode == "none" {
		return nil
	}
	return audio.NewPipeline(audio.LoopbackBackend{}, audio.MicrophoneBackend{})
}

// awaitShutdown blocks until SIGINT/SIGTERM, then drains in-flight
// requests before the process exits.
func awaitShutdown(srv *http.Server) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}
