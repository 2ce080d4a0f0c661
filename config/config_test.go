package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.HTTPPort != 8000 {
		t.Fatalf("expected port 8000, got %d", cfg.HTTPPort)
	}
	if cfg.Role != RoleMaster {
		t.Fatalf("expected master role, got %s", cfg.Role)
	}
	if cfg.OllamaBaseURL != "http://localhost:11434" {
		t.Fatalf("unexpected ollama url %s", cfg.OllamaBaseURL)
	}
	if cfg.SynthesizerModel == "" {
		t.Fatal("expected a default synthesizer model")
	}
	if cfg.StageTimeout != 5*time.Minute {
		t.Fatalf("unexpected stage timeout %s", cfg.StageTimeout)
	}
	if cfg.DatabaseURL != "" {
		t.Fatalf("expected in-memory sessions by default, got %s", cfg.DatabaseURL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9001")
	t.Setenv("ROLE", "worker")
	t.Setenv("WORKER_URL", "http://worker:8000")
	t.Setenv("STAGE_TIMEOUT_MS", "1000")

	cfg := Load()
	if cfg.HTTPPort != 9001 {
		t.Fatalf("expected port 9001, got %d", cfg.HTTPPort)
	}
	if cfg.Role != RoleWorker {
		t.Fatalf("expected worker role, got %s", cfg.Role)
	}
	if cfg.StageTimeout != time.Second {
		t.Fatalf("unexpected stage timeout %s", cfg.StageTimeout)
	}
}

func TestInferenceBaseURL(t *testing.T) {
	cfg := &Config{Role: RoleMaster, OllamaBaseURL: "http://localhost:11434", WorkerURL: "http://worker:8000"}
	if got := cfg.InferenceBaseURL(); got != "http://worker:8000" {
		t.Fatalf("master with worker should delegate, got %s", got)
	}

	cfg.WorkerURL = ""
	if got := cfg.InferenceBaseURL(); got != "http://localhost:11434" {
		t.Fatalf("master without worker should stay local, got %s", got)
	}

	worker := &Config{Role: RoleWorker, OllamaBaseURL: "http://localhost:11434", WorkerURL: "http://other:8000"}
	if got := worker.InferenceBaseURL(); got != "http://localhost:11434" {
		t.Fatalf("worker always talks to local ollama, got %s", got)
	}
}
