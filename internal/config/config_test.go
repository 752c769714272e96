package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var envKeys = []string{
	"PORT", "DOCAUDIT_API_KEY", "OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL",
	"LLM_TEMPERATURE", "LLM_MAX_TOKENS", "LLM_MAX_RETRIES", "CHUNK_TIMEOUT", "CHUNK_MAX_CHARS",
	"MIN_TEXT_CHARS", "ANALYZE_CONCURRENCY", "WORKER_COUNT", "MAX_QUEUE_SIZE", "MAX_UPLOAD_BYTES",
	"JOB_TTL", "DATABASE_URL", "REDIS_URL", "CACHE_TTL", "PDF_FALLBACK_PDFTOTEXT",
}

// isolate runs the test in an empty directory with no docaudit variables set.
// Empty variables are ignored by viper, so they read as unset.
func isolate(t *testing.T) string {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Default() {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestLoadFromEnv(t *testing.T) {
	isolate(t)
	t.Setenv("PORT", "9000")
	t.Setenv("OPENAI_MODEL", "gpt-4o")
	t.Setenv("CHUNK_MAX_CHARS", "12000")
	t.Setenv("CHUNK_TIMEOUT", "30s")
	t.Setenv("PDF_FALLBACK_PDFTOTEXT", "false")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9000" || cfg.OpenAIModel != "gpt-4o" || cfg.ChunkMaxChars != 12000 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.ChunkTimeout != 30*time.Second {
		t.Errorf("ChunkTimeout = %v", cfg.ChunkTimeout)
	}
	if cfg.PDFFallbackPdftotext {
		t.Error("expected pdftotext fallback disabled")
	}
	if cfg.RedisURL != "redis://localhost:6379/0" {
		t.Errorf("RedisURL = %q", cfg.RedisURL)
	}
}

func TestLoadNonPositiveFallsBack(t *testing.T) {
	isolate(t)
	t.Setenv("WORKER_COUNT", "0")
	t.Setenv("MAX_QUEUE_SIZE", "-3")
	t.Setenv("JOB_TTL", "not-a-duration")
	t.Setenv("MIN_TEXT_CHARS", "abc")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := Default()
	if cfg.WorkerCount != def.WorkerCount || cfg.MaxQueueSize != def.MaxQueueSize {
		t.Errorf("expected pool defaults, got %d/%d", cfg.WorkerCount, cfg.MaxQueueSize)
	}
	if cfg.JobTTL != def.JobTTL || cfg.MinTextChars != def.MinTextChars {
		t.Errorf("expected defaults, got %v/%d", cfg.JobTTL, cfg.MinTextChars)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")
	body := "port: \"7070\"\nworker_count: 8\nopenai_model: gpt-4.1\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WORKER_COUNT", "3")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "7070" || cfg.OpenAIModel != "gpt-4.1" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.WorkerCount != 3 {
		t.Errorf("expected env to override file, got %d", cfg.WorkerCount)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolate(t)
	if _, err := Load("does-not-exist.yaml"); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if err := cfg.ValidateServer(); err == nil {
		t.Error("expected server validation to require DOCAUDIT_API_KEY")
	}
	cfg.DocauditAPIKey = "secret"
	if err := cfg.ValidateServer(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	bad := Default()
	bad.LLMTemperature = 3
	if err := bad.Validate(); err == nil {
		t.Error("expected temperature error")
	}
	bad = Default()
	bad.MinTextChars = bad.ChunkMaxChars + 1
	if err := bad.Validate(); err == nil {
		t.Error("expected min text error")
	}
}
