package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port string

	// Auth
	DocauditAPIKey string

	// LLM provider. OpenAIAPIKey is the process-wide key used when a lab has none.
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	OpenAIModel    string
	LLMTemperature float64
	LLMMaxTokens   int
	LLMMaxRetries  int

	// Audit run
	ChunkTimeout       time.Duration
	ChunkMaxChars      int
	MinTextChars       int
	AnalyzeConcurrency int

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// Optional integrations; empty disables them.
	DatabaseURL string
	RedisURL    string
	CacheTTL    time.Duration

	// PDF
	PDFFallbackPdftotext bool
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Port:                 "8090",
		OpenAIModel:          "gpt-4o-mini",
		LLMTemperature:       0.1,
		LLMMaxTokens:         4000,
		LLMMaxRetries:        3,
		ChunkTimeout:         120 * time.Second,
		ChunkMaxChars:        30000,
		MinTextChars:         100,
		AnalyzeConcurrency:   1,
		WorkerCount:          2,
		MaxQueueSize:         50,
		MaxUploadBytes:       52428800, // 50MB
		JobTTL:               1 * time.Hour,
		CacheTTL:             24 * time.Hour,
		PDFFallbackPdftotext: true,
	}
}

// Load reads configuration from defaults, an optional YAML file and the
// environment, in increasing order of precedence. With an empty cfgFile a
// docaudit.yaml in the working directory is used when present.
func Load(cfgFile string) (Config, error) {
	v := viper.New()
	def := Default()

	v.SetDefault("port", def.Port)
	v.SetDefault("docaudit_api_key", "")
	v.SetDefault("openai_api_key", "")
	v.SetDefault("openai_base_url", "")
	v.SetDefault("openai_model", def.OpenAIModel)
	v.SetDefault("llm_temperature", def.LLMTemperature)
	v.SetDefault("llm_max_tokens", def.LLMMaxTokens)
	v.SetDefault("llm_max_retries", def.LLMMaxRetries)
	v.SetDefault("chunk_timeout", def.ChunkTimeout)
	v.SetDefault("chunk_max_chars", def.ChunkMaxChars)
	v.SetDefault("min_text_chars", def.MinTextChars)
	v.SetDefault("analyze_concurrency", def.AnalyzeConcurrency)
	v.SetDefault("worker_count", def.WorkerCount)
	v.SetDefault("max_queue_size", def.MaxQueueSize)
	v.SetDefault("max_upload_bytes", def.MaxUploadBytes)
	v.SetDefault("job_ttl", def.JobTTL)
	v.SetDefault("database_url", "")
	v.SetDefault("redis_url", "")
	v.SetDefault("cache_ttl", def.CacheTTL)
	v.SetDefault("pdf_fallback_pdftotext", def.PDFFallbackPdftotext)

	// Environment variables use the bare upper-case key names (PORT, OPENAI_API_KEY, ...).
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("docaudit")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		Port: strings.TrimSpace(v.GetString("port")),

		DocauditAPIKey: v.GetString("docaudit_api_key"),

		OpenAIAPIKey:   strings.TrimSpace(v.GetString("openai_api_key")),
		OpenAIBaseURL:  v.GetString("openai_base_url"),
		OpenAIModel:    v.GetString("openai_model"),
		LLMTemperature: v.GetFloat64("llm_temperature"),
		LLMMaxTokens:   v.GetInt("llm_max_tokens"),
		LLMMaxRetries:  v.GetInt("llm_max_retries"),

		ChunkTimeout:       v.GetDuration("chunk_timeout"),
		ChunkMaxChars:      v.GetInt("chunk_max_chars"),
		MinTextChars:       v.GetInt("min_text_chars"),
		AnalyzeConcurrency: v.GetInt("analyze_concurrency"),

		WorkerCount:  v.GetInt("worker_count"),
		MaxQueueSize: v.GetInt("max_queue_size"),

		MaxUploadBytes: v.GetInt64("max_upload_bytes"),

		JobTTL: v.GetDuration("job_ttl"),

		DatabaseURL: v.GetString("database_url"),
		RedisURL:    v.GetString("redis_url"),
		CacheTTL:    v.GetDuration("cache_ttl"),

		PDFFallbackPdftotext: v.GetBool("pdf_fallback_pdftotext"),
	}

	if cfg.Port == "" {
		cfg.Port = def.Port
	}
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = def.OpenAIModel
	}
	if cfg.LLMTemperature < 0 {
		cfg.LLMTemperature = def.LLMTemperature
	}
	if cfg.LLMMaxTokens <= 0 {
		cfg.LLMMaxTokens = def.LLMMaxTokens
	}
	if cfg.LLMMaxRetries < 0 {
		cfg.LLMMaxRetries = def.LLMMaxRetries
	}
	if cfg.ChunkTimeout <= 0 {
		cfg.ChunkTimeout = def.ChunkTimeout
	}
	if cfg.ChunkMaxChars <= 0 {
		cfg.ChunkMaxChars = def.ChunkMaxChars
	}
	if cfg.MinTextChars <= 0 {
		cfg.MinTextChars = def.MinTextChars
	}
	if cfg.AnalyzeConcurrency <= 0 {
		cfg.AnalyzeConcurrency = def.AnalyzeConcurrency
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = def.WorkerCount
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = def.MaxQueueSize
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = def.MaxUploadBytes
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = def.JobTTL
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}

	return cfg, nil
}

// Validate checks settings every command depends on.
func (c Config) Validate() error {
	if c.LLMTemperature > 2 {
		return fmt.Errorf("LLM_TEMPERATURE must be between 0 and 2, got %g", c.LLMTemperature)
	}
	if c.MinTextChars > c.ChunkMaxChars {
		return fmt.Errorf("MIN_TEXT_CHARS (%d) exceeds CHUNK_MAX_CHARS (%d)", c.MinTextChars, c.ChunkMaxChars)
	}
	return nil
}

// ValidateServer additionally checks what the HTTP server needs.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.DocauditAPIKey == "" {
		return fmt.Errorf("DOCAUDIT_API_KEY is required")
	}
	return nil
}
