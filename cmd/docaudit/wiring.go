package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dgallion1/docaudit/internal/audit"
	"github.com/dgallion1/docaudit/internal/config"
	"github.com/dgallion1/docaudit/internal/credentials"
	"github.com/dgallion1/docaudit/internal/llm"
	"github.com/dgallion1/docaudit/internal/parser"
	"github.com/dgallion1/docaudit/internal/pipeline"
	"github.com/dgallion1/docaudit/internal/store/postgres"
	"github.com/dgallion1/docaudit/internal/store/redis"
)

const statsWindow = time.Hour

// app holds the services shared by the serve and audit commands.
type app struct {
	log        *slog.Logger
	stats      *llm.Stats
	httpClient *http.Client

	db      *postgres.DB    // nil without DATABASE_URL
	reports *postgres.ReportStore
	redis   *goredis.Client // nil without REDIS_URL

	processor *pipeline.Processor
}

func newApp(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	a := &app{
		log:        log,
		stats:      llm.NewStats(statsWindow),
		httpClient: &http.Client{Timeout: cfg.ChunkTimeout},
	}

	var labKeys credentials.LabKeyLookup
	var sink pipeline.ReportSink
	var cache pipeline.ResultCache

	if cfg.DatabaseURL != "" {
		db, err := openDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.db = db
		a.reports = postgres.NewReportStore(db.DB)
		labKeys = postgres.NewLabKeyStore(db.DB)
		sink = a.reports
		log.Info("postgres enabled: reports are persisted and lab keys resolved")
	}

	if cfg.RedisURL != "" {
		client, err := redis.Connect(ctx, cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redis = client
		cache = redis.NewCache(client, cfg.CacheTTL)
		log.Info("redis enabled: audit results are cached", "ttl", cfg.CacheTTL)
	}

	newCompleter := func(apiKey string) audit.Completer {
		return llm.NewOpenAIClient(llm.Config{
			APIKey:     apiKey,
			BaseURL:    cfg.OpenAIBaseURL,
			Model:      cfg.OpenAIModel,
			MaxRetries: cfg.LLMMaxRetries,
			Timeout:    cfg.ChunkTimeout,
			HTTPClient: a.httpClient,
			Stats:      a.stats,
		})
	}

	orch := audit.NewOrchestrator(
		&parser.PageExtractor{FallbackPdftotext: cfg.PDFFallbackPdftotext, Log: log},
		credentials.NewResolver(labKeys, cfg.OpenAIAPIKey, log),
		newCompleter,
		audit.Options{
			ChunkMaxChars: cfg.ChunkMaxChars,
			MinTextChars:  cfg.MinTextChars,
			Concurrency:   cfg.AnalyzeConcurrency,
			ChunkTimeout:  cfg.ChunkTimeout,
			Temperature:   cfg.LLMTemperature,
			MaxTokens:     cfg.LLMMaxTokens,
			Model:         cfg.OpenAIModel,
		},
		log,
	)

	a.processor = pipeline.NewProcessor(orch, sink, cache, log)
	return a, nil
}

func (a *app) Close() {
	a.httpClient.CloseIdleConnections()
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("close redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("close database", "error", err)
		}
	}
}

// openDB connects to Postgres for commands that require it.
func openDB(ctx context.Context, cfg config.Config) (*postgres.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := postgres.Connect(ctx, postgres.DefaultConfig(cfg.DatabaseURL))
	if err != nil {
		return nil, err
	}
	if err := db.InitSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
