package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/kalambet/juskvi/internal/agent"
	"github.com/kalambet/juskvi/internal/composer"
	"github.com/kalambet/juskvi/internal/config"
	"github.com/kalambet/juskvi/internal/gemini"
	"github.com/kalambet/juskvi/internal/groq"
	"github.com/kalambet/juskvi/internal/memory"
	"github.com/kalambet/juskvi/internal/news"
	"github.com/kalambet/juskvi/internal/pool"
	"github.com/kalambet/juskvi/internal/storage"
	"github.com/kalambet/juskvi/internal/synthesis"
)

// app holds the wired synthesis pipeline and what must be released on exit.
type app struct {
	orchestrator *synthesis.Orchestrator
	pool         *pool.Pool
	db           *storage.DB
}

func setupLogging(level string) {
	logLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

// providers builds the agent runner and the embedding engine from the
// configured credentials. A provider without a key is left nil, which the
// runner reports as unconfigured.
func providers(ctx context.Context, cfg config.Config) (*agent.Runner, memory.EmbedEngine) {
	var (
		visionProvider agent.Provider
		chatProvider   agent.Provider
		embedEngine    memory.EmbedEngine
	)

	if cfg.Gemini.APIKey != "" {
		g, err := gemini.New(ctx, cfg.Gemini.APIKey)
		if err != nil {
			slog.Warn("gemini client unavailable", "error", err)
		} else {
			visionProvider = g
			embedEngine = g
		}
	}
	if cfg.Groq.APIKey != "" {
		chatProvider = groq.NewClientWithBaseURL(cfg.Groq.APIKey, cfg.Groq.BaseURL)
	}

	runner := agent.NewRunner(cfg.Synthesis.AgentTimeout,
		agent.Route{Name: "gemini", Match: "gemini", Provider: visionProvider},
		agent.Route{Name: "groq", Provider: chatProvider},
	)
	return runner, embedEngine
}

// newApp builds every collaborator from cfg. A missing credential leaves
// that collaborator unconfigured; it never fails startup.
func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	runner, embedEngine := providers(ctx, cfg)
	personas := composer.NewPersonas(cfg.Models.Visionary, cfg.Models.Skeptic, cfg.Models.Judge)
	for _, p := range personas.All() {
		if !runner.Configured(p.Model) {
			slog.Warn("persona offline: provider has no API key", "role", p.Role, "model", p.Model)
		}
	}
	if embedEngine == nil && cfg.Memory.Backend != config.MemoryNone {
		slog.Warn("GOOGLE_API_KEY not set; memory cannot embed")
	}

	a := &app{pool: pool.New(cfg.Synthesis.Workers)}

	index, err := a.openIndex(cfg)
	if err != nil {
		return nil, err
	}
	store := memory.NewStore(memory.NewEmbedder(embedEngine, cfg.Models.Embed), index, memory.Options{
		TopK:            cfg.Memory.TopK,
		MinScore:        float32(cfg.Memory.MinScore),
		MaxVerdictChars: cfg.Memory.MaxVerdictChars,
	})

	newsClient := news.NewClient(news.Config{
		APIKey:         cfg.News.APIKey,
		BaseURL:        cfg.News.BaseURL,
		Timeout:        cfg.News.Timeout,
		Language:       cfg.News.Language,
		DefaultKeyword: cfg.News.DefaultKeyword,
	})
	if !newsClient.Configured() {
		slog.Warn("NEWSDATA_API_KEY not set; news lookup disabled")
	}

	a.orchestrator = synthesis.New(a.pool, newsClient, store, runner, synthesis.Options{
		Personas:      personas,
		MemoryTimeout: cfg.Synthesis.MemoryTimeout,
	})
	return a, nil
}

// openIndex returns the configured vector index, or nil when memory is off.
func (a *app) openIndex(cfg config.Config) (memory.Index, error) {
	switch cfg.Memory.Backend {
	case config.MemoryPinecone:
		if cfg.Memory.PineconeAPIKey == "" {
			slog.Warn("PINECONE_API_KEY not set; memory disabled")
			return nil, nil
		}
		return memory.NewPineconeIndex(memory.PineconeConfig{
			APIKey:    cfg.Memory.PineconeAPIKey,
			IndexName: cfg.Memory.PineconeIndex,
			Host:      cfg.Memory.PineconeHost,
		}), nil
	case config.MemorySQLite:
		db, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return nil, fmt.Errorf("opening storage: %w", err)
		}
		a.db = db
		return memory.NewSQLiteIndex(db.SQL()), nil
	default:
		slog.Info("memory disabled by configuration")
		return nil, nil
	}
}

// close drains background saves for up to the grace period, then releases storage.
func (a *app) close(ctx context.Context) {
	if err := a.pool.Shutdown(ctx); err != nil {
		slog.Warn("background work abandoned", "error", err)
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			slog.Warn("closing storage", "error", err)
		}
	}
}
