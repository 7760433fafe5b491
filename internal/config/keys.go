package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kFloat
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.host", typ: kString, env: "JUSKVI_SERVER_HOST",
		apply:   func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.port", typ: kInt, env: "JUSKVI_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.template_dir", typ: kString, env: "JUSKVI_SERVER_TEMPLATE_DIR",
		apply:   func(cfg *Config, v any) { cfg.Server.TemplateDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.TemplateDir },
	},
	{
		key: "log.level", typ: kString, env: "JUSKVI_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "storage.data_dir", typ: kString, env: "JUSKVI_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "models.visionary", typ: kString, env: "JUSKVI_MODELS_VISIONARY",
		apply:   func(cfg *Config, v any) { cfg.Models.Visionary = v.(string) },
		extract: func(cfg Config) any { return cfg.Models.Visionary },
	},
	{
		key: "models.skeptic", typ: kString, env: "JUSKVI_MODELS_SKEPTIC",
		apply:   func(cfg *Config, v any) { cfg.Models.Skeptic = v.(string) },
		extract: func(cfg Config) any { return cfg.Models.Skeptic },
	},
	{
		key: "models.judge", typ: kString, env: "JUSKVI_MODELS_JUDGE",
		apply:   func(cfg *Config, v any) { cfg.Models.Judge = v.(string) },
		extract: func(cfg Config) any { return cfg.Models.Judge },
	},
	{
		key: "models.embed", typ: kString, env: "JUSKVI_MODELS_EMBED",
		apply:   func(cfg *Config, v any) { cfg.Models.Embed = v.(string) },
		extract: func(cfg Config) any { return cfg.Models.Embed },
	},
	{
		key: "gemini.api_key", typ: kString, env: "GOOGLE_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Gemini.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.APIKey },
	},
	{
		key: "groq.api_key", typ: kString, env: "GROQ_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Groq.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Groq.APIKey },
	},
	{
		key: "groq.base_url", typ: kString, env: "JUSKVI_GROQ_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Groq.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Groq.BaseURL },
	},
	{
		key: "news.api_key", typ: kString, env: "NEWSDATA_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.News.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.News.APIKey },
	},
	{
		key: "news.base_url", typ: kString, env: "JUSKVI_NEWS_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.News.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.News.BaseURL },
	},
	{
		key: "news.timeout", typ: kDuration, env: "JUSKVI_NEWS_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.News.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.News.Timeout },
	},
	{
		key: "news.language", typ: kString, env: "JUSKVI_NEWS_LANGUAGE",
		apply:   func(cfg *Config, v any) { cfg.News.Language = v.(string) },
		extract: func(cfg Config) any { return cfg.News.Language },
	},
	{
		key: "news.default_keyword", typ: kString, env: "JUSKVI_NEWS_DEFAULT_KEYWORD",
		apply:   func(cfg *Config, v any) { cfg.News.DefaultKeyword = v.(string) },
		extract: func(cfg Config) any { return cfg.News.DefaultKeyword },
	},
	{
		key: "memory.backend", typ: kString, env: "JUSKVI_MEMORY_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Memory.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Memory.Backend },
	},
	{
		key: "memory.pinecone_api_key", typ: kString, env: "PINECONE_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Memory.PineconeAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Memory.PineconeAPIKey },
	},
	{
		key: "memory.pinecone_index", typ: kString, env: "JUSKVI_MEMORY_PINECONE_INDEX",
		apply:   func(cfg *Config, v any) { cfg.Memory.PineconeIndex = v.(string) },
		extract: func(cfg Config) any { return cfg.Memory.PineconeIndex },
	},
	{
		key: "memory.pinecone_host", typ: kString, env: "JUSKVI_MEMORY_PINECONE_HOST",
		apply:   func(cfg *Config, v any) { cfg.Memory.PineconeHost = v.(string) },
		extract: func(cfg Config) any { return cfg.Memory.PineconeHost },
	},
	{
		key: "memory.top_k", typ: kInt, env: "JUSKVI_MEMORY_TOP_K",
		apply:   func(cfg *Config, v any) { cfg.Memory.TopK = v.(int) },
		extract: func(cfg Config) any { return cfg.Memory.TopK },
	},
	{
		key: "memory.min_score", typ: kFloat, env: "JUSKVI_MEMORY_MIN_SCORE",
		apply:   func(cfg *Config, v any) { cfg.Memory.MinScore = v.(float64) },
		extract: func(cfg Config) any { return cfg.Memory.MinScore },
	},
	{
		key: "memory.max_verdict_chars", typ: kInt, env: "JUSKVI_MEMORY_MAX_VERDICT_CHARS",
		apply:   func(cfg *Config, v any) { cfg.Memory.MaxVerdictChars = v.(int) },
		extract: func(cfg Config) any { return cfg.Memory.MaxVerdictChars },
	},
	{
		key: "synthesis.workers", typ: kInt, env: "JUSKVI_SYNTHESIS_WORKERS",
		apply:   func(cfg *Config, v any) { cfg.Synthesis.Workers = v.(int) },
		extract: func(cfg Config) any { return cfg.Synthesis.Workers },
	},
	{
		key: "synthesis.agent_timeout", typ: kDuration, env: "JUSKVI_SYNTHESIS_AGENT_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Synthesis.AgentTimeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Synthesis.AgentTimeout },
	},
	{
		key: "synthesis.memory_timeout", typ: kDuration, env: "JUSKVI_SYNTHESIS_MEMORY_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Synthesis.MemoryTimeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Synthesis.MemoryTimeout },
	},
	{
		key: "synthesis.shutdown_grace", typ: kDuration, env: "JUSKVI_SYNTHESIS_SHUTDOWN_GRACE",
		apply:   func(cfg *Config, v any) { cfg.Synthesis.ShutdownGrace = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Synthesis.ShutdownGrace },
	},
}

// parse converts a raw string to the key's type.
func (s keySpec) parse(raw string) (any, error) {
	switch s.typ {
	case kInt:
		return strconv.Atoi(raw)
	case kFloat:
		return strconv.ParseFloat(raw, 64)
	case kDuration:
		return time.ParseDuration(raw)
	default:
		return raw, nil
	}
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		if s.typ == kInt {
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
			continue
		}

		raw, ok, err := b.GetString(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok || (raw == "" && s.typ != kString) {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse config key %s=%q: %v. Using default value.\n", s.key, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}
