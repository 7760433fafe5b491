// Package config loads juskvi's settings: defaults, then the YAML config
// file, then environment variables. Provider credentials come only from the
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Memory backends.
const (
	MemoryPinecone = "pinecone"
	MemorySQLite   = "sqlite"
	MemoryNone     = "none"
)

type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Storage   StorageConfig
	Models    ModelsConfig
	Gemini    GeminiConfig
	Groq      GroqConfig
	News      NewsConfig
	Memory    MemoryConfig
	Synthesis SynthesisConfig
}

type ServerConfig struct {
	Host        string
	Port        int
	TemplateDir string
}

type LogConfig struct {
	Level string
}

type StorageConfig struct {
	DataDir string
}

type ModelsConfig struct {
	Visionary string
	Skeptic   string
	Judge     string
	Embed     string
}

type GeminiConfig struct {
	APIKey string
}

type GroqConfig struct {
	APIKey  string
	BaseURL string
}

type NewsConfig struct {
	APIKey         string
	BaseURL        string
	Timeout        time.Duration
	Language       string
	DefaultKeyword string
}

type MemoryConfig struct {
	Backend         string
	PineconeAPIKey  string
	PineconeIndex   string
	PineconeHost    string
	TopK            int
	MinScore        float64
	MaxVerdictChars int
}

type SynthesisConfig struct {
	Workers int
	// AgentTimeout and MemoryTimeout bound single calls; zero means unbounded.
	AgentTimeout  time.Duration
	MemoryTimeout time.Duration
	ShutdownGrace time.Duration
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        5000,
			TemplateDir: "templates",
		},
		Log: LogConfig{
			Level: "info",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Models: ModelsConfig{
			Visionary: "gemini-2.5-flash",
			Skeptic:   "llama-3.3-70b-versatile",
			Judge:     "gemini-2.5-flash",
			Embed:     "text-embedding-004",
		},
		News: NewsConfig{
			Timeout:        3 * time.Second,
			Language:       "en",
			DefaultKeyword: "tech",
		},
		Memory: MemoryConfig{
			Backend:         MemoryPinecone,
			PineconeIndex:   "synthesis-memory",
			TopK:            2,
			MinScore:        0.75,
			MaxVerdictChars: 1000,
		},
		Synthesis: SynthesisConfig{
			Workers:       10,
			ShutdownGrace: 5 * time.Second,
		},
	}
}

// Load reads configuration from the YAML file at
// $XDG_CONFIG_HOME/juskvi/config.yaml and the environment. JUSKVI_*
// variables override file values. Missing credentials are not an error.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Memory.Backend {
	case MemoryPinecone, MemorySQLite, MemoryNone:
	default:
		return fmt.Errorf("invalid memory.backend %q: want %s, %s or %s", c.Memory.Backend, MemoryPinecone, MemorySQLite, MemoryNone)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.Synthesis.AgentTimeout < 0 || c.Synthesis.MemoryTimeout < 0 {
		return fmt.Errorf("synthesis timeouts must not be negative")
	}
	return nil
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "juskvi-data"
		}
	}
	return filepath.Join(dir, "juskvi")
}

func configFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "juskvi", "config.yaml")
}
