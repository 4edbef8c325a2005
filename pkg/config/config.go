package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Server
	Port    string
	AppName string

	// Database
	DatabaseDriver string // postgres or sqlite
	DatabaseURL    string
	AutoMigrate    bool

	// Logging
	LogLevel      string
	LogFormat     string // text or json
	LogFile       string // empty = stdout only
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	// Actor identity
	JWTSecret       string // empty = trust X-Actor
	JWTIssuer       string
	JWTRequireToken bool

	// Ollama embed endpoint for the cosine method (empty URL = term vectors)
	OllamaEmbedURL   string
	OllamaEmbedModel string
	OllamaEmbedToken string // Bearer token for Ollama Cloud (empty = local)

	// Similarity
	Similarity           SimilarityTuning
	SimilarityTuningFile string
	RecomputeInterval    time.Duration // 0 = no periodic recompute

	// MCP
	MCPEnabled bool
	MCPPort    string

	// Frontend
	FrontendURL string
}

// SimilarityTuning holds the knobs of the similarity engine. Environment
// values are applied first; a tuning file overrides them.
type SimilarityTuning struct {
	Method           string  `yaml:"method"`
	MinScore         float64 `yaml:"min_score"`
	SimilarThreshold float64 `yaml:"similar_threshold"`
	SiblingStrength  float64 `yaml:"sibling_strength"`
	Workers          int     `yaml:"workers"`
	Weights          Weights `yaml:"weights"`
}

// Weights are the per-feature weights of the jaccard_weighted method.
type Weights struct {
	Tag         float64 `yaml:"tag"`
	Segment     float64 `yaml:"segment"`
	Category    float64 `yaml:"category"`
	ContentType float64 `yaml:"content_type"`
	Parent      float64 `yaml:"parent"`
}

// Load reads configuration from environment variables with sensible defaults,
// then applies SIMILARITY_TUNING_FILE when set.
func Load() (*Config, error) {
	cfg := &Config{
		Port:    envOrDefault("PORT", "3001"),
		AppName: envOrDefault("APP_NAME", "Decant"),

		DatabaseDriver: envOrDefault("DATABASE_DRIVER", "sqlite"),
		DatabaseURL:    envOrDefault("DATABASE_URL", "decant.db"),
		AutoMigrate:    envOrDefaultBool("AUTO_MIGRATE", true),

		LogLevel:      envOrDefault("LOG_LEVEL", "info"),
		LogFormat:     envOrDefault("LOG_FORMAT", "text"),
		LogFile:       os.Getenv("LOG_FILE"),
		LogMaxSizeMB:  envOrDefaultInt("LOG_MAX_SIZE_MB", 100),
		LogMaxBackups: envOrDefaultInt("LOG_MAX_BACKUPS", 5),
		LogMaxAgeDays: envOrDefaultInt("LOG_MAX_AGE_DAYS", 30),

		JWTSecret:       os.Getenv("JWT_SECRET"),
		JWTIssuer:       envOrDefault("JWT_ISSUER", "decant"),
		JWTRequireToken: envOrDefaultBool("JWT_REQUIRE_TOKEN", false),

		OllamaEmbedURL:   os.Getenv("OLLAMA_EMBED_URL"),
		OllamaEmbedModel: envOrDefault("OLLAMA_EMBED_MODEL", "bge-m3"),
		OllamaEmbedToken: os.Getenv("OLLAMA_EMBED_TOKEN"),

		Similarity: SimilarityTuning{
			Method:           envOrDefault("SIMILARITY_METHOD", "jaccard_weighted"),
			MinScore:         envOrDefaultFloat("SIMILARITY_MIN_SCORE", 0),
			SimilarThreshold: envOrDefaultFloat("SIMILARITY_THRESHOLD", 0.5),
			SiblingStrength:  envOrDefaultFloat("SIBLING_STRENGTH", 0.5),
			Workers:          envOrDefaultInt("SIMILARITY_WORKERS", 4),
			Weights:          Weights{Tag: 1, Segment: 1.5, Category: 2, ContentType: 0.5, Parent: 1.5},
		},
		SimilarityTuningFile: os.Getenv("SIMILARITY_TUNING_FILE"),
		RecomputeInterval:    envOrDefaultDuration("SIMILARITY_RECOMPUTE_INTERVAL", 0),

		MCPEnabled: envOrDefaultBool("MCP_ENABLED", false),
		MCPPort:    envOrDefault("MCP_PORT", "3002"),

		FrontendURL: envOrDefault("FRONTEND_URL", "http://localhost:3000"),
	}

	if cfg.SimilarityTuningFile != "" {
		if err := cfg.Similarity.LoadFile(cfg.SimilarityTuningFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML tuning file at path onto t. Keys absent from
// the file keep their current values.
func (t *SimilarityTuning) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read tuning file: %w", err)
	}
	if err := yaml.Unmarshal(data, t); err != nil {
		return fmt.Errorf("parse tuning file %s: %w", path, err)
	}
	return nil
}

// Validate rejects values the services cannot run with.
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case "postgres", "postgresql", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	s := c.Similarity
	switch {
	case s.MinScore < 0 || s.MinScore > 1:
		return fmt.Errorf("similarity min_score %v is outside [0,1]", s.MinScore)
	case s.SimilarThreshold < 0 || s.SimilarThreshold > 1:
		return fmt.Errorf("similarity threshold %v is outside [0,1]", s.SimilarThreshold)
	case s.SiblingStrength < 0 || s.SiblingStrength > 1:
		return fmt.Errorf("sibling strength %v is outside [0,1]", s.SiblingStrength)
	case s.Workers < 1:
		return fmt.Errorf("similarity workers must be at least 1")
	case s.Weights.Tag < 0 || s.Weights.Segment < 0 || s.Weights.Category < 0 ||
		s.Weights.ContentType < 0 || s.Weights.Parent < 0:
		return fmt.Errorf("similarity weights must not be negative")
	case c.RecomputeInterval < 0:
		return fmt.Errorf("recompute interval must not be negative")
	}
	return nil
}

// DSN returns the connection string for logging, with any password masked.
func (c *Config) DSN() string {
	u, err := url.Parse(c.DatabaseURL)
	if err != nil || u.User == nil {
		return c.DatabaseURL
	}
	return u.Redacted()
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func envOrDefaultBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return fallback
}
