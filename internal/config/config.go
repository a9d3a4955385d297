// Package config loads service settings from environment variables.
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every tunable for the Prism service.
type Config struct {
	Server    ServerConfig
	LLM       LLMConfig
	Qdrant    QdrantConfig
	Retrieval RetrievalConfig
	Grader    GraderConfig
	Generator GeneratorConfig
	Cache     CacheConfig
	Breaker   BreakerConfig
	Redis     RedisConfig
	Logs      LogConfig

	// DomainCollections maps a request domain to its vector collection.
	DomainCollections map[string]string
	DefaultDomain     string
}

type ServerConfig struct {
	Host             string
	Port             string
	Mode             string // "debug" or "release"
	InflightCap      int
	RequestDeadline  time.Duration
	FallbackDeadline time.Duration
}

type LLMConfig struct {
	Provider string // "openai" or "ollama"

	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModel     string
	OpenAIEmbed     string
	OpenAIEmbedDim  int

	OllamaBaseURL  string
	OllamaModel    string
	OllamaEmbed    string
	OllamaEmbedDim int

	RerankEndpoint string // optional external rerank model
	RerankAPIKey   string
}

type QdrantConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

type RetrievalConfig struct {
	KRetrieve       int
	KRerank         int
	WeightSemantic  float64
	WeightBM25      float64
	RRFK            int
	ExpanderEnabled bool
}

type GraderConfig struct {
	Parallelism int
	Timeout     time.Duration
	MaxRetries  int
	BaseBackoff time.Duration
	Jitter      float64
	Threshold   float64 // minimum confidence kept by the reranker
}

type GeneratorConfig struct {
	Timeout    time.Duration
	MaxRetries int
}

type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
	MaxSize int
	Backend string // "memory" or "redis"
}

type BreakerConfig struct {
	Threshold    int
	ResetTimeout time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type LogConfig struct {
	Dir        string
	JSONFormat bool
}

// Load builds a Config from the environment, applying defaults.
func Load() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:             getEnv("PRISM_HOST", "0.0.0.0"),
			Port:             getEnv("PRISM_PORT", "8080"),
			Mode:             getEnv("PRISM_MODE", "release"),
			InflightCap:      getEnvInt("PRISM_INFLIGHT_CAP", 32),
			RequestDeadline:  getEnvDuration("PRISM_REQUEST_DEADLINE_MS", 15000*time.Millisecond),
			FallbackDeadline: getEnvDuration("PRISM_FALLBACK_DEADLINE_MS", 5000*time.Millisecond),
		},
		LLM: LLMConfig{
			Provider:       getEnv("LLM_PROVIDER", "openai"),
			OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			OpenAIModel:    getEnv("OPENAI_LLM_MODEL", "gpt-4o-mini"),
			OpenAIEmbed:    getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			OpenAIEmbedDim: getEnvInt("OPENAI_EMBEDDING_DIM", 1536),
			OllamaBaseURL:  getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:    getEnv("OLLAMA_LLM_MODEL", "llama3.2:3b"),
			OllamaEmbed:    getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			OllamaEmbedDim: getEnvInt("OLLAMA_EMBEDDING_DIM", 768),
			RerankEndpoint: getEnv("RERANK_ENDPOINT", ""),
			RerankAPIKey:   getEnv("RERANK_API_KEY", ""),
		},
		Qdrant: QdrantConfig{
			URL:     getEnv("QDRANT_URL", "http://localhost:6333"),
			APIKey:  getEnv("QDRANT_API_KEY", ""),
			Timeout: getEnvDuration("QDRANT_TIMEOUT_MS", 10*time.Second),
		},
		Retrieval: RetrievalConfig{
			KRetrieve:       getEnvInt("K_RETRIEVE", 10),
			KRerank:         getEnvInt("K_RERANK", 5),
			WeightSemantic:  getEnvFloat("W_SEMANTIC", 0.6),
			WeightBM25:      getEnvFloat("W_BM25", 0.4),
			RRFK:            getEnvInt("RRF_K", 60),
			ExpanderEnabled: getEnvBool("EXPANDER_ENABLED", true),
		},
		Grader: GraderConfig{
			Parallelism: getEnvInt("GRADER_PARALLELISM", 16),
			Timeout:     getEnvDuration("GRADER_TIMEOUT_MS", 3*time.Second),
			MaxRetries:  getEnvInt("GRADER_MAX_RETRIES", 2),
			BaseBackoff: getEnvDuration("GRADER_BACKOFF_MS", 250*time.Millisecond),
			Jitter:      getEnvFloat("GRADER_JITTER", 0.25),
			Threshold:   getEnvFloat("RERANK_CONFIDENCE_THRESHOLD", 0.3),
		},
		Generator: GeneratorConfig{
			Timeout:    getEnvDuration("GENERATOR_TIMEOUT_MS", 10*time.Second),
			MaxRetries: getEnvInt("GENERATOR_MAX_RETRIES", 2),
		},
		Cache: CacheConfig{
			Enabled: getEnvBool("CACHE_ENABLED", true),
			TTL:     getEnvDuration("CACHE_TTL_S", 3600*time.Second),
			MaxSize: getEnvInt("CACHE_MAX_SIZE", 1000),
			Backend: getEnv("CACHE_BACKEND", "memory"),
		},
		Breaker: BreakerConfig{
			Threshold:    getEnvInt("BREAKER_THRESHOLD", 5),
			ResetTimeout: getEnvDuration("BREAKER_RESET_S", 60*time.Second),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Logs: LogConfig{
			Dir:        getEnv("PRISM_LOG_DIR", "./logs"),
			JSONFormat: getEnvBool("PRISM_LOG_JSON", true),
		},
		DomainCollections: map[string]string{
			"investments":     getEnv("COLLECTION_INVESTMENTS", "alti_investments"),
			"estate_planning": getEnv("COLLECTION_ESTATE", "estate_documents"),
			"app_education":   getEnv("COLLECTION_APP_EDUCATION", "app_education_docs"),
		},
		DefaultDomain: getEnv("DEFAULT_DOMAIN", "investments"),
	}
	return cfg
}

// Validate checks cross-field invariants. Returns all violations at once so
// a misconfigured deployment fails with a complete report.
func (c *Config) Validate() error {
	var errs []string

	if sum := c.Retrieval.WeightSemantic + c.Retrieval.WeightBM25; math.Abs(sum-1.0) > 1e-9 {
		errs = append(errs, fmt.Sprintf("fusion weights must sum to 1, got %.3f", sum))
	}
	if c.Retrieval.KRetrieve < 1 {
		errs = append(errs, "K_RETRIEVE must be >= 1")
	}
	if c.Retrieval.KRerank < 1 || c.Retrieval.KRerank > c.Retrieval.KRetrieve {
		errs = append(errs, "K_RERANK must be in [1, K_RETRIEVE]")
	}
	if c.Grader.Parallelism < 1 {
		errs = append(errs, "GRADER_PARALLELISM must be >= 1")
	}
	if c.Server.InflightCap < 1 {
		errs = append(errs, "PRISM_INFLIGHT_CAP must be >= 1")
	}
	if c.Breaker.Threshold < 1 {
		errs = append(errs, "BREAKER_THRESHOLD must be >= 1")
	}
	if _, ok := c.DomainCollections[c.DefaultDomain]; !ok {
		errs = append(errs, fmt.Sprintf("default domain %q has no collection mapping", c.DefaultDomain))
	}
	if c.LLM.Provider == "openai" && c.LLM.OpenAIAPIKey == "" {
		errs = append(errs, "OPENAI_API_KEY is required when LLM_PROVIDER=openai")
	}
	if c.Cache.Backend != "memory" && c.Cache.Backend != "redis" {
		errs = append(errs, fmt.Sprintf("unknown cache backend %q", c.Cache.Backend))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}

// CollectionFor resolves a domain to its collection name.
func (c *Config) CollectionFor(domain string) (string, error) {
	if domain == "" {
		domain = c.DefaultDomain
	}
	coll, ok := c.DomainCollections[domain]
	if !ok {
		return "", fmt.Errorf("unknown domain %q", domain)
	}
	return coll, nil
}

// EmbeddingDim returns the configured embedder's output dimensionality.
func (c *Config) EmbeddingDim() int {
	if c.LLM.Provider == "ollama" {
		return c.LLM.OllamaEmbedDim
	}
	return c.LLM.OpenAIEmbedDim
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration reads a duration whose env value is a bare number. The
// unit is taken from the key suffix: _MS means milliseconds, _S seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	if strings.HasSuffix(key, "_S") {
		return time.Duration(n) * time.Second
	}
	return time.Duration(n) * time.Millisecond
}
