package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Load()
	cfg.LLM.OpenAIAPIKey = "test-key"
	return cfg
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.RequestDeadline)
	assert.Equal(t, 10, cfg.Retrieval.KRetrieve)
	assert.Equal(t, 5, cfg.Retrieval.KRerank)
	assert.Equal(t, 16, cfg.Grader.Parallelism)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "investments", cfg.DefaultDomain)
}

func TestValidateAcceptsDefaults(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidateReportsAllViolations(t *testing.T) {
	cfg := validConfig()
	cfg.Retrieval.WeightSemantic = 0.9 // weights now sum to 1.3
	cfg.Retrieval.KRerank = 50         // exceeds KRetrieve
	cfg.Breaker.Threshold = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fusion weights")
	assert.Contains(t, err.Error(), "K_RERANK")
	assert.Contains(t, err.Error(), "BREAKER_THRESHOLD")
}

func TestValidateRequiresOpenAIKey(t *testing.T) {
	cfg := Load()
	cfg.LLM.Provider = "openai"
	cfg.LLM.OpenAIAPIKey = ""
	assert.Error(t, cfg.Validate())

	cfg.LLM.Provider = "ollama"
	assert.NoError(t, cfg.Validate())
}

func TestValidateDefaultDomainMustResolve(t *testing.T) {
	cfg := validConfig()
	cfg.DefaultDomain = "nonexistent"
	assert.Error(t, cfg.Validate())
}

func TestCollectionFor(t *testing.T) {
	cfg := validConfig()

	coll, err := cfg.CollectionFor("estate_planning")
	require.NoError(t, err)
	assert.Equal(t, "estate_documents", coll)

	coll, err = cfg.CollectionFor("")
	require.NoError(t, err)
	assert.Equal(t, "alti_investments", coll, "empty domain falls back to the default")

	_, err = cfg.CollectionFor("unknown")
	assert.Error(t, err)
}

func TestGetEnvDurationUnitSuffix(t *testing.T) {
	t.Setenv("PRISM_REQUEST_DEADLINE_MS", "2500")
	t.Setenv("BREAKER_RESET_S", "30")
	t.Setenv("CACHE_TTL_S", "not-a-number")

	assert.Equal(t, 2500*time.Millisecond, getEnvDuration("PRISM_REQUEST_DEADLINE_MS", time.Second))
	assert.Equal(t, 30*time.Second, getEnvDuration("BREAKER_RESET_S", time.Second))
	assert.Equal(t, time.Second, getEnvDuration("CACHE_TTL_S", time.Second),
		"unparseable value keeps the fallback")
}

func TestEmbeddingDimFollowsProvider(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, 1536, cfg.EmbeddingDim())

	cfg.LLM.Provider = "ollama"
	assert.Equal(t, 768, cfg.EmbeddingDim())
}
