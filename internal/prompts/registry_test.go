package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alti-global/prism/internal/models"
)

func TestRegistryContainsBuiltins(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	for _, name := range []string{
		"standard_qa", "citation_qa", "archetype_overview_cited",
		"portfolio_interpreter_cited", "risk_metrics_interpreter_cited",
		"monte_carlo_interpreter_cited", "esg_analysis_cited",
		"general_cited", "fallback_qa",
	} {
		assert.True(t, r.Has(name), "missing builtin prompt %s", name)
	}
}

func TestRenderSubstitutesPlaceholders(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	out, err := r.Render("citation_qa", "[1] some source text", "what is VaR?")
	require.NoError(t, err)
	assert.Contains(t, out, "[1] some source text")
	assert.Contains(t, out, "what is VaR?")
	assert.NotContains(t, out, "{context}")
	assert.NotContains(t, out, "{query}")
}

func TestRenderUnknownPrompt(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	_, err = r.Render("does_not_exist", "c", "q")
	assert.Error(t, err)
}

func TestValidateTemplate(t *testing.T) {
	assert.NoError(t, validateTemplate("ok", "Context: {context}\nQ: {query}"))
	assert.Error(t, validateTemplate("missing", "only {query} here"),
		"both placeholders are required")
	assert.Error(t, validateTemplate("unknown", "{context} {query} {extra}"),
		"unknown placeholders are rejected")
}

func TestResolvePrefersValidExplicitName(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	assert.Equal(t, "citation_qa", r.Resolve("citation_qa", models.IntentRisk))
	assert.Equal(t, "risk_metrics_interpreter_cited", r.Resolve("", models.IntentRisk))
	assert.Equal(t, "monte_carlo_interpreter_cited", r.Resolve("nonsense", models.IntentMonteCarlo),
		"invalid explicit name falls back to the intent default")
	assert.Equal(t, "general_cited", r.Resolve("", models.Intent("weird")))
}

func TestEveryIntentHasDefault(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	for _, intent := range []models.Intent{
		models.IntentArchetype, models.IntentPortfolio, models.IntentRisk,
		models.IntentMonteCarlo, models.IntentESG, models.IntentGeneral,
	} {
		name := r.ForIntent(intent)
		assert.True(t, r.Has(name), "intent %s default %s not registered", intent, name)
	}
}

func TestListSorted(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	list := r.List()
	require.NotEmpty(t, list)
	for i := 1; i < len(list); i++ {
		assert.True(t, strings.Compare(list[i-1].Name, list[i].Name) < 0)
	}
}
