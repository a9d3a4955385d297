package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildContextualQueryMonteCarlo(t *testing.T) {
	appCtx := map[string]interface{}{
		"page":               "monte_carlo",
		"initial_portfolio":  float64(1000000),
		"currency":           "USD",
		"num_simulations":    float64(5000),
		"inflation_rate_pct": 2.5,
		"simulations": map[string]interface{}{
			"base": map[string]interface{}{
				"name":                      "Base Case",
				"duration_years":            float64(20),
				"annual_return_pct":         float64(6),
				"annual_risk_pct":           float64(12),
				"percentile_5th":            float64(800000),
				"percentile_50th":           float64(2300000),
				"percentile_95th":           float64(5100000),
				"prob_outperform_inflation": 87.5,
				"prob_loss_50pct":           1.2,
			},
		},
	}

	out := BuildContextualQuery("what do my results mean?", appCtx)

	assert.Contains(t, out, "USER'S CURRENT MONTE CARLO SIMULATION RESULTS")
	assert.Contains(t, out, "Initial Portfolio: $1,000,000")
	assert.Contains(t, out, "Number of Simulations: 5,000")
	assert.Contains(t, out, "Inflation Rate: 2.5%")
	assert.Contains(t, out, "BASE CASE (20 years, 6% return, 12% risk)")
	assert.Contains(t, out, "50th Percentile (median): $2,300,000")
	assert.Contains(t, out, "Probability of outperforming inflation: 87.5%")
	assert.True(t, strings.HasSuffix(out, "USER QUESTION: what do my results mean?"))
}

func TestBuildContextualQueryRiskAnalytics(t *testing.T) {
	appCtx := map[string]interface{}{
		"page":                     "risk_analytics",
		"portfolio_name":           "Growth 70/30",
		"benchmark_name":           "MSCI World",
		"portfolio_volatility_pct": 14.23,
		"tracking_error_pct":       3.1,
		"portfolio_sharpe":         1.12,
		"total_beta":               0.953,
		"top_risk_contributors": []interface{}{
			map[string]interface{}{"security": "AAPL", "contribution_pct": 4.25},
			map[string]interface{}{"security": "NVDA", "contribution_pct": 3.8},
		},
	}

	out := BuildContextualQuery("explain my risk", appCtx)

	assert.Contains(t, out, "Portfolio: Growth 70/30")
	assert.Contains(t, out, "Portfolio Volatility: 14.23%")
	assert.Contains(t, out, "Tracking Error: 3.10%")
	assert.Contains(t, out, "Total Beta: 0.953")
	assert.Contains(t, out, "1. AAPL: 4.25%")
	assert.True(t, strings.HasSuffix(out, "USER QUESTION: explain my risk"))
}

func TestBuildContextualQueryPortfolioEvaluation(t *testing.T) {
	appCtx := map[string]interface{}{
		"page":          "portfolio_evaluation",
		"caps_template": "standard",
		"frontier_summaries": map[string]interface{}{
			"core": map[string]interface{}{
				"name":               "Core",
				"min_risk_pct":       5.2,
				"max_risk_pct":       16.8,
				"min_return_pct":     3.1,
				"max_return_pct":     9.4,
				"optimal_sharpe":     0.812,
				"optimal_return_pct": 7.2,
				"optimal_risk_pct":   10.5,
			},
		},
		"optimal_allocation": map[string]interface{}{
			"Global Equity": 45.5,
			"Fixed Income":  30.0,
			"Cash":          0.05,
		},
		"benchmark": map[string]interface{}{
			"return": 0.065,
			"risk":   0.11,
		},
	}

	out := BuildContextualQuery("is my allocation efficient?", appCtx)

	assert.Contains(t, out, "Constraints Template: STANDARD")
	assert.Contains(t, out, "CORE FRONTIER")
	assert.Contains(t, out, "Optimal Sharpe Ratio: 0.812")
	assert.Contains(t, out, "Global Equity: 45.5%")
	assert.NotContains(t, out, "Cash", "allocations at or under 0.1% are omitted")
	assert.Contains(t, out, "Benchmark Return: 6.50%")
}

func TestBuildContextualQueryGenericScalars(t *testing.T) {
	out := BuildContextualQuery("What does my 95th percentile mean?", map[string]interface{}{
		"percentile_95":       float64(2500000),
		"success_probability": 0.92,
	})
	assert.Equal(t,
		"What does my 95th percentile mean? (My 95th percentile is $2,500,000; my success probability is 0.92.)",
		out)
}

func TestBuildContextualQueryGenericSkipsNested(t *testing.T) {
	out := BuildContextualQuery("explain", map[string]interface{}{
		"scenarios":   map[string]interface{}{"a": 1},
		"annual_rate": 4.5,
	})
	assert.Equal(t, "explain (My annual rate is 4.5.)", out)
}

func TestBuildContextualQueryUnknownPage(t *testing.T) {
	out := BuildContextualQuery("hello", map[string]interface{}{"page": "settings"})
	assert.Equal(t, "hello", out,
		"a page marker alone carries no numbers to inline")
}

func TestHumanizeContextKey(t *testing.T) {
	assert.Equal(t, "95th percentile", humanizeContextKey("percentile_95"))
	assert.Equal(t, "42nd percentile", humanizeContextKey("percentile_42"))
	assert.Equal(t, "success probability", humanizeContextKey("success_probability"))
	assert.Equal(t, "horizon", humanizeContextKey("horizon"))
}

func TestBuildContextualQueryEmptyContext(t *testing.T) {
	out := BuildContextualQuery("hello", nil)
	assert.Equal(t, "hello", out)
}

func TestFormatThousands(t *testing.T) {
	assert.Equal(t, "0", formatThousands(0))
	assert.Equal(t, "999", formatThousands(999))
	assert.Equal(t, "1,000", formatThousands(1000))
	assert.Equal(t, "2,300,000", formatThousands(2300000))
	assert.Equal(t, "-12,345", formatThousands(-12345))
}
