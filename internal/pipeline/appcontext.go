package pipeline

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// BuildContextualQuery rewrites a generic question like "explain my results"
// into a prompt that carries the user's actual computed numbers. Rewriting is
// deterministic; a context without a recognized page has its scalar values
// inlined as a parenthetical after the question.
func BuildContextualQuery(query string, appContext map[string]interface{}) string {
	if len(appContext) == 0 {
		return query
	}

	switch ctxString(appContext, "page") {
	case "monte_carlo":
		return buildMonteCarloQuery(query, appContext)
	case "risk_analytics":
		return buildRiskAnalyticsQuery(query, appContext)
	case "portfolio_evaluation":
		return buildPortfolioEvaluationQuery(query, appContext)
	}
	return buildGenericQuery(query, appContext)
}

// buildGenericQuery inlines flat scalar context values:
// "What does my 95th percentile mean?" with {percentile_95: 2500000,
// success_probability: 0.92} becomes "What does my 95th percentile mean?
// (My 95th percentile is $2,500,000; my success probability is 0.92.)".
func buildGenericQuery(query string, appCtx map[string]interface{}) string {
	var clauses []string
	for _, key := range sortedKeys(appCtx) {
		if key == "page" {
			continue
		}
		value, ok := formatContextValue(appCtx[key])
		if !ok {
			continue
		}
		clauses = append(clauses, fmt.Sprintf("my %s is %s", humanizeContextKey(key), value))
	}
	if len(clauses) == 0 {
		return query
	}

	sentence := strings.Join(clauses, "; ")
	sentence = strings.ToUpper(sentence[:1]) + sentence[1:]
	return fmt.Sprintf("%s (%s.)", query, sentence)
}

// humanizeContextKey turns a snake_case key into prose; a trailing numeric
// part becomes a leading ordinal ("percentile_95" -> "95th percentile").
func humanizeContextKey(key string) string {
	parts := strings.Split(key, "_")
	if len(parts) > 1 {
		if n, err := strconv.Atoi(parts[len(parts)-1]); err == nil {
			rest := strings.Join(parts[:len(parts)-1], " ")
			return fmt.Sprintf("%d%s %s", n, ordinalSuffix(n), rest)
		}
	}
	return strings.Join(parts, " ")
}

func ordinalSuffix(n int) string {
	if v := n % 100; v >= 11 && v <= 13 {
		return "th"
	}
	switch n % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}

// formatContextValue renders a scalar context value; nested maps and lists
// are skipped. Whole amounts of a thousand or more read as currency.
func formatContextValue(v interface{}) (string, bool) {
	switch val := v.(type) {
	case string:
		if val == "" {
			return "", false
		}
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	case int:
		return formatContextNumber(float64(val)), true
	case int64:
		return formatContextNumber(float64(val)), true
	case float64:
		return formatContextNumber(val), true
	}
	return "", false
}

func formatContextNumber(v float64) string {
	if v == float64(int64(v)) && (v >= 1000 || v <= -1000) {
		return formatCurrency(v, "$")
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func buildMonteCarloQuery(query string, appCtx map[string]interface{}) string {
	symbol := currencySymbol(ctxString(appCtx, "currency"))

	var b strings.Builder
	b.WriteString("USER'S CURRENT MONTE CARLO SIMULATION RESULTS:\n")
	b.WriteString("===============================================\n")
	fmt.Fprintf(&b, "Initial Portfolio: %s\n", formatCurrency(ctxFloat(appCtx, "initial_portfolio"), symbol))
	numSims := int64(ctxFloat(appCtx, "num_simulations"))
	if numSims == 0 {
		numSims = 1000
	}
	fmt.Fprintf(&b, "Number of Simulations: %s\n", formatThousands(numSims))
	fmt.Fprintf(&b, "Inflation Rate: %.1f%%\n", ctxFloat(appCtx, "inflation_rate_pct"))

	if sims, ok := appCtx["simulations"].(map[string]interface{}); ok {
		for _, key := range sortedKeys(sims) {
			sim, ok := sims[key].(map[string]interface{})
			if !ok || len(sim) == 0 {
				continue
			}
			name := ctxString(sim, "name")
			if name == "" {
				name = key
			}
			fmt.Fprintf(&b, "\n%s (%.0f years, %v%% return, %v%% risk):\n",
				strings.ToUpper(name),
				ctxFloat(sim, "duration_years"),
				ctxFloat(sim, "annual_return_pct"),
				ctxFloat(sim, "annual_risk_pct"))
			fmt.Fprintf(&b, "  - 5th Percentile (pessimistic): %s\n", formatCurrency(ctxFloat(sim, "percentile_5th"), symbol))
			fmt.Fprintf(&b, "  - 50th Percentile (median): %s\n", formatCurrency(ctxFloat(sim, "percentile_50th"), symbol))
			fmt.Fprintf(&b, "  - 95th Percentile (optimistic): %s\n", formatCurrency(ctxFloat(sim, "percentile_95th"), symbol))
			fmt.Fprintf(&b, "  - Probability of outperforming inflation: %.1f%%\n", ctxFloat(sim, "prob_outperform_inflation"))
			fmt.Fprintf(&b, "  - Probability of >50%% loss: %.1f%%\n", ctxFloat(sim, "prob_loss_50pct"))
		}
	}

	fmt.Fprintf(&b, "\nUSER QUESTION: %s", query)
	return b.String()
}

func buildRiskAnalyticsQuery(query string, appCtx map[string]interface{}) string {
	var b strings.Builder
	b.WriteString("USER'S CURRENT RISK ANALYTICS RESULTS:\n")
	b.WriteString("======================================\n")
	fmt.Fprintf(&b, "Portfolio: %s\n", ctxStringOr(appCtx, "portfolio_name", "N/A"))
	fmt.Fprintf(&b, "Benchmark: %s\n", ctxStringOr(appCtx, "benchmark_name", "N/A"))
	b.WriteString("\nKEY METRICS:\n")
	fmt.Fprintf(&b, "- Portfolio Volatility: %.2f%%\n", ctxFloat(appCtx, "portfolio_volatility_pct"))
	fmt.Fprintf(&b, "- Benchmark Volatility: %.2f%%\n", ctxFloat(appCtx, "benchmark_volatility_pct"))
	fmt.Fprintf(&b, "- Tracking Error: %.2f%%\n", ctxFloat(appCtx, "tracking_error_pct"))
	fmt.Fprintf(&b, "- Factor Explained: %.1f%%\n", ctxFloat(appCtx, "factor_explained_pct"))
	fmt.Fprintf(&b, "- Idiosyncratic Risk: %.1f%%\n", ctxFloat(appCtx, "idiosyncratic_pct"))
	b.WriteString("\nPERFORMANCE:\n")
	fmt.Fprintf(&b, "- Portfolio CAGR: %.2f%%\n", ctxFloat(appCtx, "portfolio_cagr_pct"))
	fmt.Fprintf(&b, "- Benchmark CAGR: %.2f%%\n", ctxFloat(appCtx, "benchmark_cagr_pct"))
	fmt.Fprintf(&b, "- Portfolio Sharpe Ratio: %.2f\n", ctxFloat(appCtx, "portfolio_sharpe"))
	fmt.Fprintf(&b, "- Benchmark Sharpe Ratio: %.2f\n", ctxFloat(appCtx, "benchmark_sharpe"))
	fmt.Fprintf(&b, "- Portfolio Max Drawdown: %.2f%%\n", ctxFloat(appCtx, "portfolio_max_dd_pct"))
	b.WriteString("\nBETA ANALYSIS:\n")
	fmt.Fprintf(&b, "- Total Beta: %.3f\n", ctxFloat(appCtx, "total_beta"))
	fmt.Fprintf(&b, "- Growth Beta: %.3f\n", ctxFloat(appCtx, "growth_beta"))
	fmt.Fprintf(&b, "- Defensive Beta: %.3f\n", ctxFloat(appCtx, "defensive_beta"))
	b.WriteString("\nDIVERSIFICATION:\n")
	fmt.Fprintf(&b, "- Average Correlation: %.2f\n", ctxFloat(appCtx, "avg_correlation"))
	fmt.Fprintf(&b, "- Effective N (diversification): %.1f\n", ctxFloat(appCtx, "effective_n"))
	fmt.Fprintf(&b, "- Top 5 Concentration: %.1f%%\n", ctxFloat(appCtx, "concentration_ratio"))

	if contributors, ok := appCtx["top_risk_contributors"].([]interface{}); ok && len(contributors) > 0 {
		b.WriteString("\nTOP RISK CONTRIBUTORS:\n")
		for i, raw := range contributors {
			if i >= 5 {
				break
			}
			contrib, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "  %d. %s: %.2f%%\n", i+1,
				ctxStringOr(contrib, "security", "N/A"),
				ctxFloat(contrib, "contribution_pct"))
		}
	}

	fmt.Fprintf(&b, "\nUSER QUESTION: %s", query)
	return b.String()
}

func buildPortfolioEvaluationQuery(query string, appCtx map[string]interface{}) string {
	var b strings.Builder
	b.WriteString("USER'S CURRENT PORTFOLIO OPTIMIZATION RESULTS:\n")
	b.WriteString("===============================================\n")
	fmt.Fprintf(&b, "Constraints Template: %s\n", strings.ToUpper(ctxStringOr(appCtx, "caps_template", "standard")))

	if frontiers, ok := appCtx["frontier_summaries"].(map[string]interface{}); ok {
		for _, key := range sortedKeys(frontiers) {
			summary, ok := frontiers[key].(map[string]interface{})
			if !ok || len(summary) == 0 {
				continue
			}
			name := ctxString(summary, "name")
			if name == "" {
				name = key
			}
			fmt.Fprintf(&b, "\n%s FRONTIER:\n", strings.ToUpper(name))
			fmt.Fprintf(&b, "  - Risk Range: %.2f%% to %.2f%%\n",
				ctxFloat(summary, "min_risk_pct"), ctxFloat(summary, "max_risk_pct"))
			fmt.Fprintf(&b, "  - Return Range: %.2f%% to %.2f%%\n",
				ctxFloat(summary, "min_return_pct"), ctxFloat(summary, "max_return_pct"))
			fmt.Fprintf(&b, "  - Optimal Sharpe Ratio: %.3f\n", ctxFloat(summary, "optimal_sharpe"))
			fmt.Fprintf(&b, "  - Optimal Point: %.2f%% return at %.2f%% risk\n",
				ctxFloat(summary, "optimal_return_pct"), ctxFloat(summary, "optimal_risk_pct"))
		}
	}

	if alloc, ok := appCtx["optimal_allocation"].(map[string]interface{}); ok && len(alloc) > 0 {
		b.WriteString("\nOPTIMAL ALLOCATION (Core + Private Frontier):\n")
		type weighted struct {
			asset  string
			weight float64
		}
		items := make([]weighted, 0, len(alloc))
		for asset := range alloc {
			items = append(items, weighted{asset, ctxFloat(alloc, asset)})
		}
		sort.Slice(items, func(a, b int) bool {
			if items[a].weight != items[b].weight {
				return items[a].weight > items[b].weight
			}
			return items[a].asset < items[b].asset
		})
		for _, item := range items {
			if item.weight > 0.1 {
				fmt.Fprintf(&b, "  - %s: %.1f%%\n", item.asset, item.weight)
			}
		}
	}

	if bench, ok := appCtx["benchmark"].(map[string]interface{}); ok {
		_, hasReturn := bench["return"]
		_, hasRisk := bench["risk"]
		if hasReturn && hasRisk {
			b.WriteString("\nBENCHMARK COMPARISON:\n")
			fmt.Fprintf(&b, "  - Benchmark Return: %.2f%%\n", ctxFloat(bench, "return")*100)
			fmt.Fprintf(&b, "  - Benchmark Risk: %.2f%%\n", ctxFloat(bench, "risk")*100)
		}
	}

	fmt.Fprintf(&b, "\nUSER QUESTION: %s", query)
	return b.String()
}

func currencySymbol(code string) string {
	switch code {
	case "GBP":
		return "£"
	case "EUR":
		return "€"
	default:
		return "$"
	}
}

func formatCurrency(amount float64, symbol string) string {
	return symbol + formatThousands(int64(amount+0.5))
}

// formatThousands renders n with comma separators.
func formatThousands(n int64) string {
	negative := n < 0
	if negative {
		n = -n
	}
	s := fmt.Sprintf("%d", n)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if negative {
		return "-" + b.String()
	}
	return b.String()
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func ctxString(m map[string]interface{}, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func ctxStringOr(m map[string]interface{}, key, fallback string) string {
	if s := ctxString(m, key); s != "" {
		return s
	}
	return fallback
}

func ctxFloat(m map[string]interface{}, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}
