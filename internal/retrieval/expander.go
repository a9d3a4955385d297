package retrieval

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alti-global/prism/internal/llm"
	"github.com/alti-global/prism/internal/models"
)

const (
	expanderMinTerms = 3
	expanderMaxTerms = 8

	// Queries longer than this already carry enough signal; expansion only
	// helps short, underspecified ones.
	expanderMaxQueryWords = 12
)

// intentHints seed the expander with domain vocabulary per intent.
var intentHints = map[models.Intent]string{
	models.IntentArchetype:  "investor archetype, risk profile, allocation style",
	models.IntentPortfolio:  "asset allocation, holdings, diversification, performance",
	models.IntentRisk:       "volatility, drawdown, value at risk, sharpe ratio",
	models.IntentMonteCarlo: "simulation, projection, success probability, percentile",
	models.IntentESG:        "sustainability, emissions, carbon intensity, governance",
}

// QueryExpander augments a query with related search terms produced by a
// small LLM call. Expansion is best-effort: any failure returns the query
// unchanged.
type QueryExpander struct {
	chat    llm.ChatModel
	timeout time.Duration
	logger  *logrus.Logger
}

// NewQueryExpander creates an expander backed by the given chat model.
func NewQueryExpander(chat llm.ChatModel, timeout time.Duration, logger *logrus.Logger) *QueryExpander {
	if timeout == 0 {
		timeout = 2 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &QueryExpander{chat: chat, timeout: timeout, logger: logger}
}

// Expand returns the query text with expansion terms appended. The returned
// string feeds both retrieval sides; logs and the cache keep the original.
func (e *QueryExpander) Expand(ctx context.Context, query string, intent models.Intent) string {
	if len(strings.Fields(query)) > expanderMaxQueryWords {
		return query
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	prompt := buildExpansionPrompt(query, intent)
	raw, err := e.chat.Chat(ctx, prompt, llm.ChatOptions{Temperature: 0.3, MaxTokens: 100})
	if err != nil {
		e.logger.WithError(err).Debug("query expansion skipped")
		return query
	}

	terms := parseExpansionTerms(raw, query)
	if len(terms) < expanderMinTerms {
		return query
	}
	if len(terms) > expanderMaxTerms {
		terms = terms[:expanderMaxTerms]
	}
	return query + " " + strings.Join(terms, " ")
}

func buildExpansionPrompt(query string, intent models.Intent) string {
	var b strings.Builder
	b.WriteString("List 3 to 8 short search terms closely related to this question, ")
	b.WriteString("comma-separated, no explanations.\n")
	if hint, ok := intentHints[intent]; ok {
		b.WriteString("Topic area: " + hint + "\n")
	}
	b.WriteString("Question: " + query)
	return b.String()
}

// parseExpansionTerms splits the model output on commas and newlines and
// drops empties, duplicates, and terms already present in the query.
func parseExpansionTerms(raw, query string) []string {
	queryLower := strings.ToLower(query)
	seen := make(map[string]bool)
	var terms []string

	for _, chunk := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == '\n' }) {
		term := strings.TrimSpace(strings.Trim(strings.TrimSpace(chunk), "-•*0123456789."))
		term = strings.TrimSpace(term)
		if term == "" || len(term) > 60 {
			continue
		}
		lower := strings.ToLower(term)
		if seen[lower] || strings.Contains(queryLower, lower) {
			continue
		}
		seen[lower] = true
		terms = append(terms, term)
	}
	return terms
}
