package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alti-global/prism/internal/llm"
	"github.com/alti-global/prism/internal/models"
)

const intentPrompt = `Classify this wealth management question into exactly one category.
Reply with only the category word, nothing else.

Categories:
- archetype: investment models and archetypes, their allocations and holdings
- portfolio: portfolio evaluation, optimization, efficient frontier, allocation results
- risk: risk metrics such as VaR, volatility, drawdown, Sharpe ratio, beta
- monte_carlo: Monte Carlo simulations, projections, percentile outcomes
- esg: ESG metrics, sustainability, emissions, carbon intensity
- general: anything else, greetings, off-topic

Question: `

// intentKeywords drive the deterministic fallback classifier.
var intentKeywords = []struct {
	intent   models.Intent
	keywords []string
}{
	{models.IntentMonteCarlo, []string{"monte carlo", "simulation", "percentile", "projection", "probability of success"}},
	{models.IntentESG, []string{"esg", "sustainab", "carbon", "emission", "governance", "impact metric"}},
	{models.IntentRisk, []string{"var", "value at risk", "volatility", "drawdown", "sharpe", "beta", "tracking error", "risk metric"}},
	{models.IntentPortfolio, []string{"portfolio", "allocation", "efficient frontier", "optimization", "holdings", "rebalanc"}},
	{models.IntentArchetype, []string{"archetype", "investment model", "best ideas", "climate", "inclusive innovation"}},
}

// IntentClassifier assigns each query one intent from the closed set. It
// tries a small LLM call first and falls back to keyword matching; an
// unrecognized answer becomes general, never an error.
type IntentClassifier struct {
	chat    llm.ChatModel
	timeout time.Duration
	logger  *logrus.Logger
}

// NewIntentClassifier creates a classifier. chat may be nil, in which case
// only keyword matching runs.
func NewIntentClassifier(chat llm.ChatModel, timeout time.Duration, logger *logrus.Logger) *IntentClassifier {
	if timeout == 0 {
		timeout = 2 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &IntentClassifier{chat: chat, timeout: timeout, logger: logger}
}

// Classify returns the query's intent.
func (c *IntentClassifier) Classify(ctx context.Context, query string) models.Intent {
	if c.chat != nil {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		raw, err := c.chat.Chat(ctx, intentPrompt+query, llm.ChatOptions{Temperature: 0, MaxTokens: 10})
		if err == nil {
			if intent, ok := parseIntent(raw); ok {
				return intent
			}
			c.logger.WithField("answer", strings.TrimSpace(raw)).Debug("unparseable intent answer, using keywords")
		} else {
			c.logger.WithError(err).Debug("intent classification call failed, using keywords")
		}
	}
	return classifyByKeywords(query)
}

func parseIntent(raw string) (models.Intent, bool) {
	cleaned := models.Intent(strings.ToLower(strings.Trim(strings.TrimSpace(raw), `."'`)))
	switch cleaned {
	case models.IntentArchetype, models.IntentPortfolio, models.IntentRisk,
		models.IntentMonteCarlo, models.IntentESG, models.IntentGeneral:
		return cleaned, true
	}
	return "", false
}

func classifyByKeywords(query string) models.Intent {
	q := strings.ToLower(query)
	for _, group := range intentKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(q, kw) {
				return group.intent
			}
		}
	}
	return models.IntentGeneral
}
