package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alti-global/prism/internal/llm"
	"github.com/alti-global/prism/internal/models"
)

type scriptedChat struct {
	answer string
	err    error
}

func (s *scriptedChat) Chat(_ context.Context, _ string, _ llm.ChatOptions) (string, error) {
	return s.answer, s.err
}

func TestExpandAppendsTerms(t *testing.T) {
	chat := &scriptedChat{answer: "value at risk, drawdown, confidence level, loss estimate"}
	e := NewQueryExpander(chat, time.Second, nil)

	out := e.Expand(context.Background(), "what is VaR", models.IntentRisk)
	assert.True(t, strings.HasPrefix(out, "what is VaR "), "original query preserved at the front")
	assert.Contains(t, out, "drawdown")
	assert.Contains(t, out, "confidence level")
}

func TestExpandFailureReturnsOriginal(t *testing.T) {
	chat := &scriptedChat{err: errors.New("model down")}
	e := NewQueryExpander(chat, time.Second, nil)

	out := e.Expand(context.Background(), "what is VaR", models.IntentRisk)
	assert.Equal(t, "what is VaR", out)
}

func TestExpandTooFewTermsReturnsOriginal(t *testing.T) {
	chat := &scriptedChat{answer: "volatility, drawdown"}
	e := NewQueryExpander(chat, time.Second, nil)

	out := e.Expand(context.Background(), "what is VaR", models.IntentRisk)
	assert.Equal(t, "what is VaR", out, "fewer than three usable terms, keep the query")
}

func TestParseExpansionTermsFiltering(t *testing.T) {
	terms := parseExpansionTerms("1. volatility\n2. VaR\n3. volatility\n4. drawdown", "what is var")
	assert.Equal(t, []string{"volatility", "drawdown"}, terms,
		"duplicates and terms already in the query are dropped")
}

func TestExpandSkipsLongQueries(t *testing.T) {
	chat := &scriptedChat{answer: "a, b, c, d"}
	e := NewQueryExpander(chat, time.Second, nil)

	long := strings.Repeat("word ", 20) + "end"
	assert.Equal(t, long, e.Expand(context.Background(), long, models.IntentGeneral))
}

func TestExpandCapsTermCount(t *testing.T) {
	chat := &scriptedChat{answer: "a1, b2, c3, d4, e5, f6, g7, h8, i9, j10"}
	e := NewQueryExpander(chat, time.Second, nil)

	out := e.Expand(context.Background(), "base query", models.IntentGeneral)
	added := strings.Fields(strings.TrimPrefix(out, "base query "))
	assert.Len(t, added, expanderMaxTerms)
}
