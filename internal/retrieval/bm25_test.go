package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alti-global/prism/internal/models"
)

func testCorpus() []models.Passage {
	return []models.Passage{
		{ID: "1", Text: "Value at Risk measures the maximum expected loss at a confidence level."},
		{ID: "2", Text: "The Sharpe ratio divides excess return by volatility."},
		{ID: "3", Text: "Monte Carlo simulation projects portfolio outcomes across thousands of paths."},
		{ID: "4", Text: "Carbon intensity normalizes financed emissions by invested capital."},
	}
}

func TestBM25RanksMatchingDocumentFirst(t *testing.T) {
	idx := NewBM25Index()
	idx.Build(testCorpus())
	require.True(t, idx.Ready())
	assert.Equal(t, 4, idx.Size())

	results := idx.Search("sharpe ratio volatility", 4)
	require.NotEmpty(t, results)
	assert.Equal(t, "2", results[0].ID)
}

func TestBM25NormalizesByBatchMax(t *testing.T) {
	idx := NewBM25Index()
	idx.Build(testCorpus())

	results := idx.Search("portfolio risk loss", 4)
	require.NotEmpty(t, results)
	assert.InDelta(t, 1.0, results[0].LexicalScore, 1e-9, "top result normalized to 1")
	for _, r := range results[1:] {
		assert.LessOrEqual(t, r.LexicalScore, 1.0)
		assert.Greater(t, r.LexicalScore, 0.0)
	}
}

func TestBM25NoMatches(t *testing.T) {
	idx := NewBM25Index()
	idx.Build(testCorpus())

	assert.Nil(t, idx.Search("zebra astronomy", 4))
	assert.Nil(t, idx.Search("", 4))
}

func TestBM25UnbuiltIndex(t *testing.T) {
	idx := NewBM25Index()
	assert.False(t, idx.Ready())
	assert.Nil(t, idx.Search("anything", 5))
}

func TestBM25RespectsK(t *testing.T) {
	idx := NewBM25Index()
	idx.Build(testCorpus())

	results := idx.Search("portfolio risk return emissions", 2)
	assert.LessOrEqual(t, len(results), 2)
}

func TestTokenize(t *testing.T) {
	terms := Tokenize("What's the 95th-percentile outcome?")
	assert.Equal(t, []string{"what", "s", "the", "95th", "percentile", "outcome"}, terms)
}
