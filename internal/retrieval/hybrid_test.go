package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alti-global/prism/internal/models"
	"github.com/alti-global/prism/internal/vectordb/qdrant"
)

type mockVectorStore struct {
	points     []qdrant.ScoredPoint
	searchErr  error
	vectorSize int
	corpus     []qdrant.Point
}

func (m *mockVectorStore) Search(_ context.Context, _ string, _ []float32, _ *qdrant.SearchOptions) ([]qdrant.ScoredPoint, error) {
	return m.points, m.searchErr
}

func (m *mockVectorStore) GetCollectionInfo(_ context.Context, name string) (*qdrant.CollectionInfo, error) {
	return &qdrant.CollectionInfo{Name: name, VectorSize: m.vectorSize, PointsCount: int64(len(m.corpus))}, nil
}

func (m *mockVectorStore) Scroll(_ context.Context, _ string, _ int, offset *string) ([]qdrant.Point, *string, error) {
	if offset != nil {
		return nil, nil, nil
	}
	return m.corpus, nil, nil
}

type mockEmbedder struct {
	dim int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return make([]float32, m.dim), nil
}

func (m *mockEmbedder) Dimension() int { return m.dim }

func payload(text, priority string) map[string]interface{} {
	p := map[string]interface{}{
		"text":        text,
		"source_path": "docs/" + text[:4] + ".md",
		"chunk_index": float64(0),
	}
	if priority != "" {
		p["priority"] = priority
	}
	return p
}

func newTestHybrid(store *mockVectorStore) *HybridRetriever {
	semantic := NewSemanticRetriever(store, &mockEmbedder{dim: 8}, nil)
	return NewHybridRetriever(semantic, DefaultFusionConfig(), nil)
}

func TestHybridFusesBothSides(t *testing.T) {
	store := &mockVectorStore{
		vectorSize: 8,
		points: []qdrant.ScoredPoint{
			{ID: "sem1", Score: 0.95, Payload: payload("alpha beta gamma", "")},
			{ID: "both", Score: 0.90, Payload: payload("sharpe ratio volatility", "")},
		},
		corpus: []qdrant.Point{
			{ID: "both", Payload: payload("sharpe ratio volatility", "")},
			{ID: "lex1", Payload: payload("sharpe ratio explained simply", "")},
		},
	}
	h := newTestHybrid(store)
	require.NoError(t, h.BuildLexicalIndex(context.Background(), "coll"))

	results, err := h.Retrieve(context.Background(), "coll", "sharpe ratio", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	// The passage ranked on both sides accumulates both contributions.
	assert.Equal(t, "both", results[0].ID)

	ids := make(map[string]bool)
	for _, r := range results {
		ids[r.ID] = true
	}
	assert.True(t, ids["sem1"], "semantic-only results included")
	assert.True(t, ids["lex1"], "lexical-only results included")
}

func TestHybridSemanticOnlyWhenLexicalEmpty(t *testing.T) {
	store := &mockVectorStore{
		vectorSize: 8,
		points: []qdrant.ScoredPoint{
			{ID: "a", Score: 0.9, Payload: payload("alpha content here", "")},
		},
	}
	h := newTestHybrid(store)
	// No lexical index built for this collection.

	results, err := h.Retrieve(context.Background(), "coll", "anything", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
}

func TestHybridEmptyBothSides(t *testing.T) {
	store := &mockVectorStore{vectorSize: 8}
	h := newTestHybrid(store)

	results, err := h.Retrieve(context.Background(), "coll", "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results, "no candidates is not an error")
}

func TestHybridPriorityBreaksNearTies(t *testing.T) {
	// Adjacent semantic ranks fuse to scores well within the 5% tie window;
	// priority must decide the order.
	store := &mockVectorStore{
		vectorSize: 8,
		points: []qdrant.ScoredPoint{
			{ID: "low", Score: 0.9, Payload: payload("content one", models.PriorityLow)},
			{ID: "crit", Score: 0.89, Payload: payload("content two", models.PriorityCritical)},
		},
	}
	h := newTestHybrid(store)

	results, err := h.Retrieve(context.Background(), "coll", "content", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "crit", results[0].ID,
		"critical priority wins a near-tie against low priority")
}

func TestHybridPriorityLeavesClearWinnersAlone(t *testing.T) {
	// The critical passage sits five semantic ranks back, more than 5% below
	// the leader's fused score; priority must not promote it.
	store := &mockVectorStore{
		vectorSize: 8,
		points: []qdrant.ScoredPoint{
			{ID: "norm1", Score: 0.95, Payload: payload("content one", models.PriorityNormal)},
			{ID: "norm2", Score: 0.94, Payload: payload("content two", models.PriorityNormal)},
			{ID: "norm3", Score: 0.93, Payload: payload("content thr", models.PriorityNormal)},
			{ID: "norm4", Score: 0.92, Payload: payload("content fou", models.PriorityNormal)},
			{ID: "crit", Score: 0.91, Payload: payload("content fiv", models.PriorityCritical)},
		},
	}
	h := newTestHybrid(store)

	results, err := h.Retrieve(context.Background(), "coll", "content", 5)
	require.NoError(t, err)
	require.Len(t, results, 5)
	assert.Equal(t, "norm1", results[0].ID,
		"rank-1 passage outside the tie window keeps its place")
	assert.NotEqual(t, "crit", results[0].ID)
}

func TestPriorityBoostValues(t *testing.T) {
	assert.Equal(t, 1.0, priorityBoost(models.PriorityCritical))
	assert.Equal(t, 0.85, priorityBoost(models.PriorityHigh))
	assert.Equal(t, 0.5, priorityBoost(models.PriorityNormal))
	assert.Equal(t, 0.3, priorityBoost(models.PriorityLow))
	assert.Equal(t, 0.5, priorityBoost(""), "missing priority defaults to normal")
}

func TestCheckDimensionMismatch(t *testing.T) {
	store := &mockVectorStore{vectorSize: 1536}
	semantic := NewSemanticRetriever(store, &mockEmbedder{dim: 768}, nil)

	err := semantic.CheckDimension(context.Background(), "coll")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension mismatch")

	semantic = NewSemanticRetriever(store, &mockEmbedder{dim: 1536}, nil)
	assert.NoError(t, semantic.CheckDimension(context.Background(), "coll"))
}
