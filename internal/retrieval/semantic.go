package retrieval

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/alti-global/prism/internal/llm"
	"github.com/alti-global/prism/internal/models"
	"github.com/alti-global/prism/internal/vectordb/qdrant"
)

// VectorStore is the slice of the Qdrant client the retriever needs.
type VectorStore interface {
	Search(ctx context.Context, collection string, vector []float32, opts *qdrant.SearchOptions) ([]qdrant.ScoredPoint, error)
	GetCollectionInfo(ctx context.Context, name string) (*qdrant.CollectionInfo, error)
	Scroll(ctx context.Context, collection string, limit int, offset *string) ([]qdrant.Point, *string, error)
}

// SemanticRetriever embeds a query and searches the dense vector index.
type SemanticRetriever struct {
	store    VectorStore
	embedder llm.Embedder
	logger   *logrus.Logger
}

// NewSemanticRetriever creates a dense retriever.
func NewSemanticRetriever(store VectorStore, embedder llm.Embedder, logger *logrus.Logger) *SemanticRetriever {
	if logger == nil {
		logger = logrus.New()
	}
	return &SemanticRetriever{store: store, embedder: embedder, logger: logger}
}

// CheckDimension verifies the embedder's dimensionality matches the
// collection's vector size. A mismatch is fatal: readiness must not pass.
func (r *SemanticRetriever) CheckDimension(ctx context.Context, collection string) error {
	info, err := r.store.GetCollectionInfo(ctx, collection)
	if err != nil {
		return fmt.Errorf("inspect collection %s: %w", collection, err)
	}
	if info.VectorSize != r.embedder.Dimension() {
		return fmt.Errorf("embedding dimension mismatch: collection %s has %d, embedder produces %d",
			collection, info.VectorSize, r.embedder.Dimension())
	}
	return nil
}

// Search embeds the query and returns the top-k nearest passages.
func (r *SemanticRetriever) Search(ctx context.Context, collection, query string, k int) ([]models.Passage, error) {
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	points, err := r.store.Search(ctx, collection, vector, &qdrant.SearchOptions{
		Limit:       k,
		WithPayload: true,
	})
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	passages := make([]models.Passage, 0, len(points))
	for _, pt := range points {
		passages = append(passages, pointToPassage(pt))
	}
	return passages, nil
}

// LoadCorpus scrolls the full collection, converting every point into a
// passage. Used to build the lexical index at warmup.
func (r *SemanticRetriever) LoadCorpus(ctx context.Context, collection string) ([]models.Passage, error) {
	const pageSize = 256
	var (
		corpus []models.Passage
		offset *string
	)
	for {
		points, next, err := r.store.Scroll(ctx, collection, pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("load corpus from %s: %w", collection, err)
		}
		for _, pt := range points {
			corpus = append(corpus, models.Passage{
				ID:         pt.ID,
				Text:       payloadString(pt.Payload, "text"),
				SourcePath: payloadString(pt.Payload, "source_path"),
				ChunkIndex: payloadInt(pt.Payload, "chunk_index"),
				Metadata:   pt.Payload,
			})
		}
		if next == nil {
			break
		}
		offset = next
	}
	r.logger.WithFields(logrus.Fields{
		"collection": collection,
		"passages":   len(corpus),
	}).Info("corpus loaded for lexical index")
	return corpus, nil
}

func pointToPassage(pt qdrant.ScoredPoint) models.Passage {
	return models.Passage{
		ID:            pt.ID,
		Text:          payloadString(pt.Payload, "text"),
		SourcePath:    payloadString(pt.Payload, "source_path"),
		ChunkIndex:    payloadInt(pt.Payload, "chunk_index"),
		Metadata:      pt.Payload,
		SemanticScore: float64(pt.Score),
	}
}

func payloadString(payload map[string]interface{}, key string) string {
	if payload == nil {
		return ""
	}
	if s, ok := payload[key].(string); ok {
		return s
	}
	return ""
}

func payloadInt(payload map[string]interface{}, key string) int {
	if payload == nil {
		return 0
	}
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}
