package retrieval

import (
	"context"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/alti-global/prism/internal/models"
)

// FusionConfig tunes weighted reciprocal rank fusion.
type FusionConfig struct {
	WeightSemantic float64
	WeightBM25     float64
	// RRFK dampens the influence of rank position; 60 is the usual value.
	RRFK int
}

// DefaultFusionConfig returns the service defaults.
func DefaultFusionConfig() FusionConfig {
	return FusionConfig{
		WeightSemantic: 0.6,
		WeightBM25:     0.4,
		RRFK:           60,
	}
}

// priorityTieWindow is the relative gap below which fused scores count as
// tied and priority decides the order.
const priorityTieWindow = 0.05

// priorityBoost maps a document priority to its fusion multiplier.
func priorityBoost(priority string) float64 {
	switch priority {
	case models.PriorityCritical:
		return 1.0
	case models.PriorityHigh:
		return 0.85
	case models.PriorityLow:
		return 0.3
	default:
		return 0.5
	}
}

// HybridRetriever fuses dense vector search with lexical BM25 ranking. It
// owns one lexical index per collection, built at warmup via
// BuildLexicalIndex and read-only afterwards.
type HybridRetriever struct {
	semantic *SemanticRetriever
	fusion   FusionConfig
	logger   *logrus.Logger

	mu      sync.RWMutex
	lexical map[string]*BM25Index
}

// NewHybridRetriever creates a hybrid retriever.
func NewHybridRetriever(semantic *SemanticRetriever, fusion FusionConfig, logger *logrus.Logger) *HybridRetriever {
	if logger == nil {
		logger = logrus.New()
	}
	return &HybridRetriever{
		semantic: semantic,
		fusion:   fusion,
		logger:   logger,
		lexical:  make(map[string]*BM25Index),
	}
}

// BuildLexicalIndex loads the collection's full corpus and (re)builds its
// BM25 index.
func (h *HybridRetriever) BuildLexicalIndex(ctx context.Context, collection string) error {
	corpus, err := h.semantic.LoadCorpus(ctx, collection)
	if err != nil {
		return err
	}
	idx := NewBM25Index()
	idx.Build(corpus)

	h.mu.Lock()
	h.lexical[collection] = idx
	h.mu.Unlock()

	h.logger.WithFields(logrus.Fields{
		"collection": collection,
		"passages":   idx.Size(),
	}).Info("lexical index built")
	return nil
}

// LexicalReady reports whether the collection's BM25 index exists.
func (h *HybridRetriever) LexicalReady(collection string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	idx, ok := h.lexical[collection]
	return ok && idx.Ready()
}

func (h *HybridRetriever) lexicalIndex(collection string) *BM25Index {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lexical[collection]
}

// Retrieve runs both retrieval sides and fuses their rankings. If one side
// returns nothing the other side's ranking is used alone; if both are empty
// the result is empty, never an error.
func (h *HybridRetriever) Retrieve(ctx context.Context, collection, query string, k int) ([]models.Passage, error) {
	semResults, err := h.semantic.Search(ctx, collection, query, k)
	if err != nil {
		// Dense search failing is an infrastructure error; lexical-only
		// results would silently degrade answer quality.
		return nil, err
	}

	var lexResults []models.Passage
	if idx := h.lexicalIndex(collection); idx != nil {
		lexResults = idx.Search(query, k)
	}

	fused := h.fuse(semResults, lexResults, k)

	h.logger.WithFields(logrus.Fields{
		"collection": collection,
		"semantic":   len(semResults),
		"lexical":    len(lexResults),
		"fused":      len(fused),
	}).Debug("hybrid retrieval complete")

	return fused, nil
}

// fuse combines the two rankings with weighted RRF and returns the top k by
// fused score. Priority acts only as a tie-break: candidates whose fused
// scores sit within priorityTieWindow of each other are reordered by
// priority-boosted score; a clear winner keeps its rank regardless of
// priority.
func (h *HybridRetriever) fuse(semantic, lexical []models.Passage, k int) []models.Passage {
	kappa := float64(h.fusion.RRFK)
	byID := make(map[string]*models.Passage)

	for rank, p := range semantic {
		cp := p
		cp.FusedScore = h.fusion.WeightSemantic / (kappa + float64(rank+1))
		byID[p.ID] = &cp
	}

	for rank, p := range lexical {
		contrib := h.fusion.WeightBM25 / (kappa + float64(rank+1))
		if existing, ok := byID[p.ID]; ok {
			existing.FusedScore += contrib
			existing.LexicalScore = p.LexicalScore
		} else {
			cp := p
			cp.FusedScore = contrib
			byID[p.ID] = &cp
		}
	}

	out := make([]models.Passage, 0, len(byID))
	for _, p := range byID {
		out = append(out, *p)
	}

	sort.Slice(out, func(a, b int) bool {
		if out[a].FusedScore != out[b].FusedScore {
			return out[a].FusedScore > out[b].FusedScore
		}
		return out[a].ID < out[b].ID
	})
	breakTiesByPriority(out)

	if len(out) > k {
		out = out[:k]
	}
	return out
}

// breakTiesByPriority reorders bands of near-equal fused scores by
// priority-boosted score. Bands are anchored at the highest score in the
// band; a candidate joins while its score stays within priorityTieWindow of
// that anchor. The stored FusedScore is left untouched.
func breakTiesByPriority(out []models.Passage) {
	for start := 0; start < len(out); {
		end := start + 1
		for end < len(out) && out[end].FusedScore >= out[start].FusedScore*(1-priorityTieWindow) {
			end++
		}
		if end-start > 1 {
			band := out[start:end]
			sort.SliceStable(band, func(a, b int) bool {
				ba := band[a].FusedScore * priorityBoost(band[a].Priority())
				bb := band[b].FusedScore * priorityBoost(band[b].Priority())
				if ba != bb {
					return ba > bb
				}
				return band[a].FusedScore > band[b].FusedScore
			})
		}
		start = end
	}
}
