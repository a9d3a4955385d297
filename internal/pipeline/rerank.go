package pipeline

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/alti-global/prism/internal/llm"
	"github.com/alti-global/prism/internal/models"
)

// RerankerConfig tunes survivor selection.
type RerankerConfig struct {
	// Threshold is the minimum grade confidence a passage needs to survive.
	Threshold float64
	// KeepTop caps the number of survivors.
	KeepTop int
}

// Reranker orders graded passages by confidence and drops the weak ones.
// When an external rerank model is configured its scores replace grade
// confidence for ordering; rerank failures fall back to grade order.
type Reranker struct {
	external llm.Reranker // optional
	config   RerankerConfig
	logger   *logrus.Logger
}

// NewReranker creates a reranker. external may be nil.
func NewReranker(external llm.Reranker, config RerankerConfig, logger *logrus.Logger) *Reranker {
	if config.KeepTop < 1 {
		config.KeepTop = 5
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Reranker{external: external, config: config, logger: logger}
}

// Rerank returns the surviving passages, best first. Ungraded passages (the
// all-grades-failed case) pass through in fused-score order, capped but not
// filtered, since there is no confidence to filter on.
func (r *Reranker) Rerank(ctx context.Context, query string, passages []models.Passage) []models.Passage {
	if len(passages) == 0 {
		return nil
	}

	if passages[0].Grade == models.GradeUngraded {
		out := make([]models.Passage, len(passages))
		copy(out, passages)
		sort.Slice(out, func(a, b int) bool { return out[a].FusedScore > out[b].FusedScore })
		if len(out) > r.config.KeepTop {
			out = out[:r.config.KeepTop]
		}
		return out
	}

	survivors := make([]models.Passage, 0, len(passages))
	for _, p := range passages {
		if p.Grade == models.GradeIrrelevant {
			continue
		}
		if p.GradeConfidence < r.config.Threshold {
			continue
		}
		survivors = append(survivors, p)
	}
	if len(survivors) == 0 {
		return nil
	}

	sort.SliceStable(survivors, func(a, b int) bool {
		if survivors[a].GradeConfidence != survivors[b].GradeConfidence {
			return survivors[a].GradeConfidence > survivors[b].GradeConfidence
		}
		return survivors[a].FusedScore > survivors[b].FusedScore
	})

	if r.external != nil {
		if reordered, ok := r.externalOrder(ctx, query, survivors); ok {
			survivors = reordered
		}
	}

	if len(survivors) > r.config.KeepTop {
		survivors = survivors[:r.config.KeepTop]
	}
	return survivors
}

func (r *Reranker) externalOrder(ctx context.Context, query string, passages []models.Passage) ([]models.Passage, bool) {
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}

	scores, err := r.external.Rerank(ctx, query, texts)
	if err != nil {
		r.logger.WithError(err).Warn("external rerank failed, keeping grade order")
		return nil, false
	}

	out := make([]models.Passage, len(passages))
	copy(out, passages)
	sort.SliceStable(out, func(a, b int) bool {
		sa, sb := scoreFor(out[a], passages, scores), scoreFor(out[b], passages, scores)
		if sa != sb {
			return sa > sb
		}
		return out[a].FusedScore > out[b].FusedScore
	})
	return out, true
}

func scoreFor(p models.Passage, ordered []models.Passage, scores []float64) float64 {
	for i := range ordered {
		if ordered[i].ID == p.ID {
			return scores[i]
		}
	}
	return 0
}
