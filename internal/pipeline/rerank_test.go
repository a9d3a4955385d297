package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alti-global/prism/internal/models"
)

func gradedPassage(id string, grade models.Grade, confidence, fused float64) models.Passage {
	return models.Passage{ID: id, Text: id, Grade: grade, GradeConfidence: confidence, FusedScore: fused}
}

func TestRerankOrdersByConfidence(t *testing.T) {
	r := NewReranker(nil, RerankerConfig{Threshold: 0.3, KeepTop: 5}, nil)

	survivors := r.Rerank(context.Background(), "q", []models.Passage{
		gradedPassage("mid", models.GradeRelevant, 0.6, 0.1),
		gradedPassage("top", models.GradeRelevant, 0.9, 0.05),
		gradedPassage("partial", models.GradePartial, 0.7, 0.2),
	})

	require.Len(t, survivors, 3)
	assert.Equal(t, "top", survivors[0].ID)
	assert.Equal(t, "partial", survivors[1].ID)
	assert.Equal(t, "mid", survivors[2].ID)
}

func TestRerankDropsIrrelevantAndLowConfidence(t *testing.T) {
	r := NewReranker(nil, RerankerConfig{Threshold: 0.3, KeepTop: 5}, nil)

	survivors := r.Rerank(context.Background(), "q", []models.Passage{
		gradedPassage("keep", models.GradeRelevant, 0.8, 0.1),
		gradedPassage("irrelevant", models.GradeIrrelevant, 0.99, 0.2),
		gradedPassage("weak", models.GradeRelevant, 0.2, 0.3),
	})

	require.Len(t, survivors, 1)
	assert.Equal(t, "keep", survivors[0].ID)
}

func TestRerankTieBreaksOnFusedScore(t *testing.T) {
	r := NewReranker(nil, RerankerConfig{Threshold: 0.3, KeepTop: 5}, nil)

	survivors := r.Rerank(context.Background(), "q", []models.Passage{
		gradedPassage("lowFused", models.GradeRelevant, 0.8, 0.1),
		gradedPassage("highFused", models.GradeRelevant, 0.8, 0.4),
	})

	require.Len(t, survivors, 2)
	assert.Equal(t, "highFused", survivors[0].ID)
}

func TestRerankCapsSurvivors(t *testing.T) {
	r := NewReranker(nil, RerankerConfig{Threshold: 0.3, KeepTop: 2}, nil)

	survivors := r.Rerank(context.Background(), "q", []models.Passage{
		gradedPassage("a", models.GradeRelevant, 0.9, 0),
		gradedPassage("b", models.GradeRelevant, 0.8, 0),
		gradedPassage("c", models.GradeRelevant, 0.7, 0),
	})
	assert.Len(t, survivors, 2)
}

func TestRerankUngradedPassThrough(t *testing.T) {
	r := NewReranker(nil, RerankerConfig{Threshold: 0.3, KeepTop: 2}, nil)

	survivors := r.Rerank(context.Background(), "q", []models.Passage{
		gradedPassage("low", models.GradeUngraded, 0, 0.1),
		gradedPassage("high", models.GradeUngraded, 0, 0.5),
		gradedPassage("mid", models.GradeUngraded, 0, 0.3),
	})

	require.Len(t, survivors, 2, "ungraded passages are capped but not filtered")
	assert.Equal(t, "high", survivors[0].ID, "ungraded order falls back to fused score")
}

func TestRerankEmpty(t *testing.T) {
	r := NewReranker(nil, RerankerConfig{Threshold: 0.3, KeepTop: 5}, nil)
	assert.Nil(t, r.Rerank(context.Background(), "q", nil))
}

type scriptedReranker struct {
	scores []float64
	err    error
}

func (s *scriptedReranker) Rerank(_ context.Context, _ string, _ []string) ([]float64, error) {
	return s.scores, s.err
}

func TestRerankExternalModelOrders(t *testing.T) {
	external := &scriptedReranker{scores: []float64{0.1, 0.9}}
	r := NewReranker(external, RerankerConfig{Threshold: 0.3, KeepTop: 5}, nil)

	survivors := r.Rerank(context.Background(), "q", []models.Passage{
		gradedPassage("first", models.GradeRelevant, 0.9, 0),
		gradedPassage("second", models.GradeRelevant, 0.5, 0),
	})

	require.Len(t, survivors, 2)
	assert.Equal(t, "second", survivors[0].ID, "external scores override grade order")
}

func TestRerankExternalFailureFallsBack(t *testing.T) {
	external := &scriptedReranker{err: errors.New("rerank service down")}
	r := NewReranker(external, RerankerConfig{Threshold: 0.3, KeepTop: 5}, nil)

	survivors := r.Rerank(context.Background(), "q", []models.Passage{
		gradedPassage("low", models.GradeRelevant, 0.5, 0),
		gradedPassage("high", models.GradeRelevant, 0.9, 0),
	})

	require.Len(t, survivors, 2)
	assert.Equal(t, "high", survivors[0].ID, "grade order kept when external rerank fails")
}

func TestAssessQuality(t *testing.T) {
	assert.Equal(t, models.QualityPoor, AssessQuality(nil))

	good := []models.Passage{gradedPassage("a", models.GradeRelevant, 0.85, 0)}
	assert.Equal(t, models.QualityGood, AssessQuality(good))

	ambiguous := []models.Passage{gradedPassage("a", models.GradeRelevant, 0.5, 0)}
	assert.Equal(t, models.QualityAmbiguous, AssessQuality(ambiguous))

	boundary := []models.Passage{gradedPassage("a", models.GradeRelevant, 0.7, 0)}
	assert.Equal(t, models.QualityGood, AssessQuality(boundary), "0.7 exactly rates good")

	ungraded := []models.Passage{gradedPassage("a", models.GradeUngraded, 0, 0)}
	assert.Equal(t, models.QualityPoor, AssessQuality(ungraded))
}
