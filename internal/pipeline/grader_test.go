package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alti-global/prism/internal/llm"
	"github.com/alti-global/prism/internal/models"
)

// gradingChat answers grading calls per passage text.
type gradingChat struct {
	mu      sync.Mutex
	answers map[string]string // substring of prompt -> answer
	failFor string            // substring of prompt that always errors
	calls   int32
	peak    int32
	current int32
}

func (g *gradingChat) Chat(_ context.Context, prompt string, _ llm.ChatOptions) (string, error) {
	atomic.AddInt32(&g.calls, 1)
	cur := atomic.AddInt32(&g.current, 1)
	defer atomic.AddInt32(&g.current, -1)
	for {
		peak := atomic.LoadInt32(&g.peak)
		if cur <= peak || atomic.CompareAndSwapInt32(&g.peak, peak, cur) {
			break
		}
	}
	time.Sleep(time.Millisecond)

	if g.failFor != "" && strings.Contains(prompt, g.failFor) {
		return "", errors.New("grader model down")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for substr, answer := range g.answers {
		if strings.Contains(prompt, substr) {
			return answer, nil
		}
	}
	return `{"grade": "relevant", "confidence": 0.8}`, nil
}

func fastGraderConfig(parallelism int) GraderConfig {
	return GraderConfig{
		Parallelism: parallelism,
		Timeout:     time.Second,
		Retry:       llm.RetryConfig{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1},
	}
}

func passagesWithTexts(texts ...string) []models.Passage {
	out := make([]models.Passage, len(texts))
	for i, text := range texts {
		out[i] = models.Passage{ID: text, Text: text}
	}
	return out
}

func TestGradeAssignsGradesInOrder(t *testing.T) {
	chat := &gradingChat{answers: map[string]string{
		"doc-a": `{"grade": "relevant", "confidence": 0.9}`,
		"doc-b": `{"grade": "partial", "confidence": 0.5}`,
		"doc-c": `{"grade": "irrelevant", "confidence": 0.95}`,
	}}
	g := NewGrader(chat, fastGraderConfig(4), nil, nil)

	graded, err := g.Grade(context.Background(), "q", passagesWithTexts("doc-a", "doc-b", "doc-c"))
	require.NoError(t, err)
	require.Len(t, graded, 3)

	assert.Equal(t, models.GradeRelevant, graded[0].Grade)
	assert.InDelta(t, 0.9, graded[0].GradeConfidence, 1e-9)
	assert.Equal(t, models.GradePartial, graded[1].Grade)
	assert.Equal(t, models.GradeIrrelevant, graded[2].Grade)
	assert.Equal(t, "doc-a", graded[0].ID, "input order preserved")
}

func TestGradePartialFailureSoftDrops(t *testing.T) {
	chat := &gradingChat{
		answers: map[string]string{"doc-a": `{"grade": "relevant", "confidence": 0.9}`},
		failFor: "doc-b",
	}
	g := NewGrader(chat, fastGraderConfig(4), nil, nil)

	graded, err := g.Grade(context.Background(), "q", passagesWithTexts("doc-a", "doc-b"))
	require.NoError(t, err, "partial failure is not an error")

	assert.Equal(t, models.GradeRelevant, graded[0].Grade)
	assert.Equal(t, models.GradeIrrelevant, graded[1].Grade, "failed grade soft-drops the passage")
	assert.Zero(t, graded[1].GradeConfidence)
}

func TestGradeAllFailed(t *testing.T) {
	chat := &gradingChat{failFor: "doc"}
	g := NewGrader(chat, fastGraderConfig(4), nil, nil)

	graded, err := g.Grade(context.Background(), "q", passagesWithTexts("doc-a", "doc-b"))
	require.ErrorIs(t, err, ErrAllGradesFailed)
	for _, p := range graded {
		assert.Equal(t, models.GradeUngraded, p.Grade)
	}
}

func TestGradeBoundedConcurrency(t *testing.T) {
	chat := &gradingChat{}
	g := NewGrader(chat, fastGraderConfig(2), nil, nil)

	texts := make([]string, 12)
	for i := range texts {
		texts[i] = strings.Repeat("x", i+1)
	}
	_, err := g.Grade(context.Background(), "q", passagesWithTexts(texts...))
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(&chat.peak), int32(2),
		"no more than the configured parallelism in flight")
}

func TestGradeRetriesMalformedAnswer(t *testing.T) {
	calls := 0
	chat := &retryThenSucceedChat{
		first: "sure! the document looks relevant to me",
		then:  `{"grade": "relevant", "confidence": 0.7}`,
		count: &calls,
	}
	g := NewGrader(chat, fastGraderConfig(1), nil, nil)

	graded, err := g.Grade(context.Background(), "q", passagesWithTexts("doc"))
	require.NoError(t, err)
	assert.Equal(t, models.GradeRelevant, graded[0].Grade)
	assert.Equal(t, 2, calls)
}

func TestGradeParsesWrappedJSON(t *testing.T) {
	var result gradeResult
	err := parseGradeJSON("Here you go: {\"grade\": \"partial\", \"confidence\": 0.4} hope that helps", &result)
	require.NoError(t, err)
	assert.Equal(t, "partial", result.Grade)

	err = parseGradeJSON("no json at all", &result)
	assert.Error(t, err)
}

func TestGradeEmptyInput(t *testing.T) {
	g := NewGrader(&gradingChat{}, fastGraderConfig(2), nil, nil)
	graded, err := g.Grade(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Empty(t, graded)
}

type retryThenSucceedChat struct {
	first string
	then  string
	count *int
}

func (c *retryThenSucceedChat) Chat(_ context.Context, _ string, _ llm.ChatOptions) (string, error) {
	*c.count++
	if *c.count == 1 {
		return c.first, nil
	}
	return c.then, nil
}
