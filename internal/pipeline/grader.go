package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alti-global/prism/internal/concurrency"
	"github.com/alti-global/prism/internal/llm"
	"github.com/alti-global/prism/internal/models"
)

const gradePromptFormat = `You are a document relevance grader for a wealth management assistant.

Assess whether the document helps answer the query. Consider whether it
directly answers, covers the same topic, or provides useful context.

Reply with only a JSON object, no other text:
{"grade": "relevant" | "partial" | "irrelevant", "confidence": 0.0-1.0}

Query: %s

Document:
%s`

// gradeDocLimit truncates document text sent to the grader.
const gradeDocLimit = 2000

// GraderConfig tunes the parallel grading fan-out.
type GraderConfig struct {
	Parallelism int
	Timeout     time.Duration
	Retry       llm.RetryConfig
}

// GradeObserver is notified when a passage's grading exhausts its retries.
type GradeObserver interface {
	ObserveGraderFailure()
}

// Grader assigns each retrieved passage a relevance grade with bounded
// concurrency. Individual failures soft-drop the passage (graded
// irrelevant, confidence 0); only a total wipeout is surfaced to the
// caller, as ErrAllGradesFailed.
type Grader struct {
	chat     llm.ChatModel
	sem      *concurrency.Semaphore
	config   GraderConfig
	observer GradeObserver
	logger   *logrus.Logger
}

// ErrAllGradesFailed reports that no passage could be graded. The pipeline
// proceeds ungraded and marks quality poor.
var ErrAllGradesFailed = fmt.Errorf("all grading calls failed")

// NewGrader creates a grader. observer may be nil.
func NewGrader(chat llm.ChatModel, config GraderConfig, observer GradeObserver, logger *logrus.Logger) *Grader {
	if config.Parallelism < 1 {
		config.Parallelism = 16
	}
	if config.Timeout == 0 {
		config.Timeout = 3 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Grader{
		chat:     chat,
		sem:      concurrency.NewSemaphore(config.Parallelism),
		config:   config,
		observer: observer,
		logger:   logger,
	}
}

type gradeResult struct {
	Grade      string  `json:"grade"`
	Confidence float64 `json:"confidence"`
}

// Grade grades every passage concurrently and returns them in their
// original order with Grade and GradeConfidence filled in.
func (g *Grader) Grade(ctx context.Context, query string, passages []models.Passage) ([]models.Passage, error) {
	if len(passages) == 0 {
		return passages, nil
	}

	out := make([]models.Passage, len(passages))
	copy(out, passages)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures int
	)

	for i := range out {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			if err := g.sem.Acquire(ctx); err != nil {
				mu.Lock()
				failures++
				mu.Unlock()
				out[i].Grade = models.GradeIrrelevant
				out[i].GradeConfidence = 0
				return
			}
			defer g.sem.Release()

			grade, confidence, err := g.gradeOne(ctx, query, out[i].Text)
			if err != nil {
				g.logger.WithError(err).WithField("passage", out[i].ID).Debug("grading failed, soft-dropping")
				if g.observer != nil {
					g.observer.ObserveGraderFailure()
				}
				mu.Lock()
				failures++
				mu.Unlock()
				out[i].Grade = models.GradeIrrelevant
				out[i].GradeConfidence = 0
				return
			}
			out[i].Grade = grade
			out[i].GradeConfidence = confidence
		}(i)
	}
	wg.Wait()

	if failures == len(out) {
		// Every call failed; return the passages ungraded so the caller can
		// proceed with retrieval order alone.
		for i := range out {
			out[i].Grade = models.GradeUngraded
			out[i].GradeConfidence = 0
		}
		return out, ErrAllGradesFailed
	}
	return out, nil
}

// gradeOne runs one grading call with its own timeout and retry budget.
func (g *Grader) gradeOne(ctx context.Context, query, text string) (models.Grade, float64, error) {
	if len(text) > gradeDocLimit {
		text = text[:gradeDocLimit]
	}
	prompt := fmt.Sprintf(gradePromptFormat, query, text)

	var result gradeResult
	err := llm.Do(ctx, g.config.Retry, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, g.config.Timeout)
		defer cancel()

		raw, err := g.chat.Chat(callCtx, prompt, llm.ChatOptions{Temperature: 0, MaxTokens: 50})
		if err != nil {
			return err
		}
		if err := parseGradeJSON(raw, &result); err != nil {
			// A malformed answer is worth one more attempt.
			return llm.Transient(err)
		}
		return nil
	})
	if err != nil {
		return "", 0, err
	}

	grade := models.Grade(result.Grade)
	switch grade {
	case models.GradeRelevant, models.GradePartial, models.GradeIrrelevant:
	default:
		return "", 0, fmt.Errorf("unknown grade %q", result.Grade)
	}
	if result.Confidence < 0 {
		result.Confidence = 0
	}
	if result.Confidence > 1 {
		result.Confidence = 1
	}
	return grade, result.Confidence, nil
}

// parseGradeJSON extracts the JSON object from a model answer that may wrap
// it in prose or code fences.
func parseGradeJSON(raw string, out *gradeResult) error {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("no JSON object in grade answer")
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), out); err != nil {
		return fmt.Errorf("parse grade answer: %w", err)
	}
	return nil
}
