package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alti-global/prism/internal/llm"
	"github.com/alti-global/prism/internal/models"
	"github.com/alti-global/prism/internal/prompts"
	"github.com/alti-global/prism/internal/retrieval"
)

// Fallback is the degraded linear path: semantic retrieval only, then
// generate with a minimal prompt. No lexical fusion, no intent routing, no
// expansion, no grading, no rerank. It runs when the main pipeline's breaker
// is open or the main path fails.
type Fallback struct {
	retriever *retrieval.SemanticRetriever
	chat      llm.ChatModel
	registry  *prompts.Registry
	keepTop   int
	timeout   time.Duration
	logger    *logrus.Logger
}

// NewFallback creates the degraded path.
func NewFallback(retriever *retrieval.SemanticRetriever, chat llm.ChatModel, registry *prompts.Registry, keepTop int, timeout time.Duration, logger *logrus.Logger) *Fallback {
	if keepTop < 1 {
		keepTop = 5
	}
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Fallback{
		retriever: retriever,
		chat:      chat,
		registry:  registry,
		keepTop:   keepTop,
		timeout:   timeout,
		logger:    logger,
	}
}

// Answer runs the linear path for one query.
func (f *Fallback) Answer(ctx context.Context, collection string, query models.Query) (*models.PipelineState, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	start := time.Now()
	state := &models.PipelineState{
		Query:          query,
		RetrievalQuery: query.Text,
		Intent:         models.IntentGeneral,
	}

	retrieveStart := time.Now()
	passages, err := f.retriever.Search(ctx, collection, query.Text, f.keepTop)
	state.Timings.RetrieveMs = msSince(retrieveStart)
	if err != nil {
		return nil, fmt.Errorf("fallback retrieve: %w", err)
	}
	state.Survivors = passages
	if len(passages) == 0 {
		state.Quality = models.QualityPoor
	} else {
		state.Quality = models.QualityAmbiguous
	}

	prompt, err := f.registry.Render("fallback_qa", FormatContext(passages), query.Text)
	if err != nil {
		return nil, fmt.Errorf("fallback prompt: %w", err)
	}

	generateStart := time.Now()
	raw, err := f.chat.Chat(ctx, prompt, llm.ChatOptions{Temperature: 0.2, MaxTokens: 300})
	state.Timings.GenerateMs = msSince(generateStart)
	if err != nil {
		return nil, fmt.Errorf("fallback generate: %w", err)
	}

	answer, citations := RenumberCitations(strings.TrimSpace(raw), passages)
	if state.Quality == models.QualityPoor {
		answer = PoorQualityDisclaimer + " " + answer
	}
	state.Answer = answer
	state.Citations = citations
	state.Timings.TotalMs = msSince(start)
	return state, nil
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000.0
}
