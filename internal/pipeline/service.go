package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/alti-global/prism/internal/cache"
	"github.com/alti-global/prism/internal/concurrency"
	"github.com/alti-global/prism/internal/config"
	"github.com/alti-global/prism/internal/llm"
	"github.com/alti-global/prism/internal/models"
	"github.com/alti-global/prism/internal/observability"
	"github.com/alti-global/prism/internal/retrieval"
)

// Breaker names used by the service.
const (
	BreakerPipeline = "pipeline"
	BreakerLLM      = "llm"
)

// Service orchestrates the full query path: cache, intent, retrieval,
// grading, reranking, generation, and the degraded fallback behind a
// circuit breaker.
type Service struct {
	cfg       *config.Config
	logger    *logrus.Logger
	cache     cache.Store
	collector *observability.Collector
	metrics   *observability.MetricsWriter

	classifier *IntentClassifier
	expander   *retrieval.QueryExpander
	retriever  *retrieval.HybridRetriever
	semantic   *retrieval.SemanticRetriever
	grader     *Grader
	reranker   *Reranker
	generator  *Generator
	fallback   *Fallback
	breakers   *llm.BreakerManager
	chat       llm.ChatModel
	embedder   llm.Embedder

	inflight *concurrency.Semaphore
	ready    atomic.Bool
}

// ServiceDeps bundles the service's collaborators.
type ServiceDeps struct {
	Cache      cache.Store
	Collector  *observability.Collector
	Metrics    *observability.MetricsWriter
	Classifier *IntentClassifier
	Expander   *retrieval.QueryExpander
	Retriever  *retrieval.HybridRetriever
	Semantic   *retrieval.SemanticRetriever
	Grader     *Grader
	Reranker   *Reranker
	Generator  *Generator
	Fallback   *Fallback
	Breakers   *llm.BreakerManager
	Chat       llm.ChatModel
	Embedder   llm.Embedder
}

// NewService wires the pipeline together.
func NewService(cfg *config.Config, deps ServiceDeps, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
	}
	return &Service{
		cfg:        cfg,
		logger:     logger,
		cache:      deps.Cache,
		collector:  deps.Collector,
		metrics:    deps.Metrics,
		classifier: deps.Classifier,
		expander:   deps.Expander,
		retriever:  deps.Retriever,
		semantic:   deps.Semantic,
		grader:     deps.Grader,
		reranker:   deps.Reranker,
		generator:  deps.Generator,
		fallback:   deps.Fallback,
		breakers:   deps.Breakers,
		chat:       deps.Chat,
		embedder:   deps.Embedder,
		inflight:   concurrency.NewSemaphore(cfg.Server.InflightCap),
	}
}

// Warmup prepares the service: vector store connectivity, a dimension check
// and lexical index per collection, and one trivial embed and chat call.
// Readiness gates on it; a dimension mismatch is fatal.
func (s *Service) Warmup(ctx context.Context) error {
	for domain, collection := range s.cfg.DomainCollections {
		if err := s.semantic.CheckDimension(ctx, collection); err != nil {
			return err
		}
		if err := s.retriever.BuildLexicalIndex(ctx, collection); err != nil {
			return err
		}
		s.logger.WithFields(logrus.Fields{
			"domain":     domain,
			"collection": collection,
		}).Info("collection warmed up")
	}

	if _, err := s.embedder.Embed(ctx, "warmup"); err != nil {
		return err
	}
	if _, err := s.chat.Chat(ctx, "Reply with the word ok.", llm.ChatOptions{MaxTokens: 5}); err != nil {
		return err
	}

	s.ready.Store(true)
	s.logger.Info("warmup complete, service ready")
	return nil
}

// Ready reports whether warmup has completed.
func (s *Service) Ready() bool {
	return s.ready.Load()
}

// CacheStats exposes response cache counters.
func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// BreakerStatus exposes every breaker's state.
func (s *Service) BreakerStatus() map[string]llm.BreakerStatus {
	return s.breakers.AllStatus()
}

// Domains lists the configured domains.
func (s *Service) Domains() []string {
	out := make([]string, 0, len(s.cfg.DomainCollections))
	for domain := range s.cfg.DomainCollections {
		out = append(out, domain)
	}
	return out
}

// Process answers one query end to end. Generation failures degrade to the
// fallback path and finally to a canned unavailable answer; only structural
// problems (overload, unknown domain, not ready) surface as errors.
func (s *Service) Process(ctx context.Context, query models.Query) (models.QueryResponse, error) {
	if !s.inflight.TryAcquire() {
		return models.QueryResponse{}, ErrOverloaded
	}
	defer s.inflight.Release()
	s.collector.InflightInc()
	defer s.collector.InflightDec()

	if !s.Ready() {
		return models.QueryResponse{}, ErrNotReady
	}

	if query.Domain == "" {
		query.Domain = s.cfg.DefaultDomain
	}
	collection, err := s.cfg.CollectionFor(query.Domain)
	if err != nil {
		return models.QueryResponse{}, ErrUnknownDomain
	}
	if query.ID == "" {
		query.ID = uuid.New().String()
	}

	// App-context queries carry per-user numbers; caching them would leak
	// one user's results into another's answer.
	useCache := s.cfg.Cache.Enabled && !query.HasAppContext()
	var fingerprint string
	if useCache {
		fingerprint = cache.Fingerprint(query.Text, query.Domain, query.PromptName)
		lookupStart := time.Now()
		if cached, ok := s.cache.Get(ctx, fingerprint); ok {
			s.collector.ObserveCacheEvent("hit")
			cached.ID = query.ID
			// Stage timings belong to the original run; a hit reports only
			// its own lookup time.
			cached.Timings = models.StageTimings{TotalMs: msSince(lookupStart)}
			s.recordCacheHit(query, cached)
			return cached, nil
		}
		s.collector.ObserveCacheEvent("miss")
	} else if query.HasAppContext() {
		s.collector.ObserveCacheEvent("bypass")
	}

	pipelineBreaker := s.breakers.Get(BreakerPipeline)

	if pipelineBreaker.Allow() {
		mainCtx, cancel := context.WithTimeout(ctx, s.cfg.Server.RequestDeadline)
		state, err := s.runMain(mainCtx, collection, query)
		deadlineHit := errors.Is(mainCtx.Err(), context.DeadlineExceeded)
		cancel()
		if err == nil {
			pipelineBreaker.RecordSuccess()
			resp := s.finish(query, state, models.EndpointMain, "")
			if useCache {
				s.cache.Set(ctx, fingerprint, resp)
			}
			return resp, nil
		}
		pipelineBreaker.RecordFailure()
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return models.QueryResponse{}, ctx.Err()
		}
		if deadlineHit {
			// The request already spent its whole deadline; the fallback
			// would only push the response further past it. Per-stage
			// timeouts with deadline left still fall through to the
			// fallback.
			s.logger.WithField("query_id", query.ID).Warn("request deadline exceeded")
			return models.QueryResponse{}, context.DeadlineExceeded
		}
		s.logger.WithError(err).WithField("query_id", query.ID).Warn("main pipeline failed, trying fallback")
	} else {
		s.logger.WithField("query_id", query.ID).Info("pipeline breaker open, using fallback")
	}

	state, err := s.fallback.Answer(ctx, collection, query)
	if err != nil {
		s.logger.WithError(err).WithField("query_id", query.ID).Error("fallback path failed")
		return s.unavailableResponse(query, err), nil
	}
	resp := s.finish(query, state, models.EndpointFallback, "")
	return resp, nil
}

// recordCacheHit keeps the metrics stream complete: served-from-cache
// queries get their own row.
func (s *Service) recordCacheHit(query models.Query, resp models.QueryResponse) {
	var topScore float64
	if len(resp.Citations) > 0 {
		topScore = resp.Citations[0].Score
	}
	s.metrics.Record(models.QueryMetrics{
		ID:        query.ID,
		Timestamp: time.Now().UTC(),
		Domain:    query.Domain,
		Intent:    resp.Intent,
		Quality:   resp.Quality,
		Timings:   resp.Timings,
		DocCount:  len(resp.Citations),
		TopScore:  topScore,
		Endpoint:  models.EndpointMain,
	})
	s.collector.ObserveQuery(query.Domain, models.EndpointMain, "ok")
}

// runMain executes the full agentic path.
func (s *Service) runMain(ctx context.Context, collection string, query models.Query) (*models.PipelineState, error) {
	start := time.Now()
	state := &models.PipelineState{Query: query}

	state.Intent = s.classifier.Classify(ctx, query.Text)

	// App context rewriting is deterministic and replaces expansion: the
	// rewritten query already carries the user's exact numbers.
	state.RetrievalQuery = query.Text
	if query.HasAppContext() {
		state.RetrievalQuery = BuildContextualQuery(query.Text, query.AppContext)
	} else if s.expander != nil && s.cfg.Retrieval.ExpanderEnabled {
		state.RetrievalQuery = s.expander.Expand(ctx, query.Text, state.Intent)
	}

	retrieveStart := time.Now()
	candidates, err := s.retriever.Retrieve(ctx, collection, state.RetrievalQuery, s.cfg.Retrieval.KRetrieve)
	state.Timings.RetrieveMs = msSince(retrieveStart)
	if err != nil {
		return nil, err
	}
	state.Candidates = candidates

	gradeStart := time.Now()
	graded, gradeErr := s.grader.Grade(ctx, query.Text, candidates)
	state.Timings.GradeMs = msSince(gradeStart)
	if gradeErr != nil && !errors.Is(gradeErr, ErrAllGradesFailed) {
		return nil, gradeErr
	}

	rerankStart := time.Now()
	state.Survivors = s.reranker.Rerank(ctx, query.Text, graded)
	state.Timings.RerankMs = msSince(rerankStart)

	state.Quality = AssessQuality(state.Survivors)
	if errors.Is(gradeErr, ErrAllGradesFailed) {
		state.Quality = models.QualityPoor
	}

	generateStart := time.Now()
	err = s.generator.Generate(ctx, state)
	state.Timings.GenerateMs = msSince(generateStart)
	if err != nil {
		return nil, err
	}

	state.Timings.TotalMs = msSince(start)
	return state, nil
}

// finish converts pipeline state into the wire response and records metrics.
func (s *Service) finish(query models.Query, state *models.PipelineState, endpoint, errMsg string) models.QueryResponse {
	resp := models.QueryResponse{
		ID:        query.ID,
		Answer:    state.Answer,
		Citations: state.Citations,
		Quality:   state.Quality,
		Intent:    state.Intent,
		Timings:   state.Timings,
		ThreadID:  query.ThreadID,
	}
	if resp.Citations == nil {
		resp.Citations = []models.Citation{}
	}

	var topScore float64
	if len(state.Survivors) > 0 {
		topScore = state.Survivors[0].GradeConfidence
	}
	s.metrics.Record(models.QueryMetrics{
		ID:        query.ID,
		Timestamp: time.Now().UTC(),
		Domain:    query.Domain,
		Intent:    state.Intent,
		Quality:   state.Quality,
		Timings:   state.Timings,
		DocCount:  len(state.Survivors),
		TopScore:  topScore,
		Endpoint:  endpoint,
		Error:     errMsg,
	})

	outcome := "ok"
	if errMsg != "" {
		outcome = "error"
	}
	s.collector.ObserveQuery(query.Domain, endpoint, outcome)
	s.collector.ObserveQuality(string(state.Quality))
	s.collector.ObserveStage("retrieve", state.Timings.RetrieveMs/1000)
	s.collector.ObserveStage("grade", state.Timings.GradeMs/1000)
	s.collector.ObserveStage("rerank", state.Timings.RerankMs/1000)
	s.collector.ObserveStage("generate", state.Timings.GenerateMs/1000)
	s.collector.ObserveStage("total", state.Timings.TotalMs/1000)
	return resp
}

// unavailableResponse is the canned answer when both paths are down.
func (s *Service) unavailableResponse(query models.Query, cause error) models.QueryResponse {
	state := &models.PipelineState{
		Query:   query,
		Intent:  models.IntentGeneral,
		Answer:  UnavailableMessage,
		Quality: models.QualityPoor,
	}
	return s.finish(query, state, models.EndpointFallback, cause.Error())
}
