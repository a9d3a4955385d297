// Prism answers natural-language questions over wealth-management document
// collections through an agentic retrieval pipeline.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/alti-global/prism/internal/cache"
	"github.com/alti-global/prism/internal/config"
	"github.com/alti-global/prism/internal/handlers"
	"github.com/alti-global/prism/internal/llm"
	"github.com/alti-global/prism/internal/observability"
	"github.com/alti-global/prism/internal/pipeline"
	"github.com/alti-global/prism/internal/prompts"
	"github.com/alti-global/prism/internal/retrieval"
	"github.com/alti-global/prism/internal/server"
	"github.com/alti-global/prism/internal/vectordb/qdrant"
)

const version = "2.0.0"

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := newLogger(cfg)

	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("configuration invalid")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("service exited with error")
	}
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	chat, embedder, err := buildProviders(cfg, logger)
	if err != nil {
		return err
	}

	vectorStore, err := qdrant.NewClient(&qdrant.Config{
		URL:     cfg.Qdrant.URL,
		APIKey:  cfg.Qdrant.APIKey,
		Timeout: cfg.Qdrant.Timeout,
	}, logger)
	if err != nil {
		return err
	}
	if err := vectorStore.Connect(ctx); err != nil {
		return err
	}
	defer func() { _ = vectorStore.Close() }()

	registry, err := prompts.NewRegistry()
	if err != nil {
		return err
	}

	responseCache, closeCache, err := buildCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	metricsWriter, err := observability.NewMetricsWriter(cfg.Logs.Dir, logger)
	if err != nil {
		return err
	}
	defer func() { _ = metricsWriter.Close() }()

	feedbackStore, err := observability.NewFeedbackStore(cfg.Logs.Dir, logger)
	if err != nil {
		return err
	}
	defer func() { _ = feedbackStore.Close() }()

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := observability.NewCollector(promRegistry)

	breakers := llm.NewBreakerManager(llm.BreakerConfig{
		FailureThreshold: cfg.Breaker.Threshold,
		ResetTimeout:     cfg.Breaker.ResetTimeout,
	}, logger)
	breakers.OnTransition(func(name string, state llm.CircuitState) {
		collector.ObserveBreakerTransition(name, string(state))
	})

	semantic := retrieval.NewSemanticRetriever(vectorStore, embedder, logger)
	retriever := retrieval.NewHybridRetriever(semantic, retrieval.FusionConfig{
		WeightSemantic: cfg.Retrieval.WeightSemantic,
		WeightBM25:     cfg.Retrieval.WeightBM25,
		RRFK:           cfg.Retrieval.RRFK,
	}, logger)

	var expander *retrieval.QueryExpander
	if cfg.Retrieval.ExpanderEnabled {
		expander = retrieval.NewQueryExpander(chat, 2*time.Second, logger)
	}

	var externalReranker llm.Reranker
	if cfg.LLM.RerankEndpoint != "" {
		externalReranker = llm.NewHTTPReranker(cfg.LLM.RerankEndpoint, cfg.LLM.RerankAPIKey, 10*time.Second, logger)
	}

	grader := pipeline.NewGrader(chat, pipeline.GraderConfig{
		Parallelism: cfg.Grader.Parallelism,
		Timeout:     cfg.Grader.Timeout,
		Retry: llm.RetryConfig{
			MaxRetries:   cfg.Grader.MaxRetries,
			InitialDelay: cfg.Grader.BaseBackoff,
			MaxDelay:     5 * time.Second,
			Multiplier:   2.0,
			JitterFactor: cfg.Grader.Jitter,
		},
	}, collector, logger)

	generatorChat := llm.NewGuardedChat(chat, breakers.Get(pipeline.BreakerLLM))
	generator := pipeline.NewGenerator(generatorChat, registry, pipeline.GeneratorConfig{
		Timeout: cfg.Generator.Timeout,
		Retry: llm.RetryConfig{
			MaxRetries:   cfg.Generator.MaxRetries,
			InitialDelay: 250 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 0.25,
		},
	}, logger)

	svc := pipeline.NewService(cfg, pipeline.ServiceDeps{
		Cache:      responseCache,
		Collector:  collector,
		Metrics:    metricsWriter,
		Classifier: pipeline.NewIntentClassifier(chat, 2*time.Second, logger),
		Expander:   expander,
		Retriever:  retriever,
		Semantic:   semantic,
		Grader:     grader,
		Reranker: pipeline.NewReranker(externalReranker, pipeline.RerankerConfig{
			Threshold: cfg.Grader.Threshold,
			KeepTop:   cfg.Retrieval.KRerank,
		}, logger),
		Generator: generator,
		Fallback:  pipeline.NewFallback(semantic, chat, registry, cfg.Retrieval.KRerank, cfg.Server.FallbackDeadline, logger),
		Breakers:  breakers,
		Chat:      chat,
		Embedder:  embedder,
	}, logger)

	logger.Info("starting warmup")
	if err := svc.Warmup(ctx); err != nil {
		return err
	}

	srv := server.New(cfg, server.Handlers{
		Query:    handlers.NewQueryHandler(svc, logger),
		Health:   handlers.NewHealthHandler(svc, version),
		Admin:    handlers.NewAdminHandler(svc, registry),
		Feedback: handlers.NewFeedbackHandler(feedbackStore, logger),
	}, promRegistry, logger)

	return srv.Run(ctx)
}

func buildProviders(cfg *config.Config, logger *logrus.Logger) (llm.ChatModel, llm.Embedder, error) {
	retry := llm.DefaultRetryConfig()
	if cfg.LLM.Provider == "ollama" {
		client := llm.NewOllamaClient(llm.OllamaConfig{
			BaseURL:    cfg.LLM.OllamaBaseURL,
			ChatModel:  cfg.LLM.OllamaModel,
			EmbedModel: cfg.LLM.OllamaEmbed,
			EmbedDim:   cfg.LLM.OllamaEmbedDim,
			Retry:      retry,
		}, logger)
		return client, client, nil
	}
	client := llm.NewOpenAIClient(llm.OpenAIConfig{
		BaseURL:    cfg.LLM.OpenAIBaseURL,
		APIKey:     cfg.LLM.OpenAIAPIKey,
		ChatModel:  cfg.LLM.OpenAIModel,
		EmbedModel: cfg.LLM.OpenAIEmbed,
		EmbedDim:   cfg.LLM.OpenAIEmbedDim,
		Retry:      retry,
	}, logger)
	return client, client, nil
}

func buildCache(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (cache.Store, func(), error) {
	if cfg.Cache.Backend == "redis" {
		redisCache, err := cache.NewRedisCache(ctx, cache.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Cache.TTL,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return redisCache, func() { _ = redisCache.Close() }, nil
	}
	return cache.NewResponseCache(cfg.Cache.TTL, cfg.Cache.MaxSize), func() {}, nil
}

func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	if cfg.Logs.JSONFormat {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if cfg.Server.Mode == "debug" {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}
