package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"wikirag/features/chat"
	"wikirag/features/crawl"
	"wikirag/features/job"
	"wikirag/features/knowledge"
	"wikirag/features/mcp"
	"wikirag/features/source"
	"wikirag/features/stats"
	"wikirag/internal/config"
	"wikirag/internal/crawler"
	"wikirag/internal/metrics"
	"wikirag/internal/middleware"
	"wikirag/internal/retrieval"
	"wikirag/internal/settings"
	"wikirag/internal/worker"
)

type App struct {
	Handler   http.Handler
	Crawler   *crawler.Crawler
	Pipeline  *worker.Pipeline
	Retrieval *retrieval.Service
	Chat      *chat.Service
	Settings  *settings.Service

	cfg         *config.Config
	queryLogger *retrieval.QueryLogger
}

// New wires services and routes. ctx bounds background crawls started over
// HTTP.
func New(ctx context.Context, cfg *config.Config, deps *Dependencies) (*App, error) {
	// Ingestion
	pipeline := worker.NewPipeline(worker.Config{
		ChunkSize:     cfg.ChunkSize,
		ChunkOverlap:  cfg.ChunkOverlap,
		BatchSize:     cfg.BatchSize,
		BatchDelay:    cfg.BatchDelay,
		MinChunkChars: cfg.MinChunkChars,
	}, deps.Embedder, deps.VectorStore, worker.NewChunkCache())

	jobService := job.NewService(job.NewMemoryRepo(), pipeline)

	// Crawler
	pageCrawler, err := crawler.New(crawler.Config{
		BaseURL:         cfg.WikiBaseURL,
		UserAgent:       cfg.CrawlUserAgent,
		MaxDepth:        cfg.CrawlMaxDepth,
		MaxLinksPerPage: cfg.CrawlMaxLinks,
		FetchDelay:      cfg.CrawlFetchDelay,
		SeedDelay:       cfg.CrawlSeedDelay,
		Timeout:         cfg.CrawlTimeout,
		Exclusions:      cfg.CrawlExclusions,
	}, &pageSink{pipeline: pipeline, jobs: jobService})
	if err != nil {
		return nil, fmt.Errorf("crawler: %w", err)
	}

	// Retrieval
	queryLogger, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stderr", "error", err)
		queryLogger = retrieval.NewQueryLogger(os.Stderr)
	}
	retrievalService, err := retrieval.NewService(deps.Embedder, deps.VectorStore, pipeline.Cache(), queryLogger, retrieval.Options{
		TopK:           cfg.SearchTopK,
		QueryCacheSize: cfg.QueryCacheSize,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieval: %w", err)
	}

	// Chat
	chatService := chat.NewService(retrievalService, deps.Ollama, chat.Options{
		Model:        cfg.OllamaModel,
		TopK:         cfg.SearchTopK,
		HistoryLimit: cfg.ChatHistoryLimit,
	})

	// Runtime settings
	settingsService := settings.NewService(settings.NewMemoryRepo(settings.Settings{
		GenerationModel:  cfg.OllamaModel,
		SearchTopK:       cfg.SearchTopK,
		ChatHistoryLimit: cfg.ChatHistoryLimit,
	}), func(s settings.Settings) {
		retrievalService.SetTopK(s.SearchTopK)
		chatService.Configure(chat.Options{
			Model:        s.GenerationModel,
			TopK:         s.SearchTopK,
			HistoryLimit: s.ChatHistoryLimit,
		})
	})

	crawlHandler := crawl.NewHandler(ctx, pageCrawler, deps.VectorStore, cfg.CrawlSeeds)
	knowledgeHandler := knowledge.NewHandler(pipeline, retrievalService)
	sourceHandler := source.NewHandler(pipeline.Cache())
	chatHandler := chat.NewHandler(chatService)
	statsHandler := stats.NewHandler(deps.VectorStore, pipeline.Cache(), jobService)
	jobHandler := job.NewHandler(jobService)
	mcpHandler := mcp.NewHandler(retrievalService, chatService)
	settingsHandler := settings.NewHandler(settingsService)

	route := func(h http.HandlerFunc) http.Handler {
		return middleware.CorrelationID(middleware.CORS(h))
	}

	// Routes
	mux := http.NewServeMux()

	mux.Handle("GET /status", route(crawlHandler.GetStatus))
	mux.Handle("POST /crawl", route(crawlHandler.StartCrawl))

	mux.Handle("POST /ingest", route(knowledgeHandler.Ingest))
	mux.Handle("POST /search", route(knowledgeHandler.Search))
	mux.Handle("GET /sources", route(sourceHandler.List))
	mux.Handle("DELETE /sources", route(knowledgeHandler.DeleteSource))

	mux.Handle("POST /generate", route(chatHandler.Generate))
	mux.Handle("POST /chat", route(chatHandler.Chat))
	mux.Handle("GET /chat/history", route(chatHandler.History))
	mux.Handle("DELETE /chat/history", route(chatHandler.ClearHistory))

	mux.Handle("GET /stats", route(statsHandler.GetStats))

	mux.Handle("GET /jobs/failed", route(jobHandler.List))
	mux.Handle("POST /jobs/{id}/retry", route(jobHandler.Retry))

	mux.Handle("GET /settings", route(settingsHandler.GetSettings))
	mux.Handle("PUT /settings", route(settingsHandler.UpdateSettings))

	mux.Handle("/mcp", middleware.CorrelationID(mcpHandler))

	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	return &App{
		Handler:     mux,
		Crawler:     pageCrawler,
		Pipeline:    pipeline,
		Retrieval:   retrievalService,
		Chat:        chatService,
		Settings:    settingsService,
		cfg:         cfg,
		queryLogger: queryLogger,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.ServerPort),
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.cfg.ServerPort)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) Close() error {
	return a.queryLogger.Close()
}

// pageSink feeds crawled pages into the ingestion pipeline and records the
// ones that fail so they can be retried.
type pageSink struct {
	pipeline *worker.Pipeline
	jobs     *job.Service
}

func (s *pageSink) Ingest(ctx context.Context, page *crawler.Page) error {
	var md map[string]string
	if len(page.Categories) > 0 {
		md = map[string]string{"categories": strings.Join(page.Categories, ",")}
	}
	doc := worker.Document{
		Title:    page.Title,
		URL:      page.URL,
		Content:  page.Content,
		Metadata: md,
	}
	_, err := s.pipeline.IngestDocument(ctx, doc)
	if err != nil && ctx.Err() == nil {
		if recErr := s.jobs.RecordFailure(ctx, doc, err); recErr != nil {
			slog.ErrorContext(ctx, "failed to record job", "url", page.URL, "error", recErr)
		}
	}
	return err
}
