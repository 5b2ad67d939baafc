package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/liliang-cn/askpdf/internal/chunker"
	"github.com/liliang-cn/askpdf/internal/config"
	"github.com/liliang-cn/askpdf/internal/embedding"
	"github.com/liliang-cn/askpdf/internal/history"
	"github.com/liliang-cn/askpdf/internal/index"
	"github.com/liliang-cn/askpdf/internal/ingest"
	"github.com/liliang-cn/askpdf/internal/llm"
	"github.com/liliang-cn/askpdf/internal/metrics"
	"github.com/liliang-cn/askpdf/internal/repository"
	"github.com/liliang-cn/askpdf/internal/service"
)

// app holds the wired services shared by the serve and chat commands.
type app struct {
	ingest       *service.IngestService
	orchestrator *service.OrchestratorService
	metrics      *metrics.Metrics
	close        func() error
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	emb, err := embedding.NewOpenAI(embedding.Config{
		BaseURL:   cfg.Embedding.BaseURL,
		APIKey:    cfg.Embedding.APIKey,
		Model:     cfg.Embedding.Model,
		BatchSize: cfg.Embedding.BatchSize,
		Timeout:   cfg.Embedding.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	gen, err := llm.NewOpenAI(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create llm: %w", err)
	}
	ch, err := chunker.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("create chunker: %w", err)
	}

	store, closeStore, err := newHistoryStore(cfg.History)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	idx := index.New(emb, cfg.RAG.TopK, logger.Named("index"))
	ingestor := ingest.NewIngestor(cfg.Upload.TempDir, cfg.Upload.MaxFileBytes, logger.Named("ingest"))

	return &app{
		ingest: service.NewIngestService(ingestor, ch, idx, m, logger.Named("upload")),
		orchestrator: service.NewOrchestratorService(
			service.NewRewriter(gen),
			service.NewResponder(idx, gen, cfg.RAG.TopK),
			store,
			cfg.LLM.Timeout,
			m,
			logger.Named("chat"),
		),
		metrics: m,
		close:   closeStore,
	}, nil
}

func newHistoryStore(cfg config.HistoryConfig) (history.Store, func() error, error) {
	switch cfg.Backend {
	case config.HistorySQLite:
		db, err := repository.NewDB(cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open history database: %w", err)
		}
		return repository.NewHistoryRepository(db), db.Close, nil
	default:
		return history.NewMemory(), func() error { return nil }, nil
	}
}

func newLogger(development bool, outputPaths ...string) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if development {
		zc = zap.NewDevelopmentConfig()
	}
	if len(outputPaths) > 0 {
		zc.OutputPaths = outputPaths
		zc.ErrorOutputPaths = outputPaths
	}
	return zc.Build()
}
