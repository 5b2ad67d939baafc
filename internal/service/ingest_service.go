package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/liliang-cn/askpdf/internal/chunker"
	"github.com/liliang-cn/askpdf/internal/domain"
	"github.com/liliang-cn/askpdf/internal/index"
	"github.com/liliang-cn/askpdf/internal/ingest"
	"github.com/liliang-cn/askpdf/internal/metrics"
)

// IngestService turns an upload batch into the active index
type IngestService struct {
	ingestor *ingest.Ingestor
	chunker  *chunker.Chunker
	index    *index.Index
	metrics  *metrics.Metrics
	logger   *zap.Logger

	mu sync.Mutex
}

// NewIngestService creates a new ingest service
func NewIngestService(
	ingestor *ingest.Ingestor,
	chunker *chunker.Chunker,
	idx *index.Index,
	m *metrics.Metrics,
	logger *zap.Logger,
) *IngestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestService{
		ingestor: ingestor,
		chunker:  chunker,
		index:    idx,
		metrics:  m,
		logger:   logger,
	}
}

// IngestBatch replaces the index with the contents of files. The previous
// index is dropped first, so a failed batch leaves nothing indexed.
func (s *IngestService) IngestBatch(ctx context.Context, files []domain.File) (*domain.IngestResult, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files uploaded", domain.ErrInvalidRequest)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	s.index.Reset()

	result, err := s.build(ctx, files)
	if err != nil {
		s.metrics.IndexBuild(metrics.OutcomeError, 0)
		s.logger.Warn("upload batch failed", zap.Int("files", len(files)), zap.Error(err))
		return nil, err
	}

	s.metrics.IndexBuild(metrics.OutcomeSuccess, result.Chunks)
	s.logger.Info("upload batch indexed",
		zap.Strings("documents", result.Documents),
		zap.Int("pages", result.Pages),
		zap.Int("chunks", result.Chunks),
		zap.Duration("took", time.Since(start)))
	return result, nil
}

func (s *IngestService) build(ctx context.Context, files []domain.File) (*domain.IngestResult, error) {
	segments, err := s.ingestor.Ingest(ctx, files)
	if err != nil {
		return nil, err
	}
	chunks, err := s.chunker.Split(segments)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIngest, err)
	}
	if err := s.index.Build(ctx, chunks); err != nil {
		return nil, err
	}

	docs := make([]string, len(files))
	for i, f := range files {
		docs[i] = f.Name
	}
	return &domain.IngestResult{
		Documents: docs,
		Pages:     len(segments),
		Chunks:    len(chunks),
	}, nil
}

// Reset drops the index for a batch that was rejected before ingestion.
func (s *IngestService) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index.Reset()
	s.metrics.IndexBuild(metrics.OutcomeError, 0)
	s.logger.Warn("upload batch rejected, index dropped")
}

// Stats describes the active index
func (s *IngestService) Stats() domain.IndexStats {
	return s.index.Stats()
}
