// Package index embeds chunks into an in-memory vector store and answers
// similarity queries against it.
package index

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/liliang-cn/askpdf/internal/domain"
	"github.com/liliang-cn/askpdf/internal/vectorstore/memory"
)

// Embedder converts text into vectors.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Index owns the chunks of the current upload batch. A build always
// replaces everything that was indexed before.
type Index struct {
	embedder Embedder
	topK     int
	logger   *zap.Logger

	mu      sync.RWMutex
	store   *memory.Storage
	sources []string
}

// New creates an empty index. topK is used when Retrieve is called with k <= 0.
func New(embedder Embedder, topK int, logger *zap.Logger) *Index {
	if topK <= 0 {
		topK = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Index{embedder: embedder, topK: topK, logger: logger}
}

// Reset drops the current index.
func (x *Index) Reset() {
	x.mu.Lock()
	x.store = nil
	x.sources = nil
	x.mu.Unlock()
}

// Build embeds chunks into a fresh store and publishes it. On failure the
// index is left empty.
func (x *Index) Build(ctx context.Context, chunks []domain.Chunk) error {
	x.Reset()
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := x.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: embed %d chunks: %w", domain.ErrEmbedding, len(chunks), err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("%w: got %d vectors for %d chunks", domain.ErrEmbedding, len(vectors), len(chunks))
	}
	dim := len(vectors[0])
	if dim == 0 {
		return fmt.Errorf("%w: empty embedding vector", domain.ErrEmbedding)
	}

	store, err := memory.NewStorage(dim)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrEmbedding, err)
	}
	if err := store.Insert(chunks, vectors); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrEmbedding, err)
	}

	seen := make(map[string]struct{})
	var sources []string
	for _, ch := range chunks {
		if _, ok := seen[ch.Source]; !ok {
			seen[ch.Source] = struct{}{}
			sources = append(sources, ch.Source)
		}
	}
	sort.Strings(sources)

	x.mu.Lock()
	x.store = store
	x.sources = sources
	x.mu.Unlock()

	x.logger.Info("index built",
		zap.Int("chunks", len(chunks)),
		zap.Int("dimension", dim),
		zap.Strings("sources", sources))
	return nil
}

// Retrieve returns up to k chunks most similar to query, best first. With
// no index built it returns an empty result without calling the embedder.
func (x *Index) Retrieve(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	x.mu.RLock()
	store := x.store
	x.mu.RUnlock()
	if store == nil {
		return []domain.SearchResult{}, nil
	}
	if k <= 0 {
		k = x.topK
	}

	vec, err := x.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", domain.ErrEmbedding, err)
	}
	results, err := store.Search(vec, k)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbedding, err)
	}
	return results, nil
}

// Ready reports whether an index has been built.
func (x *Index) Ready() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.store != nil
}

// Stats describes the current index.
func (x *Index) Stats() domain.IndexStats {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.store == nil {
		return domain.IndexStats{Sources: []string{}}
	}
	return domain.IndexStats{
		Ready:     true,
		Chunks:    x.store.Len(),
		Dimension: x.store.Dimension(),
		Sources:   append([]string(nil), x.sources...),
	}
}
