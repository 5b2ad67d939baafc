package memory

import (
	"errors"
	"math"
	"sort"
	"sync"

	"github.com/liliang-cn/askpdf/internal/domain"
)

// Storage is a simple in-memory vector store using brute-force cosine similarity.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	vectors   [][]float32
	norms     []float64
	chunks    []domain.Chunk
}

// NewStorage creates an empty store for vectors of the given dimension.
func NewStorage(dimension int) (*Storage, error) {
	if dimension <= 0 {
		return nil, errors.New("invalid dimension")
	}
	return &Storage{dimension: dimension}, nil
}

// Dimension returns the vector size the store accepts.
func (s *Storage) Dimension() int { return s.dimension }

// Len returns the number of stored vectors.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Insert adds chunks with their vectors.
func (s *Storage) Insert(chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	for _, v := range vectors {
		if len(v) != s.dimension {
			return errors.New("vector dimension mismatch")
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range vectors {
		s.vectors = append(s.vectors, vectors[i])
		s.norms = append(s.norms, norm(vectors[i]))
		s.chunks = append(s.chunks, chunks[i])
	}
	return nil
}

// Search returns the topK chunks most similar to vector, best first.
// Ties keep insertion order.
func (s *Storage) Search(vector []float32, topK int) ([]domain.SearchResult, error) {
	if len(vector) != s.dimension {
		return nil, errors.New("query dimension mismatch")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		topK = 4
	}
	qn := norm(vector)
	scores := make([]float64, len(s.vectors))
	for i := range s.vectors {
		scores[i] = cosine(s.vectors[i], s.norms[i], vector, qn)
	}
	idxs := make([]int, len(scores))
	for i := range idxs {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool { return scores[idxs[a]] > scores[idxs[b]] })
	if topK > len(idxs) {
		topK = len(idxs)
	}
	results := make([]domain.SearchResult, 0, topK)
	for _, j := range idxs[:topK] {
		results = append(results, domain.SearchResult{Chunk: s.chunks[j], Score: scores[j]})
	}
	return results, nil
}

func cosine(a []float32, an float64, b []float32, bn float64) float64 {
	if an == 0 || bn == 0 {
		return 0
	}
	sum := 0.0
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum / (an * bn)
}

func norm(v []float32) float64 {
	sum := 0.0
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
