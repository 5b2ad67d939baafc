package chunker

import (
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/liliang-cn/askpdf/internal/domain"
)

// Chunker splits page segments into overlapping chunks, preferring
// paragraph, then line, then word boundaries.
type Chunker struct {
	splitter textsplitter.RecursiveCharacter
}

// New creates a chunker. Sizes are measured in characters.
func New(chunkSize, chunkOverlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, errors.New("chunk_size must be > 0")
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, errors.New("chunk_overlap must be >= 0 and < chunk_size")
	}
	return &Chunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
			textsplitter.WithSeparators([]string{"\n\n", "\n", " ", ""}),
		),
	}, nil
}

// Split chunks every segment independently. ChunkIndex runs across all
// pages of the same source.
func (c *Chunker) Split(segments []domain.Segment) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	next := make(map[string]int)
	for _, seg := range segments {
		parts, err := c.splitter.SplitText(seg.Text)
		if err != nil {
			return nil, fmt.Errorf("split %s page %d: %w", seg.Source, seg.Page, err)
		}
		for _, p := range parts {
			chunks = append(chunks, domain.Chunk{
				Text:       p,
				Source:     seg.Source,
				Page:       seg.Page,
				ChunkIndex: next[seg.Source],
			})
			next[seg.Source]++
		}
	}
	return chunks, nil
}
