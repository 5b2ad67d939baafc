package chunker

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/liliang-cn/askpdf/internal/domain"
)

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%04d", i)
	}
	return strings.Join(parts, " ")
}

func TestSplitRespectsChunkSize(t *testing.T) {
	c, err := New(100, 30)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	chunks, err := c.Split([]domain.Segment{{Text: words(200), Source: "a.pdf", Page: 1}})
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if n := utf8.RuneCountInString(ch.Text); n > 100 {
			t.Errorf("chunk %d has %d characters", i, n)
		}
		if ch.ChunkIndex != i {
			t.Errorf("chunk %d has index %d", i, ch.ChunkIndex)
		}
		if ch.Source != "a.pdf" || ch.Page != 1 {
			t.Errorf("chunk %d metadata = %q/%d", i, ch.Source, ch.Page)
		}
	}
}

func TestSplitOverlapsConsecutiveChunks(t *testing.T) {
	c, err := New(100, 30)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	chunks, err := c.Split([]domain.Segment{{Text: words(200), Source: "a.pdf", Page: 1}})
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	for i := 1; i < len(chunks); i++ {
		first := strings.Fields(chunks[i].Text)[0]
		if !strings.Contains(chunks[i-1].Text, first) {
			t.Errorf("chunk %d starts with %q which is not in chunk %d", i, first, i-1)
		}
	}
}

func TestSplitPrefersParagraphs(t *testing.T) {
	c, err := New(40, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	text := "First paragraph is short.\n\nSecond paragraph is also short."
	chunks, err := c.Split([]domain.Segment{{Text: text, Source: "p.pdf", Page: 1}})
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %+v", len(chunks), chunks)
	}
	if chunks[0].Text != "First paragraph is short." {
		t.Errorf("first chunk = %q", chunks[0].Text)
	}
	if chunks[1].Text != "Second paragraph is also short." {
		t.Errorf("second chunk = %q", chunks[1].Text)
	}
}

func TestSplitIsDeterministic(t *testing.T) {
	c, err := New(120, 20)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	segs := []domain.Segment{
		{Text: words(150), Source: "a.pdf", Page: 1},
		{Text: words(90), Source: "a.pdf", Page: 2},
		{Text: words(40), Source: "b.pdf", Page: 1},
	}
	first, err := c.Split(segs)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	second, err := c.Split(segs)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("chunking is not deterministic")
	}
}

func TestSplitIndexesPerSource(t *testing.T) {
	c, err := New(5000, 500)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	chunks, err := c.Split([]domain.Segment{
		{Text: "page one", Source: "a.pdf", Page: 1},
		{Text: "page two", Source: "a.pdf", Page: 2},
		{Text: "only page", Source: "b.pdf", Page: 1},
	})
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	want := []domain.Chunk{
		{Text: "page one", Source: "a.pdf", Page: 1, ChunkIndex: 0},
		{Text: "page two", Source: "a.pdf", Page: 2, ChunkIndex: 1},
		{Text: "only page", Source: "b.pdf", Page: 1, ChunkIndex: 0},
	}
	if !reflect.DeepEqual(chunks, want) {
		t.Fatalf("chunks = %+v, want %+v", chunks, want)
	}
}

func TestSplitEmptyInput(t *testing.T) {
	c, err := New(5000, 500)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	chunks, err := c.Split(nil)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks, got %d", len(chunks))
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(0, 0); err == nil {
		t.Fatalf("expected error for chunk_size <= 0")
	}
	if _, err := New(10, 10); err == nil {
		t.Fatalf("expected error for overlap >= chunk_size")
	}
	if _, err := New(10, -1); err == nil {
		t.Fatalf("expected error for negative overlap")
	}
}
