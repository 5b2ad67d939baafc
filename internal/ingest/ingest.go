// Package ingest extracts page text from uploaded PDF files.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/liliang-cn/askpdf/internal/domain"
)

// FileTypePDF is the only supported upload type
const FileTypePDF = "pdf"

// DetectFileType detects file type from filename
func DetectFileType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return FileTypePDF
	case "":
		return ""
	default:
		return ext[1:] // remove leading dot
	}
}

// Ingestor turns uploaded files into page segments.
type Ingestor struct {
	tempDir  string
	maxBytes int64
	logger   *zap.Logger
}

// NewIngestor creates an ingestor. An empty tempDir means the OS default;
// maxBytes <= 0 disables the size check.
func NewIngestor(tempDir string, maxBytes int64, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{tempDir: tempDir, maxBytes: maxBytes, logger: logger}
}

// Ingest extracts the pages of every file in order. The first file that
// cannot be read aborts the batch.
func (in *Ingestor) Ingest(ctx context.Context, files []domain.File) ([]domain.Segment, error) {
	var segments []domain.Segment
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pages, err := in.extract(f)
		if err != nil {
			return nil, err
		}
		in.logger.Debug("extracted document",
			zap.String("filename", f.Name),
			zap.Int("pages", len(pages)))
		segments = append(segments, pages...)
	}
	return segments, nil
}

func (in *Ingestor) extract(f domain.File) ([]domain.Segment, error) {
	if fileType := DetectFileType(f.Name); fileType != FileTypePDF {
		return nil, fmt.Errorf("%w: %s: unsupported file type %q", domain.ErrIngest, f.Name, fileType)
	}
	if in.maxBytes > 0 && int64(len(f.Data)) > in.maxBytes {
		return nil, fmt.Errorf("%w: %s: file exceeds %d bytes", domain.ErrIngest, f.Name, in.maxBytes)
	}

	// The pdf reader works with file paths, so the upload goes through a
	// temp file that is removed whatever happens below.
	tmp, err := os.CreateTemp(in.tempDir, "askpdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: create temp file: %w", domain.ErrIngest, f.Name, err)
	}
	defer os.Remove(tmp.Name())

	_, werr := tmp.Write(f.Data)
	cerr := tmp.Close()
	if werr != nil {
		return nil, fmt.Errorf("%w: %s: write temp file: %w", domain.ErrIngest, f.Name, werr)
	}
	if cerr != nil {
		return nil, fmt.Errorf("%w: %s: close temp file: %w", domain.ErrIngest, f.Name, cerr)
	}

	pages, err := readPages(tmp.Name(), f.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrIngest, f.Name, err)
	}
	return pages, nil
}

// readPages parses the PDF at path. The parser panics on some malformed
// inputs; those are reported as errors.
func readPages(path, source string) (segments []domain.Segment, err error) {
	defer func() {
		if r := recover(); r != nil {
			segments = nil
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	file, reader, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		// nil lets the reader resolve this page's own font resources
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		segments = append(segments, domain.Segment{Text: text, Source: source, Page: i})
	}
	return segments, nil
}
