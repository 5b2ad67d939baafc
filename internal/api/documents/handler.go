package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/liliang-cn/askpdf/internal/api/respond"
	"github.com/liliang-cn/askpdf/internal/domain"
)

// FormField is the multipart field that carries uploaded PDFs
const FormField = "files"

// Ingester builds the index from an upload batch. Reset drops the index
// when a batch is rejected before it reaches IngestBatch.
type Ingester interface {
	IngestBatch(ctx context.Context, files []domain.File) (*domain.IngestResult, error)
	Reset()
	Stats() domain.IndexStats
}

// Limits bounds an upload. Zero means unbounded.
type Limits struct {
	FileBytes    int64
	RequestBytes int64
}

// Handler handles document upload and index requests
type Handler struct {
	ingester Ingester
	limits   Limits
}

// NewHandler creates a new documents handler
func NewHandler(ingester Ingester, limits Limits) *Handler {
	return &Handler{ingester: ingester, limits: limits}
}

// RegisterRoutes registers document routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/documents", h.Upload)
	r.GET("/index", h.Index)
}

// Upload replaces the index with the uploaded PDFs
func (h *Handler) Upload(c *gin.Context) {
	if h.limits.RequestBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.limits.RequestBytes)
	}
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.reject(c, fmt.Errorf("%w: request exceeds %d bytes", domain.ErrIngest, tooLarge.Limit))
			return
		}
		respond.Error(c, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err))
		return
	}
	headers := form.File[FormField]
	if len(headers) == 0 {
		respond.Error(c, fmt.Errorf("%w: field %q requires at least one file", domain.ErrInvalidRequest, FormField))
		return
	}

	files := make([]domain.File, 0, len(headers))
	for _, fh := range headers {
		if h.limits.FileBytes > 0 && fh.Size > h.limits.FileBytes {
			h.reject(c, fmt.Errorf("%w: %s: file exceeds %d bytes", domain.ErrIngest, fh.Filename, h.limits.FileBytes))
			return
		}
		f, err := readFile(fh)
		if err != nil {
			h.reject(c, fmt.Errorf("%w: %s: %w", domain.ErrIngest, fh.Filename, err))
			return
		}
		files = append(files, f)
	}

	result, err := h.ingester.IngestBatch(c.Request.Context(), files)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// reject fails the batch the same way IngestBatch does, leaving no index.
func (h *Handler) reject(c *gin.Context, err error) {
	h.ingester.Reset()
	respond.Error(c, err)
}

// Index reports the state of the current index
func (h *Handler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, h.ingester.Stats())
}

func readFile(fh *multipart.FileHeader) (domain.File, error) {
	src, err := fh.Open()
	if err != nil {
		return domain.File{}, err
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return domain.File{}, err
	}
	return domain.File{Name: fh.Filename, Data: data}, nil
}
