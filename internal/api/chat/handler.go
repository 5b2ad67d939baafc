package chat

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/liliang-cn/askpdf/internal/api/respond"
	"github.com/liliang-cn/askpdf/internal/domain"
)

// Asker answers questions within a session and exposes session history
type Asker interface {
	Ask(ctx context.Context, sessionID, question string) (*domain.ChatResponse, error)
	History(ctx context.Context, sessionID string) ([]domain.Turn, error)
	Sessions(ctx context.Context) ([]string, error)
}

// Handler handles chat API requests
type Handler struct {
	asker Asker
}

// NewHandler creates a new chat handler
func NewHandler(asker Asker) *Handler {
	return &Handler{asker: asker}
}

// RegisterRoutes registers chat routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/chat", h.Chat)
	r.GET("/sessions", h.Sessions)
	r.GET("/sessions/:id/history", h.History)
}

// Chat answers one question
func (h *Handler) Chat(c *gin.Context) {
	var req domain.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.asker.Ask(c.Request.Context(), req.SessionID, req.Message)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// History returns the turns of a session, empty for an unknown one
func (h *Handler) History(c *gin.Context) {
	id := c.Param("id")
	turns, err := h.asker.History(c.Request.Context(), id)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, domain.HistoryResponse{SessionID: id, Turns: turns})
}

// Sessions lists sessions with history
func (h *Handler) Sessions(c *gin.Context) {
	ids, err := h.asker.Sessions(c.Request.Context())
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": ids})
}
