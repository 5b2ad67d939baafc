package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/liliang-cn/askpdf/internal/api/chat"
	"github.com/liliang-cn/askpdf/internal/api/documents"
	"github.com/liliang-cn/askpdf/internal/api/middleware"
)

// RouterConfig holds configuration for the router
type RouterConfig struct {
	APIKey       string
	AllowOrigins []string
	// MaxUploadBytes bounds each uploaded file and the multipart memory
	// buffer. MaxRequestBytes bounds the whole upload request.
	MaxUploadBytes  int64
	MaxRequestBytes int64
	Logger          *zap.Logger
	Metrics         http.Handler
}

// SetupRouter sets up the Gin router
func SetupRouter(ingester documents.Ingester, asker chat.Asker, cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	if cfg.MaxUploadBytes > 0 {
		r.MaxMultipartMemory = cfg.MaxUploadBytes
	}
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.AllowOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	SetupStaticRoutes(r)

	apiGroup := r.Group("/api")
	apiGroup.Use(middleware.Auth(cfg.APIKey))
	documents.NewHandler(ingester, documents.Limits{
		FileBytes:    cfg.MaxUploadBytes,
		RequestBytes: cfg.MaxRequestBytes,
	}).RegisterRoutes(apiGroup)
	chat.NewHandler(asker).RegisterRoutes(apiGroup)

	return r
}
