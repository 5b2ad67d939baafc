package api

import (
	"embed"
	"net/http"

	"github.com/gin-gonic/gin"
)

//go:embed static
var staticFS embed.FS

// SetupStaticRoutes serves the single-page UI
func SetupStaticRoutes(r *gin.Engine) {
	page, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		panic("askpdf: embedded index.html missing: " + err.Error())
	}
	r.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", page)
	})
}
