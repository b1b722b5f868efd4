package controller

import (
	commonmw "statebox/internal/common/http/middleware"
	"statebox/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// NewRouter wires the container endpoints.
func NewRouter(h *ContainerController) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(commonmw.RequestLogger())

	router.GET("/health", func(c *gin.Context) {
		response.Success(c, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	api.POST("/containers", h.Launch)
	api.GET("/containers/:id", h.GetState)
	api.GET("/containers/:id/output", h.GetOutput)
	api.DELETE("/containers/:id", h.Delete)
	api.POST("/runs", h.Run)

	router.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "")
	})
	return router
}
