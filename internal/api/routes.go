package api

import "github.com/gin-gonic/gin"

func RegisterRoutes(r *gin.Engine, h *Handlers) {
	api := r.Group("/api")
	{
		api.GET("/health", h.health)
		api.GET("/roles", h.roles)
		api.GET("/qr", h.qr)
		api.POST("/badge", h.badge)
	}
}
