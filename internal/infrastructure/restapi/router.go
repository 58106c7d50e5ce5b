package restapi

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RegisterNetworkRoutes mounts the network controller endpoints under
// /api/v1.
func RegisterNetworkRoutes(router *gin.Engine, handler *NetworkHandler) {
	v1 := router.Group("/api/v1")
	{
		v1.GET("/network/status", handler.GetStatusHandler)
		v1.GET("/network/state", handler.GetStateHandler)
		v1.GET("/network/eip1559", handler.GetEIP1559Handler)
		v1.POST("/network/provider", handler.SetProviderTypeHandler)
		v1.POST("/network/activate", handler.ActivateNetworkHandler)
		v1.POST("/network/reset", handler.ResetConnectionHandler)
		v1.POST("/network/rollback", handler.RollbackHandler)

		v1.GET("/networks", handler.ListNetworksHandler)
		v1.POST("/networks", handler.UpsertNetworkHandler)
		v1.DELETE("/networks/:id", handler.RemoveNetworkHandler)
	}
}

// ZapLoggerMiddleware logs each request through zap instead of gin's default
// writer.
func ZapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("HTTP")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request handled",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
