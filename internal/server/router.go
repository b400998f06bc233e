package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-tripwise/internal/app/cities"
	"github.com/FACorreiaa/go-tripwise/internal/app/observability/metrics"
	"github.com/FACorreiaa/go-tripwise/internal/app/state"
)

// SetupRouter configures and returns the Gin router with all middleware and routes.
func SetupRouter(manager *state.Manager, citySvc cities.Service, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("tripwise-client"))
	r.Use(requestLogger(logger))

	h := NewStateHandlers(manager, citySvc, logger)

	api := r.Group("/api/v1")
	{
		api.GET("/state", h.GetState)
		api.GET("/state/events", h.StreamState)
		api.POST("/preferences", h.CreatePreference)
		api.GET("/favorites", h.ListFavorites)
		api.POST("/favorites", h.AddFavorite)
		api.DELETE("/favorites/:index", h.RemoveFavorite)
		api.GET("/cities", h.ListCities)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}

// requestLogger tags every request with an id, logs it, and records the
// gateway metrics.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Writer.Header().Set("X-Request-Id", requestID)

		c.Next()

		elapsed := time.Since(start)
		m := metrics.Get()
		attrs := metric.WithAttributes(
			attribute.String("method", c.Request.Method),
			attribute.String("path", c.FullPath()),
			attribute.Int("status", c.Writer.Status()),
		)
		m.HTTPRequestsTotal.Add(c.Request.Context(), 1, attrs)
		m.HTTPRequestDuration.Record(c.Request.Context(), elapsed.Seconds(), attrs)

		logger.Info("Request completed",
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", elapsed))
	}
}
