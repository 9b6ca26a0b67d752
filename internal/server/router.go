package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/chartdeck/chartdeck-backend/internal/handlers"
	"github.com/chartdeck/chartdeck-backend/internal/middleware"
)

type RouterConfig struct {
	RequestLog      *middleware.RequestLogMiddleware
	MetricsHandler  http.Handler
	BundleHandler   *handlers.BundleHandler
	MetricHandler   *handlers.MetricHandler
	CardHandler     *handlers.CardHandler
	RelationHandler *handlers.RelationHandler
	IngestHandler   *handlers.IngestHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cfg.RequestLog.Handler())

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5174",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)
	if cfg.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	api := router.Group("/api")
	{
		// Bundle registry
		api.GET("/bundles", cfg.BundleHandler.List)
		api.GET("/bundles/:key", cfg.BundleHandler.GetByKey)
		api.POST("/bundles", cfg.BundleHandler.Upsert)

		// Metric catalog
		api.GET("/metric-definitions", cfg.MetricHandler.List)
		api.POST("/metric-definitions", cfg.MetricHandler.Create)

		// Cards and snapshots
		api.GET("/cards", cfg.CardHandler.List)
		api.POST("/cards", cfg.CardHandler.Create)
		api.GET("/cards/:id", cfg.CardHandler.Get)
		api.PATCH("/cards/:id", cfg.CardHandler.Update)
		api.DELETE("/cards/:id", cfg.CardHandler.Delete)
		api.GET("/cards/:id/full", cfg.CardHandler.GetFull)
		api.GET("/cards/:id/data", cfg.CardHandler.ListData)
		api.GET("/cards/:id/data/latest", cfg.CardHandler.LatestData)
		api.POST("/cards/:id/data", cfg.CardHandler.PushData)

		// Relation graph
		api.GET("/cards/:id/relations", cfg.RelationHandler.ListForCard)
		api.GET("/cards/:id/drilldowns", cfg.RelationHandler.ListDrilldowns)
		api.POST("/card-relations", cfg.RelationHandler.Create)
		api.DELETE("/card-relations/:id", cfg.RelationHandler.Delete)

		// Ingestion
		api.POST("/ingest/:producer", cfg.IngestHandler.Ingest)
		api.GET("/ingest/status", cfg.IngestHandler.Status)
	}

	return router
}
