package main

import (
	"github.com/gin-gonic/gin"

	"github.com/stwalsh4118/staylens/internal/config"
	"github.com/stwalsh4118/staylens/internal/dataset"
	apierrors "github.com/stwalsh4118/staylens/internal/errors"
	"github.com/stwalsh4118/staylens/internal/handlers"
	"github.com/stwalsh4118/staylens/internal/logger"
	"github.com/stwalsh4118/staylens/internal/metrics"
	"github.com/stwalsh4118/staylens/internal/middleware"
	"github.com/stwalsh4118/staylens/internal/services"
)

type routerDeps struct {
	cfg     *config.Config
	log     *logger.Logger
	ds      *dataset.Dataset
	service services.DashboardService
	metrics *metrics.Metrics
}

func newRouter(d routerDeps) *gin.Engine {
	if d.cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Middleware order: RequestID -> Logger -> Recovery -> CORS -> Metrics
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(d.log))
	router.Use(middleware.Recovery(d.log))
	router.Use(middleware.CORS(d.cfg.CORS.Origins))
	router.Use(middleware.Metrics(d.metrics))

	healthHandler := handlers.NewHealthHandler(d.ds, d.cfg.Server.Env)
	router.GET("/health", healthHandler.Health)
	router.GET("/health/ready", healthHandler.Ready)

	if d.metrics != nil {
		router.GET("/metrics", gin.WrapH(d.metrics.Handler()))
	}

	viewHandler := handlers.NewViewHandler(d.service)
	wsHandler := handlers.NewWebsocketHandler(d.service, d.cfg.CORS.Origins, d.metrics)
	limiter := middleware.NewLimiter(d.cfg.RateLimit.RPS, d.cfg.RateLimit.Burst)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.RateLimit(limiter, d.metrics, apierrors.TooManyRequests))
	{
		v1.GET("/info", healthHandler.Info)
		v1.GET("/facets", viewHandler.Facets)
		v1.GET("/ws", wsHandler.Serve)

		viewRoutes := v1.Group("/views")
		{
			viewRoutes.GET("", viewHandler.List)
			viewRoutes.GET("/:view", viewHandler.Get)
			viewRoutes.GET("/:view/chart.png", viewHandler.Chart)
			viewRoutes.GET("/:view/geojson", viewHandler.GeoJSON)
		}
	}

	return router
}
