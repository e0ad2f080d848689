package api

import (
	"time"

	"dish-compat/internal/api/handlers/analyze"
	"dish-compat/internal/api/handlers/health"
	"dish-compat/internal/api/handlers/menu"
	"dish-compat/internal/api/middleware"
	"dish-compat/internal/core/analysis"
	"dish-compat/internal/infrastructure/config"
	"dish-compat/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRouter 設置路由；provider 只用於就緒檢查，可為 nil
func SetupRouter(cfg *config.Config, engine *analysis.Engine, provider health.Pinger) *gin.Engine {
	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// 基礎中間件
	router.Use(middleware.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(common.GenerateUUID)))
	router.Use(middleware.Logger())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.Use(middleware.BodySizeLimit(cfg.Request.MaxBodyBytes))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window))
	}
	router.Use(middleware.NewDeduplicator(cfg.DedupWindow).Middleware())
	if cfg.Request.Timeout > 0 {
		router.Use(middleware.Timeout(cfg.Request.Timeout))
	}

	// 健康檢查路由
	healthHandler := health.NewHandler(cfg.App.Version, engine, provider)
	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/ready", healthHandler.ReadinessCheck)
	router.GET("/live", healthHandler.LivenessCheck)

	api := router.Group("/api/v1")
	{
		analyzeHandler := analyze.NewHandler(engine)
		analyzeGroup := api.Group("/analyze")
		{
			analyzeGroup.POST("", analyzeHandler.HandleAnalyze)
			analyzeGroup.POST("/bcs", analyzeHandler.HandleBCS)
			analyzeGroup.POST("/taste", analyzeHandler.HandleTaste)
			analyzeGroup.GET("/search", analyzeHandler.HandleSearch)
			analyzeGroup.GET("/suggestions", analyzeHandler.HandleSuggestions)
			analyzeGroup.GET("/suggestions/bootstrap", analyzeHandler.HandleBootstrap)
		}

		menuHandler := menu.NewHandler(engine)
		menuGroup := api.Group("/menu")
		{
			menuGroup.POST("/extract", menuHandler.HandleExtract)
			menuGroup.POST("/scan", menuHandler.HandleScan)
		}
	}

	common.LogInfo("Router setup completed successfully",
		zap.Bool("rate_limit", cfg.RateLimit.Enabled),
		zap.Duration("dedup_window", cfg.DedupWindow),
		zap.Duration("timeout", cfg.Request.Timeout),
		zap.Int64("max_body_size", cfg.Request.MaxBodyBytes),
	)
	return router
}
