package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dish-compat/internal/api"
	"dish-compat/internal/core/analysis"
	"dish-compat/internal/core/cache"
	"dish-compat/internal/core/ingredient"
	"dish-compat/internal/core/provider"
	"dish-compat/internal/core/rules"
	"dish-compat/internal/core/suggestion"
	"dish-compat/internal/infrastructure/config"
	"dish-compat/internal/pkg/common"

	"go.uber.org/zap"
)

func main() {
	// 載入設定（含可選的 .env）
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化 logger（需在載入 config 後）
	if err := common.InitLogger(cfg.LogLevel, cfg.App.Name); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	common.LogInfo("載入設定",
		zap.String("foodoscope_base_url", cfg.Foodoscope.BaseURL),
		zap.String("flavor_store", cfg.Cache.Flavor.Store),
		zap.Duration("analysis_timeout", cfg.Analysis.Timeout),
	)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	tables := rules.Default()

	client := provider.NewFoodoscopeClient(provider.Config{
		BaseURL:           cfg.Foodoscope.BaseURL,
		APIKey:            cfg.Foodoscope.APIKey,
		Timeout:           cfg.Foodoscope.Timeout,
		RequestsPerSecond: cfg.Foodoscope.RequestsPerSecond,
		Burst:             cfg.Foodoscope.Burst,
	})
	defer client.Close()

	// 風味快取持久化後端；無法開啟時退回只用記憶體
	store, err := cache.NewStore(startCtx, cache.StoreConfig{
		Kind:          cfg.Cache.Flavor.Store,
		FilePath:      cfg.Cache.Flavor.FilePath,
		SQLitePath:    cfg.Cache.Flavor.SQLitePath,
		RedisAddr:     cfg.Cache.Flavor.RedisAddr,
		RedisPassword: cfg.Cache.Flavor.RedisPassword,
		RedisDB:       cfg.Cache.Flavor.RedisDB,
		RedisKey:      cfg.Cache.Flavor.RedisKey,
	})
	if err != nil {
		common.LogError("無法開啟風味快取儲存，改用記憶體", zap.Error(err))
		store = cache.NoneStore{}
	}

	flavors := cache.NewFlavorCache(client, store, cache.FlavorOptions{
		TTL:           cfg.Cache.Flavor.TTL,
		MaxSize:       cfg.Cache.Flavor.MaxSize,
		FlushInterval: cfg.Cache.Flavor.FlushInterval,
	})
	if n, err := flavors.Load(startCtx); err != nil {
		common.LogWarn("風味快取載入失敗", zap.Error(err))
	} else {
		common.LogInfo("風味快取已載入", zap.Int("records", n))
	}
	flavors.Start(context.Background())

	search := cache.NewSearchCache(client, cache.Options{
		Name:            "search",
		TTL:             cfg.Cache.Search.TTL,
		MaxSize:         cfg.Cache.Search.MaxSize,
		CleanupInterval: cfg.Cache.Search.CleanupInterval,
	})
	defer search.Close()

	index, err := suggestion.NewIndex(suggestion.Options{
		MaxEntries:   cfg.Suggestion.MaxEntries,
		DefaultLimit: cfg.Suggestion.DefaultLimit,
		MaxLimit:     cfg.Suggestion.MaxLimit,
		BootstrapMax: cfg.Suggestion.BootstrapMax,
	}, analysis.LegacyKeys(tables, ingredient.NewResolver(tables)))
	if err != nil {
		common.LogFatal("Failed to initialize suggestion index", zap.Error(err))
	}
	index.Seed(tables.PopularRecipes, tables.IngredientSeeds)

	engine, err := analysis.NewEngine(analysis.Deps{
		Tables:  tables,
		Weights: cfg.Scoring,
		Flavors: flavors,
		Search:  search,
		Details: client,
		Index:   index,
	}, analysis.Options{
		MaxIngredients:  cfg.Analysis.MaxIngredients,
		FanOut:          cfg.Analysis.FanOut,
		Timeout:         cfg.Analysis.Timeout,
		MaxAlternatives: cfg.Analysis.Alternatives,
	})
	if err != nil {
		common.LogFatal("Failed to initialize engine", zap.Error(err))
	}

	router := api.SetupRouter(cfg, engine, client)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		common.LogInfo("啟動應用",
			zap.String("version", cfg.App.Version),
			zap.String("env", cfg.App.Env),
			zap.Int("port", cfg.Server.Port),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			common.LogFatal("Failed to start server", zap.Error(err))
		}
	}()

	// 等待中斷信號
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	common.LogInfo("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		common.LogError("Server forced to shutdown", zap.Error(err))
	}

	// 關閉前把未寫入的風味記錄落盤
	if err := flavors.Close(ctx); err != nil {
		common.LogError("風味快取關閉失敗", zap.Error(err))
	}

	common.LogInfo("Server exited")
}
