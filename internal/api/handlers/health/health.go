package health

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"dish-compat/internal/core/cache"
	"dish-compat/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthResponse 健康檢查響應
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime"`
	Caches    []cache.Stats          `json:"caches,omitempty"`
	Index     *IndexStatus           `json:"suggestion_index,omitempty"`
}

// IndexStatus 建議索引狀態
type IndexStatus struct {
	Entries int `json:"entries"`
}

// StatsSource 提供快取與索引統計
type StatsSource interface {
	CacheStats() []cache.Stats
	IndexSize() int
}

// Pinger 外部依賴檢查
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler 健康檢查處理器
type Handler struct {
	version  string
	stats    StatsSource
	provider Pinger
}

// NewHandler 創建健康檢查處理器；stats 與 provider 可為 nil
func NewHandler(version string, stats StatsSource, provider Pinger) *Handler {
	return &Handler{version: version, stats: stats, provider: provider}
}

// HealthCheck 健康檢查處理器
func (h *Handler) HealthCheck(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   h.version,
		Runtime: map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]interface{}{
				"alloc":       m.Alloc,
				"total_alloc": m.TotalAlloc,
				"sys":         m.Sys,
				"num_gc":      m.NumGC,
			},
		},
	}
	if h.stats != nil {
		response.Caches = h.stats.CacheStats()
		response.Index = &IndexStatus{Entries: h.stats.IndexSize()}
	}

	common.LogDebug("Health check request",
		zap.String("client_ip", c.ClientIP()),
		zap.String("path", c.Request.URL.Path),
	)
	c.JSON(http.StatusOK, response)
}

// ReadinessCheck 就緒檢查：外部資料服務不可用時仍可用名稱分析，只回報 degraded
func (h *Handler) ReadinessCheck(c *gin.Context) {
	provider := "not_configured"
	if h.provider != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.provider.Ping(ctx); err != nil {
			common.LogWarn("外部資料服務檢查失敗", zap.Error(err))
			provider = "degraded"
		} else {
			provider = "ok"
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "ready",
		"provider": provider,
	})
}

// LivenessCheck 存活檢查處理器
func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}
