package middleware

import (
	"fmt"
	"time"

	"dish-compat/internal/pkg/common"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxTrackedClients 同時追蹤的用戶端數量上限，最久未出現的先淘汰
const maxTrackedClients = 10000

// RateLimiter 以用戶端 IP 分桶的令牌桶限流器
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	clients *lru.Cache[string, *rate.Limiter]
}

// NewRateLimiter 每個用戶端在 window 內最多 requests 次請求
func NewRateLimiter(requests int, window time.Duration) *RateLimiter {
	if requests <= 0 {
		requests = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	clients, _ := lru.New[string, *rate.Limiter](maxTrackedClients)
	return &RateLimiter{
		limit:   rate.Limit(float64(requests) / window.Seconds()),
		burst:   requests,
		clients: clients,
	}
}

// Allow 檢查用戶端是否還有令牌
func (rl *RateLimiter) Allow(client string) bool {
	limiter, ok := rl.clients.Get(client)
	if !ok {
		limiter = rate.NewLimiter(rl.limit, rl.burst)
		// 併發下可能重複建立，以先寫入者為準
		if prev, loaded, _ := rl.clients.PeekOrAdd(client, limiter); loaded {
			limiter = prev
		}
	}
	return limiter.Allow()
}

// RateLimit 限流中間件
func RateLimit(requests int, window time.Duration) gin.HandlerFunc {
	limiter := NewRateLimiter(requests, window)

	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			common.LogInfo("Rate limit exceeded",
				zap.String("ip", c.ClientIP()),
				zap.String("path", c.Request.URL.Path),
			)
			c.Header("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			common.WriteError(c, common.ErrTooManyRequests)
			return
		}
		c.Next()
	}
}
