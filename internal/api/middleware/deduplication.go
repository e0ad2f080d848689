package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"sync"
	"time"

	"dish-compat/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Deduplicator 同一用戶端短時間內相同的 POST 請求（路徑 + 請求體）只處理一次
type Deduplicator struct {
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time
}

// NewDeduplicator 創建去重器；window <= 0 時使用 1 秒
func NewDeduplicator(window time.Duration) *Deduplicator {
	if window <= 0 {
		window = time.Second
	}
	return &Deduplicator{
		window: window,
		now:    time.Now,
		seen:   make(map[string]time.Time),
	}
}

// fingerprint 請求指紋：用戶端 IP + 方法 + 路徑 + 請求體雜湊
func fingerprint(c *gin.Context) (string, error) {
	key := c.ClientIP() + ":" + c.Request.Method + ":" + c.Request.URL.Path
	if c.Request.Body == nil {
		return key, nil
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", err
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	if len(body) == 0 {
		return key, nil
	}
	sum := sha256.Sum256(body)
	return key + ":" + hex.EncodeToString(sum[:]), nil
}

// Allow 記錄指紋，window 內重複則回傳 false；順便清掉過期指紋
func (d *Deduplicator) Allow(key string) bool {
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()

	if last, ok := d.seen[key]; ok && now.Sub(last) <= d.window {
		return false
	}
	d.seen[key] = now

	if len(d.seen) > 1024 {
		for k, t := range d.seen {
			if now.Sub(t) > d.window {
				delete(d.seen, k)
			}
		}
	}
	return true
}

// Middleware 請求去重中間件，只處理 POST
func (d *Deduplicator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		key, err := fingerprint(c)
		if err != nil {
			// 讀不到請求體（例如超過大小限制）交給 handler 回報
			common.LogWarn("Failed to read request body", zap.Error(err))
			c.Next()
			return
		}

		if !d.Allow(key) {
			common.LogInfo("重複請求已略過",
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()),
			)
			common.WriteError(c, common.ErrTooManyRequests)
			return
		}
		c.Next()
	}
}
