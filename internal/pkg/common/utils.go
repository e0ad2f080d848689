package common

import (
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GenerateUUID 生成 UUID
func GenerateUUID() string {
	return uuid.New().String()
}

// RequestID 從請求取得 X-Request-ID，沒有則生成
func RequestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	if id := c.Writer.Header().Get("X-Request-ID"); id != "" {
		return id
	}
	return GenerateUUID()
}

// WriteError 寫入錯誤響應
func WriteError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(StatusOf(err), ToResponse(err))
}

// UniqueSorted 去除空字串與重複後排序
func UniqueSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// AppendUnique 依序加入不重複的字串
func AppendUnique(list []string, values ...string) []string {
	for _, v := range values {
		found := false
		for _, existing := range list {
			if existing == v {
				found = true
				break
			}
		}
		if !found {
			list = append(list, v)
		}
	}
	return list
}

// ClampInt 將數值限制在 [lo, hi]
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
