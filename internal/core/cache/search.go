package cache

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"dish-compat/internal/pkg/common"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// RecipeSearcher 食譜搜尋來源
type RecipeSearcher interface {
	SearchRecipes(ctx context.Context, query string) ([]common.RecipeSummary, error)
}

// SearchCache 搜尋結果快取，只存在記憶體
type SearchCache struct {
	searcher RecipeSearcher
	mem      *Manager[[]common.RecipeSummary]
	group    singleflight.Group
	calls    atomic.Int64
}

// NewSearchCache 創建搜尋快取
func NewSearchCache(searcher RecipeSearcher, opts Options) *SearchCache {
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Minute
	}
	if opts.Name == "" {
		opts.Name = "search"
	}
	return &SearchCache{
		searcher: searcher,
		mem:      NewManager[[]common.RecipeSummary](opts),
	}
}

// NormalizeQuery 搜尋鍵：小寫、去頭尾空白、合併空白
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// GetOrFetch 回傳搜尋結果；第二個回傳值表示外部失敗（結果為空且不快取）
func (c *SearchCache) GetOrFetch(ctx context.Context, query string) ([]common.RecipeSummary, bool) {
	key := NormalizeQuery(query)
	if key == "" {
		return []common.RecipeSummary{}, false
	}

	if results, ok := c.mem.Get(key); ok {
		common.LogCacheHit("search", key)
		return results, false
	}
	common.LogCacheMiss("search", key)

	type outcome struct {
		results  []common.RecipeSummary
		degraded bool
	}
	v, _, _ := c.group.Do(key, func() (interface{}, error) {
		c.calls.Add(1)
		start := time.Now()
		results, err := c.searcher.SearchRecipes(ctx, strings.TrimSpace(query))
		common.LogProviderCall("search", time.Since(start), err)
		if err != nil {
			return outcome{results: []common.RecipeSummary{}, degraded: true}, nil
		}
		if results == nil {
			results = []common.RecipeSummary{}
		}
		if err := c.mem.Set(key, results); err != nil {
			common.LogWarn("搜尋快取寫入失敗", zap.Error(err))
		}
		return outcome{results: results}, nil
	})
	out := v.(outcome)
	return out.results, out.degraded
}

// ProviderCalls 累計外部調用次數
func (c *SearchCache) ProviderCalls() int64 {
	return c.calls.Load()
}

// GetStats 快取統計
func (c *SearchCache) GetStats() Stats {
	return c.mem.GetStats()
}

// Close 關閉快取
func (c *SearchCache) Close() error {
	return c.mem.Close()
}
