package provider

import (
	"context"
	"time"

	"dish-compat/internal/pkg/common"
)

// RecipeSearcher 食譜/菜名搜尋
type RecipeSearcher interface {
	SearchRecipes(ctx context.Context, query string) ([]common.RecipeSummary, error)
}

// FlavorLookup 風味/分子資料查詢；查無時回傳 common.ErrProviderNotFound
type FlavorLookup interface {
	LookupFlavor(ctx context.Context, name string) (common.FlavorRecord, error)
}

// RecipeDetailer 食譜明細
type RecipeDetailer interface {
	GetRecipeDetails(ctx context.Context, id string) (*common.RecipeDetails, error)
}

// Provider 外部資料來源的完整介面
type Provider interface {
	RecipeSearcher
	FlavorLookup
	RecipeDetailer

	// Ping 檢查外部服務是否可用
	Ping(ctx context.Context) error

	// Close 關閉提供者連接
	Close() error
}

// Config 外部資料來源設定
type Config struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}
