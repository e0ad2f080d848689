package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dish-compat/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.foodoscope.com"

	searchPath  = "/recipe2-api/recipe-bytitle/recipeByTitle"
	detailsPath = "/recipe2-api/search-recipe/"
	flavorPath  = "/flavordb/molecules_data/by-commonName"
)

// FoodoscopeClient RecipeDB / FlavorDB 客戶端
type FoodoscopeClient struct {
	client  *resty.Client
	limiter *rate.Limiter
	config  Config
}

// NewFoodoscopeClient 創建客戶端
func NewFoodoscopeClient(cfg Config) *FoodoscopeClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.APIKey))
	} else {
		common.LogWarn("未設定 Foodoscope API key，外部查詢可能被拒絕")
	}

	return &FoodoscopeClient{
		client:  client,
		limiter: rate.NewLimiter(limit, burst),
		config:  cfg,
	}
}

// flexString 接受字串或數字
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s", string(data))
	}
	*s = flexString(n.String())
	return nil
}

// flexList 接受 "a@b" 字串或字串陣列
type flexList []string

func (l *flexList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	var items []string
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
	} else {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		items = strings.FieldsFunc(v, func(r rune) bool { return r == '@' || r == ',' || r == '|' })
	}

	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.ToLower(strings.TrimSpace(it)); it != "" {
			out = append(out, it)
		}
	}
	*l = out
	return nil
}

type searchResponse struct {
	Success bool `json:"success"`
	Data    []struct {
		RecipeID    flexString `json:"Recipe_id"`
		RecipeTitle string     `json:"Recipe_title"`
	} `json:"data"`
}

type detailsResponse struct {
	Recipe struct {
		RecipeID    flexString `json:"Recipe_id"`
		RecipeTitle string     `json:"Recipe_title"`
	} `json:"recipe"`
	Ingredients []struct {
		Ingredient string `json:"ingredient"`
		Phrase     string `json:"ingredient_Phrase"`
	} `json:"ingredients"`
}

type flavorResponse struct {
	Content []struct {
		CommonName       string          `json:"common_name"`
		ID               flexString      `json:"_id"`
		FlavorProfile    flexList        `json:"flavor_profile"`
		FunctionalGroups flexList        `json:"functional_groups"`
		Natural          common.FlexBool `json:"natural"`
		Bitter           common.FlexBool `json:"bitter"`
		SuperSweet       common.FlexBool `json:"super_sweet"`
	} `json:"content"`
}

// get 限流後送出 GET，非 2xx 轉換為錯誤
func (c *FoodoscopeClient) get(ctx context.Context, path string, query map[string]string) (*resty.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, common.ErrProviderUnavailable.Wrap(err)
	}

	start := time.Now()
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(query).
		Get(path)
	if err != nil {
		common.LogProviderCall(path, time.Since(start), err)
		return nil, common.ErrProviderUnavailable.Wrap(err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, common.ErrProviderNotFound
	case resp.StatusCode() < 200 || resp.StatusCode() >= 300:
		err := fmt.Errorf("foodoscope returned %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
		common.LogProviderCall(path, time.Since(start), err)
		return nil, common.ErrProviderUnavailable.Wrap(err)
	}
	return resp, nil
}

// SearchRecipes 以標題搜尋食譜
func (c *FoodoscopeClient) SearchRecipes(ctx context.Context, query string) ([]common.RecipeSummary, error) {
	resp, err := c.get(ctx, searchPath, map[string]string{"title": query})
	if errors.Is(err, common.ErrProviderNotFound) {
		return []common.RecipeSummary{}, nil
	}
	if err != nil {
		return nil, err
	}

	var body searchResponse
	if err := common.ParseJSONBytes(resp.Body(), &body); err != nil {
		return nil, common.ErrProviderUnavailable.Wrap(fmt.Errorf("failed to parse search response: %w", err))
	}
	if !body.Success {
		return []common.RecipeSummary{}, nil
	}

	results := make([]common.RecipeSummary, 0, len(body.Data))
	for _, r := range body.Data {
		title := strings.TrimSpace(r.RecipeTitle)
		if title == "" {
			continue
		}
		results = append(results, common.RecipeSummary{ID: string(r.RecipeID), Title: title})
	}
	return results, nil
}

// GetRecipeDetails 取得食譜明細與食材
func (c *FoodoscopeClient) GetRecipeDetails(ctx context.Context, id string) (*common.RecipeDetails, error) {
	resp, err := c.get(ctx, detailsPath+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	var body detailsResponse
	if err := common.ParseJSONBytes(resp.Body(), &body); err != nil {
		return nil, common.ErrProviderUnavailable.Wrap(fmt.Errorf("failed to parse recipe details: %w", err))
	}

	details := &common.RecipeDetails{
		ID:    string(body.Recipe.RecipeID),
		Title: strings.TrimSpace(body.Recipe.RecipeTitle),
	}
	if details.ID == "" {
		details.ID = id
	}
	for _, ing := range body.Ingredients {
		name := strings.TrimSpace(ing.Ingredient)
		if name == "" {
			name = strings.TrimSpace(ing.Phrase)
		}
		if name != "" {
			details.Ingredients = append(details.Ingredients, name)
		}
	}

	common.LogDebug("已取得食譜明細",
		zap.String("recipe_id", details.ID),
		zap.Int("食材數", len(details.Ingredients)),
	)
	return details, nil
}

// LookupFlavor 以常見名稱查詢風味資料，取第一筆
func (c *FoodoscopeClient) LookupFlavor(ctx context.Context, name string) (common.FlavorRecord, error) {
	resp, err := c.get(ctx, flavorPath, map[string]string{"common_name": name})
	if err != nil {
		return common.FlavorRecord{}, err
	}

	var body flavorResponse
	if err := common.ParseJSONBytes(resp.Body(), &body); err != nil {
		return common.FlavorRecord{}, common.ErrProviderUnavailable.Wrap(fmt.Errorf("failed to parse flavor response: %w", err))
	}
	if len(body.Content) == 0 {
		return common.FlavorRecord{}, common.ErrProviderNotFound
	}

	first := body.Content[0]
	return common.FlavorRecord{
		CanonicalName:    name,
		FoundName:        first.CommonName,
		ID:               string(first.ID),
		FlavorProfile:    first.FlavorProfile,
		FunctionalGroups: first.FunctionalGroups,
		Natural:          bool(first.Natural),
		Bitter:           bool(first.Bitter),
		SuperSweet:       bool(first.SuperSweet),
	}, nil
}

// Ping 檢查外部服務可連線（5xx 或連線錯誤視為不可用）
func (c *FoodoscopeClient) Ping(ctx context.Context) error {
	resp, err := c.client.R().SetContext(ctx).Head("/")
	if err != nil {
		return common.ErrProviderUnavailable.Wrap(err)
	}
	if resp.StatusCode() >= 500 {
		return common.ErrProviderUnavailable.Wrap(fmt.Errorf("status %d", resp.StatusCode()))
	}
	return nil
}

// Close 關閉提供者連接
func (c *FoodoscopeClient) Close() error {
	c.client.GetClient().CloseIdleConnections()
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
