package analysis

import (
	"context"
	"strings"

	"dish-compat/internal/core/suggestion"
	"dish-compat/internal/pkg/common"

	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Search 搜尋食譜並在記憶體中分頁；外部失敗時回傳空頁並標記 Degraded
func (e *Engine) Search(ctx context.Context, query string, page, limit int) (*common.SearchPage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, common.NewValidationError("query is required")
	}
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	limit = min(limit, maxPageSize)

	var (
		all      []common.RecipeSummary
		degraded bool
	)
	if e.search == nil {
		degraded = true
	} else {
		all, degraded = e.search.GetOrFetch(ctx, query)
	}
	e.observeRecipes(all, suggestion.SourceSearch)

	start := min((page-1)*limit, len(all))
	end := min(start+limit, len(all))
	results := make([]common.RecipeSummary, end-start)
	copy(results, all[start:end])

	common.LogInfo("搜尋完成",
		zap.String("query", query),
		zap.Int("page", page),
		zap.Int("total", len(all)),
		zap.Bool("degraded", degraded),
	)
	return &common.SearchPage{
		Results:  results,
		Total:    len(all),
		Page:     page,
		Limit:    limit,
		HasMore:  page*limit < len(all),
		Degraded: degraded,
	}, nil
}

// SuggestRequest 建議查詢參數
type SuggestRequest struct {
	Query         string
	Limit         int
	Legacy        bool // 只回傳舊版食材建議
	IncludeLegacy bool // 食譜建議不足時補上食材建議
}

// Suggest 依模式回傳自動完成建議
func (e *Engine) Suggest(req SuggestRequest) []common.SuggestionEntry {
	if req.Legacy {
		return e.index.Legacy(req.Query, req.Limit)
	}
	ranked := e.index.Rank(req.Query, req.Limit)
	if !req.IncludeLegacy {
		return ranked
	}
	return e.index.Merge(ranked, e.index.Legacy(req.Query, req.Limit), req.Limit)
}

// Bootstrap 前端離線自動完成用的索引快照
func (e *Engine) Bootstrap(limit int) []common.SuggestionEntry {
	return e.index.Bootstrap(limit)
}

// ScanMenu 擷取菜單候選並評分
func (e *Engine) ScanMenu(ctx context.Context, raw string, profile *common.UserSensitivityProfile) ([]common.ScoredCandidate, error) {
	if profile == nil {
		return nil, common.ErrNilProfile
	}
	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	candidates := e.extractor.Extract(raw)
	scored, err := e.scorer.Score(ctx, candidates, profile)
	if err != nil {
		return nil, err
	}
	common.LogInfo("菜單評分完成", zap.Int("candidates", len(scored)))
	return scored, nil
}
