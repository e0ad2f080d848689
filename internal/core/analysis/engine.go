package analysis

import (
	"context"
	"sync"
	"time"

	"dish-compat/internal/core/bcs"
	"dish-compat/internal/core/cache"
	"dish-compat/internal/core/ingredient"
	"dish-compat/internal/core/menu"
	"dish-compat/internal/core/provider"
	"dish-compat/internal/core/rules"
	"dish-compat/internal/core/suggestion"
	"dish-compat/internal/core/taste"
	"dish-compat/internal/pkg/common"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Options 分析流程設定
type Options struct {
	MaxIngredients  int
	FanOut          int
	Timeout         time.Duration
	MaxAlternatives int
}

func (o Options) withDefaults() Options {
	if o.MaxIngredients <= 0 {
		o.MaxIngredients = 25
	}
	if o.FanOut <= 0 {
		o.FanOut = 8
	}
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	if o.MaxAlternatives <= 0 {
		o.MaxAlternatives = 3
	}
	return o
}

// Deps 引擎依賴；Flavors/Search/Details 可為 nil（只用名稱判斷）
type Deps struct {
	Tables  *rules.Tables
	Weights rules.Weights
	Flavors *cache.FlavorCache
	Search  *cache.SearchCache
	Details provider.RecipeDetailer
	Index   *suggestion.Index
}

// Engine 相容性引擎門面
type Engine struct {
	tables    *rules.Tables
	resolver  *ingredient.Resolver
	expander  *ingredient.Expander
	evaluator *bcs.Evaluator
	model     *taste.Model
	extractor *menu.Extractor
	scorer    *menu.Scorer
	index     *suggestion.Index
	flavors   *cache.FlavorCache
	search    *cache.SearchCache
	details   provider.RecipeDetailer
	opts      Options
}

// NewEngine 組裝引擎
func NewEngine(deps Deps, opts Options) (*Engine, error) {
	tables := deps.Tables
	if tables == nil {
		tables = rules.Default()
	}
	resolver := ingredient.NewResolver(tables)
	expander := ingredient.NewExpander(tables)

	index := deps.Index
	if index == nil {
		var err error
		index, err = suggestion.NewIndex(suggestion.Options{}, LegacyKeys(tables, resolver))
		if err != nil {
			return nil, err
		}
	}

	e := &Engine{
		tables:    tables,
		resolver:  resolver,
		expander:  expander,
		evaluator: bcs.NewEvaluator(resolver, expander, tables, deps.Weights),
		model:     taste.NewModel(tables, deps.Weights),
		extractor: menu.NewExtractor(tables),
		index:     index,
		flavors:   deps.Flavors,
		search:    deps.Search,
		details:   deps.Details,
		opts:      opts.withDefaults(),
	}

	var source menu.FlavorSource
	if e.flavors != nil {
		source = e.flavorsByName
	}
	e.scorer = menu.NewScorer(e.evaluator, e.model, resolver, source)
	return e, nil
}

// LegacyKeys 舊版食材建議的鍵：標準食材名稱加上關鍵字種子
func LegacyKeys(tables *rules.Tables, resolver *ingredient.Resolver) []string {
	return append(resolver.Keys(), tables.IngredientSeeds...)
}

// Index 建議索引
func (e *Engine) Index() *suggestion.Index {
	return e.index
}

// IndexSize 建議索引目前的條目數
func (e *Engine) IndexSize() int {
	return e.index.Len()
}

// CacheStats 快取統計
func (e *Engine) CacheStats() []cache.Stats {
	var stats []cache.Stats
	if e.search != nil {
		stats = append(stats, e.search.GetStats())
	}
	if e.flavors != nil {
		stats = append(stats, e.flavors.GetStats())
	}
	return stats
}

// ExtractDishCandidates OCR 文字轉菜名候選
func (e *Engine) ExtractDishCandidates(raw string) []common.DishCandidate {
	return e.extractor.Extract(raw)
}

// EvaluateBioCompatibility 計算 BCS；風味資料依需要向外查詢
func (e *Engine) EvaluateBioCompatibility(ctx context.Context, dish common.Dish, profile *common.UserSensitivityProfile) (common.BCSResult, error) {
	if profile == nil {
		return common.BCSResult{}, common.ErrNilProfile
	}
	return e.evaluator.Evaluate(dish, profile, e.fetchFlavors(ctx, dish.Ingredients))
}

// ScoreTasteMatch 計算口味匹配
func (e *Engine) ScoreTasteMatch(ctx context.Context, dish common.Dish, profile *common.UserSensitivityProfile) (common.TasteResult, error) {
	if profile == nil {
		return common.TasteResult{}, common.ErrNilProfile
	}
	ingredients := usable(dish.Ingredients)
	return e.model.Score(profile, ingredients, e.lookup(e.fetchFlavors(ctx, ingredients))), nil
}

// RankSuggestions 自動完成建議
func (e *Engine) RankSuggestions(query string, limit int) []common.SuggestionEntry {
	return e.index.Rank(query, limit)
}

// usable 去掉空白食材
func usable(ingredients []common.IngredientReference) []common.IngredientReference {
	out := make([]common.IngredientReference, 0, len(ingredients))
	for _, ing := range ingredients {
		if common.CleanTerm(ing.Raw) != "" {
			out = append(out, ing)
		}
	}
	return out
}

// fetchFlavors 並行查詢前 MaxIngredients 個食材的風味，鍵為標準名稱
func (e *Engine) fetchFlavors(ctx context.Context, ingredients []common.IngredientReference) map[string]common.FlavorRecord {
	if e.flavors == nil {
		return nil
	}
	var names []string
	for _, ing := range usable(ingredients) {
		if len(names) == e.opts.MaxIngredients {
			break
		}
		names = common.AppendUnique(names, e.resolver.Canonicalize(ing.Raw))
	}
	return e.flavorsByName(ctx, names)
}

func (e *Engine) flavorsByName(ctx context.Context, names []string) map[string]common.FlavorRecord {
	out := make(map[string]common.FlavorRecord, len(names))
	if len(names) == 0 {
		return out
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(e.opts.FanOut)
	for _, name := range names {
		g.Go(func() error {
			rec := e.flavors.GetOrFetch(ctx, name)
			mu.Lock()
			out[name] = rec
			mu.Unlock()
			return nil
		})
	}
	// 快取層已把外部錯誤轉成 Error 標記，不會回傳錯誤
	_ = g.Wait()

	common.LogDebug("風味查詢完成", zap.Int("食材數", len(names)))
	return out
}

func (e *Engine) lookup(flavors map[string]common.FlavorRecord) taste.FlavorLookup {
	return func(ing common.IngredientReference) (common.FlavorRecord, bool) {
		rec, ok := flavors[e.resolver.Canonicalize(ing.Raw)]
		return rec, ok
	}
}
