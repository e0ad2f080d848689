package analysis

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"dish-compat/internal/core/bcs"
	"dish-compat/internal/core/suggestion"
	"dish-compat/internal/pkg/common"

	"go.uber.org/zap"
)

const (
	altBioThreshold   = 60
	altTasteThreshold = 50
	minAltQueryLength = 4
	maxAltChecks      = 10

	detailsUnavailable = "Recipe details unavailable; analyzed with the provided ingredients."
)

// AnalyzeRequest 分析請求；有 RecipeID 時以明細食材為準
type AnalyzeRequest struct {
	RecipeID    string   `json:"recipe_id"`
	DishName    string   `json:"dish_name"`
	Ingredients []string `json:"ingredients"`
}

// Analyze 完整分析：BCS、口味、替換建議與較安全的替代食譜
func (e *Engine) Analyze(ctx context.Context, req AnalyzeRequest, profile *common.UserSensitivityProfile) (*common.AnalysisResult, error) {
	if profile == nil {
		return nil, common.ErrNilProfile
	}
	if strings.TrimSpace(req.RecipeID) == "" && strings.TrimSpace(req.DishName) == "" && len(req.Ingredients) == 0 {
		return nil, common.ErrEmptyDish
	}
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	dish, detailsFailed := e.resolveDish(ctx, req)

	flavors := e.fetchFlavors(ctx, dish.Ingredients)
	bcsResult, err := e.evaluator.Evaluate(dish, profile, flavors)
	if err != nil {
		return nil, err
	}
	if detailsFailed {
		bcsResult.Degraded = true
		bcsResult.Warnings = common.AppendUnique(bcsResult.Warnings, detailsUnavailable)
	}
	tasteResult := e.model.Score(profile, usable(dish.Ingredients), e.lookup(flavors))

	result := &common.AnalysisResult{
		Dish:          dish,
		BCS:           bcsResult,
		Taste:         tasteResult,
		Modifications: e.modifications(bcsResult.Evidence),
		Alternatives:  []common.RecipeSummary{},
	}
	if bcsResult.Block || bcsResult.BioScore < altBioThreshold || tasteResult.TasteScore < altTasteThreshold {
		result.Alternatives = e.alternatives(ctx, dish, bcsResult, profile)
	}

	if dish.Title != "" {
		e.index.Observe(common.SuggestionItem{Title: dish.Title, Kind: common.KindRecipe, Source: suggestion.SourceAnalyze})
	}

	common.LogInfo("分析完成",
		zap.String("recipe_id", dish.RecipeID),
		zap.Int("bio_score", bcsResult.BioScore),
		zap.Int("taste_score", tasteResult.TasteScore),
		zap.Bool("block", bcsResult.Block),
		zap.Bool("degraded", bcsResult.Degraded),
		zap.Int("alternatives", len(result.Alternatives)),
		zap.Duration("耗時", time.Since(start)),
	)
	return result, nil
}

// resolveDish 合併請求內容與食譜明細；明細失敗時退回請求內容
func (e *Engine) resolveDish(ctx context.Context, req AnalyzeRequest) (common.Dish, bool) {
	dish := common.Dish{
		RecipeID: strings.TrimSpace(req.RecipeID),
		Title:    strings.TrimSpace(req.DishName),
	}
	for _, phrase := range req.Ingredients {
		dish.Ingredients = append(dish.Ingredients, common.NewIngredientReference(phrase))
	}
	if dish.RecipeID == "" || e.details == nil {
		return dish, false
	}

	details, err := e.details.GetRecipeDetails(ctx, dish.RecipeID)
	if err != nil {
		level := common.LogWarn
		if errors.Is(err, common.ErrProviderNotFound) {
			level = common.LogInfo
		}
		level("無法取得食譜明細", zap.String("recipe_id", dish.RecipeID), zap.Error(err))
		return dish, true
	}

	if details.Title != "" {
		dish.Title = details.Title
	}
	if len(details.Ingredients) > 0 {
		dish.Ingredients = dish.Ingredients[:0]
		for _, phrase := range details.Ingredients {
			dish.Ingredients = append(dish.Ingredients, common.NewIngredientReference(phrase))
		}
	}
	return dish, false
}

// modifications 每筆證據取替換表中的第一個替代品
func (e *Engine) modifications(evidence []common.EvidenceItem) []common.Modification {
	mods := make([]common.Modification, 0, len(evidence))
	seen := make(map[string]struct{})
	for _, ev := range evidence {
		swap, ok := e.tables.SwapFor(ev.MatchedTrigger, ev.Ingredient)
		if !ok {
			continue
		}
		original := ev.Ingredient
		if ev.Reason == bcs.ReasonTitleAllergy {
			original = ev.MatchedTrigger
		}
		key := original + "|" + swap
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		mods = append(mods, common.Modification{Original: original, Swap: swap, Reason: ev.Reason})
	}
	return mods
}

// alternatives 以去除過敏原後的標題搜尋，逐一檢查候選食譜的食材
func (e *Engine) alternatives(ctx context.Context, dish common.Dish, res common.BCSResult, profile *common.UserSensitivityProfile) []common.RecipeSummary {
	out := []common.RecipeSummary{}
	if e.search == nil || e.details == nil {
		return out
	}

	query := dish.Title
	if res.Block {
		for _, ev := range res.Evidence {
			if ev.Severity == common.SeverityCritical {
				query = removeWord(query, ev.MatchedTrigger)
			}
		}
	}
	if len(query) < minAltQueryLength {
		return out
	}

	candidates, degraded := e.search.GetOrFetch(ctx, query)
	if degraded {
		return out
	}
	e.observeRecipes(candidates, suggestion.SourceSearch)

	var allergies []string
	for _, a := range profile.Allergies {
		if c := e.resolver.Canonicalize(a); c != "" {
			allergies = common.AppendUnique(allergies, c)
		}
	}

	checked := 0
	for _, r := range candidates {
		if len(out) >= e.opts.MaxAlternatives || checked >= maxAltChecks || ctx.Err() != nil {
			break
		}
		if r.ID != "" && r.ID == dish.RecipeID {
			continue
		}
		if mentions(strings.ToLower(r.Title), allergies) {
			continue
		}

		checked++
		details, err := e.details.GetRecipeDetails(ctx, r.ID)
		if err != nil {
			continue
		}
		if e.containsAllergen(details.Ingredients, allergies) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (e *Engine) containsAllergen(ingredients []string, allergies []string) bool {
	for _, ing := range ingredients {
		name := common.CleanTerm(ing)
		canonical := e.resolver.Canonicalize(name)
		for _, a := range allergies {
			if strings.Contains(name, a) || canonical == a {
				return true
			}
		}
	}
	return false
}

func mentions(text string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

// removeWord 以單字邊界移除（不分大小寫）並合併空白
func removeWord(text, word string) string {
	if strings.TrimSpace(word) == "" {
		return text
	}
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`)
	if err != nil {
		return text
	}
	return strings.Join(strings.Fields(re.ReplaceAllString(text, " ")), " ")
}

func (e *Engine) observeRecipes(recipes []common.RecipeSummary, source string) {
	items := make([]common.SuggestionItem, 0, len(recipes))
	for _, r := range recipes {
		items = append(items, common.SuggestionItem{Title: r.Title, Kind: common.KindRecipe, Source: source})
	}
	e.index.Observe(items...)
}
