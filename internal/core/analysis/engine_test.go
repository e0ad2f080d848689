package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"dish-compat/internal/core/bcs"
	"dish-compat/internal/core/cache"
	"dish-compat/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	mu          sync.Mutex
	flavors     map[string]common.FlavorRecord
	failing     map[string]bool
	searches    map[string][]common.RecipeSummary
	details     map[string]*common.RecipeDetails
	flavorCalls map[string]int
	searchCalls int
	detailCalls int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		flavors:     map[string]common.FlavorRecord{},
		failing:     map[string]bool{},
		searches:    map[string][]common.RecipeSummary{},
		details:     map[string]*common.RecipeDetails{},
		flavorCalls: map[string]int{},
	}
}

func (p *fakeProvider) LookupFlavor(_ context.Context, name string) (common.FlavorRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flavorCalls[name]++
	if p.failing[name] {
		return common.FlavorRecord{}, common.ErrProviderUnavailable.Wrap(errors.New("timeout"))
	}
	if rec, ok := p.flavors[name]; ok {
		return rec, nil
	}
	return common.FlavorRecord{}, common.ErrProviderNotFound
}

func (p *fakeProvider) SearchRecipes(_ context.Context, query string) ([]common.RecipeSummary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.searchCalls++
	if query == "boom" {
		return nil, common.ErrProviderUnavailable
	}
	return p.searches[strings.ToLower(query)], nil
}

func (p *fakeProvider) GetRecipeDetails(_ context.Context, id string) (*common.RecipeDetails, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.detailCalls++
	if d, ok := p.details[id]; ok {
		return d, nil
	}
	return nil, common.ErrProviderNotFound
}

func (p *fakeProvider) totalFlavorCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, n := range p.flavorCalls {
		total += n
	}
	return total
}

func newTestEngine(t *testing.T, p *fakeProvider) *Engine {
	t.Helper()
	flavors := cache.NewFlavorCache(p, nil, cache.FlavorOptions{})
	search := cache.NewSearchCache(p, cache.Options{})
	t.Cleanup(func() {
		_ = flavors.Close(context.Background())
		_ = search.Close()
	})

	e, err := NewEngine(Deps{Flavors: flavors, Search: search, Details: p}, Options{})
	require.NoError(t, err)
	return e
}

func dishOf(title string, ingredients ...string) common.Dish {
	d := common.Dish{Title: title}
	for _, i := range ingredients {
		d.Ingredients = append(d.Ingredients, common.NewIngredientReference(i))
	}
	return d
}

func TestEvaluateBioCompatibilityTitleScan(t *testing.T) {
	e := newTestEngine(t, newFakeProvider())
	profile := &common.UserSensitivityProfile{Allergies: []string{"peanut"}}

	res, err := e.EvaluateBioCompatibility(context.Background(), dishOf("Thai Peanut Noodles", "rice noodles", "lime"), profile)
	require.NoError(t, err)
	assert.True(t, res.Block)
	assert.Equal(t, 0, res.BioScore)

	_, err = e.EvaluateBioCompatibility(context.Background(), dishOf("Soup", "water"), nil)
	assert.ErrorIs(t, err, common.ErrNilProfile)
	_, err = e.ScoreTasteMatch(context.Background(), dishOf("Soup", "water"), nil)
	assert.ErrorIs(t, err, common.ErrNilProfile)
}

func TestFlavorFanOutIsBoundedAndCached(t *testing.T) {
	p := newFakeProvider()
	e := newTestEngine(t, p)

	var names []string
	for i := 0; i < 30; i++ {
		names = append(names, fmt.Sprintf("ingredient %d", i))
	}
	dish := dishOf("Everything Stew", names...)

	_, err := e.EvaluateBioCompatibility(context.Background(), dish, &common.UserSensitivityProfile{})
	require.NoError(t, err)
	assert.Equal(t, 25, p.totalFlavorCalls())

	_, err = e.ScoreTasteMatch(context.Background(), dish, &common.UserSensitivityProfile{})
	require.NoError(t, err)
	assert.Equal(t, 25, p.totalFlavorCalls(), "second pass is served from cache")
}

func TestProviderFailureDegrades(t *testing.T) {
	p := newFakeProvider()
	p.failing["lime"] = true
	e := newTestEngine(t, p)
	dish := dishOf("Lime Rice", "lime", "rice")

	for i := 0; i < 2; i++ {
		res, err := e.EvaluateBioCompatibility(context.Background(), dish, &common.UserSensitivityProfile{})
		require.NoError(t, err)
		assert.True(t, res.Degraded)
		assert.Equal(t, 100, res.BioScore)
	}
	assert.Equal(t, 2, p.flavorCalls["lime"], "errors are not cached")
	assert.Equal(t, 1, p.flavorCalls["rice"])
}

func TestScoreTasteMatchUsesFlavorRecords(t *testing.T) {
	p := newFakeProvider()
	p.flavors["tamarind"] = common.FlavorRecord{FlavorProfile: []string{"sour"}}
	e := newTestEngine(t, p)

	res, err := e.ScoreTasteMatch(context.Background(), dishOf("Tamarind Water", "tamarind"), &common.UserSensitivityProfile{})
	require.NoError(t, err)
	assert.Equal(t, 10.0, res.DishVector[common.AxisSour])
}

func thaiProvider() *fakeProvider {
	p := newFakeProvider()
	p.details["2610"] = &common.RecipeDetails{ID: "2610", Title: "Thai Peanut Noodles", Ingredients: []string{"rice noodles", "peanuts, crushed", "lime"}}
	p.details["2"] = &common.RecipeDetails{ID: "2", Ingredients: []string{"rice noodles", "basil"}}
	p.details["3"] = &common.RecipeDetails{ID: "3", Ingredients: []string{"cashews", "peanuts"}}
	p.details["4"] = &common.RecipeDetails{ID: "4", Ingredients: []string{"rice noodles", "egg"}}
	p.details["5"] = &common.RecipeDetails{ID: "5", Ingredients: []string{"glass noodles"}}
	p.details["6"] = &common.RecipeDetails{ID: "6", Ingredients: []string{"wide noodles"}}
	p.searches["thai noodles"] = []common.RecipeSummary{
		{ID: "2610", Title: "Thai Peanut Noodles"},
		{ID: "2", Title: "Thai Basil Noodles"},
		{ID: "3", Title: "Thai Cashew Noodles"},
		{ID: "4", Title: "Pad Thai Noodles"},
		{ID: "5", Title: "Thai Glass Noodles"},
		{ID: "6", Title: "Thai Drunken Noodles"},
	}
	return p
}

func TestAnalyzeBlockedRecipe(t *testing.T) {
	p := thaiProvider()
	e := newTestEngine(t, p)
	profile := &common.UserSensitivityProfile{Allergies: []string{"peanut"}}

	res, err := e.Analyze(context.Background(), AnalyzeRequest{RecipeID: "2610"}, profile)
	require.NoError(t, err)

	assert.Equal(t, "Thai Peanut Noodles", res.Dish.Title)
	require.Len(t, res.Dish.Ingredients, 3)
	assert.Equal(t, "crushed", res.Dish.Ingredients[1].Hint)
	assert.True(t, res.BCS.Block)
	assert.Equal(t, 0, res.BCS.BioScore)
	assert.False(t, res.BCS.Degraded)

	assert.Contains(t, res.Modifications, common.Modification{
		Original: "peanut", Swap: "sunflower seed butter", Reason: bcs.ReasonTitleAllergy,
	})

	ids := make([]string, 0, len(res.Alternatives))
	for _, a := range res.Alternatives {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"2", "4", "5"}, ids)

	// 分析與替代搜尋的標題都進入建議索引
	assert.NotEmpty(t, e.RankSuggestions("thai basil", 5))
	assert.NotEmpty(t, e.RankSuggestions("thai peanut", 5))
}

func TestAnalyzeSafeRecipeSkipsAlternatives(t *testing.T) {
	p := thaiProvider()
	e := newTestEngine(t, p)

	res, err := e.Analyze(context.Background(), AnalyzeRequest{RecipeID: "2610"}, &common.UserSensitivityProfile{
		TastePreferences: map[common.FlavorAxis]int{common.AxisSweet: 2, common.AxisSpicy: 2, common.AxisBitter: 2, common.AxisSour: 2, common.AxisUmami: 5, common.AxisCreamy: 2},
	})
	require.NoError(t, err)
	assert.False(t, res.BCS.Block)
	assert.Equal(t, 100, res.BCS.BioScore)
	assert.Empty(t, res.Alternatives)
	assert.Empty(t, res.Modifications)
	assert.Zero(t, p.searchCalls)
}

func TestAnalyzeFallsBackWhenDetailsMissing(t *testing.T) {
	e := newTestEngine(t, newFakeProvider())
	profile := &common.UserSensitivityProfile{Intolerances: []string{"lactose"}}

	res, err := e.Analyze(context.Background(), AnalyzeRequest{
		RecipeID:    "missing",
		DishName:    "Breakfast Bowl",
		Ingredients: []string{"milk", "cereal"},
	}, profile)
	require.NoError(t, err)
	assert.True(t, res.BCS.Degraded)
	assert.Contains(t, res.BCS.Warnings, detailsUnavailable)
	assert.False(t, res.BCS.Block)
	assert.Greater(t, res.BCS.BioScore, 0)
	assert.LessOrEqual(t, res.BCS.BioScore, 70)
	assert.Contains(t, res.Modifications, common.Modification{Original: "milk", Swap: "lactose-free milk", Reason: bcs.ReasonIntolerance})
}

func TestAnalyzeValidation(t *testing.T) {
	e := newTestEngine(t, newFakeProvider())

	_, err := e.Analyze(context.Background(), AnalyzeRequest{}, &common.UserSensitivityProfile{})
	assert.ErrorIs(t, err, common.ErrEmptyDish)

	_, err = e.Analyze(context.Background(), AnalyzeRequest{DishName: "Toast"}, nil)
	assert.ErrorIs(t, err, common.ErrNilProfile)

	res, err := e.Analyze(context.Background(), AnalyzeRequest{DishName: "Mystery Dish"}, &common.UserSensitivityProfile{})
	require.NoError(t, err)
	assert.Equal(t, 50, res.BCS.BioScore)
	assert.Equal(t, 50, res.Taste.TasteScore)
}

func TestSearchPagination(t *testing.T) {
	p := newFakeProvider()
	for i := 0; i < 25; i++ {
		p.searches["pasta"] = append(p.searches["pasta"], common.RecipeSummary{ID: fmt.Sprint(i), Title: fmt.Sprintf("Pasta %d", i)})
	}
	e := newTestEngine(t, p)
	ctx := context.Background()

	page, err := e.Search(ctx, "Pasta", 2, 10)
	require.NoError(t, err)
	require.Len(t, page.Results, 10)
	assert.Equal(t, "Pasta 10", page.Results[0].Title)
	assert.Equal(t, 25, page.Total)
	assert.True(t, page.HasMore)

	page, err = e.Search(ctx, "pasta", 3, 10)
	require.NoError(t, err)
	assert.Len(t, page.Results, 5)
	assert.False(t, page.HasMore)

	page, err = e.Search(ctx, "pasta", 9, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Results)

	assert.Equal(t, 1, p.searchCalls)
	assert.NotEmpty(t, e.RankSuggestions("pasta", 5))

	_, err = e.Search(ctx, "  ", 1, 10)
	assert.True(t, common.IsValidationError(err))

	page, err = e.Search(ctx, "boom", 1, 10)
	require.NoError(t, err)
	assert.True(t, page.Degraded)
	assert.Empty(t, page.Results)
}

func TestSuggestModes(t *testing.T) {
	e := newTestEngine(t, newFakeProvider())
	e.Index().Observe(common.SuggestionItem{Title: "Peanut Soup", Kind: common.KindRecipe, Source: "search"})

	recipes := e.Suggest(SuggestRequest{Query: "pea"})
	require.Len(t, recipes, 1)
	assert.Equal(t, "Peanut Soup", recipes[0].Title)

	legacy := e.Suggest(SuggestRequest{Query: "pea", Legacy: true})
	require.NotEmpty(t, legacy)
	assert.Equal(t, "Peanut", legacy[0].Title)

	merged := e.Suggest(SuggestRequest{Query: "pea", IncludeLegacy: true})
	require.GreaterOrEqual(t, len(merged), 2)
	assert.Equal(t, "Peanut Soup", merged[0].Title)
	assert.Equal(t, "Peanut", merged[1].Title)

	assert.Len(t, e.Bootstrap(10), 1)
}

func TestScanMenu(t *testing.T) {
	p := newFakeProvider()
	e := newTestEngine(t, p)
	profile := &common.UserSensitivityProfile{Allergies: []string{"peanut"}}

	scored, err := e.ScanMenu(context.Background(), "STARTERS\nThai Peanut Curry\nGarden Salad   $8", profile)
	require.NoError(t, err)
	require.Len(t, scored, 2)
	assert.Equal(t, "Garden Salad", scored[0].Name)
	assert.True(t, scored[1].Block)
	assert.Positive(t, p.totalFlavorCalls())

	_, err = e.ScanMenu(context.Background(), "Garden Salad", nil)
	assert.ErrorIs(t, err, common.ErrNilProfile)
}
