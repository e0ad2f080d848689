package suggestion

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"dish-compat/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

func newIndex(t *testing.T, opts Options, legacy ...string) *Index {
	t.Helper()
	if opts.Now == nil {
		opts.Now = (&clock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}).Now
	}
	idx, err := NewIndex(opts, legacy)
	require.NoError(t, err)
	return idx
}

func recipe(title string) common.SuggestionItem {
	return common.SuggestionItem{Title: title, Kind: common.KindRecipe, Source: SourceSearch}
}

func titles(entries []common.SuggestionEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Title)
	}
	return out
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "mac n cheese", Normalize("  Mac-N'-Cheese!! "))
	assert.Equal(t, "creme brulee 2", Normalize("Crème Brûlée #2"))
	assert.Equal(t, "", Normalize("?!"))
}

func TestRankPrefersPrefix(t *testing.T) {
	idx := newIndex(t, Options{})
	idx.Observe(recipe("Soup of the Day"), recipe("Peanut Soup"))

	got := idx.Rank("pea", 10)
	require.NotEmpty(t, got)
	assert.Equal(t, "Peanut Soup", got[0].Title)
	assert.NotContains(t, titles(got), "Soup of the Day")
}

func TestRankOrdering(t *testing.T) {
	idx := newIndex(t, Options{})
	idx.Observe(recipe("Tomato Soup"), recipe("Chicken Soup"), recipe("Soup Dumplings"))
	idx.Observe(recipe("Chicken Soup"), recipe("Chicken Soup"))

	got := idx.Rank("soup", 10)
	// 前綴優先，其餘依命中次數
	assert.Equal(t, []string{"Soup Dumplings", "Chicken Soup", "Tomato Soup"}, titles(got))
	assert.Equal(t, 3, got[1].HitCount)
}

func TestRankRecencyBreaksTies(t *testing.T) {
	idx := newIndex(t, Options{})
	idx.Observe(recipe("Lentil Soup"))
	idx.Observe(recipe("Miso Soup"))

	got := idx.Rank("soup", 10)
	assert.Equal(t, []string{"Miso Soup", "Lentil Soup"}, titles(got))
}

func TestRankShortQueryAndLimit(t *testing.T) {
	idx := newIndex(t, Options{MaxLimit: 3})
	for i := 0; i < 10; i++ {
		idx.Observe(recipe(fmt.Sprintf("Pasta %d", i)))
	}

	assert.Empty(t, idx.Rank("p", 10))
	assert.Empty(t, idx.Rank("  ", 10))
	assert.Len(t, idx.Rank("pasta", 100), 3)
	assert.Len(t, idx.Rank("pasta", 2), 2)
}

func TestObservePreservesEarliestSource(t *testing.T) {
	idx := newIndex(t, Options{})
	idx.Observe(common.SuggestionItem{Title: "Pad Thai", Source: SourcePopular})
	idx.Observe(common.SuggestionItem{Title: "pad thai!", Source: SourceSearch})

	got := idx.Rank("pad", 5)
	require.Len(t, got, 1)
	assert.Equal(t, SourcePopular, got[0].SourceTag)
	assert.Equal(t, 2, got[0].HitCount)
	assert.Equal(t, common.KindRecipe, got[0].Kind)
	assert.Equal(t, "pad thai!", got[0].Title)
}

func TestIndexIsBounded(t *testing.T) {
	idx := newIndex(t, Options{MaxEntries: 3})
	idx.Observe(recipe("Alpha Stew"), recipe("Beta Stew"), recipe("Gamma Stew"))

	// Rank 不刷新順序，Alpha 仍是最舊的
	require.Len(t, idx.Rank("alpha", 5), 1)
	idx.Observe(recipe("Delta Stew"))

	assert.Equal(t, 3, idx.Len())
	assert.Empty(t, idx.Rank("alpha", 5))
	assert.Len(t, idx.Rank("stew", 10), 3)
}

func TestBootstrap(t *testing.T) {
	idx := newIndex(t, Options{BootstrapMax: 2})
	for _, title := range []string{"Pancakes", "Waffles", "Crepes", "Crepes"} {
		idx.Observe(recipe(title))
	}

	got := idx.Bootstrap(0)
	assert.Equal(t, []string{"Crepes", "Waffles"}, titles(got))
	assert.Len(t, idx.Bootstrap(1), 1)
}

func TestLegacyAndMerge(t *testing.T) {
	idx := newIndex(t, Options{}, "peanut", "Pepper", "pear", "rice")
	idx.Observe(recipe("Peanut Soup"))

	legacy := idx.Legacy("pe", 10)
	assert.Equal(t, []string{"Peanut", "Pear", "Pepper"}, titles(legacy))
	for _, e := range legacy {
		assert.Equal(t, SourceLegacy, e.SourceTag)
		assert.Equal(t, common.KindIngredient, e.Kind)
	}
	assert.Empty(t, idx.Legacy("p", 10))

	merged := idx.Merge(idx.Rank("pe", 3), legacy, 3)
	assert.Equal(t, []string{"Peanut Soup", "Peanut", "Pear"}, titles(merged))
}

func TestSeed(t *testing.T) {
	idx := newIndex(t, Options{})
	idx.Seed([]string{"Thai Peanut Noodles"}, []string{"soy sauce"})

	got := idx.Rank("soy", 5)
	require.Len(t, got, 1)
	assert.Equal(t, "Soy Sauce", got[0].Title)
	assert.Equal(t, SourceKeyword, got[0].SourceTag)
	assert.Equal(t, common.KindIngredient, got[0].Kind)

	got = idx.Rank("thai", 5)
	require.Len(t, got, 1)
	assert.Equal(t, SourcePopular, got[0].SourceTag)
}

func TestConcurrentObserveAndRank(t *testing.T) {
	idx := newIndex(t, Options{MaxEntries: 50, Now: time.Now})

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				idx.Observe(recipe(fmt.Sprintf("Curry %d", (w*100+i)%80)))
				_ = idx.Rank("curry", 5)
			}
		}(w)
	}
	wg.Wait()
	assert.LessOrEqual(t, idx.Len(), 50)
}

func TestRankTiesAreDeterministic(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	idx := newIndex(t, Options{Now: func() time.Time { return fixed }})
	idx.Observe(recipe("Pad Thai Tofu"), recipe("Pad Thai Chicken"), recipe("Pad Thai Beef"))

	want := []string{"Pad Thai Beef", "Pad Thai Chicken", "Pad Thai Tofu"}
	for range 20 {
		assert.Equal(t, want, titles(idx.Rank("pad thai", 10)))
		assert.Equal(t, want, titles(idx.Bootstrap(10)))
	}
}
