package taste

import (
	"testing"

	"dish-compat/internal/core/rules"
	"dish-compat/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newModel() *Model {
	return NewModel(rules.Default(), rules.DefaultWeights())
}

func refs(names ...string) []common.IngredientReference {
	out := make([]common.IngredientReference, 0, len(names))
	for _, n := range names {
		out = append(out, common.NewIngredientReference(n))
	}
	return out
}

func TestCompareIdenticalVectorsScores100(t *testing.T) {
	m := newModel()
	vectors := []common.TasteVector{
		NeutralVector(),
		{common.AxisSweet: 10, common.AxisSpicy: 1, common.AxisBitter: 3, common.AxisSour: 7, common.AxisUmami: 9, common.AxisCreamy: 2},
		m.UserVector(&common.UserSensitivityProfile{}),
	}
	for _, v := range vectors {
		score, _ := m.Compare(v, v)
		assert.Equal(t, 100, score)
	}
}

func TestCompareBounded(t *testing.T) {
	m := newModel()
	zero := common.TasteVector{}
	maxed := common.TasteVector{}
	for _, axis := range common.FlavorAxes {
		maxed[axis] = 10
	}

	score, notes := m.Compare(zero, maxed)
	assert.Equal(t, 0, score)
	assert.NotEmpty(t, notes)
	for _, n := range notes {
		assert.Contains(t, n, "Might be too")
	}
}

func TestUserVectorDefaultsAndClamps(t *testing.T) {
	m := newModel()
	v := m.UserVector(&common.UserSensitivityProfile{
		TastePreferences: map[common.FlavorAxis]int{common.AxisSweet: 15, common.AxisSpicy: -3, common.AxisSour: 8},
	})
	assert.Equal(t, 10.0, v[common.AxisSweet])
	assert.Equal(t, 1.0, v[common.AxisSpicy])
	assert.Equal(t, 8.0, v[common.AxisSour])
	assert.Equal(t, 5.0, v[common.AxisUmami])
	assert.Len(t, v, 6)

	assert.Equal(t, 5.0, m.UserVector(nil)[common.AxisCreamy])
}

func TestDishVectorHeuristicFallback(t *testing.T) {
	m := newModel()
	v := m.DishVector(refs("sugar", "water"), nil)
	assert.Equal(t, 10.0, v[common.AxisSweet])
	assert.Equal(t, 0.0, v[common.AxisSour])
}

func TestDishVectorUsesFlavorRecords(t *testing.T) {
	m := newModel()
	lookup := func(ing common.IngredientReference) (common.FlavorRecord, bool) {
		if ing.Raw == "tamarind" {
			return common.FlavorRecord{FlavorProfile: []string{"sour", "sweet"}}, true
		}
		return common.FlavorRecord{NotFound: true}, true
	}

	// tamarind 用風味標籤，lemon juice 查無資料改用名稱推估，rice 沒有貢獻
	v := m.DishVector(refs("tamarind", "lemon juice", "rice"), lookup)
	assert.Equal(t, 10.0, v[common.AxisSour])
	assert.Equal(t, 10.0, v[common.AxisSweet])
	assert.Equal(t, 0.0, v[common.AxisSpicy])
	assert.Equal(t, 0.0, v[common.AxisUmami])

	// 單一訊號 7 / 0.3 超過上限
	weak := m.DishVector(refs("tamarind"), func(common.IngredientReference) (common.FlavorRecord, bool) {
		return common.FlavorRecord{FlavorProfile: []string{"meaty"}}, true
	})
	assert.Equal(t, 10.0, weak[common.AxisUmami])
}

func TestDishVectorNeutralWhenNoSignal(t *testing.T) {
	m := newModel()
	v := m.DishVector(refs("water", "salt"), nil)
	assert.Equal(t, NeutralVector(), v)
}

func TestScoreEmptyIngredients(t *testing.T) {
	m := newModel()
	res := m.Score(&common.UserSensitivityProfile{}, nil, nil)
	assert.Equal(t, 50, res.TasteScore)
	require.Len(t, res.Notes, 1)
	assert.Contains(t, res.Notes[0], "Insufficient data")
}

func TestScoreNotes(t *testing.T) {
	m := newModel()
	profile := &common.UserSensitivityProfile{TastePreferences: map[common.FlavorAxis]int{
		common.AxisSweet: 9, common.AxisSpicy: 1, common.AxisSour: 1, common.AxisUmami: 9, common.AxisCreamy: 5, common.AxisBitter: 5,
	}}

	res := m.Score(profile, refs("honey", "chili flakes"), nil)
	assert.Contains(t, res.Notes, "Matches your love for sweet flavors.")
	assert.Contains(t, res.Notes, "Might be too spicy for you.")
	assert.Contains(t, res.Notes, "Lacks the umami punch you like.")
	assert.GreaterOrEqual(t, res.TasteScore, 0)
	assert.LessOrEqual(t, res.TasteScore, 100)
	assert.NotNil(t, res.DishVector)
}
