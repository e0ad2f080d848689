package taste

import (
	"fmt"
	"math"
	"strings"

	"dish-compat/internal/core/rules"
	"dish-compat/internal/pkg/common"
)

// FlavorLookup 取得食材的風味記錄；ok=false 表示沒有資料
type FlavorLookup func(ingredient common.IngredientReference) (common.FlavorRecord, bool)

// Model 口味向量模型
type Model struct {
	tables  *rules.Tables
	weights rules.Weights
}

// NewModel 創建口味模型
func NewModel(tables *rules.Tables, weights rules.Weights) *Model {
	return &Model{tables: tables, weights: weights.WithDefaults()}
}

// NeutralVector 沒有任何訊號時的菜餚向量
func NeutralVector() common.TasteVector {
	return common.TasteVector{
		common.AxisSweet:  2,
		common.AxisSpicy:  2,
		common.AxisBitter: 2,
		common.AxisSour:   2,
		common.AxisUmami:  5,
		common.AxisCreamy: 2,
	}
}

// UserVector 使用者偏好向量：缺少的軸用預設值，並限制在 1..10
func (m *Model) UserVector(profile *common.UserSensitivityProfile) common.TasteVector {
	v := make(common.TasteVector, len(common.FlavorAxes))
	for _, axis := range common.FlavorAxes {
		pref := m.weights.TasteDefaultAxis
		if profile != nil {
			if p, ok := profile.TastePreferences[axis]; ok && p != 0 {
				pref = p
			}
		}
		v[axis] = float64(common.ClampInt(pref, 1, 10))
	}
	return v
}

// contribution 單一食材對各軸的貢獻
func (m *Model) contribution(ing common.IngredientReference, rec common.FlavorRecord, found bool) common.TasteVector {
	c := make(common.TasteVector, len(common.FlavorAxes))

	if found && rec.Usable() {
		for _, rule := range m.tables.FlavorTags {
			if rec.HasFlavor(rule.Tag) {
				c[rule.Axis] = math.Max(c[rule.Axis], rule.Value)
			}
		}
		if rec.SuperSweet {
			c[common.AxisSweet] = math.Max(c[common.AxisSweet], 8)
		}
		if rec.Bitter {
			c[common.AxisBitter] = math.Max(c[common.AxisBitter], 8)
		}
		return c
	}

	// 沒有可用的風味資料時以名稱推估
	name := common.CleanTerm(ing.Raw)
	for _, rule := range m.tables.TasteHeuristics {
		for _, kw := range rule.Keywords {
			if strings.Contains(name, kw) {
				c[rule.Axis] = rule.Value
				break
			}
		}
	}
	return c
}

// DishVector 聚合所有食材的貢獻
func (m *Model) DishVector(ingredients []common.IngredientReference, lookup FlavorLookup) common.TasteVector {
	sum := make(common.TasteVector, len(common.FlavorAxes))
	count := 0

	for _, ing := range ingredients {
		var rec common.FlavorRecord
		found := false
		if lookup != nil {
			rec, found = lookup(ing)
		}
		c := m.contribution(ing, rec, found)

		contributed := false
		for _, axis := range common.FlavorAxes {
			sum[axis] += c[axis]
			if c[axis] > 0 {
				contributed = true
			}
		}
		if contributed {
			count++
		}
	}

	if count == 0 {
		return NeutralVector()
	}

	// 縮放避免少數強訊號被大量中性食材稀釋
	divisor := float64(count) * m.weights.TasteScaling
	out := make(common.TasteVector, len(common.FlavorAxes))
	for _, axis := range common.FlavorAxes {
		out[axis] = math.Min(10, sum[axis]/divisor)
	}
	return out
}

// Distance 歐氏距離
func Distance(a, b common.TasteVector) float64 {
	var sum float64
	for _, axis := range common.FlavorAxes {
		d := a[axis] - b[axis]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Compare 比較兩個向量，回傳 0..100 分數與說明
func (m *Model) Compare(user, dish common.TasteVector) (int, []string) {
	dist := Distance(user, dish)
	score := 100 - (dist/m.weights.TasteMaxDistance)*100
	score = math.Max(0, math.Min(100, score))

	var notes []string
	for _, axis := range common.FlavorAxes {
		diff := math.Abs(user[axis] - dish[axis])
		switch {
		case diff < m.weights.MatchNoteMaxDiff && dish[axis] > m.weights.MatchNoteMinDish:
			notes = common.AppendUnique(notes, fmt.Sprintf("Matches your love for %s flavors.", axis))
		case diff > m.weights.MismatchNoteMinDiff && dish[axis] > user[axis]:
			notes = common.AppendUnique(notes, fmt.Sprintf("Might be too %s for you.", axis))
		case diff > m.weights.MismatchNoteMinDiff:
			notes = common.AppendUnique(notes, fmt.Sprintf("Lacks the %s punch you like.", axis))
		}
	}
	if notes == nil {
		notes = []string{}
	}
	return int(math.Round(score)), notes
}

// Score 計算口味匹配分數；沒有食材時回傳中性分數
func (m *Model) Score(profile *common.UserSensitivityProfile, ingredients []common.IngredientReference, lookup FlavorLookup) common.TasteResult {
	user := m.UserVector(profile)
	if len(ingredients) == 0 {
		return common.TasteResult{
			TasteScore: m.weights.NeutralScore,
			Notes:      []string{"Insufficient data to estimate flavor match."},
			UserVector: user,
		}
	}

	dish := m.DishVector(ingredients, lookup)
	score, notes := m.Compare(user, dish)
	return common.TasteResult{
		TasteScore: score,
		Notes:      notes,
		UserVector: user,
		DishVector: dish,
	}
}
