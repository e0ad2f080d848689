package bcs

import (
	"fmt"
	"strings"

	"dish-compat/internal/core/ingredient"
	"dish-compat/internal/core/rules"
	"dish-compat/internal/pkg/common"
)

const (
	ReasonTitleAllergy = "Allergy (Title Match)"
	ReasonAllergy      = "Allergy"
	ReasonIntolerance  = "Intolerance"
	ReasonFermented    = "Fermented/Alcohol Sensitivity"
	ReasonSpiceLow     = "Spice Sensitivity (Low Tolerance)"
	ReasonVeryHot      = "Very Spicy Ingredient"
	ReasonDiet         = "Diet Restriction"

	titleIngredient = "Dish Title"
)

// Evaluator 生物相容性評分
type Evaluator struct {
	resolver *ingredient.Resolver
	expander *ingredient.Expander
	tables   *rules.Tables
	weights  rules.Weights
}

// NewEvaluator 創建評分器
func NewEvaluator(resolver *ingredient.Resolver, expander *ingredient.Expander, tables *rules.Tables, weights rules.Weights) *Evaluator {
	return &Evaluator{
		resolver: resolver,
		expander: expander,
		tables:   tables,
		weights:  weights.WithDefaults(),
	}
}

// Insufficient 缺少食材資料時的中性結果
func (e *Evaluator) Insufficient(warning string) common.BCSResult {
	return common.BCSResult{
		BioScore: e.weights.NeutralScore,
		Evidence: []common.EvidenceItem{},
		Warnings: []string{warning},
	}
}

// scoring 單次評分的累積狀態
type scoring struct {
	score    int
	block    bool
	evidence []common.EvidenceItem
	warnings []string
	degraded bool
}

func (s *scoring) add(item common.EvidenceItem, warning string) {
	s.evidence = append(s.evidence, item)
	if item.Severity == common.SeverityCritical {
		s.block = true
	} else {
		s.score -= item.Weight
	}
	if warning != "" {
		s.warnings = common.AppendUnique(s.warnings, warning)
	}
}

// Evaluate 依序執行標題掃描與逐一食材檢查
// flavors 以標準名稱為鍵，缺少的食材只用名稱判斷
func (e *Evaluator) Evaluate(dish common.Dish, profile *common.UserSensitivityProfile, flavors map[string]common.FlavorRecord) (common.BCSResult, error) {
	if profile == nil {
		return common.BCSResult{}, common.ErrNilProfile
	}

	ingredients := make([]common.IngredientReference, 0, len(dish.Ingredients))
	for _, ing := range dish.Ingredients {
		if common.CleanTerm(ing.Raw) != "" {
			ingredients = append(ingredients, ing)
		}
	}
	if len(ingredients) == 0 {
		return e.Insufficient("Could not analyze ingredients: no ingredient data available."), nil
	}

	allergies := e.canonicalTerms(profile.Allergies)
	intolerances := e.canonicalTerms(profile.Intolerances)
	s := &scoring{score: rules.MaxScore}

	e.scanTitle(s, dish.Title, allergies)

	for _, ing := range ingredients {
		raw := common.CleanTerm(ing.Raw)
		canonical := e.resolver.Canonicalize(raw)
		terms := e.expander.Expand(canonical, raw, ing.Triggers...)
		rec, hasRecord := flavors[canonical]
		if hasRecord && rec.Error {
			s.degraded = true
		}

		if a := firstMatch(allergies, terms); a != "" {
			s.add(common.EvidenceItem{
				Ingredient: raw, MatchedTrigger: a, Reason: ReasonAllergy,
				Weight: rules.AllergyWeight, Severity: common.SeverityCritical,
			}, fmt.Sprintf("Contains %s (in %s)", a, raw))
		}

		if i := firstMatch(intolerances, terms); i != "" {
			s.add(common.EvidenceItem{
				Ingredient: raw, MatchedTrigger: i, Reason: ReasonIntolerance,
				Weight: e.weights.IntolerancePenalty, Severity: common.SeverityWarning,
			}, fmt.Sprintf("Contains %s (in %s)", i, raw))
		}

		if profile.FermentedSensitive {
			if trigger := e.fermentedTrigger(raw, terms, rec); trigger != "" {
				s.add(common.EvidenceItem{
					Ingredient: raw, MatchedTrigger: trigger, Reason: ReasonFermented,
					Weight: e.weights.FermentedPenalty, Severity: common.SeverityCaution,
				}, fmt.Sprintf("%s is fermented or alcoholic", raw))
			}
		}

		e.checkSpice(s, profile.Tolerance(), raw, rec)
		e.checkDiet(s, profile.DietType, raw, canonical, terms)
	}

	if s.degraded {
		s.warnings = common.AppendUnique(s.warnings, "Some flavor data was unavailable; score confidence is reduced.")
	}

	score := common.ClampInt(s.score, 0, rules.MaxScore)
	if s.block {
		score = 0
	}
	if s.evidence == nil {
		s.evidence = []common.EvidenceItem{}
	}
	if s.warnings == nil {
		s.warnings = []string{}
	}
	return common.BCSResult{
		BioScore: score,
		Block:    s.block,
		Evidence: s.evidence,
		Warnings: s.warnings,
		Degraded: s.degraded,
	}, nil
}

// scanTitle 標題常透露食材清單沒列出的過敏原
func (e *Evaluator) scanTitle(s *scoring, title string, allergies []string) {
	cleaned := common.CleanTerm(title)
	if cleaned == "" || len(allergies) == 0 {
		return
	}
	terms := e.expander.Expand(cleaned, cleaned)
	for _, a := range allergies {
		if containsAny(terms, a) {
			s.add(common.EvidenceItem{
				Ingredient: titleIngredient, MatchedTrigger: a, Reason: ReasonTitleAllergy,
				Weight: rules.AllergyWeight, Severity: common.SeverityCritical,
			}, fmt.Sprintf("%s detected in dish name.", a))
		}
	}
}

func (e *Evaluator) fermentedTrigger(raw string, terms []string, rec common.FlavorRecord) string {
	for _, g := range e.tables.FermentedGroups {
		if rec.HasGroup(g) {
			return g
		}
	}
	for _, kw := range e.tables.FermentedWords {
		if strings.Contains(raw, kw) {
			return kw
		}
	}
	for _, g := range e.tables.FermentedGroups {
		for _, t := range terms {
			if t == g {
				return g
			}
		}
	}
	return ""
}

func (e *Evaluator) checkSpice(s *scoring, tolerance common.SpiceTolerance, raw string, rec common.FlavorRecord) {
	veryHot := containsKeyword(raw, e.tables.VeryHotWords)
	spicy := veryHot != "" || rec.HasFlavor("spicy") || containsKeyword(raw, e.tables.SpicyWords) != ""

	switch {
	case !spicy:
	case tolerance == common.SpiceLow:
		s.add(common.EvidenceItem{
			Ingredient: raw, MatchedTrigger: "spicy", Reason: ReasonSpiceLow,
			Weight: e.weights.SpiceLowPenalty, Severity: common.SeverityCaution,
		}, fmt.Sprintf("%s may be too spicy for you", raw))
	case tolerance == common.SpiceMedium && veryHot != "":
		s.add(common.EvidenceItem{
			Ingredient: raw, MatchedTrigger: veryHot, Reason: ReasonVeryHot,
			Weight: e.weights.SpiceMediumPenalty, Severity: common.SeverityCaution,
		}, fmt.Sprintf("%s is very spicy", raw))
	}
}

// checkDiet 素食/純素檢查，以知識庫類型判斷
func (e *Evaluator) checkDiet(s *scoring, diet common.DietType, raw, canonical string, terms []string) {
	diet = diet.Normalize()
	if diet == common.DietAny {
		return
	}
	for _, key := range e.tables.KnowledgeKeys() {
		if !hasWord(raw, key) && !hasWord(canonical, key) {
			continue
		}
		entry := e.tables.KnowledgeBase[key]
		violates := entry.Type == "non-veg"
		if diet == common.DietVegan {
			violates = violates || entry.HasTag("Dairy") || entry.HasTag("Egg")
		}
		if violates {
			s.add(common.EvidenceItem{
				Ingredient: raw, MatchedTrigger: key, Reason: ReasonDiet,
				Weight: rules.AllergyWeight, Severity: common.SeverityCritical,
			}, fmt.Sprintf("Contains %s (violates %s diet)", key, diet))
			return
		}
	}
	if diet == common.DietVegan {
		for _, t := range terms {
			if t == "dairy" || t == "egg" {
				s.add(common.EvidenceItem{
					Ingredient: raw, MatchedTrigger: t, Reason: ReasonDiet,
					Weight: rules.AllergyWeight, Severity: common.SeverityCritical,
				}, fmt.Sprintf("Contains %s (violates %s diet)", t, diet))
				return
			}
		}
	}
}

func (e *Evaluator) canonicalTerms(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if c := e.resolver.Canonicalize(v); c != "" {
			out = common.AppendUnique(out, c)
		}
	}
	return out
}

// firstMatch 第一個出現在任一展開詞中的使用者詞彙
func firstMatch(userTerms, expanded []string) string {
	for _, u := range userTerms {
		if containsAny(expanded, u) {
			return u
		}
	}
	return ""
}

func containsAny(terms []string, needle string) bool {
	for _, t := range terms {
		if strings.Contains(t, needle) {
			return true
		}
	}
	return false
}

func containsKeyword(name string, keywords []string) string {
	for _, kw := range keywords {
		if strings.Contains(name, kw) {
			return kw
		}
	}
	return ""
}

// hasWord 以單字邊界比對，允許複數 s/es
func hasWord(name, key string) bool {
	padded := " " + strings.Join(strings.FieldsFunc(name, func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	}), " ") + " "
	for _, form := range []string{key, key + "s", key + "es"} {
		if strings.Contains(padded, " "+form+" ") {
			return true
		}
	}
	return false
}
