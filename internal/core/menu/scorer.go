package menu

import (
	"context"
	"math"
	"sort"
	"strings"

	"dish-compat/internal/core/bcs"
	"dish-compat/internal/core/ingredient"
	"dish-compat/internal/core/taste"
	"dish-compat/internal/pkg/common"
)

const (
	TagBlocked   = "Blocked"
	TagExcellent = "Excellent Choice"
	TagModerate  = "Moderate"
	TagAvoid     = "Avoid"
	TagFlavor    = "Flavor Match"

	insufficientReason = "Insufficient data"
	compatibleReason   = "No conflicts found with your profile."
)

// FlavorSource 批次取得風味記錄，鍵為標準名稱；nil 表示只用名稱判斷
type FlavorSource func(ctx context.Context, names []string) map[string]common.FlavorRecord

// Scorer 菜單候選評分
type Scorer struct {
	evaluator *bcs.Evaluator
	model     *taste.Model
	resolver  *ingredient.Resolver
	flavors   FlavorSource
}

// NewScorer 創建候選評分器
func NewScorer(evaluator *bcs.Evaluator, model *taste.Model, resolver *ingredient.Resolver, flavors FlavorSource) *Scorer {
	return &Scorer{
		evaluator: evaluator,
		model:     model,
		resolver:  resolver,
		flavors:   flavors,
	}
}

// Score 評分所有候選並依總分排序（穩定排序，同分保留原順序）
func (s *Scorer) Score(ctx context.Context, candidates []common.DishCandidate, profile *common.UserSensitivityProfile) ([]common.ScoredCandidate, error) {
	if profile == nil {
		return nil, common.ErrNilProfile
	}

	flavors := s.lookupFlavors(ctx, candidates)
	scored := make([]common.ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		sc, err := s.scoreOne(c, profile, flavors)
		if err != nil {
			return nil, err
		}
		scored = append(scored, sc)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored, nil
}

func (s *Scorer) scoreOne(c common.DishCandidate, profile *common.UserSensitivityProfile, flavors map[string]common.FlavorRecord) (common.ScoredCandidate, error) {
	if !c.IsAnalyzed || len(c.MatchedIngredients) == 0 {
		neutral := s.evaluator.Insufficient(insufficientReason)
		return common.ScoredCandidate{
			DishCandidate: c,
			Score:         neutral.BioScore,
			BioScore:      neutral.BioScore,
			TasteScore:    neutral.BioScore,
			Reason:        insufficientReason,
			Reasons:       []string{insufficientReason},
			Tags:          []string{},
		}, nil
	}

	dish := candidateDish(c)
	res, err := s.evaluator.Evaluate(dish, profile, flavors)
	if err != nil {
		return common.ScoredCandidate{}, err
	}
	tr := s.model.Score(profile, dish.Ingredients, func(ing common.IngredientReference) (common.FlavorRecord, bool) {
		rec, ok := flavors[s.resolver.Canonicalize(ing.Raw)]
		return rec, ok
	})

	overall := int(math.Round(float64(res.BioScore+tr.TasteScore) / 2))
	if res.Block {
		overall = 0
	}

	reasons := common.AppendUnique(append([]string{}, res.Warnings...), tr.Notes...)
	reason := compatibleReason
	if len(reasons) > 0 {
		reason = reasons[0]
	}

	return common.ScoredCandidate{
		DishCandidate: c,
		Score:         overall,
		BioScore:      res.BioScore,
		TasteScore:    tr.TasteScore,
		Block:         res.Block,
		Reason:        reason,
		Reasons:       reasons,
		Tags:          tagsFor(overall, res.Block, tr.TasteScore),
		Evidence:      res.Evidence,
	}, nil
}

func (s *Scorer) lookupFlavors(ctx context.Context, candidates []common.DishCandidate) map[string]common.FlavorRecord {
	if s.flavors == nil {
		return nil
	}
	var names []string
	for _, c := range candidates {
		if !c.IsAnalyzed {
			continue
		}
		for _, entry := range c.MatchedIngredients {
			names = common.AppendUnique(names, s.resolver.Canonicalize(entry.Name))
		}
	}
	if len(names) == 0 {
		return nil
	}
	return s.flavors(ctx, names)
}

// candidateDish 以知識庫條目當作食材，觸發與標籤作為額外標註
func candidateDish(c common.DishCandidate) common.Dish {
	dish := common.Dish{Title: c.Name}
	for _, entry := range c.MatchedIngredients {
		ref := common.IngredientReference{Raw: entry.Name}
		for _, t := range entry.Triggers {
			ref.Triggers = append(ref.Triggers, strings.ToLower(t))
		}
		for _, t := range entry.Tags {
			ref.Triggers = append(ref.Triggers, strings.ToLower(t))
		}
		dish.Ingredients = append(dish.Ingredients, ref)
	}
	return dish
}

func tagsFor(score int, blocked bool, tasteScore int) []string {
	var tags []string
	switch {
	case blocked:
		tags = append(tags, TagBlocked)
	case score >= 80:
		tags = append(tags, TagExcellent)
	case score >= 50:
		tags = append(tags, TagModerate)
	default:
		tags = append(tags, TagAvoid)
	}
	if !blocked && tasteScore >= 80 {
		tags = append(tags, TagFlavor)
	}
	return tags
}
