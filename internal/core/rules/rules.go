package rules

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"dish-compat/internal/pkg/common"

	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var embeddedTables []byte

// FlavorTagRule 風味標籤對應到口味軸
type FlavorTagRule struct {
	Tag   string            `yaml:"tag"`
	Axis  common.FlavorAxis `yaml:"axis"`
	Value float64           `yaml:"value"`
}

// HeuristicRule 名稱關鍵字推估口味
type HeuristicRule struct {
	Keywords []string          `yaml:"keywords"`
	Axis     common.FlavorAxis `yaml:"axis"`
	Value    float64           `yaml:"value"`
}

// Tables 所有規則表
type Tables struct {
	Synonyms         map[string][]string              `yaml:"synonyms"`
	HiddenTriggers   map[string][]string              `yaml:"hidden_triggers"`
	KnowledgeBase    map[string]common.KnowledgeEntry `yaml:"knowledge_base"`
	HeaderWords      []string                         `yaml:"header_words"`
	FermentedWords   []string                         `yaml:"fermented_keywords"`
	FermentedGroups  []string                         `yaml:"fermented_groups"`
	SpicyWords       []string                         `yaml:"spicy_keywords"`
	VeryHotWords     []string                         `yaml:"very_hot_keywords"`
	FlavorTags       []FlavorTagRule                  `yaml:"flavor_tags"`
	TasteHeuristics  []HeuristicRule                  `yaml:"taste_heuristics"`
	Swaps            map[string][]string              `yaml:"swaps"`
	PopularRecipes   []string                         `yaml:"popular_recipes"`
	IngredientSeeds  []string                         `yaml:"keywords"`
	knowledgeKeys    []string
	triggerKeysOrder []string
}

// Parse 解析 YAML 規則表
func Parse(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("解析規則表失敗: %w", err)
	}
	if len(t.Synonyms) == 0 || len(t.HiddenTriggers) == 0 || len(t.KnowledgeBase) == 0 {
		return nil, fmt.Errorf("規則表缺少必要區段")
	}
	t.normalize()
	return &t, nil
}

// normalize 清理所有鍵值，並固定迭代順序
func (t *Tables) normalize() {
	t.Synonyms = cleanListMap(t.Synonyms)
	t.HiddenTriggers = cleanListMap(t.HiddenTriggers)
	t.Swaps = cleanKeys(t.Swaps)

	kb := make(map[string]common.KnowledgeEntry, len(t.KnowledgeBase))
	for name, entry := range t.KnowledgeBase {
		key := common.CleanTerm(name)
		entry.Name = key
		kb[key] = entry
	}
	t.KnowledgeBase = kb

	t.knowledgeKeys = sortedKeys(t.KnowledgeBase)
	t.triggerKeysOrder = sortedKeys(t.HiddenTriggers)
}

// KnowledgeKeys 知識庫鍵（排序後）
func (t *Tables) KnowledgeKeys() []string {
	return t.knowledgeKeys
}

// TriggerKeys 隱藏觸發表鍵（排序後）
func (t *Tables) TriggerKeys() []string {
	return t.triggerKeysOrder
}

// SwapFor 取第一個替代品
func (t *Tables) SwapFor(terms ...string) (string, bool) {
	for _, term := range terms {
		if list, ok := t.Swaps[common.CleanTerm(term)]; ok && len(list) > 0 {
			return list[0], true
		}
	}
	return "", false
}

var (
	defaultOnce   sync.Once
	defaultTables *Tables
)

// Default 回傳內嵌規則表，內容錯誤屬於建置錯誤，直接 panic
func Default() *Tables {
	defaultOnce.Do(func() {
		t, err := Parse(embeddedTables)
		if err != nil {
			panic(err)
		}
		defaultTables = t
	})
	return defaultTables
}

func cleanListMap(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for k, values := range in {
		cleaned := make([]string, 0, len(values))
		for _, v := range values {
			cleaned = append(cleaned, common.CleanTerm(v))
		}
		out[common.CleanTerm(k)] = cleaned
	}
	return out
}

func cleanKeys(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for k, v := range in {
		out[common.CleanTerm(k)] = v
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
