package ingredient

import (
	"strings"

	"dish-compat/internal/core/rules"
	"dish-compat/internal/pkg/common"
)

// Expander 展開食材隱含的過敏原/化學類別
type Expander struct {
	triggers map[string][]string
	keys     []string
}

// NewExpander 由隱藏觸發表建立 Expander
func NewExpander(tables *rules.Tables) *Expander {
	return &Expander{
		triggers: tables.HiddenTriggers,
		keys:     tables.TriggerKeys(),
	}
}

// Expand 回傳 {canonical, raw} 與所有隱含類別的聯集（排序、去重）
// extra 為額外標註（例如知識庫 triggers），一併清理後加入
func (e *Expander) Expand(canonical, raw string, extra ...string) []string {
	canonical = common.CleanTerm(canonical)
	raw = common.CleanTerm(raw)

	terms := make([]string, 0, 8)
	terms = append(terms, canonical, raw)
	for _, key := range e.keys {
		if strings.Contains(canonical, key) || strings.Contains(raw, key) {
			terms = append(terms, e.triggers[key]...)
		}
	}
	for _, x := range extra {
		terms = append(terms, common.CleanTerm(x))
	}
	return common.UniqueSorted(terms)
}

// Implied 只回傳隱含類別，不含原詞
func (e *Expander) Implied(term string) []string {
	term = common.CleanTerm(term)
	var out []string
	for _, key := range e.keys {
		if strings.Contains(term, key) {
			out = append(out, e.triggers[key]...)
		}
	}
	return common.UniqueSorted(out)
}
