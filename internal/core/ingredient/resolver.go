package ingredient

import (
	"sort"

	"dish-compat/internal/core/rules"
	"dish-compat/internal/pkg/common"
)

// Resolver 將食材寫法對應到標準名稱
type Resolver struct {
	canonical map[string]struct{}
	aliases   map[string]string
	keys      []string
}

// NewResolver 由同義詞表建立 Resolver
func NewResolver(tables *rules.Tables) *Resolver {
	r := &Resolver{
		canonical: make(map[string]struct{}, len(tables.Synonyms)),
		aliases:   make(map[string]string),
	}
	for key := range tables.Synonyms {
		r.canonical[key] = struct{}{}
		r.keys = append(r.keys, key)
	}
	sort.Strings(r.keys)

	// 依鍵排序後寫入，同一別名出現在多個鍵時結果固定
	for _, key := range r.keys {
		for _, alias := range tables.Synonyms[key] {
			if _, taken := r.aliases[alias]; !taken {
				r.aliases[alias] = key
			}
		}
	}
	return r
}

// Canonicalize 回傳標準名稱；未知寫法回傳清理後的原字串
func (r *Resolver) Canonicalize(term string) string {
	cleaned := common.CleanTerm(term)
	if _, ok := r.canonical[cleaned]; ok {
		return cleaned
	}
	if key, ok := r.aliases[cleaned]; ok {
		return key
	}
	return cleaned
}

// IsCanonical 是否為同義詞表中的標準名稱
func (r *Resolver) IsCanonical(term string) bool {
	_, ok := r.canonical[common.CleanTerm(term)]
	return ok
}

// Keys 所有標準名稱（排序後）
func (r *Resolver) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}
