package suggestion

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"dish-compat/internal/pkg/common"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const (
	SourceSearch   = "search"
	SourceAnalyze  = "analyze"
	SourcePopular  = "seed-popular"
	SourceKeyword  = "seed-keyword"
	SourceLegacy   = "legacy"
	minQueryLength = 2

	prefixBonus   = 220
	containsBonus = 140
	tokenBonus    = 30
	maxHitBonus   = 25
)

// Options 索引設定
type Options struct {
	MaxEntries   int
	DefaultLimit int
	MaxLimit     int
	BootstrapMax int
	Now          func() time.Time
}

func (o Options) withDefaults() Options {
	if o.MaxEntries <= 0 {
		o.MaxEntries = 5000
	}
	if o.DefaultLimit <= 0 {
		o.DefaultLimit = 8
	}
	if o.MaxLimit <= 0 {
		o.MaxLimit = 20
	}
	if o.BootstrapMax <= 0 {
		o.BootstrapMax = 1000
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Index 自動完成索引，超過上限時淘汰最久未出現的條目
type Index struct {
	mu      sync.RWMutex
	entries *lru.Cache[string, common.SuggestionEntry]
	legacy  []string
	opts    Options
}

// NewIndex 創建索引；legacy 為舊版食材建議使用的鍵
func NewIndex(opts Options, legacy []string) (*Index, error) {
	opts = opts.withDefaults()
	entries, err := lru.New[string, common.SuggestionEntry](opts.MaxEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create suggestion index: %w", err)
	}

	keys := make([]string, 0, len(legacy))
	for _, k := range legacy {
		keys = append(keys, Normalize(k))
	}
	return &Index{
		entries: entries,
		legacy:  common.UniqueSorted(keys),
		opts:    opts,
	}, nil
}

// Normalize 小寫、非英數轉空白、合併空白
func Normalize(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, common.FoldAccents(s))
	return strings.Join(strings.Fields(mapped), " ")
}

// Observe 新增或更新條目：命中次數加一、更新時間，保留最早的來源
func (i *Index) Observe(items ...common.SuggestionItem) {
	i.mu.Lock()
	defer i.mu.Unlock()

	now := i.opts.Now()
	for _, item := range items {
		title := strings.TrimSpace(item.Title)
		key := Normalize(title)
		if key == "" {
			continue
		}

		entry, ok := i.entries.Get(key)
		if !ok {
			entry = common.SuggestionEntry{Key: key, SourceTag: item.Source, Kind: item.Kind}
		}
		if entry.SourceTag == "" {
			entry.SourceTag = item.Source
		}
		if entry.Kind == "" {
			entry.Kind = item.Kind
		}
		if entry.Kind == "" {
			entry.Kind = common.KindRecipe
		}
		entry.Title = title
		entry.HitCount++
		entry.LastSeen = now
		i.entries.Add(key, entry)
	}
}

// Seed 載入熱門食譜與食材關鍵字
func (i *Index) Seed(popular, keywords []string) {
	items := make([]common.SuggestionItem, 0, len(popular)+len(keywords))
	for _, title := range popular {
		items = append(items, common.SuggestionItem{Title: title, Kind: common.KindRecipe, Source: SourcePopular})
	}
	for _, kw := range keywords {
		items = append(items, common.SuggestionItem{Title: common.TitleCase(kw), Kind: common.KindIngredient, Source: SourceKeyword})
	}
	i.Observe(items...)

	common.LogInfo("已載入建議索引種子",
		zap.Int("popular", len(popular)),
		zap.Int("keywords", len(keywords)),
		zap.Int("entries", i.Len()),
	)
}

// Len 目前條目數
func (i *Index) Len() int {
	return i.entries.Len()
}

// clampLimit 未指定用預設值，超過上限截斷
func (i *Index) clampLimit(limit int) int {
	if limit <= 0 {
		return i.opts.DefaultLimit
	}
	if limit > i.opts.MaxLimit {
		return i.opts.MaxLimit
	}
	return limit
}

type scored struct {
	entry common.SuggestionEntry
	score int
}

// Rank 依前綴/包含/字詞命中排序；Peek 不會改變淘汰順序
func (i *Index) Rank(query string, limit int) []common.SuggestionEntry {
	q := Normalize(query)
	if len(q) < minQueryLength {
		return []common.SuggestionEntry{}
	}
	limit = i.clampLimit(limit)
	tokens := strings.Fields(q)

	i.mu.RLock()
	var results []scored
	for _, key := range i.entries.Keys() {
		entry, ok := i.entries.Peek(key)
		if !ok {
			continue
		}
		score := 0
		switch {
		case strings.HasPrefix(key, q):
			score += prefixBonus
		case strings.Contains(key, q):
			score += containsBonus
		}
		for _, tok := range tokens {
			if len(tok) > 1 && strings.Contains(key, tok) {
				score += tokenBonus
			}
		}
		// 沒有文字命中的條目不列入
		if score == 0 {
			continue
		}
		score += min(entry.HitCount, maxHitBonus)
		results = append(results, scored{entry: entry, score: score})
	}
	i.mu.RUnlock()

	sort.SliceStable(results, func(a, b int) bool {
		if results[a].score != results[b].score {
			return results[a].score > results[b].score
		}
		return newer(results[a].entry, results[b].entry)
	})

	out := make([]common.SuggestionEntry, 0, min(limit, len(results)))
	for _, r := range results {
		if len(out) == limit {
			break
		}
		out = append(out, r.entry)
	}
	return out
}

// Bootstrap 依命中次數與時間排序的前 limit 筆，供前端離線自動完成
func (i *Index) Bootstrap(limit int) []common.SuggestionEntry {
	if limit <= 0 || limit > i.opts.BootstrapMax {
		limit = i.opts.BootstrapMax
	}

	i.mu.RLock()
	all := make([]common.SuggestionEntry, 0, i.entries.Len())
	for _, key := range i.entries.Keys() {
		if entry, ok := i.entries.Peek(key); ok {
			all = append(all, entry)
		}
	}
	i.mu.RUnlock()

	sort.SliceStable(all, func(a, b int) bool {
		return newer(all[a], all[b])
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all
}

// Legacy 舊版食材建議：只比對標準食材名稱與關鍵字前綴
func (i *Index) Legacy(query string, limit int) []common.SuggestionEntry {
	q := Normalize(query)
	if len(q) < minQueryLength {
		return []common.SuggestionEntry{}
	}
	limit = i.clampLimit(limit)

	out := make([]common.SuggestionEntry, 0, limit)
	for _, key := range i.legacy {
		if len(out) == limit {
			break
		}
		if !strings.HasPrefix(key, q) {
			continue
		}
		out = append(out, common.SuggestionEntry{
			Title:     capitalize(key),
			Key:       key,
			SourceTag: SourceLegacy,
			Kind:      common.KindIngredient,
		})
	}
	return out
}

// Merge 主要結果在前，補上額外結果直到 limit，以鍵去重
func (i *Index) Merge(primary, extra []common.SuggestionEntry, limit int) []common.SuggestionEntry {
	limit = i.clampLimit(limit)
	out := make([]common.SuggestionEntry, 0, limit)
	seen := make(map[string]struct{}, limit)
	for _, list := range [][]common.SuggestionEntry{primary, extra} {
		for _, e := range list {
			if len(out) == limit {
				return out
			}
			if _, dup := seen[e.Key]; dup {
				continue
			}
			seen[e.Key] = struct{}{}
			out = append(out, e)
		}
	}
	return out
}

// newer 命中次數多者優先，其次最近出現
func newer(a, b common.SuggestionEntry) bool {
	if a.HitCount != b.HitCount {
		return a.HitCount > b.HitCount
	}
	if !a.LastSeen.Equal(b.LastSeen) {
		return a.LastSeen.After(b.LastSeen)
	}
	// LRU 的鍵順序不固定，完全同分時以鍵排序
	return a.Key < b.Key
}

func capitalize(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
