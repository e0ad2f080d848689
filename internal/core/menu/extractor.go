package menu

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"dish-compat/internal/core/rules"
	"dish-compat/internal/pkg/common"

	"go.uber.org/zap"
)

const (
	minLineLength     = 5
	minTokenLength    = 3
	minNameLength     = 4
	fallbackMinLength = 7
	fallbackMaxLength = 59
)

// priceOnly 只有貨幣符號與數字的行
var priceOnly = regexp.MustCompile(`^[\s$€£¥]*[\d,.]+\s*$`)

// Extractor 從 OCR 文字中找出菜名候選
type Extractor struct {
	tables  *rules.Tables
	headers map[string]struct{}
	words   []string // 單字鍵，模糊比對
	phrases []string // 多字鍵，整段比對
}

// NewExtractor 創建候選擷取器
func NewExtractor(tables *rules.Tables) *Extractor {
	e := &Extractor{
		tables:  tables,
		headers: make(map[string]struct{}, len(tables.HeaderWords)),
	}
	for _, h := range tables.HeaderWords {
		e.headers[common.CleanTerm(h)] = struct{}{}
	}
	for _, key := range tables.KnowledgeKeys() {
		if strings.Contains(key, " ") {
			e.phrases = append(e.phrases, key)
		} else {
			e.words = append(e.words, key)
		}
	}
	return e
}

// Extract 逐行分析，保留第一次出現的候選
func (e *Extractor) Extract(raw string) []common.DishCandidate {
	candidates := make([]common.DishCandidate, 0)
	seen := make(map[string]struct{})

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		candidate, ok := e.parseLine(line)
		if !ok {
			continue
		}
		key := strings.ToLower(candidate.Name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		candidates = append(candidates, candidate)
	}

	common.LogDebug("菜單候選擷取完成",
		zap.Int("lines", strings.Count(raw, "\n")+1),
		zap.Int("candidates", len(candidates)),
	)
	return candidates
}

func (e *Extractor) parseLine(line string) (common.DishCandidate, bool) {
	length := utf8.RuneCountInString(line)
	if length < minLineLength || priceOnly.MatchString(line) {
		return common.DishCandidate{}, false
	}

	words := letterWords(line)
	if e.isHeader(words) {
		return common.DishCandidate{}, false
	}

	matched := e.match(words)
	if len(matched) > 0 {
		name := trimName(common.TitleCase(line))
		if utf8.RuneCountInString(name) < minNameLength {
			return common.DishCandidate{}, false
		}
		return common.DishCandidate{
			Name:               name,
			OriginalText:       line,
			MatchedIngredients: matched,
			IsAnalyzed:         true,
			Confidence:         len(matched),
		}, true
	}

	// 沒有認得的食材，但形狀像菜名仍保留給使用者
	first, _ := utf8.DecodeRuneInString(line)
	if !unicode.IsUpper(first) || length < fallbackMinLength || length > fallbackMaxLength {
		return common.DishCandidate{}, false
	}
	name := trimName(line)
	if utf8.RuneCountInString(name) < minNameLength {
		return common.DishCandidate{}, false
	}
	return common.DishCandidate{
		Name:               name,
		OriginalText:       line,
		MatchedIngredients: []common.KnowledgeEntry{},
	}, true
}

// isHeader 整行字詞都是分類標題用字
func (e *Extractor) isHeader(words []string) bool {
	if len(words) == 0 {
		return false
	}
	for _, w := range words {
		if _, ok := e.headers[w]; !ok {
			return false
		}
	}
	return true
}

func (e *Extractor) match(words []string) []common.KnowledgeEntry {
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if utf8.RuneCountInString(w) >= minTokenLength {
			tokens = append(tokens, w)
		}
	}
	padded := " " + strings.Join(words, " ") + " "

	var matched []common.KnowledgeEntry
	for _, key := range e.phrases {
		if strings.Contains(padded, " "+key+" ") {
			matched = append(matched, e.tables.KnowledgeBase[key])
		}
	}
	for _, key := range e.words {
		for _, tok := range tokens {
			if IsFuzzyMatch(tok, key) {
				matched = append(matched, e.tables.KnowledgeBase[key])
				break
			}
		}
	}
	return matched
}

// letterWords 非字母轉空白後的小寫字詞
func letterWords(line string) []string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, common.FoldAccents(line))
	return strings.Fields(mapped)
}

// trimName 去掉開頭非字母，以及結尾非字母（保留右括號）
func trimName(s string) string {
	s = strings.TrimLeftFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
	return strings.TrimRightFunc(s, func(r rune) bool { return !unicode.IsLetter(r) && r != ')' })
}
