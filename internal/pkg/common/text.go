package common

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FoldAccents 去除變音符號（jalapeño -> jalapeno）
func FoldAccents(s string) string {
	// transformer 帶狀態，每次呼叫建立新的
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// CleanTerm 小寫、去頭尾空白、去變音符號、合併內部空白
func CleanTerm(s string) string {
	// 折疊後可能出現大寫（相容分解），所以前後都轉小寫
	return strings.Join(strings.Fields(strings.ToLower(FoldAccents(strings.ToLower(s)))), " ")
}

// TitleCase 每個單字首字大寫，保留其餘字母原樣
func TitleCase(s string) string {
	return cases.Title(language.English, cases.NoLower).String(s)
}
