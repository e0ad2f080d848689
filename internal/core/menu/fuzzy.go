package menu

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

const (
	maxLengthGap   = 2
	minFuzzyLength = 4
	shortKeyLength = 6
)

// IsFuzzyMatch 判斷 OCR 單字是否近似知識庫鍵
// 完全相同一定成立；否則長度差不超過 2、單字至少 4 個字元，
// 鍵長 6 以內允許 1 次編輯，更長允許 2 次
func IsFuzzyMatch(word, key string) bool {
	w := strings.ToLower(word)
	k := strings.ToLower(key)
	if w == k {
		return true
	}

	wl, kl := utf8.RuneCountInString(w), utf8.RuneCountInString(k)
	if abs(wl-kl) > maxLengthGap {
		return false
	}
	if wl < minFuzzyLength {
		return false
	}

	allowed := 1
	if kl > shortKeyLength {
		allowed = 2
	}
	return levenshtein.ComputeDistance(w, k) <= allowed
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
