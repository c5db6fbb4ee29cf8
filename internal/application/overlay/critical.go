package overlay

import (
	"strings"
	"unicode"

	"adcraft-api/internal/domain/entity"
)

// ctaKeywords 行动号召关键词，命中任意一个即视为关键字幕
var ctaKeywords = []string{
	"buy", "shop", "order", "claim", "get", "grab",
	"tap", "click", "swipe", "subscribe", "sign up",
	"save", "free", "now", "today", "limited",
}

// currencySymbols 价格符号
const currencySymbols = "$€£¥"

// IsCritical 判断字幕是否承载关键信息
// 价格、百分比、数字、行动号召，以及 hook 节拍首秒内出现的字幕都算关键：
// 数字和行动指令的正确展示不能交给运气
func IsCritical(ov entity.Overlay, hookStart, hookWindow float64) bool {
	if ov.Critical {
		return true
	}
	if ov.Start >= hookStart && ov.Start < hookStart+hookWindow {
		return true
	}
	return containsCriticalText(ov.Text)
}

// containsCriticalText 检查文本是否包含数字、价格符号或行动号召
func containsCriticalText(text string) bool {
	for _, r := range text {
		if unicode.IsDigit(r) {
			return true
		}
		if strings.ContainsRune(currencySymbols, r) {
			return true
		}
	}
	if strings.ContainsRune(text, '%') {
		return true
	}
	lower := strings.ToLower(text)
	for _, kw := range ctaKeywords {
		if containsWord(lower, kw) {
			return true
		}
	}
	return false
}

// containsWord 全词匹配，避免 "get" 命中 "together" 这类误报
func containsWord(text, word string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		leftOK := start == 0 || !isWordChar(rune(text[start-1]))
		rightOK := end == len(text) || !isWordChar(rune(text[end]))
		if leftOK && rightOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '\''
}
