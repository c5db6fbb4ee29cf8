package planner

import (
	"regexp"
	"strings"
)

// softSynonyms 违禁宣称词到安全替换词的固定映射（键为小写形式）
var softSynonyms = map[string]string{
	"scientifically proven": "research informed",
	"guaranteed":            "designed to",
	"guarantees":            "designed to",
	"guarantee":             "designed to",
	"miracle":               "remarkable",
	"instantly":             "quickly",
	"instant":               "quick",
	"cures":                 "supports",
	"cure":                  "support",
	"100%":                  "highly",
}

// defaultSoftReplacement 未在映射表中的违禁词统一替换为中性表述
const defaultSoftReplacement = "may help"

// claimPattern 编译违禁词的全词匹配模式
// "100%" 这类以符号结尾的词不适用 \b 右边界
func claimPattern(term string) *regexp.Regexp {
	quoted := regexp.QuoteMeta(strings.ToLower(term))
	if strings.HasSuffix(term, "%") {
		return regexp.MustCompile(`(?i)\b` + quoted)
	}
	return regexp.MustCompile(`(?i)\b` + quoted + `\b`)
}

// softenClaims 将文本中的违禁宣称词替换为安全同义词（大小写不敏感、全词匹配）
// terms 为计划约束配置的违禁词表；返回替换后的文本和被替换的原词列表
func softenClaims(text string, terms []string) (string, []string) {
	var softened []string
	for _, term := range terms {
		pattern := claimPattern(term)
		if !pattern.MatchString(text) {
			continue
		}
		replacement, ok := softSynonyms[strings.ToLower(term)]
		if !ok {
			replacement = defaultSoftReplacement
		}
		text = pattern.ReplaceAllString(text, replacement)
		softened = append(softened, strings.ToLower(term))
	}
	return text, softened
}

// findClaims 检查文本包含的违禁宣称词（仅检查，不替换）
func findClaims(text string, terms []string) []string {
	var found []string
	for _, term := range terms {
		if claimPattern(term).MatchString(text) {
			found = append(found, strings.ToLower(term))
		}
	}
	return found
}

// truncateWords 截断文本至 max 个词并附加省略标记
func truncateWords(text string, max int) string {
	words := strings.Fields(text)
	if len(words) <= max {
		return text
	}
	return strings.Join(words[:max], " ") + "..."
}
