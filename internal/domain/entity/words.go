package entity

import "strings"

// countWords 以空白分词统计词数
func countWords(s string) int {
	return len(strings.Fields(s))
}

// WordCount 统计配音脚本的词数
func (v VoiceOver) WordCount() int {
	return countWords(v.Script)
}
