package service

import (
	"strings"
	"unicode/utf8"
)

// TruncationMarker 追加在被截断文本之后
const TruncationMarker = "\n\n[TRUNCATED FOR DEMO COST CONTROL]"

// Truncate 按字符数截断文本，超出时保留前 maxChars 个字符并追加截断标记
// 可能截断在词或句子中间；maxChars <= 0 表示不截断
func Truncate(text string, maxChars int) (string, bool) {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text, false
	}
	// 已截断的文本在相同或更大的预算下保持不变
	if body, ok := strings.CutSuffix(text, TruncationMarker); ok && utf8.RuneCountInString(body) <= maxChars {
		return text, false
	}

	n := 0
	for i := range text {
		if n == maxChars {
			return text[:i] + TruncationMarker, true
		}
		n++
	}
	return text + TruncationMarker, true
}
