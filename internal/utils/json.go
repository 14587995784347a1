package utils

import (
	"encoding/json"
	"strings"

	"k8s.io/klog/v2"
)

// ExtractJSON 从文本中提取第一个顶层 {...} 片段
// 按括号深度匹配，字符串字面量中的括号与转义字符不计入
func ExtractJSON(content string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(content); i++ {
		ch := content[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			if start >= 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				klog.V(6).Infof("[ExtractJSON] 提取到 JSON 片段，起始位置: %d, 结束位置: %d", start, i+1)
				return content[start : i+1], true
			}
		}
	}
	return "", false
}

func ToJSON(v any) string {
	jsonData, err := json.Marshal(v)
	if err != nil {
		klog.Errorf("JSON序列化失败: %v", err)
		return ""
	}
	return string(jsonData)
}

// ExtractFenced 提取第一个 ``` 代码块的内容
// langs 为允许的语言标识（忽略大小写），为空时接受任意标识；没有匹配的代码块时返回原始内容
func ExtractFenced(content string, langs ...string) (string, bool) {
	const fence = "```"
	rest := content
	for {
		open := strings.Index(rest, fence)
		if open < 0 {
			return content, false
		}
		afterOpen := rest[open+len(fence):]
		nl := strings.IndexByte(afterOpen, '\n')
		if nl < 0 {
			return content, false
		}
		lang := strings.TrimSpace(afterOpen[:nl])
		body := afterOpen[nl+1:]
		closeIdx := strings.Index(body, fence)
		if closeIdx < 0 {
			return content, false
		}
		if acceptLang(lang, langs) {
			klog.V(6).Infof("[ExtractFenced] 提取到代码块: lang=%q, length=%d", lang, closeIdx)
			return strings.TrimRight(body[:closeIdx], "\r\n"), true
		}
		rest = body[closeIdx+len(fence):]
	}
}

func acceptLang(lang string, langs []string) bool {
	if len(langs) == 0 || lang == "" {
		return true
	}
	for _, l := range langs {
		if strings.EqualFold(l, lang) {
			return true
		}
	}
	return false
}
