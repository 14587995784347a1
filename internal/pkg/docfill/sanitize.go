package docfill

import (
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"k8s.io/klog/v2"
)

// asciiPunctuation 常见排版符号到 ASCII 的映射
var asciiPunctuation = map[rune]rune{
	'\u2018': '\'', '\u2019': '\'', '\u201a': '\'', '\u201b': '\'', '\u2032': '\'',
	'\u201c': '"', '\u201d': '"', '\u201e': '"', '\u201f': '"', '\u2033': '"',
	'\u00ab': '"', '\u00bb': '"',
	'\u2010': '-', '\u2011': '-', '\u2012': '-', '\u2013': '-', '\u2014': '-', '\u2015': '-', '\u2212': '-',
	'\u2022': '-', '\u2023': '-', '\u2043': '-', '\u25e6': '-', '\u25aa': '-', '\u25cf': '-', '\u00b7': '-',
}

func newSanitizer() transform.Transformer {
	return transform.Chain(
		norm.NFKC,
		runes.Map(func(r rune) rune {
			if m, ok := asciiPunctuation[r]; ok {
				return m
			}
			return r
		}),
		runes.Remove(runes.Predicate(func(r rune) bool {
			return r > unicode.MaxASCII && unicode.IsPunct(r)
		})),
	)
}

// SanitizeText 统一为 ASCII 标点：NFKC 归一化，引号、破折号、项目符号映射为 ASCII，
// 去掉其余非 ASCII 标点；字母与数字保持不变
func SanitizeText(s string) string {
	out, _, err := transform.String(newSanitizer(), s)
	if err != nil {
		klog.Warningf("[docfill] 文本规范化失败，使用原文: %v", err)
		return s
	}
	return out
}
