package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Content 按 Schema 归一化后的生成内容
// 每个字段都有值：文本字段为字符串，列表字段为字符串切片
type Content struct {
	schema Schema
	texts  map[string]string
	lists  map[string][]string
}

// Section 面向展示的字段内容
type Section struct {
	Key     string    `json:"key"`
	Heading string    `json:"heading"`
	Kind    FieldKind `json:"kind"`
	Text    string    `json:"text,omitempty"`
	Items   []string  `json:"items,omitempty"`
}

// NewContent 创建所有字段为空的内容
func NewContent(schema Schema) Content {
	c := Content{
		schema: schema,
		texts:  make(map[string]string),
		lists:  make(map[string][]string),
	}
	for _, f := range schema.Fields {
		if f.IsList() {
			c.lists[f.Key] = []string{}
		} else {
			c.texts[f.Key] = ""
		}
	}
	return c
}

// Normalize 将原始键值映射归一化为 Content
// 缺失或为 null 的值按空处理，未知键忽略
func Normalize(schema Schema, raw map[string]any) Content {
	c := NewContent(schema)
	for _, f := range schema.Fields {
		v, ok := lookup(raw, f.Key)
		if !ok || v == nil {
			continue
		}
		if f.IsList() {
			c.lists[f.Key] = normalizeList(v)
		} else {
			c.texts[f.Key] = normalizeText(v)
		}
	}
	return c
}

// lookup 优先精确匹配，其次忽略大小写匹配
func lookup(raw map[string]any, key string) (any, bool) {
	if v, ok := raw[key]; ok {
		return v, true
	}
	for k, v := range raw {
		if strings.EqualFold(strings.TrimSpace(k), key) {
			return v, true
		}
	}
	return nil, false
}

func normalizeText(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := normalizeText(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	case []string:
		items := make([]any, len(t))
		for i, s := range t {
			items[i] = s
		}
		return normalizeText(items)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case map[string]any:
		parts := make([]string, 0, len(t))
		for k, item := range t {
			if s := normalizeText(item); s != "" {
				parts = append(parts, k+": "+s)
			}
		}
		return strings.Join(parts, "; ")
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func normalizeList(v any) []string {
	var candidates []string
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if item == nil {
				continue
			}
			candidates = append(candidates, normalizeText(item))
		}
	case []string:
		candidates = append(candidates, t...)
	case string:
		candidates = strings.Split(t, "\n")
	default:
		candidates = []string{normalizeText(t)}
	}

	items := make([]string, 0, len(candidates))
	for _, s := range candidates {
		if s = StripBullet(s); s != "" {
			items = append(items, s)
		}
	}
	return items
}

var bulletPattern = regexp.MustCompile(`^(?:[-*]\s+|•\s*)`)

// StripBullet 去掉首尾空白以及行首的一个项目符号
// - 和 * 后必须跟空白，"**粗体**"、"-5%" 保持原样
func StripBullet(s string) string {
	s = strings.TrimSpace(s)
	if s == "-" || s == "*" || s == "•" {
		return ""
	}
	return bulletPattern.ReplaceAllString(s, "")
}

// Schema 返回内容对应的结构定义
func (c Content) Schema() Schema {
	return c.schema
}

// Text 文本字段的值
func (c Content) Text(key string) string {
	return c.texts[key]
}

// Items 列表字段的值
func (c Content) Items(key string) []string {
	return c.lists[key]
}

// SetText 设置文本字段
func (c Content) SetText(key, value string) {
	c.texts[key] = strings.TrimSpace(value)
}

// SetItems 设置列表字段
func (c Content) SetItems(key string, items []string) {
	c.lists[key] = normalizeList(items)
}

// TextOrTBD 空值回退为 TBD
func (c Content) TextOrTBD(key string) string {
	if v := c.texts[key]; v != "" {
		return v
	}
	return TBD
}

// ItemsOrTBD 空列表回退为单个 TBD
func (c Content) ItemsOrTBD(key string) []string {
	if items := c.lists[key]; len(items) > 0 {
		return items
	}
	return []string{TBD}
}

// Sections 按字段顺序输出内容（空值已替换为 TBD）
func (c Content) Sections() []Section {
	sections := make([]Section, 0, len(c.schema.Fields))
	for _, f := range c.schema.Fields {
		s := Section{Key: f.Key, Heading: f.Heading, Kind: f.Kind}
		if f.IsList() {
			s.Items = c.ItemsOrTBD(f.Key)
		} else {
			s.Text = c.TextOrTBD(f.Key)
		}
		sections = append(sections, s)
	}
	return sections
}

// Markdown 将内容渲染为 Markdown，用于预览
func (c Content) Markdown() string {
	var sb strings.Builder
	for i, s := range c.Sections() {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("## ")
		sb.WriteString(s.Heading)
		sb.WriteString("\n\n")
		if s.Kind == FieldList {
			for _, item := range s.Items {
				sb.WriteString("- ")
				sb.WriteString(item)
				sb.WriteString("\n")
			}
		} else {
			sb.WriteString(s.Text)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
