package domain

// FieldKind 字段类型：单段文本或要点列表
type FieldKind string

const (
	FieldText FieldKind = "text"
	FieldList FieldKind = "list"
)

// TBD 缺失内容的占位文本
const TBD = "TBD"

// Field 内容结构中的一个命名字段
type Field struct {
	Key         string    `json:"key"`
	Kind        FieldKind `json:"kind"`
	Token       string    `json:"token"`   // 模板占位符，如 {{OVERVIEW}}
	Heading     string    `json:"heading"` // 模板中的章节标题
	Tag         string    `json:"tag"`     // 标签格式中的段名，如 OVERVIEW
	Description string    `json:"description"`
}

// IsList 是否为列表字段
func (f Field) IsList() bool {
	return f.Kind == FieldList
}

// Schema 有序字段集合，提示词、响应解析与模板填充共用同一份定义
type Schema struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// Field 根据 key 查找字段
func (s Schema) Field(key string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// Tokens 返回全部占位符
func (s Schema) Tokens() []string {
	tokens := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		tokens = append(tokens, f.Token)
	}
	return tokens
}

// Headings 返回全部章节标题
func (s Schema) Headings() []string {
	headings := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		headings = append(headings, f.Heading)
	}
	return headings
}

// KaizenSchema Kaizen 沟通材料的标准内容结构
func KaizenSchema() Schema {
	return Schema{
		Name: "kaizen-communication",
		Fields: []Field{
			{
				Key:         "overview",
				Kind:        FieldText,
				Token:       "{{OVERVIEW}}",
				Heading:     "Overview",
				Tag:         "OVERVIEW",
				Description: "2-4 sentence overview of the Kaizen event: scope, problem and outcome.",
			},
			{
				Key:         "challenges",
				Kind:        FieldList,
				Token:       "{{CHALLENGES}}",
				Heading:     "Key Challenges Identified",
				Tag:         "CHALLENGES",
				Description: "Current-state problems and root causes found during the event.",
			},
			{
				Key:         "improvements",
				Kind:        FieldList,
				Token:       "{{IMPROVEMENTS}}",
				Heading:     "Future-State Improvements",
				Tag:         "IMPROVEMENTS",
				Description: "Countermeasures and future-state changes agreed by the team.",
			},
			{
				Key:         "benefits",
				Kind:        FieldList,
				Token:       "{{BENEFITS}}",
				Heading:     "Organizational Benefits",
				Tag:         "BENEFITS",
				Description: "Expected or measured benefits; quantify only when the deck does.",
			},
			{
				Key:         "plan",
				Kind:        FieldList,
				Token:       "{{PLAN}}",
				Heading:     "Implementation Plan",
				Tag:         "PLAN",
				Description: "Next steps with owners and relative timing (e.g. 0-30 days, 30-90 days, 6-12 months).",
			},
			{
				Key:         "summary",
				Kind:        FieldText,
				Token:       "{{SUMMARY}}",
				Heading:     "Summary",
				Tag:         "SUMMARY",
				Description: "Short closing summary with the asks or decisions needed from leadership.",
			},
		},
	}
}
