package service

import (
	"fmt"
	"strings"

	"github.com/kaizen-comms/backend/internal/domain"
	"github.com/kaizen-comms/backend/internal/pkg/llm"
)

const systemPrompt = "You are an expert in Lean, Kaizen, and enterprise change management."

// PromptBuilder 组装生成请求的提示词
// 结构化文档的输出格式与解析器使用同一个 ResponseFormat
type PromptBuilder struct {
	Schema domain.Schema
	Format domain.ResponseFormat
}

// NewPromptBuilder 创建提示词构建器，format 为空时使用 JSON
func NewPromptBuilder(schema domain.Schema, format domain.ResponseFormat) *PromptBuilder {
	if format == "" {
		format = domain.FormatJSON
	}
	return &PromptBuilder{Schema: schema, Format: format}
}

// Build 生成系统提示与用户提示，幻灯片文本原样附在末尾
func (b *PromptBuilder) Build(doc domain.DocumentType, deckText string) llm.Prompt {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Write: %s\n\n", doc.Name)
	sb.WriteString("Requirements:\n")
	if doc.Instruction != "" {
		fmt.Fprintf(&sb, "- %s\n", doc.Instruction)
	}
	sb.WriteString("- Keep it concise, executive-ready, and specific to the deck\n")
	sb.WriteString("- Do NOT invent metrics; if numbers are missing, mark as \"TBD\" and list what is needed\n")

	if doc.Kind == domain.KindTemplate {
		sb.WriteString("\n")
		sb.WriteString(b.formatContract())
	} else {
		sb.WriteString("- Use clear headers and bullet points where appropriate\n")
	}

	sb.WriteString("\nKaizen Slide Content:\n")
	sb.WriteString(deckText)

	return llm.Prompt{System: systemPrompt, User: sb.String()}
}

func (b *PromptBuilder) formatContract() string {
	var sb strings.Builder
	switch b.Format {
	case domain.FormatTagged:
		sb.WriteString("Output format:\n")
		sb.WriteString("Return every section below wrapped in its tags, in this order, and nothing else.\n")
		sb.WriteString("Put each list item on its own line starting with \"- \".\n\n")
		for _, f := range b.Schema.Fields {
			fmt.Fprintf(&sb, "[%s]\n", f.Tag)
			if f.IsList() {
				fmt.Fprintf(&sb, "- item (%s)\n", f.Description)
			} else {
				fmt.Fprintf(&sb, "%s\n", f.Description)
			}
			fmt.Fprintf(&sb, "[/%s]\n", f.Tag)
		}
	default:
		sb.WriteString("Output format:\n")
		sb.WriteString("Return ONLY a single JSON object, with no commentary and no code fences, using exactly these keys:\n")
		for _, f := range b.Schema.Fields {
			kind := "string"
			if f.IsList() {
				kind = "array of strings"
			}
			fmt.Fprintf(&sb, "- %q (%s): %s\n", f.Key, kind, f.Description)
		}
		sb.WriteString("Use \"TBD\" for any value the deck does not support.\n")
	}
	return sb.String()
}
