package service

import (
	"strings"
	"testing"

	"github.com/kaizen-comms/backend/internal/domain"
	"github.com/stretchr/testify/assert"
)

const sampleDeck = "Slide 1:\nRoot cause: late handoffs\n\nSlide 2:\nProposed fix: single queue"

func TestPromptBuilderTextDocument(t *testing.T) {
	doc := domain.DocumentType{
		Name:        "Executive Summary",
		Kind:        domain.KindText,
		Instruction: "One page max. Audience: ELT.",
	}
	p := NewPromptBuilder(domain.KaizenSchema(), "").Build(doc, sampleDeck)

	assert.Contains(t, p.System, "expert in Lean, Kaizen, and enterprise change management")
	assert.Contains(t, p.User, "Write: Executive Summary")
	assert.Contains(t, p.User, "- One page max. Audience: ELT.")
	assert.Contains(t, p.User, `Do NOT invent metrics; if numbers are missing, mark as "TBD"`)
	assert.Contains(t, p.User, "Use clear headers and bullet points")
	assert.True(t, strings.HasSuffix(p.User, "Kaizen Slide Content:\n"+sampleDeck))
	assert.NotContains(t, p.User, "JSON")
}

func TestPromptBuilderJSONContract(t *testing.T) {
	doc := domain.DocumentType{Name: "Kaizen Communication Summary", Kind: domain.KindTemplate}
	p := NewPromptBuilder(domain.KaizenSchema(), domain.FormatJSON).Build(doc, sampleDeck)

	assert.Contains(t, p.User, "Return ONLY a single JSON object")
	for _, key := range []string{`"overview" (string)`, `"challenges" (array of strings)`, `"plan" (array of strings)`, `"summary" (string)`} {
		assert.Contains(t, p.User, key)
	}
	assert.NotContains(t, p.User, "[OVERVIEW]")
	assert.True(t, strings.HasSuffix(p.User, sampleDeck))
}

func TestPromptBuilderTaggedContract(t *testing.T) {
	doc := domain.DocumentType{Name: "Kaizen Communication Summary", Kind: domain.KindTemplate}
	p := NewPromptBuilder(domain.KaizenSchema(), domain.FormatTagged).Build(doc, sampleDeck)

	for _, f := range domain.KaizenSchema().Fields {
		assert.Contains(t, p.User, "["+f.Tag+"]")
		assert.Contains(t, p.User, "[/"+f.Tag+"]")
	}
	assert.NotContains(t, p.User, "JSON")
}
