package service

import (
	"testing"

	"github.com/kaizen-comms/backend/internal/pkg/docx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type styledText struct {
	style string
	text  string
}

func documentParagraphs(t *testing.T, data []byte) []styledText {
	t.Helper()
	doc, err := docx.Open(data)
	require.NoError(t, err)
	var out []styledText
	for _, p := range doc.Paragraphs() {
		out = append(out, styledText{style: p.Style(), text: p.Text()})
	}
	return out
}

func TestWriteTextDocument(t *testing.T) {
	body := "# Problem\n\nIntake took **five** days.\nNo owner was named.\n\n" +
		"## Asks\n\n- Approve the pilot\n- Fund one analyst\n\n" +
		"1. Pilot\n2. Review\n\n---\n\n<div>raw</div>\n"
	data, err := WriteTextDocument("Executive Summary", body)
	require.NoError(t, err)

	assert.Equal(t, []styledText{
		{"Heading1", "Executive Summary"},
		{"Heading2", "Problem"},
		{"", "Intake took five days. No owner was named."},
		{"Heading3", "Asks"},
		{"ListBullet", "Approve the pilot"},
		{"ListBullet", "Fund one analyst"},
		{"ListNumber", "Pilot"},
		{"ListNumber", "Review"},
	}, documentParagraphs(t, data))
}

func TestWriteTextDocumentPlainLines(t *testing.T) {
	data, err := WriteTextDocument("Recognition Message", "Team,\n\nThank you for three great days.\n\nTBD: sponsor name")
	require.NoError(t, err)

	assert.Equal(t, []styledText{
		{"Heading1", "Recognition Message"},
		{"", "Team,"},
		{"", "Thank you for three great days."},
		{"", "TBD: sponsor name"},
	}, documentParagraphs(t, data))
}

func TestWriteTextDocumentResolvesEscapes(t *testing.T) {
	data, err := WriteTextDocument("Kaizen Wins & Benefits", "Scrap \\*down\\* 5% &amp; rework &#62; 0\n\nRun `a \\* b` daily")
	require.NoError(t, err)

	assert.Equal(t, []styledText{
		{"Heading1", "Kaizen Wins & Benefits"},
		{"", "Scrap *down* 5% & rework > 0"},
		{"", "Run a \\* b daily"},
	}, documentParagraphs(t, data))
}

func TestRenderHTML(t *testing.T) {
	html, err := RenderHTML("## Summary\n\n- TBD\n\n<script>alert(1)</script>")
	require.NoError(t, err)
	assert.Contains(t, html, "<h2>Summary</h2>")
	assert.Contains(t, html, "<li>TBD</li>")
	assert.NotContains(t, html, "<script>")
}
