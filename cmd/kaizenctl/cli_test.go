package main

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kaizen-comms/backend/config"
	"github.com/kaizen-comms/backend/internal/pkg/docx"
	"github.com/kaizen-comms/backend/internal/pkg/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct{ reply string }

func (s stubGenerator) Name() string { return "stub" }

func (s stubGenerator) Generate(context.Context, llm.Prompt) (*llm.Completion, error) {
	return &llm.Completion{Text: s.reply, Model: "stub-model", Usage: llm.Usage{TotalTokens: 12}}, nil
}

func writeDeck(t *testing.T, dir string) string {
	t.Helper()
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	w, err := zw.Create("ppt/slides/slide1.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" ` +
		`xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"><p:cSld><p:spTree>` +
		`<p:sp><p:txBody><a:p><a:r><a:t>Root cause: late handoffs</a:t></a:r></a:p></p:txBody></p:sp>` +
		`</p:spTree></p:cSld></p:sld>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	path := filepath.Join(dir, "intake.pptx")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCatalogCommand(t *testing.T) {
	out, _, err := run(t, "catalog")
	require.NoError(t, err)
	assert.Contains(t, out, "executive-summary")
	assert.Contains(t, out, "Kaizen Communication Summary")
	assert.Equal(t, 9, strings.Count(out, "\n"))
}

func TestExtractCommand(t *testing.T) {
	deck := writeDeck(t, t.TempDir())
	out, info, err := run(t, "extract", deck, "--max-chars", "5000")
	require.NoError(t, err)
	assert.Equal(t, "Slide 1:\nRoot cause: late handoffs\n", out)
	assert.Contains(t, info, "1 slides")
	assert.Contains(t, info, "truncated=false")

	_, _, err = run(t, "extract", deck, "--max-chars", "10")
	assert.Error(t, err)
}

func TestTemplateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "template.docx")
	_, _, err := run(t, "template", "--out", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	doc, err := docx.Open(data)
	require.NoError(t, err)
	assert.Contains(t, doc.Text(), "{{SUMMARY}}")
}

func TestGenerateCommand(t *testing.T) {
	dir := t.TempDir()
	deck := writeDeck(t, dir)
	original := newGenerator
	newGenerator = func(*config.Config) (llm.Generator, error) {
		return stubGenerator{reply: `{"overview":"X","challenges":["Handoff delays"]}`}, nil
	}
	t.Cleanup(func() { newGenerator = original })

	out := filepath.Join(dir, "summary.docx")
	stdout, _, err := run(t, "generate", "--deck", deck, "--document", "kaizen-communication-summary", "--out", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Generated: Kaizen Communication Summary")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	doc, err := docx.Open(data)
	require.NoError(t, err)
	assert.Contains(t, doc.Text(), "Handoff delays")
	assert.NotContains(t, doc.Text(), "{{")
}

func TestGenerateCommandRequiresFlags(t *testing.T) {
	_, _, err := run(t, "generate", "--deck", "x.pptx")
	assert.ErrorContains(t, err, "document")
}
