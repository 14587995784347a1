package service

import (
	"bytes"
	"strings"

	"github.com/kaizen-comms/backend/internal/pkg/docx"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

var markdown = goldmark.New()

// RenderHTML 将 Markdown 渲染为预览 HTML，原始 HTML 不输出
func RenderHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// WriteTextDocument 将生成的自由文本写成 Word 文档
// 文档名作为一级标题，Markdown 标题映射为二、三级标题，列表项使用列表样式
func WriteTextDocument(title, body string) ([]byte, error) {
	b := docx.NewBuilder()
	b.Heading(title, 1)

	source := []byte(body)
	root := markdown.Parser().Parse(text.NewReader(source))
	w := &docWriter{b: b, source: source}
	w.blocks(root)
	return b.Bytes()
}

type docWriter struct {
	b      *docx.Builder
	source []byte
}

func (w *docWriter) blocks(parent ast.Node) {
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		w.block(n, "")
	}
}

// block 写出一个块节点，listStyle 非空时段落使用列表样式
func (w *docWriter) block(n ast.Node, listStyle string) {
	switch node := n.(type) {
	case *ast.Heading:
		level := node.Level + 1
		w.paragraph(w.inline(node), docx.HeadingStyle(level))
	case *ast.Paragraph, *ast.TextBlock:
		style := listStyle
		if style == "" {
			style = docx.StyleNormal
		}
		w.paragraph(w.inline(node), style)
	case *ast.List:
		style := docx.StyleListBullet
		if node.IsOrdered() {
			style = docx.StyleListNumber
		}
		for item := node.FirstChild(); item != nil; item = item.NextSibling() {
			for c := item.FirstChild(); c != nil; c = c.NextSibling() {
				w.block(c, style)
			}
		}
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		lines := node.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			w.paragraph(strings.TrimRight(string(seg.Value(w.source)), "\r\n"), docx.StyleNormal)
		}
	case *ast.Blockquote:
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			w.block(c, listStyle)
		}
	case *ast.ThematicBreak, *ast.HTMLBlock:
	default:
		w.paragraph(w.inline(node), docx.StyleNormal)
	}
}

func (w *docWriter) paragraph(s, style string) {
	if strings.TrimSpace(s) == "" {
		return
	}
	w.b.Paragraph(s, style)
}

// plainText 反转义标点并解析实体引用，代码片段原样输出
func plainText(t *ast.Text, source []byte) []byte {
	v := t.Segment.Value(source)
	if t.IsRaw() {
		return v
	}
	v = util.UnescapePunctuations(v)
	v = util.ResolveNumericReferences(v)
	return util.ResolveEntityNames(v)
}

// inline 拼接行内节点的纯文本，软换行转为空格，硬换行保留
func (w *docWriter) inline(n ast.Node) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			sb.Write(plainText(t, w.source))
			if t.HardLineBreak() {
				sb.WriteByte('\n')
			} else if t.SoftLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(t.Value)
		case *ast.AutoLink:
			sb.Write(t.Label(w.source))
		case *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
