package docx

import (
	"encoding/xml"
	"regexp"
	"strings"
)

// Paragraph 文档中的一个段落
// 通过 Document.Paragraphs 取得的段落来自原文档，InsertParagraphAfter 返回的段落为新插入段落
type Paragraph struct {
	doc *Document

	start, end int
	openTag    string
	pPr        string
	rPr        string

	text      string
	style     string
	origStyle string
	inTable   bool
	bodyLevel bool

	modified bool
	removed  bool

	// 新插入段落记录宿主（原文档段落），原文档段落记录其后插入的段落
	host  *Paragraph
	after []*Paragraph
}

// Text 段落文本，w:tab 记为 \t，w:br 记为 \n
func (p *Paragraph) Text() string { return p.text }

// Style 段落样式 ID，未设置时为空
func (p *Paragraph) Style() string { return p.style }

// InTable 段落是否位于表格中
func (p *Paragraph) InTable() bool { return p.inTable }

// BodyLevel 段落是否为 w:body 的直接子元素
func (p *Paragraph) BodyLevel() bool { return p.bodyLevel }

// Removed 段落是否已被删除
func (p *Paragraph) Removed() bool { return p.removed }

// SetText 用单个文本 run 替换段落内容，保留段落属性与首个 run 的字符格式
func (p *Paragraph) SetText(text string) {
	p.text = cleanText(text)
	p.modified = true
}

// SetStyle 设置段落样式 ID
func (p *Paragraph) SetStyle(styleID string) {
	if p.style == styleID {
		return
	}
	p.style = styleID
	p.modified = true
}

// Remove 删除段落
// 表格单元格至少需要一个段落，单元格内的段落只清空文本
func (p *Paragraph) Remove() {
	if p.host != nil {
		p.host.after = removeParagraph(p.host.after, p)
		return
	}
	if p.inTable {
		p.SetText("")
		return
	}
	p.removed = true
}

// InsertParagraphAfter 在段落之后插入新段落并返回
// 对同一段落多次调用时，后插入的段落位于更靠后的位置
func (p *Paragraph) InsertParagraphAfter(text, styleID string) *Paragraph {
	host := p
	if p.host != nil {
		host = p.host
	}
	np := &Paragraph{
		doc:       p.doc,
		text:      cleanText(text),
		style:     styleID,
		inTable:   p.inTable,
		bodyLevel: p.bodyLevel,
		modified:  true,
		host:      host,
	}

	if p == host {
		host.after = append(host.after, np)
		return np
	}
	pos := len(host.after)
	for i, q := range host.after {
		if q == p {
			pos = i + 1
			break
		}
	}
	host.after = append(host.after, nil)
	copy(host.after[pos+1:], host.after[pos:])
	host.after[pos] = np
	return np
}

func removeParagraph(list []*Paragraph, target *Paragraph) []*Paragraph {
	for i, q := range list {
		if q == target {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// render 生成修改后的段落 XML
func (p *Paragraph) render(prefix string) string {
	var sb strings.Builder

	open := p.openTag
	if open == "" {
		open = "<" + prefix + ":p>"
	} else if strings.HasSuffix(open, "/>") {
		open = strings.TrimRight(strings.TrimSuffix(open, "/>"), " \t\r\n") + ">"
	}
	sb.WriteString(open)

	pPr := p.pPr
	if p.style != p.origStyle || p.openTag == "" {
		pPr = withStyle(pPr, p.style, prefix)
	}
	sb.WriteString(pPr)

	if p.text != "" {
		writeRun(&sb, prefix, p.rPr, p.text)
	}
	sb.WriteString("</" + prefix + ":p>")
	return sb.String()
}

func writeRun(sb *strings.Builder, prefix, rPr, text string) {
	tag := func(name string) string { return prefix + ":" + name }

	sb.WriteString("<" + tag("r") + ">")
	sb.WriteString(rPr)
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			sb.WriteString("<" + tag("br") + "/>")
		}
		for j, seg := range strings.Split(line, "\t") {
			if j > 0 {
				sb.WriteString("<" + tag("tab") + "/>")
			}
			if seg == "" {
				continue
			}
			sb.WriteString("<" + tag("t") + ` xml:space="preserve">`)
			_ = xml.EscapeText(sb, []byte(seg))
			sb.WriteString("</" + tag("t") + ">")
		}
	}
	sb.WriteString("</" + tag("r") + ">")
}

var pStylePattern = regexp.MustCompile(`^<(\w+):pStyle\b[^>]*/>|^<(\w+):pStyle\b[^>]*>.*?</(\w+):pStyle>`)

// withStyle 返回设置了 pStyle 的 pPr；styleID 为空时移除 pStyle
// pStyle 必须是 pPr 的第一个子元素，pPrChange 中记录的旧样式保持不变
func withStyle(pPr, styleID, prefix string) string {
	styleTag := ""
	if styleID != "" {
		var sb strings.Builder
		sb.WriteString("<" + prefix + ":pStyle " + prefix + `:val="`)
		_ = xml.EscapeText(&sb, []byte(styleID))
		sb.WriteString(`"/>`)
		styleTag = sb.String()
	}

	if pPr == "" {
		if styleTag == "" {
			return ""
		}
		return "<" + prefix + ":pPr>" + styleTag + "</" + prefix + ":pPr>"
	}

	idx := strings.Index(pPr, ">")
	if idx < 0 {
		return pPr
	}
	if pPr[idx-1] == '/' {
		// <w:pPr/> 自闭合
		if styleTag == "" {
			return pPr
		}
		return "<" + prefix + ":pPr>" + styleTag + "</" + prefix + ":pPr>"
	}
	rest := strings.TrimLeft(pPr[idx+1:], " \t\r\n")
	rest = pStylePattern.ReplaceAllString(rest, "")
	return pPr[:idx+1] + styleTag + rest
}

// cleanText 统一换行并去掉 XML 1.0 不允许的字符
func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t' || r == '\n':
			return r
		case r < 0x20, r == 0xFFFE, r == 0xFFFF:
			return -1
		case r >= 0xD800 && r <= 0xDFFF:
			return -1
		}
		return r
	}, s)
}
