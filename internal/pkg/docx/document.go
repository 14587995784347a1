// Package docx 提供对 Word (.docx) 文档段落的读取与修改
//
// 只解析 word/document.xml 中的段落边界、文本与样式；其余 XML（表格结构、
// 节属性、图片等）以及包内其他部件在保存时原样保留。所有修改先记录在
// 解析时得到的段落快照上，Bytes 时一次性生成新的 document.xml。
package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"k8s.io/klog/v2"
)

const (
	nsWordML = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

	mainPart   = "word/document.xml"
	stylesPart = "word/styles.xml"

	// MimeType .docx 文件的 MIME 类型
	MimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// ErrInvalidDocument 文件不是可解析的 Word 文档
var ErrInvalidDocument = errors.New("invalid word document")

// Document 已打开的 Word 文档
type Document struct {
	files      []*zip.File
	raw        []byte
	prefix     string
	paragraphs []*Paragraph
	styles     styleSheet
}

// Open 从字节打开 .docx 文档
func Open(data []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	d := &Document{files: zr.File}
	var stylesXML []byte
	for _, f := range zr.File {
		switch f.Name {
		case mainPart:
			if d.raw, err = readZipFile(f); err != nil {
				return nil, fmt.Errorf("%w: read %s: %v", ErrInvalidDocument, mainPart, err)
			}
		case stylesPart:
			if stylesXML, err = readZipFile(f); err != nil {
				return nil, fmt.Errorf("%w: read %s: %v", ErrInvalidDocument, stylesPart, err)
			}
		}
	}
	if d.raw == nil {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidDocument, mainPart)
	}

	if d.prefix, d.paragraphs, err = parseParagraphs(d.raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	for _, p := range d.paragraphs {
		p.doc = d
	}

	if stylesXML != nil {
		if d.styles, err = parseStyles(stylesXML); err != nil {
			klog.Warningf("[docx] 样式表解析失败，忽略: %v", err)
		}
	}

	klog.V(6).Infof("[docx] 打开文档: paragraphs=%d, styles=%d", len(d.paragraphs), len(d.styles.ids))
	return d, nil
}

// Paragraphs 返回解析时的段落快照（文档顺序，包含表格单元格内的段落）
// 新插入的段落不在其中，删除的段落仍保留在快照里
func (d *Document) Paragraphs() []*Paragraph {
	out := make([]*Paragraph, len(d.paragraphs))
	copy(out, d.paragraphs)
	return out
}

// BodyParagraphs 返回正文层级（不在表格内）的段落快照
func (d *Document) BodyParagraphs() []*Paragraph {
	out := make([]*Paragraph, 0, len(d.paragraphs))
	for _, p := range d.paragraphs {
		if p.bodyLevel {
			out = append(out, p)
		}
	}
	return out
}

// HasStyle 判断样式表中是否存在指定样式（按 styleId 或名称）
func (d *Document) HasStyle(nameOrID string) bool {
	_, ok := d.ResolveStyle(nameOrID)
	return ok
}

// ResolveStyle 将样式名称或 ID 解析为 styleId
func (d *Document) ResolveStyle(nameOrID string) (string, bool) {
	return d.styles.resolve(nameOrID)
}

// Text 返回当前所有段落文本（含待写入的修改），以换行连接
func (d *Document) Text() string {
	var lines []string
	for _, p := range d.paragraphs {
		if p.removed {
			continue
		}
		lines = append(lines, p.Text())
		for _, ins := range p.after {
			lines = append(lines, ins.Text())
		}
	}
	return strings.Join(lines, "\n")
}

// Bytes 应用所有修改并序列化为新的 .docx
// 不改变 Document 本身，可重复调用
func (d *Document) Bytes() ([]byte, error) {
	body := d.render()

	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	for _, f := range d.files {
		if f.Name != mainPart {
			if err := zw.Copy(f); err != nil {
				return nil, fmt.Errorf("copy %s: %w", f.Name, err)
			}
			continue
		}
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     f.Name,
			Method:   zip.Deflate,
			Modified: f.Modified,
		})
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", f.Name, err)
		}
		if _, err := w.Write(body); err != nil {
			return nil, fmt.Errorf("write %s: %w", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// render 按快照顺序拼接 document.xml：未修改的段落沿用原始字节
func (d *Document) render() []byte {
	out := new(bytes.Buffer)
	out.Grow(len(d.raw))
	cursor := 0
	for _, p := range d.paragraphs {
		out.Write(d.raw[cursor:p.start])
		switch {
		case p.removed:
		case p.modified:
			out.WriteString(p.render(d.prefix))
		default:
			out.Write(d.raw[p.start:p.end])
		}
		for _, ins := range p.after {
			out.WriteString(ins.render(d.prefix))
		}
		cursor = p.end
	}
	out.Write(d.raw[cursor:])
	return out.Bytes()
}

// parseParagraphs 扫描 document.xml，记录每个顶层 w:p 的字节区间、文本与样式
// 嵌套在段落内部（如文本框）的段落归属外层段落，不单独列出
func parseParagraphs(raw []byte) (string, []*Paragraph, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))

	var (
		prefix     = "w"
		paragraphs []*Paragraph
		depth      int
		bodyDepth  = -1
		tblDepth   int

		cur       *Paragraph
		curDepth  int
		nestedP   int
		runDepth  = -1
		pPrStart  = -1
		rPrStart  = -1
		rPrDone   bool
		inText    bool
		text      strings.Builder
	)

	for {
		start := int(dec.InputOffset())
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", nil, err
		}
		end := int(dec.InputOffset())

		switch t := tok.(type) {
		case xml.StartElement:
			level := depth
			depth++
			if level == 0 {
				prefix = mainPrefix(t.Attr, prefix)
			}
			if t.Name.Space != prefix {
				continue
			}
			inPara := cur != nil && nestedP == 0
			switch t.Name.Local {
			case "body":
				if bodyDepth < 0 {
					bodyDepth = level
				}
			case "tbl":
				tblDepth++
			case "p":
				if cur != nil {
					nestedP++
					continue
				}
				cur = &Paragraph{
					start:     start,
					openTag:   string(raw[start:end]),
					inTable:   tblDepth > 0,
					bodyLevel: bodyDepth >= 0 && level == bodyDepth+1,
				}
				curDepth = level
				text.Reset()
				runDepth, pPrStart, rPrStart, rPrDone, inText = -1, -1, -1, false, false
			case "pPr":
				if inPara && level == curDepth+1 {
					pPrStart = start
				}
			case "pStyle":
				if inPara && pPrStart >= 0 && level == curDepth+2 {
					cur.style = attrValue(t.Attr, prefix, "val")
				}
			case "r":
				if inPara && runDepth < 0 {
					runDepth = level
				}
			case "rPr":
				if inPara && runDepth >= 0 && level == runDepth+1 && !rPrDone {
					rPrStart = start
				}
			case "t":
				if inPara && runDepth >= 0 {
					inText = true
				}
			case "tab":
				if inPara && runDepth >= 0 {
					text.WriteByte('\t')
				}
			case "br", "cr":
				if inPara && runDepth >= 0 {
					text.WriteByte('\n')
				}
			}

		case xml.EndElement:
			depth--
			level := depth
			if t.Name.Space != prefix {
				continue
			}
			switch t.Name.Local {
			case "tbl":
				tblDepth--
			case "p":
				if cur == nil {
					continue
				}
				if nestedP > 0 {
					nestedP--
					continue
				}
				cur.end = end
				cur.text = text.String()
				cur.origStyle = cur.style
				paragraphs = append(paragraphs, cur)
				cur = nil
			case "pPr":
				if cur != nil && nestedP == 0 && pPrStart >= 0 && level == curDepth+1 {
					cur.pPr = string(raw[pPrStart:end])
					pPrStart = -1
				}
			case "rPr":
				if cur != nil && nestedP == 0 && rPrStart >= 0 && level == runDepth+1 {
					cur.rPr = string(raw[rPrStart:end])
					rPrStart = -1
					rPrDone = true
				}
			case "r":
				if cur != nil && level == runDepth {
					runDepth = -1
					rPrDone = true
				}
			case "t":
				inText = false
			}

		case xml.CharData:
			if inText && cur != nil && nestedP == 0 {
				text.Write(t)
			}
		}
	}

	if cur != nil {
		return "", nil, errors.New("unterminated paragraph")
	}
	return prefix, paragraphs, nil
}

// mainPrefix 查找绑定到 WordprocessingML 主命名空间的前缀
func mainPrefix(attrs []xml.Attr, fallback string) string {
	for _, a := range attrs {
		if a.Name.Space == "xmlns" && a.Value == nsWordML {
			return a.Name.Local
		}
	}
	return fallback
}

func attrValue(attrs []xml.Attr, prefix, local string) string {
	for _, a := range attrs {
		if a.Name.Space == prefix && a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
