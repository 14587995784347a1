// Package deck 从 PowerPoint (.pptx) 幻灯片中提取纯文本
package deck

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"
	"k8s.io/klog/v2"
)

const (
	nsPresentationML = "http://schemas.openxmlformats.org/presentationml/2006/main"
	nsDrawingML      = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsRelationships  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"

	presentationPart = "ppt/presentation.xml"
	presentationRels = "ppt/_rels/presentation.xml.rels"
)

// ErrInvalidDeck 文件不是可读取的 pptx
var ErrInvalidDeck = errors.New("invalid slide deck")

var slidePartPattern = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// Slide 单页幻灯片提取结果
type Slide struct {
	Number int      `json:"number"` // 从 1 开始，按演示文稿中的顺序
	Shapes []string `json:"shapes"` // 非空形状文本（已去除首尾空白）
}

// Deck 整个演示文稿的文本
type Deck struct {
	Slides []Slide `json:"slides"`
}

// Text 拼接为 "Slide n:" 分段文本，无文本的幻灯片被省略
func (d *Deck) Text() string {
	blocks := make([]string, 0, len(d.Slides))
	for _, s := range d.Slides {
		if len(s.Shapes) == 0 {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("Slide %d:\n%s", s.Number, strings.Join(s.Shapes, "\n")))
	}
	return strings.Join(blocks, "\n\n")
}

// TextSlideCount 含文本的幻灯片数量
func (d *Deck) TextSlideCount() int {
	n := 0
	for _, s := range d.Slides {
		if len(s.Shapes) > 0 {
			n++
		}
	}
	return n
}

// ExtractText 直接返回幻灯片文本
func ExtractText(data []byte) (string, error) {
	d, err := Parse(data)
	if err != nil {
		return "", err
	}
	return d.Text(), nil
}

// Parse 读取 pptx 并提取每页幻灯片的形状文本
func Parse(data []byte) (*Deck, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDeck, err)
	}

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	order, err := slideOrder(files)
	if err != nil {
		return nil, err
	}
	klog.V(6).Infof("[deck] 解析演示文稿: slides=%d", len(order))

	d := &Deck{Slides: make([]Slide, 0, len(order))}
	for i, name := range order {
		f, ok := files[name]
		if !ok {
			klog.Warningf("[deck] 幻灯片部件缺失: %s", name)
			continue
		}
		raw, err := readZipFile(f)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrInvalidDeck, name, err)
		}
		shapes, err := extractShapes(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalidDeck, name, err)
		}
		d.Slides = append(d.Slides, Slide{Number: i + 1, Shapes: shapes})
	}
	return d, nil
}

// slideOrder 按 presentation.xml 中 sldIdLst 的顺序返回幻灯片部件路径
// 缺少 presentation 部件时按 slideN.xml 的编号排序
func slideOrder(files map[string]*zip.File) ([]string, error) {
	pres, okPres := files[presentationPart]
	rels, okRels := files[presentationRels]
	if !okPres || !okRels {
		return numericSlideOrder(files), nil
	}

	presXML, err := readZipFile(pres)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrInvalidDeck, presentationPart, err)
	}
	relsXML, err := readZipFile(rels)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrInvalidDeck, presentationRels, err)
	}

	targets, err := parseRelationships(relsXML)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDeck, err)
	}
	ids, err := parseSlideIDs(presXML)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDeck, err)
	}

	order := make([]string, 0, len(ids))
	for _, rid := range ids {
		target, ok := targets[rid]
		if !ok {
			klog.Warningf("[deck] 未找到幻灯片关系: %s", rid)
			continue
		}
		order = append(order, resolvePart("ppt", target))
	}
	return order, nil
}

func numericSlideOrder(files map[string]*zip.File) []string {
	type numbered struct {
		n    int
		name string
	}
	var slides []numbered
	for name := range files {
		m := slidePartPattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, numbered{n: n, name: name})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	order := make([]string, len(slides))
	for i, s := range slides {
		order[i] = s.name
	}
	return order
}

func resolvePart(base, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Clean(path.Join(base, target))
}

func newDecoder(data []byte) *xml.Decoder {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel
	return dec
}

func parseRelationships(data []byte) (map[string]string, error) {
	var rels struct {
		Items []struct {
			ID     string `xml:"Id,attr"`
			Target string `xml:"Target,attr"`
		} `xml:"Relationship"`
	}
	if err := newDecoder(data).Decode(&rels); err != nil {
		return nil, fmt.Errorf("parse relationships: %w", err)
	}
	targets := make(map[string]string, len(rels.Items))
	for _, r := range rels.Items {
		targets[r.ID] = r.Target
	}
	return targets, nil
}

func parseSlideIDs(data []byte) ([]string, error) {
	dec := newDecoder(data)
	var ids []string
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse presentation: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "sldId" || se.Name.Space != nsPresentationML {
			continue
		}
		for _, a := range se.Attr {
			if a.Name.Local == "id" && a.Name.Space == nsRelationships {
				ids = append(ids, a.Value)
			}
		}
	}
	return ids, nil
}

// extractShapes 提取幻灯片中每个形状（含组合内的形状）的文本
// 形状内的段落以换行连接
func extractShapes(data []byte) ([]string, error) {
	dec := newDecoder(data)

	var (
		shapes    []string
		shapeText strings.Builder
		paraText  strings.Builder
		paras     []string
		inShape   int // 当前所在 p:sp 的嵌套层数
		inPara    bool
		inText    bool
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Space == nsPresentationML && t.Name.Local == "sp":
				inShape++
				if inShape == 1 {
					paras = paras[:0]
				}
			case inShape > 0 && t.Name.Space == nsDrawingML && t.Name.Local == "p":
				inPara = true
				paraText.Reset()
			case inPara && t.Name.Space == nsDrawingML && t.Name.Local == "t":
				inText = true
			case inPara && t.Name.Space == nsDrawingML && t.Name.Local == "br":
				paraText.WriteByte('\n')
			}
		case xml.EndElement:
			switch {
			case t.Name.Space == nsPresentationML && t.Name.Local == "sp":
				inShape--
				if inShape == 0 {
					shapeText.Reset()
					shapeText.WriteString(strings.Join(paras, "\n"))
					if text := strings.TrimSpace(shapeText.String()); text != "" {
						shapes = append(shapes, text)
					}
				}
			case inPara && t.Name.Space == nsDrawingML && t.Name.Local == "p":
				inPara = false
				paras = append(paras, paraText.String())
			case t.Name.Space == nsDrawingML && t.Name.Local == "t":
				inText = false
			}
		case xml.CharData:
			if inText {
				paraText.Write(t)
			}
		}
	}
	return shapes, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, rc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
