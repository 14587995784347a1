// Package docfill 将结构化内容填充到 Word 模板中
//
// 支持两种锚点：
//   - token：段落文本（去除首尾空白后）与字段占位符完全一致，如 {{OVERVIEW}}
//   - heading：正文段落文本与字段章节标题完全一致，标题之后到下一个章节标题之间的段落为内容区域
//
// 两种方式都会在修改前校验全部锚点，缺失任何一个都不会修改文档。
package docfill

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kaizen-comms/backend/internal/domain"
	"github.com/kaizen-comms/backend/internal/pkg/docx"
	"k8s.io/klog/v2"
)

// Strategy 锚点定位方式
type Strategy string

const (
	StrategyToken   Strategy = "token"
	StrategyHeading Strategy = "heading"
)

// DefaultBulletStyle 列表字段默认使用的段落样式
const DefaultBulletStyle = "ListBullet"

// listJoiner 占位符嵌在长段落中时，列表项以此连接
const listJoiner = "; "

var (
	ErrMissingAnchors  = errors.New("template is missing required anchors")
	ErrUnknownStrategy = errors.New("unknown anchor strategy")
)

// MissingAnchorsError 模板缺少锚点
type MissingAnchorsError struct {
	Strategy Strategy
	Missing  []string
	Required []string
}

func (e *MissingAnchorsError) Error() string {
	kind := "token(s)"
	if e.Strategy == StrategyHeading {
		kind = "heading(s)"
	}
	return fmt.Sprintf("template is missing %s %s; a valid template must contain each of: %s",
		kind, strings.Join(e.Missing, ", "), strings.Join(e.Required, ", "))
}

func (e *MissingAnchorsError) Is(target error) bool {
	return target == ErrMissingAnchors
}

// ParseStrategy 解析配置中的锚点方式，空值为 token
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyToken:
		return StrategyToken, nil
	case StrategyHeading:
		return StrategyHeading, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}

// Options 填充选项
type Options struct {
	Strategy         Strategy
	BulletStyle      string // 样式 ID 或名称，模板中不存在时列表项以 "- " 开头
	ASCIIPunctuation bool
}

// Filler 模板填充器
type Filler struct {
	opts Options
}

// New 创建填充器
func New(opts Options) (*Filler, error) {
	strategy, err := ParseStrategy(string(opts.Strategy))
	if err != nil {
		return nil, err
	}
	opts.Strategy = strategy
	if opts.BulletStyle == "" {
		opts.BulletStyle = DefaultBulletStyle
	}
	return &Filler{opts: opts}, nil
}

// Strategy 当前锚点方式
func (f *Filler) Strategy() Strategy {
	return f.opts.Strategy
}

// FillBytes 打开模板、填充并序列化
func (f *Filler) FillBytes(template []byte, content domain.Content) ([]byte, error) {
	doc, err := docx.Open(template)
	if err != nil {
		return nil, err
	}
	if err := f.Fill(doc, content); err != nil {
		return nil, err
	}
	return doc.Bytes()
}

// Fill 在文档上填充内容；锚点校验失败时文档保持不变
func (f *Filler) Fill(doc *docx.Document, content domain.Content) error {
	switch f.opts.Strategy {
	case StrategyHeading:
		return f.fillHeadings(doc, content)
	default:
		return f.fillTokens(doc, content)
	}
}

// block 列表样式：style 为空表示沿用锚点样式并使用文本前缀
type block struct {
	style  string
	prefix string
}

func (f *Filler) bulletBlock(doc *docx.Document) (block, bool) {
	if id, ok := doc.ResolveStyle(f.opts.BulletStyle); ok {
		return block{style: id}, true
	}
	klog.Warningf("[docfill] 模板中不存在列表样式 %q，列表项改用文本前缀", f.opts.BulletStyle)
	return block{prefix: "- "}, false
}

func (f *Filler) text(content domain.Content, key string) string {
	return f.clean(content.TextOrTBD(key))
}

func (f *Filler) items(content domain.Content, key string) []string {
	raw := content.ItemsOrTBD(key)
	out := make([]string, 0, len(raw))
	for _, it := range raw {
		if s := strings.TrimSpace(f.clean(it)); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		out = append(out, domain.TBD)
	}
	return out
}

func (f *Filler) clean(s string) string {
	if !f.opts.ASCIIPunctuation {
		return s
	}
	return SanitizeText(s)
}

func (f *Filler) fillTokens(doc *docx.Document, content domain.Content) error {
	schema := content.Schema()
	paragraphs := doc.Paragraphs()

	var missing []string
	for _, field := range schema.Fields {
		found := false
		for _, p := range paragraphs {
			if strings.Contains(p.Text(), field.Token) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, field.Token)
		}
	}
	if len(missing) > 0 {
		return &MissingAnchorsError{Strategy: StrategyToken, Missing: missing, Required: schema.Tokens()}
	}

	byToken := make(map[string]domain.Field, len(schema.Fields))
	for _, field := range schema.Fields {
		byToken[field.Token] = field
	}
	bullets, _ := f.bulletBlock(doc)

	filled := 0
	for _, p := range paragraphs {
		text := p.Text()
		if field, ok := byToken[strings.TrimSpace(text)]; ok {
			if field.IsList() {
				f.fillList(p, f.items(content, field.Key), bullets)
			} else {
				p.SetText(f.text(content, field.Key))
			}
			filled++
			continue
		}
		if !strings.Contains(text, "{{") {
			continue
		}
		replaced := text
		for _, field := range schema.Fields {
			if !strings.Contains(replaced, field.Token) {
				continue
			}
			value := f.text(content, field.Key)
			if field.IsList() {
				value = strings.Join(f.items(content, field.Key), listJoiner)
			}
			replaced = strings.ReplaceAll(replaced, field.Token, value)
		}
		if replaced != text {
			p.SetText(replaced)
			filled++
		}
	}
	klog.V(6).Infof("[docfill] token 填充完成: anchors=%d", filled)
	return nil
}

// fillList 锚点段落写入第一项，其余项依次插入到其后
func (f *Filler) fillList(anchor *docx.Paragraph, items []string, b block) {
	style := b.style
	if style == "" {
		style = anchor.Style()
	}
	anchor.SetStyle(style)
	anchor.SetText(b.prefix + items[0])
	last := anchor
	for _, it := range items[1:] {
		last = last.InsertParagraphAfter(b.prefix+it, style)
	}
}

// region 一个章节标题及其内容区域
type region struct {
	field   domain.Field
	heading *docx.Paragraph
	body    []*docx.Paragraph
}

func (r region) style() string {
	for _, p := range r.body {
		if strings.TrimSpace(p.Text()) != "" {
			return p.Style()
		}
	}
	if len(r.body) > 0 {
		return r.body[0].Style()
	}
	return r.heading.Style()
}

func (f *Filler) fillHeadings(doc *docx.Document, content domain.Content) error {
	schema := content.Schema()
	body := doc.BodyParagraphs()

	found := make(map[string]int, len(schema.Fields))
	for i, p := range body {
		text := strings.TrimSpace(p.Text())
		for _, field := range schema.Fields {
			if _, seen := found[field.Key]; !seen && text == field.Heading {
				found[field.Key] = i
			}
		}
	}

	var missing []string
	for _, field := range schema.Fields {
		if _, ok := found[field.Key]; !ok {
			missing = append(missing, field.Heading)
		}
	}
	if len(missing) > 0 {
		return &MissingAnchorsError{Strategy: StrategyHeading, Missing: missing, Required: schema.Headings()}
	}

	positions := make([]int, 0, len(found))
	for _, i := range found {
		positions = append(positions, i)
	}
	sort.Ints(positions)

	// 先确定全部区域边界，再统一删除与插入
	regions := make([]region, 0, len(schema.Fields))
	for _, field := range schema.Fields {
		start := found[field.Key]
		end := len(body)
		for _, pos := range positions {
			if pos > start {
				end = pos
				break
			}
		}
		regions = append(regions, region{field: field, heading: body[start], body: body[start+1 : end]})
	}

	styles := make([]string, len(regions))
	for i, r := range regions {
		styles[i] = r.style()
	}

	for _, r := range regions {
		for _, p := range r.body {
			p.Remove()
		}
	}

	bullets, _ := f.bulletBlock(doc)
	for i, r := range regions {
		var lines []string
		style := styles[i]
		prefix := ""
		if r.field.IsList() {
			lines = f.items(content, r.field.Key)
			if bullets.style != "" {
				style = bullets.style
			}
			prefix = bullets.prefix
		} else {
			lines = splitLines(f.text(content, r.field.Key))
		}

		last := r.heading
		for _, line := range lines {
			last = last.InsertParagraphAfter(prefix+line, style)
		}
	}
	klog.V(6).Infof("[docfill] heading 填充完成: sections=%d", len(regions))
	return nil
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	if len(out) == 0 {
		out = append(out, domain.TBD)
	}
	return out
}

// DefaultTemplate 内置模板：每个字段一个章节标题，标题下为占位符段落
// 同时满足 token 与 heading 两种锚点方式
func DefaultTemplate(title string, schema domain.Schema) ([]byte, error) {
	b := docx.NewBuilder().Title(title)
	for _, field := range schema.Fields {
		b.Heading(field.Heading, 1)
		b.Paragraph(field.Token, "")
	}
	return b.Bytes()
}
