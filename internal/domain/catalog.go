package domain

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// DocumentKind 文档生成方式
type DocumentKind string

const (
	// KindText 自由文本，写入新建的 Word 文档
	KindText DocumentKind = "text"
	// KindTemplate 结构化内容，填充到 Word 模板
	KindTemplate DocumentKind = "template"
)

// ResponseFormat 结构化内容的输出格式，提示词与解析器保持一致
type ResponseFormat string

const (
	FormatJSON   ResponseFormat = "json"
	FormatTagged ResponseFormat = "tagged"
)

var (
	ErrDocumentTypeNotFound = errors.New("document type not found")
	ErrEmptyCatalog         = errors.New("document catalog is empty")
)

// DocumentType 可生成的文档类型
type DocumentType struct {
	Key         string       `yaml:"key" json:"key"`
	Name        string       `yaml:"name" json:"name"`
	Kind        DocumentKind `yaml:"kind" json:"kind"`
	Instruction string       `yaml:"instruction" json:"instruction"`
}

// FileName 下载文件名，以文档名称命名
func (d DocumentType) FileName() string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '-'
		}
		return r
	}, d.Name)
	return name + ".docx"
}

// Catalog 文档类型目录
type Catalog struct {
	Documents []DocumentType `yaml:"documents" json:"documents"`
}

// DefaultCatalog 内置目录
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// LoadCatalog 从文件加载目录，path 为空时使用内置目录
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog 解析并校验目录
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(c.Documents) == 0 {
		return nil, ErrEmptyCatalog
	}
	seen := make(map[string]bool, len(c.Documents))
	for i := range c.Documents {
		d := &c.Documents[i]
		if d.Name == "" {
			return nil, fmt.Errorf("catalog entry %d: name is required", i)
		}
		if d.Key == "" {
			d.Key = slug(d.Name)
		}
		if d.Kind == "" {
			d.Kind = KindText
		}
		if d.Kind != KindText && d.Kind != KindTemplate {
			return nil, fmt.Errorf("catalog entry %q: unsupported kind %q", d.Key, d.Kind)
		}
		if seen[d.Key] {
			return nil, fmt.Errorf("catalog entry %q: duplicate key", d.Key)
		}
		seen[d.Key] = true
	}
	return &c, nil
}

// Lookup 按 key 或名称查找文档类型
func (c *Catalog) Lookup(keyOrName string) (DocumentType, error) {
	q := strings.TrimSpace(keyOrName)
	for _, d := range c.Documents {
		if d.Key == q || strings.EqualFold(d.Name, q) {
			return d, nil
		}
	}
	return DocumentType{}, fmt.Errorf("%w: %q", ErrDocumentTypeNotFound, keyOrName)
}

func slug(name string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
			dash = false
			continue
		}
		if !dash && sb.Len() > 0 {
			sb.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(sb.String(), "-")
}
