package docx

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"
)

// styleSheet word/styles.xml 中的段落样式
type styleSheet struct {
	ids   map[string]bool
	names map[string]string // 小写名称 -> styleId
}

func parseStyles(data []byte) (styleSheet, error) {
	s := styleSheet{ids: map[string]bool{}, names: map[string]string{}}
	dec := xml.NewDecoder(bytes.NewReader(data))

	current := ""
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return s, nil
		}
		if err != nil {
			return s, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != nsWordML {
				continue
			}
			switch t.Name.Local {
			case "style":
				current = ""
				for _, a := range t.Attr {
					if a.Name.Local == "styleId" {
						current = a.Value
					}
				}
				if current != "" {
					s.ids[current] = true
				}
			case "name":
				if current == "" {
					continue
				}
				for _, a := range t.Attr {
					if a.Name.Local == "val" {
						s.names[strings.ToLower(a.Value)] = current
					}
				}
			}
		case xml.EndElement:
			if t.Name.Space == nsWordML && t.Name.Local == "style" {
				current = ""
			}
		}
	}
}

// resolve 先按 styleId 精确匹配，再按名称（忽略大小写）匹配
func (s styleSheet) resolve(nameOrID string) (string, bool) {
	if nameOrID == "" {
		return "", false
	}
	if s.ids[nameOrID] {
		return nameOrID, true
	}
	if id, ok := s.names[strings.ToLower(nameOrID)]; ok {
		return id, true
	}
	// "List Bullet" 与 "ListBullet" 视为同一样式
	compact := strings.ReplaceAll(nameOrID, " ", "")
	for id := range s.ids {
		if strings.EqualFold(id, compact) {
			return id, true
		}
	}
	return "", false
}
