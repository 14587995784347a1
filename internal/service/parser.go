package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaizen-comms/backend/internal/domain"
	"github.com/kaizen-comms/backend/internal/utils"
	"k8s.io/klog/v2"
)

// ErrMalformedResponse 模型输出无法解析为结构化内容
var ErrMalformedResponse = errors.New("model returned malformed structured output")

// ParseResponse 按格式选择解析器
func ParseResponse(format domain.ResponseFormat, raw string, schema domain.Schema) (domain.Content, error) {
	if format == domain.FormatTagged {
		return ParseTagged(raw, schema), nil
	}
	return ParseJSON(raw, schema)
}

// ParseJSON 解析 JSON 输出
// 先整体严格解析，失败后取第一个顶层 {...} 片段再解析
func ParseJSON(raw string, schema domain.Schema) (domain.Content, error) {
	text := strings.TrimSpace(raw)
	if fenced, ok := utils.ExtractFenced(text, "json"); ok {
		text = fenced
	}

	var obj map[string]any
	strictErr := json.Unmarshal([]byte(text), &obj)
	if strictErr == nil && obj != nil {
		return domain.Normalize(schema, obj), nil
	}

	span, ok := utils.ExtractJSON(text)
	if !ok {
		klog.Warningf("[parser] 响应中未找到 JSON 对象: length=%d", len(raw))
		return domain.Content{}, fmt.Errorf("%w: no JSON object found", ErrMalformedResponse)
	}
	obj = nil
	if err := json.Unmarshal([]byte(span), &obj); err != nil || obj == nil {
		klog.Warningf("[parser] JSON 片段解析失败: strict=%v, fallback=%v", strictErr, err)
		return domain.Content{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	klog.V(6).Infof("[parser] 使用 JSON 片段回退解析: spanLength=%d", len(span))
	return domain.Normalize(schema, obj), nil
}

// ParseTagged 解析 [TAG]...[/TAG] 标签输出，缺失的标签视为空
func ParseTagged(raw string, schema domain.Schema) domain.Content {
	values := make(map[string]any, len(schema.Fields))
	for _, f := range schema.Fields {
		re := regexp.MustCompile(`(?s)\[` + regexp.QuoteMeta(f.Tag) + `\](.*?)\[/` + regexp.QuoteMeta(f.Tag) + `\]`)
		m := re.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		values[f.Key] = strings.TrimSpace(m[1])
	}
	return domain.Normalize(schema, values)
}
