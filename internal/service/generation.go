package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/kaizen-comms/backend/config"
	"github.com/kaizen-comms/backend/internal/domain"
	"github.com/kaizen-comms/backend/internal/eventbus"
	"github.com/kaizen-comms/backend/internal/pkg/deck"
	"github.com/kaizen-comms/backend/internal/pkg/docfill"
	"github.com/kaizen-comms/backend/internal/pkg/docx"
	"github.com/kaizen-comms/backend/internal/pkg/llm"
	"golang.org/x/sync/semaphore"
	"k8s.io/klog/v2"
)

// DefaultTemplateName 内置模板的标题与下载文件名
const DefaultTemplateName = "Kaizen Communication Template"

var (
	// ErrBusy 已有生成任务在进行
	ErrBusy = errors.New("another document is being generated; try again when it finishes")
	// ErrEmptyDeck 幻灯片中没有可提取的文本
	ErrEmptyDeck = errors.New("no text could be extracted from the slide deck")
	// ErrInvalidRequest 请求参数不合法
	ErrInvalidRequest = errors.New("invalid request")
)

// GenerateRequest 一次文档生成请求
type GenerateRequest struct {
	DeckName    string
	Deck        []byte
	DocumentKey string // 文档类型 key 或名称
	MaxChars    int    // 0 表示使用默认值
	Template    []byte // 可选，覆盖配置的模板
}

// ExtractResult 幻灯片提取与截断结果
type ExtractResult struct {
	SlideCount int    `json:"slide_count"`
	TotalChars int    `json:"total_chars"`
	SentChars  int    `json:"sent_chars"`
	MaxChars   int    `json:"max_chars"`
	Truncated  bool   `json:"truncated"`
	Preview    string `json:"preview"`
	Text       string `json:"-"` // 截断后发送给模型的文本
}

// FilledDocument 生成的 Word 文档，只在内存中交付
type FilledDocument struct {
	Name     string `json:"name"`
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	Data     []byte `json:"-"`
}

// GenerateResult 生成结果
type GenerateResult struct {
	RequestID   string           `json:"request_id"`
	Document    FilledDocument   `json:"document"`
	Extraction  ExtractResult    `json:"extraction"`
	PreviewHTML string           `json:"preview_html"`
	Sections    []domain.Section `json:"sections,omitempty"`
	Model       string           `json:"model"`
	Usage       llm.Usage        `json:"usage"`
}

// GenerationService 文档生成流水线：提取、截断、提示词、生成、解析、填充
type GenerationService struct {
	cfg       config.GenerationConfig
	catalog   *domain.Catalog
	schema    domain.Schema
	generator llm.Generator
	prompts   *PromptBuilder
	format    domain.ResponseFormat
	filler    *docfill.Filler
	bus       *eventbus.GenerationEventBus
	slot      *semaphore.Weighted
}

// NewGenerationService 创建生成服务，bus 为空时不记录运行日志
func NewGenerationService(cfg config.GenerationConfig, catalog *domain.Catalog, generator llm.Generator, bus *eventbus.GenerationEventBus) (*GenerationService, error) {
	if catalog == nil {
		return nil, errors.New("document catalog is required")
	}
	format := domain.ResponseFormat(strings.ToLower(strings.TrimSpace(cfg.ResponseFormat)))
	switch format {
	case "":
		format = domain.FormatJSON
	case domain.FormatJSON, domain.FormatTagged:
	default:
		return nil, fmt.Errorf("unsupported response format %q", cfg.ResponseFormat)
	}
	filler, err := docfill.New(docfill.Options{
		Strategy:         docfill.Strategy(cfg.AnchorStrategy),
		BulletStyle:      cfg.BulletStyle,
		ASCIIPunctuation: cfg.ASCIIPunctuation,
	})
	if err != nil {
		return nil, err
	}
	schema := domain.KaizenSchema()
	return &GenerationService{
		cfg:       cfg,
		catalog:   catalog,
		schema:    schema,
		generator: generator,
		prompts:   NewPromptBuilder(schema, format),
		format:    format,
		filler:    filler,
		bus:       bus,
		slot:      semaphore.NewWeighted(1),
	}, nil
}

// Catalog 可生成的文档类型
func (s *GenerationService) Catalog() *domain.Catalog {
	return s.catalog
}

// Limits 截断预算的取值范围
func (s *GenerationService) Limits() config.GenerationConfig {
	return s.cfg
}

// Extract 提取幻灯片文本并按预算截断，返回预览
func (s *GenerationService) Extract(ctx context.Context, deckData []byte, maxChars int) (*ExtractResult, error) {
	maxChars, err := s.resolveMaxChars(maxChars)
	if err != nil {
		return nil, err
	}
	d, err := deck.Parse(deckData)
	if err != nil {
		return nil, err
	}
	text := d.Text()
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDeck
	}

	sent, truncated := Truncate(text, maxChars)
	result := &ExtractResult{
		SlideCount: d.TextSlideCount(),
		TotalChars: utf8.RuneCountInString(text),
		SentChars:  utf8.RuneCountInString(sent),
		MaxChars:   maxChars,
		Truncated:  truncated,
		Preview:    preview(sent, s.cfg.PreviewChars),
		Text:       sent,
	}
	klog.V(6).Infof("[generation] 幻灯片提取完成: slides=%d, chars=%d, sent=%d, truncated=%v",
		result.SlideCount, result.TotalChars, result.SentChars, truncated)
	return result, nil
}

// DefaultTemplate 返回配置的模板文件，未配置时返回内置模板
func (s *GenerationService) DefaultTemplate() ([]byte, error) {
	if s.cfg.TemplatePath != "" {
		data, err := os.ReadFile(s.cfg.TemplatePath)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", s.cfg.TemplatePath, err)
		}
		return data, nil
	}
	return docfill.DefaultTemplate(DefaultTemplateName, s.schema)
}

// Generate 同步执行完整流水线，同一时间只允许一个生成任务
func (s *GenerationService) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	doc, err := s.catalog.Lookup(req.DocumentKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if s.generator == nil {
		return nil, config.ErrMissingAPIKey
	}
	if !s.slot.TryAcquire(1) {
		klog.V(6).Infof("[generation] 已有生成任务在执行，拒绝请求: document=%s", doc.Key)
		return nil, ErrBusy
	}
	defer s.slot.Release(1)

	extraction, err := s.Extract(ctx, req.Deck, req.MaxChars)
	if err != nil {
		return nil, err
	}

	var template []byte
	if doc.Kind == domain.KindTemplate {
		if template, err = s.template(req.Template); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	event := eventbus.GenerationEvent{
		RequestID:      uuid.NewString(),
		DocumentKey:    doc.Key,
		DocumentName:   doc.Name,
		DeckName:       req.DeckName,
		SlideCount:     extraction.SlideCount,
		ExtractedChars: extraction.TotalChars,
		SentChars:      extraction.SentChars,
		Truncated:      extraction.Truncated,
		Provider:       s.generator.Name(),
	}
	if doc.Kind == domain.KindTemplate {
		event.ResponseFormat = string(s.format)
		event.AnchorStrategy = string(s.filler.Strategy())
	}
	s.publish(ctx, eventbus.GenerationEventStarted, event)

	result, err := s.run(ctx, doc, extraction, template)
	event.Duration = time.Since(start)
	if result != nil {
		event.Model = result.Model
		event.PromptTokens = result.Usage.PromptTokens
		event.CompletionTokens = result.Usage.CompletionTokens
		event.TotalTokens = result.Usage.TotalTokens
	}
	if err != nil {
		event.ErrorKind = ErrorKind(err)
		event.ErrorMsg = err.Error()
		klog.Warningf("[generation] 文档生成失败: requestID=%s, document=%s, kind=%s, err=%v",
			event.RequestID, doc.Key, event.ErrorKind, err)
		s.publish(ctx, eventbus.GenerationEventFailed, event)
		return nil, err
	}

	result.RequestID = event.RequestID
	klog.V(6).Infof("[generation] 文档生成完成: requestID=%s, document=%s, bytes=%d, elapsed=%s",
		event.RequestID, doc.Key, len(result.Document.Data), event.Duration)
	s.publish(ctx, eventbus.GenerationEventCompleted, event)
	return result, nil
}

// run 调用模型并生成文档；模型调用成功后即使后续失败也返回用量
func (s *GenerationService) run(ctx context.Context, doc domain.DocumentType, extraction *ExtractResult, template []byte) (*GenerateResult, error) {
	prompt := s.prompts.Build(doc, extraction.Text)
	completion, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	result := &GenerateResult{
		Extraction: *extraction,
		Model:      completion.Model,
		Usage:      completion.Usage,
		Document: FilledDocument{
			Name:     doc.Name,
			FileName: doc.FileName(),
			MimeType: docx.MimeType,
		},
	}

	if doc.Kind == domain.KindTemplate {
		content, err := ParseResponse(s.format, completion.Text, s.schema)
		if err != nil {
			return result, err
		}
		data, err := s.filler.FillBytes(template, content)
		if err != nil {
			return result, err
		}
		result.Document.Data = data
		result.Sections = content.Sections()
		result.PreviewHTML, err = RenderHTML(content.Markdown())
		if err != nil {
			return result, err
		}
		return result, nil
	}

	body := strings.TrimSpace(completion.Text)
	if s.cfg.ASCIIPunctuation {
		body = docfill.SanitizeText(body)
	}
	data, err := WriteTextDocument(doc.Name, body)
	if err != nil {
		return result, err
	}
	result.Document.Data = data
	result.PreviewHTML, err = RenderHTML(body)
	if err != nil {
		return result, err
	}
	return result, nil
}

// template 选择模板并在调用模型前校验锚点，模板无效时不产生模型调用
func (s *GenerationService) template(uploaded []byte) ([]byte, error) {
	template := uploaded
	if len(template) == 0 {
		var err error
		if template, err = s.DefaultTemplate(); err != nil {
			return nil, err
		}
	}
	if _, err := s.filler.FillBytes(template, domain.NewContent(s.schema)); err != nil {
		klog.Warningf("[generation] 模板校验失败: %v", err)
		return nil, err
	}
	return template, nil
}

func (s *GenerationService) resolveMaxChars(maxChars int) (int, error) {
	if maxChars == 0 {
		return s.cfg.DefaultMaxChars, nil
	}
	if maxChars < s.cfg.MinMaxChars || maxChars > s.cfg.MaxMaxChars {
		return 0, fmt.Errorf("%w: max_chars %d outside [%d, %d]", ErrInvalidRequest, maxChars, s.cfg.MinMaxChars, s.cfg.MaxMaxChars)
	}
	return maxChars, nil
}

func (s *GenerationService) publish(ctx context.Context, eventType eventbus.GenerationEventType, event eventbus.GenerationEvent) {
	if s.bus == nil {
		return
	}
	event.Type = eventType
	if err := s.bus.Publish(ctx, eventType, event); err != nil {
		klog.Warningf("[generation] 运行记录写入失败: requestID=%s, event=%s, err=%v", event.RequestID, eventType, err)
	}
}

// preview 截取前 n 个字符
func preview(text string, n int) string {
	if n <= 0 {
		return text
	}
	count := 0
	for i := range text {
		if count == n {
			return text[:i]
		}
		count++
	}
	return text
}

// ErrorKind 错误分类，写入运行记录
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, llm.ErrAuthentication), errors.Is(err, config.ErrMissingAPIKey):
		return "authentication"
	case errors.Is(err, llm.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, llm.ErrConnection), errors.Is(err, context.DeadlineExceeded):
		return "connection"
	case errors.Is(err, llm.ErrEmptyResponse):
		return "empty_response"
	case errors.Is(err, llm.ErrUpstream):
		return "upstream"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, docfill.ErrMissingAnchors):
		return "missing_anchors"
	case errors.Is(err, docx.ErrInvalidDocument):
		return "invalid_template"
	case errors.Is(err, deck.ErrInvalidDeck):
		return "invalid_deck"
	case errors.Is(err, ErrEmptyDeck):
		return "empty_deck"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	}
	return "unexpected"
}
