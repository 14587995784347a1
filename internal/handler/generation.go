package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kaizen-comms/backend/internal/domain"
	"github.com/kaizen-comms/backend/internal/pkg/docx"
	"github.com/kaizen-comms/backend/internal/service"
)

var errBadRequest = errors.New("bad request")

// GenerationHandler 文档生成相关接口
type GenerationHandler struct {
	service       *service.GenerationService
	maxUploadSize int64
}

// NewGenerationHandler 创建生成处理器
func NewGenerationHandler(service *service.GenerationService, maxUploadSize int64) *GenerationHandler {
	return &GenerationHandler{service: service, maxUploadSize: maxUploadSize}
}

type limitsResponse struct {
	Min     int `json:"min"`
	Max     int `json:"max"`
	Default int `json:"default"`
	Step    int `json:"step"`
}

type catalogResponse struct {
	Documents []domain.DocumentType `json:"documents"`
	MaxChars  limitsResponse        `json:"max_chars"`
	Schema    domain.Schema         `json:"schema"`
}

type generateResponse struct {
	*service.GenerateResult
	Data []byte `json:"data"` // JSON 中为 base64
}

// Catalog 返回可生成的文档类型与截断预算范围
func (h *GenerationHandler) Catalog(c *gin.Context) {
	limits := h.service.Limits()
	c.JSON(http.StatusOK, catalogResponse{
		Documents: h.service.Catalog().Documents,
		MaxChars: limitsResponse{
			Min:     limits.MinMaxChars,
			Max:     limits.MaxMaxChars,
			Default: limits.DefaultMaxChars,
			Step:    limits.MaxCharsStep,
		},
		Schema: domain.KaizenSchema(),
	})
}

// Extract 提取幻灯片文本并返回截断后的预览
func (h *GenerationHandler) Extract(c *gin.Context) {
	h.limitBody(c)
	deckData, _, err := h.readFile(c, "deck", ".pptx", true)
	if err != nil {
		respondError(c, err)
		return
	}
	maxChars, err := formInt(c, "max_chars")
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := h.service.Extract(c.Request.Context(), deckData, maxChars)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Generate 生成文档，响应中以 base64 携带 docx 以及预览
func (h *GenerationHandler) Generate(c *gin.Context) {
	result, ok := h.generate(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, generateResponse{GenerateResult: result, Data: result.Document.Data})
}

// Download 生成文档并直接作为附件下载
func (h *GenerationHandler) Download(c *gin.Context) {
	result, ok := h.generate(c)
	if !ok {
		return
	}
	c.Header("X-Request-ID", result.RequestID)
	attachment(c, result.Document.FileName, result.Document.MimeType, result.Document.Data)
}

// DefaultTemplate 下载内置或配置的 Word 模板
func (h *GenerationHandler) DefaultTemplate(c *gin.Context) {
	data, err := h.service.DefaultTemplate()
	if err != nil {
		respondError(c, err)
		return
	}
	attachment(c, service.DefaultTemplateName+".docx", docx.MimeType, data)
}

func (h *GenerationHandler) generate(c *gin.Context) (*service.GenerateResult, bool) {
	h.limitBody(c)
	deckData, deckName, err := h.readFile(c, "deck", ".pptx", true)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	template, _, err := h.readFile(c, "template", ".docx", false)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	maxChars, err := formInt(c, "max_chars")
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	document := strings.TrimSpace(c.PostForm("document"))
	if document == "" {
		respondError(c, fmt.Errorf("%w: select one document to generate", errBadRequest))
		return nil, false
	}

	result, err := h.service.Generate(c.Request.Context(), service.GenerateRequest{
		DeckName:    deckName,
		Deck:        deckData,
		DocumentKey: document,
		MaxChars:    maxChars,
		Template:    template,
	})
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return result, true
}

func (h *GenerationHandler) limitBody(c *gin.Context) {
	if h.maxUploadSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize)
	}
}

// readFile 读取上传文件并校验扩展名
func (h *GenerationHandler) readFile(c *gin.Context, field, ext string, required bool) ([]byte, string, error) {
	header, err := c.FormFile(field)
	if err != nil {
		if !required && errors.Is(err, http.ErrMissingFile) {
			return nil, "", nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", fmt.Errorf("%w: upload exceeds %d bytes", errBadRequest, h.maxUploadSize)
		}
		return nil, "", fmt.Errorf("%w: upload a %s file in field %q", errBadRequest, ext, field)
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ext) {
		return nil, "", fmt.Errorf("%w: %q is not a %s file", errBadRequest, header.Filename, ext)
	}
	data, err := readMultipart(header)
	if err != nil {
		return nil, "", err
	}
	return data, filepath.Base(header.Filename), nil
}

func readMultipart(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func formInt(c *gin.Context, field string) (int, error) {
	v := strings.TrimSpace(c.PostForm(field))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", errBadRequest, field)
	}
	return n, nil
}

// attachment 以附件形式返回文件，文件名按 RFC 5987 编码
func attachment(c *gin.Context, fileName, mimeType string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q; filename*=UTF-8''%s",
		asciiFileName(fileName), url.PathEscape(fileName)))
	c.Data(http.StatusOK, mimeType, data)
}

func asciiFileName(name string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e || r == '"' || r == '\\' {
			return '_'
		}
		return r
	}, name)
}
