package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/kaizen-comms/backend/config"
	"google.golang.org/genai"
	"k8s.io/klog/v2"
)

// GeminiGenerator 基于 google.golang.org/genai 的生成器
type GeminiGenerator struct {
	model     string
	maxTokens int
	client    *genai.Client
}

// NewGeminiGenerator 创建 Gemini 生成器
// 配置中的 API 地址仍为 OpenAI 默认值时使用 SDK 默认地址
func NewGeminiGenerator(ctx context.Context, cfg config.LLMConfig) (*GeminiGenerator, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.APIURL != "" && !strings.Contains(cfg.APIURL, "api.openai.com") {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.APIURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, err
	}
	model := cfg.Model
	if model == "" || strings.HasPrefix(model, "gpt-") {
		model = "gemini-2.5-flash"
	}
	return &GeminiGenerator{model: model, maxTokens: cfg.MaxTokens, client: client}, nil
}

func (g *GeminiGenerator) Name() string { return ProviderGemini }

// Generate 调用 Models.GenerateContent
func (g *GeminiGenerator) Generate(ctx context.Context, prompt Prompt) (*Completion, error) {
	genCfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(prompt.System, genai.RoleUser),
	}
	if g.maxTokens > 0 {
		genCfg.MaxOutputTokens = int32(g.maxTokens)
	}
	contents := []*genai.Content{genai.NewContentFromText(prompt.User, genai.RoleUser)}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, genCfg)
	if err != nil {
		klog.Warningf("[llm] Gemini 请求失败: %v", err)
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return nil, statusError(g.Name(), apiErr.Code, err)
		}
		var apiErrPtr *genai.APIError
		if errors.As(err, &apiErrPtr) {
			return nil, statusError(g.Name(), apiErrPtr.Code, err)
		}
		return nil, transportError(g.Name(), err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return nil, &Error{Kind: ErrEmptyResponse, Provider: g.Name(), Err: errors.New("no candidates")}
	}

	c := &Completion{Text: text, Model: g.model}
	if resp.ModelVersion != "" {
		c.Model = resp.ModelVersion
	}
	if u := resp.UsageMetadata; u != nil {
		c.Usage = usageOrZero(int(u.PromptTokenCount), int(u.CandidatesTokenCount), int(u.TotalTokenCount))
	}
	klog.V(6).Infof("[llm] Gemini 生成完成: model=%s, tokens=%d", c.Model, c.Usage.TotalTokens)
	return c, nil
}
