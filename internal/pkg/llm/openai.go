package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kaizen-comms/backend/config"
	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"k8s.io/klog/v2"
)

// OpenAIGenerator 基于官方 openai-go SDK 的 chat completions 生成器
type OpenAIGenerator struct {
	model     string
	maxTokens int
	client    openai.Client
}

// NewOpenAIGenerator 创建 OpenAI 生成器，SDK 自带的重试被关闭
func NewOpenAIGenerator(cfg config.LLMConfig) *OpenAIGenerator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(timeout),
	}
	if cfg.APIURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.APIURL))
	}
	return &OpenAIGenerator{
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		client:    openai.NewClient(opts...),
	}
}

func (g *OpenAIGenerator) Name() string { return ProviderOpenAI }

// Generate 发送一次 chat completions 请求
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt Prompt) (*Completion, error) {
	start := time.Now()
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt.System),
			openai.UserMessage(prompt.User),
		},
	}
	if g.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(g.maxTokens))
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			klog.Warningf("[llm] OpenAI 请求失败: status=%d, err=%v", apiErr.StatusCode, err)
			return nil, statusError(g.Name(), apiErr.StatusCode, err)
		}
		klog.Warningf("[llm] OpenAI 请求失败: %v", err)
		return nil, transportError(g.Name(), err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, &Error{Kind: ErrEmptyResponse, Provider: g.Name(), Err: errors.New("empty choices")}
	}

	klog.V(6).Infof("[llm] OpenAI 生成完成: model=%s, tokens=%d, elapsed=%s", resp.Model, resp.Usage.TotalTokens, time.Since(start))
	model := resp.Model
	if model == "" {
		model = g.model
	}
	return &Completion{
		Text:  resp.Choices[0].Message.Content,
		Model: model,
		Usage: usageOrZero(int(resp.Usage.PromptTokens), int(resp.Usage.CompletionTokens), int(resp.Usage.TotalTokens)),
	}, nil
}
