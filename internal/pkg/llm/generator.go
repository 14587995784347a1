// Package llm 封装文档生成所用的大模型调用
//
// 每次用户操作只发起一次请求：不批量、不并发、不重试。
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kaizen-comms/backend/config"
	"k8s.io/klog/v2"
)

// 支持的 provider
const (
	ProviderOpenAI     = "openai"
	ProviderCompatible = "compatible"
	ProviderEino       = "eino"
	ProviderGemini     = "gemini"
)

const defaultTimeout = 5 * time.Minute

// Prompt 一次生成请求的提示词
type Prompt struct {
	System string `json:"system"`
	User   string `json:"user"`
}

// Usage token 用量
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion 生成结果
type Completion struct {
	Text  string `json:"text"`
	Model string `json:"model"`
	Usage Usage  `json:"usage"`
}

// Generator 文本生成接口
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt Prompt) (*Completion, error)
}

// NewGenerator 按配置创建生成器，未配置 API Key 时立即失败
func NewGenerator(cfg *config.Config) (Generator, error) {
	llmCfg := cfg.LLM
	if strings.TrimSpace(llmCfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: set OPENAI_API_KEY or llm.api_key", config.ErrMissingAPIKey)
	}
	if llmCfg.Timeout <= 0 {
		llmCfg.Timeout = defaultTimeout
	}

	provider := strings.ToLower(strings.TrimSpace(llmCfg.Provider))
	klog.V(6).Infof("[llm] 创建生成器: provider=%s, model=%s", provider, llmCfg.Model)

	switch provider {
	case "", ProviderOpenAI:
		return NewOpenAIGenerator(llmCfg), nil
	case ProviderCompatible:
		return NewClient(llmCfg), nil
	case ProviderEino:
		return NewEinoGenerator(llmCfg)
	case ProviderGemini:
		return NewGeminiGenerator(context.Background(), llmCfg)
	}
	return nil, fmt.Errorf("unsupported llm provider %q", llmCfg.Provider)
}

func usageOrZero(prompt, completion, total int) Usage {
	if total == 0 {
		total = prompt + completion
	}
	return Usage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: total}
}
