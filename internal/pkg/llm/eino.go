package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/kaizen-comms/backend/config"
	"k8s.io/klog/v2"
)

// EinoGenerator 通过 Eino ChatModel 生成
type EinoGenerator struct {
	model     string
	chatModel model.BaseChatModel
}

// NewEinoGenerator 创建基于 Eino OpenAI ChatModel 的生成器
func NewEinoGenerator(cfg config.LLMConfig) (*EinoGenerator, error) {
	klog.V(6).Infof("[LLMChatModel] 创建 OpenAI ChatModel: model=%s, baseURL=%s", cfg.Model, cfg.APIURL)

	chatCfg := &openai.ChatModelConfig{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	}
	if cfg.APIURL != "" {
		chatCfg.BaseURL = cfg.APIURL
	}
	if cfg.MaxTokens > 0 {
		maxTokens := cfg.MaxTokens
		chatCfg.MaxTokens = &maxTokens
	}

	chatModel, err := openai.NewChatModel(context.Background(), chatCfg)
	if err != nil {
		klog.Errorf("[LLMChatModel] 创建 ChatModel 失败: %v", err)
		return nil, err
	}
	return NewEinoGeneratorWithModel(cfg.Model, chatModel), nil
}

// NewEinoGeneratorWithModel 使用已有的 ChatModel
func NewEinoGeneratorWithModel(modelName string, chatModel model.BaseChatModel) *EinoGenerator {
	return &EinoGenerator{model: modelName, chatModel: chatModel}
}

func (g *EinoGenerator) Name() string { return ProviderEino }

// Generate 同步生成
func (g *EinoGenerator) Generate(ctx context.Context, prompt Prompt) (*Completion, error) {
	input := []*schema.Message{
		{Role: schema.System, Content: prompt.System},
		{Role: schema.User, Content: prompt.User},
	}
	klog.V(6).Infof("[LLMChatModel] Generate 开始: messageCount=%d", len(input))

	resp, err := g.chatModel.Generate(ctx, input)
	if err != nil {
		klog.Errorf("[LLMChatModel] Generate 失败: %v", err)
		return nil, classifyMessage(g.Name(), err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return nil, &Error{Kind: ErrEmptyResponse, Provider: g.Name(), Err: errors.New("empty message")}
	}

	klog.V(6).Infof("[LLMChatModel] Generate 完成: responseLength=%d", len(resp.Content))
	c := &Completion{Text: resp.Content, Model: g.model}
	if resp.ResponseMeta != nil && resp.ResponseMeta.Usage != nil {
		u := resp.ResponseMeta.Usage
		c.Usage = usageOrZero(u.PromptTokens, u.CompletionTokens, u.TotalTokens)
	}
	return c, nil
}
