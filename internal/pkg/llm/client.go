package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kaizen-comms/backend/config"
	"k8s.io/klog/v2"
)

// Client OpenAI 兼容接口的 HTTP 客户端，用于不适合官方 SDK 的自建网关
type Client struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Client    *http.Client
}

// NewClient 创建新的 LLM 客户端
func NewClient(cfg config.LLMConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		BaseURL:   strings.TrimRight(cfg.APIURL, "/"),
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
		Client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Name() string { return ProviderCompatible }

// Generate 发送一次对话请求
func (c *Client) Generate(ctx context.Context, prompt Prompt) (*Completion, error) {
	klog.V(6).Infof("Chat 请求: model=%s, systemLength=%d, userLength=%d", c.Model, len(prompt.System), len(prompt.User))
	resp, err := c.sendRequest(ctx, ChatRequest{
		Model: c.Model,
		Messages: []ChatMessage{
			{Role: "system", Content: prompt.System},
			{Role: "user", Content: prompt.User},
		},
		MaxTokens:   c.MaxTokens,
		Temperature: 0.3,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, &Error{Kind: ErrEmptyResponse, Provider: c.Name(), Err: errors.New("no choices")}
	}

	model := resp.Model
	if model == "" {
		model = c.Model
	}
	return &Completion{
		Text:  resp.Choices[0].Message.Content,
		Model: model,
		Usage: usageOrZero(resp.Usage.PromptTokens, resp.Usage.CompletionTokens, resp.Usage.TotalTokens),
	}, nil
}

// sendRequest 发送 HTTP 请求到 LLM API
func (c *Client) sendRequest(ctx context.Context, reqBody ChatRequest) (*ChatResponse, error) {
	url := c.BaseURL + "/chat/completions"
	klog.V(6).Infof("发送 LLM 请求: url=%s, model=%s", url, reqBody.Model)

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, transportError(c.Name(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(c.Name(), fmt.Errorf("failed to read response: %w", err))
	}

	var chatResp ChatResponse
	decodeErr := json.Unmarshal(body, &chatResp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(body))
		if decodeErr == nil && chatResp.Error != nil {
			msg = chatResp.Error.Message
		}
		klog.Warningf("LLM 请求失败: status=%d, message=%s", resp.StatusCode, msg)
		return nil, statusError(c.Name(), resp.StatusCode, errors.New(msg))
	}
	if decodeErr != nil {
		return nil, &Error{Kind: ErrUpstream, Provider: c.Name(), Err: fmt.Errorf("failed to unmarshal response: %w", decodeErr)}
	}
	if chatResp.Error != nil {
		return nil, &Error{Kind: ErrUpstream, Provider: c.Name(), Err: errors.New(chatResp.Error.Message)}
	}

	return &chatResp, nil
}
