package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
)

// 生成服务错误分类，通过 errors.Is 判断
var (
	ErrAuthentication = errors.New("generation service rejected the credentials")
	ErrRateLimited    = errors.New("generation service rate limit or quota exceeded")
	ErrConnection     = errors.New("could not reach the generation service")
	ErrUpstream       = errors.New("generation service returned an error")
	ErrEmptyResponse  = errors.New("generation service returned an empty response")
)

// Error 生成服务调用失败
type Error struct {
	Kind       error
	StatusCode int
	Provider   string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (%s, status %d): %v", e.Kind, e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", e.Kind, e.Provider, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// kindForStatus HTTP 状态码对应的错误分类
func kindForStatus(status int) error {
	switch {
	case status == 401 || status == 403:
		return ErrAuthentication
	case status == 429:
		return ErrRateLimited
	case status == 408 || status == 502 || status == 503 || status == 504:
		return ErrConnection
	}
	return ErrUpstream
}

// statusError 根据状态码包装错误
func statusError(provider string, status int, err error) *Error {
	return &Error{Kind: kindForStatus(status), StatusCode: status, Provider: provider, Err: err}
}

// transportError 对没有状态码的错误分类：网络错误与超时归为连接失败
func transportError(provider string, err error) *Error {
	var netErr net.Error
	var urlErr *url.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr),
		errors.As(err, &urlErr):
		return &Error{Kind: ErrConnection, Provider: provider, Err: err}
	}
	return &Error{Kind: ErrUpstream, Provider: provider, Err: err}
}

var statusInMessage = regexp.MustCompile(`status code: (\d{3})`)

// classifyMessage 从错误文本中解析状态码，用于只暴露字符串错误的客户端
func classifyMessage(provider string, err error) *Error {
	if m := statusInMessage.FindStringSubmatch(err.Error()); m != nil {
		status, _ := strconv.Atoi(m[1])
		return statusError(provider, status, err)
	}
	return transportError(provider, err)
}
