package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kaizen-comms/backend/config"
	"github.com/kaizen-comms/backend/internal/pkg/deck"
	"github.com/kaizen-comms/backend/internal/pkg/docfill"
	"github.com/kaizen-comms/backend/internal/pkg/docx"
	"github.com/kaizen-comms/backend/internal/pkg/llm"
	"github.com/kaizen-comms/backend/internal/repository"
	"github.com/kaizen-comms/backend/internal/service"
	"k8s.io/klog/v2"
)

// errorResponse 错误响应体，kind 与运行记录中的 error_kind 一致
type errorResponse struct {
	Error   string   `json:"error"`
	Kind    string   `json:"kind"`
	Missing []string `json:"missing,omitempty"`
}

// statusFor 将错误映射为 HTTP 状态码和面向用户的提示
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, config.ErrMissingAPIKey):
		return http.StatusServiceUnavailable,
			"The generation service is not configured. Set llm.api_key in config.yaml or export OPENAI_API_KEY=\"sk-...\" and restart."
	case errors.Is(err, llm.ErrAuthentication):
		return http.StatusBadGateway,
			"Authentication with the generation service failed. Confirm your `OPENAI_API_KEY` is correct " +
				"and that you revoked any previously exposed keys."
	case errors.Is(err, llm.ErrRateLimited):
		return http.StatusTooManyRequests,
			"Quota/rate limit hit (insufficient_quota or too many requests). " +
				"Check billing/usage limits on platform.openai.com, then try again."
	case errors.Is(err, llm.ErrConnection):
		return http.StatusServiceUnavailable,
			"Network/API connection error. Try again; if it persists, your network may be blocking outbound calls."
	case errors.Is(err, llm.ErrEmptyResponse), errors.Is(err, llm.ErrUpstream):
		return http.StatusBadGateway, fmt.Sprintf("The generation service returned an error: %v", err)
	case errors.Is(err, service.ErrMalformedResponse):
		return http.StatusBadGateway,
			"The model did not return the expected structured output. Generate again; no document was produced."
	case errors.Is(err, docfill.ErrMissingAnchors):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, service.ErrBusy):
		return http.StatusConflict, err.Error()
	case errors.Is(err, deck.ErrInvalidDeck):
		return http.StatusBadRequest, "The uploaded file is not a readable PowerPoint (.pptx) deck."
	case errors.Is(err, docx.ErrInvalidDocument):
		return http.StatusBadRequest, "The uploaded template is not a readable Word (.docx) document."
	case errors.Is(err, service.ErrEmptyDeck), errors.Is(err, service.ErrInvalidRequest), errors.Is(err, errBadRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "record not found"
	}
	return http.StatusInternalServerError, fmt.Sprintf("Unexpected error: %v", err)
}

func respondError(c *gin.Context, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		klog.Errorf("请求处理失败: path=%s, status=%d, err=%v", c.FullPath(), status, err)
	} else {
		klog.V(6).Infof("请求被拒绝: path=%s, status=%d, err=%v", c.FullPath(), status, err)
	}

	resp := errorResponse{Error: msg, Kind: service.ErrorKind(err)}
	if errors.Is(err, errBadRequest) {
		resp.Kind = "invalid_request"
	}
	var missing *docfill.MissingAnchorsError
	if errors.As(err, &missing) {
		resp.Missing = missing.Missing
	}
	c.JSON(status, resp)
}
