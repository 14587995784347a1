package model

import (
	"time"
)

// 生成记录状态
const (
	GenerationStatusRunning   = "running"
	GenerationStatusSucceeded = "succeeded"
	GenerationStatusFailed    = "failed"
)

// GenerationRecord 一次文档生成的运行记录，只保存元数据，不保存幻灯片或文档内容
type GenerationRecord struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	RequestID        string    `json:"request_id" gorm:"size:36;uniqueIndex;not null"`
	DocumentKey      string    `json:"document_key" gorm:"size:100;index"`
	DocumentName     string    `json:"document_name" gorm:"size:255"`
	DeckName         string    `json:"deck_name" gorm:"size:255"`
	SlideCount       int       `json:"slide_count"`
	ExtractedChars   int       `json:"extracted_chars"`
	SentChars        int       `json:"sent_chars"`
	Truncated        bool      `json:"truncated"`
	ResponseFormat   string    `json:"response_format" gorm:"size:20"`
	AnchorStrategy   string    `json:"anchor_strategy" gorm:"size:20"`
	Provider         string    `json:"provider" gorm:"size:50"`
	Model            string    `json:"model" gorm:"size:100"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	Status           string    `json:"status" gorm:"size:20;index;default:running"` // running, succeeded, failed
	ErrorKind        string    `json:"error_kind" gorm:"size:50"`
	ErrorMsg         string    `json:"error_msg" gorm:"size:1000"`
	DurationMs       int64     `json:"duration_ms"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
