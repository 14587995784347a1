package repository

import (
	"context"
	"errors"

	"github.com/kaizen-comms/backend/internal/model"
)

// ErrNotFound 记录不存在错误
var ErrNotFound = errors.New("record not found")

// GenerationRecordRepository 生成记录仓储
type GenerationRecordRepository interface {
	Create(ctx context.Context, record *model.GenerationRecord) error
	Save(ctx context.Context, record *model.GenerationRecord) error
	Get(ctx context.Context, requestID string) (*model.GenerationRecord, error)
	List(ctx context.Context, limit int) ([]model.GenerationRecord, error)
}
