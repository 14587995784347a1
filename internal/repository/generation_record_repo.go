package repository

import (
	"context"
	"errors"

	"github.com/kaizen-comms/backend/internal/model"
	"gorm.io/gorm"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type generationRecordRepository struct {
	db *gorm.DB
}

// NewGenerationRecordRepository 创建 GenerationRecord 仓储
func NewGenerationRecordRepository(db *gorm.DB) GenerationRecordRepository {
	return &generationRecordRepository{db: db}
}

// Create 新增生成记录
func (r *generationRecordRepository) Create(ctx context.Context, record *model.GenerationRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// Save 更新生成记录
func (r *generationRecordRepository) Save(ctx context.Context, record *model.GenerationRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}

// Get 根据 request_id 查询
func (r *generationRecordRepository) Get(ctx context.Context, requestID string) (*model.GenerationRecord, error) {
	var record model.GenerationRecord
	err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// List 按时间倒序返回最近的记录
func (r *generationRecordRepository) List(ctx context.Context, limit int) ([]model.GenerationRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	var records []model.GenerationRecord
	err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&records).Error
	return records, err
}
