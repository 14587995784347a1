package service

import (
	"context"

	"github.com/kaizen-comms/backend/internal/model"
	"github.com/kaizen-comms/backend/internal/repository"
	"k8s.io/klog/v2"
)

// RecordService 运行记录查询服务接口
type RecordService interface {
	List(ctx context.Context, limit int) ([]model.GenerationRecord, error)
	Get(ctx context.Context, requestID string) (*model.GenerationRecord, error)
}

type recordService struct {
	repo repository.GenerationRecordRepository
}

// NewRecordService 创建运行记录服务
func NewRecordService(repo repository.GenerationRecordRepository) RecordService {
	return &recordService{repo: repo}
}

// List 按创建时间倒序返回最近的记录
func (s *recordService) List(ctx context.Context, limit int) ([]model.GenerationRecord, error) {
	records, err := s.repo.List(ctx, limit)
	if err != nil {
		klog.V(6).Infof("运行记录查询失败：limit=%d, err=%v", limit, err)
		return nil, err
	}
	return records, nil
}

// Get 按请求 ID 查询记录，不存在时返回 repository.ErrNotFound
func (s *recordService) Get(ctx context.Context, requestID string) (*model.GenerationRecord, error) {
	return s.repo.Get(ctx, requestID)
}
