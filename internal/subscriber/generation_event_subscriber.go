package subscriber

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/kaizen-comms/backend/internal/eventbus"
	"github.com/kaizen-comms/backend/internal/model"
	"github.com/kaizen-comms/backend/internal/repository"
	"github.com/kaizen-comms/backend/internal/service/statemachine"
	"k8s.io/klog/v2"
)

const maxErrorMsgLength = 1000

// GenerationEventSubscriber 将生成事件写入运行记录
type GenerationEventSubscriber struct {
	repo         repository.GenerationRecordRepository
	stateMachine *statemachine.GenerationStateMachine
}

func NewGenerationEventSubscriber(repo repository.GenerationRecordRepository) *GenerationEventSubscriber {
	return &GenerationEventSubscriber{repo: repo, stateMachine: statemachine.NewGenerationStateMachine()}
}

func (s *GenerationEventSubscriber) Register(bus *eventbus.GenerationEventBus) {
	if bus == nil || s.repo == nil {
		return
	}
	bus.Subscribe(eventbus.GenerationEventStarted, s.handleStarted)
	bus.Subscribe(eventbus.GenerationEventCompleted, s.handleFinished)
	bus.Subscribe(eventbus.GenerationEventFailed, s.handleFinished)
}

// handleStarted 创建运行中的记录
func (s *GenerationEventSubscriber) handleStarted(ctx context.Context, event eventbus.GenerationEvent) error {
	if err := s.stateMachine.Transition(statemachine.GenerationStatusNone, statemachine.GenerationStatusRunning, event.RequestID); err != nil {
		return err
	}
	record := &model.GenerationRecord{Status: model.GenerationStatusRunning}
	apply(record, event)
	if err := s.repo.Create(ctx, record); err != nil {
		klog.Errorf("生成记录创建失败: requestID=%s, err=%v", event.RequestID, err)
		return err
	}
	klog.V(6).Infof("生成记录创建成功: requestID=%s, document=%s", event.RequestID, event.DocumentKey)
	return nil
}

// handleFinished 更新最终状态；未收到开始事件时补建记录
func (s *GenerationEventSubscriber) handleFinished(ctx context.Context, event eventbus.GenerationEvent) error {
	record, err := s.repo.Get(ctx, event.RequestID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		klog.Errorf("生成记录查询失败: requestID=%s, err=%v", event.RequestID, err)
		return err
	}
	create := record == nil
	if create {
		record = &model.GenerationRecord{}
	}

	to := statemachine.GenerationStatusSucceeded
	if event.Type == eventbus.GenerationEventFailed {
		to = statemachine.GenerationStatusFailed
	}
	// 终止态的记录不再被覆盖
	if err := s.stateMachine.Transition(statemachine.GenerationStatus(record.Status), to, event.RequestID); err != nil {
		return err
	}

	apply(record, event)
	record.Status = string(to)

	if create {
		err = s.repo.Create(ctx, record)
	} else {
		err = s.repo.Save(ctx, record)
	}
	if err != nil {
		klog.Errorf("生成记录保存失败: requestID=%s, err=%v", event.RequestID, err)
		return err
	}
	klog.V(6).Infof("生成记录更新成功: requestID=%s, status=%s, tokens=%d", event.RequestID, record.Status, record.TotalTokens)
	return nil
}

// truncateMsg 按字节上限截断，切点落在字符边界上
func truncateMsg(msg string, limit int) string {
	if len(msg) <= limit {
		return msg
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}

// apply 只覆盖事件中携带的非零字段
func apply(record *model.GenerationRecord, event eventbus.GenerationEvent) {
	record.RequestID = event.RequestID
	setString(&record.DocumentKey, event.DocumentKey)
	setString(&record.DocumentName, event.DocumentName)
	setString(&record.DeckName, event.DeckName)
	setString(&record.ResponseFormat, event.ResponseFormat)
	setString(&record.AnchorStrategy, event.AnchorStrategy)
	setString(&record.Provider, event.Provider)
	setString(&record.Model, event.Model)
	setString(&record.ErrorKind, event.ErrorKind)
	if event.ErrorMsg != "" {
		record.ErrorMsg = truncateMsg(event.ErrorMsg, maxErrorMsgLength)
	}
	if event.SlideCount > 0 {
		record.SlideCount = event.SlideCount
	}
	if event.ExtractedChars > 0 {
		record.ExtractedChars = event.ExtractedChars
	}
	if event.SentChars > 0 {
		record.SentChars = event.SentChars
	}
	if event.Truncated {
		record.Truncated = true
	}
	if event.TotalTokens > 0 {
		record.PromptTokens = event.PromptTokens
		record.CompletionTokens = event.CompletionTokens
		record.TotalTokens = event.TotalTokens
	}
	if event.Duration > 0 {
		record.DurationMs = event.Duration.Milliseconds()
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
