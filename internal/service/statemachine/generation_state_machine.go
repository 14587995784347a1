package statemachine

import (
	"fmt"

	"github.com/kaizen-comms/backend/internal/model"
	"k8s.io/klog/v2"
)

// GenerationStatus 生成记录的状态，空值表示记录尚未创建
type GenerationStatus string

const (
	GenerationStatusNone      GenerationStatus = ""
	GenerationStatusRunning   GenerationStatus = model.GenerationStatusRunning
	GenerationStatusSucceeded GenerationStatus = model.GenerationStatusSucceeded
	GenerationStatusFailed    GenerationStatus = model.GenerationStatusFailed
)

// GenerationTransition 状态迁移
type GenerationTransition struct {
	From GenerationStatus
	To   GenerationStatus
}

// GenerationStateMachine 生成记录状态机
type GenerationStateMachine struct {
	allowedTransitions map[GenerationTransition]bool
}

// NewGenerationStateMachine 创建状态机
func NewGenerationStateMachine() *GenerationStateMachine {
	sm := &GenerationStateMachine{
		allowedTransitions: make(map[GenerationTransition]bool),
	}

	// none -> running -> succeeded/failed
	// 开始事件丢失时允许直接进入终止态
	transitions := []GenerationTransition{
		{GenerationStatusNone, GenerationStatusRunning},
		{GenerationStatusRunning, GenerationStatusSucceeded},
		{GenerationStatusRunning, GenerationStatusFailed},
		{GenerationStatusNone, GenerationStatusSucceeded},
		{GenerationStatusNone, GenerationStatusFailed},
	}
	for _, t := range transitions {
		sm.allowedTransitions[t] = true
	}
	return sm
}

// CanTransition 检查迁移是否合法
func (sm *GenerationStateMachine) CanTransition(from, to GenerationStatus) bool {
	return sm.allowedTransitions[GenerationTransition{From: from, To: to}]
}

// Transition 校验迁移并记录日志
func (sm *GenerationStateMachine) Transition(from, to GenerationStatus, requestID string) error {
	if !sm.CanTransition(from, to) {
		err := &InvalidStateTransitionError{From: string(from), To: string(to)}
		klog.V(6).Infof("生成记录状态迁移被拒绝: requestID=%s, %q -> %q", requestID, from, to)
		return err
	}
	klog.V(6).Infof("生成记录状态迁移: requestID=%s, %q -> %q", requestID, from, to)
	return nil
}

// InvalidStateTransitionError 无效的状态迁移
type InvalidStateTransitionError struct {
	From string
	To   string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid generation state transition: %q -> %q", e.From, e.To)
}

// IsTerminal 是否为终止态
func IsTerminal(status GenerationStatus) bool {
	return status == GenerationStatusSucceeded || status == GenerationStatusFailed
}
