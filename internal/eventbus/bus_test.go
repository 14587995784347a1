package eventbus

import (
	"context"
	"errors"
	"testing"
)

func TestBusPublishBroadcast(t *testing.T) {
	bus := NewGenerationEventBus()
	calledA := false
	calledB := false

	bus.Subscribe(GenerationEventCompleted, func(ctx context.Context, event GenerationEvent) error {
		calledA = true
		return nil
	})
	bus.Subscribe(GenerationEventCompleted, func(ctx context.Context, event GenerationEvent) error {
		calledB = event.RequestID == "req-1"
		return nil
	})

	if err := bus.Publish(context.Background(), GenerationEventCompleted, GenerationEvent{RequestID: "req-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !calledA || !calledB {
		t.Fatalf("expected handlers to be called")
	}
}

func TestBusOnlyMatchingType(t *testing.T) {
	bus := NewGenerationEventBus()
	called := false
	bus.Subscribe(GenerationEventFailed, func(ctx context.Context, event GenerationEvent) error {
		called = true
		return nil
	})

	if err := bus.Publish(context.Background(), GenerationEventStarted, GenerationEvent{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Fatalf("expected handler for another type not to be called")
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewGenerationEventBus()
	called := false
	unsubscribe := bus.Subscribe(GenerationEventStarted, func(ctx context.Context, event GenerationEvent) error {
		called = true
		return nil
	})
	unsubscribe()

	if err := bus.Publish(context.Background(), GenerationEventStarted, GenerationEvent{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Fatalf("expected handler to be unsubscribed")
	}
	if unsubscribe := bus.Subscribe(GenerationEventStarted, nil); unsubscribe == nil {
		t.Fatalf("expected no-op unsubscribe for nil handler")
	}
}

func TestBusPublishJoinErrors(t *testing.T) {
	bus := NewGenerationEventBus()
	bus.Subscribe(GenerationEventFailed, func(ctx context.Context, event GenerationEvent) error {
		return errors.New("err-a")
	})
	bus.Subscribe(GenerationEventFailed, func(ctx context.Context, event GenerationEvent) error {
		return errors.New("err-b")
	})

	if err := bus.Publish(context.Background(), GenerationEventFailed, GenerationEvent{}); err == nil {
		t.Fatalf("expected error")
	}
}
