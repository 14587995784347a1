package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/kaizen-comms/backend/internal/model"
	"gorm.io/gorm"
)

func setupRecordRepo(t *testing.T) GenerationRecordRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	if err := db.AutoMigrate(&model.GenerationRecord{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return NewGenerationRecordRepository(db)
}

func TestGenerationRecordRepository_CreateAndGet(t *testing.T) {
	repo := setupRecordRepo(t)
	ctx := context.Background()

	record := &model.GenerationRecord{
		RequestID:    "req-1",
		DocumentKey:  "executive-summary",
		DocumentName: "Executive Summary",
		DeckName:     "kaizen.pptx",
		SlideCount:   12,
		Status:       model.GenerationStatusRunning,
	}
	if err := repo.Create(ctx, record); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if record.ID == 0 {
		t.Fatalf("expected ID to be assigned")
	}

	record.Status = model.GenerationStatusSucceeded
	record.TotalTokens = 1200
	if err := repo.Save(ctx, record); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := repo.Get(ctx, "req-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != model.GenerationStatusSucceeded || got.TotalTokens != 1200 {
		t.Errorf("unexpected record: %+v", got)
	}
	if got.SlideCount != 12 || got.DeckName != "kaizen.pptx" {
		t.Errorf("unexpected record fields: %+v", got)
	}

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGenerationRecordRepository_List(t *testing.T) {
	repo := setupRecordRepo(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		r := &model.GenerationRecord{RequestID: fmt.Sprintf("req-%d", i), Status: model.GenerationStatusSucceeded}
		if err := repo.Create(ctx, r); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	list, err := repo.List(ctx, 3)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 records, got %d", len(list))
	}
	if list[0].RequestID != "req-5" {
		t.Errorf("expected newest first, got %s", list[0].RequestID)
	}

	all, err := repo.List(ctx, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("expected 5 records with default limit, got %d", len(all))
	}
}

func TestGenerationRecordRepository_UniqueRequestID(t *testing.T) {
	repo := setupRecordRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, &model.GenerationRecord{RequestID: "dup"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := repo.Create(ctx, &model.GenerationRecord{RequestID: "dup"}); err == nil {
		t.Errorf("expected duplicate request_id to fail")
	}
}
