package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/document-insights/internal/core/domain"
)

func seed(t *testing.T, repo *DocumentRepository, id, owner string, created time.Time) {
	t.Helper()
	err := repo.Create(context.Background(), &domain.Document{
		ID:               id,
		OwnerID:          owner,
		ProcessingStatus: domain.StatusPending,
		CreatedAt:        created,
		UpdatedAt:        created,
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
}

func TestCreateRejectsInconsistentDocument(t *testing.T) {
	repo := NewDocumentRepository()
	err := repo.Create(context.Background(), &domain.Document{ID: "d1", Processed: true, ProcessingStatus: domain.StatusPending})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestTransitionStatusIsCompareAndSet(t *testing.T) {
	repo := NewDocumentRepository()
	seed(t, repo, "d1", "u1", time.Now())

	const workers = 16
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.TransitionStatus(context.Background(), "d1", domain.StatusPending, domain.StatusProcessing)
			if err == nil {
				wins.Add(1)
				return
			}
			if !errors.Is(err, domain.ErrProcessingConflict) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins.Load())
	}
}

func TestCompleteWithInsightRequiresProcessing(t *testing.T) {
	repo := NewDocumentRepository()
	seed(t, repo, "d1", "u1", time.Now())
	ctx := context.Background()

	if _, err := repo.CompleteWithInsight(ctx, "d1", domain.InsightDraft{}); !errors.Is(err, domain.ErrProcessingConflict) {
		t.Fatalf("expected ErrProcessingConflict for pending document, got %v", err)
	}
	if err := repo.TransitionStatus(ctx, "d1", domain.StatusPending, domain.StatusProcessing); err != nil {
		t.Fatalf("TransitionStatus() error: %v", err)
	}
	insight, err := repo.CompleteWithInsight(ctx, "d1", domain.InsightDraft{Summary: "s", KeyPoints: []string{"a"}})
	if err != nil {
		t.Fatalf("CompleteWithInsight() error: %v", err)
	}
	if insight.DocumentID != "d1" || insight.ID == "" {
		t.Fatalf("unexpected insight: %+v", insight)
	}

	doc, _ := repo.GetByID(ctx, "d1", "u1")
	if !doc.Processed || doc.ProcessingStatus != domain.StatusCompleted {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if _, err := repo.CompleteWithInsight(ctx, "d1", domain.InsightDraft{}); !errors.Is(err, domain.ErrProcessingConflict) {
		t.Fatalf("second completion must conflict, got %v", err)
	}
	if err := repo.MarkFailed(ctx, "d1", "late"); !errors.Is(err, domain.ErrProcessingConflict) {
		t.Fatalf("completed document must not be marked failed, got %v", err)
	}
}

func TestListByOwnerNewestFirst(t *testing.T) {
	repo := NewDocumentRepository()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seed(t, repo, "old", "u1", base)
	seed(t, repo, "new", "u1", base.Add(time.Hour))
	seed(t, repo, "other", "u2", base)

	docs, err := repo.ListByOwner(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListByOwner() error: %v", err)
	}
	if len(docs) != 2 || docs[0].ID != "new" || docs[1].ID != "old" {
		t.Fatalf("unexpected order: %+v", docs)
	}
}

func TestDeleteDropsInsight(t *testing.T) {
	repo := NewDocumentRepository()
	seed(t, repo, "d1", "u1", time.Now())
	ctx := context.Background()
	_ = repo.TransitionStatus(ctx, "d1", domain.StatusPending, domain.StatusProcessing)
	if _, err := repo.CompleteWithInsight(ctx, "d1", domain.InsightDraft{Summary: "s"}); err != nil {
		t.Fatalf("CompleteWithInsight() error: %v", err)
	}

	if err := repo.Delete(ctx, "d1", "u1"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := repo.GetInsight(ctx, "d1"); !errors.Is(err, domain.ErrInsightNotFound) {
		t.Fatalf("expected insight to be removed, got %v", err)
	}
}
