package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/document-insights/internal/core/domain"
	"github.com/kirillkom/document-insights/internal/infrastructure/repository/memory"
)

type queueFake struct {
	published []domain.ProcessRequest
	err       error
}

func (f *queueFake) PublishProcessRequested(_ context.Context, req domain.ProcessRequest) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, req)
	return nil
}

func (f *queueFake) SubscribeProcessRequested(context.Context, func(context.Context, domain.ProcessRequest) error) error {
	return errors.New("not implemented")
}

func TestDispatchPublishesPendingDocument(t *testing.T) {
	repo := memory.NewDocumentRepository()
	seedDocument(t, repo, "d1", "u1", "d1.txt", domain.StatusPending)
	queue := &queueFake{}

	view, err := NewDispatchProcessingUseCase(repo, queue).Dispatch(context.Background(), "d1", "u1")
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if view.ProcessingStatus != domain.StatusPending || view.DocumentID != "d1" {
		t.Fatalf("unexpected view: %+v", view)
	}
	if len(queue.published) != 1 || queue.published[0].OwnerID != "u1" || queue.published[0].RequestedAt.IsZero() {
		t.Fatalf("unexpected published requests: %+v", queue.published)
	}
}

func TestDispatchRejectsProcessedAndBusyDocuments(t *testing.T) {
	tests := []struct {
		status domain.ProcessingStatus
		want   error
	}{
		{status: domain.StatusCompleted, want: domain.ErrAlreadyProcessed},
		{status: domain.StatusProcessing, want: domain.ErrProcessingConflict},
		{status: domain.StatusFailed, want: domain.ErrProcessingConflict},
	}
	for _, tc := range tests {
		t.Run(string(tc.status), func(t *testing.T) {
			repo := memory.NewDocumentRepository()
			seedDocument(t, repo, "d1", "u1", "d1.txt", tc.status)
			queue := &queueFake{}

			_, err := NewDispatchProcessingUseCase(repo, queue).Dispatch(context.Background(), "d1", "u1")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if len(queue.published) != 0 {
				t.Fatalf("nothing should be published")
			}
		})
	}
}

func TestDispatchPublishError(t *testing.T) {
	repo := memory.NewDocumentRepository()
	seedDocument(t, repo, "d1", "u1", "d1.txt", domain.StatusPending)
	queue := &queueFake{err: errors.New("nats down")}

	if _, err := NewDispatchProcessingUseCase(repo, queue).Dispatch(context.Background(), "d1", "u1"); err == nil {
		t.Fatalf("expected publish error")
	}
	doc, _ := repo.GetByID(context.Background(), "d1", "u1")
	if doc.ProcessingStatus != domain.StatusPending {
		t.Fatalf("status must stay pending, got %s", doc.ProcessingStatus)
	}
}
