package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/kirillkom/document-insights/internal/core/domain"
	"github.com/kirillkom/document-insights/internal/core/ports"
)

// DispatchProcessingUseCase checks the processing preconditions and hands the
// attempt to the worker queue. The worker runs ProcessByID, which re-checks
// everything and owns all status writes.
type DispatchProcessingUseCase struct {
	repo  ports.DocumentRepository
	queue ports.MessageQueue
}

func NewDispatchProcessingUseCase(repo ports.DocumentRepository, queue ports.MessageQueue) *DispatchProcessingUseCase {
	return &DispatchProcessingUseCase{repo: repo, queue: queue}
}

func (uc *DispatchProcessingUseCase) Dispatch(ctx context.Context, documentID, ownerID string) (domain.StatusView, error) {
	doc, err := uc.repo.GetByID(ctx, documentID, ownerID)
	if err != nil {
		return domain.StatusView{}, fmt.Errorf("fetch document by id: %w", err)
	}
	if doc.Processed {
		return domain.StatusView{}, domain.WrapError(domain.ErrAlreadyProcessed, "dispatch processing", fmt.Errorf("id=%s", documentID))
	}
	if doc.ProcessingStatus != domain.StatusPending {
		return domain.StatusView{}, domain.WrapError(domain.ErrProcessingConflict, "dispatch processing", fmt.Errorf("id=%s status=%s", documentID, doc.ProcessingStatus))
	}

	err = uc.queue.PublishProcessRequested(ctx, domain.ProcessRequest{
		DocumentID:  doc.ID,
		OwnerID:     doc.OwnerID,
		RequestedAt: time.Now().UTC(),
	})
	if err != nil {
		return domain.StatusView{}, fmt.Errorf("publish process request: %w", err)
	}

	return domain.StatusView{
		DocumentID:       doc.ID,
		ProcessingStatus: doc.ProcessingStatus,
		Processed:        doc.Processed,
	}, nil
}
