package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kirillkom/document-insights/internal/core/domain"
	"github.com/kirillkom/document-insights/internal/core/ports"
)

type ProcessDocumentUseCase struct {
	repo      ports.DocumentRepository
	extractor ports.TextExtractor
	requester ports.InsightRequester
	logger    *slog.Logger
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	extractor ports.TextExtractor,
	requester ports.InsightRequester,
	logger *slog.Logger,
) *ProcessDocumentUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessDocumentUseCase{
		repo:      repo,
		extractor: extractor,
		requester: requester,
		logger:    logger,
	}
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID, ownerID string) (*domain.ProcessingOutcome, error) {
	doc, err := uc.loadDocument(ctx, documentID, ownerID)
	if err != nil {
		return nil, err
	}
	if doc.Processed {
		return nil, domain.WrapError(domain.ErrAlreadyProcessed, "process document", fmt.Errorf("id=%s", documentID))
	}

	// Durable before any work so a crash mid-pipeline reads as processing.
	if err := uc.repo.TransitionStatus(ctx, doc.ID, domain.StatusPending, domain.StatusProcessing); err != nil {
		return nil, fmt.Errorf("set status=processing: %w", err)
	}

	insight, err := uc.processPipeline(ctx, doc)
	if err != nil {
		uc.logger.Error("document_process_failed",
			"document_id", doc.ID,
			"owner_id", doc.OwnerID,
			"content_type", doc.ContentType,
			"error", err,
		)
		if failErr := uc.markFailed(ctx, doc.ID, err); failErr != nil {
			return nil, fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return nil, err
	}

	uc.logger.Info("document_processed",
		"document_id", doc.ID,
		"insight_id", insight.ID,
		"word_count", insight.WordCount,
	)
	return &domain.ProcessingOutcome{
		Status:     domain.StatusCompleted,
		Message:    "Document processed successfully",
		DocumentID: doc.ID,
	}, nil
}

func (uc *ProcessDocumentUseCase) GetStatus(ctx context.Context, documentID, ownerID string) (domain.StatusView, error) {
	doc, err := uc.loadDocument(ctx, documentID, ownerID)
	if err != nil {
		return domain.StatusView{}, err
	}
	return domain.StatusView{
		DocumentID:       doc.ID,
		ProcessingStatus: doc.ProcessingStatus,
		Processed:        doc.Processed,
	}, nil
}

func (uc *ProcessDocumentUseCase) GetInsights(ctx context.Context, documentID, ownerID string) (*domain.InsightView, error) {
	doc, err := uc.loadDocument(ctx, documentID, ownerID)
	if err != nil {
		return nil, err
	}
	if !doc.Processed {
		return nil, domain.WrapError(domain.ErrNotYetProcessed, "get insights", fmt.Errorf("id=%s status=%s", doc.ID, doc.ProcessingStatus))
	}

	insight, err := uc.repo.GetInsight(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch insight: %w", err)
	}
	view := insight.View()
	return &view, nil
}

func (uc *ProcessDocumentUseCase) processPipeline(ctx context.Context, doc *domain.Document) (*domain.Insight, error) {
	text, err := uc.extractText(ctx, doc)
	if err != nil {
		return nil, err
	}

	draft, err := uc.requestInsights(ctx, text)
	if err != nil {
		return nil, err
	}

	return uc.persistInsight(ctx, doc.ID, draft)
}

func (uc *ProcessDocumentUseCase) loadDocument(ctx context.Context, documentID, ownerID string) (*domain.Document, error) {
	doc, err := uc.repo.GetByID(ctx, documentID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	return doc, nil
}

func (uc *ProcessDocumentUseCase) extractText(ctx context.Context, doc *domain.Document) (string, error) {
	text, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return "", domain.WrapError(domain.ErrExtractionFailed, "extract text", err)
	}
	return text, nil
}

func (uc *ProcessDocumentUseCase) requestInsights(ctx context.Context, text string) (domain.InsightDraft, error) {
	draft, err := uc.requester.RequestInsights(ctx, text)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyInput) {
			return domain.InsightDraft{}, domain.WrapError(domain.ErrExtractionFailed, "request insights", err)
		}
		return domain.InsightDraft{}, domain.WrapError(domain.ErrModelQueryFailed, "request insights", err)
	}
	return draft, nil
}

func (uc *ProcessDocumentUseCase) persistInsight(ctx context.Context, documentID string, draft domain.InsightDraft) (*domain.Insight, error) {
	insight, err := uc.repo.CompleteWithInsight(ctx, documentID, draft)
	if err != nil {
		return nil, domain.WrapError(domain.ErrProcessingFailed, "save insight", err)
	}
	return insight, nil
}

func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, documentID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	// The failed status must land even when the caller went away.
	return uc.repo.MarkFailed(context.WithoutCancel(ctx), documentID, processErr.Error())
}
