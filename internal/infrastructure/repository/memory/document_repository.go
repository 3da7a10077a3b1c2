// Package memory keeps documents and insights in process memory. It is used
// when no Postgres DSN is configured and as a collaborator in tests; its
// status transitions follow the same compare-and-set rules as Postgres.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/document-insights/internal/core/domain"
)

type DocumentRepository struct {
	mu        sync.RWMutex
	documents map[string]domain.Document
	insights  map[string]domain.Insight
}

func NewDocumentRepository() *DocumentRepository {
	return &DocumentRepository{
		documents: make(map[string]domain.Document),
		insights:  make(map[string]domain.Insight),
	}
}

func (r *DocumentRepository) Create(_ context.Context, doc *domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.documents[doc.ID]; exists {
		return domain.WrapError(domain.ErrInvalidInput, "insert document", fmt.Errorf("duplicate id %s", doc.ID))
	}
	if doc.Processed != (doc.ProcessingStatus == domain.StatusCompleted) {
		return domain.WrapError(domain.ErrInvalidInput, "insert document", fmt.Errorf("processed flag does not match status %s", doc.ProcessingStatus))
	}
	r.documents[doc.ID] = *doc
	return nil
}

func (r *DocumentRepository) GetByID(_ context.Context, id, ownerID string) (*domain.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.documents[id]
	if !ok || doc.OwnerID != ownerID {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
	}
	return &doc, nil
}

func (r *DocumentRepository) ListByOwner(_ context.Context, ownerID string) ([]domain.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Document, 0)
	for _, doc := range r.documents {
		if doc.OwnerID == ownerID {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *DocumentRepository) Delete(_ context.Context, id, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.documents[id]
	if !ok || doc.OwnerID != ownerID {
		return domain.WrapError(domain.ErrDocumentNotFound, "delete document", fmt.Errorf("id=%s", id))
	}
	delete(r.documents, id)
	delete(r.insights, id)
	return nil
}

func (r *DocumentRepository) TransitionStatus(_ context.Context, id string, from, to domain.ProcessingStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.documents[id]
	if !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "transition status", fmt.Errorf("id=%s", id))
	}
	if doc.Processed || doc.ProcessingStatus != from {
		return domain.WrapError(domain.ErrProcessingConflict, "transition status", fmt.Errorf("id=%s status=%s expected=%s", id, doc.ProcessingStatus, from))
	}
	doc.ProcessingStatus = to
	doc.UpdatedAt = time.Now().UTC()
	r.documents[id] = doc
	return nil
}

func (r *DocumentRepository) MarkFailed(_ context.Context, id, errMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.documents[id]
	if !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "mark failed", fmt.Errorf("id=%s", id))
	}
	if doc.ProcessingStatus != domain.StatusProcessing {
		return domain.WrapError(domain.ErrProcessingConflict, "mark failed", fmt.Errorf("id=%s status=%s", id, doc.ProcessingStatus))
	}
	doc.ProcessingStatus = domain.StatusFailed
	doc.Error = errMessage
	doc.UpdatedAt = time.Now().UTC()
	r.documents[id] = doc
	return nil
}

func (r *DocumentRepository) CompleteWithInsight(_ context.Context, id string, draft domain.InsightDraft) (*domain.Insight, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.documents[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "complete document", fmt.Errorf("id=%s", id))
	}
	if doc.ProcessingStatus != domain.StatusProcessing {
		return nil, domain.WrapError(domain.ErrProcessingConflict, "complete document", fmt.Errorf("id=%s status=%s", id, doc.ProcessingStatus))
	}
	if _, exists := r.insights[id]; exists {
		return nil, domain.WrapError(domain.ErrProcessingConflict, "insert insight", fmt.Errorf("insight already exists for %s", id))
	}

	now := time.Now().UTC()
	insight := domain.Insight{
		ID:         uuid.NewString(),
		DocumentID: id,
		Summary:    draft.Summary,
		KeyPoints:  append([]string(nil), draft.KeyPoints...),
		Entities:   append([]string(nil), draft.Entities...),
		Sentiment:  draft.Sentiment,
		WordCount:  draft.WordCount,
		CreatedAt:  now,
	}
	r.insights[id] = insight

	doc.Processed = true
	doc.ProcessingStatus = domain.StatusCompleted
	doc.Error = ""
	doc.UpdatedAt = now
	r.documents[id] = doc

	out := insight
	return &out, nil
}

func (r *DocumentRepository) GetInsight(_ context.Context, documentID string) (*domain.Insight, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	insight, ok := r.insights[documentID]
	if !ok {
		return nil, domain.WrapError(domain.ErrInsightNotFound, "get insight", fmt.Errorf("document_id=%s", documentID))
	}
	return &insight, nil
}
