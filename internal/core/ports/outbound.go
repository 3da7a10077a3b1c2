package ports

import (
	"context"
	"io"

	"github.com/kirillkom/document-insights/internal/core/domain"
)

// DocumentRepository persists document state and insights.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id, ownerID string) (*domain.Document, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Document, error)
	Delete(ctx context.Context, id, ownerID string) error

	// TransitionStatus moves the document from one status to another only if it
	// is still unprocessed and currently in from. It returns
	// domain.ErrProcessingConflict when the row did not match.
	TransitionStatus(ctx context.Context, id string, from, to domain.ProcessingStatus) error
	MarkFailed(ctx context.Context, id, errMessage string) error
	// CompleteWithInsight stores the insight and flips the document to
	// processed/completed atomically.
	CompleteWithInsight(ctx context.Context, id string, draft domain.InsightDraft) (*domain.Insight, error)
	GetInsight(ctx context.Context, documentID string) (*domain.Insight, error)
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// MessageQueue publishes/consumes processing requests.
type MessageQueue interface {
	PublishProcessRequested(ctx context.Context, req domain.ProcessRequest) error
	SubscribeProcessRequested(ctx context.Context, handler func(context.Context, domain.ProcessRequest) error) error
}

// TextExtractor extracts plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

// InsightRequester turns extracted text into an insight draft.
type InsightRequester interface {
	RequestInsights(ctx context.Context, text string) (domain.InsightDraft, error)
}

// LanguageModel completes a single system+user prompt.
type LanguageModel interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (string, error)
}

// Authenticator resolves bearer credentials to a user identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (domain.UserIdentity, error)
}
