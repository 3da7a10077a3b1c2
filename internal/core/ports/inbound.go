package ports

import (
	"context"
	"io"

	"github.com/kirillkom/document-insights/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload and management.
type DocumentIngestor interface {
	Upload(ctx context.Context, ownerID, filename, mimeType string, body io.Reader) (*domain.Document, error)
	List(ctx context.Context, ownerID string) ([]domain.Document, error)
	Get(ctx context.Context, documentID, ownerID string) (*domain.Document, error)
	Delete(ctx context.Context, documentID, ownerID string) error
}

// DocumentProcessor is the inbound contract for the processing state machine.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID, ownerID string) (*domain.ProcessingOutcome, error)
	GetStatus(ctx context.Context, documentID, ownerID string) (domain.StatusView, error)
	GetInsights(ctx context.Context, documentID, ownerID string) (*domain.InsightView, error)
}

// ProcessDispatcher hands a processing attempt to the async worker.
type ProcessDispatcher interface {
	Dispatch(ctx context.Context, documentID, ownerID string) (domain.StatusView, error)
}

// InsightExporter renders an owner's insights as a spreadsheet.
type InsightExporter interface {
	ExportXLSX(ctx context.Context, ownerID string) ([]byte, error)
}
