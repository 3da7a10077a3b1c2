package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/document-insights/internal/core/domain"
	"github.com/kirillkom/document-insights/internal/core/ports"
)

const DefaultUploadMaxBytes int64 = 20 << 20

type IngestDocumentUseCase struct {
	repo     ports.DocumentRepository
	storage  ports.ObjectStorage
	maxBytes int64
}

func NewIngestDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	maxBytes int64,
) *IngestDocumentUseCase {
	if maxBytes <= 0 {
		maxBytes = DefaultUploadMaxBytes
	}
	return &IngestDocumentUseCase{
		repo:     repo,
		storage:  storage,
		maxBytes: maxBytes,
	}
}

func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	ownerID, filename, mimeType string,
	body io.Reader,
) (*domain.Document, error) {
	mimeType = normalizeMimeType(mimeType)
	if !domain.IsAllowedUploadType(mimeType) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", fmt.Errorf("file type not supported: %q", mimeType))
	}

	id := uuid.NewString()
	storageKey := id + strings.ToLower(filepath.Ext(sanitizeFilename(filename)))
	now := time.Now().UTC()

	size, err := uc.storage.Save(ctx, storageKey, &limitedReader{r: body, remaining: uc.maxBytes})
	if err != nil {
		if errors.Is(err, errUploadTooLarge) {
			_ = uc.storage.Delete(ctx, storageKey)
			return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", fmt.Errorf("file exceeds %d bytes", uc.maxBytes))
		}
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	doc := &domain.Document{
		ID:               id,
		OwnerID:          ownerID,
		Filename:         storageKey,
		OriginalFilename: filename,
		StoragePath:      storageKey,
		FileSize:         size,
		ContentType:      mimeType,
		Processed:        false,
		ProcessingStatus: domain.StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := uc.repo.Create(ctx, doc); err != nil {
		_ = uc.storage.Delete(ctx, storageKey)
		return nil, fmt.Errorf("create document metadata: %w", err)
	}
	return doc, nil
}

func (uc *IngestDocumentUseCase) List(ctx context.Context, ownerID string) ([]domain.Document, error) {
	docs, err := uc.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

func (uc *IngestDocumentUseCase) Get(ctx context.Context, documentID, ownerID string) (*domain.Document, error) {
	doc, err := uc.repo.GetByID(ctx, documentID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	return doc, nil
}

func (uc *IngestDocumentUseCase) Delete(ctx context.Context, documentID, ownerID string) error {
	doc, err := uc.repo.GetByID(ctx, documentID, ownerID)
	if err != nil {
		return fmt.Errorf("fetch document by id: %w", err)
	}
	if err := uc.storage.Delete(ctx, doc.StoragePath); err != nil {
		return fmt.Errorf("delete stored file: %w", err)
	}
	if err := uc.repo.Delete(ctx, doc.ID, ownerID); err != nil {
		return fmt.Errorf("delete document metadata: %w", err)
	}
	return nil
}

var errUploadTooLarge = errors.New("upload too large")

type limitedReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, errUploadTooLarge
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, errUploadTooLarge
	}
	return n, err
}

func normalizeMimeType(mimeType string) string {
	mimeType = strings.TrimSpace(strings.ToLower(mimeType))
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	return mimeType
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "document.bin"
	}
	return base
}
