package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/document-insights/internal/core/domain"
)

const schemaLockID int64 = 2026101701

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	original_filename TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	file_size BIGINT NOT NULL DEFAULT 0,
	content_type TEXT NOT NULL,
	processed BOOLEAN NOT NULL DEFAULT FALSE,
	processing_status TEXT NOT NULL DEFAULT 'pending'
		CHECK (processing_status IN ('pending', 'processing', 'completed', 'failed')),
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	CONSTRAINT documents_processed_matches_status CHECK (processed = (processing_status = 'completed'))
);

CREATE INDEX IF NOT EXISTS idx_documents_owner_created ON documents(owner_id, created_at DESC);

CREATE TABLE IF NOT EXISTS document_insights (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL UNIQUE REFERENCES documents(id) ON DELETE CASCADE,
	summary TEXT NOT NULL,
	key_points JSONB NOT NULL DEFAULT '[]'::jsonb,
	entities JSONB NOT NULL DEFAULT '[]'::jsonb,
	sentiment TEXT NOT NULL,
	word_count INTEGER NOT NULL CHECK (word_count >= 0),
	created_at TIMESTAMPTZ NOT NULL
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (
	id, owner_id, filename, original_filename, storage_path, file_size, content_type,
	processed, processing_status, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`,
		doc.ID, doc.OwnerID, doc.Filename, doc.OriginalFilename, doc.StoragePath, doc.FileSize, doc.ContentType,
		doc.Processed, string(doc.ProcessingStatus), doc.Error, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

const documentColumns = `id, owner_id, filename, original_filename, storage_path, file_size, content_type,
	processed, processing_status, error_message, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var status string
	err := row.Scan(
		&doc.ID, &doc.OwnerID, &doc.Filename, &doc.OriginalFilename, &doc.StoragePath, &doc.FileSize, &doc.ContentType,
		&doc.Processed, &status, &doc.Error, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.ProcessingStatus = domain.ProcessingStatus(status)
	return &doc, nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id, ownerID string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE id = $1 AND owner_id = $2
`, id, ownerID)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return doc, nil
}

func (r *DocumentRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE owner_id = $1
ORDER BY created_at DESC, id
`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id, ownerID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return requireAffected(res, domain.ErrDocumentNotFound, "delete document", id)
}

func (r *DocumentRepository) TransitionStatus(ctx context.Context, id string, from, to domain.ProcessingStatus) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET processing_status = $3, updated_at = $4
WHERE id = $1 AND processing_status = $2 AND processed = FALSE
`, id, string(from), string(to), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("transition document status: %w", err)
	}
	return r.conflictOrMissing(ctx, res, "transition status", id)
}

func (r *DocumentRepository) MarkFailed(ctx context.Context, id, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET processing_status = $2, error_message = $3, updated_at = $4
WHERE id = $1 AND processing_status = $5
`, id, string(domain.StatusFailed), errMessage, time.Now().UTC(), string(domain.StatusProcessing))
	if err != nil {
		return fmt.Errorf("mark document failed: %w", err)
	}
	return r.conflictOrMissing(ctx, res, "mark failed", id)
}

func (r *DocumentRepository) CompleteWithInsight(ctx context.Context, id string, draft domain.InsightDraft) (*domain.Insight, error) {
	keyPoints, err := marshalList(draft.KeyPoints)
	if err != nil {
		return nil, fmt.Errorf("marshal key points: %w", err)
	}
	entities, err := marshalList(draft.Entities)
	if err != nil {
		return nil, fmt.Errorf("marshal entities: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin complete tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
UPDATE documents
SET processed = TRUE, processing_status = $2, error_message = '', updated_at = $3
WHERE id = $1 AND processing_status = $4
`, id, string(domain.StatusCompleted), now, string(domain.StatusProcessing))
	if err != nil {
		return nil, fmt.Errorf("complete document: %w", err)
	}
	if err := requireAffected(res, domain.ErrProcessingConflict, "complete document", id); err != nil {
		return nil, err
	}

	insight := &domain.Insight{
		ID:         uuid.NewString(),
		DocumentID: id,
		Summary:    draft.Summary,
		KeyPoints:  draft.KeyPoints,
		Entities:   draft.Entities,
		Sentiment:  draft.Sentiment,
		WordCount:  draft.WordCount,
		CreatedAt:  now,
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO document_insights (
	id, document_id, summary, key_points, entities, sentiment, word_count, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, insight.ID, id, insight.Summary, keyPoints, entities, insight.Sentiment, insight.WordCount, now)
	if err != nil {
		return nil, fmt.Errorf("insert insight: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit complete tx: %w", err)
	}
	return insight, nil
}

func (r *DocumentRepository) GetInsight(ctx context.Context, documentID string) (*domain.Insight, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, document_id, summary, key_points, entities, sentiment, word_count, created_at
FROM document_insights
WHERE document_id = $1
`, documentID)

	var insight domain.Insight
	var keyPointsRaw, entitiesRaw []byte
	err := row.Scan(
		&insight.ID, &insight.DocumentID, &insight.Summary, &keyPointsRaw, &entitiesRaw,
		&insight.Sentiment, &insight.WordCount, &insight.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrInsightNotFound, "get insight", fmt.Errorf("document_id=%s", documentID))
		}
		return nil, fmt.Errorf("scan insight: %w", err)
	}
	if err := json.Unmarshal(keyPointsRaw, &insight.KeyPoints); err != nil {
		return nil, fmt.Errorf("unmarshal key points: %w", err)
	}
	if err := json.Unmarshal(entitiesRaw, &insight.Entities); err != nil {
		return nil, fmt.Errorf("unmarshal entities: %w", err)
	}
	return &insight, nil
}

// conflictOrMissing turns a guarded UPDATE that matched nothing into either
// ErrDocumentNotFound or ErrProcessingConflict.
func (r *DocumentRepository) conflictOrMissing(ctx context.Context, res sql.Result, op, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("%s lookup: %w", op, err)
	}
	if !exists {
		return domain.WrapError(domain.ErrDocumentNotFound, op, fmt.Errorf("id=%s", id))
	}
	return domain.WrapError(domain.ErrProcessingConflict, op, fmt.Errorf("id=%s", id))
}

func requireAffected(res sql.Result, kind error, op, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return domain.WrapError(kind, op, fmt.Errorf("id=%s", id))
	}
	return nil
}

func marshalList(items []string) ([]byte, error) {
	if items == nil {
		items = []string{}
	}
	return json.Marshal(items)
}
