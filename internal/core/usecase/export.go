package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/document-insights/internal/core/domain"
	"github.com/kirillkom/document-insights/internal/core/ports"
)

const exportSheet = "Insights"

var exportHeaders = []string{
	"Document ID",
	"Original Filename",
	"Content Type",
	"Status",
	"Summary",
	"Key Points",
	"Entities",
	"Sentiment",
	"Word Count",
	"Uploaded At",
}

// ExportInsightsUseCase produces an XLSX workbook with one row per document of
// an owner. Unprocessed documents get a row with empty insight columns.
type ExportInsightsUseCase struct {
	repo   ports.DocumentRepository
	logger *slog.Logger
}

func NewExportInsightsUseCase(repo ports.DocumentRepository, logger *slog.Logger) *ExportInsightsUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportInsightsUseCase{repo: repo, logger: logger}
}

func (uc *ExportInsightsUseCase) ExportXLSX(ctx context.Context, ownerID string) ([]byte, error) {
	start := time.Now()

	docs, err := uc.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, fmt.Errorf("xlsx rename sheet: %w", err)
	}
	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(exportSheet, cell, h)
	}

	row := 2
	for _, doc := range docs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(exportSheet, cell, v)
		}

		write(1, doc.ID)
		write(2, doc.OriginalFilename)
		write(3, doc.ContentType)
		write(4, string(doc.ProcessingStatus))
		write(10, doc.CreatedAt.UTC().Format(time.RFC3339))

		if doc.Processed {
			insight, err := uc.repo.GetInsight(ctx, doc.ID)
			if domain.IsKind(err, domain.ErrInsightNotFound) {
				// Processed without an insight row; export the metadata alone.
				uc.logger.Warn("export_insight_missing", "document_id", doc.ID)
				row++
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("fetch insight for %s: %w", doc.ID, err)
			}
			write(5, insight.Summary)
			write(6, strings.Join(insight.KeyPoints, "\n"))
			write(7, strings.Join(insight.Entities, "\n"))
			write(8, insight.Sentiment)
			write(9, insight.WordCount)
		}
		row++
	}

	_ = f.SetColWidth(exportSheet, "A", "A", 38)
	_ = f.SetColWidth(exportSheet, "B", "B", 28)
	_ = f.SetColWidth(exportSheet, "E", "G", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	uc.logger.Info("export_xlsx_done",
		"owner_id", ownerID,
		"rows", len(docs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
