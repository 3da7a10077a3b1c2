// Package extractor turns stored PDF, DOCX and TXT documents into plain text.
package extractor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/kirillkom/document-insights/internal/core/domain"
	"github.com/kirillkom/document-insights/internal/core/ports"
)

type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatTXT  Format = "txt"
)

var contentTypeFormats = map[string]Format{
	domain.MimePDF:  FormatPDF,
	domain.MimeDOCX: FormatDOCX,
	domain.MimeText: FormatTXT,
}

type Extractor struct {
	storage ports.ObjectStorage
	logger  *slog.Logger
}

func New(storage ports.ObjectStorage, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{storage: storage, logger: logger}
}

func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	return e.ExtractText(ctx, doc.StoragePath, doc.ContentType)
}

// ExtractText reads the blob at storagePath and returns its text. The format
// comes from the path extension; contentType is only consulted when the path
// has none.
func (e *Extractor) ExtractText(ctx context.Context, storagePath, contentType string) (string, error) {
	format, err := Detect(storagePath, contentType)
	if err != nil {
		return "", err
	}

	raw, err := e.readBlob(ctx, storagePath)
	if err != nil {
		return "", err
	}

	var text string
	switch format {
	case FormatPDF:
		text, err = extractPDF(raw)
	case FormatDOCX:
		text, err = extractDOCX(raw)
	case FormatTXT:
		text, err = extractPlainText(raw)
	}
	if err != nil {
		return "", domain.WrapError(domain.ErrExtractionIO, "extract "+string(format), err)
	}

	e.logger.Debug("text_extracted",
		"storage_path", storagePath,
		"format", format,
		"bytes", len(raw),
		"chars", len(text),
	)
	return text, nil
}

// Detect resolves the document format for a stored path.
func Detect(storagePath, contentType string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(storagePath))
	switch ext {
	case ".pdf":
		return FormatPDF, nil
	case ".docx":
		return FormatDOCX, nil
	case ".txt":
		return FormatTXT, nil
	case "":
		if format, ok := contentTypeFormats[strings.ToLower(strings.TrimSpace(contentType))]; ok {
			return format, nil
		}
		return "", domain.WrapError(domain.ErrUnsupportedFormat, "detect format", fmt.Errorf("no extension and content type %q", contentType))
	default:
		return "", domain.WrapError(domain.ErrUnsupportedFormat, "detect format", fmt.Errorf("extension %q", ext))
	}
}

func (e *Extractor) readBlob(ctx context.Context, storagePath string) ([]byte, error) {
	reader, err := e.storage.Open(ctx, storagePath)
	if err != nil {
		return nil, domain.WrapError(domain.ErrExtractionIO, "open source document", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, domain.WrapError(domain.ErrExtractionIO, "read source document", err)
	}
	return raw, nil
}
