package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/kirillkom/document-insights/internal/core/domain"
	"github.com/kirillkom/document-insights/internal/core/ports"
)

type processRecorder interface {
	StartDocument()
	FinishDocument(status string, duration time.Duration)
	ObserveQueueLag(lag time.Duration)
}

// newProcessHandler runs one processing attempt per queued request. Requests
// that fail a precondition are skipped: another attempt already owns the
// document or it is gone.
func newProcessHandler(processor ports.DocumentProcessor, recorder processRecorder, timeout time.Duration, logger *slog.Logger) func(context.Context, domain.ProcessRequest) error {
	return func(ctx context.Context, req domain.ProcessRequest) error {
		if !req.RequestedAt.IsZero() {
			recorder.ObserveQueueLag(time.Since(req.RequestedAt))
		}

		processCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		start := time.Now()
		recorder.StartDocument()
		_, err := processor.ProcessByID(processCtx, req.DocumentID, req.OwnerID)
		status := attemptStatus(err)
		recorder.FinishDocument(status, time.Since(start))

		if status == "skipped" {
			logger.Info("document_process_skipped", "document_id", req.DocumentID, "reason", err.Error())
			return nil
		}
		return err
	}
}

func attemptStatus(err error) string {
	switch {
	case err == nil:
		return string(domain.StatusCompleted)
	case domain.IsProcessingFailure(err):
		return string(domain.StatusFailed)
	case domain.IsKind(err, domain.ErrAlreadyProcessed),
		domain.IsKind(err, domain.ErrProcessingConflict),
		domain.IsKind(err, domain.ErrDocumentNotFound):
		return "skipped"
	default:
		return "error"
	}
}
