package httpadapter

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/kirillkom/document-insights/internal/core/domain"
)

type processorFake struct {
	outcome *domain.ProcessingOutcome
	err     error
}

func (f processorFake) ProcessByID(context.Context, string, string) (*domain.ProcessingOutcome, error) {
	return f.outcome, f.err
}

func (f processorFake) GetStatus(_ context.Context, documentID, _ string) (domain.StatusView, error) {
	if f.err != nil {
		return domain.StatusView{}, f.err
	}
	return domain.StatusView{DocumentID: documentID, ProcessingStatus: domain.StatusPending}, nil
}

func (f processorFake) GetInsights(context.Context, string, string) (*domain.InsightView, error) {
	return nil, f.err
}

type dispatcherFake struct {
	calls []string
	err   error
}

func (f *dispatcherFake) Dispatch(_ context.Context, documentID, ownerID string) (domain.StatusView, error) {
	f.calls = append(f.calls, ownerID+"/"+documentID)
	if f.err != nil {
		return domain.StatusView{}, f.err
	}
	return domain.StatusView{DocumentID: documentID, ProcessingStatus: domain.StatusPending}, nil
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	cause := errors.New("boom")
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", domain.WrapError(domain.ErrDocumentNotFound, "get", cause), http.StatusNotFound},
		{"insight missing", domain.WrapError(domain.ErrInsightNotFound, "get", cause), http.StatusNotFound},
		{"already processed", domain.WrapError(domain.ErrAlreadyProcessed, "process", cause), http.StatusBadRequest},
		{"not yet processed", domain.WrapError(domain.ErrNotYetProcessed, "insights", cause), http.StatusBadRequest},
		{"invalid input", domain.WrapError(domain.ErrInvalidInput, "upload", cause), http.StatusBadRequest},
		{"conflict", domain.WrapError(domain.ErrProcessingConflict, "process", cause), http.StatusConflict},
		{"unauthenticated", domain.WrapError(domain.ErrUnauthenticated, "auth", cause), http.StatusUnauthorized},
		{"rate limited", domain.WrapError(domain.ErrRateLimited, "dispatch", cause), http.StatusTooManyRequests},
		{"temporary", domain.WrapError(domain.ErrTemporary, "publish", cause), http.StatusServiceUnavailable},
		{
			"extraction failure wins over its cause",
			domain.WrapError(domain.ErrExtractionFailed, "process", domain.WrapError(domain.ErrUnsupportedFormat, "extract", cause)),
			http.StatusInternalServerError,
		},
		{
			"model failure wins over rate limit cause",
			domain.WrapError(domain.ErrModelQueryFailed, "process", domain.WrapError(domain.ErrRateLimited, "complete", cause)),
			http.StatusInternalServerError,
		},
		{"unknown", cause, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := mapErrorToHTTPStatus(tc.err); got != tc.want {
				t.Fatalf("mapErrorToHTTPStatus() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestProcessFailureHidesCause(t *testing.T) {
	secret := errors.New("ollama at 10.0.0.7 refused connection")
	handler := newTestHandler(t, testConfig(), Dependencies{
		Processor: processorFake{err: domain.WrapError(domain.ErrModelQueryFailed, "process", secret)},
	})

	res := doRequest(t, handler, http.MethodPost, "/v1/documents/doc-1/process", aliceToken, nil, "")
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
	if strings.Contains(res.Body.String(), "10.0.0.7") {
		t.Fatalf("response leaked the cause: %s", res.Body.String())
	}
}

func TestGetStatusMapsNotFound(t *testing.T) {
	handler := newTestHandler(t, testConfig(), Dependencies{
		Processor: processorFake{err: domain.WrapError(domain.ErrDocumentNotFound, "get", errors.New("id=missing"))},
	})

	res := doRequest(t, handler, http.MethodGet, "/v1/documents/missing/status", aliceToken, nil, "")
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestAsyncProcessDispatches(t *testing.T) {
	dispatcher := &dispatcherFake{}
	handler := newTestHandler(t, testConfig(), Dependencies{
		Processor:  processorFake{err: errors.New("sync path must not run")},
		Dispatcher: dispatcher,
	})

	res := doRequest(t, handler, http.MethodPost, "/v1/documents/doc-1/process?async=true", aliceToken, nil, "")
	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if len(dispatcher.calls) != 1 || dispatcher.calls[0] != "alice/doc-1" {
		t.Fatalf("unexpected dispatch calls: %v", dispatcher.calls)
	}
	view := decodeBody[domain.StatusView](t, res)
	if view.DocumentID != "doc-1" || view.ProcessingStatus != domain.StatusPending {
		t.Fatalf("unexpected view: %+v", view)
	}

	res = doRequest(t, handler, http.MethodPost, "/v1/documents/doc-1/process?async=maybe", aliceToken, nil, "")
	if res.Code != http.StatusBadRequest {
		t.Fatalf("invalid async flag expected 400, got %d", res.Code)
	}
}

func TestAsyncProcessErrors(t *testing.T) {
	handler := newTestHandler(t, testConfig(), Dependencies{Processor: processorFake{}})
	res := doRequest(t, handler, http.MethodPost, "/v1/documents/doc-1/process?async=1", aliceToken, nil, "")
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("missing dispatcher expected 503, got %d", res.Code)
	}

	dispatcher := &dispatcherFake{err: domain.WrapError(domain.ErrTemporary, "publish", errors.New("nats down"))}
	handler = newTestHandler(t, testConfig(), Dependencies{Processor: processorFake{}, Dispatcher: dispatcher})
	res = doRequest(t, handler, http.MethodPost, "/v1/documents/doc-1/process?async=true", aliceToken, nil, "")
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("queue outage expected 503, got %d", res.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler := newTestHandler(t, testConfig(), Dependencies{Processor: processorFake{}})
	res := doRequest(t, handler, http.MethodPut, "/v1/documents/doc-1/status", aliceToken, nil, "")
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}
