package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/kirillkom/document-insights/internal/config"
	"github.com/kirillkom/document-insights/internal/core/domain"
	"github.com/kirillkom/document-insights/internal/core/usecase"
	"github.com/kirillkom/document-insights/internal/infrastructure/extractor"
	"github.com/kirillkom/document-insights/internal/infrastructure/identity/statictoken"
	"github.com/kirillkom/document-insights/internal/infrastructure/repository/memory"
	"github.com/kirillkom/document-insights/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/document-insights/internal/observability/metrics"
)

const (
	aliceToken = "tok-alice"
	bobToken   = "tok-bob"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.Config {
	cfg := config.Defaults()
	cfg.APIRateLimitRPS = 0
	cfg.APIMaxInFlight = 0
	return cfg
}

func newTestHandler(t *testing.T, cfg config.Config, deps Dependencies) http.Handler {
	t.Helper()
	if deps.Authenticator == nil {
		auth, err := statictoken.Parse(aliceToken + ":alice," + bobToken + ":bob")
		if err != nil {
			t.Fatalf("statictoken.Parse() error = %v", err)
		}
		deps.Authenticator = auth
	}
	if deps.Logger == nil {
		deps.Logger = discardLogger()
	}
	router, err := NewRouter(cfg, deps)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	return router.Handler()
}

func doRequest(t *testing.T, handler http.Handler, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func multipartFile(t *testing.T, filename, contentType, content string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("CreatePart() error = %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return &body, writer.FormDataContentType()
}

func decodeBody[T any](t *testing.T, res *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode response %q: %v", res.Body.String(), err)
	}
	return out
}

type scriptedModel struct{}

func (scriptedModel) Complete(_ context.Context, req domain.CompletionRequest) (string, error) {
	switch {
	case strings.Contains(req.System, "key points"):
		return `["revenue grew", "costs fell"]`, nil
	case strings.Contains(req.System, "named entities"):
		return "```json\n[\"ACME\"]\n```", nil
	case strings.Contains(req.System, "sentiment"):
		return " Positive\n", nil
	default:
		return "A good quarter.", nil
	}
}

func newDocumentStack(t *testing.T, uploadMaxBytes int64, m *metrics.HTTPServerMetrics) http.Handler {
	t.Helper()
	repo := memory.NewDocumentRepository()
	storage, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs.New() error = %v", err)
	}
	logger := discardLogger()
	requester := usecase.NewInsightRequester(scriptedModel{}, usecase.DefaultInsightConfig(), logger)

	return newTestHandler(t, testConfig(), Dependencies{
		Ingestor:  usecase.NewIngestDocumentUseCase(repo, storage, uploadMaxBytes),
		Processor: usecase.NewProcessDocumentUseCase(repo, extractor.New(storage, logger), requester, logger),
		Exporter:  usecase.NewExportInsightsUseCase(repo, logger),
		Metrics:   m,
		Logger:    logger,
	})
}

func uploadText(t *testing.T, handler http.Handler, token, filename, content string) domain.Document {
	t.Helper()
	body, ct := multipartFile(t, filename, "text/plain", content)
	res := doRequest(t, handler, http.MethodPost, "/v1/documents", token, body, ct)
	if res.Code != http.StatusCreated {
		t.Fatalf("upload expected 201, got %d: %s", res.Code, res.Body.String())
	}
	return decodeBody[domain.Document](t, res)
}

func TestHealthzEndpoint(t *testing.T) {
	handler := newDocumentStack(t, 0, nil)
	res := doRequest(t, handler, http.MethodGet, "/healthz", "", nil, "")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestDocumentLifecycle(t *testing.T) {
	handler := newDocumentStack(t, 0, nil)

	doc := uploadText(t, handler, aliceToken, "q3 report.txt", "Quarterly revenue grew strongly.")
	if doc.ID == "" || doc.OwnerID != "alice" || doc.ProcessingStatus != domain.StatusPending || doc.Processed {
		t.Fatalf("unexpected uploaded document: %+v", doc)
	}
	if doc.OriginalFilename != "q3 report.txt" || doc.FileSize != int64(len("Quarterly revenue grew strongly.")) {
		t.Fatalf("unexpected upload metadata: %+v", doc)
	}

	res := doRequest(t, handler, http.MethodGet, "/v1/documents/"+doc.ID+"/insights", aliceToken, nil, "")
	if res.Code != http.StatusBadRequest {
		t.Fatalf("insights before processing expected 400, got %d", res.Code)
	}

	res = doRequest(t, handler, http.MethodPost, "/v1/documents/"+doc.ID+"/process", aliceToken, nil, "")
	if res.Code != http.StatusOK {
		t.Fatalf("process expected 200, got %d: %s", res.Code, res.Body.String())
	}
	outcome := decodeBody[domain.ProcessingOutcome](t, res)
	if outcome.Status != domain.StatusCompleted || outcome.DocumentID != doc.ID {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}

	res = doRequest(t, handler, http.MethodPost, "/v1/documents/"+doc.ID+"/process", aliceToken, nil, "")
	if res.Code != http.StatusBadRequest {
		t.Fatalf("second process expected 400, got %d", res.Code)
	}

	res = doRequest(t, handler, http.MethodGet, "/v1/documents/"+doc.ID+"/status", aliceToken, nil, "")
	status := decodeBody[domain.StatusView](t, res)
	if status.ProcessingStatus != domain.StatusCompleted || !status.Processed {
		t.Fatalf("unexpected status: %+v", status)
	}

	res = doRequest(t, handler, http.MethodGet, "/v1/documents/"+doc.ID+"/insights", aliceToken, nil, "")
	if res.Code != http.StatusOK {
		t.Fatalf("insights expected 200, got %d", res.Code)
	}
	insights := decodeBody[domain.InsightView](t, res)
	if insights.Summary != "A good quarter." || insights.Sentiment != "positive" || insights.WordCount != 4 {
		t.Fatalf("unexpected insights: %+v", insights)
	}
	if len(insights.KeyPoints) != 2 || len(insights.Entities) != 1 || insights.Entities[0] != "ACME" {
		t.Fatalf("unexpected insight lists: %+v", insights)
	}

	res = doRequest(t, handler, http.MethodGet, "/v1/documents/"+doc.ID, bobToken, nil, "")
	if res.Code != http.StatusNotFound {
		t.Fatalf("foreign owner expected 404, got %d", res.Code)
	}

	res = doRequest(t, handler, http.MethodGet, "/v1/exports/insights.xlsx", aliceToken, nil, "")
	if res.Code != http.StatusOK {
		t.Fatalf("export expected 200, got %d", res.Code)
	}
	if res.Header().Get("Content-Type") != xlsxContentType || !bytes.HasPrefix(res.Body.Bytes(), []byte("PK")) {
		t.Fatalf("export is not an xlsx payload: %q", res.Header().Get("Content-Type"))
	}

	res = doRequest(t, handler, http.MethodDelete, "/v1/documents/"+doc.ID, aliceToken, nil, "")
	if res.Code != http.StatusNoContent {
		t.Fatalf("delete expected 204, got %d", res.Code)
	}
	res = doRequest(t, handler, http.MethodGet, "/v1/documents/"+doc.ID, aliceToken, nil, "")
	if res.Code != http.StatusNotFound {
		t.Fatalf("deleted document expected 404, got %d", res.Code)
	}
}

func TestUnsupportedFormatFailsProcessing(t *testing.T) {
	handler := newDocumentStack(t, 0, nil)

	body, ct := multipartFile(t, "legacy.doc", "application/msword", "binary-ish")
	res := doRequest(t, handler, http.MethodPost, "/v1/documents", aliceToken, body, ct)
	if res.Code != http.StatusCreated {
		t.Fatalf("upload expected 201, got %d: %s", res.Code, res.Body.String())
	}
	doc := decodeBody[domain.Document](t, res)

	res = doRequest(t, handler, http.MethodPost, "/v1/documents/"+doc.ID+"/process", aliceToken, nil, "")
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("process expected 500, got %d", res.Code)
	}
	if got := decodeBody[map[string]string](t, res)["error"]; got != "document processing failed" {
		t.Fatalf("expected generic failure body, got %q", got)
	}

	res = doRequest(t, handler, http.MethodGet, "/v1/documents/"+doc.ID+"/status", aliceToken, nil, "")
	status := decodeBody[domain.StatusView](t, res)
	if status.ProcessingStatus != domain.StatusFailed || status.Processed {
		t.Fatalf("unexpected status after failure: %+v", status)
	}

	res = doRequest(t, handler, http.MethodPost, "/v1/documents/"+doc.ID+"/process", aliceToken, nil, "")
	if res.Code != http.StatusConflict {
		t.Fatalf("reprocessing a failed document expected 409, got %d", res.Code)
	}
}

func TestListDocumentsIsScopedToOwner(t *testing.T) {
	handler := newDocumentStack(t, 0, nil)
	uploadText(t, handler, aliceToken, "a.txt", "one")
	uploadText(t, handler, aliceToken, "b.txt", "two")
	uploadText(t, handler, bobToken, "c.txt", "three")

	res := doRequest(t, handler, http.MethodGet, "/v1/documents", aliceToken, nil, "")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	list := decodeBody[struct {
		Documents []domain.Document `json:"documents"`
	}](t, res)
	if len(list.Documents) != 2 {
		t.Fatalf("expected 2 documents for alice, got %d", len(list.Documents))
	}
	for _, doc := range list.Documents {
		if doc.OwnerID != "alice" {
			t.Fatalf("listed foreign document: %+v", doc)
		}
	}
}

func TestUploadDocumentRejections(t *testing.T) {
	handler := newDocumentStack(t, 8, nil)

	res := doRequest(t, handler, http.MethodPost, "/v1/documents", aliceToken, bytes.NewBufferString("plain-text"), "text/plain")
	if res.Code != http.StatusBadRequest {
		t.Fatalf("missing multipart field expected 400, got %d", res.Code)
	}

	body, ct := multipartFile(t, "photo.png", "image/png", "png")
	res = doRequest(t, handler, http.MethodPost, "/v1/documents", aliceToken, body, ct)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("disallowed type expected 400, got %d", res.Code)
	}

	body, ct = multipartFile(t, "big.txt", "text/plain", "more than eight bytes")
	res = doRequest(t, handler, http.MethodPost, "/v1/documents", aliceToken, body, ct)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("oversized upload expected 400, got %d", res.Code)
	}
}

func TestUploadContentTypeFallsBackToExtension(t *testing.T) {
	cases := []struct {
		declared, filename, want string
	}{
		{"application/pdf", "x.bin", domain.MimePDF},
		{"", "report.DOCX", domain.MimeDOCX},
		{"application/octet-stream", "notes.txt", domain.MimeText},
		{"text/plain; charset=utf-8", "notes", "text/plain"},
		{"", "unknown.csv", ""},
	}
	for _, tc := range cases {
		if got := uploadContentType(tc.declared, tc.filename); got != tc.want {
			t.Fatalf("uploadContentType(%q, %q) = %q, want %q", tc.declared, tc.filename, got, tc.want)
		}
	}
}

func TestMetricsEndpointCountsUploads(t *testing.T) {
	m := metrics.NewHTTPServerMetrics("api")
	handler := newDocumentStack(t, 0, m)
	uploadText(t, handler, aliceToken, "a.txt", "hello world")

	res := doRequest(t, handler, http.MethodGet, "/metrics", "", nil, "")
	if res.Code != http.StatusOK {
		t.Fatalf("metrics expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), `docinsights_documents_uploads_total{content_type="text/plain",service="api"} 1`) {
		t.Fatalf("upload not counted:\n%s", res.Body.String())
	}
}
