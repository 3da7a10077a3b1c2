package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/document-insights/internal/config"
	"github.com/kirillkom/document-insights/internal/core/domain"
	"github.com/kirillkom/document-insights/internal/core/ports"
	"github.com/kirillkom/document-insights/internal/observability/metrics"
)

// multipart framing on top of the file body itself
const multipartOverheadBytes = 1 << 20

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Dependencies struct {
	Ingestor      ports.DocumentIngestor
	Processor     ports.DocumentProcessor
	Dispatcher    ports.ProcessDispatcher
	Exporter      ports.InsightExporter
	Authenticator ports.Authenticator
	Metrics       *metrics.HTTPServerMetrics
	Logger        *slog.Logger
}

type Router struct {
	ingestor   ports.DocumentIngestor
	processor  ports.DocumentProcessor
	dispatcher ports.ProcessDispatcher
	exporter   ports.InsightExporter
	auth       ports.Authenticator
	metrics    *metrics.HTTPServerMetrics
	logger     *slog.Logger

	openAPIJSON    []byte
	uploadMaxBytes int64
	rateLimitRPS   float64
	rateLimitBurst int
	maxInFlight    int
}

func NewRouter(cfg config.Config, deps Dependencies) (*Router, error) {
	if deps.Authenticator == nil {
		return nil, errors.New("http router requires an authenticator")
	}
	doc, err := LoadOpenAPI()
	if err != nil {
		return nil, err
	}
	openAPIJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode openapi document: %w", err)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		ingestor:   deps.Ingestor,
		processor:  deps.Processor,
		dispatcher: deps.Dispatcher,
		exporter:   deps.Exporter,
		auth:       deps.Authenticator,
		metrics:    deps.Metrics,
		logger:     logger,

		openAPIJSON:    openAPIJSON,
		uploadMaxBytes: cfg.UploadMaxBytes,
		rateLimitRPS:   cfg.APIRateLimitRPS,
		rateLimitBurst: cfg.APIRateLimitBurst,
		maxInFlight:    cfg.APIMaxInFlight,
	}, nil
}

type route struct {
	method  string
	path    string
	handler http.HandlerFunc
}

// routes lists the authenticated API surface. Every entry is documented in
// openapi.yaml.
func (rt *Router) routes() []route {
	return []route{
		{http.MethodPost, "/v1/documents", rt.uploadDocument},
		{http.MethodGet, "/v1/documents", rt.listDocuments},
		{http.MethodGet, "/v1/documents/{document_id}", rt.getDocument},
		{http.MethodDelete, "/v1/documents/{document_id}", rt.deleteDocument},
		{http.MethodPost, "/v1/documents/{document_id}/process", rt.processDocument},
		{http.MethodGet, "/v1/documents/{document_id}/status", rt.documentStatus},
		{http.MethodGet, "/v1/documents/{document_id}/insights", rt.documentInsights},
		{http.MethodGet, "/v1/exports/insights.xlsx", rt.exportInsights},
	}
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	for _, r := range rt.routes() {
		api.HandleFunc(r.method+" "+r.path, r.handler)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /openapi.json", rt.openAPI)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	mux.Handle("/v1/", rt.authMiddleware(api))

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.maxInFlight, 250*time.Millisecond)
	handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) openAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rt.openAPIJSON)
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if rt.uploadMaxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.uploadMaxBytes+multipartOverheadBytes)
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "upload exceeds size limit"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	contentType := uploadContentType(fileHeader.Header.Get("Content-Type"), fileHeader.Filename)
	doc, err := rt.ingestor.Upload(r.Context(), ownerID(r), fileHeader.Filename, contentType, file)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordUpload(doc.ContentType, doc.FileSize)
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := rt.ingestor.List(r.Context(), ownerID(r))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.ingestor.Get(r.Context(), r.PathValue("document_id"), ownerID(r))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) deleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := rt.ingestor.Delete(r.Context(), r.PathValue("document_id"), ownerID(r)); err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) processDocument(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("document_id")

	async := false
	if raw := r.URL.Query().Get("async"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query parameter 'async' must be a boolean"})
			return
		}
		async = parsed
	}

	if async {
		if rt.dispatcher == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "async processing is not available"})
			return
		}
		view, err := rt.dispatcher.Dispatch(r.Context(), documentID, ownerID(r))
		rt.recordProcess("async", "queued", err)
		if err != nil {
			rt.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, view)
		return
	}

	outcome, err := rt.processor.ProcessByID(r.Context(), documentID, ownerID(r))
	rt.recordProcess("sync", string(domain.StatusCompleted), err)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (rt *Router) documentStatus(w http.ResponseWriter, r *http.Request) {
	view, err := rt.processor.GetStatus(r.Context(), r.PathValue("document_id"), ownerID(r))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (rt *Router) documentInsights(w http.ResponseWriter, r *http.Request) {
	view, err := rt.processor.GetInsights(r.Context(), r.PathValue("document_id"), ownerID(r))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (rt *Router) exportInsights(w http.ResponseWriter, r *http.Request) {
	payload, err := rt.exporter.ExportXLSX(r.Context(), ownerID(r))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordExport(len(payload))
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="insights.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (rt *Router) recordProcess(mode, successOutcome string, err error) {
	if rt.metrics == nil {
		return
	}
	outcome := successOutcome
	switch {
	case err == nil:
	case domain.IsProcessingFailure(err):
		outcome = string(domain.StatusFailed)
	default:
		outcome = "rejected"
	}
	rt.metrics.RecordProcess(mode, outcome)
}

var extensionContentTypes = map[string]string{
	".pdf":  domain.MimePDF,
	".txt":  domain.MimeText,
	".doc":  domain.MimeDoc,
	".docx": domain.MimeDOCX,
}

// uploadContentType prefers the part's declared type and falls back to the
// filename extension when the client sent none or a generic one.
func uploadContentType(declared, filename string) string {
	if mediaType, _, err := mime.ParseMediaType(declared); err == nil && mediaType != "application/octet-stream" {
		return mediaType
	}
	if ct, ok := extensionContentTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return ct
	}
	return declared
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
