package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/kirillkom/document-insights/internal/config"
)

func memoryConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.RepositoryDriver = config.RepositoryMemory
	cfg.StoragePath = t.TempDir()
	cfg.NATSURL = ""
	return cfg
}

func quietOptions() Options {
	return Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestNewWiresInMemoryApp(t *testing.T) {
	app, err := New(context.Background(), memoryConfig(t), quietOptions())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	if app.Repo == nil || app.Storage == nil || app.IngestUC == nil || app.ProcessUC == nil || app.ExportUC == nil {
		t.Fatalf("app is missing components: %+v", app)
	}
	if app.Queue != nil || app.DispatchUC != nil {
		t.Fatalf("queue must stay disabled without NATS_URL")
	}

	doc, err := app.IngestUC.Upload(context.Background(), "alice", "a.txt", "text/plain", strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	view, err := app.ProcessUC.GetStatus(context.Background(), doc.ID, "alice")
	if err != nil || view.ProcessingStatus != "pending" {
		t.Fatalf("GetStatus() = %+v, %v", view, err)
	}
}

func TestNewRequiresQueueWhenAsked(t *testing.T) {
	opts := quietOptions()
	opts.RequireQueue = true
	if _, err := New(context.Background(), memoryConfig(t), opts); err == nil {
		t.Fatalf("expected error without NATS_URL")
	}
}

func TestNewRejectsOpenAIWithoutKey(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.LLMProvider = config.ProviderOpenAI
	cfg.OpenAIAPIKey = ""

	_, err := New(context.Background(), cfg, quietOptions())
	if err == nil || !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Fatalf("expected missing key error, got %v", err)
	}
}
