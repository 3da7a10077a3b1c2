package nats

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/document-insights/internal/core/domain"
)

func TestEncodeDecodeRequest(t *testing.T) {
	req := domain.ProcessRequest{DocumentID: "d1", OwnerID: "u1", RequestedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	payload, err := encodeRequest(req)
	if err != nil {
		t.Fatalf("encodeRequest() error: %v", err)
	}
	got, err := decodeRequest(payload)
	if err != nil {
		t.Fatalf("decodeRequest() error: %v", err)
	}
	if got.DocumentID != "d1" || got.OwnerID != "u1" || !got.RequestedAt.Equal(req.RequestedAt) {
		t.Fatalf("unexpected request: %+v", got)
	}
}

func TestEncodeRejectsEmptyDocumentID(t *testing.T) {
	if _, err := encodeRequest(domain.ProcessRequest{OwnerID: "u1"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestDecodeRejectsMalformedPayload(t *testing.T) {
	for _, raw := range []string{"d1", `{"document_id":"d1"}`, `{}`} {
		if _, err := decodeRequest([]byte(raw)); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestWrapTemporaryIfNeeded(t *testing.T) {
	err := wrapTemporaryIfNeeded(fmt.Errorf("nats publish: %w", nats.ErrConnectionClosed))
	if !errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}

	permanent := errors.New("bad subject")
	if got := wrapTemporaryIfNeeded(permanent); got != permanent {
		t.Fatalf("permanent errors must pass through, got %v", got)
	}
}
