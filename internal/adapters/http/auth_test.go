package httpadapter

import (
	"net/http"
	"testing"
)

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer  abc ", "abc", true},
		{"Bearer ", "", false},
		{"Basic abc", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		token, ok := bearerToken(tc.header)
		if token != tc.token || ok != tc.ok {
			t.Fatalf("bearerToken(%q) = %q, %v; want %q, %v", tc.header, token, ok, tc.token, tc.ok)
		}
	}
}

func TestProtectedRoutesRequireBearerToken(t *testing.T) {
	handler := newTestHandler(t, testConfig(), Dependencies{Processor: processorFake{}})

	res := doRequest(t, handler, http.MethodGet, "/v1/documents/doc-1/status", "", nil, "")
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("missing token expected 401, got %d", res.Code)
	}
	if res.Header().Get("WWW-Authenticate") == "" {
		t.Fatalf("expected WWW-Authenticate challenge")
	}

	res = doRequest(t, handler, http.MethodGet, "/v1/documents/doc-1/status", "not-a-token", nil, "")
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("unknown token expected 401, got %d", res.Code)
	}

	res = doRequest(t, handler, http.MethodGet, "/v1/documents/doc-1/status", aliceToken, nil, "")
	if res.Code != http.StatusOK {
		t.Fatalf("valid token expected 200, got %d", res.Code)
	}
}

func TestNewRouterRequiresAuthenticator(t *testing.T) {
	if _, err := NewRouter(testConfig(), Dependencies{}); err == nil {
		t.Fatalf("expected error without authenticator")
	}
}
