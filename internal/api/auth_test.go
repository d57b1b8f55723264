package api

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"mediamill/internal/events"
)

func TestValidateAPIKey(t *testing.T) {
	tests := []struct {
		name      string
		provided  string
		configKey string
		want      bool
	}{
		{"matching keys", "secret-key", "secret-key", true},
		{"wrong key", "wrong-key", "secret-key", false},
		{"empty provided", "", "secret-key", false},
		{"empty config", "secret-key", "", false},
		{"both empty", "", "", false},
		{"different lengths", "short", "a-much-longer-key", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateAPIKey(tt.provided, tt.configKey); got != tt.want {
				t.Errorf("ValidateAPIKey(%q, %q) = %v, want %v", tt.provided, tt.configKey, got, tt.want)
			}
		})
	}
}

func TestExtractAPIKey(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{"valid bearer", "Bearer my-key", "my-key", false},
		{"trailing space", "Bearer my-key  ", "my-key", false},
		{"no header", "", "", true},
		{"wrong scheme", "Basic my-key", "", true},
		{"bearer only", "Bearer ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			got, err := ExtractAPIKey(r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExtractAPIKey() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ExtractAPIKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	newServer := func(apiKey string) http.Handler {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		s := New(Config{Listen: "127.0.0.1:0", APIKey: apiKey}, &mockQueue{}, &mockUploader{}, events.NewHub(16), logger)
		return s.setupRoutes()
	}

	tests := []struct {
		name       string
		apiKey     string
		header     string
		wantStatus int
	}{
		{"open when no key configured", "", "", http.StatusOK},
		{"valid key", "secret", "Bearer secret", http.StatusOK},
		{"missing header", "secret", "", http.StatusUnauthorized},
		{"wrong key", "secret", "Bearer nope", http.StatusUnauthorized},
		{"wrong scheme", "secret", "Basic secret", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newServer(tt.apiKey)
			req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestHealthzBypassesAuth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(Config{Listen: "127.0.0.1:0", APIKey: "secret"}, &mockQueue{}, &mockUploader{}, events.NewHub(16), logger)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.setupRoutes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("healthz with no credentials: status = %d, want %d", rec.Code, http.StatusOK)
	}
}
