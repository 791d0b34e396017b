package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/speechgate/internal/model"
)

func parseLogEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log: %v\nraw: %s", err, buf.String())
	}
	return entry
}

// TestLoggingMiddleware_LogsRequestFields はリクエストログに必要なフィールドが含まれることを検証する。
func TestLoggingMiddleware_LogsRequestFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	handler := NewRequestIDMiddleware()(NewLoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/env-check", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	entry := parseLogEntry(t, &buf)
	if entry["method"] != "GET" {
		t.Errorf("method = %q, want %q", entry["method"], "GET")
	}
	if entry["path"] != "/api/env-check" {
		t.Errorf("path = %q, want %q", entry["path"], "/api/env-check")
	}
	if status, ok := entry["status"].(float64); !ok || status != 200 {
		t.Errorf("status = %v, want 200", entry["status"])
	}
	if _, ok := entry["duration_ms"]; !ok {
		t.Error("expected 'duration_ms' field in log entry")
	}
	if entry["request_id"] != w.Header().Get(RequestIDHeader) {
		t.Errorf("request_id = %v, want %q", entry["request_id"], w.Header().Get(RequestIDHeader))
	}
	if _, ok := entry["user_id"]; ok {
		t.Error("user_id should be omitted for unauthenticated requests")
	}
}

// TestLoggingMiddleware_IncludesUserIDFromAuth は内側の認証ミドルウェアで解決したユーザーIDがログに含まれることを検証する。
func TestLoggingMiddleware_IncludesUserIDFromAuth(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	resolver := resolverFunc(func(*http.Request) (*model.Identity, *model.APIError) {
		return &model.Identity{ID: "user_123"}, nil
	})
	inner := NewAuthMiddleware(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	handler := NewLoggingMiddleware(logger)(inner)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/auth", nil))

	entry := parseLogEntry(t, &buf)
	if entry["user_id"] != "user_123" {
		t.Errorf("user_id = %v, want %q", entry["user_id"], "user_123")
	}
}

// TestLoggingMiddleware_LevelByStatus はステータスコードに応じたログレベルを検証する。
func TestLoggingMiddleware_LevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusUnauthorized, "WARN"},
		{http.StatusBadGateway, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))

			handler := NewLoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/auth", nil))

			entry := parseLogEntry(t, &buf)
			if entry["level"] != tt.level {
				t.Errorf("level = %v, want %s", entry["level"], tt.level)
			}
			if status := entry["status"].(float64); int(status) != tt.status {
				t.Errorf("status = %v, want %d", status, tt.status)
			}
		})
	}
}

// TestLoggingMiddleware_BodyWriteCapture はWriteHeader未呼び出しの場合200を記録することを検証する。
func TestLoggingMiddleware_BodyWriteCapture(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := NewLoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	entry := parseLogEntry(t, &buf)
	if status := entry["status"].(float64); status != 200 {
		t.Errorf("status = %v, want 200", status)
	}
	if n := entry["bytes"].(float64); n != 2 {
		t.Errorf("bytes = %v, want 2", n)
	}
}

func TestResponseRecorder_FirstStatusWins(t *testing.T) {
	rec := newResponseRecorder(httptest.NewRecorder())
	rec.WriteHeader(http.StatusTeapot)
	rec.Write([]byte("x"))
	rec.WriteHeader(http.StatusInternalServerError)

	if rec.Status() != http.StatusTeapot {
		t.Errorf("Status() = %d, want %d", rec.Status(), http.StatusTeapot)
	}
	if rec.Unwrap() == nil {
		t.Error("Unwrap() should return the wrapped writer")
	}
}

// statusCounter はRecordHTTPStatusの呼び出しを記録する。
type statusCounter struct {
	statuses []int
}

func (s *statusCounter) RecordVendorCall(string, string, string)           {}
func (s *statusCounter) RecordVendorLatency(string, string, time.Duration) {}
func (s *statusCounter) RecordHTTPStatus(code int)                         { s.statuses = append(s.statuses, code) }
func (s *statusCounter) RecordAuthFailure(string)                          {}

func TestMetricsMiddleware_RecordsStatus(t *testing.T) {
	m := &statusCounter{}
	handler := NewMetricsMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteErrorResponse(w, model.NewUnauthorizedError())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/auth", nil))

	if len(m.statuses) != 1 || m.statuses[0] != http.StatusUnauthorized {
		t.Errorf("statuses = %v, want [401]", m.statuses)
	}
}
