package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/speechgate/internal/model"
)

// --- モック定義 ---

// mockResolver はmiddleware.IdentityResolverのモック実装。呼び出し回数を記録する。
type mockResolver struct {
	identity *model.Identity
	calls    int
}

func (m *mockResolver) Resolve(r *http.Request) (*model.Identity, *model.APIError) {
	m.calls++
	if m.identity == nil {
		return nil, model.NewUnauthorizedError()
	}
	return m.identity, nil
}

func authenticated() *mockResolver {
	return &mockResolver{identity: &model.Identity{ID: "user_123", Email: "learner@example.com"}}
}

// --- テストヘルパー ---

// decodeBody はレスポンスボディを汎用マップにデコードするヘルパー。
func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return result
}

// assertEnvelope はエラーエンベロープのerrorとstatusCodeを検証するヘルパー。
func assertEnvelope(t *testing.T, w *httptest.ResponseRecorder, wantStatus int, wantError string) map[string]any {
	t.Helper()
	if w.Code != wantStatus {
		t.Fatalf("status = %d, want %d (body: %s)", w.Code, wantStatus, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["error"] != wantError {
		t.Errorf("error = %v, want %q", body["error"], wantError)
	}
	if code, _ := body["statusCode"].(float64); int(code) != wantStatus {
		t.Errorf("statusCode = %v, want %d", body["statusCode"], wantStatus)
	}
	return body
}

// --- テスト ---

func TestAuthHandler_Get_Authenticated(t *testing.T) {
	h := NewAuthHandler(authenticated())

	w := httptest.NewRecorder()
	h.Get(w, httptest.NewRequest(http.MethodGet, "/api/auth", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := decodeBody(t, w)
	if body["userId"] != "user_123" {
		t.Errorf("userId = %v, want user_123", body["userId"])
	}
	if body["email"] != "learner@example.com" {
		t.Errorf("email = %v", body["email"])
	}
	if body["authenticated"] != true {
		t.Errorf("authenticated = %v, want true", body["authenticated"])
	}
	if _, ok := body["data"]; ok {
		t.Error("GET response should not contain data")
	}
}

func TestAuthHandler_Get_Unauthenticated(t *testing.T) {
	h := NewAuthHandler(&mockResolver{})

	w := httptest.NewRecorder()
	h.Get(w, httptest.NewRequest(http.MethodGet, "/api/auth", nil))

	body := assertEnvelope(t, w, http.StatusUnauthorized, "Unauthorized")
	if _, ok := body["details"]; ok {
		t.Error("401 envelope should not contain details")
	}
}

func TestAuthHandler_Post_EchoesBody(t *testing.T) {
	h := NewAuthHandler(authenticated())

	req := httptest.NewRequest(http.MethodPost, "/api/auth", strings.NewReader(`{"lesson":"intro","score":3}`))
	w := httptest.NewRecorder()
	h.Post(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := decodeBody(t, w)
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("data = %v, want object", body["data"])
	}
	if data["lesson"] != "intro" {
		t.Errorf("data.lesson = %v, want intro", data["lesson"])
	}
}

func TestAuthHandler_Post_InvalidBodyBeforeAuth(t *testing.T) {
	tests := []struct {
		name     string
		resolver *mockResolver
		body     string
	}{
		{name: "unauthenticated malformed", resolver: &mockResolver{}, body: `{not json`},
		{name: "authenticated malformed", resolver: authenticated(), body: `{not json`},
		{name: "unauthenticated empty", resolver: &mockResolver{}, body: ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAuthHandler(tt.resolver)

			w := httptest.NewRecorder()
			h.Post(w, httptest.NewRequest(http.MethodPost, "/api/auth", strings.NewReader(tt.body)))

			assertEnvelope(t, w, http.StatusBadRequest, "Invalid request body")
			if tt.resolver.calls != 0 {
				t.Errorf("resolver called %d times, want 0", tt.resolver.calls)
			}
		})
	}
}

func TestAuthHandler_Post_ValidBodyUnauthenticated(t *testing.T) {
	resolver := &mockResolver{}
	h := NewAuthHandler(resolver)

	w := httptest.NewRecorder()
	h.Post(w, httptest.NewRequest(http.MethodPost, "/api/auth", strings.NewReader(`{}`)))

	assertEnvelope(t, w, http.StatusUnauthorized, "Unauthorized")
	if resolver.calls != 1 {
		t.Errorf("resolver called %d times, want 1", resolver.calls)
	}
}
