package handler

import (
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"
)

func TestCookieHandler_ClearsFixedCookieSet(t *testing.T) {
	h := NewCookieHandler(CookieHandlerConfig{CookieSecure: true}, nil)

	w := httptest.NewRecorder()
	h.Clear(w, httptest.NewRequest(http.MethodPost, "/api/clear-cookies", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := decodeBody(t, w)
	if body["success"] != true {
		t.Errorf("success = %v, want true", body["success"])
	}
	if body["message"] == "" || body["message"] == nil {
		t.Error("message should be set")
	}

	cookies := w.Result().Cookies()
	var names []string
	for _, c := range cookies {
		names = append(names, c.Name)
		if c.Value != "" {
			t.Errorf("cookie %s value = %q, want empty", c.Name, c.Value)
		}
		if c.Path != "/" {
			t.Errorf("cookie %s path = %q, want /", c.Name, c.Path)
		}
		if c.MaxAge >= 0 {
			t.Errorf("cookie %s MaxAge = %d, want negative", c.Name, c.MaxAge)
		}
		if !c.Expires.Equal(time.Unix(0, 0)) {
			t.Errorf("cookie %s expires = %v, want epoch", c.Name, c.Expires)
		}
		if !c.HttpOnly || !c.Secure {
			t.Errorf("cookie %s should be HttpOnly and Secure", c.Name)
		}
	}

	want := append([]string(nil), ClearedCookieNames...)
	sort.Strings(names)
	sort.Strings(want)
	if len(names) != len(want) {
		t.Fatalf("cleared cookies = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("cleared cookies = %v, want %v", names, want)
			break
		}
	}
}

func TestCookieHandler_HostOnlyCookiesAreCleared(t *testing.T) {
	h := NewCookieHandler(CookieHandlerConfig{}, nil)

	w := httptest.NewRecorder()
	h.Clear(w, httptest.NewRequest(http.MethodPost, "/api/clear-cookies", nil))

	for _, c := range w.Result().Cookies() {
		if c.Domain != "" {
			t.Errorf("cookie %s domain = %q, want host-only", c.Name, c.Domain)
		}
	}
}

// COOKIE_DOMAIN設定時も、Clerkが発行するホスト限定の__session等を残さない。
func TestCookieHandler_DomainAlsoClearsHostOnlyVariant(t *testing.T) {
	h := NewCookieHandler(CookieHandlerConfig{CookieDomain: "example.com"}, nil)

	w := httptest.NewRecorder()
	h.Clear(w, httptest.NewRequest(http.MethodPost, "/api/clear-cookies", nil))

	seen := map[string]map[string]bool{}
	for _, c := range w.Result().Cookies() {
		if seen[c.Name] == nil {
			seen[c.Name] = map[string]bool{}
		}
		seen[c.Name][c.Domain] = true
	}

	for _, name := range ClearedCookieNames {
		if !seen[name][""] {
			t.Errorf("cookie %s: host-only variant not cleared", name)
		}
		if !seen[name]["example.com"] {
			t.Errorf("cookie %s: domain variant not cleared", name)
		}
	}
	if n := len(w.Result().Cookies()); n != 2*len(ClearedCookieNames) {
		t.Errorf("Set-Cookie count = %d, want %d", n, 2*len(ClearedCookieNames))
	}
}
