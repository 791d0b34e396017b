package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/speechgate/internal/auth"
	"github.com/hitoshi/speechgate/internal/middleware"
)

// ClearedCookieNames はサインアウト時に失効させるCookie名の一覧。
// Clerkのセッション系とSupabaseのトークン系を含む。
var ClearedCookieNames = []string{
	auth.SessionCookieName,
	"__client_uat",
	"__clerk_db_jwt",
	auth.SupabaseAccessCookieName,
	"sb-refresh-token",
	"supabase-auth-token",
}

type clearCookiesResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CookieHandlerConfig はCookie操作の設定。
type CookieHandlerConfig struct {
	CookieDomain string
	CookieSecure bool
}

// CookieHandler は認証Cookieを失効させるHTTPハンドラー。
type CookieHandler struct {
	config CookieHandlerConfig
	logger *slog.Logger
}

// NewCookieHandler はCookieHandlerを生成する。
func NewCookieHandler(config CookieHandlerConfig, logger *slog.Logger) *CookieHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CookieHandler{config: config, logger: logger}
}

// Clear は固定のCookie一覧を空値・エポック期限・Path=/ で上書きする。
// ホスト限定Cookieは常に失効させ、COOKIE_DOMAINが設定されている場合は
// 同名のドメインCookieも併せて失効させる。ブラウザは両者を別物として保持するため。
// POST /api/clear-cookies
func (h *CookieHandler) Clear(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("failed to clear cookies", slog.Any("panic", rec))
			middleware.WriteJSON(w, http.StatusInternalServerError, clearCookiesResponse{Error: "Failed to clear cookies"})
		}
	}()

	domains := []string{""}
	if h.config.CookieDomain != "" {
		domains = append(domains, h.config.CookieDomain)
	}
	for _, name := range ClearedCookieNames {
		for _, domain := range domains {
			http.SetCookie(w, h.expired(name, domain))
		}
	}

	middleware.WriteJSON(w, http.StatusOK, clearCookiesResponse{
		Success: true,
		Message: "Cookies cleared",
	})
}

func (h *CookieHandler) expired(name, domain string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   domain,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
