package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/speechgate/internal/gateway"
	"github.com/hitoshi/speechgate/internal/metrics"
	"github.com/hitoshi/speechgate/internal/model"
)

const (
	// SessionCookieName はClerkのセッショントークンを保持するCookie名。
	SessionCookieName = "__session"
	// SupabaseAccessCookieName はSupabaseのアクセストークンを保持するCookie名。
	SupabaseAccessCookieName = "sb-access-token"
)

// 認証失敗の理由。メトリクスのラベルとログに使う。
const (
	reasonMissingCredentials = "missing_credentials"
	reasonUnconfigured       = "unconfigured"
	reasonInvalidToken       = "invalid_token"
	reasonEmptyIdentity      = "empty_identity"
)

// Gate はリクエストから認証情報を取り出し、IDプロバイダーで1回だけ検証する。
// 失敗の理由に関わらず呼び出し元には同じ401を返す。
type Gate struct {
	provider gateway.Capability[IdentityProvider]
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
}

// NewGate は新しいGateを生成する。
func NewGate(provider gateway.Capability[IdentityProvider], m metrics.MetricsCollector, logger *slog.Logger) *Gate {
	if m == nil {
		m = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{provider: provider, metrics: m, logger: logger}
}

// Resolve はリクエストの呼び出し元を解決する。
// 成功時はIdentity、失敗時は401のAPIErrorを返す。検証のリトライはしない。
func (g *Gate) Resolve(r *http.Request) (*model.Identity, *model.APIError) {
	token := ExtractToken(r)
	if token == "" {
		return nil, g.reject(reasonMissingCredentials, nil)
	}

	provider, ok := g.provider.Get()
	if !ok {
		return nil, g.reject(reasonUnconfigured, nil, slog.String("reason", g.provider.Reason()))
	}

	identity, err := provider.Verify(r.Context(), token)
	if err != nil {
		return nil, g.reject(reasonInvalidToken, err, slog.String("provider", provider.Name()))
	}
	if identity == nil || identity.ID == "" {
		return nil, g.reject(reasonEmptyIdentity, nil, slog.String("provider", provider.Name()))
	}

	return identity, nil
}

func (g *Gate) reject(reason string, err error, attrs ...any) *model.APIError {
	g.metrics.RecordAuthFailure(reason)

	attrs = append(attrs, slog.String("auth_failure", reason))
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	g.logger.Info("authentication failed", attrs...)

	return model.NewUnauthorizedError()
}

// ExtractToken はAuthorizationヘッダーのBearerトークン、
// 無ければセッションCookieからトークンを取り出す。
func ExtractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, found := strings.Cut(h, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}

	for _, name := range []string{SessionCookieName, SupabaseAccessCookieName} {
		if c, err := r.Cookie(name); err == nil && c.Value != "" {
			return c.Value
		}
	}
	return ""
}
