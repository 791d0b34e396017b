// Package auth はリクエストの認証情報をIDプロバイダーで検証し、
// 呼び出し元のIdentityを解決する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/speechgate/internal/config"
	"github.com/hitoshi/speechgate/internal/gateway"
	"github.com/hitoshi/speechgate/internal/model"
)

// ErrInvalidToken はトークンが検証できなかったことを表す。
var ErrInvalidToken = errors.New("invalid token")

// IdentityProvider はトークンを検証してIdentityを返すIDプロバイダーのインターフェース。
// 実装はユーザーの作成やセッション管理を行わない。
type IdentityProvider interface {
	// Name はプロバイダー識別子を返す（"clerk", "supabase"）。
	Name() string
	// Verify はトークンを検証し、Identityを返す。
	Verify(ctx context.Context, token string) (*model.Identity, error)
}

// Registry は設定済みのIDプロバイダーを名前で保持する。認証処理は行わない。
type Registry struct {
	providers map[string]IdentityProvider
}

// NewRegistry はプロバイダーを名前で登録する。名前は一意であること。
func NewRegistry(list ...IdentityProvider) *Registry {
	m := make(map[string]IdentityProvider)
	for _, p := range list {
		m[p.Name()] = p
	}
	return &Registry{providers: m}
}

// Get は名前でプロバイダーを返す。未登録の場合はエラー。
func (r *Registry) Get(name string) (IdentityProvider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown identity provider: %s", name)
	}
	return p, nil
}

// NewProviderFromConfig は設定から利用可能なプロバイダーを登録し、
// AUTH_PROVIDERで選択されたものをCapabilityとして返す。
// 鍵が不正なプロバイダーは登録せずにログを残すだけで、他のプロバイダーには影響しない。
// 選択されたプロバイダーが使えない場合はUnconfiguredを返す。
func NewProviderFromConfig(cfg *config.Config, client *http.Client, logger *slog.Logger) gateway.Capability[IdentityProvider] {
	if logger == nil {
		logger = slog.Default()
	}
	var list []IdentityProvider
	skipped := make(map[string]string)

	if cfg.ClerkJWTKey != "" || cfg.ClerkSecretKey != "" {
		p, err := NewClerkProvider(ClerkConfig{
			JWTKey:     cfg.ClerkJWTKey,
			SecretKey:  cfg.ClerkSecretKey,
			APIURL:     cfg.ClerkAPIURL,
			HTTPClient: client,
		})
		if err != nil {
			logger.Warn("identity provider skipped",
				slog.String("provider", clerkProviderName),
				slog.String("error", err.Error()),
			)
			skipped[clerkProviderName] = err.Error()
		} else {
			list = append(list, p)
		}
	}

	if cfg.SupabaseURL != "" && (cfg.SupabaseJWTSecret != "" || cfg.SupabaseAnonKey != "") {
		list = append(list, NewSupabaseProvider(SupabaseConfig{
			URL:        cfg.SupabaseURL,
			AnonKey:    cfg.SupabaseAnonKey,
			JWTSecret:  cfg.SupabaseJWTSecret,
			HTTPClient: client,
		}))
	}

	name := strings.ToLower(cfg.AuthProvider)
	p, err := NewRegistry(list...).Get(name)
	if err != nil {
		if reason, ok := skipped[name]; ok {
			return gateway.Unconfigured[IdentityProvider](reason)
		}
		return gateway.Unconfigured[IdentityProvider](
			fmt.Sprintf("identity provider %q is not configured", cfg.AuthProvider))
	}
	return gateway.Configured(p)
}
