package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/speechgate/internal/envcheck"
	"github.com/hitoshi/speechgate/internal/gateway"
	"github.com/hitoshi/speechgate/internal/metrics"
	"github.com/hitoshi/speechgate/internal/middleware"
	"github.com/hitoshi/speechgate/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger  *slog.Logger
	Metrics metrics.MetricsCollector
	// MetricsHandler がnilの場合は /metrics を公開しない。
	MetricsHandler http.Handler

	// ミドルウェア依存
	CORSAllowedOrigin string
	EnableHSTS        bool
	RateLimiter       *middleware.RateLimiter
	// TrustProxyHeaders がfalseの場合、転送ヘッダーを無視して接続元アドレスでレート制限する。
	TrustProxyHeaders bool

	// 認証
	Identity middleware.IdentityResolver

	// 環境チェック
	EnvValidator EnvValidator
	EnvPolicy    *envcheck.Policy

	// ベンダー呼び出し
	Adapter          *gateway.Adapter
	ConnectionTester ConnectionTester
	Checkout         gateway.Capability[CheckoutService]
	Speech           gateway.Capability[SpeechService]

	Cookies CookieHandlerConfig
	Health  HealthChecker
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP（TrustProxyHeaders時のみ） → Logging → Metrics → Recovery → SecurityHeaders → CORS
//
// /api 配下は一般レート制限、ベンダー呼び出しを伴うルートは認証とベンダー用レート制限を追加で通る。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.Nop{}
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRequestIDMiddleware())
	if deps.TrustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(m))
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.EnableHSTS))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, model.NewNotFoundError("route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, model.Normalize(model.KindValidation, "method not allowed", http.StatusMethodNotAllowed))
	})

	authHandler := NewAuthHandler(deps.Identity)
	envHandler := NewEnvCheckHandler(deps.EnvValidator, deps.EnvPolicy)
	supabaseHandler := NewSupabaseHandler(deps.ConnectionTester, deps.Adapter)
	cookieHandler := NewCookieHandler(deps.Cookies, logger)
	billingHandler := NewBillingHandler(deps.Checkout, deps.Adapter)
	speechHandler := NewSpeechHandler(deps.Speech, deps.Adapter)
	healthHandler := NewHealthHandler(deps.Health, logger)

	// --- 運用向けのルート ---
	r.Get("/health", healthHandler.Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 認証状態の確認（ハンドラー内でゲートを通す）
		r.Get("/auth", authHandler.Get)
		r.Post("/auth", authHandler.Post)

		r.Get("/env-check", envHandler.Check)
		r.Post("/test-supabase-connection", supabaseHandler.TestConnection)
		r.Post("/clear-cookies", cookieHandler.Clear)

		// --- 認証が必要なルート ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewAuthMiddleware(deps.Identity))
			r.Use(deps.RateLimiter.VendorMiddleware())

			r.Post("/billing/checkout-session", billingHandler.CreateCheckoutSession)

			r.Route("/speech", func(r chi.Router) {
				r.Post("/synthesize", speechHandler.Synthesize)
				r.Post("/recognize", speechHandler.Recognize)
			})
		})
	})

	return r
}
