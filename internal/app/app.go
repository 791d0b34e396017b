// Package app はサブコマンドの解析と依存関係の組み立てを行う。
package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/speechgate/internal/auth"
	"github.com/hitoshi/speechgate/internal/billing"
	"github.com/hitoshi/speechgate/internal/config"
	"github.com/hitoshi/speechgate/internal/database"
	"github.com/hitoshi/speechgate/internal/envcheck"
	"github.com/hitoshi/speechgate/internal/gateway"
	"github.com/hitoshi/speechgate/internal/handler"
	"github.com/hitoshi/speechgate/internal/logger"
	"github.com/hitoshi/speechgate/internal/metrics"
	"github.com/hitoshi/speechgate/internal/middleware"
	"github.com/hitoshi/speechgate/internal/security"
	"github.com/hitoshi/speechgate/internal/speech"
	"github.com/hitoshi/speechgate/internal/supabase"
)

// ErrEnvInvalid は envcheck サブコマンドで検証に失敗したことを表す。
var ErrEnvInvalid = errors.New("environment validation failed")

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、動作環境に応じたレベルでJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, *slog.Logger, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 動作環境が決まったのでログレベルを確定する
	l := logger.SetupDefault(w, LogLevel(cfg.Posture))
	return cfg, l, nil
}

// LogLevel は動作環境に応じたログレベルを返す。開発環境のみDebug。
func LogLevel(posture config.DeploymentPosture) slog.Level {
	if posture == config.PostureDevelopment {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, l, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	switch cmd {
	case CommandEnvCheck:
		return runEnvCheck(w, envcheck.NewValidator(nil))
	default:
		return runServe(cfg, l)
	}
}

// Components はserveモードで組み立てた依存関係を保持する。
type Components struct {
	Router      http.Handler
	RateLimiter *middleware.RateLimiter
	db          *sql.DB
}

// Close はバックグラウンド処理と接続を解放する。
func (c *Components) Close() {
	c.RateLimiter.Stop()
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			slog.Warn("failed to close database", slog.String("error", err.Error()))
		}
	}
}

// Build は設定からベンダークライアントとルーターを組み立てる。
// ベンダーの認証情報が無い場合は該当機能をUnconfiguredとして組み立て、エラーにはしない。
func Build(cfg *config.Config, l *slog.Logger, reg *prometheus.Registry) (*Components, error) {
	if l == nil {
		l = slog.Default()
	}

	// 1. 観測・セキュリティ
	collector := metrics.NewCollector(reg)
	sanitizer := security.NewMessageSanitizer(0)
	adapter := gateway.NewAdapter(collector, sanitizer, l)

	// 2. 認証
	vendorClient := &http.Client{Timeout: cfg.VendorTimeout}
	identity := auth.NewGate(auth.NewProviderFromConfig(cfg, vendorClient, l), collector, l)

	// 3. ベンダークライアント
	projectGuard := supabase.NewGuard()
	prober := supabase.NewProber(projectGuard.NewSafeClient(cfg.VendorTimeout), projectGuard, sanitizer)

	checkout := gateway.Unconfigured[handler.CheckoutService]("STRIPE_SECRET_KEY is not set")
	if cfg.StripeSecretKey != "" {
		checkout = gateway.Configured[handler.CheckoutService](
			billing.NewStripeClient(cfg.StripeSecretKey, billing.WithHTTPClient(vendorClient)),
		)
	}

	speechSvc := gateway.Unconfigured[handler.SpeechService]("GOOGLE_CLOUD_CREDENTIALS is not set")
	if cfg.GoogleCloudCredentials != "" {
		speechSvc = gateway.Configured[handler.SpeechService](
			speech.NewGoogleClient(cfg.GoogleCloudCredentials, cfg.VendorTimeout),
		)
	}

	// 4. 任意のDB接続（readinessのみ）
	c := &Components{}
	var health handler.HealthChecker
	if cfg.DatabaseURL != "" {
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		c.db = db
		health = database.NewHealthChecker(db, 0)
	}

	// 5. ルーターの構築
	c.RateLimiter = middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(cfg.RateLimitPerMinute))
	c.Router = handler.NewRouter(&handler.RouterDeps{
		Logger:            l,
		Metrics:           collector,
		MetricsHandler:    metrics.Handler(reg),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		EnableHSTS:        cfg.Posture.IsProduction(),
		RateLimiter:       c.RateLimiter,
		TrustProxyHeaders: cfg.TrustProxyHeaders,

		Identity: identity,

		EnvValidator: envcheck.NewValidator(nil),
		EnvPolicy:    envcheck.NewPolicy(cfg.Posture, cfg.VercelEnv, cfg.AdminToken, nil),

		Adapter:          adapter,
		ConnectionTester: prober,
		Checkout:         checkout,
		Speech:           speechSvc,

		Cookies: handler.CookieHandlerConfig{
			CookieDomain: cfg.CookieDomain,
			CookieSecure: cfg.CookieSecure,
		},
		Health: health,
	})

	return c, nil
}

// runServe はAPIサーバーモードで起動する。
// 全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config, l *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	c, err := Build(cfg, l, reg)
	if err != nil {
		return err
	}
	defer c.Close()

	logEnvSummary(l, envcheck.NewValidator(nil).Check())

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           c.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.VendorTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		l.Info("API server starting",
			slog.String("addr", server.Addr),
			slog.String("posture", string(cfg.Posture)),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}
	l.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	l.Info("API server stopped gracefully")
	return nil
}

// logEnvSummary は起動時に環境変数の検証結果を要約してログに出す。
// 値そのものは出力しない。
func logEnvSummary(l *slog.Logger, report envcheck.Report) {
	if report.IsValid {
		l.Info("environment validated")
		return
	}
	l.Warn("environment incomplete",
		slog.Any("missing", report.MissingVariables),
		slog.Any("invalid", report.InvalidVariables),
	)
}

// EnvValidator はenvcheckサブコマンドが使う検証器。
type EnvValidator interface {
	Check() envcheck.Report
}

// runEnvCheck は検証結果をJSONで出力する。不正な場合はErrEnvInvalidを返す。
func runEnvCheck(w io.Writer, v EnvValidator) error {
	if w == nil {
		w = os.Stdout
	}
	report := v.Check()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if !report.IsValid {
		return fmt.Errorf("%w: %d missing, %d invalid", ErrEnvInvalid, len(report.MissingVariables), len(report.InvalidVariables))
	}
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
