package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DeploymentPosture はプロセス全体の動作環境の分類を表す。
// 起動時に1回だけ算出し、必要なコンポーネントに明示的に渡す。
type DeploymentPosture string

const (
	PostureDevelopment DeploymentPosture = "development"
	PostureCI          DeploymentPosture = "ci"
	PostureProduction  DeploymentPosture = "production"
)

// IsProduction は本番環境かどうかを返す。
func (p DeploymentPosture) IsProduction() bool {
	return p == PostureProduction
}

// ResolvePosture は環境ラベルから動作環境を判定する。
// APP_ENVまたはVERCEL_ENVがproductionなら本番、CIフラグが立っていればCI、
// それ以外は開発環境とする。本番判定はCIより優先する。
func ResolvePosture(appEnv, vercelEnv, ci string) DeploymentPosture {
	if strings.EqualFold(appEnv, "production") || strings.EqualFold(vercelEnv, "production") {
		return PostureProduction
	}
	if b, err := strconv.ParseBool(ci); err == nil && b {
		return PostureCI
	}
	return PostureDevelopment
}

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
// ベンダーの認証情報はすべて任意であり、未設定の場合は該当クライアントが
// 未設定（Unconfigured）として扱われる。
type Config struct {
	// Posture
	Posture   DeploymentPosture
	AppEnv    string
	VercelEnv string

	// Admin
	AdminToken string

	// Identity provider
	AuthProvider        string
	ClerkPublishableKey string
	ClerkSecretKey      string
	ClerkJWTKey         string
	ClerkAPIURL         string

	// Data store
	SupabaseURL            string
	SupabaseAnonKey        string
	SupabaseServiceRoleKey string
	SupabaseJWTSecret      string
	DatabaseURL            string

	// Payment processor
	StripeSecretKey      string
	StripePublishableKey string

	// Speech service
	GoogleCloudCredentials string

	// Outbound calls
	VendorTimeout time.Duration

	// Rate Limit
	RateLimitPerMinute int

	// Server
	ServerPort string
	// TrustProxyHeaders がtrueの場合のみX-Forwarded-For/X-Real-IPをクライアントIPとして扱う。
	// 信頼できるリバースプロキシの背後で動かすときだけ有効にする。
	TrustProxyHeaders bool

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS（カンマ区切りで複数指定可）
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 本番以外では.envファイル（ENV_FILEで変更可能）があれば先に読み込む。
// 既に設定済みの環境変数は.envの値で上書きしない。
func Load() (*Config, error) {
	appEnv := getEnvString("APP_ENV", "development")
	vercelEnv := os.Getenv("VERCEL_ENV")
	posture := ResolvePosture(appEnv, vercelEnv, os.Getenv("CI"))

	if !posture.IsProduction() {
		if err := loadEnvFile(); err != nil {
			return nil, err
		}
		// .envでAPP_ENVが指定された場合に備えて再判定する
		appEnv = getEnvString("APP_ENV", "development")
		vercelEnv = os.Getenv("VERCEL_ENV")
		posture = ResolvePosture(appEnv, vercelEnv, os.Getenv("CI"))
	}

	cfg := &Config{
		Posture:   posture,
		AppEnv:    appEnv,
		VercelEnv: vercelEnv,
	}

	cfg.AdminToken = os.Getenv("ADMIN_TOKEN")

	cfg.AuthProvider = strings.ToLower(getEnvString("AUTH_PROVIDER", "clerk"))
	cfg.ClerkPublishableKey = os.Getenv("CLERK_PUBLISHABLE_KEY")
	cfg.ClerkSecretKey = os.Getenv("CLERK_SECRET_KEY")
	cfg.ClerkJWTKey = os.Getenv("CLERK_JWT_KEY")
	cfg.ClerkAPIURL = getEnvString("CLERK_API_URL", "https://api.clerk.com")

	cfg.SupabaseURL = os.Getenv("SUPABASE_URL")
	cfg.SupabaseAnonKey = os.Getenv("SUPABASE_ANON_KEY")
	cfg.SupabaseServiceRoleKey = os.Getenv("SUPABASE_SERVICE_ROLE_KEY")
	cfg.SupabaseJWTSecret = os.Getenv("SUPABASE_JWT_SECRET")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	cfg.StripeSecretKey = os.Getenv("STRIPE_SECRET_KEY")
	cfg.StripePublishableKey = os.Getenv("STRIPE_PUBLISHABLE_KEY")

	cfg.GoogleCloudCredentials = os.Getenv("GOOGLE_CLOUD_CREDENTIALS")

	cfg.VendorTimeout = getEnvDuration("VENDOR_TIMEOUT", 10*time.Second)
	cfg.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", 120)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.TrustProxyHeaders = getEnvBool("TRUST_PROXY_HEADERS", false)
	cfg.CookieSecure = posture.IsProduction()
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// loadEnvFile は.envファイルを読み込む。
// ENV_FILEが明示された場合のみ、ファイルが存在しないことをエラーとする。
func loadEnvFile() error {
	path := os.Getenv("ENV_FILE")
	explicit := path != ""
	if !explicit {
		path = ".env"
	}

	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
