package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/gjson"

	"github.com/hitoshi/speechgate/internal/gateway"
	"github.com/hitoshi/speechgate/internal/model"
)

const (
	clerkProviderName = "clerk"
	defaultClerkAPI   = "https://api.clerk.com"
	// maxVendorBody はベンダーレスポンスとして読み込む最大バイト数。
	maxVendorBody = 1 << 20
	// jwtLeeway はexp/nbf検証で許容する時刻ずれ。
	jwtLeeway = 5 * time.Second
	// jwksRefreshInterval は未知のkidによるJWKS再取得の最小間隔。
	jwksRefreshInterval = time.Minute
)

// ClerkConfig はClerkプロバイダーの設定。
type ClerkConfig struct {
	// JWTKey はClerkダッシュボードのPEM形式の公開鍵。空の場合はJWKSを取得する。
	JWTKey string
	// SecretKey はBackend APIの認証に使う sk_ 鍵。
	SecretKey  string
	APIURL     string
	HTTPClient *http.Client
}

// ClerkProvider はClerkのセッショントークン（RS256 JWT）を検証する。
type ClerkProvider struct {
	staticKey *rsa.PublicKey
	secretKey string
	apiURL    string
	client    *http.Client

	mu   sync.RWMutex
	jwks map[string]*rsa.PublicKey

	// refreshMu はJWKS取得を1本に直列化し、lastFetchedを保護する。
	refreshMu   sync.Mutex
	lastFetched time.Time
	now         func() time.Time
}

// NewClerkProvider は新しいClerkProviderを生成する。
// JWTKeyとSecretKeyのどちらも無い場合、またはJWTKeyが不正な場合はエラーを返す。
func NewClerkProvider(cfg ClerkConfig) (*ClerkProvider, error) {
	if cfg.JWTKey == "" && cfg.SecretKey == "" {
		return nil, errors.New("clerk requires CLERK_JWT_KEY or CLERK_SECRET_KEY")
	}

	p := &ClerkProvider{
		secretKey: cfg.SecretKey,
		apiURL:    strings.TrimRight(cfg.APIURL, "/"),
		client:    cfg.HTTPClient,
		jwks:      make(map[string]*rsa.PublicKey),
		now:       time.Now,
	}
	if p.apiURL == "" {
		p.apiURL = defaultClerkAPI
	}
	if p.client == nil {
		p.client = &http.Client{Timeout: 10 * time.Second}
	}

	if cfg.JWTKey != "" {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(normalizePEM(cfg.JWTKey)))
		if err != nil {
			return nil, fmt.Errorf("failed to parse CLERK_JWT_KEY: %w", err)
		}
		p.staticKey = key
	}

	return p, nil
}

// Name はプロバイダー識別子を返す。
func (p *ClerkProvider) Name() string {
	return clerkProviderName
}

// Verify はセッショントークンを検証する。
// トークンにemailクレームが無い場合はBackend APIからプライマリメールを取得する。
func (p *ClerkProvider) Verify(ctx context.Context, token string) (*model.Identity, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if p.staticKey != nil {
			return p.staticKey, nil
		}
		kid, _ := t.Header["kid"].(string)
		return p.jwksKey(ctx, kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(jwtLeeway),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	identity := &model.Identity{
		ID:    stringClaim(claims, "sub"),
		Email: stringClaim(claims, "email"),
	}
	if identity.ID == "" {
		return nil, fmt.Errorf("%w: missing sub claim", ErrInvalidToken)
	}

	if identity.Email == "" && p.secretKey != "" {
		email, err := p.lookupEmail(ctx, identity.ID)
		if err != nil {
			return nil, err
		}
		identity.Email = email
	}

	return identity, nil
}

// lookupEmail はBackend APIからユーザーのプライマリメールアドレスを取得する。
func (p *ClerkProvider) lookupEmail(ctx context.Context, userID string) (string, error) {
	body, err := p.get(ctx, "/v1/users/"+url.PathEscape(userID))
	if err != nil {
		return "", err
	}

	primary := gjson.GetBytes(body, "primary_email_address_id").String()
	if primary != "" {
		email := gjson.GetBytes(body, `email_addresses.#(id=="`+primary+`").email_address`).String()
		if email != "" {
			return email, nil
		}
	}
	return gjson.GetBytes(body, "email_addresses.0.email_address").String(), nil
}

// jwksKey はkidに対応する公開鍵を返す。
// 未知のkidでもJWKSの再取得はjwksRefreshIntervalに1回までとし、
// 間隔内はClerkに問い合わせずに拒否する。取得に失敗した場合も間隔を空ける。
func (p *ClerkProvider) jwksKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if key, ok := p.cachedKey(kid); ok {
		return key, nil
	}
	if p.secretKey == "" {
		return nil, errors.New("no key available to verify clerk token")
	}

	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	// 待っている間に他のリクエストが取得済みかもしれない
	if key, ok := p.cachedKey(kid); ok {
		return key, nil
	}
	now := p.now()
	if !p.lastFetched.IsZero() && now.Sub(p.lastFetched) < jwksRefreshInterval {
		return nil, fmt.Errorf("%w: unknown key id %q", ErrInvalidToken, kid)
	}
	p.lastFetched = now

	body, err := p.get(ctx, "/v1/jwks")
	if err != nil {
		return nil, err
	}
	keys, err := parseJWKS(body)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.jwks = keys
	p.mu.Unlock()

	key, ok := keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: unknown key id %q", ErrInvalidToken, kid)
	}
	return key, nil
}

func (p *ClerkProvider) cachedKey(kid string) (*rsa.PublicKey, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	key, ok := p.jwks[kid]
	return key, ok
}

func (p *ClerkProvider) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create clerk request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call clerk: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxVendorBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read clerk response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, gateway.NewVendorErrorFromResponse(clerkProviderName, resp.StatusCode, body)
	}
	return body, nil
}

// parseJWKS はJWKSレスポンスからRSA公開鍵をkidごとに取り出す。
func parseJWKS(body []byte) (map[string]*rsa.PublicKey, error) {
	keys := make(map[string]*rsa.PublicKey)
	var parseErr error

	gjson.GetBytes(body, "keys").ForEach(func(_, k gjson.Result) bool {
		if k.Get("kty").String() != "RSA" {
			return true
		}
		n, err := base64.RawURLEncoding.DecodeString(k.Get("n").String())
		if err != nil {
			parseErr = fmt.Errorf("invalid jwk modulus: %w", err)
			return false
		}
		e, err := base64.RawURLEncoding.DecodeString(k.Get("e").String())
		if err != nil {
			parseErr = fmt.Errorf("invalid jwk exponent: %w", err)
			return false
		}
		keys[k.Get("kid").String()] = &rsa.PublicKey{
			N: new(big.Int).SetBytes(n),
			E: int(new(big.Int).SetBytes(e).Int64()),
		}
		return true
	})

	if parseErr != nil {
		return nil, parseErr
	}
	if len(keys) == 0 {
		return nil, errors.New("jwks contains no RSA keys")
	}
	return keys, nil
}

// normalizePEM は環境変数で改行が \n とエスケープされたPEMを復元する。
func normalizePEM(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), `\n`, "\n")
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
