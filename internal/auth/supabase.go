package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/gjson"

	"github.com/hitoshi/speechgate/internal/gateway"
	"github.com/hitoshi/speechgate/internal/model"
)

const supabaseProviderName = "supabase"

// SupabaseConfig はSupabase Authプロバイダーの設定。
type SupabaseConfig struct {
	URL        string
	AnonKey    string
	JWTSecret  string
	HTTPClient *http.Client
}

// SupabaseProvider はSupabase Authのアクセストークンを検証する。
// JWTシークレットがあればローカルでHS256を検証し、無ければ /auth/v1/user に問い合わせる。
type SupabaseProvider struct {
	url       string
	anonKey   string
	jwtSecret []byte
	client    *http.Client
}

// NewSupabaseProvider は新しいSupabaseProviderを生成する。
func NewSupabaseProvider(cfg SupabaseConfig) *SupabaseProvider {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &SupabaseProvider{
		url:       strings.TrimRight(cfg.URL, "/"),
		anonKey:   cfg.AnonKey,
		jwtSecret: []byte(cfg.JWTSecret),
		client:    client,
	}
}

// Name はプロバイダー識別子を返す。
func (p *SupabaseProvider) Name() string {
	return supabaseProviderName
}

// Verify はアクセストークンを検証する。検証方法は設定により1つに決まる。
func (p *SupabaseProvider) Verify(ctx context.Context, token string) (*model.Identity, error) {
	if len(p.jwtSecret) > 0 {
		return p.verifyLocal(token)
	}
	return p.verifyRemote(ctx, token)
}

func (p *SupabaseProvider) verifyLocal(token string) (*model.Identity, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return p.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(jwtLeeway),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	return &model.Identity{
		ID:    stringClaim(claims, "sub"),
		Email: stringClaim(claims, "email"),
	}, nil
}

func (p *SupabaseProvider) verifyRemote(ctx context.Context, token string) (*model.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", p.anonKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to validate token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxVendorBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read supabase response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, gateway.NewVendorErrorFromResponse(supabaseProviderName, resp.StatusCode, body)
	}

	user := gjson.GetManyBytes(body, "id", "email")
	return &model.Identity{ID: user[0].String(), Email: user[1].String()}, nil
}
