// Package supabase はSupabaseプロジェクトへの接続テストを提供する。
package supabase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/speechgate/internal/gateway"
	"github.com/hitoshi/speechgate/internal/security"
)

// ErrInvalidProjectURL はSupabaseのプロジェクトURLとして受け付けられない値を表す。
// メッセージはそのままレスポンスのerrorフィールドになる。
var ErrInvalidProjectURL = errors.New("Invalid Supabase URL format")

const (
	healthPath = "/auth/v1/health"
	// maxProbeBody はヘルスチェックレスポンスとして読み込む最大バイト数。
	maxProbeBody = 64 << 10
	hostSuffix   = ".supabase.co"
)

// ProbeResult は接続テストの結果。
// Reachableがfalseの場合、Messageにベンダー側の理由が入る。
type ProbeResult struct {
	Reachable bool
	Message   string
}

// Prober はSupabaseプロジェクトのAuthヘルスエンドポイントに問い合わせる。
type Prober struct {
	client    *http.Client
	guard     security.SSRFGuardService
	sanitizer security.MessageSanitizerService
}

// NewProber は新しいProberを生成する。
// clientはSSRF防止済みのクライアント（security.SSRFGuardService.NewSafeClient）を想定する。
func NewProber(client *http.Client, guard security.SSRFGuardService, sanitizer security.MessageSanitizerService) *Prober {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if guard == nil {
		guard = NewGuard()
	}
	if sanitizer == nil {
		sanitizer = security.NewMessageSanitizer(0)
	}
	return &Prober{client: client, guard: guard, sanitizer: sanitizer}
}

// NewGuard はSupabaseのプロジェクトドメインのみを許可するSSRFガードを返す。
func NewGuard() security.SSRFGuardService {
	return security.NewSSRFGuard(security.WithAllowedHostSuffixes(hostSuffix))
}

// ValidateProjectURL はURLがhttpsのSupabaseプロジェクトURLであることを検証する。
// ネットワークにはアクセスしない。
func (p *Prober) ValidateProjectURL(raw string) error {
	if err := p.guard.ValidateURL(raw); err != nil {
		return ErrInvalidProjectURL
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidProjectURL
	}
	if (u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.Fragment != "" {
		return ErrInvalidProjectURL
	}
	return nil
}

// Probe は {projectURL}/auth/v1/health に apikey ヘッダー付きでGETする。
// ベンダーの拒否や接続失敗はReachable=falseとして返し、
// リクエストを組み立てられない場合のみエラーを返す。
func (p *Prober) Probe(ctx context.Context, projectURL, key string) (ProbeResult, error) {
	endpoint := strings.TrimRight(projectURL, "/") + healthPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("failed to create probe request: %w", err)
	}
	req.Header.Set("apikey", key)
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := p.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ProbeResult{}, ctxErr
		}
		return ProbeResult{
			Message: p.sanitizer.Sanitize("Connection failed: "+err.Error(), key),
		}, nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxProbeBody))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := gateway.ExtractMessage(resp.StatusCode, body)
		return ProbeResult{Message: p.sanitizer.Sanitize(msg, key)}, nil
	}

	return ProbeResult{Reachable: true}, nil
}
