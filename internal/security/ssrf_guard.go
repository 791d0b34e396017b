// Package security はベンダー呼び出しに関わる入力・出力の防御を提供する。
package security

import (
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// ValidateURLが返すエラー。呼び出し側はerrors.Isで判別する。
var (
	ErrEmptyURL          = errors.New("empty URL")
	ErrDisallowedScheme  = errors.New("disallowed scheme")
	ErrDisallowedPort    = errors.New("disallowed port")
	ErrBlockedHost       = errors.New("blocked host")
	ErrHostNotAllowed    = errors.New("host is not an allowed vendor domain")
	ErrCredentialsInURL  = errors.New("credentials in URL")
	ErrUnparseableTarget = errors.New("invalid URL")
)

// SSRFGuardService は呼び出し元が指定したベンダーエンドポイントへの
// リクエストを安全に送るためのインターフェース。
type SSRFGuardService interface {
	// NewSafeClient は接続先IPをダイヤル時に検証するHTTPクライアントを生成する。
	NewSafeClient(timeout time.Duration) *http.Client

	// ValidateURL はURLをDNS解決前に静的に検証する。
	ValidateURL(rawURL string) error
}

// vendorPort はベンダー呼び出しで許可する唯一のポート。
const vendorPort = 443

// blockedPrefixes はリテラルIPで指定された場合に拒否するアドレス範囲。
// DNS経由の到達はNewSafeClient側で拒否される。
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

// blockedHostnames はクラウドのメタデータサービスやローカルを指すホスト名。
var blockedHostnames = []string{
	"localhost",
	"metadata",
	"metadata.google.internal",
}

// GuardOption はssrfGuardの設定を変更する。
type GuardOption func(*ssrfGuard)

// WithAllowedHostSuffixes は接続先ホストを指定したサフィックスのサブドメインに限定する。
// 例: ".supabase.co"
func WithAllowedHostSuffixes(suffixes ...string) GuardOption {
	return func(g *ssrfGuard) {
		for _, s := range suffixes {
			g.hostSuffixes = append(g.hostSuffixes, "."+strings.TrimPrefix(strings.ToLower(s), "."))
		}
	}
}

type ssrfGuard struct {
	hostSuffixes []string
}

// NewSSRFGuard は新しいSSRFGuardServiceを生成する。
// サフィックス指定が無い場合は公開ホストであればどこでも許可する。
func NewSSRFGuard(opts ...GuardOption) *ssrfGuard {
	g := &ssrfGuard{}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewSafeClient はhttpsかつ443番ポートのみに接続するクライアントを返す。
// 接続先IPはsafeurlがダイヤル時に検証するため、DNS再バインディングも防げる。
// リダイレクトには追従しない（apikeyヘッダーを別ホストに送らないため）。
func (g *ssrfGuard) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("https").
		SetAllowedPorts(vendorPort).
		Build()

	client := safeurl.Client(config).Client
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return client
}

// ValidateURL はスキーム、ポート、認証情報、ホストを検証する。
func (g *ssrfGuard) ValidateURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return ErrEmptyURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnparseableTarget, err)
	}
	if !strings.EqualFold(u.Scheme, "https") {
		return fmt.Errorf("%w: %q", ErrDisallowedScheme, u.Scheme)
	}
	if u.User != nil {
		return ErrCredentialsInURL
	}
	if p := u.Port(); p != "" && p != fmt.Sprint(vendorPort) {
		return fmt.Errorf("%w: %s", ErrDisallowedPort, p)
	}

	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if host == "" {
		return fmt.Errorf("%w: empty host", ErrUnparseableTarget)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if blockedAddr(addr) {
			return fmt.Errorf("%w: %s", ErrBlockedHost, addr)
		}
	} else if blockedName(host) {
		return fmt.Errorf("%w: %s", ErrBlockedHost, host)
	}

	if len(g.hostSuffixes) > 0 && !g.allowedHost(host) {
		return fmt.Errorf("%w: %s", ErrHostNotAllowed, host)
	}
	return nil
}

func (g *ssrfGuard) allowedHost(host string) bool {
	for _, suffix := range g.hostSuffixes {
		// サフィックスそのもの（例: supabase.co）は許可しない
		if strings.HasSuffix(host, suffix) && len(host) > len(suffix) {
			return true
		}
	}
	return false
}

func blockedAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	if addr.IsUnspecified() || addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() {
		return true
	}
	for _, p := range blockedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func blockedName(host string) bool {
	for _, blocked := range blockedHostnames {
		if host == blocked || strings.HasSuffix(host, "."+blocked) {
			return true
		}
	}
	return false
}
