// Package envcheck はベンダー連携に必要な環境変数の有無と形式を検証する。
package envcheck

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/tidwall/gjson"
)

// LookupFunc は環境変数を参照する関数。os.LookupEnvと同じシグネチャ。
type LookupFunc func(key string) (string, bool)

// Report は環境変数の検証結果。呼び出しごとに新しく計算される。
type Report struct {
	IsValid          bool     `json:"isValid"`
	MissingVariables []string `json:"missingVariables"`
	InvalidVariables []string `json:"invalidVariables"`
	Messages         []string `json:"messages"`
}

// Requirement は1つの必須環境変数とその形式チェック。
type Requirement struct {
	Key   string
	Group string
	// Check は値が不正な場合に理由を返す。nilなら形式チェックなし。
	Check func(value string) string
}

// Requirements はグループごとの必須環境変数。
var Requirements = []Requirement{
	{Key: "SUPABASE_URL", Group: "data store", Check: checkSupabaseURL},
	{Key: "SUPABASE_ANON_KEY", Group: "data store", Check: checkJWTShape},
	{Key: "SUPABASE_SERVICE_ROLE_KEY", Group: "data store", Check: checkJWTShape},
	{Key: "CLERK_PUBLISHABLE_KEY", Group: "identity provider", Check: checkPrefix("pk_test_", "pk_live_")},
	{Key: "CLERK_SECRET_KEY", Group: "identity provider", Check: checkPrefix("sk_test_", "sk_live_")},
	{Key: "STRIPE_SECRET_KEY", Group: "payment processor", Check: checkPrefix("sk_test_", "sk_live_", "rk_")},
	{Key: "STRIPE_PUBLISHABLE_KEY", Group: "payment processor", Check: checkPrefix("pk_test_", "pk_live_")},
	{Key: "GOOGLE_CLOUD_CREDENTIALS", Group: "speech service", Check: checkServiceAccount},
}

// Validator は環境変数を検証する。ネットワークにはアクセスしない。
type Validator struct {
	lookup       LookupFunc
	requirements []Requirement
}

// NewValidator は新しいValidatorを生成する。lookupがnilの場合はos.LookupEnvを使う。
func NewValidator(lookup LookupFunc) *Validator {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &Validator{lookup: lookup, requirements: Requirements}
}

// Check は必須環境変数を検証してReportを返す。
// 未設定または空白のみの値はmissing、形式不正はinvalidとして扱う。
func (v *Validator) Check() Report {
	report := Report{
		MissingVariables: []string{},
		InvalidVariables: []string{},
		Messages:         []string{},
	}

	for _, req := range v.requirements {
		raw, ok := v.lookup(req.Key)
		value := strings.TrimSpace(raw)
		if !ok || value == "" {
			report.MissingVariables = append(report.MissingVariables, req.Key)
			report.Messages = append(report.Messages,
				fmt.Sprintf("%s is not set (required for %s)", req.Key, req.Group))
			continue
		}

		if req.Check == nil {
			continue
		}
		if reason := req.Check(value); reason != "" {
			report.InvalidVariables = append(report.InvalidVariables, req.Key)
			report.Messages = append(report.Messages,
				fmt.Sprintf("%s is invalid: %s", req.Key, reason))
		}
	}

	report.IsValid = len(report.MissingVariables) == 0 && len(report.InvalidVariables) == 0
	return report
}

func checkSupabaseURL(value string) string {
	u, err := url.Parse(value)
	if err != nil || u.Host == "" {
		return "must be a URL"
	}
	if u.Scheme != "https" {
		return "must use https"
	}
	if !strings.HasSuffix(u.Hostname(), ".supabase.co") {
		return "host must end with .supabase.co"
	}
	return ""
}

func checkJWTShape(value string) string {
	parts := strings.Split(value, ".")
	if len(parts) != 3 {
		return "must be a JWT (three dot-separated segments)"
	}
	for _, p := range parts {
		if p == "" {
			return "must be a JWT (three dot-separated segments)"
		}
	}
	return ""
}

func checkPrefix(prefixes ...string) func(string) string {
	return func(value string) string {
		for _, p := range prefixes {
			if strings.HasPrefix(value, p) && len(value) > len(p) {
				return ""
			}
		}
		return "must start with " + strings.Join(prefixes, " or ")
	}
}

func checkServiceAccount(value string) string {
	if !gjson.Valid(value) {
		return "must be service account JSON"
	}
	fields := gjson.GetMany(value, "type", "client_email", "private_key")
	if fields[0].String() != "service_account" {
		return `type must be "service_account"`
	}
	if fields[1].String() == "" || fields[2].String() == "" {
		return "client_email and private_key are required"
	}
	return ""
}
