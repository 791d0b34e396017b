package envcheck

import (
	"crypto/subtle"
	"time"

	"github.com/hitoshi/speechgate/internal/config"
	"github.com/hitoshi/speechgate/internal/model"
)

// Response は /api/env-check のレスポンスボディ。
// Detailは公開が許可された場合のみ設定され、JSONでは同じ階層に展開される。
type Response struct {
	Valid       bool   `json:"valid"`
	Timestamp   string `json:"timestamp"`
	Environment string `json:"environment"`
	VercelEnv   string `json:"vercelEnv"`
	*Detail
}

// Detail は検証結果の詳細。
type Detail struct {
	MissingVariables []string `json:"missingVariables"`
	InvalidVariables []string `json:"invalidVariables"`
	Messages         []string `json:"messages"`
}

// Policy は検証結果をどこまで公開するかを決める。
// 本番環境では x-admin-token が ADMIN_TOKEN と一致した場合のみ詳細を返す。
type Policy struct {
	posture    config.DeploymentPosture
	vercelEnv  string
	adminToken string
	now        func() time.Time
}

// NewPolicy は新しいPolicyを生成する。nowがnilの場合はtime.Nowを使う。
func NewPolicy(posture config.DeploymentPosture, vercelEnv, adminToken string, now func() time.Time) *Policy {
	if now == nil {
		now = time.Now
	}
	return &Policy{posture: posture, vercelEnv: vercelEnv, adminToken: adminToken, now: now}
}

// Respond はReportと提示されたトークンからレスポンスを組み立てる。
// 本番環境でトークンが提示され一致しない場合は401を返す。
// トークンが提示されない場合は要約のみを返す。
func (p *Policy) Respond(report Report, token string) (*Response, *model.APIError) {
	resp := &Response{
		Valid:       report.IsValid,
		Timestamp:   p.now().UTC().Format(time.RFC3339),
		Environment: string(p.posture),
		VercelEnv:   p.vercelEnv,
	}

	if p.posture.IsProduction() {
		if token == "" {
			return resp, nil
		}
		if !p.tokenMatches(token) {
			return nil, model.NewUnauthorizedError()
		}
	}

	resp.Detail = &Detail{
		MissingVariables: nonNil(report.MissingVariables),
		InvalidVariables: nonNil(report.InvalidVariables),
		Messages:         nonNil(report.Messages),
	}
	return resp, nil
}

func (p *Policy) tokenMatches(token string) bool {
	if p.adminToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(p.adminToken)) == 1
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
