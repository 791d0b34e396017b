package handler

import (
	"net/http"

	"github.com/hitoshi/speechgate/internal/envcheck"
	"github.com/hitoshi/speechgate/internal/middleware"
)

// adminTokenHeader は環境チェックの詳細を要求するためのヘッダー名。
const adminTokenHeader = "X-Admin-Token"

// EnvValidator は環境変数の検証に必要なインターフェース。
type EnvValidator interface {
	Check() envcheck.Report
}

// EnvCheckHandler は環境変数の検証結果を返すHTTPハンドラー。
type EnvCheckHandler struct {
	validator EnvValidator
	policy    *envcheck.Policy
}

// NewEnvCheckHandler はEnvCheckHandlerを生成する。
func NewEnvCheckHandler(validator EnvValidator, policy *envcheck.Policy) *EnvCheckHandler {
	return &EnvCheckHandler{validator: validator, policy: policy}
}

// Check は検証結果を返す。詳細の公開範囲はPolicyが決める。
// GET /api/env-check
func (h *EnvCheckHandler) Check(w http.ResponseWriter, r *http.Request) {
	resp, apiErr := h.policy.Respond(h.validator.Check(), r.Header.Get(adminTokenHeader))
	if apiErr != nil {
		middleware.WriteErrorResponse(w, apiErr)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, resp)
}
