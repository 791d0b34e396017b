// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/speechgate/internal/middleware"
	"github.com/hitoshi/speechgate/internal/model"
)

// authResponse は /api/auth のレスポンスボディ。
type authResponse struct {
	UserID        string          `json:"userId"`
	Email         string          `json:"email"`
	Authenticated bool            `json:"authenticated"`
	Data          json.RawMessage `json:"data,omitempty"`
}

// AuthHandler は呼び出し元の認証状態を返すHTTPハンドラー。
type AuthHandler struct {
	resolver middleware.IdentityResolver
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(resolver middleware.IdentityResolver) *AuthHandler {
	return &AuthHandler{resolver: resolver}
}

// Get は認証済みユーザーの情報を返す。
// GET /api/auth
func (h *AuthHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, apiErr := h.resolve(r)
	if apiErr != nil {
		middleware.WriteErrorResponse(w, apiErr)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, authResponse{
		UserID:        identity.ID,
		Email:         identity.Email,
		Authenticated: true,
	})
}

// Post はリクエストボディをそのまま返す。
// ボディの検証を認証より先に行うため、不正なボディは認証状態に関わらず400になる。
// POST /api/auth
func (h *AuthHandler) Post(w http.ResponseWriter, r *http.Request) {
	raw, err := readJSONBody(w, r, maxJSONBody)
	if err != nil {
		middleware.WriteErrorResponse(w, model.NewValidationError(err.Error()))
		return
	}

	identity, apiErr := h.resolve(r)
	if apiErr != nil {
		middleware.WriteErrorResponse(w, apiErr)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, authResponse{
		UserID:        identity.ID,
		Email:         identity.Email,
		Authenticated: true,
		Data:          raw,
	})
}

func (h *AuthHandler) resolve(r *http.Request) (*model.Identity, *model.APIError) {
	identity, apiErr := h.resolver.Resolve(r)
	if apiErr != nil {
		return nil, apiErr
	}
	middleware.RecordUserID(r.Context(), identity.ID)
	return identity, nil
}
