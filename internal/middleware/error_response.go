package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/speechgate/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// detailsは人間向けの原因がある場合のみ含まれる。
type ErrorResponseBody struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	StatusCode int    `json:"statusCode"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// ステータスコードはAPIErrorのStatusCodeを使用する。
func WriteErrorResponse(w http.ResponseWriter, apiErr *model.APIError) {
	if apiErr == nil {
		apiErr = model.Normalize(model.KindInternal, "", 0)
	}
	WriteJSON(w, apiErr.StatusCode, ErrorResponseBody{
		Error:      apiErr.Message,
		Details:    apiErr.Details,
		StatusCode: apiErr.StatusCode,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、クライアントには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, model.Normalize(model.KindInternal, "", 0))
}

// WriteJSON は任意の値をJSONで書き込む。
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}
