package gateway

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/hitoshi/speechgate/internal/model"
)

// VendorError はベンダーが返したエラーを表す。
// StatusはベンダーのHTTPステータス、Messageはベンダーの説明文。
type VendorError struct {
	Vendor  string
	Status  int
	Message string
}

// Error はerrorインターフェースを実装する。
func (e *VendorError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Vendor, e.Status, e.Message)
}

// messagePaths はベンダー別のエラーボディからメッセージを探すgjsonパス。
// Supabase(GoTrue/PostgREST)、Clerk、Stripe、Google APIsの形式を順に試す。
var messagePaths = []string{
	"error.message",
	"errors.0.long_message",
	"errors.0.message",
	"error_description",
	"message",
	"msg",
	"error",
}

// NewVendorErrorFromResponse はステータスとレスポンスボディからVendorErrorを生成する。
// JSONからメッセージを抽出できない場合はボディ先頭かステータス文言を使う。
func NewVendorErrorFromResponse(vendor string, status int, body []byte) *VendorError {
	return &VendorError{
		Vendor:  vendor,
		Status:  status,
		Message: ExtractMessage(status, body),
	}
}

// ExtractMessage はベンダーのエラーボディから人間向けメッセージを取り出す。
func ExtractMessage(status int, body []byte) string {
	if gjson.ValidBytes(body) {
		for _, path := range messagePaths {
			r := gjson.GetBytes(body, path)
			if r.Type == gjson.String && strings.TrimSpace(r.String()) != "" {
				return r.String()
			}
		}
	}

	if text := strings.TrimSpace(string(body)); text != "" && !gjson.ValidBytes(body) {
		return text
	}

	if t := http.StatusText(status); t != "" {
		return t
	}
	return fmt.Sprintf("status %d", status)
}

// MapVendorStatus はベンダーのHTTPステータスをエラー種別とレスポンスステータスに変換する。
// 400〜599以外のステータスは500として扱う。
// ベンダーの401/403はサーバー側の鍵が拒否されたことを意味するため、
// 呼び出し元のセッション失敗と区別できるよう502にする。
func MapVendorStatus(status int) (model.Kind, int) {
	if status < 400 || status > 599 {
		return model.KindInternal, http.StatusInternalServerError
	}

	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return model.KindValidation, status
	case http.StatusUnauthorized, http.StatusForbidden:
		return model.KindInternal, http.StatusBadGateway
	case http.StatusNotFound:
		return model.KindNotFound, status
	default:
		return model.KindInternal, status
	}
}
