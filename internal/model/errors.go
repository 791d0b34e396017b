package model

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
)

// Kind はエラーの分類を表す。
type Kind string

const (
	// KindUnauthorized は認証情報が無い、または無効であることを示す。
	KindUnauthorized Kind = "unauthorized"
	// KindValidation は入力が不正、または必須項目が欠けていることを示す。
	KindValidation Kind = "validation"
	// KindNotFound は参照先リソースが存在しないことを示す。
	KindNotFound Kind = "not_found"
	// KindInternal はそれ以外のすべて（ベンダー障害、想定外の例外）を示す。
	KindInternal Kind = "internal"
)

// unknownErrorMessage は失敗から人間向けメッセージを取り出せなかった場合に使う文言。
const unknownErrorMessage = "Unknown error occurred"

// DefaultStatus はKindに対応するデフォルトのHTTPステータスコードを返す。
func (k Kind) DefaultStatus() int {
	switch k {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// defaultMessage はKindの標準エラーメッセージを返す。
func (k Kind) defaultMessage() string {
	switch k {
	case KindUnauthorized:
		return "Unauthorized"
	case KindValidation:
		return "Validation error"
	case KindNotFound:
		return "Not found"
	default:
		return "Internal server error"
	}
}

// APIError は統一エラーフォーマット（エラーエンベロープ）を表す。
// Detailsは安全に表示できる原因がある場合のみ設定する。
type APIError struct {
	Kind       Kind
	Message    string // レスポンスの error フィールド
	Details    string // 任意。空の場合はレスポンスに含めない
	StatusCode int
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d %s] %s: %s", e.StatusCode, e.Kind, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d %s] %s", e.StatusCode, e.Kind, e.Message)
}

// Normalize はKindと詳細からAPIErrorを生成する。
// statusCodeが0以下の場合はKindのデフォルトステータスを使用する。
// 未知のKindはKindInternalとして扱う。
func Normalize(kind Kind, detail string, statusCode int) *APIError {
	switch kind {
	case KindUnauthorized, KindValidation, KindNotFound, KindInternal:
	default:
		kind = KindInternal
	}
	if statusCode <= 0 {
		statusCode = kind.DefaultStatus()
	}
	return &APIError{
		Kind:       kind,
		Message:    kind.defaultMessage(),
		Details:    detail,
		StatusCode: statusCode,
	}
}

// NewUnauthorizedError は401エラーを生成する。
func NewUnauthorizedError() *APIError {
	return Normalize(KindUnauthorized, "", 0)
}

// NewValidationError は指定メッセージを error フィールドに持つ400エラーを生成する。
func NewValidationError(message string) *APIError {
	e := Normalize(KindValidation, "", 0)
	if message != "" {
		e.Message = message
	}
	return e
}

// NewNotFoundError はリソース未検出エラーを生成する。
func NewNotFoundError(detail string) *APIError {
	return Normalize(KindNotFound, detail, 0)
}

// NewNotConfiguredError はベンダークライアントが未設定の場合の503エラーを生成する。
func NewNotConfiguredError(vendor string) *APIError {
	e := Normalize(KindInternal, "", http.StatusServiceUnavailable)
	e.Message = fmt.Sprintf("%s is not configured", vendor)
	return e
}

// HandleUnknown は想定外の失敗を500のAPIErrorに変換する。
// 失敗がメッセージを持てばDetailsに設定し、持たなければ汎用メッセージを使う。
// 生の失敗は必ず1行ログに記録する。この関数自体はpanicしない。
func HandleUnknown(logger *slog.Logger, failure any) (apiErr *APIError) {
	if logger == nil {
		logger = slog.Default()
	}
	msg := unknownErrorMessage

	// 失敗値のString/Errorメソッドがpanicしても必ずエンベロープを返す
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("unhandled failure",
				slog.String("error", unknownErrorMessage),
				slog.Any("panic", rec),
			)
			apiErr = Normalize(KindInternal, unknownErrorMessage, 0)
		}
	}()

	if m := extractMessage(failure); m != "" {
		msg = m
	}

	logger.Error("unhandled failure",
		slog.String("error", msg),
		slog.String("type", fmt.Sprintf("%T", failure)),
	)

	return Normalize(KindInternal, msg, 0)
}

// extractMessage は失敗値から人間向けメッセージを取り出す。
func extractMessage(failure any) string {
	if isNil(failure) {
		return ""
	}

	var apiErr *APIError
	if err, ok := failure.(error); ok && errors.As(err, &apiErr) {
		if apiErr.Details != "" {
			return apiErr.Details
		}
		return apiErr.Message
	}

	switch v := failure.(type) {
	case error:
		return v.Error()
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}

// isNil はインターフェースに包まれたnilポインタも含めてnilかどうかを判定する。
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
