// Package gateway はベンダー呼び出しを統一エンベロープに変換するアダプタを提供する。
//
// すべてのエンドポイントは 入力検証 → ベンダー呼び出し → 結果の正規化 の順に処理し、
// 結果は必ず Success か Failure のどちらか一方になる。
package gateway

import "github.com/hitoshi/speechgate/internal/model"

// Result はベンダー呼び出しの結果を表す判別共用体。
// Success(value) と Failure(*model.APIError) のどちらか一方のみを保持する。
type Result[T any] struct {
	value T
	err   *model.APIError
}

// Success は成功結果を生成する。
func Success[T any](value T) Result[T] {
	return Result[T]{value: value}
}

// Failure は失敗結果を生成する。errがnilの場合は500のエラーで補う。
func Failure[T any](err *model.APIError) Result[T] {
	if err == nil {
		err = model.Normalize(model.KindInternal, "", 0)
	}
	return Result[T]{err: err}
}

// OK は成功結果かどうかを返す。
func (r Result[T]) OK() bool {
	return r.err == nil
}

// Value は成功時の値を返す。失敗時はゼロ値。
func (r Result[T]) Value() T {
	return r.value
}

// Err は失敗時のエラーを返す。成功時はnil。
func (r Result[T]) Err() *model.APIError {
	return r.err
}
