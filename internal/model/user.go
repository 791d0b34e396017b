// Package model はドメインモデルを定義する。
package model

// Identity は外部IdPで検証されたリクエスト呼び出し元を表す。
// リクエストごとに1回だけ解決され、レスポンス送出とともに破棄される。
type Identity struct {
	ID    string
	Email string
}
