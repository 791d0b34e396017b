package gateway

import "sync"

// Capability はベンダークライアントの有無を型で表す。
// 認証情報が無い場合は空のスタブを渡さず Unconfigured として扱い、
// 呼び出し側に「未設定」を明示的に処理させる。
type Capability[T any] struct {
	client     T
	configured bool
	reason     string
}

// Configured は利用可能なクライアントを包む。
func Configured[T any](client T) Capability[T] {
	return Capability[T]{client: client, configured: true}
}

// Unconfigured は未設定の理由を持つCapabilityを生成する。
func Unconfigured[T any](reason string) Capability[T] {
	return Capability[T]{reason: reason}
}

// Get はクライアントと設定済みかどうかを返す。
func (c Capability[T]) Get() (T, bool) {
	return c.client, c.configured
}

// Reason は未設定の理由を返す。設定済みの場合は空文字列。
func (c Capability[T]) Reason() string {
	return c.reason
}

// Lazy は初回利用時に1回だけクライアントを構築する。
// 並行した初回呼び出しでも構築は1回のみ行われる。
type Lazy[T any] struct {
	once  sync.Once
	build func() (T, error)
	value T
	err   error
}

// NewLazy はbuildを初回Getで実行するLazyを生成する。
func NewLazy[T any](build func() (T, error)) *Lazy[T] {
	return &Lazy[T]{build: build}
}

// Get は構築済みの値を返す。構築に失敗した場合は同じエラーを返し続ける。
func (l *Lazy[T]) Get() (T, error) {
	l.once.Do(func() {
		l.value, l.err = l.build()
	})
	return l.value, l.err
}
