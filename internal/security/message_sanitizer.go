package security

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// defaultMaxMessageRunes はレスポンスに含めるベンダーメッセージの最大文字数。
const defaultMaxMessageRunes = 200

// redactedPlaceholder は秘密値の置換文字列。
const redactedPlaceholder = "[REDACTED]"

// MessageSanitizerService はベンダーが返したエラーメッセージを
// レスポンスに含められる短い平文に変換する機能のインターフェース。
type MessageSanitizerService interface {
	// Sanitize はHTMLタグを除去し、空白を正規化し、最大長で切り詰める。
	// secretsに含まれる値はメッセージ中から置換される。
	Sanitize(message string, secrets ...string) string
}

// messageSanitizer はMessageSanitizerServiceの実装。
// bluemondayのStrictPolicyはすべてのタグを除去する。ゲートウェイの
// 502ページ等、HTMLで返ってくるベンダーエラーを平文化するために使う。
type messageSanitizer struct {
	policy   *bluemonday.Policy
	maxRunes int
}

// NewMessageSanitizer はMessageSanitizerServiceの新しいインスタンスを生成する。
// maxRunesが0以下の場合はデフォルト値200を使用する。
func NewMessageSanitizer(maxRunes int) *messageSanitizer {
	if maxRunes <= 0 {
		maxRunes = defaultMaxMessageRunes
	}
	return &messageSanitizer{
		policy:   bluemonday.StrictPolicy(),
		maxRunes: maxRunes,
	}
}

// Sanitize はベンダーメッセージを安全な平文に変換する。
func (s *messageSanitizer) Sanitize(message string, secrets ...string) string {
	if message == "" {
		return ""
	}

	// StrictPolicyはエンティティをエスケープして返すため、平文に戻す
	text := html.UnescapeString(s.policy.Sanitize(message))

	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		text = strings.ReplaceAll(text, secret, redactedPlaceholder)
	}

	text = strings.Join(strings.Fields(text), " ")

	if utf8.RuneCountInString(text) > s.maxRunes {
		runes := []rune(text)
		text = strings.TrimSpace(string(runes[:s.maxRunes])) + "..."
	}

	return text
}
