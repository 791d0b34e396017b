package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

const (
	// maxJSONBody は通常のJSONリクエストボディの上限。
	maxJSONBody = 1 << 20
	// maxAudioBody は音声認識リクエストボディの上限（base64の音声を含む）。
	maxAudioBody = 15 << 20
)

// errInvalidBody はリクエストボディがJSONとして解釈できないことを表す。
var errInvalidBody = errors.New("Invalid request body")

// readJSONBody はボディを上限付きで読み込み、JSONとして妥当な場合のみ返す。
// 空のボディは不正として扱う。
func readJSONBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil || len(raw) == 0 || !json.Valid(raw) {
		return nil, errInvalidBody
	}
	return raw, nil
}

// decodeJSONBody はボディをvにデコードする。
func decodeJSONBody(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	raw, err := readJSONBody(w, r, limit)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errInvalidBody
	}
	return nil
}
