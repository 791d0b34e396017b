// Package speech はGoogle Cloud Text-to-Speech / Speech-to-Text のREST APIを呼び出す。
package speech

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	// maxSynthesizeBytes はText-to-Speechの入力上限。
	maxSynthesizeBytes = 5000
	// maxAudioBytes は同期認識で受け付ける音声の上限。
	maxAudioBytes = 10 << 20
)

var languageCodePattern = regexp.MustCompile(`^[a-zA-Z]{2,3}(-[a-zA-Z0-9]{2,8})*$`)

var recognizeEncodings = map[string]bool{
	"LINEAR16":  true,
	"FLAC":      true,
	"MULAW":     true,
	"AMR":       true,
	"AMR_WB":    true,
	"OGG_OPUS":  true,
	"WEBM_OPUS": true,
	"MP3":       true,
}

var synthesizeEncodings = map[string]bool{
	"MP3":      true,
	"LINEAR16": true,
	"OGG_OPUS": true,
}

// SynthesizeRequest は音声合成の入力。
type SynthesizeRequest struct {
	Text          string `json:"text"`
	LanguageCode  string `json:"languageCode"`
	VoiceName     string `json:"voiceName,omitempty"`
	AudioEncoding string `json:"audioEncoding,omitempty"`
}

// Validate は入力を検証する。
func (r SynthesizeRequest) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return errors.New("text is required")
	}
	if len(r.Text) > maxSynthesizeBytes {
		return fmt.Errorf("text must be at most %d bytes", maxSynthesizeBytes)
	}
	if !languageCodePattern.MatchString(r.LanguageCode) {
		return errors.New("languageCode must be a BCP-47 language tag")
	}
	if r.AudioEncoding != "" && !synthesizeEncodings[r.AudioEncoding] {
		return fmt.Errorf("unsupported audioEncoding: %s", r.AudioEncoding)
	}
	return nil
}

// RecognizeRequest は音声認識の入力。AudioContentはbase64エンコードされた音声。
type RecognizeRequest struct {
	AudioContent    string `json:"audioContent"`
	LanguageCode    string `json:"languageCode"`
	SampleRateHertz int    `json:"sampleRateHertz,omitempty"`
	Encoding        string `json:"encoding,omitempty"`
}

// Validate は入力を検証する。
func (r RecognizeRequest) Validate() error {
	if r.AudioContent == "" {
		return errors.New("audioContent is required")
	}
	if base64.StdEncoding.DecodedLen(len(r.AudioContent)) > maxAudioBytes {
		return errors.New("audioContent is too large")
	}
	if _, err := base64.StdEncoding.DecodeString(r.AudioContent); err != nil {
		return errors.New("audioContent must be base64 encoded")
	}
	if !languageCodePattern.MatchString(r.LanguageCode) {
		return errors.New("languageCode must be a BCP-47 language tag")
	}
	if r.Encoding != "" && !recognizeEncodings[r.Encoding] {
		return fmt.Errorf("unsupported encoding: %s", r.Encoding)
	}
	if r.SampleRateHertz != 0 && (r.SampleRateHertz < 8000 || r.SampleRateHertz > 48000) {
		return errors.New("sampleRateHertz must be between 8000 and 48000")
	}
	return nil
}

// Synthesis は音声合成の結果。
type Synthesis struct {
	AudioContent string `json:"audioContent"`
	Encoding     string `json:"encoding"`
}

// Recognition は音声認識の結果。最も確度の高い候補のみを返す。
type Recognition struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}
