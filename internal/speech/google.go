package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/hitoshi/speechgate/internal/gateway"
)

const (
	vendorName = "google"

	defaultTTSURL = "https://texttospeech.googleapis.com"
	defaultSTTURL = "https://speech.googleapis.com"

	cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

	defaultSynthesizeEncoding = "MP3"
	maxResponseBody           = 32 << 20
)

// GoogleClient はサービスアカウントで認証したHTTPクライアントで
// Text-to-Speech / Speech-to-Text を呼び出す。
// 認証情報は初回呼び出し時に1回だけ読み込む。
type GoogleClient struct {
	client *gateway.Lazy[*http.Client]
	ttsURL string
	sttURL string
}

// Option はGoogleClientの生成オプション。
type Option func(*GoogleClient)

// WithBaseURLs はAPIのベースURLを指定する。テストでのみ使う。
func WithBaseURLs(ttsURL, sttURL string) Option {
	return func(c *GoogleClient) {
		c.ttsURL = strings.TrimRight(ttsURL, "/")
		c.sttURL = strings.TrimRight(sttURL, "/")
	}
}

// WithAuthenticatedClient は認証済みのHTTPクライアントを直接指定する。
// 指定した場合、サービスアカウントJSONは読み込まない。
func WithAuthenticatedClient(hc *http.Client) Option {
	return func(c *GoogleClient) {
		c.client = gateway.NewLazy(func() (*http.Client, error) { return hc, nil })
	}
}

// NewGoogleClient は新しいGoogleClientを生成する。
// credentialsJSONはサービスアカウントキーのJSON、timeoutは1回の呼び出しの上限。
func NewGoogleClient(credentialsJSON string, timeout time.Duration, opts ...Option) *GoogleClient {
	c := &GoogleClient{
		ttsURL: defaultTTSURL,
		sttURL: defaultSTTURL,
		client: gateway.NewLazy(func() (*http.Client, error) {
			return newServiceAccountClient(credentialsJSON, timeout)
		}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newServiceAccountClient(credentialsJSON string, timeout time.Duration) (*http.Client, error) {
	base := &http.Client{Timeout: timeout}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	creds, err := google.CredentialsFromJSON(ctx, []byte(credentialsJSON), cloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse google credentials: %w", err)
	}

	hc := oauth2.NewClient(ctx, creds.TokenSource)
	hc.Timeout = timeout
	return hc, nil
}

// Synthesize はテキストを音声に変換する。結果の音声はbase64のまま返す。
func (c *GoogleClient) Synthesize(ctx context.Context, req SynthesizeRequest) (*Synthesis, error) {
	encoding := req.AudioEncoding
	if encoding == "" {
		encoding = defaultSynthesizeEncoding
	}

	voice := map[string]string{"languageCode": req.LanguageCode}
	if req.VoiceName != "" {
		voice["name"] = req.VoiceName
	}
	payload := map[string]any{
		"input":       map[string]string{"text": req.Text},
		"voice":       voice,
		"audioConfig": map[string]string{"audioEncoding": encoding},
	}

	body, err := c.post(ctx, c.ttsURL+"/v1/text:synthesize", payload)
	if err != nil {
		return nil, err
	}

	audio := gjson.GetBytes(body, "audioContent")
	if !audio.Exists() {
		return nil, fmt.Errorf("google text-to-speech response has no audioContent")
	}

	return &Synthesis{AudioContent: audio.String(), Encoding: encoding}, nil
}

// Recognize は音声を認識し、最初の結果の最有力候補を返す。
// 音声が認識されなかった場合は空のTranscriptを返す。
func (c *GoogleClient) Recognize(ctx context.Context, req RecognizeRequest) (*Recognition, error) {
	config := map[string]any{"languageCode": req.LanguageCode}
	if req.Encoding != "" {
		config["encoding"] = req.Encoding
	}
	if req.SampleRateHertz != 0 {
		config["sampleRateHertz"] = req.SampleRateHertz
	}
	payload := map[string]any{
		"config": config,
		"audio":  map[string]string{"content": req.AudioContent},
	}

	body, err := c.post(ctx, c.sttURL+"/v1/speech:recognize", payload)
	if err != nil {
		return nil, err
	}

	best := gjson.GetManyBytes(body,
		"results.0.alternatives.0.transcript",
		"results.0.alternatives.0.confidence",
	)
	return &Recognition{Transcript: best[0].String(), Confidence: best[1].Float()}, nil
}

func (c *GoogleClient) post(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	hc, err := c.client.Get()
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode google request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to create google request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call google: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read google response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, gateway.NewVendorErrorFromResponse(vendorName, resp.StatusCode, body)
	}
	return body, nil
}
