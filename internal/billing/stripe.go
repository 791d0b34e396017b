// Package billing はStripe Checkoutセッションの作成を提供する。
package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/hitoshi/speechgate/internal/gateway"
)

const vendorName = "stripe"

// Checkoutのモード。
const (
	ModeSubscription = "subscription"
	ModePayment      = "payment"
)

// CheckoutRequest はCheckoutセッション作成の入力。
type CheckoutRequest struct {
	PriceID           string
	SuccessURL        string
	CancelURL         string
	Mode              string
	CustomerEmail     string
	ClientReferenceID string
}

// CheckoutSession は作成されたCheckoutセッション。
type CheckoutSession struct {
	ID  string `json:"sessionId"`
	URL string `json:"url"`
}

// Validate は入力を検証する。Stripeには問い合わせない。
func (r CheckoutRequest) Validate() error {
	if strings.TrimSpace(r.PriceID) == "" {
		return errors.New("priceId is required")
	}
	if !strings.HasPrefix(r.PriceID, "price_") {
		return errors.New("priceId must start with price_")
	}
	if err := validateRedirect("successUrl", r.SuccessURL); err != nil {
		return err
	}
	if err := validateRedirect("cancelUrl", r.CancelURL); err != nil {
		return err
	}
	switch r.Mode {
	case "", ModeSubscription, ModePayment:
	default:
		return fmt.Errorf("mode must be %s or %s", ModeSubscription, ModePayment)
	}
	return nil
}

func validateRedirect(field, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return fmt.Errorf("%s must be an absolute http(s) URL", field)
	}
	return nil
}

// StripeClient はstripe-goのクライアントをラップする。
// リトライはしない。
type StripeClient struct {
	api *client.API
}

// ClientOption はStripeClientの生成オプション。
type ClientOption func(*stripe.BackendConfig)

// WithHTTPClient はStripeへの通信に使うHTTPクライアントを指定する。
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cfg *stripe.BackendConfig) {
		cfg.HTTPClient = c
	}
}

// WithBaseURL はAPIのベースURLを指定する。テストでのみ使う。
func WithBaseURL(u string) ClientOption {
	return func(cfg *stripe.BackendConfig) {
		cfg.URL = stripe.String(u)
	}
}

// NewStripeClient は新しいStripeClientを生成する。
func NewStripeClient(secretKey string, opts ...ClientOption) *StripeClient {
	cfg := &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, cfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, cfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, cfg),
	}

	api := &client.API{}
	api.Init(secretKey, backends)
	return &StripeClient{api: api}
}

// CreateCheckoutSession はCheckoutセッションを作成する。
// Stripeのエラーはgateway.VendorErrorに変換して返す。
func (c *StripeClient) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	mode := req.Mode
	if mode == "" {
		mode = ModeSubscription
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(mode),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	if req.ClientReferenceID != "" {
		params.ClientReferenceID = stripe.String(req.ClientReferenceID)
	}
	params.Context = ctx

	s, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, toVendorError(err)
	}

	return &CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

// toVendorError はstripe.Errorをgateway.VendorErrorに変換する。
// それ以外のエラー（通信エラー等）はそのまま返す。
func toVendorError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return &gateway.VendorError{
			Vendor:  vendorName,
			Status:  stripeErr.HTTPStatusCode,
			Message: stripeErr.Msg,
		}
	}
	return fmt.Errorf("stripe request failed: %w", err)
}
