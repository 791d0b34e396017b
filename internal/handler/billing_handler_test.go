package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/speechgate/internal/billing"
	"github.com/hitoshi/speechgate/internal/gateway"
	"github.com/hitoshi/speechgate/internal/middleware"
	"github.com/hitoshi/speechgate/internal/model"
)

// mockCheckoutService はCheckoutServiceのモック実装。
type mockCheckoutService struct {
	createFn func(ctx context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error)
	calls    int
	lastReq  billing.CheckoutRequest
}

func (m *mockCheckoutService) CreateCheckoutSession(ctx context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error) {
	m.calls++
	m.lastReq = req
	if m.createFn != nil {
		return m.createFn(ctx, req)
	}
	return &billing.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}, nil
}

// withIdentity はテスト用にリクエストコンテキストにIdentityを注入するヘルパー。
func withIdentity(r *http.Request) *http.Request {
	identity := &model.Identity{ID: "user_123", Email: "learner@example.com"}
	return r.WithContext(middleware.ContextWithIdentity(r.Context(), identity))
}

const validCheckoutBody = `{"priceId":"price_123","successUrl":"https://app.example.com/ok","cancelUrl":"https://app.example.com/cancel"}`

func postCheckout(h *BillingHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/billing/checkout-session", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.CreateCheckoutSession(w, withIdentity(req))
	return w
}

func TestBillingHandler_CreatesSession(t *testing.T) {
	svc := &mockCheckoutService{}
	h := NewBillingHandler(gateway.Configured[CheckoutService](svc), gateway.NewAdapter(nil, nil, nil))

	w := postCheckout(h, validCheckoutBody)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body: %s)", w.Code, http.StatusOK, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["sessionId"] != "cs_test_1" {
		t.Errorf("sessionId = %v, want cs_test_1", body["sessionId"])
	}
	if svc.lastReq.ClientReferenceID != "user_123" {
		t.Errorf("ClientReferenceID = %q, want user_123", svc.lastReq.ClientReferenceID)
	}
	if svc.lastReq.CustomerEmail != "learner@example.com" {
		t.Errorf("CustomerEmail = %q", svc.lastReq.CustomerEmail)
	}
}

func TestBillingHandler_Unconfigured(t *testing.T) {
	h := NewBillingHandler(gateway.Unconfigured[CheckoutService]("STRIPE_SECRET_KEY is not set"), gateway.NewAdapter(nil, nil, nil))

	w := postCheckout(h, validCheckoutBody)

	assertEnvelope(t, w, http.StatusServiceUnavailable, "Payment processor is not configured")
}

func TestBillingHandler_ValidationSkipsVendor(t *testing.T) {
	svc := &mockCheckoutService{}
	h := NewBillingHandler(gateway.Configured[CheckoutService](svc), gateway.NewAdapter(nil, nil, nil))

	w := postCheckout(h, `{"priceId":"","successUrl":"https://app.example.com/ok","cancelUrl":"https://app.example.com/cancel"}`)

	assertEnvelope(t, w, http.StatusBadRequest, "priceId is required")
	if svc.calls != 0 {
		t.Errorf("vendor called %d times, want 0", svc.calls)
	}
}

func TestBillingHandler_VendorErrorMapped(t *testing.T) {
	svc := &mockCheckoutService{
		createFn: func(ctx context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error) {
			return nil, &gateway.VendorError{Vendor: "stripe", Status: http.StatusNotFound, Message: "No such price: 'price_123'"}
		},
	}
	h := NewBillingHandler(gateway.Configured[CheckoutService](svc), gateway.NewAdapter(nil, nil, nil))

	w := postCheckout(h, validCheckoutBody)

	body := assertEnvelope(t, w, http.StatusNotFound, "Not found")
	if body["details"] != "No such price: 'price_123'" {
		t.Errorf("details = %v", body["details"])
	}
}
