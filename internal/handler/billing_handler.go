package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/speechgate/internal/billing"
	"github.com/hitoshi/speechgate/internal/gateway"
	"github.com/hitoshi/speechgate/internal/middleware"
	"github.com/hitoshi/speechgate/internal/model"
)

// CheckoutService はCheckoutセッション作成に必要なインターフェース。
type CheckoutService interface {
	CreateCheckoutSession(ctx context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error)
}

type checkoutSessionRequest struct {
	PriceID    string `json:"priceId"`
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
	Mode       string `json:"mode,omitempty"`
}

// BillingHandler は決済関連のHTTPハンドラー。
type BillingHandler struct {
	checkout gateway.Capability[CheckoutService]
	adapter  *gateway.Adapter
}

// NewBillingHandler はBillingHandlerを生成する。
func NewBillingHandler(checkout gateway.Capability[CheckoutService], adapter *gateway.Adapter) *BillingHandler {
	return &BillingHandler{checkout: checkout, adapter: adapter}
}

// CreateCheckoutSession は認証済みユーザー向けのCheckoutセッションを作成する。
// POST /api/billing/checkout-session
func (h *BillingHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.checkout.Get()
	if !ok {
		middleware.WriteErrorResponse(w, model.NewNotConfiguredError("Payment processor"))
		return
	}

	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, model.NewUnauthorizedError())
		return
	}

	var body checkoutSessionRequest
	if err := decodeJSONBody(w, r, maxJSONBody, &body); err != nil {
		middleware.WriteErrorResponse(w, model.NewValidationError(err.Error()))
		return
	}

	req := billing.CheckoutRequest{
		PriceID:           body.PriceID,
		SuccessURL:        body.SuccessURL,
		CancelURL:         body.CancelURL,
		Mode:              body.Mode,
		CustomerEmail:     identity.Email,
		ClientReferenceID: identity.ID,
	}

	res := gateway.Invoke(r.Context(), h.adapter, gateway.Call[*billing.CheckoutSession]{
		Vendor:    "stripe",
		Operation: "create_checkout_session",
		Validate:  req.Validate,
		Do: func(ctx context.Context) (*billing.CheckoutSession, error) {
			return svc.CreateCheckoutSession(ctx, req)
		},
	})
	if !res.OK() {
		middleware.WriteErrorResponse(w, res.Err())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, res.Value())
}
