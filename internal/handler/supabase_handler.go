package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/hitoshi/speechgate/internal/gateway"
	"github.com/hitoshi/speechgate/internal/middleware"
	"github.com/hitoshi/speechgate/internal/model"
	"github.com/hitoshi/speechgate/internal/supabase"
)

// ConnectionTester はSupabase接続テストに必要なインターフェース。
type ConnectionTester interface {
	ValidateProjectURL(raw string) error
	Probe(ctx context.Context, projectURL, key string) (supabase.ProbeResult, error)
}

type connectionTestRequest struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

type connectionTestResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// SupabaseHandler はSupabaseへの接続テストを行うHTTPハンドラー。
type SupabaseHandler struct {
	tester  ConnectionTester
	adapter *gateway.Adapter
}

// NewSupabaseHandler はSupabaseHandlerを生成する。
func NewSupabaseHandler(tester ConnectionTester, adapter *gateway.Adapter) *SupabaseHandler {
	return &SupabaseHandler{tester: tester, adapter: adapter}
}

// TestConnection は指定されたURLとキーでSupabaseに疎通できるかを返す。
// 入力不正は400、ベンダーの拒否は200のsuccess:false、想定外の失敗は500。
// POST /api/test-supabase-connection
func (h *SupabaseHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	var req connectionTestRequest
	if err := decodeJSONBody(w, r, maxJSONBody, &req); err != nil {
		middleware.WriteJSON(w, http.StatusBadRequest, connectionTestResponse{Error: err.Error()})
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	req.Key = strings.TrimSpace(req.Key)

	res := gateway.Invoke(r.Context(), h.adapter, gateway.Call[supabase.ProbeResult]{
		Vendor:    "supabase",
		Operation: "probe",
		Validate: func() error {
			if req.URL == "" || req.Key == "" {
				return errors.New("URL and key are required")
			}
			return h.tester.ValidateProjectURL(req.URL)
		},
		Do: func(ctx context.Context) (supabase.ProbeResult, error) {
			return h.tester.Probe(ctx, req.URL, req.Key)
		},
		Secrets: []string{req.Key},
	})

	if !res.OK() {
		apiErr := res.Err()
		if apiErr.Kind == model.KindValidation {
			middleware.WriteJSON(w, http.StatusBadRequest, connectionTestResponse{Error: apiErr.Message})
			return
		}
		msg := apiErr.Message
		if apiErr.Details != "" {
			msg = apiErr.Details
		}
		middleware.WriteJSON(w, http.StatusInternalServerError, connectionTestResponse{Error: msg})
		return
	}

	probe := res.Value()
	middleware.WriteJSON(w, http.StatusOK, connectionTestResponse{
		Success: probe.Reachable,
		Error:   probe.Message,
	})
}
