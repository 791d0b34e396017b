package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/speechgate/internal/middleware"
	"github.com/hitoshi/speechgate/internal/model"
)

// HealthChecker は依存先の死活確認を行うインターフェース。
type HealthChecker interface {
	Check(ctx context.Context) error
}

// HealthHandler はヘルスチェックのHTTPハンドラー。
type HealthHandler struct {
	checker HealthChecker
	logger  *slog.Logger
}

// NewHealthHandler はHealthHandlerを生成する。checkerがnilの場合は常に正常を返す。
func NewHealthHandler(checker HealthChecker, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{checker: checker, logger: logger}
}

// Health は稼働状態を返す。
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.checker != nil {
		if err := h.checker.Check(r.Context()); err != nil {
			h.logger.Warn("health check failed", slog.String("error", err.Error()))
			apiErr := model.Normalize(model.KindInternal, "dependency unavailable", http.StatusServiceUnavailable)
			middleware.WriteErrorResponse(w, apiErr)
			return
		}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
