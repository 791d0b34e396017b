package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/speechgate/internal/metrics"
	"github.com/hitoshi/speechgate/internal/model"
	"github.com/hitoshi/speechgate/internal/security"
)

// Call は1回のベンダー呼び出しを表す。
// Validateは呼び出し前の入力検証で、失敗時はDoを実行しない。
// SecretsはエラーメッセージをDetailsに含める前に伏字にする値。
type Call[T any] struct {
	Vendor    string
	Operation string
	Validate  func() error
	Do        func(ctx context.Context) (T, error)
	Secrets   []string
}

// Adapter はベンダー呼び出しの計測とエラー正規化を行う。
type Adapter struct {
	metrics   metrics.MetricsCollector
	sanitizer security.MessageSanitizerService
	logger    *slog.Logger
}

// NewAdapter は新しいAdapterを生成する。
func NewAdapter(m metrics.MetricsCollector, sanitizer security.MessageSanitizerService, logger *slog.Logger) *Adapter {
	if m == nil {
		m = metrics.Nop{}
	}
	if sanitizer == nil {
		sanitizer = security.NewMessageSanitizer(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{metrics: m, sanitizer: sanitizer, logger: logger}
}

// Invoke は入力検証とベンダー呼び出しを行い、結果をResultに正規化する。
// ベンダーのパニックもFailureに変換し、呼び出し元へ伝播させない。
func Invoke[T any](ctx context.Context, a *Adapter, call Call[T]) (res Result[T]) {
	if a == nil {
		a = NewAdapter(nil, nil, nil)
	}

	if call.Validate != nil {
		if err := call.Validate(); err != nil {
			a.metrics.RecordVendorCall(call.Vendor, call.Operation, metrics.OutcomeValidationError)
			return Failure[T](validationFailure(err))
		}
	}

	if call.Do == nil {
		a.metrics.RecordVendorCall(call.Vendor, call.Operation, metrics.OutcomeInternalError)
		return Failure[T](model.HandleUnknown(a.logger, fmt.Sprintf("%s %s has no implementation", call.Vendor, call.Operation)))
	}

	start := time.Now()
	defer func() {
		a.metrics.RecordVendorLatency(call.Vendor, call.Operation, time.Since(start))
		if r := recover(); r != nil {
			a.metrics.RecordVendorCall(call.Vendor, call.Operation, metrics.OutcomeInternalError)
			a.logger.Error("vendor call panicked",
				slog.String("vendor", call.Vendor),
				slog.String("operation", call.Operation),
				slog.Any("panic", r),
			)
			res = Failure[T](a.unknownFailure(r, call.Secrets))
		}
	}()

	value, err := call.Do(ctx)
	if err == nil {
		a.metrics.RecordVendorCall(call.Vendor, call.Operation, metrics.OutcomeSuccess)
		return Success(value)
	}

	return Failure[T](a.normalize(call.Vendor, call.Operation, err, call.Secrets))
}

func (a *Adapter) normalize(vendor, operation string, err error, secrets []string) *model.APIError {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		a.metrics.RecordVendorCall(vendor, operation, outcomeFor(apiErr.Kind))
		return apiErr
	}

	var vendorErr *VendorError
	if errors.As(err, &vendorErr) {
		kind, status := MapVendorStatus(vendorErr.Status)
		a.metrics.RecordVendorCall(vendor, operation, metrics.OutcomeVendorError)
		a.logger.Warn("vendor returned error",
			slog.String("vendor", vendor),
			slog.String("operation", operation),
			slog.Int("vendor_status", vendorErr.Status),
		)
		return model.Normalize(kind, a.sanitizer.Sanitize(vendorErr.Message, secrets...), status)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		a.metrics.RecordVendorCall(vendor, operation, metrics.OutcomeVendorError)
		a.logger.Warn("vendor call timed out",
			slog.String("vendor", vendor),
			slog.String("operation", operation),
		)
		return model.Normalize(model.KindInternal, fmt.Sprintf("%s request timed out", vendor), http.StatusGatewayTimeout)
	}

	a.metrics.RecordVendorCall(vendor, operation, metrics.OutcomeInternalError)
	return a.unknownFailure(err, secrets)
}

// unknownFailure は想定外の失敗を500に変換する。
// Detailsはベンダーエラーと同じく短い平文にし、秘密値を伏字にする。
func (a *Adapter) unknownFailure(failure any, secrets []string) *model.APIError {
	apiErr := model.HandleUnknown(a.logger, failure)
	apiErr.Details = a.sanitizer.Sanitize(apiErr.Details, secrets...)
	return apiErr
}

func validationFailure(err error) *model.APIError {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return model.NewValidationError(err.Error())
}

func outcomeFor(kind model.Kind) string {
	switch kind {
	case model.KindValidation:
		return metrics.OutcomeValidationError
	case model.KindInternal:
		return metrics.OutcomeInternalError
	default:
		return metrics.OutcomeVendorError
	}
}
