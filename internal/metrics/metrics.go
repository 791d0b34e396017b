// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ベンダー呼び出し結果のラベル値。
const (
	OutcomeSuccess         = "success"
	OutcomeValidationError = "validation_error"
	OutcomeVendorError     = "vendor_error"
	OutcomeInternalError   = "internal_error"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ゲートウェイ、認証ゲート、HTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordVendorCall(vendor, operation, outcome string)
	RecordVendorLatency(vendor, operation string, duration time.Duration)
	RecordHTTPStatus(statusCode int)
	RecordAuthFailure(reason string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	vendorCalls   *prometheus.CounterVec
	vendorLatency *prometheus.HistogramVec
	httpStatus    *prometheus.CounterVec
	authFailures  *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		vendorCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "speechgate_vendor_calls_total",
			Help: "ベンダー呼び出しの結果別の合計数",
		}, []string{"vendor", "operation", "outcome"}),
		vendorLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "speechgate_vendor_call_duration_seconds",
			Help:    "ベンダー呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"vendor", "operation"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "speechgate_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "speechgate_auth_failures_total",
			Help: "認証ゲートで拒否されたリクエスト数",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		c.vendorCalls,
		c.vendorLatency,
		c.httpStatus,
		c.authFailures,
	)

	return c
}

// RecordVendorCall はベンダー呼び出しの結果を記録する。
func (c *Collector) RecordVendorCall(vendor, operation, outcome string) {
	c.vendorCalls.WithLabelValues(vendor, operation, outcome).Inc()
}

// RecordVendorLatency はベンダー呼び出しのレイテンシを記録する。
func (c *Collector) RecordVendorLatency(vendor, operation string, duration time.Duration) {
	c.vendorLatency.WithLabelValues(vendor, operation).Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordAuthFailure は認証失敗を理由別に記録する。
func (c *Collector) RecordAuthFailure(reason string) {
	c.authFailures.WithLabelValues(reason).Inc()
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordVendorCall(string, string, string)           {}
func (Nop) RecordVendorLatency(string, string, time.Duration) {}
func (Nop) RecordHTTPStatus(int)                              {}
func (Nop) RecordAuthFailure(string)                          {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
