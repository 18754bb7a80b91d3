// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェア、サービス層、ワーカーから利用する。
type MetricsCollector interface {
	RecordHTTPRequest(method, route string, statusCode int, duration time.Duration)
	RecordUpstreamCall(service string, ok bool, duration time.Duration)
	RecordEntrySaved(draft bool)
	RecordExport(format string)
	RecordAIFallback(feature string)
	RecordSessionsCleaned(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpRequests    *prometheus.CounterVec
	httpLatency     *prometheus.HistogramVec
	upstreamCalls   *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	entriesSaved    *prometheus.CounterVec
	exports         *prometheus.CounterVec
	aiFallbacks     *prometheus.CounterVec
	sessionsCleaned prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindjournal_http_requests_total",
			Help: "ルート・ステータスコード別のリクエスト数",
		}, []string{"method", "route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mindjournal_http_request_duration_seconds",
			Help:    "リクエスト処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		upstreamCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindjournal_upstream_calls_total",
			Help: "外部API呼び出し数",
		}, []string{"service", "result"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mindjournal_upstream_latency_seconds",
			Help:    "外部API呼び出しのレイテンシ（秒）",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		}, []string{"service"}),
		entriesSaved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindjournal_entries_saved_total",
			Help: "保存されたエントリ数",
		}, []string{"kind"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindjournal_exports_total",
			Help: "データエクスポート数",
		}, []string{"format"}),
		aiFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindjournal_ai_fallback_total",
			Help: "AI応答の代わりに既定値を返した回数",
		}, []string{"feature"}),
		sessionsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mindjournal_sessions_cleaned_total",
			Help: "削除された期限切れセッション数",
		}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpLatency,
		c.upstreamCalls,
		c.upstreamLatency,
		c.entriesSaved,
		c.exports,
		c.aiFallbacks,
		c.sessionsCleaned,
	)

	return c
}

// RecordHTTPRequest はリクエストの件数と処理時間を記録する。
// routeにはURLではなくchiのルートパターンを渡す。
func (c *Collector) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordUpstreamCall は外部API呼び出しの結果とレイテンシを記録する。
func (c *Collector) RecordUpstreamCall(service string, ok bool, duration time.Duration) {
	result := "success"
	if !ok {
		result = "failure"
	}
	c.upstreamCalls.WithLabelValues(service, result).Inc()
	c.upstreamLatency.WithLabelValues(service).Observe(duration.Seconds())
}

// RecordEntrySaved はエントリの保存を記録する。
func (c *Collector) RecordEntrySaved(draft bool) {
	kind := "published"
	if draft {
		kind = "draft"
	}
	c.entriesSaved.WithLabelValues(kind).Inc()
}

// RecordExport はエクスポートを記録する。
func (c *Collector) RecordExport(format string) {
	c.exports.WithLabelValues(format).Inc()
}

// RecordAIFallback はAI機能が既定値にフォールバックしたことを記録する。
func (c *Collector) RecordAIFallback(feature string) {
	c.aiFallbacks.WithLabelValues(feature).Inc()
}

// RecordSessionsCleaned は削除されたセッション数を記録する。
func (c *Collector) RecordSessionsCleaned(count int) {
	c.sessionsCleaned.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
