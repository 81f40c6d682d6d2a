// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// 更新パイプラインとジオコーディングの両方のメトリクスを提供する。
type Collector struct {
	refreshSuccess    prometheus.Counter
	refreshFail       prometheus.Counter
	parseFail         prometheus.Counter
	fetchLatency      prometheus.Histogram
	itemsInserted     prometheus.Counter
	duplicatesSkipped prometheus.Counter
	geocodeRequests   prometheus.Counter
	geocodeFailures   prometheus.Counter
	geocodeCacheHit   prometheus.Counter
	geocodeCacheMiss  prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		refreshSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geofeed_refresh_success_total",
			Help: "フィード更新成功の合計数",
		}),
		refreshFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geofeed_refresh_fail_total",
			Help: "フィード更新失敗の合計数",
		}),
		parseFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geofeed_parse_fail_total",
			Help: "フィードパース失敗の合計数",
		}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "geofeed_refresh_latency_seconds",
			Help:    "フィード更新サイクルのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		itemsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geofeed_items_inserted_total",
			Help: "挿入された記事の合計数",
		}),
		duplicatesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geofeed_duplicates_skipped_total",
			Help: "GUID重複でスキップされた記事の合計数",
		}),
		geocodeRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geofeed_geocode_requests_total",
			Help: "外部ジオコーディングリクエストの合計数",
		}),
		geocodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geofeed_geocode_failures_total",
			Help: "外部ジオコーディング失敗の合計数",
		}),
		geocodeCacheHit: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geofeed_geocode_cache_hit_total",
			Help: "ジオコーディングキャッシュヒットの合計数",
		}),
		geocodeCacheMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geofeed_geocode_cache_miss_total",
			Help: "ジオコーディングキャッシュミスの合計数",
		}),
	}

	reg.MustRegister(
		c.refreshSuccess,
		c.refreshFail,
		c.parseFail,
		c.fetchLatency,
		c.itemsInserted,
		c.duplicatesSkipped,
		c.geocodeRequests,
		c.geocodeFailures,
		c.geocodeCacheHit,
		c.geocodeCacheMiss,
	)

	return c
}

// RecordRefreshSuccess はフィード更新成功を記録する。
func (c *Collector) RecordRefreshSuccess() {
	c.refreshSuccess.Inc()
}

// RecordRefreshFailure はフィード更新失敗を記録する。
func (c *Collector) RecordRefreshFailure() {
	c.refreshFail.Inc()
}

// RecordParseFailure はパース失敗を記録する。
func (c *Collector) RecordParseFailure() {
	c.parseFail.Inc()
}

// RecordFetchLatency は更新サイクルのレイテンシを記録する。
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordItemsInserted は挿入された記事数を記録する。
func (c *Collector) RecordItemsInserted(count int) {
	c.itemsInserted.Add(float64(count))
}

// RecordDuplicatesSkipped は重複スキップされた記事数を記録する。
func (c *Collector) RecordDuplicatesSkipped(count int) {
	c.duplicatesSkipped.Add(float64(count))
}

// RecordGeocodeRequest は外部ジオコーディングリクエストを記録する。
func (c *Collector) RecordGeocodeRequest() {
	c.geocodeRequests.Inc()
}

// RecordGeocodeFailure は外部ジオコーディング失敗を記録する。
func (c *Collector) RecordGeocodeFailure() {
	c.geocodeFailures.Inc()
}

// RecordGeocodeCacheHit はジオコーディングキャッシュヒットを記録する。
func (c *Collector) RecordGeocodeCacheHit() {
	c.geocodeCacheHit.Inc()
}

// RecordGeocodeCacheMiss はジオコーディングキャッシュミスを記録する。
func (c *Collector) RecordGeocodeCacheMiss() {
	c.geocodeCacheMiss.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
