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
// オーケストレータやワーカーから利用する。
type MetricsCollector interface {
	RecordCacheHit(key string)
	RecordCacheMiss(key string)
	RecordCacheExpired(key string)
	RecordOfflineWriteRejected()
	RecordUpstreamStatus(statusCode int)
	RecordUpstreamFailure()
	RecordSyncLatency(duration time.Duration)
	RecordCollectionReplaced(collection string, count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	cacheHit           prometheus.Counter
	cacheMiss          prometheus.Counter
	cacheExpired       prometheus.Counter
	offlineWriteReject prometheus.Counter
	upstreamStatus     *prometheus.CounterVec
	upstreamFail       prometheus.Counter
	syncLatency        prometheus.Histogram
	collectionReplaced *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		cacheHit: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "caresync_cache_hit_total",
			Help: "キャッシュフォールバック成功の合計数",
		}),
		cacheMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "caresync_cache_miss_total",
			Help: "有効なキャッシュが存在しなかった読み取りの合計数",
		}),
		cacheExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "caresync_cache_expired_total",
			Help: "読み取り時に期限切れで破棄されたキャッシュエントリの合計数",
		}),
		offlineWriteReject: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "caresync_offline_write_rejected_total",
			Help: "オフラインのため拒否された書き込みの合計数",
		}),
		upstreamStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "caresync_upstream_status_total",
			Help: "リモートサービスのHTTPステータスコード別レスポンス数",
		}, []string{"status_code"}),
		upstreamFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "caresync_upstream_fail_total",
			Help: "リモートサービス呼び出し失敗（トランスポートエラー含む）の合計数",
		}),
		syncLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "caresync_sync_latency_seconds",
			Help:    "リモート読み取りのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		collectionReplaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "caresync_collection_replaced_total",
			Help: "コレクション全置換の実行回数",
		}, []string{"collection"}),
	}

	reg.MustRegister(
		c.cacheHit,
		c.cacheMiss,
		c.cacheExpired,
		c.offlineWriteReject,
		c.upstreamStatus,
		c.upstreamFail,
		c.syncLatency,
		c.collectionReplaced,
	)

	return c
}

// RecordCacheHit はキャッシュフォールバック成功を記録する。
func (c *Collector) RecordCacheHit(key string) {
	c.cacheHit.Inc()
}

// RecordCacheMiss はキャッシュミスを記録する。
func (c *Collector) RecordCacheMiss(key string) {
	c.cacheMiss.Inc()
}

// RecordCacheExpired は期限切れキャッシュの破棄を記録する。
func (c *Collector) RecordCacheExpired(key string) {
	c.cacheExpired.Inc()
}

// RecordOfflineWriteRejected はオフライン書き込み拒否を記録する。
func (c *Collector) RecordOfflineWriteRejected() {
	c.offlineWriteReject.Inc()
}

// RecordUpstreamStatus はリモートサービスのHTTPステータスコードを記録する。
func (c *Collector) RecordUpstreamStatus(statusCode int) {
	c.upstreamStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordUpstreamFailure はリモートサービス呼び出しの失敗を記録する。
func (c *Collector) RecordUpstreamFailure() {
	c.upstreamFail.Inc()
}

// RecordSyncLatency はリモート読み取りのレイテンシを記録する。
func (c *Collector) RecordSyncLatency(duration time.Duration) {
	c.syncLatency.Observe(duration.Seconds())
}

// RecordCollectionReplaced はコレクション全置換の実行を記録する。
func (c *Collector) RecordCollectionReplaced(collection string, count int) {
	c.collectionReplaced.WithLabelValues(collection).Inc()
}

// NoopCollector は何も記録しないMetricsCollector実装。テスト用。
type NoopCollector struct{}

func (NoopCollector) RecordCacheHit(string)                {}
func (NoopCollector) RecordCacheMiss(string)               {}
func (NoopCollector) RecordCacheExpired(string)            {}
func (NoopCollector) RecordOfflineWriteRejected()          {}
func (NoopCollector) RecordUpstreamStatus(int)             {}
func (NoopCollector) RecordUpstreamFailure()               {}
func (NoopCollector) RecordSyncLatency(time.Duration)      {}
func (NoopCollector) RecordCollectionReplaced(string, int) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
