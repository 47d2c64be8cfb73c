// Package offline はキャッシュアサイド方式の読み書きポリシーを提供する。
// 読み取りはネットワーク優先でキャッシュにフォールバックし、
// 書き込みはオフライン中は即座に拒否する（write-gating）。
// 全ドメインリポジトリがこのオーケストレータを共有する。
package offline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/misaki/caresync/internal/connectivity"
	"github.com/misaki/caresync/internal/metrics"
	"github.com/misaki/caresync/internal/model"
	"github.com/misaki/caresync/internal/repository"
)

// RemoteCall はリモートサービスへの1回の呼び出しを表す。
// 成功時は不透明なJSONペイロードを返す。非2xxステータス、
// トランスポートエラー、不正なペイロードはすべてエラーとして返すこと。
type RemoteCall func(ctx context.Context) (json.RawMessage, error)

// Config はOrchestratorの動作設定。
type Config struct {
	// Timeout はリモート呼び出し1回あたりのタイムアウト。
	// タイムアウトはオフラインと同等に扱われ、フォールバック経路に入る。
	Timeout time.Duration
	// DefaultMaxAge はキャッシュエントリのデフォルト有効期間（24時間）。
	DefaultMaxAge time.Duration
}

// Orchestrator はキャッシュアサイドの読み書きポリシーを実装する。
type Orchestrator struct {
	cache     repository.CacheRepository
	signal    connectivity.Signal
	collector metrics.MetricsCollector
	logger    *slog.Logger
	config    Config

	// group は同一キーへの同時読み取りを1回のリモート呼び出しに集約する。
	// clear-then-insert同期の競合をエントリポイントで抑止する。
	group singleflight.Group

	// now はテストで時刻を差し替えるためのフック。
	now func() time.Time
}

// NewOrchestrator はOrchestratorを生成する。
func NewOrchestrator(
	cache repository.CacheRepository,
	signal connectivity.Signal,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	config Config,
) *Orchestrator {
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	if config.DefaultMaxAge <= 0 {
		config.DefaultMaxAge = 24 * time.Hour
	}
	return &Orchestrator{
		cache:     cache,
		signal:    signal,
		collector: collector,
		logger:    logger,
		config:    config,
		now:       time.Now,
	}
}

// Read は読み取りポリシーを適用する。
//
//  1. オンラインの場合: リモート呼び出しを実行する。成功したら結果を
//     現在時刻付きでapiCacheへ保存し、フレッシュな結果として返す。
//     失敗（非2xx、トランスポートエラー、不正ペイロード、タイムアウト）は
//     オフラインとまったく同様に扱い、手順2へフォールスルーする。
//  2. apiCacheを引く。エントリがなければErrNoCachedData。
//     期限切れならエントリを削除してErrNoCachedData。
//     有効ならキャッシュ由来の結果として返す。
//
// maxAgeが0以下の場合はデフォルト（24時間）を使用する。
func (o *Orchestrator) Read(ctx context.Context, key string, call RemoteCall, maxAge time.Duration) (*model.ReadResult, error) {
	if maxAge <= 0 {
		maxAge = o.config.DefaultMaxAge
	}

	if o.signal.Online() {
		payload, err := o.invoke(ctx, key, call)
		if err == nil {
			fetchedAt := o.now()
			entry := &model.CacheEntry{Key: key, Payload: payload, FetchedAt: fetchedAt}
			if putErr := o.cache.Put(ctx, entry); putErr != nil {
				// キャッシュ保存の失敗ではフレッシュな結果を捨てない。
				// オフラインサポートなしのネットワーク専用モードに縮退する。
				o.logger.Warn("キャッシュエントリの保存に失敗しました",
					slog.String("key", key),
					slog.String("error", putErr.Error()),
				)
			}
			return &model.ReadResult{
				Payload:   payload,
				Source:    model.SourceFresh,
				FetchedAt: fetchedAt,
			}, nil
		}

		// 接続シグナルは偽陽性でありうるため、リモート失敗は致命的エラー
		// ではなくオフラインと同等に扱う。
		o.logger.Warn("リモート読み取りに失敗したためキャッシュへフォールバックします",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}

	return o.readFromCache(ctx, key, maxAge)
}

// invoke はタイムアウト付きでリモート呼び出しを実行する。
// 同一キーの進行中呼び出しはsingle-flightで1回に集約される。
func (o *Orchestrator) invoke(ctx context.Context, key string, call RemoteCall) (json.RawMessage, error) {
	v, err, _ := o.group.Do(key, func() (interface{}, error) {
		start := time.Now()

		callCtx, cancel := context.WithTimeout(ctx, o.config.Timeout)
		defer cancel()

		payload, err := call(callCtx)
		o.collector.RecordSyncLatency(time.Since(start))
		if err != nil {
			o.collector.RecordUpstreamFailure()
			return nil, err
		}
		return payload, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(json.RawMessage), nil
}

// readFromCache はapiCacheからのフォールバック読み取りを行う。
// 期限切れエントリは遅延削除する。
func (o *Orchestrator) readFromCache(ctx context.Context, key string, maxAge time.Duration) (*model.ReadResult, error) {
	entry, err := o.cache.Find(ctx, key)
	if err != nil {
		return nil, err
	}

	if entry == nil {
		o.collector.RecordCacheMiss(key)
		return nil, fmt.Errorf("%w: %s", model.ErrNoCachedData, key)
	}

	if entry.IsExpired(o.now(), maxAge) {
		o.collector.RecordCacheExpired(key)
		if delErr := o.cache.Delete(ctx, key); delErr != nil {
			o.logger.Warn("期限切れキャッシュの削除に失敗しました",
				slog.String("key", key),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, fmt.Errorf("%w: %s", model.ErrNoCachedData, key)
	}

	o.collector.RecordCacheHit(key)
	return &model.ReadResult{
		Payload:   entry.Payload,
		Source:    model.SourceCache,
		FetchedAt: entry.FetchedAt,
	}, nil
}

// Write は書き込みポリシーを適用する。
//
// オフラインの場合はリモート呼び出しを一切実行せず、即座に
// ErrOfflineWriteRejectedを返す。書き込みはキューイングも再実行もしない。
// サーバーが確認していない書き込みを成功として見せないための
// 意図的なトレードオフである。
//
// オンラインの場合はリモート呼び出しの結果とエラーをそのまま伝播する。
// 成功した書き込みでもapiCacheには一切書かない。次回の読み取りが
// サーバーから最新状態を取得するため、キャッシュが未確認の変更を
// 反映することはない。
func (o *Orchestrator) Write(ctx context.Context, call RemoteCall) (json.RawMessage, error) {
	if !o.signal.Online() {
		o.collector.RecordOfflineWriteRejected()
		return nil, model.ErrOfflineWriteRejected
	}

	callCtx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	return call(callCtx)
}
