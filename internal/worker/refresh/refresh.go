// Package refresh はウェルネスTipsのバックグラウンド再同期を提供する。
// オンラインの間だけ定期的にフィードを再取得し、キャッシュと
// コレクションを先回りで温める。オフライン中はスキップし、
// オンライン復帰イベントを受けて即時に1回実行する。
package refresh

import (
	"context"
	"log/slog"
	"time"

	"github.com/misaki/caresync/internal/connectivity"
)

// Refresher は再同期処理の実行インターフェース。
// tips.Serviceが実装する。
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Scheduler はTips再同期のスケジューリングを行う。
type Scheduler struct {
	refresher Refresher
	signal    connectivity.Signal
	logger    *slog.Logger
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(refresher Refresher, signal connectivity.Signal, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		refresher: refresher,
		signal:    signal,
		logger:    logger,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// 接続状態の変化も購読し、オンライン復帰時には間隔を待たずに
// 再同期する。コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	events, cancel := s.signal.Subscribe()
	defer cancel()

	s.logger.Info("Tips再同期スケジューラを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Tips再同期スケジューラを停止しました")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		case online, ok := <-events:
			if !ok {
				return
			}
			if online {
				s.logger.Info("オンライン復帰を検知したためTipsを再同期します")
				s.runOnce(ctx)
			}
		}
	}
}

// runOnce はオンラインの場合のみ再同期を1回実行する。
func (s *Scheduler) runOnce(ctx context.Context) {
	if !s.signal.Online() {
		s.logger.Debug("オフラインのためTips再同期をスキップします")
		return
	}
	if err := s.refresher.Refresh(ctx); err != nil {
		s.logger.Error("Tips再同期に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}
