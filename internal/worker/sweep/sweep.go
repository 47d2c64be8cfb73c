// Package sweep は期限切れキャッシュエントリの自動削除ジョブを提供する。
// 読み取り経路の遅延削除を補完するもので、アクセスされなくなった
// キーが無期限に残らないよう、日次バッチで一括削除する。
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/misaki/caresync/internal/repository"
)

// SweepJob は期限切れキャッシュの一括削除ジョブ。
// 冪等な削除処理であり、削除対象がなくてもエラーにならない。
type SweepJob struct {
	cacheRepo repository.CacheRepository
	logger    *slog.Logger
	MaxAge    time.Duration // キャッシュの最大保持期間（デフォルト: 24時間）
}

// NewSweepJob は新しいSweepJobを生成する。
// maxAgeが0以下の場合はデフォルトの24時間を使用する。
func NewSweepJob(cacheRepo repository.CacheRepository, maxAge time.Duration, logger *slog.Logger) *SweepJob {
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &SweepJob{
		cacheRepo: cacheRepo,
		logger:    logger,
		MaxAge:    maxAge,
	}
}

// Run は保持期間を超過したキャッシュエントリを削除する。
func (j *SweepJob) Run(ctx context.Context) error {
	start := time.Now()

	deletedCount, err := j.cacheRepo.DeleteExpired(ctx, j.MaxAge)
	if err != nil {
		j.logger.Error("キャッシュスイープジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Duration("max_age", j.MaxAge),
		)
		return fmt.Errorf("キャッシュスイープの実行に失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("キャッシュスイープジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Duration("max_age", j.MaxAge),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は指定間隔のティッカーでスイープジョブを定期実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *SweepJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("キャッシュスイープジョブを開始しました",
		slog.Duration("interval", interval),
	)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("キャッシュスイープジョブを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("キャッシュスイープの定期実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
