package refresh

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/misaki/caresync/internal/connectivity"
)

// mockRefresher はRefresherのテスト用モック。
type mockRefresher struct {
	calls atomic.Int32
}

func (m *mockRefresher) Refresh(_ context.Context) error {
	m.calls.Add(1)
	return nil
}

// オンラインの場合、起動直後に1回再同期されることを確認する。
func TestScheduler_RunsOnStartWhenOnline(t *testing.T) {
	refresher := &mockRefresher{}
	monitor := connectivity.NewMonitor(true, slog.Default())
	s := NewScheduler(refresher, monitor, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx, time.Hour)
		close(done)
	}()

	waitFor(t, func() bool { return refresher.calls.Load() == 1 })
	cancel()
	<-done
}

// オフラインの場合、再同期がスキップされることを確認する。
func TestScheduler_SkipsWhenOffline(t *testing.T) {
	refresher := &mockRefresher{}
	monitor := connectivity.NewMonitor(false, slog.Default())
	s := NewScheduler(refresher, monitor, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx, time.Hour)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	if got := refresher.calls.Load(); got != 0 {
		t.Errorf("オフラインなのに再同期が %d 回実行された", got)
	}
	cancel()
	<-done
}

// オンライン復帰イベントで即時に再同期されることを確認する。
func TestScheduler_RefreshesOnReconnect(t *testing.T) {
	refresher := &mockRefresher{}
	monitor := connectivity.NewMonitor(false, slog.Default())
	s := NewScheduler(refresher, monitor, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx, time.Hour)
		close(done)
	}()

	// 購読が確立するまで少し待ってからオンライン復帰させる
	time.Sleep(50 * time.Millisecond)
	monitor.SetOnline()

	waitFor(t, func() bool { return refresher.calls.Load() >= 1 })
	cancel()
	<-done
}

// waitFor は条件が満たされるまでポーリングする。タイムアウトで失敗する。
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("条件が時間内に満たされなかった")
}
