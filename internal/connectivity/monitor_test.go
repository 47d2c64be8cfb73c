package connectivity

import (
	"log/slog"
	"testing"
	"time"
)

// 初期状態がコンストラクタの引数どおりであることを確認する。
func TestMonitor_InitialState(t *testing.T) {
	tests := []struct {
		name    string
		initial bool
	}{
		{name: "オンライン起動", initial: true},
		{name: "オフライン起動", initial: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMonitor(tt.initial, slog.Default())
			if got := m.Online(); got != tt.initial {
				t.Errorf("Online() = %v, want %v", got, tt.initial)
			}
		})
	}
}

// イベントによる状態遷移を確認する。
func TestMonitor_Transitions(t *testing.T) {
	m := NewMonitor(true, slog.Default())

	m.SetOffline()
	if m.Online() {
		t.Error("SetOffline後もオンラインのまま")
	}

	m.SetOnline()
	if !m.Online() {
		t.Error("SetOnline後もオフラインのまま")
	}
}

// 購読者へ遷移が通知されることを確認する。
func TestMonitor_SubscribeReceivesTransitions(t *testing.T) {
	m := NewMonitor(true, slog.Default())
	events, cancel := m.Subscribe()
	defer cancel()

	m.SetOffline()

	select {
	case online := <-events:
		if online {
			t.Error("オフライン遷移の通知がtrue")
		}
	case <-time.After(time.Second):
		t.Fatal("遷移通知がタイムアウトした")
	}
}

// 同一状態の重複イベントは通知されないことを確認する。
func TestMonitor_DuplicateEventsAreSuppressed(t *testing.T) {
	m := NewMonitor(true, slog.Default())
	events, cancel := m.Subscribe()
	defer cancel()

	m.SetOnline() // すでにオンライン

	select {
	case <-events:
		t.Error("重複イベントが通知された")
	case <-time.After(50 * time.Millisecond):
	}
}

// 購読者が追いついていない場合、最新の状態だけが残ることを確認する。
func TestMonitor_SlowSubscriberGetsLatest(t *testing.T) {
	m := NewMonitor(true, slog.Default())
	events, cancel := m.Subscribe()
	defer cancel()

	// 読まないまま2回遷移させる（offline → online）
	m.SetOffline()
	m.SetOnline()

	select {
	case online := <-events:
		if !online {
			t.Error("古い通知が残っている（最新はオンラインのはず）")
		}
	case <-time.After(time.Second):
		t.Fatal("遷移通知がタイムアウトした")
	}
}

// 購読解除後は通知が届かないことを確認する。
func TestMonitor_CancelStopsNotifications(t *testing.T) {
	m := NewMonitor(true, slog.Default())
	events, cancel := m.Subscribe()
	cancel()

	m.SetOffline()

	select {
	case <-events:
		t.Error("購読解除後に通知が届いた")
	case <-time.After(50 * time.Millisecond):
	}
}
