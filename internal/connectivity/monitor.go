// Package connectivity は接続状態の観測と通知を提供する。
// 状態はプラットフォームからの "became online" / "became offline" の
// 2種類のイベントによってのみ更新され、能動的な疎通確認（ポーリングや
// ハンドシェイク）は一切行わない。したがってオンライン報告は偽陽性で
// ありうる。その場合の扱いはオーケストレータ側のフォールバックに委ねる。
package connectivity

import (
	"log/slog"
	"sync"
)

// Signal は「いまネットワークに到達できるか」への同期的な回答を提供する。
// テストで遷移を決定的にシミュレートできるよう、注入可能な
// インターフェースとして定義する（シングルトンにはしない）。
type Signal interface {
	// Online は最後に報告された接続状態を返す。
	Online() bool

	// Subscribe は状態遷移ごとに新しい状態が送られるチャネルと、
	// 購読を解除する関数を返す。
	Subscribe() (<-chan bool, func())
}

// Monitor はSignalの実装。プラットフォームイベントの受け口となる。
type Monitor struct {
	logger *slog.Logger

	mu     sync.RWMutex
	online bool
	subs   map[int]chan bool
	nextID int
}

// NewMonitor はMonitorを生成する。initialOnlineが初期状態となる。
func NewMonitor(initialOnline bool, logger *slog.Logger) *Monitor {
	return &Monitor{
		logger: logger,
		online: initialOnline,
		subs:   make(map[int]chan bool),
	}
}

// Online は最後に報告された接続状態を返す。
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// SetOnline は "became online" イベントを反映する。
func (m *Monitor) SetOnline() {
	m.set(true)
}

// SetOffline は "became offline" イベントを反映する。
func (m *Monitor) SetOffline() {
	m.set(false)
}

// set は状態を更新し、遷移があった場合のみ購読者へ通知する。
// 同一状態の重複イベントは通知しない。
func (m *Monitor) set(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.online == online {
		return
	}
	m.online = online

	m.logger.Info("接続状態が変化しました",
		slog.Bool("online", online),
	)

	for _, ch := range m.subs {
		// 購読者が追いついていない場合は最新の通知を優先する
		select {
		case ch <- online:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- online
		}
	}
}

// Subscribe は状態遷移の通知チャネルと購読解除関数を返す。
func (m *Monitor) Subscribe() (<-chan bool, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	ch := make(chan bool, 1)
	m.subs[id] = ch

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
	return ch, cancel
}
