package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/misaki/caresync/internal/metrics"
	"github.com/misaki/caresync/internal/model"
)

// --- テスト用モック ---

// stubSignal は固定の接続状態を返すSignal実装。
type stubSignal struct {
	online bool
}

func (s *stubSignal) Online() bool {
	return s.online
}

func (s *stubSignal) Subscribe() (<-chan bool, func()) {
	ch := make(chan bool)
	return ch, func() {}
}

// mockCacheRepo はCacheRepositoryのテスト用インメモリ実装。
type mockCacheRepo struct {
	mu      sync.Mutex
	entries map[string]*model.CacheEntry

	findErr error
	putErr  error

	putCalls    int
	deleteCalls []string
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{entries: make(map[string]*model.CacheEntry)}
}

func (m *mockCacheRepo) Find(_ context.Context, key string) (*model.CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	entry, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	copied := *entry
	return &copied, nil
}

func (m *mockCacheRepo) Put(_ context.Context, entry *model.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putCalls++
	if m.putErr != nil {
		return m.putErr
	}
	copied := *entry
	m.entries[entry.Key] = &copied
	return nil
}

func (m *mockCacheRepo) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls = append(m.deleteCalls, key)
	delete(m.entries, key)
	return nil
}

func (m *mockCacheRepo) DeleteExpired(_ context.Context, _ time.Duration) (int64, error) {
	return 0, nil
}

func (m *mockCacheRepo) DeleteAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*model.CacheEntry)
	return nil
}

func newTestOrchestrator(cache *mockCacheRepo, online bool) *Orchestrator {
	return NewOrchestrator(
		cache,
		&stubSignal{online: online},
		metrics.NoopCollector{},
		slog.Default(),
		Config{Timeout: 5 * time.Second, DefaultMaxAge: 24 * time.Hour},
	)
}

// --- 読み取りポリシー ---

// オンラインでリモート読み取りが成功した場合、結果がキャッシュされ
// フレッシュな結果として返ることを確認する。
func TestRead_OnlineSuccess(t *testing.T) {
	cache := newMockCacheRepo()
	orch := newTestOrchestrator(cache, true)

	payload := json.RawMessage(`[{"id":"r1"}]`)
	result, err := orch.Read(context.Background(), "GET:/records", func(_ context.Context) (json.RawMessage, error) {
		return payload, nil
	}, 0)

	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if result.Source != model.SourceFresh {
		t.Errorf("Source = %q, want %q", result.Source, model.SourceFresh)
	}
	if string(result.Payload) != string(payload) {
		t.Errorf("Payload = %s, want %s", result.Payload, payload)
	}
	if result.FetchedAt.IsZero() {
		t.Error("フレッシュな結果のFetchedAtがゼロ値")
	}

	entry, _ := cache.Find(context.Background(), "GET:/records")
	if entry == nil {
		t.Fatal("読み取り成功後にキャッシュエントリが保存されていない")
	}
	if string(entry.Payload) != string(payload) {
		t.Errorf("キャッシュのPayload = %s, want %s", entry.Payload, payload)
	}
}

// オンラインでリモート読み取りが失敗した場合、キャッシュへ
// フォールバックすることを確認する。
func TestRead_OnlineFailureFallsBackToCache(t *testing.T) {
	cache := newMockCacheRepo()
	cached := json.RawMessage(`[{"id":"old"}]`)
	fetchedAt := time.Now().Add(-1 * time.Hour)
	cache.entries["GET:/records"] = &model.CacheEntry{
		Key:       "GET:/records",
		Payload:   cached,
		FetchedAt: fetchedAt,
	}

	orch := newTestOrchestrator(cache, true)

	result, err := orch.Read(context.Background(), "GET:/records", func(_ context.Context) (json.RawMessage, error) {
		return nil, errors.New("connection refused")
	}, 0)

	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if result.Source != model.SourceCache {
		t.Errorf("Source = %q, want %q", result.Source, model.SourceCache)
	}
	if string(result.Payload) != string(cached) {
		t.Errorf("Payload = %s, want %s", result.Payload, cached)
	}
	if !result.FetchedAt.Equal(fetchedAt) {
		t.Errorf("FetchedAt = %v, want %v（元の取得時刻を保持すべき）", result.FetchedAt, fetchedAt)
	}
}

// オフラインの場合、リモート呼び出しを実行せずにキャッシュから返すことを確認する。
func TestRead_OfflineServesFromCache(t *testing.T) {
	cache := newMockCacheRepo()
	cache.entries["GET:/appointments"] = &model.CacheEntry{
		Key:       "GET:/appointments",
		Payload:   json.RawMessage(`[]`),
		FetchedAt: time.Now(),
	}

	orch := newTestOrchestrator(cache, false)

	var called atomic.Bool
	result, err := orch.Read(context.Background(), "GET:/appointments", func(_ context.Context) (json.RawMessage, error) {
		called.Store(true)
		return nil, nil
	}, 0)

	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if called.Load() {
		t.Error("オフライン中にリモート呼び出しが実行された")
	}
	if result.Source != model.SourceCache {
		t.Errorf("Source = %q, want %q", result.Source, model.SourceCache)
	}
}

// オフラインでキャッシュも存在しない場合、ErrNoCachedDataを返すことを確認する。
func TestRead_OfflineNoCache(t *testing.T) {
	cache := newMockCacheRepo()
	orch := newTestOrchestrator(cache, false)

	_, err := orch.Read(context.Background(), "GET:/records", func(_ context.Context) (json.RawMessage, error) {
		return json.RawMessage(`[]`), nil
	}, 0)

	if !errors.Is(err, model.ErrNoCachedData) {
		t.Errorf("err = %v, want ErrNoCachedData", err)
	}
}

// 期限切れのキャッシュエントリは返さず、遅延削除されることを確認する。
func TestRead_ExpiredEntryIsDeleted(t *testing.T) {
	cache := newMockCacheRepo()
	cache.entries["GET:/records"] = &model.CacheEntry{
		Key:       "GET:/records",
		Payload:   json.RawMessage(`[]`),
		FetchedAt: time.Now().Add(-25 * time.Hour),
	}

	orch := newTestOrchestrator(cache, false)

	_, err := orch.Read(context.Background(), "GET:/records", func(_ context.Context) (json.RawMessage, error) {
		return nil, errors.New("unreachable")
	}, 24*time.Hour)

	if !errors.Is(err, model.ErrNoCachedData) {
		t.Errorf("err = %v, want ErrNoCachedData", err)
	}
	if len(cache.deleteCalls) != 1 || cache.deleteCalls[0] != "GET:/records" {
		t.Errorf("deleteCalls = %v, want [GET:/records]", cache.deleteCalls)
	}
}

// 境界値: ちょうどmaxAge経過した時点では期限切れではないことを確認する。
func TestRead_ExactlyMaxAgeIsNotExpired(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	cache := newMockCacheRepo()
	cache.entries["GET:/records"] = &model.CacheEntry{
		Key:       "GET:/records",
		Payload:   json.RawMessage(`[]`),
		FetchedAt: now.Add(-24 * time.Hour),
	}

	orch := newTestOrchestrator(cache, false)
	orch.now = func() time.Time { return now }

	result, err := orch.Read(context.Background(), "GET:/records", nil, 24*time.Hour)
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if result.Source != model.SourceCache {
		t.Errorf("Source = %q, want %q", result.Source, model.SourceCache)
	}
}

// キャッシュ保存が失敗してもフレッシュな結果は返ることを確認する
// （ネットワーク専用モードへの縮退）。
func TestRead_CachePutFailureStillReturnsFresh(t *testing.T) {
	cache := newMockCacheRepo()
	cache.putErr = fmt.Errorf("%w: disk full", model.ErrStorageUnavailable)

	orch := newTestOrchestrator(cache, true)

	result, err := orch.Read(context.Background(), "GET:/records", func(_ context.Context) (json.RawMessage, error) {
		return json.RawMessage(`[]`), nil
	}, 0)

	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if result.Source != model.SourceFresh {
		t.Errorf("Source = %q, want %q", result.Source, model.SourceFresh)
	}
}

// ストレージ障害（Findの失敗）はErrStorageUnavailableとして表面化することを確認する。
func TestRead_StorageFailureSurfaces(t *testing.T) {
	cache := newMockCacheRepo()
	cache.findErr = fmt.Errorf("%w: connection lost", model.ErrStorageUnavailable)

	orch := newTestOrchestrator(cache, false)

	_, err := orch.Read(context.Background(), "GET:/records", nil, 0)
	if !errors.Is(err, model.ErrStorageUnavailable) {
		t.Errorf("err = %v, want ErrStorageUnavailable", err)
	}
}

// 同一キーへの同時読み取りが1回のリモート呼び出しに集約されることを確認する。
func TestRead_SingleFlightDeduplicates(t *testing.T) {
	cache := newMockCacheRepo()
	orch := newTestOrchestrator(cache, true)

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	call := func(_ context.Context) (json.RawMessage, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return json.RawMessage(`[]`), nil
	}

	const readers = 5
	var wg sync.WaitGroup
	results := make([]*model.ReadResult, readers)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = orch.Read(context.Background(), "GET:/records", call, 0)
	}()
	<-started

	for i := 1; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = orch.Read(context.Background(), "GET:/records", call, 0)
		}(i)
	}

	// 後続の読み取りが進行中の呼び出しに合流するまで少し待つ
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("リモート呼び出し回数 = %d, want 1", got)
	}
	for i, result := range results {
		if result == nil || result.Source != model.SourceFresh {
			t.Errorf("results[%d]がフレッシュな結果ではない: %+v", i, result)
		}
	}
}

// --- 書き込みポリシー ---

// オフラインの場合、リモート呼び出しを一切実行せずに
// ErrOfflineWriteRejectedを返すことを確認する。
func TestWrite_OfflineRejected(t *testing.T) {
	cache := newMockCacheRepo()
	orch := newTestOrchestrator(cache, false)

	var called atomic.Bool
	_, err := orch.Write(context.Background(), func(_ context.Context) (json.RawMessage, error) {
		called.Store(true)
		return nil, nil
	})

	if !errors.Is(err, model.ErrOfflineWriteRejected) {
		t.Errorf("err = %v, want ErrOfflineWriteRejected", err)
	}
	if called.Load() {
		t.Error("オフライン中にリモート呼び出しが実行された")
	}
	if cache.putCalls != 0 {
		t.Errorf("putCalls = %d, want 0（書き込み経路はキャッシュに触れない）", cache.putCalls)
	}
}

// オンラインの場合、リモート呼び出しの結果がそのまま伝播することを確認する。
func TestWrite_OnlinePropagatesResult(t *testing.T) {
	cache := newMockCacheRepo()
	orch := newTestOrchestrator(cache, true)

	want := json.RawMessage(`{"id":"new1"}`)
	got, err := orch.Write(context.Background(), func(_ context.Context) (json.RawMessage, error) {
		return want, nil
	})

	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if string(got) != string(want) {
		t.Errorf("payload = %s, want %s", got, want)
	}
	if cache.putCalls != 0 {
		t.Errorf("putCalls = %d, want 0（成功した書き込みでもキャッシュには書かない）", cache.putCalls)
	}
}

// オンラインでリモート呼び出しが失敗した場合、エラーがそのまま伝播することを確認する。
func TestWrite_OnlinePropagatesError(t *testing.T) {
	cache := newMockCacheRepo()
	orch := newTestOrchestrator(cache, true)

	wantErr := errors.New("validation failed")
	_, err := orch.Write(context.Background(), func(_ context.Context) (json.RawMessage, error) {
		return nil, wantErr
	})

	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}
