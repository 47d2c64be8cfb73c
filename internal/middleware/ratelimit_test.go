package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

// newTestRateLimiter はテスト用の小さなバーストを持つRateLimiterを生成する。
func newTestRateLimiter(burst int) *RateLimiter {
	return NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(0.001), // 補充をほぼ無効化
		GeneralBurst:    burst,
		WriteRate:       rate.Limit(0.001),
		WriteBurst:      burst,
		CleanupInterval: time.Minute,
	})
}

func doRequest(handler http.Handler, token string) int {
	req := httptest.NewRequest(http.MethodGet, "/api/records", nil)
	req = req.WithContext(ContextWithToken(req.Context(), token))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec.Code
}

// バーストを超えたリクエストが429になることを確認する。
func TestRateLimiter_GeneralBurstExceeded(t *testing.T) {
	rl := newTestRateLimiter(2)
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		if code := doRequest(handler, "token1"); code != http.StatusOK {
			t.Fatalf("リクエスト%d: status = %d, want 200", i+1, code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/records", nil)
	req = req.WithContext(ContextWithToken(req.Context(), "token1"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-Afterヘッダーがない")
	}
}

// クライアントごとに独立したリミッターを持つことを確認する。
func TestRateLimiter_PerClientIsolation(t *testing.T) {
	rl := newTestRateLimiter(1)
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	if code := doRequest(handler, "token1"); code != http.StatusOK {
		t.Fatalf("token1: status = %d, want 200", code)
	}
	if code := doRequest(handler, "token1"); code != http.StatusTooManyRequests {
		t.Fatalf("token1 2回目: status = %d, want 429", code)
	}

	// 別クライアントは影響を受けない
	if code := doRequest(handler, "token2"); code != http.StatusOK {
		t.Fatalf("token2: status = %d, want 200", code)
	}

	if got := rl.GeneralLimiterCount(); got != 2 {
		t.Errorf("GeneralLimiterCount = %d, want 2", got)
	}
}

// 書き込み系リミッターがAPI全般と独立に動作することを確認する。
func TestRateLimiter_WriteIndependentOfGeneral(t *testing.T) {
	rl := newTestRateLimiter(1)
	defer rl.Stop()

	general := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	write := rl.WriteMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// API全般のバーストを使い切る
	if code := doRequest(general, "token1"); code != http.StatusOK {
		t.Fatalf("general: status = %d, want 200", code)
	}
	if code := doRequest(general, "token1"); code != http.StatusTooManyRequests {
		t.Fatalf("general 2回目: status = %d, want 429", code)
	}

	// 書き込み系は独立のバケットなのでまだ通る
	if code := doRequest(write, "token1"); code != http.StatusOK {
		t.Fatalf("write: status = %d, want 200", code)
	}
}

// req/minからの設定変換を確認する。
func TestNewRateLimiterConfig(t *testing.T) {
	config := NewRateLimiterConfig(60, 12)

	if config.GeneralRate != rate.Limit(1.0) {
		t.Errorf("GeneralRate = %v, want 1.0", config.GeneralRate)
	}
	if config.GeneralBurst != 60 {
		t.Errorf("GeneralBurst = %d, want 60", config.GeneralBurst)
	}
	if config.WriteRate != rate.Limit(0.2) {
		t.Errorf("WriteRate = %v, want 0.2", config.WriteRate)
	}
	if config.WriteBurst != 12 {
		t.Errorf("WriteBurst = %d, want 12", config.WriteBurst)
	}
}
