package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/misaki/caresync/internal/metrics"
)

// mockSSRFGuard はテスト用のSSRFGuardService実装。
// httptestサーバー（ループバック）への接続を許可するため、
// 素のHTTPクライアントを返す。
type mockSSRFGuard struct{}

func (m *mockSSRFGuard) NewSafeClient(timeout time.Duration, _ int64) *http.Client {
	return &http.Client{Timeout: timeout}
}

func (m *mockSSRFGuard) ValidateURL(_ string) error {
	return nil
}

func newTestClient(baseURL string) *Client {
	return NewClient(
		&mockSSRFGuard{}, baseURL, 5*time.Second, 1<<20,
		slog.Default(), metrics.NoopCollector{},
	)
}

// 成功レスポンスのペイロードとリクエストヘッダーを確認する。
func TestClient_GetSuccess(t *testing.T) {
	var gotAuth, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":"r1"}]`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	payload, err := client.Get(context.Background(), "/records", "token1")
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if string(payload) != `[{"id":"r1"}]` {
		t.Errorf("payload = %s", payload)
	}
	if gotAuth != "Bearer token1" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer token1")
	}
	if gotAccept != "application/json" {
		t.Errorf("Accept = %q", gotAccept)
	}
}

// トークンが空の場合はAuthorizationヘッダーを付けないことを確認する。
func TestClient_NoTokenOmitsAuthorization(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	if _, err := client.Get(context.Background(), "/records", ""); err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if gotAuth != "" {
		t.Errorf("Authorization = %q, want empty", gotAuth)
	}
}

// 非2xxレスポンスはStatusErrorになることを確認する。
func TestClient_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Post(context.Background(), "/records", "token1", json.RawMessage(`{}`))

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("err = %v, want StatusError", err)
	}
	if statusErr.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("StatusCode = %d, want 422", statusErr.StatusCode)
	}
}

// 空ボディ（204）はJSONのnullとして扱うことを確認する。
func TestClient_EmptyBodyIsNull(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	payload, err := client.Delete(context.Background(), "/records/r1", "token1")
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if string(payload) != "null" {
		t.Errorf("payload = %s, want null", payload)
	}
}

// 不正なJSONレスポンスはエラーになることを確認する（フォールバック対象）。
func TestClient_InvalidJSONIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>error page</html>`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	if _, err := client.Get(context.Background(), "/records", "token1"); err == nil {
		t.Fatal("不正なJSONなのにエラーにならなかった")
	}
}

// ボディ付きリクエストにContent-Typeが設定されることを確認する。
func TestClient_PostSetsContentType(t *testing.T) {
	var gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		w.Write([]byte(`{"id":"new1"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	if _, err := client.Post(context.Background(), "/records", "token1", json.RawMessage(`{"note":"x"}`)); err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
}
