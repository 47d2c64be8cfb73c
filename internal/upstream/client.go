// Package upstream はリモートサービス（クラウドAPI）のクライアントを提供する。
// JSON-over-HTTPで、認証はリクエストごとに呼び出し元から渡される
// 不透明なベアラートークンをそのままヘッダーに載せる。
// 2xx + JSONボディが成功で、それ以外はすべてポリシー上の失敗として扱う。
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/misaki/caresync/internal/metrics"
	"github.com/misaki/caresync/internal/security"
)

// userAgent は外向きリクエストのUser-Agentヘッダー。
const userAgent = "CareSync/1.0 Sync Gateway"

// Client はリモートサービスのHTTPクライアント。
// SSRFガード付きのHTTPクライアントを内部で使用する。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	collector  metrics.MetricsCollector
	baseURL    string
	maxBody    int64
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLは末尾のスラッシュを取り除いて保持する。
func NewClient(
	guard security.SSRFGuardService,
	baseURL string,
	timeout time.Duration,
	maxBody int64,
	logger *slog.Logger,
	collector metrics.MetricsCollector,
) *Client {
	return &Client{
		httpClient: guard.NewSafeClient(timeout, maxBody),
		logger:     logger,
		collector:  collector,
		baseURL:    strings.TrimRight(baseURL, "/"),
		maxBody:    maxBody,
	}
}

// Do は任意のメソッドでリモートサービスを呼び出す。
// tokenが空でない場合はAuthorizationヘッダーに載せる。
// 成功時はレスポンスのJSONペイロードを返す。空ボディはJSONのnullとして扱う。
func (c *Client) Do(ctx context.Context, method, path, token string, body json.RawMessage) (json.RawMessage, error) {
	reqURL := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("リモートサービスの呼び出しに失敗しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("リモートサービスの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	c.collector.RecordUpstreamStatus(resp.StatusCode)

	// 2xx以外はポリシー上の失敗
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("リモートサービスがエラーステータスを返しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, &StatusError{StatusCode: resp.StatusCode, Method: method, Path: path}
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	// 空ボディ（204等）はJSONのnullとして扱う
	if len(bytes.TrimSpace(payload)) == 0 {
		return json.RawMessage("null"), nil
	}

	// 不正なペイロードも失敗として扱う（フォールバック対象）
	if !json.Valid(payload) {
		return nil, fmt.Errorf("リモートサービスのレスポンスが不正なJSONです: %s %s", method, path)
	}

	return json.RawMessage(payload), nil
}

// Get はGETリクエストを実行する。
func (c *Client) Get(ctx context.Context, path, token string) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodGet, path, token, nil)
}

// Post はPOSTリクエストを実行する。
func (c *Client) Post(ctx context.Context, path, token string, body json.RawMessage) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodPost, path, token, body)
}

// Put はPUTリクエストを実行する。
func (c *Client) Put(ctx context.Context, path, token string, body json.RawMessage) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodPut, path, token, body)
}

// Delete はDELETEリクエストを実行する。
func (c *Client) Delete(ctx context.Context, path, token string) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodDelete, path, token, nil)
}

// StatusError はリモートサービスの非2xxレスポンスを表す。
// 書き込み経路ではステータスをそのままUIへ伝播するために使用する。
type StatusError struct {
	StatusCode int
	Method     string
	Path       string
}

// Error はerrorインターフェースを実装する。
func (e *StatusError) Error() string {
	return fmt.Sprintf("リモートサービスがステータス %d を返しました: %s %s", e.StatusCode, e.Method, e.Path)
}
