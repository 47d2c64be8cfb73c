// Package handler はHTTP APIのハンドラーを提供する。
// 読み取り系レスポンスはすべて統一エンベロープで返し、
// データの提供元（fresh/cache/never_synced）をUIへ明示する。
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/misaki/caresync/internal/model"
)

// readEnvelope は読み取り系APIの統一レスポンスフォーマット。
// from_cacheは後方互換のための二値サマリで、詳細はsourceが持つ。
type readEnvelope struct {
	Data      json.RawMessage `json:"data"`
	FromCache bool            `json:"from_cache"`
	Source    string          `json:"source"`
	FetchedAt *time.Time      `json:"fetched_at,omitempty"`
}

// writeReadResult は読み取り結果をエンベロープで書き込む。
// X-Data-Sourceヘッダーにも提供元を設定する（ロギングとUIバナー用）。
func writeReadResult(w http.ResponseWriter, result *model.ReadResult) {
	var fetchedAt *time.Time
	if !result.FetchedAt.IsZero() {
		t := result.FetchedAt
		fetchedAt = &t
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Data-Source", string(result.Source))
	json.NewEncoder(w).Encode(readEnvelope{
		Data:      result.Payload,
		FromCache: result.FromCache(),
		Source:    string(result.Source),
		FetchedAt: fetchedAt,
	})
}

// writeJSON は任意のペイロードをJSONで書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}
