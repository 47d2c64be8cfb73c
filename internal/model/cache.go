package model

import (
	"encoding/json"
	"time"
)

// CacheEntry はapiCacheコレクションの1エントリを表す。
// キーは (HTTPメソッド, エンドポイントパス) から決定的に導出される。
// 同一キーのエントリは常に1件のみで、読み取り成功のたびに上書きされる。
type CacheEntry struct {
	Key       string
	Payload   json.RawMessage
	FetchedAt time.Time
}

// IsExpired はエントリがmax-ageを超過しているかを返す。
// 超過したエントリは読み取り時に遅延削除される。
func (e *CacheEntry) IsExpired(now time.Time, maxAge time.Duration) bool {
	return now.Sub(e.FetchedAt) > maxAge
}

// CacheKey は (HTTPメソッド, エンドポイントパス) からキャッシュキーを導出する。
// 例: CacheKey("GET", "/records") → "GET:/records"
func CacheKey(method, path string) string {
	return method + ":" + path
}
