package model

import (
	"encoding/json"
	"time"
)

// Source はデータの取得元（鮮度）を表す。
// 「キャッシュから」の1値に潰さず、未同期状態を区別できるようにしている。
type Source string

const (
	// SourceFresh はリモートサービスから直接取得した新鮮なデータ。
	SourceFresh Source = "fresh"
	// SourceCache はローカルのキャッシュまたはストアから返したデータ。
	SourceCache Source = "cache"
	// SourceNeverSynced は一度も同期に成功していない状態（空の結果）。
	SourceNeverSynced Source = "never_synced"
)

// ReadResult は読み取りポリシーの結果を表す。
// ペイロードは不透明なJSON値で、取得元と取得時刻が付与される。
type ReadResult struct {
	Payload   json.RawMessage
	Source    Source
	FetchedAt time.Time
}

// FromCache はキャッシュ由来（非フレッシュ）かどうかを返す。
// UI互換のため、never_syncedもキャッシュ扱いとする。
func (r *ReadResult) FromCache() bool {
	return r.Source != SourceFresh
}
