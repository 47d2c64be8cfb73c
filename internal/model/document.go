// Package model はドメインモデルを定義する。
package model

import (
	"encoding/json"
	"time"
)

// Collection は永続ストア内の名前付きコレクションを表す。
// コレクション名はマイグレーションで宣言されたテーブルと1対1に対応する。
type Collection string

const (
	// CollectionHealthRecords は健康記録のコレクション。
	CollectionHealthRecords Collection = "health_records"
	// CollectionAppointments は予約（通院予定）のコレクション。
	CollectionAppointments Collection = "appointments"
	// CollectionFamilyMembers は家族メンバーのコレクション。
	CollectionFamilyMembers Collection = "family_members"
	// CollectionWellnessTips はウェルネスTipsのコレクション。
	// 主キーはフィードGUIDから導出される代理キー。
	CollectionWellnessTips Collection = "wellness_tips"
)

// DomainCollections は全ドメインコレクションの一覧。
// clearAll（ユーザーリセット）の対象となる。api_cacheは別管理。
var DomainCollections = []Collection{
	CollectionHealthRecords,
	CollectionAppointments,
	CollectionFamilyMembers,
	CollectionWellnessTips,
}

// Document はコレクションに格納されるスキーマレスなドキュメントを表す。
// ペイロードは不透明なJSON値として扱い、主キーのみを取り出して保持する。
type Document struct {
	ID      string
	Payload json.RawMessage
}

// ExtractDocumentID はJSONオブジェクトから主キーを取り出す。
// "_id" を優先し、なければ "id" を使用する。どちらもない場合は空文字列を返す。
func ExtractDocumentID(payload json.RawMessage) string {
	var probe struct {
		MongoID string `json:"_id"`
		ID      string `json:"id"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return ""
	}
	if probe.MongoID != "" {
		return probe.MongoID
	}
	return probe.ID
}

// WellnessTip はウェルネスTipを表す。
// リモートのRSS/Atomフィードから同期され、サニタイズ済みコンテンツを保持する。
type WellnessTip struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Content     string    `json:"content"` // サニタイズ済みHTML
	Link        string    `json:"link"`
	PublishedAt time.Time `json:"published_at"`
}
