// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/misaki/caresync/internal/model"
)

// DocumentRepository はドメインコレクションの永続化インターフェース。
// コレクション単位のスキーマレスなドキュメントストアを提供する。
// 「見つからない」は正常な空結果であり、エラーにはならない。
type DocumentRepository interface {
	// ReplaceAll はコレクションの内容をdocsで全置換する（clear-then-insert）。
	// リモートサービスの一覧レスポンスを当該コレクションの完全な
	// スナップショットとして扱う。単一トランザクションで実行する。
	ReplaceAll(ctx context.Context, collection model.Collection, docs []model.Document) error

	// Upsert は単一ドキュメントを主キーでUPSERTする。
	Upsert(ctx context.Context, collection model.Collection, doc model.Document) error

	// GetAll はコレクションの全ドキュメントを挿入順で返す。
	// コレクションが空の場合は空スライスを返す（エラーにしない）。
	GetAll(ctx context.Context, collection model.Collection) ([]model.Document, error)

	// FindByID は指定キーのドキュメントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, collection model.Collection, id string) (*model.Document, error)

	// Delete は指定キーのドキュメントを削除する。存在しない場合は何もしない。
	Delete(ctx context.Context, collection model.Collection, id string) error

	// ClearAll は全ドメインコレクションを空にする。
	// ユーザー操作による明示的なリセット（ログアウト等）専用で、
	// キャッシュアサイド経路からは呼ばれない。
	ClearAll(ctx context.Context) error
}

// CacheRepository はapiCacheコレクションの永続化インターフェース。
// エンドポイントキーごとに最大1エントリを保持する（last-write-wins）。
type CacheRepository interface {
	// Find は指定キーのキャッシュエントリを取得する。見つからない場合はnilを返す。
	Find(ctx context.Context, key string) (*model.CacheEntry, error)

	// Put はキャッシュエントリをUPSERTする。
	// 読み取り成功のたびに既存エントリを上書きする（バージョン管理なし）。
	Put(ctx context.Context, entry *model.CacheEntry) error

	// Delete は指定キーのエントリを削除する。存在しない場合は何もしない。
	Delete(ctx context.Context, key string) error

	// DeleteExpired はmaxAgeを超過した全エントリを削除し、削除件数を返す。
	// fetched_atのインデックスを使用する定期掃き出しジョブ用。
	DeleteExpired(ctx context.Context, maxAge time.Duration) (int64, error)

	// DeleteAll は全エントリを削除する。
	// キャッシュにはユーザーデータが含まれるため、リセット経路で
	// ドメインコレクションと合わせて消去する。
	DeleteAll(ctx context.Context) error
}
