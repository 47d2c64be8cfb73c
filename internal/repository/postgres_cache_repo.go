package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/misaki/caresync/internal/model"
)

// PostgresCacheRepo はPostgreSQLを使用したapiCacheリポジトリ。
type PostgresCacheRepo struct {
	db *sql.DB
}

// NewPostgresCacheRepo はPostgresCacheRepoを生成する。
func NewPostgresCacheRepo(db *sql.DB) *PostgresCacheRepo {
	return &PostgresCacheRepo{db: db}
}

// Find は指定キーのキャッシュエントリを取得する。見つからない場合はnilを返す。
// 期限切れ判定は呼び出し元（オーケストレータ）が行う。
func (r *PostgresCacheRepo) Find(ctx context.Context, key string) (*model.CacheEntry, error) {
	entry := &model.CacheEntry{}
	var payload []byte

	err := r.db.QueryRowContext(ctx,
		`SELECT cache_key, payload, fetched_at FROM api_cache WHERE cache_key = $1`,
		key,
	).Scan(&entry.Key, &payload, &entry.FetchedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: キャッシュエントリの取得に失敗しました: %w", model.ErrStorageUnavailable, err)
	}

	entry.Payload = payload
	return entry, nil
}

// Put はキャッシュエントリをUPSERTする。
// 同一キーの既存エントリは常に上書きされる（last-write-wins）。
func (r *PostgresCacheRepo) Put(ctx context.Context, entry *model.CacheEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO api_cache (cache_key, payload, fetched_at) VALUES ($1, $2, $3)
		 ON CONFLICT (cache_key) DO UPDATE SET payload = EXCLUDED.payload, fetched_at = EXCLUDED.fetched_at`,
		entry.Key, []byte(entry.Payload), entry.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: キャッシュエントリの保存に失敗しました: %w", model.ErrStorageUnavailable, err)
	}
	return nil
}

// Delete は指定キーのエントリを削除する。存在しない場合は何もしない。
func (r *PostgresCacheRepo) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM api_cache WHERE cache_key = $1`, key); err != nil {
		return fmt.Errorf("%w: キャッシュエントリの削除に失敗しました: %w", model.ErrStorageUnavailable, err)
	}
	return nil
}

// DeleteExpired はmaxAgeを超過した全エントリを削除し、削除件数を返す。
func (r *PostgresCacheRepo) DeleteExpired(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)

	result, err := r.db.ExecContext(ctx,
		`DELETE FROM api_cache WHERE fetched_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: 期限切れキャッシュの削除に失敗しました: %w", model.ErrStorageUnavailable, err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return deleted, nil
}

// DeleteAll は全エントリを削除する。リセット経路専用。
func (r *PostgresCacheRepo) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM api_cache`); err != nil {
		return fmt.Errorf("%w: キャッシュの全削除に失敗しました: %w", model.ErrStorageUnavailable, err)
	}
	return nil
}
