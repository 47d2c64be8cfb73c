package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/misaki/caresync/internal/model"
)

// collectionTables はコレクション名から物理テーブル名への許可リスト。
// テーブル名はプレースホルダにできないため、ここで検証済みの名前のみを
// SQLに埋め込む。未知のコレクションはエラーになる。
var collectionTables = map[model.Collection]string{
	model.CollectionHealthRecords: "health_records",
	model.CollectionAppointments:  "appointments",
	model.CollectionFamilyMembers: "family_members",
	model.CollectionWellnessTips:  "wellness_tips",
}

// PostgresDocumentRepo はPostgreSQLを使用したドキュメントリポジトリ。
type PostgresDocumentRepo struct {
	db *sql.DB
}

// NewPostgresDocumentRepo はPostgresDocumentRepoを生成する。
func NewPostgresDocumentRepo(db *sql.DB) *PostgresDocumentRepo {
	return &PostgresDocumentRepo{db: db}
}

// tableFor はコレクションに対応する検証済みテーブル名を返す。
func tableFor(collection model.Collection) (string, error) {
	table, ok := collectionTables[collection]
	if !ok {
		return "", fmt.Errorf("未知のコレクションです: %s", collection)
	}
	return table, nil
}

// ReplaceAll はコレクションの内容をdocsで全置換する（clear-then-insert）。
// DELETEとINSERTを単一トランザクションで実行するため、
// 同一コレクションへの置換が競合しても中間状態は観測されない。
func (r *PostgresDocumentRepo) ReplaceAll(ctx context.Context, collection model.Collection, docs []model.Document) error {
	table, err := tableFor(collection)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: トランザクションの開始に失敗しました: %w", model.ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
		return fmt.Errorf("%w: コレクション%sのクリアに失敗しました: %w", model.ErrStorageUnavailable, collection, err)
	}

	for _, doc := range docs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO `+table+` (id, payload, updated_at) VALUES ($1, $2, now())
			 ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()`,
			doc.ID, []byte(doc.Payload),
		)
		if err != nil {
			return fmt.Errorf("%w: コレクション%sへの挿入に失敗しました: %w", model.ErrStorageUnavailable, collection, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: コレクション%sの全置換のコミットに失敗しました: %w", model.ErrStorageUnavailable, collection, err)
	}
	return nil
}

// Upsert は単一ドキュメントを主キーでUPSERTする。
func (r *PostgresDocumentRepo) Upsert(ctx context.Context, collection model.Collection, doc model.Document) error {
	table, err := tableFor(collection)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO `+table+` (id, payload, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()`,
		doc.ID, []byte(doc.Payload),
	)
	if err != nil {
		return fmt.Errorf("%w: ドキュメントのUPSERTに失敗しました: %w", model.ErrStorageUnavailable, err)
	}
	return nil
}

// GetAll はコレクションの全ドキュメントを挿入順で返す。
// コレクションが空の場合は空スライスを返す。
func (r *PostgresDocumentRepo) GetAll(ctx context.Context, collection model.Collection) ([]model.Document, error) {
	table, err := tableFor(collection)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, payload FROM `+table+` ORDER BY seq`,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: コレクション%sの取得に失敗しました: %w", model.ErrStorageUnavailable, collection, err)
	}
	defer rows.Close()

	docs := []model.Document{}
	for rows.Next() {
		var doc model.Document
		var payload []byte
		if err := rows.Scan(&doc.ID, &payload); err != nil {
			return nil, fmt.Errorf("%w: ドキュメントの読み取りに失敗しました: %w", model.ErrStorageUnavailable, err)
		}
		doc.Payload = payload
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: コレクション%sの走査に失敗しました: %w", model.ErrStorageUnavailable, collection, err)
	}

	return docs, nil
}

// FindByID は指定キーのドキュメントを取得する。見つからない場合はnilを返す。
func (r *PostgresDocumentRepo) FindByID(ctx context.Context, collection model.Collection, id string) (*model.Document, error) {
	table, err := tableFor(collection)
	if err != nil {
		return nil, err
	}

	doc := &model.Document{}
	var payload []byte

	err = r.db.QueryRowContext(ctx,
		`SELECT id, payload FROM `+table+` WHERE id = $1`,
		id,
	).Scan(&doc.ID, &payload)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: ドキュメントの取得に失敗しました: %w", model.ErrStorageUnavailable, err)
	}

	doc.Payload = payload
	return doc, nil
}

// Delete は指定キーのドキュメントを削除する。存在しない場合は何もしない。
func (r *PostgresDocumentRepo) Delete(ctx context.Context, collection model.Collection, id string) error {
	table, err := tableFor(collection)
	if err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = $1`, id); err != nil {
		return fmt.Errorf("%w: ドキュメントの削除に失敗しました: %w", model.ErrStorageUnavailable, err)
	}
	return nil
}

// ClearAll は全ドメインコレクションを空にする。
// 単一トランザクションで実行し、部分的なリセットを残さない。
func (r *PostgresDocumentRepo) ClearAll(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: トランザクションの開始に失敗しました: %w", model.ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	for _, collection := range model.DomainCollections {
		table, err := tableFor(collection)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("%w: コレクション%sのクリアに失敗しました: %w", model.ErrStorageUnavailable, collection, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: 全コレクションクリアのコミットに失敗しました: %w", model.ErrStorageUnavailable, err)
	}
	return nil
}
