// Package entity はドメインリポジトリのパターンを提供する。
// エンティティ（健康記録・予約・家族メンバー）ごとにインスタンス化され、
// オーケストレータの読み書きポリシーを再利用しつつ、専用コレクションに
// 「最後に取得した一覧」を非正規化して保持する。これにより汎用の
// エンドポイントキャッシュとは独立した、構造を保ったオフライン読み取り
// 経路がもう1つ確保される。
package entity

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/misaki/caresync/internal/metrics"
	"github.com/misaki/caresync/internal/model"
	"github.com/misaki/caresync/internal/offline"
	"github.com/misaki/caresync/internal/repository"
)

// SyncOrchestrator は読み書きポリシーのインターフェース。
// offline.Orchestratorが実装する。
type SyncOrchestrator interface {
	Read(ctx context.Context, key string, call offline.RemoteCall, maxAge time.Duration) (*model.ReadResult, error)
	Write(ctx context.Context, call offline.RemoteCall) (json.RawMessage, error)
}

// RemoteAPI はリモートサービス呼び出しのインターフェース。
// upstream.Clientが実装する。
type RemoteAPI interface {
	Get(ctx context.Context, path, token string) (json.RawMessage, error)
	Post(ctx context.Context, path, token string, body json.RawMessage) (json.RawMessage, error)
	Put(ctx context.Context, path, token string, body json.RawMessage) (json.RawMessage, error)
	Delete(ctx context.Context, path, token string) (json.RawMessage, error)
}

// Definition はエンティティとコレクション・エンドポイントの対応を表す。
type Definition struct {
	Collection model.Collection
	Endpoint   string // 例: "/records"
}

// 定義済みエンティティ。
var (
	// Records は健康記録。
	Records = Definition{Collection: model.CollectionHealthRecords, Endpoint: "/records"}
	// Appointments は予約（通院予定）。
	Appointments = Definition{Collection: model.CollectionAppointments, Endpoint: "/appointments"}
	// FamilyMembers は家族メンバー。
	FamilyMembers = Definition{Collection: model.CollectionFamilyMembers, Endpoint: "/family-members"}
)

// Service はエンティティ単位のドメインリポジトリ。
type Service struct {
	def       Definition
	orch      SyncOrchestrator
	store     repository.DocumentRepository
	remote    RemoteAPI
	collector metrics.MetricsCollector
	logger    *slog.Logger
}

// NewService はServiceを生成する。
func NewService(
	def Definition,
	orch SyncOrchestrator,
	store repository.DocumentRepository,
	remote RemoteAPI,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	return &Service{
		def:       def,
		orch:      orch,
		store:     store,
		remote:    remote,
		collector: collector,
		logger:    logger,
	}
}

// Definition はこのサービスのエンティティ定義を返す。
func (s *Service) Definition() Definition {
	return s.def
}

// List はエンティティの一覧を読み取りポリシー付きで返す。
//
// フレッシュな一覧が取得できた場合は専用コレクションを全置換する
// （一覧レスポンスを完全なスナップショットとして扱う）。
// キャッシュも利用できない場合は専用コレクションへフォールバックし、
// エラーは返さない。一覧ビューは空状態であっても常に描画できる。
func (s *Service) List(ctx context.Context, token string) (*model.ReadResult, error) {
	key := model.CacheKey(http.MethodGet, s.def.Endpoint)

	result, err := s.orch.Read(ctx, key, func(callCtx context.Context) (json.RawMessage, error) {
		return s.remote.Get(callCtx, s.def.Endpoint, token)
	}, 0)

	if err == nil {
		if result.Source == model.SourceFresh {
			s.syncCollection(ctx, result.Payload)
		}
		return result, nil
	}

	// キャッシュ不在・期限切れ・ストレージ障害のいずれでも一覧は
	// エラーにせず、専用コレクション（または空）へ縮退する。
	if !errors.Is(err, model.ErrNoCachedData) {
		s.logger.Warn("一覧の読み取りに失敗したため専用コレクションへフォールバックします",
			slog.String("collection", string(s.def.Collection)),
			slog.String("error", err.Error()),
		)
	}
	return s.listFromStore(ctx), nil
}

// syncCollection はフレッシュな一覧レスポンスを専用コレクションへ反映する。
// レスポンスが配列でない場合は何もしない。反映の失敗は読み取り結果を
// 損なわないため、ログのみに記録する。
func (s *Service) syncCollection(ctx context.Context, payload json.RawMessage) {
	docs, ok := decodeDocuments(payload)
	if !ok {
		return
	}

	if err := s.store.ReplaceAll(ctx, s.def.Collection, docs); err != nil {
		s.logger.Warn("専用コレクションの全置換に失敗しました",
			slog.String("collection", string(s.def.Collection)),
			slog.String("error", err.Error()),
		)
		return
	}
	s.collector.RecordCollectionReplaced(string(s.def.Collection), len(docs))
}

// listFromStore は専用コレクションから一覧を組み立てる。
// ストアも空（または利用不可）の場合は未同期の空一覧を返す。
func (s *Service) listFromStore(ctx context.Context) *model.ReadResult {
	docs, err := s.store.GetAll(ctx, s.def.Collection)
	if err != nil {
		s.logger.Warn("専用コレクションの読み取りに失敗しました",
			slog.String("collection", string(s.def.Collection)),
			slog.String("error", err.Error()),
		)
		docs = nil
	}

	if len(docs) == 0 {
		return &model.ReadResult{
			Payload: json.RawMessage("[]"),
			Source:  model.SourceNeverSynced,
		}
	}

	return &model.ReadResult{
		Payload: encodeDocuments(docs),
		Source:  model.SourceCache,
	}
}

// Get は単一エンティティを読み取りポリシー付きで返す。
// キャッシュにもストアにも存在しない場合はErrNotFoundOfflineを返す。
// 一覧と異なり、単一エンティティの未検出はUIへ表面化する。
func (s *Service) Get(ctx context.Context, token, id string) (*model.ReadResult, error) {
	path := s.def.Endpoint + "/" + id
	key := model.CacheKey(http.MethodGet, path)

	result, err := s.orch.Read(ctx, key, func(callCtx context.Context) (json.RawMessage, error) {
		return s.remote.Get(callCtx, path, token)
	}, 0)

	if err == nil {
		if result.Source == model.SourceFresh {
			// 単一取得の結果もストアへ反映し、次回のオフライン読み取りに備える
			if docID := model.ExtractDocumentID(result.Payload); docID != "" {
				if upErr := s.store.Upsert(ctx, s.def.Collection, model.Document{ID: docID, Payload: result.Payload}); upErr != nil {
					s.logger.Warn("ドキュメントのUPSERTに失敗しました",
						slog.String("collection", string(s.def.Collection)),
						slog.String("id", docID),
						slog.String("error", upErr.Error()),
					)
				}
			}
		}
		return result, nil
	}

	doc, storeErr := s.store.FindByID(ctx, s.def.Collection, id)
	if storeErr != nil {
		s.logger.Warn("ドキュメントの取得に失敗しました",
			slog.String("collection", string(s.def.Collection)),
			slog.String("id", id),
			slog.String("error", storeErr.Error()),
		)
	}
	if doc == nil {
		return nil, model.ErrNotFoundOffline
	}

	return &model.ReadResult{
		Payload: doc.Payload,
		Source:  model.SourceCache,
	}, nil
}

// Create は新規エンティティの作成をリモートサービスへ委譲する。
// 書き込みゲートのみを通り、ストアには一切触れない。
// 次回のList呼び出しがストアを再同期する。
func (s *Service) Create(ctx context.Context, token string, payload json.RawMessage) (json.RawMessage, error) {
	return s.orch.Write(ctx, func(callCtx context.Context) (json.RawMessage, error) {
		return s.remote.Post(callCtx, s.def.Endpoint, token, payload)
	})
}

// Update は既存エンティティの更新をリモートサービスへ委譲する。
func (s *Service) Update(ctx context.Context, token, id string, payload json.RawMessage) (json.RawMessage, error) {
	return s.orch.Write(ctx, func(callCtx context.Context) (json.RawMessage, error) {
		return s.remote.Put(callCtx, s.def.Endpoint+"/"+id, token, payload)
	})
}

// Delete は既存エンティティの削除をリモートサービスへ委譲する。
func (s *Service) Delete(ctx context.Context, token, id string) (json.RawMessage, error) {
	return s.orch.Write(ctx, func(callCtx context.Context) (json.RawMessage, error) {
		return s.remote.Delete(callCtx, s.def.Endpoint+"/"+id, token)
	})
}

// decodeDocuments はJSON配列をドキュメント列にデコードする。
// 配列でない場合はfalseを返す。主キーを持たない要素はスキップする。
func decodeDocuments(payload json.RawMessage) ([]model.Document, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, false
	}

	docs := make([]model.Document, 0, len(items))
	for _, item := range items {
		id := model.ExtractDocumentID(item)
		if id == "" {
			continue
		}
		docs = append(docs, model.Document{ID: id, Payload: item})
	}
	return docs, true
}

// encodeDocuments はドキュメント列をJSON配列に組み立てる。
func encodeDocuments(docs []model.Document) json.RawMessage {
	items := make([]json.RawMessage, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.Payload)
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return json.RawMessage("[]")
	}
	return payload
}
