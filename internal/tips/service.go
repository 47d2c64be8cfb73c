// Package tips はウェルネスTipsの同期と提供を行う。
// 他のエンティティと異なり、リモートソースはJSON APIではなく
// RSS/AtomフィードであるためgofeedでパースしてJSONペイロードへ
// 正規化してからオーケストレータの読み取りポリシーに乗せる。
package tips

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"github.com/misaki/caresync/internal/metrics"
	"github.com/misaki/caresync/internal/model"
	"github.com/misaki/caresync/internal/offline"
	"github.com/misaki/caresync/internal/repository"
	"github.com/misaki/caresync/internal/security"
)

// tipNamespace は代理キー導出用のUUID名前空間。
// フィードGUIDからuuid.NewSHA1で決定的にIDを生成するため、
// 同一Tipの再同期は常に同一キーへの置換になる（冪等）。
var tipNamespace = uuid.MustParse("8f1a96b4-52cb-5a8e-9f02-6f1d3c5e7a90")

// maxSummaryRunes はプレーンテキスト要約の最大文字数。
const maxSummaryRunes = 200

// SyncOrchestrator は読み取りポリシーのインターフェース。
// offline.Orchestratorが実装する。
type SyncOrchestrator interface {
	Read(ctx context.Context, key string, call offline.RemoteCall, maxAge time.Duration) (*model.ReadResult, error)
}

// Service はウェルネスTipsのドメインリポジトリ。
type Service struct {
	orch       SyncOrchestrator
	store      repository.DocumentRepository
	sanitizer  security.TipSanitizerService
	httpClient *http.Client
	parser     *gofeed.Parser
	collector  metrics.MetricsCollector
	logger     *slog.Logger
	feedURL    string
	maxBody    int64
}

// NewService はServiceを生成する。
// feedURLが空の場合、Listは常にローカルフォールバックのみを返す。
func NewService(
	orch SyncOrchestrator,
	store repository.DocumentRepository,
	sanitizer security.TipSanitizerService,
	guard security.SSRFGuardService,
	feedURL string,
	timeout time.Duration,
	maxBody int64,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	return &Service{
		orch:       orch,
		store:      store,
		sanitizer:  sanitizer,
		httpClient: guard.NewSafeClient(timeout, maxBody),
		parser:     gofeed.NewParser(),
		collector:  collector,
		logger:     logger,
		feedURL:    feedURL,
		maxBody:    maxBody,
	}
}

// List はウェルネスTipsの一覧を読み取りポリシー付きで返す。
// フレッシュに取得できた場合はwellness_tipsコレクションを全置換する。
// 他の一覧と同様、エラーは返さず空状態まで縮退する。
func (s *Service) List(ctx context.Context) (*model.ReadResult, error) {
	if s.feedURL == "" {
		return s.listFromStore(ctx), nil
	}

	key := model.CacheKey(http.MethodGet, "/wellness-tips")

	result, err := s.orch.Read(ctx, key, func(callCtx context.Context) (json.RawMessage, error) {
		return s.fetchFeed(callCtx)
	}, 0)

	if err == nil {
		if result.Source == model.SourceFresh {
			s.syncCollection(ctx, result.Payload)
		}
		return result, nil
	}

	if !errors.Is(err, model.ErrNoCachedData) {
		s.logger.Warn("Tips一覧の読み取りに失敗したため専用コレクションへフォールバックします",
			slog.String("error", err.Error()),
		)
	}
	return s.listFromStore(ctx), nil
}

// Refresh はバックグラウンドワーカーから呼ばれる再同期エントリポイント。
// 結果は破棄し、キャッシュとコレクションの更新のみを目的とする。
func (s *Service) Refresh(ctx context.Context) error {
	if s.feedURL == "" {
		return nil
	}
	_, err := s.List(ctx)
	return err
}

// fetchFeed はSSRFガード付きクライアントでフィードを取得し、
// サニタイズ済みのTips列をJSONペイロードへ正規化する。
func (s *Service) fetchFeed(ctx context.Context) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "CareSync/1.0 Sync Gateway")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Tipsフィードの取得に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Tipsフィードがステータス %d を返しました", resp.StatusCode)
	}

	feed, err := s.parser.Parse(io.LimitReader(resp.Body, s.maxBody))
	if err != nil {
		return nil, fmt.Errorf("Tipsフィードのパースに失敗しました: %w", err)
	}

	tips := s.convertItems(feed.Items)
	payload, err := json.Marshal(tips)
	if err != nil {
		return nil, fmt.Errorf("TipsのJSONエンコードに失敗しました: %w", err)
	}
	return payload, nil
}

// convertItems はフィードアイテムをサニタイズ済みのTips列へ変換する。
// 公開日時の降順に整列する。
func (s *Service) convertItems(items []*gofeed.Item) []model.WellnessTip {
	tips := make([]model.WellnessTip, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}

		guid := item.GUID
		if guid == "" {
			guid = item.Link
		}
		if guid == "" {
			continue
		}

		content := item.Content
		if content == "" {
			content = item.Description
		}
		sanitized := s.sanitizer.Sanitize(content)

		publishedAt := time.Time{}
		if item.PublishedParsed != nil {
			publishedAt = *item.PublishedParsed
		}

		tips = append(tips, model.WellnessTip{
			ID:          uuid.NewSHA1(tipNamespace, []byte(guid)).String(),
			Title:       item.Title,
			Summary:     Summarize(sanitized, maxSummaryRunes),
			Content:     sanitized,
			Link:        item.Link,
			PublishedAt: publishedAt,
		})
	}

	sort.SliceStable(tips, func(i, j int) bool {
		return tips[i].PublishedAt.After(tips[j].PublishedAt)
	})
	return tips
}

// syncCollection はフレッシュなTips列をwellness_tipsコレクションへ反映する。
func (s *Service) syncCollection(ctx context.Context, payload json.RawMessage) {
	var items []json.RawMessage
	if err := json.Unmarshal(payload, &items); err != nil {
		return
	}

	docs := make([]model.Document, 0, len(items))
	for _, item := range items {
		id := model.ExtractDocumentID(item)
		if id == "" {
			continue
		}
		docs = append(docs, model.Document{ID: id, Payload: item})
	}

	if err := s.store.ReplaceAll(ctx, model.CollectionWellnessTips, docs); err != nil {
		s.logger.Warn("wellness_tipsコレクションの全置換に失敗しました",
			slog.String("error", err.Error()),
		)
		return
	}
	s.collector.RecordCollectionReplaced(string(model.CollectionWellnessTips), len(docs))
}

// listFromStore はwellness_tipsコレクションから一覧を組み立てる。
func (s *Service) listFromStore(ctx context.Context) *model.ReadResult {
	docs, err := s.store.GetAll(ctx, model.CollectionWellnessTips)
	if err != nil {
		s.logger.Warn("wellness_tipsコレクションの読み取りに失敗しました",
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

	items := make([]json.RawMessage, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.Payload)
	}
	payload, err := json.Marshal(items)
	if err != nil {
		payload = json.RawMessage("[]")
	}

	return &model.ReadResult{
		Payload: payload,
		Source:  model.SourceCache,
	}
}
