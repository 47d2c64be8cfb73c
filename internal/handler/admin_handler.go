package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/misaki/caresync/internal/model"
	"github.com/misaki/caresync/internal/repository"
)

// AdminHandler はリセット等の管理系HTTPハンドラー。
type AdminHandler struct {
	store     repository.DocumentRepository
	cacheRepo repository.CacheRepository
	logger    *slog.Logger
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(store repository.DocumentRepository, cacheRepo repository.CacheRepository, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		store:     store,
		cacheRepo: cacheRepo,
		logger:    logger,
	}
}

// Reset はローカルに保持している全データを消去する。
// POST /api/reset
//
// ログアウト等のユーザー操作で呼ばれる明示的なリセット経路。
// ドメインコレクションとAPIキャッシュの両方を空にする。
// リモートサービス側のデータには一切触れない。
func (h *AdminHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.store.ClearAll(r.Context()); err != nil {
		h.logger.Error("ドメインコレクションのリセットに失敗しました",
			slog.String("error", err.Error()),
		)
		writeAPIErrorResponse(w, http.StatusServiceUnavailable, model.NewStorageUnavailableError())
		return
	}

	if err := h.cacheRepo.DeleteAll(r.Context()); err != nil {
		h.logger.Error("APIキャッシュのリセットに失敗しました",
			slog.String("error", err.Error()),
		)
		writeAPIErrorResponse(w, http.StatusServiceUnavailable, model.NewStorageUnavailableError())
		return
	}

	h.logger.Info("ローカルデータをリセットしました")
	w.WriteHeader(http.StatusNoContent)
}

// HealthChecker はヘルスチェックに必要なインターフェース。
// *sql.DB を受け付けることができる。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// HealthHandler はヘルスチェックのHTTPハンドラー。
type HealthHandler struct {
	db HealthChecker
}

// NewHealthHandler はHealthHandlerを生成する。
func NewHealthHandler(db HealthChecker) *HealthHandler {
	return &HealthHandler{db: db}
}

// Health はストアの疎通を確認して状態を返す。
// GET /health
//
// リモートサービスの到達性は確認しない。ゲートウェイは
// オフラインでも健全に動作するため、ヘルス判定はストアのみで行う。
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
