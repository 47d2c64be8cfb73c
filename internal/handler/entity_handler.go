package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/misaki/caresync/internal/middleware"
	"github.com/misaki/caresync/internal/model"
)

// maxRequestBodyBytes は書き込みリクエストボディの最大サイズ。
const maxRequestBodyBytes = 1 << 20 // 1MB

// EntityServiceInterface はエンティティハンドラーが必要とするサービスインターフェース。
// entity.Serviceが実装する。
type EntityServiceInterface interface {
	// List はエンティティの一覧を読み取りポリシー付きで返す。
	List(ctx context.Context, token string) (*model.ReadResult, error)
	// Get は単一エンティティを読み取りポリシー付きで返す。
	Get(ctx context.Context, token, id string) (*model.ReadResult, error)
	// Create は新規作成をリモートサービスへ委譲する。
	Create(ctx context.Context, token string, payload json.RawMessage) (json.RawMessage, error)
	// Update は更新をリモートサービスへ委譲する。
	Update(ctx context.Context, token, id string, payload json.RawMessage) (json.RawMessage, error)
	// Delete は削除をリモートサービスへ委譲する。
	Delete(ctx context.Context, token, id string) (json.RawMessage, error)
}

// EntityHandler はエンティティCRUDのHTTPハンドラー。
// 健康記録・予約・家族メンバーで共有し、ルーティング側で
// エンティティごとのサービスに束ねる。
type EntityHandler struct {
	service EntityServiceInterface
}

// NewEntityHandler はEntityHandlerを生成する。
func NewEntityHandler(service EntityServiceInterface) *EntityHandler {
	return &EntityHandler{service: service}
}

// List はエンティティの一覧を取得する。
// GET /api/{entity}
func (h *EntityHandler) List(w http.ResponseWriter, r *http.Request) {
	token := middleware.TokenFromContext(r.Context())

	result, err := h.service.List(r.Context(), token)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeReadResult(w, result)
}

// Get は単一エンティティを取得する。
// GET /api/{entity}/{id}
func (h *EntityHandler) Get(w http.ResponseWriter, r *http.Request) {
	token := middleware.TokenFromContext(r.Context())
	id := chi.URLParam(r, "id")

	result, err := h.service.Get(r.Context(), token, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFoundOffline) {
			writeAPIErrorResponse(w, http.StatusNotFound, model.NewNotFoundOfflineError(id))
			return
		}
		handleServiceError(w, err)
		return
	}

	writeReadResult(w, result)
}

// Create は新規エンティティを作成する。
// POST /api/{entity}
func (h *EntityHandler) Create(w http.ResponseWriter, r *http.Request) {
	token := middleware.TokenFromContext(r.Context())

	payload, ok := readJSONBody(w, r)
	if !ok {
		return
	}

	resp, err := h.service.Create(r.Context(), token, payload)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// Update は既存エンティティを更新する。
// PUT /api/{entity}/{id}
func (h *EntityHandler) Update(w http.ResponseWriter, r *http.Request) {
	token := middleware.TokenFromContext(r.Context())
	id := chi.URLParam(r, "id")

	payload, ok := readJSONBody(w, r)
	if !ok {
		return
	}

	resp, err := h.service.Update(r.Context(), token, id, payload)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Delete は既存エンティティを削除する。
// DELETE /api/{entity}/{id}
func (h *EntityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	token := middleware.TokenFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if _, err := h.service.Delete(r.Context(), token, id); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// readJSONBody はリクエストボディを読み取り、JSONとして妥当か検証する。
// 不正な場合は400レスポンスを書き込みfalseを返す。
func readJSONBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディを読み取れません"))
		return nil, false
	}
	if !json.Valid(body) {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディが不正なJSONです"))
		return nil, false
	}
	return json.RawMessage(body), true
}
