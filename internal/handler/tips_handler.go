package handler

import (
	"context"
	"net/http"

	"github.com/misaki/caresync/internal/model"
)

// TipsServiceInterface はTipsハンドラーが必要とするサービスインターフェース。
// tips.Serviceが実装する。
type TipsServiceInterface interface {
	// List はウェルネスTipsの一覧を読み取りポリシー付きで返す。
	List(ctx context.Context) (*model.ReadResult, error)
}

// TipsHandler はウェルネスTipsのHTTPハンドラー。読み取り専用。
type TipsHandler struct {
	service TipsServiceInterface
}

// NewTipsHandler はTipsHandlerを生成する。
func NewTipsHandler(service TipsServiceInterface) *TipsHandler {
	return &TipsHandler{service: service}
}

// List はウェルネスTipsの一覧を取得する。
// GET /api/wellness-tips
func (h *TipsHandler) List(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeReadResult(w, result)
}
