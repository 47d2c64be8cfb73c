package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/misaki/caresync/internal/model"
	"github.com/misaki/caresync/internal/upstream"
)

// apiErrorResponse はAPIエラーレスポンスのJSON構造。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
//
// 書き込み経路の失敗分類:
//   - オフライン拒否      → 503（再試行可能な一時エラーとしてUIへ）
//   - リモートの非2xx     → リモートのステータスをそのまま伝播
//   - ネットワーク失敗    → 502（オンライン判定だったが到達できなかった）
func handleServiceError(w http.ResponseWriter, err error) {
	// リモートサービスの非2xxはステータスをそのまま伝播する
	var statusErr *upstream.StatusError
	if errors.As(err, &statusErr) {
		writeAPIErrorResponse(w, statusErr.StatusCode, model.NewUpstreamFailedError(statusErr.Error()))
		return
	}

	switch {
	case errors.Is(err, model.ErrOfflineWriteRejected):
		writeAPIErrorResponse(w, http.StatusServiceUnavailable, model.NewOfflineWriteRejectedError())
	case errors.Is(err, model.ErrNotFoundOffline):
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewNotFoundOfflineError(""))
	case errors.Is(err, model.ErrStorageUnavailable):
		writeAPIErrorResponse(w, http.StatusServiceUnavailable, model.NewStorageUnavailableError())
	default:
		slog.Error("upstream call failed", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusBadGateway, model.NewUpstreamFailedError(err.Error()))
	}
}
