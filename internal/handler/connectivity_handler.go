package handler

import (
	"encoding/json"
	"net/http"

	"github.com/misaki/caresync/internal/connectivity"
	"github.com/misaki/caresync/internal/model"
)

// ConnectivityHandler は接続状態の照会と更新のHTTPハンドラー。
//
// ゲートウェイ自身はネットワーク到達性を推定しない。接続状態は
// UI（OSのネットワークイベントを観測できる側）から通知される
// 外部入力であり、このハンドラーがその受け口になる。
type ConnectivityHandler struct {
	monitor *connectivity.Monitor
}

// NewConnectivityHandler はConnectivityHandlerを生成する。
func NewConnectivityHandler(monitor *connectivity.Monitor) *ConnectivityHandler {
	return &ConnectivityHandler{monitor: monitor}
}

// connectivityResponse は接続状態のレスポンス。
type connectivityResponse struct {
	Online bool `json:"online"`
}

// connectivityEventRequest は接続イベント通知のリクエストボディ。
type connectivityEventRequest struct {
	State string `json:"state"` // "online" または "offline"
}

// Get は現在の接続状態を返す。
// GET /api/connectivity
func (h *ConnectivityHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, connectivityResponse{Online: h.monitor.Online()})
}

// PostEvent は接続状態の変化を受け付ける。
// POST /api/connectivity/events
func (h *ConnectivityHandler) PostEvent(w http.ResponseWriter, r *http.Request) {
	var req connectivityEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディが不正なJSONです"))
		return
	}

	switch req.State {
	case "online":
		h.monitor.SetOnline()
	case "offline":
		h.monitor.SetOffline()
	default:
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("stateはonlineまたはofflineを指定してください"))
		return
	}

	writeJSON(w, http.StatusOK, connectivityResponse{Online: h.monitor.Online()})
}
