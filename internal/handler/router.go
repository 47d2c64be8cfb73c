package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/misaki/caresync/internal/connectivity"
	"github.com/misaki/caresync/internal/metrics"
	"github.com/misaki/caresync/internal/middleware"
	"github.com/misaki/caresync/internal/repository"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// エンティティサービス
	RecordsService       EntityServiceInterface
	AppointmentsService  EntityServiceInterface
	FamilyMembersService EntityServiceInterface

	// ウェルネスTips
	TipsService TipsServiceInterface

	// 接続状態
	Monitor *connectivity.Monitor

	// 管理系・ヘルスチェック
	Store     repository.DocumentRepository
	CacheRepo repository.CacheRepository
	DB        HealthChecker

	// メトリクス
	Gatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging →（/api配下）Token → RequireToken → RateLimit(General)
//
// /health と /metrics は認証・レート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	recordsHandler := NewEntityHandler(deps.RecordsService)
	appointmentsHandler := NewEntityHandler(deps.AppointmentsService)
	familyHandler := NewEntityHandler(deps.FamilyMembersService)
	tipsHandler := NewTipsHandler(deps.TipsService)
	connHandler := NewConnectivityHandler(deps.Monitor)
	adminHandler := NewAdminHandler(deps.Store, deps.CacheRepo, deps.Logger)
	healthHandler := NewHealthHandler(deps.DB)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))

	// --- トークンが必要なルート ---
	// ミドルウェアスタック: Token → RequireToken → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewTokenMiddleware())
		r.Use(middleware.NewRequireTokenMiddleware())
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// エンティティCRUD（書き込みには専用レート制限を追加）
		mountEntity := func(pattern string, h *EntityHandler) {
			r.Route(pattern, func(r chi.Router) {
				r.Get("/", h.List)
				r.With(deps.RateLimiter.WriteMiddleware()).Post("/", h.Create)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.Get)
					r.With(deps.RateLimiter.WriteMiddleware()).Put("/", h.Update)
					r.With(deps.RateLimiter.WriteMiddleware()).Delete("/", h.Delete)
				})
			})
		}
		mountEntity("/api/records", recordsHandler)
		mountEntity("/api/appointments", appointmentsHandler)
		mountEntity("/api/family-members", familyHandler)

		// ウェルネスTips（読み取り専用）
		r.Get("/api/wellness-tips", tipsHandler.List)

		// 接続状態
		r.Route("/api/connectivity", func(r chi.Router) {
			r.Get("/", connHandler.Get)
			r.Post("/events", connHandler.PostEvent)
		})

		// リセット（ログアウト経路）
		r.With(deps.RateLimiter.WriteMiddleware()).Post("/api/reset", adminHandler.Reset)
	})

	return r
}
