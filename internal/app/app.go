// Package app はアプリケーションの起動とワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/misaki/caresync/internal/config"
	"github.com/misaki/caresync/internal/connectivity"
	"github.com/misaki/caresync/internal/database"
	"github.com/misaki/caresync/internal/entity"
	"github.com/misaki/caresync/internal/handler"
	"github.com/misaki/caresync/internal/logger"
	"github.com/misaki/caresync/internal/metrics"
	"github.com/misaki/caresync/internal/middleware"
	"github.com/misaki/caresync/internal/offline"
	"github.com/misaki/caresync/internal/repository"
	"github.com/misaki/caresync/internal/security"
	"github.com/misaki/caresync/internal/tips"
	"github.com/misaki/caresync/internal/upstream"
	"github.com/misaki/caresync/internal/worker/refresh"
	"github.com/misaki/caresync/internal/worker/sweep"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, "info")

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再セットアップ
	logger.SetupDefault(w, cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("upstream_base_url", cfg.UpstreamBaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はゲートウェイサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// Tips再同期とキャッシュスイープもこのプロセス内のバックグラウンドで動かす
// （接続状態はHTTP経由で通知されるため、同一プロセスの方が一貫する）。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続（ローカルストア）
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	docRepo := repository.NewPostgresDocumentRepo(db)
	cacheRepo := repository.NewPostgresCacheRepo(db)

	// 3. セキュリティサービスの初期化と外向きURLの検証
	ssrfGuard := security.NewSSRFGuard()
	if err := ssrfGuard.ValidateURL(cfg.UpstreamBaseURL); err != nil {
		return fmt.Errorf("UPSTREAM_BASE_URL validation failed: %w", err)
	}
	if cfg.TipsFeedURL != "" {
		if err := ssrfGuard.ValidateURL(cfg.TipsFeedURL); err != nil {
			return fmt.Errorf("TIPS_FEED_URL validation failed: %w", err)
		}
	}
	sanitizer := security.NewTipSanitizer()

	// 4. メトリクスと接続状態の初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 起動時はオンラインとみなす。実状はUIからの通知で上書きされる。
	monitor := connectivity.NewMonitor(true, slog.Default())

	// 5. オーケストレータとリモートクライアントの初期化
	orch := offline.NewOrchestrator(cacheRepo, monitor, collector, slog.Default(), offline.Config{
		Timeout:       cfg.SyncTimeout,
		DefaultMaxAge: cfg.CacheMaxAge,
	})
	remote := upstream.NewClient(
		ssrfGuard, cfg.UpstreamBaseURL, cfg.SyncTimeout, cfg.UpstreamMaxBody,
		slog.Default(), collector,
	)

	// 6. ドメインサービスの初期化
	recordsService := entity.NewService(entity.Records, orch, docRepo, remote, collector, slog.Default())
	appointmentsService := entity.NewService(entity.Appointments, orch, docRepo, remote, collector, slog.Default())
	familyService := entity.NewService(entity.FamilyMembers, orch, docRepo, remote, collector, slog.Default())

	tipsService := tips.NewService(
		orch, docRepo, sanitizer, ssrfGuard,
		cfg.TipsFeedURL, cfg.SyncTimeout, cfg.UpstreamMaxBody,
		collector, slog.Default(),
	)

	// 7. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitWrite),
	)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),

		RecordsService:       recordsService,
		AppointmentsService:  appointmentsService,
		FamilyMembersService: familyService,

		TipsService: tipsService,

		Monitor: monitor,

		Store:     docRepo,
		CacheRepo: cacheRepo,
		DB:        db,

		Gatherer: registry,
	}

	router := handler.NewRouter(deps)

	// 8. バックグラウンドジョブの起動
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	sweepJob := sweep.NewSweepJob(cacheRepo, cfg.CacheMaxAge, slog.Default())
	go sweepJob.Start(bgCtx, cfg.SweepInterval)

	if cfg.TipsFeedURL != "" {
		refreshScheduler := refresh.NewScheduler(tipsService, monitor, slog.Default())
		go refreshScheduler.Start(bgCtx, cfg.TipsRefreshInterval)
	}

	// 9. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("gateway server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down gateway server...")
	bgCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("gateway server stopped gracefully")
	return nil
}

// runWorker はメンテナンスワーカーモードで起動する。
// キャッシュスイープジョブのみを実行する（削除は冪等なので、
// serveプロセス内のスイープと並走しても問題ない）。
// サーバーを起動せずにストアの掃除だけを行いたい運用向け。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. スイープジョブの初期化
	cacheRepo := repository.NewPostgresCacheRepo(db)
	sweepJob := sweep.NewSweepJob(cacheRepo, cfg.CacheMaxAge, slog.Default())

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("sweep_interval", cfg.SweepInterval),
	)

	// 起動直後に1回実行
	if err := sweepJob.Run(ctx); err != nil {
		slog.Error("sweep job failed", slog.String("error", err.Error()))
	}

	// スイープジョブをメインgoroutineで実行（ブロッキング）
	sweepJob.Start(ctx, cfg.SweepInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
