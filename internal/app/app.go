// Package app はアプリケーションの起動とワイヤリングを提供する。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/geofeed/internal/config"
	"github.com/hitoshi/geofeed/internal/database"
	"github.com/hitoshi/geofeed/internal/feed"
	"github.com/hitoshi/geofeed/internal/geo"
	"github.com/hitoshi/geofeed/internal/handler"
	"github.com/hitoshi/geofeed/internal/item"
	"github.com/hitoshi/geofeed/internal/logger"
	"github.com/hitoshi/geofeed/internal/metrics"
	"github.com/hitoshi/geofeed/internal/middleware"
	"github.com/hitoshi/geofeed/internal/repository"
	"github.com/hitoshi/geofeed/internal/security"
	"github.com/hitoshi/geofeed/internal/worker/refresh"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

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

// pipeline は更新パイプラインの構成済みコンポーネント一式。
// serve（手動更新）とworker（定期更新）の両方で同じワイヤリングを使う。
type pipeline struct {
	orchestrator *refresh.Orchestrator
	scheduler    *refresh.Scheduler
	fetcher      *refresh.Fetcher
	parser       *refresh.Parser
}

// buildPipeline は更新パイプラインの依存関係をワイヤリングする。
// collectorがnilの場合、メトリクスは記録されない。
func buildPipeline(cfg *config.Config, db *sql.DB, collector *metrics.Collector) *pipeline {
	feedRepo := repository.NewPostgresFeedRepo(db)
	itemRepo := repository.NewPostgresItemRepo(db)

	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	fetcher := refresh.NewFetcher(
		ssrfGuard, slog.Default(),
		cfg.FetchTimeout, cfg.FetchMaxRedirects, cfg.FetchMaxSize,
	)
	parser := refresh.NewParser()

	geocodeCache := geo.NewCache(cfg.GeocodeCacheSize)
	geocoderOpts := []geo.GeocoderOption{}
	if collector != nil {
		geocoderOpts = append(geocoderOpts, geo.WithMetrics(collector))
	}
	geocoder := geo.NewGeocoder(
		&http.Client{Timeout: cfg.GeocodeTimeout},
		geocodeCache,
		cfg.GeocodeEndpoint,
		cfg.GeocodeRatePerSec,
		slog.Default(),
		geocoderOpts...,
	)
	enricher := geo.NewEnricher(geo.NewExtractor(), geocoder, slog.Default())

	var refreshMetrics refresh.Metrics
	if collector != nil {
		refreshMetrics = collector
	}
	orchestrator := refresh.NewOrchestrator(
		fetcher, parser, enricher, sanitizer,
		feedRepo, itemRepo,
		slog.Default(), refreshMetrics,
	)

	scheduler := refresh.NewScheduler(
		orchestrator, feedRepo, slog.Default(), cfg.RefreshMaxConcurrent,
	)

	return &pipeline{
		orchestrator: orchestrator,
		scheduler:    scheduler,
		fetcher:      fetcher,
		parser:       parser,
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリとパイプラインの初期化
	feedRepo := repository.NewPostgresFeedRepo(db)
	itemRepo := repository.NewPostgresItemRepo(db)
	pipe := buildPipeline(cfg, db, nil)

	// 3. ドメインサービスの初期化
	feedService := feed.NewService(
		feedRepo, pipe.fetcher, pipe.parser,
		pipe.orchestrator, pipe.scheduler, slog.Default(),
	)
	itemService := item.NewService(itemRepo, feedRepo)

	// 4. ルーターの構築
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.RequestsPerMinute = cfg.RateLimitGeneral
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),
		FeedService:       feedService,
		ItemService:       itemService,
	})

	// 5. HTTPサーバーの起動
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
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker は定期更新ワーカーモードで起動する。
// DB接続を開き、更新スケジューラとメトリクスエンドポイントを起動する。
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

	// 2. メトリクスとパイプラインの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)
	pipe := buildPipeline(cfg, db, collector)

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

	// 3. メトリクスエンドポイントをバックグラウンドで起動
	metricsServer := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: metrics.SetupMetricsRoute(registry),
	}
	go func() {
		slog.Info("metrics endpoint starting",
			slog.String("addr", metricsServer.Addr),
		)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()
	defer metricsServer.Close()

	slog.Info("worker starting",
		slog.Duration("refresh_interval", cfg.RefreshInterval),
		slog.Int("max_concurrent", cfg.RefreshMaxConcurrent),
	)

	// 4. 更新スケジューラをメインgoroutineで実行（ブロッキング）
	pipe.scheduler.Start(ctx, cfg.RefreshInterval)

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
