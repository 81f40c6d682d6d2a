package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/geofeed/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// サービス
	FeedService FeedServiceInterface
	ItemService ItemServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成した
// chi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → CORS → Logging → Principal → RateLimit
//
// ヘルスチェック（/health）はプリンシパル抽出の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	feedHandler := NewFeedHandler(deps.FeedService)
	itemHandler := NewItemHandler(deps.ItemService)

	// --- プリンシパル不要のルート ---

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// --- プリンシパルが必要なルート ---
	// ミドルウェアスタック: Principal → RateLimit
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewPrincipalMiddleware())
		r.Use(deps.RateLimiter.Middleware())

		// フィード管理
		r.Route("/api/feeds", func(r chi.Router) {
			r.Post("/", feedHandler.CreateFeed)
			r.Get("/", feedHandler.ListFeeds)
			r.Post("/refresh", feedHandler.RefreshAllFeeds)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", feedHandler.GetFeed)
				r.Patch("/", feedHandler.UpdateFeed)
				r.Delete("/", feedHandler.DeleteFeed)
				r.Post("/refresh", feedHandler.RefreshFeed)
			})
		})

		// 記事クエリ・状態管理
		r.Route("/api/items", func(r chi.Router) {
			r.Get("/", itemHandler.ListItems)
			r.Get("/map", itemHandler.ListMapItems)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", itemHandler.GetItem)
				r.Put("/read", itemHandler.MarkRead)
				r.Put("/star", itemHandler.ToggleStar)
				r.Delete("/", itemHandler.DeleteItem)
			})
		})

		// 統計
		r.Get("/api/stats", itemHandler.GetStats)
	})

	return r
}
