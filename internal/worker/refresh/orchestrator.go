package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/geofeed/internal/geo"
	"github.com/hitoshi/geofeed/internal/model"
	"github.com/hitoshi/geofeed/internal/repository"
	"github.com/hitoshi/geofeed/internal/security"
)

// FetcherService はフィード生データ取得のインターフェース。
type FetcherService interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// ParserService はフィード正規化のインターフェース。
type ParserService interface {
	Parse(data []byte) (*model.ParsedFeed, error)
}

// EnricherService は記事への位置情報付与のインターフェース。
type EnricherService interface {
	// Enrich は地名抽出とジオコーディングで座標を解決する。
	// 解決できない場合はnilを返す（エラーにしない）。
	Enrich(ctx context.Context, title, description string) *geo.Result
}

// Orchestrator は1フィードの更新サイクルを統括する。
// フェッチ → パース → 重複排除 → 位置情報付与 → 保存 → フィードメタデータ更新。
// フィード単位で失敗を隔離し、更新全体のトランザクションは張らない
// （途中で失敗・中断しても挿入済みの記事はコミットされたまま残る）。
type Orchestrator struct {
	fetcher   FetcherService
	parser    ParserService
	enricher  EnricherService
	sanitizer security.ContentSanitizerService
	feedRepo  repository.FeedRepository
	itemRepo  repository.ItemRepository
	logger    *slog.Logger
	metrics   Metrics
}

// NewOrchestrator はOrchestratorの新しいインスタンスを生成する。
// metricsがnilの場合はno-op実装を使用する。
func NewOrchestrator(
	fetcher FetcherService,
	parser ParserService,
	enricher EnricherService,
	sanitizer security.ContentSanitizerService,
	feedRepo repository.FeedRepository,
	itemRepo repository.ItemRepository,
	logger *slog.Logger,
	metrics Metrics,
) *Orchestrator {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Orchestrator{
		fetcher:   fetcher,
		parser:    parser,
		enricher:  enricher,
		sanitizer: sanitizer,
		feedRepo:  feedRepo,
		itemRepo:  itemRepo,
		logger:    logger,
		metrics:   metrics,
	}
}

// RefreshFeed は1フィードの更新サイクルを実行し、新規記事数を返す。
// フェッチ・パースの失敗はフィードのlast_errorに記録して呼び出し元へ伝播する
// （last_fetched_atは前回値を維持し、記事は1件も作成されない）。
// 記事単位のジオコーディング失敗は回復し、座標なしで保存する。
func (o *Orchestrator) RefreshFeed(ctx context.Context, feed *model.Feed) (int, error) {
	start := time.Now()

	data, err := o.fetcher.Fetch(ctx, feed.URL)
	if err != nil {
		o.recordFailure(ctx, feed, err)
		return 0, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}

	parsedFeed, err := o.parser.Parse(data)
	if err != nil {
		o.metrics.RecordParseFailure()
		o.recordFailure(ctx, feed, err)
		return 0, fmt.Errorf("フィードのパースに失敗しました: %w", err)
	}

	newItems := 0
	duplicates := 0

	for i := range parsedFeed.Items {
		// キャンセル時は途中で打ち切る。挿入済みの記事はそのまま残る。
		if err := ctx.Err(); err != nil {
			return newItems, err
		}

		inserted, err := o.processItem(ctx, feed, &parsedFeed.Items[i])
		if err != nil {
			o.recordFailure(ctx, feed, err)
			return newItems, err
		}
		if inserted {
			newItems++
		} else {
			duplicates++
		}
	}

	// フィードメタデータの更新: last_fetched_at設定、last_errorクリア、
	// item_count再集計
	now := time.Now()
	if err := o.feedRepo.UpdateRefreshState(ctx, feed.ID, &now, ""); err != nil {
		return newItems, fmt.Errorf("フィード更新状態の記録に失敗しました: %w", err)
	}
	feed.LastFetchedAt = &now
	feed.LastError = ""

	duration := time.Since(start)
	o.metrics.RecordRefreshSuccess()
	o.metrics.RecordItemsInserted(newItems)
	o.metrics.RecordDuplicatesSkipped(duplicates)
	o.metrics.RecordFetchLatency(duration)

	o.logger.Info("フィードの更新が完了しました",
		slog.String("feed_id", feed.ID),
		slog.String("feed_url", feed.URL),
		slog.Int("items_total", len(parsedFeed.Items)),
		slog.Int("items_new", newItems),
		slog.Int("items_duplicate", duplicates),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return newItems, nil
}

// processItem は1記事の重複排除・位置情報付与・保存を行う。
// 挿入された場合はtrue、GUID重複でスキップした場合はfalseを返す。
func (o *Orchestrator) processItem(ctx context.Context, feed *model.Feed, parsed *model.ParsedItem) (bool, error) {
	// 事前チェック: 既存GUIDはジオコーディングのコストをかけずにスキップする。
	// 最終的な裁定はストレージのUNIQUE制約（Insert側）が行う。
	exists, err := o.itemRepo.ExistsByGUID(ctx, parsed.GUID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	item := &model.Item{
		ID:          uuid.New().String(),
		FeedID:      feed.ID,
		Title:       parsed.Title,
		Description: o.sanitizer.Sanitize(parsed.Description),
		Link:        parsed.Link,
		PublishedAt: parsed.PublishedAt,
		GUID:        parsed.GUID,
		Author:      parsed.Author,
		Categories:  parsed.Categories,
		ImageURL:    parsed.ImageURL,
		Content:     o.sanitizer.Sanitize(parsed.Content),
		CreatedAt:   time.Now(),
	}

	if parsed.HasGeo() {
		// フィード埋め込みのジオタグが最優先。外部ジオコーディングは行わない。
		item.SetCoordinates(*parsed.Latitude, *parsed.Longitude, "")
	} else if feed.GeocodeEnabled {
		if result := o.enricher.Enrich(ctx, parsed.Title, parsed.Description); result != nil {
			item.SetCoordinates(result.Latitude, result.Longitude, result.DisplayName)
		}
	}

	return o.itemRepo.Insert(ctx, item)
}

// recordFailure はフィード全体の失敗をlast_errorに記録する。
// last_fetched_atは前回値を維持する。記録自体の失敗はログのみ。
func (o *Orchestrator) recordFailure(ctx context.Context, feed *model.Feed, cause error) {
	o.metrics.RecordRefreshFailure()
	feed.LastError = cause.Error()

	if err := o.feedRepo.UpdateRefreshState(ctx, feed.ID, nil, cause.Error()); err != nil {
		o.logger.Error("フィード失敗状態の記録に失敗しました",
			slog.String("feed_id", feed.ID),
			slog.String("error", err.Error()),
		)
	}
}
