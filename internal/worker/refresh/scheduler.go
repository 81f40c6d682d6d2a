package refresh

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/geofeed/internal/model"
	"github.com/hitoshi/geofeed/internal/repository"
)

// defaultMaxConcurrent は同時に更新するフィード数のデフォルト上限。
const defaultMaxConcurrent = 6

// RefresherService は1フィードの更新サイクルのインターフェース。
type RefresherService interface {
	RefreshFeed(ctx context.Context, feed *model.Feed) (int, error)
}

// FeedError は更新サイクル中のフィード単位の失敗を表す。
type FeedError struct {
	FeedID string
	Err    error
}

// Report は1回の更新サイクルの集計結果。
type Report struct {
	Succeeded int
	Failed    int
	Skipped   int
	NewItems  int
	Errors    []FeedError
}

// Scheduler は有効な全フィードの定期更新を統括する。
// セマフォで同時実行数を制限し、フィード単位の失敗はレポートに集計して
// サイクル全体を止めない。
type Scheduler struct {
	refresher     RefresherService
	feedRepo      repository.FeedRepository
	logger        *slog.Logger
	maxConcurrent int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrentが0以下の場合はデフォルト値を使用する。
func NewScheduler(
	refresher RefresherService,
	feedRepo repository.FeedRepository,
	logger *slog.Logger,
	maxConcurrent int,
) *Scheduler {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	return &Scheduler{
		refresher:     refresher,
		feedRepo:      feedRepo,
		logger:        logger,
		maxConcurrent: maxConcurrent,
	}
}

// Start は定期更新ループを開始する。起動直後に1回実行し、
// 以降はintervalごとに実行する。ctxのキャンセルで停止する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	s.logger.Info("定期更新スケジューラを開始します",
		slog.String("interval", interval.String()),
		slog.Int("max_concurrent", s.maxConcurrent),
	)

	s.runCycle(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("定期更新スケジューラを停止します")
			return
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// runCycle は1回の定期更新サイクルを実行してレポートをログに記録する。
func (s *Scheduler) runCycle(ctx context.Context) {
	report, err := s.RunAll(ctx)
	if err != nil {
		s.logger.Error("定期更新サイクルに失敗しました",
			slog.String("error", err.Error()),
		)
		return
	}

	s.logger.Info("定期更新サイクルが完了しました",
		slog.Int("succeeded", report.Succeeded),
		slog.Int("failed", report.Failed),
		slog.Int("skipped", report.Skipped),
		slog.Int("new_items", report.NewItems),
	)
}

// RunAll は有効な全フィードを対象に更新サイクルを実行する。
// フィードごとの更新間隔を尊重し、前回取得からrefresh_interval_minutes
// 未満のフィードはスキップする。フィード一覧の取得失敗のみがエラーになる。
func (s *Scheduler) RunAll(ctx context.Context) (*Report, error) {
	feeds, err := s.feedRepo.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	due := make([]*model.Feed, 0, len(feeds))
	skipped := 0
	for _, feed := range feeds {
		if isDue(feed, now) {
			due = append(due, feed)
		} else {
			skipped++
		}
	}

	report := s.refreshAll(ctx, due)
	report.Skipped = skipped
	return report, nil
}

// RunAllForUser は指定ユーザーの有効な全フィードを即座に更新する。
// 手動更新のため、フィードごとの更新間隔は尊重しない。
func (s *Scheduler) RunAllForUser(ctx context.Context, userID string) (*Report, error) {
	feeds, err := s.feedRepo.ListEnabledByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.refreshAll(ctx, feeds), nil
}

// refreshAll はフィード群をセマフォ制限つきで並行更新し、結果を集計する。
func (s *Scheduler) refreshAll(ctx context.Context, feeds []*model.Feed) *Report {
	report := &Report{}
	if len(feeds) == 0 {
		return report
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, s.maxConcurrent)
	)

	for _, feed := range feeds {
		wg.Add(1)
		go func(feed *model.Feed) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			newItems, err := s.refresher.RefreshFeed(ctx, feed)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				report.Errors = append(report.Errors, FeedError{FeedID: feed.ID, Err: err})
				s.logger.Warn("フィードの更新に失敗しました",
					slog.String("feed_id", feed.ID),
					slog.String("feed_url", feed.URL),
					slog.String("error", err.Error()),
				)
				return
			}
			report.Succeeded++
			report.NewItems += newItems
		}(feed)
	}

	wg.Wait()
	return report
}

// isDue はフィードが更新対象かどうかを判定する。
// 未取得のフィードは常に対象。前回取得からrefresh_interval_minutes
// 以上経過していれば対象。
func isDue(feed *model.Feed, now time.Time) bool {
	if feed.LastFetchedAt == nil {
		return true
	}
	interval := time.Duration(feed.RefreshIntervalMinutes) * time.Minute
	return now.Sub(*feed.LastFetchedAt) >= interval
}
