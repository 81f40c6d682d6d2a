// Package feed はフィード登録・管理のドメインロジックを提供する。
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/geofeed/internal/model"
	"github.com/hitoshi/geofeed/internal/repository"
	"github.com/hitoshi/geofeed/internal/worker/refresh"
)

// DefaultRefreshIntervalMinutes は新規フィードのデフォルト更新間隔（分）。
const DefaultRefreshIntervalMinutes = 60

// Fetcher はフィードURL検証用の取得インターフェース。
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// Parser はフィードURL検証用のパースインターフェース。
type Parser interface {
	Parse(data []byte) (*model.ParsedFeed, error)
}

// Refresher は手動更新のインターフェース。
type Refresher interface {
	RefreshFeed(ctx context.Context, feed *model.Feed) (int, error)
}

// UserRefresher はユーザー単位の一括手動更新のインターフェース。
type UserRefresher interface {
	RunAllForUser(ctx context.Context, userID string) (*refresh.Report, error)
}

// Service はフィード登録・管理のサービス層。
// 作成・更新時のURL検証（取得とパースの成功をもって有効なフィードとみなす）、
// 所有スコープの強制、手動更新の起点を担う。
type Service struct {
	feedRepo  repository.FeedRepository
	fetcher   Fetcher
	parser    Parser
	refresher Refresher
	scheduler UserRefresher
	logger    *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	feedRepo repository.FeedRepository,
	fetcher Fetcher,
	parser Parser,
	refresher Refresher,
	scheduler UserRefresher,
	logger *slog.Logger,
) *Service {
	return &Service{
		feedRepo:  feedRepo,
		fetcher:   fetcher,
		parser:    parser,
		refresher: refresher,
		scheduler: scheduler,
		logger:    logger,
	}
}

// CreateInput はフィード作成の入力を表す。
type CreateInput struct {
	URL                    string
	Name                   string
	Type                   model.FeedType
	Subtype                string
	RefreshIntervalMinutes int
	GeocodeEnabled         bool
}

// UpdateInput はフィード更新の入力を表す。nilのフィールドは変更しない。
type UpdateInput struct {
	URL                    *string
	Name                   *string
	Type                   *model.FeedType
	Subtype                *string
	Enabled                *bool
	RefreshIntervalMinutes *int
	GeocodeEnabled         *bool
}

// Create は新しいフィードを登録する。
// URLは実際に取得・パースできることを検証する。
// タイプが未定義、または更新間隔が下限未満の場合はエラーを返す。
func (s *Service) Create(ctx context.Context, userID string, input CreateInput) (*model.Feed, error) {
	if !model.IsValidFeedType(input.Type) {
		return nil, model.NewInvalidFeedTypeError(string(input.Type))
	}

	interval := input.RefreshIntervalMinutes
	if interval == 0 {
		interval = DefaultRefreshIntervalMinutes
	}
	if interval < model.MinRefreshIntervalMinutes {
		return nil, model.NewInvalidRefreshIntervalError(interval)
	}

	parsedFeed, err := s.validateFeedURL(ctx, input.URL)
	if err != nil {
		return nil, err
	}

	name := input.Name
	if name == "" {
		name = parsedFeed.Title
	}
	if name == "" {
		name = input.URL
	}

	now := time.Now()
	feed := &model.Feed{
		ID:                     uuid.New().String(),
		UserID:                 userID,
		URL:                    input.URL,
		Name:                   name,
		Type:                   input.Type,
		Subtype:                input.Subtype,
		Enabled:                true,
		RefreshIntervalMinutes: interval,
		GeocodeEnabled:         input.GeocodeEnabled,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	if err := s.feedRepo.Create(ctx, feed); err != nil {
		return nil, fmt.Errorf("フィードの保存に失敗しました: %w", err)
	}

	s.logger.Info("フィードを登録しました",
		slog.String("feed_id", feed.ID),
		slog.String("user_id", userID),
		slog.String("url", feed.URL),
		slog.String("type", string(feed.Type)),
	)

	return feed, nil
}

// Get は所有スコープ内のフィードを取得する。
// 存在しない場合はFEED_NOT_FOUND、他ユーザーの所有物の場合はFORBIDDENを返す。
func (s *Service) Get(ctx context.Context, userID, feedID string) (*model.Feed, error) {
	feed, err := s.feedRepo.FindByID(ctx, feedID)
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}
	if feed == nil {
		return nil, model.NewFeedNotFoundError(feedID)
	}
	if feed.UserID != userID {
		return nil, model.NewForbiddenError()
	}
	return feed, nil
}

// List はユーザーの全フィードを作成日時昇順で返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Feed, error) {
	feeds, err := s.feedRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("フィード一覧の取得に失敗しました: %w", err)
	}
	return feeds, nil
}

// Update はフィードのユーザー編集可能フィールドを更新する。
// URLが変更される場合は再度フィードとして検証する。
func (s *Service) Update(ctx context.Context, userID, feedID string, input UpdateInput) (*model.Feed, error) {
	feed, err := s.Get(ctx, userID, feedID)
	if err != nil {
		return nil, err
	}

	if input.Type != nil {
		if !model.IsValidFeedType(*input.Type) {
			return nil, model.NewInvalidFeedTypeError(string(*input.Type))
		}
		feed.Type = *input.Type
	}
	if input.RefreshIntervalMinutes != nil {
		if *input.RefreshIntervalMinutes < model.MinRefreshIntervalMinutes {
			return nil, model.NewInvalidRefreshIntervalError(*input.RefreshIntervalMinutes)
		}
		feed.RefreshIntervalMinutes = *input.RefreshIntervalMinutes
	}
	if input.URL != nil && *input.URL != feed.URL {
		if _, err := s.validateFeedURL(ctx, *input.URL); err != nil {
			return nil, err
		}
		feed.URL = *input.URL
	}
	if input.Name != nil {
		feed.Name = *input.Name
	}
	if input.Subtype != nil {
		feed.Subtype = *input.Subtype
	}
	if input.Enabled != nil {
		feed.Enabled = *input.Enabled
	}
	if input.GeocodeEnabled != nil {
		feed.GeocodeEnabled = *input.GeocodeEnabled
	}

	feed.UpdatedAt = time.Now()

	if err := s.feedRepo.Update(ctx, feed); err != nil {
		return nil, fmt.Errorf("フィードの更新に失敗しました: %w", err)
	}

	return feed, nil
}

// Delete はフィードを削除する。子の記事もCASCADE削除される。
func (s *Service) Delete(ctx context.Context, userID, feedID string) error {
	feed, err := s.Get(ctx, userID, feedID)
	if err != nil {
		return err
	}

	if err := s.feedRepo.Delete(ctx, feed.ID); err != nil {
		return fmt.Errorf("フィードの削除に失敗しました: %w", err)
	}

	s.logger.Info("フィードを削除しました",
		slog.String("feed_id", feed.ID),
		slog.String("user_id", userID),
	)

	return nil
}

// RefreshNow は1フィードの手動更新を実行し、新規記事数を返す。
// フィードごとの更新間隔は尊重しない。
func (s *Service) RefreshNow(ctx context.Context, userID, feedID string) (int, error) {
	feed, err := s.Get(ctx, userID, feedID)
	if err != nil {
		return 0, err
	}

	return s.refresher.RefreshFeed(ctx, feed)
}

// RefreshAll はユーザーの有効な全フィードの手動更新を実行する。
func (s *Service) RefreshAll(ctx context.Context, userID string) (*refresh.Report, error) {
	return s.scheduler.RunAllForUser(ctx, userID)
}

// validateFeedURL はURLが実際に取得・パース可能なフィードであることを検証する。
// 取得失敗はFETCH_FAILED、パース失敗はPARSE_FAILEDとして返す。
// SSRF検証などで既にAPIErrorが返されている場合はそのまま伝播する。
func (s *Service) validateFeedURL(ctx context.Context, rawURL string) (*model.ParsedFeed, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return nil, model.NewInvalidURLError(rawURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, model.NewInvalidURLError(fmt.Sprintf("未対応のスキーム: %s", parsed.Scheme))
	}

	data, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		return nil, model.NewFetchFailedError(err.Error())
	}

	parsedFeed, err := s.parser.Parse(data)
	if err != nil {
		return nil, model.NewParseFailedError(err.Error())
	}

	return parsedFeed, nil
}
