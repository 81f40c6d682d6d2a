package feed

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/geofeed/internal/model"
	"github.com/hitoshi/geofeed/internal/worker/refresh"
)

// mockFeedRepo はFeedRepositoryのテスト用モック。
type mockFeedRepo struct {
	findByIDFunc func(ctx context.Context, id string) (*model.Feed, error)
	createFunc   func(ctx context.Context, feed *model.Feed) error
	updateFunc   func(ctx context.Context, feed *model.Feed) error
	deleteFunc   func(ctx context.Context, id string) error

	created []*model.Feed
	updated []*model.Feed
	deleted []string
}

func (m *mockFeedRepo) FindByID(ctx context.Context, id string) (*model.Feed, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockFeedRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Feed, error) {
	return nil, nil
}

func (m *mockFeedRepo) ListEnabled(ctx context.Context) ([]*model.Feed, error) { return nil, nil }

func (m *mockFeedRepo) ListEnabledByUserID(ctx context.Context, userID string) ([]*model.Feed, error) {
	return nil, nil
}

func (m *mockFeedRepo) ListIDsByUserID(ctx context.Context, userID string) ([]string, error) {
	return nil, nil
}

func (m *mockFeedRepo) ListIDsByTypes(ctx context.Context, userID string, types []model.FeedType, subtypes []string) ([]string, error) {
	return nil, nil
}

func (m *mockFeedRepo) Create(ctx context.Context, feed *model.Feed) error {
	m.created = append(m.created, feed)
	if m.createFunc != nil {
		return m.createFunc(ctx, feed)
	}
	return nil
}

func (m *mockFeedRepo) Update(ctx context.Context, feed *model.Feed) error {
	m.updated = append(m.updated, feed)
	if m.updateFunc != nil {
		return m.updateFunc(ctx, feed)
	}
	return nil
}

func (m *mockFeedRepo) UpdateRefreshState(ctx context.Context, feedID string, lastFetchedAt *time.Time, lastError string) error {
	return nil
}

func (m *mockFeedRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

// mockFetcher はFetcherのテスト用モック。
type mockFetcher struct {
	fetchFunc func(ctx context.Context, rawURL string) ([]byte, error)
	calls     int
}

func (m *mockFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	m.calls++
	if m.fetchFunc != nil {
		return m.fetchFunc(ctx, rawURL)
	}
	return []byte("<rss/>"), nil
}

// mockParser はParserのテスト用モック。
type mockParser struct {
	parseFunc func(data []byte) (*model.ParsedFeed, error)
}

func (m *mockParser) Parse(data []byte) (*model.ParsedFeed, error) {
	if m.parseFunc != nil {
		return m.parseFunc(data)
	}
	return &model.ParsedFeed{Title: "Parsed Title"}, nil
}

// mockRefresher はRefresherのテスト用モック。
type mockRefresher struct {
	refreshFunc func(ctx context.Context, feed *model.Feed) (int, error)
}

func (m *mockRefresher) RefreshFeed(ctx context.Context, feed *model.Feed) (int, error) {
	if m.refreshFunc != nil {
		return m.refreshFunc(ctx, feed)
	}
	return 0, nil
}

// mockUserRefresher はUserRefresherのテスト用モック。
type mockUserRefresher struct {
	runAllFunc func(ctx context.Context, userID string) (*refresh.Report, error)
}

func (m *mockUserRefresher) RunAllForUser(ctx context.Context, userID string) (*refresh.Report, error) {
	if m.runAllFunc != nil {
		return m.runAllFunc(ctx, userID)
	}
	return &refresh.Report{}, nil
}

func newTestService(repo *mockFeedRepo, fetcher *mockFetcher, parser *mockParser) *Service {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	return NewService(repo, fetcher, parser, &mockRefresher{}, &mockUserRefresher{}, logger)
}

func assertAPIErrorCode(t *testing.T, err error, wantCode string) {
	t.Helper()
	if err == nil {
		t.Fatalf("エラー %s が返るべき", wantCode)
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("APIErrorが返るべき: got %T: %v", err, err)
	}
	if apiErr.Code != wantCode {
		t.Errorf("Code = %q, want %q", apiErr.Code, wantCode)
	}
}

func TestService_Create(t *testing.T) {
	repo := &mockFeedRepo{}
	s := newTestService(repo, &mockFetcher{}, &mockParser{})

	feed, err := s.Create(context.Background(), "user-1", CreateInput{
		URL:  "https://example.com/feed.xml",
		Name: "My Feed",
		Type: model.FeedTypeDisaster,
	})
	if err != nil {
		t.Fatalf("Create() がエラーを返した: %v", err)
	}

	if feed.ID == "" {
		t.Error("IDが採番されるべき")
	}
	if feed.UserID != "user-1" {
		t.Errorf("UserID = %q, want user-1", feed.UserID)
	}
	if !feed.Enabled {
		t.Error("新規フィードは有効で作成されるべき")
	}
	if feed.RefreshIntervalMinutes != DefaultRefreshIntervalMinutes {
		t.Errorf("更新間隔 = %d, want デフォルト %d", feed.RefreshIntervalMinutes, DefaultRefreshIntervalMinutes)
	}
	if len(repo.created) != 1 {
		t.Error("リポジトリに保存されるべき")
	}
}

func TestService_Create_NameFallsBackToFeedTitle(t *testing.T) {
	s := newTestService(&mockFeedRepo{}, &mockFetcher{}, &mockParser{})

	feed, err := s.Create(context.Background(), "user-1", CreateInput{
		URL:  "https://example.com/feed.xml",
		Type: model.FeedTypeNews,
	})
	if err != nil {
		t.Fatalf("Create() がエラーを返した: %v", err)
	}

	if feed.Name != "Parsed Title" {
		t.Errorf("Name = %q, 名前未指定時はフィードタイトルを使うべき", feed.Name)
	}
}

func TestService_Create_InvalidType(t *testing.T) {
	fetcher := &mockFetcher{}
	s := newTestService(&mockFeedRepo{}, fetcher, &mockParser{})

	_, err := s.Create(context.Background(), "user-1", CreateInput{
		URL:  "https://example.com/feed.xml",
		Type: model.FeedType("bogus"),
	})
	assertAPIErrorCode(t, err, model.ErrCodeInvalidFeedType)

	if fetcher.calls != 0 {
		t.Error("タイプ検証はURL検証より先に行うべき")
	}
}

func TestService_Create_IntervalBelowMinimum(t *testing.T) {
	s := newTestService(&mockFeedRepo{}, &mockFetcher{}, &mockParser{})

	_, err := s.Create(context.Background(), "user-1", CreateInput{
		URL:                    "https://example.com/feed.xml",
		Type:                   model.FeedTypeNews,
		RefreshIntervalMinutes: 3,
	})
	assertAPIErrorCode(t, err, model.ErrCodeInvalidRefreshInterval)
}

func TestService_Create_InvalidURLShape(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"ホストなし", "not-a-url"},
		{"未対応スキーム", "ftp://example.com/feed.xml"},
		{"空文字列", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &mockFetcher{}
			s := newTestService(&mockFeedRepo{}, fetcher, &mockParser{})

			_, err := s.Create(context.Background(), "user-1", CreateInput{
				URL:  tt.url,
				Type: model.FeedTypeNews,
			})
			assertAPIErrorCode(t, err, model.ErrCodeInvalidURL)

			if fetcher.calls != 0 {
				t.Error("形式不正のURLはフェッチを試行すべきでない")
			}
		})
	}
}

func TestService_Create_FetchFailure(t *testing.T) {
	fetcher := &mockFetcher{
		fetchFunc: func(ctx context.Context, rawURL string) ([]byte, error) {
			return nil, errors.New("connection refused")
		},
	}
	repo := &mockFeedRepo{}
	s := newTestService(repo, fetcher, &mockParser{})

	_, err := s.Create(context.Background(), "user-1", CreateInput{
		URL:  "https://example.com/feed.xml",
		Type: model.FeedTypeNews,
	})
	assertAPIErrorCode(t, err, model.ErrCodeFetchFailed)

	if len(repo.created) != 0 {
		t.Error("検証失敗時はフィードを作成すべきでない")
	}
}

func TestService_Create_SSRFBlockedPropagates(t *testing.T) {
	fetcher := &mockFetcher{
		fetchFunc: func(ctx context.Context, rawURL string) ([]byte, error) {
			return nil, model.NewSSRFBlockedError()
		},
	}
	s := newTestService(&mockFeedRepo{}, fetcher, &mockParser{})

	_, err := s.Create(context.Background(), "user-1", CreateInput{
		URL:  "http://169.254.169.254/feed.xml",
		Type: model.FeedTypeNews,
	})
	assertAPIErrorCode(t, err, model.ErrCodeSSRFBlocked)
}

func TestService_Create_ParseFailure(t *testing.T) {
	parser := &mockParser{
		parseFunc: func(data []byte) (*model.ParsedFeed, error) {
			return nil, errors.New("not a feed")
		},
	}
	s := newTestService(&mockFeedRepo{}, &mockFetcher{}, parser)

	_, err := s.Create(context.Background(), "user-1", CreateInput{
		URL:  "https://example.com/page.html",
		Type: model.FeedTypeNews,
	})
	assertAPIErrorCode(t, err, model.ErrCodeParseFailed)
}

func TestService_Get_NotFound(t *testing.T) {
	s := newTestService(&mockFeedRepo{}, &mockFetcher{}, &mockParser{})

	_, err := s.Get(context.Background(), "user-1", "missing")
	assertAPIErrorCode(t, err, model.ErrCodeFeedNotFound)
}

func TestService_Get_ForbiddenForOtherUser(t *testing.T) {
	repo := &mockFeedRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Feed, error) {
			return &model.Feed{ID: id, UserID: "other-user"}, nil
		},
	}
	s := newTestService(repo, &mockFetcher{}, &mockParser{})

	_, err := s.Get(context.Background(), "user-1", "feed-1")
	assertAPIErrorCode(t, err, model.ErrCodeForbidden)
}

func TestService_Update_RevalidatesChangedURL(t *testing.T) {
	repo := &mockFeedRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Feed, error) {
			return &model.Feed{ID: id, UserID: "user-1", URL: "https://example.com/old.xml"}, nil
		},
	}
	fetcher := &mockFetcher{}
	s := newTestService(repo, fetcher, &mockParser{})

	newURL := "https://example.com/new.xml"
	feed, err := s.Update(context.Background(), "user-1", "feed-1", UpdateInput{URL: &newURL})
	if err != nil {
		t.Fatalf("Update() がエラーを返した: %v", err)
	}

	if feed.URL != newURL {
		t.Errorf("URL = %q, want %q", feed.URL, newURL)
	}
	if fetcher.calls != 1 {
		t.Errorf("URL変更時は再検証されるべき: fetch呼び出し = %d", fetcher.calls)
	}
}

func TestService_Update_SameURLSkipsValidation(t *testing.T) {
	sameURL := "https://example.com/feed.xml"
	repo := &mockFeedRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Feed, error) {
			return &model.Feed{ID: id, UserID: "user-1", URL: sameURL}, nil
		},
	}
	fetcher := &mockFetcher{}
	s := newTestService(repo, fetcher, &mockParser{})

	if _, err := s.Update(context.Background(), "user-1", "feed-1", UpdateInput{URL: &sameURL}); err != nil {
		t.Fatalf("Update() がエラーを返した: %v", err)
	}
	if fetcher.calls != 0 {
		t.Error("同一URLへの更新は再検証すべきでない")
	}
}

func TestService_Update_InvalidInterval(t *testing.T) {
	repo := &mockFeedRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Feed, error) {
			return &model.Feed{ID: id, UserID: "user-1"}, nil
		},
	}
	s := newTestService(repo, &mockFetcher{}, &mockParser{})

	interval := 2
	_, err := s.Update(context.Background(), "user-1", "feed-1", UpdateInput{
		RefreshIntervalMinutes: &interval,
	})
	assertAPIErrorCode(t, err, model.ErrCodeInvalidRefreshInterval)
}

func TestService_Update_PartialFields(t *testing.T) {
	repo := &mockFeedRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Feed, error) {
			return &model.Feed{
				ID: id, UserID: "user-1", Name: "old name",
				URL: "https://example.com/feed.xml", Enabled: true,
			}, nil
		},
	}
	s := newTestService(repo, &mockFetcher{}, &mockParser{})

	enabled := false
	feed, err := s.Update(context.Background(), "user-1", "feed-1", UpdateInput{Enabled: &enabled})
	if err != nil {
		t.Fatalf("Update() がエラーを返した: %v", err)
	}

	if feed.Enabled {
		t.Error("Enabledが更新されるべき")
	}
	if feed.Name != "old name" {
		t.Error("未指定のフィールドは変更すべきでない")
	}
}

func TestService_Delete(t *testing.T) {
	repo := &mockFeedRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Feed, error) {
			return &model.Feed{ID: id, UserID: "user-1"}, nil
		},
	}
	s := newTestService(repo, &mockFetcher{}, &mockParser{})

	if err := s.Delete(context.Background(), "user-1", "feed-1"); err != nil {
		t.Fatalf("Delete() がエラーを返した: %v", err)
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != "feed-1" {
		t.Errorf("削除されたID = %v, want [feed-1]", repo.deleted)
	}
}

func TestService_RefreshNow(t *testing.T) {
	repo := &mockFeedRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Feed, error) {
			return &model.Feed{ID: id, UserID: "user-1"}, nil
		},
	}
	refresher := &mockRefresher{
		refreshFunc: func(ctx context.Context, feed *model.Feed) (int, error) {
			return 7, nil
		},
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	s := NewService(repo, &mockFetcher{}, &mockParser{}, refresher, &mockUserRefresher{}, logger)

	newItems, err := s.RefreshNow(context.Background(), "user-1", "feed-1")
	if err != nil {
		t.Fatalf("RefreshNow() がエラーを返した: %v", err)
	}
	if newItems != 7 {
		t.Errorf("新規記事数 = %d, want 7", newItems)
	}
}

func TestService_RefreshNow_ScopeEnforced(t *testing.T) {
	repo := &mockFeedRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Feed, error) {
			return &model.Feed{ID: id, UserID: "other-user"}, nil
		},
	}
	s := newTestService(repo, &mockFetcher{}, &mockParser{})

	_, err := s.RefreshNow(context.Background(), "user-1", "feed-1")
	assertAPIErrorCode(t, err, model.ErrCodeForbidden)
}

func TestService_RefreshAll(t *testing.T) {
	scheduler := &mockUserRefresher{
		runAllFunc: func(ctx context.Context, userID string) (*refresh.Report, error) {
			return &refresh.Report{Succeeded: 3, NewItems: 12}, nil
		},
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	s := NewService(&mockFeedRepo{}, &mockFetcher{}, &mockParser{}, &mockRefresher{}, scheduler, logger)

	report, err := s.RefreshAll(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("RefreshAll() がエラーを返した: %v", err)
	}
	if report.Succeeded != 3 || report.NewItems != 12 {
		t.Errorf("レポート = %+v", report)
	}
}
