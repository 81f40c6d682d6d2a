// Package refresh はフィードの取得・解析・重複排除・位置情報付与を行う
// 更新パイプラインを提供する。スケジューラ、オーケストレーター、
// フェッチャー、パーサーを含む。
package refresh

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/geofeed/internal/model"
)

// fetcherUserAgent はフィード取得時に送る識別用User-Agent。
const fetcherUserAgent = "Geofeed/1.0 Feed Ingester (+https://github.com/hitoshi/geofeed)"

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxRedirects int) *http.Client
}

// Fetcher はフィードの生データをHTTPで取得する。
// 固定タイムアウト・リダイレクト上限・SSRF検証付き。この層ではリトライしない。
// リトライは次回の定期更新サイクルに委ねる。
type Fetcher struct {
	ssrfGuard    SSRFValidator
	logger       *slog.Logger
	timeout      time.Duration
	maxRedirects int
	maxBodySize  int64
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
func NewFetcher(
	ssrfGuard SSRFValidator,
	logger *slog.Logger,
	timeout time.Duration,
	maxRedirects int,
	maxBodySize int64,
) *Fetcher {
	return &Fetcher{
		ssrfGuard:    ssrfGuard,
		logger:       logger,
		timeout:      timeout,
		maxRedirects: maxRedirects,
		maxBodySize:  maxBodySize,
	}
}

// Fetch はフィードURLから生のボディを取得する。
// タイムアウト、非2xxステータス、リダイレクト超過、接続失敗はエラーとして返す。
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if err := f.ssrfGuard.ValidateURL(rawURL); err != nil {
		f.logger.Warn("URLの安全性検証に失敗しました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return nil, model.NewSSRFBlockedError()
	}

	client := f.ssrfGuard.NewSafeClient(f.timeout, f.maxRedirects)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", fetcherUserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("フィードがHTTPステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	return body, nil
}
