package geo

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/time/rate"
)

// geocoderUserAgent はジオコーディングサービスに送る識別用User-Agent。
// 公開ジオコーディングサービスの利用規約により、フィード取得とは別の
// 識別可能なUser-Agentが要求される。
const geocoderUserAgent = "Geofeed-Geocoder/1.0 (+https://github.com/hitoshi/geofeed)"

// Metrics はジオコーダーが記録するメトリクスのインターフェース。
type Metrics interface {
	RecordGeocodeRequest()
	RecordGeocodeFailure()
	RecordGeocodeCacheHit()
	RecordGeocodeCacheMiss()
}

// nopMetrics はメトリクス未設定時のno-op実装。
type nopMetrics struct{}

func (nopMetrics) RecordGeocodeRequest()   {}
func (nopMetrics) RecordGeocodeFailure()   {}
func (nopMetrics) RecordGeocodeCacheHit()  {}
func (nopMetrics) RecordGeocodeCacheMiss() {}

// Geocoder は地名を座標に解決する。
// キャッシュ優先で外部ジオコーディングサービス（Nominatim互換の
// place-searchエンドポイント）を呼び出す。外部呼び出しはレートリミッターで
// 制限される（公開サービスの利用規約対応）。
type Geocoder struct {
	httpClient *http.Client
	cache      *Cache
	limiter    *rate.Limiter
	logger     *slog.Logger
	metrics    Metrics
	endpoint   string
}

// GeocoderOption はGeocoderの任意設定を適用する。
type GeocoderOption func(*Geocoder)

// WithMetrics はメトリクスコレクターを設定する。
func WithMetrics(m Metrics) GeocoderOption {
	return func(g *Geocoder) {
		g.metrics = m
	}
}

// NewGeocoder はGeocoderの新しいインスタンスを生成する。
// httpClientにはタイムアウト設定済みのクライアントを渡すこと（既定は5秒）。
// ratePerSecは外部サービスへの毎秒リクエスト数の上限。
func NewGeocoder(
	httpClient *http.Client,
	cache *Cache,
	endpoint string,
	ratePerSec float64,
	logger *slog.Logger,
	opts ...GeocoderOption,
) *Geocoder {
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	g := &Geocoder{
		httpClient: httpClient,
		cache:      cache,
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), 1),
		logger:     logger,
		metrics:    nopMetrics{},
		endpoint:   endpoint,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// nominatimResult はplace-search APIのレスポンス要素。
type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode は地名を座標に解決する。キャッシュを先に引き、ミス時のみ
// 外部サービスを呼び出す（最良一致の1件のみ）。
// 解決できない場合（タイムアウト、マッチなし、サービス障害）はnilを返す。
// エラーは呼び出し元に伝播させず、ログに記録して「今回はジオコーディング
// できなかった」として扱う。
func (g *Geocoder) Geocode(ctx context.Context, place string) *Result {
	if place == "" {
		return nil
	}

	if cached, ok := g.cache.Get(place); ok {
		g.metrics.RecordGeocodeCacheHit()
		return &cached
	}
	g.metrics.RecordGeocodeCacheMiss()

	if err := g.limiter.Wait(ctx); err != nil {
		g.logger.Warn("ジオコーディングのレート待機が中断されました",
			slog.String("place", place),
			slog.String("error", err.Error()),
		)
		return nil
	}

	result := g.lookup(ctx, place)
	if result == nil {
		g.metrics.RecordGeocodeFailure()
		return nil
	}

	g.cache.Put(place, *result)
	return result
}

// lookup は外部ジオコーディングサービスに問い合わせる。
func (g *Geocoder) lookup(ctx context.Context, place string) *Result {
	g.metrics.RecordGeocodeRequest()

	reqURL, err := url.Parse(g.endpoint)
	if err != nil {
		g.logger.Error("ジオコーディングエンドポイントのパースに失敗しました",
			slog.String("endpoint", g.endpoint),
			slog.String("error", err.Error()),
		)
		return nil
	}

	q := reqURL.Query()
	q.Set("q", place)
	q.Set("format", "json")
	q.Set("limit", "1")
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		g.logger.Error("ジオコーディングリクエストの作成に失敗しました",
			slog.String("place", place),
			slog.String("error", err.Error()),
		)
		return nil
	}
	req.Header.Set("User-Agent", geocoderUserAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.Warn("ジオコーディングサービスの呼び出しに失敗しました",
			slog.String("place", place),
			slog.String("error", err.Error()),
		)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		g.logger.Warn("ジオコーディングサービスがエラーステータスを返しました",
			slog.String("place", place),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		g.logger.Warn("ジオコーディングレスポンスの読み取りに失敗しました",
			slog.String("place", place),
			slog.String("error", err.Error()),
		)
		return nil
	}

	var results []nominatimResult
	if err := json.Unmarshal(body, &results); err != nil {
		g.logger.Warn("ジオコーディングレスポンスのパースに失敗しました",
			slog.String("place", place),
			slog.String("error", err.Error()),
		)
		return nil
	}

	if len(results) == 0 {
		g.logger.Info("地名に一致するジオコーディング結果がありません",
			slog.String("place", place),
		)
		return nil
	}

	lat, latErr := strconv.ParseFloat(results[0].Lat, 64)
	lon, lonErr := strconv.ParseFloat(results[0].Lon, 64)
	if latErr != nil || lonErr != nil {
		g.logger.Warn("ジオコーディング結果の座標が不正です",
			slog.String("place", place),
			slog.String("lat", results[0].Lat),
			slog.String("lon", results[0].Lon),
		)
		return nil
	}

	return &Result{
		Latitude:    lat,
		Longitude:   lon,
		DisplayName: results[0].DisplayName,
	}
}
