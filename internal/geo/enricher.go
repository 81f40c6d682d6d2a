package geo

import (
	"context"
	"log/slog"
)

// GeocoderService は地名解決のインターフェース。
// Enricherのテスト用にGeocoderを抽象化する。
type GeocoderService interface {
	// Geocode は地名を座標に解決する。解決できない場合はnilを返す。
	Geocode(ctx context.Context, place string) *Result
}

// Enricher は地名抽出とジオコーディングを組み合わせ、
// 座標未解決の記事に位置情報を付与する。
type Enricher struct {
	extractor *Extractor
	geocoder  GeocoderService
	logger    *slog.Logger
}

// NewEnricher はEnricherの新しいインスタンスを生成する。
func NewEnricher(extractor *Extractor, geocoder GeocoderService, logger *slog.Logger) *Enricher {
	return &Enricher{
		extractor: extractor,
		geocoder:  geocoder,
		logger:    logger,
	}
}

// Enrich はタイトル・説明文から地名を抽出し座標に解決する。
// 地名が抽出できない、またはジオコーディングに失敗した場合はnilを返す。
// いずれの失敗も呼び出し元にエラーとして伝播しない（記事は座標なしで保存される）。
func (e *Enricher) Enrich(ctx context.Context, title, description string) *Result {
	place := e.extractor.Extract(title, description)
	if place == "" {
		return nil
	}

	result := e.geocoder.Geocode(ctx, place)
	if result == nil {
		e.logger.Debug("地名のジオコーディングに失敗しました",
			slog.String("place", place),
		)
		return nil
	}

	return result
}
