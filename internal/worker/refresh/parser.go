package refresh

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	gofeedext "github.com/mmcdole/gofeed/extensions"

	"github.com/hitoshi/geofeed/internal/geo"
	"github.com/hitoshi/geofeed/internal/model"
)

// defaultItemTitle はタイトル欠落時のデフォルト値。
const defaultItemTitle = "Untitled"

// Parser はフィードの生データを正規化済みのParsedFeedに変換する。
// RSS 2.0とAtomに加え、GeoRSS・mediaの名前空間拡張を解釈する。
type Parser struct{}

// NewParser はParserの新しいインスタンスを生成する。
func NewParser() *Parser {
	return &Parser{}
}

// Parse はフィードの生データをパースして正規化する。
// XML不正・未対応フォーマットの場合はエラーを返す。
// 記事ごとの正規化規則:
//   - title: 欠落時は "Untitled"
//   - guid: guid → link → タイトルとフェッチ時刻から導出した合成値（空にならない）
//   - description: content:encoded → description/summary
//   - pubDate: 既知フォーマットをパースし、欠落・不正時は現在時刻
//   - image: 画像MIMEのenclosure → media:thumbnail → フィードのimageフィールド
//   - geo: georss:point または geo:lat / geo:long が両方有効なfloatのとき座標解決済み
func (p *Parser) Parse(data []byte) (*model.ParsedFeed, error) {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("フィードのパースに失敗しました: %w", err)
	}

	now := time.Now()
	feed := &model.ParsedFeed{
		Title: parsed.Title,
		Items: make([]model.ParsedItem, 0, len(parsed.Items)),
	}

	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		feed.Items = append(feed.Items, normalizeItem(item, now))
	}

	return feed, nil
}

// normalizeItem はgofeedの記事を正規化規則に従ってParsedItemに変換する。
func normalizeItem(item *gofeed.Item, fetchedAt time.Time) model.ParsedItem {
	parsed := model.ParsedItem{
		Title:      item.Title,
		Link:       item.Link,
		Content:    item.Content,
		Categories: item.Categories,
	}

	if parsed.Title == "" {
		parsed.Title = defaultItemTitle
	}

	// description: 全文（content:encoded）を優先し、スニペット/サマリーに
	// フォールバックする
	if item.Content != "" {
		parsed.Description = item.Content
	} else {
		parsed.Description = item.Description
	}

	// guid: 明示的なguid → link → 合成キー。空にはならない。
	switch {
	case item.GUID != "":
		parsed.GUID = item.GUID
	case item.Link != "":
		parsed.GUID = item.Link
	default:
		parsed.GUID = syntheticGUID(parsed.Title, fetchedAt)
	}

	// pubDate: パース済みの公開日時 → 更新日時 → フェッチ時刻
	switch {
	case item.PublishedParsed != nil:
		parsed.PublishedAt = *item.PublishedParsed
	case item.UpdatedParsed != nil:
		parsed.PublishedAt = *item.UpdatedParsed
	default:
		parsed.PublishedAt = fetchedAt
	}

	if item.Author != nil && item.Author.Name != "" {
		parsed.Author = item.Author.Name
	} else if len(item.Authors) > 0 && item.Authors[0] != nil {
		parsed.Author = item.Authors[0].Name
	}

	parsed.ImageURL = extractImageURL(item)

	if lat, lon, ok := extractGeoTag(item.Extensions); ok {
		parsed.Latitude = &lat
		parsed.Longitude = &lon
	}

	return parsed
}

// syntheticGUID はタイトルとフェッチ時刻から合成GUIDを導出する。
// guidもlinkも持たない記事のための最終フォールバック。
func syntheticGUID(title string, fetchedAt time.Time) string {
	data := fmt.Sprintf("%s|%s", title, fetchedAt.UTC().Format(time.RFC3339Nano))
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("synthetic:%x", hash)
}

// extractImageURL は記事の画像URLを優先順に解決する。
// 画像MIMEタイプのenclosure → media:thumbnail → 記事のimageフィールド。
func extractImageURL(item *gofeed.Item) string {
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL
		}
	}

	if media, ok := item.Extensions["media"]; ok {
		for _, thumb := range media["thumbnail"] {
			if url := thumb.Attrs["url"]; url != "" {
				return url
			}
		}
	}

	if item.Image != nil {
		return item.Image.URL
	}

	return ""
}

// extractGeoTag はフィード埋め込みのジオタグを解決する。
// georss:point（スペース区切りの緯度・経度）を優先し、
// geo:lat / geo:long の個別フィールドにフォールバックする。
// 両方の値が有効範囲内のfloatとして解決できた場合のみtrueを返す。
func extractGeoTag(exts gofeedext.Extensions) (lat, lon float64, ok bool) {
	if georss, found := exts["georss"]; found {
		for _, point := range georss["point"] {
			fields := strings.Fields(point.Value)
			if len(fields) != 2 {
				continue
			}
			lat, latErr := strconv.ParseFloat(fields[0], 64)
			lon, lonErr := strconv.ParseFloat(fields[1], 64)
			if latErr == nil && lonErr == nil && geo.ValidCoordinates(lat, lon) {
				return lat, lon, true
			}
		}
	}

	if geoExt, found := exts["geo"]; found {
		latVal := firstExtensionValue(geoExt["lat"])
		lonVal := firstExtensionValue(geoExt["long"])
		if latVal == "" || lonVal == "" {
			return 0, 0, false
		}
		lat, latErr := strconv.ParseFloat(latVal, 64)
		lon, lonErr := strconv.ParseFloat(lonVal, 64)
		if latErr == nil && lonErr == nil && geo.ValidCoordinates(lat, lon) {
			return lat, lon, true
		}
	}

	return 0, 0, false
}

// firstExtensionValue は拡張要素列の先頭の値を返す。
func firstExtensionValue(exts []gofeedext.Extension) string {
	if len(exts) == 0 {
		return ""
	}
	return strings.TrimSpace(exts[0].Value)
}
