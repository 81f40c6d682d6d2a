// Package model はドメインモデルを定義する。
package model

import "time"

const (
	// DefaultItemLimit は記事一覧のデフォルト取得件数。
	DefaultItemLimit = 50
	// MaxItemLimit は記事一覧の最大取得件数。
	MaxItemLimit = 100
	// DefaultMapItemLimit は地図表示用記事のデフォルト取得上限。
	DefaultMapItemLimit = 500
	// MaxMapItemLimit は地図表示用記事の最大取得上限。
	MaxMapItemLimit = 1000
)

// ItemQuery は記事一覧の複合フィルタ条件を表す。
// 所有スコープ（呼び出しユーザーの所有フィード）はサービス層でユーザーIDから
// 解決され、全てのフィルタ軸はそのスコープとの積集合として評価される。
type ItemQuery struct {
	FeedIDs  []string // 明示的なフィード絞り込み（所有スコープと積を取る）
	Types    []FeedType
	Subtypes []string

	Geocoded  *bool
	IsRead    *bool
	IsStarred *bool

	PublishedAfter  *time.Time
	PublishedBefore *time.Time

	TitleContains string

	Limit  int
	Offset int
}

// Normalize はページネーション値を有効範囲（limit 1〜100、offset ≥0）に丸める。
func (q *ItemQuery) Normalize() {
	if q.Limit <= 0 {
		q.Limit = DefaultItemLimit
	}
	if q.Limit > MaxItemLimit {
		q.Limit = MaxItemLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
}

// MapBounds は地図表示用の矩形範囲フィルタを表す。
type MapBounds struct {
	North float64
	South float64
	East  float64
	West  float64
}

// Contains は座標が矩形範囲内にあるかを判定する。
// 緯度は[South, North]、経度は[West, East]の単純比較で判定する。
func (b MapBounds) Contains(lat, lon float64) bool {
	return lat >= b.South && lat <= b.North && lon >= b.West && lon <= b.East
}

// MapItemQuery は地図表示用記事の取得条件を表す。
// オフセットページネーションの代わりに件数上限（Limit、デフォルト500）を用いる。
type MapItemQuery struct {
	FeedIDs []string
	Types   []FeedType

	Bounds *MapBounds

	// 半径検索: 中心座標と半径（km）。RadiusKm > 0 のとき有効。
	CenterLat float64
	CenterLon float64
	RadiusKm  float64

	Limit int
}

// Normalize は件数上限を有効範囲（1〜1000、デフォルト500）に丸める。
func (q *MapItemQuery) Normalize() {
	if q.Limit <= 0 {
		q.Limit = DefaultMapItemLimit
	}
	if q.Limit > MaxMapItemLimit {
		q.Limit = MaxMapItemLimit
	}
}

// Stats は呼び出し元スコープで集計したダッシュボード統計を表す。
type Stats struct {
	TotalFeeds    int
	TotalItems    int
	GeocodedItems int
	UnreadItems   int
}
