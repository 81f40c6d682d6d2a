// Package model はドメインモデルを定義する。
package model

import "time"

// Item はフィードから取得した記事を表す。
// GUIDは全記事空間でグローバルに一意であり、重複排除の唯一のキーとなる。
type Item struct {
	ID           string
	FeedID       string
	Title        string
	Description  string // サニタイズ済み
	Link         string
	PublishedAt  time.Time
	GUID         string
	Author       string
	Categories   []string
	ImageURL     string
	Content      string // サニタイズ済みHTML
	Latitude     *float64
	Longitude    *float64
	LocationName string
	Geocoded     bool
	IsRead       bool
	IsStarred    bool
	CreatedAt    time.Time
}

// SetCoordinates は座標を設定しgeocodedフラグを立てる。
// 不変条件 geocoded == (Latitude != nil && Longitude != nil) を保つため、
// 座標の設定は必ずこのメソッドを経由する。
func (i *Item) SetCoordinates(lat, lon float64, locationName string) {
	i.Latitude = &lat
	i.Longitude = &lon
	i.LocationName = locationName
	i.Geocoded = true
}

// ParsedFeed はパーサーが正規化したフィード全体を表す。
type ParsedFeed struct {
	Title string
	Items []ParsedItem
}

// ParsedItem はパーサーが正規化した未保存の記事データを表す。
// オーケストレーターが重複排除・ジオコーディングを経てItemに変換する。
type ParsedItem struct {
	Title       string
	Description string // 未サニタイズ
	Link        string
	PublishedAt time.Time
	GUID        string
	Author      string
	Categories  []string
	ImageURL    string
	Content     string // 未サニタイズのHTML
	Latitude    *float64
	Longitude   *float64
}

// HasGeo はフィード埋め込みのジオタグ（georss:point等）が解決済みかを返す。
func (p *ParsedItem) HasGeo() bool {
	return p.Latitude != nil && p.Longitude != nil
}
