// Package model はドメインモデルを定義する。
package model

import "time"

// Feed はユーザーが登録したRSS/Atomフィードを表す。
type Feed struct {
	ID                     string
	UserID                 string
	URL                    string
	Name                   string
	Type                   FeedType
	Subtype                string
	Enabled                bool
	RefreshIntervalMinutes int
	GeocodeEnabled         bool
	LastFetchedAt          *time.Time
	LastError              string
	ItemCount              int
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// FeedType はフィードの分類を表す。
type FeedType string

const (
	// FeedTypeNews は一般ニュースフィード。
	FeedTypeNews FeedType = "news"
	// FeedTypeSecurity はセキュリティ関連フィード。
	FeedTypeSecurity FeedType = "security"
	// FeedTypeDisaster は災害情報フィード。
	FeedTypeDisaster FeedType = "disaster"
	// FeedTypeMaritime は海事情報フィード。
	FeedTypeMaritime FeedType = "maritime"
	// FeedTypeAviation は航空情報フィード。
	FeedTypeAviation FeedType = "aviation"
	// FeedTypeConflict は紛争情報フィード。
	FeedTypeConflict FeedType = "conflict"
	// FeedTypeEconomics は経済情報フィード。
	FeedTypeEconomics FeedType = "economics"
	// FeedTypeScience は科学情報フィード。
	FeedTypeScience FeedType = "science"
	// FeedTypeHealth は保健・医療情報フィード。
	FeedTypeHealth FeedType = "health"
	// FeedTypeCustom はユーザー定義フィード。
	FeedTypeCustom FeedType = "custom"
)

// feedTypes は有効なフィードタイプの集合。
var feedTypes = map[FeedType]struct{}{
	FeedTypeNews:      {},
	FeedTypeSecurity:  {},
	FeedTypeDisaster:  {},
	FeedTypeMaritime:  {},
	FeedTypeAviation:  {},
	FeedTypeConflict:  {},
	FeedTypeEconomics: {},
	FeedTypeScience:   {},
	FeedTypeHealth:    {},
	FeedTypeCustom:    {},
}

// IsValidFeedType はフィードタイプが定義済みかを検証する。
func IsValidFeedType(t FeedType) bool {
	_, ok := feedTypes[t]
	return ok
}

// MinRefreshIntervalMinutes はフィード更新間隔の下限（分）。
const MinRefreshIntervalMinutes = 5
