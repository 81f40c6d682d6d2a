// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/geofeed/internal/model"
)

// FeedRepository はフィードデータの永続化インターフェース。
type FeedRepository interface {
	// FindByID は指定IDのフィードを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Feed, error)

	// ListByUserID はユーザーの全フィードを作成日時昇順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Feed, error)

	// ListEnabled は有効な全フィードを返す。定期更新サイクルの対象一覧。
	ListEnabled(ctx context.Context) ([]*model.Feed, error)

	// ListEnabledByUserID はユーザーの有効なフィードを返す。
	ListEnabledByUserID(ctx context.Context, userID string) ([]*model.Feed, error)

	// ListIDsByUserID はユーザーが所有する全フィードIDを返す。
	// 記事クエリの所有スコープ解決に使用する。
	ListIDsByUserID(ctx context.Context, userID string) ([]string, error)

	// ListIDsByTypes はユーザーが所有し、指定タイプ（およびサブタイプ）に
	// 合致するフィードIDを返す。subtypesが空の場合はタイプのみで絞り込む。
	ListIDsByTypes(ctx context.Context, userID string, types []model.FeedType, subtypes []string) ([]string, error)

	// Create はフィードを作成する。
	Create(ctx context.Context, feed *model.Feed) error

	// Update はフィードのユーザー編集可能フィールドを更新する。
	Update(ctx context.Context, feed *model.Feed) error

	// UpdateRefreshState は更新サイクルの結果を記録する。
	// last_fetched_at、last_error、updated_atを更新し、item_countを再集計する。
	// lastFetchedAtがnilの場合は既存値を維持する（フェッチ失敗時）。
	UpdateRefreshState(ctx context.Context, feedID string, lastFetchedAt *time.Time, lastError string) error

	// Delete は指定IDのフィードを削除する。子の記事はCASCADE削除される。
	Delete(ctx context.Context, id string) error
}

// ItemListQuery は記事一覧取得のストレージレベルのクエリを表す。
// FeedIDsはサービス層がスコープとフィルタの積集合として解決済みのフィードID集合。
type ItemListQuery struct {
	FeedIDs         []string
	Geocoded        *bool
	IsRead          *bool
	IsStarred       *bool
	PublishedAfter  *time.Time
	PublishedBefore *time.Time
	TitleContains   string
	Limit           int
	Offset          int
}

// MapItemListQuery は地図表示用記事取得のストレージレベルのクエリを表す。
// geocoded = true かつ座標が非nullの記事のみを対象とする。
type MapItemListQuery struct {
	FeedIDs []string
	Limit   int
}

// ItemRepository は記事データの永続化インターフェース。
type ItemRepository interface {
	// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Item, error)

	// ExistsByGUID はGUIDが既に存在するかを返す。重複排除の事前チェック。
	ExistsByGUID(ctx context.Context, guid string) (bool, error)

	// Insert は記事を挿入する。GUIDのUNIQUE制約違反は「既に存在」として扱い、
	// falseを返す（エラーにしない）。挿入された場合はtrueを返す。
	Insert(ctx context.Context, item *model.Item) (bool, error)

	// List はフィルタ条件に合致する記事ページと、ページネーションに依存しない
	// 総件数を返す。published_at降順。
	List(ctx context.Context, q ItemListQuery) ([]*model.Item, int, error)

	// ListMap は座標解決済みの記事を件数上限付きで返す。published_at降順。
	ListMap(ctx context.Context, q MapItemListQuery) ([]*model.Item, error)

	// SetRead は記事の既読フラグを設定する。
	SetRead(ctx context.Context, id string, isRead bool) error

	// ToggleStar は記事のスターフラグを反転し、反転後の値を返す。
	ToggleStar(ctx context.Context, id string) (bool, error)

	// Delete は指定IDの記事を削除する。
	Delete(ctx context.Context, id string) error

	// Stats はユーザースコープの集計統計を返す。
	Stats(ctx context.Context, userID string) (*model.Stats, error)
}
