// Package item は記事のクエリ・状態管理機能を提供する。
package item

import (
	"context"
	"fmt"

	"github.com/hitoshi/geofeed/internal/geo"
	"github.com/hitoshi/geofeed/internal/model"
	"github.com/hitoshi/geofeed/internal/repository"
)

// Service は記事の複合フィルタクエリと既読・スター状態管理のサービス。
// 全ての操作は呼び出しユーザーの所有スコープ（所有フィードの記事）に制限される。
type Service struct {
	itemRepo repository.ItemRepository
	feedRepo repository.FeedRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	itemRepo repository.ItemRepository,
	feedRepo repository.FeedRepository,
) *Service {
	return &Service{
		itemRepo: itemRepo,
		feedRepo: feedRepo,
	}
}

// List は複合フィルタ条件に合致する記事ページと総件数を返す。
// 全てのフィルタ軸はAND結合され、所有スコープとの積集合として評価される。
// スコープとフィルタの積が空の場合はストレージに触れずに空の結果を返す。
func (s *Service) List(ctx context.Context, userID string, q model.ItemQuery) ([]*model.Item, int, error) {
	q.Normalize()

	feedIDs, empty, err := s.resolveFeedScope(ctx, userID, q.FeedIDs, q.Types, q.Subtypes)
	if err != nil {
		return nil, 0, err
	}
	if empty {
		return []*model.Item{}, 0, nil
	}

	items, total, err := s.itemRepo.List(ctx, repository.ItemListQuery{
		FeedIDs:         feedIDs,
		Geocoded:        q.Geocoded,
		IsRead:          q.IsRead,
		IsStarred:       q.IsStarred,
		PublishedAfter:  q.PublishedAfter,
		PublishedBefore: q.PublishedBefore,
		TitleContains:   q.TitleContains,
		Limit:           q.Limit,
		Offset:          q.Offset,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("記事一覧の取得に失敗しました: %w", err)
	}

	return items, total, nil
}

// ListMap は地図表示用に座標解決済みの記事を返す。
// 件数上限を適用した後、矩形範囲と半径の条件で絞り込む。
func (s *Service) ListMap(ctx context.Context, userID string, q model.MapItemQuery) ([]*model.Item, error) {
	q.Normalize()

	feedIDs, empty, err := s.resolveFeedScope(ctx, userID, q.FeedIDs, q.Types, nil)
	if err != nil {
		return nil, err
	}
	if empty {
		return []*model.Item{}, nil
	}

	items, err := s.itemRepo.ListMap(ctx, repository.MapItemListQuery{
		FeedIDs: feedIDs,
		Limit:   q.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("地図用記事の取得に失敗しました: %w", err)
	}

	if q.Bounds == nil && q.RadiusKm <= 0 {
		return items, nil
	}

	// 矩形範囲・半径は上限適用後のページに対する後段フィルタ。
	// 範囲外の記事が多い場合、結果が上限より少なくなることを許容する。
	filtered := make([]*model.Item, 0, len(items))
	for _, item := range items {
		if item.Latitude == nil || item.Longitude == nil {
			continue
		}
		lat, lon := *item.Latitude, *item.Longitude
		if q.Bounds != nil && !q.Bounds.Contains(lat, lon) {
			continue
		}
		if q.RadiusKm > 0 && geo.HaversineKm(q.CenterLat, q.CenterLon, lat, lon) > q.RadiusKm {
			continue
		}
		filtered = append(filtered, item)
	}

	return filtered, nil
}

// Get は所有スコープ内の記事を取得する。
// 存在しない場合はITEM_NOT_FOUND、他ユーザーの所有物の場合はFORBIDDENを返す。
func (s *Service) Get(ctx context.Context, userID, itemID string) (*model.Item, error) {
	return s.getScoped(ctx, userID, itemID)
}

// MarkRead は記事の既読フラグを設定する。
func (s *Service) MarkRead(ctx context.Context, userID, itemID string, isRead bool) error {
	item, err := s.getScoped(ctx, userID, itemID)
	if err != nil {
		return err
	}

	if err := s.itemRepo.SetRead(ctx, item.ID, isRead); err != nil {
		return fmt.Errorf("既読状態の更新に失敗しました: %w", err)
	}

	return nil
}

// ToggleStar は記事のスターフラグを反転し、反転後の値を返す。
func (s *Service) ToggleStar(ctx context.Context, userID, itemID string) (bool, error) {
	item, err := s.getScoped(ctx, userID, itemID)
	if err != nil {
		return false, err
	}

	starred, err := s.itemRepo.ToggleStar(ctx, item.ID)
	if err != nil {
		return false, fmt.Errorf("スター状態の更新に失敗しました: %w", err)
	}

	return starred, nil
}

// Delete は記事を削除する。
func (s *Service) Delete(ctx context.Context, userID, itemID string) error {
	item, err := s.getScoped(ctx, userID, itemID)
	if err != nil {
		return err
	}

	if err := s.itemRepo.Delete(ctx, item.ID); err != nil {
		return fmt.Errorf("記事の削除に失敗しました: %w", err)
	}

	return nil
}

// Stats はユーザースコープのダッシュボード統計を返す。
func (s *Service) Stats(ctx context.Context, userID string) (*model.Stats, error) {
	stats, err := s.itemRepo.Stats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("統計の取得に失敗しました: %w", err)
	}
	return stats, nil
}

// getScoped は記事を取得し、親フィードの所有者による参照であることを検証する。
func (s *Service) getScoped(ctx context.Context, userID, itemID string) (*model.Item, error) {
	item, err := s.itemRepo.FindByID(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}
	if item == nil {
		return nil, model.NewItemNotFoundError(itemID)
	}

	feed, err := s.feedRepo.FindByID(ctx, item.FeedID)
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}
	if feed == nil || feed.UserID != userID {
		return nil, model.NewForbiddenError()
	}

	return item, nil
}

// resolveFeedScope は所有スコープと明示フィルタの積集合を実効フィードID集合として
// 解決する。emptyがtrueの場合、積が空であることを意味する（結果はゼロ件）。
//
// 解決手順:
//  1. 所有フィードID集合をスコープとする
//  2. 明示的なフィードID指定があればスコープとの積を取る（スコープ外IDは黙って落ちる）
//  3. タイプ・サブタイプ指定があれば、合致する所有フィードID集合との積を取る
func (s *Service) resolveFeedScope(
	ctx context.Context,
	userID string,
	feedIDs []string,
	types []model.FeedType,
	subtypes []string,
) ([]string, bool, error) {
	scope, err := s.feedRepo.ListIDsByUserID(ctx, userID)
	if err != nil {
		return nil, false, fmt.Errorf("所有フィードの解決に失敗しました: %w", err)
	}
	if len(scope) == 0 {
		return nil, true, nil
	}

	effective := scope
	if len(feedIDs) > 0 {
		effective = intersect(effective, feedIDs)
		if len(effective) == 0 {
			return nil, true, nil
		}
	}

	if len(types) > 0 || len(subtypes) > 0 {
		typed, err := s.feedRepo.ListIDsByTypes(ctx, userID, types, subtypes)
		if err != nil {
			return nil, false, fmt.Errorf("タイプ別フィードの解決に失敗しました: %w", err)
		}
		effective = intersect(effective, typed)
		if len(effective) == 0 {
			return nil, true, nil
		}
	}

	return effective, false, nil
}

// intersect は2つのID集合の積集合を返す。aの順序を保つ。
func intersect(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, id := range b {
		set[id] = struct{}{}
	}

	result := make([]string, 0, len(a))
	for _, id := range a {
		if _, ok := set[id]; ok {
			result = append(result, id)
		}
	}
	return result
}
