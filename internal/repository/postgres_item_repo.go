package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/hitoshi/geofeed/internal/model"
)

// uniqueViolationCode はPostgreSQLの一意制約違反のエラーコード。
const uniqueViolationCode = "23505"

// PostgresItemRepo はPostgreSQLを使用した記事リポジトリ。
type PostgresItemRepo struct {
	db *sql.DB
}

// NewPostgresItemRepo はPostgresItemRepoを生成する。
func NewPostgresItemRepo(db *sql.DB) *PostgresItemRepo {
	return &PostgresItemRepo{db: db}
}

// itemColumns は記事取得クエリのSELECT句。scanItemの列順と一致させること。
const itemColumns = `id, feed_id, title, description, link, published_at, guid,
       author, categories, image_url, content, latitude, longitude,
       location_name, geocoded, is_read, is_starred, created_at`

// scanItem は1行をmodel.Itemに読み取る。
func scanItem(s rowScanner) (*model.Item, error) {
	item := &model.Item{}
	var description, author, imageURL, content, locationName sql.NullString
	var latitude, longitude sql.NullFloat64
	var categories pq.StringArray

	if err := s.Scan(
		&item.ID, &item.FeedID, &item.Title, &description, &item.Link,
		&item.PublishedAt, &item.GUID, &author, &categories, &imageURL,
		&content, &latitude, &longitude, &locationName,
		&item.Geocoded, &item.IsRead, &item.IsStarred, &item.CreatedAt,
	); err != nil {
		return nil, err
	}

	item.Description = nullStringValue(description)
	item.Author = nullStringValue(author)
	item.ImageURL = nullStringValue(imageURL)
	item.Content = nullStringValue(content)
	item.LocationName = nullStringValue(locationName)
	item.Categories = []string(categories)
	if latitude.Valid {
		item.Latitude = &latitude.Float64
	}
	if longitude.Valid {
		item.Longitude = &longitude.Float64
	}

	return item, nil
}

// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
func (r *PostgresItemRepo) FindByID(ctx context.Context, id string) (*model.Item, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = $1`, id)

	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}
	return item, nil
}

// ExistsByGUID はGUIDが既に存在するかを返す。重複排除の事前チェック。
func (r *PostgresItemRepo) ExistsByGUID(ctx context.Context, guid string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM items WHERE guid = $1)`, guid,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("GUIDによる記事の検索に失敗しました: %w", err)
	}
	return exists, nil
}

// Insert は記事を挿入する。ストレージのUNIQUE制約が重複排除の最終的な裁定者であり、
// GUID衝突はON CONFLICT DO NOTHINGで「既に存在」（false）として扱う。
// 並行する更新トリガー同士でも挿入は冪等になる。
func (r *PostgresItemRepo) Insert(ctx context.Context, item *model.Item) (bool, error) {
	var categories interface{}
	if len(item.Categories) > 0 {
		categories = pq.Array(item.Categories)
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO items (id, feed_id, title, description, link, published_at,
		                    guid, author, categories, image_url, content,
		                    latitude, longitude, location_name, geocoded,
		                    is_read, is_starred, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		 ON CONFLICT (guid) DO NOTHING`,
		item.ID, item.FeedID, item.Title, nullString(item.Description),
		item.Link, item.PublishedAt, item.GUID, nullString(item.Author),
		categories, nullString(item.ImageURL), nullString(item.Content),
		item.Latitude, item.Longitude, nullString(item.LocationName),
		item.Geocoded, item.IsRead, item.IsStarred, item.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolationCode {
			return false, nil
		}
		return false, fmt.Errorf("記事の挿入に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("記事挿入結果の確認に失敗しました: %w", err)
	}
	return affected > 0, nil
}

// buildListConditions はItemListQueryからWHERE条件とプレースホルダ引数を構築する。
func buildListConditions(q ItemListQuery) ([]string, []interface{}) {
	conditions := []string{"feed_id = ANY($1)"}
	args := []interface{}{pq.Array(q.FeedIDs)}

	addCondition := func(expr string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(expr, len(args)))
	}

	if q.Geocoded != nil {
		addCondition("geocoded = $%d", *q.Geocoded)
	}
	if q.IsRead != nil {
		addCondition("is_read = $%d", *q.IsRead)
	}
	if q.IsStarred != nil {
		addCondition("is_starred = $%d", *q.IsStarred)
	}
	if q.PublishedAfter != nil {
		addCondition("published_at >= $%d", *q.PublishedAfter)
	}
	if q.PublishedBefore != nil {
		addCondition("published_at <= $%d", *q.PublishedBefore)
	}
	if q.TitleContains != "" {
		addCondition("title ILIKE $%d", "%"+escapeLike(q.TitleContains)+"%")
	}

	return conditions, args
}

// List はフィルタ条件に合致する記事ページと、ページネーションに依存しない
// 総件数を返す。published_at降順。
func (r *PostgresItemRepo) List(ctx context.Context, q ItemListQuery) ([]*model.Item, int, error) {
	conditions, args := buildListConditions(q)
	where := strings.Join(conditions, " AND ")

	// 総件数はページネーション適用前の同一フィルタで集計する
	var total int
	countQuery := `SELECT count(*) FROM items WHERE ` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("記事総件数の取得に失敗しました: %w", err)
	}

	listQuery := fmt.Sprintf(
		`SELECT `+itemColumns+` FROM items WHERE `+where+
			` ORDER BY published_at DESC LIMIT $%d OFFSET $%d`,
		len(args)+1, len(args)+2,
	)
	listArgs := append(args, q.Limit, q.Offset)

	items, err := r.listItems(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

// ListMap は座標解決済みの記事を件数上限付きで返す。published_at降順。
func (r *PostgresItemRepo) ListMap(ctx context.Context, q MapItemListQuery) ([]*model.Item, error) {
	return r.listItems(ctx,
		`SELECT `+itemColumns+` FROM items
		 WHERE feed_id = ANY($1)
		   AND geocoded
		   AND latitude IS NOT NULL AND longitude IS NOT NULL
		 ORDER BY published_at DESC
		 LIMIT $2`,
		pq.Array(q.FeedIDs), q.Limit,
	)
}

// listItems は記事一覧クエリを実行してスキャンする。
func (r *PostgresItemRepo) listItems(ctx context.Context, query string, args ...interface{}) ([]*model.Item, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("記事一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var items []*model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("記事行の読み取りに失敗しました: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("記事一覧の走査に失敗しました: %w", err)
	}

	return items, nil
}

// SetRead は記事の既読フラグを設定する。
func (r *PostgresItemRepo) SetRead(ctx context.Context, id string, isRead bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE items SET is_read = $2 WHERE id = $1`, id, isRead)
	if err != nil {
		return fmt.Errorf("既読フラグの更新に失敗しました: %w", err)
	}
	return nil
}

// ToggleStar は記事のスターフラグを反転し、反転後の値を返す。
func (r *PostgresItemRepo) ToggleStar(ctx context.Context, id string) (bool, error) {
	var isStarred bool
	err := r.db.QueryRowContext(ctx,
		`UPDATE items SET is_starred = NOT is_starred WHERE id = $1 RETURNING is_starred`,
		id,
	).Scan(&isStarred)
	if err != nil {
		return false, fmt.Errorf("スターフラグの更新に失敗しました: %w", err)
	}
	return isStarred, nil
}

// Delete は指定IDの記事を削除する。
func (r *PostgresItemRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("記事の削除に失敗しました: %w", err)
	}
	return nil
}

// Stats はユーザースコープの集計統計を返す。
func (r *PostgresItemRepo) Stats(ctx context.Context, userID string) (*model.Stats, error) {
	stats := &model.Stats{}
	err := r.db.QueryRowContext(ctx,
		`SELECT
		    (SELECT count(*) FROM feeds WHERE user_id = $1),
		    count(i.id),
		    count(i.id) FILTER (WHERE i.geocoded),
		    count(i.id) FILTER (WHERE NOT i.is_read)
		 FROM items i
		 JOIN feeds f ON i.feed_id = f.id
		 WHERE f.user_id = $1`,
		userID,
	).Scan(&stats.TotalFeeds, &stats.TotalItems, &stats.GeocodedItems, &stats.UnreadItems)
	if err != nil {
		return nil, fmt.Errorf("統計の集計に失敗しました: %w", err)
	}
	return stats, nil
}

// escapeLike はLIKEパターンのメタ文字をエスケープする。
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// compile-time interface check
var _ ItemRepository = (*PostgresItemRepo)(nil)
