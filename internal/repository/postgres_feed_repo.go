package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/geofeed/internal/model"
)

// PostgresFeedRepo はPostgreSQLを使用したフィードリポジトリ。
type PostgresFeedRepo struct {
	db *sql.DB
}

// NewPostgresFeedRepo はPostgresFeedRepoを生成する。
func NewPostgresFeedRepo(db *sql.DB) *PostgresFeedRepo {
	return &PostgresFeedRepo{db: db}
}

// feedColumns はフィード取得クエリのSELECT句。scanFeedの列順と一致させること。
const feedColumns = `id, user_id, url, name, type, subtype, enabled,
       refresh_interval_minutes, geocode_enabled, last_fetched_at, last_error,
       item_count, created_at, updated_at`

// rowScanner はsql.Rowとsql.Rowsの共通スキャンインターフェース。
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanFeed は1行をmodel.Feedに読み取る。
func scanFeed(s rowScanner) (*model.Feed, error) {
	feed := &model.Feed{}
	var lastFetchedAt sql.NullTime
	var lastError sql.NullString

	if err := s.Scan(
		&feed.ID, &feed.UserID, &feed.URL, &feed.Name, &feed.Type, &feed.Subtype,
		&feed.Enabled, &feed.RefreshIntervalMinutes, &feed.GeocodeEnabled,
		&lastFetchedAt, &lastError, &feed.ItemCount,
		&feed.CreatedAt, &feed.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if lastFetchedAt.Valid {
		feed.LastFetchedAt = &lastFetchedAt.Time
	}
	feed.LastError = nullStringValue(lastError)

	return feed, nil
}

// FindByID は指定IDのフィードを取得する。見つからない場合はnilを返す。
func (r *PostgresFeedRepo) FindByID(ctx context.Context, id string) (*model.Feed, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+feedColumns+` FROM feeds WHERE id = $1`, id)

	feed, err := scanFeed(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}
	return feed, nil
}

// ListByUserID はユーザーの全フィードを作成日時昇順で返す。
func (r *PostgresFeedRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Feed, error) {
	return r.listFeeds(ctx,
		`SELECT `+feedColumns+` FROM feeds WHERE user_id = $1 ORDER BY created_at ASC`,
		userID)
}

// ListEnabled は有効な全フィードを返す。定期更新サイクルの対象一覧。
func (r *PostgresFeedRepo) ListEnabled(ctx context.Context) ([]*model.Feed, error) {
	return r.listFeeds(ctx,
		`SELECT `+feedColumns+` FROM feeds WHERE enabled ORDER BY created_at ASC`)
}

// ListEnabledByUserID はユーザーの有効なフィードを返す。
func (r *PostgresFeedRepo) ListEnabledByUserID(ctx context.Context, userID string) ([]*model.Feed, error) {
	return r.listFeeds(ctx,
		`SELECT `+feedColumns+` FROM feeds WHERE user_id = $1 AND enabled ORDER BY created_at ASC`,
		userID)
}

// listFeeds はフィード一覧クエリを実行してスキャンする。
func (r *PostgresFeedRepo) listFeeds(ctx context.Context, query string, args ...interface{}) ([]*model.Feed, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("フィード一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var feeds []*model.Feed
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("フィード行の読み取りに失敗しました: %w", err)
		}
		feeds = append(feeds, feed)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("フィード一覧の走査に失敗しました: %w", err)
	}

	return feeds, nil
}

// ListIDsByUserID はユーザーが所有する全フィードIDを返す。
func (r *PostgresFeedRepo) ListIDsByUserID(ctx context.Context, userID string) ([]string, error) {
	return r.listIDs(ctx, `SELECT id FROM feeds WHERE user_id = $1`, userID)
}

// ListIDsByTypes はユーザーが所有し、指定タイプ（およびサブタイプ）に
// 合致するフィードIDを返す。typesまたはsubtypesが空の場合、その軸では絞り込まない。
func (r *PostgresFeedRepo) ListIDsByTypes(ctx context.Context, userID string, types []model.FeedType, subtypes []string) ([]string, error) {
	query := `SELECT id FROM feeds WHERE user_id = $1`
	args := []interface{}{userID}

	if len(types) > 0 {
		typeStrs := make([]string, 0, len(types))
		for _, t := range types {
			typeStrs = append(typeStrs, string(t))
		}
		args = append(args, pq.Array(typeStrs))
		query += fmt.Sprintf(` AND type = ANY($%d)`, len(args))
	}

	if len(subtypes) > 0 {
		args = append(args, pq.Array(subtypes))
		query += fmt.Sprintf(` AND subtype = ANY($%d)`, len(args))
	}

	return r.listIDs(ctx, query, args...)
}

// listIDs はID一覧クエリを実行してスキャンする。
func (r *PostgresFeedRepo) listIDs(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("フィードID一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("フィードID行の読み取りに失敗しました: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("フィードID一覧の走査に失敗しました: %w", err)
	}

	return ids, nil
}

// Create はフィードを作成する。
func (r *PostgresFeedRepo) Create(ctx context.Context, feed *model.Feed) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO feeds (id, user_id, url, name, type, subtype, enabled,
		                    refresh_interval_minutes, geocode_enabled,
		                    last_fetched_at, last_error, item_count,
		                    created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		feed.ID, feed.UserID, feed.URL, feed.Name, feed.Type, feed.Subtype,
		feed.Enabled, feed.RefreshIntervalMinutes, feed.GeocodeEnabled,
		feed.LastFetchedAt, nullString(feed.LastError), feed.ItemCount,
		feed.CreatedAt, feed.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("フィードの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はフィードのユーザー編集可能フィールドを更新する。
func (r *PostgresFeedRepo) Update(ctx context.Context, feed *model.Feed) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE feeds SET
		    url = $2, name = $3, type = $4, subtype = $5, enabled = $6,
		    refresh_interval_minutes = $7, geocode_enabled = $8, updated_at = $9
		 WHERE id = $1`,
		feed.ID, feed.URL, feed.Name, feed.Type, feed.Subtype, feed.Enabled,
		feed.RefreshIntervalMinutes, feed.GeocodeEnabled, feed.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("フィードの更新に失敗しました: %w", err)
	}
	return nil
}

// UpdateRefreshState は更新サイクルの結果を記録する。
// last_errorを設定（成功時は空文字でクリア）し、item_countを再集計する。
// lastFetchedAtがnilの場合は既存値を維持する（フェッチ失敗時）。
func (r *PostgresFeedRepo) UpdateRefreshState(ctx context.Context, feedID string, lastFetchedAt *time.Time, lastError string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE feeds SET
		    last_fetched_at = COALESCE($2, last_fetched_at),
		    last_error = $3,
		    item_count = (SELECT count(*) FROM items WHERE feed_id = $1),
		    updated_at = now()
		 WHERE id = $1`,
		feedID, lastFetchedAt, nullString(lastError),
	)
	if err != nil {
		return fmt.Errorf("フィード更新状態の記録に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定IDのフィードを削除する。子の記事はCASCADE削除される。
func (r *PostgresFeedRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM feeds WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("フィードの削除に失敗しました: %w", err)
	}
	return nil
}

// nullString は空文字列をNULLに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はNullStringから文字列値を取り出す。NULLは空文字列。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ FeedRepository = (*PostgresFeedRepo)(nil)
