package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/geofeed/internal/middleware"
	"github.com/hitoshi/geofeed/internal/model"
)

// ItemServiceInterface は記事ハンドラーが必要とするサービスインターフェース。
type ItemServiceInterface interface {
	List(ctx context.Context, userID string, q model.ItemQuery) ([]*model.Item, int, error)
	ListMap(ctx context.Context, userID string, q model.MapItemQuery) ([]*model.Item, error)
	Get(ctx context.Context, userID, itemID string) (*model.Item, error)
	MarkRead(ctx context.Context, userID, itemID string, isRead bool) error
	ToggleStar(ctx context.Context, userID, itemID string) (bool, error)
	Delete(ctx context.Context, userID, itemID string) error
	Stats(ctx context.Context, userID string) (*model.Stats, error)
}

// ItemHandler は記事クエリ・状態管理のHTTPハンドラー。
type ItemHandler struct {
	service ItemServiceInterface
}

// NewItemHandler はItemHandlerを生成する。
func NewItemHandler(service ItemServiceInterface) *ItemHandler {
	return &ItemHandler{service: service}
}

// itemResponse は記事情報のAPIレスポンス。
type itemResponse struct {
	ID           string    `json:"id"`
	FeedID       string    `json:"feed_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Link         string    `json:"link"`
	PublishedAt  time.Time `json:"published_at"`
	Author       string    `json:"author,omitempty"`
	Categories   []string  `json:"categories,omitempty"`
	ImageURL     string    `json:"image_url,omitempty"`
	Content      string    `json:"content,omitempty"`
	Latitude     *float64  `json:"latitude"`
	Longitude    *float64  `json:"longitude"`
	LocationName string    `json:"location_name,omitempty"`
	Geocoded     bool      `json:"geocoded"`
	IsRead       bool      `json:"is_read"`
	IsStarred    bool      `json:"is_starred"`
	CreatedAt    time.Time `json:"created_at"`
}

// itemListResponse は記事一覧のAPIレスポンス。
// totalはページネーションに依存しない、同一フィルタ条件での総件数。
type itemListResponse struct {
	Items  []itemResponse `json:"items"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// markReadRequest は既読状態更新リクエストのボディ。
type markReadRequest struct {
	IsRead bool `json:"is_read"`
}

// statsResponse はダッシュボード統計のAPIレスポンス。
type statsResponse struct {
	TotalFeeds    int `json:"total_feeds"`
	TotalItems    int `json:"total_items"`
	GeocodedItems int `json:"geocoded_items"`
	UnreadItems   int `json:"unread_items"`
}

// ListItems は複合フィルタ条件での記事一覧を取得する。
// GET /api/items
func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	query, err := parseItemQuery(r.URL.Query())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	items, total, err := h.service.List(r.Context(), userID, *query)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	query.Normalize()
	responses := make([]itemResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, toItemResponse(item))
	}

	writeJSON(w, http.StatusOK, itemListResponse{
		Items:  responses,
		Total:  total,
		Limit:  query.Limit,
		Offset: query.Offset,
	})
}

// ListMapItems は地図表示用に座標解決済みの記事を取得する。
// GET /api/items/map
func (h *ItemHandler) ListMapItems(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	query, err := parseMapItemQuery(r.URL.Query())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	items, err := h.service.ListMap(r.Context(), userID, *query)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]itemResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, toItemResponse(item))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"items": responses})
}

// GetItem は記事詳細を取得する。
// GET /api/items/{id}
func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	item, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toItemResponse(item))
}

// MarkRead は記事の既読フラグを設定する。
// PUT /api/items/{id}/read
func (h *ItemHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req markReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if err := h.service.MarkRead(r.Context(), userID, chi.URLParam(r, "id"), req.IsRead); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"is_read": req.IsRead})
}

// ToggleStar は記事のスターフラグを反転する。
// PUT /api/items/{id}/star
func (h *ItemHandler) ToggleStar(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	starred, err := h.service.ToggleStar(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"is_starred": starred})
}

// DeleteItem は記事を削除する。
// DELETE /api/items/{id}
func (h *ItemHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetStats はユーザースコープのダッシュボード統計を取得する。
// GET /api/stats
func (h *ItemHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	stats, err := h.service.Stats(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		TotalFeeds:    stats.TotalFeeds,
		TotalItems:    stats.TotalItems,
		GeocodedItems: stats.GeocodedItems,
		UnreadItems:   stats.UnreadItems,
	})
}

// --- クエリパラメータのパース ---

// parseItemQuery はクエリパラメータを記事一覧のフィルタ条件に変換する。
// 解釈できない値はINVALID_FILTERエラーになる。
func parseItemQuery(values url.Values) (*model.ItemQuery, error) {
	q := &model.ItemQuery{
		FeedIDs:       splitParam(values.Get("feed_ids")),
		Subtypes:      splitParam(values.Get("subtypes")),
		TitleContains: values.Get("q"),
	}

	for _, t := range splitParam(values.Get("types")) {
		ft := model.FeedType(t)
		if !model.IsValidFeedType(ft) {
			return nil, model.NewInvalidFilterError("types=" + t)
		}
		q.Types = append(q.Types, ft)
	}

	var err error
	if q.Geocoded, err = parseBoolParam(values, "geocoded"); err != nil {
		return nil, err
	}
	if q.IsRead, err = parseBoolParam(values, "is_read"); err != nil {
		return nil, err
	}
	if q.IsStarred, err = parseBoolParam(values, "is_starred"); err != nil {
		return nil, err
	}
	if q.PublishedAfter, err = parseTimeParam(values, "published_after"); err != nil {
		return nil, err
	}
	if q.PublishedBefore, err = parseTimeParam(values, "published_before"); err != nil {
		return nil, err
	}
	if q.Limit, err = parseIntParam(values, "limit"); err != nil {
		return nil, err
	}
	if q.Offset, err = parseIntParam(values, "offset"); err != nil {
		return nil, err
	}

	return q, nil
}

// parseMapItemQuery はクエリパラメータを地図表示用のフィルタ条件に変換する。
// 矩形範囲はn/s/e/wの4値が揃っている場合のみ有効になる。
func parseMapItemQuery(values url.Values) (*model.MapItemQuery, error) {
	q := &model.MapItemQuery{
		FeedIDs: splitParam(values.Get("feed_ids")),
	}

	for _, t := range splitParam(values.Get("types")) {
		ft := model.FeedType(t)
		if !model.IsValidFeedType(ft) {
			return nil, model.NewInvalidFilterError("types=" + t)
		}
		q.Types = append(q.Types, ft)
	}

	var err error
	if q.Limit, err = parseIntParam(values, "limit"); err != nil {
		return nil, err
	}

	boundKeys := []string{"north", "south", "east", "west"}
	present := 0
	for _, key := range boundKeys {
		if values.Get(key) != "" {
			present++
		}
	}
	if present > 0 {
		if present < len(boundKeys) {
			return nil, model.NewInvalidFilterError("矩形範囲はnorth/south/east/westの4値が必要です")
		}
		bounds := &model.MapBounds{}
		if bounds.North, err = parseFloatParam(values, "north"); err != nil {
			return nil, err
		}
		if bounds.South, err = parseFloatParam(values, "south"); err != nil {
			return nil, err
		}
		if bounds.East, err = parseFloatParam(values, "east"); err != nil {
			return nil, err
		}
		if bounds.West, err = parseFloatParam(values, "west"); err != nil {
			return nil, err
		}
		q.Bounds = bounds
	}

	if values.Get("radius_km") != "" {
		if q.RadiusKm, err = parseFloatParam(values, "radius_km"); err != nil {
			return nil, err
		}
		if q.CenterLat, err = parseFloatParam(values, "lat"); err != nil {
			return nil, err
		}
		if q.CenterLon, err = parseFloatParam(values, "lon"); err != nil {
			return nil, err
		}
	}

	return q, nil
}

// splitParam はカンマ区切りのパラメータ値を分割する。空値は空スライス。
func splitParam(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// parseBoolParam は省略可能なboolパラメータをパースする。省略時はnil。
func parseBoolParam(values url.Values, key string) (*bool, error) {
	raw := values.Get(key)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, model.NewInvalidFilterError(key + "=" + raw)
	}
	return &b, nil
}

// parseTimeParam は省略可能なRFC3339日時パラメータをパースする。省略時はnil。
func parseTimeParam(values url.Values, key string) (*time.Time, error) {
	raw := values.Get(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, model.NewInvalidFilterError(key + "=" + raw)
	}
	return &t, nil
}

// parseIntParam は省略可能な整数パラメータをパースする。省略時は0。
func parseIntParam(values url.Values, key string) (int, error) {
	raw := values.Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, model.NewInvalidFilterError(key + "=" + raw)
	}
	return n, nil
}

// parseFloatParam は必須のfloatパラメータをパースする。
func parseFloatParam(values url.Values, key string) (float64, error) {
	raw := values.Get(key)
	if raw == "" {
		return 0, model.NewInvalidFilterError(key + "が指定されていません")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, model.NewInvalidFilterError(key + "=" + raw)
	}
	return f, nil
}

// toItemResponse はmodel.ItemからAPIレスポンスに変換する。
func toItemResponse(item *model.Item) itemResponse {
	return itemResponse{
		ID:           item.ID,
		FeedID:       item.FeedID,
		Title:        item.Title,
		Description:  item.Description,
		Link:         item.Link,
		PublishedAt:  item.PublishedAt,
		Author:       item.Author,
		Categories:   item.Categories,
		ImageURL:     item.ImageURL,
		Content:      item.Content,
		Latitude:     item.Latitude,
		Longitude:    item.Longitude,
		LocationName: item.LocationName,
		Geocoded:     item.Geocoded,
		IsRead:       item.IsRead,
		IsStarred:    item.IsStarred,
		CreatedAt:    item.CreatedAt,
	}
}
