package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/geofeed/internal/feed"
	"github.com/hitoshi/geofeed/internal/middleware"
	"github.com/hitoshi/geofeed/internal/model"
	"github.com/hitoshi/geofeed/internal/worker/refresh"
)

// FeedServiceInterface はフィードハンドラーが必要とするサービスインターフェース。
type FeedServiceInterface interface {
	Create(ctx context.Context, userID string, input feed.CreateInput) (*model.Feed, error)
	Get(ctx context.Context, userID, feedID string) (*model.Feed, error)
	List(ctx context.Context, userID string) ([]*model.Feed, error)
	Update(ctx context.Context, userID, feedID string, input feed.UpdateInput) (*model.Feed, error)
	Delete(ctx context.Context, userID, feedID string) error
	RefreshNow(ctx context.Context, userID, feedID string) (int, error)
	RefreshAll(ctx context.Context, userID string) (*refresh.Report, error)
}

// FeedHandler はフィード管理のHTTPハンドラー。
type FeedHandler struct {
	service FeedServiceInterface
}

// NewFeedHandler はFeedHandlerを生成する。
func NewFeedHandler(service FeedServiceInterface) *FeedHandler {
	return &FeedHandler{service: service}
}

// createFeedRequest はフィード登録リクエストのボディ。
type createFeedRequest struct {
	URL                    string `json:"url"`
	Name                   string `json:"name"`
	Type                   string `json:"type"`
	Subtype                string `json:"subtype"`
	RefreshIntervalMinutes int    `json:"refresh_interval_minutes"`
	GeocodeEnabled         bool   `json:"geocode_enabled"`
}

// updateFeedRequest はフィード更新リクエストのボディ。nilのフィールドは変更しない。
type updateFeedRequest struct {
	URL                    *string `json:"url"`
	Name                   *string `json:"name"`
	Type                   *string `json:"type"`
	Subtype                *string `json:"subtype"`
	Enabled                *bool   `json:"enabled"`
	RefreshIntervalMinutes *int    `json:"refresh_interval_minutes"`
	GeocodeEnabled         *bool   `json:"geocode_enabled"`
}

// feedResponse はフィード情報のAPIレスポンス。
type feedResponse struct {
	ID                     string     `json:"id"`
	URL                    string     `json:"url"`
	Name                   string     `json:"name"`
	Type                   string     `json:"type"`
	Subtype                string     `json:"subtype,omitempty"`
	Enabled                bool       `json:"enabled"`
	RefreshIntervalMinutes int        `json:"refresh_interval_minutes"`
	GeocodeEnabled         bool       `json:"geocode_enabled"`
	LastFetchedAt          *time.Time `json:"last_fetched_at"`
	LastError              string     `json:"last_error,omitempty"`
	ItemCount              int        `json:"item_count"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// refreshResponse は単一フィード手動更新のレスポンス。
type refreshResponse struct {
	NewItems int `json:"new_items"`
}

// refreshReportResponse は一括手動更新のレスポンス。
type refreshReportResponse struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	NewItems  int `json:"new_items"`
}

// CreateFeed はフィード登録を処理する。
// POST /api/feeds
func (h *FeedHandler) CreateFeed(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req createFeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if req.URL == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidURLError("URLが空です"))
		return
	}

	created, err := h.service.Create(r.Context(), userID, feed.CreateInput{
		URL:                    req.URL,
		Name:                   req.Name,
		Type:                   model.FeedType(req.Type),
		Subtype:                req.Subtype,
		RefreshIntervalMinutes: req.RefreshIntervalMinutes,
		GeocodeEnabled:         req.GeocodeEnabled,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toFeedResponse(created))
}

// ListFeeds はユーザーのフィード一覧を取得する。
// GET /api/feeds
func (h *FeedHandler) ListFeeds(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	feeds, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]feedResponse, 0, len(feeds))
	for _, f := range feeds {
		responses = append(responses, toFeedResponse(f))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"feeds": responses})
}

// GetFeed はフィード詳細を取得する。
// GET /api/feeds/{id}
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	f, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toFeedResponse(f))
}

// UpdateFeed はフィードのユーザー編集可能フィールドを更新する。
// PATCH /api/feeds/{id}
func (h *FeedHandler) UpdateFeed(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req updateFeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	input := feed.UpdateInput{
		URL:                    req.URL,
		Name:                   req.Name,
		Subtype:                req.Subtype,
		Enabled:                req.Enabled,
		RefreshIntervalMinutes: req.RefreshIntervalMinutes,
		GeocodeEnabled:         req.GeocodeEnabled,
	}
	if req.Type != nil {
		t := model.FeedType(*req.Type)
		input.Type = &t
	}

	updated, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toFeedResponse(updated))
}

// DeleteFeed はフィードを削除する。子の記事もCASCADE削除される。
// DELETE /api/feeds/{id}
func (h *FeedHandler) DeleteFeed(w http.ResponseWriter, r *http.Request) {
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

// RefreshFeed は単一フィードの手動更新を実行する。
// POST /api/feeds/{id}/refresh
func (h *FeedHandler) RefreshFeed(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	newItems, err := h.service.RefreshNow(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, refreshResponse{NewItems: newItems})
}

// RefreshAllFeeds はユーザーの有効な全フィードの手動更新を実行する。
// POST /api/feeds/refresh
func (h *FeedHandler) RefreshAllFeeds(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	report, err := h.service.RefreshAll(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, refreshReportResponse{
		Succeeded: report.Succeeded,
		Failed:    report.Failed,
		Skipped:   report.Skipped,
		NewItems:  report.NewItems,
	})
}

// toFeedResponse はmodel.FeedからAPIレスポンスに変換する。
func toFeedResponse(f *model.Feed) feedResponse {
	return feedResponse{
		ID:                     f.ID,
		URL:                    f.URL,
		Name:                   f.Name,
		Type:                   string(f.Type),
		Subtype:                f.Subtype,
		Enabled:                f.Enabled,
		RefreshIntervalMinutes: f.RefreshIntervalMinutes,
		GeocodeEnabled:         f.GeocodeEnabled,
		LastFetchedAt:          f.LastFetchedAt,
		LastError:              f.LastError,
		ItemCount:              f.ItemCount,
		CreatedAt:              f.CreatedAt,
		UpdatedAt:              f.UpdatedAt,
	}
}
