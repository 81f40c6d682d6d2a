package repository

import (
	"testing"
	"time"

	"github.com/hitoshi/geofeed/internal/model"
)

// PostgresItemRepoはItemRepositoryインターフェースを満たすことを検証
func TestPostgresItemRepo_ImplementsInterface(t *testing.T) {
	var _ ItemRepository = (*PostgresItemRepo)(nil)
}

// NewPostgresItemRepoが正しく初期化されることを検証
func TestNewPostgresItemRepo_Initializes(t *testing.T) {
	repo := NewPostgresItemRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// Itemモデルのフィールドが正しく構築されることを検証
func TestPostgresItemRepo_ItemModel_Fields(t *testing.T) {
	now := time.Now()
	item := &model.Item{
		ID:          "item-id-1",
		FeedID:      "feed-id-1",
		Title:       "テスト記事",
		GUID:        "item-guid-1",
		PublishedAt: now,
		Categories:  []string{"disaster", "earthquake"},
		CreatedAt:   now,
	}

	if item.GUID != "item-guid-1" {
		t.Errorf("item.GUID = %q, want %q", item.GUID, "item-guid-1")
	}
	if len(item.Categories) != 2 {
		t.Errorf("item.Categories = %v, want 2要素", item.Categories)
	}
}

// 座標未解決の記事がgeocoded=falseかつ座標nilであることを検証
func TestPostgresItemRepo_ItemModel_NotGeocoded(t *testing.T) {
	item := &model.Item{
		ID:     "item-id-2",
		FeedID: "feed-id-1",
		GUID:   "item-guid-2",
	}

	if item.Geocoded {
		t.Error("geocoded should be false by default")
	}
	if item.Latitude != nil || item.Longitude != nil {
		t.Error("coordinates should be nil by default")
	}
	if item.IsRead || item.IsStarred {
		t.Error("read/starred flags should be false by default")
	}
}
