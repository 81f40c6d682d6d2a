package database

import (
	"fmt"
	"strings"
	"testing"

	"github.com/hitoshi/geofeed/internal/feed"
	"github.com/hitoshi/geofeed/internal/model"
)

// TestEmbeddedMigrations_UpDownPairs は埋め込みマイグレーションがup/downの対で
// 揃っていることを検証する。
func TestEmbeddedMigrations_UpDownPairs(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("埋め込みマイグレーションの読み込みに失敗: %v", err)
	}

	var ups, downs int
	for _, entry := range entries {
		switch {
		case strings.HasSuffix(entry.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(entry.Name(), ".down.sql"):
			downs++
		default:
			t.Errorf("予期しないマイグレーションファイル: %s", entry.Name())
		}
	}

	if ups == 0 {
		t.Fatal("upマイグレーションが1つも埋め込まれていない")
	}
	if ups != downs {
		t.Errorf("up/downの数が一致しない: up = %d, down = %d", ups, downs)
	}
}

// TestFeedsSchema_DefaultsMatchService はfeedsスキーマのデフォルト更新間隔と
// 下限制約がサービス層・モデルの定数と一致することを検証する。
// スキーマ直挿入の行とサービス経由の行で更新間隔がずれないようにする。
func TestFeedsSchema_DefaultsMatchService(t *testing.T) {
	data, err := migrationsFS.ReadFile("migrations/000001_create_feeds.up.sql")
	if err != nil {
		t.Fatalf("feedsマイグレーションの読み込みに失敗: %v", err)
	}
	schema := string(data)

	wantDefault := fmt.Sprintf("refresh_interval_minutes INTEGER NOT NULL DEFAULT %d", feed.DefaultRefreshIntervalMinutes)
	if !strings.Contains(schema, wantDefault) {
		t.Errorf("feedsスキーマのデフォルト更新間隔がサービス層の%d分と一致しない", feed.DefaultRefreshIntervalMinutes)
	}

	wantCheck := fmt.Sprintf("refresh_interval_minutes >= %d", model.MinRefreshIntervalMinutes)
	if !strings.Contains(schema, wantCheck) {
		t.Errorf("feedsスキーマの更新間隔の下限制約がモデルの%d分と一致しない", model.MinRefreshIntervalMinutes)
	}
}

// TestItemsSchema_GUIDUnique はitemsスキーマのguidに一意制約があることを検証する。
// guidの一意制約は重複記事判定の最終防衛線として機能する。
func TestItemsSchema_GUIDUnique(t *testing.T) {
	data, err := migrationsFS.ReadFile("migrations/000002_create_items.up.sql")
	if err != nil {
		t.Fatalf("itemsマイグレーションの読み込みに失敗: %v", err)
	}

	if !strings.Contains(string(data), "guid TEXT NOT NULL UNIQUE") {
		t.Error("itemsスキーマのguidには一意制約が必要")
	}
}
