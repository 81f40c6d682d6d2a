// Package geo は地名抽出・ジオコーディングによる記事の位置情報付与を提供する。
package geo

import (
	"strings"
	"sync"
)

// DefaultCacheCapacity はジオコードキャッシュのデフォルト容量。
const DefaultCacheCapacity = 1000

// Result はジオコーディングの解決結果を表す。
type Result struct {
	Latitude    float64
	Longitude   float64
	DisplayName string // ジオコーディングサービスが返す正規化された地名
}

// Cache はジオコード結果のプロセス内キャッシュ。
// キーは小文字化した地名。容量超過時は挿入順が最も古いエントリを削除する
// （LRUではなく挿入順のみ）。複数ワーカーから共有されるためミューテックスで
// 直列化する。プロセス再起動で空から再構築される（永続化しない）。
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]Result
	order    []string // 挿入順のキー列。先頭が最古。
}

// NewCache は指定容量のCacheを生成する。
// capacityが0以下の場合はDefaultCacheCapacityを使用する。
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[string]Result),
	}
}

// Get は地名に対応するキャッシュエントリを返す。大文字小文字を区別しない。
func (c *Cache) Get(place string) (Result, bool) {
	key := strings.ToLower(place)

	c.mu.Lock()
	defer c.mu.Unlock()

	result, ok := c.entries[key]
	return result, ok
}

// Put はジオコード結果をキャッシュに格納する。
// 容量超過時は挿入順が最も古いエントリを1件削除する。
// 既存キーの上書きは挿入順を変更しない。
func (c *Cache) Put(place string, result Result) {
	key := strings.ToLower(place)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.entries[key] = result
		return
	}

	c.entries[key] = result
	c.order = append(c.order, key)

	if len(c.entries) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

// Len は現在のエントリ数を返す。
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
