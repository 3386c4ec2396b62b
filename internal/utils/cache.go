package utils

import (
	"log"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CacheItem 包装缓存数据和过期时间
type CacheItem[V any] struct {
	Data      V
	ExpiresAt time.Time
}

// TTLCache LRU 缓存，条目带过期时间
type TTLCache[V any] struct {
	lruCache *lru.Cache[string, CacheItem[V]]
	ttl      time.Duration
}

// NewTTLCache 创建容量为 size 的缓存，size <= 0 时使用 500
func NewTTLCache[V any](size int, ttl time.Duration) *TTLCache[V] {
	if size <= 0 {
		size = 500
	}
	l, err := lru.New[string, CacheItem[V]](size)
	if err != nil {
		log.Fatalf("Failed to create LRU cache: %v", err)
	}
	return &TTLCache[V]{lruCache: l, ttl: ttl}
}

// Set 设置缓存
func (c *TTLCache[V]) Set(key string, data V) {
	c.lruCache.Add(key, CacheItem[V]{
		Data:      data,
		ExpiresAt: time.Now().Add(c.ttl),
	})
}

// Get 获取缓存，若不存在或已过期则 ok 为 false
func (c *TTLCache[V]) Get(key string) (V, bool) {
	var zero V
	val, ok := c.lruCache.Get(key)
	if !ok {
		return zero, false
	}

	// 检查过期
	if time.Now().After(val.ExpiresAt) {
		c.lruCache.Remove(key)
		return zero, false
	}

	return val.Data, true
}

// Delete 删除指定缓存
func (c *TTLCache[V]) Delete(key string) {
	c.lruCache.Remove(key)
}

func (c *TTLCache[V]) Len() int {
	return c.lruCache.Len()
}

var (
	markdownCache     *TTLCache[string]
	markdownCacheOnce sync.Once
	markdownCacheSize = 500
)

// SetMarkdownCacheSize must be called before the first render.
func SetMarkdownCacheSize(size int) {
	markdownCacheSize = size
}

func getMarkdownCache() *TTLCache[string] {
	markdownCacheOnce.Do(func() {
		markdownCache = NewTTLCache[string](markdownCacheSize, 10*time.Minute)
	})
	return markdownCache
}
