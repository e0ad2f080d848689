package cache

import (
	"sync"
	"time"

	"dish-compat/internal/pkg/common"

	"go.uber.org/zap"
)

// Clock 可注入的時間來源
type Clock func() time.Time

// Options 記憶體快取設定
type Options struct {
	Name            string
	TTL             time.Duration
	MaxSize         int
	CleanupInterval time.Duration
	Now             Clock
}

// Manager 記憶體 TTL 快取
type Manager[V any] struct {
	opts  Options
	mu    sync.RWMutex
	store map[string]cacheEntry[V]
	stats cacheStats
	stop  chan struct{}
	once  sync.Once
}

// cacheEntry 緩存條目
type cacheEntry[V any] struct {
	value       V
	expiresAt   time.Time
	createdAt   time.Time
	lastAccess  time.Time
	accessCount int
}

// cacheStats 緩存統計
type cacheStats struct {
	hits      int64
	misses    int64
	evictions int64
	errors    int64
}

// Stats 統計快照
type Stats struct {
	Name      string  `json:"name"`
	Size      int     `json:"size"`
	MaxSize   int     `json:"max_size"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	Errors    int64   `json:"errors"`
	HitRatio  float64 `json:"hit_ratio"`
}

// NewManager 創建新的緩存管理器；CleanupInterval > 0 時啟動背景清理
func NewManager[V any](opts Options) *Manager[V] {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = 1000
	}
	m := &Manager[V]{
		opts:  opts,
		store: make(map[string]cacheEntry[V]),
		stop:  make(chan struct{}),
	}

	if opts.CleanupInterval > 0 {
		go m.startCleanup()
	}

	common.LogInfo("快取管理員已初始化",
		zap.String("名稱", opts.Name),
		zap.Int("最大容量", opts.MaxSize),
		zap.Duration("存活時間", opts.TTL),
		zap.Duration("清理間隔", opts.CleanupInterval),
	)
	return m
}

// Get 取得未過期的值
func (m *Manager[V]) Get(key string) (V, bool) {
	now := m.opts.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.store[key]
	if !exists {
		m.stats.misses++
		var zero V
		return zero, false
	}
	if !now.Before(entry.expiresAt) {
		delete(m.store, key)
		m.stats.evictions++
		m.stats.misses++
		var zero V
		return zero, false
	}

	entry.lastAccess = now
	entry.accessCount++
	m.store[key] = entry
	m.stats.hits++
	return entry.value, true
}

// Set 以預設 TTL 寫入
func (m *Manager[V]) Set(key string, value V) error {
	return m.SetWithExpiry(key, value, m.opts.Now().Add(m.opts.TTL))
}

// SetWithExpiry 以指定到期時間寫入（載入持久化資料時使用）
func (m *Manager[V]) SetWithExpiry(key string, value V, expiresAt time.Time) error {
	now := m.opts.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.store[key]; !exists && len(m.store) >= m.opts.MaxSize {
		evicted := m.cleanup(now)
		if evicted == 0 && len(m.store) >= m.opts.MaxSize {
			m.evictLRU()
		}
		if len(m.store) >= m.opts.MaxSize {
			m.stats.errors++
			common.LogWarn("快取已滿",
				zap.String("名稱", m.opts.Name),
				zap.Int("目前容量", len(m.store)),
			)
			return common.ErrCacheFull
		}
	}

	m.store[key] = cacheEntry[V]{
		value:      value,
		expiresAt:  expiresAt,
		createdAt:  now,
		lastAccess: now,
	}
	return nil
}

// Snapshot 回傳所有未過期條目及其到期時間
func (m *Manager[V]) Snapshot() map[string]Item[V] {
	now := m.opts.Now()

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Item[V], len(m.store))
	for key, entry := range m.store {
		if now.Before(entry.expiresAt) {
			out[key] = Item[V]{Value: entry.value, ExpiresAt: entry.expiresAt}
		}
	}
	return out
}

// Item 快照條目
type Item[V any] struct {
	Value     V
	ExpiresAt time.Time
}

// Len 目前條目數（含尚未清理的過期條目）
func (m *Manager[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store)
}

// startCleanup 啟動清理過期緩存的協程
func (m *Manager[V]) startCleanup() {
	ticker := time.NewTicker(m.opts.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.mu.Lock()
			m.cleanup(m.opts.Now())
			m.mu.Unlock()
		case <-m.stop:
			return
		}
	}
}

// cleanup 清理過期的緩存，呼叫者需持有寫鎖
func (m *Manager[V]) cleanup(now time.Time) int {
	count := 0
	for key, entry := range m.store {
		if !now.Before(entry.expiresAt) {
			delete(m.store, key)
			count++
			m.stats.evictions++
		}
	}

	if count > 0 {
		common.LogDebug("Cleaned up expired cache entries",
			zap.String("name", m.opts.Name),
			zap.Int("count", count),
			zap.Int64("total_evictions", m.stats.evictions),
			zap.Int("remaining_size", len(m.store)),
		)
	}
	return count
}

// evictLRU 淘汰最少使用的條目，呼叫者需持有寫鎖
func (m *Manager[V]) evictLRU() {
	var oldestKey string
	var oldestAccess time.Time
	var lowestAccessCount int

	for key, entry := range m.store {
		if oldestKey == "" ||
			entry.accessCount < lowestAccessCount ||
			(entry.accessCount == lowestAccessCount && entry.lastAccess.Before(oldestAccess)) {
			oldestKey = key
			oldestAccess = entry.lastAccess
			lowestAccessCount = entry.accessCount
		}
	}

	if oldestKey != "" {
		delete(m.store, oldestKey)
		m.stats.evictions++
		common.LogDebug("快取已淘汰(LRU)",
			zap.String("名稱", m.opts.Name),
			zap.String("鍵", oldestKey),
		)
	}
}

// GetStats 獲取緩存統計信息
func (m *Manager[V]) GetStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Stats{
		Name:      m.opts.Name,
		Size:      len(m.store),
		MaxSize:   m.opts.MaxSize,
		Hits:      m.stats.hits,
		Misses:    m.stats.misses,
		Evictions: m.stats.evictions,
		Errors:    m.stats.errors,
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRatio = float64(s.Hits) / float64(total)
	}
	return s
}

// Close 停止背景清理並清空緩存
func (m *Manager[V]) Close() error {
	m.once.Do(func() { close(m.stop) })

	m.mu.Lock()
	defer m.mu.Unlock()

	m.store = make(map[string]cacheEntry[V])
	common.LogInfo("快取管理員已關閉",
		zap.String("名稱", m.opts.Name),
		zap.Int64("命中次數", m.stats.hits),
		zap.Int64("未命中次數", m.stats.misses),
		zap.Int64("淘汰次數", m.stats.evictions),
	)
	return nil
}
