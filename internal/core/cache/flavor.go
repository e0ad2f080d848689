package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"dish-compat/internal/pkg/common"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// FlavorFetcher 風味資料來源
type FlavorFetcher interface {
	LookupFlavor(ctx context.Context, name string) (common.FlavorRecord, error)
}

// FlavorOptions 風味快取設定
type FlavorOptions struct {
	TTL           time.Duration
	MaxSize       int
	FlushInterval time.Duration
	Now           Clock
}

// FlavorCache 風味查詢快取：記憶體 + 持久化後端
type FlavorCache struct {
	fetcher FlavorFetcher
	store   Store
	opts    FlavorOptions
	mem     *Manager[common.FlavorRecord]
	group   singleflight.Group
	dirty   atomic.Bool
	calls   atomic.Int64

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
	started  atomic.Bool
}

// NewFlavorCache 創建風味快取
func NewFlavorCache(fetcher FlavorFetcher, store Store, opts FlavorOptions) *FlavorCache {
	if opts.TTL <= 0 {
		opts.TTL = 7 * 24 * time.Hour
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 5 * time.Minute
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = 20000
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if store == nil {
		store = NoneStore{}
	}
	return &FlavorCache{
		fetcher: fetcher,
		store:   store,
		opts:    opts,
		mem: NewManager[common.FlavorRecord](Options{
			Name:    "flavor",
			TTL:     opts.TTL,
			MaxSize: opts.MaxSize,
			Now:     opts.Now,
		}),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Load 啟動時從持久化後端載入，過期與錯誤記錄略過
func (c *FlavorCache) Load(ctx context.Context) (int, error) {
	records, err := c.store.Load(ctx)
	if err != nil {
		return 0, common.ErrStoreUnavailable.Wrap(err)
	}

	now := c.opts.Now()
	loaded := 0
	for name, rec := range records {
		if rec.Error {
			continue
		}
		expiresAt := rec.FetchedAt.Add(c.opts.TTL)
		if !now.Before(expiresAt) {
			continue
		}
		if err := c.mem.SetWithExpiry(name, rec, expiresAt); err != nil {
			break
		}
		loaded++
	}

	common.LogInfo("已載入風味快取", zap.Int("數量", loaded), zap.Int("略過", len(records)-loaded))
	return loaded, nil
}

// GetOrFetch 取得風味記錄；外部失敗時回傳 Error 標記（不快取）
func (c *FlavorCache) GetOrFetch(ctx context.Context, name string) common.FlavorRecord {
	key := common.CleanTerm(name)
	if key == "" {
		return common.FlavorRecord{NotFound: true, FetchedAt: c.opts.Now()}
	}

	if rec, ok := c.mem.Get(key); ok {
		common.LogCacheHit("flavor", key)
		return rec
	}
	common.LogCacheMiss("flavor", key)

	v, _, _ := c.group.Do(key, func() (interface{}, error) {
		// 等待期間可能已被其他請求填入
		if rec, ok := c.mem.Get(key); ok {
			return rec, nil
		}
		return c.fetch(ctx, key), nil
	})
	return v.(common.FlavorRecord)
}

func (c *FlavorCache) fetch(ctx context.Context, key string) common.FlavorRecord {
	c.calls.Add(1)
	start := time.Now()
	rec, err := c.fetcher.LookupFlavor(ctx, key)
	common.LogProviderCall("flavor", time.Since(start), err)

	now := c.opts.Now()
	switch {
	case err == nil:
	case errors.Is(err, common.ErrProviderNotFound):
		rec = common.FlavorRecord{NotFound: true}
	default:
		return common.FlavorRecord{CanonicalName: key, Error: true, FetchedAt: now}
	}

	rec.CanonicalName = key
	rec.FetchedAt = now
	if err := c.mem.Set(key, rec); err == nil {
		c.dirty.Store(true)
	}
	return rec
}

// ProviderCalls 累計外部調用次數
func (c *FlavorCache) ProviderCalls() int64 {
	return c.calls.Load()
}

// Dirty 是否有尚未保存的變更
func (c *FlavorCache) Dirty() bool {
	return c.dirty.Load()
}

// Start 啟動背景定期保存
func (c *FlavorCache) Start(ctx context.Context) {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.opts.FlushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := c.Flush(ctx); err != nil {
					common.LogError("風味快取保存失敗", zap.Error(err))
				}
			case <-ctx.Done():
				return
			case <-c.stop:
				return
			}
		}
	}()
}

// Flush 只在有變更時寫入完整快照
func (c *FlavorCache) Flush(ctx context.Context) error {
	if !c.dirty.Swap(false) {
		return nil
	}

	snapshot := c.mem.Snapshot()
	records := make(map[string]common.FlavorRecord, len(snapshot))
	for name, item := range snapshot {
		records[name] = item.Value
	}

	if err := c.store.Save(ctx, records); err != nil {
		c.dirty.Store(true)
		return common.ErrStoreUnavailable.Wrap(err)
	}
	common.LogDebug("風味快取已保存", zap.Int("數量", len(records)))
	return nil
}

// Close 停止背景保存、最後保存一次並關閉後端
func (c *FlavorCache) Close(ctx context.Context) error {
	c.stopOnce.Do(func() { close(c.stop) })
	if c.started.Load() {
		<-c.done
	}

	flushErr := c.Flush(ctx)
	storeErr := c.store.Close()
	c.mem.Close()
	return errors.Join(flushErr, storeErr)
}

// GetStats 快取統計
func (c *FlavorCache) GetStats() Stats {
	return c.mem.GetStats()
}
