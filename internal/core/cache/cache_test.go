package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dish-compat/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeFlavorFetcher struct {
	calls   atomic.Int64
	records map[string]common.FlavorRecord
	err     error
	delay   time.Duration
}

func (f *fakeFlavorFetcher) LookupFlavor(ctx context.Context, name string) (common.FlavorRecord, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return common.FlavorRecord{}, f.err
	}
	rec, ok := f.records[name]
	if !ok {
		return common.FlavorRecord{}, common.ErrProviderNotFound
	}
	return rec, nil
}

type fakeSearcher struct {
	calls   atomic.Int64
	results []common.RecipeSummary
	err     error
}

func (f *fakeSearcher) SearchRecipes(ctx context.Context, query string) ([]common.RecipeSummary, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func TestManagerExpiry(t *testing.T) {
	clock := newFakeClock()
	m := NewManager[string](Options{Name: "t", TTL: time.Minute, MaxSize: 10, Now: clock.Now})
	defer m.Close()

	require.NoError(t, m.Set("a", "1"))
	v, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1", v)

	clock.Advance(time.Minute)
	_, ok = m.Get("a")
	assert.False(t, ok)

	stats := m.GetStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Evictions)
}

func TestManagerEvictsWhenFull(t *testing.T) {
	clock := newFakeClock()
	m := NewManager[int](Options{Name: "t", TTL: time.Hour, MaxSize: 2, Now: clock.Now})
	defer m.Close()

	require.NoError(t, m.Set("a", 1))
	clock.Advance(time.Second)
	require.NoError(t, m.Set("b", 2))
	_, _ = m.Get("a")

	require.NoError(t, m.Set("c", 3))
	assert.Equal(t, 2, m.Len())

	_, ok := m.Get("b")
	assert.False(t, ok, "least used entry is evicted")
	_, ok = m.Get("a")
	assert.True(t, ok)
}

func TestFlavorCacheOneCallWithinTTL(t *testing.T) {
	clock := newFakeClock()
	fetcher := &fakeFlavorFetcher{records: map[string]common.FlavorRecord{
		"sugar": {FlavorProfile: []string{"sweet"}},
	}}
	c := NewFlavorCache(fetcher, NoneStore{}, FlavorOptions{TTL: 7 * 24 * time.Hour, Now: clock.Now})
	ctx := context.Background()

	first := c.GetOrFetch(ctx, "sugar")
	second := c.GetOrFetch(ctx, " Sugar ")
	assert.Equal(t, int64(1), fetcher.calls.Load())
	assert.Equal(t, first, second)
	assert.Equal(t, "sugar", first.CanonicalName)
	assert.True(t, first.HasFlavor("sweet"))

	clock.Advance(7*24*time.Hour + time.Second)
	c.GetOrFetch(ctx, "sugar")
	assert.Equal(t, int64(2), fetcher.calls.Load())
	assert.Equal(t, int64(2), c.ProviderCalls())
}

func TestFlavorCacheCachesNotFound(t *testing.T) {
	fetcher := &fakeFlavorFetcher{records: map[string]common.FlavorRecord{}}
	c := NewFlavorCache(fetcher, nil, FlavorOptions{})
	ctx := context.Background()

	rec := c.GetOrFetch(ctx, "unobtainium")
	assert.True(t, rec.NotFound)
	assert.False(t, rec.Error)
	c.GetOrFetch(ctx, "unobtainium")
	assert.Equal(t, int64(1), fetcher.calls.Load())
	assert.True(t, c.Dirty())
}

func TestFlavorCacheDoesNotCacheFailures(t *testing.T) {
	fetcher := &fakeFlavorFetcher{err: errors.New("connection refused")}
	c := NewFlavorCache(fetcher, nil, FlavorOptions{})
	ctx := context.Background()

	rec := c.GetOrFetch(ctx, "garlic")
	assert.True(t, rec.Error)
	assert.Equal(t, "garlic", rec.CanonicalName)
	c.GetOrFetch(ctx, "garlic")
	assert.Equal(t, int64(2), fetcher.calls.Load())
	assert.False(t, c.Dirty())
}

func TestFlavorCacheCollapsesConcurrentMisses(t *testing.T) {
	fetcher := &fakeFlavorFetcher{
		records: map[string]common.FlavorRecord{"onion": {FlavorProfile: []string{"sweet"}}},
		delay:   50 * time.Millisecond,
	}
	c := NewFlavorCache(fetcher, nil, FlavorOptions{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.GetOrFetch(context.Background(), "onion")
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), fetcher.calls.Load())
}

func TestFlavorCacheFlushOnlyWhenDirty(t *testing.T) {
	store := &countingStore{}
	fetcher := &fakeFlavorFetcher{records: map[string]common.FlavorRecord{"honey": {FlavorProfile: []string{"sweet"}}}}
	c := NewFlavorCache(fetcher, store, FlavorOptions{})
	ctx := context.Background()

	require.NoError(t, c.Flush(ctx))
	assert.Equal(t, 0, store.saves)

	c.GetOrFetch(ctx, "honey")
	require.NoError(t, c.Flush(ctx))
	assert.Equal(t, 1, store.saves)
	assert.Contains(t, store.last, "honey")

	require.NoError(t, c.Flush(ctx))
	assert.Equal(t, 1, store.saves)
}

func TestFlavorCacheFlushFailureKeepsDirty(t *testing.T) {
	store := &countingStore{err: errors.New("disk full")}
	fetcher := &fakeFlavorFetcher{records: map[string]common.FlavorRecord{"honey": {}}}
	c := NewFlavorCache(fetcher, store, FlavorOptions{})
	ctx := context.Background()

	c.GetOrFetch(ctx, "honey")
	err := c.Flush(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrStoreUnavailable))
	assert.True(t, c.Dirty())
}

func TestFlavorCacheLoadSkipsExpired(t *testing.T) {
	clock := newFakeClock()
	now := clock.Now()
	store := &countingStore{loaded: map[string]common.FlavorRecord{
		"fresh":  {CanonicalName: "fresh", FetchedAt: now.Add(-time.Hour)},
		"stale":  {CanonicalName: "stale", FetchedAt: now.Add(-8 * 24 * time.Hour)},
		"broken": {CanonicalName: "broken", Error: true, FetchedAt: now},
	}}
	fetcher := &fakeFlavorFetcher{records: map[string]common.FlavorRecord{}}
	c := NewFlavorCache(fetcher, store, FlavorOptions{TTL: 7 * 24 * time.Hour, Now: clock.Now})

	n, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	c.GetOrFetch(context.Background(), "fresh")
	assert.Equal(t, int64(0), fetcher.calls.Load())
	c.GetOrFetch(context.Background(), "stale")
	assert.Equal(t, int64(1), fetcher.calls.Load())
}

func TestFlavorCacheStartAndClose(t *testing.T) {
	store := &countingStore{}
	fetcher := &fakeFlavorFetcher{records: map[string]common.FlavorRecord{"salt": {}}}
	c := NewFlavorCache(fetcher, store, FlavorOptions{FlushInterval: 10 * time.Millisecond})
	ctx := context.Background()

	c.Start(ctx)
	c.GetOrFetch(ctx, "salt")
	assert.Eventually(t, func() bool { return store.saveCount() >= 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, c.Close(ctx))
	assert.True(t, store.closed)
}

func TestSearchCache(t *testing.T) {
	clock := newFakeClock()
	searcher := &fakeSearcher{results: []common.RecipeSummary{{ID: "1", Title: "Pad Thai"}}}
	c := NewSearchCache(searcher, Options{TTL: 10 * time.Minute, MaxSize: 10, Now: clock.Now})
	defer c.Close()
	ctx := context.Background()

	results, degraded := c.GetOrFetch(ctx, "Pad  Thai")
	assert.False(t, degraded)
	assert.Len(t, results, 1)
	_, _ = c.GetOrFetch(ctx, "pad thai ")
	assert.Equal(t, int64(1), searcher.calls.Load())

	clock.Advance(11 * time.Minute)
	_, _ = c.GetOrFetch(ctx, "pad thai")
	assert.Equal(t, int64(2), searcher.calls.Load())
}

func TestSearchCacheDegradedNotCached(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("503")}
	c := NewSearchCache(searcher, Options{})
	defer c.Close()
	ctx := context.Background()

	results, degraded := c.GetOrFetch(ctx, "curry")
	assert.True(t, degraded)
	assert.Empty(t, results)

	searcher.err = nil
	searcher.results = []common.RecipeSummary{{ID: "9", Title: "Green Curry"}}
	results, degraded = c.GetOrFetch(ctx, "curry")
	assert.False(t, degraded)
	assert.Len(t, results, 1)
	assert.Equal(t, int64(2), searcher.calls.Load())
}

func TestNormalizeQuery(t *testing.T) {
	assert.Equal(t, "thai peanut noodles", NormalizeQuery("  Thai   PEANUT noodles "))
	assert.Equal(t, "", NormalizeQuery("   "))
}

type countingStore struct {
	mu     sync.Mutex
	saves  int
	last   map[string]common.FlavorRecord
	loaded map[string]common.FlavorRecord
	err    error
	closed bool
}

func (s *countingStore) Load(context.Context) (map[string]common.FlavorRecord, error) {
	if s.loaded == nil {
		return map[string]common.FlavorRecord{}, nil
	}
	return s.loaded, nil
}

func (s *countingStore) Save(_ context.Context, records map[string]common.FlavorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.saves++
	s.last = records
	return nil
}

func (s *countingStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *countingStore) Close() error {
	s.closed = true
	return nil
}
