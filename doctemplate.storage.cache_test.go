package doctemplate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/itsatony/go-cuserr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// countingStorage counts calls that reach the wrapped storage.
type countingStorage struct {
	TemplateStorage
	gets   atomic.Int32
	exists atomic.Int32
}

func (c *countingStorage) Get(ctx context.Context, name string) (*StoredTemplate, error) {
	c.gets.Add(1)
	return c.TemplateStorage.Get(ctx, name)
}

func (c *countingStorage) Exists(ctx context.Context, name string) (bool, error) {
	c.exists.Add(1)
	return c.TemplateStorage.Exists(ctx, name)
}

// fakeClock is a manually advanced time source.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

// gatedStorage holds the first Get open after it has read from the wrapped
// storage, until release is closed.
type gatedStorage struct {
	TemplateStorage
	once    sync.Once
	fetched chan struct{}
	release chan struct{}
}

func newGatedStorage(inner TemplateStorage) *gatedStorage {
	return &gatedStorage{
		TemplateStorage: inner,
		fetched:         make(chan struct{}),
		release:         make(chan struct{}),
	}
}

func (g *gatedStorage) Get(ctx context.Context, name string) (*StoredTemplate, error) {
	tmpl, err := g.TemplateStorage.Get(ctx, name)
	g.once.Do(func() {
		close(g.fetched)
		<-g.release
	})
	return tmpl, err
}

func newTestCache(t *testing.T, config CacheConfig) (*CachedStorage, *countingStorage, *fakeClock) {
	t.Helper()
	inner := &countingStorage{TemplateStorage: NewMemoryStorage()}
	cache, err := NewCachedStorage(inner, config)
	require.NoError(t, err)
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cache.now = clock.now
	t.Cleanup(func() { _ = cache.Close() })
	return cache, inner, clock
}

func TestCachedStorage_Get(t *testing.T) {
	ctx := context.Background()
	cache, inner, _ := newTestCache(t, CacheConfig{TTL: time.Minute})
	require.NoError(t, cache.Save(ctx, &StoredTemplate{Name: "a", Source: "one"}))

	first, err := cache.Get(ctx, "a")
	require.NoError(t, err)
	second, err := cache.Get(ctx, "a")
	require.NoError(t, err)

	assert.Equal(t, "one", second.Source)
	assert.Equal(t, int32(1), inner.gets.Load())

	first.Source = "mutated"
	third, err := cache.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "one", third.Source, "callers get copies")
}

func TestCachedStorage_TTL(t *testing.T) {
	ctx := context.Background()
	cache, inner, clock := newTestCache(t, CacheConfig{TTL: time.Minute})
	require.NoError(t, cache.Save(ctx, &StoredTemplate{Name: "a", Source: "one"}))

	_, err := cache.Get(ctx, "a")
	require.NoError(t, err)

	clock.advance(59 * time.Second)
	_, err = cache.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int32(1), inner.gets.Load())

	clock.advance(time.Second)
	_, err = cache.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.gets.Load(), "expired entries are refetched")
}

func TestCachedStorage_NegativeCache(t *testing.T) {
	ctx := context.Background()

	t.Run("enabled", func(t *testing.T) {
		cache, inner, clock := newTestCache(t, CacheConfig{TTL: time.Hour, NegativeCacheTTL: 10 * time.Second})

		for i := 0; i < 3; i++ {
			_, err := cache.Get(ctx, "missing")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrTemplateNotFound))
		}
		assert.Equal(t, int32(1), inner.gets.Load())
		assert.Equal(t, 1, cache.Stats().NegativeEntries)

		exists, err := cache.Exists(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, exists)
		assert.Equal(t, int32(0), inner.exists.Load(), "answered from the negative entry")

		clock.advance(10 * time.Second)
		_, err = cache.Get(ctx, "missing")
		require.Error(t, err)
		assert.Equal(t, int32(2), inner.gets.Load())
	})

	t.Run("disabled", func(t *testing.T) {
		cache, inner, _ := newTestCache(t, CacheConfig{TTL: time.Hour})

		_, _ = cache.Get(ctx, "missing")
		_, _ = cache.Get(ctx, "missing")
		assert.Equal(t, int32(2), inner.gets.Load())
	})

	t.Run("save clears a negative entry", func(t *testing.T) {
		cache, _, _ := newTestCache(t, CacheConfig{TTL: time.Hour, NegativeCacheTTL: time.Hour})

		_, err := cache.Get(ctx, "late")
		require.Error(t, err)

		require.NoError(t, cache.Save(ctx, &StoredTemplate{Name: "late", Source: "here"}))
		got, err := cache.Get(ctx, "late")
		require.NoError(t, err)
		assert.Equal(t, "here", got.Source)
	})
}

func TestCachedStorage_MaxEntries(t *testing.T) {
	ctx := context.Background()
	cache, inner, clock := newTestCache(t, CacheConfig{TTL: time.Hour, MaxEntries: 2})
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, cache.Save(ctx, &StoredTemplate{Name: name, Source: name}))
	}

	_, _ = cache.Get(ctx, "a")
	clock.advance(time.Second)
	_, _ = cache.Get(ctx, "b")
	clock.advance(time.Second)
	_, _ = cache.Get(ctx, "a")
	clock.advance(time.Second)
	_, _ = cache.Get(ctx, "c")
	assert.Equal(t, int32(3), inner.gets.Load())
	assert.Equal(t, 2, cache.Stats().Entries)

	_, _ = cache.Get(ctx, "a")
	assert.Equal(t, int32(3), inner.gets.Load(), "recently used entry survives")

	_, _ = cache.Get(ctx, "b")
	assert.Equal(t, int32(4), inner.gets.Load(), "least recently used entry was evicted")
}

func TestCachedStorage_Invalidate(t *testing.T) {
	ctx := context.Background()
	cache, inner, _ := newTestCache(t, CacheConfig{TTL: time.Hour})
	require.NoError(t, cache.Save(ctx, &StoredTemplate{Name: "a", Source: "x"}))
	require.NoError(t, cache.Save(ctx, &StoredTemplate{Name: "b", Source: "x"}))

	_, _ = cache.Get(ctx, "a")
	_, _ = cache.Get(ctx, "b")
	assert.Equal(t, 2, cache.Stats().Entries)

	cache.Invalidate("a")
	assert.Equal(t, 1, cache.Stats().Entries)

	cache.InvalidateAll()
	assert.Equal(t, 0, cache.Stats().Entries)

	_, _ = cache.Get(ctx, "a")
	assert.Equal(t, int32(3), inner.gets.Load())
}

func TestCachedStorage_WritesInvalidate(t *testing.T) {
	ctx := context.Background()
	cache, _, _ := newTestCache(t, CacheConfig{TTL: time.Hour})
	require.NoError(t, cache.Save(ctx, &StoredTemplate{Name: "a", Source: "one"}))
	_, _ = cache.Get(ctx, "a")

	require.NoError(t, cache.Save(ctx, &StoredTemplate{Name: "a", Source: "two"}))
	got, err := cache.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "two", got.Source)
	assert.Equal(t, 2, got.Version)

	require.NoError(t, cache.Delete(ctx, "a"))
	_, err = cache.Get(ctx, "a")
	assert.True(t, errors.Is(err, ErrTemplateNotFound))
}

func TestCachedStorage_PassThrough(t *testing.T) {
	ctx := context.Background()
	cache, _, _ := newTestCache(t, CacheConfig{})
	require.NoError(t, cache.Save(ctx, &StoredTemplate{Name: "a", Source: "one"}))
	require.NoError(t, cache.Save(ctx, &StoredTemplate{Name: "a", Source: "two"}))

	v1, err := cache.GetVersion(ctx, "a", 1)
	require.NoError(t, err)
	assert.Equal(t, "one", v1.Source)

	versions, err := cache.ListVersions(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, versions)

	list, err := cache.List(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	exists, err := cache.Exists(ctx, "a")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCachedStorage_Purge(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.DebugLevel)
	cache, _, clock := newTestCache(t, CacheConfig{
		TTL:              time.Minute,
		NegativeCacheTTL: time.Second,
		Logger:           zap.New(core),
	})
	require.NoError(t, cache.Save(ctx, &StoredTemplate{Name: "a", Source: "x"}))

	_, _ = cache.Get(ctx, "a")
	_, _ = cache.Get(ctx, "missing")
	assert.Equal(t, CacheStats{Entries: 2, ValidEntries: 1, NegativeEntries: 1}, cache.Stats())

	assert.Equal(t, 0, cache.Purge())
	assert.Equal(t, 0, logs.Len())

	clock.advance(2 * time.Second)
	assert.Equal(t, CacheStats{Entries: 2, ValidEntries: 1}, cache.Stats())
	assert.Equal(t, 1, cache.Purge())

	entries := logs.FilterMessage(LogMsgCachePurged).All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].ContextMap()[LogFieldCount])
	assert.Equal(t, int64(1), entries[0].ContextMap()[LogFieldRemaining])
}

func TestCachedStorage_Schedule(t *testing.T) {
	cache, err := NewCachedStorage(NewMemoryStorage(), CacheConfig{PurgeSchedule: "*/5 * * * *"})
	require.NoError(t, err)
	require.NotNil(t, cache.cron)
	assert.Len(t, cache.cron.Entries(), 1)
	require.NoError(t, cache.Close())

	_, err = NewCachedStorage(NewMemoryStorage(), CacheConfig{PurgeSchedule: "every five minutes"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrMsgInvalidSchedule)

	var ce *cuserr.CustomError
	require.True(t, errors.As(err, &ce))
	schedule, ok := ce.GetMetadata(MetaKeySchedule)
	require.True(t, ok)
	assert.Equal(t, "every five minutes", schedule)
}

func TestCachedStorage_Close(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStorage()
	cache, err := NewCachedStorage(inner, DefaultCacheConfig())
	require.NoError(t, err)
	require.NoError(t, cache.Close())

	_, err = cache.Get(ctx, "a")
	assert.Contains(t, err.Error(), ErrMsgStorageClosed)

	_, err = cache.Exists(ctx, "a")
	assert.Contains(t, err.Error(), ErrMsgStorageClosed)

	_, err = inner.Get(ctx, "a")
	assert.Contains(t, err.Error(), ErrMsgStorageClosed, "the wrapped storage is closed too")
}

func TestDefaultCacheConfig(t *testing.T) {
	config := DefaultCacheConfig()
	assert.Equal(t, DefaultCacheTTL, config.TTL)
	assert.Equal(t, DefaultCacheMaxEntries, config.MaxEntries)
	assert.Equal(t, DefaultNegativeTTL, config.NegativeCacheTTL)
	assert.Empty(t, config.PurgeSchedule)
}

func TestCachedStorage_InvalidateDuringFetch(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		seed       bool
		invalidate func(cache *CachedStorage) error
		expected   string
	}{
		{
			name: "save during fetch",
			seed: true,
			invalidate: func(cache *CachedStorage) error {
				return cache.Save(ctx, &StoredTemplate{Name: "a", Source: "two"})
			},
			expected: "two",
		},
		{
			name: "invalidate all during fetch",
			seed: true,
			invalidate: func(cache *CachedStorage) error {
				if err := cache.storage.Save(ctx, &StoredTemplate{Name: "a", Source: "two"}); err != nil {
					return err
				}
				cache.InvalidateAll()
				return nil
			},
			expected: "two",
		},
		{
			name: "save during missing fetch",
			invalidate: func(cache *CachedStorage) error {
				return cache.Save(ctx, &StoredTemplate{Name: "a", Source: "two"})
			},
			expected: "two",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			memory := NewMemoryStorage()
			if tt.seed {
				require.NoError(t, memory.Save(ctx, &StoredTemplate{Name: "a", Source: "one"}))
			}
			gated := newGatedStorage(memory)
			inner := &countingStorage{TemplateStorage: gated}
			cache, err := NewCachedStorage(inner, CacheConfig{TTL: time.Hour, NegativeCacheTTL: time.Hour})
			require.NoError(t, err)
			t.Cleanup(func() { _ = cache.Close() })

			done := make(chan struct{})
			go func() {
				defer close(done)
				_, _ = cache.Get(ctx, "a")
			}()

			<-gated.fetched
			require.NoError(t, tt.invalidate(cache))
			close(gated.release)
			<-done

			got, err := cache.Get(ctx, "a")
			require.NoError(t, err, "the stale fetch must not be cached")
			assert.Equal(t, tt.expected, got.Source)
			assert.Equal(t, int32(2), inner.gets.Load())
			stats := cache.Stats()
			assert.Equal(t, 1, stats.ValidEntries)
			assert.Equal(t, 0, stats.NegativeEntries)
		})
	}
}
