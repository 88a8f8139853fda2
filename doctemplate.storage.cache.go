package doctemplate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// CachedStorage wraps any TemplateStorage with in-memory caching of Get.
type CachedStorage struct {
	storage TemplateStorage
	config  CacheConfig
	logger  *zap.Logger
	cron    *cron.Cron
	now     func() time.Time

	mu     sync.Mutex
	cache  map[string]*cacheEntry
	closed bool
	// gens and epoch move on every invalidation. A fetched result is only
	// cached if neither moved while the fetch was in flight.
	gens  map[string]uint64
	epoch uint64
}

// CacheConfig configures the caching behavior.
type CacheConfig struct {
	// TTL is how long cached entries remain valid.
	// Default: 5 minutes.
	TTL time.Duration

	// MaxEntries is the maximum number of cached templates.
	// When exceeded, the least recently accessed entry is evicted.
	// Default: 1000.
	MaxEntries int

	// NegativeCacheTTL is how long to cache "not found" results.
	// Set to 0 to disable negative caching.
	NegativeCacheTTL time.Duration

	// PurgeSchedule is a standard cron expression for removing expired
	// entries, e.g. "*/5 * * * *". Empty disables scheduled purging.
	PurgeSchedule string

	// Logger receives purge results. Default: no-op.
	Logger *zap.Logger
}

// DefaultCacheConfig returns the default caching configuration.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:              DefaultCacheTTL,
		MaxEntries:       DefaultCacheMaxEntries,
		NegativeCacheTTL: DefaultNegativeTTL,
	}
}

type cacheEntry struct {
	template   *StoredTemplate
	notFound   bool
	cachedAt   time.Time
	accessedAt time.Time
}

// CacheStats contains cache statistics.
type CacheStats struct {
	Entries         int
	ValidEntries    int
	NegativeEntries int
}

// NewCachedStorage wraps storage with caching and starts the purge schedule if one is set.
func NewCachedStorage(storage TemplateStorage, config CacheConfig) (*CachedStorage, error) {
	if config.TTL <= 0 {
		config.TTL = DefaultCacheTTL
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = DefaultCacheMaxEntries
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &CachedStorage{
		storage: storage,
		config:  config,
		logger:  logger,
		now:     time.Now,
		cache:   make(map[string]*cacheEntry),
		gens:    make(map[string]uint64),
	}

	if config.PurgeSchedule != "" {
		if _, err := cron.ParseStandard(config.PurgeSchedule); err != nil {
			return nil, NewScheduleError(config.PurgeSchedule, err)
		}
		s.cron = cron.New()
		if _, err := s.cron.AddFunc(config.PurgeSchedule, func() { s.Purge() }); err != nil {
			return nil, NewScheduleError(config.PurgeSchedule, err)
		}
		s.cron.Start()
	}
	return s, nil
}

// Get retrieves a template, using the cache when available.
func (s *CachedStorage) Get(ctx context.Context, name string) (*StoredTemplate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, NewStorageClosedError()
	}
	if entry, ok := s.cache[name]; ok && s.isValid(entry) {
		entry.accessedAt = s.now()
		s.mu.Unlock()
		if entry.notFound {
			return nil, NewTemplateNotFoundError(name)
		}
		return copyStoredTemplate(entry.template), nil
	}
	gen, epoch := s.gens[name], s.epoch
	s.mu.Unlock()

	tmpl, err := s.storage.Get(ctx, name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, NewStorageClosedError()
	}
	current := s.gens[name] == gen && s.epoch == epoch
	if err != nil {
		if current && s.config.NegativeCacheTTL > 0 && errors.Is(err, ErrTemplateNotFound) {
			s.addEntry(name, nil, true)
		}
		return nil, err
	}
	if current {
		s.addEntry(name, tmpl, false)
	}
	return copyStoredTemplate(tmpl), nil
}

// GetVersion retrieves a specific version (bypasses cache).
func (s *CachedStorage) GetVersion(ctx context.Context, name string, version int) (*StoredTemplate, error) {
	return s.storage.GetVersion(ctx, name, version)
}

// Save stores a template and invalidates its cache entry.
func (s *CachedStorage) Save(ctx context.Context, tmpl *StoredTemplate) error {
	if err := s.storage.Save(ctx, tmpl); err != nil {
		return err
	}
	s.Invalidate(tmpl.Name)
	return nil
}

// Delete removes a template and invalidates its cache entry.
func (s *CachedStorage) Delete(ctx context.Context, name string) error {
	if err := s.storage.Delete(ctx, name); err != nil {
		return err
	}
	s.Invalidate(name)
	return nil
}

// List returns templates matching the query (bypasses cache).
func (s *CachedStorage) List(ctx context.Context, query *TemplateQuery) ([]*StoredTemplate, error) {
	return s.storage.List(ctx, query)
}

// Exists checks if a template exists, answering from cache when possible.
func (s *CachedStorage) Exists(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, NewStorageClosedError()
	}
	if entry, ok := s.cache[name]; ok && s.isValid(entry) {
		s.mu.Unlock()
		return !entry.notFound, nil
	}
	s.mu.Unlock()

	return s.storage.Exists(ctx, name)
}

// ListVersions returns version numbers (bypasses cache).
func (s *CachedStorage) ListVersions(ctx context.Context, name string) ([]int, error) {
	return s.storage.ListVersions(ctx, name)
}

// Close stops the purge schedule, drops the cache and closes the underlying storage.
func (s *CachedStorage) Close() error {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}

	s.mu.Lock()
	s.closed = true
	s.cache = nil
	s.mu.Unlock()

	return s.storage.Close()
}

// Invalidate removes a template from the cache.
func (s *CachedStorage) Invalidate(name string) {
	s.mu.Lock()
	delete(s.cache, name)
	s.gens[name]++
	s.mu.Unlock()
}

// InvalidateAll clears the entire cache.
func (s *CachedStorage) InvalidateAll() {
	s.mu.Lock()
	if !s.closed {
		s.cache = make(map[string]*cacheEntry)
	}
	s.epoch++
	s.mu.Unlock()
}

// Purge removes expired entries and returns how many were dropped.
func (s *CachedStorage) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for name, entry := range s.cache {
		if !s.isValid(entry) {
			delete(s.cache, name)
			purged++
		}
	}
	if purged > 0 {
		s.logger.Debug(LogMsgCachePurged,
			zap.Int(LogFieldCount, purged),
			zap.Int(LogFieldRemaining, len(s.cache)))
	}
	return purged
}

// Stats returns cache statistics.
func (s *CachedStorage) Stats() CacheStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := CacheStats{Entries: len(s.cache)}
	for _, entry := range s.cache {
		if !s.isValid(entry) {
			continue
		}
		if entry.notFound {
			stats.NegativeEntries++
		} else {
			stats.ValidEntries++
		}
	}
	return stats
}

// isValid reports whether entry is within its TTL. Caller must hold mu.
func (s *CachedStorage) isValid(entry *cacheEntry) bool {
	ttl := s.config.TTL
	if entry.notFound {
		ttl = s.config.NegativeCacheTTL
	}
	return s.now().Sub(entry.cachedAt) < ttl
}

// addEntry caches a result, evicting the least recently accessed entry at capacity.
// Caller must hold mu.
func (s *CachedStorage) addEntry(name string, tmpl *StoredTemplate, notFound bool) {
	if _, exists := s.cache[name]; !exists && len(s.cache) >= s.config.MaxEntries {
		s.evictOldest()
	}
	now := s.now()
	s.cache[name] = &cacheEntry{
		template:   copyStoredTemplate(tmpl),
		notFound:   notFound,
		cachedAt:   now,
		accessedAt: now,
	}
}

// evictOldest removes the least recently accessed entry. Caller must hold mu.
func (s *CachedStorage) evictOldest() {
	var oldestName string
	var oldest *cacheEntry
	for name, entry := range s.cache {
		if oldest == nil || entry.accessedAt.Before(oldest.accessedAt) {
			oldestName, oldest = name, entry
		}
	}
	if oldest != nil {
		delete(s.cache, oldestName)
	}
}
