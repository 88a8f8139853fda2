package doctemplate

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Library error messages
const (
	ErrMsgNilStorage   = "storage is nil"
	ErrMsgImportFailed = "importing template directory failed"
)

// Library resolves named templates through a TemplateStorage and keeps
// their parsed form so each name is parsed once per version.
type Library struct {
	engine  *Engine
	storage TemplateStorage
	logger  *zap.Logger

	mu     sync.RWMutex
	parsed map[string]*libraryEntry
	// gens counts invalidations per name and epoch counts InvalidateAll
	// calls. A Load only caches its result if neither moved during the fetch.
	gens  map[string]uint64
	epoch uint64
}

type libraryEntry struct {
	template *Template
	version  int
}

// LibraryConfig configures a Library.
type LibraryConfig struct {
	// Storage is the template storage backend (required).
	Storage TemplateStorage

	// Engine parses and merges the stored sources.
	// If nil, a new engine with default options is created.
	Engine *Engine
}

// LibraryStats describes the parsed template cache.
type LibraryStats struct {
	Entries int
	Names   []string
	// Versions maps each cached name to the stored version it was parsed from.
	Versions map[string]int
}

// NewLibrary creates a Library over the configured storage.
func NewLibrary(config LibraryConfig) (*Library, error) {
	if config.Storage == nil {
		return nil, &StorageError{Message: ErrMsgNilStorage}
	}

	engine := config.Engine
	if engine == nil {
		var err error
		engine, err = New()
		if err != nil {
			return nil, err
		}
	}

	return &Library{
		engine:  engine,
		storage: config.Storage,
		logger:  engine.Logger(),
		parsed:  make(map[string]*libraryEntry),
		gens:    make(map[string]uint64),
	}, nil
}

// MustNewLibrary creates a Library, panicking on error.
func MustNewLibrary(config LibraryConfig) *Library {
	lib, err := NewLibrary(config)
	if err != nil {
		panic(err)
	}
	return lib
}

// Load returns the parsed latest version of name.
func (l *Library) Load(ctx context.Context, name string) (*Template, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	entry, ok := l.parsed[name]
	gen, epoch := l.gens[name], l.epoch
	l.mu.RUnlock()
	if ok {
		l.engine.config.metrics.observeLookup(MetricResultHit)
		return entry.template, nil
	}

	stored, err := l.storage.Get(ctx, name)
	if err != nil {
		l.engine.config.metrics.observeLookup(MetricResultError)
		return nil, err
	}
	tmpl, err := l.engine.Parse(stored.Source)
	if err != nil {
		l.engine.config.metrics.observeLookup(MetricResultError)
		return nil, err
	}
	l.engine.config.metrics.observeLookup(MetricResultMiss)

	l.mu.Lock()
	if l.gens[name] != gen || l.epoch != epoch {
		l.mu.Unlock()
		return tmpl, nil
	}
	l.parsed[name] = &libraryEntry{template: tmpl, version: stored.Version}
	l.mu.Unlock()

	l.logger.Debug(LogMsgLibraryLoaded,
		zap.String(LogFieldName, name),
		zap.Int(LogFieldVersion, stored.Version),
		zap.Int(LogFieldNodes, tmpl.NodeCount()))
	return tmpl, nil
}

// LoadVersion parses a specific stored version. The result is not cached.
func (l *Library) LoadVersion(ctx context.Context, name string, version int) (*Template, error) {
	stored, err := l.storage.GetVersion(ctx, name, version)
	if err != nil {
		return nil, err
	}
	return l.engine.Parse(stored.Source)
}

// Merge merges the latest version of name against src.
func (l *Library) Merge(ctx context.Context, name string, src MergeSource) (string, error) {
	tmpl, err := l.Load(ctx, name)
	if err != nil {
		return "", err
	}
	return tmpl.Merge(ctx, src)
}

// MergeTo merges the latest version of name into w and reports what was merged.
func (l *Library) MergeTo(ctx context.Context, name string, w io.Writer, src MergeSource) (*MergeReport, error) {
	tmpl, err := l.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	return tmpl.MergeWithReport(ctx, w, src)
}

// Save validates tmpl.Source by parsing it, then stores a new version.
func (l *Library) Save(ctx context.Context, tmpl *StoredTemplate) error {
	if _, err := l.engine.Parse(tmpl.Source); err != nil {
		return err
	}
	if err := l.storage.Save(ctx, tmpl); err != nil {
		return err
	}
	l.Invalidate(tmpl.Name)
	return nil
}

// Delete removes all versions of name from storage.
func (l *Library) Delete(ctx context.Context, name string) error {
	if err := l.storage.Delete(ctx, name); err != nil {
		return err
	}
	l.Invalidate(name)
	return nil
}

// Invalidate drops the parsed template for name, and the storage cache entry
// when the storage caches.
func (l *Library) Invalidate(name string) {
	l.mu.Lock()
	_, existed := l.parsed[name]
	delete(l.parsed, name)
	l.gens[name]++
	l.mu.Unlock()

	if cached, ok := l.storage.(*CachedStorage); ok {
		cached.Invalidate(name)
	}
	if existed {
		l.logger.Debug(LogMsgLibraryInvalidated, zap.String(LogFieldName, name))
	}
}

// InvalidateAll drops every parsed template.
func (l *Library) InvalidateAll() {
	l.mu.Lock()
	l.parsed = make(map[string]*libraryEntry)
	l.epoch++
	l.mu.Unlock()

	if cached, ok := l.storage.(*CachedStorage); ok {
		cached.InvalidateAll()
	}
}

// ImportDir stores every *.tmpl file in dir under its base name. A file whose
// pre-processed source equals the latest stored version is skipped. It returns
// the number of templates saved.
func (l *Library) ImportDir(ctx context.Context, dir string, pre PreProcessor) (int, error) {
	if pre == nil {
		pre = PassthroughPreProcessor{}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, NewConfigError(ErrMsgImportFailed, dir, err)
	}

	saved := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != TemplateFileExt {
			continue
		}
		changed, err := l.ImportFile(ctx, filepath.Join(dir, entry.Name()), pre)
		if err != nil {
			return saved, err
		}
		if changed {
			saved++
		}
	}
	return saved, nil
}

// ImportFile stores one template file under its base name without extension.
// It reports false when the source equals the latest stored version.
func (l *Library) ImportFile(ctx context.Context, path string, pre PreProcessor) (bool, error) {
	if pre == nil {
		pre = PassthroughPreProcessor{}
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	source, err := l.readSource(ctx, path, pre)
	if err != nil {
		return false, err
	}
	if current, err := l.storage.Get(ctx, name); err == nil && current.Source == source {
		return false, nil
	}
	if err := l.Save(ctx, &StoredTemplate{Name: name, Source: source}); err != nil {
		return false, err
	}
	return true, nil
}

func (l *Library) readSource(ctx context.Context, path string, pre PreProcessor) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", NewConfigError(ErrMsgImportFailed, path, err)
	}
	defer f.Close()

	source, err := pre.PreProcess(ctx, f)
	if err != nil {
		return "", NewPreProcessError(err)
	}
	return source, nil
}

// Stats returns the parsed template cache contents.
func (l *Library) Stats() LibraryStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	names := make([]string, 0, len(l.parsed))
	versions := make(map[string]int, len(l.parsed))
	for name, entry := range l.parsed {
		names = append(names, name)
		versions[name] = entry.version
	}
	sort.Strings(names)
	return LibraryStats{Entries: len(names), Names: names, Versions: versions}
}

// Engine returns the engine used for parsing and merging.
func (l *Library) Engine() *Engine {
	return l.engine
}

// Storage returns the underlying storage backend.
func (l *Library) Storage() TemplateStorage {
	return l.storage
}

// Close drops the parsed cache and closes the storage.
func (l *Library) Close() error {
	l.mu.Lock()
	l.parsed = make(map[string]*libraryEntry)
	l.epoch++
	l.mu.Unlock()

	return l.storage.Close()
}
