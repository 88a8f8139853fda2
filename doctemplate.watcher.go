package doctemplate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher error messages
const (
	ErrMsgNilLibrary     = "library is nil"
	ErrMsgWatchDirEmpty  = "watch directory is empty"
	ErrMsgWatcherCreate  = "creating file watcher failed"
	ErrMsgWatcherAdd     = "watching directory failed"
	ErrMsgWatcherRunning = "watcher is already running"
	ErrMsgWatcherClosed  = "watcher channel closed"
	ErrMsgWatcherNotADir = "watch path is not a directory"
)

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	// Dir is the directory to watch. Both a flat directory of *.tmpl files
	// and a FilesystemStorage root (<name>/v<N>.json) are understood.
	Dir string

	// Debounce delays handling until a file has been quiet this long.
	// Default: 200ms
	Debounce time.Duration

	// PreProcessor is applied to changed *.tmpl files before they are saved.
	PreProcessor PreProcessor
}

// Watcher keeps a Library in step with a template directory.
// A changed *.tmpl file is re-imported into storage; a changed version file
// of a filesystem storage only invalidates the library entry.
type Watcher struct {
	library *Library
	config  WatcherConfig
	watcher *fsnotify.Watcher
	logger  *zap.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	running bool
	closed  bool
	wg      sync.WaitGroup
}

// NewWatcher creates a watcher for lib. Call Run to start it.
func NewWatcher(lib *Library, config WatcherConfig) (*Watcher, error) {
	if lib == nil {
		return nil, NewConfigError(ErrMsgNilLibrary, config.Dir, nil)
	}
	if config.Dir == "" {
		return nil, NewConfigError(ErrMsgWatchDirEmpty, config.Dir, nil)
	}
	info, err := os.Stat(config.Dir)
	if err != nil {
		return nil, NewConfigError(ErrMsgWatcherAdd, config.Dir, err)
	}
	if !info.IsDir() {
		return nil, NewConfigError(ErrMsgWatcherNotADir, config.Dir, nil)
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultWatchDebounce
	}
	if config.PreProcessor == nil {
		config.PreProcessor = PassthroughPreProcessor{}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, NewConfigError(ErrMsgWatcherCreate, config.Dir, err)
	}

	return &Watcher{
		library: lib,
		config:  config,
		watcher: fw,
		logger:  lib.logger,
		pending: make(map[string]*time.Timer),
	}, nil
}

// Run watches until ctx is done, then releases the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.running || w.closed {
		w.mu.Unlock()
		return NewConfigError(ErrMsgWatcherRunning, w.config.Dir, nil)
	}
	w.running = true
	w.mu.Unlock()
	defer w.Close()

	if err := w.addTree(w.config.Dir); err != nil {
		return err
	}
	w.logger.Info(LogMsgWatcherStarted,
		zap.String(LogFieldPath, w.config.Dir),
		zap.Duration(LogFieldDuration, w.config.Debounce))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info(LogMsgWatcherStopped, zap.String(LogFieldPath, w.config.Dir))
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return NewConfigError(ErrMsgWatcherClosed, w.config.Dir, nil)
			}
			w.handle(ctx, event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return NewConfigError(ErrMsgWatcherClosed, w.config.Dir, nil)
			}
			w.logger.Warn(LogMsgWatcherError, zap.Error(err))
		}
	}
}

// Close cancels pending reloads and closes the underlying watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for path, timer := range w.pending {
		if timer.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	w.mu.Unlock()

	w.wg.Wait()
	return w.watcher.Close()
}

// addTree watches dir and its immediate subdirectories.
func (w *Watcher) addTree(dir string) error {
	if err := w.watcher.Add(dir); err != nil {
		return NewConfigError(ErrMsgWatcherAdd, dir, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return NewConfigError(ErrMsgWatcherAdd, dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			sub := filepath.Join(dir, entry.Name())
			if err := w.watcher.Add(sub); err != nil {
				return NewConfigError(ErrMsgWatcherAdd, sub, err)
			}
		}
	}
	return nil
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	// A new template directory in a filesystem storage root.
	if event.Has(fsnotify.Create) && filepath.Dir(event.Name) == filepath.Clean(w.config.Dir) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watcher.Add(event.Name); err != nil {
				w.logger.Warn(LogMsgWatcherError, zap.String(LogFieldPath, event.Name), zap.Error(err))
			}
			return
		}
	}

	name, ok := TemplateNameFromPath(w.config.Dir, event.Name)
	if !ok {
		return
	}
	w.logger.Debug(LogMsgWatcherEvent,
		zap.String(LogFieldPath, event.Name),
		zap.String(LogFieldName, name),
		zap.String(LogFieldOp, event.Op.String()))

	w.schedule(event.Name, func() { w.reload(ctx, name, event.Name) })
}

// schedule runs fn once path has been quiet for the debounce interval.
func (w *Watcher) schedule(path string, fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if timer, ok := w.pending[path]; ok && timer.Stop() {
		w.wg.Done()
	}
	w.wg.Add(1)
	w.pending[path] = time.AfterFunc(w.config.Debounce, func() {
		defer w.wg.Done()
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		fn()
	})
}

func (w *Watcher) reload(ctx context.Context, name, path string) {
	if filepath.Ext(path) == TemplateFileExt {
		if _, err := os.Stat(path); err == nil {
			if _, err := w.library.ImportFile(ctx, path, w.config.PreProcessor); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Warn(LogMsgWatcherReimportFailed,
					zap.String(LogFieldPath, path),
					zap.String(LogFieldName, name),
					zap.Error(err))
			}
			return
		}
	}
	w.library.Invalidate(name)
}

// TemplateNameFromPath maps a changed file under root to the template name it
// belongs to: "<root>/<name>.tmpl" or "<root>/<name>/v<N>.json".
func TemplateNameFromPath(root, path string) (string, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	switch len(parts) {
	case 1:
		if filepath.Ext(parts[0]) == TemplateFileExt {
			name := strings.TrimSuffix(parts[0], TemplateFileExt)
			return name, name != ""
		}
	case 2:
		if _, ok := versionFromFilename(parts[1]); ok {
			return parts[0], validateTemplateName(parts[0]) == nil
		}
	}
	return "", false
}
