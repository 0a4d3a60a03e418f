package bundle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatcherConfig configures a bundle directory watcher.
//
// The watched directory holds one subdirectory per tenant, each containing
// bundle files named after their version:
//
//	{dir}/{tenant}/{version}.yaml
type WatcherConfig struct {
	// Dir is the root directory to watch.
	Dir string

	// Activate makes every published file the tenant's active bundle.
	Activate bool

	// DebounceInterval is the quiet period before a changed file is
	// published (default: 100ms).
	DebounceInterval time.Duration

	// Extensions lists the bundle file extensions (default: .json, .yaml, .yml).
	Extensions []string
}

// DefaultWatcherConfig returns the default watcher configuration.
func DefaultWatcherConfig() *WatcherConfig {
	return &WatcherConfig{
		DebounceInterval: 100 * time.Millisecond,
		Extensions:       []string{".json", ".yaml", ".yml"},
	}
}

// Watcher publishes bundle files into a Registry as they appear or change.
type Watcher struct {
	registry *Registry
	watcher  *fsnotify.Watcher
	config   *WatcherConfig
	debounce *debouncer
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher creates a watcher feeding registry.
func NewWatcher(registry *Registry, config *WatcherConfig) (*Watcher, error) {
	if config == nil {
		config = DefaultWatcherConfig()
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = 100 * time.Millisecond
	}
	if len(config.Extensions) == 0 {
		config.Extensions = DefaultWatcherConfig().Extensions
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		registry: registry,
		watcher:  fw,
		config:   config,
		debounce: newDebouncer(config.DebounceInterval),
		logger:   slog.Default().With("component", "policy.bundle.watcher"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Sync publishes every bundle file currently in the directory and returns
// the number published. Files that fail to publish are logged and skipped.
func (w *Watcher) Sync(ctx context.Context) (int, error) {
	files, err := ScanTree(w.config.Dir, w.config.Extensions)
	if err != nil {
		return 0, err
	}
	published := 0
	for _, f := range files {
		if err := w.publish(ctx, f); err != nil {
			w.logger.Warn("bundle file skipped", "path", f.Path, "error", err)
			continue
		}
		published++
	}
	return published, nil
}

// Watch blocks until ctx is cancelled or Stop is called, publishing bundle
// files on create and write events.
func (w *Watcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		close(w.doneCh)
	}()

	if err := w.addTree(w.config.Dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.config.Dir, err)
	}
	w.logger.Info("bundle watcher started",
		"dir", w.config.Dir,
		"activate", w.config.Activate,
		"debounce_ms", w.config.DebounceInterval.Milliseconds(),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.stopCh:
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
					}
					continue
				}
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 || !w.isBundleFile(event.Name) {
				continue
			}

			path := event.Name
			w.debounce.trigger(path, func() {
				if err := w.publishFile(ctx, path); err != nil {
					w.logger.Error("bundle publish failed", "path", path, "error", err)
				}
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			w.logger.Error("bundle watcher error", "error", err)
		}
	}
}

// Stop stops a running watcher and releases its resources.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	running := w.running
	w.mu.Unlock()

	if running {
		close(w.stopCh)
		<-w.doneCh
	}
	w.debounce.stop()
	return w.watcher.Close()
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

// publishFile maps {dir}/{tenant}/{version}.ext onto a Publish call.
func (w *Watcher) publishFile(ctx context.Context, path string) error {
	f, err := treeFile(w.config.Dir, path)
	if err != nil {
		return err
	}
	return w.publish(ctx, f)
}

func (w *Watcher) publish(ctx context.Context, f TreeFile) error {
	b, err := ParseFile(f.Path)
	if err != nil {
		return err
	}
	_, err = w.registry.Publish(ctx, f.TenantID, f.Version, b, w.config.Activate)
	return err
}

func (w *Watcher) isBundleFile(path string) bool {
	return hasBundleExt(path, w.config.Extensions)
}

// TreeFile is one bundle file in a {tenant}/{version}.ext tree.
type TreeFile struct {
	Path     string
	TenantID string
	Version  string
}

// ScanTree lists the bundle files under root, sorted by path. Files outside
// a tenant directory and hidden entries are ignored. Nil exts selects the
// default extensions.
func ScanTree(root string, exts []string) ([]TreeFile, error) {
	if len(exts) == 0 {
		exts = DefaultWatcherConfig().Extensions
	}
	var files []TreeFile
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !hasBundleExt(path, exts) {
			return nil
		}
		f, err := treeFile(root, path)
		if err != nil {
			return nil
		}
		files = append(files, f)
		return nil
	})
	return files, err
}

func treeFile(root, path string) (TreeFile, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return TreeFile{}, err
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 2 {
		return TreeFile{}, fmt.Errorf("bundle file %s is not in a tenant directory", rel)
	}
	return TreeFile{
		Path:     path,
		TenantID: parts[0],
		Version:  strings.TrimSuffix(parts[1], filepath.Ext(parts[1])),
	}, nil
}

func hasBundleExt(path string, exts []string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(base))
	for _, valid := range exts {
		if ext == strings.ToLower(valid) {
			return true
		}
	}
	return false
}

// debouncer delays a callback per key until events for that key go quiet.
type debouncer struct {
	interval time.Duration

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

func newDebouncer(interval time.Duration) *debouncer {
	return &debouncer{interval: interval, timers: make(map[string]*time.Timer)}
}

func (d *debouncer) trigger(key string, callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if t, ok := d.timers[key]; ok {
		t.Stop()
	}
	d.timers[key] = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		delete(d.timers, key)
		stopped := d.stopped
		d.mu.Unlock()
		if !stopped {
			callback()
		}
	})
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for key, t := range d.timers {
		t.Stop()
		delete(d.timers, key)
	}
}
