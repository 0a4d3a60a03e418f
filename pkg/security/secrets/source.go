package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ErrSecretNotFound is returned when a source has no value for a name.
var ErrSecretNotFound = errors.New("secret not found")

// Source looks up credential values by name.
type Source interface {
	Lookup(ctx context.Context, name string) (string, error)
	Name() string
}

// EnvSource reads secrets from environment variables. The name
// "postgres-url" with prefix "WARDEN_SECRET_" reads
// WARDEN_SECRET_POSTGRES_URL.
type EnvSource struct {
	Prefix string
}

// Lookup implements Source.
func (s EnvSource) Lookup(_ context.Context, name string) (string, error) {
	value, ok := os.LookupEnv(s.variable(name))
	if !ok || value == "" {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
	}
	return value, nil
}

// Name implements Source.
func (s EnvSource) Name() string { return "env" }

func (s EnvSource) variable(name string) string {
	return s.Prefix + strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(name))
}

// DirSource reads one secret per file from a directory, the layout used by
// mounted Kubernetes secrets. Files must be mode 0600 or 0400. Values are
// trimmed and memoized until the directory changes.
type DirSource struct {
	dir    string
	logger *slog.Logger

	mu      sync.RWMutex
	values  map[string]string
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewDirSource opens dir. With watch set, file writes, creates, removals
// and renames drop the memoized values.
func NewDirSource(dir string, watch bool) (*DirSource, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("secrets dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("secrets dir %s is not a directory", dir)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("secrets dir: %w", err)
	}

	s := &DirSource{
		dir:    abs,
		logger: slog.Default().With("component", "security.secrets"),
		values: make(map[string]string),
		done:   make(chan struct{}),
	}
	if !watch {
		return s, nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create secrets watcher: %w", err)
	}
	if err := w.Add(abs); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch secrets dir: %w", err)
	}
	s.watcher = w
	go s.watch()
	return s, nil
}

// Lookup implements Source.
func (s *DirSource) Lookup(_ context.Context, name string) (string, error) {
	s.mu.RLock()
	value, ok := s.values[name]
	s.mu.RUnlock()
	if ok {
		return value, nil
	}

	path := filepath.Join(s.dir, name)
	if filepath.Dir(path) != s.dir {
		return "", fmt.Errorf("invalid secret name %q", name)
	}
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("stat secret %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("secret %s is not a regular file", name)
	}
	if perm := info.Mode().Perm(); perm != 0o600 && perm != 0o400 {
		return "", fmt.Errorf("secret %s has mode %o, want 0600 or 0400", name, perm)
	}
	data, err := os.ReadFile(path) // #nosec G304 -- confined to s.dir above
	if err != nil {
		return "", fmt.Errorf("read secret %s: %w", name, err)
	}
	value = strings.TrimSpace(string(data))

	s.mu.Lock()
	s.values[name] = value
	s.mu.Unlock()
	return value, nil
}

// Name implements Source.
func (s *DirSource) Name() string { return "dir" }

// Forget drops memoized values.
func (s *DirSource) Forget() {
	s.mu.Lock()
	s.values = make(map[string]string)
	s.mu.Unlock()
}

// Close stops watching.
func (s *DirSource) Close() error {
	if s.watcher == nil {
		return nil
	}
	close(s.done)
	return s.watcher.Close()
}

func (s *DirSource) watch() {
	const changes = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&changes == 0 {
				continue
			}
			s.logger.Debug("secrets dir changed", "file", filepath.Base(ev.Name), "op", ev.Op.String())
			s.Forget()
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error("secrets watcher error", "error", err)
		}
	}
}
