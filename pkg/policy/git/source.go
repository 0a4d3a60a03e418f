package git

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/warden/pkg/policy/bundle"
)

// DefaultPollInterval is used when no interval is configured.
const DefaultPollInterval = 30 * time.Second

// SyncResult summarizes one pass over the bundle tree.
type SyncResult struct {
	Commit    string
	Published int
	Skipped   int

	// Activated maps tenant to the version made active.
	Activated map[string]string
}

// Source publishes bundles from a Repository into a Registry.
type Source struct {
	repo     *Repository
	registry *bundle.Registry
	interval time.Duration
	activate bool
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSource creates a source. With activate set, the newest candidate
// version of each tenant becomes active after every sync.
func NewSource(repo *Repository, registry *bundle.Registry, interval time.Duration, activate bool) *Source {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Source{
		repo:     repo,
		registry: registry,
		interval: interval,
		activate: activate,
		logger:   slog.Default().With("component", "policy.git"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Sync opens the clone and publishes every bundle file in it. Every file
// is an activation candidate.
func (s *Source) Sync(ctx context.Context) (*SyncResult, error) {
	if err := s.repo.Open(ctx); err != nil {
		return nil, err
	}
	head, err := s.repo.Head()
	if err != nil {
		return nil, err
	}
	return s.publish(ctx, head.SHA, nil)
}

// Poll pulls once. Only files changed by the pulled commits are activation
// candidates. A pull that moves nothing publishes nothing.
func (s *Source) Poll(ctx context.Context) (*SyncResult, error) {
	pull, err := s.repo.Pull(ctx)
	if err != nil {
		return nil, err
	}
	if !pull.Changed() {
		return &SyncResult{Commit: pull.ToSHA}, nil
	}
	changed := make(map[string]bool, len(pull.ChangedFiles))
	for _, f := range pull.ChangedFiles {
		changed[f] = true
	}
	s.logger.Info("policy repository updated",
		"from", short(pull.FromSHA),
		"to", short(pull.ToSHA),
		"changed_files", len(pull.ChangedFiles),
	)
	return s.publish(ctx, pull.ToSHA, changed)
}

// Run polls until ctx is cancelled or Stop is called. Poll failures are
// logged and retried on the next tick.
func (s *Source) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("git source already running")
	}
	s.running = true
	s.mu.Unlock()
	defer close(s.doneCh)

	s.logger.Info("git bundle source started", "interval", s.interval, "activate", s.activate)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.stopCh:
			return nil
		case <-ticker.C:
			if _, err := s.Poll(ctx); err != nil {
				s.logger.Error("policy repository poll failed", "error", err)
			}
		}
	}
}

// Stop ends Run and waits for it to return.
func (s *Source) Stop() error {
	s.mu.Lock()
	running := s.running
	s.running = false
	s.mu.Unlock()
	if running {
		close(s.stopCh)
		<-s.doneCh
	}
	return nil
}

// publish archives every bundle file and, when activating, points each
// tenant at its greatest candidate version. Versions compare as strings.
// A nil changed set makes every file a candidate.
func (s *Source) publish(ctx context.Context, commit string, changed map[string]bool) (*SyncResult, error) {
	files, err := bundle.ScanTree(s.repo.BundleDir(), nil)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{Commit: commit, Activated: make(map[string]string)}
	newest := make(map[string]string)
	for _, f := range files {
		b, err := bundle.ParseFile(f.Path)
		if err == nil {
			_, err = s.registry.Publish(ctx, f.TenantID, f.Version, b, false)
		}
		if err != nil {
			result.Skipped++
			s.logger.Warn("bundle file skipped",
				"path", s.repo.relative(f.Path),
				"commit", short(commit),
				"error", err,
			)
			continue
		}
		result.Published++

		if changed != nil && !changed[s.repo.relative(f.Path)] {
			continue
		}
		if f.Version > newest[f.TenantID] {
			newest[f.TenantID] = f.Version
		}
	}

	if s.activate {
		for tenantID, version := range newest {
			if err := s.registry.Activate(ctx, tenantID, version); err != nil {
				return result, err
			}
			result.Activated[tenantID] = version
		}
	}

	s.logger.Info("policy repository synced",
		"commit", short(commit),
		"published", result.Published,
		"skipped", result.Skipped,
		"activated", len(result.Activated),
	)
	return result, nil
}

func short(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
