package git

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"mercator-hq/warden/pkg/config"
	"mercator-hq/warden/pkg/policy/bundle"
)

const denyDeleteBundle = `
rules:
  - id: deny-delete
    effect: deny
    action: "delete_*"
    reason: deletes need review
`

const allowReadBundle = `
rules:
  - id: allow-read
    effect: allow
    action: "read_*"
    reason: reads are fine
`

// upstream is a source repository that tests commit into.
type upstream struct {
	t    *testing.T
	dir  string
	repo *gogit.Repository
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("init repo: %v", err)
	}
	return &upstream{t: t, dir: dir, repo: repo}
}

func (u *upstream) commit(msg string, files map[string]string) {
	u.t.Helper()
	wt, err := u.repo.Worktree()
	if err != nil {
		u.t.Fatalf("worktree: %v", err)
	}
	for rel, body := range files {
		path := filepath.Join(u.dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			u.t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			u.t.Fatalf("write %s: %v", rel, err)
		}
		if _, err := wt.Add(rel); err != nil {
			u.t.Fatalf("add %s: %v", rel, err)
		}
	}
	_, err = wt.Commit(msg, &gogit.CommitOptions{
		Author: &object.Signature{Name: "Policy Bot", Email: "bot@example.com", When: time.Now()},
	})
	if err != nil {
		u.t.Fatalf("commit: %v", err)
	}
}

// gitConfig points at u. go-git init creates "master".
func (u *upstream) gitConfig(t *testing.T, activate bool) *config.GitConfig {
	return &config.GitConfig{
		Enabled:    true,
		Repository: u.dir,
		Branch:     "master",
		Path:       "bundles",
		LocalPath:  filepath.Join(t.TempDir(), "clone"),
		Timeout:    10 * time.Second,
		Activate:   activate,
		Auth:       config.GitAuthConfig{Type: "none"},
	}
}

func newRegistry() *bundle.Registry {
	return bundle.NewRegistry(bundle.NewMemoryBlobStore(), bundle.NewMemoryPointerStore())
}

func activeVersion(t *testing.T, reg *bundle.Registry, tenantID string) string {
	t.Helper()
	info, err := reg.ActiveVersion(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("ActiveVersion(%s) error = %v", tenantID, err)
	}
	return info.Version
}

func TestNewRepository(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.GitConfig
		wantErr bool
	}{
		{name: "nil config", cfg: nil, wantErr: true},
		{name: "no repository", cfg: &config.GitConfig{Branch: "main", LocalPath: "x"}, wantErr: true},
		{name: "no branch", cfg: &config.GitConfig{Repository: "r", LocalPath: "x"}, wantErr: true},
		{name: "no local path", cfg: &config.GitConfig{Repository: "r", Branch: "main"}, wantErr: true},
		{
			name:    "bad auth",
			cfg:     &config.GitConfig{Repository: "r", Branch: "main", LocalPath: "x", Auth: config.GitAuthConfig{Type: "kerberos"}},
			wantErr: true,
		},
		{name: "valid", cfg: &config.GitConfig{Repository: "r", Branch: "main", LocalPath: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRepository(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewRepository() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAuthMethod(t *testing.T) {
	dir := t.TempDir()
	looseKey := filepath.Join(dir, "loose")
	if err := os.WriteFile(looseKey, []byte("not a key"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(looseKey, 0o644); err != nil {
		t.Fatal(err)
	}
	garbageKey := filepath.Join(dir, "garbage")
	if err := os.WriteFile(garbageKey, []byte("not a key"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		cfg     config.GitAuthConfig
		wantNil bool
		wantErr bool
	}{
		{name: "empty", cfg: config.GitAuthConfig{}, wantNil: true},
		{name: "none", cfg: config.GitAuthConfig{Type: "none"}, wantNil: true},
		{name: "token", cfg: config.GitAuthConfig{Type: "token", Token: "ghp_x"}},
		{name: "token missing", cfg: config.GitAuthConfig{Type: "token"}, wantErr: true},
		{name: "ssh without path", cfg: config.GitAuthConfig{Type: "ssh"}, wantErr: true},
		{name: "ssh missing file", cfg: config.GitAuthConfig{Type: "ssh", SSHKeyPath: filepath.Join(dir, "absent")}, wantErr: true},
		{name: "ssh open permissions", cfg: config.GitAuthConfig{Type: "ssh", SSHKeyPath: looseKey}, wantErr: true},
		{name: "ssh unparsable key", cfg: config.GitAuthConfig{Type: "ssh", SSHKeyPath: garbageKey}, wantErr: true},
		{name: "unknown", cfg: config.GitAuthConfig{Type: "oauth"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := authMethod(&tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("authMethod() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if (got == nil) != tt.wantNil {
				t.Errorf("authMethod() = %v, wantNil %v", got, tt.wantNil)
			}
		})
	}
}

func TestRepository_NotCloned(t *testing.T) {
	repo, err := NewRepository(&config.GitConfig{Repository: "r", Branch: "main", LocalPath: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Pull(context.Background()); !errors.Is(err, ErrNotCloned) {
		t.Errorf("Pull() error = %v, want ErrNotCloned", err)
	}
	if _, err := repo.Head(); !errors.Is(err, ErrNotCloned) {
		t.Errorf("Head() error = %v, want ErrNotCloned", err)
	}
}

func TestRepository_CloneFailure(t *testing.T) {
	repo, err := NewRepository(&config.GitConfig{
		Repository: filepath.Join(t.TempDir(), "missing"),
		Branch:     "master",
		LocalPath:  filepath.Join(t.TempDir(), "clone"),
		Timeout:    5 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Open(context.Background()); err == nil {
		t.Error("Open() expected error for missing upstream")
	}
}

func TestSource_SyncThenPoll(t *testing.T) {
	up := newUpstream(t)
	up.commit("initial policies", map[string]string{
		"bundles/acme/v1.yaml":    denyDeleteBundle,
		"bundles/beta/v1.yaml":    allowReadBundle,
		"bundles/acme/broken.yml": "rules: [",
		"README.md":               "policies",
	})

	reg := newRegistry()
	cfg := up.gitConfig(t, true)
	repo, err := NewRepository(cfg)
	if err != nil {
		t.Fatal(err)
	}
	src := NewSource(repo, reg, time.Minute, cfg.Activate)
	ctx := context.Background()

	res, err := src.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if res.Published != 2 || res.Skipped != 1 {
		t.Errorf("Sync() published=%d skipped=%d, want 2 and 1", res.Published, res.Skipped)
	}
	if res.Activated["acme"] != "v1" || res.Activated["beta"] != "v1" {
		t.Errorf("Sync() activated = %v", res.Activated)
	}
	head, err := repo.Head()
	if err != nil {
		t.Fatal(err)
	}
	if res.Commit != head.SHA || head.Message != "initial policies" {
		t.Errorf("commit = %s (%q), head = %s", res.Commit, head.Message, head.SHA)
	}

	up.commit("acme v2", map[string]string{"bundles/acme/v2.yaml": allowReadBundle})

	res, err = src.Poll(ctx)
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if len(res.Activated) != 1 || res.Activated["acme"] != "v2" {
		t.Errorf("Poll() activated = %v, want only acme=v2", res.Activated)
	}
	if got := activeVersion(t, reg, "acme"); got != "v2" {
		t.Errorf("acme active = %q, want v2", got)
	}
	if got := activeVersion(t, reg, "beta"); got != "v1" {
		t.Errorf("beta active = %q, want v1", got)
	}
	if _, err := reg.Load(ctx, "acme", "v2"); err != nil {
		t.Errorf("Load(acme, v2) error = %v", err)
	}

	res, err = src.Poll(ctx)
	if err != nil {
		t.Fatalf("second Poll() error = %v", err)
	}
	if res.Published != 0 || len(res.Activated) != 0 {
		t.Errorf("idle Poll() = %+v, want nothing published", res)
	}
}

func TestSource_PublishWithoutActivate(t *testing.T) {
	up := newUpstream(t)
	up.commit("initial", map[string]string{"bundles/acme/v1.yaml": denyDeleteBundle})

	reg := newRegistry()
	cfg := up.gitConfig(t, false)
	repo, err := NewRepository(cfg)
	if err != nil {
		t.Fatal(err)
	}
	res, err := NewSource(repo, reg, 0, false).Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if res.Published != 1 || len(res.Activated) != 0 {
		t.Errorf("Sync() = %+v", res)
	}
	if got := activeVersion(t, reg, "acme"); got != bundle.BuiltinVersion {
		t.Errorf("acme active = %q, want builtin", got)
	}
}

func TestSource_ReusesExistingClone(t *testing.T) {
	up := newUpstream(t)
	up.commit("initial", map[string]string{"bundles/acme/v1.yaml": denyDeleteBundle})
	cfg := up.gitConfig(t, true)

	first, err := NewRepository(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	// An upstream that no longer exists proves the second Open reads the
	// clone on disk.
	cfg.Repository = filepath.Join(t.TempDir(), "gone")
	second, err := NewRepository(cfg)
	if err != nil {
		t.Fatal(err)
	}
	res, err := NewSource(second, newRegistry(), 0, true).Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if res.Activated["acme"] != "v1" {
		t.Errorf("Sync() activated = %v", res.Activated)
	}
}

func TestSource_RunStop(t *testing.T) {
	up := newUpstream(t)
	up.commit("initial", map[string]string{"bundles/acme/v1.yaml": denyDeleteBundle})
	cfg := up.gitConfig(t, true)
	repo, err := NewRepository(cfg)
	if err != nil {
		t.Fatal(err)
	}
	reg := newRegistry()
	src := NewSource(repo, reg, 20*time.Millisecond, true)
	if _, err := src.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx) }()

	up.commit("acme v2", map[string]string{"bundles/acme/v2.yaml": allowReadBundle})
	deadline := time.Now().Add(3 * time.Second)
	for activeVersion(t, reg, "acme") != "v2" && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if got := activeVersion(t, reg, "acme"); got != "v2" {
		t.Errorf("acme active = %q, want v2 after polling", got)
	}

	if err := src.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after Stop")
	}
}

func TestShort(t *testing.T) {
	if got := short("0123456789abcdef"); got != "01234567" {
		t.Errorf("short() = %q", got)
	}
	if got := short("abc"); got != "abc" {
		t.Errorf("short() = %q", got)
	}
}
