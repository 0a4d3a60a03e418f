package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"mercator-hq/warden/pkg/config"
)

// ErrNotCloned is returned by operations that need a local clone.
var ErrNotCloned = errors.New("repository not cloned")

// CommitInfo describes a commit.
type CommitInfo struct {
	SHA     string    `json:"sha"`
	Author  string    `json:"author"`
	When    time.Time `json:"when"`
	Message string    `json:"message"`
}

// PullResult reports what a pull moved.
type PullResult struct {
	FromSHA string
	ToSHA   string

	// ChangedFiles are slash-separated paths relative to the repository
	// root.
	ChangedFiles []string
}

// Changed reports whether HEAD moved.
func (p *PullResult) Changed() bool { return p.FromSHA != p.ToSHA }

// Repository is a local clone of one branch.
type Repository struct {
	cfg  config.GitConfig
	auth transport.AuthMethod

	mu   sync.Mutex
	repo *gogit.Repository
}

// NewRepository validates cfg and prepares credentials. Nothing is
// fetched until Open.
func NewRepository(cfg *config.GitConfig) (*Repository, error) {
	if cfg == nil {
		return nil, errors.New("git config is required")
	}
	if cfg.Repository == "" {
		return nil, errors.New("repository is required")
	}
	if cfg.Branch == "" {
		return nil, errors.New("branch is required")
	}
	if cfg.LocalPath == "" {
		return nil, errors.New("local path is required")
	}
	auth, err := authMethod(&cfg.Auth)
	if err != nil {
		return nil, err
	}
	return &Repository{cfg: *cfg, auth: auth}, nil
}

// Open reuses an existing clone at the local path or clones the branch.
func (r *Repository) Open(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := os.Stat(filepath.Join(r.cfg.LocalPath, ".git")); err == nil {
		repo, err := gogit.PlainOpen(r.cfg.LocalPath)
		if err != nil {
			return fmt.Errorf("open clone: %w", err)
		}
		r.repo = repo
		return nil
	}

	if err := os.MkdirAll(r.cfg.LocalPath, 0o755); err != nil {
		return fmt.Errorf("create clone directory: %w", err)
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	repo, err := gogit.PlainCloneContext(ctx, r.cfg.LocalPath, false, &gogit.CloneOptions{
		URL:           r.cfg.Repository,
		Auth:          r.auth,
		ReferenceName: plumbing.NewBranchReferenceName(r.cfg.Branch),
		SingleBranch:  true,
		Depth:         r.cfg.Depth,
	})
	if err != nil {
		return fmt.Errorf("clone %s: %w", r.cfg.Repository, err)
	}
	r.repo = repo
	return nil
}

// Pull fast-forwards the branch and lists the files the new commits
// touched.
func (r *Repository) Pull(ctx context.Context) (*PullResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.repo == nil {
		return nil, ErrNotCloned
	}
	before, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("read HEAD: %w", err)
	}
	wt, err := r.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("worktree: %w", err)
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	err = wt.PullContext(ctx, &gogit.PullOptions{
		RemoteName:    "origin",
		ReferenceName: plumbing.NewBranchReferenceName(r.cfg.Branch),
		SingleBranch:  true,
		Auth:          r.auth,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return nil, fmt.Errorf("pull: %w", err)
	}

	after, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("read HEAD: %w", err)
	}
	result := &PullResult{FromSHA: before.Hash().String(), ToSHA: after.Hash().String()}
	if !result.Changed() {
		return result, nil
	}
	result.ChangedFiles, err = r.changedFiles(before.Hash(), after.Hash())
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Head describes the checked out commit.
func (r *Repository) Head() (*CommitInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.repo == nil {
		return nil, ErrNotCloned
	}
	ref, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("read HEAD: %w", err)
	}
	c, err := r.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("read commit: %w", err)
	}
	return &CommitInfo{
		SHA:     c.Hash.String(),
		Author:  c.Author.Name,
		When:    c.Author.When,
		Message: c.Message,
	}, nil
}

// BundleDir is the bundle tree inside the clone.
func (r *Repository) BundleDir() string {
	return filepath.Join(r.cfg.LocalPath, r.cfg.Path)
}

// relative maps a path inside the clone to the form used in PullResult.
func (r *Repository) relative(path string) string {
	rel, err := filepath.Rel(r.cfg.LocalPath, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

func (r *Repository) changedFiles(from, to plumbing.Hash) ([]string, error) {
	fromCommit, err := r.repo.CommitObject(from)
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", from, err)
	}
	toCommit, err := r.repo.CommitObject(to)
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", to, err)
	}
	fromTree, err := fromCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("read tree: %w", err)
	}
	toTree, err := toCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("read tree: %w", err)
	}
	changes, err := fromTree.Diff(toTree)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}

	files := make([]string, 0, len(changes))
	for _, ch := range changes {
		// Deleted files only have a From side.
		if ch.To.Name != "" {
			files = append(files, ch.To.Name)
		} else {
			files = append(files, ch.From.Name)
		}
	}
	return files, nil
}

func (r *Repository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.cfg.Timeout)
}
