package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"
)

var referencePattern = regexp.MustCompile(`\$\{secret:([^}]+)\}`)

type cachedSecret struct {
	value   string
	expires time.Time
}

// Resolver expands ${secret:name} references in configuration values
// against an ordered list of sources. The first source holding the name
// wins. Resolved values are cached for ttl; a zero ttl disables caching.
type Resolver struct {
	sources []Source
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger

	mu    sync.Mutex
	cache map[string]cachedSecret
}

// NewResolver creates a resolver over sources.
func NewResolver(ttl time.Duration, sources ...Source) *Resolver {
	return &Resolver{
		sources: sources,
		ttl:     ttl,
		now:     time.Now,
		logger:  slog.Default().With("component", "security.secrets"),
		cache:   make(map[string]cachedSecret),
	}
}

// HasReference reports whether s contains a ${secret:...} reference.
func HasReference(s string) bool {
	return referencePattern.MatchString(s)
}

// Resolve returns the value for name.
func (r *Resolver) Resolve(ctx context.Context, name string) (string, error) {
	if r.ttl > 0 {
		r.mu.Lock()
		entry, ok := r.cache[name]
		r.mu.Unlock()
		if ok && r.now().Before(entry.expires) {
			return entry.value, nil
		}
	}

	for _, src := range r.sources {
		value, err := src.Lookup(ctx, name)
		if errors.Is(err, ErrSecretNotFound) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("%s source: %w", src.Name(), err)
		}
		r.logger.Debug("secret resolved", "name", maskName(name), "source", src.Name())
		if r.ttl > 0 {
			r.mu.Lock()
			r.cache[name] = cachedSecret{value: value, expires: r.now().Add(r.ttl)}
			r.mu.Unlock()
		}
		return value, nil
	}
	return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
}

// Expand replaces every reference in s. All unresolved names are reported
// together; s is returned unchanged when any reference fails.
func (r *Resolver) Expand(ctx context.Context, s string) (string, error) {
	var errs []error
	out := referencePattern.ReplaceAllStringFunc(s, func(ref string) string {
		name := referencePattern.FindStringSubmatch(ref)[1]
		value, err := r.Resolve(ctx, name)
		if err != nil {
			errs = append(errs, err)
			return ref
		}
		return value
	})
	if len(errs) > 0 {
		return s, errors.Join(errs...)
	}
	return out, nil
}

// ExpandFields expands each field in place. Fields without references are
// left untouched.
func (r *Resolver) ExpandFields(ctx context.Context, fields map[string]*string) error {
	var errs []error
	for label, field := range fields {
		if field == nil || !HasReference(*field) {
			continue
		}
		value, err := r.Expand(ctx, *field)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", label, err))
			continue
		}
		*field = value
	}
	return errors.Join(errs...)
}

// Invalidate drops cached values.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	r.cache = make(map[string]cachedSecret)
	r.mu.Unlock()
}

func maskName(name string) string {
	if len(name) <= 4 {
		return maskSuffix
	}
	return name[:2] + "..." + name[len(name)-2:]
}
