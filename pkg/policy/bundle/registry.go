package bundle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"mercator-hq/warden/pkg/security/authz"
)

// Active version sources.
const (
	SourceStore   = "store"
	SourceBuiltin = "builtin"
)

var versionPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ActiveInfo describes a tenant's active bundle version.
type ActiveInfo struct {
	Version string `json:"version"`
	Source  string `json:"source"`
}

// PublishResult is returned by Registry.Publish.
type PublishResult struct {
	Version   string `json:"version"`
	Digest    string `json:"digest"`
	Stored    bool   `json:"stored"`
	Activated bool   `json:"activated"`
}

// Registry publishes, activates and loads per-tenant bundles.
//
// Archived bundles are immutable, so loaded bundles are cached by archive
// key for the life of the registry.
type Registry struct {
	blobs    BlobStore
	pointers PointerStore
	logger   *slog.Logger

	mu    sync.RWMutex
	cache map[string]*PolicyBundle
}

// NewRegistry creates a Registry over the given stores.
func NewRegistry(blobs BlobStore, pointers PointerStore) *Registry {
	return &Registry{
		blobs:    blobs,
		pointers: pointers,
		logger:   slog.Default().With("component", "policy.bundle"),
		cache:    make(map[string]*PolicyBundle),
	}
}

// checkKey rejects tenant ids and versions that would not stay inside the
// tenant's partition.
func checkKey(tenantID, version string) error {
	if err := authz.ValidateTenantID(tenantID); err != nil {
		return err
	}
	if !versionPattern.MatchString(version) {
		return NewInvalidBundleError(version, "version must be 1-128 characters of [A-Za-z0-9._-]")
	}
	return nil
}

// ArchiveKey returns the blob key of a tenant's bundle version.
func ArchiveKey(tenantID, version string) string {
	return authz.PartitionKey(tenantID, "policy-bundles", version+".json")
}

// PointerKey returns the key of a tenant's active version pointer.
func PointerKey(tenantID string) string {
	return authz.PartitionKey(tenantID, "policy", "active_version")
}

// Publish validates and archives b as version for tenantID, and activates
// it when activate is set. An empty bundle version takes version; a
// differing one is rejected. Republishing identical content is a no-op;
// republishing different content under an existing version is rejected.
func (r *Registry) Publish(ctx context.Context, tenantID, version string, b *PolicyBundle, activate bool) (*PublishResult, error) {
	if err := authz.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}
	if b == nil {
		return nil, NewInvalidBundleError(version, "bundle is required")
	}
	if version == "" {
		version = b.Version
	}
	if b.Version == "" {
		b.Version = version
	}
	if b.Version != version {
		return nil, NewInvalidBundleError(b.Version, "bundle version must match path version")
	}
	if !versionPattern.MatchString(version) {
		return nil, NewInvalidBundleError(version, "version must be 1-128 characters of [A-Za-z0-9._-]")
	}
	if err := Validate(b); err != nil {
		return nil, err
	}

	digest, err := Digest(b)
	if err != nil {
		return nil, err
	}

	existing, err := r.Load(ctx, tenantID, version)
	switch {
	case err == nil:
		existingDigest, err := Digest(existing)
		if err != nil {
			return nil, err
		}
		if existingDigest != digest {
			return nil, NewInvalidBundleError(version, "version already published with different content")
		}
	case errors.Is(err, ErrBundleNotFound):
		payload, err := Encode(b)
		if err != nil {
			return nil, fmt.Errorf("encode bundle: %w", err)
		}
		key := ArchiveKey(tenantID, version)
		if err := r.blobs.Put(ctx, key, payload); err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.cache[key] = b
		r.mu.Unlock()
	default:
		return nil, err
	}

	result := &PublishResult{Version: version, Digest: digest, Stored: true}
	if activate {
		if err := r.pointers.Put(ctx, PointerKey(tenantID), version); err != nil {
			return nil, err
		}
		result.Activated = true
	}

	r.logger.Info("policy bundle published",
		"tenant_id", tenantID,
		"version", version,
		"digest", digest,
		"rules", len(b.Rules),
		"activated", result.Activated,
	)
	return result, nil
}

// Activate points tenantID at an archived version.
func (r *Registry) Activate(ctx context.Context, tenantID, version string) error {
	if err := checkKey(tenantID, version); err != nil {
		return err
	}
	if _, err := r.Load(ctx, tenantID, version); err != nil {
		return err
	}
	if err := r.pointers.Put(ctx, PointerKey(tenantID), version); err != nil {
		return err
	}
	r.logger.Info("policy bundle activated", "tenant_id", tenantID, "version", version)
	return nil
}

// ActiveVersion reports the tenant's active version, or the builtin
// version when none has been activated.
func (r *Registry) ActiveVersion(ctx context.Context, tenantID string) (ActiveInfo, error) {
	if err := authz.ValidateTenantID(tenantID); err != nil {
		return ActiveInfo{}, err
	}
	v, err := r.pointers.Get(ctx, PointerKey(tenantID))
	if errors.Is(err, ErrNotFound) {
		return ActiveInfo{Version: BuiltinVersion, Source: SourceBuiltin}, nil
	}
	if err != nil {
		return ActiveInfo{}, err
	}
	return ActiveInfo{Version: v, Source: SourceStore}, nil
}

// Active returns the tenant's active bundle, or Builtin when none has been
// activated. Store and decode failures are returned to the caller.
func (r *Registry) Active(ctx context.Context, tenantID string) (*PolicyBundle, error) {
	info, err := r.ActiveVersion(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if info.Source == SourceBuiltin {
		return Builtin(), nil
	}
	return r.Load(ctx, tenantID, info.Version)
}

// Load returns an archived bundle. Missing versions yield an error matching
// ErrBundleNotFound. Returned bundles are shared and must not be modified.
func (r *Registry) Load(ctx context.Context, tenantID, version string) (*PolicyBundle, error) {
	if err := checkKey(tenantID, version); err != nil {
		return nil, err
	}
	key := ArchiveKey(tenantID, version)

	r.mu.RLock()
	cached, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	data, err := r.blobs.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: tenant %s version %s", ErrBundleNotFound, tenantID, version)
	}
	if err != nil {
		return nil, err
	}

	var b PolicyBundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, NewInvalidBundleError(version, "archived bundle is not valid JSON: "+err.Error())
	}
	if err := Validate(&b); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[key] = &b
	r.mu.Unlock()
	return &b, nil
}
