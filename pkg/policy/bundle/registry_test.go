package bundle

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/redis/go-redis/v9"

	"mercator-hq/warden/pkg/policy/rules"
	"mercator-hq/warden/pkg/security/authz"
)

func testBundle(version string) *PolicyBundle {
	return &PolicyBundle{
		Version: version,
		Rules: []RuleSpec{
			{ID: "deny-all", Effect: rules.EffectDeny, Reason: "locked down"},
		},
	}
}

func newTestRegistry() *Registry {
	return NewRegistry(NewMemoryBlobStore(), NewMemoryPointerStore())
}

func TestRegistry_PublishActivateLoad(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry()

	info, err := reg.ActiveVersion(ctx, "tenant-a")
	if err != nil {
		t.Fatal(err)
	}
	if info.Version != BuiltinVersion || info.Source != SourceBuiltin {
		t.Errorf("fresh tenant active = %+v, want builtin", info)
	}

	res, err := reg.Publish(ctx, "tenant-a", "v1", testBundle(""), false)
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if !res.Stored || res.Activated || res.Version != "v1" || res.Digest == "" {
		t.Errorf("unexpected publish result %+v", res)
	}

	// Not yet active.
	active, err := reg.Active(ctx, "tenant-a")
	if err != nil {
		t.Fatal(err)
	}
	if active.Version != BuiltinVersion {
		t.Errorf("active version = %q, want builtin", active.Version)
	}

	if err := reg.Activate(ctx, "tenant-a", "v1"); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	info, _ = reg.ActiveVersion(ctx, "tenant-a")
	if info.Version != "v1" || info.Source != SourceStore {
		t.Errorf("active = %+v, want v1 from store", info)
	}
	active, err = reg.Active(ctx, "tenant-a")
	if err != nil {
		t.Fatal(err)
	}
	if active.Version != "v1" || active.Rules[0].ID != "deny-all" {
		t.Errorf("unexpected active bundle %+v", active)
	}
}

func TestRegistry_PublishWithActivate(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry()

	res, err := reg.Publish(ctx, "t", "v2", testBundle("v2"), true)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Activated {
		t.Error("expected activation")
	}
	info, _ := reg.ActiveVersion(ctx, "t")
	if info.Version != "v2" {
		t.Errorf("active = %q, want v2", info.Version)
	}
}

func TestRegistry_PublishRejects(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry()

	if _, err := reg.Publish(ctx, "t", "v1", testBundle("v9"), false); !errors.Is(err, ErrInvalidBundle) {
		t.Errorf("version mismatch: got %v", err)
	}
	if _, err := reg.Publish(ctx, "t", "../etc", testBundle(""), false); !errors.Is(err, ErrInvalidBundle) {
		t.Errorf("unsafe version: got %v", err)
	}
	bad := testBundle("v1")
	bad.Rules[0].Effect = "perhaps"
	if _, err := reg.Publish(ctx, "t", "v1", bad, true); !errors.Is(err, ErrInvalidBundle) {
		t.Errorf("bad effect: got %v", err)
	}
	if _, err := reg.Publish(ctx, "", "v1", testBundle("v1"), false); err == nil {
		t.Error("empty tenant must be rejected")
	}

	// A rejected publish leaves the active pointer alone.
	info, _ := reg.ActiveVersion(ctx, "t")
	if info.Source != SourceBuiltin {
		t.Errorf("active = %+v, want builtin", info)
	}
}

func TestRegistry_VersionsAreImmutable(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry()

	if _, err := reg.Publish(ctx, "t", "v1", testBundle("v1"), false); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Publish(ctx, "t", "v1", testBundle("v1"), false); err != nil {
		t.Errorf("identical republish should succeed: %v", err)
	}

	changed := testBundle("v1")
	changed.Rules[0].Reason = "different"
	if _, err := reg.Publish(ctx, "t", "v1", changed, false); !errors.Is(err, ErrInvalidBundle) {
		t.Errorf("changed republish: got %v", err)
	}
}

func TestRegistry_ActivateUnknownVersion(t *testing.T) {
	reg := newTestRegistry()
	err := reg.Activate(context.Background(), "t", "missing")
	if !errors.Is(err, ErrBundleNotFound) {
		t.Fatalf("Activate() error = %v, want not found", err)
	}
}

func TestRegistry_TenantIsolation(t *testing.T) {
	ctx := context.Background()
	blobs := NewMemoryBlobStore()
	reg := NewRegistry(blobs, NewMemoryPointerStore())

	if _, err := reg.Publish(ctx, "tenant-a", "v1", testBundle("v1"), true); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Load(ctx, "tenant-b", "v1"); !errors.Is(err, ErrBundleNotFound) {
		t.Errorf("tenant-b must not see tenant-a bundles, got %v", err)
	}
	if err := reg.Activate(ctx, "tenant-b", "v1"); !errors.Is(err, ErrBundleNotFound) {
		t.Errorf("tenant-b cannot activate tenant-a bundles, got %v", err)
	}
	if _, err := blobs.Get(ctx, "tenants/tenant-a/policy-bundles/v1.json"); err != nil {
		t.Errorf("archive key layout changed: %v", err)
	}
}

func TestRegistry_LoadRejectsCorruptArchive(t *testing.T) {
	ctx := context.Background()
	blobs := NewMemoryBlobStore()
	_ = blobs.Put(ctx, ArchiveKey("t", "v1"), []byte("not json"))
	reg := NewRegistry(blobs, NewMemoryPointerStore())

	if _, err := reg.Load(ctx, "t", "v1"); !errors.Is(err, ErrInvalidBundle) {
		t.Errorf("Load() error = %v, want invalid bundle", err)
	}
}

func TestFileBlobStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileBlobStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := store.Get(ctx, "tenants/t/x.json"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing key: got %v", err)
	}
	if err := store.Put(ctx, "tenants/t/x.json", []byte(`{"a":1}`)); err != nil {
		t.Fatal(err)
	}
	got, err := store.Get(ctx, "tenants/t/x.json")
	if err != nil || string(got) != `{"a":1}` {
		t.Errorf("Get() = %q, %v", got, err)
	}
	if err := store.Put(ctx, "../escape", []byte("x")); err == nil {
		t.Error("keys escaping the root must be rejected")
	}
}

func TestBlobPointerStore_FileBacked(t *testing.T) {
	ctx := context.Background()
	blobs, err := NewFileBlobStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	reg := NewRegistry(blobs, NewBlobPointerStore(blobs))

	if _, err := reg.Publish(ctx, "acme", "v1", testBundle("v1"), true); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	info, err := reg.ActiveVersion(ctx, "acme")
	if err != nil {
		t.Fatalf("ActiveVersion() error = %v", err)
	}
	if info.Version != "v1" || info.Source != SourceStore {
		t.Errorf("ActiveVersion() = %+v", info)
	}

	raw, err := blobs.Get(ctx, PointerKey("acme"))
	if err != nil || string(raw) != "v1\n" {
		t.Errorf("pointer blob = %q, %v", raw, err)
	}
}

func TestRegistry_TenantIDCannotLeavePartition(t *testing.T) {
	ctx := context.Background()
	blobs, err := NewFileBlobStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	reg := NewRegistry(blobs, NewBlobPointerStore(blobs))

	victim := testBundle("v1")
	victim.Rules[0].ID = "victim-only"
	if _, err := reg.Publish(ctx, "victim", "v1", victim, true); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	for _, id := range []string{"evil/../victim", "evil\\..\\victim", "..", "."} {
		if _, err := reg.ActiveVersion(ctx, id); !errors.Is(err, authz.ErrInvalidTenantID) {
			t.Errorf("ActiveVersion(%q) error = %v, want ErrInvalidTenantID", id, err)
		}
		if _, err := reg.Active(ctx, id); !errors.Is(err, authz.ErrInvalidTenantID) {
			t.Errorf("Active(%q) error = %v, want ErrInvalidTenantID", id, err)
		}
		if _, err := reg.Load(ctx, id, "v1"); !errors.Is(err, authz.ErrInvalidTenantID) {
			t.Errorf("Load(%q) error = %v, want ErrInvalidTenantID", id, err)
		}
		if err := reg.Activate(ctx, id, "v1"); !errors.Is(err, authz.ErrInvalidTenantID) {
			t.Errorf("Activate(%q) error = %v, want ErrInvalidTenantID", id, err)
		}
		if _, err := reg.Publish(ctx, id, "v2", testBundle("v2"), true); !errors.Is(err, authz.ErrInvalidTenantID) {
			t.Errorf("Publish(%q) error = %v, want ErrInvalidTenantID", id, err)
		}
	}
	if _, err := reg.Load(ctx, "victim", "../victim/policy-bundles/v1"); !errors.Is(err, ErrInvalidBundle) {
		t.Errorf("Load() with unsafe version error = %v, want ErrInvalidBundle", err)
	}

	info, err := reg.ActiveVersion(ctx, "victim")
	if err != nil || info.Version != "v1" || info.Source != SourceStore {
		t.Errorf("victim active = %+v, %v; want v1 from store", info, err)
	}
}

// fakeS3 is an in-memory S3API.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	failGet error
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.failGet != nil {
		return nil, f.failGet
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestS3BlobStore(t *testing.T) {
	ctx := context.Background()
	client := &fakeS3{objects: make(map[string][]byte)}
	store := NewS3BlobStore(client, "bundles", "warden/")
	reg := NewRegistry(store, NewMemoryPointerStore())

	if _, err := reg.Publish(ctx, "t", "v1", testBundle("v1"), true); err != nil {
		t.Fatal(err)
	}
	if _, ok := client.objects["bundles/warden/tenants/t/policy-bundles/v1.json"]; !ok {
		t.Errorf("object not written under prefixed key, have %v", client.objects)
	}
	if _, err := store.Get(ctx, "tenants/t/policy-bundles/v2.json"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing object: got %v", err)
	}

	client.failGet = errors.New("throttled")
	_, err := store.Get(ctx, "tenants/t/policy-bundles/v1.json")
	var storeErr *StoreError
	if !errors.As(err, &storeErr) || storeErr.Backend != "s3" {
		t.Errorf("expected s3 StoreError, got %v", err)
	}
}

func TestRedisPointerStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ptr := NewRedisPointerStore(client)
	reg := NewRegistry(NewMemoryBlobStore(), ptr)

	if _, err := ptr.Get(ctx, PointerKey("t")); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing pointer: got %v", err)
	}
	if _, err := reg.Publish(ctx, "t", "v3", testBundle("v3"), true); err != nil {
		t.Fatal(err)
	}
	got, err := mr.Get("tenants/t/policy/active_version")
	if err != nil || got != "v3" {
		t.Errorf("pointer value = %q, %v", got, err)
	}

	mr.Close()
	if _, err := reg.ActiveVersion(ctx, "t"); err == nil {
		t.Error("expected error with redis down")
	}
}

func TestWatcher_SyncAndWatch(t *testing.T) {
	dir := t.TempDir()
	tenantDir := filepath.Join(dir, "tenant-a")
	if err := os.MkdirAll(tenantDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tenantDir, "v1.yaml"), []byte(yamlBundle), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "stray.yaml"), []byte(yamlBundle), 0o644); err != nil {
		t.Fatal(err)
	}

	reg := newTestRegistry()
	cfg := DefaultWatcherConfig()
	cfg.Dir = dir
	cfg.Activate = true
	cfg.DebounceInterval = 20 * time.Millisecond

	w, err := NewWatcher(reg, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n, err := w.Sync(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Sync() published %d, want 1", n)
	}
	info, _ := reg.ActiveVersion(ctx, "tenant-a")
	if info.Version != "v1" {
		t.Errorf("active = %q, want v1", info.Version)
	}

	go func() { _ = w.Watch(ctx) }()
	time.Sleep(50 * time.Millisecond)

	v2 := bytes.Replace([]byte(yamlBundle), []byte("version: v1"), []byte("version: v2"), 1)
	if err := os.WriteFile(filepath.Join(tenantDir, "v2.yaml"), v2, 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		info, _ = reg.ActiveVersion(ctx, "tenant-a")
		if info.Version == "v2" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("watcher did not publish v2, active = %q", info.Version)
}
