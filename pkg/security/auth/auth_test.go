package auth

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
)

func newStore(t *testing.T) *KeyStore {
	t.Helper()
	store, err := NewKeyStore([]Credential{
		{Name: "acme-builder", KeyHash: HashKey("key-acme"), TenantID: "acme", Role: "builder"},
		{Name: "old", KeyHash: strings.ToUpper(HashKey("key-old")), TenantID: "acme", Disabled: true},
	})
	if err != nil {
		t.Fatalf("NewKeyStore() error = %v", err)
	}
	return store
}

func TestKeyStore_Authenticate(t *testing.T) {
	store := newStore(t)

	tests := []struct {
		name    string
		key     string
		wantErr error
		tenant  string
	}{
		{name: "valid", key: "key-acme", tenant: "acme"},
		{name: "unknown", key: "key-nope", wantErr: ErrInvalidKey},
		{name: "disabled", key: "key-old", wantErr: ErrKeyDisabled},
		{name: "empty", key: "", wantErr: ErrMissingKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred, err := store.Authenticate(tt.key)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Authenticate() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Authenticate() error = %v", err)
			}
			if cred.TenantID != tt.tenant || cred.Role != "builder" {
				t.Errorf("credential = %+v", cred)
			}
		})
	}
}

func TestKeyStore_AuthenticateReturnsCopy(t *testing.T) {
	store := newStore(t)
	cred, _ := store.Authenticate("key-acme")
	cred.TenantID = "globex"

	again, _ := store.Authenticate("key-acme")
	if again.TenantID != "acme" {
		t.Error("caller mutated the stored credential")
	}
}

func TestKeyStore_PutValidation(t *testing.T) {
	tests := []struct {
		name string
		cred Credential
	}{
		{"short hash", Credential{Name: "a", KeyHash: "abc", TenantID: "acme"}},
		{"non-hex hash", Credential{Name: "b", KeyHash: strings.Repeat("z", 64), TenantID: "acme"}},
		{"no tenant", Credential{Name: "c", KeyHash: HashKey("k")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewKeyStore([]Credential{tt.cred}); err == nil {
				t.Error("NewKeyStore() error = nil, want error")
			}
		})
	}
}

func TestKeyStore_Remove(t *testing.T) {
	store := newStore(t)
	store.Remove(HashKey("key-acme"))
	if _, err := store.Authenticate("key-acme"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Authenticate() after Remove error = %v, want ErrInvalidKey", err)
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
}

func TestExtractKey(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
		wantErr bool
	}{
		{name: "bearer", headers: map[string]string{"Authorization": "Bearer key-1"}, want: "key-1"},
		{name: "bearer lower case", headers: map[string]string{"Authorization": "bearer key-1"}, want: "key-1"},
		{name: "x-api-key", headers: map[string]string{"X-API-Key": "key-2"}, want: "key-2"},
		{name: "bearer wins", headers: map[string]string{"Authorization": "Bearer key-1", "X-API-Key": "key-2"}, want: "key-1"},
		{name: "basic scheme ignored", headers: map[string]string{"Authorization": "Basic abc"}, wantErr: true},
		{name: "empty bearer", headers: map[string]string{"Authorization": "Bearer "}, wantErr: true},
		{name: "none", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			got, err := ExtractKey(r, DefaultSources())
			if tt.wantErr {
				if !errors.Is(err, ErrMissingKey) {
					t.Errorf("ExtractKey() error = %v, want ErrMissingKey", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ExtractKey() = %q, %v; want %q", got, err, tt.want)
			}
		})
	}
}

func BenchmarkAuthenticate(b *testing.B) {
	store, _ := NewKeyStore([]Credential{{Name: "k", KeyHash: HashKey("key-acme"), TenantID: "acme"}})
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = store.Authenticate("key-acme")
	}
}
