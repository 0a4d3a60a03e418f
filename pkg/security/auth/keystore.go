package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// HashKey returns the hex sha256 of key, the form credentials are stored in.
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// KeyStore is an in-memory Authenticator over hashed keys.
type KeyStore struct {
	mu    sync.RWMutex
	creds map[string]*Credential
}

// NewKeyStore creates a store from creds. Hashes are compared in lower case.
func NewKeyStore(creds []Credential) (*KeyStore, error) {
	s := &KeyStore{creds: make(map[string]*Credential, len(creds))}
	for i := range creds {
		if err := s.Put(creds[i]); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Put adds or replaces a credential.
func (s *KeyStore) Put(cred Credential) error {
	hash := strings.ToLower(strings.TrimSpace(cred.KeyHash))
	if len(hash) != sha256.Size*2 {
		return fmt.Errorf("credential %q: key hash must be %d hex characters", cred.Name, sha256.Size*2)
	}
	if _, err := hex.DecodeString(hash); err != nil {
		return fmt.Errorf("credential %q: key hash is not hex: %w", cred.Name, err)
	}
	if strings.TrimSpace(cred.TenantID) == "" {
		return fmt.Errorf("credential %q: tenant id is required", cred.Name)
	}
	cred.KeyHash = hash

	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[hash] = &cred
	return nil
}

// Remove deletes the credential with the given key hash.
func (s *KeyStore) Remove(keyHash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creds, strings.ToLower(keyHash))
}

// Len returns the number of credentials.
func (s *KeyStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.creds)
}

// Authenticate returns a copy of the credential for key.
func (s *KeyStore) Authenticate(key string) (*Credential, error) {
	if key == "" {
		return nil, ErrMissingKey
	}
	hash := HashKey(key)

	s.mu.RLock()
	cred, ok := s.creds[hash]
	s.mu.RUnlock()

	if !ok || subtle.ConstantTimeCompare([]byte(cred.KeyHash), []byte(hash)) != 1 {
		return nil, ErrInvalidKey
	}
	if cred.Disabled {
		return nil, ErrKeyDisabled
	}
	out := *cred
	return &out, nil
}

// ExtractKey returns the first key presented in r by sources.
func ExtractKey(r *http.Request, sources []Source) (string, error) {
	for _, src := range sources {
		value := strings.TrimSpace(r.Header.Get(src.Header))
		if value == "" {
			continue
		}
		if src.Scheme == "" {
			return value, nil
		}
		scheme, token, ok := strings.Cut(value, " ")
		if ok && strings.EqualFold(scheme, src.Scheme) && strings.TrimSpace(token) != "" {
			return strings.TrimSpace(token), nil
		}
	}
	return "", ErrMissingKey
}
