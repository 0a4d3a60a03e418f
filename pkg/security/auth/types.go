package auth

// Credential binds an API key to a tenant identity.
type Credential struct {
	// Name labels the key in logs. The key itself is never logged.
	Name string

	// KeyHash is the hex sha256 of the key.
	KeyHash string

	// TenantID is the tenant the key acts for.
	TenantID string

	// Role is the gateway role granted to the key ("viewer", "builder",
	// "admin"). Empty means viewer.
	Role string

	// Disabled keys are rejected with ErrKeyDisabled.
	Disabled bool
}

// Authenticator resolves an API key to its credential.
type Authenticator interface {
	Authenticate(key string) (*Credential, error)
}

// Source is one place a key may be presented.
type Source struct {
	// Header is the request header carrying the key.
	Header string

	// Scheme, when set, is a required prefix such as "Bearer".
	Scheme string
}

// DefaultSources accepts "Authorization: Bearer <key>" and "X-API-Key: <key>".
func DefaultSources() []Source {
	return []Source{
		{Header: "Authorization", Scheme: "Bearer"},
		{Header: "X-API-Key"},
	}
}
