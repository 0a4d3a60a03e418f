/*
Package auth authenticates gateway callers by API key.

Each key is stored only as its sha256 hash and is bound to one tenant and
one gateway role. When keys are configured the tenant gateway takes the
caller's tenant and role from the key instead of trusting request headers.

	store, err := auth.NewKeyStore([]auth.Credential{{
		Name:     "ci-deployer",
		KeyHash:  auth.HashKey("wk_live_..."),
		TenantID: "acme",
		Role:     "builder",
	}})

	key, err := auth.ExtractKey(r, auth.DefaultSources())
	cred, err := store.Authenticate(key)

Keys are accepted from "Authorization: Bearer <key>" or "X-API-Key".
Query parameters are not a source.

# Configuration

	security:
	  api_keys:
	    - name: ci-deployer
	      key_sha256: "9f86d08188..."
	      tenant_id: acme
	      role: builder
*/
package auth
