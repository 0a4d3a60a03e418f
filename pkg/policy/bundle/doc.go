// Package bundle manages versioned, immutable policy bundles.
//
// A bundle carries an ordered rule list and optional rate limit overrides.
// Bundles are archived per tenant in a BlobStore under
//
//	tenants/{tenant}/policy-bundles/{version}.json
//
// and one version per tenant is made active through a PointerStore entry at
//
//	tenants/{tenant}/policy/active_version
//
// The Registry ties the two together. When no version is active, or the
// active bundle cannot be loaded, callers fall back to Builtin.
//
// Bundle documents are JSON or YAML. Publishing validates them against an
// embedded JSON Schema and a set of semantic checks; a rejected bundle never
// reaches the archive. Digest returns the sha256 of the RFC 8785 canonical
// form, which is stable across key order and whitespace.
package bundle
