package auth

import "errors"

var (
	// ErrMissingKey is returned when no configured source carries a key.
	ErrMissingKey = errors.New("missing api key")

	// ErrInvalidKey is returned for keys that match no credential.
	ErrInvalidKey = errors.New("invalid api key")

	// ErrKeyDisabled is returned for a known but disabled key.
	ErrKeyDisabled = errors.New("api key disabled")
)
