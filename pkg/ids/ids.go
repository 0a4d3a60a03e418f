// Package ids generates identifiers for decisions, escalations and rules.
package ids

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// New returns a random 128-bit identifier as 32 lower-case hex characters.
func New() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}
