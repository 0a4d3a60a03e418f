package recorder

import (
	"crypto/sha256"
	"encoding/hex"
)

// MaxHashSize caps how many bytes of stored context are hashed.
const MaxHashSize = 1024 * 1024 // 1MB

// HashContent returns the hex sha256 of content, or of its first
// MaxHashSize bytes. Empty content hashes to "".
func HashContent(content []byte) string {
	if len(content) == 0 {
		return ""
	}
	if len(content) > MaxHashSize {
		content = content[:MaxHashSize]
	}
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
