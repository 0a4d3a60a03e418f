package recorder

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func TestHashContent(t *testing.T) {
	tests := []struct {
		name     string
		content  []byte
		expected string
	}{
		{"empty content", []byte{}, ""},
		{"nil content", nil, ""},
		{"json content", []byte(`{"risk_level":"high"}`), sha256Hex([]byte(`{"risk_level":"high"}`))},
		{"at limit", bytes.Repeat([]byte("a"), MaxHashSize), sha256Hex(bytes.Repeat([]byte("a"), MaxHashSize))},
		{"over limit", bytes.Repeat([]byte("a"), MaxHashSize+10), sha256Hex(bytes.Repeat([]byte("a"), MaxHashSize))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HashContent(tt.content); got != tt.expected {
				t.Errorf("HashContent() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
