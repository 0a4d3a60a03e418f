package risk

import (
	"fmt"
	"strings"
)

// Level is an ordered risk severity. The zero value is Low.
type Level int

const (
	// Low covers read-only and introspection actions.
	Low Level = iota
	// Medium covers ordinary mutations and is the default.
	Medium
	// High covers deploys, deletes and credential handling.
	High
	// Critical covers irreversible and destructive operations.
	Critical
)

var levelNames = [...]string{"low", "medium", "high", "critical"}

// String returns the lower-case name of the level.
func (l Level) String() string {
	if l < Low || l > Critical {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

// AtLeast reports whether l is at least as severe as other.
func (l Level) AtLeast(other Level) bool {
	return l >= other
}

// ParseLevel parses a level name case-insensitively.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return Low, nil
	case "medium":
		return Medium, nil
	case "high":
		return High, nil
	case "critical":
		return Critical, nil
	}
	return Low, fmt.Errorf("unknown risk level %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	if l < Low || l > Critical {
		return nil, fmt.Errorf("invalid risk level %d", int(l))
	}
	return []byte(levelNames[l]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
