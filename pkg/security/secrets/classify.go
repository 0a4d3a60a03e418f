package secrets

import (
	"fmt"
	"strings"
)

// Classification is an ordered data sensitivity tier.
type Classification int

const (
	// Public data may be shown anywhere.
	Public Classification = iota
	// Internal data is identifying but not sensitive.
	Internal
	// Confidential data is personal and must be masked outside the tenant.
	Confidential
	// Restricted data is secret and must never be stored in plaintext.
	Restricted
)

// String returns the snake_case name of the classification.
func (c Classification) String() string {
	switch c {
	case Public:
		return "public"
	case Internal:
		return "internal"
	case Confidential:
		return "confidential"
	case Restricted:
		return "restricted"
	}
	return fmt.Sprintf("classification(%d)", int(c))
}

var (
	restrictedFields = []string{
		"password", "secret", "token", "api_key", "apikey", "private_key",
		"credential", "credentials", "ssn", "credit_card",
	}
	confidentialFields = []string{
		"email", "phone", "address", "ip_address", "session_id", "cookie",
	}
	internalFields = []string{
		"tenant_id", "user_id", "account_id", "internal_id", "trace_id",
	}
)

// Classify returns the sensitivity of a field by substring match on its
// lower-cased name. The first matching tier wins.
func Classify(field string) Classification {
	lower := strings.ToLower(field)
	switch {
	case containsAny(lower, restrictedFields):
		return Restricted
	case containsAny(lower, confidentialFields):
		return Confidential
	case containsAny(lower, internalFields):
		return Internal
	default:
		return Public
	}
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
