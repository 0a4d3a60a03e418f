package secrets

import (
	"sort"
	"strings"
)

const (
	// RedactedValue replaces Restricted values.
	RedactedValue = "***REDACTED***"

	// EncryptedPrefix marks a value that was encrypted before storage.
	EncryptedPrefix = "enc:"

	maskSuffix = "***"
)

// ValidateNoPlaintextSecrets returns the sorted names of top-level fields
// classified Confidential or above whose value is a non-empty string that is
// neither encrypted ("enc:") nor already masked ("***"). An empty result
// means the record is clean.
func ValidateNoPlaintextSecrets(record map[string]any) []string {
	var violations []string
	for key, value := range record {
		if Classify(key) < Confidential {
			continue
		}
		s, ok := value.(string)
		if !ok || s == "" {
			continue
		}
		if strings.HasPrefix(s, EncryptedPrefix) || strings.HasPrefix(s, maskSuffix) {
			continue
		}
		violations = append(violations, key)
	}
	sort.Strings(violations)
	return violations
}

// RedactSensitiveFields returns a copy of an object with Restricted values
// replaced by RedactedValue and Confidential values masked to their first
// two characters. Only top-level fields are touched. Anything that is not a
// map[string]any is returned unchanged.
func RedactSensitiveFields(v any) any {
	obj, ok := v.(map[string]any)
	if !ok {
		return v
	}
	out := make(map[string]any, len(obj))
	for key, value := range obj {
		switch Classify(key) {
		case Restricted:
			out[key] = RedactedValue
		case Confidential:
			out[key] = MaskValue(value)
		default:
			out[key] = value
		}
	}
	return out
}

// MaskValue masks a Confidential value. Strings longer than four characters
// keep their first two; everything else becomes "***".
func MaskValue(value any) string {
	s, ok := value.(string)
	if !ok {
		return maskSuffix
	}
	runes := []rune(s)
	if len(runes) <= 4 {
		return maskSuffix
	}
	return string(runes[:2]) + maskSuffix
}
