package rules

import "strings"

// MatchPattern reports whether value satisfies pattern under the rule
// pattern grammar.
func MatchPattern(pattern, value string) bool {
	pattern = strings.ToLower(pattern)
	value = strings.ToLower(value)

	switch {
	case pattern == "" || pattern == "*":
		return true
	case strings.HasSuffix(pattern, ":*"):
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(value, prefix) || value == strings.TrimSuffix(prefix, ":")
	case strings.HasSuffix(pattern, ":"):
		return strings.HasPrefix(value, pattern) || value == strings.TrimSuffix(pattern, ":")
	case strings.Contains(pattern, "*"):
		return WildcardMatch(pattern, value)
	default:
		return pattern == value
	}
}

// WildcardMatch is a case-insensitive glob match where each '*' matches any
// run of characters. Literal segments must appear in order; the first and
// last segments are anchored unless the pattern starts or ends with '*'.
func WildcardMatch(pattern, value string) bool {
	pattern = strings.ToLower(pattern)
	value = strings.ToLower(value)
	if pattern == "*" {
		return true
	}

	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == value
	}

	if !strings.HasPrefix(value, parts[0]) {
		return false
	}
	rest := value[len(parts[0]):]

	last := parts[len(parts)-1]
	for _, part := range parts[1 : len(parts)-1] {
		if part == "" {
			continue
		}
		idx := strings.Index(rest, part)
		if idx < 0 {
			return false
		}
		rest = rest[idx+len(part):]
	}

	return len(rest) >= len(last) && strings.HasSuffix(rest, last)
}

// fieldSpecificity scores one pattern: 0 for a bare wildcard, 1 for a
// prefix or glob, 2 for an exact value.
func fieldSpecificity(pattern string) int {
	switch {
	case pattern == "" || pattern == "*":
		return 0
	case strings.Contains(pattern, "*") || strings.HasSuffix(pattern, ":"):
		return 1
	default:
		return 2
	}
}

// Specificity scores a rule's patterns. Higher is more specific.
func Specificity(action, resource, actor string) int {
	return fieldSpecificity(action) + fieldSpecificity(resource) + fieldSpecificity(actor)
}
