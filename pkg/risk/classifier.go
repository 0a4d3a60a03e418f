package risk

import (
	"encoding/json"
	"strings"
)

// Keyword tiers, checked from most to least severe.
var (
	criticalKeywords = []string{"wipe", "destroy", "terminate", "root-key", "irreversible", "hard-delete"}
	highKeywords     = []string{"deploy", "delete", "drop", "credential", "secret", "production", "prod", "revoke", "merge-main", "push-main"}
	mediumKeywords   = []string{"create", "update", "write", "put", "patch", "commit", "index"}
	lowKeywords      = []string{"read", "get", "list", "query", "search", "status", "health", "trace"}
)

var tiers = []struct {
	level    Level
	keywords []string
}{
	{Critical, criticalKeywords},
	{High, highKeywords},
	{Medium, mediumKeywords},
	{Low, lowKeywords},
}

// Classify returns the risk level of an action on a resource. ctx may be nil,
// a string, raw JSON or any JSON-marshalable value. Classify never fails: a
// context that cannot be marshaled is ignored.
func Classify(action, resource string, ctx any) Level {
	haystack := strings.ToLower(action + " " + resource + " " + contextString(ctx))
	for _, tier := range tiers {
		for _, kw := range tier.keywords {
			if strings.Contains(haystack, kw) {
				return tier.level
			}
		}
	}
	return Medium
}

func contextString(ctx any) string {
	switch v := ctx.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case json.RawMessage:
		return string(v)
	}
	data, err := json.Marshal(ctx)
	if err != nil {
		return ""
	}
	return string(data)
}
