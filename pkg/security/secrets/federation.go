package secrets

// FederationConfig is a tenant's opt-in for sharing data with other tenants.
type FederationConfig struct {
	OptIn          bool     `json:"opt_in" yaml:"opt_in"`
	AllowedTenants []string `json:"allowed_tenants" yaml:"allowed_tenants"`
	SharingScope   []string `json:"sharing_scope" yaml:"sharing_scope"`
}

// CanFederate reports whether data of dataType may be shared with target.
// All of opt-in, the tenant allow-list and the sharing scope must agree.
func CanFederate(cfg FederationConfig, target, dataType string) bool {
	if !cfg.OptIn {
		return false
	}
	return contains(cfg.AllowedTenants, target) && contains(cfg.SharingScope, dataType)
}

// AnonymizeForFederation returns a deep copy of v with every field classified
// Confidential or above removed, at any depth of nested objects and arrays.
// Callers must check CanFederate first.
func AnonymizeForFederation(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for key, field := range val {
			if Classify(key) >= Confidential {
				continue
			}
			out[key] = AnonymizeForFederation(field)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = AnonymizeForFederation(item)
		}
		return out
	default:
		return v
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
