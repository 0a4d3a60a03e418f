package bundle

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/gowebpki/jcs"
	"gopkg.in/yaml.v3"
)

// Parse decodes a JSON or YAML bundle document and validates it. YAML is
// normalized to JSON first so both formats meet the same schema.
func Parse(data []byte) (*PolicyBundle, error) {
	doc, err := toJSON(data)
	if err != nil {
		return nil, NewInvalidBundleError("", err.Error())
	}

	reasons, err := validateSchema(doc)
	if err != nil {
		return nil, err
	}
	if len(reasons) > 0 {
		return nil, NewInvalidBundleError(peekVersion(doc), reasons...)
	}

	var b PolicyBundle
	if err := json.Unmarshal(doc, &b); err != nil {
		return nil, NewInvalidBundleError(peekVersion(doc), err.Error())
	}
	if err := Validate(&b); err != nil {
		return nil, err
	}
	return &b, nil
}

// ParseFile reads and parses a bundle file.
func ParseFile(path string) (*PolicyBundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bundle file: %w", err)
	}
	return Parse(data)
}

// Validate runs the semantic checks the schema cannot express.
func Validate(b *PolicyBundle) error {
	var reasons []string
	seen := make(map[string]struct{}, len(b.Rules))
	for i, r := range b.Rules {
		if r.ID == "" {
			reasons = append(reasons, fmt.Sprintf("rules[%d]: id is required", i))
		} else if _, dup := seen[r.ID]; dup {
			reasons = append(reasons, fmt.Sprintf("rules[%d]: duplicate id %q", i, r.ID))
		}
		seen[r.ID] = struct{}{}
		if !r.Effect.Valid() {
			reasons = append(reasons, fmt.Sprintf("rules[%d]: invalid effect %q", i, r.Effect))
		}
	}
	for i, rl := range b.RateLimits {
		if rl.ActionClass == "" {
			reasons = append(reasons, fmt.Sprintf("rate_limits[%d]: action_class is required", i))
		}
		if rl.WindowSeconds < 1 {
			reasons = append(reasons, fmt.Sprintf("rate_limits[%d]: window_seconds must be >= 1", i))
		}
		if rl.MaxRequests < 1 {
			reasons = append(reasons, fmt.Sprintf("rate_limits[%d]: max_requests must be >= 1", i))
		}
	}
	if len(reasons) > 0 {
		return NewInvalidBundleError(b.Version, reasons...)
	}
	return nil
}

// Encode returns the archived JSON form of a bundle.
func Encode(b *PolicyBundle) ([]byte, error) {
	return json.Marshal(b)
}

// Digest returns the sha256 hex digest of the bundle's RFC 8785 canonical
// JSON form.
func Digest(b *PolicyBundle) (string, error) {
	raw, err := Encode(b)
	if err != nil {
		return "", fmt.Errorf("encode bundle: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize bundle: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

func toJSON(data []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty bundle document")
	}
	if trimmed[0] == '{' {
		if !json.Valid(trimmed) {
			return nil, fmt.Errorf("malformed JSON bundle document")
		}
		return trimmed, nil
	}

	var doc any
	if err := yaml.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("malformed YAML bundle document: %w", err)
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("convert YAML bundle document: %w", err)
	}
	return out, nil
}

func peekVersion(doc []byte) string {
	var head struct {
		Version any `json:"version"`
	}
	if err := json.Unmarshal(doc, &head); err != nil {
		return ""
	}
	if s, ok := head.Version.(string); ok {
		return s
	}
	return ""
}
