package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validBundleYAML = `version: v1
rules:
  - id: deny-prod-delete
    effect: deny
    action: "*delete*"
    resource: "*prod*"
    reason: production deletes are blocked
    priority: 10
  - id: allow-read
    effect: allow
    action: "*read*"
    reason: reads are allowed
rate_limits:
  - action_class: deploy
    window_seconds: 60
    max_requests: 2
`

const validBundleJSON = `{
  "version": "v1",
  "rules": [
    {"id": "deny-prod-delete", "effect": "deny", "action": "*delete*", "resource": "*prod*",
     "reason": "production deletes are blocked", "priority": 10},
    {"id": "allow-read", "effect": "allow", "action": "*read*", "reason": "reads are allowed"}
  ],
  "rate_limits": [{"action_class": "deploy", "window_seconds": 60, "max_requests": 2}]
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestValidateBundles(t *testing.T) {
	valid := writeFile(t, "v1.yaml", validBundleYAML)
	invalid := writeFile(t, "bad.json", `{"rules":[{"id":"x","effect":"maybe","reason":"r"}]}`)

	tests := []struct {
		name    string
		files   []string
		format  string
		wantErr bool
		want    string
	}{
		{name: "valid text", files: []string{valid}, format: "text", want: "✓"},
		{name: "invalid text", files: []string{invalid}, format: "text", wantErr: true, want: "✗"},
		{name: "missing file", files: []string{filepath.Join(t.TempDir(), "nope.yaml")}, format: "text", wantErr: true},
		{name: "mixed json", files: []string{valid, invalid}, format: "json", wantErr: true, want: `"valid": false`},
		{name: "csv", files: []string{valid}, format: "csv", want: "file,valid,version"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bundleFlags.format = tt.format
			var buf bytes.Buffer
			err := validateBundles(&buf, tt.files)
			if (err != nil) != tt.wantErr {
				t.Fatalf("validateBundles() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output %q does not contain %q", buf.String(), tt.want)
			}
		})
	}
}

func TestValidateBundles_JSONShape(t *testing.T) {
	bundleFlags.format = "json"
	var buf bytes.Buffer
	if err := validateBundles(&buf, []string{writeFile(t, "v1.json", validBundleJSON)}); err != nil {
		t.Fatalf("validateBundles() error = %v", err)
	}
	var results []BundleResult
	if err := json.Unmarshal(buf.Bytes(), &results); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if len(results) != 1 || !results[0].Valid || results[0].Rules != 2 || results[0].Version != "v1" {
		t.Errorf("results = %+v", results)
	}
}

func TestDigestBundle_FormatIndependent(t *testing.T) {
	var fromYAML, fromJSON bytes.Buffer
	if err := digestBundle(&fromYAML, writeFile(t, "v1.yaml", validBundleYAML)); err != nil {
		t.Fatalf("digest yaml: %v", err)
	}
	if err := digestBundle(&fromJSON, writeFile(t, "v1.json", validBundleJSON)); err != nil {
		t.Fatalf("digest json: %v", err)
	}
	if fromYAML.String() != fromJSON.String() {
		t.Errorf("digests differ: %q vs %q", fromYAML.String(), fromJSON.String())
	}
	if got := strings.TrimSpace(fromYAML.String()); len(got) != 64 {
		t.Errorf("digest %q is not sha256 hex", got)
	}
}
