package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"mercator-hq/warden/pkg/cli"
)

func resetCheckFlags() {
	checkFlags.bundleFile = ""
	checkFlags.tenant = "local"
	checkFlags.action = ""
	checkFlags.resource = ""
	checkFlags.actor = "cli"
	checkFlags.context = ""
	checkFlags.format = "text"
	checkFlags.strict = false
}

func TestCheckAction(t *testing.T) {
	bundleFile := writeFile(t, "v1.yaml", validBundleYAML)

	tests := []struct {
		name     string
		bundle   string
		action   string
		resource string
		want     string
	}{
		{name: "bundle deny", bundle: bundleFile, action: "delete_db", resource: "prod-db", want: "deny"},
		{name: "bundle allow", bundle: bundleFile, action: "read_file", resource: "notes.txt", want: "allow"},
		{name: "builtin escalate", action: "deploy_service", resource: "prod-cluster", want: "escalate"},
		{name: "builtin credential deny", action: "get_credential", resource: "vault", want: "deny"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetCheckFlags()
			checkFlags.bundleFile = tt.bundle
			checkFlags.action = tt.action
			checkFlags.resource = tt.resource
			checkFlags.format = "json"

			var buf bytes.Buffer
			if err := checkAction(context.Background(), &buf); err != nil {
				t.Fatalf("checkAction() error = %v", err)
			}
			var got checkSummary
			if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
				t.Fatalf("invalid JSON output %q: %v", buf.String(), err)
			}
			if got.Decision != tt.want {
				t.Errorf("decision = %q (%s), want %q", got.Decision, got.Reason, tt.want)
			}
			if len(got.Stages) == 0 || got.Stages[len(got.Stages)-1] != "recorded" {
				t.Errorf("stages = %v, want to end with recorded", got.Stages)
			}
		})
	}
}

func TestCheckAction_TextOutput(t *testing.T) {
	resetCheckFlags()
	checkFlags.bundleFile = writeFile(t, "v1.yaml", validBundleYAML)
	checkFlags.action = "delete_db"
	checkFlags.resource = "prod-db"

	var buf bytes.Buffer
	if err := checkAction(context.Background(), &buf); err != nil {
		t.Fatalf("checkAction() error = %v", err)
	}
	for _, want := range []string{"Decision:     deny", "Matched rule: deny-prod-delete", "v1 [bundle]"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %q:\n%s", want, buf.String())
		}
	}
}

func TestCheckAction_Errors(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		wantCode int
	}{
		{
			name:     "missing action",
			setup:    func() {},
			wantCode: cli.ExitConfig,
		},
		{
			name:     "bad context",
			setup:    func() { checkFlags.action = "read_file"; checkFlags.context = "{not json" },
			wantCode: cli.ExitConfig,
		},
		{
			name:     "bad format",
			setup:    func() { checkFlags.action = "read_file"; checkFlags.format = "xml" },
			wantCode: cli.ExitConfig,
		},
		{
			name:     "missing bundle file",
			setup:    func() { checkFlags.action = "read_file"; checkFlags.bundleFile = "does-not-exist.yaml" },
			wantCode: cli.ExitFailure,
		},
		{
			name: "strict deny",
			setup: func() {
				checkFlags.action = "get_credential"
				checkFlags.strict = true
			},
			wantCode: cli.ExitFailure,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetCheckFlags()
			tt.setup()
			err := checkAction(context.Background(), &bytes.Buffer{})
			if err == nil {
				t.Fatal("checkAction() error = nil, want error")
			}
			if got := cli.ExitCode(err); got != tt.wantCode {
				t.Errorf("ExitCode() = %d, want %d (%v)", got, tt.wantCode, err)
			}
		})
	}
}
