package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/warden/pkg/cli"
	"mercator-hq/warden/pkg/evidence/recorder"
	evstorage "mercator-hq/warden/pkg/evidence/storage"
	"mercator-hq/warden/pkg/limits/ratelimit"
	limitstorage "mercator-hq/warden/pkg/limits/storage"
	"mercator-hq/warden/pkg/policy/bundle"
	"mercator-hq/warden/pkg/policy/engine"
)

var checkFlags struct {
	bundleFile string
	tenant     string
	action     string
	resource   string
	actor      string
	context    string
	format     string
	strict     bool
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate one agent action against a policy bundle",
	Long: `Evaluate a single agent action locally, without a server or durable
stores. The bundle file (JSON or YAML) becomes the tenant's active bundle;
without --bundle the built-in bundle is used.

Examples:
  # Check a production deploy against a bundle file
  warden check --bundle policy.yaml --action deploy_service --resource prod-cluster

  # JSON output with request context
  warden check --action read_file --context '{"path":"/etc/hosts"}' --format json

  # Exit non-zero unless the action is allowed
  warden check --bundle policy.yaml --action delete_db --strict`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return checkAction(cmd.Context(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVarP(&checkFlags.bundleFile, "bundle", "b", "", "policy bundle file (JSON or YAML)")
	checkCmd.Flags().StringVarP(&checkFlags.tenant, "tenant", "t", "local", "tenant id")
	checkCmd.Flags().StringVarP(&checkFlags.action, "action", "a", "", "agent action (required)")
	checkCmd.Flags().StringVarP(&checkFlags.resource, "resource", "r", "", "target resource")
	checkCmd.Flags().StringVar(&checkFlags.actor, "actor", "cli", "acting agent")
	checkCmd.Flags().StringVar(&checkFlags.context, "context", "", "request context as a JSON object")
	checkCmd.Flags().StringVar(&checkFlags.format, "format", "text", "output format: text, json")
	checkCmd.Flags().BoolVar(&checkFlags.strict, "strict", false, "return an error unless the decision is allow")
}

// checkSummary is the printable outcome of one check.
type checkSummary struct {
	Decision      string   `json:"decision"`
	Reason        string   `json:"reason"`
	RiskLevel     string   `json:"risk_level"`
	ActionClass   string   `json:"action_class"`
	Source        string   `json:"source"`
	PolicyVersion string   `json:"policy_version"`
	MatchedRule   string   `json:"matched_rule,omitempty"`
	RateLimited   bool     `json:"rate_limited"`
	Stages        []string `json:"stages"`
}

func (s checkSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Decision:     %s\n", s.Decision)
	fmt.Fprintf(&b, "Reason:       %s\n", s.Reason)
	fmt.Fprintf(&b, "Risk:         %s (%s)\n", s.RiskLevel, s.ActionClass)
	fmt.Fprintf(&b, "Policy:       %s [%s]\n", s.PolicyVersion, s.Source)
	if s.MatchedRule != "" {
		fmt.Fprintf(&b, "Matched rule: %s\n", s.MatchedRule)
	}
	fmt.Fprintf(&b, "Stages:       %s", strings.Join(s.Stages, " > "))
	return b.String()
}

func checkAction(ctx context.Context, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if checkFlags.action == "" {
		return cli.NewConfigError("--action", "action is required")
	}

	var reqCtx map[string]any
	if checkFlags.context != "" {
		if err := json.Unmarshal([]byte(checkFlags.context), &reqCtx); err != nil {
			return cli.NewConfigError("--context", fmt.Sprintf("invalid JSON object: %v", err))
		}
	}

	registry := bundle.NewRegistry(bundle.NewMemoryBlobStore(), bundle.NewMemoryPointerStore())
	if checkFlags.bundleFile != "" {
		b, err := bundle.ParseFile(checkFlags.bundleFile)
		if err != nil {
			return cli.NewCommandError("check", err)
		}
		version := b.Version
		if version == "" {
			version = "local"
		}
		if _, err := registry.Publish(ctx, checkFlags.tenant, version, b, true); err != nil {
			return cli.NewCommandError("check", err)
		}
	}

	evStore := evstorage.NewMemoryStorage()
	eng, err := engine.New(engine.Components{
		Bundles:     registry,
		Limiter:     ratelimit.NewFixedWindowLimiter(limitstorage.NewMemoryStore(), nil),
		Recorder:    recorder.NewRecorder(evStore, nil),
		Escalations: recorder.NewEscalationManager(evStore),
	}, &engine.Config{TenantRules: false})
	if err != nil {
		return cli.NewCommandError("check", err)
	}

	res, err := eng.Check(ctx, &engine.Request{
		TenantID: checkFlags.tenant,
		Action:   checkFlags.action,
		Resource: checkFlags.resource,
		Actor:    checkFlags.actor,
		Context:  reqCtx,
	})
	if err != nil {
		return cli.NewCommandError("check", err)
	}

	summary := summarize(res)
	format := cli.OutputFormat(checkFlags.format)
	if format != cli.FormatText && format != cli.FormatJSON {
		return cli.NewConfigError("--format", fmt.Sprintf("unsupported format %q", checkFlags.format))
	}
	if err := cli.NewFormatter(format).FormatTo(out, summary); err != nil {
		return err
	}

	if checkFlags.strict && summary.Decision != "allow" {
		return cli.NewCommandError("check", fmt.Errorf("action %q was not allowed: %s", checkFlags.action, summary.Decision))
	}
	return nil
}

func summarize(res *engine.Result) checkSummary {
	d := res.Decision
	s := checkSummary{
		Decision:      d.Decision,
		Reason:        d.Reason,
		RiskLevel:     d.RiskLevel.String(),
		ActionClass:   res.ActionClass,
		Source:        res.Source,
		PolicyVersion: d.PolicyVersion,
		RateLimited:   d.RateLimited,
	}
	if d.MatchedRule != nil {
		s.MatchedRule = *d.MatchedRule
	}
	for _, st := range res.Stages {
		s.Stages = append(s.Stages, string(st))
	}
	return s
}
