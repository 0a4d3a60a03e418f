package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"mercator-hq/warden/pkg/cli"
	"mercator-hq/warden/pkg/policy/bundle"
)

var bundleFlags struct {
	format string
}

var bundleCmd = &cobra.Command{
	Use:   "bundle",
	Short: "Work with policy bundle files offline",
}

var bundleValidateCmd = &cobra.Command{
	Use:   "validate FILE...",
	Short: "Validate policy bundle files",
	Long: `Validate policy bundle files against the bundle schema and rule checks.

Examples:
  warden bundle validate bundles/acme/v3.yaml
  warden bundle validate bundles/acme/*.json --format json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return validateBundles(cmd.OutOrStdout(), args)
	},
}

var bundleDigestCmd = &cobra.Command{
	Use:   "digest FILE",
	Short: "Print the canonical sha256 digest of a bundle file",
	Long: `Print the sha256 digest of the bundle's canonical JSON form. JSON and
YAML renderings of the same bundle have the same digest.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return digestBundle(cmd.OutOrStdout(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(bundleCmd)
	bundleCmd.AddCommand(bundleValidateCmd, bundleDigestCmd)

	bundleValidateCmd.Flags().StringVar(&bundleFlags.format, "format", "text", "output format: text, json, csv")
}

// BundleResult is the validation outcome of one bundle file.
type BundleResult struct {
	File    string `json:"file"`
	Valid   bool   `json:"valid"`
	Version string `json:"version,omitempty"`
	Rules   int    `json:"rules,omitempty"`
	Digest  string `json:"digest,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (r BundleResult) String() string {
	if !r.Valid {
		return fmt.Sprintf("✗ %s: %s", r.File, r.Error)
	}
	return fmt.Sprintf("✓ %s: version %q, %d rules, digest %s", r.File, r.Version, r.Rules, r.Digest)
}

type bundleResults []BundleResult

func (rs bundleResults) Rows() [][]string {
	rows := make([][]string, 0, len(rs))
	for _, r := range rs {
		rows = append(rows, []string{r.File, strconv.FormatBool(r.Valid), r.Version, strconv.Itoa(r.Rules), r.Digest, r.Error})
	}
	return rows
}

func validateBundles(out io.Writer, files []string) error {
	results := make(bundleResults, 0, len(files))
	failed := 0
	for _, file := range files {
		res := validateBundleFile(file)
		if !res.Valid {
			failed++
		}
		results = append(results, res)
	}

	switch cli.OutputFormat(bundleFlags.format) {
	case cli.FormatJSON:
		if err := cli.NewFormatter(cli.FormatJSON).FormatTo(out, results); err != nil {
			return err
		}
	case cli.FormatCSV:
		csv := &cli.CSVFormatter{Headers: []string{"file", "valid", "version", "rules", "digest", "error"}}
		if err := csv.FormatTo(out, bundleResults(results)); err != nil {
			return err
		}
	default:
		text := cli.NewFormatter(cli.FormatText)
		for _, res := range results {
			if err := text.FormatTo(out, res); err != nil {
				return err
			}
		}
	}

	if failed > 0 {
		return cli.NewCommandError("bundle validate", fmt.Errorf("%d of %d bundle files invalid", failed, len(files)))
	}
	return nil
}

func validateBundleFile(path string) BundleResult {
	res := BundleResult{File: path}
	b, err := bundle.ParseFile(path)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	digest, err := bundle.Digest(b)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Valid = true
	res.Version = b.Version
	res.Rules = len(b.Rules)
	res.Digest = digest
	return res
}

func digestBundle(out io.Writer, path string) error {
	b, err := bundle.ParseFile(path)
	if err != nil {
		return cli.NewCommandError("bundle digest", err)
	}
	digest, err := bundle.Digest(b)
	if err != nil {
		return cli.NewCommandError("bundle digest", err)
	}
	_, err = fmt.Fprintln(out, digest)
	return err
}
