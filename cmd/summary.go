package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.yaml.in/yaml/v3"

	"thoreinstein.com/scommit/pkg/changes"
	"thoreinstein.com/scommit/pkg/message"
	"thoreinstein.com/scommit/pkg/workflow"
)

// outputFormat is a pflag.Value restricted to the supported formats.
type outputFormat string

const (
	formatText outputFormat = "text"
	formatJSON outputFormat = "json"
	formatYAML outputFormat = "yaml"
)

var outputFormats = []outputFormat{formatText, formatJSON, formatYAML}

var _ pflag.Value = (*outputFormat)(nil)

func (f *outputFormat) String() string { return string(*f) }

func (f *outputFormat) Set(v string) error {
	candidate := outputFormat(strings.ToLower(v))
	if !slices.Contains(outputFormats, candidate) {
		return errors.Newf("must be one of text, json, yaml")
	}
	*f = candidate
	return nil
}

func (f *outputFormat) Type() string { return "format" }

var summaryFormat = formatText

// summaryCmd prints the classified staged changes.
var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show the classified staged changes",
	Long: `Show what scommit sees in the index: per-file status, line counts and
category, plus the totals used to pick the commit prefix.

Nothing is staged or committed.

Examples:
  scommit summary                 # Human readable
  scommit summary --format json   # For scripts`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSummary(cmd, summaryFormat)
	},
}

func init() {
	rootCmd.AddCommand(summaryCmd)
	summaryCmd.Flags().VarP(&summaryFormat, "format", "f", "Output format: text, json, yaml")
}

func runSummary(cmd *cobra.Command, format outputFormat) error {
	client, err := newGitClient(cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	engine := workflow.NewEngine(client, nil, loadedConfig(), cmd.OutOrStdout(), cmd.ErrOrStderr(), verbose)
	collected, err := engine.Collect(cmd.Context())
	if err != nil {
		return err
	}

	return writeSummary(cmd.OutOrStdout(), format, collected)
}

func writeSummary(w io.Writer, format outputFormat, c *workflow.Collected) error {
	summary := changes.Summarize(c.Changes, c.Stats)

	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to encode summary")
		}
		_, err = fmt.Fprintln(w, string(data))
		return err

	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(summary); err != nil {
			return errors.Wrap(err, "failed to encode summary")
		}
		return enc.Close()
	}

	if len(c.Changes) == 0 {
		_, err := fmt.Fprintln(w, "No staged changes.")
		return err
	}

	s := c.Stats
	fmt.Fprintf(w, "Files: %d | +%d / -%d | new %d, removed %d\n", s.Files, s.Added, s.Deleted, s.NewFiles, s.RemovedFiles)

	labels := make([]string, 0, len(s.Categories))
	for _, cat := range s.CategoryList() {
		labels = append(labels, fmt.Sprintf("%s %d", cat.Label(), s.Categories[cat]))
	}
	fmt.Fprintf(w, "Categories: %s\n", strings.Join(labels, ", "))
	fmt.Fprintf(w, "Prefix: %s\n\n", message.ChoosePrefix(s))

	for _, ch := range c.Changes {
		fmt.Fprintf(w, "- %s\n", message.EntryLine(ch))
	}
	return nil
}
