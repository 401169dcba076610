package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	hexagonal "github.com/lex00/hexagonal-serverless-go"
	"github.com/lex00/hexagonal-serverless-go/internal/differ"
	"github.com/lex00/hexagonal-serverless-go/internal/stack"
)

func newDiffCmd() *cobra.Command {
	var (
		flags        stackFlags
		outputFormat string
		ignoreOrder  bool
		exitCode     bool
	)

	cmd := &cobra.Command{
		Use:   "diff <old> [<new>]",
		Short: "Compare two CloudFormation templates",
		Long: `Diff compares two templates semantically: resources, their properties,
DependsOn, retention policies and outputs.

With a single argument the template is compared against a freshly
synthesized stack, which previews what the next deployment changes.

Examples:
    hexagonal diff deployed.json template.json
    hexagonal diff deployed.yaml --prefix myservice
    hexagonal diff old.json new.json --format json --ignore-order`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := runDiff(args, flags.options(), differ.Options{IgnoreOrder: ignoreOrder})
			if err != nil {
				return err
			}
			if err := writeDiff(cmd.OutOrStdout(), res, outputFormat); err != nil {
				return err
			}
			if exitCode && res.Summary.Total > 0 {
				return fmt.Errorf("%d differences found", res.Summary.Total)
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")
	cmd.Flags().BoolVar(&ignoreOrder, "ignore-order", false, "Ignore array element order")
	cmd.Flags().BoolVar(&exitCode, "exit-code", false, "Exit non-zero when the templates differ")

	return cmd
}

func runDiff(args []string, opts stack.Options, diffOpts differ.Options) (*differ.Result, error) {
	if len(args) == 2 {
		return differ.CompareFiles(args[0], args[1], diffOpts)
	}

	old, err := differ.LoadTemplate(args[0])
	if err != nil {
		return nil, err
	}
	s, err := stack.HelloWorld(opts)
	if err != nil {
		return nil, err
	}
	return differ.Compare(old, s.Template, diffOpts)
}

func writeDiff(w io.Writer, res *differ.Result, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "text":
		writeDiffText(w, res.Diff, res.Summary)
		return nil
	default:
		return fmt.Errorf("unknown format: %s (use 'text' or 'json')", format)
	}
}

func writeDiffText(w io.Writer, diff hexagonal.TemplateDiff, summary hexagonal.DiffSummary) {
	if summary.Total == 0 {
		fmt.Fprintln(w, "No differences")
		return
	}

	for _, e := range diff.Added {
		fmt.Fprintf(w, "+ %s (%s)\n", e.Resource, e.Type)
	}
	for _, e := range diff.Removed {
		fmt.Fprintf(w, "- %s (%s)\n", e.Resource, e.Type)
	}
	for _, e := range diff.Modified {
		fmt.Fprintf(w, "~ %s (%s)\n", e.Resource, e.Type)
		for _, c := range e.Changes {
			fmt.Fprintf(w, "    %s\n", c)
		}
	}
	for _, o := range diff.Outputs {
		fmt.Fprintf(w, "~ Output %s\n", o)
	}

	fmt.Fprintf(w, "\n%d added, %d removed, %d modified, %d output changes\n",
		summary.Added, summary.Removed, summary.Modified, summary.Outputs)
}
