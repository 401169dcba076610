package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	hexagonal "github.com/lex00/hexagonal-serverless-go"
	"github.com/lex00/hexagonal-serverless-go/internal/differ"
	"github.com/lex00/hexagonal-serverless-go/internal/optimizer"
	"github.com/lex00/hexagonal-serverless-go/internal/stack"
)

// newOptimizeCmd creates the "optimize" subcommand for suggesting improvements.
func newOptimizeCmd() *cobra.Command {
	var (
		flags        stackFlags
		outputFormat string
		category     string
		templateFile string
	)

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Suggest CloudFormation optimizations",
		Long: `Optimize analyzes the stack's resources and suggests improvements
for security, cost, performance, and reliability.

Categories:
    security     - Least privilege, encryption, public access
    cost         - Capacity modes, timeouts
    performance  - Memory sizing
    reliability  - Retention policies, backups, tracing

Examples:
    hexagonal optimize --skip-asset-check
    hexagonal optimize --production --category reliability
    hexagonal optimize -t packaged.yaml -f json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !optimizer.ValidCategory(category) {
				return fmt.Errorf("invalid category: %s (valid: %s)", category, strings.Join(optimizer.Categories, ", "))
			}
			return runOptimize(cmd.OutOrStdout(), templateFile, flags.options(), category, outputFormat)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")
	cmd.Flags().StringVarP(&category, "category", "c", "all", "Category: all, security, cost, performance, or reliability")
	cmd.Flags().StringVarP(&templateFile, "template", "t", "", "Analyze this template file instead of synthesizing")

	return cmd
}

func runOptimize(w io.Writer, templateFile string, opts stack.Options, category, format string) error {
	var t *hexagonal.Template
	if templateFile != "" {
		loaded, err := differ.LoadTemplate(templateFile)
		if err != nil {
			return err
		}
		t = loaded
	} else {
		s, err := stack.HelloWorld(opts)
		if err != nil {
			return err
		}
		t = s.Template
	}

	opt := optimizer.Optimize(t, optimizer.Options{Category: category})
	result := hexagonal.OptimizeResult{
		Success:       true,
		ResourceCount: len(t.Resources),
		Suggestions:   opt.Suggestions,
		Summary:       opt.Summary,
	}

	return writeOptimizeResult(w, result, format)
}

func writeOptimizeResult(w io.Writer, result hexagonal.OptimizeResult, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))

	case "text":
		if len(result.Suggestions) == 0 {
			fmt.Fprintf(w, "Analyzed %d resources. No optimization suggestions.\n", result.ResourceCount)
			return nil
		}

		fmt.Fprintf(w, "Analyzed %d resources. Found %d suggestions:\n\n", result.ResourceCount, result.Summary.Total)

		byCat := map[string][]hexagonal.OptimizeSuggestion{}
		for _, s := range result.Suggestions {
			byCat[s.Category] = append(byCat[s.Category], s)
		}

		for _, cat := range []string{"security", "cost", "performance", "reliability"} {
			suggestions := byCat[cat]
			if len(suggestions) == 0 {
				continue
			}

			fmt.Fprintf(w, "=== %s (%d) ===\n", capitalize(cat), len(suggestions))
			for _, s := range suggestions {
				fmt.Fprintf(w, "\n[%s] %s\n", s.Severity, s.Title)
				fmt.Fprintf(w, "  Resource: %s (%s)\n", s.Resource, s.Rule)
				fmt.Fprintf(w, "  %s\n", s.Description)
				fmt.Fprintf(w, "  Suggestion: %s\n", s.Suggestion)
			}
			fmt.Fprintln(w)
		}

		fmt.Fprintf(w, "Summary: %d security, %d cost, %d performance, %d reliability\n",
			result.Summary.Security, result.Summary.Cost,
			result.Summary.Performance, result.Summary.Reliability)

	default:
		return fmt.Errorf("unknown format: %s", format)
	}

	return nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
