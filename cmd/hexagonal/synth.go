package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	hexagonal "github.com/lex00/hexagonal-serverless-go"
	"github.com/lex00/hexagonal-serverless-go/internal/config"
	"github.com/lex00/hexagonal-serverless-go/internal/schema"
	"github.com/lex00/hexagonal-serverless-go/internal/stack"
	"github.com/lex00/hexagonal-serverless-go/internal/template"
	"github.com/lex00/hexagonal-serverless-go/internal/validation"
)

// defaultPrefix names the stack when neither --prefix nor APP_TAG_VALUE is set.
const defaultPrefix = "hello-world"

// stackFlags are the synthesis flags shared by synth, graph and diff.
type stackFlags struct {
	prefix         string
	region         string
	distDir        string
	production     bool
	skipAssetCheck bool
	stableIDs      bool
}

func (f *stackFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.prefix, "prefix", "", "Stack name prefix and Project tag (default: $APP_TAG_VALUE or hello-world)")
	cmd.Flags().StringVar(&f.region, "region", "", "Target region (default: $AWS_REGION or "+stack.DefaultRegion+")")
	cmd.Flags().StringVar(&f.distDir, "dist", stack.DefaultDistDir, "Directory holding the function bundles")
	cmd.Flags().BoolVar(&f.production, "production", false, "Retain the table when the stack is deleted")
	cmd.Flags().BoolVar(&f.skipAssetCheck, "skip-asset-check", false, "Do not require dist/functions/<name> to exist")
	cmd.Flags().BoolVar(&f.stableIDs, "stable-ids", false, "Derive ResourceId tags from the prefix instead of generating random ones")
}

func (f *stackFlags) options() stack.Options {
	cfg := config.New(config.Env(), nil)
	opts := stack.Options{
		Prefix:         f.prefix,
		Region:         f.region,
		DistDir:        f.distDir,
		Production:     f.production,
		SkipAssetCheck: f.skipAssetCheck,
	}
	if opts.Prefix == "" {
		opts.Prefix = cfg.Optional(config.KeyTagValue, defaultPrefix)
	}
	if opts.Region == "" {
		opts.Region = cfg.Optional(config.KeyRegion, stack.DefaultRegion)
	}
	if f.stableIDs {
		opts.NewID = stack.StableIDs(opts.Prefix)
	}
	return opts
}

func newSynthCmd() *cobra.Command {
	var (
		flags        stackFlags
		outputFormat string
		outputFile   string
		lint         bool
		strict       bool
		jsonOutput   bool
	)

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Generate the CloudFormation template",
		Long: `Synth generates the CloudFormation template for the hello world stack:
the greetings table, the hello_world function and the GET /hello API.

Every resource is checked against an offline schema first; --lint also
runs cfn-lint. Function code is referenced by its local bundle path. Upload it with
"aws cloudformation package" before deploying.

Examples:
    hexagonal synth
    hexagonal synth --prefix myservice -o template.json
    hexagonal synth --format yaml --production
    hexagonal synth --lint --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSynth(cmd.OutOrStdout(), flags.options(), synthOutput{
				format: outputFormat,
				file:   outputFile,
				lint:   lint,
				strict: strict,
				json:   jsonOutput,
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&outputFormat, "format", "f", "json", "Output format: json or yaml")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().BoolVar(&lint, "lint", false, "Run cfn-lint on the synthesized template")
	cmd.Flags().BoolVar(&strict, "strict", false, "Warn about properties the offline schema does not know")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print a JSON result instead of the raw template")

	return cmd
}

type synthOutput struct {
	format string
	file   string
	lint   bool
	strict bool
	json   bool
}

func runSynth(w io.Writer, opts stack.Options, out synthOutput) error {
	result := hexagonal.SynthResult{StackName: stack.StackName(opts.Prefix)}

	s, err := stack.HelloWorld(opts)
	if err != nil {
		result.Errors = []string{err.Error()}
		return writeSynthResult(w, result, out)
	}
	result.Template = *s.Template
	result.Resources = resourceNames(s.Template)

	checked := schema.ValidateTemplate(s.Template, schema.Options{Strict: out.strict})
	result.Warnings = schema.Messages(checked.Warnings)
	if !checked.Valid {
		result.Errors = schema.Messages(checked.Errors)
		return writeSynthResult(w, result, out)
	}

	if out.lint {
		lint, err := validation.LintTemplate(s.Template)
		if err != nil {
			return fmt.Errorf("linting template: %w", err)
		}
		result.Warnings = append(result.Warnings, lint.Warnings...)
		result.Warnings = append(result.Warnings, lint.Informational...)
		if !lint.Passed {
			result.Errors = lint.Errors
			return writeSynthResult(w, result, out)
		}
	}

	result.Success = true
	return writeSynthResult(w, result, out)
}

func writeSynthResult(w io.Writer, result hexagonal.SynthResult, out synthOutput) error {
	if out.json {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		if err := writeOutput(w, out.file, data); err != nil {
			return err
		}
		if !result.Success {
			return fmt.Errorf("synth failed")
		}
		return nil
	}

	for _, warning := range result.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", warning)
	}
	if !result.Success {
		for _, e := range result.Errors {
			fmt.Fprintln(os.Stderr, e)
		}
		return fmt.Errorf("synth failed")
	}

	data, err := template.Encode(&result.Template, out.format)
	if err != nil {
		return err
	}
	return writeOutput(w, out.file, data)
}

func writeOutput(w io.Writer, file string, data []byte) error {
	if file == "" {
		_, err := fmt.Fprintln(w, string(data))
		return err
	}
	return os.WriteFile(file, data, 0644)
}

func resourceNames(t *hexagonal.Template) []string {
	names := make([]string, 0, len(t.Resources))
	for name := range t.Resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
