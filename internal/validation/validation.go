// Package validation runs cfn-lint-go over synthesized templates.
package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lex00/cfn-lint-go/pkg/lint"

	hexagonal "github.com/lex00/hexagonal-serverless-go"
	"github.com/lex00/hexagonal-serverless-go/internal/template"
)

// CfnLintResult contains the result of running cfn-lint.
type CfnLintResult struct {
	Passed        bool     `json:"passed"`
	Errors        []string `json:"errors"`
	Warnings      []string `json:"warnings"`
	Informational []string `json:"informational"`
}

// TotalIssues returns the total number of issues found.
func (r CfnLintResult) TotalIssues() int {
	return len(r.Errors) + len(r.Warnings) + len(r.Informational)
}

// RunCfnLint runs cfn-lint-go on the given template file.
func RunCfnLint(templatePath string) (*CfnLintResult, error) {
	if _, err := os.Stat(templatePath); err != nil {
		return &CfnLintResult{
			Passed: false,
			Errors: []string{fmt.Sprintf("Template file not found: %s", templatePath)},
		}, nil
	}

	linter := lint.New(lint.Options{})
	matches, err := linter.LintFile(templatePath)
	if err != nil {
		return &CfnLintResult{
			Passed: false,
			Errors: []string{fmt.Sprintf("Linter error: %v", err)},
		}, nil
	}

	result := &CfnLintResult{
		Errors:        []string{},
		Warnings:      []string{},
		Informational: []string{},
	}

	for _, match := range matches {
		formatted := formatMatch(match)

		switch match.Level {
		case "Error":
			result.Errors = append(result.Errors, formatted)
		case "Warning":
			result.Warnings = append(result.Warnings, formatted)
		default:
			result.Informational = append(result.Informational, formatted)
		}
	}

	// Warnings are acceptable.
	result.Passed = len(result.Errors) == 0

	return result, nil
}

// LintTemplate writes the packaged view of t to a temporary file and lints it.
func LintTemplate(t *hexagonal.Template) (*CfnLintResult, error) {
	dir, err := os.MkdirTemp("", "hexagonal-lint-")
	if err != nil {
		return nil, fmt.Errorf("creating lint directory: %w", err)
	}
	defer os.RemoveAll(dir)

	data, err := template.ToJSON(PackagedView(t))
	if err != nil {
		return nil, fmt.Errorf("encoding template: %w", err)
	}

	path := filepath.Join(dir, "template.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("writing template: %w", err)
	}

	return RunCfnLint(path)
}

// PackagedStandIn is the bucket name substituted for local code paths by
// PackagedView.
const PackagedStandIn = "packaged-artifacts"

// PackagedView returns a copy of t in which local Lambda code paths are
// replaced by S3 locations, the shape `aws cloudformation package` produces.
func PackagedView(t *hexagonal.Template) *hexagonal.Template {
	out := *t
	out.Resources = make(map[string]hexagonal.ResourceDef, len(t.Resources))
	for name, def := range t.Resources {
		if path, ok := def.Properties["Code"].(string); ok && def.Type == "AWS::Lambda::Function" {
			props := make(map[string]any, len(def.Properties))
			for k, v := range def.Properties {
				props[k] = v
			}
			props["Code"] = map[string]any{
				"S3Bucket": PackagedStandIn,
				"S3Key":    filepath.ToSlash(path) + ".zip",
			}
			def.Properties = props
		}
		out.Resources[name] = def
	}
	return &out
}

// formatMatch formats a cfn-lint-go match for display.
func formatMatch(match lint.Match) string {
	pathStr := ""
	if len(match.Location.Path) > 0 {
		parts := make([]string, len(match.Location.Path))
		for i, p := range match.Location.Path {
			parts[i] = fmt.Sprintf("%v", p)
		}
		pathStr = strings.Join(parts, "/")
	}

	if pathStr != "" {
		return fmt.Sprintf("%s: %s (at %s)", match.Rule.ID, match.Message, pathStr)
	}
	return fmt.Sprintf("%s: %s", match.Rule.ID, match.Message)
}
