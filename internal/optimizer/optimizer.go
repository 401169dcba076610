// Package optimizer suggests security, cost, performance and reliability
// improvements for the resources of a synthesized template.
package optimizer

import (
	"sort"

	hexagonal "github.com/lex00/hexagonal-serverless-go"
)

// Categories lists the valid Options.Category values.
var Categories = []string{"all", "security", "cost", "performance", "reliability"}

// Options configures the optimizer.
type Options struct {
	// Category filters suggestions: "all", "security", "cost", "performance", "reliability"
	Category string
}

// Result contains optimization suggestions.
type Result struct {
	Suggestions []hexagonal.OptimizeSuggestion
	Summary     hexagonal.OptimizeSummary
}

// ValidCategory reports whether category is one of Categories.
func ValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// Resource is a template resource under analysis.
type Resource struct {
	Name     string
	Def      hexagonal.ResourceDef
	Template *hexagonal.Template
}

// Optimize analyzes every resource of t. Suggestions are ordered by resource
// name, then rule ID.
func Optimize(t *hexagonal.Template, opts Options) *Result {
	if opts.Category == "" {
		opts.Category = "all"
	}
	result := &Result{}

	names := make([]string, 0, len(t.Resources))
	for name := range t.Resources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		res := Resource{Name: name, Def: t.Resources[name], Template: t}
		result.Suggestions = append(result.Suggestions, analyzeResource(res, opts.Category)...)
	}

	result.Summary = calculateSummary(result.Suggestions)
	return result
}

func analyzeResource(res Resource, category string) []hexagonal.OptimizeSuggestion {
	var suggestions []hexagonal.OptimizeSuggestion

	for _, rule := range rulesForType(res.Def.Type) {
		if category != "all" && rule.Category != category {
			continue
		}
		if s := rule.Check(res); s != nil {
			s.Resource = res.Name
			s.Rule = rule.ID
			s.Category = rule.Category
			if s.Title == "" {
				s.Title = rule.Title
			}
			suggestions = append(suggestions, *s)
		}
	}

	return suggestions
}

// calculateSummary tallies suggestions by category.
func calculateSummary(suggestions []hexagonal.OptimizeSuggestion) hexagonal.OptimizeSummary {
	summary := hexagonal.OptimizeSummary{}
	for _, s := range suggestions {
		switch s.Category {
		case "security":
			summary.Security++
		case "cost":
			summary.Cost++
		case "performance":
			summary.Performance++
		case "reliability":
			summary.Reliability++
		}
		summary.Total++
	}
	return summary
}

// Rule represents an optimization rule. Check returns nil when the resource
// already follows the rule.
type Rule struct {
	ID       string
	Category string
	Title    string
	Check    func(res Resource) *hexagonal.OptimizeSuggestion
}

func rulesForType(resourceType string) []Rule {
	var rules []Rule

	switch resourceType {
	case "AWS::S3::Bucket":
		rules = append(rules, s3BucketRules...)
	case "AWS::Lambda::Function":
		rules = append(rules, lambdaFunctionRules...)
	case "AWS::IAM::Role", "AWS::IAM::Policy":
		rules = append(rules, iamRules...)
	case "AWS::DynamoDB::Table":
		rules = append(rules, dynamoDBTableRules...)
	}

	return append(rules, genericRules...)
}
