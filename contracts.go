// Package hexagonal_serverless holds the shared contract types for the
// hexagonal serverless toolkit.
//
// The toolkit synthesizes a CloudFormation template for a small serverless
// application (one DynamoDB table, one Lambda function, one API Gateway
// route), bundles function code for deployment, and locates deployed
// resources by tag:
//
//	hexagonal synth --prefix demo -o template.json
//	hexagonal bundle --root .
//	hexagonal discover table GreetingsTable
//
// The types in this package are what the CLI prints and what the internal
// packages exchange.
package hexagonal_serverless

// Template represents a CloudFormation template.
type Template struct {
	AWSTemplateFormatVersion string                 `json:"AWSTemplateFormatVersion" yaml:"AWSTemplateFormatVersion"`
	Description              string                 `json:"Description,omitempty" yaml:"Description,omitempty"`
	Parameters               map[string]Parameter   `json:"Parameters,omitempty" yaml:"Parameters,omitempty"`
	Resources                map[string]ResourceDef `json:"Resources" yaml:"Resources"`
	Outputs                  map[string]Output      `json:"Outputs,omitempty" yaml:"Outputs,omitempty"`
}

// ResourceDef is a single resource in the CloudFormation template.
type ResourceDef struct {
	Type                string         `json:"Type" yaml:"Type"`
	Properties          map[string]any `json:"Properties,omitempty" yaml:"Properties,omitempty"`
	DependsOn           []string       `json:"DependsOn,omitempty" yaml:"DependsOn,omitempty"`
	DeletionPolicy      string         `json:"DeletionPolicy,omitempty" yaml:"DeletionPolicy,omitempty"`
	UpdateReplacePolicy string         `json:"UpdateReplacePolicy,omitempty" yaml:"UpdateReplacePolicy,omitempty"`
}

// Parameter is a CloudFormation template parameter.
type Parameter struct {
	Type          string   `json:"Type" yaml:"Type"`
	Description   string   `json:"Description,omitempty" yaml:"Description,omitempty"`
	Default       any      `json:"Default,omitempty" yaml:"Default,omitempty"`
	AllowedValues []string `json:"AllowedValues,omitempty" yaml:"AllowedValues,omitempty"`
}

// Output is a CloudFormation template output.
type Output struct {
	Description string  `json:"Description,omitempty" yaml:"Description,omitempty"`
	Value       any     `json:"Value" yaml:"Value"`
	Export      *Export `json:"Export,omitempty" yaml:"Export,omitempty"`
}

// Export names a cross-stack output.
type Export struct {
	Name string `json:"Name" yaml:"Name"`
}

// SynthResult is the JSON output from `hexagonal synth --json`.
type SynthResult struct {
	Success   bool     `json:"success"`
	StackName string   `json:"stack_name,omitempty"`
	Template  Template `json:"template,omitempty"`
	Resources []string `json:"resources,omitempty"`
	Errors    []string `json:"errors,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
}

// BundleResult is the JSON output from `hexagonal bundle --json`.
type BundleResult struct {
	Success   bool     `json:"success"`
	Shared    string   `json:"shared,omitempty"`
	Functions []string `json:"functions,omitempty"`
	Errors    []string `json:"errors,omitempty"`
}

// DiscoveredResource is a deployed resource located through the tagging API.
type DiscoveredResource struct {
	ARN        string            `json:"arn"`
	Type       string            `json:"type"`
	Name       string            `json:"name"`
	ResourceID string            `json:"resource_id,omitempty"`
	Tags       map[string]string `json:"tags,omitempty"`
}

// DiscoverResult is the JSON output from `hexagonal discover`.
type DiscoverResult struct {
	Found     bool                            `json:"found"`
	Value     string                          `json:"value,omitempty"`
	Resource  *DiscoveredResource             `json:"resource,omitempty"`
	Resources map[string][]DiscoveredResource `json:"resources,omitempty"`
}

// TemplateDiff lists resource level differences between two templates.
// Output changes are reported separately.
type TemplateDiff struct {
	Added    []DiffEntry `json:"added,omitempty"`
	Removed  []DiffEntry `json:"removed,omitempty"`
	Modified []DiffEntry `json:"modified,omitempty"`
	Outputs  []string    `json:"outputs,omitempty"`
}

// DiffEntry is one changed resource.
type DiffEntry struct {
	Resource string   `json:"resource"`
	Type     string   `json:"type"`
	Changes  []string `json:"changes,omitempty"`
}

// DiffSummary counts the entries of a TemplateDiff.
type DiffSummary struct {
	Added    int `json:"added"`
	Removed  int `json:"removed"`
	Modified int `json:"modified"`
	Outputs  int `json:"outputs"`
	Total    int `json:"total"`
}

// SchemaError is a resource property that fails offline schema validation.
type SchemaError struct {
	Resource string `json:"resource"`
	Property string `json:"property"`
	Message  string `json:"message"`
}

func (e SchemaError) String() string {
	return e.Resource + "." + e.Property + ": " + e.Message
}

// OptimizeSuggestion is one improvement proposed for a resource.
type OptimizeSuggestion struct {
	Resource    string `json:"resource"`
	Rule        string `json:"rule"`
	Category    string `json:"category"`
	Severity    string `json:"severity"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Suggestion  string `json:"suggestion"`
}

// OptimizeSummary counts suggestions by category.
type OptimizeSummary struct {
	Security    int `json:"security"`
	Cost        int `json:"cost"`
	Performance int `json:"performance"`
	Reliability int `json:"reliability"`
	Total       int `json:"total"`
}

// OptimizeResult is the JSON output from `hexagonal optimize`.
type OptimizeResult struct {
	Success       bool                 `json:"success"`
	ResourceCount int                  `json:"resource_count"`
	Suggestions   []OptimizeSuggestion `json:"suggestions,omitempty"`
	Summary       OptimizeSummary      `json:"summary"`
}
