package stack

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/lex00/hexagonal-serverless-go/internal/serialize"
	"github.com/lex00/hexagonal-serverless-go/internal/template"
	"github.com/lex00/hexagonal-serverless-go/intrinsics"
)

// Function defaults.
const (
	DefaultMemorySize   = 128
	DefaultTimeout      = 30 * time.Second
	DefaultRuntime      = "provided.al2023"
	DefaultHandler      = "bootstrap"
	DefaultArchitecture = "x86_64"
	DefaultTracing      = "Active"
)

// Baseline managed policies attached to generated execution roles.
var defaultManagedPolicies = []string{
	"service-role/AWSLambdaBasicExecutionRole",
	"AWSXRayDaemonWriteAccess",
}

// FunctionConfig describes one Lambda function. Zero fields take the
// package defaults.
type FunctionConfig struct {
	// FunctionName names the bundle directory under dist/functions and
	// seeds the logical IDs.
	FunctionName string
	Handler      string
	MemorySize   int
	Timeout      time.Duration
	Runtime      string
	Architecture string
	// Environment values may be plain strings or intrinsics.
	Environment map[string]any
	Layers      []any
	Tracing     string
	Description string
	// ReservedConcurrentExecutions is omitted when nil.
	ReservedConcurrentExecutions *int
	// Role is a caller-supplied execution role ARN (string or intrinsic).
	// When nil a role with the baseline policies is generated.
	Role any
	Tags map[string]string
}

func (c FunctionConfig) withDefaults() FunctionConfig {
	if c.Handler == "" {
		c.Handler = DefaultHandler
	}
	if c.MemorySize == 0 {
		c.MemorySize = DefaultMemorySize
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Runtime == "" {
		c.Runtime = DefaultRuntime
	}
	if c.Architecture == "" {
		c.Architecture = DefaultArchitecture
	}
	if c.Tracing == "" {
		c.Tracing = DefaultTracing
	}
	if c.Description == "" {
		c.Description = "Lambda function for " + c.FunctionName
	}
	return c
}

func (c FunctionConfig) validate() error {
	if c.FunctionName == "" {
		return errors.New("function name is required")
	}
	if serialize.LogicalID(c.FunctionName) == "" {
		return fmt.Errorf("function name %q has no alphanumeric characters", c.FunctionName)
	}
	if c.MemorySize < 128 || c.MemorySize > 10240 {
		return fmt.Errorf("function %s: memory size %d outside 128-10240 MB", c.FunctionName, c.MemorySize)
	}
	if c.Timeout < time.Second || c.Timeout > 15*time.Minute {
		return fmt.Errorf("function %s: timeout %s outside 1s-15m", c.FunctionName, c.Timeout)
	}
	return nil
}

// Function is a function declared by the factory.
type Function struct {
	Name string
	// LogicalID is the AWS::Lambda::Function logical ID.
	LogicalID string
	// RoleLogicalID is empty when the role was supplied by the caller.
	RoleLogicalID string
	// ResourceID is the generated ResourceId tag value.
	ResourceID string
	// CodePath is the bundle directory referenced by the Code property.
	CodePath string
}

// Arn returns the function's Arn attribute.
func (f *Function) Arn() intrinsics.GetAtt {
	return intrinsics.Arn(f.LogicalID)
}

// Factory declares Lambda functions on a template builder.
type Factory struct {
	builder *template.Builder
	distDir string

	// SkipAssetCheck disables the bundle directory existence check.
	SkipAssetCheck bool
	// Tags are applied to every resource the factory creates.
	Tags map[string]string

	newID func() string
}

// NewFactory returns a Factory whose functions reference bundles under
// distDir/functions.
func NewFactory(b *template.Builder, distDir string) *Factory {
	return &Factory{
		builder: b,
		distDir: distDir,
		newID:   uuid.NewString,
	}
}

// StableIDs returns an ID generator whose n-th value is a name-based UUID
// derived from seed, so repeated synthesis yields identical ResourceId tags.
func StableIDs(seed string) func() string {
	n := 0
	return func() string {
		n++
		return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s/%d", seed, n))).String()
	}
}

// CodePath returns the bundle directory for a function name.
func (f *Factory) CodePath(name string) string {
	return filepath.Join(f.distDir, "functions", name)
}

// CreateFunction declares the function, and its execution role when none is
// supplied. It fails when the bundle directory does not exist.
func (f *Factory) CreateFunction(cfg FunctionConfig) (*Function, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	codePath := f.CodePath(cfg.FunctionName)
	if !f.SkipAssetCheck {
		info, err := os.Stat(codePath)
		if err != nil || !info.IsDir() {
			return nil, fmt.Errorf("function code not found at %s: run the bundle step first", codePath)
		}
	}

	base := serialize.LogicalID(cfg.FunctionName)
	fn := &Function{
		Name:       cfg.FunctionName,
		LogicalID:  base + "Function",
		ResourceID: f.newID(),
		CodePath:   codePath,
	}

	role := cfg.Role
	if role == nil {
		fn.RoleLogicalID = base + "Role"
		if err := f.addRole(fn.RoleLogicalID, cfg.FunctionName); err != nil {
			return nil, err
		}
		role = intrinsics.Arn(fn.RoleLogicalID)
	}

	tags := mergeTags(f.Tags, cfg.Tags, map[string]string{
		"Name":       cfg.FunctionName,
		"ResourceId": fn.ResourceID,
	})

	props := functionProperties{
		Description:                  cfg.Description,
		Handler:                      cfg.Handler,
		Runtime:                      cfg.Runtime,
		Architectures:                []string{cfg.Architecture},
		MemorySize:                   cfg.MemorySize,
		Timeout:                      int(cfg.Timeout / time.Second),
		Code:                         codePath,
		Role:                         role,
		Layers:                       cfg.Layers,
		TracingConfig:                &tracingConfig{Mode: cfg.Tracing},
		ReservedConcurrentExecutions: cfg.ReservedConcurrentExecutions,
		Tags:                         intrinsics.Tags(tags),
	}
	if len(cfg.Environment) > 0 {
		props.Environment = &functionEnvironment{Variables: cfg.Environment}
	}

	if err := f.add(fn.LogicalID, "AWS::Lambda::Function", props); err != nil {
		return nil, err
	}
	return fn, nil
}

// GrantReadWriteData lets fn read and write items in the table. The
// function's generated role receives an inline policy and the function
// depends on it.
func (f *Factory) GrantReadWriteData(fn *Function, tableLogicalID string) error {
	if fn.RoleLogicalID == "" {
		return fmt.Errorf("function %s uses a caller-supplied role; attach table permissions to that role instead", fn.Name)
	}
	if !f.builder.Has(tableLogicalID) {
		return fmt.Errorf("unknown table: %s", tableLogicalID)
	}

	policyID := fn.RoleLogicalID + "DefaultPolicy"
	if f.builder.Has(policyID) {
		return fmt.Errorf("function %s already has a table grant", fn.Name)
	}
	props := policyProperties{
		PolicyName: intrinsics.Sub{String: "${AWS::StackName}-" + policyID},
		PolicyDocument: intrinsics.NewPolicyDocument(
			intrinsics.Allow(tableReadWriteActions,
				intrinsics.Arn(tableLogicalID),
				intrinsics.Sub{String: "${" + tableLogicalID + ".Arn}/index/*"},
			),
		),
		Roles: []any{intrinsics.RefTo(fn.RoleLogicalID)},
	}
	if err := f.add(policyID, "AWS::IAM::Policy", props); err != nil {
		return err
	}

	return f.builder.Update(fn.LogicalID, func(r *template.Resource) {
		r.DependsOn = append(r.DependsOn, policyID)
	})
}

var tableReadWriteActions = []string{
	"dynamodb:BatchGetItem",
	"dynamodb:BatchWriteItem",
	"dynamodb:ConditionCheckItem",
	"dynamodb:DeleteItem",
	"dynamodb:DescribeTable",
	"dynamodb:GetItem",
	"dynamodb:GetRecords",
	"dynamodb:GetShardIterator",
	"dynamodb:PutItem",
	"dynamodb:Query",
	"dynamodb:Scan",
	"dynamodb:UpdateItem",
}

func (f *Factory) addRole(logicalID, functionName string) error {
	arns := make([]any, 0, len(defaultManagedPolicies))
	for _, p := range defaultManagedPolicies {
		arns = append(arns, intrinsics.ManagedPolicyArn(p))
	}
	return f.add(logicalID, "AWS::IAM::Role", roleProperties{
		AssumeRolePolicyDocument: intrinsics.AssumeRolePolicy("lambda.amazonaws.com"),
		Description:              "Execution role for " + functionName,
		ManagedPolicyArns:        arns,
		Tags:                     intrinsics.Tags(mergeTags(f.Tags, map[string]string{"Name": functionName + "-role"})),
	})
}

func (f *Factory) add(logicalID, resourceType string, props any) error {
	p, err := serialize.Properties(props)
	if err != nil {
		return fmt.Errorf("serializing %s: %w", logicalID, err)
	}
	return f.builder.Add(logicalID, template.Resource{Type: resourceType, Properties: p})
}

// mergeTags merges tag maps; later maps win.
func mergeTags(maps ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}
