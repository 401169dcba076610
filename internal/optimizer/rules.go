package optimizer

import (
	"fmt"
	"strings"

	hexagonal "github.com/lex00/hexagonal-serverless-go"
)

// apiGatewayTimeout is the integration timeout of REST APIs, in seconds.
const apiGatewayTimeout = 29

// s3BucketRules contains optimization rules for S3 buckets.
var s3BucketRules = []Rule{
	{
		ID:       "OPT-S3-001",
		Category: "security",
		Title:    "Enable S3 bucket encryption",
		Check: func(res Resource) *hexagonal.OptimizeSuggestion {
			if has(res.Def.Properties, "BucketEncryption") {
				return nil
			}
			return &hexagonal.OptimizeSuggestion{
				Severity:    "high",
				Description: "S3 buckets should have server-side encryption enabled to protect data at rest.",
				Suggestion:  "Add BucketEncryption with SSE-S3 or SSE-KMS configuration.",
			}
		},
	},
	{
		ID:       "OPT-S3-002",
		Category: "security",
		Title:    "Block public access",
		Check: func(res Resource) *hexagonal.OptimizeSuggestion {
			if has(res.Def.Properties, "PublicAccessBlockConfiguration") {
				return nil
			}
			return &hexagonal.OptimizeSuggestion{
				Severity:    "high",
				Description: "S3 buckets should have PublicAccessBlockConfiguration to prevent accidental public exposure.",
				Suggestion:  "Add PublicAccessBlockConfiguration with BlockPublicAcls, BlockPublicPolicy, IgnorePublicAcls, and RestrictPublicBuckets set to true.",
			}
		},
	},
}

// lambdaFunctionRules contains optimization rules for Lambda functions.
var lambdaFunctionRules = []Rule{
	{
		ID:       "OPT-LAM-001",
		Category: "performance",
		Title:    "Review Lambda memory configuration",
		Check: func(res Resource) *hexagonal.OptimizeSuggestion {
			memory, ok := number(res.Def.Properties["MemorySize"])
			if ok && memory > 128 {
				return nil
			}
			return &hexagonal.OptimizeSuggestion{
				Severity:    "medium",
				Description: "Lambda allocates CPU in proportion to memory; 128 MB functions are CPU starved and often cost more per request.",
				Suggestion:  "Raise MemorySize, or use AWS Lambda Power Tuning to find the optimal setting.",
			}
		},
	},
	{
		ID:       "OPT-LAM-002",
		Category: "cost",
		Title:    "Timeout exceeds the API Gateway integration limit",
		Check: func(res Resource) *hexagonal.OptimizeSuggestion {
			timeout, ok := number(res.Def.Properties["Timeout"])
			if !ok || timeout <= apiGatewayTimeout || !behindAPIGateway(res) {
				return nil
			}
			return &hexagonal.OptimizeSuggestion{
				Severity:    "low",
				Description: fmt.Sprintf("API Gateway answers 504 after %ds, but the function keeps running and billing for up to %vs.", apiGatewayTimeout, timeout),
				Suggestion:  fmt.Sprintf("Set Timeout to %d seconds or less.", apiGatewayTimeout),
			}
		},
	},
	{
		ID:       "OPT-LAM-003",
		Category: "reliability",
		Title:    "Enable active tracing",
		Check: func(res Resource) *hexagonal.OptimizeSuggestion {
			if tracing, ok := res.Def.Properties["TracingConfig"].(map[string]any); ok && tracing["Mode"] == "Active" {
				return nil
			}
			return &hexagonal.OptimizeSuggestion{
				Severity:    "low",
				Description: "X-Ray tracing shows where requests spend their time across API Gateway, Lambda and DynamoDB.",
				Suggestion:  "Set TracingConfig.Mode to Active and grant AWSXRayDaemonWriteAccess.",
			}
		},
	},
}

// iamRules contains optimization rules for IAM resources.
var iamRules = []Rule{
	{
		ID:       "OPT-IAM-001",
		Category: "security",
		Title:    "Use least privilege",
		Check: func(res Resource) *hexagonal.OptimizeSuggestion {
			var wildcards []string
			for _, doc := range policyDocuments(res.Def.Properties) {
				wildcards = append(wildcards, wildcardStatements(doc)...)
			}
			if len(wildcards) == 0 {
				return nil
			}
			return &hexagonal.OptimizeSuggestion{
				Severity:    "high",
				Description: "Policy grants wildcard permissions: " + strings.Join(wildcards, ", ") + ".",
				Suggestion:  "Replace wildcard (*) permissions with specific resource ARNs and actions.",
			}
		},
	},
	{
		ID:       "OPT-IAM-002",
		Category: "security",
		Title:    "Avoid administrator managed policies",
		Check: func(res Resource) *hexagonal.OptimizeSuggestion {
			arns, _ := res.Def.Properties["ManagedPolicyArns"].([]any)
			for _, a := range arns {
				if s, ok := a.(string); ok && strings.HasSuffix(s, "/AdministratorAccess") {
					return &hexagonal.OptimizeSuggestion{
						Severity:    "high",
						Description: "The role carries AdministratorAccess.",
						Suggestion:  "Attach only the managed policies the function needs.",
					}
				}
			}
			return nil
		},
	},
}

// dynamoDBTableRules contains optimization rules for DynamoDB tables.
var dynamoDBTableRules = []Rule{
	{
		ID:       "OPT-DDB-001",
		Category: "cost",
		Title:    "Review DynamoDB capacity mode",
		Check: func(res Resource) *hexagonal.OptimizeSuggestion {
			if res.Def.Properties["BillingMode"] == "PAY_PER_REQUEST" {
				return nil
			}
			return &hexagonal.OptimizeSuggestion{
				Severity:    "medium",
				Description: "Provisioned capacity without auto-scaling is billed whether or not it is used.",
				Suggestion:  "Use PAY_PER_REQUEST for variable workloads, or provisioned with auto-scaling for steady traffic.",
			}
		},
	},
	{
		ID:       "OPT-DDB-002",
		Category: "reliability",
		Title:    "Enable point-in-time recovery",
		Check: func(res Resource) *hexagonal.OptimizeSuggestion {
			if spec, ok := res.Def.Properties["PointInTimeRecoverySpecification"].(map[string]any); ok && spec["PointInTimeRecoveryEnabled"] == true {
				return nil
			}
			return &hexagonal.OptimizeSuggestion{
				Severity:    "medium",
				Description: "Point-in-time recovery (PITR) provides continuous backups of your DynamoDB table data.",
				Suggestion:  "Set PointInTimeRecoverySpecification.PointInTimeRecoveryEnabled to true.",
			}
		},
	},
}

// statefulTypes hold data that is lost when the resource is deleted.
var statefulTypes = map[string]bool{
	"AWS::DynamoDB::Table": true,
	"AWS::S3::Bucket":      true,
	"AWS::RDS::DBInstance": true,
	"AWS::EFS::FileSystem": true,
	"AWS::Logs::LogGroup":  true,
}

// genericRules apply to all resources.
var genericRules = []Rule{
	{
		ID:       "OPT-GEN-001",
		Category: "reliability",
		Title:    "Retain stateful resources on deletion",
		Check: func(res Resource) *hexagonal.OptimizeSuggestion {
			if !statefulTypes[res.Def.Type] || retains(res.Def.DeletionPolicy) {
				return nil
			}
			return &hexagonal.OptimizeSuggestion{
				Severity:    "low",
				Description: "DeletionPolicy controls behavior when the resource is deleted from the stack. The data is lost with the current policy.",
				Suggestion:  "Synthesize production stacks with --production, or set DeletionPolicy: Retain.",
			}
		},
	},
	{
		ID:       "OPT-GEN-002",
		Category: "reliability",
		Title:    "Retain stateful resources on replacement",
		Check: func(res Resource) *hexagonal.OptimizeSuggestion {
			if !statefulTypes[res.Def.Type] || retains(res.Def.UpdateReplacePolicy) {
				return nil
			}
			return &hexagonal.OptimizeSuggestion{
				Severity:    "low",
				Description: "UpdateReplacePolicy controls behavior when updates require resource replacement.",
				Suggestion:  "Set UpdateReplacePolicy: Retain or UpdateReplacePolicy: Snapshot.",
			}
		},
	},
}

func retains(policy string) bool {
	return policy == "Retain" || policy == "Snapshot"
}

func has(props map[string]any, key string) bool {
	_, ok := props[key]
	return ok
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

// behindAPIGateway reports whether an API Gateway method integrates with
// the function.
func behindAPIGateway(res Resource) bool {
	for _, def := range res.Template.Resources {
		if def.Type != "AWS::ApiGateway::Method" {
			continue
		}
		integration, _ := def.Properties["Integration"].(map[string]any)
		if references(integration["Uri"], res.Name) {
			return true
		}
	}
	return false
}

// references reports whether v mentions logicalID through Ref, Fn::GetAtt
// or a ${logicalID...} substitution.
func references(v any, logicalID string) bool {
	switch val := v.(type) {
	case map[string]any:
		for k, inner := range val {
			if k == "Ref" && inner == logicalID {
				return true
			}
			if k == "Fn::GetAtt" {
				if parts, ok := inner.([]any); ok && len(parts) > 0 && parts[0] == logicalID {
					return true
				}
			}
			if references(inner, logicalID) {
				return true
			}
		}
	case []any:
		for _, inner := range val {
			if references(inner, logicalID) {
				return true
			}
		}
	case string:
		return strings.Contains(val, "${"+logicalID+"}") || strings.Contains(val, "${"+logicalID+".")
	}
	return false
}

func policyDocuments(props map[string]any) []map[string]any {
	var docs []map[string]any
	if doc, ok := props["PolicyDocument"].(map[string]any); ok {
		docs = append(docs, doc)
	}
	policies, _ := props["Policies"].([]any)
	for _, p := range policies {
		if pm, ok := p.(map[string]any); ok {
			if doc, ok := pm["PolicyDocument"].(map[string]any); ok {
				docs = append(docs, doc)
			}
		}
	}
	return docs
}

func wildcardStatements(doc map[string]any) []string {
	var found []string
	statements, _ := doc["Statement"].([]any)
	for i, s := range statements {
		stmt, ok := s.(map[string]any)
		if !ok || stmt["Effect"] != "Allow" {
			continue
		}
		for _, field := range []string{"Action", "Resource"} {
			if wildcard(stmt[field]) {
				found = append(found, fmt.Sprintf("Statement[%d].%s", i, field))
			}
		}
	}
	return found
}

func wildcard(v any) bool {
	switch val := v.(type) {
	case string:
		return val == "*" || strings.HasSuffix(val, ":*")
	case []any:
		for _, inner := range val {
			if wildcard(inner) {
				return true
			}
		}
	}
	return false
}
