package stack

import "github.com/lex00/hexagonal-serverless-go/intrinsics"

// Typed property sets for the resource types the stack declares. They are
// converted with serialize.Properties, so zero fields are omitted.

type tableProperties struct {
	AttributeDefinitions []attributeDefinition `json:"AttributeDefinitions"`
	KeySchema            []keySchemaElement    `json:"KeySchema"`
	BillingMode          string                `json:"BillingMode,omitempty"`
	TableName            any                   `json:"TableName,omitempty"`
	Tags                 []intrinsics.Tag      `json:"Tags,omitempty"`
}

type attributeDefinition struct {
	AttributeName string `json:"AttributeName"`
	AttributeType string `json:"AttributeType"`
}

type keySchemaElement struct {
	AttributeName string `json:"AttributeName"`
	KeyType       string `json:"KeyType"`
}

type roleProperties struct {
	AssumeRolePolicyDocument intrinsics.PolicyDocument `json:"AssumeRolePolicyDocument"`
	Description              string                    `json:"Description,omitempty"`
	ManagedPolicyArns        []any                     `json:"ManagedPolicyArns,omitempty"`
	Tags                     []intrinsics.Tag          `json:"Tags,omitempty"`
}

type policyProperties struct {
	PolicyName     any                       `json:"PolicyName"`
	PolicyDocument intrinsics.PolicyDocument `json:"PolicyDocument"`
	Roles          []any                     `json:"Roles"`
}

type functionProperties struct {
	FunctionName                 string               `json:"FunctionName,omitempty"`
	Description                  string               `json:"Description,omitempty"`
	Handler                      string               `json:"Handler"`
	Runtime                      string               `json:"Runtime"`
	Architectures                []string             `json:"Architectures,omitempty"`
	MemorySize                   int                  `json:"MemorySize"`
	Timeout                      int                  `json:"Timeout"`
	Code                         string               `json:"Code"`
	Role                         any                  `json:"Role"`
	Environment                  *functionEnvironment `json:"Environment,omitempty"`
	Layers                       []any                `json:"Layers,omitempty"`
	TracingConfig                *tracingConfig       `json:"TracingConfig,omitempty"`
	ReservedConcurrentExecutions *int                 `json:"ReservedConcurrentExecutions,omitempty"`
	Tags                         []intrinsics.Tag     `json:"Tags,omitempty"`
}

type functionEnvironment struct {
	Variables map[string]any `json:"Variables"`
}

type tracingConfig struct {
	Mode string `json:"Mode"`
}

type restAPIProperties struct {
	Name        string           `json:"Name"`
	Description string           `json:"Description,omitempty"`
	Tags        []intrinsics.Tag `json:"Tags,omitempty"`
}

type apiResourceProperties struct {
	RestApiId any    `json:"RestApiId"`
	ParentId  any    `json:"ParentId"`
	PathPart  string `json:"PathPart"`
}

type apiMethodProperties struct {
	RestApiId         any            `json:"RestApiId"`
	ResourceId        any            `json:"ResourceId"`
	HttpMethod        string         `json:"HttpMethod"`
	AuthorizationType string         `json:"AuthorizationType"`
	Integration       apiIntegration `json:"Integration"`
}

type apiIntegration struct {
	Type                  string `json:"Type"`
	IntegrationHttpMethod string `json:"IntegrationHttpMethod"`
	Uri                   any    `json:"Uri"`
}

type apiDeploymentProperties struct {
	RestApiId any    `json:"RestApiId"`
	StageName string `json:"StageName"`
}

type permissionProperties struct {
	Action       string `json:"Action"`
	FunctionName any    `json:"FunctionName"`
	Principal    string `json:"Principal"`
	SourceArn    any    `json:"SourceArn,omitempty"`
}
