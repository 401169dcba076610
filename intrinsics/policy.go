package intrinsics

import (
	"encoding/json"
)

// Json is a shorthand for map[string]any.
type Json = map[string]any

// PolicyDocument represents an IAM policy document.
type PolicyDocument struct {
	Version   string `json:"Version,omitempty"`
	Statement []any  `json:"Statement"`
}

// NewPolicyDocument creates a PolicyDocument with the default version.
func NewPolicyDocument(statements ...any) PolicyDocument {
	return PolicyDocument{Version: "2012-10-17", Statement: statements}
}

// PolicyStatement represents an IAM policy statement.
type PolicyStatement struct {
	Sid       string `json:"Sid,omitempty"`
	Effect    string `json:"Effect"`
	Principal any    `json:"Principal,omitempty"`
	Action    any    `json:"Action,omitempty"`
	Resource  any    `json:"Resource,omitempty"`
	Condition Json   `json:"Condition,omitempty"`
}

// Allow returns an Allow statement for the given actions on the given resources.
func Allow(actions []string, resources ...any) PolicyStatement {
	return PolicyStatement{
		Effect:   "Allow",
		Action:   actions,
		Resource: resources,
	}
}

// AssumeRolePolicy returns a trust policy that lets the named service assume a role.
//
//	AssumeRolePolicy("lambda.amazonaws.com")
func AssumeRolePolicy(service string) PolicyDocument {
	return NewPolicyDocument(PolicyStatement{
		Effect:    "Allow",
		Principal: ServicePrincipal{service},
		Action:    "sts:AssumeRole",
	})
}

// ServicePrincipal represents a service principal (e.g., lambda.amazonaws.com).
// Serializes to {"Service": ...} format.
type ServicePrincipal []any

// MarshalJSON serializes to {"Service": ...} format.
func (p ServicePrincipal) MarshalJSON() ([]byte, error) {
	if len(p) == 1 {
		return json.Marshal(map[string]any{"Service": p[0]})
	}
	return json.Marshal(map[string]any{"Service": []any(p)})
}

// ManagedPolicyArn returns the partition-aware ARN of an AWS managed policy.
//
//	ManagedPolicyArn("service-role/AWSLambdaBasicExecutionRole")
func ManagedPolicyArn(name string) Join {
	return Join{Delimiter: "", Values: []any{"arn:", AWS_PARTITION, ":iam::aws:policy/" + name}}
}
