// Package intrinsics provides the CloudFormation intrinsic functions used by
// the stack definitions.
//
// The core types are re-exported from cloudformation-schema-go:
//
//	Ref{"GreetingsTable"}                    → {"Ref": "GreetingsTable"}
//	GetAtt{"GreetingsTable", "Arn"}          → {"Fn::GetAtt": ["GreetingsTable", "Arn"]}
//	Sub{"https://${HelloWorldApi}.execute-api.${AWS::Region}.amazonaws.com/prod/"}
//
// IAM policy helpers live in policy.go.
package intrinsics

import (
	"sort"

	"github.com/lex00/cloudformation-schema-go/intrinsics"
)

type (
	// Ref represents a CloudFormation Ref intrinsic function.
	Ref = intrinsics.Ref

	// GetAtt represents a CloudFormation Fn::GetAtt intrinsic function.
	GetAtt = intrinsics.GetAtt

	// Sub represents a CloudFormation Fn::Sub intrinsic function.
	Sub = intrinsics.Sub

	// Join represents a CloudFormation Fn::Join intrinsic function.
	Join = intrinsics.Join

	// Tag represents a CloudFormation resource tag.
	Tag = intrinsics.Tag
)

// RefTo returns a Ref to the given logical ID.
func RefTo(logicalID string) Ref {
	return Ref{LogicalName: logicalID}
}

// Arn returns the Arn attribute of the given logical ID.
func Arn(logicalID string) GetAtt {
	return GetAtt{LogicalName: logicalID, Attribute: "Arn"}
}

// Tags converts a key/value map to a tag list sorted by key.
func Tags(m map[string]string) []Tag {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tags := make([]Tag, 0, len(keys))
	for _, k := range keys {
		tags = append(tags, Tag{Key: k, Value: m[k]})
	}
	return tags
}

// IntPtr returns a pointer to the given int value.
func IntPtr(i int) *int {
	return &i
}
