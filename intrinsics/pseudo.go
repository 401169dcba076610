package intrinsics

import (
	"github.com/lex00/cloudformation-schema-go/intrinsics"
)

// Pseudo-parameters predefined by CloudFormation.
var (
	// AWS_ACCOUNT_ID returns the AWS account ID of the account in which the stack is created.
	AWS_ACCOUNT_ID = intrinsics.AWS_ACCOUNT_ID

	// AWS_PARTITION returns the partition the resource is in (aws, aws-cn, aws-us-gov).
	AWS_PARTITION = intrinsics.AWS_PARTITION

	// AWS_REGION returns the AWS Region in which the stack is created.
	AWS_REGION = intrinsics.AWS_REGION

	// AWS_STACK_NAME returns the name of the stack.
	AWS_STACK_NAME = intrinsics.AWS_STACK_NAME

	// AWS_URL_SUFFIX returns the suffix for a domain (usually amazonaws.com).
	AWS_URL_SUFFIX = intrinsics.AWS_URL_SUFFIX
)
