package discovery

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi"
	"github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi/types"
	"go.uber.org/zap"
)

// NameTag is the tag holding a function's declared name.
const NameTag = "Name"

// LambdaAPI is the subset of the Lambda client Invoker uses.
type LambdaAPI interface {
	Invoke(ctx context.Context, in *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

var _ LambdaAPI = (*lambda.Client)(nil)

// FunctionError reports an error raised inside an invoked function.
type FunctionError struct {
	Function string
	Kind     string
	Payload  []byte
}

func (e *FunctionError) Error() string {
	return fmt.Sprintf("function %s failed (%s): %s", e.Function, e.Kind, e.Payload)
}

// Invoker finds functions by their Name tag within the application and
// invokes them synchronously.
type Invoker struct {
	discovery *Discovery
	lambda    LambdaAPI
	log       *zap.Logger
}

// NewInvoker returns an Invoker for functions carrying the application tag.
// It fails like New when the tag key or value is empty.
func NewInvoker(tags TagConfig, tagging TaggingAPI, client LambdaAPI, log *zap.Logger) (*Invoker, error) {
	d, err := New(tags, tagging, log)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, fmt.Errorf("discovery: nil lambda client")
	}
	return &Invoker{discovery: d, lambda: client, log: d.log}, nil
}

// NewInvokerFromConfig returns an Invoker backed by real SDK clients.
func NewInvokerFromConfig(cfg aws.Config, tags TagConfig, log *zap.Logger) (*Invoker, error) {
	return NewInvoker(tags, resourcegroupstaggingapi.NewFromConfig(cfg), lambda.NewFromConfig(cfg), log)
}

// FindFunctionByNameTag returns the physical name of the function carrying
// the application tag and Name=<name>.
func (i *Invoker) FindFunctionByNameTag(ctx context.Context, name string) (string, bool, error) {
	filters := append(i.discovery.filters(""), types.TagFilter{Key: aws.String(NameTag), Values: []string{name}})

	mappings, err := i.discovery.getResources(ctx, TypeFunction, filters, 1)
	if err != nil {
		i.log.Error("finding function failed", zap.String("name", name), zap.Error(err))
		return "", false, fmt.Errorf("finding function %s: %w", name, err)
	}
	if len(mappings) == 0 {
		i.log.Warn("function not found", zap.String("name", name))
		return "", false, nil
	}
	return afterLast(aws.ToString(mappings[0].ResourceARN), ":"), true, nil
}

// Invoke finds the function tagged Name=<name>, invokes it with payload
// encoded as JSON and returns the raw response payload.
func (i *Invoker) Invoke(ctx context.Context, name string, payload any) (json.RawMessage, error) {
	fn, ok, err := i.FindFunctionByNameTag(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("lambda function with Name '%s' not found", name)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}

	out, err := i.lambda.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(fn),
		InvocationType: lambdatypes.InvocationTypeRequestResponse,
		Payload:        body,
	})
	if err != nil {
		i.log.Error("invoking function failed", zap.String("function", fn), zap.Error(err))
		return nil, fmt.Errorf("invoking %s: %w", fn, err)
	}
	if out.FunctionError != nil {
		return nil, &FunctionError{Function: fn, Kind: aws.ToString(out.FunctionError), Payload: out.Payload}
	}
	return json.RawMessage(out.Payload), nil
}
