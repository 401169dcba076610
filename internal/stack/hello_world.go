// Package stack declares the application's CloudFormation stack: the
// greetings table, the hello_world function behind GET /hello, and the
// permissions between them.
package stack

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	hexagonal "github.com/lex00/hexagonal-serverless-go"
	"github.com/lex00/hexagonal-serverless-go/internal/config"
	"github.com/lex00/hexagonal-serverless-go/internal/template"
	"github.com/lex00/hexagonal-serverless-go/intrinsics"
)

// Defaults for Options.
const (
	DefaultRegion    = "eu-west-1"
	DefaultDistDir   = "dist"
	DefaultStageName = "prod"
	ManagedBy        = "hexagonal"
)

// Logical IDs of the fixed resources.
const (
	TableID      = "GreetingsTable"
	APIID        = "HelloWorldApi"
	HelloID      = "HelloWorldApiHelloResource"
	MethodID     = "HelloWorldApiHelloGet"
	DeploymentID = "HelloWorldApiDeployment"
	PermissionID = "HelloWorldApiInvokePermission"
)

// HelloWorldFunction is the bundle name of the greeting function.
const HelloWorldFunction = "hello_world"

var validPrefix = regexp.MustCompile(`^[a-zA-Z][-a-zA-Z0-9]*$`)

// Options configures HelloWorld.
type Options struct {
	// Prefix names the stack and is applied as the Project tag.
	Prefix string
	Region string
	// DistDir holds the function bundles (dist/functions/<name>).
	DistDir string
	// Production retains the table on stack deletion.
	Production     bool
	SkipAssetCheck bool
	// NewID generates ResourceId tag values. Defaults to random UUIDs.
	NewID func() string
}

// Stack is a synthesized stack.
type Stack struct {
	Name     string
	Region   string
	Template *hexagonal.Template
	Function *Function
}

// HelloWorld synthesizes the application stack.
func HelloWorld(opts Options) (*Stack, error) {
	if !validPrefix.MatchString(opts.Prefix) {
		return nil, fmt.Errorf("invalid stack prefix %q: must start with a letter and contain only letters, digits and hyphens", opts.Prefix)
	}
	if opts.Region == "" {
		opts.Region = DefaultRegion
	}
	if opts.DistDir == "" {
		opts.DistDir = DefaultDistDir
	}

	appTags := map[string]string{
		"Project":   opts.Prefix,
		"ManagedBy": ManagedBy,
	}

	b := template.NewBuilder(fmt.Sprintf("%s hello world stack: API Gateway, Lambda and DynamoDB", opts.Prefix))

	factory := NewFactory(b, opts.DistDir)
	factory.SkipAssetCheck = opts.SkipAssetCheck
	factory.Tags = appTags
	if opts.NewID != nil {
		factory.newID = opts.NewID
	}

	if err := addTable(factory, opts.Production, appTags); err != nil {
		return nil, err
	}

	fn, err := factory.CreateFunction(FunctionConfig{
		FunctionName: HelloWorldFunction,
		MemorySize:   256,
		Timeout:      30 * time.Second,
		Environment: map[string]any{
			config.KeyTableName: intrinsics.RefTo(TableID),
		},
	})
	if err != nil {
		return nil, err
	}

	if err := factory.GrantReadWriteData(fn, TableID); err != nil {
		return nil, err
	}

	if err := addAPI(factory, fn, appTags); err != nil {
		return nil, err
	}

	b.AddOutput("ApiUrl", "Hello World API endpoint",
		intrinsics.Sub{String: "https://${" + APIID + "}.execute-api.${AWS::Region}.${AWS::URLSuffix}/" + DefaultStageName + "/"}, "")
	b.AddOutput("TableName", "Greetings table name", intrinsics.RefTo(TableID), "")

	tmpl, err := b.Build()
	if err != nil {
		return nil, err
	}

	return &Stack{
		Name:     StackName(opts.Prefix),
		Region:   opts.Region,
		Template: tmpl,
		Function: fn,
	}, nil
}

// StackName returns the CloudFormation stack name for a prefix.
func StackName(prefix string) string {
	return prefix + "-HelloWorldStack"
}

func addTable(f *Factory, production bool, appTags map[string]string) error {
	policy := "Delete"
	if production {
		policy = "Retain"
	}

	props := tableProperties{
		AttributeDefinitions: []attributeDefinition{{AttributeName: "name", AttributeType: "S"}},
		KeySchema:            []keySchemaElement{{AttributeName: "name", KeyType: "HASH"}},
		BillingMode:          "PAY_PER_REQUEST",
		Tags:                 intrinsics.Tags(mergeTags(appTags, map[string]string{"ResourceId": TableID})),
	}
	if err := f.add(TableID, "AWS::DynamoDB::Table", props); err != nil {
		return err
	}
	return f.builder.Update(TableID, func(r *template.Resource) {
		r.DeletionPolicy = policy
		r.UpdateReplacePolicy = policy
	})
}

func addAPI(f *Factory, fn *Function, appTags map[string]string) error {
	if fn == nil {
		return errors.New("api requires a function")
	}
	api := intrinsics.RefTo(APIID)

	steps := []struct {
		id    string
		typ   string
		props any
	}{
		{APIID, "AWS::ApiGateway::RestApi", restAPIProperties{
			Name:        "Hello World API",
			Description: "This service serves hello world requests.",
			Tags:        intrinsics.Tags(appTags),
		}},
		{HelloID, "AWS::ApiGateway::Resource", apiResourceProperties{
			RestApiId: api,
			ParentId:  intrinsics.GetAtt{LogicalName: APIID, Attribute: "RootResourceId"},
			PathPart:  "hello",
		}},
		{MethodID, "AWS::ApiGateway::Method", apiMethodProperties{
			RestApiId:         api,
			ResourceId:        intrinsics.RefTo(HelloID),
			HttpMethod:        "GET",
			AuthorizationType: "NONE",
			Integration: apiIntegration{
				Type:                  "AWS_PROXY",
				IntegrationHttpMethod: "POST",
				Uri: intrinsics.Sub{String: "arn:${AWS::Partition}:apigateway:${AWS::Region}:lambda:path/2015-03-31/functions/${" +
					fn.LogicalID + ".Arn}/invocations"},
			},
		}},
		{DeploymentID, "AWS::ApiGateway::Deployment", apiDeploymentProperties{
			RestApiId: api,
			StageName: DefaultStageName,
		}},
		{PermissionID, "AWS::Lambda::Permission", permissionProperties{
			Action:       "lambda:InvokeFunction",
			FunctionName: fn.Arn(),
			Principal:    "apigateway.amazonaws.com",
			SourceArn: intrinsics.Join{Delimiter: "", Values: []any{
				"arn:", intrinsics.AWS_PARTITION, ":execute-api:", intrinsics.AWS_REGION, ":",
				intrinsics.AWS_ACCOUNT_ID, ":", api, "/*/GET/hello",
			}},
		}},
	}

	for _, s := range steps {
		if err := f.add(s.id, s.typ, s.props); err != nil {
			return err
		}
	}

	// The deployment must follow the method it publishes.
	return f.builder.Update(DeploymentID, func(r *template.Resource) {
		r.DependsOn = append(r.DependsOn, MethodID)
	})
}
