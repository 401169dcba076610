package schema

// ResourceSchema defines the schema for a resource type.
type ResourceSchema struct {
	Type       string
	Required   []string
	Properties map[string]PropertySchema
}

// PropertySchema defines the schema for a property. Min and Max bound
// numeric values when either is set.
type PropertySchema struct {
	Type          string
	AllowedValues []string
	Min, Max      float64
}

var tags = PropertySchema{Type: "List"}

var resourceSchemas = map[string]ResourceSchema{
	"AWS::DynamoDB::Table": {
		Type:     "AWS::DynamoDB::Table",
		Required: []string{"KeySchema"},
		Properties: map[string]PropertySchema{
			"AttributeDefinitions": {Type: "List"},
			"KeySchema":            {Type: "List"},
			"BillingMode":          {Type: "String", AllowedValues: []string{"PROVISIONED", "PAY_PER_REQUEST"}},
			"TableName":            {Type: "String"},
			"Tags":                 tags,
		},
	},
	"AWS::IAM::Role": {
		Type:     "AWS::IAM::Role",
		Required: []string{"AssumeRolePolicyDocument"},
		Properties: map[string]PropertySchema{
			"AssumeRolePolicyDocument": {Type: "Map"},
			"Description":              {Type: "String"},
			"ManagedPolicyArns":        {Type: "List"},
			"Tags":                     tags,
		},
	},
	"AWS::IAM::Policy": {
		Type:     "AWS::IAM::Policy",
		Required: []string{"PolicyDocument", "PolicyName"},
		Properties: map[string]PropertySchema{
			"PolicyName":     {Type: "String"},
			"PolicyDocument": {Type: "Map"},
			"Roles":          {Type: "List"},
		},
	},
	"AWS::Lambda::Function": {
		Type:     "AWS::Lambda::Function",
		Required: []string{"Code", "Role"},
		Properties: map[string]PropertySchema{
			"FunctionName":                 {Type: "String"},
			"Description":                  {Type: "String"},
			"Handler":                      {Type: "String"},
			"Runtime":                      {Type: "String"},
			"Architectures":                {Type: "List"},
			"MemorySize":                   {Type: "Integer", Min: 128, Max: 10240},
			"Timeout":                      {Type: "Integer", Min: 1, Max: 900},
			"Code":                         {Type: "Json"},
			"Role":                         {Type: "String"},
			"Environment":                  {Type: "Map"},
			"Layers":                       {Type: "List"},
			"TracingConfig":                {Type: "Map"},
			"ReservedConcurrentExecutions": {Type: "Integer"},
			"Tags":                         tags,
		},
	},
	"AWS::Lambda::Permission": {
		Type:     "AWS::Lambda::Permission",
		Required: []string{"Action", "FunctionName", "Principal"},
		Properties: map[string]PropertySchema{
			"Action":       {Type: "String"},
			"FunctionName": {Type: "String"},
			"Principal":    {Type: "String"},
			"SourceArn":    {Type: "String"},
		},
	},
	"AWS::ApiGateway::RestApi": {
		Type: "AWS::ApiGateway::RestApi",
		Properties: map[string]PropertySchema{
			"Name":        {Type: "String"},
			"Description": {Type: "String"},
			"Tags":        tags,
		},
	},
	"AWS::ApiGateway::Resource": {
		Type:     "AWS::ApiGateway::Resource",
		Required: []string{"ParentId", "PathPart", "RestApiId"},
		Properties: map[string]PropertySchema{
			"RestApiId": {Type: "String"},
			"ParentId":  {Type: "String"},
			"PathPart":  {Type: "String"},
		},
	},
	"AWS::ApiGateway::Method": {
		Type:     "AWS::ApiGateway::Method",
		Required: []string{"HttpMethod", "ResourceId", "RestApiId"},
		Properties: map[string]PropertySchema{
			"RestApiId":         {Type: "String"},
			"ResourceId":        {Type: "String"},
			"HttpMethod":        {Type: "String", AllowedValues: []string{"ANY", "DELETE", "GET", "HEAD", "OPTIONS", "PATCH", "POST", "PUT"}},
			"AuthorizationType": {Type: "String", AllowedValues: []string{"NONE", "AWS_IAM", "CUSTOM", "COGNITO_USER_POOLS"}},
			"Integration":       {Type: "Map"},
		},
	},
	"AWS::ApiGateway::Deployment": {
		Type:     "AWS::ApiGateway::Deployment",
		Required: []string{"RestApiId"},
		Properties: map[string]PropertySchema{
			"RestApiId": {Type: "String"},
			"StageName": {Type: "String"},
		},
	},
}
