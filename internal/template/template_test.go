package template

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	hexagonal "github.com/lex00/hexagonal-serverless-go"
	"github.com/lex00/hexagonal-serverless-go/intrinsics"
)

func TestBuilder_Build_SimpleResource(t *testing.T) {
	b := NewBuilder("test stack")
	require.NoError(t, b.Add("GreetingsTable", Resource{
		Type:       "AWS::DynamoDB::Table",
		Properties: map[string]any{"BillingMode": "PAY_PER_REQUEST"},
	}))

	tmpl, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, "2010-09-09", tmpl.AWSTemplateFormatVersion)
	assert.Equal(t, "test stack", tmpl.Description)
	require.Len(t, tmpl.Resources, 1)

	table := tmpl.Resources["GreetingsTable"]
	assert.Equal(t, "AWS::DynamoDB::Table", table.Type)
	assert.Equal(t, "PAY_PER_REQUEST", table.Properties["BillingMode"])
}

func TestBuilder_Build_NormalizesIntrinsics(t *testing.T) {
	b := NewBuilder("")
	require.NoError(t, b.Add("Role", Resource{Type: "AWS::IAM::Role"}))
	require.NoError(t, b.Add("Fn", Resource{
		Type: "AWS::Lambda::Function",
		Properties: map[string]any{
			"Role": intrinsics.Arn("Role"),
			"Tags": intrinsics.Tags(map[string]string{"Name": "fn"}),
		},
	}))

	tmpl, err := b.Build()
	require.NoError(t, err)

	props := tmpl.Resources["Fn"].Properties
	assert.Equal(t, map[string]any{"Fn::GetAtt": []any{"Role", "Arn"}}, props["Role"])
	assert.Equal(t, []any{map[string]any{"Key": "Name", "Value": "fn"}}, props["Tags"])
	assert.Nil(t, tmpl.Resources["Role"].Properties)
}

func TestBuilder_Build_StructProperties(t *testing.T) {
	type keySchema struct {
		AttributeName string `json:"AttributeName"`
		KeyType       string `json:"KeyType"`
	}
	type tableProps struct {
		KeySchema   []keySchema `json:"KeySchema"`
		BillingMode string      `json:"BillingMode,omitempty"`
	}

	b := NewBuilder("")
	require.NoError(t, b.Add("T", Resource{
		Type:       "AWS::DynamoDB::Table",
		Properties: tableProps{KeySchema: []keySchema{{"name", "HASH"}}},
	}))

	tmpl, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"AttributeName": "name", "KeyType": "HASH"}}, tmpl.Resources["T"].Properties["KeySchema"])
	assert.NotContains(t, tmpl.Resources["T"].Properties, "BillingMode")
}

func TestBuilder_Add_Errors(t *testing.T) {
	b := NewBuilder("")
	require.NoError(t, b.Add("A", Resource{Type: "AWS::SNS::Topic"}))

	assert.EqualError(t, b.Add("A", Resource{Type: "AWS::SNS::Topic"}), "duplicate resource: A")
	assert.Error(t, b.Add("", Resource{Type: "AWS::SNS::Topic"}))
	assert.EqualError(t, b.Add("B", Resource{}), "resource B has no type")
	assert.True(t, b.Has("A"))
	assert.False(t, b.Has("B"))
}

func TestBuilder_Update(t *testing.T) {
	b := NewBuilder("")
	require.NoError(t, b.Add("A", Resource{Type: "AWS::SNS::Topic"}))

	require.NoError(t, b.Update("A", func(r *Resource) { r.DeletionPolicy = "Retain" }))
	assert.Error(t, b.Update("Missing", func(*Resource) {}))

	tmpl, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, "Retain", tmpl.Resources["A"].DeletionPolicy)
}

func TestBuilder_Build_UnknownReference(t *testing.T) {
	b := NewBuilder("")
	require.NoError(t, b.Add("Fn", Resource{
		Type:       "AWS::Lambda::Function",
		Properties: map[string]any{"Role": intrinsics.Arn("MissingRole")},
	}))

	_, err := b.Build()
	assert.EqualError(t, err, "Fn references unknown resource MissingRole")
}

func TestBuilder_Build_UnknownDependsOn(t *testing.T) {
	b := NewBuilder("")
	require.NoError(t, b.Add("A", Resource{Type: "AWS::SNS::Topic", DependsOn: []string{"Ghost"}}))

	_, err := b.Build()
	assert.Error(t, err)
}

func TestBuilder_Build_PseudoAndParameters(t *testing.T) {
	b := NewBuilder("")
	b.AddParameter("Stage", hexagonal.Parameter{Type: "String", Default: "prod"})
	require.NoError(t, b.Add("A", Resource{
		Type: "AWS::SNS::Topic",
		Properties: map[string]any{
			"TopicName": intrinsics.Sub{String: "${AWS::StackName}-${Stage}"},
			"Region":    intrinsics.AWS_REGION,
		},
	}))

	tmpl, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, "String", tmpl.Parameters["Stage"].Type)
}

func TestBuilder_Build_CircularDependency(t *testing.T) {
	b := NewBuilder("")
	require.NoError(t, b.Add("A", Resource{Type: "AWS::SNS::Topic", Properties: map[string]any{"X": intrinsics.RefTo("B")}}))
	require.NoError(t, b.Add("B", Resource{Type: "AWS::SNS::Topic", Properties: map[string]any{"X": intrinsics.RefTo("A")}}))

	_, err := b.Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circular dependency detected")
}

func TestBuilder_Build_Outputs(t *testing.T) {
	b := NewBuilder("")
	require.NoError(t, b.Add("GreetingsTable", Resource{Type: "AWS::DynamoDB::Table"}))
	b.AddOutput("TableName", "Greetings table", intrinsics.RefTo("GreetingsTable"), "demo-table")

	tmpl, err := b.Build()
	require.NoError(t, err)

	out := tmpl.Outputs["TableName"]
	assert.Equal(t, "Greetings table", out.Description)
	assert.Equal(t, map[string]any{"Ref": "GreetingsTable"}, out.Value)
	require.NotNil(t, out.Export)
	assert.Equal(t, "demo-table", out.Export.Name)

	b.AddOutput("Broken", "", intrinsics.RefTo("Nope"), "")
	_, err = b.Build()
	assert.EqualError(t, err, "output Broken references unknown resource Nope")
}

func TestReferences(t *testing.T) {
	value := map[string]any{
		"A": map[string]any{"Ref": "Table"},
		"B": map[string]any{"Fn::GetAtt": []any{"Role", "Arn"}},
		"C": map[string]any{"Fn::GetAtt": "Api.RootResourceId"},
		"D": map[string]any{"Fn::Sub": "https://${Api}.execute-api.${AWS::Region}.${AWS::URLSuffix}/${Stage.Name}/${!Literal}"},
		"E": map[string]any{"Fn::Sub": []any{"${Local}-${Table}", map[string]any{"Local": map[string]any{"Ref": "Bucket"}}}},
		"F": []any{map[string]any{"Ref": "Table"}},
	}

	assert.Equal(t, []string{"AWS::Region", "AWS::URLSuffix", "Api", "Bucket", "Role", "Stage", "Table"}, References(value))
}

func TestReferences_StructInput(t *testing.T) {
	assert.Equal(t, []string{"Role"}, References(intrinsics.Arn("Role")))
	assert.Empty(t, References("plain"))
}

func TestOrder_DependenciesFirst(t *testing.T) {
	b := NewBuilder("")
	require.NoError(t, b.Add("Fn", Resource{Type: "AWS::Lambda::Function", Properties: map[string]any{"Role": intrinsics.Arn("Role")}}))
	require.NoError(t, b.Add("Role", Resource{Type: "AWS::IAM::Role"}))
	require.NoError(t, b.Add("Perm", Resource{Type: "AWS::Lambda::Permission", Properties: map[string]any{"FunctionName": intrinsics.RefTo("Fn")}}))

	tmpl, err := b.Build()
	require.NoError(t, err)

	order, err := Order(tmpl)
	require.NoError(t, err)
	assert.Equal(t, []string{"Role", "Fn", "Perm"}, order)

	deps := Dependencies(tmpl)
	assert.Equal(t, []string{"Fn"}, deps["Perm"])
	assert.Nil(t, deps["Role"])
}

func TestEncode(t *testing.T) {
	b := NewBuilder("")
	require.NoError(t, b.Add("T", Resource{Type: "AWS::DynamoDB::Table", DeletionPolicy: "Delete"}))
	tmpl, err := b.Build()
	require.NoError(t, err)

	data, err := Encode(tmpl, "json")
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "2010-09-09", decoded["AWSTemplateFormatVersion"])

	data, err = Encode(tmpl, "yaml")
	require.NoError(t, err)
	var fromYAML hexagonal.Template
	require.NoError(t, yaml.Unmarshal(data, &fromYAML))
	assert.Equal(t, "Delete", fromYAML.Resources["T"].DeletionPolicy)

	_, err = Encode(tmpl, "toml")
	assert.EqualError(t, err, "unknown format: toml")
}
