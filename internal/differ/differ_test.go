package differ

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hexagonal "github.com/lex00/hexagonal-serverless-go"
)

func TestCompare(t *testing.T) {
	t1 := &hexagonal.Template{
		Resources: map[string]hexagonal.ResourceDef{
			"GreetingsTable": {Type: "AWS::DynamoDB::Table", Properties: map[string]any{"BillingMode": "PAY_PER_REQUEST"}},
			"LegacyQueue":    {Type: "AWS::SQS::Queue"},
		},
	}

	t2 := &hexagonal.Template{
		Resources: map[string]hexagonal.ResourceDef{
			"GreetingsTable":     {Type: "AWS::DynamoDB::Table", Properties: map[string]any{"BillingMode": "PROVISIONED"}},
			"HelloWorldFunction": {Type: "AWS::Lambda::Function"},
		},
	}

	result, err := Compare(t1, t2, Options{})
	require.NoError(t, err)

	require.Len(t, result.Diff.Removed, 1)
	assert.Equal(t, "LegacyQueue", result.Diff.Removed[0].Resource)
	assert.Equal(t, "AWS::SQS::Queue", result.Diff.Removed[0].Type)

	require.Len(t, result.Diff.Added, 1)
	assert.Equal(t, "HelloWorldFunction", result.Diff.Added[0].Resource)

	require.Len(t, result.Diff.Modified, 1)
	assert.Equal(t, []string{"BillingMode: PAY_PER_REQUEST → PROVISIONED"}, result.Diff.Modified[0].Changes)

	assert.Equal(t, 3, result.Summary.Total)
}

func TestCompare_OrderedByLogicalID(t *testing.T) {
	t2 := &hexagonal.Template{
		Resources: map[string]hexagonal.ResourceDef{
			"Zeta":  {Type: "AWS::SQS::Queue"},
			"Alpha": {Type: "AWS::SQS::Queue"},
			"Mid":   {Type: "AWS::SQS::Queue"},
		},
	}

	result, err := Compare(&hexagonal.Template{}, t2, Options{})
	require.NoError(t, err)

	var names []string
	for _, e := range result.Diff.Added {
		names = append(names, e.Resource)
	}
	assert.Equal(t, []string{"Alpha", "Mid", "Zeta"}, names)
}

func TestCompareIdentical(t *testing.T) {
	template := &hexagonal.Template{
		Resources: map[string]hexagonal.ResourceDef{
			"GreetingsTable": {Type: "AWS::DynamoDB::Table", DeletionPolicy: "Delete"},
		},
		Outputs: map[string]hexagonal.Output{
			"TableName": {Value: map[string]any{"Ref": "GreetingsTable"}},
		},
	}

	result, err := Compare(template, template, Options{})
	require.NoError(t, err)
	assert.Zero(t, result.Summary.Total)
}

func TestCompareNil(t *testing.T) {
	_, err := Compare(nil, &hexagonal.Template{}, Options{})
	assert.Error(t, err)
}

func TestCompareTypeChange(t *testing.T) {
	t1 := &hexagonal.Template{
		Resources: map[string]hexagonal.ResourceDef{
			"Store": {Type: "AWS::DynamoDB::Table"},
		},
	}

	t2 := &hexagonal.Template{
		Resources: map[string]hexagonal.ResourceDef{
			"Store": {Type: "AWS::DynamoDB::GlobalTable"},
		},
	}

	result, err := Compare(t1, t2, Options{})
	require.NoError(t, err)
	require.Len(t, result.Diff.Modified, 1)
	assert.Equal(t, []string{"Type changed: AWS::DynamoDB::Table → AWS::DynamoDB::GlobalTable"}, result.Diff.Modified[0].Changes)
}

func TestCompareRetentionPolicy(t *testing.T) {
	t1 := &hexagonal.Template{
		Resources: map[string]hexagonal.ResourceDef{
			"GreetingsTable": {Type: "AWS::DynamoDB::Table", DeletionPolicy: "Delete"},
		},
	}
	t2 := &hexagonal.Template{
		Resources: map[string]hexagonal.ResourceDef{
			"GreetingsTable": {Type: "AWS::DynamoDB::Table", DeletionPolicy: "Retain", UpdateReplacePolicy: "Retain"},
		},
	}

	result, err := Compare(t1, t2, Options{})
	require.NoError(t, err)
	require.Len(t, result.Diff.Modified, 1)
	assert.Equal(t, []string{
		"DeletionPolicy changed: Delete → Retain",
		"UpdateReplacePolicy changed: (none) → Retain",
	}, result.Diff.Modified[0].Changes)
}

func TestCompareDependsOn(t *testing.T) {
	t1 := &hexagonal.Template{
		Resources: map[string]hexagonal.ResourceDef{
			"Fn": {Type: "AWS::Lambda::Function", DependsOn: []string{"Role", "Table"}},
		},
	}
	reordered := &hexagonal.Template{
		Resources: map[string]hexagonal.ResourceDef{
			"Fn": {Type: "AWS::Lambda::Function", DependsOn: []string{"Table", "Role"}},
		},
	}
	trimmed := &hexagonal.Template{
		Resources: map[string]hexagonal.ResourceDef{
			"Fn": {Type: "AWS::Lambda::Function", DependsOn: []string{"Role"}},
		},
	}

	result, err := Compare(t1, reordered, Options{})
	require.NoError(t, err)
	assert.Zero(t, result.Summary.Total)

	result, err = Compare(t1, trimmed, Options{})
	require.NoError(t, err)
	require.Len(t, result.Diff.Modified, 1)
	assert.Equal(t, []string{"DependsOn changed"}, result.Diff.Modified[0].Changes)
}

func TestCompareOutputs(t *testing.T) {
	t1 := &hexagonal.Template{
		Outputs: map[string]hexagonal.Output{
			"ApiUrl":    {Value: "https://a"},
			"TableName": {Value: map[string]any{"Ref": "GreetingsTable"}},
		},
	}
	t2 := &hexagonal.Template{
		Outputs: map[string]hexagonal.Output{
			"ApiUrl":  {Value: "https://b"},
			"Version": {Value: "1.0"},
		},
	}

	result, err := Compare(t1, t2, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"ApiUrl modified", "TableName removed", "Version added"}, result.Diff.Outputs)
	assert.Equal(t, 3, result.Summary.Outputs)
	assert.Equal(t, 3, result.Summary.Total)
}

func TestCompareProperties(t *testing.T) {
	tests := []struct {
		name   string
		props1 map[string]any
		props2 map[string]any
		want   []string
	}{
		{
			name:   "identical",
			props1: map[string]any{"Key": "value"},
			props2: map[string]any{"Key": "value"},
		},
		{
			name:   "added property",
			props1: map[string]any{},
			props2: map[string]any{"Key": "value"},
			want:   []string{"Key added"},
		},
		{
			name:   "removed property",
			props1: map[string]any{"Key": "value"},
			props2: map[string]any{},
			want:   []string{"Key removed"},
		},
		{
			name:   "scalar change shows both values",
			props1: map[string]any{"MemorySize": float64(128)},
			props2: map[string]any{"MemorySize": float64(256)},
			want:   []string{"MemorySize: 128 → 256"},
		},
		{
			name:   "nested property",
			props1: map[string]any{"Environment": map[string]any{"Variables": map[string]any{"A": "1"}}},
			props2: map[string]any{"Environment": map[string]any{"Variables": map[string]any{"A": "2", "B": "3"}}},
			want:   []string{"Environment.Variables.A: 1 → 2", "Environment.Variables.B added"},
		},
		{
			name:   "intrinsic replaced",
			props1: map[string]any{"Role": map[string]any{"Fn::GetAtt": []any{"RoleA", "Arn"}}},
			props2: map[string]any{"Role": map[string]any{"Ref": "RoleB"}},
			want:   []string{"Role modified"},
		},
		{
			name:   "list changed",
			props1: map[string]any{"Layers": []any{"a"}},
			props2: map[string]any{"Layers": []any{"a", "b"}},
			want:   []string{"Layers modified"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, compareProperties("", tt.props1, tt.props2, Options{}))
		})
	}
}

func TestCompareIgnoreOrder(t *testing.T) {
	p1 := map[string]any{"Architectures": []any{"arm64", "x86_64"}}
	p2 := map[string]any{"Architectures": []any{"x86_64", "arm64"}}

	assert.Len(t, compareProperties("", p1, p2, Options{}), 1)
	assert.Empty(t, compareProperties("", p1, p2, Options{IgnoreOrder: true}))

	nested1 := map[string]any{"Statement": []any{map[string]any{"Action": []any{"a", "b"}}}}
	nested2 := map[string]any{"Statement": []any{map[string]any{"Action": []any{"b", "a"}}}}
	assert.Empty(t, compareProperties("", nested1, nested2, Options{IgnoreOrder: true}))
}

func TestCompareFiles(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "a.json")
	yamlPath := filepath.Join(dir, "b.yaml")

	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"Resources":{"GreetingsTable":{"Type":"AWS::DynamoDB::Table","Properties":{"ReadCapacity":5}}}}`), 0644))
	yamlDoc := "Resources:\n  GreetingsTable:\n    Type: AWS::DynamoDB::Table\n    Properties:\n      ReadCapacity: 5\n"
	require.NoError(t, os.WriteFile(yamlPath, []byte(yamlDoc), 0644))

	result, err := CompareFiles(jsonPath, yamlPath, Options{})
	require.NoError(t, err)
	assert.Zero(t, result.Summary.Total, "%+v", result.Diff)
}

func TestCompareFiles_MissingFile(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "a.json")
	require.NoError(t, os.WriteFile(present, []byte(`{}`), 0644))

	_, err := CompareFiles(present, filepath.Join(dir, "gone.json"), Options{})
	assert.ErrorContains(t, err, "gone.json")
}

func TestParseTemplate_ShortForm(t *testing.T) {
	yamlDoc := `Resources:
  HelloWorldFunction:
    Type: AWS::Lambda::Function
    Properties:
      Role: !GetAtt HelloWorldFunctionRole.Arn
      Environment:
        Variables:
          HELLO_WORLD_TABLE_NAME: !Ref GreetingsTable
      Description: !Sub "${AWS::StackName} greeter"
      Layers: !Split [",", "a,b"]
Outputs:
  TableArn:
    Value: !GetAtt [GreetingsTable, Arn]
`
	jsonDoc := `{
  "Resources": {
    "HelloWorldFunction": {
      "Type": "AWS::Lambda::Function",
      "Properties": {
        "Role": {"Fn::GetAtt": ["HelloWorldFunctionRole", "Arn"]},
        "Environment": {"Variables": {"HELLO_WORLD_TABLE_NAME": {"Ref": "GreetingsTable"}}},
        "Description": {"Fn::Sub": "${AWS::StackName} greeter"},
        "Layers": {"Fn::Split": [",", "a,b"]}
      }
    }
  },
  "Outputs": {"TableArn": {"Value": {"Fn::GetAtt": ["GreetingsTable", "Arn"]}}}
}`

	fromYAML, err := ParseTemplate([]byte(yamlDoc))
	require.NoError(t, err)
	fromJSON, err := ParseTemplate([]byte(jsonDoc))
	require.NoError(t, err)

	assert.Equal(t,
		map[string]any{"Fn::GetAtt": []any{"HelloWorldFunctionRole", "Arn"}},
		fromYAML.Resources["HelloWorldFunction"].Properties["Role"])

	result, err := Compare(fromJSON, fromYAML, Options{})
	require.NoError(t, err)
	assert.Zero(t, result.Summary.Total, "%+v", result.Diff)
}

func TestParseTemplate_ShortFormChange(t *testing.T) {
	before, err := ParseTemplate([]byte("Resources:\n  Fn:\n    Type: AWS::Lambda::Function\n    Properties:\n      Role: !GetAtt RoleA.Arn\n"))
	require.NoError(t, err)
	after, err := ParseTemplate([]byte("Resources:\n  Fn:\n    Type: AWS::Lambda::Function\n    Properties:\n      Role: !Ref RoleB\n"))
	require.NoError(t, err)

	result, err := Compare(before, after, Options{})
	require.NoError(t, err)
	require.Len(t, result.Diff.Modified, 1)
	assert.Equal(t, []string{"Role modified"}, result.Diff.Modified[0].Changes)
}

func TestLoadTemplate_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("Resources: [unclosed"), 0644))

	_, err := LoadTemplate(path)
	assert.ErrorContains(t, err, "parsing template")

	_, err = LoadTemplate(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
