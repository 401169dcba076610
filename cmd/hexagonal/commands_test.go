package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi"
	"github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	hexagonal "github.com/lex00/hexagonal-serverless-go"
	"github.com/lex00/hexagonal-serverless-go/internal/adapters/memory"
	"github.com/lex00/hexagonal-serverless-go/internal/differ"
	"github.com/lex00/hexagonal-serverless-go/internal/discovery"
	"github.com/lex00/hexagonal-serverless-go/internal/service"
	"github.com/lex00/hexagonal-serverless-go/internal/stack"
)

// execute runs the root command with args and returns its standard output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	for _, key := range []string{"APP_TAG_VALUE", "APP_TAG_KEY", "AWS_REGION", "HELLO_WORLD_TABLE_NAME", "DYNAMODB_ENDPOINT"} {
		t.Setenv(key, "")
	}

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--env-file", ""}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestRootCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range newRootCmd().Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"init", "bundle", "synth", "graph", "diff", "optimize", "discover", "greeting", "version"} {
		assert.True(t, names[want], "missing %s command", want)
	}
}

func TestFlagDefaults(t *testing.T) {
	tests := []struct {
		cmd  string
		flag string
		want string
	}{
		{"synth", "format", "json"},
		{"synth", "dist", "dist"},
		{"graph", "format", "dot"},
		{"diff", "format", "text"},
		{"optimize", "category", "all"},
		{"bundle", "debounce", "500ms"},
		{"init", "include-example", "true"},
		{"init", "go-version", "1.24"},
	}

	root := newRootCmd()
	for _, tt := range tests {
		t.Run(tt.cmd+"/"+tt.flag, func(t *testing.T) {
			cmd, _, err := root.Find([]string{tt.cmd})
			require.NoError(t, err)
			f := cmd.Flags().Lookup(tt.flag)
			require.NotNil(t, f, "missing --%s", tt.flag)
			assert.Equal(t, tt.want, f.DefValue)
		})
	}
}

func TestSynth_WritesTemplate(t *testing.T) {
	file := filepath.Join(t.TempDir(), "template.yaml")

	_, err := execute(t, "synth", "--skip-asset-check", "--prefix", "demo", "-f", "yaml", "-o", file)
	require.NoError(t, err)

	tmpl, err := differ.LoadTemplate(file)
	require.NoError(t, err)
	assert.Contains(t, tmpl.Resources, stack.TableID)
	assert.Contains(t, tmpl.Resources, stack.MethodID)
	assert.Contains(t, tmpl.Outputs, "ApiUrl")
}

func TestSynth_JSONResult(t *testing.T) {
	out, err := execute(t, "synth", "--skip-asset-check", "--prefix", "demo", "--json")
	require.NoError(t, err)

	var res hexagonal.SynthResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Success)
	assert.Equal(t, "demo-HelloWorldStack", res.StackName)
	assert.Contains(t, res.Resources, stack.TableID)
	assert.IsIncreasing(t, res.Resources)
}

func TestSynth_PrefixFromEnvironment(t *testing.T) {
	t.Setenv("AWS_REGION", "")
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"--env-file", "", "synth", "--skip-asset-check", "--json"})
	t.Setenv("APP_TAG_VALUE", "fromenv")

	require.NoError(t, root.Execute())

	var res hexagonal.SynthResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, "fromenv-HelloWorldStack", res.StackName)
}

func TestSynth_InvalidPrefix(t *testing.T) {
	out, err := execute(t, "synth", "--skip-asset-check", "--prefix", "9bad", "--json")
	require.Error(t, err)

	var res hexagonal.SynthResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "invalid stack prefix")
}

func TestSynth_MissingBundle(t *testing.T) {
	_, err := execute(t, "synth", "--prefix", "demo", "--dist", t.TempDir())
	assert.EqualError(t, err, "synth failed")
}

func TestDiff_AgainstFreshSynth(t *testing.T) {
	file := filepath.Join(t.TempDir(), "deployed.json")
	_, err := execute(t, "synth", "--skip-asset-check", "--stable-ids", "--prefix", "demo", "-o", file)
	require.NoError(t, err)

	out, err := execute(t, "diff", file, "--skip-asset-check", "--stable-ids", "--prefix", "demo")
	require.NoError(t, err)
	assert.Contains(t, out, "No differences")

	out, err = execute(t, "diff", file, "--skip-asset-check", "--stable-ids", "--prefix", "demo", "--production")
	require.NoError(t, err)
	assert.Contains(t, out, "~ "+stack.TableID)
	assert.Contains(t, out, "DeletionPolicy changed: Delete → Retain")

	_, err = execute(t, "diff", file, "--skip-asset-check", "--stable-ids", "--prefix", "demo", "--production", "--exit-code")
	assert.Error(t, err)
}

func TestDiff_TwoFilesJSON(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.json")
	next := filepath.Join(dir, "new.json")
	require.NoError(t, os.WriteFile(old, []byte(`{"Resources": {"A": {"Type": "AWS::S3::Bucket"}}}`), 0644))
	require.NoError(t, os.WriteFile(next, []byte(`{"Resources": {"B": {"Type": "AWS::SQS::Queue"}}}`), 0644))

	out, err := execute(t, "diff", old, next, "--format", "json")
	require.NoError(t, err)

	var res differ.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 1, res.Summary.Added)
	assert.Equal(t, 1, res.Summary.Removed)
	assert.Equal(t, "B", res.Diff.Added[0].Resource)
}

func TestGraph(t *testing.T) {
	out, err := execute(t, "graph", "--skip-asset-check", "--prefix", "demo")
	require.NoError(t, err)
	assert.Contains(t, out, "digraph")
	assert.Contains(t, out, stack.TableID)

	out, err = execute(t, "graph", "--skip-asset-check", "--prefix", "demo", "-f", "mermaid")
	require.NoError(t, err)
	assert.NotContains(t, out, "digraph")
	assert.Contains(t, out, stack.TableID)

	_, err = execute(t, "graph", "--skip-asset-check", "-f", "svg")
	assert.ErrorContains(t, err, "unknown format")
}

func TestBundle(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{
		".project-root":                 "",
		"src/functions/greet/app.py":    "print('hi')\n",
		"src/functions/greet/notes.txt": "skipped\n",
		"src/shared/util.py":            "X = 1\n",
	}
	for name, body := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	}

	out, err := execute(t, "bundle", "--root", root, "--json")
	require.NoError(t, err)

	var res hexagonal.BundleResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Success)
	assert.Equal(t, []string{"greet"}, res.Functions)
	assert.FileExists(t, filepath.Join(root, "dist/functions/greet/app.py"))
	assert.FileExists(t, filepath.Join(root, "dist/functions/greet/util.py"))
	assert.NoFileExists(t, filepath.Join(root, "dist/functions/greet/notes.txt"))
}

func TestGreeting_Local(t *testing.T) {
	out, err := execute(t, "greeting", "get", "Ada", "--local")
	require.NoError(t, err)
	assert.JSONEq(t, `{"message": "Hello, Ada!"}`, out)

	out, err = execute(t, "greeting", "get", "--local")
	require.NoError(t, err)
	assert.JSONEq(t, `{"message": "Hello, World!"}`, out)

	_, err = execute(t, "greeting", "put", "Ada", "Good morning", "--local")
	assert.ErrorContains(t, err, "unknown flag: --local")
}

func TestGreeting_PutRequiresTable(t *testing.T) {
	_, err := execute(t, "greeting", "put", "Ada", "Good morning")
	assert.ErrorContains(t, err, "HELLO_WORLD_TABLE_NAME")
}

func TestGreeting_SharedStore(t *testing.T) {
	store := memory.New()
	old := serviceFactory
	serviceFactory = func(context.Context, bool, *zap.Logger) (*service.GreetingService, error) {
		return service.New(store), nil
	}
	defer func() { serviceFactory = old }()

	_, err := execute(t, "greeting", "put", "Ada", "Good morning")
	require.NoError(t, err)

	out, err := execute(t, "greeting", "get", "Ada")
	require.NoError(t, err)
	assert.JSONEq(t, `{"message": "Good morning"}`, out)
}

func TestGreeting_MissingTable(t *testing.T) {
	out, err := execute(t, "greeting", "get", "Ada")
	require.Error(t, err)
	assert.Contains(t, out, "Error:")
	assert.Contains(t, out, "HELLO_WORLD_TABLE_NAME")
}

type fakeTagging struct {
	mappings []types.ResourceTagMapping
}

func (f *fakeTagging) GetResources(_ context.Context, in *resourcegroupstaggingapi.GetResourcesInput, _ ...func(*resourcegroupstaggingapi.Options)) (*resourcegroupstaggingapi.GetResourcesOutput, error) {
	var out []types.ResourceTagMapping
	for _, m := range f.mappings {
		if len(in.ResourceTypeFilters) > 0 && discovery.ResourceType(aws.ToString(m.ResourceARN)) != in.ResourceTypeFilters[0] {
			continue
		}
		if matchesFilters(m, in.TagFilters) {
			out = append(out, m)
		}
	}
	return &resourcegroupstaggingapi.GetResourcesOutput{ResourceTagMappingList: out}, nil
}

func matchesFilters(m types.ResourceTagMapping, filters []types.TagFilter) bool {
	tags := map[string]string{}
	for _, tag := range m.Tags {
		tags[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	for _, f := range filters {
		if tags[aws.ToString(f.Key)] != f.Values[0] {
			return false
		}
	}
	return true
}

func mapping(arn, resourceID string) types.ResourceTagMapping {
	return types.ResourceTagMapping{
		ResourceARN: aws.String(arn),
		Tags: []types.Tag{
			{Key: aws.String("Project"), Value: aws.String("demo")},
			{Key: aws.String("ResourceId"), Value: aws.String(resourceID)},
		},
	}
}

func TestDiscover(t *testing.T) {
	tagging := &fakeTagging{mappings: []types.ResourceTagMapping{
		mapping("arn:aws:dynamodb:eu-west-1:123456789012:table/demo-greetings", stack.TableID),
		mapping("arn:aws:lambda:eu-west-1:123456789012:function:demo-hello", "fn-1"),
	}}

	old := discoveryFactory
	discoveryFactory = func(context.Context) (*discovery.Discovery, error) {
		return discovery.New(discovery.TagConfig{Key: "Project", Value: "demo"}, tagging, nil)
	}
	defer func() { discoveryFactory = old }()

	out, err := execute(t, "discover", "table", stack.TableID)
	require.NoError(t, err)
	assert.Equal(t, "demo-greetings\n", out)

	out, err = execute(t, "discover", "function", "fn-1")
	require.NoError(t, err)
	assert.Equal(t, "demo-hello\n", out)

	_, err = execute(t, "discover", "table", "missing")
	assert.EqualError(t, err, "resource missing not found")

	out, err = execute(t, "discover", "resource", "fn-1", "--json")
	require.NoError(t, err)
	var res hexagonal.DiscoverResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Found)
	require.NotNil(t, res.Resource)
	assert.Equal(t, discovery.TypeFunction, res.Resource.Type)

	out, err = execute(t, "discover", "all")
	require.NoError(t, err)
	assert.Contains(t, out, "dynamodb:table:")
	assert.Contains(t, out, "lambda:function:")

	out, err = execute(t, "discover", "wait", stack.TableID, "--attempts", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "is available")
}

func TestDiscover_RequiresTagValue(t *testing.T) {
	_, err := execute(t, "discover", "table", stack.TableID)
	assert.ErrorContains(t, err, "APP_TAG_VALUE")
}

func TestInit(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, "init", "greeter", "--dir", dir, "--no-git")
	require.NoError(t, err)
	assert.Contains(t, out, "Created")
	assert.FileExists(t, filepath.Join(dir, "greeter", ".project-root"))
	assert.FileExists(t, filepath.Join(dir, "greeter", "src/functions/hello_world/main.go"))

	_, err = execute(t, "init", "greeter", "--dir", dir, "--no-git")
	assert.ErrorContains(t, err, "project already exists")
}

func TestOptimize(t *testing.T) {
	out, err := execute(t, "optimize", "--skip-asset-check", "--prefix", "demo")
	require.NoError(t, err)
	assert.Contains(t, out, "=== Reliability (3) ===")
	assert.Contains(t, out, "OPT-GEN-001")

	out, err = execute(t, "optimize", "--skip-asset-check", "--prefix", "demo", "--production", "-f", "json")
	require.NoError(t, err)
	var res hexagonal.OptimizeResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 2, res.Summary.Total)

	_, err = execute(t, "optimize", "--skip-asset-check", "--category", "speed")
	assert.ErrorContains(t, err, "invalid category")
}
