// Package template builds CloudFormation templates from resources declared in Go.
//
// Resource properties may be any JSON-serializable value, including the
// intrinsic types from the intrinsics package. Build normalizes them to plain
// maps, checks that every Ref, Fn::GetAtt, Fn::Sub variable and DependsOn
// target names a declared resource or parameter, and orders resources so that
// dependency cycles are reported.
package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	hexagonal "github.com/lex00/hexagonal-serverless-go"
)

// Resource is a resource declaration before serialization.
type Resource struct {
	Type                string
	Properties          any
	DependsOn           []string
	DeletionPolicy      string
	UpdateReplacePolicy string
}

// Builder collects resources, parameters and outputs for one template.
type Builder struct {
	description string
	resources   map[string]Resource
	parameters  map[string]hexagonal.Parameter
	outputs     map[string]outputDecl
}

type outputDecl struct {
	description string
	value       any
	exportName  string
}

// NewBuilder returns an empty builder.
func NewBuilder(description string) *Builder {
	return &Builder{
		description: description,
		resources:   make(map[string]Resource),
		parameters:  make(map[string]hexagonal.Parameter),
		outputs:     make(map[string]outputDecl),
	}
}

// Add declares a resource. Logical IDs must be unique.
func (b *Builder) Add(logicalID string, res Resource) error {
	if logicalID == "" {
		return errors.New("resource logical ID is empty")
	}
	if res.Type == "" {
		return fmt.Errorf("resource %s has no type", logicalID)
	}
	if _, exists := b.resources[logicalID]; exists {
		return fmt.Errorf("duplicate resource: %s", logicalID)
	}
	b.resources[logicalID] = res
	return nil
}

// Has reports whether a resource with the logical ID was added.
func (b *Builder) Has(logicalID string) bool {
	_, ok := b.resources[logicalID]
	return ok
}

// Update replaces the declaration of an existing resource.
func (b *Builder) Update(logicalID string, fn func(*Resource)) error {
	res, ok := b.resources[logicalID]
	if !ok {
		return fmt.Errorf("unknown resource: %s", logicalID)
	}
	fn(&res)
	b.resources[logicalID] = res
	return nil
}

// AddParameter declares a template parameter.
func (b *Builder) AddParameter(name string, p hexagonal.Parameter) {
	b.parameters[name] = p
}

// AddOutput declares a stack output. An empty exportName means no export.
func (b *Builder) AddOutput(name, description string, value any, exportName string) {
	b.outputs[name] = outputDecl{description: description, value: value, exportName: exportName}
}

// Build serializes and validates the declarations.
func (b *Builder) Build() (*hexagonal.Template, error) {
	props := make(map[string]map[string]any, len(b.resources))
	deps := make(map[string][]string, len(b.resources))

	for name, res := range b.resources {
		p, err := normalize(res.Properties)
		if err != nil {
			return nil, fmt.Errorf("serializing %s: %w", name, err)
		}
		props[name] = p

		refs := append(References(p), res.DependsOn...)
		for _, ref := range refs {
			if !b.known(ref) {
				return nil, fmt.Errorf("%s references unknown resource %s", name, ref)
			}
		}
		deps[name] = resourceDeps(refs, b.resources)
	}

	if _, err := topologicalSort(deps); err != nil {
		return nil, err
	}

	tmpl := &hexagonal.Template{
		AWSTemplateFormatVersion: "2010-09-09",
		Description:              b.description,
		Resources:                make(map[string]hexagonal.ResourceDef, len(b.resources)),
	}

	for name, res := range b.resources {
		tmpl.Resources[name] = hexagonal.ResourceDef{
			Type:                res.Type,
			Properties:          props[name],
			DependsOn:           sortedCopy(res.DependsOn),
			DeletionPolicy:      res.DeletionPolicy,
			UpdateReplacePolicy: res.UpdateReplacePolicy,
		}
	}

	if len(b.parameters) > 0 {
		tmpl.Parameters = make(map[string]hexagonal.Parameter, len(b.parameters))
		for name, p := range b.parameters {
			tmpl.Parameters[name] = p
		}
	}

	if len(b.outputs) > 0 {
		tmpl.Outputs = make(map[string]hexagonal.Output, len(b.outputs))
		for name, o := range b.outputs {
			value, err := normalizeValue(o.value)
			if err != nil {
				return nil, fmt.Errorf("serializing output %s: %w", name, err)
			}
			for _, ref := range References(value) {
				if !b.known(ref) {
					return nil, fmt.Errorf("output %s references unknown resource %s", name, ref)
				}
			}
			out := hexagonal.Output{Description: o.description, Value: value}
			if o.exportName != "" {
				out.Export = &hexagonal.Export{Name: o.exportName}
			}
			tmpl.Outputs[name] = out
		}
	}

	return tmpl, nil
}

// Order returns the resource logical IDs of t in dependency order.
func Order(t *hexagonal.Template) ([]string, error) {
	return topologicalSort(Dependencies(t))
}

// Dependencies returns, for each resource in t, the resources it references.
func Dependencies(t *hexagonal.Template) map[string][]string {
	deps := make(map[string][]string, len(t.Resources))
	for name, def := range t.Resources {
		refs := append(References(def.Properties), def.DependsOn...)
		deps[name] = resourceDepsDef(refs, t.Resources)
	}
	return deps
}

func (b *Builder) known(ref string) bool {
	if strings.HasPrefix(ref, "AWS::") {
		return true
	}
	if _, ok := b.resources[ref]; ok {
		return true
	}
	_, ok := b.parameters[ref]
	return ok
}

func resourceDeps(refs []string, resources map[string]Resource) []string {
	var out []string
	for _, ref := range refs {
		if _, ok := resources[ref]; ok {
			out = append(out, ref)
		}
	}
	return uniqueSorted(out)
}

func resourceDepsDef(refs []string, resources map[string]hexagonal.ResourceDef) []string {
	var out []string
	for _, ref := range refs {
		if _, ok := resources[ref]; ok {
			out = append(out, ref)
		}
	}
	return uniqueSorted(out)
}

// normalize converts a properties value to map[string]any via JSON.
func normalize(value any) (map[string]any, error) {
	if value == nil {
		return nil, nil
	}
	v, err := normalizeValue(value)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("properties must serialize to an object, got %T", v)
	}
	if len(m) == 0 {
		return nil, nil
	}
	return m, nil
}

func normalizeValue(value any) (any, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

var subVar = regexp.MustCompile(`\$\{([^}!][^}]*)\}`)

// References returns the logical IDs referenced by Ref, Fn::GetAtt and
// Fn::Sub inside value, sorted and without duplicates. Pseudo parameters
// (AWS::*) are included.
func References(value any) []string {
	var refs []string
	var walk func(v any)
	walk = func(v any) {
		switch val := v.(type) {
		case map[string]any:
			if ref, ok := val["Ref"].(string); ok && len(val) == 1 {
				refs = append(refs, ref)
				return
			}
			if getAtt, ok := val["Fn::GetAtt"]; ok && len(val) == 1 {
				switch ga := getAtt.(type) {
				case []any:
					if len(ga) > 0 {
						if s, ok := ga[0].(string); ok {
							refs = append(refs, s)
						}
					}
				case string:
					refs = append(refs, strings.SplitN(ga, ".", 2)[0])
				}
				return
			}
			if sub, ok := val["Fn::Sub"]; ok && len(val) == 1 {
				switch s := sub.(type) {
				case string:
					refs = append(refs, subReferences(s, nil)...)
				case []any:
					local := map[string]bool{}
					if len(s) > 1 {
						if vars, ok := s[1].(map[string]any); ok {
							for k, vv := range vars {
								local[k] = true
								walk(vv)
							}
						}
					}
					if len(s) > 0 {
						if str, ok := s[0].(string); ok {
							refs = append(refs, subReferences(str, local)...)
						}
					}
				}
				return
			}
			for _, vv := range val {
				walk(vv)
			}
		case []any:
			for _, vv := range val {
				walk(vv)
			}
		}
	}
	walk(normalizeForWalk(value))
	return uniqueSorted(refs)
}

func normalizeForWalk(value any) any {
	switch value.(type) {
	case map[string]any, []any, nil:
		return value
	}
	v, err := normalizeValue(value)
	if err != nil {
		return nil
	}
	return v
}

func subReferences(s string, local map[string]bool) []string {
	var refs []string
	for _, m := range subVar.FindAllStringSubmatch(s, -1) {
		name := strings.SplitN(m[1], ".", 2)[0]
		if local[name] {
			continue
		}
		refs = append(refs, name)
	}
	return refs
}

// topologicalSort orders the nodes of deps so that dependencies come first.
func topologicalSort(deps map[string][]string) ([]string, error) {
	graph := make(map[string][]string)
	inDegree := make(map[string]int)

	for name := range deps {
		graph[name] = nil
		inDegree[name] = 0
	}

	for name, ds := range deps {
		for _, dep := range ds {
			if _, exists := deps[dep]; exists {
				graph[dep] = append(graph[dep], name)
				inDegree[name]++
			}
		}
	}

	// Kahn's algorithm
	var queue []string
	for name, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	var result []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, neighbor := range graph[node] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
				sort.Strings(queue)
			}
		}
	}

	if len(result) != len(deps) {
		return nil, detectCycle(deps)
	}

	return result, nil
}

// detectCycle finds and reports a cycle in the dependency graph.
func detectCycle(deps map[string][]string) error {
	visited := make(map[string]bool)
	path := make(map[string]bool)

	var cycle []string
	var findCycle func(node string) bool
	findCycle = func(node string) bool {
		visited[node] = true
		path[node] = true

		for _, dep := range deps[node] {
			if _, exists := deps[dep]; !exists {
				continue
			}
			if !visited[dep] {
				if findCycle(dep) {
					cycle = append([]string{node}, cycle...)
					return true
				}
			} else if path[dep] {
				cycle = append([]string{dep, node}, cycle...)
				return true
			}
		}

		path[node] = false
		return false
	}

	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !visited[name] && findCycle(name) {
			break
		}
	}

	if len(cycle) > 0 {
		return fmt.Errorf("circular dependency detected: %s", strings.Join(cycle, " → "))
	}
	return errors.New("circular dependency detected")
}

func uniqueSorted(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func sortedCopy(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

// ToJSON serializes the template to JSON.
func ToJSON(t *hexagonal.Template) ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// ToYAML serializes the template to YAML.
func ToYAML(t *hexagonal.Template) ([]byte, error) {
	return yaml.Marshal(t)
}

// Encode serializes the template in the named format (json or yaml).
func Encode(t *hexagonal.Template, format string) ([]byte, error) {
	switch format {
	case "json", "":
		return ToJSON(t)
	case "yaml", "yml":
		return ToYAML(t)
	default:
		return nil, fmt.Errorf("unknown format: %s", format)
	}
}
