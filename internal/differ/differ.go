// Package differ compares CloudFormation templates semantically: resources
// by logical ID, properties by path, and outputs by name.
//
// Templates may be JSON or YAML. YAML short-form intrinsics (!Ref, !GetAtt,
// !Sub, ...) are expanded to their long form, so a packaged YAML template
// compares equal to the JSON template it came from.
package differ

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"reflect"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	hexagonal "github.com/lex00/hexagonal-serverless-go"
)

// Options configures the differ.
type Options struct {
	// IgnoreOrder treats arrays as unordered.
	IgnoreOrder bool
}

// Result holds the differences between two templates.
type Result struct {
	Diff    hexagonal.TemplateDiff `json:"diff"`
	Summary hexagonal.DiffSummary  `json:"summary"`
}

// Compare reports what changes when going from one template to another.
// Entries are ordered by logical ID.
func Compare(from, to *hexagonal.Template, opts Options) (*Result, error) {
	if from == nil || to == nil {
		return nil, fmt.Errorf("compare requires two templates")
	}

	var diff hexagonal.TemplateDiff
	for _, name := range unionKeys(from.Resources, to.Resources) {
		before, inOld := from.Resources[name]
		after, inNew := to.Resources[name]
		switch {
		case !inOld:
			diff.Added = append(diff.Added, hexagonal.DiffEntry{Resource: name, Type: after.Type})
		case !inNew:
			diff.Removed = append(diff.Removed, hexagonal.DiffEntry{Resource: name, Type: before.Type})
		default:
			if changes := compareResource(before, after, opts); len(changes) > 0 {
				diff.Modified = append(diff.Modified, hexagonal.DiffEntry{Resource: name, Type: before.Type, Changes: changes})
			}
		}
	}
	diff.Outputs = compareOutputs(from.Outputs, to.Outputs, opts)

	summary := hexagonal.DiffSummary{
		Added:    len(diff.Added),
		Removed:  len(diff.Removed),
		Modified: len(diff.Modified),
		Outputs:  len(diff.Outputs),
	}
	summary.Total = summary.Added + summary.Removed + summary.Modified + summary.Outputs

	return &Result{Diff: diff, Summary: summary}, nil
}

// CompareFiles loads and compares two template files.
func CompareFiles(oldPath, newPath string, opts Options) (*Result, error) {
	from, err := LoadTemplate(oldPath)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", oldPath, err)
	}
	to, err := LoadTemplate(newPath)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", newPath, err)
	}
	return Compare(from, to, opts)
}

// LoadTemplate reads a JSON or YAML template file.
func LoadTemplate(path string) (*hexagonal.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseTemplate(data)
}

// ParseTemplate decodes a JSON or YAML template. Both go through JSON so that
// numbers are float64 and intrinsics are maps regardless of the source format.
func ParseTemplate(data []byte) (*hexagonal.Template, error) {
	if !json.Valid(data) {
		var doc yaml.Node
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing template: %w", err)
		}
		v, err := yamlValue(&doc)
		if err != nil {
			return nil, fmt.Errorf("parsing template: %w", err)
		}
		if data, err = json.Marshal(v); err != nil {
			return nil, fmt.Errorf("parsing template: %w", err)
		}
	}

	var t hexagonal.Template
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}
	return &t, nil
}

// yamlValue converts a YAML node to JSON-compatible values, expanding
// CloudFormation short-form tags.
func yamlValue(n *yaml.Node) (any, error) {
	var v any
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return yamlValue(n.Content[0])
	case yaml.AliasNode:
		return yamlValue(n.Alias)
	case yaml.MappingNode:
		m := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			val, err := yamlValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			m[n.Content[i].Value] = val
		}
		v = m
	case yaml.SequenceNode:
		list := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			val, err := yamlValue(c)
			if err != nil {
				return nil, err
			}
			list = append(list, val)
		}
		v = list
	default:
		if strings.HasPrefix(n.Tag, "!") && !strings.HasPrefix(n.Tag, "!!") {
			v = n.Value
		} else if err := n.Decode(&v); err != nil {
			return nil, err
		}
	}
	return expandShortForm(n.Tag, v), nil
}

func expandShortForm(tag string, v any) any {
	if !strings.HasPrefix(tag, "!") || strings.HasPrefix(tag, "!!") {
		return v
	}
	fn := tag[1:]
	switch fn {
	case "Ref", "Condition":
		return map[string]any{fn: v}
	case "GetAtt":
		if s, ok := v.(string); ok {
			parts := strings.SplitN(s, ".", 2)
			list := make([]any, len(parts))
			for i, p := range parts {
				list[i] = p
			}
			return map[string]any{"Fn::GetAtt": list}
		}
	}
	return map[string]any{"Fn::" + fn: v}
}

func compareResource(before, after hexagonal.ResourceDef, opts Options) []string {
	var changes []string
	if before.Type != after.Type {
		changes = append(changes, fmt.Sprintf("Type changed: %s → %s", before.Type, after.Type))
	}
	changes = append(changes, compareProperties("", before.Properties, after.Properties, opts)...)

	if !slices.Equal(sorted(before.DependsOn), sorted(after.DependsOn)) {
		changes = append(changes, "DependsOn changed")
	}
	for _, p := range []struct{ name, before, after string }{
		{"DeletionPolicy", before.DeletionPolicy, after.DeletionPolicy},
		{"UpdateReplacePolicy", before.UpdateReplacePolicy, after.UpdateReplacePolicy},
	} {
		if p.before != p.after {
			changes = append(changes, fmt.Sprintf("%s changed: %s → %s", p.name, orNone(p.before), orNone(p.after)))
		}
	}
	return changes
}

// compareProperties walks two property maps. Nested objects are reported by
// dotted path; intrinsic calls and arrays are compared as a whole.
func compareProperties(prefix string, before, after map[string]any, opts Options) []string {
	var changes []string
	for _, key := range unionKeys(before, after) {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}

		a, inBefore := before[key]
		b, inAfter := after[key]
		switch {
		case !inBefore:
			changes = append(changes, path+" added")
		case !inAfter:
			changes = append(changes, path+" removed")
		default:
			ma, okA := a.(map[string]any)
			mb, okB := b.(map[string]any)
			if okA && okB && !isIntrinsic(ma) && !isIntrinsic(mb) {
				changes = append(changes, compareProperties(path, ma, mb, opts)...)
			} else if !equal(a, b, opts) {
				changes = append(changes, describeChange(path, a, b))
			}
		}
	}
	return changes
}

// describeChange shows old and new values for scalars.
func describeChange(path string, before, after any) string {
	if scalar(before) && scalar(after) {
		return fmt.Sprintf("%s: %v → %v", path, before, after)
	}
	return path + " modified"
}

func scalar(v any) bool {
	switch v.(type) {
	case string, bool, float64, int, nil:
		return true
	}
	return false
}

func compareOutputs(before, after map[string]hexagonal.Output, opts Options) []string {
	var changes []string
	for _, name := range unionKeys(before, after) {
		a, inBefore := before[name]
		b, inAfter := after[name]
		switch {
		case !inBefore:
			changes = append(changes, name+" added")
		case !inAfter:
			changes = append(changes, name+" removed")
		case !equal(a.Value, b.Value, opts) || !reflect.DeepEqual(a.Export, b.Export):
			changes = append(changes, name+" modified")
		}
	}
	return changes
}

// isIntrinsic reports whether m is a single-key intrinsic function call.
func isIntrinsic(m map[string]any) bool {
	if len(m) != 1 {
		return false
	}
	for k := range m {
		return k == "Ref" || strings.HasPrefix(k, "Fn::")
	}
	return false
}

func equal(a, b any, opts Options) bool {
	if opts.IgnoreOrder {
		a, b = unordered(a), unordered(b)
	}
	return reflect.DeepEqual(a, b)
}

// unordered sorts every array by the JSON encoding of its elements.
func unordered(v any) any {
	switch val := v.(type) {
	case []any:
		type keyed struct {
			key string
			v   any
		}
		items := make([]keyed, len(val))
		for i, item := range val {
			item = unordered(item)
			data, _ := json.Marshal(item)
			items[i] = keyed{string(data), item}
		}
		slices.SortFunc(items, func(x, y keyed) int { return strings.Compare(x.key, y.key) })
		out := make([]any, len(items))
		for i, it := range items {
			out[i] = it.v
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = unordered(item)
		}
		return out
	}
	return v
}

// unionKeys returns the keys of a and b, sorted.
func unionKeys[V any](a, b map[string]V) []string {
	keys := slices.Collect(maps.Keys(a))
	for k := range b {
		if _, ok := a[k]; !ok {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}

func sorted(in []string) []string {
	return slices.Sorted(slices.Values(in))
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
