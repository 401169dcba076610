// Package graph renders the resource dependency graph of a synthesized
// template in DOT or Mermaid format.
package graph

import (
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/emicklei/dot"

	hexagonal "github.com/lex00/hexagonal-serverless-go"
	"github.com/lex00/hexagonal-serverless-go/internal/template"
)

// Format specifies the output format for the graph.
type Format string

const (
	// FormatDOT outputs Graphviz DOT format.
	FormatDOT Format = "dot"
	// FormatMermaid outputs Mermaid format for GitHub/markdown rendering.
	FormatMermaid Format = "mermaid"
)

// Generator creates dependency graphs from templates.
type Generator struct {
	// IncludeParameters adds template parameters as dashed nodes.
	IncludeParameters bool

	// Format specifies the output format (dot or mermaid). Defaults to dot.
	Format Format

	// ClusterByType groups resources by AWS service.
	ClusterByType bool
}

// Generate creates a dependency graph for t and writes it to w.
func (g *Generator) Generate(t *hexagonal.Template, w io.Writer) error {
	graph := g.buildGraph(t)

	var output string
	if g.Format == FormatMermaid {
		output = dot.MermaidGraph(graph, dot.MermaidTopToBottom)
	} else {
		output = graph.String()
	}

	_, err := io.WriteString(w, output)
	return err
}

// GenerateString returns the graph as a string.
func (g *Generator) GenerateString(t *hexagonal.Template) (string, error) {
	var sb strings.Builder
	if err := g.Generate(t, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (g *Generator) buildGraph(t *hexagonal.Template) *dot.Graph {
	graph := dot.NewGraph(dot.Directed)
	graph.Attr("rankdir", "TB")

	graph.NodeInitializer(func(n dot.Node) {
		n.Attr("shape", "box")
		n.Attr("fontname", "Arial")
	})
	graph.EdgeInitializer(func(e dot.Edge) {
		e.Attr("fontname", "Arial")
		e.Attr("fontsize", "10")
	})

	names := sortedKeys(t.Resources)

	// Edges are drawn between the nodes recorded here so that clustered
	// nodes are reused instead of being recreated on the root graph.
	nodes := make(map[string]dot.Node, len(names))
	if g.ClusterByType {
		addClusteredNodes(graph, t.Resources, names, nodes)
	} else {
		for _, name := range names {
			nodes[name] = addNode(graph, name, t.Resources[name].Type)
		}
	}

	if g.IncludeParameters {
		for _, name := range sortedKeys(t.Parameters) {
			n := graph.Node(name)
			n.Attr("shape", "ellipse")
			n.Attr("style", "dashed")
			n.Label(name)
			nodes[name] = n
		}
	}

	edge := func(from, to string) (dot.Edge, bool) {
		src, ok := nodes[from]
		if !ok {
			return dot.Edge{}, false
		}
		dst, ok := nodes[to]
		if !ok {
			return dot.Edge{}, false
		}
		return graph.Edge(src, dst), true
	}

	deps := template.Dependencies(t)
	for _, name := range names {
		res := t.Resources[name]
		attrRefs := attributeReferences(res.Properties)

		for _, dep := range deps[name] {
			if e, ok := edge(name, dep); ok && attrRefs[dep] {
				e.Attr("color", "blue")
			}
		}

		if !g.IncludeParameters {
			continue
		}
		for _, ref := range template.References(res.Properties) {
			if _, ok := t.Parameters[ref]; !ok {
				continue
			}
			if e, ok := edge(name, ref); ok {
				e.Attr("style", "dashed")
			}
		}
	}

	return graph
}

// addClusteredNodes groups resources into one subgraph per service when
// the service has more than one resource. Subgraphs are labelled with the
// service name.
func addClusteredNodes(graph *dot.Graph, resources map[string]hexagonal.ResourceDef, names []string, nodes map[string]dot.Node) {
	byService := make(map[string][]string)
	var services []string
	for _, name := range names {
		svc := Service(resources[name].Type)
		if _, ok := byService[svc]; !ok {
			services = append(services, svc)
		}
		byService[svc] = append(byService[svc], name)
	}
	sort.Strings(services)

	for _, svc := range services {
		members := byService[svc]
		if len(members) == 1 {
			nodes[members[0]] = addNode(graph, members[0], resources[members[0]].Type)
			continue
		}
		cluster := graph.Subgraph(svc, dot.ClusterOption{})
		cluster.Attr("style", "rounded")
		cluster.Attr("bgcolor", "lightyellow")
		for _, name := range members {
			nodes[name] = addNode(cluster, name, resources[name].Type)
		}
	}
}

func addNode(graph *dot.Graph, name, resourceType string) dot.Node {
	return graph.Node(name).Label(name + "\\n[" + resourceType + "]")
}

// Service extracts the service from a resource type.
// e.g., "AWS::DynamoDB::Table" -> "DynamoDB"
func Service(resourceType string) string {
	parts := strings.Split(resourceType, "::")
	if len(parts) == 3 && parts[1] != "" {
		return parts[1]
	}
	return "Other"
}

var subAttr = regexp.MustCompile(`\$\{([^}!.]+)\.[^}]+\}`)

// attributeReferences returns the logical IDs referenced through
// Fn::GetAtt or a ${Name.Attr} substitution.
func attributeReferences(value any) map[string]bool {
	refs := make(map[string]bool)
	var walk func(v any)
	walk = func(v any) {
		switch val := v.(type) {
		case map[string]any:
			if ga, ok := val["Fn::GetAtt"]; ok {
				switch x := ga.(type) {
				case []any:
					if len(x) > 0 {
						if s, ok := x[0].(string); ok {
							refs[s] = true
						}
					}
				case string:
					refs[strings.SplitN(x, ".", 2)[0]] = true
				}
			}
			if sub, ok := val["Fn::Sub"]; ok {
				s, _ := sub.(string)
				if list, ok := sub.([]any); ok && len(list) > 0 {
					s, _ = list[0].(string)
				}
				for _, m := range subAttr.FindAllStringSubmatch(s, -1) {
					refs[m[1]] = true
				}
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
	walk(value)
	return refs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
