package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/lex00/hexagonal-serverless-go/internal/differ"
	"github.com/lex00/hexagonal-serverless-go/internal/graph"
	"github.com/lex00/hexagonal-serverless-go/internal/stack"
)

func newGraphCmd() *cobra.Command {
	var (
		flags             stackFlags
		outputFormat      string
		templateFile      string
		includeParameters bool
		clusterByType     bool
	)

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Generate DOT graph of resource dependencies",
		Long: `Generate a DOT or Mermaid format graph showing resource dependencies.

The graph is drawn from a freshly synthesized stack, or from an existing
template with --template.

The output can be rendered with Graphviz:
    hexagonal graph | dot -Tpng -o deps.png

Or used in GitHub markdown (Mermaid format):
    hexagonal graph -f mermaid

Examples:
    hexagonal graph --skip-asset-check
    hexagonal graph -c                        # cluster by service
    hexagonal graph -t packaged.yaml -p       # existing template with parameters`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gen, err := newGraphGenerator(outputFormat, includeParameters, clusterByType)
			if err != nil {
				return err
			}
			return runGraph(cmd.OutOrStdout(), gen, templateFile, flags.options())
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&outputFormat, "format", "f", "dot", "Output format: dot or mermaid")
	cmd.Flags().StringVarP(&templateFile, "template", "t", "", "Graph this template file instead of synthesizing")
	cmd.Flags().BoolVarP(&includeParameters, "include-parameters", "p", false, "Include parameter nodes in the graph")
	cmd.Flags().BoolVarP(&clusterByType, "cluster", "c", false, "Cluster resources by AWS service type")

	return cmd
}

func newGraphGenerator(format string, includeParams, cluster bool) (*graph.Generator, error) {
	var graphFormat graph.Format
	switch format {
	case "dot":
		graphFormat = graph.FormatDOT
	case "mermaid":
		graphFormat = graph.FormatMermaid
	default:
		return nil, fmt.Errorf("unknown format: %s (use 'dot' or 'mermaid')", format)
	}

	return &graph.Generator{
		Format:            graphFormat,
		IncludeParameters: includeParams,
		ClusterByType:     cluster,
	}, nil
}

func runGraph(w io.Writer, gen *graph.Generator, templateFile string, opts stack.Options) error {
	if templateFile != "" {
		t, err := differ.LoadTemplate(templateFile)
		if err != nil {
			return err
		}
		return gen.Generate(t, w)
	}

	s, err := stack.HelloWorld(opts)
	if err != nil {
		return err
	}
	return gen.Generate(s.Template, w)
}
