package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/lex00/hexagonal-serverless-go/internal/scaffold"
	"github.com/lex00/hexagonal-serverless-go/internal/stack"
)

func newInitCmd() *cobra.Command {
	var opts scaffold.Options

	cmd := &cobra.Command{
		Use:   "init <project-name>",
		Short: "Create a new hexagonal serverless project",
		Long: `Init creates a new project in a subdirectory with the given name:
src/functions and src/shared for code, dist for bundles, bundle.yaml and
a .project-root marker. The project is committed to a new git repository
unless --no-git is given.

Examples:
    hexagonal init greeter
    hexagonal init greeter --go-version 1.23 --region us-east-1
    hexagonal init empty-service --include-example=false --no-git`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Name = args[0]
			return runInit(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.GoVersion, "go-version", scaffold.DefaultGoVersion, "Go version written to generated go.mod files")
	cmd.Flags().StringVar(&opts.Region, "region", stack.DefaultRegion, "Default AWS region for the project")
	cmd.Flags().StringVar(&opts.Dir, "dir", ".", "Directory to create the project in")
	cmd.Flags().BoolVar(&opts.IncludeExample, "include-example", true, "Include the hello_world example function")
	cmd.Flags().BoolVar(&opts.NoGit, "no-git", false, "Skip git init and the initial commit")

	return cmd
}

func runInit(ctx context.Context, w io.Writer, opts scaffold.Options) error {
	log := newLogger()
	defer func() { _ = log.Sync() }()

	dir, err := scaffold.New(nil, log).Generate(ctx, opts)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Created %s\n\n", dir)
	fmt.Fprintln(w, "Next steps:")
	fmt.Fprintf(w, "  cd %s\n", dir)
	fmt.Fprintln(w, "  hexagonal bundle")
	fmt.Fprintf(w, "  hexagonal synth --prefix %s -o template.json\n", opts.Name)
	return nil
}
