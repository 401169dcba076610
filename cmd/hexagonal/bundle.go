package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	hexagonal "github.com/lex00/hexagonal-serverless-go"
	"github.com/lex00/hexagonal-serverless-go/internal/bundle"
)

func newBundleCmd() *cobra.Command {
	var (
		root       string
		watch      bool
		debounce   time.Duration
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Assemble deployable function bundles",
		Long: `Bundle copies every src/functions/<name> into dist/functions/<name>,
merges the shared code and its installed dependencies, and runs the
installer for each manifest it finds (requirements.txt, go.mod, or the
installers configured in bundle.yaml).

The project root is the nearest directory above the working directory
that holds a .project-root marker.

Examples:
    hexagonal bundle
    hexagonal bundle --root ./myservice --json
    hexagonal bundle --watch --debounce 1s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runBundle(ctx, cmd.OutOrStdout(), bundleOptions{
				root:     root,
				watch:    watch,
				debounce: debounce,
				json:     jsonOutput,
			})
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "Project root (default: nearest directory with .project-root)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Rebuild when sources change")
	cmd.Flags().DurationVar(&debounce, "debounce", bundle.DefaultDebounce, "Debounce duration for rapid changes")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print a JSON result")

	return cmd
}

type bundleOptions struct {
	root     string
	watch    bool
	debounce time.Duration
	json     bool
}

func runBundle(ctx context.Context, w io.Writer, opts bundleOptions) error {
	root := opts.root
	if root == "" {
		found, err := bundle.FindRoot(".")
		if err != nil {
			return err
		}
		root = found
	}

	layout, err := bundle.LoadLayout(root)
	if err != nil {
		return err
	}

	log := newLogger()
	defer func() { _ = log.Sync() }()

	builder := bundle.NewBuilder(layout, log)

	if opts.watch {
		fmt.Fprintf(w, "Watching %s for changes... (Ctrl+C to stop)\n", layout.Root)
		return builder.Watch(ctx, opts.debounce, func(res *hexagonal.BundleResult, err error) {
			_ = writeBundleResult(w, res, err, opts.json)
		})
	}

	res, err := builder.BuildAll(ctx)
	if werr := writeBundleResult(w, res, err, opts.json); werr != nil && err == nil {
		return werr
	}
	return err
}

func writeBundleResult(w io.Writer, res *hexagonal.BundleResult, buildErr error, jsonOutput bool) error {
	if res == nil {
		res = &hexagonal.BundleResult{}
	}

	if jsonOutput {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	if buildErr != nil {
		fmt.Fprintf(w, "Bundle failed: %v\n", buildErr)
		return nil
	}
	for _, name := range res.Functions {
		fmt.Fprintf(w, "Bundled %s\n", name)
	}
	fmt.Fprintf(w, "%d functions bundled\n", len(res.Functions))
	return nil
}
