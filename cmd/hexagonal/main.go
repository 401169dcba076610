// Command hexagonal synthesizes, bundles and inspects the hello world
// serverless stack.
//
// Usage:
//
//	hexagonal init myservice          Create new project
//	hexagonal bundle                  Assemble dist/functions/<name>
//	hexagonal synth -o template.json  Generate CloudFormation template
//	hexagonal version                 Show version
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lex00/hexagonal-serverless-go/internal/config"
	"github.com/lex00/hexagonal-serverless-go/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	rootCmd := &cobra.Command{
		Use:   "hexagonal",
		Short: "Build and deploy hexagonal serverless functions",
		Long: `hexagonal manages a serverless project laid out as domain, ports and adapters.

Functions live in src/functions/<name>, shared code in src/shared. Bundle
them, then synthesize the CloudFormation stack that deploys them:

    hexagonal bundle
    hexagonal synth --prefix myservice -o template.json`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv(envFile)
		},
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Load environment variables from this file when it exists")

	rootCmd.AddCommand(
		newInitCmd(),
		newBundleCmd(),
		newSynthCmd(),
		newGraphCmd(),
		newDiffCmd(),
		newOptimizeCmd(),
		newDiscoverCmd(),
		newGreetingCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hexagonal %s\n", getVersion())
		},
	}
}

// newLogger builds the CLI logger from LOG_LEVEL and LOG_FORMAT. The CLI
// defaults to warnings on the console so that logs stay out of the way of
// command output.
func newLogger() *zap.Logger {
	cfg := config.New(config.Env(), nil)
	return logging.Must(logging.Options{
		Level:  cfg.Optional(config.KeyLogLevel, "warn"),
		Format: cfg.Optional(config.KeyLogFormat, "console"),
	})
}
