package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	hexagonal "github.com/lex00/hexagonal-serverless-go"
	"github.com/lex00/hexagonal-serverless-go/internal/config"
	"github.com/lex00/hexagonal-serverless-go/internal/discovery"
)

// discoveryFactory builds the Discovery used by the discover commands.
// Tests replace it with one backed by a fake tagging client.
var discoveryFactory = func(ctx context.Context) (*discovery.Discovery, error) {
	cfg := config.New(config.Env(), nil)
	tags, err := discovery.TagsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	awsCfg, err := discovery.LoadAWSConfig(ctx, cfg.Optional(config.KeyRegion, ""))
	if err != nil {
		return nil, err
	}
	return discovery.NewFromConfig(awsCfg, tags, newLogger())
}

type lookupFunc func(d *discovery.Discovery, ctx context.Context, resourceID string) (string, bool)

func newDiscoverCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Find deployed resources by tag",
		Long: `Discover locates deployed resources through the Resource Groups Tagging
API. Every resource carries the application tag (APP_TAG_KEY, default
Project, set to APP_TAG_VALUE) and a ResourceId tag.

Examples:
    hexagonal discover table GreetingsTable
    hexagonal discover function hello_world-1f0c...
    hexagonal discover all --json
    hexagonal discover wait GreetingsTable --attempts 10 --delay 5s`,
	}

	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print a JSON result")

	lookups := []struct {
		use    string
		short  string
		lookup lookupFunc
	}{
		{"table <resource-id>", "Print the DynamoDB table name", (*discovery.Discovery).TableName},
		{"bucket <resource-id>", "Print the S3 bucket name", (*discovery.Discovery).BucketName},
		{"role <resource-id>", "Print the IAM role ARN", (*discovery.Discovery).RoleARN},
		{"function <resource-id>", "Print the Lambda function name", (*discovery.Discovery).FunctionName},
	}
	for _, l := range lookups {
		lookup := l.lookup
		cmd.AddCommand(&cobra.Command{
			Use:   l.use,
			Short: l.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				d, err := discoveryFactory(cmd.Context())
				if err != nil {
					return err
				}
				value, found := lookup(d, cmd.Context(), args[0])
				return writeDiscoverResult(cmd.OutOrStdout(), hexagonal.DiscoverResult{Found: found, Value: value}, args[0], jsonOutput)
			},
		})
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "resource <resource-id>",
			Short: "Print the resource of any type tagged with the id",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				d, err := discoveryFactory(cmd.Context())
				if err != nil {
					return err
				}
				res, found := d.ResourceByID(cmd.Context(), args[0])
				result := hexagonal.DiscoverResult{Found: found, Resource: res}
				if found {
					result.Value = res.ARN
				}
				return writeDiscoverResult(cmd.OutOrStdout(), result, args[0], jsonOutput)
			},
		},
		&cobra.Command{
			Use:   "all",
			Short: "List every application resource grouped by type",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				d, err := discoveryFactory(cmd.Context())
				if err != nil {
					return err
				}
				resources := d.AllApplicationResources(cmd.Context())
				if jsonOutput {
					return writeJSON(cmd.OutOrStdout(), hexagonal.DiscoverResult{Found: len(resources) > 0, Resources: resources})
				}
				writeResources(cmd.OutOrStdout(), resources)
				return nil
			},
		},
		newDiscoverWaitCmd(&jsonOutput),
	)

	return cmd
}

func newDiscoverWaitCmd(jsonOutput *bool) *cobra.Command {
	var (
		attempts int
		delay    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "wait <resource-id>",
		Short: "Wait until a resource tagged with the id exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := discoveryFactory(cmd.Context())
			if err != nil {
				return err
			}
			found := d.WaitForResource(cmd.Context(), args[0], attempts, delay)
			return writeDiscoverResult(cmd.OutOrStdout(), hexagonal.DiscoverResult{Found: found}, args[0], *jsonOutput)
		},
	}

	cmd.Flags().IntVar(&attempts, "attempts", discovery.DefaultWaitAttempts, "Maximum number of lookups")
	cmd.Flags().DurationVar(&delay, "delay", discovery.DefaultWaitDelay, "Delay between lookups")

	return cmd
}

func writeDiscoverResult(w io.Writer, result hexagonal.DiscoverResult, resourceID string, jsonOutput bool) error {
	if jsonOutput {
		if err := writeJSON(w, result); err != nil {
			return err
		}
	} else if result.Found && result.Value != "" {
		fmt.Fprintln(w, result.Value)
	} else if result.Found {
		fmt.Fprintf(w, "%s is available\n", resourceID)
	}

	if !result.Found {
		return fmt.Errorf("resource %s not found", resourceID)
	}
	return nil
}

func writeResources(w io.Writer, resources map[string][]hexagonal.DiscoveredResource) {
	if len(resources) == 0 {
		fmt.Fprintln(w, "No application resources found")
		return
	}

	types := make([]string, 0, len(resources))
	for t := range resources {
		types = append(types, t)
	}
	sort.Strings(types)

	for _, t := range types {
		fmt.Fprintf(w, "%s:\n", t)
		for _, r := range resources[t] {
			fmt.Fprintf(w, "  %s\t%s\n", r.Name, r.ResourceID)
		}
	}
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
