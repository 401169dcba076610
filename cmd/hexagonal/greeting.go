package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lex00/hexagonal-serverless-go/internal/adapters/memory"
	"github.com/lex00/hexagonal-serverless-go/internal/config"
	"github.com/lex00/hexagonal-serverless-go/internal/discovery"
	"github.com/lex00/hexagonal-serverless-go/internal/handler"
	"github.com/lex00/hexagonal-serverless-go/internal/service"
	"github.com/lex00/hexagonal-serverless-go/internal/stack"
)

// serviceFactory builds the greeting service. local selects the in-memory
// store; otherwise the DynamoDB table named by HELLO_WORLD_TABLE_NAME is used.
var serviceFactory = func(ctx context.Context, local bool, log *zap.Logger) (*service.GreetingService, error) {
	if local {
		return service.New(memory.New()), nil
	}
	rt, err := config.LoadRuntime(config.New(config.Env(), log))
	if err != nil {
		return nil, err
	}
	return service.NewDefault(ctx, rt, log)
}

func newGreetingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "greeting",
		Short: "Read and write greetings",
		Long: `Greeting reads and writes greetings through the same service the
hello_world function uses.

By default the DynamoDB table named by HELLO_WORLD_TABLE_NAME is used
(DYNAMODB_ENDPOINT points it at DynamoDB Local). get --local answers from
an empty in-memory store instead, which exercises the handler without AWS.

Examples:
    hexagonal greeting put Ada "Good morning"
    hexagonal greeting get Ada
    hexagonal greeting get Ada --local
    hexagonal greeting invoke Ada`,
	}

	cmd.AddCommand(
		newGreetingGetCmd(),
		&cobra.Command{
			Use:   "put <name> <text>",
			Short: "Store the greeting text for a name in DynamoDB",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runGreetingPut(cmd.Context(), cmd.OutOrStdout(), args[0], args[1])
			},
		},
		&cobra.Command{
			Use:   "invoke [name]",
			Short: "Invoke the deployed hello_world function",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runGreetingInvoke(cmd.Context(), cmd.OutOrStdout(), args)
			},
		},
	)

	return cmd
}

func newGreetingGetCmd() *cobra.Command {
	var local bool

	cmd := &cobra.Command{
		Use:   "get [name]",
		Short: "Print the HTTP response for GET /hello?name=<name>",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGreetingGet(cmd.Context(), cmd.OutOrStdout(), local, args)
		},
	}

	cmd.Flags().BoolVar(&local, "local", false, "Use an empty in-memory store instead of DynamoDB")

	return cmd
}

func helloRequest(args []string) events.APIGatewayProxyRequest {
	req := events.APIGatewayProxyRequest{HTTPMethod: "GET", Path: "/hello"}
	if len(args) > 0 {
		req.QueryStringParameters = map[string]string{"name": args[0]}
	}
	return req
}

func runGreetingGet(ctx context.Context, w io.Writer, local bool, args []string) error {
	log := newLogger()
	defer func() { _ = log.Sync() }()

	h := handler.NewLazy(func(ctx context.Context) (handler.Greeter, error) {
		return serviceFactory(ctx, local, log)
	}, log)

	resp, err := h.Handle(ctx, helloRequest(args))
	if err != nil {
		return err
	}
	fmt.Fprintln(w, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return nil
}

func runGreetingPut(ctx context.Context, w io.Writer, name, text string) error {
	log := newLogger()
	defer func() { _ = log.Sync() }()

	svc, err := serviceFactory(ctx, false, log)
	if err != nil {
		return err
	}
	if err := svc.SaveGreeting(ctx, name, text); err != nil {
		return err
	}
	fmt.Fprintf(w, "Saved greeting for %s\n", name)
	return nil
}

func runGreetingInvoke(ctx context.Context, w io.Writer, args []string) error {
	log := newLogger()
	defer func() { _ = log.Sync() }()

	cfg := config.New(config.Env(), log)
	tags, err := discovery.TagsFromConfig(cfg)
	if err != nil {
		return err
	}
	awsCfg, err := discovery.LoadAWSConfig(ctx, cfg.Optional(config.KeyRegion, ""))
	if err != nil {
		return err
	}
	inv, err := discovery.NewInvokerFromConfig(awsCfg, tags, log)
	if err != nil {
		return err
	}

	out, err := inv.Invoke(ctx, stack.HelloWorldFunction, helloRequest(args))
	if err != nil {
		return err
	}

	var resp events.APIGatewayProxyResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	fmt.Fprintln(w, resp.Body)
	return nil
}
