// Command hello-world is the Lambda function behind GET /hello.
//
// Build for the provided.al2023 runtime:
//
//	GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -tags lambda.norpc -o bootstrap ./cmd/hello-world
package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/lex00/hexagonal-serverless-go/internal/config"
	"github.com/lex00/hexagonal-serverless-go/internal/handler"
	"github.com/lex00/hexagonal-serverless-go/internal/logging"
	"github.com/lex00/hexagonal-serverless-go/internal/service"
)

func main() {
	cfg := config.New(config.Env(), nil)
	log := logging.Must(cfg.Logging())
	defer func() { _ = log.Sync() }()

	cfg = config.New(config.Env(), log)

	h := handler.NewLazy(func(ctx context.Context) (handler.Greeter, error) {
		rt, err := config.LoadRuntime(cfg)
		if err != nil {
			return nil, err
		}
		return service.NewDefault(ctx, rt, log)
	}, log)

	log.Info("starting", zap.String("handler", "hello_world"))
	lambda.Start(h.Handle)
}
