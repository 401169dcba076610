// Package handler maps API Gateway proxy requests onto the greeting service.
//
//	GET /hello?name=<string>  → 200 {"message": "<greeting>"}
//	                          → 500 {"message": "Error: <description>"}
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/lex00/hexagonal-serverless-go/internal/logging"
)

// DefaultName is used when the request carries no usable name.
const DefaultName = "World"

// Greeter is the service capability the handler needs.
type Greeter interface {
	GetGreeting(ctx context.Context, name string) (string, error)
}

// Factory builds a Greeter on first use.
type Factory func(ctx context.Context) (Greeter, error)

// Handler serves the hello route.
type Handler struct {
	log     *zap.Logger
	factory Factory

	mu      sync.Mutex
	greeter Greeter
}

// New returns a Handler over an existing greeter.
func New(g Greeter, log *zap.Logger) *Handler {
	return &Handler{greeter: g, log: logging.OrNop(log)}
}

// NewLazy returns a Handler that builds its greeter on the first request.
// A factory failure is answered with the error envelope and retried on the
// next request.
func NewLazy(f Factory, log *zap.Logger) *Handler {
	return &Handler{factory: f, log: logging.OrNop(log)}
}

type messageBody struct {
	Message string `json:"message"`
}

// Handle is the Lambda entry point. The returned error is always nil so
// that API Gateway receives the response envelope.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	name := NameFrom(req)
	log := logging.WithRequest(ctx, h.log, zap.String("name", name))

	g, err := h.resolve(ctx)
	if err != nil {
		log.Error("greeter unavailable", zap.Error(err))
		return respond(http.StatusInternalServerError, "Error: "+err.Error()), nil
	}

	msg, err := g.GetGreeting(ctx, name)
	if err != nil {
		log.Error("get greeting failed", zap.Error(err))
		return respond(http.StatusInternalServerError, "Error: "+err.Error()), nil
	}

	log.Info("greeting served")
	return respond(http.StatusOK, msg), nil
}

// NameFrom extracts the name query parameter, falling back to DefaultName
// when it is absent or blank.
func NameFrom(req events.APIGatewayProxyRequest) string {
	name := strings.TrimSpace(req.QueryStringParameters["name"])
	if name == "" {
		return DefaultName
	}
	return name
}

func (h *Handler) resolve(ctx context.Context) (Greeter, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.greeter != nil {
		return h.greeter, nil
	}
	g, err := h.factory(ctx)
	if err != nil {
		return nil, err
	}
	h.greeter = g
	return g, nil
}

func respond(status int, message string) events.APIGatewayProxyResponse {
	body, _ := json.Marshal(messageBody{Message: message})
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}
