// Package dynamo is the DynamoDB implementation of ports.GreetingStore.
//
// Items are keyed by the "name" partition key and carry the optional
// "greeting" text plus ISO-8601 "created_at" and "updated_at" strings.
package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/lex00/hexagonal-serverless-go/internal/config"
	"github.com/lex00/hexagonal-serverless-go/internal/greeting"
	"github.com/lex00/hexagonal-serverless-go/internal/logging"
	"github.com/lex00/hexagonal-serverless-go/internal/ports"
)

// API is the subset of the DynamoDB client used by Store.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

var (
	_ API                  = (*dynamodb.Client)(nil)
	_ ports.GreetingStore  = (*Store)(nil)
	_ ports.GreetingLookup = (*Store)(nil)
)

// StorageError wraps a failed DynamoDB call.
type StorageError struct {
	Op    string
	Table string
	Name  string
	Err   error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("dynamodb %s %s[%s]: %v", e.Op, e.Table, e.Name, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Store reads and writes greetings in a single DynamoDB table.
type Store struct {
	client API
	table  string
	log    *zap.Logger
}

// New returns a Store for the table named in rt.
func New(client API, rt config.Runtime, log *zap.Logger) (*Store, error) {
	if rt.TableName == "" {
		return nil, &config.Error{Key: config.KeyTableName}
	}
	if client == nil {
		return nil, errors.New("dynamo: nil client")
	}
	return &Store{
		client: client,
		table:  rt.TableName,
		log:    logging.OrNop(log).With(zap.String("table", rt.TableName)),
	}, nil
}

// NewFromConfig loads the AWS SDK configuration and returns a Store backed
// by a real DynamoDB client. A non-empty rt.Endpoint points the client at a
// local DynamoDB and uses static dummy credentials unless the environment
// provides real ones.
func NewFromConfig(ctx context.Context, rt config.Runtime, log *zap.Logger) (*Store, error) {
	if rt.TableName == "" {
		return nil, &config.Error{Key: config.KeyTableName}
	}

	var opts []func(*awsconfig.LoadOptions) error
	if rt.Region != "" {
		opts = append(opts, awsconfig.WithRegion(rt.Region))
	}
	if rt.Endpoint != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("local", "local", ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if rt.Endpoint != "" {
			o.BaseEndpoint = aws.String(rt.Endpoint)
		}
	})
	return New(client, rt, log)
}

// Lookup returns the stored greeting for name. It returns ports.ErrNotFound
// when no item exists and a *StorageError when the read fails.
func (s *Store) Lookup(ctx context.Context, name string) (*greeting.Greeting, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			greeting.KeyName: &types.AttributeValueMemberS{Value: name},
		},
	})
	if err != nil {
		return nil, &StorageError{Op: "GetItem", Table: s.table, Name: name, Err: err}
	}
	if len(out.Item) == 0 {
		return nil, ports.ErrNotFound
	}

	var g greeting.Greeting
	if err := attributevalue.UnmarshalMap(out.Item, &g); err != nil {
		return nil, &StorageError{Op: "UnmarshalMap", Table: s.table, Name: name, Err: err}
	}
	if g.Name == "" {
		g.Name = name
	}
	return greeting.NewAt(g.Name, g.Text, g.CreatedAt, g.UpdatedAt), nil
}

// Fetch implements ports.GreetingStore.
//
// A missing item and a failed read both yield a greeting without text, so
// callers always get a usable record. Read failures are only logged; use
// Lookup to tell the two cases apart.
func (s *Store) Fetch(ctx context.Context, name string) *greeting.Greeting {
	g, err := s.Lookup(ctx, name)
	switch {
	case err == nil:
		return g
	case errors.Is(err, ports.ErrNotFound):
		s.log.Debug("no stored greeting", zap.String("name", name))
	default:
		s.log.Warn("greeting read failed, using default", zap.String("name", name), zap.Error(err))
	}
	return greeting.New(name, "")
}

// Save stamps UpdatedAt and overwrites the item for g.Name. Failures are
// logged and returned.
func (s *Store) Save(ctx context.Context, g *greeting.Greeting) error {
	g.Touch()

	item, err := attributevalue.MarshalMap(g)
	if err != nil {
		return &StorageError{Op: "MarshalMap", Table: s.table, Name: g.Name, Err: err}
	}

	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	}); err != nil {
		serr := &StorageError{Op: "PutItem", Table: s.table, Name: g.Name, Err: err}
		s.log.Error("greeting write failed", zap.String("name", g.Name), zap.Error(serr))
		return serr
	}
	return nil
}
