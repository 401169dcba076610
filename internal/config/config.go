// Package config provides explicit, injectable access to the environment
// values the application reads.
//
// Nothing in this package is process-global: a Config wraps a Source and is
// passed to whoever needs it, so tests hand in a MapSource instead of
// mutating the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/lex00/hexagonal-serverless-go/internal/logging"
)

// Environment keys.
const (
	KeyTableName        = "HELLO_WORLD_TABLE_NAME"
	KeyRegion           = "AWS_REGION"
	KeyDynamoDBEndpoint = "DYNAMODB_ENDPOINT"
	KeyLogLevel         = "LOG_LEVEL"
	KeyLogFormat        = "LOG_FORMAT"
	KeyTagKey           = "APP_TAG_KEY"
	KeyTagValue         = "APP_TAG_VALUE"
)

// ErrMissing is wrapped by every *Error.
var ErrMissing = errors.New("required configuration not found")

// Error reports a missing required configuration value.
type Error struct {
	Key string
}

func (e *Error) Error() string {
	return fmt.Sprintf("required configuration '%s' not found", e.Key)
}

// Unwrap lets errors.Is match ErrMissing.
func (e *Error) Unwrap() error {
	return ErrMissing
}

// Source looks up raw configuration values.
type Source interface {
	Lookup(key string) (string, bool)
}

// Env reads from the process environment.
func Env() Source {
	return envSource{}
}

type envSource struct{}

func (envSource) Lookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// MapSource is a fixed set of values.
type MapSource map[string]string

// Lookup implements Source.
func (m MapSource) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Config resolves configuration values from a Source.
type Config struct {
	src Source
	log *zap.Logger
}

// New returns a Config over src. A nil logger discards log output.
func New(src Source, log *zap.Logger) *Config {
	if src == nil {
		src = Env()
	}
	return &Config{src: src, log: logging.OrNop(log)}
}

// Required returns the value for key, or an *Error when it is unset or empty.
// The error is logged before it is returned.
func (c *Config) Required(key string) (string, error) {
	v, ok := c.src.Lookup(key)
	if !ok || v == "" {
		err := &Error{Key: key}
		c.log.Error("configuration error", zap.String("key", key), zap.Error(err))
		return "", err
	}
	return v, nil
}

// Optional returns the value for key, or def when it is unset or empty.
func (c *Config) Optional(key, def string) string {
	if v, ok := c.src.Lookup(key); ok && v != "" {
		return v
	}
	return def
}

// Runtime is the explicit configuration handed to the storage adapter.
type Runtime struct {
	TableName string
	Region    string
	// Endpoint overrides the DynamoDB endpoint, e.g. for DynamoDB Local.
	Endpoint string
}

// LoadRuntime reads the Runtime configuration. The table name is required.
func LoadRuntime(c *Config) (Runtime, error) {
	table, err := c.Required(KeyTableName)
	if err != nil {
		return Runtime{}, err
	}
	return Runtime{
		TableName: table,
		Region:    c.Optional(KeyRegion, ""),
		Endpoint:  c.Optional(KeyDynamoDBEndpoint, ""),
	}, nil
}

// Logging returns the logging options from LOG_LEVEL and LOG_FORMAT.
func (c *Config) Logging() logging.Options {
	return logging.Options{
		Level:  c.Optional(KeyLogLevel, "info"),
		Format: c.Optional(KeyLogFormat, "json"),
	}
}

// LoadDotEnv loads the given .env files into the process environment.
// Missing files are skipped and variables already set are not overridden.
func LoadDotEnv(files ...string) error {
	var existing []string
	for _, f := range files {
		if strings.TrimSpace(f) == "" {
			continue
		}
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("loading %s: %w", strings.Join(existing, ", "), err)
	}
	return nil
}
