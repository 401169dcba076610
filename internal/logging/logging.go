// Package logging builds the zap loggers used by the CLI and the Lambda
// function.
//
// LOG_LEVEL selects debug, info, warn or error (default info). LOG_FORMAT
// selects json or console (default json, which CloudWatch indexes).
package logging

import (
	"context"
	"strings"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures New.
type Options struct {
	Level  string
	Format string
}

// New returns a logger writing to stderr.
func New(opts Options) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if strings.EqualFold(opts.Format, "console") || strings.EqualFold(opts.Format, "text") {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(ParseLevel(opts.Level))
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// Must is like New but falls back to a no-op logger on error.
func Must(opts Options) *zap.Logger {
	l, err := New(opts)
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// ParseLevel maps a level name to a zap level, defaulting to info.
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// WithRequest enriches base with the Lambda request id and function name
// when ctx carries a Lambda context.
func WithRequest(ctx context.Context, base *zap.Logger, extra ...zap.Field) *zap.Logger {
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc != nil {
		extra = append(extra, zap.String("request_id", lc.AwsRequestID))
		if lambdacontext.FunctionName != "" {
			extra = append(extra, zap.String("function", lambdacontext.FunctionName))
		}
	}
	return OrNop(base).With(extra...)
}
