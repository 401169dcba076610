package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequired_Present(t *testing.T) {
	c := New(MapSource{KeyTableName: "greetings-table"}, nil)

	v, err := c.Required(KeyTableName)
	require.NoError(t, err)
	assert.Equal(t, "greetings-table", v)
}

func TestRequired_MissingIsLoggedAndTyped(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	c := New(MapSource{}, zap.New(core))

	_, err := c.Required(KeyTableName)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissing))

	var cfgErr *Error
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, KeyTableName, cfgErr.Key)
	assert.Equal(t, "required configuration 'HELLO_WORLD_TABLE_NAME' not found", err.Error())

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, KeyTableName, logs.All()[0].ContextMap()["key"])
}

func TestRequired_EmptyCountsAsMissing(t *testing.T) {
	c := New(MapSource{KeyTableName: ""}, nil)

	_, err := c.Required(KeyTableName)
	assert.ErrorIs(t, err, ErrMissing)
}

func TestRequired_NoCaching(t *testing.T) {
	src := MapSource{}
	c := New(src, nil)

	_, err := c.Required("DYNAMIC")
	require.Error(t, err)

	src["DYNAMIC"] = "now-set"
	v, err := c.Required("DYNAMIC")
	require.NoError(t, err)
	assert.Equal(t, "now-set", v)
}

func TestEnvSource(t *testing.T) {
	t.Setenv(KeyTableName, "from-env")

	v, err := New(Env(), nil).Required(KeyTableName)
	require.NoError(t, err)
	assert.Equal(t, "from-env", v)
}

func TestOptional(t *testing.T) {
	c := New(MapSource{KeyRegion: "us-east-1", KeyLogLevel: ""}, nil)

	assert.Equal(t, "us-east-1", c.Optional(KeyRegion, "eu-west-1"))
	assert.Equal(t, "info", c.Optional(KeyLogLevel, "info"))
	assert.Equal(t, "json", c.Optional(KeyLogFormat, "json"))
}

func TestLoadRuntime(t *testing.T) {
	c := New(MapSource{
		KeyTableName:        "greetings",
		KeyRegion:           "eu-west-1",
		KeyDynamoDBEndpoint: "http://localhost:8000",
	}, nil)

	rt, err := LoadRuntime(c)
	require.NoError(t, err)
	assert.Equal(t, Runtime{TableName: "greetings", Region: "eu-west-1", Endpoint: "http://localhost:8000"}, rt)

	_, err = LoadRuntime(New(MapSource{KeyRegion: "eu-west-1"}, nil))
	assert.ErrorIs(t, err, ErrMissing)
}

func TestLogging(t *testing.T) {
	opts := New(MapSource{KeyLogLevel: "debug"}, nil).Logging()
	assert.Equal(t, "debug", opts.Level)
	assert.Equal(t, "json", opts.Format)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("HEXAGONAL_TEST_DOTENV=loaded\n"), 0644))

	t.Setenv("HEXAGONAL_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("HEXAGONAL_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "loaded", os.Getenv("HEXAGONAL_TEST_DOTENV"))
}

func TestLoadDotEnv_NoFiles(t *testing.T) {
	assert.NoError(t, LoadDotEnv("", filepath.Join(t.TempDir(), "nope.env")))
}
