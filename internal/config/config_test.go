package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_DefaultsOnly(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestInit_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grounded-assistant.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
codec:
  addr: localhost:50051
index:
  backend: qdrant
qdrant:
  collection: annual_report
timeouts:
  retrieval: 3s
retrieval:
  boosts:
    verbatim: 30
policy:
  answer: 0.5
`), 0o644))
	t.Setenv("GROUNDED_ASSISTANT_TOP_K", "7")
	t.Setenv("GROUNDED_ASSISTANT_LOG_LEVEL", "debug")

	v := viper.New()
	used, err := Init(v, path)
	require.NoError(t, err)
	assert.Equal(t, path, used)

	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "localhost:50051", c.Codec.Addr)
	assert.Equal(t, BackendQdrant, c.Index.Backend)
	assert.Equal(t, "annual_report", c.Qdrant.Collection)
	assert.Equal(t, "localhost:6334", c.Qdrant.Addr)
	assert.Equal(t, 3*time.Second, c.Timeouts.Retrieval)
	assert.Equal(t, 5*time.Second, c.Timeouts.Classify)
	assert.Equal(t, 30.0, c.Retrieval.Boosts.Verbatim)
	assert.Equal(t, 12.0, c.Retrieval.Boosts.Entity)
	assert.Equal(t, 0.5, c.Policy.Answer)
	assert.Equal(t, 7, c.TopK)
	assert.Equal(t, "debug", c.Log.Level)
}

func TestInit_MissingExplicitFile(t *testing.T) {
	_, err := Init(viper.New(), filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown backend", func(c *Config) { c.Index.Backend = "faiss" }, "unknown index.backend"},
		{"file paths", func(c *Config) { c.Index.Mapping = "" }, "index.mapping"},
		{"qdrant collection", func(c *Config) { c.Index.Backend = BackendQdrant; c.Qdrant.Collection = "" }, "qdrant.collection"},
		{"top k", func(c *Config) { c.TopK = 0 }, "top_k"},
		{"threshold range", func(c *Config) { c.Policy.Safety = 1.5 }, "policy.safety"},
		{"threshold order", func(c *Config) { c.Policy.Answer = 0.9 }, "exceeds"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			assert.ErrorContains(t, c.Validate(), tt.want)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewLogger(Log{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)
	l.Info("hidden")
	l.Warn("shown", "turn_id", "t1")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"turn_id":"t1"`)

	_, err = NewLogger(Log{Format: "xml"}, &buf)
	assert.Error(t, err)
}
