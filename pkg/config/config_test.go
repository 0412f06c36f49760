package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/soundprediction/go-graphrank/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate clears the store variables and points the dotenv lookup at an
// empty temp directory.
func isolate(t *testing.T) Options {
	t.Helper()
	for _, key := range []string{EnvURI, EnvUser, EnvPass, EnvPassword, EnvDatabase, EnvHistoryPath} {
		t.Setenv(key, "")
	}
	return Options{EnvFile: filepath.Join(t.TempDir(), "missing.env")}
}

func TestLoadFromEnvironment(t *testing.T) {
	opts := isolate(t)
	t.Setenv(EnvURI, "bolt://graph:7687")
	t.Setenv(EnvUser, "analyst")
	t.Setenv(EnvPass, "s3cret")

	cfg, err := Load(opts)
	require.NoError(t, err)

	assert.Equal(t, "bolt://graph:7687", cfg.Database.URI)
	assert.Equal(t, "analyst", cfg.Database.Username)
	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.Equal(t, "neo4j", cfg.Database.Database)
	assert.Equal(t, "Person", cfg.Schema.Label)
	assert.Equal(t, "name", cfg.Schema.KeyProperty)
	assert.Equal(t, []string{"FRIENDS_WITH", "PARTICIPATES_IN"}, cfg.Schema.RelationshipKinds)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.History.Path)
}

func TestLoadPasswordAlias(t *testing.T) {
	opts := isolate(t)
	t.Setenv(EnvURI, "bolt://graph:7687")
	t.Setenv(EnvUser, "analyst")
	t.Setenv(EnvPassword, "fallback")

	cfg, err := Load(opts)
	require.NoError(t, err)
	assert.Equal(t, "fallback", cfg.Database.Password)

	t.Setenv(EnvPass, "primary")
	cfg, err = Load(opts)
	require.NoError(t, err)
	assert.Equal(t, "primary", cfg.Database.Password)
}

func TestLoadMissingCredentials(t *testing.T) {
	opts := isolate(t)
	t.Setenv(EnvURI, "bolt://graph:7687")

	_, err := Load(opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrConfiguration)
	assert.Contains(t, err.Error(), "Database.Username is required (set NEO4J_USER)")
	assert.Contains(t, err.Error(), "Database.Password is required (set NEO4J_PASS)")
	assert.NotContains(t, err.Error(), "Database.URI")
}

func TestLoadDotEnvFile(t *testing.T) {
	opts := isolate(t)
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("NEO4J_URI=neo4j://from-file:7687\nNEO4J_USER=file-user\nNEO4J_PASS=file-pass\n"), 0o600))
	opts.EnvFile = envFile

	t.Setenv(EnvUser, "env-user")

	cfg, err := Load(opts)
	require.NoError(t, err)
	assert.Equal(t, "neo4j://from-file:7687", cfg.Database.URI)
	assert.Equal(t, "env-user", cfg.Database.Username, "process environment wins over the dotenv file")
	assert.Equal(t, "file-pass", cfg.Database.Password)
}

func TestLoadConfigFile(t *testing.T) {
	opts := isolate(t)
	file := filepath.Join(t.TempDir(), "graphrank.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
log:
  level: debug
database:
  uri: bolt://yaml:7687
  username: yaml-user
  password: yaml-pass
  database: social
schema:
  relationship_kinds: [KNOWS]
history:
  path: /tmp/runs.duckdb
`), 0o600))
	opts.ConfigFile = file
	t.Setenv(EnvURI, "bolt://env:7687")

	cfg, err := Load(opts)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "bolt://env:7687", cfg.Database.URI)
	assert.Equal(t, "social", cfg.Database.Database)
	assert.Equal(t, []string{"KNOWS"}, cfg.Schema.RelationshipKinds)
	assert.Equal(t, "Person", cfg.Schema.Label)
	assert.Equal(t, "/tmp/runs.duckdb", cfg.History.Path)
}

func TestLoadUnreadableConfigFile(t *testing.T) {
	opts := isolate(t)
	opts.ConfigFile = filepath.Join(t.TempDir(), "absent.yaml")

	_, err := Load(opts)
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestLoadLogLevelOverride(t *testing.T) {
	opts := isolate(t)
	t.Setenv(EnvURI, "bolt://graph:7687")
	t.Setenv(EnvUser, "analyst")
	t.Setenv(EnvPass, "s3cret")

	opts.LogLevel = "WARN"
	cfg, err := Load(opts)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)

	opts.LogLevel = "verbose"
	_, err = Load(opts)
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestValidateSchemaIdentifiers(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Log:      LogConfig{Level: "info"},
			Database: DatabaseConfig{URI: "bolt://x", Username: "u", Password: "p"},
			Schema: SchemaConfig{
				Label:             "Person",
				KeyProperty:       "name",
				RelationshipKinds: []string{"FRIENDS_WITH"},
			},
			Server: ServerConfig{Port: 8080, Mode: "release"},
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"label injection", func(c *Config) { c.Schema.Label = "Person) DETACH DELETE (n" }, "Schema.Label"},
		{"key with space", func(c *Config) { c.Schema.KeyProperty = "full name" }, "Schema.KeyProperty"},
		{"relationship kind with pipe", func(c *Config) { c.Schema.RelationshipKinds = []string{"A|B"} }, "Schema.RelationshipKinds[0]"},
		{"no relationship kinds", func(c *Config) { c.Schema.RelationshipKinds = []string{} }, "Schema.RelationshipKinds"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "Server.Port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, types.ErrConfiguration)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
